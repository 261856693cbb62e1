package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"dataguard/cmd"
	"dataguard/internal/config"
	"dataguard/internal/logger"
	"dataguard/internal/metrics"
)

// Build information (set by ldflags)
var (
	version   = "dev"
	buildTime = "unknown"
	gitCommit = "unknown"
)

func main() {
	// Create context that cancels on interrupt
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Initialize configuration
	cfg := config.New()

	// Set version information
	cfg.Version = version
	cfg.BuildTime = buildTime
	cfg.GitCommit = gitCommit

	// Initialize logger
	log := logger.New(cfg.LogLevel, cfg.LogFormat)

	// Initialize global metrics
	metrics.InitGlobalMetrics(log)

	// Show session summary on exit
	defer func() {
		if metrics.GlobalMetrics != nil {
			avgs := metrics.GlobalMetrics.GetAverages()
			if ops, ok := avgs["total_operations"].(int); ok && ops > 0 {
				fmt.Printf("\nSession summary: %d operations, %.1f%% success rate\n",
					ops, avgs["success_rate"])
			}
		}
	}()

	// Execute command
	if err := cmd.Execute(ctx, cfg, log); err != nil {
		log.Error("Application failed", "error", err)
		os.Exit(1)
	}
}
