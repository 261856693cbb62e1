package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"dataguard/internal/logger"
)

var (
	backupOperations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dataguard_backup_operations_total",
		Help: "Total number of backup operations",
	}, []string{"status", "type"})

	recoveryOperations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dataguard_recovery_operations_total",
		Help: "Total number of recovery operations",
	}, []string{"status", "type"})

	operationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "dataguard_operation_duration_seconds",
		Help:    "Duration of backup and recovery operations",
		Buckets: prometheus.ExponentialBuckets(1, 2, 10),
	}, []string{"operation"})

	backupSize = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "dataguard_backup_size_bytes",
		Help: "Size of the most recent backup in bytes",
	}, []string{"type"})
)

// OperationMetrics holds performance metrics for one operation
type OperationMetrics struct {
	Operation      string        `json:"operation"`
	Target         string        `json:"target"`
	StartTime      time.Time     `json:"start_time"`
	Duration       time.Duration `json:"duration"`
	SizeBytes      int64         `json:"size_bytes"`
	ThroughputMBps float64       `json:"throughput_mbps"`
	ErrorCount     int           `json:"error_count"`
	Success        bool          `json:"success"`
}

// Collector collects and reports operation metrics
type Collector struct {
	metrics []OperationMetrics
	mu      sync.RWMutex
	logger  logger.Logger
}

// NewCollector creates a new metrics collector
func NewCollector(log logger.Logger) *Collector {
	return &Collector{
		metrics: make([]OperationMetrics, 0),
		logger:  log,
	}
}

// RecordBackup records metrics for a completed backup operation
func (mc *Collector) RecordBackup(backupType, target string, start time.Time, sizeBytes int64, success bool) {
	status := "success"
	if !success {
		status = "failure"
	}
	backupOperations.WithLabelValues(status, backupType).Inc()
	operationDuration.WithLabelValues("backup").Observe(time.Since(start).Seconds())
	if success {
		backupSize.WithLabelValues(backupType).Set(float64(sizeBytes))
	}

	mc.record("backup_"+backupType, target, start, sizeBytes, success)
}

// RecordRecovery records metrics for a completed recovery operation
func (mc *Collector) RecordRecovery(recoveryType, target string, start time.Time, success bool) {
	status := "success"
	if !success {
		status = "failure"
	}
	recoveryOperations.WithLabelValues(status, recoveryType).Inc()
	operationDuration.WithLabelValues("recovery").Observe(time.Since(start).Seconds())

	mc.record("recovery_"+recoveryType, target, start, 0, success)
}

func (mc *Collector) record(operation, target string, start time.Time, sizeBytes int64, success bool) {
	duration := time.Since(start)

	metric := OperationMetrics{
		Operation:      operation,
		Target:         target,
		StartTime:      start,
		Duration:       duration,
		SizeBytes:      sizeBytes,
		ThroughputMBps: calculateThroughput(sizeBytes, duration),
		Success:        success,
	}

	mc.mu.Lock()
	mc.metrics = append(mc.metrics, metric)
	mc.mu.Unlock()

	if mc.logger != nil {
		fields := map[string]interface{}{
			"metric_type": "operation_complete",
			"operation":   operation,
			"target":      target,
			"duration_ms": duration.Milliseconds(),
			"size_bytes":  sizeBytes,
			"success":     success,
		}

		if success {
			mc.logger.WithFields(fields).Info("Operation completed successfully")
		} else {
			mc.logger.WithFields(fields).Error("Operation failed")
		}
	}
}

// GetMetrics returns a copy of all collected metrics
func (mc *Collector) GetMetrics() []OperationMetrics {
	mc.mu.RLock()
	defer mc.mu.RUnlock()

	result := make([]OperationMetrics, len(mc.metrics))
	copy(result, mc.metrics)
	return result
}

// GetAverages calculates average performance metrics
func (mc *Collector) GetAverages() map[string]interface{} {
	mc.mu.RLock()
	defer mc.mu.RUnlock()

	if len(mc.metrics) == 0 {
		return map[string]interface{}{}
	}

	var totalDuration time.Duration
	var totalSize float64
	var successCount int

	for _, m := range mc.metrics {
		totalDuration += m.Duration
		totalSize += float64(m.SizeBytes)
		if m.Success {
			successCount++
		}
	}

	count := len(mc.metrics)
	return map[string]interface{}{
		"total_operations": count,
		"success_rate":     float64(successCount) / float64(count) * 100,
		"avg_duration_ms":  totalDuration.Milliseconds() / int64(count),
		"avg_size_mb":      totalSize / float64(count) / 1024 / 1024,
	}
}

// Clear removes all collected metrics
func (mc *Collector) Clear() {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	mc.metrics = make([]OperationMetrics, 0)
}

// calculateThroughput calculates MB/s throughput
func calculateThroughput(bytes int64, duration time.Duration) float64 {
	seconds := duration.Seconds()
	if seconds == 0 {
		return 0
	}
	return float64(bytes) / seconds / 1024 / 1024
}

// Global metrics collector instance
var GlobalMetrics *Collector

// InitGlobalMetrics initializes the global metrics collector
func InitGlobalMetrics(log logger.Logger) {
	GlobalMetrics = NewCollector(log)
}
