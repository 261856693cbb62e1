package pitr

import (
	"runtime"
	"sync"
	"time"
)

// RecoverySession identifies one running recovery for progress tracking
type RecoverySession struct {
	RecoveryID string `json:"recovery_id"`
	TotalSteps int    `json:"total_steps"`
}

// StepResult reports one completed recovery step to the monitor
type StepResult struct {
	StepName        string `json:"step_name"`
	RecordsRestored int    `json:"records_restored"`
	Success         bool   `json:"success"`
}

// ResourceSnapshot is a point-in-time view of process resource usage
type ResourceSnapshot struct {
	Goroutines     int    `json:"goroutines"`
	HeapAllocBytes uint64 `json:"heap_alloc_bytes"`
	HeapSysBytes   uint64 `json:"heap_sys_bytes"`
	NumGC          uint32 `json:"num_gc"`
}

// ProgressStatus is the monitor's externally visible state
type ProgressStatus struct {
	RecoveryID             string           `json:"recovery_id"`
	OverallProgress        float64          `json:"overall_progress"`
	CompletedSteps         int              `json:"completed_steps"`
	TotalSteps             int              `json:"total_steps"`
	FailedSteps            int              `json:"failed_steps"`
	RecordsRestored        int              `json:"records_restored"`
	RecordsPerMinute       float64          `json:"records_per_minute"`
	ElapsedTime            time.Duration    `json:"elapsed_time"`
	EstimatedTimeRemaining time.Duration    `json:"estimated_time_remaining"`
	Resources              ResourceSnapshot `json:"resources"`
}

// ProgressMonitor tracks a recovery session as steps complete. Safe for
// concurrent use; recovery workers report while operators poll status.
type ProgressMonitor struct {
	mu              sync.Mutex
	session         RecoverySession
	started         time.Time
	completedSteps  int
	failedSteps     int
	recordsRestored int
}

// NewProgressMonitor creates a monitor for one recovery session
func NewProgressMonitor(session RecoverySession) *ProgressMonitor {
	return &ProgressMonitor{
		session: session,
		started: time.Now(),
	}
}

// UpdateProgress records one finished step
func (m *ProgressMonitor) UpdateProgress(step StepResult) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.completedSteps++
	m.recordsRestored += step.RecordsRestored
	if !step.Success {
		m.failedSteps++
	}
}

// GetStatus reports current progress, throughput, a completion estimate
// derived from elapsed time, and a resource snapshot
func (m *ProgressMonitor) GetStatus() ProgressStatus {
	m.mu.Lock()
	defer m.mu.Unlock()

	elapsed := time.Since(m.started)
	status := ProgressStatus{
		RecoveryID:      m.session.RecoveryID,
		CompletedSteps:  m.completedSteps,
		TotalSteps:      m.session.TotalSteps,
		FailedSteps:     m.failedSteps,
		RecordsRestored: m.recordsRestored,
		ElapsedTime:     elapsed,
		Resources:       snapshotResources(),
	}

	if m.session.TotalSteps > 0 {
		status.OverallProgress = float64(m.completedSteps) / float64(m.session.TotalSteps)
	}
	if minutes := elapsed.Minutes(); minutes > 0 {
		status.RecordsPerMinute = float64(m.recordsRestored) / minutes
	}
	if m.completedSteps > 0 && m.completedSteps < m.session.TotalSteps {
		perStep := elapsed / time.Duration(m.completedSteps)
		status.EstimatedTimeRemaining = perStep * time.Duration(m.session.TotalSteps-m.completedSteps)
	}

	return status
}

func snapshotResources() ResourceSnapshot {
	var stats runtime.MemStats
	runtime.ReadMemStats(&stats)
	return ResourceSnapshot{
		Goroutines:     runtime.NumGoroutine(),
		HeapAllocBytes: stats.HeapAlloc,
		HeapSysBytes:   stats.HeapSys,
		NumGC:          stats.NumGC,
	}
}
