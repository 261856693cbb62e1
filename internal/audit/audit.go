package audit

import (
	"os"
	"sync"
	"time"

	"dataguard/internal/logger"
)

// Event represents an auditable event
type Event struct {
	Timestamp time.Time              `json:"timestamp"`
	User      string                 `json:"user"`
	Action    string                 `json:"action"`
	Resource  string                 `json:"resource"`
	Result    string                 `json:"result"`
	Reason    string                 `json:"reason,omitempty"`
	Details   map[string]interface{} `json:"details,omitempty"`
}

// Logger provides audit logging. Every retention-cleanup and recovery
// action produces an entry regardless of success or failure; entries are
// retained in memory for compliance review within a session.
type Logger struct {
	log     logger.Logger
	enabled bool

	mu      sync.Mutex
	entries []Event
}

// NewLogger creates a new audit logger
func NewLogger(log logger.Logger, enabled bool) *Logger {
	return &Logger{
		log:     log,
		enabled: enabled,
	}
}

// Record logs a generic audit event and returns it
func (a *Logger) Record(action, resource, result, reason string, details map[string]interface{}) Event {
	event := Event{
		Timestamp: time.Now(),
		User:      CurrentUser(),
		Action:    action,
		Resource:  resource,
		Result:    result,
		Reason:    reason,
		Details:   details,
	}

	a.mu.Lock()
	a.entries = append(a.entries, event)
	a.mu.Unlock()

	if !a.enabled {
		return event
	}

	fields := map[string]interface{}{
		"audit":     true,
		"timestamp": event.Timestamp.Format(time.RFC3339),
		"user":      event.User,
		"action":    event.Action,
		"resource":  event.Resource,
		"result":    event.Result,
	}
	if event.Reason != "" {
		fields["reason"] = event.Reason
	}
	for k, v := range event.Details {
		fields[k] = v
	}

	a.log.WithFields(fields).Info("AUDIT")
	return event
}

// BackupStarted logs backup operation start
func (a *Logger) BackupStarted(backupType string, entityCount int) {
	a.Record("BACKUP_START", backupType, "INITIATED", "", map[string]interface{}{
		"entity_count": entityCount,
	})
}

// BackupCompleted logs successful backup completion
func (a *Logger) BackupCompleted(backupID string, sizeBytes int64) {
	a.Record("BACKUP_COMPLETE", backupID, "SUCCESS", "", map[string]interface{}{
		"size_bytes": sizeBytes,
	})
}

// BackupFailed logs backup failure
func (a *Logger) BackupFailed(backupType string, err error) {
	a.Record("BACKUP_FAILED", backupType, "FAILURE", err.Error(), nil)
}

// BackupDeleted logs a retention-cleanup deletion
func (a *Logger) BackupDeleted(backupID, reason string, sizeBytes int64) {
	a.Record("BACKUP_DELETED", backupID, "SUCCESS", reason, map[string]interface{}{
		"size_bytes": sizeBytes,
	})
}

// BackupRetained logs a retention-cleanup retain decision
func (a *Logger) BackupRetained(backupID, reason string) {
	a.Record("BACKUP_RETAINED", backupID, "SUCCESS", reason, nil)
}

// RecoveryStarted logs recovery operation start
func (a *Logger) RecoveryStarted(recoveryID, target string) {
	a.Record("RECOVERY_START", recoveryID, "INITIATED", "", map[string]interface{}{
		"target": target,
	})
}

// RecoveryCompleted logs successful recovery completion
func (a *Logger) RecoveryCompleted(recoveryID string, duration time.Duration) {
	a.Record("RECOVERY_COMPLETE", recoveryID, "SUCCESS", "", map[string]interface{}{
		"duration_seconds": duration.Seconds(),
	})
}

// RecoveryFailed logs recovery failure
func (a *Logger) RecoveryFailed(recoveryID string, err error) {
	a.Record("RECOVERY_FAILED", recoveryID, "FAILURE", err.Error(), nil)
}

// FailoverExecuted logs an executed failover
func (a *Logger) FailoverExecuted(target, reason string) {
	a.Record("FAILOVER_EXECUTED", target, "SUCCESS", reason, nil)
}

// FailoverRefused logs a refused failover attempt
func (a *Logger) FailoverRefused(reason string) {
	a.Record("FAILOVER_REFUSED", "failover", "REFUSED", reason, nil)
}

// Entries returns a copy of the recorded audit trail
func (a *Logger) Entries() []Event {
	a.mu.Lock()
	defer a.mu.Unlock()

	out := make([]Event, len(a.entries))
	copy(out, a.entries)
	return out
}

// CurrentUser returns the current system user
func CurrentUser() string {
	if user := os.Getenv("USER"); user != "" {
		return user
	}
	if user := os.Getenv("USERNAME"); user != "" {
		return user
	}
	return "unknown"
}
