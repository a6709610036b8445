package monitor

import (
	"sync"
	"time"
)

// MigrationMonitor tracks archive-migration health and failures.
type MigrationMonitor struct {
	mu                   sync.RWMutex
	lastSuccess          time.Time
	lastAttempt          time.Time
	consecutiveErrors    int
	lastError            string
	verificationFailures int64
	monthsMigrated       int64
}

// RecordSuccess records a successful migration run.
func (mm *MigrationMonitor) RecordSuccess(monthsMigrated int64) {
	mm.mu.Lock()
	defer mm.mu.Unlock()
	mm.lastSuccess = time.Now()
	mm.lastAttempt = time.Now()
	mm.consecutiveErrors = 0
	mm.lastError = ""
	mm.monthsMigrated = monthsMigrated
}

// RecordFailure records a failed migration run.
func (mm *MigrationMonitor) RecordFailure(err error, verificationFailures int64) {
	mm.mu.Lock()
	defer mm.mu.Unlock()
	mm.lastAttempt = time.Now()
	mm.consecutiveErrors++
	mm.verificationFailures = verificationFailures
	if err != nil {
		mm.lastError = err.Error()
	}
}

// IsHealthy returns true if migration is working properly.
// Unhealthy conditions:
//   - Haven't succeeded in >48 hours despite attempts
//   - More than 3 consecutive failures
func (mm *MigrationMonitor) IsHealthy() bool {
	mm.mu.RLock()
	defer mm.mu.RUnlock()

	if mm.consecutiveErrors > 3 {
		return false
	}
	if mm.lastSuccess.IsZero() {
		// Never run yet is fine right after startup; failures above
		// already cover the broken case.
		return mm.consecutiveErrors == 0
	}
	if time.Since(mm.lastSuccess) > 48*time.Hour {
		return false
	}
	return true
}

// MigrationStatus is the health-check view of the migrator.
type MigrationStatus struct {
	Healthy              bool   `json:"healthy"`
	LastSuccess          string `json:"last_success,omitempty"`
	TimeSinceSuccess     string `json:"time_since_success,omitempty"`
	LastAttempt          string `json:"last_attempt,omitempty"`
	ConsecutiveErrors    int    `json:"consecutive_errors,omitempty"`
	LastError            string `json:"last_error,omitempty"`
	VerificationFailures int64  `json:"verification_failures"`
	MonthsMigrated       int64  `json:"months_migrated"`
}

// Status returns current migration status for health checks.
func (mm *MigrationMonitor) Status() MigrationStatus {
	mm.mu.RLock()
	defer mm.mu.RUnlock()

	status := MigrationStatus{
		Healthy:              mm.IsHealthy(),
		VerificationFailures: mm.verificationFailures,
		MonthsMigrated:       mm.monthsMigrated,
	}

	if !mm.lastSuccess.IsZero() {
		status.LastSuccess = mm.lastSuccess.Format(time.RFC3339)
		status.TimeSinceSuccess = time.Since(mm.lastSuccess).String()
	}

	if !mm.lastAttempt.IsZero() {
		status.LastAttempt = mm.lastAttempt.Format(time.RFC3339)
	}

	if mm.consecutiveErrors > 0 {
		status.ConsecutiveErrors = mm.consecutiveErrors
		status.LastError = mm.lastError
	}

	return status
}
