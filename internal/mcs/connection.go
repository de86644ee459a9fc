package mcs

import (
	"context"
	"fmt"
)

const (
	MessageConnectionSuccessful = "Connection successful"
	MessageConnectionFailed     = "Connection failed"
)

// ConnectionResult is the displayable outcome of a connection test.
type ConnectionResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// FailedConnection builds an unsuccessful result.
func FailedConnection(message string) ConnectionResult {
	if message == "" {
		message = MessageConnectionFailed
	}
	return ConnectionResult{Success: false, Message: message}
}

// ConnectionTester checks that a backend is reachable.
type ConnectionTester struct {
	backend StorageBackend
	retry   RetryPolicy
	logger  Logger
}

// NewConnectionTester creates a tester. retry.Timeout bounds each health check attempt.
func NewConnectionTester(backend StorageBackend, retry RetryPolicy, logger Logger) *ConnectionTester {
	return &ConnectionTester{
		backend: backend,
		retry:   retry,
		logger:  logger,
	}
}

// Check runs the backend health check. It never fails: every problem,
// including a panicking backend, is folded into an unsuccessful result.
func (t *ConnectionTester) Check(ctx context.Context) (result ConnectionResult) {
	if t.backend == nil {
		return FailedConnection("no storage backend configured")
	}

	defer func() {
		if r := recover(); r != nil {
			t.logger.Error("health check panicked", "panic", r)
			result = FailedConnection(fmt.Sprintf("health check failed: %v", r))
		}
	}()

	if err := t.retry.Do(ctx, t.logger, "health check", t.backend.HealthCheck); err != nil {
		t.logger.Warn("connection test failed", "error", err)
		return FailedConnection(err.Error())
	}

	t.logger.Info("connection test succeeded")
	return ConnectionResult{Success: true, Message: MessageConnectionSuccessful}
}
