package app

import (
	"sync"

	"mcs-go/internal/mcs"
)

const (
	statusSuccess = "success"
	statusError   = "error"
)

// Operation tracks one CLI command or a running server. Its ID tags every
// log line. Migration runs get their own IDs.
//
// Status reflects the most recent migration: a server that fails one
// migration reports success again after the next clean one.
type Operation struct {
	ID   string
	Name string

	mu     sync.Mutex
	status string
}

// NewOperation creates an operation with a fresh ID.
func NewOperation(name string, ids mcs.IDGenerator) *Operation {
	return &Operation{
		ID:     ids.New(),
		Name:   name,
		status: statusSuccess,
	}
}

// ShortID is the first block of the ID, used as the log line tag.
func (op *Operation) ShortID() string {
	if len(op.ID) > 8 {
		return op.ID[:8]
	}
	return op.ID
}

// Status returns "success" or "error".
func (op *Operation) Status() string {
	op.mu.Lock()
	defer op.mu.Unlock()
	return op.status
}

// Fail marks the operation as failed.
func (op *Operation) Fail() {
	op.setStatus(statusError)
}

// Succeed marks the operation as successful.
func (op *Operation) Succeed() {
	op.setStatus(statusSuccess)
}

// Failed reports whether the last recorded outcome was a failure.
func (op *Operation) Failed() bool {
	return op.Status() == statusError
}

func (op *Operation) setStatus(s string) {
	op.mu.Lock()
	defer op.mu.Unlock()
	op.status = s
}
