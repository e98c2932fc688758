package domain

import (
	"errors"
)

const (
	JobStatusPending    = "pending"
	JobStatusProcessing = "processing"
	JobStatusCompleted  = "completed"
	JobStatusFailed     = "failed"
)

// CanceledMessage is recorded on jobs failed through the cancel endpoint
const CanceledMessage = "canceled by user"

// EnqueueFailedMessage is recorded on jobs that could not be handed to a worker
const EnqueueFailedMessage = "failed to enqueue generation job"

var (
	ErrJobNotFound    = errors.New("job not found")
	ErrJobTerminal    = errors.New("job already reached a terminal status")
	ErrJobNotTerminal = errors.New("job has not reached a terminal status")
	ErrKeyReused      = errors.New("idempotency key already used for a different brief")
)

// IsTerminal reports whether no further status transition is possible
func IsTerminal(status string) bool {
	return status == JobStatusCompleted || status == JobStatusFailed
}
