package domain

// Job status constants
const (
	JobStatusPending    = "pending"
	JobStatusProcessing = "processing"
	JobStatusCompleted  = "completed"
	JobStatusFailed     = "failed"
)

// Status messages shown to creators while a job moves through the worker
const (
	MessageClaimed       = "Generation started"
	MessageCompleted     = "Script ready"
	MessageRetrying      = "Retrying after a generation error"
	MessageHeartbeatLost = "worker stopped responding"
)
