package domain

// Job is the slice of a script_jobs row the worker needs
type Job struct {
	JobID          string
	Brief          string // JSON encoded scriptgen.Brief
	WorkerID       string
	RetryCount     int
	MaxRetries     int
	TimeoutSeconds int
}

// JobMessage represents a job message from RabbitMQ
type JobMessage struct {
	JobID       string `json:"job_id"`
	DeliveryTag uint64 `json:"-"`
}
