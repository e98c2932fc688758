package model

import (
	"database/sql"
	"time"
)

// ScriptJob is a row of script_jobs
type ScriptJob struct {
	JobID           string         `db:"job_id"`
	IdempotencyKey  string         `db:"idempotency_key"`
	CreatorID       string         `db:"creator_id"`
	Title           string         `db:"title"`
	Platform        string         `db:"platform"`
	Brief           string         `db:"brief"`
	Status          string         `db:"status"`
	Progress        int            `db:"progress"`
	Message         string         `db:"message"`
	Result          []byte         `db:"result"`
	ErrorMessage    string         `db:"error_message"`
	WorkerID        sql.NullString `db:"worker_id"`
	RetryCount      int            `db:"retry_count"`
	MaxRetries      int            `db:"max_retries"`
	TimeoutSeconds  int            `db:"timeout_seconds"`
	CreatedAt       time.Time      `db:"created_at"`
	UpdatedAt       time.Time      `db:"updated_at"`
	StartedAt       sql.NullTime   `db:"started_at"`
	CompletedAt     sql.NullTime   `db:"completed_at"`
	LastHeartbeatAt sql.NullTime   `db:"last_heartbeat_at"`
}
