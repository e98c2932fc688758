package poller

import (
	"context"
	"encoding/json"
)

// Generation job statuses reported by the status endpoint
const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// StatusPayload is one response of the generation status endpoint. Result and
// Raw are carried through without interpretation.
type StatusPayload struct {
	JobID                string          `json:"jobId"`
	Status               string          `json:"status"`
	IsGenerationComplete bool            `json:"isGenerationComplete"`
	Progress             int             `json:"progress,omitempty"`
	Message              string          `json:"message,omitempty"`
	Result               json.RawMessage `json:"result,omitempty"`
	Error                string          `json:"error,omitempty"`

	// Raw is the complete response body as received
	Raw json.RawMessage `json:"-"`
}

// IsTerminal reports whether polling should stop on this payload. The
// completion flag and the failed status are independent signals and either
// one ends the poll.
func (p *StatusPayload) IsTerminal() bool {
	return p.IsGenerationComplete || p.Status == StatusFailed
}

// Succeeded reports whether the job produced a result
func (p *StatusPayload) Succeeded() bool {
	return p.IsGenerationComplete || p.Status == StatusCompleted
}

// StatusFetcher issues a single status request for a generation job
type StatusFetcher interface {
	FetchStatus(ctx context.Context, jobID string) (*StatusPayload, error)
}

// StatusFetcherFunc adapts a function to StatusFetcher
type StatusFetcherFunc func(ctx context.Context, jobID string) (*StatusPayload, error)

// FetchStatus calls f(ctx, jobID)
func (f StatusFetcherFunc) FetchStatus(ctx context.Context, jobID string) (*StatusPayload, error) {
	return f(ctx, jobID)
}
