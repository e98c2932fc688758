package poller

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyJobID is returned before any request when no job id is given
	ErrEmptyJobID = errors.New("job id is required")

	// ErrInvalidOptions is returned when max attempts or interval is negative
	ErrInvalidOptions = errors.New("invalid poller options")

	// ErrCanceled is returned when the caller's context ends the poll early
	ErrCanceled = errors.New("polling canceled")
)

// RequestError reports that the final attempt's status request failed
type RequestError struct {
	JobID   string
	Attempt int
	Err     error
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("status request for job %s failed on final attempt %d: %v", e.JobID, e.Attempt, e.Err)
}

func (e *RequestError) Unwrap() error {
	return e.Err
}

// TimeoutError reports that no terminal status was seen within the attempt budget
type TimeoutError struct {
	JobID       string
	MaxAttempts int
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("job %s did not reach a terminal status after %d attempts", e.JobID, e.MaxAttempts)
}
