// Package poller waits for asynchronous script generation jobs to finish by
// querying their status at a fixed interval, up to a fixed number of attempts.
//
// A poll ends in one of four ways:
//
//   - a terminal payload (completed, or status "failed") is returned with a nil error
//   - the final attempt's request fails: *RequestError
//   - the attempt budget runs out: *TimeoutError
//   - the context is canceled: an error matching ErrCanceled
//
// Request failures on earlier attempts are logged and the poll carries on.
package poller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

const (
	// DefaultMaxAttempts bounds a poll when WithMaxAttempts is not given
	DefaultMaxAttempts = 30
	// DefaultInterval is the wait between attempts when WithInterval is not given
	DefaultInterval = 2 * time.Second
)

// Observer is called after every attempt with that attempt's payload or error
type Observer func(attempt int, payload *StatusPayload, err error)

// Option configures a Poller
type Option func(*Poller)

// WithMaxAttempts sets the attempt budget. Zero keeps the default.
func WithMaxAttempts(n int) Option {
	return func(p *Poller) {
		if n != 0 {
			p.maxAttempts = n
		}
	}
}

// WithInterval sets the wait between attempts. Zero keeps the default.
func WithInterval(d time.Duration) Option {
	return func(p *Poller) {
		if d != 0 {
			p.interval = d
		}
	}
}

// WithLogger sets the logger used for attempt diagnostics
func WithLogger(logger *slog.Logger) Option {
	return func(p *Poller) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithObserver registers a per-attempt callback
func WithObserver(fn Observer) Option {
	return func(p *Poller) {
		p.observer = fn
	}
}

// withWait replaces the inter-attempt wait; tests use it to avoid sleeping
func withWait(fn func(ctx context.Context, d time.Duration) error) Option {
	return func(p *Poller) {
		p.wait = fn
	}
}

// Poller polls a StatusFetcher until a generation job is terminal
type Poller struct {
	fetcher     StatusFetcher
	maxAttempts int
	interval    time.Duration
	logger      *slog.Logger
	observer    Observer
	wait        func(ctx context.Context, d time.Duration) error
}

// New creates a Poller. Negative attempt counts or intervals are rejected.
func New(fetcher StatusFetcher, opts ...Option) (*Poller, error) {
	if fetcher == nil {
		return nil, fmt.Errorf("%w: status fetcher is required", ErrInvalidOptions)
	}

	p := &Poller{
		fetcher:     fetcher,
		maxAttempts: DefaultMaxAttempts,
		interval:    DefaultInterval,
		logger:      slog.New(slog.DiscardHandler),
		wait:        sleep,
	}
	for _, opt := range opts {
		opt(p)
	}

	if p.maxAttempts < 0 {
		return nil, fmt.Errorf("%w: max attempts must be positive, got %d", ErrInvalidOptions, p.maxAttempts)
	}
	if p.interval < 0 {
		return nil, fmt.Errorf("%w: interval must be positive, got %s", ErrInvalidOptions, p.interval)
	}

	return p, nil
}

// MaxAttempts returns the attempt budget
func (p *Poller) MaxAttempts() int {
	return p.maxAttempts
}

// Interval returns the wait between attempts
func (p *Poller) Interval() time.Duration {
	return p.interval
}

// state is the outcome of a single attempt
type state int

const (
	statePolling state = iota
	stateResolved
	stateRequestFailed
	stateCanceled
)

// Poll queries the status of jobID until it is terminal, the attempt budget is
// spent, or ctx is done. A payload with status "failed" is returned as a
// result, not as an error.
func (p *Poller) Poll(ctx context.Context, jobID string) (*StatusPayload, error) {
	if jobID == "" {
		return nil, ErrEmptyJobID
	}

	logger := p.logger.With(slog.String("job_id", jobID))
	logger.Debug("Polling generation status",
		slog.Int("max_attempts", p.maxAttempts),
		slog.Duration("interval", p.interval),
	)

	for attempt := 1; ; attempt++ {
		st, payload, err := p.attempt(ctx, logger, jobID, attempt)

		switch st {
		case stateResolved:
			logger.Info("Generation reached terminal status",
				slog.String("status", payload.Status),
				slog.Bool("is_generation_complete", payload.IsGenerationComplete),
				slog.Int("attempts", attempt),
			)
			return payload, nil

		case stateRequestFailed:
			logger.Error("Status request failed on final attempt",
				slog.Int("attempt", attempt),
				slog.Any("error", err),
			)
			return nil, &RequestError{JobID: jobID, Attempt: attempt, Err: err}

		case stateCanceled:
			return nil, canceled(ctx, logger, attempt, err)
		}

		if attempt >= p.maxAttempts {
			logger.Warn("Generation status polling timed out",
				slog.Int("max_attempts", p.maxAttempts),
			)
			return nil, &TimeoutError{JobID: jobID, MaxAttempts: p.maxAttempts}
		}

		if err := p.wait(ctx, p.interval); err != nil {
			return nil, canceled(ctx, logger, attempt, err)
		}
	}
}

// attempt issues one status request and classifies the outcome
func (p *Poller) attempt(ctx context.Context, logger *slog.Logger, jobID string, attempt int) (state, *StatusPayload, error) {
	if ctx.Err() != nil {
		return stateCanceled, nil, ctx.Err()
	}

	payload, err := p.fetcher.FetchStatus(ctx, jobID)
	if err == nil && payload == nil {
		err = errors.New("empty status response")
	}

	if p.observer != nil {
		p.observer(attempt, payload, err)
	}

	if err != nil {
		if ctx.Err() != nil {
			return stateCanceled, nil, ctx.Err()
		}
		if attempt >= p.maxAttempts {
			return stateRequestFailed, nil, err
		}
		logger.Warn("Status request failed, will retry",
			slog.Int("attempt", attempt),
			slog.Int("max_attempts", p.maxAttempts),
			slog.Any("error", err),
		)
		return statePolling, nil, err
	}

	if payload.IsTerminal() {
		return stateResolved, payload, nil
	}

	logger.Debug("Generation still in progress",
		slog.Int("attempt", attempt),
		slog.String("status", payload.Status),
		slog.Int("progress", payload.Progress),
	)
	return statePolling, payload, nil
}

func canceled(ctx context.Context, logger *slog.Logger, attempt int, err error) error {
	logger.Debug("Generation status polling canceled",
		slog.Int("attempts", attempt),
	)
	if ctxErr := ctx.Err(); ctxErr != nil {
		err = ctxErr
	}
	// a custom cause is kept next to ctx.Err so both stay matchable
	if cause := context.Cause(ctx); cause != nil && !errors.Is(cause, err) {
		return fmt.Errorf("%w: %w: %w", ErrCanceled, err, cause)
	}
	return fmt.Errorf("%w: %w", ErrCanceled, err)
}

// sleep waits for d or until ctx is done
func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
