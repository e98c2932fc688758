package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron"
)

// StaleJobStore fails jobs whose worker stopped sending heartbeats
type StaleJobStore interface {
	FailStaleJobs(ctx context.Context, staleAfter time.Duration) (int64, error)
}

// ReaperConfig holds stale job reaper configuration
type ReaperConfig struct {
	Logger     *slog.Logger
	Store      StaleJobStore
	Interval   time.Duration
	StaleAfter time.Duration
}

// Reaper periodically fails processing jobs with a stale heartbeat so that
// pollers see a terminal status instead of waiting out their attempt budget
type Reaper struct {
	logger     *slog.Logger
	store      StaleJobStore
	interval   time.Duration
	staleAfter time.Duration
	scheduler  *gocron.Scheduler
}

// NewReaper creates a reaper; call Start to schedule it
func NewReaper(cfg *ReaperConfig) *Reaper {
	return &Reaper{
		logger:     cfg.Logger.With(slog.String("component", "reaper")),
		store:      cfg.Store,
		interval:   cfg.Interval,
		staleAfter: cfg.StaleAfter,
	}
}

// Start schedules Reap every interval. Runs never overlap.
func (r *Reaper) Start() error {
	s := gocron.NewScheduler(time.UTC)
	s.SingletonModeAll()

	_, err := s.Every(r.interval).Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), r.interval)
		defer cancel()

		if _, err := r.Reap(ctx); err != nil {
			r.logger.Error("Stale job sweep failed", slog.String("error", err.Error()))
		}
	})
	if err != nil {
		return fmt.Errorf("failed to schedule reaper: %w", err)
	}

	r.logger.Info("Starting stale job reaper",
		slog.Duration("interval", r.interval),
		slog.Duration("stale_after", r.staleAfter),
	)
	s.StartAsync()
	r.scheduler = s

	return nil
}

// Stop halts the schedule
func (r *Reaper) Stop() {
	if r.scheduler != nil {
		r.scheduler.Stop()
		r.logger.Info("Stale job reaper stopped")
	}
}

// Reap fails every processing job whose heartbeat is older than staleAfter
func (r *Reaper) Reap(ctx context.Context) (int64, error) {
	n, err := r.store.FailStaleJobs(ctx, r.staleAfter)
	if err != nil {
		return 0, err
	}

	if n > 0 {
		r.logger.Warn("Failed jobs with stale heartbeats",
			slog.Int64("count", n),
			slog.Duration("stale_after", r.staleAfter),
		)
	}
	return n, nil
}
