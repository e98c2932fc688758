package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staleStore struct {
	mu   sync.Mutex
	ages []time.Duration
	n    int64
	err  error
}

func (s *staleStore) FailStaleJobs(_ context.Context, staleAfter time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ages = append(s.ages, staleAfter)
	return s.n, s.err
}

func (s *staleStore) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.ages)
}

func TestReaper_Reap(t *testing.T) {
	store := &staleStore{n: 3}

	r := NewReaper(&ReaperConfig{
		Logger:     slog.New(slog.DiscardHandler),
		Store:      store,
		Interval:   time.Minute,
		StaleAfter: 90 * time.Second,
	})

	n, err := r.Reap(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
	require.Len(t, store.ages, 1)
	assert.Equal(t, 90*time.Second, store.ages[0])

	store.err = errors.New("db down")
	_, err = r.Reap(context.Background())
	assert.Error(t, err)
}

func TestReaper_StartStop(t *testing.T) {
	store := &staleStore{}
	r := NewReaper(&ReaperConfig{
		Logger:     slog.New(slog.DiscardHandler),
		Store:      store,
		Interval:   20 * time.Millisecond,
		StaleAfter: time.Second,
	})

	require.NoError(t, r.Start())
	assert.Eventually(t, func() bool { return store.calls() >= 2 }, 2*time.Second, 10*time.Millisecond)

	r.Stop()
	stopped := store.calls()
	time.Sleep(60 * time.Millisecond)
	assert.LessOrEqual(t, store.calls(), stopped+1)
}
