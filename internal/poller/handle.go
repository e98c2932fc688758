package poller

import "context"

// Handle tracks a poll running in the background
type Handle struct {
	done    chan struct{}
	cancel  context.CancelFunc
	payload *StatusPayload
	err     error
}

// Start runs Poll in its own goroutine. The poll stops early when ctx is done
// or Cancel is called.
func (p *Poller) Start(ctx context.Context, jobID string) *Handle {
	ctx, cancel := context.WithCancel(ctx)
	h := &Handle{
		done:   make(chan struct{}),
		cancel: cancel,
	}

	go func() {
		defer close(h.done)
		defer cancel()
		h.payload, h.err = p.Poll(ctx, jobID)
	}()

	return h
}

// Done is closed once the poll has finished
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Wait blocks until the poll finishes and returns its outcome
func (h *Handle) Wait() (*StatusPayload, error) {
	<-h.done
	return h.payload, h.err
}

// Cancel abandons further attempts. It is safe to call more than once and
// after the poll has finished.
func (h *Handle) Cancel() {
	h.cancel()
}
