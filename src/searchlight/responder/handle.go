package responder

import (
	"context"
	"errors"
	"sync"
)

// Handle controls a responder started with RunInBackground().
type Handle struct {
	cancel context.CancelFunc
	done   chan struct{}
	err    error // written before done is closed

	once sync.Once
	res  error
}

// Shutdown stops the responder, waits for the goodbye packets to be sent and
// the worker to drain, and returns the first fatal error encountered while
// the responder ran, if any.
//
// Subsequent calls are no-ops and return the same result.
func (h *Handle) Shutdown() error {
	h.once.Do(func() {
		h.cancel()
		<-h.done

		if !errors.Is(h.err, context.Canceled) {
			h.res = h.err
		}
	})

	return h.res
}
