package browser

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
)

// Handle controls a browser started with RunInBackground().
type Handle struct {
	cancel context.CancelFunc
	done   chan struct{}
	err    error // written before done is closed

	once sync.Once
	res  error

	inCallback int32
}

// Shutdown stops the browser, waits for the worker to drain, and returns the
// first fatal error encountered while the browser ran, if any.
//
// Subsequent calls are no-ops and return the same result.
//
// Shutdown may be called from inside the event callback; in that case it
// signals termination and returns immediately (waiting would deadlock the
// worker on itself), and the browser stops as soon as the callback returns.
func (h *Handle) Shutdown() error {
	h.cancel()

	if atomic.LoadInt32(&h.inCallback) != 0 {
		return nil
	}

	h.once.Do(func() {
		<-h.done

		if !errors.Is(h.err, context.Canceled) {
			h.res = h.err
		}
	})

	return h.res
}
