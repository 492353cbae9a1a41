package transport

import (
	"context"
)

// Pump reads packets from t and delivers them to ch until ctx is canceled or
// a read fails.
//
// The transport is closed when ctx is canceled, breaking any in-flight read.
// Each running instance starts one pump per transport; the packets from all
// pumps converge on a single channel drained by that instance's worker.
func Pump(ctx context.Context, t Transport, ch chan<- *InboundPacket) error {
	done := make(chan struct{})
	defer close(done)

	go func() {
		select {
		case <-ctx.Done():
			_ = t.Close() // break out of t.Read()
		case <-done:
		}
	}()

	for {
		in, err := t.Read()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}

			return err
		}

		select {
		case ch <- in:
		case <-ctx.Done():
			in.Close()
			return ctx.Err()
		}
	}
}
