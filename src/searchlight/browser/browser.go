package browser

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/dogmatiq/dodeca/logging"
	"github.com/jmalloc/searchlight/src/searchlight/dnssd"
	"github.com/jmalloc/searchlight/src/searchlight/mdns"
	"github.com/jmalloc/searchlight/src/searchlight/transport"
	"github.com/miekg/dns"
	"golang.org/x/sync/errgroup"
)

const (
	// initialQueryInterval is the delay after the first query for a service
	// type, and the interval the backoff resets to when the type's first
	// response arrives.
	//
	// See https://tools.ietf.org/html/rfc6762#section-5.2.
	initialQueryInterval = 1 * time.Second

	// maxQueryInterval caps the continuous-query backoff.
	maxQueryInterval = 60 * time.Second
)

// subscription is the query-scheduling state for one watched service type.
type subscription struct {
	service   dnssd.ServiceType
	interval  time.Duration
	next      time.Time
	responded bool
}

// Browser issues continuous mDNS queries for a set of service types and
// maintains a live view of the responders answering them, reporting changes
// through an EventHandler.
//
// Browsers are built with a Builder and started with Run() or
// RunInBackground().
type Browser struct {
	subs       []*subscription
	config     transport.Config
	maxIgnored int
	clock      clock.Clock
	logger     logging.Logger
}

// Run browses until ctx is canceled or a fatal socket error occurs.
//
// It returns nil if the browser stopped because ctx was canceled.
func (b *Browser) Run(ctx context.Context, handler EventHandler) error {
	transports, err := transport.Open(b.config)
	if err != nil {
		return err
	}

	return b.run(ctx, transports, handler)
}

// RunInBackground starts the browser on its own goroutine.
//
// Socket setup errors are returned synchronously; the returned handle's
// Shutdown() method stops the browser and reports any fatal error that
// occurred while it ran.
func (b *Browser) RunInBackground(handler EventHandler) (*Handle, error) {
	transports, err := transport.Open(b.config)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())

	h := &Handle{
		cancel: cancel,
		done:   make(chan struct{}),
	}

	// The wrapper marks the window during which user code is on the worker's
	// stack, so that Shutdown() can avoid deadlocking when called from
	// inside the callback.
	wrapped := func(e Event) {
		atomic.StoreInt32(&h.inCallback, 1)
		defer atomic.StoreInt32(&h.inCallback, 0)
		handler(e)
	}

	go func() {
		defer close(h.done)
		h.err = b.run(ctx, transports, wrapped)
	}()

	return h, nil
}

// run drives the packet pumps and the worker until ctx is canceled.
func (b *Browser) run(
	ctx context.Context,
	transports []transport.Transport,
	handler EventHandler,
) error {
	g, ioCtx := errgroup.WithContext(context.Background())

	packets := make(chan *transport.InboundPacket)

	for _, t := range transports {
		t := t // capture loop variable
		g.Go(func() error {
			return transport.Pump(ioCtx, t, packets)
		})
	}

	g.Go(func() error {
		return b.browse(ctx, ioCtx, transports, packets, handler)
	})

	err := g.Wait()

	if errors.Is(err, context.Canceled) {
		return nil
	}

	return err
}

// browse is the browser's worker loop. All browser and tracker state is
// confined to this goroutine, and the event handler is invoked from it.
func (b *Browser) browse(
	ctx context.Context,
	ioCtx context.Context,
	transports []transport.Transport,
	packets <-chan *transport.InboundPacket,
	handler EventHandler,
) error {
	tr := newTracker(b.clock, handler, b.logger)

	now := b.clock.Now()
	for _, s := range b.subs {
		s.interval = initialQueryInterval
		s.next = now
	}

	timer := b.clock.Timer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case <-ioCtx.Done():
			return ioCtx.Err()

		case <-timer.C:
			b.tick(tr, transports)
			timer.Reset(b.wake(tr))

		case in := <-packets:
			b.intake(in, tr)
			resetTimer(timer, b.wake(tr))
		}
	}
}

// tick sends the queries that have come due and expires stale responders.
func (b *Browser) tick(tr *tracker, transports []transport.Transport) {
	now := b.clock.Now()

	for _, s := range b.subs {
		if s.next.After(now) {
			continue
		}

		b.query(s, tr, transports, now)
		tr.NoteQuery(s.service, b.maxIgnored)

		s.next = now.Add(s.interval)

		s.interval *= 2
		if s.interval > maxQueryInterval {
			s.interval = maxQueryInterval
		}
	}

	tr.Expire(now)
}

// query multicasts one PTR query for a subscription, listing the
// still-fresh tracked responders as known answers.
func (b *Browser) query(
	s *subscription,
	tr *tracker,
	transports []transport.Transport,
	now time.Time,
) {
	q := mdns.NewQuery(s.service.String(), dns.TypePTR)
	q.Answer = tr.KnownAnswers(s.service, now)

	for _, t := range transports {
		if _, err := transport.SendMulticast(t, 0, q); err != nil {
			logging.Debug(
				b.logger,
				"unable to send mDNS query via %s: %s",
				t.Group(),
				err,
			)
		}
	}
}

// intake merges an inbound packet into the tracker.
func (b *Browser) intake(in *transport.InboundPacket, tr *tracker) {
	defer in.Close()

	m, err := in.Message()
	if err != nil {
		logging.Debug(b.logger, "error parsing mDNS message: %s", err)
		return
	}

	if !m.Response {
		// Queries are a responder's concern.
		return
	}

	if err := mdns.ValidateResponse(m); err != nil {
		logging.Debug(b.logger, "ignoring mDNS response: %s", err)
		return
	}

	for _, s := range b.subs {
		if tr.Ingest(m, in.Source.Address, s.service) && !s.responded {
			// The first response for a type resets the continuous-query
			// backoff.
			s.responded = true
			s.interval = initialQueryInterval
			s.next = b.clock.Now().Add(s.interval)
		}
	}
}

// wake returns the delay until the next query or expiry deadline.
func (b *Browser) wake(tr *tracker) time.Duration {
	now := b.clock.Now()

	var next time.Time
	for _, s := range b.subs {
		if next.IsZero() || s.next.Before(next) {
			next = s.next
		}
	}

	if exp, ok := tr.NextExpiry(); ok && exp.Before(next) {
		next = exp
	}

	d := next.Sub(now)
	if d < 0 {
		return 0
	}

	return d
}

// resetTimer re-arms a timer that has not necessarily fired.
func resetTimer(t *clock.Timer, d time.Duration) {
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}

	t.Reset(d)
}
