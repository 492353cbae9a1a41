package responder

import (
	"context"
	"errors"
	"time"

	"github.com/dogmatiq/dodeca/logging"
	"github.com/jmalloc/searchlight/src/searchlight/dnssd"
	"github.com/jmalloc/searchlight/src/searchlight/mdns"
	"github.com/jmalloc/searchlight/src/searchlight/transport"
	"github.com/miekg/dns"
	"golang.org/x/sync/errgroup"
)

const (
	// announceCount is the number of unsolicited announcements sent at
	// startup, and the number of goodbye packets sent at shutdown.
	//
	// See https://tools.ietf.org/html/rfc6762#section-8.3.
	announceCount = 2

	// announceInterval is the delay between successive announcements.
	announceInterval = 1 * time.Second
)

// Responder announces registered service instances and answers mDNS queries
// for them.
//
// Responders are built with a Builder and started with Run() or
// RunInBackground().
type Responder struct {
	instances map[dnssd.ServiceType]map[string]*dnssd.Instance
	order     []*dnssd.Instance
	config    transport.Config
	probe     bool
	logger    logging.Logger
}

// Run answers mDNS queries until ctx is canceled or a fatal socket error
// occurs.
//
// Goodbye packets for all registered services are sent before it returns.
// It returns nil if the responder stopped because ctx was canceled.
func (r *Responder) Run(ctx context.Context) error {
	transports, err := transport.Open(r.config)
	if err != nil {
		return err
	}

	return r.run(ctx, transports)
}

// RunInBackground starts the responder on its own goroutine.
//
// Socket setup errors are returned synchronously; the returned handle's
// Shutdown() method stops the responder and reports any fatal error that
// occurred while it ran.
func (r *Responder) RunInBackground() (*Handle, error) {
	transports, err := transport.Open(r.config)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())

	h := &Handle{
		cancel: cancel,
		done:   make(chan struct{}),
	}

	go func() {
		defer close(h.done)
		h.err = r.run(ctx, transports)
	}()

	return h, nil
}

// run drives the packet pumps and the worker until ctx is canceled.
func (r *Responder) run(
	ctx context.Context,
	transports []transport.Transport,
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
		return r.serve(ctx, ioCtx, transports, packets)
	})

	err := g.Wait()

	if errors.Is(err, context.Canceled) {
		return nil
	}

	return err
}

// serve is the responder's worker loop. All responder state is confined to
// this goroutine.
func (r *Responder) serve(
	ctx context.Context,
	ioCtx context.Context,
	transports []transport.Transport,
	packets <-chan *transport.InboundPacket,
) error {
	if r.probe {
		if err := r.probeNames(ctx, transports, packets); err != nil {
			return err
		}
	}

	announcesLeft := announceCount
	announce := time.NewTimer(0)
	defer announce.Stop()

	for {
		select {
		case <-ctx.Done():
			r.goodbye(transports)
			return ctx.Err()

		case <-ioCtx.Done():
			return ioCtx.Err()

		case <-announce.C:
			r.announce(transports)

			announcesLeft--
			if announcesLeft > 0 {
				announce.Reset(announceInterval)
			}

		case in := <-packets:
			r.handle(in)
		}
	}
}

// handle handles a DNS message in a UDP packet.
func (r *Responder) handle(in *transport.InboundPacket) {
	defer in.Close()

	m, err := in.Message()
	if err != nil {
		logging.Debug(r.logger, "error parsing mDNS message: %s", err)
		return
	}

	if m.Truncated {
		// https://tools.ietf.org/html/rfc6762#section-18.5
		//
		// In query messages, if the TC bit is set, it means that additional
		// Known-Answer records may be following shortly. We attempt to serve
		// the request anyway, without waiting for those records.
		logging.Debug(r.logger, "received mDNS message with non-zero TC flag")
	}

	if m.Response {
		// Responses are the browser's concern. A full conflict-defense
		// implementation would examine them; see
		// https://tools.ietf.org/html/rfc6762#section-9.
		return
	}

	if err := r.answerQuery(in, m); err != nil {
		logging.Log(r.logger, "error answering mDNS query: %s", err)
	}
}

// answerQuery builds and sends the response(s) to a single query message.
func (r *Responder) answerQuery(in *transport.InboundPacket, query *dns.Msg) error {
	if err := mdns.ValidateQuery(query); err != nil {
		return err
	}

	var (
		legacy = in.Source.IsLegacy()
		uRes   = mdns.NewResponse(query, true)
		mRes   = mdns.NewResponse(query, false)
	)

	known := query.Answer

	for _, rawQ := range query.Question {
		unicast, q := mdns.WantsUnicastResponse(rawQ)

		a := r.answerQuestion(q, known)

		if unicast || legacy {
			a.appendToMessage(uRes)
		} else {
			a.appendToMessage(mRes)
		}
	}

	if _, err := transport.SendUnicastResponse(in, uRes); err != nil {
		return err
	}

	_, err := transport.SendMulticastResponse(in, mRes)
	return err
}
