package browser

import (
	"fmt"
	"net"

	"github.com/benbjohnson/clock"
	"github.com/dogmatiq/dodeca/logging"
	"github.com/jmalloc/searchlight/src/searchlight/dnssd"
	"github.com/jmalloc/searchlight/src/searchlight/transport"
)

// Builder accumulates the configuration of a Browser.
type Builder struct {
	services  []string
	ifaces    []net.Interface
	ipVersion transport.IPVersion
	loopback  bool
	ignored   uint
	clock     clock.Clock
	logger    logging.Logger
}

// NewBuilder returns a builder for a new Browser.
func NewBuilder() *Builder {
	return &Builder{}
}

// Service adds a service type to watch, such as "_http._tcp.local.".
// At least one is required.
func (b *Builder) Service(serviceType string) *Builder {
	b.services = append(b.services, serviceType)
	return b
}

// Loopback controls whether this browser's multicast packets are delivered
// back to the local host. Off by default; tests turn it on.
func (b *Builder) Loopback(enabled bool) *Builder {
	b.loopback = enabled
	return b
}

// Interfaces sets the network interfaces to browse on. All up,
// multicast-capable, non-loopback interfaces are used if never called.
func (b *Builder) Interfaces(ifaces []net.Interface) *Builder {
	b.ifaces = ifaces
	return b
}

// IPVersion selects the protocol families to browse on. Defaults to
// transport.DualStack.
func (b *Builder) IPVersion(v transport.IPVersion) *Builder {
	b.ipVersion = v
	return b
}

// MaxIgnoredPackets drops a responder that stays silent across more than n
// query rounds, without waiting for its TTL to run out. Zero (the default)
// leaves expiry purely TTL-driven.
func (b *Builder) MaxIgnoredPackets(n uint) *Builder {
	b.ignored = n
	return b
}

// Logger sets the target for the browser's log messages.
func (b *Builder) Logger(l logging.Logger) *Builder {
	b.logger = l
	return b
}

// withClock substitutes the clock that drives query scheduling and expiry.
// Tests use it to avoid sleeping.
func (b *Builder) withClock(c clock.Clock) *Builder {
	b.clock = c
	return b
}

// Build validates the accumulated configuration and returns a runnable
// Browser.
func (b *Builder) Build() (*Browser, error) {
	if len(b.services) == 0 {
		return nil, fmt.Errorf("at least one service type must be watched")
	}

	logger := b.logger
	if logger == nil {
		logger = logging.DefaultLogger
	}

	c := b.clock
	if c == nil {
		c = clock.New()
	}

	br := &Browser{
		config: transport.Config{
			IPVersion:  b.ipVersion,
			Interfaces: b.ifaces,
			Loopback:   b.loopback,
			Logger:     logger,
		},
		maxIgnored: int(b.ignored),
		clock:      c,
		logger:     logger,
	}

	seen := map[dnssd.ServiceType]bool{}

	for _, s := range b.services {
		t, err := dnssd.ParseServiceType(s)
		if err != nil {
			return nil, err
		}

		if seen[t] {
			return nil, fmt.Errorf("duplicate subscription to '%s'", t)
		}
		seen[t] = true

		br.subs = append(br.subs, &subscription{service: t})
	}

	return br, nil
}
