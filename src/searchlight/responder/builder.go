package responder

import (
	"fmt"
	"net"
	"time"

	"github.com/dogmatiq/dodeca/logging"
	"github.com/jmalloc/searchlight/src/searchlight/dnssd"
	"github.com/jmalloc/searchlight/src/searchlight/transport"
)

// Builder accumulates the configuration of a Responder.
type Builder struct {
	services  []*dnssd.Instance
	ifaces    []net.Interface
	ipVersion transport.IPVersion
	loopback  bool
	probe     bool
	ttl       time.Duration
	logger    logging.Logger
}

// NewBuilder returns a builder for a new Responder.
func NewBuilder() *Builder {
	return &Builder{}
}

// AddService registers a service instance to announce and answer for.
func (b *Builder) AddService(i *dnssd.Instance) *Builder {
	b.services = append(b.services, i)
	return b
}

// Loopback controls whether this responder's multicast packets are delivered
// back to the local host. Off by default; tests turn it on.
func (b *Builder) Loopback(enabled bool) *Builder {
	b.loopback = enabled
	return b
}

// Interfaces sets the network interfaces to announce on. All up,
// multicast-capable, non-loopback interfaces are used if never called.
func (b *Builder) Interfaces(ifaces []net.Interface) *Builder {
	b.ifaces = ifaces
	return b
}

// IPVersion selects the protocol families to announce on. Defaults to
// transport.DualStack.
func (b *Builder) IPVersion(v transport.IPVersion) *Builder {
	b.ipVersion = v
	return b
}

// TTL sets the record TTL applied to registrations that did not set their
// own. Defaults to 120 seconds.
func (b *Builder) TTL(seconds uint32) *Builder {
	b.ttl = time.Duration(seconds) * time.Second
	return b
}

// Probe enables RFC 6762 §8.1 probing: before announcing, the responder
// queries for its own names and fails startup with a NameConflictError if
// another responder answers.
//
// Probing is off by default; on a trusted LAN it is not required for
// correctness.
func (b *Builder) Probe(enabled bool) *Builder {
	b.probe = enabled
	return b
}

// Logger sets the target for the responder's log messages.
func (b *Builder) Logger(l logging.Logger) *Builder {
	b.logger = l
	return b
}

// Build validates the accumulated configuration and returns a runnable
// Responder.
func (b *Builder) Build() (*Responder, error) {
	if len(b.services) == 0 {
		return nil, fmt.Errorf("at least one service must be registered")
	}

	logger := b.logger
	if logger == nil {
		logger = logging.DefaultLogger
	}

	r := &Responder{
		instances: map[dnssd.ServiceType]map[string]*dnssd.Instance{},
		config: transport.Config{
			IPVersion:  b.ipVersion,
			Interfaces: b.ifaces,
			Loopback:   b.loopback,
			Logger:     logger,
		},
		probe:  b.probe,
		logger: logger,
	}

	for _, i := range b.services {
		if err := i.Validate(); err != nil {
			return nil, err
		}

		if i.TTL == 0 && b.ttl != 0 {
			dup := *i
			dup.TTL = b.ttl
			i = &dup
		}

		byName := r.instances[i.Service]
		if byName == nil {
			byName = map[string]*dnssd.Instance{}
			r.instances[i.Service] = byName
		}

		if _, ok := byName[i.Name]; ok {
			return nil, fmt.Errorf(
				"duplicate registration of '%s'",
				i.FQDN(),
			)
		}

		byName[i.Name] = i
		r.order = append(r.order, i)
	}

	return r, nil
}
