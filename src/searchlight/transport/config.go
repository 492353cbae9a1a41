package transport

import (
	"errors"
	"fmt"
	"net"

	"github.com/dogmatiq/dodeca/logging"
)

// IPVersion selects the IP protocol families a transport set uses.
type IPVersion int

const (
	// IPv4Only uses IPv4 exclusively.
	IPv4Only IPVersion = iota + 1

	// IPv6Only uses IPv6 exclusively.
	IPv6Only

	// DualStack uses both IPv4 and IPv6.
	DualStack
)

// String returns a human-readable name for the IP version selector.
func (v IPVersion) String() string {
	switch v {
	case IPv4Only:
		return "IPv4"
	case IPv6Only:
		return "IPv6"
	case DualStack:
		return "IPv4+IPv6"
	default:
		return fmt.Sprintf("IPVersion(%d)", int(v))
	}
}

// Config is the socket configuration shared by the transports of one running
// instance.
type Config struct {
	// IPVersion selects the protocol families to open. DualStack when zero.
	IPVersion IPVersion

	// Interfaces are the network interfaces on which multicast groups are
	// joined. All up, multicast-capable, non-loopback interfaces when empty.
	Interfaces []net.Interface

	// Loopback enables delivery of this socket's own multicast packets back
	// to the local host. Off by default; tests turn it on.
	Loopback bool

	// Logger is the target for socket-level log messages.
	Logger logging.Logger
}

// Open returns one listening transport per protocol family requested by cfg.
func Open(cfg Config) ([]Transport, error) {
	if cfg.IPVersion == 0 {
		cfg.IPVersion = DualStack
	}

	if cfg.Logger == nil {
		cfg.Logger = logging.DefaultLogger
	}

	ifaces := cfg.Interfaces
	if len(ifaces) == 0 {
		var err error
		ifaces, err = MulticastInterfaces()
		if err != nil {
			return nil, err
		}
	}

	var transports []Transport

	if cfg.IPVersion == IPv4Only || cfg.IPVersion == DualStack {
		transports = append(transports, &IPv4Transport{
			Interfaces: ifaces,
			Loopback:   cfg.Loopback,
			Logger:     cfg.Logger,
		})
	}

	if cfg.IPVersion == IPv6Only || cfg.IPVersion == DualStack {
		transports = append(transports, &IPv6Transport{
			Interfaces: ifaces,
			Loopback:   cfg.Loopback,
			Logger:     cfg.Logger,
		})
	}

	for i, t := range transports {
		if err := t.Listen(); err != nil {
			for _, l := range transports[:i] {
				_ = l.Close()
			}
			return nil, err
		}
	}

	return transports, nil
}

// MulticastInterfaces returns the list of network interfaces that are enabled
// and support multicast, excluding loopback interfaces.
func MulticastInterfaces() ([]net.Interface, error) {
	candidates, err := net.Interfaces()
	if err != nil {
		return nil, err
	}

	var matches []net.Interface
	const flags = net.FlagUp | net.FlagMulticast

	for _, i := range candidates {
		if (i.Flags&flags) == flags && i.Flags&net.FlagLoopback == 0 {
			matches = append(matches, i)
		}
	}

	if len(matches) == 0 {
		return nil, errors.New("no multicast interfaces available")
	}

	return matches, nil
}
