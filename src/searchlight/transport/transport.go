package transport

import (
	"net"
	"time"

	"github.com/miekg/dns"
)

// Port is the mDNS port number.
const Port = 5353

var (
	// IPv4Group is the multicast group used for mDNS over IPv4.
	//
	// See https://tools.ietf.org/html/rfc6762#section-3.
	IPv4Group = net.ParseIP("224.0.0.251")

	// IPv4GroupAddress is the address to which mDNS messages are sent when
	// using IPv4.
	IPv4GroupAddress = &net.UDPAddr{IP: IPv4Group, Port: Port}

	// IPv6Group is the multicast group used for mDNS over IPv6.
	//
	// See https://tools.ietf.org/html/rfc6762#section-3.
	IPv6Group = net.ParseIP("ff02::fb")

	// IPv6GroupAddress is the address to which mDNS messages are sent when
	// using IPv6.
	IPv6GroupAddress = &net.UDPAddr{IP: IPv6Group, Port: Port}
)

// writeRetryDelay is how long a transport yields before retrying a failed
// send. A send that fails twice is dropped.
const writeRetryDelay = 1 * time.Millisecond

// Transport is an interface for communicating via UDP.
type Transport interface {
	// Listen starts listening for UDP packets on the transport's interfaces.
	Listen() error

	// Read reads the next packet from the transport.
	Read() (*InboundPacket, error)

	// Write sends a packet via the transport.
	Write(*OutboundPacket) error

	// Group returns the multicast group address for this transport.
	Group() *net.UDPAddr

	// Close closes the transport, preventing further reads and writes.
	Close() error
}

// Send sends a DNS message via t to the given destination address.
func Send(t Transport, ifaceIndex int, to *net.UDPAddr, m *dns.Msg) (bool, error) {
	if len(m.Question) == 0 &&
		len(m.Answer) == 0 &&
		len(m.Ns) == 0 &&
		len(m.Extra) == 0 {
		return false, nil
	}

	out, err := NewOutboundPacket(
		Endpoint{
			InterfaceIndex: ifaceIndex,
			Address:        to,
		},
		m,
	)
	if err != nil {
		return false, err
	}
	defer out.Close()

	return true, t.Write(out)
}

// SendMulticast sends a DNS message to the transport's multicast group.
//
// If ifaceIndex is zero the message is sent via the system's default
// multicast interface.
func SendMulticast(t Transport, ifaceIndex int, m *dns.Msg) (bool, error) {
	return Send(t, ifaceIndex, t.Group(), m)
}

// SendUnicastResponse sends a DNS message as a unicast response to an inbound
// packet.
func SendUnicastResponse(in *InboundPacket, m *dns.Msg) (bool, error) {
	return Send(in.Transport, in.Source.InterfaceIndex, in.Source.Address, m)
}

// SendMulticastResponse sends a DNS message as a multicast response to an
// inbound packet.
func SendMulticastResponse(in *InboundPacket, m *dns.Msg) (bool, error) {
	return Send(in.Transport, in.Source.InterfaceIndex, in.Transport.Group(), m)
}
