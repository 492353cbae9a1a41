package transport

import (
	"net"
	"time"

	"github.com/dogmatiq/dodeca/logging"

	ipvx "golang.org/x/net/ipv4"
)

// multicastTTL is the TTL required on outgoing mDNS packets.
//
// See https://tools.ietf.org/html/rfc6762#section-11.
const multicastTTL = 255

// IPv4Transport is an IPv4-based UDP transport.
type IPv4Transport struct {
	Interfaces []net.Interface
	Loopback   bool
	Logger     logging.Logger

	pc *ipvx.PacketConn
}

// Listen starts listening for UDP packets on the transport's interfaces.
func (t *IPv4Transport) Listen() error {
	// ListenMulticastUDP binds with address reuse (and port reuse, where the
	// platform supports it) so that this responder can coexist with the host
	// OS's own mDNS stack.
	conn, err := net.ListenMulticastUDP("udp4", nil, IPv4GroupAddress)
	if err != nil {
		logListenError(t.Logger, IPv4GroupAddress, err)
		return &Error{Op: "bind " + IPv4GroupAddress.String(), Err: err}
	}

	t.pc = ipvx.NewPacketConn(conn)

	if err := t.pc.SetControlMessage(ipvx.FlagInterface, true); err != nil {
		t.pc.Close()
		logListenError(t.Logger, IPv4GroupAddress, err)
		return &Error{Op: "set control message", Err: err}
	}

	joined, err := joinGroup(
		t.pc,
		IPv4Group,
		t.Interfaces,
		t.Logger,
	)
	if err != nil {
		t.pc.Close()
		return err
	}

	if err := t.pc.SetMulticastTTL(multicastTTL); err != nil {
		t.pc.Close()
		return &Error{Op: "set multicast TTL", Err: err}
	}

	if err := t.pc.SetMulticastLoopback(t.Loopback); err != nil {
		t.pc.Close()
		return &Error{Op: "set multicast loopback", Err: err}
	}

	for _, i := range joined {
		logListening(t.Logger, IPv4GroupAddress, &i)
	}

	return nil
}

// Read reads the next packet from the transport.
func (t *IPv4Transport) Read() (*InboundPacket, error) {
	buf := getBuffer()

	n, cm, src, err := t.pc.ReadFrom(buf)
	if err != nil {
		putBuffer(buf)
		logReadError(t.Logger, t.Group(), err)
		return nil, err
	}

	ifaceIndex := 0
	if cm != nil {
		ifaceIndex = cm.IfIndex
	}

	buf = buf[:n]

	return &InboundPacket{
		t,
		Endpoint{
			ifaceIndex,
			src.(*net.UDPAddr),
		},
		buf,
	}, nil
}

// Write sends a packet via the transport.
//
// A transient send failure is retried once after a short yield.
func (t *IPv4Transport) Write(p *OutboundPacket) error {
	cm := &ipvx.ControlMessage{
		IfIndex: p.Destination.InterfaceIndex,
	}

	if _, err := t.pc.WriteTo(p.Data, cm, p.Destination.Address); err != nil {
		time.Sleep(writeRetryDelay)

		if _, err := t.pc.WriteTo(p.Data, cm, p.Destination.Address); err != nil {
			logWriteError(t.Logger, p.Destination.Address, t.Group(), err)
			return err
		}
	}

	return nil
}

// Group returns the multicast group address for this transport.
func (t *IPv4Transport) Group() *net.UDPAddr {
	return IPv4GroupAddress
}

// Close closes the transport, preventing further reads and writes.
func (t *IPv4Transport) Close() error {
	return t.pc.Close()
}
