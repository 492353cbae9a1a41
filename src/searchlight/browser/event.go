package browser

import (
	"net"
	"time"

	"github.com/jmalloc/searchlight/src/searchlight/dnssd"
	"github.com/miekg/dns"
)

// Responder is a snapshot of one discovered service instance: the logical
// "thing" behind a stream of mDNS responses.
//
// Snapshots are immutable; each event carries a fresh one.
type Responder struct {
	// Service is the service type the responder was discovered under.
	Service dnssd.ServiceType

	// Instance is the instance name, unique within the service type.
	Instance string

	// Addr is the source address of the most recent response. It is not part
	// of the responder's identity; a responder may legitimately change
	// address.
	Addr *net.UDPAddr

	// Host is the target hostname from the responder's SRV record, if one
	// has been observed.
	Host string

	// Port is the port from the responder's SRV record.
	Port uint16

	// Priority and Weight are the corresponding SRV fields.
	Priority uint16
	Weight   uint16

	// Addresses are the A/AAAA addresses most recently advertised for Host.
	Addresses []net.IP

	// Text contains the strings of the responder's TXT record, in order.
	Text []string

	// FirstSeen and LastSeen are the times at which the responder was first
	// and most recently observed.
	FirstSeen time.Time
	LastSeen  time.Time

	// Expiry is the deadline at which the responder is considered lost
	// unless a refreshing response arrives first.
	Expiry time.Time

	// LastResponse is the most recent full response message received from
	// the responder.
	LastResponse *dns.Msg
}

// FQDN returns the responder's fully-qualified instance name.
func (r *Responder) FQDN() string {
	return dnssd.InstanceFQDN(r.Instance, r.Service)
}

// Event is a lifecycle notification about a discovered responder.
//
// For any one responder, events are totally ordered: a Found precedes any
// Updated, which precede the Lost. A Lost is terminal; if the responder
// reappears a fresh Found is emitted.
type Event interface {
	isEvent()
}

// Found is emitted when a responder is observed for the first time, or
// reappears after having been lost.
type Found struct {
	Responder *Responder
}

// Updated is emitted when an already-present responder's advertised records
// materially change: SRV target, port, priority or weight, TXT strings, or
// address membership. A refresh that changes nothing emits no event.
type Updated struct {
	Responder *Responder
	Previous  *Responder
}

// Lost is emitted when a responder's records expire, or immediately when a
// goodbye (TTL=0) record is received.
type Lost struct {
	Responder *Responder
}

func (Found) isEvent()   {}
func (Updated) isEvent() {}
func (Lost) isEvent()    {}

// EventHandler is the callback through which all events are delivered.
//
// It is invoked synchronously on the browser's worker; events for one
// browser are delivered one at a time, in order. The handler must not block
// indefinitely. It may call Shutdown() on the browser's handle.
type EventHandler func(Event)
