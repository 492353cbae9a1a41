package dnssd

import (
	"errors"
	"net"
	"strings"
	"time"

	"github.com/miekg/dns"
)

// DefaultTTL is the default TTL for all DNS-SD records.
const DefaultTTL = 120 * time.Second

// Instance is a single advertisement of a DNS-SD service: the registration a
// responder holds for one (service type, instance name) pair.
//
// Instances are immutable once built; use ServiceBuilder to construct them.
type Instance struct {
	// Service is the canonical service type, such as "_http._tcp.local.".
	Service ServiceType

	// Name is the instance name, unique within the service type.
	Name string

	// TargetHost is the fully-qualified hostname named in the instance's SRV
	// record. Defaults to "<name>.local." when built without an explicit
	// hostname.
	TargetHost string

	// TargetPort is the TCP/UDP port that the service instance listens on.
	TargetPort uint16

	// Addresses are the A/AAAA addresses advertised for TargetHost.
	Addresses []net.IP

	// Text contains the strings of the instance's TXT record, in order.
	// See https://tools.ietf.org/html/rfc6763#section-6.3.
	Text []string

	// TTL is the TTL of the instance's DNS records.
	TTL time.Duration
}

// FQDN returns the fully-qualified instance name, such as
// "Living Room._http._tcp.local.".
func (i *Instance) FQDN() string {
	return InstanceFQDN(i.Name, i.Service)
}

// PTR returns the instance's PTR record.
func (i *Instance) PTR() *dns.PTR {
	return &dns.PTR{
		Hdr: dns.RR_Header{
			Name:   i.Service.String(),
			Rrtype: dns.TypePTR,
			Class:  dns.ClassINET,
			Ttl:    i.TTLInSeconds(),
		},
		Ptr: i.FQDN(),
	}
}

// SRV returns the instance's SRV record.
func (i *Instance) SRV() *dns.SRV {
	return &dns.SRV{
		Hdr: dns.RR_Header{
			Name:   i.FQDN(),
			Rrtype: dns.TypeSRV,
			Class:  dns.ClassINET,
			Ttl:    i.TTLInSeconds(),
		},
		Target: i.TargetHost,
		Port:   i.TargetPort,
	}
}

// TXT returns the instance's TXT record.
func (i *Instance) TXT() *dns.TXT {
	return &dns.TXT{
		Hdr: dns.RR_Header{
			Name:   i.FQDN(),
			Rrtype: dns.TypeTXT,
			Class:  dns.ClassINET,
			Ttl:    i.TTLInSeconds(),
		},
		Txt: append([]string(nil), i.Text...),
	}
}

// A returns the instance's A record for the given address.
// It panics if ip is not an IPv4 address.
func (i *Instance) A(ip net.IP) *dns.A {
	v4 := ip.To4()
	if v4 == nil {
		panic("not an IPv4 address: " + ip.String())
	}

	return &dns.A{
		Hdr: dns.RR_Header{
			Name:   i.TargetHost,
			Rrtype: dns.TypeA,
			Class:  dns.ClassINET,
			Ttl:    i.TTLInSeconds(),
		},
		A: v4,
	}
}

// AAAA returns the instance's AAAA record for the given address.
func (i *Instance) AAAA(ip net.IP) *dns.AAAA {
	return &dns.AAAA{
		Hdr: dns.RR_Header{
			Name:   i.TargetHost,
			Rrtype: dns.TypeAAAA,
			Class:  dns.ClassINET,
			Ttl:    i.TTLInSeconds(),
		},
		AAAA: ip.To16(),
	}
}

// AddressRecords returns the instance's A and AAAA records, one per address.
func (i *Instance) AddressRecords() []dns.RR {
	records := make([]dns.RR, 0, len(i.Addresses))

	for _, ip := range i.Addresses {
		if ip.To4() != nil {
			records = append(records, i.A(ip))
		} else {
			records = append(records, i.AAAA(ip))
		}
	}

	return records
}

// Records returns the instance's full linked record set, in
// PTR, SRV, TXT, A/AAAA order.
func (i *Instance) Records() []dns.RR {
	records := []dns.RR{
		i.PTR(),
		i.SRV(),
		i.TXT(),
	}

	return append(records, i.AddressRecords()...)
}

// GoodbyeRecords returns the instance's record set with all TTLs set to zero,
// telling peers that the instance is going away.
//
// See https://tools.ietf.org/html/rfc6762#section-10.1.
func (i *Instance) GoodbyeRecords() []dns.RR {
	records := i.Records()

	for _, r := range records {
		r.Header().Ttl = 0
	}

	return records
}

// TTLInSeconds returns the instance's DNS record TTL in seconds.
// If i.TTL is 0, it uses DefaultTTL.
func (i *Instance) TTLInSeconds() uint32 {
	ttl := i.TTL
	if ttl == 0 {
		ttl = DefaultTTL
	}

	return uint32(ttl.Seconds())
}

// Validate returns an error if the instance is configured incorrectly.
func (i *Instance) Validate() error {
	if err := i.Service.Validate(); err != nil {
		return err
	}

	if i.Name == "" {
		return errors.New("instance name must not be empty")
	}

	if _, ok := dns.IsDomainName(i.FQDN()); !ok {
		return errors.New("instance name '" + i.Name + "' does not form a valid DNS name")
	}

	if _, ok := dns.IsDomainName(i.TargetHost); !ok || !strings.HasSuffix(i.TargetHost, ".") {
		return errors.New("target host '" + i.TargetHost + "' is not a fully-qualified DNS name")
	}

	if i.TargetPort == 0 {
		return errors.New("target port must not be zero")
	}

	if len(i.Addresses) == 0 {
		return errors.New("at least one address must be advertised")
	}

	for _, s := range i.Text {
		if len(s) > TextMaxLen {
			return errors.New("TXT string exceeds 255 octets")
		}
	}

	return nil
}

// InstanceFQDN returns the fully-qualified name of the instance n of service
// type t.
func InstanceFQDN(n string, t ServiceType) string {
	return n + "." + t.String()
}

// SplitInstance extracts the instance name from a fully-qualified instance
// name, such as the target of a service type's PTR record or the owner name
// of an SRV record.
//
// It returns false if fqdn is not a name under the given service type.
func SplitInstance(fqdn string, t ServiceType) (string, bool) {
	suffix := "." + t.String()

	if !strings.HasSuffix(strings.ToLower(fqdn), suffix) {
		return "", false
	}

	n := fqdn[:len(fqdn)-len(suffix)]
	if n == "" {
		return "", false
	}

	return n, true
}
