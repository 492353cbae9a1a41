package dnssd

import (
	"fmt"
	"net"
	"time"
)

// TextMaxLen is the maximum encoded length of a single TXT record string.
//
// See https://tools.ietf.org/html/rfc6763#section-6.1.
const TextMaxLen = 255

// ServiceBuilder accumulates the configuration of a service instance.
//
// The zero-value is not valid; use NewServiceBuilder().
type ServiceBuilder struct {
	serviceType string
	inst        Instance
	hostSet     bool
}

// NewServiceBuilder returns a builder for an advertisement of the given
// service type, instance name and port.
func NewServiceBuilder(serviceType, instance string, port uint16) *ServiceBuilder {
	return &ServiceBuilder{
		serviceType: serviceType,
		inst: Instance{
			Name:       instance,
			TargetPort: port,
		},
	}
}

// AddIPAddress adds an address to advertise via an A or AAAA record.
func (b *ServiceBuilder) AddIPAddress(ip net.IP) *ServiceBuilder {
	b.inst.Addresses = append(b.inst.Addresses, ip)
	return b
}

// AddText appends a string to the instance's TXT record.
//
// Strings longer than 255 octets cause Build() to fail; use
// AddTextTruncated() to truncate instead.
func (b *ServiceBuilder) AddText(s string) *ServiceBuilder {
	b.inst.Text = append(b.inst.Text, s)
	return b
}

// AddTextTruncated appends a string to the instance's TXT record, silently
// truncating it to 255 octets.
func (b *ServiceBuilder) AddTextTruncated(s string) *ServiceBuilder {
	if len(s) > TextMaxLen {
		s = s[:TextMaxLen]
	}

	return b.AddText(s)
}

// Hostname sets the fully-qualified hostname named in the instance's SRV
// record. It defaults to "<instance>.local." if never called.
func (b *ServiceBuilder) Hostname(h string) *ServiceBuilder {
	b.inst.TargetHost = h
	b.hostSet = true
	return b
}

// TTL sets the TTL of the instance's DNS records.
func (b *ServiceBuilder) TTL(d time.Duration) *ServiceBuilder {
	b.inst.TTL = d
	return b
}

// Build validates the accumulated configuration and returns the immutable
// service instance.
func (b *ServiceBuilder) Build() (*Instance, error) {
	t, err := ParseServiceType(b.serviceType)
	if err != nil {
		return nil, err
	}

	inst := b.inst
	inst.Service = t
	inst.Addresses = append([]net.IP(nil), b.inst.Addresses...)
	inst.Text = append([]string(nil), b.inst.Text...)

	if !b.hostSet {
		inst.TargetHost = inst.Name + ".local."
	}

	for _, s := range inst.Text {
		if len(s) > TextMaxLen {
			return nil, fmt.Errorf(
				"TXT string '%.16s...' exceeds %d octets",
				s,
				TextMaxLen,
			)
		}
	}

	if err := inst.Validate(); err != nil {
		return nil, err
	}

	return &inst, nil
}
