package dnssd

import (
	"fmt"
	"strings"

	"github.com/miekg/dns"
)

// TypeEnumerationDomain is the meta-query name used to enumerate the service
// types available on the local link.
//
// See https://tools.ietf.org/html/rfc6763#section-9.
const TypeEnumerationDomain = "_services._dns-sd._udp.local."

// ServiceType is a DNS-SD service type, such as "_http._tcp.local.".
//
// Values produced by ParseServiceType are canonical: lower-case, with a
// trailing dot.
type ServiceType string

// ParseServiceType canonicalizes and validates a DNS-SD service type.
func ParseServiceType(s string) (ServiceType, error) {
	t := strings.ToLower(s)

	if !strings.HasSuffix(t, ".") {
		t += "."
	}

	if err := ServiceType(t).Validate(); err != nil {
		return "", err
	}

	return ServiceType(t), nil
}

// MustParseServiceType canonicalizes and validates a DNS-SD service type,
// panicking if it is malformed.
func MustParseServiceType(s string) ServiceType {
	t, err := ParseServiceType(s)
	if err != nil {
		panic(err)
	}

	return t
}

// Validate returns an error if the service type is malformed.
func (t ServiceType) Validate() error {
	s := string(t)

	if s == "" {
		return fmt.Errorf("service type must not be empty")
	}

	if s[0] != '_' {
		return fmt.Errorf("service type '%s' is invalid, expected leading underscore", s)
	}

	if !strings.HasSuffix(s, "._tcp.local.") &&
		!strings.HasSuffix(s, "._udp.local.") {
		return fmt.Errorf("service type '%s' is invalid, expected '._tcp.local.' or '._udp.local.' suffix", s)
	}

	if _, ok := dns.IsDomainName(s); !ok || len(s) > 255 {
		return fmt.Errorf("service type '%s' is not a valid DNS name", s)
	}

	return nil
}

// String returns the canonical string representation of the service type.
func (t ServiceType) String() string {
	return string(t)
}
