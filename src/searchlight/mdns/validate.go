package mdns

import (
	"errors"

	"github.com/miekg/dns"
)

// ValidateQuery returns an error if m is not a valid mDNS query.
func ValidateQuery(m *dns.Msg) error {
	if m.Response {
		panic("DNS message is a response")
	}

	// https://tools.ietf.org/html/rfc6762#section-18.3
	//
	// "In both multicast query and multicast response messages, the OPCODE MUST
	// be zero on transmission (only standard queries are currently supported
	// over multicast).  Multicast DNS messages received with an OPCODE other
	// than zero MUST be silently ignored."  Note: OpcodeQuery == 0
	if m.Opcode != dns.OpcodeQuery {
		return errors.New("OPCODE must be zero (query) in mDNS queries")
	}

	// https://tools.ietf.org/html/rfc6762#section-18.11
	//
	// "In both multicast query and multicast response messages, the Response
	// Code MUST be zero on transmission.  Multicast DNS messages received with
	// non-zero Response Codes MUST be silently ignored."
	if m.Rcode != 0 {
		return errors.New("RCODE must be zero in mDNS queries")
	}

	return nil
}

// ValidateResponse returns an error if m is not a valid mDNS response.
func ValidateResponse(m *dns.Msg) error {
	if !m.Response {
		panic("DNS message is a query")
	}

	if m.Opcode != dns.OpcodeQuery {
		return errors.New("OPCODE must be zero (query) in mDNS responses")
	}

	if m.Rcode != 0 {
		return errors.New("RCODE must be zero in mDNS responses")
	}

	return nil
}
