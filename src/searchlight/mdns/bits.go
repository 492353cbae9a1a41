package mdns

import "github.com/miekg/dns"

// classTopBit is the high bit of the class field.
//
// In questions it is the unicast-response bit; in resource records it is the
// cache-flush bit.
const classTopBit = 1 << 15

// WantsUnicastResponse returns true if the given question requested a unicast
// response.
//
// It returns a copy of the question with the "unicast response bit" cleared,
// to reflect the actual question class.
//
// See https://tools.ietf.org/html/rfc6762#section-18.12.
func WantsUnicastResponse(q dns.Question) (bool, dns.Question) {
	// In the Question Section of a Multicast DNS query, the top bit of the
	// qclass field is used to indicate that unicast responses are preferred
	// for this particular question.  (See Section 5.4.)
	u := q.Qclass & classTopBit // read top-bit
	q.Qclass &^= classTopBit    // clear top-bit

	return u != 0, q
}

// SetUnicastResponse returns a copy of q with the "unicast response bit" set.
func SetUnicastResponse(q dns.Question) dns.Question {
	q.Qclass |= classTopBit
	return q
}

// IsCacheFlush returns true if the given RR carries the "cache flush bit".
//
// It returns a copy of the RR with the bit cleared, to reflect the actual
// record class.
//
// See https://tools.ietf.org/html/rfc6762#section-10.2 and
// https://tools.ietf.org/html/rfc6762#section-18.13.
func IsCacheFlush(r dns.RR) (bool, dns.RR) {
	if r.Header().Class&classTopBit == 0 {
		return false, r
	}

	r = dns.Copy(r)
	r.Header().Class &^= classTopBit
	return true, r
}

// SetCacheFlush returns a copy of r with the "cache flush bit" set.
//
// In the Resource Record Sections of a Multicast DNS response, the top
// bit of the rrclass field is used to indicate that the record is a
// member of a unique RRSet, and the entire RRSet has been sent together
// (in the same packet, or in consecutive packets if there are too many
// records to fit in a single packet).  (See Section 10.2.)
func SetCacheFlush(r dns.RR) dns.RR {
	r = dns.Copy(r)
	r.Header().Class |= classTopBit
	return r
}
