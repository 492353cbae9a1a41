package responder

import (
	"strings"

	"github.com/jmalloc/searchlight/src/searchlight/dnssd"
	"github.com/jmalloc/searchlight/src/searchlight/mdns"
	"github.com/miekg/dns"
)

// answer accumulates the records produced for a single question.
type answer struct {
	Answer     []dns.RR
	Additional []dns.RR
}

// appendToMessage appends the answer's records to m.
func (a *answer) appendToMessage(m *dns.Msg) {
	m.Answer = append(m.Answer, a.Answer...)
	m.Extra = append(m.Extra, a.Additional...)
}

// answerQuestion matches a single question against the registered services
// and assembles the records to send.
//
// Records equivalent to entries of the query's known-answer section are
// suppressed; see https://tools.ietf.org/html/rfc6762#section-7.1.
func (r *Responder) answerQuestion(q dns.Question, known []dns.RR) answer {
	var a answer

	name := canonicalName(q.Name)

	if name == dnssd.TypeEnumerationDomain {
		if wantsType(q, dns.TypePTR) {
			r.answerTypeEnumeration(&a, known)
		}

		return a
	}

	if instances, ok := r.instances[dnssd.ServiceType(name)]; ok {
		for _, i := range r.order {
			if _, member := instances[i.Name]; member {
				r.answerPTR(&a, i, q, known)
			}
		}

		return a
	}

	for _, i := range r.order {
		if canonicalName(i.FQDN()) == name {
			r.answerInstance(&a, i, q, known)
		}

		if canonicalName(i.TargetHost) == name {
			r.answerHost(&a, i, q, known)
		}
	}

	return a
}

// answerTypeEnumeration answers a service type enumeration meta-query with
// one PTR per registered service type.
//
// See https://tools.ietf.org/html/rfc6763#section-9.
func (r *Responder) answerTypeEnumeration(a *answer, known []dns.RR) {
	seen := map[dnssd.ServiceType]bool{}

	for _, i := range r.order {
		if seen[i.Service] {
			continue
		}
		seen[i.Service] = true

		ptr := &dns.PTR{
			Hdr: dns.RR_Header{
				Name:   dnssd.TypeEnumerationDomain,
				Rrtype: dns.TypePTR,
				Class:  dns.ClassINET,
				Ttl:    i.TTLInSeconds(),
			},
			Ptr: i.Service.String(),
		}

		if !suppressedBy(ptr, known) {
			a.Answer = append(a.Answer, ptr)
		}
	}
}

// answerPTR answers a question for a service type's PTR name.
//
// The PTR answer pulls the instance's SRV, TXT and address records into the
// additional section, per https://tools.ietf.org/html/rfc6763#section-12.1.
// PTR records belong to a shared record set, so they never carry the
// cache-flush bit.
func (r *Responder) answerPTR(a *answer, i *dnssd.Instance, q dns.Question, known []dns.RR) {
	if !wantsType(q, dns.TypePTR) {
		return
	}

	if ptr := i.PTR(); !suppressedBy(ptr, known) {
		a.Answer = append(a.Answer, ptr)
	}

	appendUnlessSuppressed(&a.Additional, i.SRV(), known)
	appendUnlessSuppressed(&a.Additional, i.TXT(), known)

	for _, rr := range i.AddressRecords() {
		appendUnlessSuppressed(&a.Additional, rr, known)
	}
}

// answerInstance answers a question for an instance's own name (SRV/TXT).
//
// An SRV answer pulls the target host's address records into the additional
// section, per https://tools.ietf.org/html/rfc6763#section-12.2.
func (r *Responder) answerInstance(a *answer, i *dnssd.Instance, q dns.Question, known []dns.RR) {
	hasSRV := false

	if wantsType(q, dns.TypeSRV) {
		hasSRV = true
		appendUnlessSuppressed(&a.Answer, i.SRV(), known)
	}

	if wantsType(q, dns.TypeTXT) {
		appendUnlessSuppressed(&a.Answer, i.TXT(), known)
	}

	if hasSRV {
		for _, rr := range i.AddressRecords() {
			appendUnlessSuppressed(&a.Additional, rr, known)
		}
	}
}

// answerHost answers a question for an instance's target hostname.
func (r *Responder) answerHost(a *answer, i *dnssd.Instance, q dns.Question, known []dns.RR) {
	for _, rr := range i.AddressRecords() {
		if wantsType(q, rr.Header().Rrtype) {
			appendUnlessSuppressed(&a.Answer, rr, known)
		}
	}
}

// appendUnlessSuppressed appends rr to records with the cache-flush bit set,
// unless the known-answer section already carries an equivalent record.
func appendUnlessSuppressed(records *[]dns.RR, rr dns.RR, known []dns.RR) {
	if suppressedBy(rr, known) {
		return
	}

	*records = append(*records, mdns.SetCacheFlush(rr))
}

// suppressedBy returns true if rr need not be sent because the query's
// known-answer section contains an equivalent record whose remaining TTL is
// at least half of ours.
//
// See https://tools.ietf.org/html/rfc6762#section-7.1.
func suppressedBy(rr dns.RR, known []dns.RR) bool {
	for _, k := range known {
		_, k := mdns.IsCacheFlush(k)

		if !dns.IsDuplicate(rr, k) {
			continue
		}

		if k.Header().Ttl >= rr.Header().Ttl/2 {
			return true
		}
	}

	return false
}

// wantsType returns true if the question asks for the given record type.
func wantsType(q dns.Question, t uint16) bool {
	return q.Qtype == t || q.Qtype == dns.TypeANY
}

// canonicalName lower-cases and fully qualifies a DNS name for comparison.
func canonicalName(n string) string {
	return strings.ToLower(dns.Fqdn(n))
}
