package browser

import (
	"container/heap"
	"net"
	"strings"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/dogmatiq/dodeca/logging"
	"github.com/jmalloc/searchlight/src/searchlight/dnssd"
	"github.com/jmalloc/searchlight/src/searchlight/mdns"
	"github.com/miekg/dns"
)

const (
	// minPresence and maxPresence clamp the TTL-derived expiry window of a
	// tracked responder.
	minPresence = 1 * time.Second
	maxPresence = 75 * time.Minute
)

// identity is the key under which a responder is tracked. The source address
// is deliberately not part of the key.
type identity struct {
	service  dnssd.ServiceType
	instance string // lower-cased
}

// entry is the tracker's mutable state for one responder.
type entry struct {
	id      identity
	current *Responder

	// ptrTTL is the original TTL of the presence record, used to decide
	// whether the entry still qualifies as a known answer.
	ptrTTL uint32

	expiry    time.Time
	heapIndex int

	// ignored counts query rounds since the last refreshing response.
	ignored int
}

// tracker correlates mDNS responses into responder identities and emits
// lifecycle events.
//
// It is confined to the browser's worker goroutine and needs no locking.
type tracker struct {
	clock   clock.Clock
	handler EventHandler
	logger  logging.Logger

	entries map[identity]*entry
	heap    expiryHeap
}

func newTracker(c clock.Clock, handler EventHandler, logger logging.Logger) *tracker {
	return &tracker{
		clock:   c,
		handler: handler,
		logger:  logger,
		entries: map[identity]*entry{},
	}
}

// Ingest merges a response message into the tracker.
//
// It returns true if the message contained at least one record belonging to
// the given service type, regardless of whether any event was emitted.
func (t *tracker) Ingest(m *dns.Msg, src *net.UDPAddr, service dnssd.ServiceType) bool {
	groups, hosts := collate(m, service)
	if len(groups) == 0 {
		return false
	}

	now := t.clock.Now()

	for _, g := range groups {
		t.apply(g, hosts, m, src, service, now)
	}

	return true
}

// apply merges one instance's record group into the tracker, emitting
// whichever lifecycle event the merge implies.
func (t *tracker) apply(
	g *recordGroup,
	hosts map[string][]net.IP,
	m *dns.Msg,
	src *net.UDPAddr,
	service dnssd.ServiceType,
	now time.Time,
) {
	id := identity{service, strings.ToLower(g.instance)}
	e, ok := t.entries[id]

	if g.goodbye {
		// https://tools.ietf.org/html/rfc6762#section-10.1
		if ok {
			logging.Debug(t.logger, "'%s' said goodbye", e.current.FQDN())
			t.remove(e)
			t.handler(Lost{e.current})
		}

		return
	}

	if !ok {
		// Only a PTR or SRV naming the instance establishes presence; TXT or
		// address records alone do not.
		if !g.hasPresence {
			return
		}

		r := &Responder{
			Service:      service,
			Instance:     g.instance,
			Addr:         src,
			FirstSeen:    now,
			LastSeen:     now,
			Expiry:       now.Add(clampPresence(g.presenceTTL)),
			LastResponse: m,
		}

		if g.srv != nil {
			r.Host = g.srv.Target
			r.Port = g.srv.Port
			r.Priority = g.srv.Priority
			r.Weight = g.srv.Weight
		}

		if g.txt != nil {
			r.Text = append([]string(nil), g.txt.Txt...)
		}

		r.Addresses = hosts[canonicalName(r.Host)]

		e = &entry{
			id:      id,
			current: r,
			ptrTTL:  g.presenceTTL,
			expiry:  r.Expiry,
		}

		t.entries[id] = e
		heap.Push(&t.heap, e)

		t.handler(Found{r})
		return
	}

	old := e.current
	next := *old
	next.Addr = src
	next.LastSeen = now
	next.LastResponse = m

	changed := false

	if g.srv != nil {
		if canonicalName(next.Host) != canonicalName(g.srv.Target) ||
			next.Port != g.srv.Port ||
			next.Priority != g.srv.Priority ||
			next.Weight != g.srv.Weight {
			changed = true
		}

		next.Host = g.srv.Target
		next.Port = g.srv.Port
		next.Priority = g.srv.Priority
		next.Weight = g.srv.Weight
	}

	if g.txt != nil {
		if !textEqual(next.Text, g.txt.Txt) {
			changed = true
		}

		next.Text = append([]string(nil), g.txt.Txt...)
	}

	if addrs, ok := hosts[canonicalName(next.Host)]; ok && len(addrs) > 0 {
		if !addressSetEqual(next.Addresses, addrs) {
			changed = true
		}

		next.Addresses = addrs
	}

	if g.hasPresence {
		e.ptrTTL = g.presenceTTL
		e.expiry = now.Add(clampPresence(g.presenceTTL))
		heap.Fix(&t.heap, e.heapIndex)
	}

	next.Expiry = e.expiry
	e.ignored = 0
	e.current = &next

	if changed {
		t.handler(Updated{Responder: &next, Previous: old})
	}
}

// Expire removes every entry whose deadline has passed, emitting Lost for
// each.
func (t *tracker) Expire(now time.Time) {
	for len(t.heap) > 0 {
		e := t.heap[0]
		if e.expiry.After(now) {
			return
		}

		logging.Debug(t.logger, "'%s' expired without a goodbye", e.current.FQDN())
		t.remove(e)
		t.handler(Lost{e.current})
	}
}

// NextExpiry returns the earliest expiry deadline among tracked responders.
func (t *tracker) NextExpiry() (time.Time, bool) {
	if len(t.heap) == 0 {
		return time.Time{}, false
	}

	return t.heap[0].expiry, true
}

// NoteQuery records that a query round was issued for the given service
// type. When max is positive, entries that stayed silent across more than
// max rounds are dropped without waiting for their TTL to run out.
func (t *tracker) NoteQuery(service dnssd.ServiceType, max int) {
	if max <= 0 {
		return
	}

	var silent []*entry

	for _, e := range t.entries {
		if e.id.service != service {
			continue
		}

		e.ignored++
		if e.ignored > max {
			silent = append(silent, e)
		}
	}

	for _, e := range silent {
		t.remove(e)
		t.handler(Lost{e.current})
	}
}

// KnownAnswers returns PTR records for the tracked responders of the given
// service type whose remaining TTL is at least half the original, for use in
// the known-answer section of an outgoing query.
//
// See https://tools.ietf.org/html/rfc6762#section-7.1.
func (t *tracker) KnownAnswers(service dnssd.ServiceType, now time.Time) []dns.RR {
	var known []dns.RR

	for _, e := range t.entries {
		if e.id.service != service {
			continue
		}

		elapsed := uint32(now.Sub(e.current.LastSeen) / time.Second)
		if elapsed >= e.ptrTTL {
			continue
		}

		remaining := e.ptrTTL - elapsed
		if remaining*2 < e.ptrTTL {
			continue
		}

		known = append(known, &dns.PTR{
			Hdr: dns.RR_Header{
				Name:   service.String(),
				Rrtype: dns.TypePTR,
				Class:  dns.ClassINET,
				Ttl:    remaining,
			},
			Ptr: e.current.FQDN(),
		})
	}

	return known
}

func (t *tracker) remove(e *entry) {
	heap.Remove(&t.heap, e.heapIndex)
	delete(t.entries, e.id)
}

// recordGroup is the set of records in one response message that describe a
// single instance.
type recordGroup struct {
	instance    string
	srv         *dns.SRV
	txt         *dns.TXT
	goodbye     bool
	hasPresence bool
	presenceTTL uint32
}

// collate extracts the records relevant to the given service type from a
// response message, grouped by instance name, along with the message's
// A/AAAA records indexed by owner name.
//
// Record linkage is resolved by name lookup within the message, so the
// per-message scope bounds all traversal.
func collate(m *dns.Msg, service dnssd.ServiceType) (map[string]*recordGroup, map[string][]net.IP) {
	groups := map[string]*recordGroup{}
	hosts := map[string][]net.IP{}

	group := func(instance string) *recordGroup {
		k := strings.ToLower(instance)
		g, ok := groups[k]
		if !ok {
			g = &recordGroup{instance: instance}
			groups[k] = g
		}
		return g
	}

	presence := func(g *recordGroup, ttl uint32) {
		if ttl == 0 {
			g.goodbye = true
			return
		}

		if !g.hasPresence || ttl < g.presenceTTL {
			g.presenceTTL = ttl
		}
		g.hasPresence = true
	}

	records := make([]dns.RR, 0, len(m.Answer)+len(m.Extra))
	records = append(records, m.Answer...)
	records = append(records, m.Extra...)

	for _, rr := range records {
		_, rr := mdns.IsCacheFlush(rr)

		switch r := rr.(type) {
		case *dns.PTR:
			if canonicalName(r.Hdr.Name) != service.String() {
				continue
			}

			if instance, ok := dnssd.SplitInstance(r.Ptr, service); ok {
				presence(group(instance), r.Hdr.Ttl)
			}

		case *dns.SRV:
			if instance, ok := dnssd.SplitInstance(r.Hdr.Name, service); ok {
				g := group(instance)
				g.srv = r
				presence(g, r.Hdr.Ttl)
			}

		case *dns.TXT:
			if instance, ok := dnssd.SplitInstance(r.Hdr.Name, service); ok {
				group(instance).txt = r
			}

		case *dns.A:
			k := canonicalName(r.Hdr.Name)
			hosts[k] = append(hosts[k], r.A)

		case *dns.AAAA:
			k := canonicalName(r.Hdr.Name)
			hosts[k] = append(hosts[k], r.AAAA)
		}
	}

	return groups, hosts
}

// clampPresence converts a presence TTL to the expiry window it implies.
func clampPresence(ttl uint32) time.Duration {
	d := time.Duration(ttl) * time.Second

	if d < minPresence {
		return minPresence
	}

	if d > maxPresence {
		return maxPresence
	}

	return d
}

func textEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}

	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}

	return true
}

// addressSetEqual compares address membership. Order is not material.
func addressSetEqual(a, b []net.IP) bool {
	if len(a) != len(b) {
		return false
	}

	seen := make(map[string]int, len(a))
	for _, ip := range a {
		seen[ip.String()]++
	}

	for _, ip := range b {
		k := ip.String()
		if seen[k] == 0 {
			return false
		}
		seen[k]--
	}

	return true
}

func canonicalName(n string) string {
	return strings.ToLower(dns.Fqdn(n))
}
