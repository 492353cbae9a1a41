package responder

import (
	"context"
	"fmt"
	"time"

	"github.com/dogmatiq/dodeca/logging"
	"github.com/jmalloc/searchlight/src/searchlight/mdns"
	"github.com/jmalloc/searchlight/src/searchlight/transport"
	"github.com/miekg/dns"
)

const (
	// probeCount is the number of probe queries sent before announcing.
	//
	// See https://tools.ietf.org/html/rfc6762#section-8.1.
	probeCount = 3

	// probeInterval is the delay between successive probe queries.
	probeInterval = 250 * time.Millisecond
)

// NameConflictError indicates that another responder on the link is already
// answering for one of this responder's names.
type NameConflictError struct {
	Name string
}

func (e NameConflictError) Error() string {
	return fmt.Sprintf(
		"mdns name conflict: '%s' is already in use by another responder",
		e.Name,
	)
}

// announce sends a single unsolicited response carrying every registered
// record to the multicast group of each transport.
func (r *Responder) announce(transports []transport.Transport) {
	m := mdns.NewAnnouncement()
	m.Answer = r.announcementRecords(false)

	r.sendToAll(transports, m)
}

// goodbye sends the goodbye announcements: the full record set with TTL=0.
//
// See https://tools.ietf.org/html/rfc6762#section-10.1.
func (r *Responder) goodbye(transports []transport.Transport) {
	m := mdns.NewAnnouncement()
	m.Answer = r.announcementRecords(true)

	for n := 0; n < announceCount; n++ {
		r.sendToAll(transports, m)
	}
}

// announcementRecords assembles the record sets of all registered instances,
// with the cache-flush bit on everything but the PTRs.
func (r *Responder) announcementRecords(goodbye bool) []dns.RR {
	var records []dns.RR

	for _, i := range r.order {
		var set []dns.RR
		if goodbye {
			set = i.GoodbyeRecords()
		} else {
			set = i.Records()
		}

		for _, rr := range set {
			if rr.Header().Rrtype != dns.TypePTR {
				rr = mdns.SetCacheFlush(rr)
			}

			records = append(records, rr)
		}
	}

	return records
}

// probeNames verifies that no other responder is answering for this
// responder's instance names before the first announcement.
//
// Three probe queries are sent, 250ms apart; any response naming a probed
// name fails startup with a NameConflictError.
//
// See https://tools.ietf.org/html/rfc6762#section-8.1.
func (r *Responder) probeNames(
	ctx context.Context,
	transports []transport.Transport,
	packets <-chan *transport.InboundPacket,
) error {
	probed := map[string]bool{}

	q := &dns.Msg{}
	q.Id = 0
	q.Compress = true

	for _, i := range r.order {
		name := canonicalName(i.FQDN())
		if probed[name] {
			continue
		}
		probed[name] = true

		q.Question = append(q.Question, dns.Question{
			Name:   i.FQDN(),
			Qtype:  dns.TypeANY,
			Qclass: dns.ClassINET,
		})

		// https://tools.ietf.org/html/rfc6762#section-8.2
		//
		// The proposed records go in the authority section for tiebreaking.
		q.Ns = append(q.Ns, i.SRV(), i.TXT())
	}

	probe := time.NewTimer(0)
	defer probe.Stop()

	probesLeft := probeCount

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case <-probe.C:
			if probesLeft == 0 {
				return nil
			}

			r.sendToAll(transports, q)
			probesLeft--
			probe.Reset(probeInterval)

		case in := <-packets:
			name, conflict := conflictingName(in, probed)
			in.Close()

			if conflict {
				return NameConflictError{Name: name}
			}
		}
	}
}

// conflictingName reports whether the packet is a response that names one of
// the probed names.
func conflictingName(in *transport.InboundPacket, probed map[string]bool) (string, bool) {
	m, err := in.Message()
	if err != nil || !m.Response {
		return "", false
	}

	for _, rr := range m.Answer {
		if probed[canonicalName(rr.Header().Name)] {
			return rr.Header().Name, true
		}
	}

	return "", false
}

// sendToAll sends m to the multicast group of each transport.
func (r *Responder) sendToAll(transports []transport.Transport, m *dns.Msg) {
	for _, t := range transports {
		if _, err := transport.SendMulticast(t, 0, m); err != nil {
			logging.Debug(
				r.logger,
				"unable to send mDNS announcement via %s: %s",
				t.Group(),
				err,
			)
		}
	}
}
