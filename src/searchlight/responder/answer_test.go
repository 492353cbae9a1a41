package responder

import (
	"net"

	"github.com/dogmatiq/dodeca/logging"
	"github.com/jmalloc/searchlight/src/searchlight/dnssd"
	"github.com/miekg/dns"
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

const cacheFlushBit = 1 << 15

var _ = Describe("Responder", func() {
	var (
		r     *Responder
		inst  *dnssd.Instance
		known []dns.RR
	)

	question := func(name string, qtype uint16) dns.Question {
		return dns.Question{
			Name:   name,
			Qtype:  qtype,
			Qclass: dns.ClassINET,
		}
	}

	BeforeEach(func() {
		var err error

		inst, err = dnssd.NewServiceBuilder("_searchlight._udp.local.", "HELLO-WORLD", 1234).
			AddIPAddress(net.ParseIP("192.168.1.69")).
			AddText("key=value").
			AddText("key2=value2").
			Build()
		Expect(err).ShouldNot(HaveOccurred())

		r, err = NewBuilder().
			AddService(inst).
			Logger(logging.SilentLogger).
			Build()
		Expect(err).ShouldNot(HaveOccurred())

		known = nil
	})

	Describe("answerQuestion", func() {
		Context("for the service type's PTR name", func() {
			It("answers with the PTR and pulls the linked records into the additional section", func() {
				a := r.answerQuestion(question("_searchlight._udp.local.", dns.TypePTR), known)

				Expect(a.Answer).To(HaveLen(1))

				ptr := a.Answer[0].(*dns.PTR)
				Expect(ptr.Ptr).To(Equal("HELLO-WORLD._searchlight._udp.local."))

				Expect(a.Additional).To(HaveLen(3))
				Expect(a.Additional[0].Header().Rrtype).To(Equal(dns.TypeSRV))
				Expect(a.Additional[1].Header().Rrtype).To(Equal(dns.TypeTXT))
				Expect(a.Additional[2].Header().Rrtype).To(Equal(dns.TypeA))
			})

			It("sets the cache-flush bit on everything but the PTR", func() {
				a := r.answerQuestion(question("_searchlight._udp.local.", dns.TypePTR), known)

				Expect(a.Answer[0].Header().Class & cacheFlushBit).To(BeZero())

				for _, rr := range a.Additional {
					Expect(rr.Header().Class & cacheFlushBit).NotTo(BeZero())
				}
			})

			It("matches the question name case-insensitively", func() {
				a := r.answerQuestion(question("_SEARCHLIGHT._UDP.local.", dns.TypePTR), known)

				Expect(a.Answer).To(HaveLen(1))
			})

			It("answers ANY questions", func() {
				a := r.answerQuestion(question("_searchlight._udp.local.", dns.TypeANY), known)

				Expect(a.Answer).To(HaveLen(1))
			})

			It("does not answer questions for other record types", func() {
				a := r.answerQuestion(question("_searchlight._udp.local.", dns.TypeSRV), known)

				Expect(a.Answer).To(BeEmpty())
				Expect(a.Additional).To(BeEmpty())
			})
		})

		Context("for the instance's own name", func() {
			It("answers SRV questions and pulls the address records", func() {
				a := r.answerQuestion(question("HELLO-WORLD._searchlight._udp.local.", dns.TypeSRV), known)

				Expect(a.Answer).To(HaveLen(1))

				srv := a.Answer[0].(*dns.SRV)
				Expect(srv.Target).To(Equal("HELLO-WORLD.local."))
				Expect(srv.Port).To(Equal(uint16(1234)))

				Expect(a.Additional).To(HaveLen(1))
				Expect(a.Additional[0].Header().Rrtype).To(Equal(dns.TypeA))
			})

			It("answers TXT questions without address records", func() {
				a := r.answerQuestion(question("HELLO-WORLD._searchlight._udp.local.", dns.TypeTXT), known)

				Expect(a.Answer).To(HaveLen(1))
				Expect(a.Answer[0].(*dns.TXT).Txt).To(Equal([]string{"key=value", "key2=value2"}))
				Expect(a.Additional).To(BeEmpty())
			})

			It("answers ANY questions with both", func() {
				a := r.answerQuestion(question("HELLO-WORLD._searchlight._udp.local.", dns.TypeANY), known)

				Expect(a.Answer).To(HaveLen(2))
			})
		})

		Context("for the target hostname", func() {
			It("answers A questions", func() {
				a := r.answerQuestion(question("HELLO-WORLD.local.", dns.TypeA), known)

				Expect(a.Answer).To(HaveLen(1))
				Expect(a.Answer[0].(*dns.A).A.String()).To(Equal("192.168.1.69"))
			})

			It("does not answer AAAA questions when only IPv4 addresses are registered", func() {
				a := r.answerQuestion(question("HELLO-WORLD.local.", dns.TypeAAAA), known)

				Expect(a.Answer).To(BeEmpty())
			})
		})

		Context("for the service type enumeration domain", func() {
			It("answers with a PTR per registered type", func() {
				a := r.answerQuestion(question(dnssd.TypeEnumerationDomain, dns.TypePTR), known)

				Expect(a.Answer).To(HaveLen(1))
				Expect(a.Answer[0].(*dns.PTR).Ptr).To(Equal("_searchlight._udp.local."))
			})
		})

		It("does not answer questions about unregistered names", func() {
			a := r.answerQuestion(question("_other._tcp.local.", dns.TypePTR), known)

			Expect(a.Answer).To(BeEmpty())
			Expect(a.Additional).To(BeEmpty())
		})

		Context("known-answer suppression", func() {
			It("omits a record the querier already has with at least half its TTL remaining", func() {
				known = []dns.RR{inst.PTR()}

				a := r.answerQuestion(question("_searchlight._udp.local.", dns.TypePTR), known)

				Expect(a.Answer).To(BeEmpty())

				// The linked records still go out.
				Expect(a.Additional).To(HaveLen(3))
			})

			It("sends the record anyway if the querier's copy is about to expire", func() {
				stale := inst.PTR()
				stale.Hdr.Ttl = 10

				known = []dns.RR{stale}

				a := r.answerQuestion(question("_searchlight._udp.local.", dns.TypePTR), known)

				Expect(a.Answer).To(HaveLen(1))
			})

			It("ignores known answers with different rdata", func() {
				other := inst.PTR()
				other.Ptr = "OTHER._searchlight._udp.local."

				known = []dns.RR{other}

				a := r.answerQuestion(question("_searchlight._udp.local.", dns.TypePTR), known)

				Expect(a.Answer).To(HaveLen(1))
			})
		})
	})

	Describe("answerQuery", func() {
		var ct *captureTransport

		BeforeEach(func() {
			ct = &captureTransport{}
		})

		It("responds to the multicast group by default", func() {
			q := &dns.Msg{}
			q.SetQuestion("_searchlight._udp.local.", dns.TypePTR)

			in := inboundQuery(ct, q, 5353)
			Expect(r.answerQuery(in, q)).To(Succeed())

			Expect(ct.sent).To(HaveLen(1))
			Expect(ct.sent[0].dest).To(BeIdenticalTo(ct.Group()))
			Expect(ct.sent[0].msg.Id).To(Equal(uint16(0)))
			Expect(ct.sent[0].msg.Answer).To(HaveLen(1))
		})

		It("responds via unicast when the question sets the unicast-response bit", func() {
			q := &dns.Msg{}
			q.SetQuestion("_searchlight._udp.local.", dns.TypePTR)
			q.Question[0].Qclass |= cacheFlushBit

			in := inboundQuery(ct, q, 5353)
			Expect(r.answerQuery(in, q)).To(Succeed())

			Expect(ct.sent).To(HaveLen(1))
			Expect(ct.sent[0].dest.Port).To(Equal(5353))
			Expect(ct.sent[0].dest.IP.String()).To(Equal("192.168.1.200"))
		})

		It("responds via unicast to legacy queriers, preserving the message id", func() {
			q := &dns.Msg{}
			q.SetQuestion("_searchlight._udp.local.", dns.TypePTR)
			q.Id = 0x1234

			in := inboundQuery(ct, q, 53535)
			Expect(r.answerQuery(in, q)).To(Succeed())

			Expect(ct.sent).To(HaveLen(1))
			Expect(ct.sent[0].dest.Port).To(Equal(53535))
			Expect(ct.sent[0].msg.Id).To(Equal(uint16(0x1234)))
		})

		It("sends nothing when no question matches", func() {
			q := &dns.Msg{}
			q.SetQuestion("_other._tcp.local.", dns.TypePTR)

			in := inboundQuery(ct, q, 5353)
			Expect(r.answerQuery(in, q)).To(Succeed())

			Expect(ct.sent).To(BeEmpty())
		})
	})
})
