package mdns_test

import (
	. "github.com/jmalloc/searchlight/src/searchlight/mdns"
	"github.com/miekg/dns"
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

var _ = Describe("NewResponse", func() {
	var query *dns.Msg

	BeforeEach(func() {
		query = &dns.Msg{}
		query.SetQuestion("foo.local.", dns.TypeA)
		query.Id = 0x1234
	})

	It("strips the question section", func() {
		res := NewResponse(query, false)

		Expect(res.Question).To(BeEmpty())
	})

	It("zeroes the message id for multicast responses", func() {
		res := NewResponse(query, false)

		Expect(res.Id).To(Equal(uint16(0)))
	})

	It("preserves the message id for unicast responses", func() {
		res := NewResponse(query, true)

		Expect(res.Id).To(Equal(uint16(0x1234)))
	})

	It("marks the response as authoritative", func() {
		res := NewResponse(query, false)

		Expect(res.Authoritative).To(BeTrue())
	})

	It("clears the flags that must be zero on transmission", func() {
		query.RecursionDesired = true

		res := NewResponse(query, false)

		Expect(res.Truncated).To(BeFalse())
		Expect(res.RecursionDesired).To(BeFalse())
		Expect(res.RecursionAvailable).To(BeFalse())
		Expect(res.AuthenticatedData).To(BeFalse())
		Expect(res.CheckingDisabled).To(BeFalse())
		Expect(res.Rcode).To(Equal(dns.RcodeSuccess))
	})
})

var _ = Describe("NewAnnouncement", func() {
	It("is an authoritative response with a zero id", func() {
		m := NewAnnouncement()

		Expect(m.Response).To(BeTrue())
		Expect(m.Authoritative).To(BeTrue())
		Expect(m.Id).To(Equal(uint16(0)))
	})
})

var _ = Describe("NewQuery", func() {
	It("asks for the given name and type with a zero id", func() {
		q := NewQuery("_http._tcp.local.", dns.TypePTR)

		Expect(q.Id).To(Equal(uint16(0)))
		Expect(q.Question).To(HaveLen(1))
		Expect(q.Question[0].Name).To(Equal("_http._tcp.local."))
		Expect(q.Question[0].Qtype).To(Equal(dns.TypePTR))
		Expect(q.Question[0].Qclass).To(Equal(uint16(dns.ClassINET)))
		Expect(q.RecursionDesired).To(BeFalse())
	})
})

var _ = Describe("ValidateQuery", func() {
	It("accepts a standard query", func() {
		q := NewQuery("foo.local.", dns.TypeA)

		Expect(ValidateQuery(q)).To(Succeed())
	})

	It("rejects a non-zero opcode", func() {
		q := NewQuery("foo.local.", dns.TypeA)
		q.Opcode = dns.OpcodeUpdate

		Expect(ValidateQuery(q)).ShouldNot(Succeed())
	})

	It("rejects a non-zero rcode", func() {
		q := NewQuery("foo.local.", dns.TypeA)
		q.Rcode = dns.RcodeServerFailure

		Expect(ValidateQuery(q)).ShouldNot(Succeed())
	})
})
