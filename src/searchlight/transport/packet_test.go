package transport_test

import (
	"net"

	. "github.com/jmalloc/searchlight/src/searchlight/transport"
	"github.com/miekg/dns"
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

var _ = Describe("Endpoint", func() {
	Describe("IsLegacy", func() {
		It("returns false for queriers on the mDNS port", func() {
			ep := Endpoint{
				Address: &net.UDPAddr{IP: net.ParseIP("192.168.1.69"), Port: 5353},
			}

			Expect(ep.IsLegacy()).To(BeFalse())
		})

		It("returns true for queriers on any other port", func() {
			ep := Endpoint{
				Address: &net.UDPAddr{IP: net.ParseIP("192.168.1.69"), Port: 53535},
			}

			Expect(ep.IsLegacy()).To(BeTrue())
		})
	})
})

var _ = Describe("NewOutboundPacket", func() {
	It("packs the message so that it can be decoded again", func() {
		q := &dns.Msg{}
		q.SetQuestion("_http._tcp.local.", dns.TypePTR)

		out, err := NewOutboundPacket(Endpoint{}, q)
		Expect(err).ShouldNot(HaveOccurred())
		defer out.Close()

		in := &InboundPacket{Data: out.Data}

		m, err := in.Message()
		Expect(err).ShouldNot(HaveOccurred())
		Expect(m.Question).To(HaveLen(1))
		Expect(m.Question[0].Name).To(Equal("_http._tcp.local."))
	})
})

var _ = Describe("IPVersion", func() {
	It("has a readable representation", func() {
		Expect(IPv4Only.String()).To(Equal("IPv4"))
		Expect(IPv6Only.String()).To(Equal("IPv6"))
		Expect(DualStack.String()).To(Equal("IPv4+IPv6"))
	})
})
