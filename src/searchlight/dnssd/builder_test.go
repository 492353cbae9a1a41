package dnssd_test

import (
	"net"
	"strings"
	"time"

	. "github.com/jmalloc/searchlight/src/searchlight/dnssd"
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

var _ = Describe("ServiceBuilder", func() {
	newBuilder := func() *ServiceBuilder {
		return NewServiceBuilder("_searchlight._udp.local.", "HELLO-WORLD", 1234).
			AddIPAddress(net.ParseIP("192.168.1.69"))
	}

	It("defaults the hostname to the instance name under .local.", func() {
		inst, err := newBuilder().Build()

		Expect(err).ShouldNot(HaveOccurred())
		Expect(inst.TargetHost).To(Equal("HELLO-WORLD.local."))
	})

	It("uses an explicit hostname when given", func() {
		inst, err := newBuilder().
			Hostname("media-box.local.").
			Build()

		Expect(err).ShouldNot(HaveOccurred())
		Expect(inst.TargetHost).To(Equal("media-box.local."))
	})

	It("canonicalizes the service type", func() {
		inst, err := NewServiceBuilder("_Searchlight._UDP.local", "HELLO-WORLD", 1234).
			AddIPAddress(net.ParseIP("192.168.1.69")).
			Build()

		Expect(err).ShouldNot(HaveOccurred())
		Expect(inst.Service.String()).To(Equal("_searchlight._udp.local."))
	})

	It("applies the TTL to the instance's records", func() {
		inst, err := newBuilder().
			TTL(2 * time.Second).
			Build()

		Expect(err).ShouldNot(HaveOccurred())
		Expect(inst.TTLInSeconds()).To(Equal(uint32(2)))
	})

	Describe("AddText", func() {
		It("fails the build if a string exceeds 255 octets", func() {
			_, err := newBuilder().
				AddText(strings.Repeat("x", 256)).
				Build()

			Expect(err).Should(HaveOccurred())
		})
	})

	Describe("AddTextTruncated", func() {
		It("silently truncates to 255 octets", func() {
			inst, err := newBuilder().
				AddTextTruncated(strings.Repeat("x", 300)).
				Build()

			Expect(err).ShouldNot(HaveOccurred())
			Expect(inst.Text).To(HaveLen(1))
			Expect(inst.Text[0]).To(HaveLen(255))
		})

		It("leaves short strings untouched", func() {
			inst, err := newBuilder().
				AddTextTruncated("key=value").
				Build()

			Expect(err).ShouldNot(HaveOccurred())
			Expect(inst.Text).To(Equal([]string{"key=value"}))
		})
	})

	It("requires at least one address", func() {
		_, err := NewServiceBuilder("_searchlight._udp.local.", "HELLO-WORLD", 1234).
			Build()

		Expect(err).Should(HaveOccurred())
	})

	It("requires a non-zero port", func() {
		_, err := NewServiceBuilder("_searchlight._udp.local.", "HELLO-WORLD", 0).
			AddIPAddress(net.ParseIP("192.168.1.69")).
			Build()

		Expect(err).Should(HaveOccurred())
	})

	It("requires a well-formed service type", func() {
		_, err := NewServiceBuilder("gibberish", "HELLO-WORLD", 1234).
			AddIPAddress(net.ParseIP("192.168.1.69")).
			Build()

		Expect(err).Should(HaveOccurred())
	})

	It("requires a non-empty instance name", func() {
		_, err := NewServiceBuilder("_searchlight._udp.local.", "", 1234).
			AddIPAddress(net.ParseIP("192.168.1.69")).
			Build()

		Expect(err).Should(HaveOccurred())
	})
})
