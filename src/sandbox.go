package main

import (
	"log"
	"net"
	"os"
	"os/signal"

	"github.com/dogmatiq/dodeca/logging"
	"github.com/jmalloc/searchlight/src/searchlight/browser"
	"github.com/jmalloc/searchlight/src/searchlight/dnssd"
	"github.com/jmalloc/searchlight/src/searchlight/responder"
	"github.com/jmalloc/searchlight/src/searchlight/transport"
)

func main() {
	svc, err := dnssd.NewServiceBuilder("_searchlight._udp.local.", "HELLO-WORLD", 1234).
		AddIPAddress(net.ParseIP("192.168.1.69")).
		AddText("key=value").
		AddText("key2=value2").
		Build()
	if err != nil {
		log.Fatal(err)
	}

	res, err := responder.NewBuilder().
		AddService(svc).
		Loopback(true).
		IPVersion(transport.IPv4Only).
		Logger(logging.DebugLogger).
		Build()
	if err != nil {
		log.Fatal(err)
	}

	resHandle, err := res.RunInBackground()
	if err != nil {
		log.Fatal(err)
	}

	br, err := browser.NewBuilder().
		Service("_searchlight._udp.local.").
		Loopback(true).
		IPVersion(transport.IPv4Only).
		Logger(logging.DebugLogger).
		Build()
	if err != nil {
		log.Fatal(err)
	}

	brHandle, err := br.RunInBackground(func(e browser.Event) {
		switch e := e.(type) {
		case browser.Found:
			log.Printf("found %s at %s", e.Responder.FQDN(), e.Responder.Addr)
		case browser.Updated:
			log.Printf("updated %s", e.Responder.FQDN())
		case browser.Lost:
			log.Printf("lost %s", e.Responder.FQDN())
		}
	})
	if err != nil {
		log.Fatal(err)
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt)
	<-sig

	if err := brHandle.Shutdown(); err != nil {
		log.Print(err)
	}

	if err := resHandle.Shutdown(); err != nil {
		log.Print(err)
	}
}
