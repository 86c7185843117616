package main

import (
	"context"
	"fmt"
	"time"

	"github.com/grandcat/zeroconf"
)

const amqpServiceType = "_amqp._tcp"

// discoverBroker browses mDNS for the first advertised _amqp._tcp instance
// and returns its host/port with found=true. If none answers within timeout,
// or the first answer has no IPv4 address, it returns found=false and the
// caller keeps its configured host/port. This is the read-side
// counterpart of the teacher's startMDNS (cmd/can-server/mdns.go), which
// only ever registers a service; a client instead needs to browse for one.
func discoverBroker(ctx context.Context, timeout time.Duration) (host string, port int, found bool, err error) {
	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		return "", 0, false, fmt.Errorf("mdns resolver: %w", err)
	}

	entries := make(chan *zeroconf.ServiceEntry, 1)
	browseCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	result := make(chan *zeroconf.ServiceEntry, 1)
	go func() {
		for entry := range entries {
			select {
			case result <- entry:
			default:
			}
		}
	}()

	if err := resolver.Browse(browseCtx, amqpServiceType, "local.", entries); err != nil {
		return "", 0, false, fmt.Errorf("mdns browse: %w", err)
	}

	select {
	case entry := <-result:
		if len(entry.AddrIPv4) == 0 {
			return "", 0, false, nil
		}
		return entry.AddrIPv4[0].String(), entry.Port, true, nil
	case <-browseCtx.Done():
		return "", 0, false, nil
	}
}
