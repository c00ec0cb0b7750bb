// Copyright 2025 Edgeo SCADA
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package discovery

import (
	"context"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/edgeo-scada/connpool"
)

// DNSSource periodically resolves a set of logical names to addresses,
// emitting a new Snapshot whenever the resolved set changes. Names are
// resolved concurrently with errgroup so one slow or failing name does not
// delay the others.
type DNSSource struct {
	names    []string
	port     int
	interval time.Duration
	resolver *net.Resolver

	mu      sync.Mutex
	latest  connpool.Snapshot
	pending bool

	closed atomic.Bool
	stop   chan struct{}
}

// NewDNSSource creates a DNSSource that re-resolves names (host, no port)
// onto port every interval, using net.DefaultResolver.
func NewDNSSource(names []string, port int, interval time.Duration) *DNSSource {
	s := &DNSSource{
		names:    append([]string(nil), names...),
		port:     port,
		interval: interval,
		resolver: net.DefaultResolver,
		stop:     make(chan struct{}),
	}
	go s.run()
	return s
}

func (s *DNSSource) run() {
	s.resolveOnce()
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.resolveOnce()
		}
	}
}

func (s *DNSSource) resolveOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), s.interval)
	defer cancel()

	g, gCtx := errgroup.WithContext(ctx)
	results := make([][]net.Addr, len(s.names))

	for i, name := range s.names {
		i, name := i, name
		g.Go(func() error {
			ips, err := s.resolver.LookupIPAddr(gCtx, name)
			if err != nil {
				// A single unresolvable name does not fail the whole
				// refresh; it simply contributes no addresses this round.
				return nil
			}
			addrs := make([]net.Addr, 0, len(ips))
			for _, ip := range ips {
				addrs = append(addrs, &net.TCPAddr{IP: ip.IP, Port: s.port})
			}
			results[i] = addrs
			return nil
		})
	}
	_ = g.Wait()

	var all []net.Addr
	for _, addrs := range results {
		all = append(all, addrs...)
	}
	snap := connpool.NewSnapshot(all...)

	s.mu.Lock()
	if !snap.Equal(s.latest) {
		s.latest = snap
		s.pending = true
	}
	s.mu.Unlock()
}

// Next implements connpool.AddressSource.
func (s *DNSSource) Next() (connpool.Snapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.pending {
		return connpool.Snapshot{}, false
	}
	s.pending = false
	return s.latest, true
}

// Closed implements connpool.AddressSource.
func (s *DNSSource) Closed() bool { return s.closed.Load() }

// Stop ends the resolution loop and marks the source closed.
func (s *DNSSource) Stop() {
	if s.closed.CompareAndSwap(false, true) {
		close(s.stop)
	}
}
