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

package connpool

import (
	"context"
	"errors"
	"net"
	"sync"
	"testing"
	"time"
)

// recordingSink is a fakeSink that always accepts and records which address
// it belongs to, so tests can assert on dispatch distribution.
type recordingSink struct {
	addr net.Addr
	mu   sync.Mutex
	got  []Item
}

func (s *recordingSink) Send(item Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.got = append(s.got, item)
	return nil
}
func (s *recordingSink) Close() error { return nil }

// scriptedConnector lets a test control, per address, how many times
// Connect should fail before succeeding, and records attempt counts.
type scriptedConnector struct {
	mu        sync.Mutex
	failCount map[string]int
	attempts  map[string]int
	sinks     map[string]*recordingSink
}

func newScriptedConnector() *scriptedConnector {
	return &scriptedConnector{
		failCount: make(map[string]int),
		attempts:  make(map[string]int),
		sinks:     make(map[string]*recordingSink),
	}
}

func (c *scriptedConnector) Connect(ctx context.Context, addr net.Addr) (Sink, error) {
	key := addr.String()
	c.mu.Lock()
	c.attempts[key]++
	attempt := c.attempts[key]
	fails := c.failCount[key]
	c.mu.Unlock()

	if attempt <= fails {
		return nil, errors.New("scripted connect failure")
	}

	sink := &recordingSink{addr: addr}
	c.mu.Lock()
	c.sinks[key] = sink
	c.mu.Unlock()
	return sink, nil
}

func (c *scriptedConnector) attemptsFor(addr net.Addr) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.attempts[addr.String()]
}

func (c *scriptedConnector) sinkFor(addr net.Addr) *recordingSink {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sinks[addr.String()]
}

// staticSource is a minimal AddressSource a test can mutate by pushing a new
// snapshot via set(); Next() reports it exactly once.
type testAddrSource struct {
	mu      sync.Mutex
	pending *Snapshot
	closed  bool
}

func (s *testAddrSource) set(snap Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = &snap
}

func (s *testAddrSource) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
}

func (s *testAddrSource) Next() (Snapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending == nil {
		return Snapshot{}, false
	}
	snap := *s.pending
	s.pending = nil
	return snap, true
}

func (s *testAddrSource) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func drainUntilReady(t *testing.T, d *Driver, item Item, deadline time.Duration) {
	t.Helper()
	stop := time.Now().Add(deadline)
	for time.Now().Before(stop) {
		status, back := d.Offer(item)
		if status == Ready {
			return
		}
		item = back
		time.Sleep(time.Millisecond)
	}
	t.Fatal("timed out waiting for Ready")
}

func TestDriverUniformDistributionAcrossTwoHosts(t *testing.T) {
	addrA := tcpAddr(t, "10.0.1.1:1")
	addrB := tcpAddr(t, "10.0.1.2:1")
	source := &testAddrSource{}
	source.set(NewSnapshot(addrA, addrB))
	connector := newScriptedConnector()

	d, err := New(connector, source, WithConnLimit(2), WithReconnectTimeout(50*time.Millisecond))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	for i := 0; i < 4; i++ {
		drainUntilReady(t, d, i, 2*time.Second)
	}

	if got := connector.attemptsFor(addrA); got != 2 {
		t.Errorf("attempts to A = %d, want 2", got)
	}
	if got := connector.attemptsFor(addrB); got != 2 {
		t.Errorf("attempts to B = %d, want 2", got)
	}
}

// TestDriverDeliversEachItemExactlyOnceRoundRobin exercises the Round-robin
// and Uniformity laws at the delivery level, not just the connect-count
// level: every ready connection must receive exactly one item before any of
// them repeats, and across the whole run no item may be delivered twice or
// dropped.
func TestDriverDeliversEachItemExactlyOnceRoundRobin(t *testing.T) {
	addrA := tcpAddr(t, "10.0.6.1:1")
	addrB := tcpAddr(t, "10.0.6.2:1")
	source := &testAddrSource{}
	source.set(NewSnapshot(addrA, addrB))
	connector := newScriptedConnector()

	d, err := New(connector, source, WithConnLimit(1))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	const n = 20
	for i := 0; i < n; i++ {
		drainUntilReady(t, d, i, 2*time.Second)
	}

	sinkA := connector.sinkFor(addrA)
	sinkB := connector.sinkFor(addrB)
	if sinkA == nil || sinkB == nil {
		t.Fatal("expected a live connection to both A and B")
	}

	sinkA.mu.Lock()
	gotA := append([]Item(nil), sinkA.got...)
	sinkA.mu.Unlock()
	sinkB.mu.Lock()
	gotB := append([]Item(nil), sinkB.got...)
	sinkB.mu.Unlock()

	if len(gotA)+len(gotB) != n {
		t.Fatalf("delivered %d+%d = %d items, want exactly %d (no drops or duplicates)",
			len(gotA), len(gotB), len(gotA)+len(gotB), n)
	}

	seen := make(map[Item]int, n)
	for _, item := range append(gotA, gotB...) {
		seen[item]++
	}
	for i := 0; i < n; i++ {
		if seen[i] != 1 {
			t.Fatalf("item %d delivered %d times, want exactly 1", i, seen[i])
		}
	}

	if diff := len(gotA) - len(gotB); diff > 1 || diff < -1 {
		t.Fatalf("uneven split across connections: A=%d B=%d", len(gotA), len(gotB))
	}
}

func TestDriverBlacklistsOnConnectFailureThenSucceeds(t *testing.T) {
	addrA := tcpAddr(t, "10.0.2.1:1")
	source := &testAddrSource{}
	source.set(NewSnapshot(addrA))
	connector := newScriptedConnector()
	connector.failCount[addrA.String()] = 2

	metrics := NewCounterMetrics()
	d, err := New(connector, source,
		WithConnLimit(1),
		WithReconnectTimeout(40*time.Millisecond),
		WithMetrics(metrics))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	drainUntilReady(t, d, "item", 3*time.Second)

	if metrics.ConnectionErrors.Value() < 2 {
		t.Errorf("ConnectionErrors = %d, want >= 2", metrics.ConnectionErrors.Value())
	}
	if metrics.Connections.Value() < 1 {
		t.Errorf("Connections = %d, want >= 1", metrics.Connections.Value())
	}
}

func TestDriverRetiresAddressesOnSnapshotSwap(t *testing.T) {
	addrA := tcpAddr(t, "10.0.3.1:1")
	addrB := tcpAddr(t, "10.0.3.2:1")
	addrC := tcpAddr(t, "10.0.3.3:1")
	source := &testAddrSource{}
	source.set(NewSnapshot(addrA, addrB))
	connector := newScriptedConnector()

	d, err := New(connector, source, WithConnLimit(1))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	drainUntilReady(t, d, 1, 2*time.Second)
	drainUntilReady(t, d, 2, 2*time.Second)

	source.set(NewSnapshot(addrB, addrC))
	drainUntilReady(t, d, 3, 2*time.Second)

	if got := connector.attemptsFor(addrC); got < 1 {
		t.Errorf("attempts to C = %d, want >= 1", got)
	}
	if got := connector.attemptsFor(addrA); got != 1 {
		t.Errorf("attempts to A = %d, want exactly 1 (no reconnect after retirement)", got)
	}
}

func TestDriverShutsDownWhenAddressSourceCloses(t *testing.T) {
	addrA := tcpAddr(t, "10.0.4.1:1")
	source := &testAddrSource{}
	source.set(NewSnapshot(addrA))
	connector := newScriptedConnector()

	d, err := New(connector, source, WithConnLimit(1))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	drainUntilReady(t, d, 1, 2*time.Second)

	source.close()

	stop := time.Now().Add(2 * time.Second)
	for time.Now().Before(stop) {
		status, _ := d.Offer(2)
		if status == Done {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("expected Done after address source closed and connections drained")
}

func TestDriverCloseIsIdempotentAndDrains(t *testing.T) {
	addrA := tcpAddr(t, "10.0.5.1:1")
	source := &testAddrSource{}
	source.set(NewSnapshot(addrA))
	connector := newScriptedConnector()

	d, err := New(connector, source, WithConnLimit(1))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	drainUntilReady(t, d, 1, 2*time.Second)

	d.Close()
	d.Close() // idempotent

	stop := time.Now().Add(2 * time.Second)
	for time.Now().Before(stop) {
		if d.Close() == Ready {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("expected Close() to eventually report Ready")
}
