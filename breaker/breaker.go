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

// Package breaker offers an alternate connpool.Blacklist backed by one
// sony/gobreaker circuit breaker per address, for callers who want
// half-open trial connections instead of a hard deadline-based blacklist.
package breaker

import (
	"errors"
	"net"
	"sync"
	"time"

	"github.com/sony/gobreaker"

	"github.com/edgeo-scada/connpool"
)

var errForcedTrip = errors.New("breaker: forced trip")

type entry struct {
	addr     net.Addr
	cb       *gobreaker.CircuitBreaker
	deadline time.Time
}

// Blacklist implements connpool.Blacklist with one CircuitBreaker per
// address. Add opens the breaker immediately (a single forced failure, with
// ReadyToTrip set to trip after one consecutive failure) and arms it to move
// to half-open after the requested deadline; IsFailing reports the breaker's
// open state rather than a plain membership check.
type Blacklist struct {
	mu       sync.Mutex
	entries  map[string]*entry
}

// NewBlacklist creates an empty, gobreaker-backed Blacklist.
func NewBlacklist() *Blacklist {
	return &Blacklist{entries: make(map[string]*entry)}
}

// Add implements connpool.Blacklist.
func (b *Blacklist) Add(addr net.Addr, deadline time.Time) {
	timeout := time.Until(deadline)
	if timeout <= 0 {
		timeout = time.Millisecond
	}

	key := addr.String()
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        key,
		MaxRequests: 1,
		Timeout:     timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 1
		},
	})
	cb.Execute(func() (interface{}, error) { return nil, errForcedTrip })

	b.mu.Lock()
	b.entries[key] = &entry{addr: addr, cb: cb, deadline: deadline}
	b.mu.Unlock()
}

// IsFailing implements connpool.Blacklist.
func (b *Blacklist) IsFailing(addr net.Addr) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	e, ok := b.entries[addr.String()]
	if !ok {
		return false
	}
	return e.cb.State() == gobreaker.StateOpen
}

// Poll implements connpool.Blacklist: it reports (and forgets) the first
// address whose breaker has left the open state, i.e. is ready for a trial
// connection.
func (b *Blacklist) Poll() (net.Addr, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for key, e := range b.entries {
		if e.cb.State() != gobreaker.StateOpen {
			delete(b.entries, key)
			return e.addr, true
		}
	}
	return nil, false
}

// NextDeadline implements connpool.Blacklist.
func (b *Blacklist) NextDeadline() (time.Time, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	var earliest time.Time
	found := false
	for _, e := range b.entries {
		if e.cb.State() != gobreaker.StateOpen {
			continue
		}
		if !found || e.deadline.Before(earliest) {
			earliest = e.deadline
			found = true
		}
	}
	return earliest, found
}

var _ connpool.Blacklist = (*Blacklist)(nil)
