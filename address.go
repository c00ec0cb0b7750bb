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

import "net"

// Snapshot is an immutable, ordered view of the currently resolved endpoints
// for a logical service, with an optional priority stratification. The zero
// Snapshot is empty.
type Snapshot struct {
	addrs   []net.Addr
	primary int // len(addrs) that belong to the primary-priority subset
}

// NewSnapshot builds a Snapshot whose primary-priority view is all of addrs.
func NewSnapshot(addrs ...net.Addr) Snapshot {
	return Snapshot{addrs: append([]net.Addr(nil), addrs...), primary: len(addrs)}
}

// NewTieredSnapshot builds a Snapshot whose primary-priority view is only
// primary, with fallback appended after it (used only for iteration order;
// the pool driver itself always operates on Primary()).
func NewTieredSnapshot(primary, fallback []net.Addr) Snapshot {
	addrs := make([]net.Addr, 0, len(primary)+len(fallback))
	addrs = append(addrs, primary...)
	addrs = append(addrs, fallback...)
	return Snapshot{addrs: addrs, primary: len(primary)}
}

// All returns every address in the snapshot, primary and fallback alike.
func (s Snapshot) All() []net.Addr {
	return append([]net.Addr(nil), s.addrs...)
}

// Primary returns the primary-priority subset (the ".at(0)" view of the
// original design) — the address set the driver actually reconciles against.
func (s Snapshot) Primary() []net.Addr {
	return append([]net.Addr(nil), s.addrs[:s.primary]...)
}

// Equal reports whether two snapshots contain the same primary addresses.
func (s Snapshot) Equal(other Snapshot) bool {
	a, b := addrSet(s.Primary()), addrSet(other.Primary())
	if len(a) != len(b) {
		return false
	}
	for k := range a {
		if _, ok := b[k]; !ok {
			return false
		}
	}
	return true
}

// Diff compares the primary views of s (the new snapshot) and prev (the
// current one) and returns the addresses to retire (present in prev, absent
// in s) and to add (present in s, absent in prev), keyed by addr.String().
func (s Snapshot) Diff(prev Snapshot) (retired, added map[string]net.Addr) {
	curSet := addrSet(s.Primary())
	prevSet := addrSet(prev.Primary())

	retired = make(map[string]net.Addr)
	for k, a := range prevSet {
		if _, ok := curSet[k]; !ok {
			retired[k] = a
		}
	}
	added = make(map[string]net.Addr)
	for k, a := range curSet {
		if _, ok := prevSet[k]; !ok {
			added[k] = a
		}
	}
	return retired, added
}

func addrSet(addrs []net.Addr) map[string]net.Addr {
	m := make(map[string]net.Addr, len(addrs))
	for _, a := range addrs {
		m[a.String()] = a
	}
	return m
}

// AddressSource is a lazy, push-style, infallible sequence of Snapshots.
//
// Next returns (zero, false) when there is no update available right now
// (the driver should keep using the current snapshot) — this is distinct
// from end-of-stream, reported by Closed. Next must never block; sources
// that watch an external system (DNS, a file, a service registry) should
// buffer their latest snapshot and have Next drain it non-blockingly.
type AddressSource interface {
	// Next returns the newest available snapshot, or (zero, false) if
	// nothing new has arrived since the last call.
	Next() (Snapshot, bool)
	// Closed reports whether the source has permanently stopped producing
	// snapshots. Once true, it stays true.
	Closed() bool
}
