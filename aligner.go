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

// aligner decides which address to connect to next so that the number of
// outstanding (pending + established) connections stays as uniform as
// possible across the known address set. It is the component that makes the
// pool "uniform" rather than weighted: no host is starved while any other
// host is under-provisioned, and blacklisted hosts are skipped without being
// dropped from the plan.
type aligner struct {
	// order is the stable iteration order of known addresses, rotated by
	// cursor on every get so that ties are broken round-robin rather than
	// always favoring the same address. Keys keep their relative position
	// across updates; newly added keys are appended in map iteration order,
	// so the order is not derived from the snapshot's own address order.
	order  []string
	addrs  map[string]net.Addr
	counts map[string]int
	cursor int
}

// newAligner creates an empty aligner.
func newAligner() *aligner {
	return &aligner{
		addrs:  make(map[string]net.Addr),
		counts: make(map[string]int),
	}
}

// update reconciles the aligner's known-address set against a snapshot diff:
// retired addresses are intersected with what's known and dropped; added
// addresses are inserted with an outstanding count of zero.
func (a *aligner) update(added, retired map[string]net.Addr) {
	for key := range retired {
		if _, ok := a.addrs[key]; !ok {
			continue
		}
		delete(a.addrs, key)
		delete(a.counts, key)
	}
	for key, addr := range added {
		if _, ok := a.addrs[key]; ok {
			continue
		}
		a.addrs[key] = addr
		a.counts[key] = 0
	}
	a.rebuildOrder()
}

func (a *aligner) rebuildOrder() {
	order := make([]string, 0, len(a.addrs))
	// Preserve relative order of keys already present, append new ones at
	// the end, so the round-robin cursor doesn't reshuffle unrelated hosts
	// every time the snapshot changes.
	seen := make(map[string]bool, len(a.order))
	for _, key := range a.order {
		if _, ok := a.addrs[key]; ok && !seen[key] {
			order = append(order, key)
			seen[key] = true
		}
	}
	for key := range a.addrs {
		if !seen[key] {
			order = append(order, key)
			seen[key] = true
		}
	}
	a.order = order
	if a.cursor >= len(a.order) {
		a.cursor = 0
	}
}

// put decrements the outstanding count for addr. It is a no-op if addr is no
// longer known (i.e. it was retired while a connection to it was still
// outstanding).
func (a *aligner) put(addr net.Addr) {
	key := addr.String()
	if _, ok := a.counts[key]; !ok {
		return
	}
	if a.counts[key] > 0 {
		a.counts[key]--
	}
}

// get chooses the next address to connect to: among known addresses whose
// outstanding count is strictly less than limit and for which isFailing
// returns false, it returns the one with the smallest outstanding count,
// breaking ties with a rotating cursor over the snapshot's stable order so
// repeated calls distribute connections evenly. On success it increments the
// chosen address's outstanding count before returning.
func (a *aligner) get(limit int, isFailing func(net.Addr) bool) (net.Addr, bool) {
	n := len(a.order)
	if n == 0 {
		return nil, false
	}

	bestIdx := -1
	bestCount := limit
	for i := 0; i < n; i++ {
		idx := (a.cursor + i) % n
		key := a.order[idx]
		addr, ok := a.addrs[key]
		if !ok {
			continue
		}
		if isFailing(addr) {
			continue
		}
		count := a.counts[key]
		if count >= limit {
			continue
		}
		if count < bestCount {
			bestCount = count
			bestIdx = idx
		}
	}
	if bestIdx < 0 {
		return nil, false
	}

	key := a.order[bestIdx]
	a.counts[key]++
	a.cursor = (bestIdx + 1) % n
	return a.addrs[key], true
}
