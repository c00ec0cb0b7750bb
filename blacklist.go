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
	"container/heap"
	"net"
	"time"
)

// Blacklist is the time-bounded suppression component: once an address is
// blacklisted, IsFailing reports true until its deadline passes, at which
// point Poll reports the expiry exactly once.
type Blacklist interface {
	// Add suppresses connect attempts to addr until deadline. Re-adding an
	// already-present address refreshes its deadline.
	Add(addr net.Addr, deadline time.Time)
	// IsFailing reports whether addr is currently suppressed.
	IsFailing(addr net.Addr) bool
	// Poll returns the next address whose deadline has passed, and true, or
	// (nil, false) if nothing has expired yet. Call repeatedly to drain all
	// expirations.
	Poll() (net.Addr, bool)
	// NextDeadline returns the earliest outstanding deadline and true, or
	// the zero time and false if the blacklist is empty. The driver does
	// not call it; expirations are picked up whenever Offer or Poll runs.
	NextDeadline() (time.Time, bool)
}

// blacklistEntry is one node of the heap, keyed by deadline.
type blacklistEntry struct {
	addr     net.Addr
	deadline time.Time
	index    int
}

// deadlineHeap implements container/heap.Interface ordered by deadline.
type deadlineHeap []*blacklistEntry

func (h deadlineHeap) Len() int            { return len(h) }
func (h deadlineHeap) Less(i, j int) bool  { return h[i].deadline.Before(h[j].deadline) }
func (h deadlineHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i]; h[i].index = i; h[j].index = j }
func (h *deadlineHeap) Push(x interface{}) {
	e := x.(*blacklistEntry)
	e.index = len(*h)
	*h = append(*h, e)
}
func (h *deadlineHeap) Pop() interface{} {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	e.index = -1
	*h = old[:n-1]
	return e
}

// heapBlacklist is the default Blacklist implementation: a min-heap keyed by
// deadline plus a membership map, exactly the design described for this
// component — container/heap is the idiomatic stdlib primitive for a
// narrowly-scoped delay queue like this one (see DESIGN.md).
type heapBlacklist struct {
	heap    deadlineHeap
	byAddr  map[string]*blacklistEntry
}

// NewBlacklist creates an empty, heap-backed Blacklist.
func NewBlacklist() Blacklist {
	return &heapBlacklist{
		byAddr: make(map[string]*blacklistEntry),
	}
}

func (b *heapBlacklist) Add(addr net.Addr, deadline time.Time) {
	key := addr.String()
	if e, ok := b.byAddr[key]; ok {
		e.deadline = deadline
		heap.Fix(&b.heap, e.index)
		return
	}
	e := &blacklistEntry{addr: addr, deadline: deadline}
	b.byAddr[key] = e
	heap.Push(&b.heap, e)
}

func (b *heapBlacklist) IsFailing(addr net.Addr) bool {
	_, ok := b.byAddr[addr.String()]
	return ok
}

func (b *heapBlacklist) Poll() (net.Addr, bool) {
	if len(b.heap) == 0 {
		return nil, false
	}
	if time.Now().Before(b.heap[0].deadline) {
		return nil, false
	}
	e := heap.Pop(&b.heap).(*blacklistEntry)
	delete(b.byAddr, e.addr.String())
	return e.addr, true
}

func (b *heapBlacklist) NextDeadline() (time.Time, bool) {
	if len(b.heap) == 0 {
		return time.Time{}, false
	}
	return b.heap[0].deadline, true
}
