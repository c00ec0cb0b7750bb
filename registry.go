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

// connectionRegistry holds the round-robin ready queue plus the full live
// set of Controllers. queue is always a subset of all; a Controller only
// ever occupies one queue slot at a time (Add panics if it's already queued
// or already closed, mirroring the source design's assertions).
type connectionRegistry struct {
	queue []*Controller
	all   map[*Controller]struct{}
}

func newConnectionRegistry() *connectionRegistry {
	return &connectionRegistry{
		all: make(map[*Controller]struct{}),
	}
}

// track adds ctr to the live set without queuing it. Used when a connect
// attempt is started: the Controller exists and is tracked, but joins the
// ready queue only once its connection is established (see driver.go).
func (r *connectionRegistry) track(ctr *Controller) {
	r.all[ctr] = struct{}{}
}

// untrack removes ctr from the live set entirely, once its connection task
// has ended.
func (r *connectionRegistry) untrack(ctr *Controller) {
	delete(r.all, ctr)
}

// add enqueues ctr onto the back of the ready queue. It is a programming
// error to add a closed or already-queued Controller.
func (r *connectionRegistry) add(ctr *Controller) {
	if ctr.isClosed() {
		panic("connpool: add of closed controller")
	}
	if ctr.setQueued(true) {
		panic("connpool: add of already-queued controller")
	}
	r.queue = append(r.queue, ctr)
}

// hasReady reports whether the ready queue is non-empty.
func (r *connectionRegistry) hasReady() bool {
	return len(r.queue) > 0
}

// next pops the front Controller off the ready queue, clearing its queued
// flag. Closed controllers are not filtered here; the caller (driver) skips
// them during dispatch.
func (r *connectionRegistry) next() (*Controller, bool) {
	if len(r.queue) == 0 {
		return nil, false
	}
	ctr := r.queue[0]
	r.queue = r.queue[1:]
	ctr.setQueued(false)
	return ctr, true
}

// allControllers returns a point-in-time copy of the live set, safe to range
// over while the driver mutates the registry (e.g. closing retired
// addresses).
func (r *connectionRegistry) allControllers() []*Controller {
	out := make([]*Controller, 0, len(r.all))
	for ctr := range r.all {
		out = append(out, ctr)
	}
	return out
}

// size reports len(all), used to assert |registry.all| == pendingConnects +
// liveConnections.
func (r *connectionRegistry) size() int {
	return len(r.all)
}
