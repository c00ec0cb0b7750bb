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

// outcomeKind tags the shape of a resolved activity reported on the future
// set's channel.
type outcomeKind int

const (
	outcomeKindConnected outcomeKind = iota
	outcomeKindAborted
	outcomeKindClosed
	outcomeKindCantConnect
	outcomeKindDisconnected
)

// outcome normalizes every asynchronous activity the driver waits on —
// pending connect attempts and running connection tasks alike — into one
// tagged value so a single channel can fan them all in.
type outcome struct {
	kind outcomeKind
	addr net.Addr

	ctr  *Controller
	sink Sink

	err error
}

func outcomeConnected(ctr *Controller, sink Sink) outcome {
	return outcome{kind: outcomeKindConnected, addr: ctr.Addr(), ctr: ctr, sink: sink}
}

func outcomeAborted(ctr *Controller) outcome {
	return outcome{kind: outcomeKindAborted, addr: ctr.Addr(), ctr: ctr}
}

func outcomeClosed(ctr *Controller) outcome {
	return outcome{kind: outcomeKindClosed, addr: ctr.Addr(), ctr: ctr}
}

func outcomeCantConnect(ctr *Controller, err error) outcome {
	return outcome{kind: outcomeKindCantConnect, addr: ctr.Addr(), ctr: ctr, err: err}
}

func outcomeDisconnected(ctr *Controller, err error) outcome {
	return outcome{kind: outcomeKindDisconnected, addr: ctr.Addr(), ctr: ctr, err: err}
}

// futureSetChanCapacity is sized generously so that a connect goroutine, or
// the owner goroutine reporting its own synchronous Send/Close failure,
// never blocks delivering a terminal outcome. It is not a hard limit on
// concurrency — only on how many already-resolved outcomes may queue up
// unread.
const futureSetChanCapacity = 256

// futureSet is the Go-channel realization of the source design's
// FuturesUnordered: a fan-in of outstanding asynchronous activity, drained
// non-blockingly by the owner goroutine. count tracks outstanding activities
// (pending connects plus running connections) independently of the channel's
// buffer, since a running connection that has not yet produced a terminal
// outcome occupies no channel slot.
type futureSet struct {
	ch    chan outcome
	count int
}

func newFutureSet() *futureSet {
	return &futureSet{ch: make(chan outcome, futureSetChanCapacity)}
}

// spawn records that one more activity is outstanding. Call before starting
// the goroutine that will eventually report on report().
func (fs *futureSet) spawn() {
	fs.count++
}

// report is the channel-send side, used by connect-attempt goroutines and by
// Controller.Send/Close when they resolve a connection's outcome themselves.
func (fs *futureSet) report(o outcome) {
	fs.ch <- o
}

// drainOne performs one non-blocking receive. ok is false if nothing is
// currently queued.
func (fs *futureSet) drainOne() (outcome, bool) {
	select {
	case o := <-fs.ch:
		return o, true
	default:
		return outcome{}, false
	}
}

// empty reports whether there are no outstanding activities left at all
// (neither queued outcomes nor activities yet to report one).
func (fs *futureSet) empty() bool {
	return fs.count == 0
}

// len reports the number of outstanding activities, used for observability.
func (fs *futureSet) len() int {
	return fs.count
}
