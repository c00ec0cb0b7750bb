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
	"math/rand"
	"net"
	"time"

	"golang.org/x/time/rate"
)

// Driver is the uniform outbound connection pool's push-sink core. It
// maintains an approximately equal number of live connections to every
// address currently resolved for a logical service, and dispatches items
// round-robin across them with cooperative backpressure.
//
// Offer, Poll, and Close must be called by a single owner goroutine, never
// concurrently with one another — the same single-threaded-executor
// discipline the source design assumes. Once a connection is established,
// pushing to it and closing it both happen synchronously on that same owner
// goroutine (Sink.Send/Close must not block for long), so the registry and
// handle bookkeeping are never mutated from two goroutines at once. The
// only background goroutines are connect attempts in flight; they touch
// nothing but their own handle cell and report their outcome on the
// future-outcome channel.
type Driver struct {
	connLimit          int
	reconnectTimeout   time.Duration
	minHealthyDuration time.Duration
	rateLimiter        *rate.Limiter

	connector     Connector
	addressSource AddressSource
	errorLog      ErrorLog
	metrics       Metrics

	futures    *futureSet
	registry   *connectionRegistry
	blacklist  Blacklist
	aligner    *aligner

	currentSnapshot Snapshot
	closing         bool
}

// New constructs a Driver. connector creates connections on demand;
// addressSource supplies the resolved address snapshots to balance across.
func New(connector Connector, addressSource AddressSource, opts ...Option) (*Driver, error) {
	if connector == nil || addressSource == nil {
		return nil, ErrInvalidConfig
	}
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	errorLog := cfg.errorLog
	if errorLog == nil {
		errorLog = newSlogErrorLog(cfg.Logger)
	}
	metrics := cfg.metrics
	if metrics == nil {
		metrics = NopMetrics{}
	}
	bl := cfg.blacklist
	if bl == nil {
		bl = NewBlacklist()
	}

	d := &Driver{
		connLimit:          cfg.ConnLimit,
		reconnectTimeout:   cfg.ReconnectTimeout,
		minHealthyDuration: cfg.MinHealthyDuration,
		rateLimiter:        cfg.ConnectRateLimiter,

		connector:     connector,
		addressSource: addressSource,
		errorLog:      errorLog,
		metrics:       metrics,

		futures:   newFutureSet(),
		registry:  newConnectionRegistry(),
		blacklist: bl,
		aligner:   newAligner(),
	}

	d.checkAddressUpdates()
	return d, nil
}

// Offer attempts to place item onto a connection. Precondition: the caller
// received Ready from the previous call (or this is the first call). On
// NotReady or Done the returned Item is item unchanged — ownership returns
// to the caller.
func (d *Driver) Offer(item Item) (Status, Item) {
	if !d.closing {
		d.checkAddressUpdates()
	}
	if d.closing {
		d.drainFutures()
		if d.futures.empty() {
			return Done, item
		}
		return NotReady, item
	}

	// Controllers whose sink answered ErrSinkBusy stay open; they rejoin the
	// back of the ready queue once this call returns.
	var busy []*Controller
	defer func() {
		for _, ctr := range busy {
			if !ctr.isClosed() {
				d.registry.add(ctr)
			}
		}
	}()

outer:
	for {
		for {
			ctr, ok := d.registry.next()
			if !ok {
				break
			}
			if ctr.isClosed() {
				continue
			}
			// Send runs synchronously on this goroutine — the owner — so
			// there is no handoff race: either it succeeds and ctr rejoins
			// the ready queue right here, or it is busy and is set aside
			// until Offer returns, or it fails and the resulting outcome is
			// drained before we try the next ctr.
			err := ctr.Send(item)
			if err == nil {
				d.registry.add(ctr)
				d.drainFutures()
				return Ready, nil
			}
			if errors.Is(err, ErrSinkBusy) {
				busy = append(busy, ctr)
			}
			d.drainFutures()
		}

		d.drainFutures()
		if d.registry.hasReady() {
			continue outer
		}

		for {
			addr, ok := d.aligner.get(d.connLimit, d.blacklist.IsFailing)
			if ok {
				d.startConnect(addr)
				d.drainFutures()
				if d.registry.hasReady() {
					continue outer
				}
				if !d.blacklist.IsFailing(addr) {
					return NotReady, item
				}
				continue
			}

			if d.drainBlacklistExpirations() {
				continue
			}
			return NotReady, item
		}
	}
}

// Poll reports whether the driver has made unsolicited progress. The pool is
// a continuous conduit, not a batch flush, so it always reports NotReady
// while open — there is no "fully flushed" state to reach, only more that
// could arrive later.
func (d *Driver) Poll() Status {
	if d.closing {
		d.drainFutures()
		if d.futures.empty() {
			return Done
		}
		return NotReady
	}

	d.drainFutures()
	d.drainBlacklistExpirations()
	return NotReady
}

// Close begins graceful shutdown. It is idempotent: every call closes every
// live or pending Controller, drains whatever has already resolved, and
// reports Ready once nothing remains outstanding.
func (d *Driver) Close() Status {
	d.beginClosing(ReasonExplicitClose)
	d.drainFutures()
	if d.futures.empty() {
		return Ready
	}
	return NotReady
}

func (d *Driver) beginClosing(reason ShutdownReason) {
	if d.closing {
		return
	}
	d.closing = true
	d.errorLog.PoolShuttingDown(reason)
	for _, ctr := range d.registry.allControllers() {
		ctr.Close()
	}
}

// checkAddressUpdates implements the address-update reconciliation: drain
// the AddressSource down to its latest snapshot, retire/add addresses
// against the aligner, and begin graceful shutdown if the source has ended.
func (d *Driver) checkAddressUpdates() {
	var latest Snapshot
	changed := false
	for {
		snap, ok := d.addressSource.Next()
		if !ok {
			break
		}
		latest = snap
		changed = true
	}

	if d.addressSource.Closed() {
		d.beginClosing(ReasonAddressSourceClosed)
		return
	}
	if !changed || latest.Equal(d.currentSnapshot) {
		return
	}

	retired, added := latest.Diff(d.currentSnapshot)
	for _, ctr := range d.registry.allControllers() {
		if _, ok := retired[ctr.Addr().String()]; ok {
			ctr.Close()
		}
	}
	d.aligner.update(added, retired)
	d.currentSnapshot = latest
}

// startConnect launches a connect attempt to addr: a fresh handle is
// tracked in the registry (but not yet queued — a Controller joins the
// ready queue once its connection is established), and a goroutine reports
// the outcome on the future channel.
func (d *Driver) startConnect(addr net.Addr) {
	ctr := newHandle(addr, d.futures.report)
	d.registry.track(ctr)
	d.futures.spawn()
	d.metrics.ConnectionAttempt()

	ctx, cancel := context.WithCancel(context.Background())
	ctr.setCancel(cancel)

	go func() {
		if d.rateLimiter != nil {
			if err := d.rateLimiter.Wait(ctx); err != nil {
				ctr.clearCancel()
				if ctr.isClosed() {
					d.futures.report(outcomeAborted(ctr))
					return
				}
				d.futures.report(outcomeCantConnect(ctr, err))
				return
			}
		}

		sink, err := d.connector.Connect(ctx, addr)
		ctr.clearCancel()

		if err != nil {
			if ctr.isClosed() {
				d.futures.report(outcomeAborted(ctr))
				return
			}
			d.futures.report(outcomeCantConnect(ctr, err))
			return
		}

		if ctr.isClosed() {
			sink.Close()
			d.futures.report(outcomeAborted(ctr))
			return
		}

		d.futures.report(outcomeConnected(ctr, sink))
	}()
}

func (d *Driver) drainFutures() {
	for {
		o, ok := d.futures.drainOne()
		if !ok {
			return
		}
		d.handleOutcome(o)
	}
}

func (d *Driver) handleOutcome(o outcome) {
	switch o.kind {
	case outcomeKindConnected:
		if o.ctr.isClosed() {
			// Closed after the connect attempt resolved but before this
			// outcome was drained: release the sink and count it as aborted.
			o.sink.Close()
			d.futures.count--
			d.registry.untrack(o.ctr)
			d.aligner.put(o.addr)
			d.metrics.ConnectionAbort()
			return
		}
		o.ctr.markConnected(o.sink)
		d.metrics.Connection()
		// A freshly connected handle joins the ready queue immediately, so
		// it can receive its first item without waiting for anything else.
		d.registry.add(o.ctr)

	case outcomeKindAborted:
		d.futures.count--
		d.registry.untrack(o.ctr)
		d.aligner.put(o.addr)
		d.metrics.ConnectionAbort()

	case outcomeKindClosed:
		d.futures.count--
		d.registry.untrack(o.ctr)
		d.aligner.put(o.addr)
		d.metrics.Disconnect()

	case outcomeKindCantConnect:
		d.futures.count--
		d.registry.untrack(o.ctr)
		d.aligner.put(o.addr)
		d.metrics.ConnectionError()
		d.errorLog.ConnectionError(o.addr, o.err)
		d.blacklistAddr(o.addr)

	case outcomeKindDisconnected:
		d.futures.count--
		d.registry.untrack(o.ctr)
		d.aligner.put(o.addr)
		d.metrics.Disconnect()
		d.errorLog.SinkError(o.addr, o.err)
		if d.minHealthyDuration > 0 {
			connectedAt := o.ctr.ConnectedAt()
			if !connectedAt.IsZero() && time.Since(connectedAt) < d.minHealthyDuration {
				d.blacklistAddr(o.addr)
			}
		}
	}
}

func (d *Driver) blacklistAddr(addr net.Addr) {
	d.blacklist.Add(addr, time.Now().Add(d.jitteredReconnectDelay()))
	d.metrics.BlacklistAdd()
}

// jitteredReconnectDelay samples uniformly from [reconnectTimeout/2,
// reconnectTimeout*3/2), spreading reconnect attempts across a failed
// address's peers instead of herding them onto the same deadline.
func (d *Driver) jitteredReconnectDelay() time.Duration {
	min := d.reconnectTimeout / 2
	span := d.reconnectTimeout // (3/2 - 1/2) * timeout == timeout
	if span <= 0 {
		return min
	}
	return min + time.Duration(rand.Int63n(int64(span)))
}

func (d *Driver) drainBlacklistExpirations() bool {
	any := false
	for {
		_, ok := d.blacklist.Poll()
		if !ok {
			break
		}
		d.metrics.BlacklistRemove()
		any = true
	}
	return any
}
