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
	"time"

	"github.com/google/uuid"
)

// handleCore is the single cell backing a ConnectionHandle. Everything that
// touches it after the connection is established — Send, Close, the
// bookkeeping fields — is only ever called by the driver's single owner
// goroutine, per the Sink contract that Send/Close must not block for long.
// Only the fields a concurrent connect-attempt goroutine needs (closed,
// cancel) are mutex-guarded; the rest are owner-goroutine-only.
type handleCore struct {
	mu sync.Mutex

	id   string
	addr net.Addr

	closed bool
	queued bool

	connected   bool
	sink        Sink
	connectedAt time.Time

	// cancel tears down an in-flight connect attempt when Close is called
	// before the connection is established. nil once the attempt resolves.
	cancel context.CancelFunc

	// report delivers a terminal outcome for this handle onto the driver's
	// futureSet. Close and Send call it directly when they end the
	// connection themselves (synchronously, on the owner goroutine); the
	// connect-attempt goroutine calls it for outcomes it resolves itself.
	report func(outcome)
}

func newHandleCore(addr net.Addr, report func(outcome)) *handleCore {
	return &handleCore{
		id:     uuid.NewString(),
		addr:   addr,
		report: report,
	}
}

// Controller is the driver's handle onto one connection or connect attempt.
type Controller struct {
	core *handleCore
}

// newHandle creates a fresh Controller for addr. report is the futureSet
// sink outcomes for this handle are delivered to.
func newHandle(addr net.Addr, report func(outcome)) *Controller {
	return &Controller{core: newHandleCore(addr, report)}
}

// Addr returns the address this connection (or connect attempt) targets.
func (c *Controller) Addr() net.Addr { return c.core.addr }

// ID returns the connection's identifier, used to correlate log lines and
// metrics across the connect attempt and the resulting live connection.
func (c *Controller) ID() string { return c.core.id }

// IsClosed reports whether Close has been called.
func (c *Controller) IsClosed() bool { return c.isClosed() }

func (c *Controller) isClosed() bool {
	c.core.mu.Lock()
	defer c.core.mu.Unlock()
	return c.core.closed
}

// setCancel attaches the cancel func of an in-flight connect attempt, so a
// concurrent Close can tear it down. Cleared once the attempt resolves.
func (c *Controller) setCancel(cancel context.CancelFunc) {
	c.core.mu.Lock()
	defer c.core.mu.Unlock()
	c.core.cancel = cancel
}

func (c *Controller) clearCancel() {
	c.core.mu.Lock()
	defer c.core.mu.Unlock()
	c.core.cancel = nil
}

// ConnectedAt returns the time the underlying connection was established.
// Zero until the handle has been promoted past a connect attempt.
func (c *Controller) ConnectedAt() time.Time {
	c.core.mu.Lock()
	defer c.core.mu.Unlock()
	return c.core.connectedAt
}

// setQueued sets the queued flag and returns its previous value. Only ever
// called by the owner goroutine, which is the sole mutator of the registry.
func (c *Controller) setQueued(v bool) bool {
	prev := c.core.queued
	c.core.queued = v
	return prev
}

// markConnected promotes a resolved connect attempt to a live connection,
// recording the sink it should push items onto from now on. Called by the
// owner goroutine while draining the outcomeKindConnected future.
func (c *Controller) markConnected(sink Sink) {
	c.core.mu.Lock()
	c.core.sink = sink
	c.core.connected = true
	c.core.connectedAt = time.Now()
	c.core.mu.Unlock()
}

// Send synchronously pushes item onto the connection. It must only be
// called by the owner goroutine, on a Controller it just dequeued via
// registry.next() — so no other party can be racing it for this handle's
// sink. A terminal failure closes the sink and reports exactly one
// outcomeKindDisconnected before returning the error; ErrSinkBusy leaves the
// connection open and simply asks the caller to try a different one.
func (c *Controller) Send(item Item) error {
	c.core.mu.Lock()
	if c.core.closed {
		c.core.mu.Unlock()
		return ErrClosed
	}
	sink := c.core.sink
	c.core.mu.Unlock()

	err := sink.Send(item)
	if err == nil || errors.Is(err, ErrSinkBusy) {
		return err
	}

	c.core.mu.Lock()
	if c.core.closed {
		c.core.mu.Unlock()
		return err
	}
	c.core.closed = true
	c.core.mu.Unlock()

	sink.Close()
	c.core.report(outcomeDisconnected(c, &SinkError{Addr: c.core.addr, Err: err}))
	return err
}

// Close is idempotent. It marks the handle closed, cancels an in-flight
// connect attempt if one is outstanding, and — if the connection was
// already established — closes the sink and reports a terminal outcome
// itself, since that work is safe to do synchronously on the owner
// goroutine. A still-connecting handle is left for its connect-attempt
// goroutine to report outcomeAborted once it notices ctx is done.
func (c *Controller) Close() {
	c.core.mu.Lock()
	if c.core.closed {
		c.core.mu.Unlock()
		return
	}
	c.core.closed = true
	cancel := c.core.cancel
	connected := c.core.connected
	sink := c.core.sink
	c.core.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if !connected {
		return
	}

	if err := sink.Close(); err != nil {
		c.core.report(outcomeDisconnected(c, &SinkError{Addr: c.core.addr, Err: err}))
		return
	}
	c.core.report(outcomeClosed(c))
}
