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
	"errors"
	"fmt"
	"net"
)

// Common errors returned by the pool driver and its collaborators.
var (
	// ErrPoolDone names the terminal condition of a pool that has entered
	// closing and drained every outstanding future. Offer and Poll report
	// that condition as the Done status; the driver does not return this
	// error value itself.
	ErrPoolDone = errors.New("connpool: pool is done")

	// ErrAddressSourceClosed names the AddressSource reaching end-of-stream.
	// The driver records that event as ReasonAddressSourceClosed and begins
	// graceful shutdown; it does not return this error value itself.
	ErrAddressSourceClosed = errors.New("connpool: address source closed")

	// ErrInvalidConfig is returned by New when the configuration violates an
	// invariant (ConnLimit < 1, ReconnectTimeout < 1ms, nil connector or
	// address source).
	ErrInvalidConfig = errors.New("connpool: invalid configuration")

	// ErrSinkBusy is the sentinel a Sink implementation should return from
	// Send when it cannot accept an item synchronously. The driver treats
	// this as pushback (round-robin advance), not a connection failure.
	ErrSinkBusy = errors.New("connpool: sink busy")

	// ErrClosed is returned by an already-closed Controller's Send.
	ErrClosed = errors.New("connpool: connection closed")
)

// ConnectError wraps a failure returned by Connector.Connect for a given
// address. It is delivered to ErrorLog.ConnectionError, never to the caller
// of Offer.
type ConnectError struct {
	Addr net.Addr
	Err  error
}

// Error implements the error interface.
func (e *ConnectError) Error() string {
	return fmt.Sprintf("connpool: connect to %s: %v", e.Addr, e.Err)
}

// Unwrap supports errors.Is/errors.As against the underlying cause.
func (e *ConnectError) Unwrap() error { return e.Err }

// SinkError wraps a failure returned by a live connection's Sink during Send
// or Close. It is delivered to ErrorLog.SinkError.
type SinkError struct {
	Addr net.Addr
	Err  error
}

// Error implements the error interface.
func (e *SinkError) Error() string {
	return fmt.Sprintf("connpool: sink error for %s: %v", e.Addr, e.Err)
}

// Unwrap supports errors.Is/errors.As against the underlying cause.
func (e *SinkError) Unwrap() error { return e.Err }

// ShutdownReason classifies why the pool began graceful shutdown.
type ShutdownReason int

const (
	// ReasonExplicitClose is recorded when Close was called by the owner.
	ReasonExplicitClose ShutdownReason = iota
	// ReasonAddressSourceClosed is recorded when the AddressSource ended.
	ReasonAddressSourceClosed
)

// String implements fmt.Stringer.
func (r ShutdownReason) String() string {
	switch r {
	case ReasonExplicitClose:
		return "explicit close"
	case ReasonAddressSourceClosed:
		return "address source closed"
	default:
		return "unknown"
	}
}
