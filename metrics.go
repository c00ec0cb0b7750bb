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

import "sync/atomic"

// Counter is a simple atomic counter.
type Counter struct {
	value int64
}

// Add adds delta to the counter.
func (c *Counter) Add(delta int64) {
	atomic.AddInt64(&c.value, delta)
}

// Value returns the current counter value.
func (c *Counter) Value() int64 {
	return atomic.LoadInt64(&c.value)
}

// Metrics is the monotonic-counter collaborator. Every method must be
// non-blocking; the driver calls these inline with its own bookkeeping.
type Metrics interface {
	ConnectionAttempt()
	Connection()
	ConnectionError()
	ConnectionAbort()
	Disconnect()
	BlacklistAdd()
	BlacklistRemove()
}

// NopMetrics discards every observation. It is the default when no Metrics
// collaborator is supplied via WithMetrics.
type NopMetrics struct{}

func (NopMetrics) ConnectionAttempt() {}
func (NopMetrics) Connection()        {}
func (NopMetrics) ConnectionError()   {}
func (NopMetrics) ConnectionAbort()   {}
func (NopMetrics) Disconnect()        {}
func (NopMetrics) BlacklistAdd()      {}
func (NopMetrics) BlacklistRemove()   {}

// CounterMetrics is a Metrics implementation backed by atomic Counters, for
// callers who want in-process visibility without wiring a full metrics
// backend. Collect returns a snapshot suitable for logging or expvar-style
// exposition.
type CounterMetrics struct {
	ConnectionAttempts Counter
	Connections        Counter
	ConnectionErrors   Counter
	ConnectionAborts   Counter
	Disconnects        Counter
	BlacklistAdds      Counter
	BlacklistRemoves   Counter
}

// NewCounterMetrics creates a zeroed CounterMetrics.
func NewCounterMetrics() *CounterMetrics {
	return &CounterMetrics{}
}

func (m *CounterMetrics) ConnectionAttempt() { m.ConnectionAttempts.Add(1) }
func (m *CounterMetrics) Connection()        { m.Connections.Add(1) }
func (m *CounterMetrics) ConnectionError()   { m.ConnectionErrors.Add(1) }
func (m *CounterMetrics) ConnectionAbort()   { m.ConnectionAborts.Add(1) }
func (m *CounterMetrics) Disconnect()        { m.Disconnects.Add(1) }
func (m *CounterMetrics) BlacklistAdd()      { m.BlacklistAdds.Add(1) }
func (m *CounterMetrics) BlacklistRemove()   { m.BlacklistRemoves.Add(1) }

// Collect returns a snapshot of all counters, compatible with expvar/JSON
// exposition (mirrors the teacher's Metrics.Collect convention).
func (m *CounterMetrics) Collect() map[string]int64 {
	return map[string]int64{
		"connection_attempt": m.ConnectionAttempts.Value(),
		"connection":         m.Connections.Value(),
		"connection_error":   m.ConnectionErrors.Value(),
		"connection_abort":   m.ConnectionAborts.Value(),
		"disconnect":         m.Disconnects.Value(),
		"blacklist_add":      m.BlacklistAdds.Value(),
		"blacklist_remove":   m.BlacklistRemoves.Value(),
	}
}
