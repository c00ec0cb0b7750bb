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

// Package discovery provides connpool.AddressSource implementations: a
// fixed list, a periodically-resolved DNS name, and a live-reloaded file.
package discovery

import (
	"net"

	"github.com/edgeo-scada/connpool"
)

// StaticSource is an AddressSource that reports a single snapshot once and
// never updates again. It is useful for tests and fixed-topology
// deployments.
type StaticSource struct {
	snapshot connpool.Snapshot
	sent     bool
}

// NewStaticSource builds a StaticSource over addrs.
func NewStaticSource(addrs ...net.Addr) *StaticSource {
	return &StaticSource{snapshot: connpool.NewSnapshot(addrs...)}
}

// Next implements connpool.AddressSource.
func (s *StaticSource) Next() (connpool.Snapshot, bool) {
	if s.sent {
		return connpool.Snapshot{}, false
	}
	s.sent = true
	return s.snapshot, true
}

// Closed implements connpool.AddressSource. A StaticSource never ends.
func (s *StaticSource) Closed() bool { return false }
