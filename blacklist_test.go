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
	"testing"
	"time"
)

func TestBlacklistIsFailingUntilExpiry(t *testing.T) {
	bl := NewBlacklist()
	addr := tcpAddr(t, "10.0.0.1:1")

	bl.Add(addr, time.Now().Add(20*time.Millisecond))
	if !bl.IsFailing(addr) {
		t.Fatal("expected addr to be failing immediately after Add")
	}
	if _, ok := bl.Poll(); ok {
		t.Fatal("expected Poll to report nothing before the deadline")
	}

	time.Sleep(40 * time.Millisecond)

	got, ok := bl.Poll()
	if !ok {
		t.Fatal("expected Poll to report the expired address")
	}
	if got.String() != addr.String() {
		t.Errorf("Poll returned %s, want %s", got, addr)
	}
	if bl.IsFailing(addr) {
		t.Fatal("expected addr to no longer be failing after Poll")
	}
	if _, ok := bl.Poll(); ok {
		t.Fatal("expected a second Poll to report nothing")
	}
}

func TestBlacklistReAddRefreshesDeadline(t *testing.T) {
	bl := NewBlacklist()
	addr := tcpAddr(t, "10.0.0.1:1")

	bl.Add(addr, time.Now().Add(10*time.Millisecond))
	bl.Add(addr, time.Now().Add(200*time.Millisecond))

	time.Sleep(30 * time.Millisecond)
	if _, ok := bl.Poll(); ok {
		t.Fatal("expected the refreshed deadline to still be in the future")
	}
	if !bl.IsFailing(addr) {
		t.Fatal("expected addr to still be failing")
	}
}

func TestBlacklistNextDeadline(t *testing.T) {
	bl := NewBlacklist()
	if _, ok := bl.NextDeadline(); ok {
		t.Fatal("expected no deadline on an empty blacklist")
	}

	addrA := tcpAddr(t, "10.0.0.1:1")
	addrB := tcpAddr(t, "10.0.0.2:1")
	later := time.Now().Add(time.Hour)
	sooner := time.Now().Add(time.Minute)
	bl.Add(addrA, later)
	bl.Add(addrB, sooner)

	got, ok := bl.NextDeadline()
	if !ok {
		t.Fatal("expected a deadline")
	}
	if !got.Equal(sooner) {
		t.Errorf("NextDeadline returned %v, want the sooner deadline %v", got, sooner)
	}
}
