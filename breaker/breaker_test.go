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

package breaker

import (
	"net"
	"testing"
	"time"
)

func addr(t *testing.T, s string) net.Addr {
	t.Helper()
	a, err := net.ResolveTCPAddr("tcp", s)
	if err != nil {
		t.Fatalf("ResolveTCPAddr: %v", err)
	}
	return a
}

func TestBlacklistOpensImmediatelyThenHalfOpens(t *testing.T) {
	bl := NewBlacklist()
	a := addr(t, "10.0.0.1:1")

	bl.Add(a, time.Now().Add(30*time.Millisecond))
	if !bl.IsFailing(a) {
		t.Fatal("expected addr to be failing right after Add")
	}

	time.Sleep(60 * time.Millisecond)
	if bl.IsFailing(a) {
		t.Fatal("expected addr to no longer be failing past its deadline (half-open)")
	}

	got, ok := bl.Poll()
	if !ok {
		t.Fatal("expected Poll to report the half-open address")
	}
	if got.String() != a.String() {
		t.Fatalf("Poll returned %s, want %s", got, a)
	}
}

func TestBlacklistNextDeadlineTracksOpenEntries(t *testing.T) {
	bl := NewBlacklist()
	if _, ok := bl.NextDeadline(); ok {
		t.Fatal("expected no deadline on an empty blacklist")
	}
	a := addr(t, "10.0.0.1:1")
	deadline := time.Now().Add(time.Minute)
	bl.Add(a, deadline)

	got, ok := bl.NextDeadline()
	if !ok {
		t.Fatal("expected a deadline")
	}
	if got.Before(time.Now()) {
		t.Fatal("expected deadline to be in the future")
	}
}
