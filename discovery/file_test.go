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

package discovery

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestFileSourceInitialReadAndReload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "addrs.txt")
	if err := os.WriteFile(path, []byte("127.0.0.1:1\n# comment\n127.0.0.1:2\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	s, err := NewFileSource(path, nil)
	if err != nil {
		t.Fatalf("NewFileSource: %v", err)
	}
	defer s.Stop()

	snap, ok := s.Next()
	if !ok {
		t.Fatal("expected an initial snapshot")
	}
	if len(snap.All()) != 2 {
		t.Fatalf("initial snapshot has %d addresses, want 2", len(snap.All()))
	}

	if err := os.WriteFile(path, []byte("127.0.0.1:1\n"), 0o644); err != nil {
		t.Fatalf("WriteFile (update): %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if snap, ok := s.Next(); ok {
			if len(snap.All()) != 1 {
				t.Fatalf("updated snapshot has %d addresses, want 1", len(snap.All()))
			}
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("timed out waiting for the file watcher to pick up the update")
}
