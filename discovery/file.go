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
	"bufio"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"

	"github.com/edgeo-scada/connpool"
)

// FileSource watches a plain-text address list (one "host:port" per line,
// blank lines and "#"-prefixed comments ignored) and emits a new Snapshot
// whenever the file changes on disk. Editors typically replace a file
// rather than write it in place, so the watcher is armed on the containing
// directory and filters events down to the target file, same pattern as
// viper's own config-file watch.
type FileSource struct {
	path   string
	logger *slog.Logger

	mu      sync.Mutex
	latest  connpool.Snapshot
	pending bool

	closed  atomic.Bool
	watcher *fsnotify.Watcher
}

// NewFileSource creates a FileSource over path and performs an initial
// synchronous read so the first Next() call has a snapshot ready.
func NewFileSource(path string, logger *slog.Logger) (*FileSource, error) {
	if logger == nil {
		logger = slog.Default()
	}
	s := &FileSource{path: path, logger: logger}

	if err := s.reload(); err != nil {
		return nil, err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		watcher.Close()
		return nil, err
	}
	s.watcher = watcher
	go s.watch()
	return s, nil
}

func (s *FileSource) watch() {
	target := filepath.Clean(s.path)
	for {
		select {
		case ev, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != target {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if err := s.reload(); err != nil {
				s.logger.Warn("address file reload failed", slog.String("path", s.path), slog.Any("error", err))
			}
		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			s.logger.Warn("address file watch error", slog.Any("error", err))
		}
	}
}

func (s *FileSource) reload() error {
	f, err := os.Open(s.path)
	if err != nil {
		return err
	}
	defer f.Close()

	var addrs []net.Addr
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		addr, err := net.ResolveTCPAddr("tcp", line)
		if err != nil {
			s.logger.Warn("skipping malformed address line", slog.String("line", line), slog.Any("error", err))
			continue
		}
		addrs = append(addrs, addr)
	}
	if err := sc.Err(); err != nil {
		return err
	}

	snap := connpool.NewSnapshot(addrs...)
	s.mu.Lock()
	if !snap.Equal(s.latest) {
		s.latest = snap
		s.pending = true
	}
	s.mu.Unlock()
	return nil
}

// Next implements connpool.AddressSource.
func (s *FileSource) Next() (connpool.Snapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.pending {
		return connpool.Snapshot{}, false
	}
	s.pending = false
	return s.latest, true
}

// Closed implements connpool.AddressSource.
func (s *FileSource) Closed() bool { return s.closed.Load() }

// Stop closes the underlying watcher and marks the source closed.
func (s *FileSource) Stop() {
	if s.closed.CompareAndSwap(false, true) {
		s.watcher.Close()
	}
}
