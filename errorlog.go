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
	"log/slog"
	"net"
)

// ErrorLog is the pure side-channel collaborator for reporting failures.
// Every method must be non-blocking.
type ErrorLog interface {
	// PoolShuttingDown is called exactly once, when the driver transitions
	// from Open to Closing.
	PoolShuttingDown(reason ShutdownReason)
	// ConnectionError is called when Connector.Connect fails for addr.
	ConnectionError(addr net.Addr, err error)
	// SinkError is called when a live connection's Sink fails during Send
	// or Close.
	SinkError(addr net.Addr, err error)
}

// slogErrorLog is the default ErrorLog, backed by a *slog.Logger, mirroring
// the teacher's convention of a logger field threaded through every
// component (see client.go's clientOptions.logger).
type slogErrorLog struct {
	logger *slog.Logger
}

// newSlogErrorLog wraps logger as an ErrorLog. A nil logger falls back to
// slog.Default().
func newSlogErrorLog(logger *slog.Logger) *slogErrorLog {
	if logger == nil {
		logger = slog.Default()
	}
	return &slogErrorLog{logger: logger}
}

func (l *slogErrorLog) PoolShuttingDown(reason ShutdownReason) {
	l.logger.Info("pool shutting down", slog.String("reason", reason.String()))
}

func (l *slogErrorLog) ConnectionError(addr net.Addr, err error) {
	l.logger.Warn("connection error", slog.String("addr", addr.String()), slog.Any("error", err))
}

func (l *slogErrorLog) SinkError(addr net.Addr, err error) {
	l.logger.Warn("sink error", slog.String("addr", addr.String()), slog.Any("error", err))
}
