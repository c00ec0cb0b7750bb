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
	"time"

	"golang.org/x/time/rate"
)

// Option is a functional option for configuring the pool driver.
type Option func(*Config)

// Config holds the pool driver's frozen-at-construction configuration.
type Config struct {
	// ConnLimit is the maximum number of concurrent (pending + established)
	// connections per address. Must be >= 1.
	ConnLimit int

	// ReconnectTimeout is the nominal reconnect delay; the effective delay
	// sampled on each connect failure is uniform in
	// [ReconnectTimeout/2, ReconnectTimeout*3/2). Must be >= 1ms.
	ReconnectTimeout time.Duration

	// MinHealthyDuration, if non-zero, causes a connection that disconnects
	// sooner than this after becoming established to be blacklisted as if
	// the connect attempt itself had failed. Default 0 disables this (the
	// original, unchanged behavior).
	MinHealthyDuration time.Duration

	// ConnectRateLimiter, if set, throttles calls into Connector.Connect
	// across the whole driver, guarding against connect storms when many
	// addresses are added to a snapshot at once.
	ConnectRateLimiter *rate.Limiter

	// Logger backs the default ErrorLog when none is supplied via WithErrorLog.
	Logger *slog.Logger

	errorLog  ErrorLog
	metrics   Metrics
	blacklist Blacklist
}

// defaultConfig returns a Config with the package defaults: ConnLimit 1,
// ReconnectTimeout 1s, no rate limiter, metrics discarded, and a slog-backed
// ErrorLog writing to the default logger.
func defaultConfig() Config {
	return Config{
		ConnLimit:        1,
		ReconnectTimeout: time.Second,
		Logger:           slog.Default(),
	}
}

// WithConnLimit sets the per-address connection limit.
func WithConnLimit(n int) Option {
	return func(c *Config) {
		c.ConnLimit = n
	}
}

// WithReconnectTimeout sets the nominal reconnect delay.
func WithReconnectTimeout(d time.Duration) Option {
	return func(c *Config) {
		c.ReconnectTimeout = d
	}
}

// WithMinHealthyDuration enables blacklisting of connections that disconnect
// before having been healthy for at least d.
func WithMinHealthyDuration(d time.Duration) Option {
	return func(c *Config) {
		c.MinHealthyDuration = d
	}
}

// WithConnectRateLimiter throttles the connect loop with lim.
func WithConnectRateLimiter(lim *rate.Limiter) Option {
	return func(c *Config) {
		c.ConnectRateLimiter = lim
	}
}

// WithLogger sets the logger backing the default ErrorLog.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Config) {
		c.Logger = logger
	}
}

// WithErrorLog overrides the ErrorLog collaborator entirely, ignoring Logger.
func WithErrorLog(log ErrorLog) Option {
	return func(c *Config) {
		c.errorLog = log
	}
}

// WithMetrics sets the Metrics collaborator.
func WithMetrics(m Metrics) Option {
	return func(c *Config) {
		c.metrics = m
	}
}

// WithBlacklist overrides the default heap-backed Blacklist, e.g. with a
// connpool/breaker.Blacklist for circuit-breaker semantics.
func WithBlacklist(b Blacklist) Option {
	return func(c *Config) {
		c.blacklist = b
	}
}

func (c *Config) validate() error {
	if c.ConnLimit < 1 {
		return ErrInvalidConfig
	}
	if c.ReconnectTimeout < time.Millisecond {
		return ErrInvalidConfig
	}
	return nil
}
