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

package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/edgeo-scada/connpool"
	"github.com/edgeo-scada/connpool/discovery"
	"github.com/edgeo-scada/connpool/transport"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the pool against an address file until interrupted",
	RunE:  runRun,
}

func runRun(cmd *cobra.Command, args []string) error {
	file := viper.GetString("file")
	if file == "" {
		return fmt.Errorf("poolcli run: --file is required")
	}

	source, err := discovery.NewFileSource(file, logger)
	if err != nil {
		return fmt.Errorf("poolcli run: %w", err)
	}
	defer source.Stop()

	metrics := connpool.NewCounterMetrics()
	driver, err := connpool.New(
		transport.NewTCPConnector(),
		source,
		connpool.WithConnLimit(viper.GetInt("conn_limit")),
		connpool.WithReconnectTimeout(viper.GetDuration("reconnect")),
		connpool.WithLogger(logger),
		connpool.WithMetrics(metrics),
	)
	if err != nil {
		return fmt.Errorf("poolcli run: %w", err)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	statsTicker := time.NewTicker(5 * time.Second)
	defer statsTicker.Stop()

	heartbeat := []byte("poolcli-heartbeat")
	status, pending := connpool.NotReady, connpool.Item(heartbeat)
	closing := false

	for {
		select {
		case <-sigCh:
			if !closing {
				logger.Info("shutting down")
				closing = true
			}
			status = driver.Close()
			if status == connpool.Ready || status == connpool.Done {
				return nil
			}
		case <-ticker.C:
			if closing {
				status = driver.Poll()
				if status == connpool.Done {
					return nil
				}
				continue
			}
			status, pending = driver.Offer(pending)
			if status == connpool.Ready {
				pending = heartbeat
			}
		case <-statsTicker.C:
			logStats(metrics)
		}
	}
}

func logStats(m *connpool.CounterMetrics) {
	for k, v := range m.Collect() {
		logger.Info("pool stat", slog.String("metric", k), slog.Int64("value", v))
	}
}
