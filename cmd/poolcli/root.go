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
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile string

	addressFile string
	connLimit   int
	reconnect   time.Duration
	verbose     bool

	logger *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "poolcli",
	Short: "Drive and inspect a uniform outbound connection pool",
	Long: `poolcli runs a connpool.Driver against a plain-text address list and
reports its steady-state behavior.

Examples:
  # Maintain 2 connections per address, reading targets from addrs.txt
  poolcli run -f addrs.txt -c 2

  # Print the effective configuration (flags, env, config file)
  poolcli config`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := slog.LevelInfo
		if verbose {
			level = slog.LevelDebug
		}
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $HOME/.poolcli.yaml)")
	rootCmd.PersistentFlags().StringVarP(&addressFile, "file", "f", "", "address list file to watch")
	rootCmd.PersistentFlags().IntVarP(&connLimit, "conn-limit", "c", 1, "connections to maintain per address")
	rootCmd.PersistentFlags().DurationVarP(&reconnect, "reconnect", "r", time.Second, "nominal reconnect delay")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose logging")

	viper.BindPFlag("file", rootCmd.PersistentFlags().Lookup("file"))
	viper.BindPFlag("conn_limit", rootCmd.PersistentFlags().Lookup("conn-limit"))
	viper.BindPFlag("reconnect", rootCmd.PersistentFlags().Lookup("reconnect"))

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(configCmd)
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			return
		}
		viper.AddConfigPath(home)
		viper.AddConfigPath(".")
		viper.SetConfigName(".poolcli")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("POOLCLI")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		if verbose {
			fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
		}
	}
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Printf("file:       %s\n", viper.GetString("file"))
		fmt.Printf("conn_limit: %d\n", viper.GetInt("conn_limit"))
		fmt.Printf("reconnect:  %s\n", viper.GetDuration("reconnect"))
		return nil
	},
}
