// Copyright 2025 EURECOM
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
//
// Contributors:
//   Giulio CAROTA
//   Thomas DU
//   Adlen KSENTINI

package main

import (
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"gitlab.eurecom.fr/open-exposure/coresim/device-monitor/internal/env"
)

var rootCmd = &cobra.Command{
	Use:   "device-monitor",
	Short: "Observe SIM subscriptions and the active data connection of a handset",
	Long: `device-monitor reports the SIM cards and the connection carrying internet
traffic of a simulated handset or an Android phone reached over ADB, and streams
every change as a snapshot to HTTP, WebSocket, webhook, Redis and SQLite consumers.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level, err := zerolog.ParseLevel(firstNonEmpty(rootLogLevel, env.String(env.LogLevel, "info")))
		if err != nil {
			return err
		}
		zerolog.SetGlobalLevel(level)
		return nil
	},
}

var (
	rootConfig   string
	rootBackend  string
	rootSerial   string
	rootLogLevel string
)

func init() {
	output := zerolog.ConsoleWriter{Out: os.Stderr}
	log.Logger = zerolog.New(output).With().Timestamp().Logger()
	_ = env.Ensure()

	rootCmd.PersistentFlags().StringVar(&rootConfig, "config", "", "YAML config file (overrides DEVICE_MONITOR_CONFIG)")
	rootCmd.PersistentFlags().StringVar(&rootBackend, "backend", "", "handset backend: simulator or adb")
	rootCmd.PersistentFlags().StringVar(&rootSerial, "serial", "", "ADB device serial")
	rootCmd.PersistentFlags().StringVar(&rootLogLevel, "log-level", "", "log level (debug, info, warn, error)")
	rootCmd.AddCommand(
		newServeCmd(),
		newWatchCmd(),
		newSimsCmd(),
		newConnectionCmd(),
		newHistoryCmd(),
	)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatal().Err(err).Msg("device-monitor command failed")
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
