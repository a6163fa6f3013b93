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
	"context"
	"encoding/json"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"gitlab.eurecom.fr/open-exposure/coresim/device-monitor/internal/history"
	"gitlab.eurecom.fr/open-exposure/coresim/device-monitor/internal/models"
	"gitlab.eurecom.fr/open-exposure/coresim/device-monitor/internal/notify"
	"gitlab.eurecom.fr/open-exposure/coresim/device-monitor/internal/service"
)

// openInstance initializes a monitor instance without sinks, for one-shot
// and streaming queries.
func openInstance(ctx context.Context) (*service.MonitorInstance, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	monitor := cfg.Monitor
	if monitor == nil {
		monitor = service.DefaultMonitorConfig()
	}
	local := *monitor
	local.History.Enabled = false
	local.Redis.Enabled = false

	instance := service.NewMonitorInstance(ctx, &local, notify.NewWebhookRegistry("device-monitor", local.Webhooks), notify.NewHub())
	if err := instance.InitMonitorInstance(); err != nil {
		return nil, err
	}
	return instance, nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newWatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Print every network snapshot as a JSON line until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			instance, err := openInstance(ctx)
			if err != nil {
				return err
			}
			defer instance.Close()

			snapshots, err := instance.Repository.ObserveNetworkChanges(ctx)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(os.Stdout)
			for snapshot := range snapshots {
				if err := enc.Encode(snapshot); err != nil {
					return err
				}
			}
			log.Info().Msg("watch stopped")
			return nil
		},
	}
}

func newSimsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sims",
		Short: "List the active SIM cards",
		RunE: func(cmd *cobra.Command, args []string) error {
			instance, err := openInstance(cmd.Context())
			if err != nil {
				return err
			}
			defer instance.Close()

			sims, err := instance.Repository.GetSimCards(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(sims)
		},
	}
}

func newConnectionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "connection",
		Short: "Show the connection carrying internet traffic",
		RunE: func(cmd *cobra.Command, args []string) error {
			instance, err := openInstance(cmd.Context())
			if err != nil {
				return err
			}
			defer instance.Close()

			conn, err := instance.Repository.GetActiveConnection(cmd.Context())
			if err != nil {
				return err
			}
			data, err := models.MarshalConnectionState(conn)
			if err != nil {
				return err
			}
			return printJSON(json.RawMessage(data))
		},
	}
}

func newHistoryCmd() *cobra.Command {
	var (
		flagDb    string
		flagLimit int
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Print the latest recorded snapshots, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := flagDb
			if path == "" {
				cfg, err := loadConfig()
				if err != nil {
					return err
				}
				path = service.DefaultMonitorConfig().History.Path
				if cfg.Monitor != nil {
					path = cfg.Monitor.History.Path
				}
			}
			store, err := history.Open(path)
			if err != nil {
				return err
			}
			defer store.Close()

			entries, err := store.Latest(cmd.Context(), flagLimit)
			if err != nil {
				return err
			}
			return printJSON(entries)
		},
	}
	cmd.Flags().StringVar(&flagDb, "db", "", "history database path (defaults to the configured one)")
	cmd.Flags().IntVar(&flagLimit, "limit", 20, "number of snapshots to print")
	return cmd
}
