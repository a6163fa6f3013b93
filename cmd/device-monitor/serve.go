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
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"gitlab.eurecom.fr/open-exposure/coresim/device-monitor/internal/env"
	"gitlab.eurecom.fr/open-exposure/coresim/device-monitor/internal/service"
)

// loadConfig reads the config file and applies the global flags.
func loadConfig() (*service.AppConfig, error) {
	cfg, err := service.InitConfig(firstNonEmpty(rootConfig, env.String(env.ConfigPath, "")))
	if err != nil {
		return nil, err
	}
	if rootBackend == "" && rootSerial == "" {
		return cfg, nil
	}
	if cfg.Monitor == nil {
		cfg.Monitor = service.DefaultMonitorConfig()
	}
	if rootBackend != "" {
		cfg.Monitor.Backend = rootBackend
	}
	if rootSerial != "" {
		cfg.Monitor.Adb.Serial = rootSerial
	}
	return cfg, cfg.Monitor.Validate()
}

func newServeCmd() *cobra.Command {
	var flagInit bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the monitor daemon and its OAM API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if flagInit {
				if cfg.Monitor == nil {
					cfg.Monitor = service.DefaultMonitorConfig()
				}
				cfg.InitOnStartup = true
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return service.NewMonitorApp(cfg).Run(ctx)
		},
	}
	cmd.Flags().BoolVar(&flagInit, "init", false, "configure and start the monitor on startup")
	return cmd
}
