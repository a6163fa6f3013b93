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

// Package service runs the device monitor daemon and its OAM API.
package service

import (
	"context"
	"net/http"
	"sync"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"gitlab.eurecom.fr/open-exposure/coresim/device-monitor/internal/monitoring"
	"gitlab.eurecom.fr/open-exposure/coresim/device-monitor/internal/notify"
)

/* Monitor Controller code */

type MonitorStatus string

const (
	CONFIGURED MonitorStatus = "CONFIGURED"
	STARTED    MonitorStatus = "STARTED"
	STOPPED    MonitorStatus = "STOPPED"
	ERROR      MonitorStatus = "ERROR"
)

var (
	ErrNotConfigured     = errors.New("please configure the monitor via /configure")
	ErrAlreadyConfigured = errors.New("could not initialize the monitor instance, please stop or reset the current instance")
	ErrNotRunning        = errors.New("no running instance")
)

type MonitorStatusResponse struct {
	Status   MonitorStatus `json:"status"`
	Instance string        `json:"instance,omitempty"`
	Backend  string        `json:"backend,omitempty"`
}

type MonitorApp struct {
	currentInstance *MonitorInstance
	status          MonitorStatus
	instanceMutex   sync.RWMutex
	server          *http.Server
	metricsServer   *http.Server
	wg              sync.WaitGroup
	ctx             context.Context
	config          *AppConfig
	webhooks        *notify.WebhookRegistry
	hub             *notify.Hub
}

func NewMonitorApp(config *AppConfig) *MonitorApp {
	if config == nil {
		config = DefaultAppConfig()
	}
	webhookCfg := notify.DefaultWebhookConfig()
	if config.Monitor != nil {
		webhookCfg = config.Monitor.Webhooks
	}
	return &MonitorApp{
		status:   STOPPED,
		ctx:      context.Background(),
		config:   config,
		webhooks: notify.NewWebhookRegistry("device-monitor", webhookCfg),
		hub:      notify.NewHub(),
	}
}

func (app *MonitorApp) InitNewMonitor(config *MonitorConfig) error {
	if config == nil {
		return errors.New("no configuration provided, could not initialize")
	}
	config.withDefaults()
	if err := config.Validate(); err != nil {
		return err
	}

	app.instanceMutex.Lock()
	defer app.instanceMutex.Unlock()

	if app.currentInstance != nil {
		return ErrAlreadyConfigured
	}

	instance := NewMonitorInstance(app.ctx, config, app.webhooks, app.hub)
	if err := instance.InitMonitorInstance(); err != nil {
		app.status = ERROR
		return errors.Wrap(err, "could not initialize the monitor instance")
	}

	app.currentInstance = instance
	app.status = CONFIGURED
	return nil
}

func (app *MonitorApp) StartMonitor() error {
	app.instanceMutex.Lock()
	defer app.instanceMutex.Unlock()

	if app.currentInstance == nil {
		return ErrNotConfigured
	}

	// restart when already started
	if app.status == STARTED {
		if err := app.currentInstance.Stop(); err != nil {
			log.Warn().Err(err).Msg("error stopping instance for restart")
		}
	}

	if err := app.currentInstance.Start(); err != nil {
		app.status = ERROR
		return errors.Wrap(err, "could not start the monitor instance")
	}

	app.status = STARTED
	return nil
}

func (app *MonitorApp) StopMonitor() error {
	app.instanceMutex.Lock()
	defer app.instanceMutex.Unlock()

	if app.status == STOPPED || app.currentInstance == nil {
		return ErrNotRunning
	}

	if app.status == STARTED {
		if err := app.currentInstance.Stop(); err != nil {
			return errors.Wrap(err, "could not stop the monitor instance")
		}
	}

	// keep the instance so it can be restarted
	app.status = STOPPED
	return nil
}

// ResetMonitor releases the current instance so a new one can be configured.
func (app *MonitorApp) ResetMonitor() error {
	app.instanceMutex.Lock()
	defer app.instanceMutex.Unlock()

	if app.currentInstance == nil {
		return ErrNotConfigured
	}
	app.currentInstance.Close()
	app.currentInstance = nil
	app.status = STOPPED
	return nil
}

func (app *MonitorApp) GetCurrentMonitorStatus() MonitorStatusResponse {
	app.instanceMutex.RLock()
	defer app.instanceMutex.RUnlock()

	resp := MonitorStatusResponse{Status: app.status}
	if app.currentInstance != nil {
		resp.Instance = app.currentInstance.Id
		resp.Backend = app.currentInstance.config.Backend
	}
	return resp
}

// CurrentInstance returns the configured instance or ErrNotConfigured.
func (app *MonitorApp) CurrentInstance() (*MonitorInstance, error) {
	app.instanceMutex.RLock()
	defer app.instanceMutex.RUnlock()
	if app.currentInstance == nil {
		return nil, ErrNotConfigured
	}
	return app.currentInstance, nil
}

// Run serves the OAM and metrics APIs until ctx is cancelled.
func (app *MonitorApp) Run(ctx context.Context) error {
	var cancel context.CancelFunc
	app.ctx, cancel = context.WithCancel(ctx)
	defer cancel()

	log.Info().Msgf("running config: \n%s", app.config.Dumps())

	if app.config.InitOnStartup {
		log.Info().Msg("bootstraping monitor instance")
		if err := app.InitNewMonitor(app.config.Monitor); err != nil {
			return errors.Wrap(err, "could not initialize the monitor on startup")
		}
		if err := app.StartMonitor(); err != nil {
			return errors.Wrap(err, "could not start the monitor on startup")
		}
	}

	if err := app.startHttpServer(); err != nil {
		return err
	}
	app.metricsServer = monitoring.StartMetricsServer(app.config.MetricsPort)

	<-app.ctx.Done()
	log.Info().Msg("terminating...")

	app.stopHttpServer()
	app.wg.Wait()

	app.instanceMutex.Lock()
	if app.currentInstance != nil {
		app.currentInstance.Close()
		app.currentInstance = nil
	}
	app.status = STOPPED
	app.instanceMutex.Unlock()
	app.hub.Close()
	return nil
}
