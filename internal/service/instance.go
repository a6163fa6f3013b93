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

package service

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"gitlab.eurecom.fr/open-exposure/coresim/device-monitor/internal/adb"
	"gitlab.eurecom.fr/open-exposure/coresim/device-monitor/internal/device"
	"gitlab.eurecom.fr/open-exposure/coresim/device-monitor/internal/history"
	"gitlab.eurecom.fr/open-exposure/coresim/device-monitor/internal/models"
	"gitlab.eurecom.fr/open-exposure/coresim/device-monitor/internal/notify"
	"gitlab.eurecom.fr/open-exposure/coresim/device-monitor/internal/platform"
	"gitlab.eurecom.fr/open-exposure/coresim/device-monitor/internal/telephony"
)

const minPruneInterval = time.Minute

/* Monitor Instance Code */

// MonitorInstance binds one handset backend to the network repository and
// forwards every observed snapshot to the configured sinks.
type MonitorInstance struct {
	Id         string
	ctx        context.Context
	config     *MonitorConfig
	logger     zerolog.Logger
	Device     *device.Device
	adb        *adb.Backend
	platform   platform.Platform
	Repository *telephony.NetworkRepository
	History    *history.Store
	webhooks   *notify.WebhookRegistry
	redis      *notify.RedisPublisher
	hub        *notify.Hub

	runMutex  sync.Mutex
	runCancel context.CancelFunc
	runDone   chan struct{}

	latestMutex sync.RWMutex
	latest      *models.NetworkSnapshot
}

func NewMonitorInstance(ctx context.Context, config *MonitorConfig, webhooks *notify.WebhookRegistry, hub *notify.Hub) *MonitorInstance {
	id := uuid.NewString()
	return &MonitorInstance{
		Id:       id,
		ctx:      ctx,
		config:   config,
		logger:   log.With().Str("instance", id).Logger(),
		webhooks: webhooks,
		hub:      hub,
	}
}

// InitMonitorInstance brings up the backend and opens the sinks.
func (m *MonitorInstance) InitMonitorInstance() error {
	switch m.config.Backend {
	case BackendSimulator:
		dev, err := device.NewDevice(m.ctx, *m.config.Device)
		if err != nil {
			return errors.Wrap(err, "create simulated device")
		}
		if err := dev.PowerUp(); err != nil {
			return errors.Wrap(err, "power up simulated device")
		}
		m.Device = dev
		m.platform = dev.Platform()
	case BackendAdb:
		backend := adb.NewBackend(adb.BackendConfig{
			Binary:       m.config.Adb.Binary,
			Serial:       m.config.Adb.Serial,
			PollInterval: m.config.Adb.PollInterval,
			Permissions:  m.config.Adb.Permissions,
		})
		if err := backend.Ping(m.ctx); err != nil {
			return err
		}
		m.adb = backend
		m.platform = backend.Platform()
	default:
		return errors.Errorf("unknown backend %q", m.config.Backend)
	}

	m.Repository = telephony.NewNetworkRepository(m.platform,
		telephony.WithInstance(m.Id),
		telephony.WithBufferSize(m.config.BufferSize),
		telephony.WithLogger(m.logger))

	if m.config.History.Enabled {
		store, err := history.Open(m.config.History.Path)
		if err != nil {
			m.Close()
			return err
		}
		m.History = store
	}
	if m.config.Redis.Enabled {
		pub, err := notify.NewRedisPublisher(m.ctx, m.Id, m.config.Redis)
		if err != nil {
			m.Close()
			return err
		}
		m.redis = pub
	}

	m.logger.Info().Str("backend", m.config.Backend).Msg("monitor instance initialized")
	return nil
}

// Start opens a snapshot stream and forwards it until Stop.
func (m *MonitorInstance) Start() error {
	m.runMutex.Lock()
	defer m.runMutex.Unlock()
	if m.runCancel != nil {
		return errors.New("monitor instance already running")
	}

	ctx, cancel := context.WithCancel(m.ctx)
	snapshots, err := m.Repository.ObserveNetworkChanges(ctx)
	if err != nil {
		cancel()
		return err
	}
	m.runCancel = cancel
	m.runDone = make(chan struct{})
	go m.run(ctx, snapshots, m.runDone)

	m.logger.Info().Msg("starting monitor instance")
	return nil
}

func (m *MonitorInstance) run(ctx context.Context, snapshots <-chan models.NetworkSnapshot, done chan struct{}) {
	defer close(done)

	var prune <-chan time.Time
	if m.History != nil && m.config.History.Retention > 0 {
		ticker := time.NewTicker(max(m.config.History.Retention/10, minPruneInterval))
		defer ticker.Stop()
		prune = ticker.C
	}

	for {
		select {
		case snapshot, ok := <-snapshots:
			if !ok {
				return
			}
			m.setLatest(snapshot)
			if err := m.fanOut(ctx, snapshot); err != nil {
				m.logger.Warn().Err(err).Msg("snapshot delivery failed")
			}
		case <-prune:
			removed, err := m.History.Prune(ctx, time.Now().Add(-m.config.History.Retention))
			if err != nil {
				m.logger.Warn().Err(err).Msg("history prune failed")
				continue
			}
			m.logger.Debug().Int64("removed", removed).Msg("history pruned")
		}
	}
}

// fanOut hands the snapshot to every sink concurrently and returns the
// first error.
func (m *MonitorInstance) fanOut(ctx context.Context, snapshot models.NetworkSnapshot) error {
	m.logger.Debug().Str("connection", string(snapshot.Connection.Kind())).Int("sims", len(snapshot.Sims)).Msg("new snapshot")
	m.hub.Broadcast(snapshot)

	g, gctx := errgroup.WithContext(ctx)
	if m.History != nil {
		g.Go(func() error {
			return m.History.Record(gctx, m.Id, snapshot)
		})
	}
	if m.redis != nil {
		g.Go(func() error {
			return m.redis.Publish(gctx, snapshot)
		})
	}
	g.Go(func() error {
		return m.webhooks.Notify(gctx, snapshot)
	})
	return g.Wait()
}

func (m *MonitorInstance) setLatest(snapshot models.NetworkSnapshot) {
	m.latestMutex.Lock()
	defer m.latestMutex.Unlock()
	m.latest = &snapshot
}

// Latest returns the last forwarded snapshot, if any.
func (m *MonitorInstance) Latest() (models.NetworkSnapshot, bool) {
	m.latestMutex.RLock()
	defer m.latestMutex.RUnlock()
	if m.latest == nil {
		return models.NetworkSnapshot{}, false
	}
	return *m.latest, true
}

// Stop closes the snapshot stream and waits for the forwarder to exit.
func (m *MonitorInstance) Stop() error {
	m.runMutex.Lock()
	defer m.runMutex.Unlock()
	if m.runCancel == nil {
		return nil
	}
	m.runCancel()
	<-m.runDone
	m.runCancel = nil
	m.logger.Info().Msg("monitor instance stopped")
	return nil
}

// Close stops the instance and releases the backend and sinks.
func (m *MonitorInstance) Close() {
	_ = m.Stop()
	if m.Device != nil {
		m.Device.TurnOff()
	}
	if m.adb != nil {
		m.adb.Close()
	}
	if m.History != nil {
		if err := m.History.Close(); err != nil {
			m.logger.Warn().Err(err).Msg("could not close history store")
		}
	}
	if m.redis != nil {
		if err := m.redis.Close(); err != nil {
			m.logger.Warn().Err(err).Msg("could not close redis client")
		}
	}
}
