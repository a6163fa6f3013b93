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
	"os"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"gitlab.eurecom.fr/open-exposure/coresim/device-monitor/internal/adb"
	"gitlab.eurecom.fr/open-exposure/coresim/device-monitor/internal/device"
	"gitlab.eurecom.fr/open-exposure/coresim/device-monitor/internal/env"
	"gitlab.eurecom.fr/open-exposure/coresim/device-monitor/internal/notify"
	"gitlab.eurecom.fr/open-exposure/coresim/device-monitor/internal/platform"
)

const (
	BackendSimulator = "simulator"
	BackendAdb       = "adb"
)

type AppConfig struct {
	HttpVersion   uint16 `yaml:"httpVersion"`
	OamPort       uint16 `yaml:"oamPort"`
	MetricsPort   uint16 `yaml:"metricsPort"`
	InitOnStartup bool   `yaml:"initOnStartup"`
	/* Monitor configuration parameters */
	Monitor *MonitorConfig `yaml:"monitor"`
}

// MonitorConfig describes one monitor instance: where the handset state
// comes from and where snapshots go.
type MonitorConfig struct {
	Backend    string               `yaml:"backend" json:"backend"`
	BufferSize int                  `yaml:"bufferSize" json:"bufferSize"`
	Device     *device.DeviceConfig `yaml:"device,omitempty" json:"device,omitempty"`
	Adb        AdbConfig            `yaml:"adb" json:"adb"`
	History    HistoryConfig        `yaml:"history" json:"history"`
	Redis      notify.RedisConfig   `yaml:"redis" json:"redis"`
	Webhooks   notify.WebhookConfig `yaml:"webhooks" json:"webhooks"`
}

type AdbConfig struct {
	Binary       string                `yaml:"binary,omitempty" json:"binary,omitempty"`
	Serial       string                `yaml:"serial,omitempty" json:"serial,omitempty"`
	PollInterval time.Duration         `yaml:"pollInterval,omitempty" json:"pollInterval,omitempty"`
	Permissions  []platform.Permission `yaml:"permissions,omitempty" json:"permissions,omitempty"`
}

type HistoryConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Path    string `yaml:"path" json:"path"`
	// Retention bounds how long snapshots are kept; zero keeps everything.
	Retention time.Duration `yaml:"retention,omitempty" json:"retention,omitempty"`
}

func DefaultAppConfig() *AppConfig {
	return &AppConfig{
		HttpVersion: 1,
		OamPort:     8081,
		MetricsPort: 9090,
	}
}

func DefaultMonitorConfig() *MonitorConfig {
	dev := device.DefaultDeviceConfig()
	return &MonitorConfig{
		Backend:    BackendSimulator,
		BufferSize: 1,
		Device:     &dev,
		Adb:        AdbConfig{Binary: "adb", PollInterval: adb.DefaultPollInterval},
		History:    HistoryConfig{Path: "device-monitor.sqlite"},
		Redis:      notify.RedisConfig{Addr: "localhost:6379", Channel: notify.DefaultRedisChannel},
		Webhooks:   notify.DefaultWebhookConfig(),
	}
}

// withDefaults fills the fields a partial profile left empty.
func (c *MonitorConfig) withDefaults() *MonitorConfig {
	def := DefaultMonitorConfig()
	if c.Backend == "" {
		c.Backend = def.Backend
	}
	if c.Device == nil && c.Backend == BackendSimulator {
		c.Device = def.Device
	}
	if c.Adb.Binary == "" {
		c.Adb.Binary = def.Adb.Binary
	}
	if c.Adb.PollInterval <= 0 {
		c.Adb.PollInterval = def.Adb.PollInterval
	}
	if c.History.Path == "" {
		c.History.Path = def.History.Path
	}
	if c.Redis.Addr == "" {
		c.Redis.Addr = def.Redis.Addr
	}
	if c.Redis.Channel == "" {
		c.Redis.Channel = def.Redis.Channel
	}
	return c
}

func (c *MonitorConfig) Validate() error {
	switch c.Backend {
	case BackendSimulator:
		if c.Device == nil {
			return errors.New("simulator backend requires a device profile")
		}
		if err := c.Device.Validate(); err != nil {
			return errors.Wrap(err, "invalid device profile")
		}
	case BackendAdb:
	default:
		return errors.Errorf("unknown backend %q", c.Backend)
	}
	if c.BufferSize < 0 {
		return errors.Errorf("bufferSize must be non-negative, got %d", c.BufferSize)
	}
	if c.History.Enabled && c.History.Path == "" {
		return errors.New("history is enabled but no path is set")
	}
	if c.Redis.Enabled && c.Redis.Addr == "" {
		return errors.New("redis is enabled but no address is set")
	}
	return nil
}

// InitConfig reads the YAML file at configPath, or starts from defaults
// when configPath is empty, then applies DEVICE_MONITOR_* overrides.
func InitConfig(configPath string) (*AppConfig, error) {
	cfg := DefaultAppConfig()
	if configPath != "" {
		yamlFile, err := os.ReadFile(configPath)
		if err != nil {
			return nil, errors.Wrap(err, "cannot read config file")
		}
		if err := yaml.Unmarshal(yamlFile, cfg); err != nil {
			return nil, errors.Wrap(err, "cannot parse config file")
		}
	}
	if cfg.Monitor != nil {
		cfg.Monitor.withDefaults()
	}
	cfg.applyOverrides()

	if cfg.HttpVersion != 1 && cfg.HttpVersion != 2 {
		return nil, errors.Errorf("unsupported httpVersion %d", cfg.HttpVersion)
	}
	if cfg.InitOnStartup && cfg.Monitor == nil {
		return nil, errors.New("when initializing from startup, the monitor profile must be defined in config file")
	}
	if cfg.Monitor != nil {
		if err := cfg.Monitor.Validate(); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

func (cfg *AppConfig) applyOverrides() {
	cfg.OamPort = env.Uint16(env.OamPort, cfg.OamPort)
	backend, hasBackend := env.Lookup(env.Backend)
	serial, hasSerial := env.Lookup(env.AdbSerial)
	if !hasBackend && !hasSerial {
		return
	}
	if cfg.Monitor == nil {
		cfg.Monitor = DefaultMonitorConfig()
	}
	if hasBackend {
		cfg.Monitor.Backend = backend
	}
	if hasSerial {
		cfg.Monitor.Adb.Serial = serial
	}
	cfg.Monitor.withDefaults()
}

func (cfg *AppConfig) Dumps() string {
	d, err := yaml.Marshal(cfg)
	if err != nil {
		return "error: " + err.Error()
	}
	return string(d)
}
