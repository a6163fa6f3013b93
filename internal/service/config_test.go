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
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gitlab.eurecom.fr/open-exposure/coresim/device-monitor/internal/env"
)

const sampleConfig = `
httpVersion: 2
oamPort: 8181
metricsPort: 9191
initOnStartup: true
monitor:
  backend: simulator
  bufferSize: 4
  device:
    id: handset-1
    tickInterval: 2s
    permissions: [READ_PHONE_STATE]
    sims:
      - slot: 0
        subscriptionId: 1
        carrier: Beeline
        plmn: {mcc: "250", mnc: "99"}
        rat: LTE
  history:
    enabled: true
    path: /tmp/monitor.sqlite
    retention: 24h
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestInitConfig(t *testing.T) {
	cfg, err := InitConfig(writeConfig(t, sampleConfig))
	require.NoError(t, err)

	assert.Equal(t, uint16(2), cfg.HttpVersion)
	assert.Equal(t, uint16(8181), cfg.OamPort)
	assert.Equal(t, uint16(9191), cfg.MetricsPort)
	require.NotNil(t, cfg.Monitor)
	assert.Equal(t, 4, cfg.Monitor.BufferSize)
	require.NotNil(t, cfg.Monitor.Device)
	assert.Equal(t, 2*time.Second, cfg.Monitor.Device.TickInterval)
	assert.Equal(t, "Beeline", cfg.Monitor.Device.Sims[0].Carrier)
	assert.Equal(t, "250", cfg.Monitor.Device.Sims[0].Plmn.Mcc)
	assert.Equal(t, 24*time.Hour, cfg.Monitor.History.Retention)

	// defaults fill what the file left out
	assert.Equal(t, "adb", cfg.Monitor.Adb.Binary)
	assert.NotEmpty(t, cfg.Monitor.Redis.Channel)

	assert.Contains(t, cfg.Dumps(), "oamPort: 8181")
}

func TestInitConfigDefaultsWithoutFile(t *testing.T) {
	cfg, err := InitConfig("")
	require.NoError(t, err)
	assert.Equal(t, uint16(8081), cfg.OamPort)
	assert.Nil(t, cfg.Monitor)
}

func TestInitConfigRejectsInvalidFiles(t *testing.T) {
	_, err := InitConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = InitConfig(writeConfig(t, "initOnStartup: true\n"))
	assert.Error(t, err)

	_, err = InitConfig(writeConfig(t, "httpVersion: 3\n"))
	assert.Error(t, err)

	_, err = InitConfig(writeConfig(t, "monitor:\n  backend: bluetooth\n"))
	assert.Error(t, err)
}

func TestInitConfigEnvOverrides(t *testing.T) {
	t.Setenv(env.Prefix+env.OamPort, "9999")
	t.Setenv(env.Prefix+env.Backend, "adb")
	t.Setenv(env.Prefix+env.AdbSerial, "R58M123ABC")

	cfg, err := InitConfig("")
	require.NoError(t, err)
	assert.Equal(t, uint16(9999), cfg.OamPort)
	require.NotNil(t, cfg.Monitor)
	assert.Equal(t, BackendAdb, cfg.Monitor.Backend)
	assert.Equal(t, "R58M123ABC", cfg.Monitor.Adb.Serial)
}
