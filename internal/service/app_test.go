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
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gitlab.eurecom.fr/open-exposure/coresim/device-monitor/internal/device"
	"gitlab.eurecom.fr/open-exposure/coresim/device-monitor/internal/history"
	"gitlab.eurecom.fr/open-exposure/coresim/device-monitor/internal/models"
)

func testMonitorConfig(t *testing.T) *MonitorConfig {
	cfg := DefaultMonitorConfig()
	cfg.Device.TickInterval = 0
	cfg.History.Enabled = true
	cfg.History.Path = filepath.Join(t.TempDir(), "history.sqlite")
	return cfg
}

func newTestApp(t *testing.T) (*MonitorApp, *httptest.Server) {
	app := NewMonitorApp(DefaultAppConfig())
	srv := httptest.NewServer(app.Router())
	t.Cleanup(func() {
		srv.Close()
		_ = app.ResetMonitor()
	})
	return app, srv
}

func doRequest(t *testing.T, method, url, body string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestMonitorLifecycle(t *testing.T) {
	app, _ := newTestApp(t)

	assert.ErrorIs(t, app.StartMonitor(), ErrNotConfigured)
	assert.ErrorIs(t, app.StopMonitor(), ErrNotRunning)

	require.NoError(t, app.InitNewMonitor(testMonitorConfig(t)))
	assert.Equal(t, CONFIGURED, app.GetCurrentMonitorStatus().Status)
	assert.ErrorIs(t, app.InitNewMonitor(testMonitorConfig(t)), ErrAlreadyConfigured)

	require.NoError(t, app.StartMonitor())
	assert.Equal(t, STARTED, app.GetCurrentMonitorStatus().Status)

	instance, err := app.CurrentInstance()
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		_, ok := instance.Latest()
		return ok
	}, 2*time.Second, 10*time.Millisecond)

	// restart keeps the instance
	require.NoError(t, app.StartMonitor())
	require.NoError(t, app.StopMonitor())
	assert.Equal(t, STOPPED, app.GetCurrentMonitorStatus().Status)
	require.NoError(t, app.StartMonitor())

	require.NoError(t, app.ResetMonitor())
	_, err = app.CurrentInstance()
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestInitNewMonitorRejectsInvalidConfig(t *testing.T) {
	app, _ := newTestApp(t)
	assert.Error(t, app.InitNewMonitor(nil))
	assert.Error(t, app.InitNewMonitor(&MonitorConfig{Backend: "bluetooth"}))
	assert.Equal(t, STOPPED, app.GetCurrentMonitorStatus().Status)
}

func TestQueryAPIRequiresInstance(t *testing.T) {
	_, srv := newTestApp(t)
	for _, path := range []string{"/sims", "/connection", "/snapshot", "/history", "/device/status"} {
		resp := doRequest(t, http.MethodGet, srv.URL+apiPrefix+path, "")
		assert.Equal(t, http.StatusConflict, resp.StatusCode, path)
	}
}

func TestMonitorAPI(t *testing.T) {
	app, srv := newTestApp(t)
	app.config.Monitor = testMonitorConfig(t)

	resp := doRequest(t, http.MethodPost, srv.URL+apiPrefix+"/configure", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	status := MonitorStatusResponse{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&status))
	assert.Equal(t, CONFIGURED, status.Status)
	assert.Equal(t, BackendSimulator, status.Backend)

	resp = doRequest(t, http.MethodPost, srv.URL+apiPrefix+"/start", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = doRequest(t, http.MethodGet, srv.URL+apiPrefix+"/sims", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	sims := []models.SimCard{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&sims))
	require.Len(t, sims, 2)
	assert.Equal(t, "Orange F", sims[0].CarrierName)
	assert.Equal(t, "20801", sims[0].OperatorCode)

	resp = doRequest(t, http.MethodGet, srv.URL+apiPrefix+"/connection", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := map[string]any{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "mobile", body["kind"])
	assert.Equal(t, "4G (LTE)", body["networkLabel"])

	resp = doRequest(t, http.MethodPost, srv.URL+apiPrefix+"/device/wifi", `{"ssid":"lab"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	devStatus := device.Status{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&devStatus))
	assert.Equal(t, "lab", devStatus.WifiSsid)

	instance, err := app.CurrentInstance()
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		snap, ok := instance.Latest()
		return ok && snap.Connection.Kind() == models.ConnectionKindWifi
	}, 2*time.Second, 10*time.Millisecond)

	resp = doRequest(t, http.MethodGet, srv.URL+apiPrefix+"/snapshot?cached=true", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	snap := models.NetworkSnapshot{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&snap))
	assert.Equal(t, models.ConnectionKindWifi, snap.Connection.Kind())

	require.Eventually(t, func() bool {
		resp, err := http.Get(srv.URL + apiPrefix + "/history?limit=10")
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		entries := []history.Entry{}
		if resp.StatusCode != http.StatusOK || json.NewDecoder(resp.Body).Decode(&entries) != nil {
			return false
		}
		return len(entries) >= 2 && entries[0].Snapshot.Connection.Kind() == models.ConnectionKindWifi
	}, 2*time.Second, 20*time.Millisecond)

	resp = doRequest(t, http.MethodGet, srv.URL+apiPrefix+"/history?limit=zero", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = doRequest(t, http.MethodPut, srv.URL+apiPrefix+"/device/sims/7/rat", `{"rat":"NR"}`)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = doRequest(t, http.MethodPut, srv.URL+apiPrefix+"/device/permissions/CAMERA", `{"granted":true}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = doRequest(t, http.MethodPost, srv.URL+apiPrefix+"/stop", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = doRequest(t, http.MethodGet, srv.URL+apiPrefix+"/status", "")
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&status))
	assert.Equal(t, STOPPED, status.Status)
}

func TestSubscriptionsAreServed(t *testing.T) {
	_, srv := newTestApp(t)
	resp := doRequest(t, http.MethodPost, srv.URL+apiPrefix+"/subscriptions", `{"callbackUri":"http://127.0.0.1:9/cb"}`)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = doRequest(t, http.MethodGet, srv.URL+apiPrefix+"/subscriptions", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
