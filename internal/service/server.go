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
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"gitlab.eurecom.fr/open-exposure/coresim/device-monitor/internal/history"
	"gitlab.eurecom.fr/open-exposure/coresim/device-monitor/internal/models"
)

const apiPrefix = "/device-monitor/v1"

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn().Err(err).Msg("could not encode response")
	}
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, ErrNotConfigured), errors.Is(err, ErrAlreadyConfigured), errors.Is(err, ErrNotRunning):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

func (app *MonitorApp) handleInitMonitor(w http.ResponseWriter, r *http.Request) {
	var config *MonitorConfig

	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	switch {
	case len(body) > 0:
		config = &MonitorConfig{}
		if err := json.Unmarshal(body, config); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}
	case app.config.Monitor != nil:
		config = app.config.Monitor
	default:
		config = DefaultMonitorConfig()
	}

	if err := app.InitNewMonitor(config); err != nil {
		http.Error(w, err.Error(), statusFor(err))
		return
	}
	writeJSON(w, http.StatusOK, app.GetCurrentMonitorStatus())
}

func (app *MonitorApp) handleStartMonitor(w http.ResponseWriter, r *http.Request) {
	if err := app.StartMonitor(); err != nil {
		http.Error(w, err.Error(), statusFor(err))
		return
	}
	writeJSON(w, http.StatusOK, app.GetCurrentMonitorStatus())
}

func (app *MonitorApp) handleStatusMonitor(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, app.GetCurrentMonitorStatus())
}

func (app *MonitorApp) handleStopMonitor(w http.ResponseWriter, r *http.Request) {
	if err := app.StopMonitor(); err != nil {
		http.Error(w, err.Error(), statusFor(err))
		return
	}
	writeJSON(w, http.StatusOK, app.GetCurrentMonitorStatus())
}

func (app *MonitorApp) handleResetMonitor(w http.ResponseWriter, r *http.Request) {
	if err := app.ResetMonitor(); err != nil {
		http.Error(w, err.Error(), statusFor(err))
		return
	}
	writeJSON(w, http.StatusOK, app.GetCurrentMonitorStatus())
}

/* query API */

func (app *MonitorApp) handleSims(w http.ResponseWriter, r *http.Request) {
	instance, err := app.CurrentInstance()
	if err != nil {
		http.Error(w, err.Error(), statusFor(err))
		return
	}
	sims, err := instance.Repository.GetSimCards(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusOK, sims)
}

func (app *MonitorApp) handleConnection(w http.ResponseWriter, r *http.Request) {
	instance, err := app.CurrentInstance()
	if err != nil {
		http.Error(w, err.Error(), statusFor(err))
		return
	}
	conn, err := instance.Repository.GetActiveConnection(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	data, err := models.MarshalConnectionState(conn)
	if err != nil {
		http.Error(w, "could not encode response", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(data)
}

// handleSnapshot computes a fresh snapshot, or returns the last forwarded
// one with ?cached=true.
func (app *MonitorApp) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	instance, err := app.CurrentInstance()
	if err != nil {
		http.Error(w, err.Error(), statusFor(err))
		return
	}
	if cached, _ := strconv.ParseBool(r.URL.Query().Get("cached")); cached {
		snapshot, ok := instance.Latest()
		if !ok {
			http.Error(w, "no snapshot forwarded yet", http.StatusNotFound)
			return
		}
		writeJSON(w, http.StatusOK, snapshot)
		return
	}
	snapshot, err := instance.Repository.Snapshot(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusOK, snapshot)
}

// handleHistory lists recorded snapshots: newest first with ?limit=N, or
// oldest first with ?since=<RFC3339>.
func (app *MonitorApp) handleHistory(w http.ResponseWriter, r *http.Request) {
	instance, err := app.CurrentInstance()
	if err != nil {
		http.Error(w, err.Error(), statusFor(err))
		return
	}
	if instance.History == nil {
		http.Error(w, "history is not enabled", http.StatusNotFound)
		return
	}

	var entries []history.Entry
	query := r.URL.Query()
	if since := query.Get("since"); since != "" {
		t, err := time.Parse(time.RFC3339, since)
		if err != nil {
			http.Error(w, "invalid since parameter", http.StatusBadRequest)
			return
		}
		entries, err = instance.History.Since(r.Context(), t)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
	} else {
		limit := history.DefaultLimit
		if l := query.Get("limit"); l != "" {
			limit, err = strconv.Atoi(l)
			if err != nil || limit <= 0 {
				http.Error(w, "invalid limit parameter", http.StatusBadRequest)
				return
			}
		}
		entries, err = instance.History.Latest(r.Context(), limit)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
	}
	writeJSON(w, http.StatusOK, entries)
}

func (app *MonitorApp) Router() *mux.Router {
	router := mux.NewRouter()
	api := router.PathPrefix(apiPrefix).Subrouter()

	api.HandleFunc("/configure", app.handleInitMonitor).Methods(http.MethodPost)
	api.HandleFunc("/start", app.handleStartMonitor).Methods(http.MethodPost)
	api.HandleFunc("/status", app.handleStatusMonitor).Methods(http.MethodGet)
	api.HandleFunc("/stop", app.handleStopMonitor).Methods(http.MethodPost)
	api.HandleFunc("/reset", app.handleResetMonitor).Methods(http.MethodPost)

	api.HandleFunc("/sims", app.handleSims).Methods(http.MethodGet)
	api.HandleFunc("/connection", app.handleConnection).Methods(http.MethodGet)
	api.HandleFunc("/snapshot", app.handleSnapshot).Methods(http.MethodGet)
	api.HandleFunc("/history", app.handleHistory).Methods(http.MethodGet)
	api.Handle("/stream", app.hub)

	app.webhooks.RegisterNorthboundAPIs(api)
	app.registerDeviceAPIs(api.PathPrefix("/device").Subrouter())
	return router
}

func (app *MonitorApp) startHttpServer() error {
	var handler http.Handler = app.Router()
	if app.config.HttpVersion == 2 {
		handler = h2c.NewHandler(handler, &http2.Server{})
	}

	listener, err := net.Listen("tcp", fmt.Sprintf(":%d", app.config.OamPort))
	if err != nil {
		return errors.Wrapf(err, "could not listen on oam port %d", app.config.OamPort)
	}
	app.server = &http.Server{Handler: handler}

	app.wg.Add(1)
	go func() {
		defer app.wg.Done()
		log.Info().Uint16("port", app.config.OamPort).Uint16("httpVersion", app.config.HttpVersion).Msg("serving monitor api")
		if err := app.server.Serve(listener); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("oam server failed")
		}
	}()
	return nil
}

func (app *MonitorApp) stopHttpServer() {
	if app.server != nil {
		if err := app.server.Close(); err != nil {
			log.Warn().Err(err).Msg("could not stop oam server")
		}
	}
	if app.metricsServer != nil {
		if err := app.metricsServer.Close(); err != nil {
			log.Warn().Err(err).Msg("could not stop metrics server")
		}
	}
}
