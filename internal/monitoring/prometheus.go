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

package monitoring

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

var (
	SnapshotsEmitted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "snapshots_emitted_total",
			Help: "Total number of network snapshots emitted to observers",
		},
		[]string{"instance"},
	)

	ConnectionState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "connection_state",
			Help: "Current connection kind, 1 for the active kind and 0 otherwise",
		},
		[]string{"instance", "kind"},
	)

	ActiveSims = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "active_sims",
			Help: "Number of active SIM subscriptions in the last snapshot",
		},
		[]string{"instance"},
	)

	NetworkObservers = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "network_observers",
			Help: "Number of open snapshot streams",
		},
		[]string{"instance"},
	)

	PlatformFaults = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "platform_faults_total",
			Help: "Platform calls that failed and were degraded to defaults",
		},
		[]string{"component"},
	)

	WebhookNotifications = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webhook_notifications_total",
			Help: "Webhook notifications by result",
		},
		[]string{"result"},
	)
)

func init() {
	prometheus.MustRegister(SnapshotsEmitted, ConnectionState, ActiveSims, NetworkObservers, PlatformFaults, WebhookNotifications)
}

func StartMetricsServer(port uint16) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	server := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux}

	log.Info().Uint16("port", port).Msg("starting prometheus metrics server")
	go func() {
		err := server.ListenAndServe()
		if err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("could not start metrics server")
		}
	}()
	return server
}
