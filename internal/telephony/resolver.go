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

package telephony

import (
	"context"

	"github.com/pkg/errors"

	"gitlab.eurecom.fr/open-exposure/coresim/device-monitor/internal/models"
	"gitlab.eurecom.fr/open-exposure/coresim/device-monitor/internal/monitoring"
	"gitlab.eurecom.fr/open-exposure/coresim/device-monitor/internal/platform"
)

// ConnectionResolver decides which transport carries internet traffic.
type ConnectionResolver struct {
	permissions   platform.PermissionGate
	subscriptions platform.SubscriptionService
	connectivity  platform.ConnectivityService
	sims          *SimEnumerator
	opts          options
}

func NewConnectionResolver(p platform.Platform, sims *SimEnumerator, opts ...Option) *ConnectionResolver {
	if sims == nil {
		sims = NewSimEnumerator(p, opts...)
	}
	return &ConnectionResolver{
		permissions:   p.Permissions,
		subscriptions: p.Subscriptions,
		connectivity:  p.Connectivity,
		sims:          sims,
		opts:          newOptions(opts),
	}
}

// Resolve inspects the active network. Wi-Fi wins over cellular when both
// are asserted. A cellular network whose default data subscription does not
// match an active SIM resolves to UnknownConnection, as does any fault.
func (r *ConnectionResolver) Resolve(ctx context.Context) (state models.ConnectionState) {
	defer func() {
		if rec := recover(); rec != nil {
			r.fault(errors.Errorf("panic: %v", rec))
			state = models.UnknownConnection{}
		}
	}()

	state, err := r.resolve(ctx)
	if err != nil {
		r.fault(err)
		return models.UnknownConnection{}
	}
	return state
}

func (r *ConnectionResolver) resolve(ctx context.Context) (models.ConnectionState, error) {
	network, err := r.connectivity.ActiveNetwork(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "get active network")
	}
	if network == nil {
		return models.NoConnection{}, nil
	}

	caps, err := r.connectivity.NetworkCapabilities(ctx, *network)
	if err != nil {
		return nil, errors.Wrapf(err, "get capabilities of network %d", network.Id)
	}
	if caps == nil || !caps.HasInternet {
		return models.NoConnection{}, nil
	}

	switch {
	case caps.HasTransport(platform.TransportWifi):
		return r.wifiConnection(caps), nil
	case caps.HasTransport(platform.TransportCellular):
		return r.mobileConnection(ctx)
	}
	return models.NoConnection{}, nil
}

func (r *ConnectionResolver) wifiConnection(caps *platform.Capabilities) models.WifiConnection {
	if caps.Ssid == "" || !r.permissions.HasPermission(platform.AccessFineLocation) {
		return models.WifiConnection{}
	}
	ssid := caps.Ssid
	return models.WifiConnection{Ssid: &ssid}
}

func (r *ConnectionResolver) mobileConnection(ctx context.Context) (models.ConnectionState, error) {
	subId, err := r.subscriptions.DefaultDataSubscriptionId(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "get default data subscription")
	}

	sim, ok := models.FindSimBySubscription(r.sims.GetSimCards(ctx), subId)
	if !ok {
		r.opts.logger.Warn().Int("subscriptionId", subId).Msg("cellular transport active but no sim matches the default data subscription")
		return models.UnknownConnection{}, nil
	}

	accessor, err := r.subscriptions.ForSubscription(subId)
	if err != nil {
		return nil, errors.Wrapf(err, "get accessor for subscription %d", subId)
	}
	raw, err := accessor.DataNetworkType(ctx)
	if err != nil {
		return nil, errors.Wrapf(err, "get data network type of subscription %d", subId)
	}

	return models.MobileConnection{
		SubscriptionId: subId,
		CarrierName:    sim.CarrierName,
		IsRoaming:      sim.IsRoaming,
		NetworkType:    ClassifyNetworkType(raw),
	}, nil
}

func (r *ConnectionResolver) fault(err error) {
	monitoring.PlatformFaults.WithLabelValues("connection_resolver").Inc()
	r.opts.logger.Error().Err(err).Msg("could not resolve active connection")
}
