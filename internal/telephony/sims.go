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
	"sort"

	"github.com/pkg/errors"

	"gitlab.eurecom.fr/open-exposure/coresim/device-monitor/internal/models"
	"gitlab.eurecom.fr/open-exposure/coresim/device-monitor/internal/monitoring"
	"gitlab.eurecom.fr/open-exposure/coresim/device-monitor/internal/platform"
)

// SimEnumerator lists the active SIM subscriptions of a handset.
type SimEnumerator struct {
	permissions   platform.PermissionGate
	subscriptions platform.SubscriptionService
	opts          options
}

func NewSimEnumerator(p platform.Platform, opts ...Option) *SimEnumerator {
	return &SimEnumerator{
		permissions:   p.Permissions,
		subscriptions: p.Subscriptions,
		opts:          newOptions(opts),
	}
}

// GetSimCards returns the active subscriptions sorted by slot index, with
// invalid subscriptions removed. A missing READ_PHONE_STATE permission or
// any platform fault, including one on a single subscription, yields an
// empty list, never an error.
func (e *SimEnumerator) GetSimCards(ctx context.Context) (sims []models.SimCard) {
	defer func() {
		if r := recover(); r != nil {
			e.fault(errors.Errorf("panic: %v", r))
			sims = []models.SimCard{}
		}
	}()

	if !e.permissions.HasPermission(platform.ReadPhoneState) {
		e.opts.logger.Warn().Str("permission", string(platform.ReadPhoneState)).Msg("permission not granted, reporting no sim")
		return []models.SimCard{}
	}

	infos, err := e.subscriptions.ActiveSubscriptions(ctx)
	if err != nil {
		e.fault(errors.Wrap(err, "list active subscriptions"))
		return []models.SimCard{}
	}

	sims = make([]models.SimCard, 0, len(infos))
	for _, info := range infos {
		if info.SubscriptionId == models.InvalidSubscriptionId {
			continue
		}
		sim, err := e.buildSimCard(ctx, info)
		if err != nil {
			e.fault(err)
			return []models.SimCard{}
		}
		sims = append(sims, sim)
	}

	sort.SliceStable(sims, func(i, j int) bool {
		return sims[i].SlotIndex < sims[j].SlotIndex
	})
	return sims
}

func (e *SimEnumerator) buildSimCard(ctx context.Context, info platform.SubscriptionInfo) (models.SimCard, error) {
	sim := models.SimCard{
		SlotIndex:      info.SlotIndex,
		SubscriptionId: info.SubscriptionId,
		CarrierName:    info.CarrierName,
		DisplayName:    optional(info.DisplayName),
		Number:         optional(info.Number),
		CountryIso:     info.CountryIso,
		IsEmbedded:     info.IsEmbedded,
	}
	if sim.CarrierName == "" {
		sim.CarrierName = models.UnknownCarrier
	}

	// roaming and operator belong to the subscription, not the handset
	accessor, err := e.subscriptions.ForSubscription(info.SubscriptionId)
	if err != nil {
		return models.SimCard{}, errors.Wrapf(err, "get accessor for subscription %d", info.SubscriptionId)
	}
	if sim.IsRoaming, err = accessor.IsNetworkRoaming(ctx); err != nil {
		return models.SimCard{}, errors.Wrapf(err, "read roaming state of subscription %d", info.SubscriptionId)
	}
	if sim.OperatorCode, err = accessor.NetworkOperator(ctx); err != nil {
		return models.SimCard{}, errors.Wrapf(err, "read network operator of subscription %d", info.SubscriptionId)
	}
	return sim, nil
}

func (e *SimEnumerator) fault(err error) {
	monitoring.PlatformFaults.WithLabelValues("sim_enumerator").Inc()
	e.opts.logger.Error().Err(err).Msg("sim enumeration failed, reporting no sim")
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
