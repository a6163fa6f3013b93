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

package device

import (
	"context"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"gitlab.eurecom.fr/open-exposure/coresim/device-monitor/internal/platform"
)

// Platform exposes the device as the three handset services.
func (d *Device) Platform() platform.Platform {
	return platform.Platform{
		Permissions:   d,
		Subscriptions: d,
		Connectivity:  d,
	}
}

func (d *Device) HasPermission(p platform.Permission) bool {
	d.statusMutex.RLock()
	defer d.statusMutex.RUnlock()
	return d.permissions[p]
}

func (d *Device) ActiveSubscriptions(ctx context.Context) ([]platform.SubscriptionInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	d.statusMutex.RLock()
	defer d.statusMutex.RUnlock()

	infos := make([]platform.SubscriptionInfo, 0, len(d.slots))
	for _, s := range d.slots {
		infos = append(infos, platform.SubscriptionInfo{
			SlotIndex:      s.cfg.Slot,
			SubscriptionId: s.cfg.SubscriptionId,
			CarrierName:    s.cfg.Carrier,
			DisplayName:    s.cfg.DisplayName,
			Number:         s.cfg.Number,
			CountryIso:     s.cfg.CountryIso,
			IsEmbedded:     s.cfg.Embedded,
		})
	}
	return infos, nil
}

func (d *Device) ForSubscription(subId int) (platform.SubscriptionAccessor, error) {
	d.statusMutex.RLock()
	defer d.statusMutex.RUnlock()
	if _, ok := d.slotBySubscription(subId); !ok {
		return nil, errors.Wrapf(ErrUnknownSubscription, "subscription %d", subId)
	}
	return &subscriptionAccessor{device: d, subId: subId}, nil
}

func (d *Device) DefaultDataSubscriptionId(ctx context.Context) (int, error) {
	d.statusMutex.RLock()
	defer d.statusMutex.RUnlock()
	return d.defaultDataSub, nil
}

// ActiveNetwork returns the network holding the default route. Wi-Fi is
// preferred over cellular, as on a real handset.
func (d *Device) ActiveNetwork(ctx context.Context) (*platform.Network, error) {
	d.statusMutex.RLock()
	defer d.statusMutex.RUnlock()
	switch {
	case d.wifiNetId != 0:
		return &platform.Network{Id: d.wifiNetId}, nil
	case d.cellNetId != 0:
		return &platform.Network{Id: d.cellNetId}, nil
	}
	return nil, nil
}

func (d *Device) NetworkCapabilities(ctx context.Context, network platform.Network) (*platform.Capabilities, error) {
	d.statusMutex.RLock()
	defer d.statusMutex.RUnlock()
	var caps platform.Capabilities
	switch network.Id {
	case 0:
		return nil, nil
	case d.wifiNetId:
		caps = d.wifiCapabilities()
	case d.cellNetId:
		caps = d.cellularCapabilities()
	default:
		return nil, nil
	}
	return &caps, nil
}

func (d *Device) RegisterNetworkCallback(cb platform.NetworkCallback) (platform.Registration, error) {
	if cb == nil {
		return nil, errors.New("nil network callback")
	}
	if d.ctx.Err() != nil {
		return nil, errors.Errorf("device %s is turned off", d.Id)
	}
	reg := platform.RegistrationId(uuid.NewString())

	d.callbackMutex.Lock()
	defer d.callbackMutex.Unlock()
	d.callbacks[reg.Id()] = cb
	d.logger.Debug().Str("registration", reg.Id()).Msg("network callback registered")
	return reg, nil
}

func (d *Device) UnregisterNetworkCallback(reg platform.Registration) error {
	if reg == nil {
		return nil
	}
	d.callbackMutex.Lock()
	defer d.callbackMutex.Unlock()
	if _, ok := d.callbacks[reg.Id()]; ok {
		delete(d.callbacks, reg.Id())
		d.logger.Debug().Str("registration", reg.Id()).Msg("network callback unregistered")
	}
	return nil
}

func (d *Device) RegisteredCallbacks() int {
	d.callbackMutex.RLock()
	defer d.callbackMutex.RUnlock()
	return len(d.callbacks)
}

// subscriptionAccessor reads the live state of one slot. It keeps working
// off the subscription id, so a removed SIM turns into errors.
type subscriptionAccessor struct {
	device *Device
	subId  int
}

func (a *subscriptionAccessor) slot() (simSlot, error) {
	a.device.statusMutex.RLock()
	defer a.device.statusMutex.RUnlock()
	s, ok := a.device.slotBySubscription(a.subId)
	if !ok {
		return simSlot{}, errors.Wrapf(ErrUnknownSubscription, "subscription %d", a.subId)
	}
	return *s, nil
}

func (a *subscriptionAccessor) IsNetworkRoaming(ctx context.Context) (bool, error) {
	s, err := a.slot()
	return s.roaming, err
}

// NetworkOperator returns the serving network, the visited one when roaming.
func (a *subscriptionAccessor) NetworkOperator(ctx context.Context) (string, error) {
	s, err := a.slot()
	if err != nil {
		return "", err
	}
	if s.roaming && !s.cfg.VisitedPlmn.IsZero() {
		return s.cfg.VisitedPlmn.String(), nil
	}
	return s.cfg.Plmn.String(), nil
}

func (a *subscriptionAccessor) DataNetworkType(ctx context.Context) (int, error) {
	s, err := a.slot()
	return s.rat, err
}
