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

package adb

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"gitlab.eurecom.fr/open-exposure/coresim/device-monitor/internal/models"
	"gitlab.eurecom.fr/open-exposure/coresim/device-monitor/internal/platform"
)

const (
	DefaultPollInterval = 2 * time.Second
	propsTTL            = 500 * time.Millisecond
	dataSubSetting      = "multi_sim_data_call"
)

var ErrNoSuchSubscription = errors.New("no SIM loaded for subscription")

// Backend exposes a phone reached over ADB as the handset services.
// Subscription ids are synthesized as slot index + 1.
type Backend struct {
	client       *Client
	permissions  map[platform.Permission]bool
	pollInterval time.Duration
	logger       zerolog.Logger

	propsMutex sync.Mutex
	props      map[string]string
	propsAt    time.Time

	watcher *watcher
}

type BackendConfig struct {
	Binary       string
	Serial       string
	PollInterval time.Duration
	// Permissions restricts what the backend reports as granted. Empty grants all.
	Permissions []platform.Permission
}

func NewBackend(cfg BackendConfig) *Backend {
	return newBackend(NewClient(cfg.Binary, cfg.Serial), cfg)
}

func newBackend(client *Client, cfg BackendConfig) *Backend {
	interval := cfg.PollInterval
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	perms := map[platform.Permission]bool{}
	if len(cfg.Permissions) == 0 {
		perms[platform.ReadPhoneState] = true
		perms[platform.AccessFineLocation] = true
	}
	for _, p := range cfg.Permissions {
		perms[p] = true
	}
	b := &Backend{
		client:       client,
		permissions:  perms,
		pollInterval: interval,
		logger:       log.With().Str("component", "adb").Str("serial", cfg.Serial).Logger(),
	}
	b.watcher = newWatcher(b)
	return b
}

func (b *Backend) Platform() platform.Platform {
	return platform.Platform{
		Permissions:   b,
		Subscriptions: b,
		Connectivity:  b,
	}
}

// Ping checks that the configured device is reachable and ready.
func (b *Backend) Ping(ctx context.Context) error {
	devices, err := b.client.Devices(ctx)
	if err != nil {
		return err
	}
	for _, d := range devices {
		if (b.client.Serial() == "" || d.Serial == b.client.Serial()) && d.IsOnline() {
			b.logger.Info().Str("model", d.Model).Msg("adb device ready")
			return nil
		}
	}
	return errors.Errorf("adb device %q not connected", b.client.Serial())
}

// Close stops the polling watcher, if running.
func (b *Backend) Close() {
	b.watcher.stop()
}

func (b *Backend) HasPermission(p platform.Permission) bool {
	return b.permissions[p]
}

func (b *Backend) radioProps(ctx context.Context) (map[string]string, error) {
	b.propsMutex.Lock()
	defer b.propsMutex.Unlock()
	if b.props != nil && time.Since(b.propsAt) < propsTTL {
		return b.props, nil
	}
	props, err := b.client.Props(ctx)
	if err != nil {
		return nil, err
	}
	b.props = props
	b.propsAt = time.Now()
	return props, nil
}

func (b *Backend) ActiveSubscriptions(ctx context.Context) ([]platform.SubscriptionInfo, error) {
	props, err := b.radioProps(ctx)
	if err != nil {
		return nil, err
	}
	var infos []platform.SubscriptionInfo
	for slot := range slotCount(props) {
		if !simPresent(slotValue(props, propSimState, slot)) {
			continue
		}
		infos = append(infos, platform.SubscriptionInfo{
			SlotIndex:      slot,
			SubscriptionId: slot + 1,
			CarrierName:    slotValue(props, propSimAlpha, slot),
			CountryIso:     slotValue(props, propSimCountry, slot),
		})
	}
	return infos, nil
}

func (b *Backend) ForSubscription(subId int) (platform.SubscriptionAccessor, error) {
	if subId < 1 {
		return nil, errors.Wrapf(ErrNoSuchSubscription, "subscription %d", subId)
	}
	return &subscriptionAccessor{backend: b, slot: subId - 1}, nil
}

// DefaultDataSubscriptionId reads the data SIM setting. Values that do not
// name a loaded slot fall back to the first loaded SIM.
func (b *Backend) DefaultDataSubscriptionId(ctx context.Context) (int, error) {
	infos, err := b.ActiveSubscriptions(ctx)
	if err != nil {
		return models.InvalidSubscriptionId, err
	}
	if len(infos) == 0 {
		return models.InvalidSubscriptionId, nil
	}
	value, err := b.client.GlobalSetting(ctx, dataSubSetting)
	if err != nil {
		return models.InvalidSubscriptionId, err
	}
	if id, convErr := strconv.Atoi(value); convErr == nil {
		for _, info := range infos {
			if info.SubscriptionId == id {
				return id, nil
			}
		}
	}
	return infos[0].SubscriptionId, nil
}

func (b *Backend) connectivity(ctx context.Context) (connectivityDump, error) {
	out, err := b.client.DumpConnectivity(ctx)
	if err != nil {
		return connectivityDump{}, err
	}
	return parseConnectivityDump(out), nil
}

func (b *Backend) ActiveNetwork(ctx context.Context) (*platform.Network, error) {
	dump, err := b.connectivity(ctx)
	if err != nil {
		return nil, err
	}
	return dump.active, nil
}

func (b *Backend) NetworkCapabilities(ctx context.Context, network platform.Network) (*platform.Capabilities, error) {
	dump, err := b.connectivity(ctx)
	if err != nil {
		return nil, err
	}
	info, ok := dump.agents[network.Id]
	if !ok {
		return nil, nil
	}
	caps := info.caps
	if !b.HasPermission(platform.AccessFineLocation) {
		caps.Ssid = ""
	}
	return &caps, nil
}

func (b *Backend) RegisterNetworkCallback(cb platform.NetworkCallback) (platform.Registration, error) {
	if cb == nil {
		return nil, errors.New("nil network callback")
	}
	return b.watcher.add(cb), nil
}

func (b *Backend) UnregisterNetworkCallback(reg platform.Registration) error {
	if reg == nil {
		return nil
	}
	b.watcher.remove(reg.Id())
	return nil
}

type subscriptionAccessor struct {
	backend *Backend
	slot    int
}

func (a *subscriptionAccessor) IsNetworkRoaming(ctx context.Context) (bool, error) {
	props, err := a.backend.radioProps(ctx)
	if err != nil {
		return false, err
	}
	return slotValue(props, propIsRoaming, a.slot) == "true", nil
}

func (a *subscriptionAccessor) NetworkOperator(ctx context.Context) (string, error) {
	props, err := a.backend.radioProps(ctx)
	if err != nil {
		return "", err
	}
	return slotValue(props, propOperatorNum, a.slot), nil
}

func (a *subscriptionAccessor) DataNetworkType(ctx context.Context) (int, error) {
	props, err := a.backend.radioProps(ctx)
	if err != nil {
		return models.RawNetworkTypeUnknown, err
	}
	return models.ParseRawNetworkType(slotValue(props, propNetworkType, a.slot)), nil
}
