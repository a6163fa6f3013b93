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
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gitlab.eurecom.fr/open-exposure/coresim/device-monitor/internal/models"
	"gitlab.eurecom.fr/open-exposure/coresim/device-monitor/internal/platform"
	"gitlab.eurecom.fr/open-exposure/coresim/device-monitor/internal/telephony"
)

type eventLog struct {
	mu     sync.Mutex
	events []string
}

func (l *eventLog) add(e string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, e)
}

func (l *eventLog) count(e string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, got := range l.events {
		if got == e {
			n++
		}
	}
	return n
}

func newTestDevice(t *testing.T, initial string) *Device {
	t.Helper()
	cfg := DefaultDeviceConfig()
	cfg.TickInterval = 0
	cfg.InitialState = initial
	d, err := NewDevice(context.Background(), cfg)
	require.NoError(t, err)
	require.NoError(t, d.PowerUp())
	t.Cleanup(d.TurnOff)
	return d
}

func TestTransitionProbabilitiesSumToOne(t *testing.T) {
	for state, list := range transitions {
		sum := 0.0
		for _, tr := range list {
			sum += tr.Probability
		}
		assert.InDelta(t, 1.0, sum, 1e-9, "state %s", state)
	}
	for i := 0; i < 1000; i++ {
		next, _ := NextState(models.Cellular)
		assert.Contains(t, []models.DeviceState{models.Cellular, models.WifiAndCellular, models.Offline}, next)
	}
}

func TestDeviceConfigValidation(t *testing.T) {
	cfg := DefaultDeviceConfig()
	cfg.Sims[1].Slot = 0
	_, err := NewDevice(context.Background(), cfg)
	assert.Error(t, err)

	cfg = DefaultDeviceConfig()
	cfg.InitialState = "satellite"
	_, err = NewDevice(context.Background(), cfg)
	assert.Error(t, err)
}

func TestDeviceSubscriptions(t *testing.T) {
	d := newTestDevice(t, "cellular")
	ctx := context.Background()

	infos, err := d.ActiveSubscriptions(ctx)
	require.NoError(t, err)
	assert.Len(t, infos, 2)

	subId, err := d.DefaultDataSubscriptionId(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, subId)

	acc, err := d.ForSubscription(1)
	require.NoError(t, err)
	raw, err := acc.DataNetworkType(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.RawNetworkTypeLte, raw)
	op, err := acc.NetworkOperator(ctx)
	require.NoError(t, err)
	assert.Equal(t, "20801", op)

	require.NoError(t, d.SetRoaming(0, true))
	op, err = acc.NetworkOperator(ctx)
	require.NoError(t, err)
	assert.Equal(t, "22210", op)
	roaming, err := acc.IsNetworkRoaming(ctx)
	require.NoError(t, err)
	assert.True(t, roaming)

	_, err = d.ForSubscription(42)
	assert.ErrorIs(t, err, ErrUnknownSubscription)
	assert.ErrorIs(t, d.SetRat(9, models.RawNetworkTypeNr), ErrUnknownSlot)
}

func TestDeviceActiveNetworkPrefersWifi(t *testing.T) {
	d := newTestDevice(t, "cellular")
	ctx := context.Background()

	active, err := d.ActiveNetwork(ctx)
	require.NoError(t, err)
	require.NotNil(t, active)
	caps, err := d.NetworkCapabilities(ctx, *active)
	require.NoError(t, err)
	assert.True(t, caps.HasTransport(platform.TransportCellular))

	d.JoinWifi("lab")
	assert.Equal(t, models.WifiAndCellular, d.State())
	active, err = d.ActiveNetwork(ctx)
	require.NoError(t, err)
	caps, err = d.NetworkCapabilities(ctx, *active)
	require.NoError(t, err)
	assert.True(t, caps.HasTransport(platform.TransportWifi))
	assert.Equal(t, "lab", caps.Ssid)

	d.LossOfConnection()
	assert.Equal(t, models.Offline, d.State())
	active, err = d.ActiveNetwork(ctx)
	require.NoError(t, err)
	assert.Nil(t, active)
}

func TestDeviceDeliversCallbacksThroughTasks(t *testing.T) {
	d := newTestDevice(t, "")
	events := &eventLog{}
	reg, err := d.RegisterNetworkCallback(platform.CallbackFuncs{
		Available:           func(platform.Network) { events.add("available") },
		Lost:                func(platform.Network) { events.add("lost") },
		CapabilitiesChanged: func(platform.Network, platform.Capabilities) { events.add("changed") },
	})
	require.NoError(t, err)

	d.AttachCellular()
	require.Eventually(t, func() bool { return events.count("available") == 1 }, 2*time.Second, 10*time.Millisecond)

	d.DetachCellular()
	require.Eventually(t, func() bool { return events.count("lost") == 1 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, d.UnregisterNetworkCallback(reg))
	require.NoError(t, d.UnregisterNetworkCallback(reg))
	assert.Equal(t, 0, d.RegisteredCallbacks())
}

func TestDeviceDrivesNetworkRepository(t *testing.T) {
	d := newTestDevice(t, "cellular")
	repo := telephony.NewNetworkRepository(d.Platform())

	ctx, cancel := context.WithCancel(context.Background())
	ch, err := repo.ObserveNetworkChanges(ctx)
	require.NoError(t, err)

	first := <-ch
	require.Len(t, first.Sims, 2)
	assert.Equal(t, 0, first.Sims[0].SlotIndex)
	assert.Equal(t, models.MobileConnection{
		SubscriptionId: 1,
		CarrierName:    "Orange F",
		NetworkType:    models.NetworkTypeLte,
	}, first.Connection)

	d.JoinWifi("")
	require.Eventually(t, func() bool {
		select {
		case s := <-ch:
			return s.Connection.Kind() == models.ConnectionKindWifi
		default:
			return false
		}
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	for range ch {
	}
	assert.Equal(t, 0, d.RegisteredCallbacks())
}

func TestDeviceWithoutPhonePermission(t *testing.T) {
	d := newTestDevice(t, "cellular")
	d.SetPermission(platform.ReadPhoneState, false)
	repo := telephony.NewNetworkRepository(d.Platform())

	snapshot, err := repo.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Empty(t, snapshot.Sims)
	assert.Equal(t, models.UnknownConnection{}, snapshot.Connection)
}
