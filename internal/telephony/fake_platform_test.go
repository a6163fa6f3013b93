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
	"fmt"
	"sync"

	"gitlab.eurecom.fr/open-exposure/coresim/device-monitor/internal/platform"
)

type fakeAccessor struct {
	roaming     bool
	operator    string
	rawType     int
	roamingErr  error
	operatorErr error
}

func (a *fakeAccessor) IsNetworkRoaming(ctx context.Context) (bool, error) {
	return a.roaming, a.roamingErr
}

func (a *fakeAccessor) NetworkOperator(ctx context.Context) (string, error) {
	return a.operator, a.operatorErr
}

func (a *fakeAccessor) DataNetworkType(ctx context.Context) (int, error) {
	return a.rawType, nil
}

type fakePlatform struct {
	mu sync.Mutex

	granted     map[platform.Permission]bool
	subs        []platform.SubscriptionInfo
	subsErr     error
	subsPanic   bool
	accessors   map[int]*fakeAccessor
	defaultData int

	active      *platform.Network
	activeErr   error
	caps        map[int]*platform.Capabilities
	registerErr error

	callbacks    map[string]platform.NetworkCallback
	registered   int
	unregistered int
}

func newFakePlatform() *fakePlatform {
	return &fakePlatform{
		granted:   map[platform.Permission]bool{platform.ReadPhoneState: true},
		accessors: make(map[int]*fakeAccessor),
		caps:      make(map[int]*platform.Capabilities),
		callbacks: make(map[string]platform.NetworkCallback),
	}
}

func (f *fakePlatform) platform() platform.Platform {
	return platform.Platform{Permissions: f, Subscriptions: f, Connectivity: f}
}

func (f *fakePlatform) addSim(info platform.SubscriptionInfo, accessor *fakeAccessor) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subs = append(f.subs, info)
	if accessor != nil {
		f.accessors[info.SubscriptionId] = accessor
	}
}

func (f *fakePlatform) setActive(id int, caps *platform.Capabilities) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.active = &platform.Network{Id: id}
	f.caps[id] = caps
}

func (f *fakePlatform) clearActive() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.active = nil
}

func (f *fakePlatform) registeredCallbacks() []platform.NetworkCallback {
	f.mu.Lock()
	defer f.mu.Unlock()
	cbs := make([]platform.NetworkCallback, 0, len(f.callbacks))
	for _, cb := range f.callbacks {
		cbs = append(cbs, cb)
	}
	return cbs
}

func (f *fakePlatform) fireAvailable(id int) {
	for _, cb := range f.registeredCallbacks() {
		cb.OnAvailable(platform.Network{Id: id})
	}
}

func (f *fakePlatform) fireLost(id int) {
	for _, cb := range f.registeredCallbacks() {
		cb.OnLost(platform.Network{Id: id})
	}
}

func (f *fakePlatform) fireCapabilitiesChanged(id int) {
	f.mu.Lock()
	caps := platform.Capabilities{}
	if c := f.caps[id]; c != nil {
		caps = *c
	}
	f.mu.Unlock()
	for _, cb := range f.registeredCallbacks() {
		cb.OnCapabilitiesChanged(platform.Network{Id: id}, caps)
	}
}

func (f *fakePlatform) counts() (int, int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.registered, f.unregistered, len(f.callbacks)
}

func (f *fakePlatform) HasPermission(p platform.Permission) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.granted[p]
}

func (f *fakePlatform) ActiveSubscriptions(ctx context.Context) ([]platform.SubscriptionInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.subsPanic {
		panic("subscription service died")
	}
	if f.subsErr != nil {
		return nil, f.subsErr
	}
	return append([]platform.SubscriptionInfo(nil), f.subs...), nil
}

func (f *fakePlatform) ForSubscription(subId int) (platform.SubscriptionAccessor, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	acc, ok := f.accessors[subId]
	if !ok {
		return nil, fmt.Errorf("no accessor for %d", subId)
	}
	return acc, nil
}

func (f *fakePlatform) DefaultDataSubscriptionId(ctx context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.defaultData, nil
}

func (f *fakePlatform) ActiveNetwork(ctx context.Context) (*platform.Network, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.activeErr != nil {
		return nil, f.activeErr
	}
	if f.active == nil {
		return nil, nil
	}
	n := *f.active
	return &n, nil
}

func (f *fakePlatform) NetworkCapabilities(ctx context.Context, network platform.Network) (*platform.Capabilities, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.caps[network.Id], nil
}

func (f *fakePlatform) RegisterNetworkCallback(cb platform.NetworkCallback) (platform.Registration, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.registerErr != nil {
		return nil, f.registerErr
	}
	f.registered++
	id := fmt.Sprintf("cb-%d", f.registered)
	f.callbacks[id] = cb
	return platform.RegistrationId(id), nil
}

func (f *fakePlatform) UnregisterNetworkCallback(reg platform.Registration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.callbacks[reg.Id()]; !ok {
		return nil
	}
	delete(f.callbacks, reg.Id())
	f.unregistered++
	return nil
}
