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

// Package platform declares the handset services the monitor depends on.
//
// Backends (a simulated device, a phone reached over ADB, test fakes)
// implement these interfaces; the telephony package only ever talks to
// them, never to a concrete backend. Every field a backend returns may be
// absent or defaulted.
package platform

import (
	"context"
	"slices"
)

type Permission string

const (
	ReadPhoneState     Permission = "READ_PHONE_STATE"
	AccessFineLocation Permission = "ACCESS_FINE_LOCATION"
)

// PermissionGate reports whether the host granted a capability.
type PermissionGate interface {
	HasPermission(p Permission) bool
}

// SubscriptionInfo is the raw record of one active subscription.
// Empty strings mean the platform did not report the value.
type SubscriptionInfo struct {
	SlotIndex      int
	SubscriptionId int
	CarrierName    string
	DisplayName    string
	Number         string
	CountryIso     string
	IsEmbedded     bool
}

// SubscriptionAccessor reads state scoped to a single subscription.
// Dual-SIM devices keep independent roaming and radio state per slot.
type SubscriptionAccessor interface {
	IsNetworkRoaming(ctx context.Context) (bool, error)
	NetworkOperator(ctx context.Context) (string, error)
	DataNetworkType(ctx context.Context) (int, error)
}

type SubscriptionService interface {
	ActiveSubscriptions(ctx context.Context) ([]SubscriptionInfo, error)
	ForSubscription(subId int) (SubscriptionAccessor, error)
	DefaultDataSubscriptionId(ctx context.Context) (int, error)
}

type Transport string

const (
	TransportWifi     Transport = "WIFI"
	TransportCellular Transport = "CELLULAR"
	TransportEthernet Transport = "ETHERNET"
	TransportVpn      Transport = "VPN"
)

// Network is a platform network handle.
type Network struct {
	Id int
}

type Capabilities struct {
	Transports  []Transport
	HasInternet bool
	// Ssid is only reported when location permission is held.
	Ssid string
}

func (c Capabilities) HasTransport(t Transport) bool {
	return slices.Contains(c.Transports, t)
}

// NetworkCallback receives connectivity events. Methods are invoked on a
// goroutine owned by the backend and must not block.
type NetworkCallback interface {
	OnAvailable(network Network)
	OnLost(network Network)
	OnCapabilitiesChanged(network Network, caps Capabilities)
}

// Registration is the handle returned when registering a callback.
type Registration interface {
	Id() string
}

type ConnectivityService interface {
	// ActiveNetwork returns nil when there is no default network.
	ActiveNetwork(ctx context.Context) (*Network, error)
	// NetworkCapabilities returns nil when the network is unknown.
	NetworkCapabilities(ctx context.Context, network Network) (*Capabilities, error)
	RegisterNetworkCallback(cb NetworkCallback) (Registration, error)
	// UnregisterNetworkCallback is a no-op for unknown or already removed handles.
	UnregisterNetworkCallback(reg Registration) error
}

// Platform bundles the services of one handset.
type Platform struct {
	Permissions   PermissionGate
	Subscriptions SubscriptionService
	Connectivity  ConnectivityService
}

// CallbackFuncs adapts plain functions to NetworkCallback. Nil fields are skipped.
type CallbackFuncs struct {
	Available           func(Network)
	Lost                func(Network)
	CapabilitiesChanged func(Network, Capabilities)
}

func (f CallbackFuncs) OnAvailable(n Network) {
	if f.Available != nil {
		f.Available(n)
	}
}

func (f CallbackFuncs) OnLost(n Network) {
	if f.Lost != nil {
		f.Lost(n)
	}
}

func (f CallbackFuncs) OnCapabilitiesChanged(n Network, c Capabilities) {
	if f.CapabilitiesChanged != nil {
		f.CapabilitiesChanged(n, c)
	}
}

// RegistrationId is a Registration identified by a string.
type RegistrationId string

func (r RegistrationId) Id() string { return string(r) }
