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

package models

import (
	"encoding/json"
	"fmt"
)

type ConnectionKind string

const (
	ConnectionKindMobile  ConnectionKind = "mobile"
	ConnectionKindWifi    ConnectionKind = "wifi"
	ConnectionKindNone    ConnectionKind = "none"
	ConnectionKindUnknown ConnectionKind = "unknown"
)

// AllConnectionKinds lists the kinds in declaration order.
func AllConnectionKinds() []ConnectionKind {
	return []ConnectionKind{ConnectionKindMobile, ConnectionKindWifi, ConnectionKindNone, ConnectionKindUnknown}
}

// ConnectionState describes which transport carries internet traffic.
// It is one of MobileConnection, WifiConnection, NoConnection or
// UnknownConnection; the set is closed.
type ConnectionState interface {
	Kind() ConnectionKind
	connectionState()
}

// MobileConnection is a cellular data connection on a given subscription.
type MobileConnection struct {
	SubscriptionId int         `json:"subscriptionId"`
	CarrierName    string      `json:"carrierName"`
	IsRoaming      bool        `json:"isRoaming"`
	NetworkType    NetworkType `json:"networkType"`
}

// WifiConnection is a Wi-Fi connection. Ssid is usually absent because
// the platform hides it without location permission.
type WifiConnection struct {
	Ssid *string `json:"ssid,omitempty"`
}

type NoConnection struct{}

// UnknownConnection is reported when the transport could not be
// determined, or a cellular transport could not be matched to a SIM.
type UnknownConnection struct{}

func (MobileConnection) Kind() ConnectionKind  { return ConnectionKindMobile }
func (WifiConnection) Kind() ConnectionKind    { return ConnectionKindWifi }
func (NoConnection) Kind() ConnectionKind      { return ConnectionKindNone }
func (UnknownConnection) Kind() ConnectionKind { return ConnectionKindUnknown }

func (MobileConnection) connectionState()  {}
func (WifiConnection) connectionState()    {}
func (NoConnection) connectionState()      {}
func (UnknownConnection) connectionState() {}

func (c MobileConnection) String() string {
	roaming := ""
	if c.IsRoaming {
		roaming = ", roaming"
	}
	return fmt.Sprintf("mobile(sub=%d, %s, %s%s)", c.SubscriptionId, c.CarrierName, c.NetworkType.Label(), roaming)
}

func (c WifiConnection) String() string {
	if c.Ssid == nil {
		return "wifi"
	}
	return fmt.Sprintf("wifi(%s)", *c.Ssid)
}

func (NoConnection) String() string      { return "none" }
func (UnknownConnection) String() string { return "unknown" }

type connectionStateEnvelope struct {
	Kind           ConnectionKind `json:"kind"`
	SubscriptionId *int           `json:"subscriptionId,omitempty"`
	CarrierName    *string        `json:"carrierName,omitempty"`
	IsRoaming      *bool          `json:"isRoaming,omitempty"`
	NetworkType    *NetworkType   `json:"networkType,omitempty"`
	NetworkLabel   string         `json:"networkLabel,omitempty"`
	Ssid           *string        `json:"ssid,omitempty"`
}

// MarshalConnectionState encodes a state as a JSON object tagged by "kind".
// A nil state is encoded as unknown.
func MarshalConnectionState(state ConnectionState) ([]byte, error) {
	env := connectionStateEnvelope{Kind: ConnectionKindUnknown}
	switch s := state.(type) {
	case MobileConnection:
		env.Kind = ConnectionKindMobile
		env.SubscriptionId = &s.SubscriptionId
		env.CarrierName = &s.CarrierName
		env.IsRoaming = &s.IsRoaming
		env.NetworkType = &s.NetworkType
		env.NetworkLabel = s.NetworkType.Label()
	case WifiConnection:
		env.Kind = ConnectionKindWifi
		env.Ssid = s.Ssid
	case NoConnection:
		env.Kind = ConnectionKindNone
	}
	return json.Marshal(env)
}

// UnmarshalConnectionState decodes the output of MarshalConnectionState.
func UnmarshalConnectionState(data []byte) (ConnectionState, error) {
	env := connectionStateEnvelope{}
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, err
	}
	switch env.Kind {
	case ConnectionKindMobile:
		c := MobileConnection{NetworkType: NetworkTypeUnknown}
		if env.SubscriptionId != nil {
			c.SubscriptionId = *env.SubscriptionId
		}
		if env.CarrierName != nil {
			c.CarrierName = *env.CarrierName
		}
		if env.IsRoaming != nil {
			c.IsRoaming = *env.IsRoaming
		}
		if env.NetworkType != nil {
			c.NetworkType = *env.NetworkType
		}
		return c, nil
	case ConnectionKindWifi:
		return WifiConnection{Ssid: env.Ssid}, nil
	case ConnectionKindNone:
		return NoConnection{}, nil
	case ConnectionKindUnknown:
		return UnknownConnection{}, nil
	}
	return nil, fmt.Errorf("unknown connection kind %q", env.Kind)
}
