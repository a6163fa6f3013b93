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
	"time"

	"github.com/pkg/errors"

	"gitlab.eurecom.fr/open-exposure/coresim/device-monitor/internal/models"
	"gitlab.eurecom.fr/open-exposure/coresim/device-monitor/internal/platform"
)

type SimConfig struct {
	Slot           int           `yaml:"slot" json:"slot"`
	SubscriptionId int           `yaml:"subscriptionId" json:"subscriptionId"`
	Carrier        string        `yaml:"carrier" json:"carrier"`
	DisplayName    string        `yaml:"displayName,omitempty" json:"displayName,omitempty"`
	Number         string        `yaml:"number,omitempty" json:"number,omitempty"` // MSISDN in E.164 format
	CountryIso     string        `yaml:"countryIso,omitempty" json:"countryIso,omitempty"`
	Plmn           models.PlmnId `yaml:"plmn" json:"plmn"`
	// VisitedPlmn is the serving network while roaming.
	VisitedPlmn models.PlmnId `yaml:"visitedPlmn,omitempty" json:"visitedPlmn,omitempty"`
	Roaming     bool          `yaml:"roaming,omitempty" json:"roaming,omitempty"`
	Embedded    bool          `yaml:"embedded,omitempty" json:"embedded,omitempty"`
	Rat         string        `yaml:"rat,omitempty" json:"rat,omitempty"`
}

type DeviceConfig struct {
	Id                      string                `yaml:"id,omitempty" json:"id,omitempty"`
	TickInterval            time.Duration         `yaml:"tickInterval,omitempty" json:"tickInterval,omitempty"`
	Permissions             []platform.Permission `yaml:"permissions" json:"permissions"`
	WifiSsid                string                `yaml:"wifiSsid,omitempty" json:"wifiSsid,omitempty"`
	Sims                    []SimConfig           `yaml:"sims" json:"sims"`
	DefaultDataSubscription int                   `yaml:"defaultDataSubscription,omitempty" json:"defaultDataSubscription,omitempty"`
	// InitialState is one of "", "cellular", "wifi", "wifi+cellular".
	InitialState string `yaml:"initialState,omitempty" json:"initialState,omitempty"`
}

func (c SimConfig) Validate() error {
	if c.Slot < 0 {
		return errors.Errorf("sim slot must be non-negative, got %d", c.Slot)
	}
	if c.SubscriptionId == 0 {
		return errors.Errorf("sim in slot %d has no subscription id", c.Slot)
	}
	return nil
}

func (c DeviceConfig) Validate() error {
	slots := make(map[int]bool)
	subs := make(map[int]bool)
	for _, sim := range c.Sims {
		if err := sim.Validate(); err != nil {
			return err
		}
		if slots[sim.Slot] {
			return errors.Errorf("duplicated sim slot %d", sim.Slot)
		}
		slots[sim.Slot] = true
		if sim.SubscriptionId != models.InvalidSubscriptionId {
			if subs[sim.SubscriptionId] {
				return errors.Errorf("duplicated subscription id %d", sim.SubscriptionId)
			}
			subs[sim.SubscriptionId] = true
		}
	}
	switch c.InitialState {
	case "", "offline", "cellular", "wifi", "wifi+cellular":
	default:
		return errors.Errorf("unknown initial state %q", c.InitialState)
	}
	return nil
}

// DefaultDeviceConfig is a dual-SIM handset attached to mobile data.
func DefaultDeviceConfig() DeviceConfig {
	return DeviceConfig{
		TickInterval: time.Second,
		Permissions:  []platform.Permission{platform.ReadPhoneState},
		WifiSsid:     "eurecom-guest",
		Sims: []SimConfig{
			{
				Slot: 0, SubscriptionId: 1, Carrier: "Orange F", Number: "+33612345678",
				CountryIso: "fr", Plmn: models.PlmnId{Mcc: "208", Mnc: "01"},
				VisitedPlmn: models.PlmnId{Mcc: "222", Mnc: "10"}, Rat: "LTE",
			},
			{
				Slot: 1, SubscriptionId: 2, Carrier: "Free", CountryIso: "fr",
				Plmn: models.PlmnId{Mcc: "208", Mnc: "15"}, Embedded: true, Rat: "NR",
			},
		},
		DefaultDataSubscription: 1,
		InitialState:            "cellular",
	}
}
