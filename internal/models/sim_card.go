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

// InvalidSubscriptionId is the platform sentinel for a subscription that
// is not usable. Records carrying it are never surfaced.
const InvalidSubscriptionId = -1

// UnknownCarrier is used when the platform reports no carrier name.
const UnknownCarrier = "Unknown"

// A SimCard is one active SIM subscription, physical or embedded.
type SimCard struct {
	SlotIndex      int     `json:"slotIndex"`
	SubscriptionId int     `json:"subscriptionId"`
	CarrierName    string  `json:"carrierName"`
	DisplayName    *string `json:"displayName,omitempty"`
	Number         *string `json:"number,omitempty"`
	CountryIso     string  `json:"countryIso"`
	IsRoaming      bool    `json:"isRoaming"`
	OperatorCode   string  `json:"operatorCode"`
	IsEmbedded     bool    `json:"isEmbedded"`
}

// Plmn decodes OperatorCode. ok is false when the code is absent or malformed.
func (s SimCard) Plmn() (PlmnId, bool) {
	return ParsePlmnId(s.OperatorCode)
}

// FindSimBySubscription returns the record with the given subscription id.
func FindSimBySubscription(sims []SimCard, subId int) (SimCard, bool) {
	for _, sim := range sims {
		if sim.SubscriptionId == subId {
			return sim, true
		}
	}
	return SimCard{}, false
}
