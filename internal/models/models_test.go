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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNetworkTypeLabels(t *testing.T) {
	assert.Equal(t, "4G (LTE)", NetworkTypeLte.Label())
	assert.Equal(t, "5G (NR)", NetworkTypeNr.Label())
	assert.Equal(t, "Unknown", NetworkType("WIMAX").Label())
	for _, nt := range AllNetworkTypes() {
		assert.NotEmpty(t, nt.Label())
	}
	assert.Equal(t, "3G", NetworkTypeHspa.Generation())
	assert.Equal(t, "Unknown", NetworkTypeUnknown.Generation())
}

func TestParseRawNetworkType(t *testing.T) {
	assert.Equal(t, RawNetworkTypeLte, ParseRawNetworkType("LTE"))
	assert.Equal(t, RawNetworkTypeNr, ParseRawNetworkType(" nr "))
	assert.Equal(t, RawNetworkTypeHspap, ParseRawNetworkType("HSPA+"))
	assert.Equal(t, RawNetworkTypeUnknown, ParseRawNetworkType("Unknown"))
	assert.Equal(t, RawNetworkTypeUnknown, ParseRawNetworkType(""))
}

func TestParsePlmnId(t *testing.T) {
	plmn, ok := ParsePlmnId("20893")
	require.True(t, ok)
	assert.Equal(t, PlmnId{Mcc: "208", Mnc: "93"}, plmn)
	assert.Equal(t, "20893", plmn.String())

	plmn, ok = ParsePlmnId("310260")
	require.True(t, ok)
	assert.Equal(t, "260", plmn.Mnc)

	for _, code := range []string{"", "2089", "2089a", "3102601"} {
		_, ok := ParsePlmnId(code)
		assert.False(t, ok, code)
	}
}

func TestSnapshotJSONKeepsConnectionVariant(t *testing.T) {
	ssid := "eurecom"
	captured := time.Date(2025, 3, 4, 5, 6, 7, 0, time.UTC)
	states := []ConnectionState{
		MobileConnection{SubscriptionId: 5, CarrierName: "Beeline", IsRoaming: true, NetworkType: NetworkTypeLte},
		WifiConnection{Ssid: &ssid},
		WifiConnection{},
		NoConnection{},
		UnknownConnection{},
	}
	for _, state := range states {
		in := NewNetworkSnapshot([]SimCard{{SlotIndex: 0, SubscriptionId: 5, CarrierName: "Beeline"}}, state, captured)
		data, err := json.Marshal(in)
		require.NoError(t, err)

		out := NetworkSnapshot{}
		require.NoError(t, json.Unmarshal(data, &out))
		assert.Equal(t, in, out)
	}
}

func TestMobileConnectionJSONCarriesLabel(t *testing.T) {
	data, err := MarshalConnectionState(MobileConnection{SubscriptionId: 1, CarrierName: "Free", NetworkType: NetworkTypeNr})
	require.NoError(t, err)
	assert.JSONEq(t, `{"kind":"mobile","subscriptionId":1,"carrierName":"Free","isRoaming":false,"networkType":"NR","networkLabel":"5G (NR)"}`, string(data))

	_, err = UnmarshalConnectionState([]byte(`{"kind":"bluetooth"}`))
	assert.Error(t, err)
}

func TestNewNetworkSnapshotDefaults(t *testing.T) {
	s := NewNetworkSnapshot(nil, nil, time.Time{})
	assert.NotNil(t, s.Sims)
	assert.Equal(t, UnknownConnection{}, s.Connection)
}
