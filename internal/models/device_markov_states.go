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

type DeviceState int

const (
	Offline         DeviceState = iota
	Cellular                    // mobile data only
	Wifi                        // wifi only, cellular radio detached
	WifiAndCellular             // both up, wifi carries the default route
)

func (s DeviceState) String() string {
	switch s {
	case Offline:
		return "OFFLINE"
	case Cellular:
		return "CELLULAR"
	case Wifi:
		return "WIFI"
	case WifiAndCellular:
		return "WIFI_AND_CELLULAR"
	}
	return "UNKNOWN"
}

type DeviceProcedure string

const (
	NoProcedure      DeviceProcedure = "NONE"
	WifiJoin         DeviceProcedure = "WIFI_JOIN"
	WifiLeave        DeviceProcedure = "WIFI_LEAVE"
	CellularAttach   DeviceProcedure = "CELLULAR_ATTACH"
	CellularDetach   DeviceProcedure = "CELLULAR_DETACH"
	RatChange        DeviceProcedure = "RAT_CHANGE"
	RoamingToggle    DeviceProcedure = "ROAMING_TOGGLE"
	DataSimSwitch    DeviceProcedure = "DATA_SIM_SWITCH"
	LossOfConnection DeviceProcedure = "LOSS_OF_CONNECTION"
)

type Transition struct {
	To          DeviceState
	Probability float64
	Procedure   DeviceProcedure
}
