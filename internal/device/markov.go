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
	"math/rand/v2"

	"gitlab.eurecom.fr/open-exposure/coresim/device-monitor/internal/models"
)

var transitions = map[models.DeviceState][]models.Transition{

	models.Offline: {
		{To: models.Cellular, Probability: 0.60, Procedure: models.CellularAttach}, // radio on, data attached
		{To: models.Wifi, Probability: 0.20, Procedure: models.WifiJoin},           // airplane mode with wifi
		{To: models.Offline, Probability: 0.20, Procedure: models.NoProcedure},     // still out of coverage
	},
	models.Cellular: {
		{To: models.Cellular, Probability: 0.90, Procedure: models.NoProcedure},
		{To: models.Cellular, Probability: 0.04, Procedure: models.RatChange},       // moved between LTE/NR/3G cells
		{To: models.Cellular, Probability: 0.01, Procedure: models.RoamingToggle},   // crossed a border
		{To: models.Cellular, Probability: 0.01, Procedure: models.DataSimSwitch},   // user changed data sim
		{To: models.WifiAndCellular, Probability: 0.03, Procedure: models.WifiJoin}, // known hotspot in range
		{To: models.Offline, Probability: 0.01, Procedure: models.LossOfConnection}, // coverage hole
	},
	models.Wifi: {
		{To: models.Wifi, Probability: 0.93, Procedure: models.NoProcedure},
		{To: models.WifiAndCellular, Probability: 0.04, Procedure: models.CellularAttach},
		{To: models.Offline, Probability: 0.03, Procedure: models.WifiLeave},
	},
	models.WifiAndCellular: {
		{To: models.WifiAndCellular, Probability: 0.92, Procedure: models.NoProcedure},
		{To: models.WifiAndCellular, Probability: 0.03, Procedure: models.RatChange},
		{To: models.Cellular, Probability: 0.03, Procedure: models.WifiLeave},
		{To: models.Wifi, Probability: 0.01, Procedure: models.CellularDetach},
		{To: models.Offline, Probability: 0.01, Procedure: models.LossOfConnection},
	},
}

func NextState(current models.DeviceState) (models.DeviceState, models.DeviceProcedure) {
	rnd := rand.Float64()
	cumulative := 0.0
	for _, t := range transitions[current] {
		cumulative += t.Probability
		if rnd < cumulative {
			return t.To, t.Procedure
		}
	}
	return current, models.NoProcedure // fallback
}
