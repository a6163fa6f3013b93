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
	"time"

	"github.com/giuliocarot0/gitc"
)

const (
	NetworkAvailableType gitc.MessageType = iota
	NetworkLostType
	CapabilitiesChangedType
)

// NetworkEventMsg carries one connectivity change from a simulated device
// to its connectivity task.
type NetworkEventMsg struct {
	TimeStamp  time.Time
	DeviceId   string
	NetId      int
	Transports []string
	Internet   bool
	Ssid       string
}
