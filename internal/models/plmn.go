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

import "unicode"

// PlmnId identifies a mobile operator network.
type PlmnId struct {
	Mcc string `yaml:"mcc" json:"mcc"`
	Mnc string `yaml:"mnc" json:"mnc"`
}

// String returns the operator code, MCC followed by MNC.
func (p PlmnId) String() string {
	return p.Mcc + p.Mnc
}

func (p PlmnId) IsZero() bool {
	return p.Mcc == "" && p.Mnc == ""
}

// ParsePlmnId splits a 5 or 6 digit operator code into MCC and MNC.
func ParsePlmnId(code string) (PlmnId, bool) {
	if len(code) != 5 && len(code) != 6 {
		return PlmnId{}, false
	}
	for _, r := range code {
		if !unicode.IsDigit(r) {
			return PlmnId{}, false
		}
	}
	return PlmnId{Mcc: code[:3], Mnc: code[3:]}, true
}
