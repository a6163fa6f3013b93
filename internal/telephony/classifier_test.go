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
	"testing"

	"github.com/stretchr/testify/assert"

	"gitlab.eurecom.fr/open-exposure/coresim/device-monitor/internal/models"
)

func TestClassifyNetworkTypeTable(t *testing.T) {
	table := map[int]models.NetworkType{
		models.RawNetworkTypeGprs:  models.NetworkTypeGprs,
		models.RawNetworkTypeEdge:  models.NetworkTypeEdge,
		models.RawNetworkTypeUmts:  models.NetworkTypeUmts,
		models.RawNetworkTypeHsdpa: models.NetworkTypeHsdpa,
		models.RawNetworkTypeHsupa: models.NetworkTypeHsupa,
		models.RawNetworkTypeHspa:  models.NetworkTypeHspa,
		models.RawNetworkTypeLte:   models.NetworkTypeLte,
		models.RawNetworkTypeNr:    models.NetworkTypeNr,
	}
	for raw, want := range table {
		assert.Equal(t, want, ClassifyNetworkType(raw), "raw code %d", raw)
	}

	for raw := -10; raw <= 64; raw++ {
		if _, mapped := table[raw]; mapped {
			continue
		}
		assert.Equal(t, models.NetworkTypeUnknown, ClassifyNetworkType(raw), "raw code %d", raw)
	}
}

func TestClassifyNetworkTypeCdmaFamilyIsUnknown(t *testing.T) {
	for _, raw := range []int{
		models.RawNetworkTypeCdma, models.RawNetworkTypeEvdo0, models.RawNetworkTypeEvdoA,
		models.RawNetworkType1xRtt, models.RawNetworkTypeEvdoB, models.RawNetworkTypeEhrpd,
	} {
		assert.Equal(t, models.NetworkTypeUnknown, ClassifyNetworkType(raw))
	}
}
