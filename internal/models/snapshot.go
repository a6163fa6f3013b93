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
	"time"
)

// NetworkSnapshot is the combined state observed at one point in time.
// Sims are ordered by ascending slot index. Snapshots are never mutated
// after construction.
type NetworkSnapshot struct {
	Sims       []SimCard
	Connection ConnectionState
	CapturedAt time.Time
}

func NewNetworkSnapshot(sims []SimCard, connection ConnectionState, capturedAt time.Time) NetworkSnapshot {
	if sims == nil {
		sims = []SimCard{}
	}
	if connection == nil {
		connection = UnknownConnection{}
	}
	return NetworkSnapshot{
		Sims:       sims,
		Connection: connection,
		CapturedAt: capturedAt,
	}
}

type networkSnapshotJSON struct {
	Sims       []SimCard       `json:"sims"`
	Connection json.RawMessage `json:"connection"`
	CapturedAt time.Time       `json:"capturedAt"`
}

func (s NetworkSnapshot) MarshalJSON() ([]byte, error) {
	conn, err := MarshalConnectionState(s.Connection)
	if err != nil {
		return nil, err
	}
	sims := s.Sims
	if sims == nil {
		sims = []SimCard{}
	}
	return json.Marshal(networkSnapshotJSON{
		Sims:       sims,
		Connection: conn,
		CapturedAt: s.CapturedAt,
	})
}

func (s *NetworkSnapshot) UnmarshalJSON(data []byte) error {
	raw := networkSnapshotJSON{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	conn, err := UnmarshalConnectionState(raw.Connection)
	if err != nil {
		return err
	}
	*s = NewNetworkSnapshot(raw.Sims, conn, raw.CapturedAt)
	return nil
}
