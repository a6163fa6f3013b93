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

package notify

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gitlab.eurecom.fr/open-exposure/coresim/device-monitor/internal/models"
)

func TestHubStreamsSnapshots(t *testing.T) {
	hub := NewHub()
	defer hub.Close()
	hub.Broadcast(models.NewNetworkSnapshot(nil, models.NoConnection{}, time.Now()))

	srv := httptest.NewServer(hub)
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	first := models.NetworkSnapshot{}
	require.NoError(t, conn.ReadJSON(&first))
	assert.Equal(t, models.ConnectionKindNone, first.Connection.Kind())

	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 10*time.Millisecond)
	hub.Broadcast(models.NewNetworkSnapshot(nil, models.WifiConnection{}, time.Now()))

	next := models.NetworkSnapshot{}
	require.NoError(t, conn.ReadJSON(&next))
	assert.Equal(t, models.ConnectionKindWifi, next.Connection.Kind())

	require.NoError(t, conn.Close())
	require.Eventually(t, func() bool { return hub.ClientCount() == 0 }, 2*time.Second, 10*time.Millisecond)
}
