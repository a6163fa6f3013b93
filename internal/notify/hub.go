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
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"gitlab.eurecom.fr/open-exposure/coresim/device-monitor/internal/models"
)

const (
	clientBuffer = 16
	writeTimeout = 5 * time.Second
	pongTimeout  = 60 * time.Second
	pingInterval = 30 * time.Second
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

type hubClient struct {
	id   string
	conn *websocket.Conn
	send chan models.NetworkSnapshot
	once sync.Once
}

func (c *hubClient) close() {
	c.once.Do(func() { close(c.send) })
}

// Hub streams snapshots to WebSocket clients. A client receives the latest
// snapshot on connect and every later one. Clients that fall behind are
// disconnected.
type Hub struct {
	mutex   sync.RWMutex
	clients map[string]*hubClient
	latest  *models.NetworkSnapshot
}

func NewHub() *Hub {
	return &Hub{clients: make(map[string]*hubClient)}
}

func (h *Hub) ClientCount() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.clients)
}

// Broadcast queues the snapshot for every connected client.
func (h *Hub) Broadcast(snapshot models.NetworkSnapshot) {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	h.latest = &snapshot
	for id, c := range h.clients {
		select {
		case c.send <- snapshot:
		default:
			log.Warn().Str("client", id).Msg("websocket client too slow, dropping")
			delete(h.clients, id)
			c.close()
		}
	}
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	for id, c := range h.clients {
		delete(h.clients, id)
		c.close()
	}
}

func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	c := &hubClient{id: uuid.New().String(), conn: conn, send: make(chan models.NetworkSnapshot, clientBuffer)}

	h.mutex.Lock()
	h.clients[c.id] = c
	if h.latest != nil {
		c.send <- *h.latest
	}
	h.mutex.Unlock()
	log.Info().Str("client", c.id).Str("remote", r.RemoteAddr).Msg("websocket client connected")

	go h.readLoop(c)
	h.writeLoop(c)
}

func (h *Hub) remove(c *hubClient) {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	if _, ok := h.clients[c.id]; ok {
		delete(h.clients, c.id)
		c.close()
	}
}

// readLoop drains control frames and detects disconnection.
func (h *Hub) readLoop(c *hubClient) {
	defer h.remove(c)
	c.conn.SetReadDeadline(time.Now().Add(pongTimeout))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongTimeout))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Info().Err(err).Str("client", c.id).Msg("error reading from websocket client")
			}
			return
		}
	}
}

func (h *Hub) writeLoop(c *hubClient) {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		h.remove(c)
		_ = c.conn.Close()
		log.Info().Str("client", c.id).Msg("websocket client disconnected")
	}()

	for {
		select {
		case snapshot, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.conn.WriteJSON(snapshot); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
