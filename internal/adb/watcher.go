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

package adb

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"gitlab.eurecom.fr/open-exposure/coresim/device-monitor/internal/monitoring"
	"gitlab.eurecom.fr/open-exposure/coresim/device-monitor/internal/platform"
)

// watcher polls the device while callbacks are registered and turns
// state differences into network callbacks.
type watcher struct {
	backend *Backend

	mutex     sync.Mutex
	callbacks map[string]platform.NetworkCallback
	cancel    context.CancelFunc
	done      chan struct{}
}

type pollState struct {
	agents map[int]agentInfo
	radio  string
}

func newWatcher(b *Backend) *watcher {
	return &watcher{backend: b, callbacks: make(map[string]platform.NetworkCallback)}
}

func (w *watcher) add(cb platform.NetworkCallback) platform.Registration {
	w.mutex.Lock()
	defer w.mutex.Unlock()

	id := uuid.New().String()
	w.callbacks[id] = cb
	if w.cancel == nil {
		ctx, cancel := context.WithCancel(context.Background())
		w.cancel = cancel
		w.done = make(chan struct{})
		go w.run(ctx, w.done)
	}
	return platform.RegistrationId(id)
}

func (w *watcher) remove(id string) {
	w.mutex.Lock()
	defer w.mutex.Unlock()
	delete(w.callbacks, id)
	if len(w.callbacks) == 0 && w.cancel != nil {
		w.cancel()
		w.cancel = nil
	}
}

func (w *watcher) stop() {
	w.mutex.Lock()
	cancel, done := w.cancel, w.done
	w.cancel = nil
	w.callbacks = make(map[string]platform.NetworkCallback)
	w.mutex.Unlock()
	if cancel != nil {
		cancel()
		<-done
	}
}

func (w *watcher) snapshotCallbacks() []platform.NetworkCallback {
	w.mutex.Lock()
	defer w.mutex.Unlock()
	cbs := make([]platform.NetworkCallback, 0, len(w.callbacks))
	for _, cb := range w.callbacks {
		cbs = append(cbs, cb)
	}
	return cbs
}

func (w *watcher) run(ctx context.Context, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(w.backend.pollInterval)
	defer ticker.Stop()

	var previous *pollState
	for {
		current, err := w.poll(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			monitoring.PlatformFaults.WithLabelValues("adb").Inc()
			w.backend.logger.Warn().Err(err).Msg("adb poll failed")
		} else {
			if previous != nil {
				w.dispatch(diffStates(*previous, current))
			}
			previous = &current
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (w *watcher) poll(ctx context.Context) (pollState, error) {
	dump, err := w.backend.connectivity(ctx)
	if err != nil {
		return pollState{}, err
	}
	props, err := w.backend.client.Props(ctx)
	if err != nil {
		return pollState{}, err
	}
	return pollState{agents: dump.agents, radio: radioSignature(props)}, nil
}

func radioSignature(props map[string]string) string {
	keys := []string{propSimState, propSimAlpha, propOperatorNum, propIsRoaming, propNetworkType}
	values := make([]string, 0, len(keys))
	for _, k := range keys {
		values = append(values, props[k])
	}
	return strings.Join(values, "|")
}

type networkEvent struct {
	kind    string
	network platform.Network
	caps    platform.Capabilities
}

const (
	eventAvailable = "available"
	eventLost      = "lost"
	eventChanged   = "capabilities"
)

// diffStates lists the callbacks implied by going from prev to cur, in
// ascending network id order. A radio change with no agent change is
// reported as a capabilities change on every network.
func diffStates(prev, cur pollState) []networkEvent {
	var events []networkEvent
	ids := make([]int, 0, len(prev.agents)+len(cur.agents))
	for id := range prev.agents {
		ids = append(ids, id)
	}
	for id := range cur.agents {
		if _, ok := prev.agents[id]; !ok {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)

	radioChanged := prev.radio != cur.radio
	for _, id := range ids {
		before, had := prev.agents[id]
		after, has := cur.agents[id]
		switch {
		case had && !has:
			events = append(events, networkEvent{kind: eventLost, network: before.network})
		case !had && has:
			events = append(events,
				networkEvent{kind: eventAvailable, network: after.network},
				networkEvent{kind: eventChanged, network: after.network, caps: after.caps})
		case !sameCapabilities(before.caps, after.caps) || radioChanged:
			events = append(events, networkEvent{kind: eventChanged, network: after.network, caps: after.caps})
		}
	}
	return events
}

func sameCapabilities(a, b platform.Capabilities) bool {
	return a.HasInternet == b.HasInternet && a.Ssid == b.Ssid && slices.Equal(a.Transports, b.Transports)
}

func (w *watcher) dispatch(events []networkEvent) {
	if len(events) == 0 {
		return
	}
	callbacks := w.snapshotCallbacks()
	for _, ev := range events {
		w.backend.logger.Debug().Str("event", ev.kind).Int("network", ev.network.Id).Msg("network event")
		for _, cb := range callbacks {
			switch ev.kind {
			case eventAvailable:
				cb.OnAvailable(ev.network)
			case eventLost:
				cb.OnLost(ev.network)
			case eventChanged:
				caps := ev.caps
				if !w.backend.HasPermission(platform.AccessFineLocation) {
					caps.Ssid = ""
				}
				cb.OnCapabilitiesChanged(ev.network, caps)
			}
		}
	}
}
