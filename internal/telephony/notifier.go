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
	"context"
	"sync"

	"github.com/pkg/errors"

	"gitlab.eurecom.fr/open-exposure/coresim/device-monitor/internal/models"
	"gitlab.eurecom.fr/open-exposure/coresim/device-monitor/internal/monitoring"
	"gitlab.eurecom.fr/open-exposure/coresim/device-monitor/internal/platform"
)

// ErrRegistrationFailed is returned by Observe when the connectivity
// service refuses the network callback.
var ErrRegistrationFailed = errors.New("network callback registration failed")

// registrationError matches ErrRegistrationFailed and unwraps to the
// platform error.
type registrationError struct {
	cause error
}

func (e *registrationError) Error() string {
	return ErrRegistrationFailed.Error() + ": " + e.cause.Error()
}

func (e *registrationError) Is(target error) bool { return target == ErrRegistrationFailed }

func (e *registrationError) Unwrap() error { return e.cause }

// ChangeNotifier turns connectivity callbacks into a stream of snapshots.
type ChangeNotifier struct {
	connectivity platform.ConnectivityService
	sims         *SimEnumerator
	resolver     *ConnectionResolver
	opts         options
}

func NewChangeNotifier(p platform.Platform, sims *SimEnumerator, resolver *ConnectionResolver, opts ...Option) *ChangeNotifier {
	if sims == nil {
		sims = NewSimEnumerator(p, opts...)
	}
	if resolver == nil {
		resolver = NewConnectionResolver(p, sims, opts...)
	}
	return &ChangeNotifier{
		connectivity: p.Connectivity,
		sims:         sims,
		resolver:     resolver,
		opts:         newOptions(opts),
	}
}

// Snapshot enumerates the SIMs, resolves the connection and stamps the result.
func (n *ChangeNotifier) Snapshot(ctx context.Context) models.NetworkSnapshot {
	sims := n.sims.GetSimCards(ctx)
	connection := n.resolver.Resolve(ctx)
	return models.NewNetworkSnapshot(sims, connection, n.opts.clock())
}

// Observe registers a network callback and returns a stream of snapshots.
//
// The first snapshot is computed right away, without waiting for an event.
// Every available, lost or capabilities-changed event then triggers a full
// recomputation. Recomputations run one at a time on a worker goroutine;
// events that arrive while one is running are coalesced into a single
// follow-up, so a burst of events may collapse into fewer emissions than
// events. Emissions follow event order and the last event is always
// covered by a later snapshot.
//
// When ctx is done the callback is unregistered exactly once and the
// channel is closed. Each call owns its own registration.
func (n *ChangeNotifier) Observe(ctx context.Context) (<-chan models.NetworkSnapshot, error) {
	trigger := make(chan struct{}, 1)
	notify := func(event string, network platform.Network) {
		n.opts.logger.Debug().Str("event", event).Int("network", network.Id).Msg("connectivity event")
		select {
		case trigger <- struct{}{}:
		default:
		}
	}

	reg, err := n.register(platform.CallbackFuncs{
		Available: func(network platform.Network) { notify("available", network) },
		Lost:      func(network platform.Network) { notify("lost", network) },
		CapabilitiesChanged: func(network platform.Network, _ platform.Capabilities) {
			notify("capabilities_changed", network)
		},
	})
	if err != nil {
		n.opts.logger.Error().Err(err).Msg("could not register network callback")
		return nil, &registrationError{cause: err}
	}

	var once sync.Once
	unregister := func() {
		once.Do(func() {
			if err := n.unregister(reg); err != nil {
				n.opts.logger.Warn().Err(err).Str("registration", reg.Id()).Msg("could not unregister network callback")
			}
		})
	}

	out := make(chan models.NetworkSnapshot, n.opts.bufferSize)
	go n.run(ctx, trigger, out, unregister)
	return out, nil
}

func (n *ChangeNotifier) run(ctx context.Context, trigger <-chan struct{}, out chan<- models.NetworkSnapshot, unregister func()) {
	monitoring.NetworkObservers.WithLabelValues(n.opts.instance).Inc()
	defer monitoring.NetworkObservers.WithLabelValues(n.opts.instance).Dec()
	defer close(out)
	defer unregister()
	defer func() {
		if r := recover(); r != nil {
			n.opts.logger.Error().Interface("panic", r).Msg("snapshot stream aborted")
		}
	}()

	if !n.emit(ctx, out) {
		return
	}
	for {
		select {
		case <-ctx.Done():
			return
		case <-trigger:
			if !n.emit(ctx, out) {
				return
			}
		}
	}
}

func (n *ChangeNotifier) emit(ctx context.Context, out chan<- models.NetworkSnapshot) bool {
	if ctx.Err() != nil {
		return false
	}
	snapshot := n.Snapshot(ctx)
	select {
	case out <- snapshot:
	case <-ctx.Done():
		return false
	}

	monitoring.SnapshotsEmitted.WithLabelValues(n.opts.instance).Inc()
	monitoring.ActiveSims.WithLabelValues(n.opts.instance).Set(float64(len(snapshot.Sims)))
	for _, kind := range models.AllConnectionKinds() {
		value := 0.0
		if kind == snapshot.Connection.Kind() {
			value = 1
		}
		monitoring.ConnectionState.WithLabelValues(n.opts.instance, string(kind)).Set(value)
	}
	n.opts.logger.Debug().Str("connection", string(snapshot.Connection.Kind())).Int("sims", len(snapshot.Sims)).Msg("snapshot emitted")
	return true
}

func (n *ChangeNotifier) register(cb platform.NetworkCallback) (reg platform.Registration, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Errorf("panic: %v", r)
		}
	}()
	reg, err = n.connectivity.RegisterNetworkCallback(cb)
	if err == nil && reg == nil {
		err = errors.New("no registration handle returned")
	}
	return reg, err
}

func (n *ChangeNotifier) unregister(reg platform.Registration) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Errorf("panic: %v", r)
		}
	}()
	return n.connectivity.UnregisterNetworkCallback(reg)
}
