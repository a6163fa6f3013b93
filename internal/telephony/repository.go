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

	"gitlab.eurecom.fr/open-exposure/coresim/device-monitor/internal/models"
	"gitlab.eurecom.fr/open-exposure/coresim/device-monitor/internal/platform"
)

// NetworkRepository is the consumer-facing entry point: one-shot reads for
// manual refresh and the snapshot stream.
type NetworkRepository struct {
	Sims     *SimEnumerator
	Resolver *ConnectionResolver
	Notifier *ChangeNotifier
}

func NewNetworkRepository(p platform.Platform, opts ...Option) *NetworkRepository {
	sims := NewSimEnumerator(p, opts...)
	resolver := NewConnectionResolver(p, sims, opts...)
	return &NetworkRepository{
		Sims:     sims,
		Resolver: resolver,
		Notifier: NewChangeNotifier(p, sims, resolver, opts...),
	}
}

func (r *NetworkRepository) GetSimCards(ctx context.Context) ([]models.SimCard, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return r.Sims.GetSimCards(ctx), nil
}

func (r *NetworkRepository) GetActiveConnection(ctx context.Context) (models.ConnectionState, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return r.Resolver.Resolve(ctx), nil
}

func (r *NetworkRepository) Snapshot(ctx context.Context) (models.NetworkSnapshot, error) {
	if err := ctx.Err(); err != nil {
		return models.NetworkSnapshot{}, err
	}
	return r.Notifier.Snapshot(ctx), nil
}

func (r *NetworkRepository) ObserveNetworkChanges(ctx context.Context) (<-chan models.NetworkSnapshot, error) {
	return r.Notifier.Observe(ctx)
}
