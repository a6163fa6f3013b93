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
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"gitlab.eurecom.fr/open-exposure/coresim/device-monitor/internal/models"
)

const DefaultRedisChannel = "device-monitor:snapshots"

type RedisConfig struct {
	Enabled  bool   `yaml:"enabled" json:"enabled"`
	Addr     string `yaml:"addr" json:"addr"`
	Password string `yaml:"password" json:"-"`
	Db       int    `yaml:"db" json:"db"`
	Channel  string `yaml:"channel" json:"channel"`
}

type publisher interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
	Close() error
}

// SnapshotEvent is the message published on the Redis channel.
type SnapshotEvent struct {
	Instance  string                 `json:"instance"`
	Timestamp time.Time              `json:"timestamp"`
	Snapshot  models.NetworkSnapshot `json:"snapshot"`
}

type RedisPublisher struct {
	client   publisher
	channel  string
	instance string
}

// NewRedisPublisher connects to Redis and checks the connection.
func NewRedisPublisher(ctx context.Context, instance string, cfg RedisConfig) (*RedisPublisher, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.Db,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, errors.Wrapf(err, "connect to redis at %s", cfg.Addr)
	}
	log.Info().Str("addr", cfg.Addr).Int("db", cfg.Db).Msg("connected to Redis")
	return newRedisPublisher(client, instance, cfg.Channel), nil
}

func newRedisPublisher(client publisher, instance, channel string) *RedisPublisher {
	if channel == "" {
		channel = DefaultRedisChannel
	}
	return &RedisPublisher{client: client, channel: channel, instance: instance}
}

func (p *RedisPublisher) Channel() string {
	return p.channel
}

// Publish sends the snapshot to the configured channel.
func (p *RedisPublisher) Publish(ctx context.Context, snapshot models.NetworkSnapshot) error {
	data, err := json.Marshal(SnapshotEvent{Instance: p.instance, Timestamp: time.Now().UTC(), Snapshot: snapshot})
	if err != nil {
		return errors.Wrap(err, "marshal snapshot event")
	}
	if err := p.client.Publish(ctx, p.channel, data).Err(); err != nil {
		return errors.Wrap(err, "publish snapshot event")
	}
	log.Debug().Str("channel", p.channel).Str("connection", string(connectionKind(snapshot))).Msg("published snapshot")
	return nil
}

func (p *RedisPublisher) Close() error {
	return p.client.Close()
}
