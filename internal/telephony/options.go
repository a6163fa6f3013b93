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
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const DefaultInstance = "default"

type options struct {
	logger     zerolog.Logger
	clock      func() time.Time
	bufferSize int
	instance   string
}

type Option func(*options)

// WithLogger overrides the global zerolog logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithClock sets the source of snapshot capture times.
func WithClock(clock func() time.Time) Option {
	return func(o *options) {
		if clock != nil {
			o.clock = clock
		}
	}
}

// WithBufferSize sets the capacity of the snapshot channel returned by Observe.
func WithBufferSize(size int) Option {
	return func(o *options) {
		if size >= 0 {
			o.bufferSize = size
		}
	}
}

// WithInstance sets the instance label used for metrics and logs.
func WithInstance(instance string) Option {
	return func(o *options) {
		if instance != "" {
			o.instance = instance
		}
	}
}

func newOptions(opts []Option) options {
	o := options{
		logger:     log.Logger,
		clock:      time.Now,
		bufferSize: 1,
		instance:   DefaultInstance,
	}
	for _, opt := range opts {
		opt(&o)
	}
	o.logger = o.logger.With().Str("instance", o.instance).Logger()
	return o
}
