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

// Package notify delivers network snapshots to external consumers.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"gitlab.eurecom.fr/open-exposure/coresim/device-monitor/internal/models"
	"gitlab.eurecom.fr/open-exposure/coresim/device-monitor/internal/monitoring"
)

const (
	resultDelivered = "delivered"
	resultFailed    = "failed"
	resultThrottled = "throttled"
	resultFiltered  = "filtered"
)

var ErrSubscriptionNotFound = errors.New("subscription not found")

type WebhookConfig struct {
	// Rate is the number of notifications per second allowed per subscriber.
	Rate    float64       `yaml:"rate" json:"rate"`
	Burst   int           `yaml:"burst" json:"burst"`
	Timeout time.Duration `yaml:"timeout" json:"timeout"`
}

func DefaultWebhookConfig() WebhookConfig {
	return WebhookConfig{Rate: 5, Burst: 10, Timeout: 5 * time.Second}
}

// Subscription registers a callback URI for snapshot notifications. An
// empty Kinds list subscribes to every connection kind.
type Subscription struct {
	Id          string                  `json:"id"`
	CallbackUri string                  `json:"callbackUri"`
	Kinds       []models.ConnectionKind `json:"kinds,omitempty"`
	CreatedAt   time.Time               `json:"createdAt"`
}

func (s Subscription) accepts(kind models.ConnectionKind) bool {
	return len(s.Kinds) == 0 || slices.Contains(s.Kinds, kind)
}

// Notification is the body POSTed to subscribers.
type Notification struct {
	SubscriptionId string                 `json:"subscriptionId"`
	Instance       string                 `json:"instance"`
	Snapshot       models.NetworkSnapshot `json:"snapshot"`
}

type subscriber struct {
	sub     Subscription
	limiter *rate.Limiter
}

type WebhookRegistry struct {
	cfg      WebhookConfig
	instance string
	client   *http.Client

	subMutex    sync.RWMutex
	subscribers map[string]*subscriber
}

func NewWebhookRegistry(instance string, cfg WebhookConfig) *WebhookRegistry {
	def := DefaultWebhookConfig()
	if cfg.Rate <= 0 {
		cfg.Rate = def.Rate
	}
	if cfg.Burst <= 0 {
		cfg.Burst = def.Burst
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	return &WebhookRegistry{
		cfg:         cfg,
		instance:    instance,
		client:      &http.Client{Timeout: cfg.Timeout},
		subscribers: make(map[string]*subscriber),
	}
}

// Subscribe validates and stores a subscription, assigning its id.
func (w *WebhookRegistry) Subscribe(sub Subscription) (Subscription, error) {
	u, err := url.Parse(sub.CallbackUri)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return Subscription{}, errors.Errorf("invalid callbackUri %q", sub.CallbackUri)
	}
	for _, k := range sub.Kinds {
		if !slices.Contains(models.AllConnectionKinds(), k) {
			return Subscription{}, errors.Errorf("invalid connection kind %q", k)
		}
	}
	sub.Id = uuid.New().String()
	sub.CreatedAt = time.Now().UTC()

	w.subMutex.Lock()
	defer w.subMutex.Unlock()
	w.subscribers[sub.Id] = &subscriber{
		sub:     sub,
		limiter: rate.NewLimiter(rate.Limit(w.cfg.Rate), w.cfg.Burst),
	}
	log.Info().Str("instance", w.instance).Str("subscription", sub.Id).Str("callback", sub.CallbackUri).Msg("created new subscription")
	return sub, nil
}

func (w *WebhookRegistry) Unsubscribe(id string) error {
	w.subMutex.Lock()
	defer w.subMutex.Unlock()
	if _, ok := w.subscribers[id]; !ok {
		return errors.Wrapf(ErrSubscriptionNotFound, "subscription %s", id)
	}
	delete(w.subscribers, id)
	log.Info().Str("instance", w.instance).Str("subscription", id).Msg("removed subscription")
	return nil
}

// Subscriptions lists subscriptions ordered by creation time.
func (w *WebhookRegistry) Subscriptions() []Subscription {
	w.subMutex.RLock()
	defer w.subMutex.RUnlock()
	subs := make([]Subscription, 0, len(w.subscribers))
	for _, s := range w.subscribers {
		subs = append(subs, s.sub)
	}
	sort.Slice(subs, func(i, j int) bool { return subs[i].CreatedAt.Before(subs[j].CreatedAt) })
	return subs
}

// Notify POSTs the snapshot to every matching subscriber and waits for
// the deliveries. Delivery failures are logged and counted, not returned.
func (w *WebhookRegistry) Notify(ctx context.Context, snapshot models.NetworkSnapshot) error {
	w.subMutex.RLock()
	targets := make([]*subscriber, 0, len(w.subscribers))
	for _, s := range w.subscribers {
		targets = append(targets, s)
	}
	w.subMutex.RUnlock()

	kind := connectionKind(snapshot)

	type delivery struct {
		sub  Subscription
		body []byte
	}
	deliveries := make([]delivery, 0, len(targets))
	for _, s := range targets {
		if !s.sub.accepts(kind) {
			monitoring.WebhookNotifications.WithLabelValues(resultFiltered).Inc()
			continue
		}
		if !s.limiter.Allow() {
			monitoring.WebhookNotifications.WithLabelValues(resultThrottled).Inc()
			log.Debug().Str("subscription", s.sub.Id).Msg("notification throttled")
			continue
		}
		body, err := json.Marshal(Notification{SubscriptionId: s.sub.Id, Instance: w.instance, Snapshot: snapshot})
		if err != nil {
			return errors.Wrap(err, "encode notification")
		}
		deliveries = append(deliveries, delivery{sub: s.sub, body: body})
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, d := range deliveries {
		g.Go(func() error {
			if err := w.post(gctx, d.sub.CallbackUri, d.body); err != nil {
				monitoring.WebhookNotifications.WithLabelValues(resultFailed).Inc()
				log.Warn().Err(err).Str("subscription", d.sub.Id).Msg("error notifying subscriber")
				return nil
			}
			monitoring.WebhookNotifications.WithLabelValues(resultDelivered).Inc()
			return nil
		})
	}
	return g.Wait()
}

func connectionKind(snapshot models.NetworkSnapshot) models.ConnectionKind {
	if snapshot.Connection == nil {
		return models.ConnectionKindUnknown
	}
	return snapshot.Connection.Kind()
}

func (w *WebhookRegistry) post(ctx context.Context, callbackUrl string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, callbackUrl, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := w.client.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode >= 300 {
		return errors.Errorf("subscriber answered %s", resp.Status)
	}
	return nil
}

// NORTHBOUND Definitions

func (w *WebhookRegistry) HandleNewSubscription(rw http.ResponseWriter, r *http.Request) {
	sub := Subscription{}
	if err := json.NewDecoder(r.Body).Decode(&sub); err != nil {
		http.Error(rw, "Invalid request body", http.StatusBadRequest)
		return
	}
	created, err := w.Subscribe(sub)
	if err != nil {
		http.Error(rw, err.Error(), http.StatusBadRequest)
		return
	}
	rw.Header().Set("Content-Type", "application/json")
	rw.Header().Set("Location", r.URL.Path+"/"+created.Id)
	rw.WriteHeader(http.StatusCreated)
	if err := json.NewEncoder(rw).Encode(created); err != nil {
		http.Error(rw, "could not encode response", http.StatusInternalServerError)
	}
}

func (w *WebhookRegistry) HandleListSubscriptions(rw http.ResponseWriter, r *http.Request) {
	rw.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(rw).Encode(w.Subscriptions()); err != nil {
		http.Error(rw, "could not encode response", http.StatusInternalServerError)
	}
}

func (w *WebhookRegistry) HandleDeleteSubscription(rw http.ResponseWriter, r *http.Request) {
	if err := w.Unsubscribe(mux.Vars(r)["subscriptionId"]); err != nil {
		http.Error(rw, err.Error(), http.StatusNotFound)
		return
	}
	rw.WriteHeader(http.StatusNoContent)
}

func (w *WebhookRegistry) RegisterNorthboundAPIs(r *mux.Router) {
	r.HandleFunc("/subscriptions", w.HandleNewSubscription).Methods(http.MethodPost)
	r.HandleFunc("/subscriptions", w.HandleListSubscriptions).Methods(http.MethodGet)
	r.HandleFunc("/subscriptions/{subscriptionId}", w.HandleDeleteSubscription).Methods(http.MethodDelete)
	log.Info().Str("instance", w.instance).Msg("subscription API has been registered")
}
