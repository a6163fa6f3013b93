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
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gitlab.eurecom.fr/open-exposure/coresim/device-monitor/internal/models"
)

type receiver struct {
	mutex         sync.Mutex
	notifications []Notification
}

func (rc *receiver) handler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		n := Notification{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&n))
		rc.mutex.Lock()
		rc.notifications = append(rc.notifications, n)
		rc.mutex.Unlock()
		w.WriteHeader(http.StatusNoContent)
	}
}

func (rc *receiver) count() int {
	rc.mutex.Lock()
	defer rc.mutex.Unlock()
	return len(rc.notifications)
}

func wifiSnapshot() models.NetworkSnapshot {
	return models.NewNetworkSnapshot(nil, models.WifiConnection{}, time.Now())
}

func TestNotifyPostsToSubscribers(t *testing.T) {
	rc := &receiver{}
	srv := httptest.NewServer(rc.handler(t))
	defer srv.Close()

	reg := NewWebhookRegistry("inst-1", WebhookConfig{})
	sub, err := reg.Subscribe(Subscription{CallbackUri: srv.URL})
	require.NoError(t, err)
	require.NotEmpty(t, sub.Id)

	require.NoError(t, reg.Notify(context.Background(), wifiSnapshot()))
	require.Equal(t, 1, rc.count())
	assert.Equal(t, sub.Id, rc.notifications[0].SubscriptionId)
	assert.Equal(t, "inst-1", rc.notifications[0].Instance)
	assert.Equal(t, models.ConnectionKindWifi, rc.notifications[0].Snapshot.Connection.Kind())
}

func TestNotifyFiltersByKind(t *testing.T) {
	rc := &receiver{}
	srv := httptest.NewServer(rc.handler(t))
	defer srv.Close()

	reg := NewWebhookRegistry("inst-1", WebhookConfig{})
	_, err := reg.Subscribe(Subscription{CallbackUri: srv.URL, Kinds: []models.ConnectionKind{models.ConnectionKindMobile}})
	require.NoError(t, err)

	require.NoError(t, reg.Notify(context.Background(), wifiSnapshot()))
	assert.Equal(t, 0, rc.count())
}

func TestNotifyIsRateLimited(t *testing.T) {
	rc := &receiver{}
	srv := httptest.NewServer(rc.handler(t))
	defer srv.Close()

	reg := NewWebhookRegistry("inst-1", WebhookConfig{Rate: 0.001, Burst: 2})
	_, err := reg.Subscribe(Subscription{CallbackUri: srv.URL})
	require.NoError(t, err)

	for range 5 {
		require.NoError(t, reg.Notify(context.Background(), wifiSnapshot()))
	}
	assert.Equal(t, 2, rc.count())
}

func TestNotifyToleratesFailingSubscriber(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	reg := NewWebhookRegistry("inst-1", WebhookConfig{})
	_, err := reg.Subscribe(Subscription{CallbackUri: srv.URL})
	require.NoError(t, err)
	assert.NoError(t, reg.Notify(context.Background(), wifiSnapshot()))
}

func TestSubscribeRejectsInvalidInput(t *testing.T) {
	reg := NewWebhookRegistry("inst-1", WebhookConfig{})
	_, err := reg.Subscribe(Subscription{CallbackUri: "not a url"})
	assert.Error(t, err)
	_, err = reg.Subscribe(Subscription{CallbackUri: "http://localhost/cb", Kinds: []models.ConnectionKind{"satellite"}})
	assert.Error(t, err)
	assert.ErrorIs(t, reg.Unsubscribe("missing"), ErrSubscriptionNotFound)
}

func TestSubscriptionAPI(t *testing.T) {
	reg := NewWebhookRegistry("inst-1", WebhookConfig{})
	router := mux.NewRouter()
	reg.RegisterNorthboundAPIs(router)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/subscriptions",
		strings.NewReader(`{"callbackUri":"http://127.0.0.1:9/cb","kinds":["mobile"]}`)))
	require.Equal(t, http.StatusCreated, rec.Code)
	created := Subscription{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Equal(t, []models.ConnectionKind{models.ConnectionKindMobile}, created.Kinds)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/subscriptions", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	listed := []Subscription{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listed))
	require.Len(t, listed, 1)
	assert.Equal(t, created.Id, listed[0].Id)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/subscriptions/"+created.Id, nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/subscriptions/"+created.Id, nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/subscriptions", strings.NewReader("{")))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestNotifyEncodeFailureStartsNoDelivery(t *testing.T) {
	rc := &receiver{}
	srv := httptest.NewServer(rc.handler(t))
	defer srv.Close()

	reg := NewWebhookRegistry("inst-1", WebhookConfig{})
	for range 3 {
		_, err := reg.Subscribe(Subscription{CallbackUri: srv.URL})
		require.NoError(t, err)
	}

	// json cannot encode years past 9999
	snapshot := models.NewNetworkSnapshot(nil, models.WifiConnection{}, time.Date(10000, 1, 1, 0, 0, 0, 0, time.UTC))
	require.Error(t, reg.Notify(context.Background(), snapshot))

	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, 0, rc.count())
}
