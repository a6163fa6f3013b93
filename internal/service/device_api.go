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

package service

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"

	"gitlab.eurecom.fr/open-exposure/coresim/device-monitor/internal/device"
	"gitlab.eurecom.fr/open-exposure/coresim/device-monitor/internal/models"
	"gitlab.eurecom.fr/open-exposure/coresim/device-monitor/internal/platform"
)

var ErrNotSimulated = errors.New("device controls are only available with the simulator backend")

type wifiRequest struct {
	Ssid string `json:"ssid"`
}

type ratRequest struct {
	Rat string `json:"rat"`
}

type roamingRequest struct {
	Roaming bool `json:"roaming"`
}

type dataSubscriptionRequest struct {
	SubscriptionId int `json:"subscriptionId"`
}

type permissionRequest struct {
	Granted bool `json:"granted"`
}

// simulatedDevice wraps a device control handler, rejecting the request
// when the current instance does not run the simulator.
func (app *MonitorApp) simulatedDevice(handler func(*device.Device, http.ResponseWriter, *http.Request) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		instance, err := app.CurrentInstance()
		if err != nil {
			http.Error(w, err.Error(), statusFor(err))
			return
		}
		if instance.Device == nil {
			http.Error(w, ErrNotSimulated.Error(), http.StatusConflict)
			return
		}
		if err := handler(instance.Device, w, r); err != nil {
			status := http.StatusBadRequest
			if errors.Is(err, device.ErrUnknownSlot) || errors.Is(err, device.ErrUnknownSubscription) {
				status = http.StatusNotFound
			}
			http.Error(w, err.Error(), status)
			return
		}
		writeJSON(w, http.StatusOK, instance.Device.Status())
	}
}

func decodeBody(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return errors.Wrap(err, "invalid request body")
	}
	return nil
}

func slotParam(r *http.Request) (int, error) {
	slot, err := strconv.Atoi(mux.Vars(r)["slot"])
	if err != nil {
		return 0, errors.Errorf("invalid slot %q", mux.Vars(r)["slot"])
	}
	return slot, nil
}

func (app *MonitorApp) registerDeviceAPIs(r *mux.Router) {
	r.HandleFunc("/status", app.simulatedDevice(func(d *device.Device, w http.ResponseWriter, r *http.Request) error {
		return nil
	})).Methods(http.MethodGet)

	r.HandleFunc("/wifi", app.simulatedDevice(func(d *device.Device, w http.ResponseWriter, r *http.Request) error {
		req := wifiRequest{}
		if r.ContentLength != 0 {
			if err := decodeBody(r, &req); err != nil {
				return err
			}
		}
		d.JoinWifi(req.Ssid)
		return nil
	})).Methods(http.MethodPost)

	r.HandleFunc("/wifi", app.simulatedDevice(func(d *device.Device, w http.ResponseWriter, r *http.Request) error {
		d.LeaveWifi()
		return nil
	})).Methods(http.MethodDelete)

	r.HandleFunc("/cellular", app.simulatedDevice(func(d *device.Device, w http.ResponseWriter, r *http.Request) error {
		d.AttachCellular()
		return nil
	})).Methods(http.MethodPost)

	r.HandleFunc("/cellular", app.simulatedDevice(func(d *device.Device, w http.ResponseWriter, r *http.Request) error {
		d.DetachCellular()
		return nil
	})).Methods(http.MethodDelete)

	r.HandleFunc("/data-subscription", app.simulatedDevice(func(d *device.Device, w http.ResponseWriter, r *http.Request) error {
		req := dataSubscriptionRequest{}
		if err := decodeBody(r, &req); err != nil {
			return err
		}
		return d.SetDefaultDataSubscription(req.SubscriptionId)
	})).Methods(http.MethodPut)

	r.HandleFunc("/permissions/{permission}", app.simulatedDevice(func(d *device.Device, w http.ResponseWriter, r *http.Request) error {
		req := permissionRequest{}
		if err := decodeBody(r, &req); err != nil {
			return err
		}
		p := platform.Permission(mux.Vars(r)["permission"])
		if p != platform.ReadPhoneState && p != platform.AccessFineLocation {
			return errors.Errorf("unknown permission %q", p)
		}
		d.SetPermission(p, req.Granted)
		return nil
	})).Methods(http.MethodPut)

	r.HandleFunc("/sims", app.simulatedDevice(func(d *device.Device, w http.ResponseWriter, r *http.Request) error {
		cfg := device.SimConfig{}
		if err := decodeBody(r, &cfg); err != nil {
			return err
		}
		return d.InsertSim(cfg)
	})).Methods(http.MethodPost)

	r.HandleFunc("/sims/{slot}", app.simulatedDevice(func(d *device.Device, w http.ResponseWriter, r *http.Request) error {
		slot, err := slotParam(r)
		if err != nil {
			return err
		}
		return d.RemoveSim(slot)
	})).Methods(http.MethodDelete)

	r.HandleFunc("/sims/{slot}/rat", app.simulatedDevice(func(d *device.Device, w http.ResponseWriter, r *http.Request) error {
		slot, err := slotParam(r)
		if err != nil {
			return err
		}
		req := ratRequest{}
		if err := decodeBody(r, &req); err != nil {
			return err
		}
		return d.SetRat(slot, models.ParseRawNetworkType(req.Rat))
	})).Methods(http.MethodPut)

	r.HandleFunc("/sims/{slot}/roaming", app.simulatedDevice(func(d *device.Device, w http.ResponseWriter, r *http.Request) error {
		slot, err := slotParam(r)
		if err != nil {
			return err
		}
		req := roamingRequest{}
		if err := decodeBody(r, &req); err != nil {
			return err
		}
		return d.SetRoaming(slot, req.Roaming)
	})).Methods(http.MethodPut)
}
