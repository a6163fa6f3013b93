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

package device

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/giuliocarot0/gitc"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"gitlab.eurecom.fr/open-exposure/coresim/device-monitor/internal/models"
	"gitlab.eurecom.fr/open-exposure/coresim/device-monitor/internal/platform"
)

var (
	ErrUnknownSubscription = errors.New("unknown subscription")
	ErrUnknownSlot         = errors.New("unknown sim slot")
	ErrSlotInUse           = errors.New("sim slot already in use")
)

// ratCycle is the set of technologies RatChange picks from.
var ratCycle = []int{
	models.RawNetworkTypeEdge,
	models.RawNetworkTypeHspa,
	models.RawNetworkTypeLte,
	models.RawNetworkTypeLte,
	models.RawNetworkTypeNr,
}

// A Device represents a simulated handset.
// It detains the SIM slots, the radio state and the callbacks registered
// by observers, and implements every platform service on top of them.
type Device struct {
	ctx       context.Context
	cancelFun context.CancelFunc

	Id               string
	deviceTask       string
	connectivityTask string

	// status variables
	state          models.DeviceState
	slots          map[int]*simSlot
	defaultDataSub int
	permissions    map[platform.Permission]bool
	wifiSsid       string
	wifiNetId      int
	cellNetId      int
	nextNetId      int
	poweredUp      bool
	statusMutex    sync.RWMutex

	callbacks     map[string]platform.NetworkCallback
	callbackMutex sync.RWMutex

	// simulation variables
	tickInterval time.Duration
	logger       zerolog.Logger
}

type simSlot struct {
	cfg     SimConfig
	rat     int
	roaming bool
}

// NewDevice creates a Device instance with the provided configuration.
// The device is inert until PowerUp is called.
func NewDevice(ctx context.Context, cfg DeviceConfig) (*Device, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	devCtx, devCancelFunc := context.WithCancel(ctx)
	suffix := uuid.NewString()
	id := cfg.Id
	if id == "" {
		id = suffix
	}

	d := &Device{
		ctx:              devCtx,
		cancelFun:        devCancelFunc,
		Id:               id,
		deviceTask:       "DEVICE-" + suffix,
		connectivityTask: "CONNECTIVITY-" + suffix,
		state:            models.Offline,
		slots:            make(map[int]*simSlot),
		defaultDataSub:   cfg.DefaultDataSubscription,
		permissions:      make(map[platform.Permission]bool),
		wifiSsid:         cfg.WifiSsid,
		nextNetId:        100,
		callbacks:        make(map[string]platform.NetworkCallback),
		tickInterval:     cfg.TickInterval,
		logger:           log.With().Str("device", id).Logger(),
	}

	for _, p := range cfg.Permissions {
		d.permissions[p] = true
	}
	for _, sim := range cfg.Sims {
		d.slots[sim.Slot] = newSimSlot(sim)
	}
	if d.defaultDataSub == 0 {
		if subs := d.validSubscriptionIds(); len(subs) > 0 {
			d.defaultDataSub = subs[0]
		}
	}

	switch cfg.InitialState {
	case "cellular":
		d.state = models.Cellular
		d.cellNetId = d.allocNetId()
	case "wifi":
		d.state = models.Wifi
		d.wifiNetId = d.allocNetId()
	case "wifi+cellular":
		d.state = models.WifiAndCellular
		d.cellNetId = d.allocNetId()
		d.wifiNetId = d.allocNetId()
	}

	return d, nil
}

func newSimSlot(cfg SimConfig) *simSlot {
	rat := models.ParseRawNetworkType(cfg.Rat)
	if cfg.Rat == "" {
		rat = models.RawNetworkTypeLte
	}
	return &simSlot{
		cfg:     cfg,
		rat:     rat,
		roaming: cfg.Roaming,
	}
}

// PowerUp starts the device tasks and, when a tick interval is configured,
// the Markov routine that changes the radio state over time.
func (d *Device) PowerUp() error {
	d.statusMutex.Lock()
	if d.poweredUp {
		d.statusMutex.Unlock()
		return nil
	}
	d.poweredUp = true
	d.statusMutex.Unlock()

	err := gitc.StartTask(d.deviceTask, func(msg gitc.Message) {
		d.logger.Debug().Int("type", int(msg.Type)).Msg("device received message")
	}, 1024)
	if err != nil {
		return errors.Wrapf(err, "start task %s", d.deviceTask)
	}

	err = gitc.StartTask(d.connectivityTask, d.handleNetworkEvent, 1024)
	if err != nil {
		return errors.Wrapf(err, "start task %s", d.connectivityTask)
	}
	d.logger.Info().Str("state", d.State().String()).Msg("device powered up")

	if d.tickInterval <= 0 {
		return nil
	}

	go func() {
		ticker := time.NewTicker(d.tickInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				d.statusMutex.RLock()
				next, procedure := NextState(d.state)
				d.statusMutex.RUnlock()
				d.runProcedure(next, procedure)
			case <-d.ctx.Done():
				return
			}
		}
	}()
	return nil
}

// TurnOff stops the Markov routine and tears down every network.
func (d *Device) TurnOff() {
	d.cancelFun()
	d.LossOfConnection()
}

func (d *Device) runProcedure(next models.DeviceState, procedure models.DeviceProcedure) {
	switch procedure {
	case models.WifiJoin:
		d.JoinWifi("")
	case models.WifiLeave:
		d.LeaveWifi()
	case models.CellularAttach:
		d.AttachCellular()
	case models.CellularDetach:
		d.DetachCellular()
	case models.RatChange:
		if slot, ok := d.defaultDataSlot(); ok {
			_ = d.SetRat(slot, ratCycle[rand.Intn(len(ratCycle))])
		}
	case models.RoamingToggle:
		if slot, ok := d.defaultDataSlot(); ok {
			_ = d.SetRoaming(slot, !d.isRoaming(slot))
		}
	case models.DataSimSwitch:
		d.switchDataSim()
	case models.LossOfConnection:
		d.LossOfConnection()
	default:
	}
	if procedure != models.NoProcedure {
		d.logger.Debug().Str("procedure", string(procedure)).Str("target", next.String()).Str("state", d.State().String()).Msg("procedure executed")
	}
}

// JoinWifi connects the device to a Wi-Fi network. An empty ssid keeps
// the configured one.
func (d *Device) JoinWifi(ssid string) {
	d.statusMutex.Lock()
	if ssid != "" {
		d.wifiSsid = ssid
	}
	if d.wifiNetId != 0 {
		d.statusMutex.Unlock()
		return
	}
	d.wifiNetId = d.allocNetId()
	d.updateState()
	netId, caps := d.wifiNetId, d.wifiCapabilities()
	d.statusMutex.Unlock()

	d.logger.Info().Str("ssid", caps.Ssid).Int("network", netId).Msg("joined wifi")
	d.sendNetworkEvent(models.NetworkAvailableType, netId, caps)
	d.sendNetworkEvent(models.CapabilitiesChangedType, netId, caps)
}

func (d *Device) LeaveWifi() {
	d.statusMutex.Lock()
	netId := d.wifiNetId
	if netId == 0 {
		d.statusMutex.Unlock()
		return
	}
	d.wifiNetId = 0
	d.updateState()
	d.statusMutex.Unlock()

	d.logger.Info().Int("network", netId).Msg("left wifi")
	d.sendNetworkEvent(models.NetworkLostType, netId, platform.Capabilities{})
}

// AttachCellular brings mobile data up on the default data subscription.
func (d *Device) AttachCellular() {
	d.statusMutex.Lock()
	if d.cellNetId != 0 {
		d.statusMutex.Unlock()
		return
	}
	d.cellNetId = d.allocNetId()
	d.updateState()
	netId, caps := d.cellNetId, d.cellularCapabilities()
	d.statusMutex.Unlock()

	d.logger.Info().Int("network", netId).Msg("mobile data attached")
	d.sendNetworkEvent(models.NetworkAvailableType, netId, caps)
	d.sendNetworkEvent(models.CapabilitiesChangedType, netId, caps)
}

func (d *Device) DetachCellular() {
	d.statusMutex.Lock()
	netId := d.cellNetId
	if netId == 0 {
		d.statusMutex.Unlock()
		return
	}
	d.cellNetId = 0
	d.updateState()
	d.statusMutex.Unlock()

	d.logger.Info().Int("network", netId).Msg("mobile data detached")
	d.sendNetworkEvent(models.NetworkLostType, netId, platform.Capabilities{})
}

// LossOfConnection drops every network at once.
func (d *Device) LossOfConnection() {
	d.statusMutex.Lock()
	lost := []int{}
	if d.wifiNetId != 0 {
		lost = append(lost, d.wifiNetId)
	}
	if d.cellNetId != 0 {
		lost = append(lost, d.cellNetId)
	}
	d.wifiNetId, d.cellNetId = 0, 0
	d.updateState()
	d.statusMutex.Unlock()

	if len(lost) > 0 {
		d.logger.Info().Ints("networks", lost).Msg("connection lost")
	}
	for _, netId := range lost {
		d.sendNetworkEvent(models.NetworkLostType, netId, platform.Capabilities{})
	}
}

// SetRat changes the data network technology of a slot.
func (d *Device) SetRat(slot int, raw int) error {
	d.statusMutex.Lock()
	s, ok := d.slots[slot]
	if !ok {
		d.statusMutex.Unlock()
		return errors.Wrapf(ErrUnknownSlot, "slot %d", slot)
	}
	s.rat = raw
	d.statusMutex.Unlock()

	d.logger.Info().Int("slot", slot).Int("rat", raw).Msg("data network type changed")
	d.cellularChanged()
	return nil
}

// SetRoaming switches a slot between its home and a visited network.
func (d *Device) SetRoaming(slot int, roaming bool) error {
	d.statusMutex.Lock()
	s, ok := d.slots[slot]
	if !ok {
		d.statusMutex.Unlock()
		return errors.Wrapf(ErrUnknownSlot, "slot %d", slot)
	}
	s.roaming = roaming
	d.statusMutex.Unlock()

	d.logger.Info().Int("slot", slot).Bool("roaming", roaming).Msg("roaming state changed")
	d.cellularChanged()
	return nil
}

func (d *Device) SetDefaultDataSubscription(subId int) error {
	d.statusMutex.Lock()
	if _, ok := d.slotBySubscription(subId); !ok {
		d.statusMutex.Unlock()
		return errors.Wrapf(ErrUnknownSubscription, "subscription %d", subId)
	}
	d.defaultDataSub = subId
	d.statusMutex.Unlock()

	d.logger.Info().Int("subscriptionId", subId).Msg("default data subscription changed")
	d.cellularChanged()
	return nil
}

func (d *Device) SetPermission(p platform.Permission, granted bool) {
	d.statusMutex.Lock()
	defer d.statusMutex.Unlock()
	d.permissions[p] = granted
	d.logger.Info().Str("permission", string(p)).Bool("granted", granted).Msg("permission changed")
}

// InsertSim adds a SIM to a free slot.
func (d *Device) InsertSim(cfg SimConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	d.statusMutex.Lock()
	if _, used := d.slots[cfg.Slot]; used {
		d.statusMutex.Unlock()
		return errors.Wrapf(ErrSlotInUse, "slot %d", cfg.Slot)
	}
	d.slots[cfg.Slot] = newSimSlot(cfg)
	if d.defaultDataSub == 0 {
		d.defaultDataSub = cfg.SubscriptionId
	}
	d.statusMutex.Unlock()

	d.logger.Info().Int("slot", cfg.Slot).Int("subscriptionId", cfg.SubscriptionId).Msg("sim inserted")
	d.cellularChanged()
	return nil
}

// RemoveSim ejects the SIM of a slot. Mobile data stays up when another
// SIM still carries it, the platform just loses track of the subscription.
func (d *Device) RemoveSim(slot int) error {
	d.statusMutex.Lock()
	if _, ok := d.slots[slot]; !ok {
		d.statusMutex.Unlock()
		return errors.Wrapf(ErrUnknownSlot, "slot %d", slot)
	}
	delete(d.slots, slot)
	d.statusMutex.Unlock()

	d.logger.Info().Int("slot", slot).Msg("sim removed")
	d.cellularChanged()
	return nil
}

func (d *Device) State() models.DeviceState {
	d.statusMutex.RLock()
	defer d.statusMutex.RUnlock()
	return d.state
}

// Status is a read-only view of the simulated radio state.
type Status struct {
	Id                      string   `json:"id"`
	State                   string   `json:"state"`
	WifiNetwork             int      `json:"wifiNetwork,omitempty"`
	WifiSsid                string   `json:"wifiSsid,omitempty"`
	CellularNetwork         int      `json:"cellularNetwork,omitempty"`
	DefaultDataSubscription int      `json:"defaultDataSubscription"`
	Slots                   []int    `json:"slots"`
	Permissions             []string `json:"permissions"`
}

func (d *Device) Status() Status {
	d.statusMutex.RLock()
	defer d.statusMutex.RUnlock()

	st := Status{
		Id:                      d.Id,
		State:                   d.state.String(),
		WifiNetwork:             d.wifiNetId,
		CellularNetwork:         d.cellNetId,
		DefaultDataSubscription: d.defaultDataSub,
		Slots:                   []int{},
		Permissions:             []string{},
	}
	if d.wifiNetId != 0 {
		st.WifiSsid = d.wifiSsid
	}
	for slot := range d.slots {
		st.Slots = append(st.Slots, slot)
	}
	sort.Ints(st.Slots)
	for p, granted := range d.permissions {
		if granted {
			st.Permissions = append(st.Permissions, string(p))
		}
	}
	sort.Strings(st.Permissions)
	return st
}

/* network event delivery */

// sendNetworkEvent hands an event to the connectivity task, which invokes
// the callbacks on its own goroutine.
func (d *Device) sendNetworkEvent(msgType gitc.MessageType, netId int, caps platform.Capabilities) {
	d.statusMutex.RLock()
	poweredUp := d.poweredUp
	d.statusMutex.RUnlock()
	if !poweredUp {
		return
	}

	transports := make([]string, 0, len(caps.Transports))
	for _, t := range caps.Transports {
		transports = append(transports, string(t))
	}
	msg := &models.NetworkEventMsg{
		TimeStamp:  time.Now(),
		DeviceId:   d.Id,
		NetId:      netId,
		Transports: transports,
		Internet:   caps.HasInternet,
		Ssid:       caps.Ssid,
	}
	if err := gitc.Send(d.deviceTask, d.connectivityTask, msgType, msg); err != nil {
		d.logger.Error().Err(err).Int("network", netId).Msg("could not send network event")
	}
}

func (d *Device) handleNetworkEvent(msg gitc.Message) {
	event, ok := msg.Payload.(*models.NetworkEventMsg)
	if !ok {
		return
	}
	network := platform.Network{Id: event.NetId}
	caps := platform.Capabilities{HasInternet: event.Internet, Ssid: event.Ssid}
	for _, t := range event.Transports {
		caps.Transports = append(caps.Transports, platform.Transport(t))
	}

	d.callbackMutex.RLock()
	callbacks := make([]platform.NetworkCallback, 0, len(d.callbacks))
	for _, cb := range d.callbacks {
		callbacks = append(callbacks, cb)
	}
	d.callbackMutex.RUnlock()

	for _, cb := range callbacks {
		switch msg.Type {
		case models.NetworkAvailableType:
			cb.OnAvailable(network)
		case models.NetworkLostType:
			cb.OnLost(network)
		case models.CapabilitiesChangedType:
			cb.OnCapabilitiesChanged(network, caps)
		}
	}
}

func (d *Device) cellularChanged() {
	d.statusMutex.RLock()
	netId, caps := d.cellNetId, d.cellularCapabilities()
	d.statusMutex.RUnlock()
	if netId != 0 {
		d.sendNetworkEvent(models.CapabilitiesChangedType, netId, caps)
	}
}

/* helpers, callers hold statusMutex */

func (d *Device) allocNetId() int {
	d.nextNetId++
	return d.nextNetId
}

func (d *Device) updateState() {
	switch {
	case d.wifiNetId != 0 && d.cellNetId != 0:
		d.state = models.WifiAndCellular
	case d.wifiNetId != 0:
		d.state = models.Wifi
	case d.cellNetId != 0:
		d.state = models.Cellular
	default:
		d.state = models.Offline
	}
}

func (d *Device) wifiCapabilities() platform.Capabilities {
	return platform.Capabilities{
		Transports:  []platform.Transport{platform.TransportWifi},
		HasInternet: true,
		Ssid:        d.wifiSsid,
	}
}

func (d *Device) cellularCapabilities() platform.Capabilities {
	return platform.Capabilities{
		Transports:  []platform.Transport{platform.TransportCellular},
		HasInternet: true,
	}
}

func (d *Device) slotBySubscription(subId int) (*simSlot, bool) {
	for _, s := range d.slots {
		if s.cfg.SubscriptionId == subId {
			return s, true
		}
	}
	return nil, false
}

func (d *Device) validSubscriptionIds() []int {
	slots := make([]int, 0, len(d.slots))
	for slot := range d.slots {
		slots = append(slots, slot)
	}
	sort.Ints(slots)
	subs := []int{}
	for _, slot := range slots {
		if id := d.slots[slot].cfg.SubscriptionId; id != models.InvalidSubscriptionId {
			subs = append(subs, id)
		}
	}
	return subs
}

func (d *Device) defaultDataSlot() (int, bool) {
	d.statusMutex.RLock()
	defer d.statusMutex.RUnlock()
	s, ok := d.slotBySubscription(d.defaultDataSub)
	if !ok {
		return 0, false
	}
	return s.cfg.Slot, true
}

func (d *Device) isRoaming(slot int) bool {
	d.statusMutex.RLock()
	defer d.statusMutex.RUnlock()
	s, ok := d.slots[slot]
	return ok && s.roaming
}

func (d *Device) switchDataSim() {
	d.statusMutex.RLock()
	subs := d.validSubscriptionIds()
	current := d.defaultDataSub
	d.statusMutex.RUnlock()

	for _, id := range subs {
		if id != current {
			_ = d.SetDefaultDataSubscription(id)
			return
		}
	}
}

func (d *Device) String() string {
	return fmt.Sprintf("device(%s, %s)", d.Id, d.State())
}
