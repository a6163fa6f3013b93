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
	"bufio"
	"regexp"
	"strconv"
	"strings"

	"gitlab.eurecom.fr/open-exposure/coresim/device-monitor/internal/platform"
)

// Slot-indexed radio properties; multi-SIM devices join values with commas.
const (
	propSimState    = "gsm.sim.state"
	propSimAlpha    = "gsm.sim.operator.alpha"
	propSimCountry  = "gsm.sim.operator.iso-country"
	propOperatorNum = "gsm.operator.numeric"
	propIsRoaming   = "gsm.operator.isroaming"
	propNetworkType = "gsm.network.type"
)

var (
	getpropLine       = regexp.MustCompile(`^\[([^\]]+)\]: \[(.*)\]$`)
	activeNetLine     = regexp.MustCompile(`Active default network:\s*(\S+)`)
	agentNetworkId    = regexp.MustCompile(`network\{(\d+)\}`)
	agentTransports   = regexp.MustCompile(`Transports:\s*([A-Z_|]+)`)
	agentCapabilities = regexp.MustCompile(`Capabilities:\s*([A-Z_&]+)`)
	agentSsid         = regexp.MustCompile(`SSID:\s*"([^"]*)"`)
)

// parseGetprop parses `getprop` output, one "[key]: [value]" per line.
func parseGetprop(output string) map[string]string {
	props := make(map[string]string)
	scanner := bufio.NewScanner(strings.NewReader(output))
	for scanner.Scan() {
		m := getpropLine.FindStringSubmatch(strings.TrimRight(scanner.Text(), "\r"))
		if m == nil {
			continue
		}
		props[m[1]] = m[2]
	}
	return props
}

// slotValue returns the value of a comma separated property for a slot.
func slotValue(props map[string]string, key string, slot int) string {
	values := strings.Split(props[key], ",")
	if slot < 0 || slot >= len(values) {
		return ""
	}
	return strings.TrimSpace(values[slot])
}

func slotCount(props map[string]string) int {
	if props[propSimState] == "" {
		return 0
	}
	return len(strings.Split(props[propSimState], ","))
}

// simPresent reports whether the SIM state of a slot denotes a usable card.
func simPresent(state string) bool {
	switch strings.ToUpper(state) {
	case "", "ABSENT", "NOT_READY", "UNKNOWN", "PERM_DISABLED", "CARD_IO_ERROR":
		return false
	}
	return true
}

type agentInfo struct {
	network platform.Network
	caps    platform.Capabilities
}

type connectivityDump struct {
	active *platform.Network
	agents map[int]agentInfo
}

// parseConnectivityDump extracts the default network and the capabilities
// of every network agent from `dumpsys connectivity`.
func parseConnectivityDump(output string) connectivityDump {
	dump := connectivityDump{agents: make(map[int]agentInfo)}
	scanner := bufio.NewScanner(strings.NewReader(output))
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		if m := activeNetLine.FindStringSubmatch(line); m != nil {
			if id, err := strconv.Atoi(m[1]); err == nil {
				dump.active = &platform.Network{Id: id}
			}
			continue
		}

		if !strings.HasPrefix(line, "NetworkAgentInfo{") {
			continue
		}
		m := agentNetworkId.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		id, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		info := agentInfo{network: platform.Network{Id: id}}
		if t := agentTransports.FindStringSubmatch(line); t != nil {
			for _, name := range strings.Split(t[1], "|") {
				info.caps.Transports = append(info.caps.Transports, platform.Transport(name))
			}
		}
		if c := agentCapabilities.FindStringSubmatch(line); c != nil {
			for _, name := range strings.Split(c[1], "&") {
				if name == "INTERNET" {
					info.caps.HasInternet = true
				}
			}
		}
		if s := agentSsid.FindStringSubmatch(line); s != nil && s[1] != "<unknown ssid>" {
			info.caps.Ssid = s[1]
		}
		if _, seen := dump.agents[id]; !seen {
			dump.agents[id] = info
		}
	}
	return dump
}
