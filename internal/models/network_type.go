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

package models

import "strings"

// Raw data network technology codes as reported by the handset platform.
const (
	RawNetworkTypeUnknown = 0
	RawNetworkTypeGprs    = 1
	RawNetworkTypeEdge    = 2
	RawNetworkTypeUmts    = 3
	RawNetworkTypeCdma    = 4
	RawNetworkTypeEvdo0   = 5
	RawNetworkTypeEvdoA   = 6
	RawNetworkType1xRtt   = 7
	RawNetworkTypeHsdpa   = 8
	RawNetworkTypeHsupa   = 9
	RawNetworkTypeHspa    = 10
	RawNetworkTypeIden    = 11
	RawNetworkTypeEvdoB   = 12
	RawNetworkTypeLte     = 13
	RawNetworkTypeEhrpd   = 14
	RawNetworkTypeHspap   = 15
	RawNetworkTypeGsm     = 16
	RawNetworkTypeTdScdma = 17
	RawNetworkTypeIwlan   = 18
	RawNetworkTypeNr      = 20
)

var rawNetworkTypeNames = map[string]int{
	"GPRS":     RawNetworkTypeGprs,
	"EDGE":     RawNetworkTypeEdge,
	"UMTS":     RawNetworkTypeUmts,
	"CDMA":     RawNetworkTypeCdma,
	"EVDO_0":   RawNetworkTypeEvdo0,
	"EVDO_A":   RawNetworkTypeEvdoA,
	"1XRTT":    RawNetworkType1xRtt,
	"HSDPA":    RawNetworkTypeHsdpa,
	"HSUPA":    RawNetworkTypeHsupa,
	"HSPA":     RawNetworkTypeHspa,
	"IDEN":     RawNetworkTypeIden,
	"EVDO_B":   RawNetworkTypeEvdoB,
	"LTE":      RawNetworkTypeLte,
	"EHRPD":    RawNetworkTypeEhrpd,
	"HSPAP":    RawNetworkTypeHspap,
	"HSPA+":    RawNetworkTypeHspap,
	"GSM":      RawNetworkTypeGsm,
	"TD_SCDMA": RawNetworkTypeTdScdma,
	"IWLAN":    RawNetworkTypeIwlan,
	"NR":       RawNetworkTypeNr,
}

// ParseRawNetworkType maps a platform technology name (e.g. "LTE", "NR")
// to its raw code. Unrecognised names map to RawNetworkTypeUnknown.
func ParseRawNetworkType(name string) int {
	code, ok := rawNetworkTypeNames[strings.ToUpper(strings.TrimSpace(name))]
	if !ok {
		return RawNetworkTypeUnknown
	}
	return code
}

// NetworkType is the display classification of a data network technology.
type NetworkType string

const (
	NetworkTypeGprs    NetworkType = "GPRS"
	NetworkTypeEdge    NetworkType = "EDGE"
	NetworkTypeUmts    NetworkType = "UMTS"
	NetworkTypeHsdpa   NetworkType = "HSDPA"
	NetworkTypeHsupa   NetworkType = "HSUPA"
	NetworkTypeHspa    NetworkType = "HSPA"
	NetworkTypeLte     NetworkType = "LTE"
	NetworkTypeNr      NetworkType = "NR"
	NetworkTypeUnknown NetworkType = "UNKNOWN"
)

var networkTypeLabels = map[NetworkType]string{
	NetworkTypeGprs:    "2G (GPRS)",
	NetworkTypeEdge:    "2G (EDGE)",
	NetworkTypeUmts:    "3G (UMTS)",
	NetworkTypeHsdpa:   "3G (HSDPA)",
	NetworkTypeHsupa:   "3G (HSUPA)",
	NetworkTypeHspa:    "3G (HSPA)",
	NetworkTypeLte:     "4G (LTE)",
	NetworkTypeNr:      "5G (NR)",
	NetworkTypeUnknown: "Unknown",
}

// AllNetworkTypes lists every NetworkType value.
func AllNetworkTypes() []NetworkType {
	return []NetworkType{
		NetworkTypeGprs, NetworkTypeEdge, NetworkTypeUmts, NetworkTypeHsdpa,
		NetworkTypeHsupa, NetworkTypeHspa, NetworkTypeLte, NetworkTypeNr,
		NetworkTypeUnknown,
	}
}

// Label returns the fixed display label. Values outside the enumeration
// are labelled like NetworkTypeUnknown.
func (t NetworkType) Label() string {
	if label, ok := networkTypeLabels[t]; ok {
		return label
	}
	return networkTypeLabels[NetworkTypeUnknown]
}

// Generation returns "2G", "3G", "4G", "5G" or "Unknown".
func (t NetworkType) Generation() string {
	switch t {
	case NetworkTypeGprs, NetworkTypeEdge:
		return "2G"
	case NetworkTypeUmts, NetworkTypeHsdpa, NetworkTypeHsupa, NetworkTypeHspa:
		return "3G"
	case NetworkTypeLte:
		return "4G"
	case NetworkTypeNr:
		return "5G"
	default:
		return "Unknown"
	}
}
