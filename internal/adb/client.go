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
	"context"
	"os/exec"
	"strings"

	"github.com/pkg/errors"
)

type commandFunc func(ctx context.Context, name string, args ...string) ([]byte, error)

func runCommand(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

// Device represents a connected ADB device.
type Device struct {
	Serial string
	State  string // "device", "offline", "unauthorized", etc.
	Model  string
}

// IsOnline returns true if the device is in "device" state (ready).
func (d Device) IsOnline() bool {
	return d.State == "device"
}

// Client wraps ADB command-line calls against one device.
type Client struct {
	bin    string
	serial string
	exec   commandFunc
}

// NewClient creates a new ADB client. An empty serial targets the only
// connected device.
func NewClient(bin, serial string) *Client {
	if bin == "" {
		bin = "adb"
	}
	return &Client{bin: bin, serial: serial, exec: runCommand}
}

func (c *Client) Serial() string {
	return c.serial
}

// Devices returns all connected ADB devices.
func (c *Client) Devices(ctx context.Context) ([]Device, error) {
	out, err := c.exec(ctx, c.bin, "devices", "-l")
	if err != nil {
		return nil, errors.Wrapf(err, "adb devices: %s", out)
	}
	return parseDeviceList(string(out)), nil
}

// Shell runs a command on the device and returns its output.
func (c *Client) Shell(ctx context.Context, args ...string) (string, error) {
	full := []string{}
	if c.serial != "" {
		full = append(full, "-s", c.serial)
	}
	full = append(full, "shell")
	full = append(full, args...)

	out, err := c.exec(ctx, c.bin, full...)
	if err != nil {
		return "", errors.Wrapf(err, "adb shell %s: %s", strings.Join(args, " "), strings.TrimSpace(string(out)))
	}
	return string(out), nil
}

// Props returns every system property of the device.
func (c *Client) Props(ctx context.Context) (map[string]string, error) {
	out, err := c.Shell(ctx, "getprop")
	if err != nil {
		return nil, err
	}
	return parseGetprop(out), nil
}

// GlobalSetting reads a value from the global settings table.
func (c *Client) GlobalSetting(ctx context.Context, key string) (string, error) {
	out, err := c.Shell(ctx, "settings", "get", "global", key)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

func (c *Client) DumpConnectivity(ctx context.Context) (string, error) {
	return c.Shell(ctx, "dumpsys", "connectivity")
}

// parseDeviceList parses `adb devices -l` output.
func parseDeviceList(output string) []Device {
	var devices []Device
	scanner := bufio.NewScanner(strings.NewReader(output))
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "List of") || strings.TrimSpace(line) == "" {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		d := Device{
			Serial: fields[0],
			State:  fields[1],
		}
		for _, f := range fields[2:] {
			if model, ok := strings.CutPrefix(f, "model:"); ok {
				d.Model = model
			}
		}
		devices = append(devices, d)
	}
	return devices
}
