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

// Package env loads .env files and reads DEVICE_MONITOR_* overrides.
package env

import (
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

const Prefix = "DEVICE_MONITOR_"

// Override keys, without Prefix.
const (
	ConfigPath = "CONFIG"
	OamPort    = "OAM_PORT"
	Backend    = "BACKEND"
	AdbSerial  = "ADB_SERIAL"
	LogLevel   = "LOG_LEVEL"
)

var (
	loadOnce   sync.Once
	loadedPath string
	loadErr    error
)

// Ensure loads the first .env file found from the current working directory up
// to the filesystem root. Subsequent calls are no-ops.
func Ensure() error {
	// keep unit tests hermetic unless GOTEST_LOAD_DOTENV=1
	if runningUnderGoTest() && os.Getenv("GOTEST_LOAD_DOTENV") != "1" {
		return nil
	}
	loadOnce.Do(func() {
		path, err := findDotEnv()
		if err != nil {
			loadErr = err
			log.Debug().Err(err).Msg("search .env failed")
			return
		}
		if path == "" {
			return
		}
		if err := godotenv.Load(path); err != nil {
			loadErr = err
			log.Warn().Err(err).Str("dotenv", path).Msg("load .env failed")
			return
		}
		loadedPath = path
		log.Debug().Str("dotenv", path).Msg("loaded .env")
	})
	return loadErr
}

// LoadedPath returns the resolved .env path if one was loaded, otherwise "".
func LoadedPath() string {
	return loadedPath
}

// Lookup returns the trimmed value of Prefix+key, if set and non-empty.
func Lookup(key string) (string, bool) {
	val := strings.TrimSpace(os.Getenv(Prefix + key))
	return val, val != ""
}

func String(key, def string) string {
	if val, ok := Lookup(key); ok {
		return val
	}
	return def
}

// Uint16 parses Prefix+key, falling back to def when unset or malformed.
func Uint16(key string, def uint16) uint16 {
	val, ok := Lookup(key)
	if !ok {
		return def
	}
	n, err := strconv.ParseUint(val, 10, 16)
	if err != nil {
		log.Warn().Str("key", Prefix+key).Str("value", val).Msg("ignoring malformed override")
		return def
	}
	return uint16(n)
}

func runningUnderGoTest() bool {
	if strings.HasSuffix(os.Args[0], ".test") {
		return true
	}
	for _, arg := range os.Args[1:] {
		if strings.HasPrefix(arg, "-test.") {
			return true
		}
	}
	return false
}

func findDotEnv() (string, error) {
	wd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	return findDotEnvFrom(wd)
}

func findDotEnvFrom(dir string) (string, error) {
	for {
		candidate := filepath.Join(dir, ".env")
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, nil
		} else if err != nil && !errors.Is(err, os.ErrNotExist) {
			return "", err
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", nil
		}
		dir = parent
	}
}
