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

package env

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnsureIsNoopUnderTest(t *testing.T) {
	t.Setenv("GOTEST_LOAD_DOTENV", "")
	assert.NoError(t, Ensure())
	assert.Empty(t, LoadedPath())
}

func TestFindDotEnvWalksUp(t *testing.T) {
	root := t.TempDir()
	nested := filepath.Join(root, "a", "b")
	require.NoError(t, os.MkdirAll(nested, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, ".env"), []byte("DEVICE_MONITOR_BACKEND=adb\n"), 0o644))

	path, err := findDotEnvFrom(nested)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, ".env"), path)
}

func TestOverrides(t *testing.T) {
	t.Setenv(Prefix+Backend, " adb ")
	t.Setenv(Prefix+OamPort, "9090")
	t.Setenv(Prefix+AdbSerial, "")

	assert.Equal(t, "adb", String(Backend, "simulator"))
	assert.Equal(t, "R58M", String(AdbSerial, "R58M"))
	assert.Equal(t, uint16(9090), Uint16(OamPort, 8080))

	t.Setenv(Prefix+OamPort, "not-a-port")
	assert.Equal(t, uint16(8080), Uint16(OamPort, 8080))
}
