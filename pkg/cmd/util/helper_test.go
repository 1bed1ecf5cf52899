// Copyright 2021 PingCAP, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// See the License for the specific language governing permissions and
// limitations under the License.

package util

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/DrAugus/actor-framework/pkg/config"
	cerrors "github.com/DrAugus/actor-framework/pkg/errors"
	"github.com/DrAugus/actor-framework/pkg/leakutil"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	leakutil.SetUpLeakTest(m)
}

func TestStrictDecodeValidFile(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "actor.toml")
	configContent := `
name = "demo"
worker-number = 4
max-throughput = 16
default-request-timeout = "3s"

[stream]
batch-interval = "5ms"
max-batch-size = 8
initial-credit = 32
credit-increment = 8
overflow-policy = "drop"

[log]
level = "warn"
file = "/tmp/actor.log"
max-size = 200
max-days = 1
max-backups = 1
`
	require.Nil(t, os.WriteFile(configPath, []byte(configContent), 0o644))

	conf := config.GetDefaultSystemConfig()
	require.Nil(t, StrictDecodeFile(configPath, "test", conf))
	require.Nil(t, conf.ValidateAndAdjust())
	require.Equal(t, "demo", conf.Name)
	require.Equal(t, 4, conf.WorkerNumber)
	require.Equal(t, 16, conf.MaxThroughput)
	require.Equal(t, 3*time.Second, time.Duration(conf.DefaultRequestTimeout))
	require.Equal(t, 5*time.Millisecond, time.Duration(conf.Stream.BatchInterval))
	require.Equal(t, 8, conf.Stream.MaxBatchSize)
	require.Equal(t, config.OverflowDrop, conf.Stream.OverflowPolicy)
	require.Equal(t, "warn", conf.Log.Level)
	require.Equal(t, 1, conf.Log.FileMaxBackups)
}

func TestStrictDecodeInvalidFile(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "actor.toml")
	configContent := `
unknown = "128.0.0.1:1234"
worker-number = 2

[log.unkown]
max-size = 200
`
	require.Nil(t, os.WriteFile(configPath, []byte(configContent), 0o644))

	conf := config.GetDefaultSystemConfig()
	err := StrictDecodeFile(configPath, "test", conf)
	require.Error(t, err)
	require.Contains(t, err.Error(), "contained unknown configuration options")
	require.Contains(t, err.Error(), string(cerrors.ErrDecodeConfigFailed.RFCCode()))

	conf = config.GetDefaultSystemConfig()
	require.Nil(t, StrictDecodeFile(configPath, "test", conf, "unknown", "log"))
	require.Equal(t, 2, conf.WorkerNumber)
}

func TestStrictDecodeMissingFile(t *testing.T) {
	conf := config.GetDefaultSystemConfig()
	err := StrictDecodeFile(filepath.Join(t.TempDir(), "missing.toml"), "test", conf)
	require.Contains(t, err.Error(), string(cerrors.ErrDecodeConfigFailed.RFCCode()))
}
