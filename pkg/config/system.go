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

package config

import (
	"encoding/json"
	"runtime"
	"time"

	cerrors "github.com/DrAugus/actor-framework/pkg/errors"
	"github.com/DrAugus/actor-framework/pkg/logutil"
	"github.com/pingcap/errors"
	"github.com/pingcap/log"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

const (
	defaultMaxThroughput = 64
	maxWorkerNumber      = 1024
)

var defaultSystemConfig = &SystemConfig{
	Name:                  "actor-system",
	WorkerNumber:          runtime.NumCPU(),
	MaxThroughput:         defaultMaxThroughput,
	DefaultRequestTimeout: TomlDuration(10 * time.Second),
	Stream:                defaultStreamConfig,
	Log:                   logutil.DefaultConfig(),
}

// SystemConfig is the config of an actor system.
type SystemConfig struct {
	Name string `toml:"name" json:"name"`
	// WorkerNumber is the number of goroutines that run actor steps.
	WorkerNumber int `toml:"worker-number" json:"worker-number"`
	// MaxThroughput is the max number of envelopes an actor handles in one
	// step before it yields its worker to other actors.
	MaxThroughput         int             `toml:"max-throughput" json:"max-throughput"`
	DefaultRequestTimeout TomlDuration    `toml:"default-request-timeout" json:"default-request-timeout"`
	Stream                *StreamConfig   `toml:"stream" json:"stream"`
	Log                   *logutil.Config `toml:"log" json:"log"`
}

// GetDefaultSystemConfig returns the default system config.
func GetDefaultSystemConfig() *SystemConfig {
	return defaultSystemConfig.Clone()
}

// Clone clones the config.
func (c *SystemConfig) Clone() *SystemConfig {
	str, err := c.Marshal()
	if err != nil {
		log.Panic("failed to marshal system config",
			zap.Error(cerrors.WrapError(cerrors.ErrInvalidConfig, err)))
	}
	clone := new(SystemConfig)
	err = clone.Unmarshal([]byte(str))
	if err != nil {
		log.Panic("failed to unmarshal system config",
			zap.Error(cerrors.WrapError(cerrors.ErrInvalidConfig, err)))
	}
	return clone
}

// Marshal returns the json marshal format of a SystemConfig.
func (c *SystemConfig) Marshal() (string, error) {
	cfg, err := json.Marshal(c)
	if err != nil {
		return "", errors.Annotatef(err, "marshal data: %v", c)
	}
	return string(cfg), nil
}

// Unmarshal unmarshals into *SystemConfig from json marshal byte slice.
func (c *SystemConfig) Unmarshal(data []byte) error {
	return errors.Trace(json.Unmarshal(data, c))
}

// ValidateAndAdjust validates and adjusts the config. Every invalid item is
// reported, not only the first one.
func (c *SystemConfig) ValidateAndAdjust() error {
	var errs error
	if c.Name == "" {
		c.Name = defaultSystemConfig.Name
	}
	if c.WorkerNumber <= 0 {
		c.WorkerNumber = defaultSystemConfig.WorkerNumber
	}
	if c.WorkerNumber > maxWorkerNumber {
		errs = multierr.Append(errs, cerrors.ErrInvalidConfig.GenWithStackByArgs(
			"worker-number is larger than 1024"))
	}
	if c.MaxThroughput <= 0 {
		c.MaxThroughput = defaultSystemConfig.MaxThroughput
	}
	if c.DefaultRequestTimeout == 0 {
		c.DefaultRequestTimeout = defaultSystemConfig.DefaultRequestTimeout
	}
	if time.Duration(c.DefaultRequestTimeout) < 0 {
		errs = multierr.Append(errs, cerrors.ErrInvalidConfig.GenWithStackByArgs(
			"default-request-timeout must not be negative"))
	}
	if c.Stream == nil {
		c.Stream = defaultStreamConfig.Clone()
	}
	errs = multierr.Append(errs, c.Stream.ValidateAndAdjust())
	if c.Log == nil {
		c.Log = logutil.DefaultConfig()
	}
	c.Log.Adjust()
	return errs
}
