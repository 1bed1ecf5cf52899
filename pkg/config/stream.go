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
	"time"

	cerrors "github.com/DrAugus/actor-framework/pkg/errors"
)

// OverflowPolicy decides what a stream producer does with items produced
// while the observer has no credit left.
type OverflowPolicy string

const (
	// OverflowBackpressure requests items from the upstream flow only
	// within the granted credit. No item is lost.
	OverflowBackpressure OverflowPolicy = "backpressure"
	// OverflowBuffer requests items eagerly and buffers every item that
	// exceeds the credit. No item is lost, memory is unbounded.
	OverflowBuffer OverflowPolicy = "buffer"
	// OverflowDrop requests items eagerly and drops items that exceed
	// the credit.
	OverflowDrop OverflowPolicy = "drop"
)

// StreamConfig is the default config of cross-actor streams.
type StreamConfig struct {
	BatchInterval   TomlDuration   `toml:"batch-interval" json:"batch-interval"`
	MaxBatchSize    int            `toml:"max-batch-size" json:"max-batch-size"`
	InitialCredit   int            `toml:"initial-credit" json:"initial-credit"`
	CreditIncrement int            `toml:"credit-increment" json:"credit-increment"`
	OverflowPolicy  OverflowPolicy `toml:"overflow-policy" json:"overflow-policy"`
}

// read only
var defaultStreamConfig = &StreamConfig{
	BatchInterval:   TomlDuration(10 * time.Millisecond),
	MaxBatchSize:    32,
	InitialCredit:   64,
	CreditIncrement: 16,
	OverflowPolicy:  OverflowBackpressure,
}

// ValidateAndAdjust fills zero values with defaults and checks the config.
func (c *StreamConfig) ValidateAndAdjust() error {
	if c.BatchInterval == 0 {
		c.BatchInterval = defaultStreamConfig.BatchInterval
	}
	if time.Duration(c.BatchInterval) < 0 {
		return cerrors.ErrInvalidConfig.GenWithStackByArgs("batch-interval must not be negative")
	}
	if time.Duration(c.BatchInterval) > 10*time.Second {
		return cerrors.ErrInvalidConfig.GenWithStackByArgs("batch-interval is larger than 10s")
	}
	if c.MaxBatchSize <= 0 {
		c.MaxBatchSize = defaultStreamConfig.MaxBatchSize
	}
	if c.InitialCredit <= 0 {
		c.InitialCredit = defaultStreamConfig.InitialCredit
	}
	if c.CreditIncrement <= 0 {
		c.CreditIncrement = defaultStreamConfig.CreditIncrement
	}
	if c.CreditIncrement > c.InitialCredit {
		return cerrors.ErrInvalidConfig.GenWithStackByArgs("credit-increment is larger than initial-credit")
	}
	switch c.OverflowPolicy {
	case "":
		c.OverflowPolicy = defaultStreamConfig.OverflowPolicy
	case OverflowBackpressure, OverflowBuffer, OverflowDrop:
	default:
		return cerrors.ErrInvalidConfig.GenWithStackByArgs(
			"unknown overflow-policy " + string(c.OverflowPolicy))
	}
	return nil
}

// Clone returns a copy of the config.
func (c *StreamConfig) Clone() *StreamConfig {
	clone := *c
	return &clone
}
