// Copyright 2020 PingCAP, Inc.
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

package logutil

import (
	"github.com/pingcap/errors"
	"github.com/pingcap/log"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	defaultLogLevel      = "info"
	defaultLogMaxDays    = 30
	defaultLogMaxSize    = 300 // MB
	defaultLogMaxBackups = 0
)

// Config serves as a bridge between the logger config of the actor system
// and pingcap/log.
type Config struct {
	// Log level.
	Level string `toml:"level" json:"level"`
	// Log filename, leave empty to disable file log.
	File string `toml:"file" json:"file"`
	// Max size for a single file, in MB.
	FileMaxSize int `toml:"max-size" json:"max-size"`
	// Max log keep days, default is never deleting.
	FileMaxDays int `toml:"max-days" json:"max-days"`
	// Maximum number of old log files to retain.
	FileMaxBackups int `toml:"max-backups" json:"max-backups"`
}

// DefaultConfig returns the default log config.
func DefaultConfig() *Config {
	return &Config{
		Level:          defaultLogLevel,
		FileMaxSize:    defaultLogMaxSize,
		FileMaxDays:    defaultLogMaxDays,
		FileMaxBackups: defaultLogMaxBackups,
	}
}

// Adjust fills unset fields with their default values.
func (cfg *Config) Adjust() {
	if len(cfg.Level) == 0 {
		cfg.Level = defaultLogLevel
	}
	if cfg.Level == "warning" {
		cfg.Level = "warn"
	}
	if cfg.FileMaxSize == 0 {
		cfg.FileMaxSize = defaultLogMaxSize
	}
	if cfg.FileMaxDays == 0 {
		cfg.FileMaxDays = defaultLogMaxDays
	}
}

// InitLogger initializes the global logger of pingcap/log.
func InitLogger(cfg *Config, opts ...zap.Option) error {
	cfg.Adjust()
	pclogConfig := &log.Config{
		Level: cfg.Level,
		File: log.FileLogConfig{
			Filename:   cfg.File,
			MaxSize:    cfg.FileMaxSize,
			MaxDays:    cfg.FileMaxDays,
			MaxBackups: cfg.FileMaxBackups,
		},
	}

	logger, props, err := log.InitLogger(pclogConfig, opts...)
	if err != nil {
		return errors.Trace(err)
	}
	log.ReplaceGlobals(logger, props)

	var lvl zapcore.Level
	if err := lvl.Set(cfg.Level); err != nil {
		return errors.Trace(err)
	}
	log.SetLevel(lvl)
	return nil
}

// SetLogLevel changes the level of the global logger.
func SetLogLevel(level string) error {
	if level == "warning" {
		level = "warn"
	}
	var lvl zapcore.Level
	if err := lvl.Set(level); err != nil {
		return errors.Trace(err)
	}
	if lvl != log.GetLevel() {
		log.SetLevel(lvl)
	}
	return nil
}

// ZapErrorFilter wraps zap.Error, if err is in given filters, it will return
// zap.Error(nil).
func ZapErrorFilter(err error, filterErrors ...error) zap.Field {
	cause := errors.Cause(err)
	for _, ferr := range filterErrors {
		if cause == ferr {
			return zap.Error(nil)
		}
	}
	return zap.Error(err)
}
