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

package demo

import (
	"context"

	"github.com/DrAugus/actor-framework/pkg/actor"
	"github.com/DrAugus/actor-framework/pkg/cmd/util"
	"github.com/DrAugus/actor-framework/pkg/config"
	"github.com/DrAugus/actor-framework/pkg/version"
	"github.com/pingcap/errors"
	"github.com/pingcap/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
)

// options defines the flags shared by every `demo` sub-command.
type options struct {
	configFilePath string
	printMetrics   bool

	systemConfig *config.SystemConfig
}

func newOptions() *options {
	return &options{systemConfig: config.GetDefaultSystemConfig()}
}

func (o *options) addFlags(cmd *cobra.Command) {
	defaultConfig := config.GetDefaultSystemConfig()
	cmd.PersistentFlags().StringVar(&o.configFilePath, "config", "", "Path of the configuration file")
	cmd.PersistentFlags().IntVar(&o.systemConfig.WorkerNumber, "worker-number", defaultConfig.WorkerNumber, "number of goroutines that run actors")
	cmd.PersistentFlags().IntVar(&o.systemConfig.MaxThroughput, "max-throughput", defaultConfig.MaxThroughput, "max messages an actor handles before it yields")
	cmd.PersistentFlags().StringVar(&o.systemConfig.Log.Level, "log-level", defaultConfig.Log.Level, "log level (etc: debug|info|warn|error)")
	cmd.PersistentFlags().StringVar(&o.systemConfig.Log.File, "log-file", defaultConfig.Log.File, "log file path")
	cmd.PersistentFlags().BoolVar(&o.printMetrics, "print-metrics", false, "print the metrics of the actor system before exit")
}

// loadConfig decodes the config file, if any, and applies the flags the
// user set on top of it.
func (o *options) loadConfig(cmd *cobra.Command) (*config.SystemConfig, error) {
	conf := config.GetDefaultSystemConfig()
	if len(o.configFilePath) > 0 {
		if err := util.StrictDecodeFile(o.configFilePath, "actor demo", conf); err != nil {
			return nil, err
		}
	}
	cmd.Flags().Visit(func(flag *pflag.Flag) {
		switch flag.Name {
		case "worker-number":
			conf.WorkerNumber = o.systemConfig.WorkerNumber
		case "max-throughput":
			conf.MaxThroughput = o.systemConfig.MaxThroughput
		case "log-level":
			conf.Log.Level = o.systemConfig.Log.Level
		case "log-file":
			conf.Log.File = o.systemConfig.Log.File
		}
	})
	if err := conf.ValidateAndAdjust(); err != nil {
		return nil, errors.Trace(err)
	}
	return conf, nil
}

// runSystem loads the config, starts an actor system and passes it to fn.
// The system is stopped when fn returns.
func (o *options) runSystem(
	cmd *cobra.Command, fn func(ctx context.Context, sys *actor.System) error,
) error {
	conf, err := o.loadConfig(cmd)
	if err != nil {
		return errors.Trace(err)
	}
	ctx, cancel := util.InitCmd(cmd, conf.Log)
	defer cancel()
	version.LogVersionInfo("demo")

	registry := prometheus.NewRegistry()
	actor.InitMetrics(registry)

	sys, err := actor.NewSystemBuilder(conf.Name).Config(conf).Build()
	if err != nil {
		return errors.Trace(err)
	}
	if err := sys.Start(ctx); err != nil {
		return errors.Trace(err)
	}
	defer sys.Stop()

	err = fn(ctx, sys)
	if o.printMetrics {
		printMetrics(cmd, registry)
	}
	if err != nil {
		log.Error("demo failed", zap.Error(err))
		return err
	}
	return nil
}

func printMetrics(cmd *cobra.Command, registry *prometheus.Registry) {
	families, err := registry.Gather()
	if err != nil {
		log.Warn("gather metrics failed", zap.Error(err))
		return
	}
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			value := m.GetCounter().GetValue() + m.GetGauge().GetValue()
			labels := make([]string, 0, len(m.GetLabel()))
			for _, l := range m.GetLabel() {
				labels = append(labels, l.GetName()+"="+l.GetValue())
			}
			cmd.Printf("%s%v %v\n", mf.GetName(), labels, value)
		}
	}
}

// NewCmdDemo creates the `demo` command.
func NewCmdDemo() *cobra.Command {
	o := newOptions()

	command := &cobra.Command{
		Use:   "demo",
		Short: "Run small programs on an actor system",
	}
	o.addFlags(command)
	command.AddCommand(newCmdRequest(o))
	command.AddCommand(newCmdStream(o))

	return command
}
