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
	"time"

	"github.com/DrAugus/actor-framework/pkg/actor"
	cerrors "github.com/DrAugus/actor-framework/pkg/errors"
	"github.com/spf13/cobra"
)

type requestOptions struct {
	*options

	value   int
	timeout time.Duration
	delay   time.Duration
	urgent  bool
}

func (o *requestOptions) addFlags(cmd *cobra.Command) {
	cmd.Flags().IntVar(&o.value, "value", 3, "the number to square")
	cmd.Flags().DurationVar(&o.timeout, "timeout", time.Second, "request timeout, 0 uses default-request-timeout")
	cmd.Flags().DurationVar(&o.delay, "delay", 0, "delay the request by this duration")
	cmd.Flags().BoolVar(&o.urgent, "urgent", false, "send the request with urgent priority")
}

// squarer answers every int with its square.
func squarer(self *actor.Context, x int) (int, error) {
	return x * x, nil
}

// square sends one request to a squarer from a blocking actor and returns
// the result. Protocol errors are returned as they are.
func square(ctx context.Context, sys *actor.System, value int, timeout, delay time.Duration, urgent bool) (int, error) {
	target := actor.SpawnTyped(sys, squarer)
	defer func() { _ = sys.StopActor(target.Ref) }()

	self := sys.NewBlocking()
	defer self.Close()

	mail := self.Mail(value)
	if urgent {
		mail = mail.Urgent()
	}
	if delay > 0 {
		mail = mail.Delay(delay)
	}
	var (
		result    int
		resultErr error
	)
	err := target.RequestMail(mail, timeout).Receive(ctx,
		func(v int) { result = v },
		func(err error) { resultErr = err })
	if err != nil {
		return 0, err
	}
	return result, resultErr
}

func (o *requestOptions) run(cmd *cobra.Command) error {
	return o.runSystem(cmd, func(ctx context.Context, sys *actor.System) error {
		result, err := square(ctx, sys, o.value, o.timeout, o.delay, o.urgent)
		if err != nil {
			cmd.Printf("request failed: %s\n", cerrors.KindOf(err))
			return err
		}
		cmd.Printf("%d * %d = %d\n", o.value, o.value, result)
		return nil
	})
}

func newCmdRequest(parent *options) *cobra.Command {
	o := &requestOptions{options: parent}

	command := &cobra.Command{
		Use:   "request",
		Short: "Ask an actor for the square of a number",
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.run(cmd)
		},
	}
	o.addFlags(command)

	return command
}
