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
	"github.com/DrAugus/actor-framework/pkg/flow"
	"github.com/dustin/go-humanize"
	"github.com/pingcap/errors"
	"github.com/pingcap/log"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type streamOptions struct {
	*options

	count         int
	observers     int
	batchInterval time.Duration
	maxBatch      int
}

func (o *streamOptions) addFlags(cmd *cobra.Command) {
	cmd.Flags().IntVar(&o.count, "count", 10, "number of items the producer emits")
	cmd.Flags().IntVar(&o.observers, "observers", 1, "number of actors that observe the stream")
	cmd.Flags().DurationVar(&o.batchInterval, "batch-interval", 0, "producer batch interval, 0 uses the config")
	cmd.Flags().IntVar(&o.maxBatch, "max-batch", 0, "producer max batch size, 0 uses the config")
}

// getStream asks a producer for its stream.
type getStream struct{}

// streamSummary is what an observer reports once its pipeline terminates.
type streamSummary struct {
	Observer int
	Count    int
	Sum      int
	Err      error
}

// producer registers 1, 2, ..., count as a stream and hands out the
// handle on request.
func producer(name string, count int, batchInterval time.Duration, maxBatch int) func(*actor.Context) *actor.Behavior {
	return func(self *actor.Context) *actor.Behavior {
		s := flow.Compose(flow.Iota(self, 1).Take(count),
			actor.AsTypedStream[int](self, name, batchInterval, maxBatch))
		log.Debug("stream registered", zap.Stringer("stream", s))
		return actor.NewBehavior(
			actor.On(func(self *actor.Context, _ getStream) (any, error) {
				return s, nil
			}),
		)
	}
}

// sumStream runs count items through a producer and n observers and
// returns one summary per observer.
func sumStream(
	ctx context.Context, sys *actor.System, count, n int, batchInterval time.Duration, maxBatch int,
) ([]streamSummary, error) {
	source := sys.Spawn(producer("numbers", count, batchInterval, maxBatch))
	defer func() { _ = sys.StopActor(source) }()

	self := sys.NewBlocking()
	defer self.Close()

	var (
		stream    actor.TypedStream[int]
		streamErr error
	)
	err := actor.Receive(ctx, self.Mail(getStream{}).Request(source, 0),
		func(s actor.TypedStream[int]) { stream = s },
		func(err error) { streamErr = err })
	if err != nil {
		return nil, errors.Trace(err)
	}
	if streamErr != nil {
		return nil, streamErr
	}

	results := make(chan streamSummary, n)
	for i := 0; i < n; i++ {
		observer := i
		sys.Spawn(func(self *actor.Context) *actor.Behavior {
			sum := streamSummary{Observer: observer}
			actor.Observe(self, stream, 0, 0).SubscribeFunc(
				func(x int) {
					sum.Count++
					sum.Sum += x
				},
				func(err error) {
					sum.Err = err
					results <- sum
					self.Quit()
				},
				func() {
					results <- sum
					self.Quit()
				})
			return nil
		})
	}

	summaries := make([]streamSummary, 0, n)
	for len(summaries) < n {
		select {
		case s := <-results:
			summaries = append(summaries, s)
		case <-ctx.Done():
			return summaries, errors.Trace(ctx.Err())
		}
	}
	return summaries, nil
}

func (o *streamOptions) run(cmd *cobra.Command) error {
	return o.runSystem(cmd, func(ctx context.Context, sys *actor.System) error {
		summaries, err := sumStream(ctx, sys, o.count, o.observers, o.batchInterval, o.maxBatch)
		if err != nil {
			return err
		}
		for _, s := range summaries {
			count, sum := humanize.Comma(int64(s.Count)), humanize.Comma(int64(s.Sum))
			if s.Err != nil {
				cmd.Printf("observer %d: %s items, sum %s, error: %v\n", s.Observer, count, sum, s.Err)
				continue
			}
			cmd.Printf("observer %d: %s items, sum %s\n", s.Observer, count, sum)
		}
		return nil
	})
}

func newCmdStream(parent *options) *cobra.Command {
	o := &streamOptions{options: parent}

	command := &cobra.Command{
		Use:   "stream",
		Short: "Stream numbers from one actor to others with backpressure",
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.run(cmd)
		},
	}
	o.addFlags(command)

	return command
}
