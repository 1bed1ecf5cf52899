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

package actor

import (
	"testing"
	"time"

	"github.com/DrAugus/actor-framework/pkg/clock"
	"github.com/DrAugus/actor-framework/pkg/config"
	cerrors "github.com/DrAugus/actor-framework/pkg/errors"
	"github.com/DrAugus/actor-framework/pkg/flow"
	"github.com/stretchr/testify/require"
	"go.uber.org/atomic"
)

type streamResult struct {
	sum    int
	count  int
	err    error
	errors int
}

// sumStream spawns an actor that adds up the items of a stream and reports
// once the pipeline has terminated.
func sumStream(
	sys *System, observe func(self *Context) flow.Observable[int],
) <-chan streamResult {
	ch := make(chan streamResult, 1)
	sys.Spawn(func(self *Context) *Behavior {
		var res streamResult
		observe(self).
			DoOnError(func(err error) {
				res.err = err
				res.errors++
				ch <- res
			}).
			DoOnComplete(func() { ch <- res }).
			ForEach(func(x int) {
				res.sum += x
				res.count++
			})
		return nil
	})
	return ch
}

func TestStreamSum(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		produce func(self *Context) Stream
	}{
		{"to-stream", func(self *Context) Stream {
			return ToStream(self, "nums", time.Millisecond, 3, flow.Iota(self, 1).Take(10))
		}},
		{"compose", func(self *Context) Stream {
			return flow.Compose(flow.Iota(self, 1).Take(10), AsStream[int](self, "nums", time.Millisecond, 0))
		}},
		{"typed", func(self *Context) Stream {
			return flow.Compose(flow.Range(self, 1, 10), AsTypedStream[int](self, "nums", 0, 4)).Stream
		}},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			sys := newTestSystem(t, 2)
			startSystem(t, sys)

			streams := make(chan Stream, 1)
			sys.Spawn(func(self *Context) *Behavior {
				streams <- tc.produce(self)
				return nil
			})
			s := recv(t, streams)
			require.True(t, s.Valid())
			require.Equal(t, "nums", s.Name())

			// Small credit windows force the observers to return credit.
			results := sumStream(sys, func(self *Context) flow.Observable[int] {
				return ObserveAs[int](self, s, 4, 2)
			})
			typed := sumStream(sys, func(self *Context) flow.Observable[int] {
				return Observe(self, TypedStream[int]{Stream: s}, 0, 0)
			})
			for _, ch := range []<-chan streamResult{results, typed} {
				res := recv(t, ch)
				require.NoError(t, res.err)
				require.Equal(t, 55, res.sum)
				require.Equal(t, 10, res.count)
			}
		})
	}
}

func TestDeregisterBeforeFirstBatch(t *testing.T) {
	t.Parallel()

	// A single worker runs the observer's step to the end before the
	// producer sees the attach request.
	sys := newTestSystem(t, 1)
	startSystem(t, sys)

	streams := make(chan Stream, 1)
	src := sys.Spawn(func(self *Context) *Behavior {
		s := ToStream(self, "nums", time.Millisecond, 0, flow.Iota(self, 1))
		streams <- s
		return NewBehavior(Handle(func(self *Context, _ string) {
			self.DeregisterStream(s.ID())
		}))
	})
	s := recv(t, streams)

	res := recv(t, sumStream(sys, func(self *Context) flow.Observable[int] {
		obs := ObserveAs[int](self, s, 0, 0)
		return flow.NewObservable(self, func(out flow.Observer[int]) {
			obs.Subscribe(out)
			_ = self.Mail("deregister").Send(src)
		})
	}))
	require.Equal(t, cerrors.KindInvalidStream, cerrors.KindOf(res.err), "%v", res.err)
	require.Equal(t, 1, res.errors)
	require.Equal(t, 0, res.count)

	// Later observers fail the same way.
	res = recv(t, sumStream(sys, func(self *Context) flow.Observable[int] {
		return ObserveAs[int](self, s, 0, 0)
	}))
	require.Equal(t, cerrors.KindInvalidStream, cerrors.KindOf(res.err))
	require.Equal(t, 0, res.count)
}

func TestDeregisterAfterSomeItems(t *testing.T) {
	t.Parallel()

	sys := newTestSystem(t, 2)
	startSystem(t, sys)

	streams := make(chan Stream, 1)
	src := sys.Spawn(func(self *Context) *Behavior {
		s := ToStream(self, "nums", time.Millisecond, 4, flow.Iota(self, 1))
		streams <- s
		return NewBehavior(Handle(func(self *Context, _ string) {
			self.DeregisterStream(s.ID())
		}))
	})
	s := recv(t, streams)

	var errs atomic.Int32
	ch := sumStream(sys, func(self *Context) flow.Observable[int] {
		seen := 0
		return ObserveAs[int](self, s, 8, 4).
			DoOnError(func(error) { errs.Inc() }).
			DoOnNext(func(int) {
				seen++
				if seen == 5 {
					_ = self.Mail("deregister").Send(src)
				}
			})
	})
	res := recv(t, ch)
	require.Equal(t, cerrors.KindInvalidStream, cerrors.KindOf(res.err))
	require.GreaterOrEqual(t, res.count, 5)
	require.Equal(t, res.count*(res.count+1)/2, res.sum)
	require.Never(t, func() bool { return errs.Load() != 1 }, 100*time.Millisecond, 10*time.Millisecond)
}

func TestObserveAsTypeMismatch(t *testing.T) {
	t.Parallel()

	sys := newTestSystem(t, 2)
	startSystem(t, sys)

	streams := make(chan Stream, 2)
	sys.Spawn(func(self *Context) *Behavior {
		streams <- ToStream(self, "ints", 0, 0, flow.Just(self, 1, 2, 3))
		streams <- ToStream(self, "any", 0, 0, flow.Just[any](self, 1, 2, 3))
		return nil
	})
	ints, anys := recv(t, streams), recv(t, streams)

	for _, s := range []Stream{ints, anys} {
		ch := make(chan error, 1)
		var items atomic.Int32
		s := s
		sys.Spawn(func(self *Context) *Behavior {
			ObserveAs[string](self, s, 0, 0).
				DoOnError(func(err error) { ch <- err }).
				ForEach(func(string) { items.Inc() })
			return nil
		})
		err := recv(t, ch)
		require.Equal(t, cerrors.KindUnexpectedResponse, cerrors.KindOf(err), "%v", err)
		require.Equal(t, int32(0), items.Load())
	}

	// The untyped stream carries ints, so it can be observed as any.
	res := recv(t, sumStream(sys, func(self *Context) flow.Observable[int] {
		return flow.Map(ObserveAs[any](self, anys, 0, 0), func(v any) int { return v.(int) })
	}))
	require.NoError(t, res.err)
	require.Equal(t, 6, res.sum)
}

func TestObserveInvalidStream(t *testing.T) {
	t.Parallel()

	sys := newTestSystem(t, 2)
	startSystem(t, sys)

	res := recv(t, sumStream(sys, func(self *Context) flow.Observable[int] {
		return ObserveAs[int](self, Stream{}, 0, 0)
	}))
	require.Equal(t, cerrors.KindInvalidStream, cerrors.KindOf(res.err))

	// The producer terminates, its streams go with it.
	streams := make(chan Stream, 1)
	src := sys.Spawn(func(self *Context) *Behavior {
		streams <- ToStream(self, "nums", 0, 0, flow.Iota(self, 1))
		return nil
	})
	s := recv(t, streams)
	require.NoError(t, sys.StopActor(src))
	require.Eventually(t, func() bool { return !src.Alive() }, waitTimeout, 10*time.Millisecond)
	res = recv(t, sumStream(sys, func(self *Context) flow.Observable[int] {
		return ObserveAs[int](self, s, 0, 0)
	}))
	require.Equal(t, cerrors.KindInvalidStream, cerrors.KindOf(res.err))
}

// idleObserver never requests items.
type idleObserver[T any] struct{}

func (idleObserver[T]) OnSubscribe(flow.Subscription) {}

func (idleObserver[T]) OnNext(T) {}

func (idleObserver[T]) OnError(error) {}

func (idleObserver[T]) OnComplete() {}

func TestStreamBackpressure(t *testing.T) {
	t.Parallel()

	sys := newTestSystem(t, 2)
	startSystem(t, sys)

	var produced atomic.Int32
	streams := make(chan Stream, 1)
	sys.Spawn(func(self *Context) *Behavior {
		obs := flow.Iota(self, 1).DoOnNext(func(int) { produced.Inc() })
		streams <- ToStream(self, "nums", time.Millisecond, 4, obs)
		return nil
	})
	s := recv(t, streams)

	// The observer takes nothing, so no credit ever comes back.
	sys.Spawn(func(self *Context) *Behavior {
		ObserveAs[int](self, s, 16, 4).Subscribe(idleObserver[int]{})
		return nil
	})
	require.Eventually(t, func() bool { return produced.Load() == 16 }, waitTimeout, 10*time.Millisecond)
	require.Never(t, func() bool { return produced.Load() > 16 }, 100*time.Millisecond, 10*time.Millisecond)
}

// gatedObserver takes no items until the owning actor receives release.
type gatedObserver struct {
	sub flow.Subscription
	res streamResult
	ch  chan<- streamResult
}

func (g *gatedObserver) OnSubscribe(sub flow.Subscription) { g.sub = sub }

func (g *gatedObserver) OnNext(x int) {
	g.res.count++
	g.res.sum += x
}

func (g *gatedObserver) OnError(err error) {
	g.res.err = err
	g.ch <- g.res
}

func (g *gatedObserver) OnComplete() { g.ch <- g.res }

func TestStreamOverflowPolicy(t *testing.T) {
	t.Parallel()

	for _, policy := range []config.OverflowPolicy{
		config.OverflowBackpressure, config.OverflowBuffer, config.OverflowDrop,
	} {
		policy := policy
		t.Run(string(policy), func(t *testing.T) {
			cfg := config.GetDefaultSystemConfig()
			cfg.WorkerNumber = 2
			cfg.Stream.OverflowPolicy = policy
			sys, err := NewSystemBuilder(t.Name()).Config(cfg).Build()
			require.NoError(t, err)
			t.Cleanup(sys.Stop)
			startSystem(t, sys)

			var produced atomic.Int32
			streams := make(chan Stream, 1)
			sys.Spawn(func(self *Context) *Behavior {
				obs := flow.Range(self, 1, 100).DoOnNext(func(int) { produced.Inc() })
				streams <- ToStream(self, "nums", time.Millisecond, 4, obs)
				return nil
			})
			s := recv(t, streams)

			results := make(chan streamResult, 1)
			observer := sys.Spawn(func(self *Context) *Behavior {
				g := &gatedObserver{ch: results}
				ObserveAs[int](self, s, 4, 4).Subscribe(g)
				return NewBehavior(Handle(func(self *Context, _ release) {
					g.sub.Request(1000)
				}))
			})

			if policy == config.OverflowBackpressure {
				require.Eventually(t, func() bool { return produced.Load() == 4 }, waitTimeout, 10*time.Millisecond)
				require.Never(t, func() bool { return produced.Load() > 4 }, 100*time.Millisecond, 10*time.Millisecond)
			} else {
				// The producer does not wait for credit.
				require.Eventually(t, func() bool { return produced.Load() == 100 }, waitTimeout, 10*time.Millisecond)
			}
			require.NoError(t, sys.Router().Send(observer, release{}))
			res := recv(t, results)
			require.NoError(t, res.err)
			if policy == config.OverflowDrop {
				// Only the items within the credit of the observer are kept.
				require.Equal(t, 4, res.count)
				require.Equal(t, 10, res.sum)
				return
			}
			require.Equal(t, 100, res.count)
			require.Equal(t, 5050, res.sum)
		})
	}
}

func TestStreamBatchInterval(t *testing.T) {
	t.Parallel()

	clk := clock.NewMock()
	sys, err := NewSystemBuilder(t.Name()).Clock(clk).WorkerNumber(2).Build()
	require.NoError(t, err)
	t.Cleanup(sys.Stop)
	startSystem(t, sys)

	const interval = 50 * time.Millisecond
	streams := make(chan Stream, 1)
	sys.Spawn(func(self *Context) *Behavior {
		streams <- ToStream(self, "nums", interval, 10, flow.Range(self, 1, 100))
		return nil
	})
	s := recv(t, streams)

	var count atomic.Int32
	done := make(chan struct{})
	sys.Spawn(func(self *Context) *Behavior {
		ObserveAs[int](self, s, 0, 0).
			DoOnComplete(func() { close(done) }).
			ForEach(func(int) { count.Inc() })
		return nil
	})

	// The first batch leaves right away, the next one only after the
	// interval has passed.
	start := clk.Now()
	require.Eventually(t, func() bool { return count.Load() == 10 }, waitTimeout, 10*time.Millisecond)
	require.Never(t, func() bool { return count.Load() > 10 }, 100*time.Millisecond, 10*time.Millisecond)

	require.Eventually(t, func() bool {
		clk.Add(interval)
		return count.Load() == 100
	}, waitTimeout, 10*time.Millisecond)
	recv(t, done)
	require.GreaterOrEqual(t, clk.Now().Sub(start), 9*interval)
}
