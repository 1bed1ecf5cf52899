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
	"context"
	"time"

	"github.com/DrAugus/actor-framework/pkg/clock"
	"github.com/DrAugus/actor-framework/pkg/config"
	cerrors "github.com/DrAugus/actor-framework/pkg/errors"
	"github.com/DrAugus/actor-framework/pkg/timer"
	"github.com/DrAugus/actor-framework/pkg/workerpool"
	"github.com/google/uuid"
	"github.com/pingcap/errors"
	"github.com/pingcap/log"
	"go.uber.org/atomic"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// SystemBuilder is a builder of a system.
type SystemBuilder struct {
	cfg *config.SystemConfig
	clk clock.Clock
}

// NewSystemBuilder returns a new system builder with the default config.
func NewSystemBuilder(name string) *SystemBuilder {
	cfg := config.GetDefaultSystemConfig()
	cfg.Name = name
	return &SystemBuilder{cfg: cfg}
}

// Config replaces the whole config. The name passed to NewSystemBuilder is
// kept if cfg has none.
func (b *SystemBuilder) Config(cfg *config.SystemConfig) *SystemBuilder {
	name := b.cfg.Name
	b.cfg = cfg.Clone()
	if b.cfg.Name == "" {
		b.cfg.Name = name
	}
	return b
}

// WorkerNumber sets the number of workers of the system.
func (b *SystemBuilder) WorkerNumber(numWorkers int) *SystemBuilder {
	b.cfg.WorkerNumber = numWorkers
	return b
}

// MaxThroughput sets the max number of envelopes an actor handles before
// it yields its worker.
func (b *SystemBuilder) MaxThroughput(n int) *SystemBuilder {
	b.cfg.MaxThroughput = n
	return b
}

// Clock sets the clock of the system. The wall clock is used by default.
func (b *SystemBuilder) Clock(clk clock.Clock) *SystemBuilder {
	b.clk = clk
	return b
}

// Build builds a system. The system does nothing before Start.
func (b *SystemBuilder) Build() (*System, error) {
	cfg := b.cfg.Clone()
	if err := cfg.ValidateAndAdjust(); err != nil {
		return nil, errors.Trace(err)
	}
	clk := b.clk
	if clk == nil {
		clk = clock.New()
	}
	return &System{
		id:          uuid.New(),
		name:        cfg.Name,
		cfg:         cfg,
		clk:         clk,
		pool:        workerpool.NewPool(cfg.Name, cfg.WorkerNumber),
		timers:      timer.NewQueue(clk),
		router:      newRouter(),
		metrics:     newSystemMetrics(cfg.Name),
		deadLetters: rate.NewLimiter(rate.Every(time.Second), 10),
		doneCh:      make(chan struct{}),
	}, nil
}

// System runs actors on a fixed pool of workers and owns the timer queue
// used for delayed messages and request deadlines.
type System struct {
	id     uuid.UUID
	name   string
	cfg    *config.SystemConfig
	clk    clock.Clock
	pool   workerpool.Pool
	timers *timer.Queue
	router *Router

	metrics     *systemMetrics
	deadLetters *rate.Limiter

	lastID  atomic.Uint64
	started atomic.Bool
	stopped atomic.Bool
	cancel  context.CancelFunc
	errg    *errgroup.Group
	doneCh  chan struct{}
}

// Name returns the name of the system.
func (s *System) Name() string {
	return s.name
}

// Config returns the adjusted config of the system. It must not be
// modified.
func (s *System) Config() *config.SystemConfig {
	return s.cfg
}

// Router returns the router of the system.
func (s *System) Router() *Router {
	return s.router
}

// Clock returns the clock of the system.
func (s *System) Clock() clock.Clock {
	return s.clk
}

// Start starts the workers and the timer queue.
func (s *System) Start(ctx context.Context) error {
	if s.started.Swap(true) {
		return cerrors.ErrActorSystemAlreadyStarted.GenWithStackByArgs(s.name)
	}
	if s.stopped.Load() {
		return cerrors.ErrActorSystemStopped.GenWithStackByArgs(s.name)
	}
	ctx, s.cancel = context.WithCancel(ctx)
	s.errg, ctx = errgroup.WithContext(ctx)
	s.errg.Go(func() error {
		return s.pool.Run(ctx)
	})
	s.errg.Go(func() error {
		return s.timers.Run(ctx)
	})
	log.Info("actor system started",
		zap.String("name", s.name),
		zap.Stringer("id", s.id),
		zap.Int("workerNumber", s.cfg.WorkerNumber))
	return nil
}

// Stop stops the system and terminates every actor. It waits for running
// steps to finish, so it must not be called by an actor.
func (s *System) Stop() {
	if s.stopped.Swap(true) {
		return
	}
	close(s.doneCh)
	if s.cancel != nil {
		s.cancel()
		if err := s.errg.Wait(); err != nil && !cerrors.IsContextCanceledError(err) {
			log.Warn("actor system exited with error", zap.String("name", s.name), zap.Error(err))
		}
	}
	for _, p := range s.router.removeAll() {
		p.stop()
	}
	s.metrics.close()
	log.Info("actor system stopped", zap.String("name", s.name), zap.Stringer("id", s.id))
}

func (s *System) nextID() ID {
	return ID(s.lastID.Inc())
}

// Spawn creates an event-based actor. init runs in the first step of the
// actor and returns its behavior. A nil behavior is allowed, for example
// for actors that only produce streams.
//
// An invalid Ref is returned if the system is stopped.
func (s *System) Spawn(init func(self *Context) *Behavior) Ref {
	if s.stopped.Load() {
		log.Warn("spawn on a stopped actor system", zap.String("name", s.name))
		return Ref{}
	}
	c := newContext(s, s.nextID(), init)
	s.router.insert(c.id, c)
	s.metrics.actors.Inc()
	_ = c.enqueue(systemEnvelope(initMsg{}, Urgent))
	return c.Self()
}

// StopActor terminates an actor after the urgent messages queued before.
func (s *System) StopActor(ref Ref) error {
	return deliver(ref, systemEnvelope(exitMsg{}, Urgent))
}

// deadLetter logs a message that cannot be delivered or handled.
func (s *System) deadLetter(e *envelope, to Ref, err error) {
	if !s.deadLetters.Allow() {
		return
	}
	log.Warn("drop message",
		zap.String("system", s.name),
		zap.Stringer("from", e.sender),
		zap.Stringer("to", to),
		zap.Stringer("priority", e.priority),
		zap.Error(err))
}
