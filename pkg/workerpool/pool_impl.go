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

package workerpool

import (
	"context"
	"sync"

	"github.com/DrAugus/actor-framework/pkg/clock"
	cerrors "github.com/DrAugus/actor-framework/pkg/errors"
	"github.com/edwingeng/deque"
	"github.com/pingcap/errors"
	"go.uber.org/atomic"
	"golang.org/x/sync/errgroup"
)

type defaultPoolImpl struct {
	name       string
	numWorkers int

	// mu protects tasks, because deque is not thread-safe.
	mu    sync.Mutex
	tasks deque.Deque

	// wakeCh holds at most one token per worker.
	wakeCh chan struct{}

	isRunning atomic.Bool
	isExited  atomic.Bool
}

func newDefaultPoolImpl(name string, numWorkers int) *defaultPoolImpl {
	if numWorkers <= 0 {
		numWorkers = 1
	}
	return &defaultPoolImpl{
		name:       name,
		numWorkers: numWorkers,
		tasks:      deque.NewDeque(),
		wakeCh:     make(chan struct{}, numWorkers),
	}
}

func (p *defaultPoolImpl) WorkerNum() int {
	return p.numWorkers
}

func (p *defaultPoolImpl) Submit(f func()) error {
	if p.isExited.Load() {
		return cerrors.ErrWorkerPoolExited.GenWithStackByArgs()
	}

	p.mu.Lock()
	p.tasks.PushBack(f)
	p.mu.Unlock()

	select {
	case p.wakeCh <- struct{}{}:
	default:
		// Every worker already has a pending wake-up.
	}
	return nil
}

func (p *defaultPoolImpl) pop() (func(), bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.tasks.Empty() {
		return nil, false
	}
	return p.tasks.PopFront().(func()), true
}

func (p *defaultPoolImpl) Run(ctx context.Context) error {
	if p.isRunning.Swap(true) {
		panic("workerpool: duplicate calls to Run")
	}
	defer p.isExited.Store(true)

	totalWorkers.WithLabelValues(p.name).Set(float64(p.numWorkers))
	defer totalWorkers.DeleteLabelValues(p.name)

	errg, ctx := errgroup.WithContext(ctx)
	for i := 0; i < p.numWorkers; i++ {
		errg.Go(func() error {
			return p.runWorker(ctx)
		})
	}
	return errors.Trace(errg.Wait())
}

func (p *defaultPoolImpl) runWorker(ctx context.Context) error {
	working := workingWorkers.WithLabelValues(p.name)
	duration := workingDuration.WithLabelValues(p.name)
	for {
		f, ok := p.pop()
		if ok {
			start := clock.MonoNow()
			working.Inc()
			f()
			working.Dec()
			duration.Add(clock.MonoNow().Sub(start).Seconds())
			continue
		}

		select {
		case <-ctx.Done():
			return errors.Trace(ctx.Err())
		case <-p.wakeCh:
		}
	}
}
