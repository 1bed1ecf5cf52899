// Copyright 2022 PingCAP, Inc.
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

package flow

import (
	"sort"
	"time"

	"github.com/DrAugus/actor-framework/pkg/clock"
	"github.com/edwingeng/deque"
)

// ScopedCoordinator runs pipelines on the calling goroutine. Scheduled
// actions only run inside Run. It is used outside of actors, for example by
// tests and by blocking callers.
type ScopedCoordinator struct {
	clk     clock.Clock
	actions deque.Deque
	delayed []*delayedAction
}

type delayedAction struct {
	at       time.Time
	fn       func()
	disposed bool
}

func (d *delayedAction) Dispose() {
	d.disposed = true
}

func (d *delayedAction) Disposed() bool {
	return d.disposed
}

// NewScopedCoordinator creates a ScopedCoordinator that reads time from clk.
func NewScopedCoordinator(clk clock.Clock) *ScopedCoordinator {
	return &ScopedCoordinator{clk: clk, actions: deque.NewDeque()}
}

// Schedule implements Coordinator.
func (c *ScopedCoordinator) Schedule(fn func()) {
	c.actions.PushBack(fn)
}

// DelayUntil implements Coordinator.
func (c *ScopedCoordinator) DelayUntil(at time.Time, fn func()) Disposable {
	d := &delayedAction{at: at, fn: fn}
	i := sort.Search(len(c.delayed), func(i int) bool {
		return c.delayed[i].at.After(at)
	})
	c.delayed = append(c.delayed, nil)
	copy(c.delayed[i+1:], c.delayed[i:])
	c.delayed[i] = d
	return d
}

// Now implements Coordinator.
func (c *ScopedCoordinator) Now() time.Time {
	return c.clk.Now()
}

// Run executes scheduled actions and due delayed actions until none is
// left. Delayed actions that are not due yet stay pending.
func (c *ScopedCoordinator) Run() {
	for {
		for !c.actions.Empty() {
			c.actions.PopFront().(func())()
		}
		if !c.moveDue() {
			return
		}
	}
}

// Pending returns the number of scheduled and delayed actions.
func (c *ScopedCoordinator) Pending() int {
	n := c.actions.Len()
	for _, d := range c.delayed {
		if !d.disposed {
			n++
		}
	}
	return n
}

func (c *ScopedCoordinator) moveDue() bool {
	now := c.clk.Now()
	moved := false
	for len(c.delayed) > 0 && !c.delayed[0].at.After(now) {
		d := c.delayed[0]
		c.delayed = c.delayed[1:]
		if !d.disposed {
			c.actions.PushBack(d.fn)
			moved = true
		}
	}
	return moved
}
