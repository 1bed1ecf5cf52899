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

// Package clock abstracts the time source of an actor system. The real clock
// is used in production, and the mock clock drives virtual time in tests,
// where request deadlines and delayed deliveries fire only when the test
// advances the clock.
package clock

import (
	"context"
	"sync"
	"time"

	bclock "github.com/benbjohnson/clock"
	"github.com/gavv/monotime"
	"github.com/pingcap/errors"
)

type (
	// Timer is a one-shot timer created by a Clock.
	Timer = bclock.Timer
	// MonotonicTime is a reading of a monotonic clock.
	MonotonicTime time.Duration
)

var unixEpoch = time.Unix(0, 0)

// Clock is the time source used by timers and deadlines.
type Clock interface {
	bclock.Clock
	Mono() MonotonicTime
}

type realClock struct {
	bclock.Clock
}

func (realClock) Mono() MonotonicTime {
	return MonoNow()
}

// New returns the wall clock.
func New() Clock {
	return realClock{bclock.New()}
}

// Mock is a Clock whose time only moves when Add or Set is called.
//
// Mock counts the timers created by Timer, so a test can wait until a
// goroutine has armed its timer before moving time. Otherwise an Add may
// happen before the timer exists and the timer never fires.
type Mock struct {
	*bclock.Mock

	mu    sync.Mutex
	armed int
	// armCh is closed and replaced every time a timer is armed.
	armCh chan struct{}
}

var _ Clock = (*Mock)(nil)

// NewMock returns a mock clock set to the unix epoch.
func NewMock() *Mock {
	return &Mock{
		Mock:  bclock.NewMock(),
		armCh: make(chan struct{}),
	}
}

// Timer implements Clock.
func (m *Mock) Timer(d time.Duration) *Timer {
	t := m.Mock.Timer(d)
	m.mu.Lock()
	m.armed++
	close(m.armCh)
	m.armCh = make(chan struct{})
	m.mu.Unlock()
	return t
}

// Armed returns the number of timers created by Timer so far.
func (m *Mock) Armed() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.armed
}

// WaitArmed blocks until at least n timers have been created by Timer.
func (m *Mock) WaitArmed(ctx context.Context, n int) error {
	for {
		m.mu.Lock()
		if m.armed >= n {
			m.mu.Unlock()
			return nil
		}
		ch := m.armCh
		m.mu.Unlock()

		select {
		case <-ch:
		case <-ctx.Done():
			return errors.Trace(ctx.Err())
		}
	}
}

// Mono implements Clock. The reading is the mock time since the unix epoch.
func (m *Mock) Mono() MonotonicTime {
	return ToMono(m.Now())
}

// Sub returns the duration m-other.
func (m MonotonicTime) Sub(other MonotonicTime) time.Duration {
	return time.Duration(m - other)
}

// MonoNow reads the process monotonic clock.
func MonoNow() MonotonicTime {
	return MonotonicTime(monotime.Now())
}

// ToMono converts a wall time to a MonotonicTime relative to the unix epoch.
func ToMono(t time.Time) MonotonicTime {
	return MonotonicTime(t.Sub(unixEpoch))
}
