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

package timer

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/DrAugus/actor-framework/pkg/clock"
	"github.com/DrAugus/actor-framework/pkg/leakutil"
	"github.com/pingcap/errors"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	leakutil.SetUpLeakTest(m)
}

type recorder struct {
	mu    sync.Mutex
	fired []int
}

func (r *recorder) record(i int) func() {
	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.fired = append(r.fired, i)
	}
}

func (r *recorder) snapshot() []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int(nil), r.fired...)
}

func TestQueueFiresInDeadlineOrder(t *testing.T) {
	clk := clock.NewMock()
	q := NewQueue(clk)
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		errCh <- q.Run(ctx)
	}()

	rec := &recorder{}
	base := clk.Now()
	_, ok := q.Schedule(base.Add(3*time.Second), rec.record(3))
	require.True(t, ok)
	_, ok = q.Schedule(base.Add(time.Second), rec.record(1))
	require.True(t, ok)
	id, ok := q.Schedule(base.Add(2*time.Second), rec.record(2))
	require.True(t, ok)
	require.Equal(t, 3, q.Len())

	require.True(t, q.Cancel(id))
	require.False(t, q.Cancel(id))
	require.Equal(t, 2, q.Len())

	require.Eventually(t, func() bool {
		clk.Add(500 * time.Millisecond)
		return len(rec.snapshot()) == 2
	}, 5*time.Second, 10*time.Millisecond)
	require.Equal(t, []int{1, 3}, rec.snapshot())
	require.Equal(t, 0, q.Len())

	cancel()
	err := <-errCh
	require.Equal(t, context.Canceled, errors.Cause(err))

	_, ok = q.Schedule(clk.Now(), rec.record(4))
	require.False(t, ok)
}

func TestQueueVirtualTime(t *testing.T) {
	clk := clock.NewMock()
	q := NewQueue(clk)
	rec := &recorder{}
	base := clk.Now()
	for _, at := range []int{1, 3, 5} {
		_, ok := q.Schedule(base.Add(time.Duration(at)*time.Second), rec.record(at))
		require.True(t, ok)
	}

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		errCh <- q.Run(ctx)
	}()

	waitCtx, waitCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer waitCancel()
	// Entries only fire once the clock reaches their deadline.
	steps := []struct {
		advance time.Duration
		fired   []int
	}{
		{999 * time.Millisecond, nil},
		{time.Millisecond, []int{1}},
		{2 * time.Second, []int{1, 3}},
		{time.Second, []int{1, 3}},
		{time.Second, []int{1, 3, 5}},
	}
	armed := 1
	for _, step := range steps {
		// The runner is parked on a timer for the earliest entry.
		require.NoError(t, clk.WaitArmed(waitCtx, armed))
		before := len(rec.snapshot())
		clk.Add(step.advance)
		if len(step.fired) > before {
			require.Eventually(t, func() bool {
				return len(rec.snapshot()) == len(step.fired)
			}, 5*time.Second, time.Millisecond)
			armed++
		}
		require.Equal(t, step.fired, rec.snapshot())
	}
	require.Equal(t, 0, q.Len())

	cancel()
	require.Equal(t, context.Canceled, errors.Cause(<-errCh))
}

func TestQueueEarlierEntryWakesRunner(t *testing.T) {
	q := NewQueue(clock.New())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	errCh := make(chan error, 1)
	go func() {
		errCh <- q.Run(ctx)
	}()

	rec := &recorder{}
	// The runner sleeps until the far entry, a nearer one must wake it.
	farID, ok := q.ScheduleAfter(time.Hour, rec.record(1))
	require.True(t, ok)
	_, ok = q.ScheduleAfter(10*time.Millisecond, rec.record(2))
	require.True(t, ok)

	require.Eventually(t, func() bool {
		return len(rec.snapshot()) == 1
	}, 5*time.Second, 5*time.Millisecond)
	require.Equal(t, []int{2}, rec.snapshot())
	require.True(t, q.Cancel(farID))

	cancel()
	<-errCh
}

func TestQueueSameDeadlineKeepsScheduleOrder(t *testing.T) {
	clk := clock.NewMock()
	q := NewQueue(clk)
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		errCh <- q.Run(ctx)
	}()

	rec := &recorder{}
	at := clk.Now().Add(time.Second)
	for i := 0; i < 10; i++ {
		_, ok := q.Schedule(at, rec.record(i))
		require.True(t, ok)
	}
	require.Eventually(t, func() bool {
		clk.Add(time.Second)
		return len(rec.snapshot()) == 10
	}, 5*time.Second, 10*time.Millisecond)
	require.Equal(t, []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}, rec.snapshot())

	cancel()
	<-errCh
}

func TestQueueRunTwicePanics(t *testing.T) {
	q := NewQueue(clock.New())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.Error(t, q.Run(ctx))
	require.Panics(t, func() {
		_ = q.Run(ctx)
	})
}
