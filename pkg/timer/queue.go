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
	"time"

	"github.com/DrAugus/actor-framework/pkg/clock"
	"github.com/google/btree"
	"github.com/pingcap/errors"
	"go.uber.org/atomic"
)

const btreeDegree = 16

// ID identifies a scheduled callback. The zero ID is never returned by a
// successful Schedule.
type ID uint64

type entry struct {
	at time.Time
	id ID
	fn func()
}

func entryLess(a, b *entry) bool {
	if !a.at.Equal(b.at) {
		return a.at.Before(b.at)
	}
	return a.id < b.id
}

// Queue is the single timer facility of an actor system. Entries are kept in
// a btree ordered by deadline, so both scheduling and cancellation cost
// O(log n) and a single goroutine serves every timer of the system.
//
// Callbacks are executed on the goroutine running Run. They must not block.
type Queue struct {
	clk clock.Clock

	mu     sync.Mutex
	tree   *btree.BTreeG[*entry]
	index  map[ID]*entry
	nextID ID

	wakeCh  chan struct{}
	closed  atomic.Bool
	running atomic.Bool
}

// NewQueue creates a Queue driven by clk.
func NewQueue(clk clock.Clock) *Queue {
	return &Queue{
		clk:    clk,
		tree:   btree.NewG[*entry](btreeDegree, entryLess),
		index:  make(map[ID]*entry),
		wakeCh: make(chan struct{}, 1),
	}
}

// Schedule registers fn to be called at or after at. It returns false if
// the queue has been closed, in which case fn is never called.
func (q *Queue) Schedule(at time.Time, fn func()) (ID, bool) {
	q.mu.Lock()
	if q.closed.Load() {
		q.mu.Unlock()
		return 0, false
	}
	q.nextID++
	e := &entry{at: at, id: q.nextID, fn: fn}
	q.tree.ReplaceOrInsert(e)
	q.index[e.id] = e
	min, _ := q.tree.Min()
	q.mu.Unlock()

	if min == e {
		q.notify()
	}
	return e.id, true
}

// ScheduleAfter registers fn to be called once d has elapsed.
func (q *Queue) ScheduleAfter(d time.Duration, fn func()) (ID, bool) {
	return q.Schedule(q.clk.Now().Add(d), fn)
}

// Cancel removes a pending entry. It returns false if the entry has already
// fired, was cancelled before, or never existed.
func (q *Queue) Cancel(id ID) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	e, ok := q.index[id]
	if !ok {
		return false
	}
	delete(q.index, id)
	q.tree.Delete(e)
	return true
}

// Len returns the number of pending entries.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.tree.Len()
}

func (q *Queue) notify() {
	select {
	case q.wakeCh <- struct{}{}:
	default:
	}
}

// popDue removes and returns every entry whose deadline is not after now,
// in deadline order.
func (q *Queue) popDue(now time.Time) []*entry {
	q.mu.Lock()
	defer q.mu.Unlock()

	var due []*entry
	for {
		e, ok := q.tree.Min()
		if !ok || e.at.After(now) {
			return due
		}
		q.tree.DeleteMin()
		delete(q.index, e.id)
		due = append(due, e)
	}
}

func (q *Queue) nextDeadline() (time.Time, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	e, ok := q.tree.Min()
	if !ok {
		return time.Time{}, false
	}
	return e.at, true
}

// Run fires due entries until ctx is cancelled. Run must be called at most
// once. After Run returns the queue is closed and pending entries are
// dropped.
func (q *Queue) Run(ctx context.Context) error {
	if q.running.Swap(true) {
		panic("timer queue: duplicate calls to Run")
	}
	defer q.close()

	for {
		// Entries scheduled after this point post a new wake up.
		select {
		case <-q.wakeCh:
		default:
		}
		now := q.clk.Now()
		due := q.popDue(now)
		for _, e := range due {
			e.fn()
		}
		if len(due) > 0 {
			continue
		}

		var (
			t      *clock.Timer
			timerC <-chan time.Time
		)
		if at, ok := q.nextDeadline(); ok {
			t = q.clk.Timer(at.Sub(now))
			timerC = t.C
		}

		select {
		case <-ctx.Done():
			if t != nil {
				t.Stop()
			}
			return errors.Trace(ctx.Err())
		case <-q.wakeCh:
		case <-timerC:
		}
		if t != nil {
			t.Stop()
		}
	}
}

func (q *Queue) close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.closed.Store(true)
	q.tree.Clear(false)
	q.index = make(map[ID]*entry)
}
