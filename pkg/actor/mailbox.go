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
	"sync"

	cerrors "github.com/DrAugus/actor-framework/pkg/errors"
	"github.com/edwingeng/deque"
	"github.com/prometheus/client_golang/prometheus"
)

// mailbox is the inbox of an actor. Any goroutine may push, only the owner
// pops. Urgent envelopes are always popped before regular ones, and each
// class is FIFO.
type mailbox struct {
	id ID

	// mu protects the queues, because deque is not thread-safe.
	mu      sync.Mutex
	urgent  deque.Deque
	regular deque.Deque
	closed  bool

	// notifyCh wakes up a blocking owner. It holds at most one token.
	notifyCh chan struct{}

	enqueued [2]prometheus.Counter
}

func newMailbox(id ID, m *systemMetrics) *mailbox {
	return &mailbox{
		id:       id,
		urgent:   deque.NewDeque(),
		regular:  deque.NewDeque(),
		notifyCh: make(chan struct{}, 1),
		enqueued: [2]prometheus.Counter{
			Regular: m.enqueuedRegular,
			Urgent:  m.enqueuedUrgent,
		},
	}
}

func (m *mailbox) push(e *envelope) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return cerrors.ErrMailboxClosed.GenWithStackByArgs(m.id)
	}
	if e.priority == Urgent {
		m.urgent.PushBack(e)
	} else {
		m.regular.PushBack(e)
	}
	m.mu.Unlock()

	m.enqueued[e.priority].Inc()
	select {
	case m.notifyCh <- struct{}{}:
	default:
	}
	return nil
}

func (m *mailbox) pop() (*envelope, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.urgent.Empty() {
		return m.urgent.PopFront().(*envelope), true
	}
	if !m.regular.Empty() {
		return m.regular.PopFront().(*envelope), true
	}
	return nil, false
}

func (m *mailbox) len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.urgent.Len() + m.regular.Len()
}

// close rejects further pushes and returns the envelopes left behind, in
// dispatch order.
func (m *mailbox) close() []*envelope {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil
	}
	m.closed = true
	left := make([]*envelope, 0, m.urgent.Len()+m.regular.Len())
	for !m.urgent.Empty() {
		left = append(left, m.urgent.PopFront().(*envelope))
	}
	for !m.regular.Empty() {
		left = append(left, m.regular.PopFront().(*envelope))
	}
	return left
}
