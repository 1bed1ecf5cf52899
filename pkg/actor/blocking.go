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

	cerrors "github.com/DrAugus/actor-framework/pkg/errors"
	"github.com/edwingeng/deque"
	"github.com/pingcap/errors"
	"github.com/pingcap/log"
	"go.uber.org/atomic"
	"go.uber.org/zap"
)

// BlockingActor is an actor driven by its own goroutine instead of the
// workers of the system. It is meant for top-level code and tests, which
// may block while waiting for messages or responses.
//
// A BlockingActor must be used by one goroutine at a time.
type BlockingActor struct {
	cell

	// stash keeps messages that arrived while waiting for a response.
	stash  deque.Deque
	closed atomic.Bool
}

// NewBlocking creates a blocking actor. It must be closed with Close.
func (s *System) NewBlocking() *BlockingActor {
	id := s.nextID()
	b := &BlockingActor{stash: deque.NewDeque()}
	b.cell = cell{
		id:  id,
		sys: s,
		mb:  newMailbox(id, s.metrics),
	}
	// Posted callbacks run inline, the owner is blocked in Receive.
	b.tracker = newRequestTracker(s, b, func(fn func()) { fn() })
	if s.stopped.Load() {
		b.closed.Store(true)
		b.mb.close()
		return b
	}
	s.router.insert(id, b)
	s.metrics.actors.Inc()
	return b
}

func (b *BlockingActor) enqueue(e *envelope) error {
	return b.mb.push(e)
}

func (b *BlockingActor) stop() {
	b.release()
}

// Close terminates the actor.
func (b *BlockingActor) Close() {
	if b.sys.router.remove(b.id) {
		b.release()
	}
}

func (b *BlockingActor) release() {
	if b.closed.Swap(true) {
		return
	}
	self := b.Self()
	for _, e := range b.mb.close() {
		if e.kind == kindRequest {
			respond(self, e, nil, cerrors.ErrRequestReceiverDown.GenWithStackByArgs(self))
		}
	}
	for !b.stash.Empty() {
		if e := b.stash.PopFront().(*envelope); e.kind == kindRequest {
			respond(self, e, nil, cerrors.ErrRequestReceiverDown.GenWithStackByArgs(self))
		}
	}
	b.tracker.shutdown()
	b.sys.metrics.actors.Dec()
}

// next waits for the next envelope in the mailbox.
func (b *BlockingActor) next(ctx context.Context) (*envelope, error) {
	for {
		if e, ok := b.mb.pop(); ok {
			return e, nil
		}
		if b.closed.Load() {
			return nil, cerrors.ErrMailboxClosed.GenWithStackByArgs(b.id)
		}
		select {
		case <-ctx.Done():
			return nil, errors.Trace(ctx.Err())
		case <-b.sys.doneCh:
			return nil, cerrors.ErrActorSystemStopped.GenWithStackByArgs(b.sys.name)
		case <-b.mb.notifyCh:
		}
	}
}

// handleInternal handles envelopes that never reach the caller. It returns
// false for regular messages and requests.
func (b *BlockingActor) handleInternal(e *envelope) bool {
	switch e.kind {
	case kindResponse:
		b.tracker.onResponse(e)
	case kindSystem:
		switch msg := e.payload.(type) {
		case timeoutMsg:
			b.tracker.onTimeout(msg.requestID)
		case actionMsg:
			msg.fn()
		default:
			log.Debug("blocking actor ignores system message",
				zap.Stringer("actor", b.Self()), zap.Any("message", e.payload))
		}
	default:
		return false
	}
	return true
}

// ReceiveMessage waits for the next regular message or request. Responses
// are processed while waiting.
func (b *BlockingActor) ReceiveMessage(ctx context.Context) (*Message, error) {
	for {
		var e *envelope
		if !b.stash.Empty() {
			e = b.stash.PopFront().(*envelope)
		} else {
			var err error
			if e, err = b.next(ctx); err != nil {
				return nil, err
			}
		}
		if b.handleInternal(e) {
			continue
		}
		return &Message{Payload: e.payload, Sender: e.sender, Priority: e.priority, env: e}, nil
	}
}

// Respond answers a request received by ReceiveMessage. It does nothing for
// regular messages.
func (b *BlockingActor) Respond(m *Message, v any, err error) {
	if !m.IsRequest() {
		return
	}
	respond(b.Self(), m.env, v, err)
}

// Receive blocks until the outcome of a request sent by a blocking actor is
// known and then invokes exactly one of the callbacks, on the calling
// goroutine. Messages arriving in the meantime are kept for
// ReceiveMessage.
//
// An error is returned, and no callback invoked, if ctx is done or the
// system stops first. The request is dropped in that case, a late response
// is discarded.
func Receive[R any](ctx context.Context, r *Response, onValue func(R), onError func(error)) error {
	b, ok := r.tracker.owner.(*BlockingActor)
	if !ok {
		log.Panic("Receive requires a request sent by a blocking actor")
	}
	done := false
	bindResponse(r,
		func(v R) {
			done = true
			onValue(v)
		},
		func(err error) {
			done = true
			onError(err)
		})
	for !done {
		e, err := b.next(ctx)
		if err != nil {
			b.tracker.abandon(r.req)
			return err
		}
		if !b.handleInternal(e) {
			b.stash.PushBack(e)
		}
	}
	return nil
}
