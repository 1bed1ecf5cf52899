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
	"reflect"
	"time"

	cerrors "github.com/DrAugus/actor-framework/pkg/errors"
	"github.com/DrAugus/actor-framework/pkg/flow"
	"github.com/DrAugus/actor-framework/pkg/timer"
	"github.com/pingcap/log"
	"go.uber.org/atomic"
	"go.uber.org/zap"
)

// Context is an event-based actor. It is handed to every handler and is
// only valid on the actor itself.
//
// Context implements flow.Coordinator, so pipelines created on an actor run
// between its messages.
type Context struct {
	cell

	// scheduled is true while a dispatch step is queued or running.
	scheduled atomic.Bool

	init     func(self *Context) *Behavior
	behavior *Behavior
	current  *envelope
	promise  *Promise
	// promises that may still be pending, answered with
	// ErrRequestReceiverDown when the actor terminates.
	promises     []*Promise
	promiseSweep int

	// delayed actions that have not run yet.
	timers      map[uint64]*delayedAction
	lastDelayID uint64

	streams    *streamRegistry
	sinks      map[uint64]streamSink
	lastSinkID uint64

	quit       bool
	terminated bool
}

var _ flow.Coordinator = (*Context)(nil)

func newContext(sys *System, id ID, init func(self *Context) *Behavior) *Context {
	c := &Context{
		init:   init,
		timers: make(map[uint64]*delayedAction),
		sinks:  make(map[uint64]streamSink),
	}
	c.cell = cell{
		id:      id,
		sys:     sys,
		mb:      newMailbox(id, sys.metrics),
		tracker: newRequestTracker(sys, c, c.Schedule),
	}
	c.streams = newStreamRegistry(c)
	return c
}

// System returns the system of the actor.
func (c *Context) System() *System {
	return c.sys
}

// Sender returns the sender of the message being handled. It is invalid
// for anonymous messages.
func (c *Context) Sender() Ref {
	if c.current == nil {
		return Ref{}
	}
	return c.current.sender
}

// Promise takes over the answer of the request being handled. The handler's
// return value is then ignored and the request is answered by the promise.
// Outside of a request handler, the returned promise does nothing.
func (c *Context) Promise() *Promise {
	if c.current == nil || c.current.kind != kindRequest {
		return &Promise{}
	}
	if c.promise == nil {
		c.promise = &Promise{owner: c.Self(), req: c.current}
		c.trackPromise(c.promise)
	}
	return c.promise
}

func (c *Context) trackPromise(p *Promise) {
	if len(c.promises) >= c.promiseSweep {
		live := c.promises[:0]
		for _, q := range c.promises {
			if q.Pending() {
				live = append(live, q)
			}
		}
		for i := len(live); i < len(c.promises); i++ {
			c.promises[i] = nil
		}
		c.promises = live
		c.promiseSweep = 2*len(live) + 16
	}
	c.promises = append(c.promises, p)
}

// Become replaces the behavior of the actor.
func (c *Context) Become(b *Behavior) {
	c.behavior = b
}

// Spawn spawns an actor in the same system.
func (c *Context) Spawn(init func(self *Context) *Behavior) Ref {
	return c.sys.Spawn(init)
}

// Quit terminates the actor once the current message has been handled.
func (c *Context) Quit() {
	c.quit = true
}

// Now implements flow.Coordinator.
func (c *Context) Now() time.Time {
	return c.sys.clk.Now()
}

// Schedule implements flow.Coordinator. fn runs in a later step of the
// actor, unless the actor terminates first.
func (c *Context) Schedule(fn func()) {
	_ = c.enqueue(systemEnvelope(actionMsg{fn: fn}, Regular))
}

type delayedAction struct {
	owner    *Context
	key      uint64
	timerID  timer.ID
	disposed bool
}

func (d *delayedAction) Dispose() {
	if d.disposed {
		return
	}
	d.disposed = true
	if _, ok := d.owner.timers[d.key]; ok {
		delete(d.owner.timers, d.key)
		d.owner.sys.timers.Cancel(d.timerID)
	}
}

func (d *delayedAction) Disposed() bool {
	return d.disposed
}

// DelayUntil implements flow.Coordinator.
func (c *Context) DelayUntil(at time.Time, fn func()) flow.Disposable {
	c.lastDelayID++
	key := c.lastDelayID
	d := &delayedAction{owner: c, key: key}
	self := c.Self()
	id, ok := c.sys.timers.Schedule(at, func() {
		_ = deliver(self, systemEnvelope(actionMsg{fn: fn, delayID: key}, Regular))
	})
	if !ok {
		d.disposed = true
		return d
	}
	d.timerID = id
	c.timers[key] = d
	return d
}

// DelayFor runs fn on the actor once d has elapsed.
func (c *Context) DelayFor(d time.Duration, fn func()) flow.Disposable {
	return c.DelayUntil(c.Now().Add(d), fn)
}

func (c *Context) enqueue(e *envelope) error {
	if err := c.mb.push(e); err != nil {
		return err
	}
	c.schedule()
	return nil
}

func (c *Context) schedule() {
	if !c.scheduled.CompareAndSwap(false, true) {
		return
	}
	if err := c.sys.pool.Submit(c.step); err != nil {
		log.Debug("cannot schedule actor", zap.Stringer("actor", c.Self()), zap.Error(err))
	}
}

// step dispatches at most max-throughput envelopes.
func (c *Context) step() {
	defer func() {
		if r := recover(); r != nil {
			err := cerrors.ErrActorPanicked.GenWithStackByArgs(c.Self(), r)
			log.Error("actor panicked",
				zap.Stringer("actor", c.Self()),
				zap.Any("panic", r),
				zap.Stack("stack"))
			c.terminate(err)
		}
	}()

	for i := 0; i < c.sys.cfg.MaxThroughput; i++ {
		e, ok := c.mb.pop()
		if !ok {
			break
		}
		c.handle(e)
		if c.quit && !c.terminated {
			c.terminate(nil)
		}
		if c.terminated {
			return
		}
	}
	c.scheduled.Store(false)
	if c.mb.len() > 0 {
		c.schedule()
	}
}

func (c *Context) handle(e *envelope) {
	switch e.kind {
	case kindSystem:
		c.handleSystem(e)
	case kindResponse:
		c.tracker.onResponse(e)
	default:
		c.dispatch(e)
	}
}

// dispatch runs the handler of e. current is left set if the handler
// panics, so terminate can answer the request.
func (c *Context) dispatch(e *envelope) {
	c.current, c.promise = e, nil
	c.invoke(e)
	c.current, c.promise = nil, nil
}

func (c *Context) invoke(e *envelope) {
	cs, ok := c.behavior.lookup(e.payload)
	if !ok {
		if e.kind == kindRequest {
			respond(c.Self(), e, nil, cerrors.ErrUnexpectedMessage.GenWithStackByArgs(reflect.TypeOf(e.payload)))
			return
		}
		c.sys.deadLetter(e, c.Self(), cerrors.ErrUnexpectedMessage.GenWithStackByArgs(reflect.TypeOf(e.payload)))
		return
	}
	v, err := cs.fn(c, e.payload)
	if e.kind == kindRequest {
		if c.promise == nil {
			respond(c.Self(), e, v, err)
		}
		return
	}
	if err != nil {
		log.Warn("message handler failed",
			zap.Stringer("actor", c.Self()),
			zap.Stringer("from", e.sender),
			zap.Error(err))
	}
}

func (c *Context) handleSystem(e *envelope) {
	switch msg := e.payload.(type) {
	case initMsg:
		if c.init != nil {
			c.behavior = c.init(c)
		}
	case exitMsg:
		c.terminate(msg.reason)
	case actionMsg:
		if msg.delayID != 0 {
			if _, ok := c.timers[msg.delayID]; !ok {
				// disposed
				return
			}
			delete(c.timers, msg.delayID)
		}
		msg.fn()
	case timeoutMsg:
		c.tracker.onTimeout(msg.requestID)
	case streamOpen:
		c.streams.open(msg)
	case streamAck:
		c.streams.ack(msg)
	case streamCancel:
		c.streams.cancel(msg)
	case streamBatch:
		if s, ok := c.sinks[msg.sinkID]; ok {
			s.onBatch(msg.items)
		}
	case streamClose:
		if s, ok := c.sinks[msg.sinkID]; ok {
			s.onClose(msg.err, msg.abort)
		}
	default:
		log.Panic("unknown system message", zap.Any("message", e.payload))
	}
}

// terminate releases everything the actor owns. Requests left in the
// mailbox, the request being handled and pending promises are answered with
// ErrRequestReceiverDown.
func (c *Context) terminate(reason error) {
	if c.terminated {
		return
	}
	c.terminated = true
	c.sys.router.remove(c.id)
	c.release()
	c.sys.metrics.actors.Dec()
	if reason != nil && !cerrors.IsContextCanceledError(reason) {
		log.Info("actor terminated", zap.Stringer("actor", c.Self()), zap.Error(reason))
		return
	}
	log.Debug("actor terminated", zap.Stringer("actor", c.Self()))
}

func (c *Context) release() {
	self := c.Self()
	if e := c.current; e != nil && e.kind == kindRequest && c.promise == nil {
		respond(self, e, nil, cerrors.ErrRequestReceiverDown.GenWithStackByArgs(self))
	}
	c.current, c.promise = nil, nil
	for _, p := range c.promises {
		if p.Pending() {
			p.Fail(cerrors.ErrRequestReceiverDown.GenWithStackByArgs(self))
		}
	}
	c.promises = nil
	for _, e := range c.mb.close() {
		if e.kind == kindRequest {
			respond(self, e, nil, cerrors.ErrRequestReceiverDown.GenWithStackByArgs(self))
		}
	}
	for key, d := range c.timers {
		d.disposed = true
		c.sys.timers.Cancel(d.timerID)
		delete(c.timers, key)
	}
	c.tracker.shutdown()
	c.streams.shutdown()
	for id, s := range c.sinks {
		delete(c.sinks, id)
		s.detach()
	}
}

func (c *Context) stop() {
	c.terminate(cerrors.ErrActorSystemStopped.GenWithStackByArgs(c.sys.name))
}
