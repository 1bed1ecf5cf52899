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
	"time"

	cerrors "github.com/DrAugus/actor-framework/pkg/errors"
	"github.com/DrAugus/actor-framework/pkg/flow"
	"github.com/DrAugus/actor-framework/pkg/timer"
	"go.uber.org/atomic"
)

// cell is the state shared by event-based and blocking actors.
type cell struct {
	id      ID
	sys     *System
	mb      *mailbox
	tracker *requestTracker
}

// Self returns the ref of the actor.
func (c *cell) Self() Ref {
	return Ref{id: c.id, sys: c.sys}
}

// Mail starts building a message from the actor.
func (c *cell) Mail(payload any) *MailBuilder {
	return &MailBuilder{from: c, payload: payload}
}

// MailBuilder builds a message. It is created by Mail.
type MailBuilder struct {
	from     *cell
	payload  any
	priority Priority
	delay    time.Duration
	at       time.Time
}

// Urgent puts the message into the urgent class of the receiver.
func (m *MailBuilder) Urgent() *MailBuilder {
	m.priority = Urgent
	return m
}

// Delay holds the message back for d. A non-positive d sends immediately.
func (m *MailBuilder) Delay(d time.Duration) *MailBuilder {
	m.delay, m.at = d, time.Time{}
	return m
}

// Schedule holds the message back until t. A t that is not in the future
// sends immediately.
func (m *MailBuilder) Schedule(t time.Time) *MailBuilder {
	m.at, m.delay = t, 0
	return m
}

// departure returns the time the message leaves, or the zero time if it
// leaves now.
func (m *MailBuilder) departure() time.Time {
	now := m.from.sys.clk.Now()
	if !m.at.IsZero() && m.at.After(now) {
		return m.at
	}
	if m.delay > 0 {
		return now.Add(m.delay)
	}
	return time.Time{}
}

// departure cancels a delayed message that has not left yet. It is safe
// for use from any goroutine.
type departure struct {
	timers   *timer.Queue
	id       timer.ID
	disposed atomic.Bool
}

func newDeparture(timers *timer.Queue, id timer.ID) *departure {
	return &departure{timers: timers, id: id}
}

// departed returns a departure with nothing to cancel.
func departed() *departure {
	d := &departure{}
	d.disposed.Store(true)
	return d
}

func (d *departure) Dispose() {
	if !d.disposed.Swap(true) {
		d.timers.Cancel(d.id)
	}
}

func (d *departure) Disposed() bool {
	return d.disposed.Load()
}

// Send sends the message. It never blocks. An invalid or terminated target
// is reported with ErrInvalidRequest. A delayed message whose target is gone
// at departure is dropped.
func (m *MailBuilder) Send(target Ref) error {
	_, err := m.SendCancelable(target)
	return err
}

// SendCancelable is Send for delayed messages. Disposing the returned
// handle withdraws the message if it has not left yet. For a message sent
// right away the handle is already disposed.
func (m *MailBuilder) SendCancelable(target Ref) (flow.Disposable, error) {
	e := &envelope{
		payload:  m.payload,
		sender:   m.from.Self(),
		priority: m.priority,
		kind:     kindPlain,
	}
	at := m.departure()
	if at.IsZero() {
		return departed(), deliver(target, e)
	}
	if !target.Alive() {
		return departed(), cerrors.ErrInvalidRequest.GenWithStackByArgs(target)
	}
	e.deliverAt = at
	sys := m.from.sys
	id, ok := sys.timers.Schedule(at, func() {
		if err := deliver(target, e); err != nil {
			sys.deadLetter(e, target, err)
		}
	})
	if !ok {
		return departed(), cerrors.ErrActorSystemStopped.GenWithStackByArgs(sys.name)
	}
	return newDeparture(sys.timers, id), nil
}

// Request sends the message as a request. The outcome is consumed with Then
// on an event-based actor or with Receive on a blocking actor.
//
// The deadline is the departure time plus timeout. A non-positive timeout
// uses the default request timeout of the system. An invalid or terminated
// target fails the request with ErrInvalidRequest right away, without
// starting a timer.
//
// The departure of a delayed request can be withdrawn with
// Response.Departure. A withdrawn request fails with ErrRequestTimeout at
// its deadline.
func (m *MailBuilder) Request(target Ref, timeout time.Duration) *Response {
	sys := m.from.sys
	if timeout <= 0 {
		timeout = time.Duration(sys.cfg.DefaultRequestTimeout)
	}
	t := m.from.tracker
	pr := t.add(target, timeout)
	resp := &Response{tracker: t, req: pr, departure: departed()}
	if !target.Alive() {
		t.resolve(pr, nil, cerrors.ErrInvalidRequest.GenWithStackByArgs(target))
		return resp
	}

	self := m.from.Self()
	e := &envelope{
		payload:       m.payload,
		sender:        self,
		priority:      m.priority,
		correlationID: pr.id,
		kind:          kindRequest,
	}
	depart := func() error {
		return deliver(target, e)
	}
	at := m.departure()
	if at.IsZero() {
		at = sys.clk.Now()
		if err := depart(); err != nil {
			t.resolve(pr, nil, err)
			return resp
		}
	} else {
		e.deliverAt = at
		id, ok := sys.timers.Schedule(at, func() {
			if depart() != nil {
				down := &envelope{
					sender:        target,
					correlationID: pr.id,
					kind:          kindResponse,
					priority:      e.priority,
					err:           cerrors.ErrRequestReceiverDown.GenWithStackByArgs(target),
				}
				_ = deliver(self, down)
			}
		})
		if !ok {
			t.resolve(pr, nil, cerrors.ErrActorSystemStopped.GenWithStackByArgs(sys.name))
			return resp
		}
		pr.timers = append(pr.timers, id)
		resp.departure = newDeparture(sys.timers, id)
	}

	id, ok := sys.timers.Schedule(at.Add(timeout), func() {
		_ = deliver(self, systemEnvelope(timeoutMsg{requestID: pr.id}, Urgent))
	})
	if !ok {
		t.resolve(pr, nil, cerrors.ErrActorSystemStopped.GenWithStackByArgs(sys.name))
		return resp
	}
	pr.timers = append(pr.timers, id)
	return resp
}
