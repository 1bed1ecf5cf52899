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

// outcomeAbandoned labels requests dropped before their outcome was known.
const outcomeAbandoned = "abandoned"

// pendingRequest is a request waiting for its terminal outcome.
type pendingRequest struct {
	id      uint64
	target  Ref
	timeout time.Duration
	// timers are the departure timer of a delayed request and the
	// deadline timer.
	timers []timer.ID

	bound    bool
	expected reflect.Type
	onValue  func(any)
	onError  func(error)

	resolved bool
	result   any
	err      error
}

// requestTracker owns the pending requests of one actor. It is only
// accessed by its owner, every remote event reaches it as an envelope.
type requestTracker struct {
	sys   *System
	owner receiver
	// post runs a callback on the owner after the current event.
	post    func(func())
	lastID  uint64
	pending map[uint64]*pendingRequest
}

func newRequestTracker(sys *System, owner receiver, post func(func())) *requestTracker {
	return &requestTracker{
		sys:     sys,
		owner:   owner,
		post:    post,
		pending: make(map[uint64]*pendingRequest),
	}
}

func (t *requestTracker) add(target Ref, timeout time.Duration) *pendingRequest {
	t.lastID++
	pr := &pendingRequest{id: t.lastID, target: target, timeout: timeout}
	t.pending[pr.id] = pr
	t.sys.metrics.pending.Inc()
	return pr
}

// resolve is the only terminal transition of a request. The first call
// wins, later calls are ignored.
func (t *requestTracker) resolve(pr *pendingRequest, result any, err error) {
	if pr.resolved {
		return
	}
	pr.resolved = true
	t.forget(pr)
	pr.result, pr.err = result, err
	if pr.bound {
		pr.err = pr.check()
	}
	t.sys.metrics.outcomes.WithLabelValues(cerrors.KindOf(pr.err).String()).Inc()
	if pr.bound {
		t.invoke(pr)
	}
}

// abandon drops a request whose consumer stopped waiting. No callback is
// invoked for it anymore.
func (t *requestTracker) abandon(pr *pendingRequest) {
	pr.onValue, pr.onError = nil, nil
	if pr.resolved {
		return
	}
	pr.resolved = true
	t.forget(pr)
	t.sys.metrics.outcomes.WithLabelValues(outcomeAbandoned).Inc()
}

func (t *requestTracker) forget(pr *pendingRequest) {
	if _, ok := t.pending[pr.id]; !ok {
		return
	}
	delete(t.pending, pr.id)
	t.sys.metrics.pending.Dec()
	for _, id := range pr.timers {
		t.sys.timers.Cancel(id)
	}
}

// check returns the error of a bound request, including a response of the
// wrong type.
func (pr *pendingRequest) check() error {
	if pr.err != nil {
		return pr.err
	}
	if got := reflect.TypeOf(pr.result); got != pr.expected {
		return cerrors.ErrUnexpectedResponse.GenWithStackByArgs(pr.expected, got)
	}
	return nil
}

func (t *requestTracker) invoke(pr *pendingRequest) {
	if pr.onValue == nil {
		return
	}
	if err := pr.check(); err != nil {
		pr.onError(err)
		return
	}
	pr.onValue(pr.result)
}

func (t *requestTracker) bind(
	pr *pendingRequest, expected reflect.Type, onValue func(any), onError func(error),
) {
	if pr.bound {
		log.Panic("the response of a request is bound twice", zap.Uint64("request", pr.id))
	}
	pr.bound = true
	pr.expected, pr.onValue, pr.onError = expected, onValue, onError
	if pr.resolved {
		t.post(func() { t.invoke(pr) })
	}
}

func (t *requestTracker) onResponse(e *envelope) {
	pr, ok := t.pending[e.correlationID]
	if !ok {
		log.Debug("drop response of a finished request",
			zap.Uint64("request", e.correlationID),
			zap.Stringer("from", e.sender))
		return
	}
	t.resolve(pr, e.payload, e.err)
}

func (t *requestTracker) onTimeout(id uint64) {
	pr, ok := t.pending[id]
	if !ok {
		return
	}
	t.resolve(pr, nil, cerrors.ErrRequestTimeout.GenWithStackByArgs(id, pr.timeout))
}

// shutdown drops every pending request without invoking callbacks.
func (t *requestTracker) shutdown() {
	for _, pr := range t.pending {
		t.abandon(pr)
	}
}

// Response is the handle of a sent request.
type Response struct {
	tracker   *requestTracker
	req       *pendingRequest
	departure *departure
}

// Departure returns a handle that withdraws a delayed request before it
// leaves. For a request that has already left, the handle is disposed.
func (r *Response) Departure() flow.Disposable {
	return r.departure
}

func bindResponse[R any](r *Response, onValue func(R), onError func(error)) {
	r.tracker.bind(r.req, typeOf[R](),
		func(v any) { onValue(v.(R)) },
		onError)
}

// Then registers the continuation of a request sent by an event-based
// actor. Exactly one of the callbacks is invoked, on the actor, once the
// outcome of the request is known.
//
// onValue is only invoked if the dynamic type of the response is exactly R.
// Any other response fails with ErrUnexpectedResponse. The other errors are
// ErrInvalidRequest, ErrRequestTimeout, ErrRequestReceiverDown,
// ErrUnexpectedMessage and errors returned by the handler of the receiver.
func Then[R any](r *Response, onValue func(R), onError func(error)) {
	bindResponse(r, onValue, onError)
}

// Promise is the delegated answer of a request.
type Promise struct {
	owner Ref
	req   *envelope
	done  atomic.Bool
}

// Deliver answers the request with v. Only the first answer counts.
func (p *Promise) Deliver(v any) {
	if p.req == nil || p.done.Swap(true) {
		return
	}
	respond(p.owner, p.req, v, nil)
}

// Fail answers the request with err.
func (p *Promise) Fail(err error) {
	if p.req == nil || p.done.Swap(true) {
		return
	}
	respond(p.owner, p.req, nil, err)
}

// Pending returns true if the request has not been answered.
func (p *Promise) Pending() bool {
	return p.req != nil && !p.done.Load()
}

// respond sends the response of req. Responses to anonymous or terminated
// requesters are dropped.
func respond(from Ref, req *envelope, v any, err error) {
	if v == nil && err == nil {
		v = Void{}
	}
	resp := &envelope{
		payload:       v,
		err:           err,
		sender:        from,
		priority:      req.priority,
		correlationID: req.correlationID,
		kind:          kindResponse,
	}
	if !req.sender.Valid() {
		return
	}
	if derr := deliver(req.sender, resp); derr != nil {
		log.Debug("drop response, requester is gone",
			zap.Stringer("from", from),
			zap.Stringer("to", req.sender),
			zap.Uint64("request", req.correlationID))
	}
}
