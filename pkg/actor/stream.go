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
	"fmt"
	"reflect"
	"time"

	"github.com/DrAugus/actor-framework/pkg/config"
	cerrors "github.com/DrAugus/actor-framework/pkg/errors"
	"github.com/DrAugus/actor-framework/pkg/flow"
	"github.com/edwingeng/deque"
	"github.com/pingcap/log"
	"go.uber.org/zap"
)

// Stream is the handle of a stream registered by an actor. Other actors
// attach to it with ObserveAs. The zero Stream is invalid.
type Stream struct {
	source   Ref
	id       uint64
	name     string
	elemType reflect.Type
}

// ID returns the id of the stream, unique within its source actor.
func (s Stream) ID() uint64 {
	return s.id
}

// Name returns the name given at registration.
func (s Stream) Name() string {
	return s.name
}

// Source returns the actor that produces the stream.
func (s Stream) Source() Ref {
	return s.source
}

// Valid returns true if the handle was returned by a registration.
func (s Stream) Valid() bool {
	return s.id != 0 && s.source.Valid() && s.elemType != nil
}

func (s Stream) String() string {
	return fmt.Sprintf("%s/%d(%s)", s.source, s.id, s.name)
}

// TypedStream is a Stream whose element type is known to the compiler.
type TypedStream[T any] struct {
	Stream
}

type (
	// streamOpen attaches an observer to a stream.
	streamOpen struct {
		streamID uint64
		sink     Ref
		sinkID   uint64
		credit   int
	}
	// streamAck returns credit to the producer.
	streamAck struct {
		streamID uint64
		sink     Ref
		sinkID   uint64
		credit   int
	}
	// streamCancel detaches an observer.
	streamCancel struct {
		streamID uint64
		sink     Ref
		sinkID   uint64
	}
	streamBatch struct {
		sinkID uint64
		items  []any
	}
	// streamClose terminates an observer. An aborted observer drops the
	// items it has not delivered yet.
	streamClose struct {
		sinkID uint64
		err    error
		abort  bool
	}
)

// ToStream registers obs as a stream of self. Every observer gets its own
// subscription to obs. Batches are sent at most once per batchInterval and
// hold at most maxBatch items. Non-positive arguments use the defaults of
// the system.
func ToStream[T any](
	self *Context, name string, batchInterval time.Duration, maxBatch int, obs flow.Observable[T],
) Stream {
	return self.streams.register(name, typeOf[T](), batchInterval, maxBatch,
		flow.Map(obs, func(v T) any { return v }).Subscribe)
}

// AsStream returns a function that registers a pipeline as a stream, to be
// used with flow.Compose.
func AsStream[T any](
	self *Context, name string, batchInterval time.Duration, maxBatch int,
) func(flow.Observable[T]) Stream {
	return func(obs flow.Observable[T]) Stream {
		return ToStream(self, name, batchInterval, maxBatch, obs)
	}
}

// ToTypedStream is like ToStream, but returns a TypedStream.
func ToTypedStream[T any](
	self *Context, name string, batchInterval time.Duration, maxBatch int, obs flow.Observable[T],
) TypedStream[T] {
	return TypedStream[T]{Stream: ToStream(self, name, batchInterval, maxBatch, obs)}
}

// AsTypedStream is like AsStream, but the function returns a TypedStream.
func AsTypedStream[T any](
	self *Context, name string, batchInterval time.Duration, maxBatch int,
) func(flow.Observable[T]) TypedStream[T] {
	return func(obs flow.Observable[T]) TypedStream[T] {
		return ToTypedStream(self, name, batchInterval, maxBatch, obs)
	}
}

// DeregisterStream deregisters a stream of the actor. Every current
// observer terminates with ErrInvalidStream without receiving more items,
// and so does every later attempt to observe the stream. It returns false
// if the stream is not registered.
func (c *Context) DeregisterStream(id uint64) bool {
	return c.streams.deregister(id)
}

type streamKey struct {
	sink   ID
	sinkID uint64
}

type streamSlot struct {
	id        uint64
	name      string
	elemType  reflect.Type
	interval  time.Duration
	maxBatch  int
	subscribe func(flow.Observer[any])
	outputs   map[streamKey]*streamOutput
}

// streamRegistry holds the streams produced by one actor.
type streamRegistry struct {
	owner  *Context
	lastID uint64
	slots  map[uint64]*streamSlot
}

func newStreamRegistry(owner *Context) *streamRegistry {
	return &streamRegistry{owner: owner, slots: make(map[uint64]*streamSlot)}
}

func (r *streamRegistry) register(
	name string, elemType reflect.Type, interval time.Duration, maxBatch int,
	subscribe func(flow.Observer[any]),
) Stream {
	cfg := r.owner.sys.cfg.Stream
	if interval <= 0 {
		interval = time.Duration(cfg.BatchInterval)
	}
	if maxBatch <= 0 {
		maxBatch = cfg.MaxBatchSize
	}
	r.lastID++
	slot := &streamSlot{
		id:        r.lastID,
		name:      name,
		elemType:  elemType,
		interval:  interval,
		maxBatch:  maxBatch,
		subscribe: subscribe,
		outputs:   make(map[streamKey]*streamOutput),
	}
	r.slots[slot.id] = slot
	r.owner.sys.metrics.streams.Inc()
	return Stream{source: r.owner.Self(), id: slot.id, name: name, elemType: elemType}
}

func (r *streamRegistry) open(msg streamOpen) {
	slot, ok := r.slots[msg.streamID]
	if !ok {
		err := cerrors.ErrInvalidStream.GenWithStackByArgs(
			fmt.Sprintf("stream %d of %s is not registered", msg.streamID, r.owner.Self()))
		_ = deliver(msg.sink, systemEnvelope(streamClose{sinkID: msg.sinkID, err: err, abort: true}, Urgent))
		return
	}
	out := &streamOutput{
		slot:   slot,
		owner:  r.owner,
		sink:   msg.sink,
		sinkID: msg.sinkID,
		policy: r.owner.sys.cfg.Stream.OverflowPolicy,
		credit: msg.credit,
		buf:    deque.NewDeque(),
	}
	slot.outputs[streamKey{sink: msg.sink.id, sinkID: msg.sinkID}] = out
	slot.subscribe(out)
}

func (r *streamRegistry) output(streamID uint64, sink Ref, sinkID uint64) (*streamOutput, bool) {
	slot, ok := r.slots[streamID]
	if !ok {
		return nil, false
	}
	out, ok := slot.outputs[streamKey{sink: sink.id, sinkID: sinkID}]
	return out, ok
}

func (r *streamRegistry) ack(msg streamAck) {
	if out, ok := r.output(msg.streamID, msg.sink, msg.sinkID); ok {
		out.ack(msg.credit)
	}
}

func (r *streamRegistry) cancel(msg streamCancel) {
	if out, ok := r.output(msg.streamID, msg.sink, msg.sinkID); ok {
		out.sub.Cancel()
		out.close()
	}
}

func (r *streamRegistry) deregister(id uint64) bool {
	slot, ok := r.slots[id]
	if !ok {
		return false
	}
	delete(r.slots, id)
	r.owner.sys.metrics.streams.Dec()
	err := cerrors.ErrInvalidStream.GenWithStackByArgs(
		fmt.Sprintf("stream %d of %s is deregistered", id, r.owner.Self()))
	for _, out := range slot.outputs {
		out.abort(err)
	}
	log.Debug("stream deregistered",
		zap.Stringer("actor", r.owner.Self()),
		zap.Uint64("stream", id),
		zap.String("name", slot.name))
	return true
}

func (r *streamRegistry) shutdown() {
	for id := range r.slots {
		r.deregister(id)
	}
}

// streamOutput feeds one observer of a stream. It is the subscriber of a
// private subscription to the pipeline of the stream.
type streamOutput struct {
	slot   *streamSlot
	owner  *Context
	sink   Ref
	sinkID uint64
	policy config.OverflowPolicy

	sub flow.Subscription
	// credit is the number of items the observer can still accept.
	credit  int
	buf     deque.Deque
	dropped int

	flushPending bool
	flushTimer   flow.Disposable
	lastFlush    time.Time

	finished bool
	err      error
	closed   bool
}

func (o *streamOutput) OnSubscribe(sub flow.Subscription) {
	o.sub = sub
	if o.closed {
		sub.Cancel()
		return
	}
	if o.policy == config.OverflowBackpressure {
		sub.Request(o.credit)
		return
	}
	sub.Request(o.slot.maxBatch)
}

func (o *streamOutput) OnNext(item any) {
	if o.closed {
		return
	}
	if o.policy != config.OverflowBackpressure {
		o.sub.Request(1)
	}
	if o.policy == config.OverflowDrop && o.buf.Len() >= o.credit {
		o.dropped++
		return
	}
	o.buf.PushBack(item)
	o.scheduleFlush()
}

func (o *streamOutput) OnError(err error) {
	o.finished, o.err = true, err
	o.scheduleFlush()
}

func (o *streamOutput) OnComplete() {
	o.finished = true
	o.scheduleFlush()
}

func (o *streamOutput) ack(credit int) {
	if o.closed || credit <= 0 {
		return
	}
	o.credit += credit
	if o.policy == config.OverflowBackpressure {
		o.sub.Request(credit)
	}
	if !o.buf.Empty() {
		o.scheduleFlush()
	}
}

// scheduleFlush flushes as soon as the batch interval allows.
func (o *streamOutput) scheduleFlush() {
	if o.closed || o.flushPending {
		return
	}
	o.flushPending = true
	next := o.lastFlush.Add(o.slot.interval)
	if o.lastFlush.IsZero() || !next.After(o.owner.Now()) {
		// Runs after the current burst of the pipeline, so the items of
		// the burst are coalesced.
		o.owner.Schedule(o.flush)
		return
	}
	o.flushTimer = o.owner.DelayUntil(next, o.flush)
}

func (o *streamOutput) flush() {
	o.flushPending, o.flushTimer = false, nil
	if o.closed {
		return
	}
	n := o.buf.Len()
	if n > o.credit {
		n = o.credit
	}
	if n > o.slot.maxBatch {
		n = o.slot.maxBatch
	}
	if n > 0 {
		items := make([]any, n)
		for i := range items {
			items[i] = o.buf.PopFront()
		}
		o.credit -= n
		o.lastFlush = o.owner.Now()
		if err := deliver(o.sink, systemEnvelope(streamBatch{sinkID: o.sinkID, items: items}, Regular)); err != nil {
			// The observer is gone.
			o.sub.Cancel()
			o.close()
			return
		}
	}
	if o.finished && o.buf.Empty() {
		_ = deliver(o.sink, systemEnvelope(streamClose{sinkID: o.sinkID, err: o.err}, Regular))
		o.close()
		return
	}
	if !o.buf.Empty() && o.credit > 0 {
		o.scheduleFlush()
	}
}

func (o *streamOutput) abort(err error) {
	if o.closed {
		return
	}
	if o.sub != nil {
		o.sub.Cancel()
	}
	_ = deliver(o.sink, systemEnvelope(streamClose{sinkID: o.sinkID, err: err, abort: true}, Urgent))
	o.close()
}

func (o *streamOutput) close() {
	if o.closed {
		return
	}
	o.closed = true
	if o.flushTimer != nil {
		o.flushTimer.Dispose()
	}
	o.buf = deque.NewDeque()
	delete(o.slot.outputs, streamKey{sink: o.sink.id, sinkID: o.sinkID})
	if o.dropped > 0 {
		log.Info("stream observer closed with dropped items",
			zap.Stringer("actor", o.owner.Self()),
			zap.Uint64("stream", o.slot.id),
			zap.Stringer("observer", o.sink),
			zap.Int("dropped", o.dropped))
	}
}
