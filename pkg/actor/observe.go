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

	cerrors "github.com/DrAugus/actor-framework/pkg/errors"
	"github.com/DrAugus/actor-framework/pkg/flow"
	"github.com/edwingeng/deque"
)

// streamSink is the consumer end of a stream, registered in the observing
// actor.
type streamSink interface {
	onBatch(items []any)
	onClose(err error, abort bool)
	// detach tells the producer that the observer is gone, without
	// invoking any callback.
	detach()
}

// Observe attaches self to a typed stream. See ObserveAs.
func Observe[T any](
	self *Context, s TypedStream[T], initialCredit, creditIncrement int,
) flow.Observable[T] {
	return ObserveAs[T](self, s.Stream, initialCredit, creditIncrement)
}

// ObserveAs returns a pipeline on self that emits the items of s. Every
// subscription attaches a new observer to the stream.
//
// The observer grants initialCredit items to the producer and returns
// creditIncrement items of credit every time it has emitted that many
// items. Non-positive arguments use the defaults of the system.
//
// If the element type of s is a concrete type other than T, the pipeline
// fails with ErrUnexpectedResponse before anything is sent. Items whose
// type is not T fail the pipeline the same way when they arrive. If the
// stream is deregistered or its producer is gone, the pipeline fails with
// ErrInvalidStream.
func ObserveAs[T any](
	self *Context, s Stream, initialCredit, creditIncrement int,
) flow.Observable[T] {
	cfg := self.sys.cfg.Stream
	if initialCredit <= 0 {
		initialCredit = cfg.InitialCredit
	}
	if creditIncrement <= 0 {
		creditIncrement = cfg.CreditIncrement
	}
	if creditIncrement > initialCredit {
		creditIncrement = initialCredit
	}
	return flow.NewObservable(self, func(out flow.Observer[T]) {
		snk := &typedSink[T]{
			owner:     self,
			stream:    s,
			out:       out,
			increment: creditIncrement,
			buf:       deque.NewDeque(),
		}
		out.OnSubscribe(snk)
		if snk.done {
			return
		}
		if !s.Valid() {
			self.Schedule(func() {
				snk.terminate(cerrors.ErrInvalidStream.GenWithStackByArgs("the stream handle is invalid"))
			})
			return
		}
		want := typeOf[T]()
		if s.elemType.Kind() != reflect.Interface && s.elemType != want {
			self.Schedule(func() {
				snk.terminate(cerrors.ErrUnexpectedResponse.GenWithStackByArgs(want, s.elemType))
			})
			return
		}

		self.lastSinkID++
		snk.id = self.lastSinkID
		self.sinks[snk.id] = snk
		open := streamOpen{streamID: s.id, sink: self.Self(), sinkID: snk.id, credit: initialCredit}
		if err := deliver(s.source, systemEnvelope(open, Regular)); err != nil {
			self.Schedule(func() {
				snk.terminate(cerrors.ErrInvalidStream.GenWithStackByArgs(
					fmt.Sprintf("the source of %s is gone: %v", s, err)))
			})
		}
	})
}

type typedSink[T any] struct {
	owner     *Context
	id        uint64
	stream    Stream
	out       flow.Observer[T]
	increment int

	buf        deque.Deque
	demand     int
	consumed   int
	delivering bool

	finished bool
	err      error
	done     bool
}

func (s *typedSink[T]) Request(n int) {
	if s.done || n <= 0 {
		return
	}
	s.demand += n
	s.deliver()
}

func (s *typedSink[T]) Cancel() {
	if s.done {
		return
	}
	s.done = true
	s.unregister()
	s.sendCancel()
}

func (s *typedSink[T]) onBatch(items []any) {
	if s.done {
		return
	}
	for _, item := range items {
		v, ok := item.(T)
		if !ok {
			s.sendCancel()
			s.terminate(cerrors.ErrUnexpectedResponse.GenWithStackByArgs(typeOf[T](), reflect.TypeOf(item)))
			return
		}
		s.buf.PushBack(v)
	}
	s.deliver()
}

func (s *typedSink[T]) onClose(err error, abort bool) {
	if s.done {
		return
	}
	if abort {
		s.buf = deque.NewDeque()
		s.terminate(err)
		return
	}
	s.finished, s.err = true, err
	s.deliver()
}

func (s *typedSink[T]) detach() {
	if s.done {
		return
	}
	s.done = true
	s.sendCancel()
}

func (s *typedSink[T]) deliver() {
	if s.delivering {
		return
	}
	s.delivering = true
	defer func() { s.delivering = false }()

	for !s.done && s.demand > 0 && !s.buf.Empty() {
		v := s.buf.PopFront().(T)
		s.demand--
		s.consumed++
		s.out.OnNext(v)
		if s.consumed >= s.increment && !s.done {
			ack := streamAck{streamID: s.stream.id, sink: s.owner.Self(), sinkID: s.id, credit: s.consumed}
			s.consumed = 0
			_ = deliver(s.stream.source, systemEnvelope(ack, Regular))
		}
	}
	if !s.done && s.finished && s.buf.Empty() {
		s.terminate(s.err)
	}
}

func (s *typedSink[T]) terminate(err error) {
	if s.done {
		return
	}
	s.done = true
	s.unregister()
	if err != nil {
		s.out.OnError(err)
		return
	}
	s.out.OnComplete()
}

func (s *typedSink[T]) unregister() {
	if s.id != 0 {
		delete(s.owner.sinks, s.id)
	}
}

func (s *typedSink[T]) sendCancel() {
	if s.id == 0 {
		return
	}
	msg := streamCancel{streamID: s.stream.id, sink: s.owner.Self(), sinkID: s.id}
	_ = deliver(s.stream.source, systemEnvelope(msg, Regular))
}
