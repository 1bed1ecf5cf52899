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

package flow

import (
	"github.com/pingcap/log"
	"go.uber.org/zap"
)

// sinkDemand is the demand a sink keeps outstanding. The sink tops it up
// once half of it has been consumed.
const sinkDemand = 64

type funcSink[T any] struct {
	onNext     func(T)
	onError    func(error)
	onComplete func()

	sub     Subscription
	pending int
	done    bool
}

// ForEach subscribes a sink that calls fn for every item. An error that
// terminates the pipeline is logged, use DoOnError to handle it.
func (o Observable[T]) ForEach(fn func(T)) Disposable {
	return o.SubscribeFunc(fn, nil, nil)
}

// SubscribeFunc subscribes a sink built from the given callbacks. Any of
// them may be nil.
func (o Observable[T]) SubscribeFunc(onNext func(T), onError func(error), onComplete func()) Disposable {
	s := &funcSink[T]{onNext: onNext, onError: onError, onComplete: onComplete}
	o.Subscribe(s)
	return s
}

func (s *funcSink[T]) OnSubscribe(sub Subscription) {
	if s.done {
		sub.Cancel()
		return
	}
	s.sub = sub
	s.pending = sinkDemand
	sub.Request(sinkDemand)
}

func (s *funcSink[T]) OnNext(item T) {
	if s.done {
		return
	}
	s.pending--
	if s.onNext != nil {
		s.onNext(item)
	}
	if !s.done && s.pending <= sinkDemand/2 {
		n := sinkDemand - s.pending
		s.pending += n
		s.sub.Request(n)
	}
}

func (s *funcSink[T]) OnError(err error) {
	if s.done {
		return
	}
	s.done = true
	if s.onError != nil {
		s.onError(err)
		return
	}
	log.Debug("flow terminated with an error", zap.Error(err))
}

func (s *funcSink[T]) OnComplete() {
	if s.done {
		return
	}
	s.done = true
	if s.onComplete != nil {
		s.onComplete()
	}
}

func (s *funcSink[T]) Dispose() {
	if s.done {
		return
	}
	s.done = true
	if s.sub != nil {
		s.sub.Cancel()
	}
}

func (s *funcSink[T]) Disposed() bool {
	return s.done
}
