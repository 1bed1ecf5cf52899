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

// Package flow implements lazily composed, backpressured observable
// pipelines.
//
// A pipeline is a chain of Observable values that starts at a source and
// ends at a sink. Nothing runs until a sink subscribes. Sinks signal demand
// upstream through Subscription.Request and sources push at most the
// requested number of items downstream. Every subscription builds fresh
// per-subscriber state, so an Observable may be subscribed many times.
//
// All callbacks of a pipeline run on its Coordinator, which serializes them.
// In an actor system the coordinator is the actor itself, hence pipelines
// need no locking. None of the types in this package are safe for use from
// other goroutines.
package flow

import "time"

// Coordinator serializes the execution of a pipeline.
type Coordinator interface {
	// Schedule runs fn later on the coordinator, never inline.
	Schedule(fn func())
	// DelayUntil runs fn on the coordinator at or after at.
	DelayUntil(at time.Time, fn func()) Disposable
	// Now returns the current time of the coordinator.
	Now() time.Time
}

// Disposable is a handle on a running activity that can be cancelled.
type Disposable interface {
	Dispose()
	Disposed() bool
}

// Subscription connects an observer to its upstream.
type Subscription interface {
	// Request signals demand for n more items.
	Request(n int)
	// Cancel stops the upstream. No callback is invoked afterwards.
	Cancel()
}

// Observer receives the events of a subscription. OnSubscribe is called
// first, followed by any number of OnNext calls and at most one of OnError
// or OnComplete.
type Observer[T any] interface {
	OnSubscribe(sub Subscription)
	OnNext(item T)
	OnError(err error)
	OnComplete()
}

// Observable is one stage of a pipeline. The zero value is not usable.
type Observable[T any] struct {
	coord       Coordinator
	onSubscribe func(out Observer[T])
}

// NewObservable creates an Observable that calls onSubscribe once for every
// subscriber. onSubscribe must call out.OnSubscribe before any other method
// of out.
func NewObservable[T any](coord Coordinator, onSubscribe func(out Observer[T])) Observable[T] {
	return Observable[T]{coord: coord, onSubscribe: onSubscribe}
}

// Subscribe attaches out to the pipeline.
func (o Observable[T]) Subscribe(out Observer[T]) {
	o.onSubscribe(out)
}

// Compose applies every step to o in order.
func (o Observable[T]) Compose(steps ...func(Observable[T]) Observable[T]) Observable[T] {
	for _, step := range steps {
		o = step(o)
	}
	return o
}

// Compose hands the pipeline to fn, which turns it into anything else, for
// example a stream of an actor.
func Compose[T, R any](o Observable[T], fn func(Observable[T]) R) R {
	return fn(o)
}
