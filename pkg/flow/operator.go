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

// relay sits between an upstream subscription and a downstream observer.
// It forwards demand and cancellation and guarantees that the downstream
// sees at most one terminal event.
type relay[T, U any] struct {
	out  Observer[U]
	sub  Subscription
	done bool

	next       func(r *relay[T, U], item T)
	onError    func(err error)
	onComplete func()
}

func lift[T, U any](o Observable[T], makeRelay func(out Observer[U]) *relay[T, U]) Observable[U] {
	return NewObservable(o.coord, func(out Observer[U]) {
		o.Subscribe(makeRelay(out))
	})
}

func (r *relay[T, U]) OnSubscribe(sub Subscription) {
	r.sub = sub
	r.out.OnSubscribe(r)
}

func (r *relay[T, U]) OnNext(item T) {
	if r.done {
		return
	}
	r.next(r, item)
}

func (r *relay[T, U]) OnError(err error) {
	if r.done {
		return
	}
	r.done = true
	if r.onError != nil {
		r.onError(err)
	}
	r.out.OnError(err)
}

func (r *relay[T, U]) OnComplete() {
	if r.done {
		return
	}
	r.done = true
	if r.onComplete != nil {
		r.onComplete()
	}
	r.out.OnComplete()
}

func (r *relay[T, U]) Request(n int) {
	if !r.done {
		r.sub.Request(n)
	}
}

func (r *relay[T, U]) Cancel() {
	if r.done {
		return
	}
	r.done = true
	r.sub.Cancel()
}

// fail terminates the pipeline because the stage itself failed.
func (r *relay[T, U]) fail(err error) {
	if r.done {
		return
	}
	r.sub.Cancel()
	r.OnError(err)
}

func forward[T any](r *relay[T, T], item T) {
	r.out.OnNext(item)
}

// Map transforms every item with fn.
func Map[T, U any](o Observable[T], fn func(T) U) Observable[U] {
	return lift(o, func(out Observer[U]) *relay[T, U] {
		return &relay[T, U]{out: out, next: func(r *relay[T, U], item T) {
			r.out.OnNext(fn(item))
		}}
	})
}

// TryMap transforms every item with fn. The first error returned by fn
// terminates the pipeline with that error.
func TryMap[T, U any](o Observable[T], fn func(T) (U, error)) Observable[U] {
	return lift(o, func(out Observer[U]) *relay[T, U] {
		return &relay[T, U]{out: out, next: func(r *relay[T, U], item T) {
			v, err := fn(item)
			if err != nil {
				r.fail(err)
				return
			}
			r.out.OnNext(v)
		}}
	})
}

// Filter drops the items for which pred returns false.
func (o Observable[T]) Filter(pred func(T) bool) Observable[T] {
	return lift(o, func(out Observer[T]) *relay[T, T] {
		return &relay[T, T]{out: out, next: func(r *relay[T, T], item T) {
			if pred(item) {
				r.out.OnNext(item)
				return
			}
			// The dropped item consumed one unit of demand.
			r.sub.Request(1)
		}}
	})
}

// DoOnNext calls fn for every item before passing it on.
func (o Observable[T]) DoOnNext(fn func(T)) Observable[T] {
	return lift(o, func(out Observer[T]) *relay[T, T] {
		return &relay[T, T]{out: out, next: func(r *relay[T, T], item T) {
			fn(item)
			r.out.OnNext(item)
		}}
	})
}

// DoOnError calls fn with the error that terminates the pipeline. The error
// is still passed on.
func (o Observable[T]) DoOnError(fn func(error)) Observable[T] {
	return lift(o, func(out Observer[T]) *relay[T, T] {
		return &relay[T, T]{out: out, next: forward[T], onError: fn}
	})
}

// DoOnComplete calls fn when the pipeline completes normally.
func (o Observable[T]) DoOnComplete(fn func()) Observable[T] {
	return lift(o, func(out Observer[T]) *relay[T, T] {
		return &relay[T, T]{out: out, next: forward[T], onComplete: fn}
	})
}

// Take emits the first n items and then completes.
func (o Observable[T]) Take(n int) Observable[T] {
	return NewObservable(o.coord, func(out Observer[T]) {
		o.Subscribe(&takeObserver[T]{out: out, remaining: n})
	})
}

type takeObserver[T any] struct {
	out       Observer[T]
	sub       Subscription
	remaining int
	// requested is the demand forwarded upstream and not yet satisfied.
	requested int
	done      bool
}

func (t *takeObserver[T]) OnSubscribe(sub Subscription) {
	t.sub = sub
	t.out.OnSubscribe(t)
	if t.remaining <= 0 && !t.done {
		t.done = true
		sub.Cancel()
		t.out.OnComplete()
	}
}

func (t *takeObserver[T]) OnNext(item T) {
	if t.done {
		return
	}
	t.remaining--
	t.requested--
	t.out.OnNext(item)
	if t.remaining == 0 && !t.done {
		t.done = true
		t.sub.Cancel()
		t.out.OnComplete()
	}
}

func (t *takeObserver[T]) OnError(err error) {
	if t.done {
		return
	}
	t.done = true
	t.out.OnError(err)
}

func (t *takeObserver[T]) OnComplete() {
	if t.done {
		return
	}
	t.done = true
	t.out.OnComplete()
}

func (t *takeObserver[T]) Request(n int) {
	if t.done {
		return
	}
	if limit := t.remaining - t.requested; n > limit {
		n = limit
	}
	if n > 0 {
		t.requested += n
		t.sub.Request(n)
	}
}

func (t *takeObserver[T]) Cancel() {
	if t.done {
		return
	}
	t.done = true
	t.sub.Cancel()
}
