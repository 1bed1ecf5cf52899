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
	"golang.org/x/exp/constraints"
)

// maxBurst is the max number of items a source pushes in one scheduled
// action before it yields to the coordinator.
const maxBurst = 64

type pullFunc[T any] func() (T, bool)

// source pulls items from a generator and pushes them downstream within the
// granted demand. The generator is peeked one item ahead so that the end of
// a finite source is signalled without extra demand.
type source[T any] struct {
	coord Coordinator
	out   Observer[T]
	pull  pullFunc[T]
	fail  error

	demand    int
	peeked    T
	hasPeeked bool
	scheduled bool
	done      bool
}

func newSource[T any](coord Coordinator, makePull func() pullFunc[T], fail error) Observable[T] {
	return NewObservable(coord, func(out Observer[T]) {
		s := &source[T]{coord: coord, out: out, pull: makePull(), fail: fail}
		out.OnSubscribe(s)
		s.schedule()
	})
}

func (s *source[T]) Request(n int) {
	if s.done || n <= 0 {
		return
	}
	s.demand += n
	s.schedule()
}

func (s *source[T]) Cancel() {
	s.done = true
}

func (s *source[T]) schedule() {
	if s.scheduled || s.done {
		return
	}
	s.scheduled = true
	s.coord.Schedule(s.emit)
}

func (s *source[T]) emit() {
	s.scheduled = false
	for n := 0; !s.done; n++ {
		if !s.hasPeeked {
			item, ok := s.pull()
			if !ok {
				s.terminate()
				return
			}
			s.peeked, s.hasPeeked = item, true
		}
		if s.demand == 0 {
			return
		}
		if n == maxBurst {
			s.schedule()
			return
		}
		item := s.peeked
		var zero T
		s.peeked, s.hasPeeked = zero, false
		s.demand--
		s.out.OnNext(item)
	}
}

func (s *source[T]) terminate() {
	s.done = true
	if s.fail != nil {
		s.out.OnError(s.fail)
		return
	}
	s.out.OnComplete()
}

// Iota emits start, start+1, start+2 and so on without end.
func Iota[T constraints.Integer](coord Coordinator, start T) Observable[T] {
	return newSource(coord, func() pullFunc[T] {
		next := start
		return func() (T, bool) {
			item := next
			next++
			return item, true
		}
	}, nil)
}

// Range emits count integers beginning at start.
func Range[T constraints.Integer](coord Coordinator, start T, count int) Observable[T] {
	return newSource(coord, func() pullFunc[T] {
		next, left := start, count
		return func() (T, bool) {
			if left <= 0 {
				return 0, false
			}
			item := next
			next++
			left--
			return item, true
		}
	}, nil)
}

// FromSlice emits the items of s in order. s must not be modified while
// the pipeline runs.
func FromSlice[T any](coord Coordinator, s []T) Observable[T] {
	return newSource(coord, func() pullFunc[T] {
		pos := 0
		return func() (T, bool) {
			if pos >= len(s) {
				var zero T
				return zero, false
			}
			item := s[pos]
			pos++
			return item, true
		}
	}, nil)
}

// Just emits the given items.
func Just[T any](coord Coordinator, items ...T) Observable[T] {
	return FromSlice(coord, items)
}

// Empty completes without emitting anything.
func Empty[T any](coord Coordinator) Observable[T] {
	return FromSlice[T](coord, nil)
}

// Fail terminates with err without emitting anything.
func Fail[T any](coord Coordinator, err error) Observable[T] {
	return newSource(coord, func() pullFunc[T] {
		return func() (T, bool) {
			var zero T
			return zero, false
		}
	}, err)
}

// Never neither emits nor terminates.
func Never[T any](coord Coordinator) Observable[T] {
	return NewObservable(coord, func(out Observer[T]) {
		out.OnSubscribe(nopSubscription{})
	})
}

type nopSubscription struct{}

func (nopSubscription) Request(int) {}

func (nopSubscription) Cancel() {}
