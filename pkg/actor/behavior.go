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
)

// Case is one entry of a Behavior: a payload type and its handler.
type Case struct {
	typ reflect.Type
	fn  func(self *Context, payload any) (any, error)
}

// On creates a Case that handles payloads of type T.
//
// For a request, the returned value or error is sent back to the requester.
// A nil value with a nil error is answered with Void, unless the handler
// took over the answer with Context.Promise. For a regular message, the
// returned value is dropped and an error is logged.
//
// If T is an interface type, the case handles every payload implementing
// it. Otherwise the dynamic type of the payload must be exactly T.
func On[T any](fn func(self *Context, msg T) (any, error)) Case {
	return Case{
		typ: typeOf[T](),
		fn: func(self *Context, payload any) (any, error) {
			return fn(self, payload.(T))
		},
	}
}

// Handle creates a Case for messages that need no response.
func Handle[T any](fn func(self *Context, msg T)) Case {
	return On(func(self *Context, msg T) (any, error) {
		fn(self, msg)
		return nil, nil
	})
}

// Behavior is the ordered set of cases of an actor.
type Behavior struct {
	exact      map[reflect.Type]Case
	interfaces []Case
}

// NewBehavior creates a Behavior. When two cases have the same type, the
// first one wins.
func NewBehavior(cases ...Case) *Behavior {
	b := &Behavior{exact: make(map[reflect.Type]Case, len(cases))}
	for _, c := range cases {
		if c.typ.Kind() == reflect.Interface {
			b.interfaces = append(b.interfaces, c)
			continue
		}
		if _, ok := b.exact[c.typ]; !ok {
			b.exact[c.typ] = c
		}
	}
	return b
}

func (b *Behavior) lookup(payload any) (Case, bool) {
	if b == nil || payload == nil {
		return Case{}, false
	}
	typ := reflect.TypeOf(payload)
	if c, ok := b.exact[typ]; ok {
		return c, true
	}
	for _, c := range b.interfaces {
		if typ.Implements(c.typ) {
			return c, true
		}
	}
	return Case{}, false
}

func typeOf[T any]() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}
