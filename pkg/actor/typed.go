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

package actor

import (
	"context"
	"time"

	"github.com/DrAugus/actor-framework/pkg/flow"
)

// Mailer is an actor that sends mail, a *Context or a *BlockingActor.
type Mailer interface {
	Mail(payload any) *MailBuilder
}

var (
	_ Mailer = (*Context)(nil)
	_ Mailer = (*BlockingActor)(nil)
)

// TypedRef is a Ref to an actor that answers requests of type In with a
// response of type Out. Out must not be an interface type, responses are
// matched by their exact dynamic type.
type TypedRef[In, Out any] struct {
	Ref
}

// Typed attaches a contract to ref. The contract is not checked against
// the behavior of the actor, a mismatch shows up as ErrUnexpectedMessage
// or ErrUnexpectedResponse.
func Typed[In, Out any](ref Ref) TypedRef[In, Out] {
	return TypedRef[In, Out]{Ref: ref}
}

// SpawnTyped spawns an actor that answers every In with fn.
func SpawnTyped[In, Out any](s *System, fn func(self *Context, in In) (Out, error)) TypedRef[In, Out] {
	ref := s.Spawn(func(self *Context) *Behavior {
		return NewBehavior(On(func(self *Context, in In) (any, error) {
			out, err := fn(self, in)
			if err != nil {
				return nil, err
			}
			return out, nil
		}))
	})
	return Typed[In, Out](ref)
}

// Send sends in as a regular message.
func (r TypedRef[In, Out]) Send(from Mailer, in In) error {
	return from.Mail(in).Send(r.Ref)
}

// Request sends in as a request.
func (r TypedRef[In, Out]) Request(from Mailer, in In, timeout time.Duration) *TypedResponse[Out] {
	return r.RequestMail(from.Mail(in), timeout)
}

// RequestMail sends a request built with Mail, for example an urgent or a
// delayed one. The payload of mail should be an In, anything else is
// answered with ErrUnexpectedMessage by an actor spawned with SpawnTyped.
func (r TypedRef[In, Out]) RequestMail(mail *MailBuilder, timeout time.Duration) *TypedResponse[Out] {
	return &TypedResponse[Out]{resp: mail.Request(r.Ref, timeout)}
}

// TypedResponse is the handle of a request sent through a TypedRef.
type TypedResponse[Out any] struct {
	resp *Response
}

// Then is Then for an Out.
func (r *TypedResponse[Out]) Then(onValue func(Out), onError func(error)) {
	Then(r.resp, onValue, onError)
}

// Receive is Receive for an Out.
func (r *TypedResponse[Out]) Receive(ctx context.Context, onValue func(Out), onError func(error)) error {
	return Receive(ctx, r.resp, onValue, onError)
}

// Departure is Response.Departure.
func (r *TypedResponse[Out]) Departure() flow.Disposable {
	return r.resp.Departure()
}
