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
	"sync"

	cerrors "github.com/DrAugus/actor-framework/pkg/errors"
)

// Ref is the address of an actor. The zero Ref is invalid.
type Ref struct {
	id  ID
	sys *System
}

// ID returns the id of the actor.
func (r Ref) ID() ID {
	return r.id
}

// Valid returns true if the Ref has been issued by a system. A valid Ref
// may point to a terminated actor.
func (r Ref) Valid() bool {
	return r.id != 0 && r.sys != nil
}

// Alive returns true if the actor is valid and has not terminated.
func (r Ref) Alive() bool {
	if !r.Valid() {
		return false
	}
	_, ok := r.sys.router.lookup(r.id)
	return ok
}

func (r Ref) String() string {
	if !r.Valid() {
		return "<invalid>"
	}
	return fmt.Sprintf("%s/%d", r.sys.name, r.id)
}

// receiver is anything that owns a mailbox registered in a Router.
type receiver interface {
	enqueue(e *envelope) error
	// stop releases the resources of a receiver whose system is stopping.
	// It is called after all workers have exited.
	stop()
}

// Router resolves refs to live actors.
type Router struct {
	mu    sync.RWMutex
	procs map[ID]receiver
}

func newRouter() *Router {
	return &Router{procs: make(map[ID]receiver)}
}

func (r *Router) lookup(id ID) (receiver, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.procs[id]
	return p, ok
}

func (r *Router) insert(id ID, p receiver) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.procs[id] = p
}

func (r *Router) remove(id ID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.procs[id]
	delete(r.procs, id)
	return ok
}

func (r *Router) removeAll() []receiver {
	r.mu.Lock()
	defer r.mu.Unlock()
	procs := make([]receiver, 0, len(r.procs))
	for id, p := range r.procs {
		procs = append(procs, p)
		delete(r.procs, id)
	}
	return procs
}

// Len returns the number of live actors.
func (r *Router) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.procs)
}

// Send sends a regular message with an anonymous sender to an actor. It is
// meant for callers that are not actors. Responses to anonymous senders are
// dropped.
func (r *Router) Send(to Ref, payload any) error {
	return deliver(to, &envelope{payload: payload, kind: kindPlain})
}

// SendUrgent is like Send, but the message is urgent.
func (r *Router) SendUrgent(to Ref, payload any) error {
	return deliver(to, &envelope{payload: payload, priority: Urgent, kind: kindPlain})
}

// deliver pushes e into the mailbox of to.
func deliver(to Ref, e *envelope) error {
	if !to.Valid() {
		return cerrors.ErrInvalidRequest.GenWithStackByArgs(to)
	}
	p, ok := to.sys.router.lookup(to.id)
	if !ok {
		return cerrors.ErrInvalidRequest.GenWithStackByArgs(to)
	}
	if err := p.enqueue(e); err != nil {
		return cerrors.WrapError(cerrors.ErrInvalidRequest, err)
	}
	return nil
}
