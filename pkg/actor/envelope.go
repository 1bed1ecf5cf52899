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
	"time"
)

// ID is the unique identifier of an actor within its system.
type ID uint64

func (id ID) String() string {
	return fmt.Sprintf("%d", uint64(id))
}

// Priority is the mailbox class of a message.
type Priority uint8

const (
	// Regular messages are dispatched in FIFO order.
	Regular Priority = iota
	// Urgent messages are dispatched before any regular message.
	Urgent
)

func (p Priority) String() string {
	if p == Urgent {
		return "urgent"
	}
	return "regular"
}

type envelopeKind uint8

const (
	kindPlain envelopeKind = iota
	kindRequest
	kindResponse
	// kindSystem envelopes carry runtime messages that never reach the
	// behavior of an actor.
	kindSystem
)

// envelope is the unit of transit between actors. It is never modified
// after it has been pushed into a mailbox.
type envelope struct {
	payload  any
	sender   Ref
	priority Priority
	// deliverAt is set when the envelope was held by the timer queue.
	deliverAt     time.Time
	correlationID uint64
	kind          envelopeKind
	// err is the error of a failed response.
	err error
}

// Message is a message handed to a blocking actor.
type Message struct {
	Payload  any
	Sender   Ref
	Priority Priority

	env *envelope
}

// IsRequest returns true if the sender waits for a response.
func (m *Message) IsRequest() bool {
	return m.env != nil && m.env.kind == kindRequest
}

// Void is the response to a request whose handler returned no value.
type Void struct{}

type (
	initMsg struct{}
	exitMsg struct {
		reason error
	}
	// actionMsg runs fn on the actor. delayID is set for delayed actions.
	actionMsg struct {
		fn      func()
		delayID uint64
	}
	timeoutMsg struct {
		requestID uint64
	}
)

func systemEnvelope(payload any, priority Priority) *envelope {
	return &envelope{payload: payload, priority: priority, kind: kindSystem}
}
