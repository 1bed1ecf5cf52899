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

package errors

import (
	"github.com/pingcap/errors"
)

// Kind classifies errors surfaced by the actor runtime. Callbacks usually
// switch on the kind rather than comparing concrete errors.
type Kind uint8

// Error kinds.
const (
	// KindNone is the kind of a nil error.
	KindNone Kind = iota
	KindInvalidRequest
	KindUnexpectedResponse
	KindRequestTimeout
	KindInvalidStream
	KindUnexpectedMessage
	KindRequestReceiverDown
	KindSystemStopped
	KindMailboxClosed
	// KindUnknown is the kind of any error not defined by this package.
	KindUnknown
)

var kindNames = [...]string{
	KindNone:                "none",
	KindInvalidRequest:      "invalid_request",
	KindUnexpectedResponse:  "unexpected_response",
	KindRequestTimeout:      "request_timeout",
	KindInvalidStream:       "invalid_stream",
	KindUnexpectedMessage:   "unexpected_message",
	KindRequestReceiverDown: "request_receiver_down",
	KindSystemStopped:       "system_stopped",
	KindMailboxClosed:       "mailbox_closed",
	KindUnknown:             "unknown",
}

var kindErrors = []struct {
	kind Kind
	err  *errors.Error
}{
	{KindInvalidRequest, ErrInvalidRequest},
	{KindUnexpectedResponse, ErrUnexpectedResponse},
	{KindRequestTimeout, ErrRequestTimeout},
	{KindInvalidStream, ErrInvalidStream},
	{KindUnexpectedMessage, ErrUnexpectedMessage},
	{KindRequestReceiverDown, ErrRequestReceiverDown},
	{KindSystemStopped, ErrActorSystemStopped},
	{KindMailboxClosed, ErrMailboxClosed},
}

// String implements fmt.Stringer.
func (k Kind) String() string {
	if int(k) >= len(kindNames) {
		return "???"
	}
	return kindNames[k]
}

// ParseKind converts the name of a kind back to the kind.
func ParseKind(name string) (Kind, bool) {
	for k, n := range kindNames {
		if n == name {
			return Kind(k), true
		}
	}
	return KindNone, false
}

// KindFromInt converts an integer to a kind. It returns false if the
// integer does not name a kind.
func KindFromInt(i int) (Kind, bool) {
	if i < 0 || i >= len(kindNames) {
		return KindNone, false
	}
	return Kind(i), true
}

// KindOf returns the kind of err. Wrapped errors are unwrapped, the
// outermost error with a kind wins.
func KindOf(err error) Kind {
	if err == nil {
		return KindNone
	}
	for cur, depth := err, 0; cur != nil && depth < maxUnwrapDepth; cur, depth = unwrapOnce(cur), depth+1 {
		pe, ok := cur.(*errors.Error)
		if !ok {
			continue
		}
		for _, ke := range kindErrors {
			if pe.RFCCode() == ke.err.RFCCode() {
				return ke.kind
			}
		}
	}
	return KindUnknown
}

const maxUnwrapDepth = 32

func unwrapOnce(err error) error {
	switch e := err.(type) {
	case interface{ Unwrap() error }:
		return e.Unwrap()
	case interface{ Cause() error }:
		return e.Cause()
	}
	return nil
}
