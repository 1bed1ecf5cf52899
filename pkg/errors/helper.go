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
	"context"

	"github.com/pingcap/errors"
)

// WrapError generates a new error based on given `*errors.Error`, wraps the err
// as cause error.
// If given `err` is nil, returns a nil error, which a the different behavior
// against `Wrap` function in pingcap/errors.
func WrapError(rfcError *errors.Error, err error, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return rfcError.Wrap(err).GenWithStackByCause(args...)
}

// IsContextCanceledError checks if the error is caused by a canceled context.
func IsContextCanceledError(err error) bool {
	return errors.Cause(err) == context.Canceled
}

// IsProtocolError returns true if the error is one of the errors that the
// request/response or stream protocol surfaces to the caller.
func IsProtocolError(err error) bool {
	switch KindOf(err) {
	case KindInvalidRequest, KindUnexpectedResponse, KindRequestTimeout,
		KindInvalidStream, KindUnexpectedMessage, KindRequestReceiverDown:
		return true
	}
	return false
}
