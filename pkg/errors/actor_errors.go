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

// errors
var (
	// request/response protocol errors
	ErrInvalidRequest = errors.Normalize(
		"invalid request, receiver %s is not reachable",
		errors.RFCCodeText("Actor:ErrInvalidRequest"),
	)
	ErrUnexpectedResponse = errors.Normalize(
		"unexpected response, expected %s, got %s",
		errors.RFCCodeText("Actor:ErrUnexpectedResponse"),
	)
	ErrRequestTimeout = errors.Normalize(
		"request %d timed out after %s",
		errors.RFCCodeText("Actor:ErrRequestTimeout"),
	)
	ErrUnexpectedMessage = errors.Normalize(
		"unexpected message, no handler for %s",
		errors.RFCCodeText("Actor:ErrUnexpectedMessage"),
	)
	ErrRequestReceiverDown = errors.Normalize(
		"request receiver %s is down",
		errors.RFCCodeText("Actor:ErrRequestReceiverDown"),
	)

	// stream errors
	ErrInvalidStream = errors.Normalize(
		"invalid stream, %s",
		errors.RFCCodeText("Actor:ErrInvalidStream"),
	)

	// actor system errors
	ErrMailboxClosed = errors.Normalize(
		"mailbox of actor %d is closed",
		errors.RFCCodeText("Actor:ErrMailboxClosed"),
	)
	ErrActorSystemStopped = errors.Normalize(
		"actor system %s is stopped",
		errors.RFCCodeText("Actor:ErrActorSystemStopped"),
	)
	ErrActorSystemAlreadyStarted = errors.Normalize(
		"actor system %s is already started",
		errors.RFCCodeText("Actor:ErrActorSystemAlreadyStarted"),
	)
	ErrActorPanicked = errors.Normalize(
		"actor %s panicked: %v",
		errors.RFCCodeText("Actor:ErrActorPanicked"),
	)
	ErrWorkerPoolExited = errors.Normalize(
		"worker pool has exited",
		errors.RFCCodeText("Actor:ErrWorkerPoolExited"),
	)

	// config errors
	ErrInvalidConfig = errors.Normalize(
		"invalid config, %s",
		errors.RFCCodeText("Actor:ErrInvalidConfig"),
	)
	ErrDecodeConfigFailed = errors.Normalize(
		"decode config file %s failed",
		errors.RFCCodeText("Actor:ErrDecodeConfigFailed"),
	)
)
