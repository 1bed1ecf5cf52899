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
	"testing"

	"github.com/DrAugus/actor-framework/pkg/leakutil"
	"github.com/pingcap/errors"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	leakutil.SetUpLeakTest(m)
}

func TestKindOf(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		err      error
		expected Kind
	}{
		{nil, KindNone},
		{ErrInvalidRequest.GenWithStackByArgs("actor-1"), KindInvalidRequest},
		{ErrUnexpectedResponse.GenWithStackByArgs("int", "string"), KindUnexpectedResponse},
		{ErrRequestTimeout.GenWithStackByArgs(1, "10ms"), KindRequestTimeout},
		{ErrInvalidStream.GenWithStackByArgs("deregistered"), KindInvalidStream},
		{errors.Trace(ErrRequestReceiverDown.GenWithStackByArgs("a")), KindRequestReceiverDown},
		{ErrMailboxClosed.FastGenByArgs(1), KindMailboxClosed},
		{WrapError(ErrInvalidStream, ErrMailboxClosed.GenWithStackByArgs(1)), KindInvalidStream},
		{context.Canceled, KindUnknown},
		{errors.New("boom"), KindUnknown},
	}
	for _, tc := range testCases {
		require.Equal(t, tc.expected, KindOf(tc.err), "%v", tc.err)
	}
}

func TestKindNames(t *testing.T) {
	t.Parallel()

	for i := 0; i < len(kindNames); i++ {
		k, ok := KindFromInt(i)
		require.True(t, ok)
		parsed, ok := ParseKind(k.String())
		require.True(t, ok)
		require.Equal(t, k, parsed)
	}

	_, ok := KindFromInt(-1)
	require.False(t, ok)
	_, ok = KindFromInt(len(kindNames))
	require.False(t, ok)
	_, ok = ParseKind("read_write")
	require.False(t, ok)
	require.Equal(t, "???", Kind(200).String())
	require.Equal(t, "request_timeout", KindRequestTimeout.String())
}

func TestIsProtocolError(t *testing.T) {
	t.Parallel()

	require.True(t, IsProtocolError(ErrRequestTimeout.GenWithStackByArgs(1, "1s")))
	require.True(t, IsProtocolError(ErrInvalidStream.GenWithStackByArgs("x")))
	require.False(t, IsProtocolError(nil))
	require.False(t, IsProtocolError(ErrMailboxClosed.GenWithStackByArgs(1)))
	require.True(t, IsContextCanceledError(errors.Trace(context.Canceled)))
	require.Nil(t, WrapError(ErrInvalidConfig, nil))
	require.Error(t, WrapError(ErrInvalidConfig, errors.New("x")))
}
