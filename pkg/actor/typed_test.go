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
	"testing"
	"time"

	cerrors "github.com/DrAugus/actor-framework/pkg/errors"
	"github.com/pingcap/errors"
	"github.com/stretchr/testify/require"
)

func TestTypedRef(t *testing.T) {
	t.Parallel()

	sys := newTestSystem(t, 2)
	startSystem(t, sys)
	self := sys.NewBlocking()
	defer self.Close()

	boom := errors.New("negative")
	sq := SpawnTyped(sys, func(self *Context, x int) (int, error) {
		if x < 0 {
			return 0, boom
		}
		return x * x, nil
	})

	receive := func(resp *TypedResponse[int]) outcome {
		var res outcome
		err := resp.Receive(testContext(t),
			func(v int) { res.value = v },
			func(err error) { res.err = err })
		require.NoError(t, err)
		return res
	}
	res := receive(sq.Request(self, 3, time.Second))
	require.NoError(t, res.err)
	require.Equal(t, 9, res.value)

	res = receive(sq.RequestMail(self.Mail(4).Urgent().Delay(5*time.Millisecond), time.Second))
	require.NoError(t, res.err)
	require.Equal(t, 16, res.value)

	res = receive(sq.Request(self, -1, time.Second))
	require.Equal(t, boom, res.err)

	res = receive(sq.RequestMail(self.Mail("4"), time.Second))
	require.Equal(t, cerrors.KindUnexpectedMessage, cerrors.KindOf(res.err))

	// A regular message gets no answer.
	require.NoError(t, sq.Send(self, 5))

	values := make(chan int, 1)
	sys.Spawn(func(self *Context) *Behavior {
		sq.Request(self, 6, time.Second).Then(
			func(v int) { values <- v },
			func(err error) { t.Error(err) })
		return nil
	})
	require.Equal(t, 36, recv(t, values))
}

func TestTypedRefContractMismatch(t *testing.T) {
	t.Parallel()

	sys := newTestSystem(t, 2)
	startSystem(t, sys)
	self := sys.NewBlocking()
	defer self.Close()

	str := Typed[int, int](sys.Spawn(squareAsString))
	var got error
	err := str.Request(self, 2, time.Second).Receive(testContext(t),
		func(v int) { t.Errorf("unexpected value %d", v) },
		func(err error) { got = err })
	require.NoError(t, err)
	require.Equal(t, cerrors.KindUnexpectedResponse, cerrors.KindOf(got))

	resp := Typed[int, int](Ref{}).Request(self, 2, time.Second)
	require.True(t, resp.Departure().Disposed())
	err = resp.Receive(testContext(t),
		func(v int) { t.Errorf("unexpected value %d", v) },
		func(err error) { got = err })
	require.NoError(t, err)
	require.Equal(t, cerrors.KindInvalidRequest, cerrors.KindOf(got))
}
