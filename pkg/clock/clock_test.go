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

package clock

import (
	"context"
	"testing"
	"time"

	"github.com/DrAugus/actor-framework/pkg/leakutil"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	leakutil.SetUpLeakTest(m)
}

func TestMockMono(t *testing.T) {
	t.Parallel()

	m := NewMock()
	start := m.Mono()
	m.Add(time.Second)
	require.Equal(t, time.Second, m.Mono().Sub(start))
	require.Equal(t, ToMono(m.Now()), m.Mono())
}

func TestRealMonoIsMonotonic(t *testing.T) {
	t.Parallel()

	c := New()
	first := c.Mono()
	second := MonoNow()
	require.GreaterOrEqual(t, second.Sub(first), time.Duration(0))
}

func TestMockWaitArmed(t *testing.T) {
	t.Parallel()

	m := NewMock()
	require.Equal(t, 0, m.Armed())

	fired := make(chan struct{})
	go func() {
		<-m.Timer(time.Second).C
		close(fired)
	}()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, m.WaitArmed(ctx, 1))
	require.Equal(t, 1, m.Armed())

	m.Add(time.Second)
	select {
	case <-fired:
	case <-ctx.Done():
		require.FailNow(t, "timer did not fire")
	}

	short, cancelShort := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancelShort()
	require.Error(t, m.WaitArmed(short, 2))
}
