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
	"context"
	"testing"
	"time"

	"github.com/DrAugus/actor-framework/pkg/leakutil"
	"github.com/stretchr/testify/require"
)

const waitTimeout = 5 * time.Second

func TestMain(m *testing.M) {
	leakutil.SetUpLeakTest(m)
}

// newTestSystem builds a system that is stopped when the test ends. It is
// not started, so messages sent before Start are queued.
func newTestSystem(t *testing.T, numWorkers int) *System {
	sys, err := NewSystemBuilder(t.Name()).WorkerNumber(numWorkers).Build()
	require.NoError(t, err)
	t.Cleanup(sys.Stop)
	return sys
}

func startSystem(t *testing.T, sys *System) {
	require.NoError(t, sys.Start(context.Background()))
}

func recv[T any](t *testing.T, ch <-chan T) T {
	select {
	case v := <-ch:
		return v
	case <-time.After(waitTimeout):
		require.FailNow(t, "timed out waiting for a value")
	}
	panic("unreachable")
}

func testContext(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), waitTimeout)
	t.Cleanup(cancel)
	return ctx
}
