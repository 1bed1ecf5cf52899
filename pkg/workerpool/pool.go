// Copyright 2020 PingCAP, Inc.
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

package workerpool

import "context"

// Pool runs a number of Goroutines that execute submitted tasks. The order
// in which tasks run is FIFO per pool, but tasks run concurrently on
// different workers.
//
// An actor system submits one dispatch step per runnable actor, so a task
// must never block waiting for another task.
type Pool interface {
	// Submit queues f for execution. It never blocks. Tasks submitted
	// before Run are kept and executed once Run starts.
	// It returns ErrWorkerPoolExited once Run has returned.
	Submit(f func()) error

	// Run runs the workers until ctx is cancelled.
	Run(ctx context.Context) error

	// WorkerNum returns the number of workers.
	WorkerNum() int
}

// NewPool creates a new Pool with the given name and worker number.
// The name is used as a metrics label.
func NewPool(name string, numWorkers int) Pool {
	return newDefaultPoolImpl(name, numWorkers)
}
