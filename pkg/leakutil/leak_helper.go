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

package leakutil

import (
	"testing"

	"go.uber.org/goleak"
)

// defaultOpts is the default ignore list for goleak.
var defaultOpts = []goleak.Option{
	// The log file rotator starts a background goroutine once a file
	// logger is created, and it never exits.
	goleak.IgnoreTopFunction("gopkg.in/natefinch/lumberjack%2ev2.(*Logger).millRun"),
}

// VerifyNone marks the given TestingT as failed if any extra goroutines are
// found by Find. This is a helper method to make it easier to integrate in
// tests by doing:
//
//	defer VerifyNone(t)
//
// VerifyNone is currently not thread-safe, do not run it with t.Parallel.
func VerifyNone(t *testing.T, options ...goleak.Option) {
	goleak.VerifyNone(t, append(options, defaultOpts...)...)
}

// SetUpLeakTest runs the tests of a package and fails if goroutines leak.
func SetUpLeakTest(m *testing.M, options ...goleak.Option) {
	goleak.VerifyTestMain(m, append(options, defaultOpts...)...)
}
