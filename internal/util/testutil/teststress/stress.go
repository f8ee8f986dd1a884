// Copyright 2021 FerretDB Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package teststress provides a helper for stress testing.
//
// It is in a separate package to avoid import cycles.
package teststress

import (
	"context"
	"runtime"
	"sync"

	"github.com/FerretDB/sqlasync/internal/util/testutil/testtb"
)

// NumGoroutines is the default count of goroutines created by Stress.
var NumGoroutines = runtime.GOMAXPROCS(-1) * 10

// Stress runs function f in NumGoroutines goroutines.
//
// Function f should do a needed setup, send a message to ready channel when it is ready to start,
// wait for start channel to be closed, and then do the actual work.
// The index of the goroutine is passed as i.
func Stress(tb testtb.TB, f func(i int, ready chan<- struct{}, start <-chan struct{})) {
	tb.Helper()

	StressN(tb, NumGoroutines, f)
}

// StressN is like Stress, but runs f in exactly n goroutines.
func StressN(tb testtb.TB, n int, f func(i int, ready chan<- struct{}, start <-chan struct{})) {
	tb.Helper()

	var wg sync.WaitGroup
	readyCh := make(chan struct{}, n)
	startCh := make(chan struct{})

	ctx, cancel := context.WithCancel(context.Background())
	tb.Cleanup(cancel)

	for i := range n {
		wg.Add(1)

		go func() {
			var ok bool

			defer func() {
				wg.Done()

				// handles f calling testify/require.XXX or `testing.TB.FailNow()`
				if !ok {
					cancel()
				}
			}()

			f(i, readyCh, startCh)

			ok = true
		}()
	}

	for range n {
		select {
		case <-readyCh:
		case <-ctx.Done():
		}
	}

	close(startCh)

	wg.Wait()
}
