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

package queue

import (
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FerretDB/sqlasync/internal/engine"
	"github.com/FerretDB/sqlasync/internal/types"
	sqlasynctestutil "github.com/FerretDB/sqlasync/internal/util/testutil"
)

// row returns a new non-last row result with a single integer column.
func row(i int64) *Result {
	return NewResult(engine.Row, false, types.NewInteger(i))
}

// done returns a new last result.
func done() *Result {
	return NewResult(engine.Done, true)
}

// testHub returns a new hub counting wakeups and schedules.
func testHub(t testing.TB) (h *Hub, wakeups, schedules *atomic.Int32) {
	t.Helper()

	wakeups, schedules = new(atomic.Int32), new(atomic.Int32)

	h = NewHub(
		func(*Hub) { wakeups.Add(1) },
		func(*Hub) { schedules.Add(1) },
	)

	return
}

func TestResult(t *testing.T) {
	t.Parallel()

	assert.NoError(t, row(1).Err())
	assert.NoError(t, done().Err())
	assert.NoError(t, NewResult(engine.OK, true).Err())

	r := NewErrorResult(engine.NewError(engine.Constraint, "UNIQUE constraint failed"), true)
	assert.Equal(t, engine.Constraint, r.Code)
	assert.True(t, r.Last)

	var e *engine.Error
	require.ErrorAs(t, r.Err(), &e)
	assert.Equal(t, "UNIQUE constraint failed", e.Msg)
	assert.Equal(t, `CONSTRAINT last UNIQUE constraint failed`, r.String())

	r = NewErrorResult(errors.New("plain"), false)
	assert.Equal(t, engine.Generic, r.Code)
	assert.Equal(t, "ROW 1 x'02'", NewResult(engine.Row, false, types.NewInteger(1), types.NewBlob(types.Copy, []byte{2})).String())
}

func TestSyncFIFO(t *testing.T) {
	t.Parallel()

	q := NewSync()
	q.Schedule()

	go func() {
		for i := range int64(100) {
			q.Push(row(i))
		}

		q.Push(done())
	}()

	for i := range int64(100) {
		r := q.Pop()
		require.NotNil(t, r)
		assert.Equal(t, engine.Row, r.Code)
		assert.Equal(t, i, r.Columns[0].Int())
	}

	r := q.Pop()
	require.NotNil(t, r)
	assert.True(t, r.Last)

	outstanding, scheduled := q.Pending()
	assert.Zero(t, outstanding)
	assert.Zero(t, scheduled)

	q.Destroy()
	assert.True(t, q.Freed())
}

func TestSyncDestroy(t *testing.T) {
	t.Parallel()

	q := NewSync()
	q.Schedule()
	q.Push(row(1))

	popped := make(chan *Result)

	go func() {
		q.Pop()
		popped <- q.Pop()
	}()

	time.Sleep(10 * time.Millisecond)

	q.Destroy()
	assert.Nil(t, <-popped)
	assert.Nil(t, q.Pop())
	assert.False(t, q.Freed(), "operation is still scheduled")

	q.Push(row(2))
	assert.False(t, q.Freed())

	q.Push(done())
	assert.True(t, q.Freed())

	q.Destroy()
	assert.True(t, q.Destroyed())
}

func TestNil(t *testing.T) {
	t.Parallel()

	var q *Queue

	q.Schedule()
	q.Push(done())
	q.Destroy()
}

func TestEachResult(t *testing.T) {
	t.Parallel()

	h, wakeups, schedules := testHub(t)

	var order []string

	cb := func(name string) Callback {
		return func(q *Queue) {
			r := q.Pop()
			require.NotNil(t, r)

			if r.Last {
				order = append(order, name+":last")
				return
			}

			order = append(order, name+":"+r.Columns[0].String())
		}
	}

	a := NewAsync(h, EachResult, cb("a"))
	b := NewAsync(h, EachResult, cb("b"))

	a.Schedule()
	assert.Equal(t, int32(1), schedules.Load())

	b.Schedule()
	assert.Equal(t, int32(1), schedules.Load(), "only the transition from zero schedules")

	a.Push(row(1))
	b.Push(row(2))
	a.Push(row(3))
	a.Push(done())
	b.Push(done())

	assert.Equal(t, int32(1), wakeups.Load(), "wakeup fires once until dispatch")

	results, scheduled := h.Pending()
	assert.Equal(t, 5, results)
	assert.Equal(t, 2, scheduled)

	h.Dispatch()

	assert.Equal(t, []string{"a:1", "b:2", "a:3", "a:last", "b:last"}, order)
	assert.Equal(t, int32(1), wakeups.Load())
	assert.Equal(t, int32(1), schedules.Load(), "nothing is scheduled after dispatch")

	a.Schedule()
	a.Push(done())
	assert.Equal(t, int32(2), wakeups.Load())

	h.Dispatch()

	a.Destroy()
	b.Destroy()
	assert.True(t, a.Freed())
	assert.True(t, b.Freed())

	assert.Positive(t, testutil.CollectAndCount(h))

	h.Destroy()
}

func TestLastOnly(t *testing.T) {
	t.Parallel()

	h, wakeups, _ := testHub(t)

	var got []*Result

	q := NewAsync(h, LastOnly, func(q *Queue) {
		got = append(got, q.Pop())
	})

	q.Schedule()
	q.Push(row(1))
	q.Push(row(2))

	assert.Zero(t, wakeups.Load())

	results, _ := h.Pending()
	assert.Zero(t, results)
	assert.Nil(t, q.Pop(), "buffered results are not visible")

	q.Push(done())
	assert.Equal(t, int32(1), wakeups.Load())

	h.Dispatch()

	require.Len(t, got, 3)
	assert.Equal(t, int64(1), got[0].Columns[0].Int())
	assert.Equal(t, int64(2), got[1].Columns[0].Int())
	assert.True(t, got[2].Last)

	q.Destroy()
	h.Destroy()
}

func TestAsyncDestroy(t *testing.T) {
	t.Parallel()

	h, wakeups, _ := testHub(t)

	var calls int

	q := NewAsync(h, EachResult, func(q *Queue) { calls++ })
	other := NewAsync(h, EachResult, func(q *Queue) { q.Pop() })

	q.Schedule()
	other.Schedule()

	q.Push(row(1))
	other.Push(done())
	assert.Equal(t, int32(1), wakeups.Load())

	q.Destroy()
	assert.False(t, q.Freed())

	// discarded by dispatch without invoking the callback
	h.Dispatch()
	assert.Zero(t, calls)

	// the last result completes the last scheduled operation and wakes the host
	q.Push(done())
	assert.Equal(t, int32(2), wakeups.Load())
	assert.True(t, q.Freed())

	results, scheduled := h.Pending()
	assert.Zero(t, results)
	assert.Zero(t, scheduled)

	other.Destroy()
	h.Destroy()
}

func TestDestroyInsideCallback(t *testing.T) {
	t.Parallel()

	h, _, _ := testHub(t)

	q := NewAsync(h, EachResult, func(q *Queue) { q.Destroy() })

	q.Schedule()
	q.Push(row(1))
	q.Push(row(2))
	q.Push(done())

	h.Dispatch()

	assert.True(t, q.Freed())

	h.Destroy()
}

func TestDispatchProtocol(t *testing.T) {
	t.Parallel()

	t.Run("NotConsumed", func(t *testing.T) {
		t.Parallel()

		h, _, _ := testHub(t)
		q := NewAsync(h, EachResult, func(*Queue) {})

		q.Schedule()
		q.Push(done())

		assert.PanicsWithValue(t, "queue.Hub.Dispatch: callback did not consume a result", h.Dispatch)
	})

	t.Run("Recursive", func(t *testing.T) {
		t.Parallel()

		h, _, _ := testHub(t)

		var inner any

		q := NewAsync(h, EachResult, func(q *Queue) {
			func() {
				defer func() { inner = recover() }()
				h.Dispatch()
			}()

			q.Pop()
		})

		q.Schedule()
		q.Push(done())

		h.Dispatch()
		assert.Equal(t, "queue.Hub.Dispatch: called recursively", inner)
	})

	t.Run("DestroyScheduled", func(t *testing.T) {
		t.Parallel()

		h, _, _ := testHub(t)
		q := NewAsync(h, EachResult, func(q *Queue) { q.Pop() })

		q.Schedule()
		assert.Panics(t, h.Destroy)

		q.Push(done())
		h.Dispatch()
		h.Destroy()
	})

	t.Run("InvalidMode", func(t *testing.T) {
		t.Parallel()

		h, _, _ := testHub(t)

		assert.Panics(t, func() { NewAsync(h, Sync, func(*Queue) {}) })
		assert.Panics(t, func() { NewAsync(h, EachResult, nil) })
		assert.Panics(t, func() { NewHub(nil, nil) })
	})
}

func TestScheduleAfterDispatch(t *testing.T) {
	t.Parallel()

	h, wakeups, schedules := testHub(t)
	q := NewAsync(h, EachResult, func(q *Queue) { q.Pop() })

	q.Schedule()
	q.Schedule()
	assert.Equal(t, int32(1), schedules.Load())

	q.Push(done())
	h.Dispatch()
	assert.Equal(t, int32(2), schedules.Load(), "one operation is still scheduled")

	q.Push(done())
	assert.Equal(t, int32(2), wakeups.Load())
	h.Dispatch()
	assert.Equal(t, int32(2), schedules.Load())

	q.Destroy()
	h.Destroy()
}

func TestBackpressure(t *testing.T) {
	t.Parallel()

	q := NewSync()
	q.SetCapacity(2)
	q.Schedule()

	var pushed atomic.Int32

	go func() {
		for i := range int64(4) {
			q.Push(row(i))
			pushed.Add(1)
		}

		q.Push(done())
		pushed.Add(1)
	}()

	require.True(t, sqlasynctestutil.WaitFor(time.Second, func() bool { return pushed.Load() == 2 }))

	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int32(2), pushed.Load(), "producer must block at capacity")

	outstanding, _ := q.Pending()
	assert.Equal(t, 2, outstanding)

	for i := range int64(4) {
		r := q.Pop()
		require.NotNil(t, r)
		assert.Equal(t, i, r.Columns[0].Int())
	}

	assert.True(t, q.Pop().Last)
	assert.True(t, sqlasynctestutil.WaitFor(time.Second, func() bool { return pushed.Load() == 5 }))

	q.Destroy()
}

func TestBackpressureDestroy(t *testing.T) {
	t.Parallel()

	h, _, _ := testHub(t)
	q := NewAsync(h, EachResult, func(q *Queue) { q.Pop() })
	q.SetCapacity(1)
	q.Schedule()

	finished := make(chan struct{})

	go func() {
		q.Push(row(1))
		q.Push(row(2))
		q.Push(done())
		close(finished)
	}()

	time.Sleep(20 * time.Millisecond)

	q.Destroy()
	<-finished

	h.Dispatch()
	assert.True(t, q.Freed())

	h.Destroy()
}
