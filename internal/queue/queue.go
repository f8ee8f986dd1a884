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
	"sync"

	"github.com/FerretDB/sqlasync/internal/util/fifo"
	"github.com/FerretDB/sqlasync/internal/util/resource"
)

// Mode is a delivery mode of a Queue.
type Mode int

//go:generate ../../bin/stringer -linecomment -type Mode

// Queue modes.
const (
	_ Mode = iota

	// Sync queues are consumed by blocking Pop calls.
	Sync // sync

	// EachResult async queues forward every result to the Hub immediately.
	EachResult // each

	// LastOnly async queues buffer an operation's results
	// and forward them to the Hub together with the final result.
	LastOnly // last
)

// Callback is an async queue consumer invoked by Hub.Dispatch.
//
// It must consume at least one result (by calling Pop or Destroy) per invocation.
type Callback func(q *Queue)

// Queue delivers results to a single consumer.
//
// Methods of a nil *Queue discard results; that is used for operations without a destination.
//
//nolint:vet // for readability
type Queue struct {
	hub  *Hub // nil for sync queues
	mode Mode
	cb   Callback

	mu   sync.Mutex // protects fields below for sync queues; hub.mu is used for async queues
	cond *sync.Cond

	// results of sync queues, or buffered non-last results of LastOnly queues
	results fifo.List[*Result]

	capacity    int // 0 means unbounded
	outstanding int // results pushed but not yet consumed or discarded
	scheduled   int // operations submitted but not yet completed with the last result
	destroyed   bool
	freed       bool

	token *resource.Token
}

// NewSync creates a new sync queue.
func NewSync() *Queue {
	q := &Queue{
		mode:  Sync,
		token: resource.NewToken(),
	}
	q.cond = sync.NewCond(&q.mu)

	resource.Track(q, q.token)

	return q
}

// NewAsync creates a new async queue bound to the given hub.
//
// Mode should be EachResult or LastOnly.
func NewAsync(h *Hub, mode Mode, cb Callback) *Queue {
	if h == nil {
		panic("queue.NewAsync: nil hub")
	}

	if cb == nil {
		panic("queue.NewAsync: nil callback")
	}

	if mode != EachResult && mode != LastOnly {
		panic("queue.NewAsync: invalid mode " + mode.String())
	}

	q := &Queue{
		hub:   h,
		mode:  mode,
		cb:    cb,
		token: resource.NewToken(),
	}
	q.cond = sync.NewCond(&h.mu)

	resource.Track(q, q.token)

	return q
}

// Mode returns the queue's delivery mode.
func (q *Queue) Mode() Mode {
	return q.mode
}

// Hub returns the hub of an async queue, or nil.
func (q *Queue) Hub() *Hub {
	return q.hub
}

// lock locks the mutex protecting the queue.
func (q *Queue) lock() {
	if q.hub != nil {
		q.hub.mu.Lock()
		return
	}

	q.mu.Lock()
}

// unlock unlocks the mutex protecting the queue.
func (q *Queue) unlock() {
	if q.hub != nil {
		q.hub.mu.Unlock()
		return
	}

	q.mu.Unlock()
}

// SetCapacity sets the maximum number of outstanding results.
// When it is reached, Push blocks until the consumer catches up.
// Zero means unbounded.
//
// If the consumer of an async queue runs on the same goroutine as a producer
// (for example, a Custom callback pushing to a queue dispatched by the same loop),
// a bounded queue can deadlock.
func (q *Queue) SetCapacity(n int) {
	if n < 0 {
		panic("queue.SetCapacity: negative capacity")
	}

	q.lock()
	q.capacity = n
	q.cond.Broadcast()
	q.unlock()
}

// freeable returns true if the destroyed queue can be freed now.
// Caller must hold the lock.
func (q *Queue) freeable() bool {
	if !q.destroyed || q.freed || q.scheduled != 0 || q.outstanding != 0 {
		return false
	}

	q.freed = true

	return true
}

// free releases tracked queue resources.
func (q *Queue) free() {
	resource.Untrack(q, q.token)
}

// Schedule records that an operation will deliver its results to this queue.
//
// It should be called by the submitter before the operation is enqueued.
// The Hub's schedule callback is invoked on the transition of its scheduled count from zero.
func (q *Queue) Schedule() {
	if q == nil {
		return
	}

	h := q.hub

	q.lock()

	q.scheduled++

	var schedule bool
	if h != nil {
		schedule = h.scheduled == 0
		h.scheduled++
	}

	q.unlock()

	if schedule && h.schedule != nil {
		h.schedule(h)
	}
}

// Push delivers a result to the queue.
//
// It blocks while the queue is at capacity.
// Results pushed to a destroyed queue are discarded.
// The Hub's wakeup callback is invoked if the result made the Hub non-empty
// and the Hub has not woken since the last Dispatch.
func (q *Queue) Push(r *Result) {
	if q == nil {
		r.Release()
		return
	}

	h := q.hub

	q.lock()

	for !q.destroyed && q.capacity > 0 && q.outstanding >= q.capacity {
		q.cond.Wait()
	}

	var wakeup, free bool

	switch {
	case q.destroyed:
		if r.Last {
			q.scheduled--

			if h != nil {
				h.scheduled--
				wakeup = h.scheduled == 0
			}

			free = q.freeable()
		}

		r.Release()

	case h == nil:
		q.outstanding++
		q.results.Push(r)
		q.cond.Broadcast()

	default:
		q.outstanding++
		r.queue = q

		if q.mode == LastOnly && !r.Last {
			q.results.Push(r)
			break
		}

		if q.mode == LastOnly {
			h.results.PushAll(q.results.Drain())
		}

		h.results.Push(r)
		h.pushed.Inc()

		wakeup = true
	}

	if wakeup {
		wakeup = !h.woken
		h.woken = true
	}

	q.unlock()

	if wakeup {
		h.wake()
	}

	if free {
		q.free()
	}
}

// Pop returns the next result.
//
// For sync queues, it blocks until a result is available;
// it returns nil if the queue is destroyed.
// For async queues, it never blocks; it returns the Hub's front result
// if it belongs to this queue, and nil otherwise.
func (q *Queue) Pop() *Result {
	h := q.hub

	q.lock()

	var r *Result

	switch {
	case q.destroyed:

	case h == nil:
		for q.results.Len() == 0 && !q.destroyed {
			q.cond.Wait()
		}

		if !q.destroyed {
			r, _ = q.results.Pop()
		}

	default:
		if head, ok := h.results.Peek(); ok && head.queue == q {
			r, _ = h.results.Pop()
		}
	}

	var wakeup bool

	if r != nil {
		q.outstanding--
		q.cond.Broadcast()

		if r.Last {
			q.scheduled--

			if h != nil {
				h.scheduled--

				if h.scheduled == 0 && !h.woken {
					wakeup = true
					h.woken = true
				}
			}
		}

		r.queue = nil
	}

	q.unlock()

	if wakeup {
		h.wake()
	}

	return r
}

// Destroy marks the queue destroyed.
//
// Results already delivered to the queue are discarded immediately;
// results inside the Hub are discarded by Dispatch,
// and results of still running operations are discarded when pushed.
// Producers blocked on capacity are released.
// The queue is freed once all scheduled operations complete.
//
// Destroy is idempotent.
func (q *Queue) Destroy() {
	if q == nil {
		return
	}

	q.lock()

	if q.destroyed {
		q.unlock()
		return
	}

	q.destroyed = true

	for _, r := range q.results.Drain() {
		q.outstanding--

		if r.Last {
			q.scheduled--
		}

		r.Release()
	}

	q.cond.Broadcast()

	free := q.freeable()

	q.unlock()

	if free {
		q.free()
	}
}

// Destroyed returns true if the queue was destroyed.
func (q *Queue) Destroyed() bool {
	q.lock()
	defer q.unlock()

	return q.destroyed
}

// Freed returns true if the queue was destroyed and all its scheduled operations completed.
func (q *Queue) Freed() bool {
	q.lock()
	defer q.unlock()

	return q.freed
}

// Pending returns the numbers of outstanding results and scheduled operations.
func (q *Queue) Pending() (outstanding, scheduled int) {
	q.lock()
	defer q.unlock()

	return q.outstanding, q.scheduled
}
