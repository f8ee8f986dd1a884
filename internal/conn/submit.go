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

package conn

import (
	"slices"
	"strings"

	"github.com/FerretDB/sqlasync/internal/engine"
	"github.com/FerretDB/sqlasync/internal/queue"
	"github.com/FerretDB/sqlasync/internal/types"
	"github.com/FerretDB/sqlasync/internal/util/resource"
)

// enqueue schedules the operation's queues and appends it to the pending list.
//
// Caller must hold c.mu.
func (c *Conn) enqueue(o *op) {
	if c.quit {
		panic("conn: connection is destroyed")
	}

	o.q.Schedule()

	if o.kind == opOpen {
		o.errq.Schedule()
	}

	c.ops.Push(o)

	select {
	case c.notify <- struct{}{}:
	default:
	}
}

// submit enqueues the operation under the submission mutex.
func (c *Conn) submit(o *op) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.enqueue(o)
}

// Open opens the database identified by target.
//
// The outcome is delivered to q: a last result with code OK, or an error.
// The secondary queue errq receives errors of deferred commits as non-last results,
// and a last OK result when the database is closed (or right after the failure of this open).
// Both queues may be the same, or nil.
//
// Opening a database on a connection that already has one is reported as a Misuse error.
func (c *Conn) Open(q, errq *queue.Queue, target string, flags engine.OpenFlags) {
	c.submit(&op{
		kind:  opOpen,
		sql:   strings.Clone(target),
		q:     q,
		errq:  errq,
		flags: flags,
	})
}

// Close closes the database.
//
// It does nothing if no database is open.
func (c *Conn) Close() {
	c.submit(&op{kind: opClose})
}

// Exec submits a statement and returns immediately.
//
// Flags combine the ownership of the SQL text with a chain mode.
// Rows are delivered to q as non-last results with code engine.Row,
// followed by a last result with code engine.Done or an error.
// Bound values are owned by the connection after the call.
//
// Next chains must be submitted with ExecUnlocked inside Lock/Unlock.
func (c *Conn) Exec(q *queue.Queue, flags Flags, sql string, values ...types.Value) {
	if flags.Chain() == Next {
		panic("conn: use ExecUnlocked inside Lock/Unlock for Next statements")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.execUnlocked(q, flags, sql, values)
}

// ExecUnlocked is Exec for use between Lock and Unlock.
func (c *Conn) ExecUnlocked(q *queue.Queue, flags Flags, sql string, values ...types.Value) {
	c.execUnlocked(q, flags, sql, values)
}

// execUnlocked enqueues an exec operation. Caller must hold c.mu.
func (c *Conn) execUnlocked(q *queue.Queue, flags Flags, sql string, values []types.Value) {
	if flags.Ownership() == types.Copy {
		sql = strings.Clone(sql)
	}

	next := flags.Chain() == Next
	if next && !c.chainOpen {
		c.chainStart = c.ops.Len()
	}

	c.chainOpen = next

	c.enqueue(&op{
		kind:   opExec,
		chain:  flags.Chain(),
		sql:    sql,
		values: slices.Clone(values),
		q:      q,
	})
}

// Custom submits a function to be executed by the worker with direct engine access.
// See CustomFunc.
func (c *Conn) Custom(q *queue.Queue, fn CustomFunc, values ...types.Value) {
	if fn == nil {
		panic("conn: nil custom function")
	}

	c.submit(&op{
		kind:   opCustom,
		values: slices.Clone(values),
		q:      q,
		fn:     fn,
	})
}

// Lock acquires the submission mutex, so that statements submitted with ExecUnlocked
// are enqueued atomically.
func (c *Conn) Lock() {
	c.mu.Lock()
}

// Unlock releases the submission mutex.
//
// Unlocking with an unterminated Next chain is a protocol error:
// statements of that chain are removed before the worker can see them,
// each gets a last Misuse result, and then Unlock panics.
// Operations submitted before the chain are kept.
func (c *Conn) Unlock() {
	var discarded []*op

	if c.chainOpen {
		// the worker can't take operations while c.mu is held,
		// so the whole chain is still pending
		ops := c.ops.Drain()
		c.ops.PushAll(ops[:c.chainStart])
		discarded = ops[c.chainStart:]
	}

	c.chainOpen = false
	c.chainStart = 0

	c.mu.Unlock()

	if discarded == nil {
		return
	}

	err := engine.NewError(engine.Misuse, "unterminated Next chain discarded")

	for _, o := range discarded {
		o.q.Push(queue.NewErrorResult(err, true))
		o.release()
	}

	panic("conn: Unlock with an unterminated Next chain")
}

// Pending returns the number of submitted operations not yet taken by the worker.
func (c *Conn) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.ops.Len()
}

// Destroy closes the database (committing the pending transaction),
// stops the worker and waits for it to exit.
//
// Operations submitted before Destroy are executed first.
// Destroy may be called more than once; the connection must not be used after it.
func (c *Conn) Destroy() {
	c.mu.Lock()

	if !c.quit {
		c.enqueue(&op{kind: opQuit})
		c.quit = true
	}

	c.mu.Unlock()

	<-c.done

	c.cancel()
	resource.Untrack(c, c.token)
}

// Abort is Destroy that discards pending operations instead of executing them,
// interrupts the running one, and rolls back the pending transaction.
//
// Every discarded operation still reports a last result with code engine.Abort.
func (c *Conn) Abort() {
	c.aborting.Store(true)
	c.cancel()

	c.Destroy()
}
