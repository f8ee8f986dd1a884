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

// Package conn implements connections: a worker goroutine per database handle
// that executes submitted operations in order, batching statements into transactions.
//
// # Transactions
//
// Without a transaction timeout, every statement runs in its own implicit transaction,
// except for NEXT chains: statements submitted with the Next flag inside Lock/Unlock
// run in one transaction together with the first following statement without it.
//
// With a transaction timeout, statements are grouped into a transaction
// that is committed when the timeout elapses with nothing else to execute,
// or before an operation that needs the transaction closed (open, close, custom, single statements).
// That trades durability of recently reported statements for throughput.
// Errors of such deferred commits are reported to the open operation's secondary queue.
package conn

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/FerretDB/sqlasync/internal/engine"
	"github.com/FerretDB/sqlasync/internal/queue"
	"github.com/FerretDB/sqlasync/internal/util/fifo"
	"github.com/FerretDB/sqlasync/internal/util/lazyerrors"
	"github.com/FerretDB/sqlasync/internal/util/resource"
)

// txState represents the state of the worker's transaction.
type txState int32

const (
	txNone    txState = iota // no transaction
	txOpen                   // transaction is open
	txAborted                // NEXT chain failed and its transaction was rolled back
)

// NewOpts represents configuration for constructing a connection.
type NewOpts struct {
	Opener             engine.Opener
	TransactionTimeout time.Duration // zero disables timeout-grouped transactions
	L                  *zap.Logger
	Metrics            *Metrics // may be nil
}

// Conn is a connection: a worker goroutine owning at most one engine handle.
//
// All exported methods are safe for concurrent use.
//
//nolint:vet // for readability
type Conn struct {
	id      string
	opener  engine.Opener
	timeout time.Duration
	l       *zap.Logger
	m       *Metrics

	// submission side
	mu         sync.Mutex
	ops        fifo.List[*op]
	notify     chan struct{}
	chainOpen  bool // unterminated NEXT chain inside Lock/Unlock
	chainStart int  // index in ops of the first operation of the unterminated chain
	quit       bool // quit operation was enqueued

	aborting atomic.Bool
	ctx      context.Context
	cancel   context.CancelFunc
	done     chan struct{}

	// worker side
	e        engine.Engine
	errq     *queue.Queue
	tx       txState
	txState  atomic.Int32 // copy of tx for metrics
	inChain  bool         // previous operation had Next flag
	deadline time.Time

	token *resource.Token
}

// New creates a new connection and starts its worker goroutine.
//
// Destroy or Abort must be called to stop it.
func New(opts *NewOpts) (*Conn, error) {
	if opts.Opener == nil {
		return nil, lazyerrors.New("opener is not set")
	}

	if opts.TransactionTimeout < 0 {
		return nil, lazyerrors.Errorf("invalid transaction timeout %s", opts.TransactionTimeout)
	}

	l := opts.L
	if l == nil {
		l = zap.NewNop()
	}

	m := opts.Metrics
	if m == nil {
		m = NewMetrics()
	}

	id := uuid.NewString()

	c := &Conn{
		id:      id,
		opener:  opts.Opener,
		timeout: opts.TransactionTimeout,
		l:       l.Named("conn").With(zap.String("conn", id)),
		m:       m,
		notify:  make(chan struct{}, 1),
		done:    make(chan struct{}),
		token:   resource.NewToken(),
	}

	c.ctx, c.cancel = context.WithCancel(context.Background())

	resource.Track(c, c.token)
	m.add(c)

	go c.run()

	return c, nil
}

// ID returns the connection's unique identifier.
func (c *Conn) ID() string {
	return c.id
}

// run is the worker loop.
func (c *Conn) run() {
	defer func() {
		c.m.remove(c)
		close(c.done)
	}()

	c.l.Debug("Worker started.", zap.Duration("transaction_timeout", c.timeout))

	for {
		o := c.next()

		switch {
		case o == nil:
			c.commitDeferred()
			continue

		case c.tx == txOpen && o.forcesCommit() && !(c.inChain && o.kind == opExec):
			if c.aborting.Load() {
				c.rollback(c.ctx)
			} else {
				c.commitDeferred()
			}
		}

		c.m.ops[o.kind].Inc()

		if c.aborting.Load() && o.kind != opQuit {
			c.discard(o)
			continue
		}

		start := time.Now()

		switch o.kind {
		case opExec:
			c.execSQL(o)

		case opOpen:
			c.open(o)

		case opClose:
			c.close()

		case opQuit:
			c.close()
			c.l.Debug("Worker stopped.")

			return

		case opCustom:
			o.fn(c, c.e, o.q, o.values)
			o.values = nil

		default:
			panic("unreachable")
		}

		o.release()

		c.l.Debug(
			"Operation done.",
			zap.Stringer("kind", o.kind), zap.Stringer("chain", o.chain), zap.Duration("time", time.Since(start)),
		)
	}
}

// next returns the next operation to execute.
//
// It blocks until an operation is available, or returns nil
// when the transaction deadline elapses with nothing to execute.
func (c *Conn) next() *op {
	for {
		c.mu.Lock()
		o, ok := c.ops.Pop()
		c.mu.Unlock()

		if ok {
			return o
		}

		if c.inChain {
			panic("conn: a Next operation was queued, but there is no next operation")
		}

		if c.tx != txOpen || c.timeout == 0 {
			<-c.notify
			continue
		}

		d := time.Until(c.deadline)
		if d <= 0 {
			return nil
		}

		t := time.NewTimer(d)

		select {
		case <-c.notify:
			t.Stop()

		case <-t.C:
			return nil
		}
	}
}

// setTx sets the transaction state.
func (c *Conn) setTx(s txState) {
	c.tx = s
	c.txState.Store(int32(s))
}

// open executes an open operation.
func (c *Conn) open(o *op) {
	if c.e != nil {
		o.q.Push(queue.NewErrorResult(engine.NewError(engine.Misuse, "database is already open"), true))
		o.errq.Push(queue.NewResult(engine.OK, true))

		return
	}

	e, err := c.opener.Open(c.ctx, o.sql, o.flags)
	if err != nil {
		c.l.Debug("Open failed.", zap.String("target", o.sql), zap.Error(err))

		o.q.Push(queue.NewErrorResult(err, true))

		// after the primary result, in case both queues are the same
		o.errq.Push(queue.NewResult(engine.OK, true))

		return
	}

	c.e = e
	c.errq = o.errq

	c.l.Debug("Database opened.", zap.String("target", o.sql), zap.Stringer("flags", o.flags))

	o.q.Push(queue.NewResult(engine.OK, true))
}

// close closes the engine handle (if any) and notifies the secondary queue.
func (c *Conn) close() {
	if c.e != nil {
		if err := c.e.Close(); err != nil {
			c.l.Warn("Failed to close database.", zap.Error(err))
		}

		c.l.Debug("Database closed.")
	}

	c.errq.Push(queue.NewResult(engine.OK, true))

	c.e = nil
	c.errq = nil
	c.setTx(txNone)
	c.inChain = false
	c.deadline = time.Time{}
}

// discard reports an operation discarded by Abort without running it.
func (c *Conn) discard(o *op) {
	if c.inChain && c.tx == txOpen {
		c.rollback(c.ctx)
	}

	c.inChain = o.kind == opExec && o.chain == Next
	if !c.inChain && c.tx == txAborted {
		c.setTx(txNone)
	}

	err := engine.NewError(engine.Abort, "operation discarded")

	switch o.kind {
	case opExec, opCustom:
		o.q.Push(queue.NewErrorResult(err, true))

	case opOpen:
		o.q.Push(queue.NewErrorResult(err, true))
		o.errq.Push(queue.NewResult(engine.OK, true))

	case opClose:
		// the quit operation closes the database

	default:
		panic("unreachable")
	}

	o.release()
}
