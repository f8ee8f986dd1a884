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
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/FerretDB/sqlasync/internal/engine"
	"github.com/FerretDB/sqlasync/internal/queue"
	"github.com/FerretDB/sqlasync/internal/util/observability"
)

// busyWarnEvery is the number of busy retries between warnings.
const busyWarnEvery = 100

// errChainAborted is reported for chain members after the chain's transaction was rolled back.
var errChainAborted = engine.NewError(engine.Generic, "transaction aborted by an earlier statement in the chain")

// execSQL executes an exec operation and reports its last result.
func (c *Conn) execSQL(o *op) {
	ctx, span := observability.StartSpan(
		c.ctx, "sqlasync.exec",
		attribute.String("conn", c.id), attribute.String("chain", o.chain.String()),
	)

	var err error

	defer func() {
		observability.EndSpan(span, err)
	}()

	chain := o.chain

	switch {
	case c.tx == txAborted:
		if chain != Next {
			c.setTx(txNone)
		}

		err = errChainAborted

	case chain == Single:
		// terminal member of a NEXT chain: the chain's commit outcome is the result
		if c.tx == txOpen {
			if err = c.commit(ctx); err != nil {
				break
			}
		}

		_, err = c.execStmt(ctx, o)

	case chain == Last || (c.timeout == 0 && c.inChain && chain != Next):
		_, err = c.execStmt(ctx, o)

		if c.tx == txOpen {
			if err != nil {
				c.rollback(ctx)
			} else {
				err = c.commit(ctx)
			}
		}

	default:
		if c.tx == txNone && c.e != nil && (chain == Next || c.timeout > 0) {
			if err = c.begin(ctx); err != nil {
				if chain == Next {
					c.setTx(txAborted)
				}

				break
			}
		}

		var prepared bool
		prepared, err = c.execStmt(ctx, o)

		if err != nil && (prepared || chain == Next) {
			if c.tx == txOpen {
				c.rollback(ctx)
			}

			if chain == Next {
				c.setTx(txAborted)
			}
		}
	}

	if err != nil {
		o.q.Push(queue.NewErrorResult(err, true))
	} else {
		o.q.Push(queue.NewResult(engine.Done, true))
	}

	c.inChain = chain == Next
}

// execStmt prepares, binds and steps the statement, pushing rows to the operation's queue.
//
// It returns true if the statement was prepared, so it could have changed the transaction.
// Empty statements are not prepared and succeed.
func (c *Conn) execStmt(ctx context.Context, o *op) (bool, error) {
	if c.e == nil {
		return false, engine.NewError(engine.Misuse, "database is not open")
	}

	st, err := c.e.Prepare(ctx, o.sql)
	if err != nil {
		return false, err
	}

	if st == nil {
		return false, nil
	}

	defer func() {
		if err := st.Close(); err != nil {
			c.l.Warn("Failed to finalize statement.", zap.Error(err))
		}
	}()

	if err = st.Bind(o.values); err != nil {
		return true, err
	}

	var busy int

	for {
		res, err := st.Step(ctx)
		if err != nil {
			return true, err
		}

		switch res {
		case engine.StepRow:
			o.q.Push(queue.NewResult(engine.Row, false, st.Columns()...))

		case engine.StepDone:
			return true, nil

		case engine.StepBusy:
			if c.tx == txOpen {
				return true, engine.NewError(engine.Busy, "database is locked")
			}

			if err = c.retryBusy(ctx, &busy, o.sql); err != nil {
				return true, err
			}

		default:
			panic("unreachable")
		}
	}
}

// retryBusy accounts for a busy step outside of a transaction that is going to be retried.
//
// The engine's busy timeout paces retries.
func (c *Conn) retryBusy(ctx context.Context, count *int, what string) error {
	if c.aborting.Load() {
		return engine.NewError(engine.Abort, "operation discarded")
	}

	if err := ctx.Err(); err != nil {
		return engine.NewError(engine.Interrupt, err.Error())
	}

	c.m.busyRetries.Inc()

	if *count++; *count%busyWarnEvery == 0 {
		c.l.Warn("Database is busy, retrying.", zap.String("sql", what), zap.Int("retries", *count))
	}

	return nil
}

// begin starts a transaction.
func (c *Conn) begin(ctx context.Context) error {
	if err := c.e.Begin(ctx); err != nil {
		return err
	}

	c.setTx(txOpen)

	if c.timeout > 0 {
		c.deadline = time.Now().Add(c.timeout)
	}

	return nil
}

// rollback rolls back the current transaction, even if ctx is canceled.
// Failure is logged; the transaction is considered closed in either case.
func (c *Conn) rollback(ctx context.Context) {
	c.m.rollbacks.Inc()

	if err := c.e.Rollback(context.WithoutCancel(ctx)); err != nil {
		c.l.Warn("Rollback failed.", zap.Error(err))
	}

	c.setTx(txNone)
}

// commit commits the current transaction, retrying while the database is busy.
// If the commit fails, the transaction is rolled back.
func (c *Conn) commit(ctx context.Context) error {
	var busy int

	for {
		err := c.e.Commit(ctx)
		if err == nil {
			c.m.commits.Inc()
			c.setTx(txNone)

			return nil
		}

		if !engine.IsBusy(err) {
			c.m.commitFailures.Inc()
			c.rollback(ctx)

			return err
		}

		if rerr := c.retryBusy(ctx, &busy, "COMMIT"); rerr != nil {
			c.m.commitFailures.Inc()
			c.rollback(ctx)

			return rerr
		}
	}
}

// commitDeferred commits the current transaction (if any) outside of any operation.
// Failure is reported to the secondary queue of the open operation as a non-last result.
func (c *Conn) commitDeferred() {
	if c.tx != txOpen {
		return
	}

	ctx, span := observability.StartSpan(c.ctx, "sqlasync.commit", attribute.String("conn", c.id))

	err := c.commit(ctx)
	observability.EndSpan(span, err)

	if err == nil {
		return
	}

	c.l.Warn("Deferred commit failed.", zap.Error(err))

	c.errq.Push(queue.NewErrorResult(err, false))
}
