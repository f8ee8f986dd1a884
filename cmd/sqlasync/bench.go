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

package main

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/go-pkgz/syncs"
	"go.uber.org/zap"

	"github.com/FerretDB/sqlasync/internal/util/lazyerrors"
	"github.com/FerretDB/sqlasync/sqlasync"
)

// benchCmd represents the bench command.
type benchCmd struct {
	Goroutines int    `default:"8"     help:"Number of concurrent submitters."`
	Rows       int    `default:"1000"  help:"Number of rows inserted by each submitter."`
	Table      string `default:"bench" help:"Table name; it is created if needed."`
}

// insert inserts rows through a sync queue, returning the number of failed statements.
func (cmd *benchCmd) insert(ctx context.Context, a *app, g int) (int, error) {
	q := sqlasync.NewSyncQueue()
	defer q.Destroy()

	q.SetCapacity(a.e.cli.Capacity)

	sql := "INSERT INTO " + cmd.Table + " (g, i, s) VALUES (?, ?, ?)"

	for i := range cmd.Rows {
		a.c.Exec(q, sqlasync.Static, sql,
			sqlasync.NewInteger(int64(g)),
			sqlasync.NewInteger(int64(i)),
			sqlasync.NewText(sqlasync.CopyValue, fmt.Sprintf("row %d/%d", g, i)),
		)
	}

	var failed int

	for range cmd.Rows {
		r := q.Pop()
		if r == nil {
			return failed, lazyerrors.New("queue destroyed")
		}

		if err := r.Err(); err != nil {
			failed++
			a.e.l.Debug("Insert failed.", zap.Int("goroutine", g), zap.Error(err))
		}

		r.Release()

		if err := ctx.Err(); err != nil {
			return failed, lazyerrors.Error(err)
		}
	}

	return failed, nil
}

// Run creates the table, inserts rows concurrently and reports throughput to stdout.
func (cmd *benchCmd) Run(e *env) error {
	if cmd.Goroutines <= 0 || cmd.Rows <= 0 {
		return lazyerrors.New("goroutines and rows must be positive")
	}

	a, err := newApp(e)
	if err != nil {
		return err
	}

	create := []statement{{SQL: "CREATE TABLE IF NOT EXISTS " + cmd.Table + " (g INTEGER, i INTEGER, s TEXT)"}}
	if err = a.exec(create, false); err != nil {
		a.abort()
		return lazyerrors.Error(err)
	}

	var failed atomic.Int64

	start := time.Now()

	wg := syncs.NewErrSizedGroup(cmd.Goroutines, syncs.Context(e.ctx), syncs.Preemptive)
	for g := range cmd.Goroutines {
		wg.Go(func() error {
			n, err := cmd.insert(e.ctx, a, g)
			failed.Add(int64(n))

			return err
		})
	}

	if err = wg.Wait(); err != nil {
		a.abort()
		return lazyerrors.Error(err)
	}

	d := time.Since(start)
	total := cmd.Goroutines * cmd.Rows

	fmt.Fprintf(
		e.stdout, "inserted %d rows with %d goroutines in %s (%.0f rows/s), %d failed\n",
		total-int(failed.Load()), cmd.Goroutines, d.Round(time.Millisecond), float64(total)/d.Seconds(), failed.Load(),
	)

	return a.close()
}
