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
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/FerretDB/sqlasync/internal/util/lazyerrors"
	"github.com/FerretDB/sqlasync/sqlasync"
)

// app is an open connection with a hub serviced by the event loop on the calling goroutine.
type app struct {
	e      *env
	c      *sqlasync.Conn
	hub    *sqlasync.Hub
	wakeup chan struct{}

	errq   *sqlasync.Queue
	closed bool // errq received the close notification
	failed int  // number of failed statements and deferred commits
}

// newApp creates a connection and opens the database.
func newApp(e *env) (*app, error) {
	flags, ok := sqlasync.ParseOpenFlags(e.cli.OpenFlags)
	if !ok {
		return nil, lazyerrors.Errorf("invalid open flags %q", e.cli.OpenFlags)
	}

	m := sqlasync.NewMetrics()

	c, err := sqlasync.New(&sqlasync.Config{
		Engine:             e.cli.Engine,
		TransactionTimeout: e.cli.TransactionTimeout,
		Logger:             e.l,
		Metrics:            m,
	})
	if err != nil {
		return nil, lazyerrors.Error(err)
	}

	a := &app{
		e:      e,
		c:      c,
		wakeup: make(chan struct{}, 1),
	}

	a.hub = sqlasync.NewHub(func(*sqlasync.Hub) {
		select {
		case a.wakeup <- struct{}{}:
		default:
		}
	}, nil)

	e.reg.MustRegister(m, a.hub)

	a.errq = sqlasync.NewAsyncQueue(a.hub, true, func(q *sqlasync.Queue) {
		r := q.Pop()
		defer r.Release()

		if r.Last {
			a.closed = true
			return
		}

		a.failed++
		fmt.Fprintf(e.stderr, "Error: deferred commit failed: %s\n", r.Err())
	})

	var done bool
	var openErr error

	q := sqlasync.NewAsyncQueue(a.hub, false, func(q *sqlasync.Queue) {
		r := q.Pop()
		defer r.Release()

		openErr = r.Err()
		done = true
	})

	c.Open(q, a.errq, e.cli.DB, flags)

	err = a.loop(func() bool { return done })
	q.Destroy()

	if err != nil {
		a.abort()
		return nil, err
	}

	if openErr != nil {
		_ = a.loop(func() bool { return a.closed })
		a.destroy()

		return nil, lazyerrors.Errorf("failed to open %q: %w", e.cli.DB, openErr)
	}

	e.l.Debug("Database opened.", zap.String("db", e.cli.DB), zap.Stringer("flags", flags))

	return a, nil
}

// loop dispatches results until done returns true or the context is canceled.
func (a *app) loop(done func() bool) error {
	for !done() {
		select {
		case <-a.wakeup:
			a.hub.Dispatch()

		case <-a.e.ctx.Done():
			return lazyerrors.Error(a.e.ctx.Err())
		}
	}

	return nil
}

// close closes the database, dispatching remaining results, and stops the connection.
func (a *app) close() error {
	if a.e.ctx.Err() != nil {
		a.abort()
		return lazyerrors.Error(a.e.ctx.Err())
	}

	a.c.Close()

	if err := a.loop(func() bool { return a.closed }); err != nil {
		a.abort()
		return err
	}

	a.destroy()

	if a.failed > 0 {
		return lazyerrors.Errorf("%d statement(s) failed", a.failed)
	}

	return nil
}

// destroy stops the connection after the database was closed.
func (a *app) destroy() {
	a.c.Destroy()
	a.errq.Destroy()
	a.hub.Destroy()
}

// abort stops the connection discarding pending operations.
//
// The hub is left to the garbage collector: discarded results are not dispatched.
func (a *app) abort() {
	a.c.Abort()
	a.errq.Destroy()
}

// statement is a single statement of a command or a script.
type statement struct {
	SQL   string `yaml:"sql"`
	Chain string `yaml:"chain"`
	Binds []any  `yaml:"binds"`

	values []sqlasync.Value
}

// chainFlags returns Exec flags for the statement's chain mode.
func (s *statement) chainFlags() (sqlasync.Flags, error) {
	switch strings.ToLower(s.Chain) {
	case "":
		return 0, nil
	case "next":
		return sqlasync.Next, nil
	case "last":
		return sqlasync.Last, nil
	case "single":
		return sqlasync.Single, nil
	default:
		return 0, lazyerrors.Errorf("unknown chain mode %q", s.Chain)
	}
}

// printer prints results of statements.
type printer struct {
	a       *app
	verbose bool // print statement headers and statuses (primary codes) to stdout
}

// queue returns a new queue printing results of the i-th statement.
func (p *printer) queue(i int, s *statement, pending *int) *sqlasync.Queue {
	var started bool

	q := sqlasync.NewAsyncQueue(p.a.hub, true, func(q *sqlasync.Queue) {
		r := q.Pop()
		defer r.Release()

		out, errOut := p.a.e.stdout, p.a.e.stderr

		if p.verbose && !started {
			fmt.Fprintf(out, "-- %d: %s\n", i, s.SQL)
			started = true
		}

		switch err := r.Err(); {
		case r.Code == sqlasync.Row:
			cols := make([]string, len(r.Columns))
			for j, c := range r.Columns {
				cols[j] = c.String()
			}

			fmt.Fprintln(out, strings.Join(cols, "\t"))

		case err != nil:
			p.a.failed++

			if p.verbose {
				fmt.Fprintf(out, "-- error: %s\n", r.Code.Primary())
				fmt.Fprintf(errOut, "Error: statement %d: %s\n", i, err)
			} else {
				fmt.Fprintf(errOut, "Error: %s\n", err)
			}

		case p.verbose:
			fmt.Fprintf(out, "-- %s\n", r.Code)
		}

		if r.Last {
			*pending--
		}
	})

	q.SetCapacity(p.a.e.cli.Capacity)

	return q
}

// exec executes statements, printing their results, and waits for completion.
//
// Consecutive statements with "next" chain mode and the statement after them
// are submitted atomically.
func (a *app) exec(stmts []statement, verbose bool) error {
	flags := make([]sqlasync.Flags, len(stmts))

	for i := range stmts {
		f, err := stmts[i].chainFlags()
		if err != nil {
			return lazyerrors.Errorf("statement %d: %w", i+1, err)
		}

		flags[i] = f
	}

	if len(flags) > 0 && flags[len(flags)-1] == sqlasync.Next {
		return lazyerrors.New("the last statement can't have \"next\" chain mode")
	}

	p := &printer{a: a, verbose: verbose}
	pending := len(stmts)

	queues := make([]*sqlasync.Queue, len(stmts))
	for i := range stmts {
		queues[i] = p.queue(i+1, &stmts[i], &pending)
	}

	defer func() {
		for _, q := range queues {
			q.Destroy()
		}
	}()

	for i := 0; i < len(stmts); {
		end := i
		for flags[end] == sqlasync.Next {
			end++
		}

		if end == i {
			a.c.Exec(queues[i], flags[i], stmts[i].SQL, stmts[i].values...)
			i++

			continue
		}

		a.c.Lock()

		for ; i <= end; i++ {
			a.c.ExecUnlocked(queues[i], flags[i], stmts[i].SQL, stmts[i].values...)
		}

		a.c.Unlock()
	}

	return a.loop(func() bool { return pending == 0 })
}
