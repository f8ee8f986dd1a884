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

// Package sqldb provides an engine implementation on top of [database/sql] drivers.
//
// Each Engine pins a single driver connection, so the engine sees exactly
// the statements of its worker in order, including BEGIN/COMMIT/ROLLBACK.
package sqldb

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"go.uber.org/zap"

	"github.com/FerretDB/sqlasync/internal/engine"
	"github.com/FerretDB/sqlasync/internal/util/lazyerrors"
	"github.com/FerretDB/sqlasync/internal/util/observability"
	"github.com/FerretDB/sqlasync/internal/util/resource"
)

// DSNFunc builds a driver data source name for the given target and flags.
type DSNFunc func(target string, flags engine.OpenFlags) (string, error)

// ErrorFunc converts a driver error to *engine.Error.
// It returns nil for errors it does not recognize.
type ErrorFunc func(err error) *engine.Error

// NewOpts represents configuration for constructing an Opener.
type NewOpts struct {
	Driver string  // registered database/sql driver name
	DSN    DSNFunc // if nil, target is passed as-is
	Error  ErrorFunc
	L      *zap.Logger
}

// Opener opens engines with a database/sql driver.
type Opener struct {
	opts NewOpts
}

// NewOpener creates a new Opener.
func NewOpener(opts *NewOpts) (*Opener, error) {
	if opts.Driver == "" {
		return nil, lazyerrors.New("driver is not set")
	}

	o := &Opener{
		opts: *opts,
	}

	if o.opts.L == nil {
		o.opts.L = zap.NewNop()
	}

	if o.opts.DSN == nil {
		o.opts.DSN = func(target string, _ engine.OpenFlags) (string, error) { return target, nil }
	}

	return o, nil
}

// Open implements engine.Opener.
func (o *Opener) Open(ctx context.Context, target string, flags engine.OpenFlags) (engine.Engine, error) {
	defer observability.FuncCall(ctx)()

	dsn, err := o.opts.DSN(target, flags)
	if err != nil {
		return nil, engine.NewError(engine.CantOpen, err.Error())
	}

	db, err := sql.Open(o.opts.Driver, dsn)
	if err != nil {
		return nil, o.convert(err, engine.CantOpen)
	}

	db.SetConnMaxIdleTime(0)
	db.SetConnMaxLifetime(0)
	db.SetMaxIdleConns(1)
	db.SetMaxOpenConns(1)

	conn, err := db.Conn(ctx)
	if err == nil {
		err = conn.PingContext(ctx)
	}

	if err != nil {
		if conn != nil {
			_ = conn.Close()
		}

		_ = db.Close()

		return nil, o.convert(err, engine.CantOpen)
	}

	e := &Engine{
		db:      db,
		conn:    conn,
		l:       o.opts.L.Named(o.opts.Driver),
		convert: o.convert,
		stmts:   make(map[*Stmt]struct{}),
		token:   resource.NewToken(),
	}
	resource.Track(e, e.token)

	e.l.Debug("Engine opened.", zap.String("target", target), zap.Stringer("flags", flags))

	return e, nil
}

// convert returns err as *engine.Error, using def as a code for unrecognized errors.
func (o *Opener) convert(err error, def engine.Code) *engine.Error {
	if err == nil {
		return nil
	}

	if e, ok := err.(*engine.Error); ok {
		return e
	}

	if o.opts.Error != nil {
		if e := o.opts.Error(err); e != nil {
			return e
		}
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return engine.NewError(engine.Interrupt, "interrupted")
	}

	return engine.NewError(def, err.Error())
}

// Engine is an engine.Engine backed by a single database/sql connection.
//
// It is not safe for concurrent use.
type Engine struct {
	db      *sql.DB
	conn    *sql.Conn
	l       *zap.Logger
	convert func(err error, def engine.Code) *engine.Error

	begin    *sql.Stmt
	commit   *sql.Stmt
	rollback *sql.Stmt

	stmts map[*Stmt]struct{}
	token *resource.Token
}

// Prepare implements engine.Engine.
func (e *Engine) Prepare(ctx context.Context, query string) (engine.Stmt, error) {
	if strings.TrimSpace(strings.TrimRight(strings.TrimSpace(query), ";")) == "" {
		return nil, nil
	}

	start := time.Now()

	st, err := e.conn.PrepareContext(ctx, query)

	e.l.Debug(
		"Prepared.", zap.String("sql", query),
		zap.Duration("time", time.Since(start)), zap.Error(err),
	)

	if err != nil {
		return nil, e.convert(err, engine.Generic)
	}

	s := &Stmt{
		e:     e,
		query: query,
		st:    st,
	}
	e.stmts[s] = struct{}{}

	return s, nil
}

// exec executes one of the cached transaction control statements, preparing it on the first use.
func (e *Engine) exec(ctx context.Context, cached **sql.Stmt, query string) error {
	defer observability.FuncCall(ctx)()

	if *cached == nil {
		st, err := e.conn.PrepareContext(ctx, query)
		if err != nil {
			return e.convert(err, engine.Generic)
		}

		*cached = st
	}

	start := time.Now()

	e.l.Sugar().Debugf(">>> %s", query)

	_, err := (*cached).ExecContext(ctx)

	e.l.Sugar().With(zap.Duration("time", time.Since(start)), zap.Error(err)).Debugf("<<< %s", query)

	if err != nil {
		return e.convert(err, engine.Generic)
	}

	return nil
}

// Begin implements engine.Engine.
func (e *Engine) Begin(ctx context.Context) error {
	return e.exec(ctx, &e.begin, "BEGIN")
}

// Commit implements engine.Engine.
func (e *Engine) Commit(ctx context.Context) error {
	return e.exec(ctx, &e.commit, "COMMIT")
}

// Rollback implements engine.Engine.
func (e *Engine) Rollback(ctx context.Context) error {
	return e.exec(ctx, &e.rollback, "ROLLBACK")
}

// Close implements engine.Engine.
//
// It finalizes statements left open, cached transaction statements, and the connection.
func (e *Engine) Close() error {
	var errs *multierror.Error

	for s := range e.stmts {
		errs = multierror.Append(errs, s.Close())
	}

	for _, st := range []*sql.Stmt{e.begin, e.commit, e.rollback} {
		if st != nil {
			errs = multierror.Append(errs, st.Close())
		}
	}

	e.begin, e.commit, e.rollback = nil, nil, nil

	if e.conn != nil {
		errs = multierror.Append(errs, e.conn.Close())
		e.conn = nil
	}

	if e.db != nil {
		errs = multierror.Append(errs, e.db.Close())
		e.db = nil
	}

	resource.Untrack(e, e.token)

	if err := errs.ErrorOrNil(); err != nil {
		return lazyerrors.Error(err)
	}

	return nil
}

// check interfaces
var (
	_ engine.Opener = (*Opener)(nil)
	_ engine.Engine = (*Engine)(nil)
)
