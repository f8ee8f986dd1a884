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

package sqldb

import (
	"context"
	"database/sql"
	"time"

	"go.uber.org/zap"

	"github.com/FerretDB/sqlasync/internal/engine"
	"github.com/FerretDB/sqlasync/internal/types"
)

// Stmt is an engine.Stmt backed by [*sql.Stmt].
//
// The query runs on the first Step; rows are fetched by subsequent Steps.
type Stmt struct {
	e     *Engine
	query string
	st    *sql.Stmt
	args  []any

	rows    *sql.Rows
	dest    []any
	cols    []types.Value
	emitted bool
	done    bool
	start   time.Time
}

// Bind implements engine.Stmt.
func (s *Stmt) Bind(values []types.Value) error {
	s.args = make([]any, len(values))
	for i, v := range values {
		s.args[i] = v.Any()
	}

	return nil
}

// Step implements engine.Stmt.
//
// A busy error before the first row is reported as engine.StepBusy,
// and the next Step restarts the query.
// A busy error after some rows were returned is reported as an error,
// since restarting would duplicate them.
func (s *Stmt) Step(ctx context.Context) (engine.StepResult, error) {
	if s.done {
		return engine.StepDone, nil
	}

	if s.rows == nil {
		s.start = time.Now()
		s.e.l.Sugar().With(zap.Any("args", s.args)).Debugf(">>> %s", s.query)

		rows, err := s.st.QueryContext(ctx, s.args...)
		if err != nil {
			return s.fail(err)
		}

		s.rows = rows
	}

	if !s.rows.Next() {
		err := s.rows.Err()
		_ = s.rows.Close()
		s.rows = nil

		if err != nil {
			return s.fail(err)
		}

		s.e.l.Sugar().With(zap.Duration("time", time.Since(s.start))).Debugf("<<< %s", s.query)

		s.done = true

		return engine.StepDone, nil
	}

	if s.dest == nil {
		names, err := s.rows.Columns()
		if err != nil {
			return s.fail(err)
		}

		s.dest = make([]any, len(names))
	}

	ptrs := make([]any, len(s.dest))
	for i := range s.dest {
		s.dest[i] = nil
		ptrs[i] = &s.dest[i]
	}

	if err := s.rows.Scan(ptrs...); err != nil {
		return s.fail(err)
	}

	s.cols = make([]types.Value, len(s.dest))

	for i, v := range s.dest {
		var err error
		if s.cols[i], err = types.FromAny(v); err != nil {
			return s.fail(engine.NewError(engine.Mismatch, err.Error()))
		}
	}

	s.emitted = true

	return engine.StepRow, nil
}

// fail handles a failed Step.
func (s *Stmt) fail(err error) (engine.StepResult, error) {
	if s.rows != nil {
		_ = s.rows.Close()
		s.rows = nil
	}

	e := s.e.convert(err, engine.Generic)

	if e.Code.Primary() == engine.Busy && !s.emitted {
		s.e.l.Debug("Busy.", zap.String("sql", s.query))
		return engine.StepBusy, nil
	}

	s.e.l.Sugar().With(zap.Duration("time", time.Since(s.start)), zap.Error(e)).Debugf("<<< %s", s.query)

	s.done = true

	return 0, e
}

// Columns implements engine.Stmt.
func (s *Stmt) Columns() []types.Value {
	return s.cols
}

// Close implements engine.Stmt.
func (s *Stmt) Close() error {
	if s.rows != nil {
		_ = s.rows.Close()
		s.rows = nil
	}

	delete(s.e.stmts, s)

	if s.st == nil {
		return nil
	}

	err := s.st.Close()
	s.st = nil

	if err != nil {
		return s.e.convert(err, engine.Generic)
	}

	return nil
}

// check interfaces
var (
	_ engine.Stmt = (*Stmt)(nil)
)
