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

// Package engine defines the boundary between sqlasync and an embedded SQL engine.
//
// The engine is a black box consumed by a connection's worker goroutine only:
// implementations do not need to be safe for concurrent use.
// Status codes follow SQLite's result codes, since that is the engine family sqlasync targets;
// other backends map their errors onto them.
package engine

import (
	"context"

	"github.com/FerretDB/sqlasync/internal/types"
)

// StepResult is the outcome of a successful Stmt.Step call.
type StepResult int

// Step results.
const (
	// StepRow means a row is available through Stmt.Columns.
	StepRow StepResult = iota + 1

	// StepDone means the statement has finished.
	StepDone

	// StepBusy means the engine could not acquire a lock;
	// the same Stmt may be stepped again without losing or duplicating rows.
	StepBusy
)

// Opener opens engine handles.
type Opener interface {
	// Open opens the database identified by target.
	// Zero flags mean the engine's default (read-write, create if missing).
	// Returned errors should be *Error.
	Open(ctx context.Context, target string, flags OpenFlags) (Engine, error)
}

// Engine is an open database handle.
type Engine interface {
	// Prepare compiles a single statement.
	// It returns a nil Stmt and nil error for empty text.
	Prepare(ctx context.Context, sql string) (Stmt, error)

	// Begin, Commit and Rollback control the transaction.
	// Implementations prepare them once and reuse them.
	Begin(ctx context.Context) error
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error

	// Close finalizes cached statements and closes the handle.
	Close() error
}

// Stmt is a prepared statement.
type Stmt interface {
	// Bind binds values to parameters 1..len(values).
	Bind(values []types.Value) error

	// Step advances the statement.
	Step(ctx context.Context) (StepResult, error)

	// Columns returns the values of the current row.
	Columns() []types.Value

	// Close finalizes the statement.
	Close() error
}
