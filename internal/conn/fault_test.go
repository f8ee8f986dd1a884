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
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/FerretDB/sqlasync/internal/engine"
	"github.com/FerretDB/sqlasync/internal/engine/registry"
	"github.com/FerretDB/sqlasync/internal/util/testutil"
)

// faults configures errors injected into engines opened by faultOpener.
type faults struct {
	mu         sync.Mutex
	commitErrs []error // returned by the next Commit calls, in order
	busySteps  int     // number of the next Step calls returning StepBusy
	commits    int
	rollbacks  int
}

// setCommitErrs sets errors returned by the next Commit calls.
func (f *faults) setCommitErrs(errs ...error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.commitErrs = errs
}

// setBusySteps sets the number of the next Step calls returning StepBusy.
func (f *faults) setBusySteps(n int) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.busySteps = n
}

// counts returns the numbers of successful commits and rollbacks.
func (f *faults) counts() (commits, rollbacks int) {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.commits, f.rollbacks
}

// faultOpener wraps the default opener.
type faultOpener struct {
	engine.Opener
	f *faults
}

// Open implements engine.Opener.
func (o *faultOpener) Open(ctx context.Context, target string, flags engine.OpenFlags) (engine.Engine, error) {
	e, err := o.Opener.Open(ctx, target, flags)
	if err != nil {
		return nil, err
	}

	return &faultEngine{Engine: e, f: o.f}, nil
}

// faultEngine wraps an engine with injected errors.
type faultEngine struct {
	engine.Engine
	f *faults
}

// Prepare implements engine.Engine.
func (e *faultEngine) Prepare(ctx context.Context, sql string) (engine.Stmt, error) {
	st, err := e.Engine.Prepare(ctx, sql)
	if st == nil || err != nil {
		return st, err
	}

	return &faultStmt{Stmt: st, f: e.f}, nil
}

// Commit implements engine.Engine.
func (e *faultEngine) Commit(ctx context.Context) error {
	e.f.mu.Lock()

	if len(e.f.commitErrs) > 0 {
		err := e.f.commitErrs[0]
		e.f.commitErrs = e.f.commitErrs[1:]
		e.f.mu.Unlock()

		return err
	}

	e.f.commits++
	e.f.mu.Unlock()

	return e.Engine.Commit(ctx)
}

// Rollback implements engine.Engine.
func (e *faultEngine) Rollback(ctx context.Context) error {
	e.f.mu.Lock()
	e.f.rollbacks++
	e.f.mu.Unlock()

	return e.Engine.Rollback(ctx)
}

// faultStmt wraps a statement with injected busy steps.
type faultStmt struct {
	engine.Stmt
	f *faults
}

// Step implements engine.Stmt.
func (s *faultStmt) Step(ctx context.Context) (engine.StepResult, error) {
	s.f.mu.Lock()

	if s.f.busySteps > 0 {
		s.f.busySteps--
		s.f.mu.Unlock()

		return engine.StepBusy, nil
	}

	s.f.mu.Unlock()

	return s.Stmt.Step(ctx)
}

// newFaultOpener returns a new opener for the default engine with fault injection.
func newFaultOpener(t testing.TB) (*faultOpener, *faults) {
	t.Helper()

	o, err := registry.NewOpener(registry.DefaultEngine, &registry.NewOpenerOpts{Logger: testutil.Logger(t)})
	require.NoError(t, err)

	f := new(faults)

	return &faultOpener{Opener: o, f: f}, f
}

// check interfaces
var (
	_ engine.Opener = (*faultOpener)(nil)
	_ engine.Engine = (*faultEngine)(nil)
	_ engine.Stmt   = (*faultStmt)(nil)
)
