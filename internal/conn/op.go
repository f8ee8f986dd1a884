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
	"github.com/FerretDB/sqlasync/internal/engine"
	"github.com/FerretDB/sqlasync/internal/queue"
	"github.com/FerretDB/sqlasync/internal/types"
)

//go:generate ../../bin/stringer -linecomment -type opKind

// opKind represents the kind of operation.
type opKind int

// Operation kinds.
const (
	_ opKind = iota

	opExec   // exec
	opOpen   // open
	opClose  // close
	opQuit   // quit
	opCustom // custom

	opKindCount
)

// CustomFunc is a function executed by the connection worker with direct access to the engine.
//
// The engine is nil if no database is open.
// It must push its own results to q, exactly one of them with Last set.
// Values are passed exactly as submitted; the callback owns them.
type CustomFunc func(c *Conn, e engine.Engine, q *queue.Queue, values []types.Value)

// op represents a pending operation.
//
//nolint:vet // for readability
type op struct {
	kind  opKind
	chain Flags

	sql    string // SQL text for exec, target for open
	values []types.Value

	q    *queue.Queue
	errq *queue.Queue // secondary queue for open

	flags engine.OpenFlags // for open
	fn    CustomFunc
}

// forcesCommit returns true if the current transaction must be committed before the operation runs.
func (o *op) forcesCommit() bool {
	switch o.kind {
	case opOpen, opClose, opQuit, opCustom:
		return true
	case opExec:
		return o.chain == Single
	default:
		panic("unreachable")
	}
}

// release releases owned buffers of bound values.
func (o *op) release() {
	types.ReleaseAll(o.values)
	o.values = nil
}
