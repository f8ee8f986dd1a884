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

// Package queue implements result delivery from connection workers to consumers.
//
// A sync Queue is consumed by a goroutine blocking in Pop.
// An async Queue forwards its results to a Hub that coalesces wakeups
// for a host event loop; the host then calls Dispatch, which invokes
// each queue's consumer callback in strict arrival order.
//
// Every queue has exactly one concurrent consumer.
package queue

import (
	"strings"

	"github.com/FerretDB/sqlasync/internal/engine"
	"github.com/FerretDB/sqlasync/internal/types"
)

// Result is a single result of an operation: a row, or the final status.
type Result struct {
	Code    engine.Code
	Last    bool
	Columns []types.Value

	// owning queue while the result is inside the Hub; cleared on delivery
	queue *Queue
}

// NewResult returns a new result.
func NewResult(code engine.Code, last bool, columns ...types.Value) *Result {
	return &Result{
		Code:    code,
		Last:    last,
		Columns: columns,
	}
}

// NewErrorResult returns a new result for a failed operation.
// It carries a single text column with the error message.
func NewErrorResult(err error, last bool) *Result {
	code := engine.CodeOf(err)
	if code.Success() {
		code = engine.Generic
	}

	return NewResult(code, last, types.NewText(types.Copy, engine.MessageOf(err)))
}

// Err returns nil for rows and successful completions,
// and *engine.Error with the message from the first text column otherwise.
func (r *Result) Err() error {
	if r.Code.Success() || r.Code == engine.Row {
		return nil
	}

	var msg string
	if len(r.Columns) > 0 && r.Columns[0].Kind() == types.KindText {
		msg = r.Columns[0].Text()
	}

	return engine.NewError(r.Code, msg)
}

// Release releases column buffers owned by the result.
func (r *Result) Release() {
	if r == nil {
		return
	}

	types.ReleaseAll(r.Columns)
}

// String returns a human-readable representation of the result.
func (r *Result) String() string {
	var sb strings.Builder

	sb.WriteString(r.Code.String())

	if r.Last {
		sb.WriteString(" last")
	}

	for _, c := range r.Columns {
		sb.WriteByte(' ')
		sb.WriteString(c.String())
	}

	return sb.String()
}
