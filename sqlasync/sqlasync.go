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

// Package sqlasync provides asynchronous, goroutine-safe access to embedded SQL databases.
//
// A Conn owns a worker goroutine that executes submitted operations in order
// and delivers their results to queues.
// Sync queues are read with blocking Pop calls.
// Async queues deliver results through a Hub to callbacks invoked by Hub.Dispatch
// on the host's event loop goroutine.
package sqlasync

import (
	"time"

	"go.uber.org/zap"

	"github.com/FerretDB/sqlasync/internal/conn"
	"github.com/FerretDB/sqlasync/internal/engine"
	"github.com/FerretDB/sqlasync/internal/engine/registry"
	"github.com/FerretDB/sqlasync/internal/queue"
	"github.com/FerretDB/sqlasync/internal/types"
	"github.com/FerretDB/sqlasync/internal/util/lazyerrors"
)

type (
	// Conn is a connection: a worker goroutine owning at most one database handle.
	Conn = conn.Conn

	// Flags are Exec flags: ownership of the SQL text combined with a chain mode.
	Flags = conn.Flags

	// CustomFunc is a function executed by the worker with direct engine access.
	CustomFunc = conn.CustomFunc

	// Metrics are connection metrics; they implement prometheus.Collector.
	Metrics = conn.Metrics

	// Queue delivers results of operations to a single consumer.
	Queue = queue.Queue

	// Callback consumes results of an async queue.
	Callback = queue.Callback

	// Hub coalesces wakeups of async queues and dispatches their results.
	Hub = queue.Hub

	// HubFunc is a Hub wakeup or schedule function.
	HubFunc = queue.HubFunc

	// Result is a single result of an operation.
	Result = queue.Result

	// Value is a tagged scalar: a bound parameter or a column.
	Value = types.Value

	// Kind is a kind of Value.
	Kind = types.Kind

	// Ownership is a buffer ownership mode of a Value.
	Ownership = types.Ownership

	// Code is a result code.
	Code = engine.Code

	// Error is an engine error carried by a failed Result.
	Error = engine.Error

	// OpenFlags are database open flags.
	OpenFlags = engine.OpenFlags

	// Engine is a database handle available to CustomFunc.
	Engine = engine.Engine

	// Stmt is a prepared statement of Engine.
	Stmt = engine.Stmt
)

// Exec flags.
const (
	Copy     = conn.Copy
	Transfer = conn.Transfer
	Static   = conn.Static

	Next   = conn.Next
	Last   = conn.Last
	Single = conn.Single
)

// Value buffer ownership modes.
const (
	CopyValue     = types.Copy
	TransferValue = types.Transfer
	StaticValue   = types.Static
)

// Value kinds.
const (
	KindNull    = types.KindNull
	KindInteger = types.KindInteger
	KindFloat   = types.KindFloat
	KindText    = types.KindText
	KindBlob    = types.KindBlob
)

// Result codes.
const (
	OK         = engine.OK
	Generic    = engine.Generic
	Abort      = engine.Abort
	Busy       = engine.Busy
	Locked     = engine.Locked
	ReadOnly   = engine.ReadOnly
	Interrupt  = engine.Interrupt
	IOErr      = engine.IOErr
	Full       = engine.Full
	CantOpen   = engine.CantOpen
	Constraint = engine.Constraint
	Misuse     = engine.Misuse
	Row        = engine.Row
	Done       = engine.Done
)

// Open flags.
const (
	OpenReadOnly     = engine.OpenReadOnly
	OpenReadWrite    = engine.OpenReadWrite
	OpenCreate       = engine.OpenCreate
	OpenURI          = engine.OpenURI
	OpenMemory       = engine.OpenMemory
	OpenSharedCache  = engine.OpenSharedCache
	OpenPrivateCache = engine.OpenPrivateCache
)

// Config represents connection configuration.
type Config struct {
	// Engine to use; see Engines. If empty, the default engine is used.
	Engine string

	// Statements are grouped into transactions committed after that timeout.
	// Zero disables grouping: every statement outside of Next chains runs in its own transaction.
	TransactionTimeout time.Duration

	// Logger to use. If nil, the global zap logger is used.
	Logger *zap.Logger

	// Metrics to update. If nil, the connection gets its own.
	Metrics *Metrics
}

// New creates a new connection and starts its worker goroutine.
//
// Destroy or Abort must be called to stop it.
func New(config *Config) (*Conn, error) {
	l := config.Logger
	if l == nil {
		l = zap.L()
	}

	name := config.Engine
	if name == "" {
		name = registry.DefaultEngine
	}

	o, err := registry.NewOpener(name, &registry.NewOpenerOpts{Logger: l})
	if err != nil {
		return nil, lazyerrors.Error(err)
	}

	c, err := conn.New(&conn.NewOpts{
		Opener:             o,
		TransactionTimeout: config.TransactionTimeout,
		L:                  l,
		Metrics:            config.Metrics,
	})
	if err != nil {
		return nil, lazyerrors.Error(err)
	}

	return c, nil
}

// Engines returns the names of engines available in this build.
func Engines() []string {
	return registry.Engines()
}

// NewMetrics creates new connection metrics that could be shared by many connections.
func NewMetrics() *Metrics {
	return conn.NewMetrics()
}

// NewSyncQueue creates a new queue consumed by blocking Pop calls.
func NewSyncQueue() *Queue {
	return queue.NewSync()
}

// NewAsyncQueue creates a new queue consumed by cb during hub's Dispatch.
//
// If each is true, cb is invoked for every result as soon as it is produced;
// otherwise, all results of an operation are delivered together after the last one.
func NewAsyncQueue(hub *Hub, each bool, cb Callback) *Queue {
	mode := queue.LastOnly
	if each {
		mode = queue.EachResult
	}

	return queue.NewAsync(hub, mode, cb)
}

// NewHub creates a new Hub.
//
// Wakeup is called (from any goroutine) when results are ready and Dispatch should be called.
// Schedule, if not nil, is called when the first operation of an idle hub is submitted.
func NewHub(wakeup, schedule HubFunc) *Hub {
	return queue.NewHub(wakeup, schedule)
}

// Push delivers r to q. It is used by CustomFunc.
func Push(q *Queue, r *Result) {
	q.Push(r)
}

// NewResult returns a new result, for use by CustomFunc.
func NewResult(code Code, last bool, columns ...Value) *Result {
	return queue.NewResult(code, last, columns...)
}

// NewErrorResult returns a new result for a failed operation, for use by CustomFunc.
func NewErrorResult(err error, last bool) *Result {
	return queue.NewErrorResult(err, last)
}

// NewError returns a new *Error.
func NewError(code Code, msg string) *Error {
	return engine.NewError(code, msg)
}

// NewNull returns a Null value.
func NewNull() Value { return types.NewNull() }

// NewInteger returns an Integer value.
func NewInteger(i int64) Value { return types.NewInteger(i) }

// NewFloat returns a Float value.
func NewFloat(f float64) Value { return types.NewFloat(f) }

// NewText returns a Text value.
func NewText(own Ownership, s string) Value { return types.NewText(own, s) }

// NewBlob returns a Blob value.
func NewBlob(own Ownership, b []byte) Value { return types.NewBlob(own, b) }

// NewZeroBlob returns a Blob value of n zero bytes without a buffer.
func NewZeroBlob(n int) Value { return types.NewZeroBlob(n) }

// ParseOpenFlags parses a "|"-separated list of open flag names, such as "readwrite|create".
func ParseOpenFlags(s string) (OpenFlags, bool) {
	return engine.ParseOpenFlags(s)
}

// FromAny converts a Go value (nil, integers, bool, float64, string, []byte or time.Time) to a Value.
func FromAny(v any) (Value, error) {
	return types.FromAny(v)
}
