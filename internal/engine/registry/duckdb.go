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

//go:build sqlasync_duckdb

package registry

import (
	"errors"
	"strings"

	"github.com/duckdb/duckdb-go/v2"

	"github.com/FerretDB/sqlasync/internal/engine"
	"github.com/FerretDB/sqlasync/internal/engine/sqldb"
)

// init registers "duckdb" engine.
func init() {
	registry["duckdb"] = func(opts *NewOpenerOpts) (engine.Opener, error) {
		return sqldb.NewOpener(&sqldb.NewOpts{
			Driver: "duckdb",
			DSN:    duckdbDSN,
			Error:  duckdbError,
			L:      opts.Logger.Named("duckdb"),
		})
	}
}

// duckdbDSN returns DuckDB DSN for the given target and flags.
//
// An empty path opens an in-memory database.
func duckdbDSN(target string, flags engine.OpenFlags) (string, error) {
	if target == ":memory:" || flags&engine.OpenMemory != 0 {
		target = ""
	}

	target = strings.TrimPrefix(target, "file:")

	if flags&engine.OpenReadOnly != 0 {
		return target + "?access_mode=read_only", nil
	}

	return target, nil
}

// duckdbError converts DuckDB errors.
//
// DuckDB reports write-write conflicts as transaction errors; they are mapped to busy errors.
func duckdbError(err error) *engine.Error {
	var e *duckdb.Error
	if !errors.As(err, &e) {
		return nil
	}

	code := engine.Generic

	switch e.Type {
	case duckdb.ErrorTypeTransaction:
		code = engine.Busy
	case duckdb.ErrorTypeConstraint:
		code = engine.Constraint
	case duckdb.ErrorTypeParser, duckdb.ErrorTypeCatalog, duckdb.ErrorTypeBinder:
		code = engine.Generic
	case duckdb.ErrorTypeInterrupt:
		code = engine.Interrupt
	case duckdb.ErrorTypeIO:
		code = engine.IOErr
	case duckdb.ErrorTypeOutOfMemory:
		code = engine.NoMem
	case duckdb.ErrorTypeMismatchType, duckdb.ErrorTypeConversion:
		code = engine.Mismatch
	}

	return engine.NewError(code, e.Msg)
}
