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

package registry

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"modernc.org/sqlite"
	sqlitelib "modernc.org/sqlite/lib"

	"github.com/FerretDB/sqlasync/internal/engine"
	"github.com/FerretDB/sqlasync/internal/engine/sqldb"
)

// busyTimeout is the number of milliseconds the engine waits for a lock
// before reporting a busy error to the worker.
const busyTimeout = 10

// init registers "sqlite" engine.
func init() {
	registry["sqlite"] = func(opts *NewOpenerOpts) (engine.Opener, error) {
		return sqldb.NewOpener(&sqldb.NewOpts{
			Driver: "sqlite",
			DSN:    sqliteDSN,
			Error:  sqliteError,
			L:      opts.Logger.Named("sqlite"),
		})
	}
}

// sqliteDSN returns SQLite URI for the given target and flags.
//
// Plain ":memory:" with zero flags is kept as-is.
func sqliteDSN(target string, flags engine.OpenFlags) (string, error) {
	if target == "" {
		return "", errors.New("empty database name")
	}

	if target == ":memory:" && flags == 0 {
		return target, nil
	}

	if !strings.HasPrefix(target, "file:") {
		target = "file:" + target
	}

	u, err := url.Parse(target)
	if err != nil {
		return "", err
	}

	q := u.Query()
	q.Add("_pragma", fmt.Sprintf("busy_timeout(%d)", busyTimeout))

	if mode := flags.Mode(); mode != "" {
		q.Set("mode", mode)
	}

	if cache := flags.Cache(); cache != "" {
		q.Set("cache", cache)
	}

	u.RawQuery = q.Encode()

	if u.Opaque == "" {
		u.Opaque = u.Path
	}

	return u.String(), nil
}

// sqliteError converts modernc.org/sqlite errors.
func sqliteError(err error) *engine.Error {
	var e *sqlite.Error
	if !errors.As(err, &e) {
		return nil
	}

	code := e.Code()
	msg := strings.TrimSuffix(e.Error(), fmt.Sprintf(" (%d)", code))

	if code&0xff == sqlitelib.SQLITE_BUSY {
		msg = strings.TrimSuffix(msg, " (SQLITE_BUSY)")
	}

	return engine.NewError(engine.Code(code), msg)
}
