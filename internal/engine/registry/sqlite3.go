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

//go:build sqlasync_sqlite3 && cgo

package registry

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/mattn/go-sqlite3"

	"github.com/FerretDB/sqlasync/internal/engine"
	"github.com/FerretDB/sqlasync/internal/engine/sqldb"
)

// init registers "sqlite3" engine.
func init() {
	registry["sqlite3"] = func(opts *NewOpenerOpts) (engine.Opener, error) {
		return sqldb.NewOpener(&sqldb.NewOpts{
			Driver: "sqlite3",
			DSN:    sqlite3DSN,
			Error:  sqlite3Error,
			L:      opts.Logger.Named("sqlite3"),
		})
	}
}

// sqlite3DSN returns go-sqlite3 DSN for the given target and flags.
func sqlite3DSN(target string, flags engine.OpenFlags) (string, error) {
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
	q.Set("_busy_timeout", fmt.Sprint(busyTimeout))

	if mode := flags.Mode(); mode != "" {
		q.Set("mode", mode)
	}

	if cache := flags.Cache(); cache != "" {
		q.Set("cache", cache)
	}

	if flags&engine.OpenFullMutex != 0 {
		q.Set("_mutex", "full")
	} else if flags&engine.OpenNoMutex != 0 {
		q.Set("_mutex", "no")
	}

	u.RawQuery = q.Encode()

	if u.Opaque == "" {
		u.Opaque = u.Path
	}

	return u.String(), nil
}

// sqlite3Error converts github.com/mattn/go-sqlite3 errors.
func sqlite3Error(err error) *engine.Error {
	var e sqlite3.Error
	if !errors.As(err, &e) {
		return nil
	}

	code := engine.Code(e.Code)
	if e.ExtendedCode != 0 {
		code = engine.Code(e.ExtendedCode)
	}

	return engine.NewError(code, e.Error())
}
