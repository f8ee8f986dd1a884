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

package main

import (
	"github.com/FerretDB/sqlasync/internal/util/lazyerrors"
)

// execCmd represents the exec command.
type execCmd struct {
	SQL  []string `arg:"" help:"SQL statements, executed in order." name:"sql"`
	Bind []string `help:"Values bound to parameters of every statement: NULL, numbers, x'hex' blobs or text." short:"b"`
}

// Run executes statements, printing rows as tab-separated values to stdout and errors to stderr.
func (cmd *execCmd) Run(e *env) error {
	stmts := make([]statement, len(cmd.SQL))

	for i, sql := range cmd.SQL {
		stmts[i].SQL = sql

		for _, b := range cmd.Bind {
			v, err := parseBind(b)
			if err != nil {
				return err
			}

			stmts[i].values = append(stmts[i].values, v)
		}
	}

	a, err := newApp(e)
	if err != nil {
		return err
	}

	if err = a.exec(stmts, false); err != nil {
		a.abort()
		return lazyerrors.Error(err)
	}

	return a.close()
}
