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
	"encoding/hex"
	"strconv"
	"strings"

	"github.com/FerretDB/sqlasync/internal/util/lazyerrors"
	"github.com/FerretDB/sqlasync/sqlasync"
)

// parseBind parses a bound value given on the command line.
//
// NULL, integers, floats and x'hex' blobs are recognized;
// everything else is text, with surrounding single quotes removed.
func parseBind(s string) (sqlasync.Value, error) {
	if strings.EqualFold(s, "null") {
		return sqlasync.NewNull(), nil
	}

	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return sqlasync.NewInteger(i), nil
	}

	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return sqlasync.NewFloat(f), nil
	}

	if len(s) >= 3 && (s[0] == 'x' || s[0] == 'X') && s[1] == '\'' && s[len(s)-1] == '\'' {
		b, err := hex.DecodeString(s[2 : len(s)-1])
		if err != nil {
			return sqlasync.Value{}, lazyerrors.Errorf("invalid blob %q: %w", s, err)
		}

		return sqlasync.NewBlob(sqlasync.TransferValue, b), nil
	}

	if len(s) >= 2 && s[0] == '\'' && s[len(s)-1] == '\'' {
		s = s[1 : len(s)-1]
	}

	return sqlasync.NewText(sqlasync.CopyValue, s), nil
}

// convertBinds converts values decoded from YAML.
func convertBinds(binds []any) ([]sqlasync.Value, error) {
	res := make([]sqlasync.Value, len(binds))

	for i, b := range binds {
		v, err := sqlasync.FromAny(b)
		if err != nil {
			return nil, lazyerrors.Errorf("bind %d: %w", i+1, err)
		}

		res[i] = v
	}

	return res, nil
}
