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

// Package lazyerrors provides error wrapping that records the call site.
//
// It is used for errors that cross package boundaries inside sqlasync
// (engine setup, opener failures) where the exact origin matters more than a pretty message.
// Engine errors that travel inside results are never wrapped.
package lazyerrors

import (
	"errors"
	"fmt"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
)

// located is an error annotated with the program counter of its creator.
type located struct {
	err error
	pc  uintptr
}

// Error implements error interface.
func (e *located) Error() string {
	if e.pc == 0 {
		return e.err.Error()
	}

	f, _ := runtime.CallersFrames([]uintptr{e.pc}).Next()
	if f.File == "" {
		return "[unknown] " + e.err.Error()
	}

	_, file := filepath.Split(f.File)
	loc := file + ":" + strconv.Itoa(f.Line)

	if f.Function != "" {
		loc += " " + f.Function[strings.LastIndex(f.Function, "/")+1:]
	}

	return "[" + loc + "] " + e.err.Error()
}

// Unwrap returns the wrapped error.
func (e *located) Unwrap() error {
	return e.err
}

// caller returns the program counter of New/Error/Errorf caller.
func caller() uintptr {
	pcs := make([]uintptr, 1)

	// skip runtime.Callers, caller, and New/Error/Errorf
	if runtime.Callers(3, pcs) < 1 {
		return 0
	}

	return pcs[0]
}

// New returns a new error with the given text and the caller's location.
func New(s string) error {
	return &located{
		err: errors.New(s),
		pc:  caller(),
	}
}

// Error wraps err with the caller's location.
//
// It panics if err is nil; wrapping nil is always a bug.
func Error(err error) error {
	if err == nil {
		panic("err is nil")
	}

	return &located{
		err: err,
		pc:  caller(),
	}
}

// Errorf formats an error with [fmt.Errorf] and adds the caller's location.
func Errorf(format string, a ...any) error {
	return &located{
		err: fmt.Errorf(format, a...),
		pc:  caller(),
	}
}

// UnwrapAll returns the innermost error of the chain, or nil if err is nil.
func UnwrapAll(err error) error {
	if err == nil {
		return nil
	}

	for {
		next := errors.Unwrap(err)
		if next == nil {
			return err
		}

		err = next
	}
}
