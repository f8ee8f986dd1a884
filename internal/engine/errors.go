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

package engine

import (
	"errors"
	"strconv"
)

// Code is an engine result code.
//
// Extended codes are kept verbatim; use Primary to compare with the constants below.
type Code int

// Result codes.
const (
	OK         Code = 0
	Generic    Code = 1
	Internal   Code = 2
	Perm       Code = 3
	Abort      Code = 4
	Busy       Code = 5
	Locked     Code = 6
	NoMem      Code = 7
	ReadOnly   Code = 8
	Interrupt  Code = 9
	IOErr      Code = 10
	Corrupt    Code = 11
	NotFound   Code = 12
	Full       Code = 13
	CantOpen   Code = 14
	Protocol   Code = 15
	Empty      Code = 16
	Schema     Code = 17
	TooBig     Code = 18
	Constraint Code = 19
	Mismatch   Code = 20
	Misuse     Code = 21
	NoLFS      Code = 22
	Auth       Code = 23
	Format     Code = 24
	Range      Code = 25
	NotADB     Code = 26
	Notice     Code = 27
	Warning    Code = 28
	Row        Code = 100
	Done       Code = 101
)

var codeNames = map[Code]string{
	OK:         "OK",
	Generic:    "ERROR",
	Internal:   "INTERNAL",
	Perm:       "PERM",
	Abort:      "ABORT",
	Busy:       "BUSY",
	Locked:     "LOCKED",
	NoMem:      "NOMEM",
	ReadOnly:   "READONLY",
	Interrupt:  "INTERRUPT",
	IOErr:      "IOERR",
	Corrupt:    "CORRUPT",
	NotFound:   "NOTFOUND",
	Full:       "FULL",
	CantOpen:   "CANTOPEN",
	Protocol:   "PROTOCOL",
	Empty:      "EMPTY",
	Schema:     "SCHEMA",
	TooBig:     "TOOBIG",
	Constraint: "CONSTRAINT",
	Mismatch:   "MISMATCH",
	Misuse:     "MISUSE",
	NoLFS:      "NOLFS",
	Auth:       "AUTH",
	Format:     "FORMAT",
	Range:      "RANGE",
	NotADB:     "NOTADB",
	Notice:     "NOTICE",
	Warning:    "WARNING",
	Row:        "ROW",
	Done:       "DONE",
}

// Primary returns the primary code of an extended code.
func (c Code) Primary() Code {
	if c == Row || c == Done {
		return c
	}

	return c & 0xff
}

// Success returns true for codes that complete an operation without error (OK and Done).
func (c Code) Success() bool {
	return c == OK || c == Done
}

// String implements fmt.Stringer.
func (c Code) String() string {
	if name, ok := codeNames[c]; ok {
		return name
	}

	if name, ok := codeNames[c.Primary()]; ok {
		return name + "(" + strconv.Itoa(int(c)) + ")"
	}

	return "Code(" + strconv.Itoa(int(c)) + ")"
}

// Error is an engine error: a result code with a human-readable message.
type Error struct {
	Code Code
	Msg  string
}

// Error implements error interface.
func (e *Error) Error() string {
	return e.Msg + " (" + e.Code.String() + ")"
}

// NewError returns a new *Error.
func NewError(code Code, msg string) *Error {
	return &Error{Code: code, Msg: msg}
}

// CodeOf returns the result code of err:
// OK for nil, the code of *Error in the chain, Generic otherwise.
func CodeOf(err error) Code {
	if err == nil {
		return OK
	}

	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}

	return Generic
}

// MessageOf returns the message of *Error in the chain, or err.Error() otherwise.
func MessageOf(err error) string {
	if err == nil {
		return ""
	}

	var e *Error
	if errors.As(err, &e) {
		return e.Msg
	}

	return err.Error()
}

// IsBusy returns true if err is a busy error.
func IsBusy(err error) bool {
	return err != nil && CodeOf(err).Primary() == Busy
}
