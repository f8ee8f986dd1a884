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

// Package types provides the tagged scalar value used for statement parameters and result columns.
//
// A Value is one of five kinds that mirror the storage classes of embedded SQL engines:
//
//	Kind          Go payload   Notes
//	KindNull      -
//	KindInteger   int64
//	KindFloat     float64
//	KindText      string
//	KindBlob      []byte       a nil buffer with non-zero length is a zero-filled blob
//
// Text and blob constructors take an [Ownership] mode that describes who owns the buffer.
// Owned buffers are dropped by [Value.Release]; borrowed (Static) ones are left alone
// and must stay valid and unmodified for as long as the Value is referenced.
// That borrow contract is documented, not enforced.
package types

//go:generate ../../bin/stringer -linecomment -type Kind
//go:generate ../../bin/stringer -linecomment -type Ownership

// Kind represents the kind of Value.
type Kind uint8

// Value kinds.
const (
	KindNull    Kind = iota // null
	KindInteger             // integer
	KindFloat               // float
	KindText                // text
	KindBlob                // blob
)

// Ownership describes how a text or blob buffer passed to a constructor is managed.
type Ownership uint8

// Ownership modes.
const (
	// Copy makes an immediate copy of the buffer; the copy is owned.
	Copy Ownership = iota // copy

	// Transfer passes ownership of the buffer to the Value without copying.
	// The caller must not modify the buffer afterwards.
	Transfer // transfer

	// Static borrows the buffer; it is never released.
	// It must stay valid and unmodified for as long as it is referenced.
	Static // static
)
