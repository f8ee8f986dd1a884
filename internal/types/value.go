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

package types

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/FerretDB/sqlasync/internal/util/lazyerrors"
)

// TimeFormat is the text layout used when a driver returns time.Time for a column.
const TimeFormat = "2006-01-02 15:04:05.999999999-07:00"

// Value is a tagged scalar.
//
// Values are passed around by value. The zero Value is Null.
type Value struct {
	s     string
	b     []byte
	i     int64
	f     float64
	n     int // blob length
	kind  Kind
	owned bool
}

// NewNull returns a Null value.
func NewNull() Value {
	return Value{}
}

// NewInteger returns an Integer value.
func NewInteger(i int64) Value {
	return Value{kind: KindInteger, i: i}
}

// NewFloat returns a Float value.
func NewFloat(f float64) Value {
	return Value{kind: KindFloat, f: f}
}

// NewText returns a Text value managed according to the given ownership mode.
func NewText(own Ownership, s string) Value {
	if own == Copy {
		s = strings.Clone(s)
	}

	return Value{kind: KindText, s: s, owned: own != Static}
}

// NewBlob returns a Blob value managed according to the given ownership mode.
//
// A nil buffer produces a zero-length blob; see NewZeroBlob for zero-filled blobs of any length.
func NewBlob(own Ownership, b []byte) Value {
	if own == Copy && b != nil {
		b = bytes.Clone(b)
	}

	return Value{kind: KindBlob, b: b, n: len(b), owned: own != Static && b != nil}
}

// NewZeroBlob returns a Blob value of n zero bytes without allocating a buffer.
func NewZeroBlob(n int) Value {
	if n < 0 {
		n = 0
	}

	return Value{kind: KindBlob, n: n}
}

// FromAny converts a value returned by a database/sql driver to Value.
//
// Buffers are transferred, not copied: database/sql already returns fresh copies when scanning into *any.
func FromAny(v any) (Value, error) {
	switch v := v.(type) {
	case nil:
		return NewNull(), nil
	case int64:
		return NewInteger(v), nil
	case int:
		return NewInteger(int64(v)), nil
	case int32:
		return NewInteger(int64(v)), nil
	case bool:
		if v {
			return NewInteger(1), nil
		}

		return NewInteger(0), nil
	case float64:
		return NewFloat(v), nil
	case float32:
		return NewFloat(float64(v)), nil
	case string:
		return NewText(Transfer, v), nil
	case []byte:
		return NewBlob(Transfer, v), nil
	case time.Time:
		return NewText(Transfer, v.Format(TimeFormat)), nil
	default:
		return Value{}, lazyerrors.Errorf("types.FromAny: unsupported type %T", v)
	}
}

// Kind returns the kind of v.
func (v Value) Kind() Kind {
	return v.kind
}

// Owned returns true if v owns its buffer.
//
// It is always false for Null, Integer, Float, Static and zero-filled blobs.
func (v Value) Owned() bool {
	return v.owned
}

// Int returns the integer payload, or 0 for other kinds.
func (v Value) Int() int64 {
	return v.i
}

// Float returns the float payload, or 0 for other kinds.
func (v Value) Float() float64 {
	return v.f
}

// Text returns the text payload, or an empty string for other kinds.
func (v Value) Text() string {
	return v.s
}

// Blob returns the blob buffer.
//
// It is nil for zero-filled blobs created by NewZeroBlob and for other kinds.
func (v Value) Blob() []byte {
	return v.b
}

// Len returns the length in bytes of Text and Blob values, or 0 for other kinds.
func (v Value) Len() int {
	switch v.kind {
	case KindText:
		return len(v.s)
	case KindBlob:
		return v.n
	default:
		return 0
	}
}

// Any returns the payload as a value suitable for database/sql parameters.
func (v Value) Any() any {
	switch v.kind {
	case KindInteger:
		return v.i
	case KindFloat:
		return v.f
	case KindText:
		return v.s
	case KindBlob:
		if v.b == nil {
			return make([]byte, v.n)
		}

		return v.b
	default:
		return nil
	}
}

// String returns a human-readable representation of v.
//
// Text is returned as is; blobs are returned as SQL hex literals.
func (v Value) String() string {
	switch v.kind {
	case KindNull:
		return "NULL"
	case KindInteger:
		return strconv.FormatInt(v.i, 10)
	case KindFloat:
		return strconv.FormatFloat(v.f, 'g', -1, 64)
	case KindText:
		return v.s
	case KindBlob:
		if v.b == nil && v.n > 0 {
			return fmt.Sprintf("zeroblob(%d)", v.n)
		}

		return "x'" + hex.EncodeToString(v.b) + "'"
	default:
		return fmt.Sprintf("%s(?)", v.kind)
	}
}

// Disown hands the buffer over to the caller: Release will no longer drop it.
func (v *Value) Disown() {
	v.owned = false
}

// Release drops the buffer if v owns it. The kind is preserved.
func (v *Value) Release() {
	if !v.owned {
		return
	}

	v.s = ""
	v.b = nil
	v.n = 0
	v.owned = false
}

// ReleaseAll releases all values.
func ReleaseAll(values []Value) {
	for i := range values {
		values[i].Release()
	}
}
