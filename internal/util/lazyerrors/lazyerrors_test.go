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

package lazyerrors

import (
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocation(t *testing.T) {
	t.Parallel()

	err := New("boom")
	assert.Regexp(t, `^\[lazyerrors_test\.go:\d+ lazyerrors\.TestLocation\] boom$`, err.Error())

	wrapped := Errorf("open %q: %w", "db", err)
	assert.True(t, strings.HasPrefix(wrapped.Error(), "[lazyerrors_test.go:"))
	assert.Contains(t, wrapped.Error(), `open "db": [lazyerrors_test.go:`)
	assert.True(t, errors.Is(wrapped, err))
}

func TestError(t *testing.T) {
	t.Parallel()

	err := Error(io.EOF)
	assert.True(t, errors.Is(err, io.EOF))
	assert.Equal(t, io.EOF, UnwrapAll(err))
	assert.Nil(t, UnwrapAll(nil))

	require.Panics(t, func() {
		_ = Error(nil)
	})
}

var drain any

func BenchmarkNew(b *testing.B) {
	for i := 0; i < b.N; i++ {
		drain = New("err")
	}

	b.StopTimer()

	assert.NotNil(b, drain)
}
