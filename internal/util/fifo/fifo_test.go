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

package fifo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestList(t *testing.T) {
	t.Parallel()

	var l List[int]

	_, ok := l.Pop()
	assert.False(t, ok)
	assert.Nil(t, l.Drain())

	for i := range 1000 {
		l.Push(i)

		if i%3 == 2 {
			v, ok := l.Peek()
			require.True(t, ok)
			assert.Equal(t, i/3*2, v)

			v, ok = l.Pop()
			require.True(t, ok)
			assert.Equal(t, i/3*2, v)

			v, ok = l.Pop()
			require.True(t, ok)
			assert.Equal(t, i/3*2+1, v)
		}
	}

	l.PushAll([]int{1000, 1001})

	rest := l.Drain()
	require.NotEmpty(t, rest)
	assert.Equal(t, 1001, rest[len(rest)-1])

	for i := 1; i < len(rest); i++ {
		assert.Equal(t, rest[i-1]+1, rest[i])
	}

	assert.Equal(t, 0, l.Len())
}

func BenchmarkList(b *testing.B) {
	var l List[int]

	for i := range b.N {
		l.Push(i)
		l.Push(i)
		l.Pop()
		l.Pop()
	}
}
