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

package resource

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type trackedQueue struct {
	token *Token
	name  string
}

type untrackable struct {
	other *Token
}

func TestTrackUntrack(t *testing.T) {
	t.Parallel()

	q := &trackedQueue{token: NewToken(), name: "q"}
	before := Tracked(q)

	Track(q, q.token)
	assert.Equal(t, before+1, Tracked(q))
	assert.Contains(t, q.token.msg, "*resource.trackedQueue has not been released")

	Untrack(q, q.token)
	assert.Equal(t, before, Tracked(q))

	// second call is a no-op
	Untrack(q, q.token)
	assert.Equal(t, before, Tracked(q))
}

func TestCheckArgs(t *testing.T) {
	t.Parallel()

	token := NewToken()

	require.Panics(t, func() { Track[trackedQueue](nil, token) })
	require.Panics(t, func() { Track(&trackedQueue{token: NewToken()}, nil) })
	require.Panics(t, func() { Track(&trackedQueue{token: NewToken()}, token) })
	require.Panics(t, func() { Track(&untrackable{other: token}, token) })
}
