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
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCode(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "BUSY", Busy.String())
	assert.Equal(t, "CONSTRAINT(2067)", Code(2067).String())
	assert.Equal(t, Constraint, Code(2067).Primary())
	assert.Equal(t, Done, Done.Primary())
	assert.Equal(t, "Code(99)", Code(99).String())
	assert.True(t, OK.Success())
	assert.True(t, Done.Success())
	assert.False(t, Row.Success())
}

func TestError(t *testing.T) {
	t.Parallel()

	err := NewError(Busy|(1<<8), "database is locked")
	wrapped := fmt.Errorf("commit: %w", err)

	assert.Equal(t, "database is locked (BUSY(261))", err.Error())
	assert.Equal(t, Code(261), CodeOf(wrapped))
	assert.Equal(t, "database is locked", MessageOf(wrapped))
	assert.True(t, IsBusy(wrapped))

	assert.Equal(t, OK, CodeOf(nil))
	assert.Equal(t, Generic, CodeOf(errors.New("other")))
	assert.Equal(t, "other", MessageOf(errors.New("other")))
	assert.False(t, IsBusy(nil))
}

func TestOpenFlags(t *testing.T) {
	t.Parallel()

	for flags, expected := range map[OpenFlags]struct {
		mode, cache, str string
	}{
		0:                                       {"", "", "default"},
		OpenReadOnly:                            {"ro", "", "readonly"},
		OpenReadWrite:                           {"rw", "", "readwrite"},
		OpenReadWrite | OpenCreate:              {"rwc", "", "readwrite|create"},
		OpenReadWrite | OpenCreate | OpenMemory: {"memory", "", "readwrite|create|memory"},
		OpenReadWrite | OpenSharedCache | OpenURI:     {"rw", "shared", "readwrite|uri|sharedcache"},
		OpenReadOnly | OpenPrivateCache | OpenNoMutex: {"ro", "private", "readonly|nomutex|privatecache"},
	} {
		assert.Equal(t, expected.mode, flags.Mode(), "%#x", int(flags))
		assert.Equal(t, expected.cache, flags.Cache(), "%#x", int(flags))
		assert.Equal(t, expected.str, flags.String(), "%#x", int(flags))

		parsed, ok := ParseOpenFlags(expected.str)
		assert.True(t, ok)
		assert.Equal(t, flags, parsed)
	}

	_, ok := ParseOpenFlags("readwrite|bogus")
	assert.False(t, ok)
}
