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

package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestNew(t *testing.T) {
	t.Parallel()

	t.Run("Console", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer

		l, err := New(zap.InfoLevel, "console", zapcore.AddSync(&buf))
		require.NoError(t, err)

		l.Named("conn").Debug("hidden")
		l.Named("conn").Info("Worker started.", zap.Int("n", 1))

		assert.NotContains(t, buf.String(), "hidden")
		assert.Contains(t, buf.String(), "INFO\tconn\t")
		assert.Contains(t, buf.String(), "Worker started.\t{\"n\": 1}\n")
	})

	t.Run("JSON", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer

		l, err := New(zap.DebugLevel, "json", zapcore.AddSync(&buf))
		require.NoError(t, err)

		l.Named("queue").Debug("Pushed.", zap.String("mode", "sync"))

		var entry map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))

		assert.Equal(t, "DEBUG", entry["L"])
		assert.Equal(t, "queue", entry["N"])
		assert.Equal(t, "Pushed.", entry["M"])
		assert.Equal(t, "sync", entry["mode"])
	})

	t.Run("Unknown", func(t *testing.T) {
		t.Parallel()

		_, err := New(zap.InfoLevel, "xml", zapcore.AddSync(new(bytes.Buffer)))
		require.Error(t, err)
	})
}
