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

package observability

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
)

func TestSpans(t *testing.T) {
	t.Parallel()

	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))

	t.Cleanup(func() {
		require.NoError(t, tp.Shutdown(context.Background()))
	})

	tracer := tp.Tracer(tracerName)

	_, span := tracer.Start(context.Background(), "ok", trace.WithAttributes(attribute.String("kind", "exec")))
	EndSpan(span, nil)

	_, span = tracer.Start(context.Background(), "failed")
	EndSpan(span, errors.New("boom"))

	ended := recorder.Ended()
	require.Len(t, ended, 2)

	assert.Equal(t, "ok", ended[0].Name())
	assert.Equal(t, codes.Ok, ended[0].Status().Code)
	assert.Contains(t, ended[0].Attributes(), attribute.String("kind", "exec"))

	assert.Equal(t, "failed", ended[1].Name())
	assert.Equal(t, codes.Error, ended[1].Status().Code)
	assert.Equal(t, "boom", ended[1].Status().Description)
	require.Len(t, ended[1].Events(), 1)
}

func TestStartSpanNoop(t *testing.T) {
	t.Parallel()

	ctx, span := StartSpan(context.Background(), "noop")
	assert.NotNil(t, ctx)
	EndSpan(span, nil)

	FuncCall(ctx)()
}

func TestSetupOtel(t *testing.T) {
	t.Parallel()

	t.Run("NoEndpoint", func(t *testing.T) {
		t.Parallel()

		shutdown, err := SetupOtel("sqlasync", "")
		require.NoError(t, err)
		assert.Nil(t, shutdown)
	})

	t.Run("TracerProvider", func(t *testing.T) {
		t.Parallel()

		tp, err := newTracerProvider("sqlasync", "127.0.0.1:4318")
		require.NoError(t, err)

		_, span := tp.Tracer(tracerName).Start(context.Background(), "exported")
		EndSpan(span, nil)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		// nothing listens on the endpoint; export errors are not interesting there
		_ = tp.Shutdown(ctx)

		assert.NoError(t, tp.Shutdown(context.Background()), "second shutdown is a no-op")
	})
}
