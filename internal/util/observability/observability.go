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

// Package observability provides abstractions for tracing, metrics, etc.
package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	otelsdkresource "go.opentelemetry.io/otel/sdk/resource"
	otelsdktrace "go.opentelemetry.io/otel/sdk/trace"
	otelsemconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/FerretDB/sqlasync/internal/util/lazyerrors"
)

// tracerName is the instrumentation scope name.
const tracerName = "github.com/FerretDB/sqlasync"

// ShutdownFunc flushes pending spans and shuts down the tracer provider.
type ShutdownFunc func(context.Context) error

// SetupOtel sets up OTLP HTTP exporter and installs the global tracer provider.
//
// If endpoint is empty, nothing is set up and both return values are nil.
func SetupOtel(service, endpoint string) (ShutdownFunc, error) {
	if endpoint == "" {
		return nil, nil
	}

	tp, err := newTracerProvider(service, endpoint)
	if err != nil {
		return nil, lazyerrors.Error(err)
	}

	otel.SetTracerProvider(tp)

	return tp.Shutdown, nil
}

// newTracerProvider returns a tracer provider exporting spans to the given OTLP HTTP endpoint.
func newTracerProvider(service, endpoint string) (*otelsdktrace.TracerProvider, error) {
	exporter, err := otlptracehttp.New(
		context.Background(),
		otlptracehttp.WithEndpoint(endpoint),
		otlptracehttp.WithInsecure(),
	)
	if err != nil {
		return nil, err
	}

	tp := otelsdktrace.NewTracerProvider(
		otelsdktrace.WithBatcher(exporter, otelsdktrace.WithBatchTimeout(time.Second)),
		otelsdktrace.WithSampler(otelsdktrace.AlwaysSample()),
		otelsdktrace.WithResource(otelsdkresource.NewSchemaless(
			otelsemconv.ServiceNameKey.String(service),
		)),
	)

	return tp, nil
}

// StartSpan starts a new span using the global tracer provider.
//
// Spans are no-ops unless the host program installs a tracer provider.
func StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, name, trace.WithAttributes(attrs...))
}

// EndSpan records the error (if any) and ends the span.
func EndSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}

	span.End()
}
