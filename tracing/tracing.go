// Package tracing wires an OpenTelemetry tracer provider with an exporter
// chosen by environment, mirroring how the logging setup selects sinks.
package tracing

import (
	"context"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/exporters/zipkin"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

const (
	// EnvDev 标准输出
	EnvDev = "DEV"
	// EnvPrd OTLP over gRPC
	EnvPrd = "PRD"
	// EnvPrdHTTP OTLP over HTTP
	EnvPrdHTTP = "PRD_HTTP"
	// EnvZipkin Zipkin collector
	EnvZipkin = "ZIPKIN"
)

// NewTracerProvider builds and registers the global tracer provider. The
// endpoint is the collector address for the PRD/ZIPKIN environments and is
// ignored for DEV.
func NewTracerProvider(ctx context.Context, env, serviceName, endpoint string) (*sdktrace.TracerProvider, error) {
	var exporter sdktrace.SpanExporter
	var err error

	switch env {
	case EnvPrd:
		exporter, err = otlptracegrpc.New(ctx, otlptracegrpc.WithEndpoint(endpoint), otlptracegrpc.WithInsecure())
	case EnvPrdHTTP:
		exporter, err = otlptracehttp.New(ctx, otlptracehttp.WithEndpoint(endpoint), otlptracehttp.WithInsecure())
	case EnvZipkin:
		exporter, err = zipkin.New(endpoint)
	default:
		exporter, err = stdouttrace.New(stdouttrace.WithPrettyPrint())
	}
	if err != nil {
		return nil, err
	}

	res := resource.NewSchemaless(
		attribute.String("service.name", serviceName),
		attribute.String("service.instance.id", uuid.New().String()),
	)

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	return tp, nil
}
