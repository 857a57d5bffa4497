// Package otel wires OpenTelemetry tracing for ledger calls and the HTTP surface.
package otel

import (
	"context"
	"log/slog"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/sustena-platforms/julctl"

// Init installs a batching OTLP/HTTP tracer provider. With an empty endpoint the
// global no-op provider stays in place. The returned function flushes and stops it.
func Init(ctx context.Context, endpoint, serviceName string) func(context.Context) error {
	if endpoint == "" {
		return func(context.Context) error { return nil }
	}
	exp, err := otlptracehttp.New(ctx, otlptracehttp.WithEndpoint(endpoint), otlptracehttp.WithInsecure())
	if err != nil {
		slog.Warn("OTLP exporter init failed, tracing disabled", "endpoint", endpoint, "error", err)
		return func(context.Context) error { return nil }
	}
	tp := sdktrace.NewTracerProvider(sdktrace.WithBatcher(exp))
	otel.SetTracerProvider(tp)
	slog.Info("Tracing enabled", "endpoint", endpoint, "service", serviceName)
	return tp.Shutdown
}

// Tracer returns the tracer used by the client packages.
func Tracer() trace.Tracer {
	return otel.Tracer(instrumentationName)
}

// Middleware starts one span per HTTP request.
func Middleware(serviceName string) gin.HandlerFunc {
	tracer := otel.Tracer(serviceName)
	return func(c *gin.Context) {
		ctx, span := tracer.Start(c.Request.Context(), c.Request.Method+" "+c.FullPath())
		defer span.End()
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
