package monitor

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// TracerName is the instrumentation scope of kernel spans.
const TracerName = "github.com/abm-sim/abm-sim/sim"

// TracingConfig governs how run tracing is initialised.
type TracingConfig struct {
	Enabled     bool
	ServiceName string
	Writer      io.Writer // stdout exporter destination; os.Stderr when nil
}

// InitTracing builds a tracer provider from cfg. It returns a shutdown
// function that flushes pending spans. The provider is not installed
// globally; hand it to New via WithTracerProvider.
func InitTracing(ctx context.Context, cfg TracingConfig) (trace.TracerProvider, func(context.Context) error, error) {
	if !cfg.Enabled {
		return noop.NewTracerProvider(), func(context.Context) error { return nil }, nil
	}

	w := cfg.Writer
	if w == nil {
		w = os.Stderr
	}
	exp, err := stdouttrace.New(
		stdouttrace.WithWriter(w),
		stdouttrace.WithoutTimestamps(),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("create stdout exporter: %w", err)
	}

	service := cfg.ServiceName
	if service == "" {
		service = "abm-sim"
	}
	res := resource.NewSchemaless(attribute.String("service.name", service))

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSyncer(exp),
		sdktrace.WithResource(res),
	)
	return tp, tp.Shutdown, nil
}

// ShutdownWithTimeout invokes shutdown with a bounded timeout.
func ShutdownWithTimeout(ctx context.Context, shutdown func(context.Context) error) error {
	if shutdown == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return shutdown(ctx)
}
