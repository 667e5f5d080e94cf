// Package telemetry installs the OpenTelemetry tracer provider used by the
// driver spans. Spans are written as JSON to a writer, usually stderr.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"io"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

const serviceName = "ddesim"

var ErrNilWriter = errors.New("telemetry: nil writer")

type Config struct {
	ServiceVersion string
	// Pretty indents the exported spans.
	Pretty bool
}

// Setup creates a tracer provider exporting to w and installs it globally.
// The returned function flushes pending spans and must be called before exit.
func Setup(ctx context.Context, w io.Writer, cfg Config) (shutdown func(context.Context) error, err error) {
	tp, err := NewProvider(w, cfg)
	if err != nil {
		return nil, err
	}
	otel.SetTracerProvider(tp)
	return tp.Shutdown, nil
}

// NewProvider builds a tracer provider without installing it.
func NewProvider(w io.Writer, cfg Config) (*sdktrace.TracerProvider, error) {
	if w == nil {
		return nil, ErrNilWriter
	}

	opts := []stdouttrace.Option{stdouttrace.WithWriter(w)}
	if cfg.Pretty {
		opts = append(opts, stdouttrace.WithPrettyPrint())
	}
	exporter, err := stdouttrace.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("create exporter: %w", err)
	}

	version := cfg.ServiceVersion
	if version == "" {
		version = "dev"
	}
	res := resource.NewWithAttributes(
		"",
		attribute.String("service.name", serviceName),
		attribute.String("service.version", version),
	)

	return sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	), nil
}
