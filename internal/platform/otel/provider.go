// Package otel wires OpenTelemetry tracing for sheetkit binaries and exposes
// the tracer used by the sheet packages.
package otel

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/louisbranch/sheetkit/internal/platform/config"
)

const instrumentationName = "github.com/louisbranch/sheetkit"

// Settings controls trace export. Env tags omit the SHEETKIT_ prefix.
type Settings struct {
	Endpoint    string  `env:"OTEL_ENDPOINT"`
	Enabled     bool    `env:"OTEL_ENABLED" envDefault:"true"`
	SampleRatio float64 `env:"OTEL_SAMPLE_RATIO" envDefault:"1"`
}

// Active reports whether spans should be exported.
func (s Settings) Active() bool {
	return s.Enabled && s.Endpoint != ""
}

// LoadSettings reads the SHEETKIT_OTEL_* variables.
func LoadSettings() (Settings, error) {
	var s Settings
	if err := config.ParseEnvPrefixed(&s, config.EnvPrefix); err != nil {
		return Settings{}, err
	}
	if s.SampleRatio < 0 || s.SampleRatio > 1 {
		return Settings{}, fmt.Errorf("otel sample ratio must be within [0, 1], got %v", s.SampleRatio)
	}
	return s, nil
}

// Setup initialises tracing for serviceName from the environment.
//
// Tracing is opt-in: without SHEETKIT_OTEL_ENDPOINT, or with
// SHEETKIT_OTEL_ENABLED=false, Setup returns a no-op shutdown function and
// the global provider stays the no-op default.
func Setup(ctx context.Context, serviceName string) (shutdown func(context.Context) error, err error) {
	s, err := LoadSettings()
	if err != nil {
		return noop, err
	}
	return SetupWithSettings(ctx, serviceName, s)
}

// SetupWithSettings installs a batching OTLP/HTTP tracer provider. The
// returned shutdown flushes pending spans and should be deferred.
func SetupWithSettings(ctx context.Context, serviceName string, s Settings) (func(context.Context) error, error) {
	if !s.Active() {
		return noop, nil
	}

	exporter, err := otlptracehttp.New(ctx, otlptracehttp.WithEndpointURL(s.Endpoint))
	if err != nil {
		return noop, fmt.Errorf("otlp exporter: %w", err)
	}
	res, err := resource.New(ctx, resource.WithAttributes(semconv.ServiceName(serviceName)))
	if err != nil {
		return noop, fmt.Errorf("otel resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(s.SampleRatio))),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.TraceContext{})
	return tp.Shutdown, nil
}

func noop(context.Context) error { return nil }

// Tracer returns the sheetkit tracer from the global provider. It is resolved
// on every call so packages pick up a provider installed after init.
func Tracer() trace.Tracer {
	return otel.Tracer(instrumentationName)
}
