// Package observability wires up the envmgrd process diagnostics: a
// structured slog logger plus OpenTelemetry trace and metric providers.
// Traces go to an OTLP collector when one is configured and are dropped
// otherwise; metrics are always exposed through the Prometheus registry
// that /metrics serves.
package observability

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	otelprometheus "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.39.0"
)

// Config controls what New sets up.
type Config struct {
	ServiceName    string
	ServiceVersion string
	LogLevel       string // debug, info, warn, error
	LogFormat      string // text or json
	OTLPEndpoint   string // empty disables trace export
}

// Provider owns every component that needs flushing on exit.
type Provider struct {
	logger    *slog.Logger
	shutdowns []func(context.Context) error
}

// New builds the logger, installs the global OTel providers and
// propagators, and returns a Provider whose Shutdown flushes them.
func New(ctx context.Context, cfg *Config) (*Provider, *slog.Logger, error) {
	logger := NewLogger(cfg.LogLevel, cfg.LogFormat)
	p := &Provider{logger: logger}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion(cfg.ServiceVersion),
		),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("build otel resource: %w", err)
	}

	tp, err := newTraceProvider(ctx, res, cfg.OTLPEndpoint, logger)
	if err != nil {
		return nil, nil, err
	}
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	p.shutdowns = append(p.shutdowns, tp.Shutdown)

	mp, err := newMeterProvider(res)
	if err != nil {
		return nil, nil, err
	}
	otel.SetMeterProvider(mp)
	p.shutdowns = append(p.shutdowns, mp.Shutdown)

	return p, logger, nil
}

// Shutdown drains every registered component with a 10-second cap.
func (p *Provider) Shutdown(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	for _, stop := range p.shutdowns {
		if err := stop(ctx); err != nil {
			p.logger.Error("observability shutdown", "err", err)
		}
	}
}

// NewLogger builds a slog.Logger writing to stdout. Unknown levels fall
// back to info, unknown formats to JSON.
func NewLogger(level, format string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: lvl}

	if format == "text" {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}

func newTraceProvider(ctx context.Context, res *resource.Resource, endpoint string, logger *slog.Logger) (*sdktrace.TracerProvider, error) {
	opts := []sdktrace.TracerProviderOption{sdktrace.WithResource(res)}

	if endpoint == "" {
		logger.Debug("no OTLP endpoint configured, trace export disabled")
		return sdktrace.NewTracerProvider(opts...), nil
	}

	exp, err := otlptracegrpc.New(ctx,
		otlptracegrpc.WithEndpoint(endpoint),
		otlptracegrpc.WithInsecure(),
	)
	if err != nil {
		return nil, fmt.Errorf("build otlp exporter: %w", err)
	}
	return sdktrace.NewTracerProvider(append(opts, sdktrace.WithBatcher(exp))...), nil
}

func newMeterProvider(res *resource.Resource) (*sdkmetric.MeterProvider, error) {
	exp, err := otelprometheus.New()
	if err != nil {
		return nil, fmt.Errorf("build prometheus exporter: %w", err)
	}
	return sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(exp),
	), nil
}
