// Package zapotel implements observability.Observability with a zap logger
// and an OpenTelemetry SDK tracer.
package zapotel

import (
	"context"
	"errors"
	"fmt"

	"github.com/JailtonJunior94/observable-service/pkg/observability"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Provider owns the zap logger and the tracer provider.
type Provider struct {
	config         Config
	zap            *zap.Logger
	tracerProvider *sdktrace.TracerProvider
	logger         *zapLogger
	tracer         *otelTracer
}

// NewProvider builds the zap logger and the tracer provider. Spans are only
// exported when an OTLP endpoint is configured; otherwise they still carry
// ids for log correlation.
func NewProvider(ctx context.Context, config Config) (*Provider, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid observability configuration: %w", err)
	}

	zl, err := buildZap(config)
	if err != nil {
		return nil, fmt.Errorf("failed to build zap logger: %w", err)
	}

	return newProvider(ctx, config, zl)
}

// NewProviderWithCore is like NewProvider but writes logs to core. Used by tests.
func NewProviderWithCore(ctx context.Context, config Config, core zapcore.Core) (*Provider, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid observability configuration: %w", err)
	}

	return newProvider(ctx, config, zap.New(core))
}

func newProvider(ctx context.Context, config Config, zl *zap.Logger) (*Provider, error) {
	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(config.ServiceName),
			semconv.ServiceVersion(config.ServiceVersion),
			semconv.DeploymentEnvironment(config.Environment),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	opts := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(config.TraceSampleRate))),
	}

	if config.OTLPEndpoint != "" {
		exporterOpts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(config.OTLPEndpoint)}
		if config.Insecure {
			exporterOpts = append(exporterOpts, otlptracegrpc.WithInsecure())
		}

		exporter, err := otlptracegrpc.New(ctx, exporterOpts...)
		if err != nil {
			return nil, fmt.Errorf("failed to create OTLP trace exporter: %w", err)
		}
		opts = append(opts, sdktrace.WithBatcher(exporter))
	}

	tp := sdktrace.NewTracerProvider(opts...)

	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	base := zl.With(
		zap.String("service", config.ServiceName),
		zap.String("environment", config.Environment),
	)

	return &Provider{
		config:         config,
		zap:            zl,
		tracerProvider: tp,
		logger:         &zapLogger{zap: base},
		tracer:         &otelTracer{tracer: tp.Tracer(config.ServiceName)},
	}, nil
}

func (p *Provider) Tracer() observability.Tracer {
	return p.tracer
}

func (p *Provider) Logger() observability.Logger {
	return p.logger
}

// Shutdown flushes pending spans and log entries.
func (p *Provider) Shutdown(ctx context.Context) error {
	var errs error

	if err := p.tracerProvider.Shutdown(ctx); err != nil {
		errs = errors.Join(errs, fmt.Errorf("tracer provider shutdown: %w", err))
	}

	// Sync on stdout/stderr returns EINVAL on some platforms; nothing to flush there.
	_ = p.zap.Sync()

	return errs
}

func buildZap(config Config) (*zap.Logger, error) {
	var zc zap.Config
	if isProduction(config.Environment) {
		zc = zap.NewProductionConfig()
	} else {
		zc = zap.NewDevelopmentConfig()
		zc.Encoding = "json"
	}

	zc.Level = zap.NewAtomicLevelAt(toZapLevel(config.LogLevel))
	zc.OutputPaths = []string{"stdout"}
	zc.ErrorOutputPaths = []string{"stderr"}
	zc.DisableCaller = true
	zc.EncoderConfig.TimeKey = "timestamp"
	zc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return zc.Build()
}

func toZapLevel(level observability.LogLevel) zapcore.Level {
	switch level {
	case observability.LogLevelDebug:
		return zapcore.DebugLevel
	case observability.LogLevelWarn:
		return zapcore.WarnLevel
	case observability.LogLevelError:
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}
