package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/viper"
	gcpdetectors "go.opentelemetry.io/contrib/detectors/gcp"
	hostinstrumentation "go.opentelemetry.io/contrib/instrumentation/host"
	runtimeinstrumentation "go.opentelemetry.io/contrib/instrumentation/runtime"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/encoding/gzip"
)

const (
	metricReportingPeriod = 30 * time.Second
)

type shutdownFunction func(context.Context) error

// Create a new OpenTelemetry resource to describe the source of metrics and traces.
func newTelemetryResource(ctx context.Context, name string) (*resource.Resource, error) {
	logger := logger.V(1).WithValues("name", name)
	logger.Info("Creating new OpenTelemetry resource descriptor")
	id, err := uuid.NewRandom()
	if err != nil {
		return nil, fmt.Errorf("failed to generate UUID for telemetry resource: %w", err)
	}
	res, err := resource.New(ctx,
		resource.WithSchemaURL(semconv.SchemaURL),
		resource.WithAttributes(
			semconv.ServiceNamespaceKey.String(PackageName),
			semconv.ServiceNameKey.String(name),
			semconv.ServiceVersionKey.String(version),
			semconv.ServiceInstanceIDKey.String(id.String()),
		),
		resource.WithTelemetrySDK(),
		resource.WithHost(),
		resource.WithOS(),
		// Some process information is unknown when running in a scratch
		// container.
		resource.WithProcessPID(),
		resource.WithProcessExecutableName(),
		resource.WithProcessExecutablePath(),
		resource.WithProcessCommandArgs(),
		resource.WithProcessRuntimeName(),
		resource.WithProcessRuntimeVersion(),
		resource.WithProcessRuntimeDescription(),
		// The GCP detector is last to override the base service attributes
		resource.WithDetectors(gcpdetectors.NewDetector()),
	)
	switch {
	case errors.Is(err, resource.ErrPartialResource), errors.Is(err, resource.ErrSchemaURLConflict):
		logger.Info("OpenTelemetry resource is incomplete; continuing", "err", err)
	case err != nil:
		return nil, fmt.Errorf("failed to create new telemetry resource: %w", err)
	}
	logger.V(1).Info("OpenTelemetry resource created", "resource", res)
	return res, nil
}

// Initializes a meter provider that will periodically send OpenTelemetry
// metrics to the target provided, returning a shutdown function.
func initMetrics(ctx context.Context, target string, creds credentials.TransportCredentials, res *resource.Resource) (shutdownFunction, error) {
	logger := logger.V(1).WithValues("target", target)
	logger.V(1).Info("Creating OpenTelemetry metric handlers")
	exporter, err := otlpmetricgrpc.New(ctx,
		otlpmetricgrpc.WithEndpoint(target),
		otlpmetricgrpc.WithCompressor(gzip.Name),
		otlpmetricgrpc.WithTLSCredentials(creds),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create new metric exporter: %w", err)
	}
	provider := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(metricReportingPeriod))),
	)
	shutdown := func(ctx context.Context) error {
		if err := provider.Shutdown(ctx); err != nil {
			return fmt.Errorf("error during OpenTelemetry meter provider shutdown: %w", err)
		}
		return nil
	}
	if err = runtimeinstrumentation.Start(runtimeinstrumentation.WithMeterProvider(provider)); err != nil {
		return shutdown, fmt.Errorf("failed to start runtime metrics: %w", err)
	}
	if err = hostinstrumentation.Start(hostinstrumentation.WithMeterProvider(provider)); err != nil {
		return shutdown, fmt.Errorf("failed to start host metrics: %w", err)
	}
	otel.SetMeterProvider(provider)
	logger.V(1).Info("OpenTelemetry metric handlers created and started")
	return shutdown, nil
}

// Initializes a pipeline handler that will send OpenTelemetry spans to the target
// provided, returning a shutdown function.
func initTrace(ctx context.Context, target string, creds credentials.TransportCredentials, res *resource.Resource, sampler sdktrace.Sampler) (shutdownFunction, error) {
	logger := logger.V(1).WithValues("target", target, "sampler", sampler.Description())
	logger.V(1).Info("Creating new OpenTelemetry trace exporter")
	exporter, err := otlptracegrpc.New(ctx,
		otlptracegrpc.WithEndpoint(target),
		otlptracegrpc.WithCompressor(gzip.Name),
		otlptracegrpc.WithTLSCredentials(creds),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create new trace exporter: %w", err)
	}
	// NOTE: provider.Shutdown will shutdown every registered span processor
	// and exporter so don't add an explicit shutdown function.
	provider := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sampler),
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))
	otel.SetTracerProvider(provider)
	logger.V(1).Info("OpenTelemetry trace handlers created and started")
	return func(ctx context.Context) error {
		if err := provider.Shutdown(ctx); err != nil {
			return fmt.Errorf("error during OpenTelemetry trace provider shutdown: %w", err)
		}
		return nil
	}, nil
}

// Initializes OpenTelemetry metric and trace processing and deliver to a collector
// target, returning a function that will shutdown the background pipeline
// processes. If a collector target is not configured the returned function is
// a no-op.
func initTelemetry(ctx context.Context, name string) (shutdownFunction, error) {
	otel.SetLogger(logger)
	target := viper.GetString(OpenTelemetryTargetFlagName)
	insecure := viper.GetBool(OpenTelemetryInsecureFlagName)
	ratio := viper.GetFloat64(OpenTelemetrySamplingFlagName)
	logger := logger.V(1).WithValues("name", name, "target", target, "insecure", insecure, "ratio", ratio)
	noop := func(context.Context) error { return nil }
	if target == "" {
		logger.V(0).Info("OpenTelemetry endpoint is not set; no metrics or traces will be sent to collector")
		return noop, nil
	}
	logger.Info("Initializing OpenTelemetry")
	res, err := newTelemetryResource(ctx, name)
	if err != nil {
		return noop, err
	}
	creds, err := newClientTransportCredentials(insecure)
	if err != nil {
		return noop, err
	}
	if authority := viper.GetString(OpenTelemetryAuthorityName); authority != "" && !insecure {
		if err := creds.OverrideServerName(authority); err != nil { //nolint:staticcheck // No replacement for credentials without a dial option
			return noop, fmt.Errorf("failed to set OpenTelemetry authority: %w", err)
		}
	}
	shutdownMetrics, err := initMetrics(ctx, target, creds, res)
	if err != nil {
		if shutdownMetrics == nil {
			return noop, err
		}
		return shutdownMetrics, err
	}
	shutdownTraces, err := initTrace(ctx, target, creds, res, sdktrace.ParentBased(sdktrace.TraceIDRatioBased(ratio)))
	if err != nil {
		return shutdownMetrics, err
	}
	logger.Info("OpenTelemetry initialization complete, returning shutdown function")
	return func(ctx context.Context) error {
		return errors.Join(shutdownTraces(ctx), shutdownMetrics(ctx))
	}, nil
}
