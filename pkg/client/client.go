// Package client implements a gRPC client that requests hexadecimal digits of
// pi from a PiService, with optional OpenTelemetry metrics and traces.
package client

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-logr/logr"
	"github.com/memes/hexpi/pkg/api"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"google.golang.org/grpc"

	// Importing this package injects xds://endpoint support into the client.
	_ "google.golang.org/grpc/xds"
)

const (
	// The default maximum timeout that will be applied to requests.
	DefaultMaxTimeout = 10 * time.Second
	// The default name to use when registering OpenTelemetry components.
	DefaultOpenTelemetryClientName = "pkg.client"
)

// Returned when a PiService responds with something other than one hexadecimal
// character.
var ErrInvalidDigit = errors.New("response does not contain a single hexadecimal digit")

// Requests digits from a PiService.
type PiClient struct {
	// The logr.Logger instance to use.
	logger logr.Logger
	// The client maximum timeout/deadline to use when making requests to a PiService.
	maxTimeout time.Duration
	// The prefix to use for metrics and spans.
	prefix string
	// A counter for the number of response errors.
	responseErrors metric.Int64Counter
	// A histogram of request durations.
	durationMs metric.Int64Histogram
}

// Defines a function signature for PiClient options.
type PiClientOption func(*PiClient)

// Create a new PiClient with optional settings.
func NewPiClient(options ...PiClientOption) (*PiClient, error) {
	client := &PiClient{
		logger:     logr.Discard(),
		maxTimeout: DefaultMaxTimeout,
		prefix:     DefaultOpenTelemetryClientName,
	}
	for _, option := range options {
		option(client)
	}
	meter := otel.Meter(DefaultOpenTelemetryClientName)
	var err error
	client.responseErrors, err = meter.Int64Counter(
		client.telemetryName("response_errors"),
		metric.WithDescription("The count of error responses received by client"),
	)
	if err != nil {
		return nil, fmt.Errorf("error returned while creating responseErrors Counter: %w", err)
	}
	client.durationMs, err = meter.Int64Histogram(
		client.telemetryName("request_duration_ms"),
		metric.WithUnit("ms"),
		metric.WithDescription("The duration (ms) of requests"),
	)
	if err != nil {
		return nil, fmt.Errorf("error returned while creating durationMs Histogram: %w", err)
	}
	return client, nil
}

// Use the supplied logr.logger.
func WithLogger(logger logr.Logger) PiClientOption {
	return func(c *PiClient) {
		c.logger = logger
	}
}

// Set the maximum timeout for client requests to a PiService.
func WithMaxTimeout(maxTimeout time.Duration) PiClientOption {
	return func(c *PiClient) {
		c.maxTimeout = maxTimeout
	}
}

// Set the prefix to use for OpenTelemetry metrics and spans.
func WithPrefix(prefix string) PiClientOption {
	return func(c *PiClient) {
		c.prefix = prefix
	}
}

// Generates a name for the metric or span.
func (c *PiClient) telemetryName(name string) string {
	if c.prefix == "" {
		return name
	}
	return c.prefix + "." + name
}

// Use the gRPC connection to retrieve a single hexadecimal fractional digit of
// pi at the zero-based index.
func (c *PiClient) FetchDigit(ctx context.Context, conn grpc.ClientConnInterface, index uint64) (byte, error) {
	logger := c.logger.V(1).WithValues("index", index)
	logger.Info("FetchDigit: enter")
	attributes := []attribute.KeyValue{
		attribute.String(c.telemetryName("index"), fmt.Sprintf("%d", index)),
	}
	ctx, span := otel.Tracer(DefaultOpenTelemetryClientName).Start(ctx, c.telemetryName("FetchDigit"))
	defer span.End()
	span.SetAttributes(attributes...)
	ctx, cancel := context.WithTimeout(ctx, c.maxTimeout)
	defer cancel()
	startTimestamp := time.Now()
	span.AddEvent("Calling GetDigit")
	response, err := api.NewPiServiceClient(conn).GetDigit(ctx, &api.GetDigitRequest{
		Index: index,
	})
	duration := time.Since(startTimestamp)
	if err == nil && len(response.Digit) != 1 {
		err = fmt.Errorf("%w: %q", ErrInvalidDigit, response.Digit)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		attributes = append(attributes, attribute.Bool(c.telemetryName("success"), false))
		c.responseErrors.Add(ctx, 1, metric.WithAttributes(attributes...))
		c.durationMs.Record(ctx, duration.Milliseconds(), metric.WithAttributes(attributes...))
		return 0, fmt.Errorf("failure calling GetDigit: %w", err)
	}
	attributes = append(attributes, attribute.Bool(c.telemetryName("success"), true))
	c.durationMs.Record(ctx, duration.Milliseconds(), metric.WithAttributes(attributes...))
	logger.Info("FetchDigit: exit", "digit", response.Digit, "metadata", response.Metadata)
	return response.Digit[0], nil
}
