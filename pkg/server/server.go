// Package server implements a gRPC server (and optional REST gateway) implementation
// that satisfies the PiServiceServer interface requirements, with optional
// OpenTelemetry metrics and traces.
package server

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/go-logr/logr"
	"github.com/memes/hexpi"
	"github.com/memes/hexpi/pkg/api"
	cachepkg "github.com/memes/hexpi/pkg/cache"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/xds"
)

const (
	// The default name to use when using OpenTelemetry components.
	OpenTelemetryPackageIdentifier = "pkg.server"
	// The default maximum index that will be accepted by the server.
	DefaultMaxIndex = hexpi.PrecisionCeiling
)

// Returned when a request is for an index greater than the server will calculate.
var ErrIndexTooLarge = errors.New("index is too large")

type PiServer struct {
	api.UnimplementedPiServiceServer
	// The logr.Logger implementation to use
	logger logr.Logger
	// An optional cache implementation
	cache cachepkg.Cache
	// The largest index that will be calculated
	maxIndex uint64
	// Holds the instance specific metadata that will be returned in PiService responses
	metadata *api.Metadata
	// A histogram of calculation durations
	calculationMs metric.Int64Histogram
	// A counter for the number of errors returned by cache
	cacheErrors metric.Int64Counter
	// A counter for cache hits
	cacheHits metric.Int64Counter
	// A counter for cache misses
	cacheMisses metric.Int64Counter
	// A set of gRPC ServerOptions to use
	serverOptions []grpc.ServerOption
	// A set of gRPC DialOptions to use with REST gateway gRPC client
	dialOptions []grpc.DialOption
}

// Defines the function signature for PiServer options.
type PiServerOption func(*PiServer)

// Create a new PiServer and apply any options.
func NewPiServer(options ...PiServerOption) (*PiServer, error) {
	var hostname string
	if host, err := os.Hostname(); err == nil {
		hostname = host
	} else {
		hostname = "unknown"
	}
	server := &PiServer{
		logger:   logr.Discard(),
		cache:    cachepkg.NewNoopCache(),
		maxIndex: DefaultMaxIndex,
		metadata: &api.Metadata{
			Identity:    hostname,
			Tags:        []string{},
			Annotations: map[string]string{},
		},
		serverOptions: []grpc.ServerOption{
			grpc.StatsHandler(otelgrpc.NewServerHandler()),
		},
		dialOptions: []grpc.DialOption{
			grpc.WithTransportCredentials(insecure.NewCredentials()),
			grpc.WithStatsHandler(otelgrpc.NewClientHandler()),
		},
	}
	for _, option := range options {
		option(server)
	}
	meter := otel.Meter(OpenTelemetryPackageIdentifier)
	var err error
	server.calculationMs, err = meter.Int64Histogram(
		OpenTelemetryPackageIdentifier+".calc_duration_ms",
		metric.WithUnit("ms"),
		metric.WithDescription("The duration (ms) of digit block calculations"),
	)
	if err != nil {
		return nil, fmt.Errorf("error returned while creating calculationMs Histogram: %w", err)
	}
	server.cacheErrors, err = meter.Int64Counter(
		OpenTelemetryPackageIdentifier+".cache_errors",
		metric.WithDescription("The count of error responses from digit cache"),
	)
	if err != nil {
		return nil, fmt.Errorf("error returned while creating cacheErrors Counter: %w", err)
	}
	server.cacheHits, err = meter.Int64Counter(
		OpenTelemetryPackageIdentifier+".cache_hits",
		metric.WithDescription("The count of cache hits"),
	)
	if err != nil {
		return nil, fmt.Errorf("error returned while creating cacheHits Counter: %w", err)
	}
	server.cacheMisses, err = meter.Int64Counter(
		OpenTelemetryPackageIdentifier+".cache_misses",
		metric.WithDescription("The count of cache misses"),
	)
	if err != nil {
		return nil, fmt.Errorf("error returned while creating cacheMisses Counter: %w", err)
	}
	return server, nil
}

// Use the supplied logger for the server and hexpi packages.
func WithLogger(logger logr.Logger) PiServerOption {
	return func(s *PiServer) {
		s.logger = logger
		hexpi.SetLogger(logger)
	}
}

// Use the Cache implementation to store blocks of digits to avoid
// recalculation of a digit that has already been calculated.
func WithCache(cache cachepkg.Cache) PiServerOption {
	return func(s *PiServer) {
		if cache != nil {
			s.cache = cache
		}
	}
}

// Reject requests for an index greater than maxIndex.
func WithMaxIndex(maxIndex uint64) PiServerOption {
	return func(s *PiServer) {
		s.maxIndex = maxIndex
	}
}

// Add the string tags to the server's metadata.
func WithTags(tags []string) PiServerOption {
	return func(s *PiServer) {
		if tags != nil {
			s.metadata.Tags = append(s.metadata.Tags, tags...)
		}
	}
}

// Add the key-value annotations to the server's metadata.
func WithAnnotations(annotations map[string]string) PiServerOption {
	return func(s *PiServer) {
		for k, v := range annotations {
			s.metadata.Annotations[k] = v
		}
	}
}

// Set the TransportCredentials to use for PiService gRPC listener.
func WithGRPCServerTransportCredentials(serverCredentials credentials.TransportCredentials) PiServerOption {
	return func(s *PiServer) {
		if serverCredentials != nil {
			s.serverOptions = append(s.serverOptions, grpc.Creds(serverCredentials))
		}
	}
}

// Set the TransportCredentials to use for PiService REST-to-gRPC client.
func WithRestClientGRPCTransportCredentials(restClientGRPCCredentials credentials.TransportCredentials) PiServerOption {
	return func(s *PiServer) {
		if restClientGRPCCredentials != nil {
			s.dialOptions = append(s.dialOptions, grpc.WithTransportCredentials(restClientGRPCCredentials))
		}
	}
}

// Set the authority string to use for REST-gRPC gateway calls.
func WithRestClientAuthority(restClientAuthority string) PiServerOption {
	return func(s *PiServer) {
		if restClientAuthority != "" {
			s.dialOptions = append(s.dialOptions, grpc.WithAuthority(restClientAuthority))
		}
	}
}

// Implement the PiService GetDigit RPC method.
//
//nolint:funlen // OTEL options make this function appear longer than expected.
func (s *PiServer) GetDigit(ctx context.Context, in *api.GetDigitRequest) (*api.GetDigitResponse, error) {
	logger := s.logger.WithValues("index", in.Index)
	logger.Info("GetDigit: enter")
	key := hexpi.BlockKey(hexpi.BlockStart(in.Index))
	attributes := []attribute.KeyValue{
		attribute.String(OpenTelemetryPackageIdentifier+".index", fmt.Sprintf("%d", in.Index)),
		attribute.String(OpenTelemetryPackageIdentifier+".cacheKey", key),
	}
	ctx, span := otel.Tracer(OpenTelemetryPackageIdentifier).Start(ctx, OpenTelemetryPackageIdentifier+"/GetDigit")
	defer span.End()
	span.SetAttributes(attributes...)
	if in.Index > s.maxIndex {
		err := fmt.Errorf("%w: %d must be <= %d", ErrIndexTooLarge, in.Index, s.maxIndex)
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return nil, status.Error(codes.InvalidArgument, err.Error()) //nolint:wrapcheck // Errors returned should be gRPC statuses
	}
	span.AddEvent("Checking cache")
	ts := time.Now()
	digit, hit, err := hexpi.BlockDigit(ctx, s.cache, in.Index)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, status.FromContextError(err).Err() //nolint:wrapcheck // Errors returned should be gRPC statuses
		}
		s.cacheErrors.Add(ctx, 1, metric.WithAttributes(attributes...))
		return nil, status.Error(codes.Internal, fmt.Sprintf("cache %T returned an error: %v", s.cache, err)) //nolint:wrapcheck // Errors returned should be gRPC statuses
	}
	attributes = append(attributes, attribute.Bool(OpenTelemetryPackageIdentifier+".cache_hit", hit))
	span.SetAttributes(attributes...)
	if hit {
		s.cacheHits.Add(ctx, 1, metric.WithAttributes(attributes...))
	} else {
		s.cacheMisses.Add(ctx, 1, metric.WithAttributes(attributes...))
		s.calculationMs.Record(ctx, time.Since(ts).Milliseconds(), metric.WithAttributes(attributes...))
	}
	logger.Info("GetDigit: exit", "digit", string(digit), "hit", hit)
	return &api.GetDigitResponse{
		Index:    in.Index,
		Digit:    string(digit),
		Metadata: s.metadata,
	}, nil
}

// Registers the health and PiService services with the registrar.
func (s *PiServer) register(registrar grpc.ServiceRegistrar) {
	healthServer := health.NewServer()
	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	healthServer.SetServingStatus(api.ServiceName, grpc_health_v1.HealthCheckResponse_SERVING)
	grpc_health_v1.RegisterHealthServer(registrar, healthServer)
	api.RegisterPiServiceServer(registrar, s)
}

// Create a new grpc.Server that is ready to be attached to a net.Listener.
func (s *PiServer) NewGrpcServer() *grpc.Server {
	s.logger.V(1).Info("Building a standard gRPC server")
	grpcServer := grpc.NewServer(s.serverOptions...)
	s.register(grpcServer)
	return grpcServer
}

// Create a new xds.GRPCServer that is ready to be attached to a net.Listener.
func (s *PiServer) NewXDSServer() (*xds.GRPCServer, error) {
	s.logger.V(1).Info("xDS is enabled; building an xDS aware gRPC server")
	xdsServer, err := xds.NewGRPCServer(s.serverOptions...)
	if err != nil {
		return nil, fmt.Errorf("failed to create new xDS gRPC server: %w", err)
	}
	s.register(xdsServer)
	return xdsServer, nil
}
