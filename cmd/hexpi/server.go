package main

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/memes/hexpi/pkg/cache"
	"github.com/memes/hexpi/pkg/server"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
)

const (
	ServerServiceName        = "server"
	DefaultGRPCListenAddress = ":8443"
	AddressFlagName          = "address"
	RestAddressFlagName      = "rest-address"
	RedisTargetFlagName      = "redis-target"
	RedisKeyPrefixFlagName   = "redis-key-prefix"
	MemoryCacheFlagName      = "memory-cache"
	MaxIndexFlagName         = "max-index"
	TagFlagName              = "tag"
	AnnotationFlagName       = "annotation"
	XDSFlagName              = "xds"
	RestAuthorityFlagName    = "rest-authority"
	TLSClientAuthFlagName    = "tls-client-auth"
	shutdownTimeout          = 60 * time.Second
	restReadHeaderTimeout    = 10 * time.Second
)

// Implements the server sub-command.
func NewServerCmd() (*cobra.Command, error) {
	serverCmd := &cobra.Command{
		Use:   ServerServiceName,
		Short: "Run gRPC service to return hexadecimal fractional digits of pi",
		Long: `Launches a gRPC PiService server that can calculate the hexadecimal digits of pi.

A single hexadecimal digit of pi will be returned per request. Digits are calculated in blocks of eight, and an optional in-memory or Redis cache can be used to store the calculated blocks. Metrics and traces will be sent to an OpenTelemetry collection endpoint, if specified.`,
		Args:    cobra.NoArgs,
		PreRunE: bindLocalFlags,
		RunE:    serverMain,
	}
	serverCmd.Flags().StringP(AddressFlagName, "a", DefaultGRPCListenAddress, "Address to listen for gRPC PiService requests")
	serverCmd.Flags().String(RestAddressFlagName, "", "An optional listen address to launch a REST/gRPC gateway process")
	serverCmd.Flags().String(RedisTargetFlagName, "", "An optional Redis endpoint to use as a PiService cache")
	serverCmd.Flags().String(RedisKeyPrefixFlagName, "", "An optional prefix to add to every Redis cache key")
	serverCmd.Flags().Bool(MemoryCacheFlagName, false, "Cache calculated digits in memory; ignored if a Redis target is provided")
	serverCmd.Flags().Uint64(MaxIndexFlagName, server.DefaultMaxIndex, "The largest index that the PiService will calculate")
	serverCmd.Flags().StringArrayP(TagFlagName, "t", nil, "An optional tag to add to PiService response metadata; can be repeated")
	serverCmd.Flags().StringToStringP(AnnotationFlagName, "n", nil, "An optional key=value annotation to add to PiService response metadata; can be repeated")
	serverCmd.Flags().Bool(XDSFlagName, false, "Use xDS for PiService server configuration")
	serverCmd.Flags().String(RestAuthorityFlagName, "", "Set the authoritative name of the gRPC service for REST gateway TLS verification")
	serverCmd.Flags().Bool(TLSClientAuthFlagName, false, "Require PiService clients to provide a valid TLS client certificate")
	return serverCmd, nil
}

// Returns the Cache implementation to use from the configuration.
func newServerCache(ctx context.Context) cache.Cache { //nolint:ireturn // Implementation is chosen by configuration
	if redisTarget := viper.GetString(RedisTargetFlagName); redisTarget != "" {
		return cache.NewRedisCache(ctx, redisTarget, cache.WithRedisKeyPrefix(viper.GetString(RedisKeyPrefixFlagName)))
	}
	if viper.GetBool(MemoryCacheFlagName) {
		return cache.NewMemoryCache()
	}
	return cache.NewNoopCache()
}

// Returns the PiServer options that configure TLS for the gRPC listener and
// REST gateway client. If a certificate and key are not provided, both will
// operate without TLS.
func newServerTLSOptions() ([]server.PiServerOption, error) {
	certFile := viper.GetString(TLSCertFlagName)
	keyFile := viper.GetString(TLSKeyFlagName)
	if certFile == "" || keyFile == "" {
		logger.V(1).Info("TLS certificate and key are not set; PiService will not use TLS")
		return []server.PiServerOption{
			server.WithRestClientGRPCTransportCredentials(insecure.NewCredentials()),
		}, nil
	}
	certPool, err := newCACertPool(viper.GetStringSlice(CACertFlagName))
	if err != nil {
		return nil, err
	}
	serverTLSConfig, err := newTLSConfig(certFile, keyFile, certPool, nil)
	if err != nil {
		return nil, err
	}
	switch {
	case viper.GetBool(TLSClientAuthFlagName):
		serverTLSConfig.ClientAuth = tls.RequireAndVerifyClientCert
	case certPool != nil:
		serverTLSConfig.ClientAuth = tls.VerifyClientCertIfGiven
	default:
		serverTLSConfig.ClientAuth = tls.NoClientCert
	}
	restClientCreds, err := newClientTransportCredentials(false)
	if err != nil {
		return nil, err
	}
	return []server.PiServerOption{
		server.WithGRPCServerTransportCredentials(credentials.NewTLS(serverTLSConfig)),
		server.WithRestClientGRPCTransportCredentials(restClientCreds),
		server.WithRestClientAuthority(viper.GetString(RestAuthorityFlagName)),
	}, nil
}

// Returns an HTTP server for the REST/gRPC gateway that forwards to the gRPC
// PiService at grpcAddress, or nil if restAddress is empty.
func newRestServer(ctx context.Context, piServer *server.PiServer, grpcAddress, restAddress string) (*http.Server, error) {
	if restAddress == "" {
		return nil, nil //nolint:nilnil // No REST gateway was requested
	}
	restHandler, err := piServer.NewRestGatewayHandler(ctx, grpcAddress)
	if err != nil {
		return nil, fmt.Errorf("failed to create new REST gateway handler: %w", err)
	}
	return &http.Server{
		Addr:              restAddress,
		Handler:           h2c.NewHandler(restHandler, &http2.Server{}),
		ReadHeaderTimeout: restReadHeaderTimeout,
	}, nil
}

// A gRPC server that can be attached to a listener and stopped gracefully.
type grpcServer interface {
	Serve(net.Listener) error
	GracefulStop()
}

// Server sub-command entrypoint. This function will launch the gRPC PiService
// and an optional REST gateway.
//
//nolint:funlen // Lifecycle management of two listeners is clearer in one function.
func serverMain(cmd *cobra.Command, _ []string) error {
	address := viper.GetString(AddressFlagName)
	restAddress := viper.GetString(RestAddressFlagName)
	logger := logger.V(1).WithValues(AddressFlagName, address, RestAddressFlagName, restAddress)
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	logger.V(0).Info("Preparing telemetry")
	telemetryShutdown, err := initTelemetry(ctx, ServerServiceName)
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := telemetryShutdown(ctx); err != nil {
			logger.Error(err, "Error shutting down telemetry")
		}
	}()
	if err != nil {
		return err
	}

	logger.V(0).Info("Preparing services")
	serverCache := newServerCache(ctx)
	if closer, ok := serverCache.(interface{ Close() error }); ok {
		defer closer.Close()
	}
	options := []server.PiServerOption{
		server.WithLogger(logger),
		server.WithCache(serverCache),
		server.WithMaxIndex(viper.GetUint64(MaxIndexFlagName)),
		server.WithTags(viper.GetStringSlice(TagFlagName)),
		server.WithAnnotations(viper.GetStringMapString(AnnotationFlagName)),
	}
	tlsOptions, err := newServerTLSOptions()
	if err != nil {
		return err
	}
	options = append(options, tlsOptions...)
	piServer, err := server.NewPiServer(options...)
	if err != nil {
		return fmt.Errorf("failed to create new PiServer: %w", err)
	}
	var pis grpcServer
	if viper.GetBool(XDSFlagName) {
		xdsServer, err := piServer.NewXDSServer()
		if err != nil {
			return fmt.Errorf("failed to create xDS server: %w", err)
		}
		pis = xdsServer
	} else {
		pis = piServer.NewGrpcServer()
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	g, ctx := errgroup.WithContext(ctx)
	restServer, err := newRestServer(ctx, piServer, address, restAddress)
	if err != nil {
		return err
	}
	g.Go(func() error {
		logger.V(0).Info("Starting gRPC service")
		listener, err := net.Listen("tcp", address)
		if err != nil {
			return fmt.Errorf("failed to start gRPC listener: %w", err)
		}
		if err := pis.Serve(listener); err != nil {
			return fmt.Errorf("failed to start gRPC server: %w", err)
		}
		return nil
	})
	if restServer != nil {
		g.Go(func() error {
			logger.V(0).Info("Starting REST/gRPC gateway")
			if err := restServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("restServer listener returned an error: %w", err)
			}
			return nil
		})
	}
	g.Go(func() error {
		<-ctx.Done()
		logger.V(0).Info("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if restServer != nil {
			if err := restServer.Shutdown(shutdownCtx); err != nil {
				logger.Error(err, "Failed to shutdown REST gateway cleanly")
			}
		}
		pis.GracefulStop()
		return nil
	})
	return g.Wait() //nolint:wrapcheck // Errors are wrapped by each goroutine
}
