package main

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/memes/hexpi/pkg/client"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
)

const (
	ClientServiceName       = "client"
	MaxTimeoutFlagName      = "max-timeout"
	AuthorityFlagName       = "authority"
	InsecureFlagName        = "insecure"
	ConcurrencyFlagName     = "concurrency"
	DefaultMaxTimeout       = 10 * time.Second
	DefaultConcurrency      = 16
	DefaultClientDigitCount = 100
	failedDigit             = '-'
)

// Implements the client sub-command which attempts to connect to one or
// more pi server instances and build up the digits of pi through multiple
// requests.
func NewClientCmd() *cobra.Command {
	clientCmd := &cobra.Command{
		Use:   ClientServiceName + " target [target]",
		Short: "Run a gRPC PiService client to request, collate, and print hexadecimal digits of pi",
		Long: `Launches a gRPC client that will connect to PiService target(s) and request the hexadecimal fractional digits of pi.

At least one target endpoint must be provided; requests are distributed across the targets in a random order. Metrics and traces will be sent to an OpenTelemetry collection endpoint, if specified.`,
		Args:    cobra.MinimumNArgs(1),
		PreRunE: bindLocalFlags,
		RunE:    clientMain,
	}
	clientCmd.Flags().Uint32P(CountFlagName, "c", DefaultClientDigitCount, "The number of hexadecimal digits of pi to request")
	clientCmd.Flags().DurationP(MaxTimeoutFlagName, "m", DefaultMaxTimeout, "The maximum timeout for a PiService request")
	clientCmd.Flags().String(AuthorityFlagName, "", "Set the authoritative name of the PiService target for TLS verification, overriding hostname")
	clientCmd.Flags().Bool(InsecureFlagName, false, "Connect to PiService targets without TLS")
	clientCmd.Flags().Int(ConcurrencyFlagName, DefaultConcurrency, "The maximum number of concurrent PiService requests")
	return clientCmd
}

// Creates a gRPC connection for each endpoint.
func newClientConns(endpoints []string) ([]*grpc.ClientConn, error) {
	creds, err := newClientTransportCredentials(viper.GetBool(InsecureFlagName))
	if err != nil {
		return nil, err
	}
	options := []grpc.DialOption{
		grpc.WithTransportCredentials(creds),
		grpc.WithStatsHandler(otelgrpc.NewClientHandler()),
	}
	if authority := viper.GetString(AuthorityFlagName); authority != "" {
		options = append(options, grpc.WithAuthority(authority))
	}
	conns := make([]*grpc.ClientConn, 0, len(endpoints))
	for _, endpoint := range endpoints {
		conn, err := grpc.NewClient(endpoint, options...)
		if err != nil {
			for _, conn := range conns {
				_ = conn.Close()
			}
			return nil, fmt.Errorf("failed to create gRPC client for %s: %w", endpoint, err)
		}
		conns = append(conns, conn)
	}
	return conns, nil
}

// Client sub-command entrypoint. This function will launch gRPC requests for
// each of the fractional digits requested and print the collated result.
func clientMain(cmd *cobra.Command, endpoints []string) error {
	count := viper.GetUint32(CountFlagName)
	logger := logger.V(1).WithValues(CountFlagName, count, "endpoints", endpoints)
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	logger.V(0).Info("Preparing telemetry")
	telemetryShutdown, err := initTelemetry(ctx, ClientServiceName)
	defer func() {
		if err := telemetryShutdown(ctx); err != nil {
			logger.Error(err, "Error shutting down telemetry")
		}
	}()
	if err != nil {
		return err
	}
	conns, err := newClientConns(endpoints)
	if err != nil {
		return err
	}
	defer func() {
		for _, conn := range conns {
			_ = conn.Close()
		}
	}()
	piClient, err := client.NewPiClient(
		client.WithLogger(logger),
		client.WithMaxTimeout(viper.GetDuration(MaxTimeoutFlagName)),
		client.WithPrefix(ClientServiceName),
	)
	if err != nil {
		return fmt.Errorf("failed to create new PiClient: %w", err)
	}
	digits := make([]byte, count)
	concurrency := viper.GetInt(ConcurrencyFlagName)
	if concurrency < 1 {
		concurrency = 1
	}
	var g errgroup.Group
	g.SetLimit(concurrency)
	// Randomize the retrieval of digits
	for i, index := range rand.Perm(int(count)) {
		conn := conns[i%len(conns)]
		g.Go(func() error {
			digit, err := piClient.FetchDigit(ctx, conn, uint64(index))
			if err != nil {
				logger.Error(err, "Error fetching digit", "index", index)
				digit = failedDigit
			}
			digits[index] = digit
			return nil
		})
	}
	_ = g.Wait()
	if _, err := fmt.Fprintf(cmd.OutOrStdout(), "Result is: 3.%s\n", digits); err != nil {
		return fmt.Errorf("failure writing result: %w", err)
	}
	return nil
}
