package main

import (
	"bytes"
	"context"
	"net"
	"strings"
	"testing"

	"github.com/memes/hexpi/pkg/server"
)

// Starts a PiService on a loopback port, returning the address.
func startPiServer(t *testing.T, options ...server.PiServerOption) string {
	t.Helper()
	piServer, err := server.NewPiServer(options...)
	if err != nil {
		t.Fatalf("Error calling NewPiServer: %v", err)
	}
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Error creating listener: %v", err)
	}
	grpcServer := piServer.NewGrpcServer()
	go func() {
		_ = grpcServer.Serve(listener)
	}()
	t.Cleanup(grpcServer.Stop)
	return listener.Addr().String()
}

func TestNewRestServer(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	piServer, err := server.NewPiServer()
	if err != nil {
		t.Fatalf("Error calling NewPiServer: %v", err)
	}
	t.Run("disabled", func(t *testing.T) {
		restServer, err := newRestServer(ctx, piServer, "127.0.0.1:8443", "")
		if err != nil {
			t.Errorf("Unexpected error: %v", err)
		}
		if restServer != nil {
			t.Errorf("Expected nil server, got %v", restServer)
		}
	})
	t.Run("enabled", func(t *testing.T) {
		restServer, err := newRestServer(ctx, piServer, "127.0.0.1:8443", "127.0.0.1:8080")
		if err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
		if restServer == nil || restServer.Addr != "127.0.0.1:8080" || restServer.Handler == nil {
			t.Errorf("Unexpected REST server %v", restServer)
		}
	})
	t.Run("invalid gRPC target", func(t *testing.T) {
		restServer, err := newRestServer(ctx, piServer, "127.0.0.1:8443\x7f", "127.0.0.1:8080")
		if err == nil {
			t.Errorf("Expected an error, got server %v", restServer)
		}
	})
}

func TestServerCmd_RestGatewayError(t *testing.T) {
	rootCmd, err := NewRootCmd()
	if err != nil {
		t.Fatalf("Error building commands: %v", err)
	}
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs([]string{"server", "--address", "127.0.0.1:0\x7f", "--rest-address", "127.0.0.1:0"})
	err = rootCmd.Execute()
	if err == nil || !strings.Contains(err.Error(), "REST gateway") {
		t.Errorf("Expected a REST gateway error, got %v", err)
	}
}
