package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/memes/hexpi/pkg/server"
)

func TestClientCmd(t *testing.T) {
	tests := []struct {
		name     string
		options  []server.PiServerOption
		expected string
	}{
		{
			name:     "all digits",
			expected: "Result is: 3.243F6A8885A308D3",
		},
		{
			name:     "indices beyond server maximum",
			options:  []server.PiServerOption{server.WithMaxIndex(7)},
			expected: "Result is: 3.243F6A88--------",
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			address := startPiServer(t, test.options...)
			rootCmd, err := NewRootCmd()
			if err != nil {
				t.Fatalf("Error building commands: %v", err)
			}
			var out bytes.Buffer
			rootCmd.SetOut(&out)
			rootCmd.SetArgs([]string{"client", "--insecure", "--count", "16", address})
			if err := rootCmd.Execute(); err != nil {
				t.Fatalf("Error executing command: %v", err)
			}
			if actual := strings.TrimSpace(out.String()); actual != test.expected {
				t.Errorf("expected %s got %s", test.expected, actual)
			}
		})
	}
}

func TestClientCmd_TelemetryError(t *testing.T) {
	rootCmd, err := NewRootCmd()
	if err != nil {
		t.Fatalf("Error building commands: %v", err)
	}
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs([]string{
		"client",
		"--otlp-target", "127.0.0.1:4317",
		"--cacert", "testdata/missing-ca.pem",
		"--insecure",
		"--count", "4",
		"127.0.0.1:8443",
	})
	if err := rootCmd.Execute(); err == nil {
		t.Error("Expected an error from telemetry initialization")
	}
	if strings.Contains(out.String(), "Result is") {
		t.Errorf("Unexpected result output: %s", out.String())
	}
}
