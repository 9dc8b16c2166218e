package main

import (
	"bytes"
	"fmt"
	"math"
	"strings"
	"testing"

	"github.com/memes/hexpi"
)

func TestDigitsCmd(t *testing.T) {
	tests := []struct {
		args     []string
		expected string
	}{
		{[]string{"digits", "--count", "4"}, "3.243F"},
		{[]string{"digits", "--start", "4", "--count", "4"}, "6A88"},
		{[]string{"digits", "--start", "0", "--count", "8", "--parallel"}, "3.243F6A88"},
	}
	for _, test := range tests {
		t.Run(strings.Join(test.args, " "), func(t *testing.T) {
			rootCmd, err := NewRootCmd()
			if err != nil {
				t.Fatalf("Error building commands: %v", err)
			}
			var out bytes.Buffer
			rootCmd.SetOut(&out)
			rootCmd.SetArgs(test.args)
			if err := rootCmd.Execute(); err != nil {
				t.Fatalf("Error executing command: %v", err)
			}
			if actual := strings.TrimSpace(out.String()); actual != test.expected {
				t.Errorf("expected %s got %s", test.expected, actual)
			}
		})
	}
}

func TestExceedsPrecisionCeiling(t *testing.T) {
	tests := []struct {
		start    uint64
		count    uint32
		expected bool
	}{
		{0, 0, false},
		{0, 32, false},
		{hexpi.PrecisionCeiling, 1, false},
		{hexpi.PrecisionCeiling, 2, true},
		{hexpi.PrecisionCeiling + 1, 0, false},
		{hexpi.PrecisionCeiling + 1, 1, true},
		{0, math.MaxUint32, true},
		{math.MaxUint64 - 1, 1, true},
		{math.MaxUint64, 1, true},
	}
	for _, test := range tests {
		t.Run(fmt.Sprintf("start=%d,count=%d", test.start, test.count), func(t *testing.T) {
			if actual := exceedsPrecisionCeiling(test.start, test.count); actual != test.expected {
				t.Errorf("expected %t got %t", test.expected, actual)
			}
		})
	}
}
