package hexpi

import (
	"errors"
	"fmt"
	"math"
	"testing"
)

func TestModPow(t *testing.T) {
	tests := []struct {
		base     uint64
		exp      uint64
		m        uint64
		expected uint64
	}{
		{16, 0, 7, 1},
		{16, 1, 7, 2},
		{16, 3, 9, 1},
		{2, 10, 1000, 24},
		{3, 200, 13, 9},
		{16, 5, 13, 9},
		{0, 5, 7, 0},
		{0, 0, 7, 1},
		// Products exceed 64 bits without a double-width intermediate.
		{math.MaxUint64 - 1, 2, math.MaxUint64, 1},
		{1 << 40, 3, (1 << 61) - 1, 1 << 59},
	}
	for _, test := range tests {
		t.Run(fmt.Sprintf("base=%d,exp=%d,m=%d", test.base, test.exp, test.m), func(t *testing.T) {
			t.Parallel()
			if actual := ModPow(test.base, test.exp, test.m); actual != test.expected {
				t.Errorf("expected %d got %d", test.expected, actual)
			}
		})
	}
}

// Anything mod 1 is 0.
func TestModPow_ModulusOne(t *testing.T) {
	for base := uint64(0); base < 20; base++ {
		for exp := uint64(0); exp < 20; exp++ {
			if actual := ModPow(base, exp, 1); actual != 0 {
				t.Errorf("ModPow(%d, %d, 1): expected 0 got %d", base, exp, actual)
			}
		}
	}
}

// Compare the binary method against repeated multiplication.
func TestModPow_RepeatedMultiplication(t *testing.T) {
	for m := uint64(1); m < 64; m++ {
		expected := uint64(1) % m
		for exp := uint64(0); exp < 40; exp++ {
			if actual := ModPow(16, exp, m); actual != expected {
				t.Errorf("ModPow(16, %d, %d): expected %d got %d", exp, m, expected, actual)
			}
			expected = (expected * 16) % m
		}
	}
}

func TestModPow_ZeroModulus(t *testing.T) {
	defer func() {
		r := recover()
		err, ok := r.(error)
		if !ok || !errors.Is(err, ErrZeroModulus) {
			t.Errorf("expected panic with ErrZeroModulus, got %v", r)
		}
	}()
	_ = ModPow(16, 2, 0)
}

func TestIntPow(t *testing.T) {
	tests := []struct {
		base     uint64
		exp      uint64
		expected uint64
	}{
		{0, 0, 1},
		{1, 0, 1},
		{16, 0, 1},
		{0, 1, 0},
		{0, 12, 0},
		{1, 1 << 62, 1},
		{2, 10, 1024},
		{2, 31, 1 << 31},
		{2, 32, 0},
		{2, 64, 0},
		{16, 7, 1 << 28},
		{16, 8, 0},
		{16, 100, 0},
		{65535, 2, 65535 * 65535},
		{65536, 2, 0},
		{math.MaxUint32, 1, 0},
	}
	for _, test := range tests {
		t.Run(fmt.Sprintf("base=%d,exp=%d", test.base, test.exp), func(t *testing.T) {
			t.Parallel()
			if actual := IntPow(test.base, test.exp); actual != test.expected {
				t.Errorf("expected %d got %d", test.expected, actual)
			}
		})
	}
}

func BenchmarkModPow(b *testing.B) {
	for exp := 0; exp < 8; exp++ {
		e := uint64(math.Pow10(exp))
		b.Run(fmt.Sprintf("exp=%d", e), func(b *testing.B) {
			for i := 0; i < b.N; i++ {
				_ = ModPow(16, e, 8*e+1)
			}
		})
	}
}
