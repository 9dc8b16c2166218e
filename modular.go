package hexpi

import (
	"errors"
	"math"
	"math/bits"
)

// ErrZeroModulus is the panic value raised by ModPow when called with a zero
// modulus.
var ErrZeroModulus = errors.New("modulus must be greater than zero")

// The ceiling used by IntPow; any product that would exceed it saturates to 0.
const intPowCeiling = math.MaxUint32 - 1

// Returns (x * y) mod m without overflowing the 64-bit intermediate product.
func mulMod(x, y, m uint64) uint64 {
	hi, lo := bits.Mul64(x, y)
	return bits.Rem64(hi, lo, m)
}

// Returns (base^exp) mod m using the right-to-left binary method. A zero
// modulus is a programming error and will panic.
func ModPow(base, exp, m uint64) uint64 {
	if m == 0 {
		panic(ErrZeroModulus)
	}
	r := 1 % m
	base %= m
	for exp > 0 {
		if exp&1 > 0 {
			r = mulMod(r, base, m)
		}
		exp >>= 1
		base = mulMod(base, base, m)
	}
	return r
}

// Returns base^exp, or 0 if the result cannot be represented as a 32-bit
// unsigned integer. The zero result is a saturation sentinel, not a wrapped
// value; IntPow(b, 0) is always 1.
func IntPow(base, exp uint64) uint64 {
	if exp == 0 {
		return 1
	}
	if base < 2 {
		return base
	}
	r := uint64(1)
	for ; exp > 0; exp-- {
		if intPowCeiling/base < r {
			return 0
		}
		r *= base
	}
	return r
}
