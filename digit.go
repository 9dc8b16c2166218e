package hexpi

import (
	"context"
	"errors"
	"fmt"
	"math"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// The maximum index for which float64 accumulation is expected to produce a
// correct digit. Larger indices are calculated, but rounding error across the
// head summation makes the result unreliable.
const PrecisionCeiling = 10_000_000

// HexAlphabet maps a value in [0, 15] to the hexadecimal character.
const HexAlphabet = "0123456789ABCDEF"

// ErrFractionOutOfRange is the panic value raised by HexDigit when the fraction
// does not produce a valid hexadecimal digit.
var ErrFractionOutOfRange = errors.New("fraction does not map to a hexadecimal digit")

// ErrIndexOverflow is returned, or raised by Digits, when a range of digits
// would extend past the largest representable index.
var ErrIndexOverflow = errors.New("digit range overflows the index")

// Returns the fractional part of 16^index * pi, in the range [0, 1).
func Fraction(index uint64) float64 {
	raw := 4.0*Series(Series1, index) -
		2.0*Series(Series4, index) -
		Series(Series5, index) -
		Series(Series6, index)
	// raw may be slightly negative; shift into (0, 2) before the final
	// reduction.
	fraction := raw - math.Trunc(raw) + 1.0
	return fraction - math.Trunc(fraction)
}

// Returns the leading hexadecimal digit of the fraction. Only the fractional
// part of the absolute value is used, so HexDigit(1.5) -> '8'. NaN and
// infinite values are a programming error and will panic.
func HexDigit(fraction float64) byte {
	if math.IsNaN(fraction) || math.IsInf(fraction, 0) {
		panic(fmt.Errorf("%w: %v", ErrFractionOutOfRange, fraction))
	}
	abs := math.Abs(fraction)
	idx := int(16.0 * (abs - math.Trunc(abs)))
	if idx < 0 || idx >= len(HexAlphabet) {
		panic(fmt.Errorf("%w: %v", ErrFractionOutOfRange, fraction))
	}
	return HexAlphabet[idx]
}

// Returns the hexadecimal character of pi at the zero-based fractional index.
// E.g. Digit(0) -> '2', Digit(3) -> 'F'.
func Digit(index uint64) byte {
	l := logger.V(1).WithValues("index", index)
	l.Info("Digit: enter")
	digit := HexDigit(Fraction(index))
	l.Info("Digit: exit", "digit", string(digit))
	return digit
}

// Returns count consecutive hexadecimal digits of pi starting at the
// zero-based fractional index start. E.g. Digits(0, 4) -> "243F".
// Panics with ErrIndexOverflow if the range extends past math.MaxUint64.
func Digits(start uint64, count uint32) string {
	if err := ValidateRange(start, count); err != nil {
		panic(err)
	}
	digits := make([]byte, count)
	for i := range digits {
		digits[i] = Digit(start + uint64(i))
	}
	return string(digits)
}

// Calculates the same result as Digits with each digit computed in its own
// goroutine, limited to GOMAXPROCS concurrent calculations. An error is
// returned if the range extends past math.MaxUint64, or if ctx is cancelled
// before all digits are calculated.
func DigitsContext(ctx context.Context, start uint64, count uint32) (string, error) {
	l := logger.V(1).WithValues("start", start, "count", count)
	l.Info("DigitsContext: enter")
	if err := ValidateRange(start, count); err != nil {
		return "", err
	}
	digits := make([]byte, count)
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i := range digits {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err //nolint:wrapcheck // Cancellation is returned as-is
			}
			digits[i] = Digit(start + uint64(i))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return "", fmt.Errorf("digit calculation did not complete: %w", err)
	}
	result := string(digits)
	l.Info("DigitsContext: exit", "result", result)
	return result, nil
}

// Returns ErrIndexOverflow if any index in [start, start+count) is larger than
// math.MaxUint64.
func ValidateRange(start uint64, count uint32) error {
	if count > 0 && start > math.MaxUint64-uint64(count-1) {
		return fmt.Errorf("%w: start %d, count %d", ErrIndexOverflow, start, count)
	}
	return nil
}
