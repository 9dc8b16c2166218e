package hexpi

import (
	"math"
)

// SeriesConstant identifies one of the four summations combined by the
// Bailey-Borwein-Plouffe formula.
type SeriesConstant uint64

const (
	Series1 SeriesConstant = 1
	Series4 SeriesConstant = 4
	Series5 SeriesConstant = 5
	Series6 SeriesConstant = 6
)

// Adds term to the partial sum and discards the integer part, keeping the
// running sum in [0, 1).
func accumulate(sum, term float64) float64 {
	sum += term
	return sum - math.Trunc(sum)
}

// Sums 16^(index-k) mod (8k+m) / (8k+m) for k in [0, index).
func headSum(m SeriesConstant, index uint64) float64 {
	var sum float64
	for k := uint64(0); k < index; k++ {
		denominator := 8*k + uint64(m)
		sum = accumulate(sum, float64(ModPow(16, index-k, denominator))/float64(denominator))
	}
	return sum
}

// Sums 1 / (16^k * (8(k+index)+m)) until 16^k saturates IntPow; the remaining
// terms are below float64 precision for the leading digit.
func tailSum(m SeriesConstant, index uint64) float64 {
	var sum float64
	for k := uint64(0); ; k++ {
		scale := IntPow(16, k)
		if scale == 0 {
			break
		}
		sum = accumulate(sum, 1.0/(float64(scale)*(8.0*float64(k+index)+float64(m))))
	}
	return sum
}

// Returns the value of a single BBP summation for the digit at index; the
// result is the sum of the head and tail partial sums and may exceed 1.
func Series(m SeriesConstant, index uint64) float64 {
	l := logger.V(2).WithValues("m", m, "index", index)
	l.Info("Series: enter")
	result := headSum(m, index) + tailSum(m, index)
	l.Info("Series: exit", "result", result)
	return result
}
