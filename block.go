package hexpi

import (
	"context"
	"fmt"
	"strconv"

	"github.com/memes/hexpi/pkg/cache"
)

// The number of consecutive digits calculated and cached together.
const BlockSize = 8

// Returns the index of the first digit in the block containing index.
func BlockStart(index uint64) uint64 {
	return (index / BlockSize) * BlockSize
}

// Returns the cache key used to store the block starting at start.
func BlockKey(start uint64) string {
	return strconv.FormatUint(start, 16)
}

// Returns the hexadecimal digit of pi at index by looking up the block of
// digits that contains index in the cache, calculating and storing the block if
// it is missing. The boolean result is true when the digit was served from the
// cache.
func BlockDigit(ctx context.Context, c cache.Cache, index uint64) (byte, bool, error) {
	start := BlockStart(index)
	key := BlockKey(start)
	l := logger.V(1).WithValues("index", index, "key", key)
	l.Info("BlockDigit: enter")
	digits, err := c.GetValue(ctx, key)
	if err != nil {
		return 0, false, fmt.Errorf("failed to get block %s from cache: %w", key, err)
	}
	hit := len(digits) == BlockSize
	if !hit {
		if digits != "" {
			l.Info("Ignoring malformed cache value", "value", digits)
		}
		digits, err = DigitsContext(ctx, start, BlockSize)
		if err != nil {
			return 0, false, err
		}
		if err = c.SetValue(ctx, key, digits); err != nil {
			return 0, false, fmt.Errorf("failed to set block %s in cache: %w", key, err)
		}
	}
	digit := digits[index-start]
	l.Info("BlockDigit: exit", "digit", string(digit), "hit", hit)
	return digit, hit, nil
}
