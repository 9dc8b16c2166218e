package hexpi

import (
	"context"
	"errors"
	"testing"

	"github.com/alicebob/miniredis"
	"github.com/go-logr/logr"
	"github.com/go-logr/stdr"
	"github.com/memes/hexpi/pkg/cache"
)

var errBrokenCache = errors.New("broken cache")

// A Cache implementation that always fails.
type brokenCache struct{}

func (brokenCache) GetValue(_ context.Context, _ string) (string, error) {
	return "", errBrokenCache
}

func (brokenCache) SetValue(_ context.Context, _ string, _ string) error {
	return errBrokenCache
}

func testBlockDigits(ctx context.Context, t *testing.T, c cache.Cache, expectHit bool) {
	t.Helper()
	for index := 0; index < len(PiHexDigits); index++ {
		actual, hit, err := BlockDigit(ctx, c, uint64(index))
		if err != nil {
			t.Errorf("Error calling BlockDigit: %v", err)
		}
		if actual != PiHexDigits[index] {
			t.Errorf("Checking index %d: expected %c got %c", index, PiHexDigits[index], actual)
		}
		// The first lookup in a block is always a miss.
		if index%BlockSize != 0 && hit != expectHit {
			t.Errorf("Checking index %d: expected hit=%t got %t", index, expectHit, hit)
		}
	}
}

func TestBlockDigit_WithNoopCache(t *testing.T) {
	testBlockDigits(context.Background(), t, cache.NewNoopCache(), false)
}

func TestBlockDigit_WithMemoryCache(t *testing.T) {
	testBlockDigits(context.Background(), t, cache.NewMemoryCache(), true)
}

func TestBlockDigit_WithRedisCache(t *testing.T) {
	SetLogger(stdr.New(nil))
	defer SetLogger(logr.Discard())
	ctx := context.Background()
	mock, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Error running miniredis: %v", err)
	}
	defer mock.Close()
	testBlockDigits(ctx, t, cache.NewRedisCache(ctx, mock.Addr()), true)
	value, err := mock.Get(BlockKey(16))
	if err != nil {
		t.Errorf("Error reading block from miniredis: %v", err)
	}
	if expected := PiHexDigits[16:24]; value != expected {
		t.Errorf("Checking block 16: expected %s got %s", expected, value)
	}
}

// A cached value with the wrong length is recalculated and replaced.
func TestBlockDigit_MalformedValue(t *testing.T) {
	ctx := context.Background()
	c := cache.NewMemoryCache()
	if err := c.SetValue(ctx, BlockKey(8), "XYZ"); err != nil {
		t.Errorf("SetValue returned an error: %v", err)
	}
	actual, hit, err := BlockDigit(ctx, c, 9)
	if err != nil {
		t.Errorf("Error calling BlockDigit: %v", err)
	}
	if hit {
		t.Error("Expected a cache miss for malformed value")
	}
	if actual != PiHexDigits[9] {
		t.Errorf("expected %c got %c", PiHexDigits[9], actual)
	}
	if value, _ := c.GetValue(ctx, BlockKey(8)); value != PiHexDigits[8:16] {
		t.Errorf("expected cached block %s got %s", PiHexDigits[8:16], value)
	}
}

func TestBlockDigit_CacheError(t *testing.T) {
	if _, _, err := BlockDigit(context.Background(), brokenCache{}, 3); !errors.Is(err, errBrokenCache) {
		t.Errorf("expected errBrokenCache, got %v", err)
	}
}

func TestBlockKey(t *testing.T) {
	tests := map[uint64]string{
		0:    "0",
		7:    "0",
		8:    "8",
		255:  "f8",
		4096: "1000",
	}
	for index, expected := range tests {
		if actual := BlockKey(BlockStart(index)); actual != expected {
			t.Errorf("index %d: expected %s got %s", index, expected, actual)
		}
	}
}
