package cache_test

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis"
	"github.com/memes/hexpi/pkg/cache"
)

const (
	TestCacheLoopLimit = 10
)

// The noopCache should do nothing useful. This test confirms that values can
// appear to be added successfully, but an attempt to recall the value will
// result in an empty string.
func TestNoopCache(t *testing.T) {
	ctx := context.Background()
	cache := cache.NewNoopCache()
	if cache == nil {
		t.Error("Noop cache is nil")
	}
	for i := uint64(0); i < TestCacheLoopLimit; i++ {
		expected := ""
		key := strconv.FormatUint(i, 16)
		actual, err := cache.GetValue(ctx, key)
		if err != nil {
			t.Errorf("GetValue returned an error: %v", err)
		}
		if actual != expected {
			t.Errorf("Index %d: Expected %s received %s", i, expected, actual)
		}
		if err = cache.SetValue(ctx, key, "243F6A88"); err != nil {
			t.Errorf("Index: %d: SetValue returned an error: %v", i, err)
		}
		actual, err = cache.GetValue(ctx, key)
		if err != nil {
			t.Errorf("GetValue returned an error: %v", err)
		}
		if actual != expected {
			t.Errorf("Index %d: Expected %s received %s", i, expected, actual)
		}
	}
}

// Confirms that a value is stored and recalled by the Cache, and that an unset
// key is an empty string without error.
func testRoundTrip(ctx context.Context, t *testing.T, c cache.Cache) {
	t.Helper()
	for i := uint64(0); i < TestCacheLoopLimit; i++ {
		expected := ""
		key := strconv.FormatUint(i*8, 16)
		actual, err := c.GetValue(ctx, key)
		if err != nil {
			t.Errorf("GetValue returned an error: %v", err)
		}
		if actual != expected {
			t.Errorf("Index %d: Expected %s received %s", i, expected, actual)
		}
		expected = fmt.Sprintf("%08X", i)
		if err = c.SetValue(ctx, key, expected); err != nil {
			t.Errorf("Index: %d: SetValue returned an error: %v", i, err)
		}
		actual, err = c.GetValue(ctx, key)
		if err != nil {
			t.Errorf("GetValue returned an error: %v", err)
		}
		if actual != expected {
			t.Errorf("Index %d: Expected %s received %s", i, expected, actual)
		}
	}
}

func TestMemoryCache(t *testing.T) {
	testRoundTrip(context.Background(), t, cache.NewMemoryCache())
}

func TestMemoryCache_Concurrent(t *testing.T) {
	ctx := context.Background()
	c := cache.NewMemoryCache()
	var wg sync.WaitGroup
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key := strconv.Itoa(i % 8)
			if err := c.SetValue(ctx, key, key); err != nil {
				t.Errorf("SetValue returned an error: %v", err)
			}
			if value, err := c.GetValue(ctx, key); err != nil || value != key {
				t.Errorf("Key %s: expected %s got %s (%v)", key, key, value, err)
			}
		}(i)
	}
	wg.Wait()
}

// The RedisCache will use a Redis-like in-memory instance to cache values. The
// test should confirm that a value can be added to the cache and recalled
// successfully.
func TestRedisCache(t *testing.T) {
	ctx := context.Background()
	mock, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Error running miniredis: %v", err)
	}
	defer mock.Close()
	cache := cache.NewRedisCache(ctx, mock.Addr(), cache.WithRedisMaxIdle(2), cache.WithRedisIdleTimeout(time.Minute))
	if cache == nil {
		t.Fatal("Redis cache is nil")
	}
	defer cache.Close()
	testRoundTrip(ctx, t, cache)
}

func TestRedisCache_WithKeyPrefix(t *testing.T) {
	ctx := context.Background()
	mock, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Error running miniredis: %v", err)
	}
	defer mock.Close()
	c := cache.NewRedisCache(ctx, mock.Addr(), cache.WithRedisKeyPrefix("hexpi:"))
	defer c.Close()
	testRoundTrip(ctx, t, c)
	value, err := mock.Get("hexpi:8")
	if err != nil {
		t.Errorf("Error reading prefixed key from miniredis: %v", err)
	}
	if expected := fmt.Sprintf("%08X", 1); value != expected {
		t.Errorf("Expected %s received %s", expected, value)
	}
}

// An unreachable Redis endpoint must surface as an error, not a cache miss.
func TestRedisCache_Unavailable(t *testing.T) {
	ctx := context.Background()
	mock, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Error running miniredis: %v", err)
	}
	address := mock.Addr()
	mock.Close()
	c := cache.NewRedisCache(ctx, address)
	defer c.Close()
	if _, err := c.GetValue(ctx, "0"); err == nil {
		t.Error("Expected an error from GetValue")
	}
	if err := c.SetValue(ctx, "0", "243F6A88"); err == nil {
		t.Error("Expected an error from SetValue")
	}
}
