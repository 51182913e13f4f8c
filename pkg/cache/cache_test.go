package cache

import (
	"context"
	"errors"
	"testing"
	"time"
)

type point struct {
	Symbol string  `json:"symbol"`
	Price  float64 `json:"price"`
}

func TestMemoryCacheRoundTrip(t *testing.T) {
	ctx := context.Background()
	mc := NewMemoryCache()
	defer mc.Close()

	if err := mc.Set(ctx, "p", point{"BTCUSDT", 42}, time.Minute); err != nil {
		t.Fatalf("set: %v", err)
	}
	var got point
	if err := mc.Get(ctx, "p", &got); err != nil {
		t.Fatalf("get: %v", err)
	}
	if got != (point{"BTCUSDT", 42}) {
		t.Fatalf("got %+v", got)
	}

	var s string
	_ = mc.Set(ctx, "s", "hello", 0)
	if err := mc.Get(ctx, "s", &s); err != nil || s != "hello" {
		t.Fatalf("string get: %q %v", s, err)
	}

	if err := mc.Get(ctx, "missing", &got); !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("expected miss, got %v", err)
	}
}

func TestMemoryCacheExpiry(t *testing.T) {
	ctx := context.Background()
	mc := NewMemoryCache()
	defer mc.Close()

	_ = mc.Set(ctx, "k", 1, time.Millisecond)
	time.Sleep(5 * time.Millisecond)
	var v int
	if err := mc.Get(ctx, "k", &v); !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("expected expired entry to miss, got %v", err)
	}
	if ok, _ := mc.Exists(ctx, "k"); ok {
		t.Fatalf("expired entry must not exist")
	}
}

func TestMemoryCacheEvictsLeastRecentlyUsed(t *testing.T) {
	ctx := context.Background()
	mc := NewMemoryCache(WithMemoryMaxSize(2))
	defer mc.Close()

	_ = mc.Set(ctx, "a", 1, time.Minute)
	time.Sleep(time.Millisecond)
	_ = mc.Set(ctx, "b", 2, time.Minute)
	time.Sleep(time.Millisecond)
	var v int
	_ = mc.Get(ctx, "a", &v)
	time.Sleep(time.Millisecond)
	_ = mc.Set(ctx, "c", 3, time.Minute)

	if mc.Len() != 2 {
		t.Fatalf("expected 2 entries, got %d", mc.Len())
	}
	if ok, _ := mc.Exists(ctx, "b"); ok {
		t.Fatalf("expected b to be evicted")
	}
	if ok, _ := mc.Exists(ctx, "a", "c"); !ok {
		t.Fatalf("expected a and c to remain")
	}
}

func TestLayeredCachePromotes(t *testing.T) {
	ctx := context.Background()
	l1 := NewMemoryCache()
	l2 := NewMemoryCache()
	lc := NewLayeredCache(l1, l2, time.Minute)
	defer lc.Close()

	_ = l2.Set(ctx, "p", point{"ETHUSDT", 3}, time.Minute)

	var got point
	if err := lc.Get(ctx, "p", &got); err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Symbol != "ETHUSDT" {
		t.Fatalf("got %+v", got)
	}
	if ok, _ := l1.Exists(ctx, "p"); !ok {
		t.Fatalf("expected promotion into L1")
	}

	_ = lc.Delete(ctx, "p")
	if err := lc.Get(ctx, "p", &got); !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("expected miss after delete, got %v", err)
	}
}

func TestKey(t *testing.T) {
	if got := Key("ticker", "BTCUSDT", 1); got != "ticker:BTCUSDT:1" {
		t.Fatalf("got %q", got)
	}
}
