package ml

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type countingLoader struct {
	calls int32
	delay time.Duration
	err   error
}

func (c *countingLoader) load(ctx context.Context, key string) (Classifier, error) {
	atomic.AddInt32(&c.calls, 1)
	if c.delay > 0 {
		time.Sleep(c.delay)
	}
	if c.err != nil {
		return nil, c.err
	}
	return &LinearClassifier{
		classes:    []string{"a", "b", "c", "d"},
		weights:    make([][]float64, ClassCount),
		intercepts: make([]float64, ClassCount),
		version:    key,
	}, nil
}

func TestCacheHitAvoidsReload(t *testing.T) {
	loader := &countingLoader{}
	cache := NewCache(2, time.Hour, loader.load)

	for i := 0; i < 3; i++ {
		if _, err := cache.Get(context.Background(), "m1"); err != nil {
			t.Fatalf("Get: %v", err)
		}
	}
	if got := atomic.LoadInt32(&loader.calls); got != 1 {
		t.Fatalf("loader calls = %d, want 1", got)
	}
}

func TestCacheExpiresByTTL(t *testing.T) {
	loader := &countingLoader{}
	cache := NewCache(2, time.Hour, loader.load)

	now := time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)
	cache.now = func() time.Time { return now }

	if _, err := cache.Get(context.Background(), "m1"); err != nil {
		t.Fatalf("Get: %v", err)
	}

	now = now.Add(2 * time.Hour)
	if _, err := cache.Get(context.Background(), "m1"); err != nil {
		t.Fatalf("Get after expiry: %v", err)
	}
	if got := atomic.LoadInt32(&loader.calls); got != 2 {
		t.Fatalf("loader calls = %d, want reload after TTL", got)
	}
}

func TestCacheBoundsResidentEntries(t *testing.T) {
	loader := &countingLoader{}
	cache := NewCache(2, time.Hour, loader.load)

	for _, key := range []string{"m1", "m2", "m3"} {
		if _, err := cache.Get(context.Background(), key); err != nil {
			t.Fatalf("Get %s: %v", key, err)
		}
	}
	if got := cache.Len(); got > 2 {
		t.Fatalf("resident entries = %d, want at most capacity 2", got)
	}
}

func TestCacheSingleFlight(t *testing.T) {
	loader := &countingLoader{delay: 50 * time.Millisecond}
	cache := NewCache(2, time.Hour, loader.load)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := cache.Get(context.Background(), "m1"); err != nil {
				t.Errorf("Get: %v", err)
			}
		}()
	}
	wg.Wait()

	if got := atomic.LoadInt32(&loader.calls); got != 1 {
		t.Fatalf("loader calls = %d, want concurrent lookups to share one load", got)
	}
}

func TestCacheDoesNotCacheErrors(t *testing.T) {
	loader := &countingLoader{err: errors.New("store offline")}
	cache := NewCache(2, time.Hour, loader.load)

	for i := 0; i < 2; i++ {
		if _, err := cache.Get(context.Background(), "m1"); err == nil {
			t.Fatal("expected load error")
		}
	}
	if got := atomic.LoadInt32(&loader.calls); got != 2 {
		t.Fatalf("loader calls = %d, want errors retried", got)
	}
	if cache.Len() != 0 {
		t.Fatalf("entries = %d, want failed loads not cached", cache.Len())
	}
}

func TestCacheInvalidate(t *testing.T) {
	loader := &countingLoader{}
	cache := NewCache(2, time.Hour, loader.load)

	if _, err := cache.Get(context.Background(), "m1"); err != nil {
		t.Fatalf("Get: %v", err)
	}
	cache.Invalidate("m1")
	if _, err := cache.Get(context.Background(), "m1"); err != nil {
		t.Fatalf("Get after invalidate: %v", err)
	}
	if got := atomic.LoadInt32(&loader.calls); got != 2 {
		t.Fatalf("loader calls = %d, want reload after invalidate", got)
	}
}
