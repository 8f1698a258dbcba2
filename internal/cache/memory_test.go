// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package cache

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"
)

// newClockedCache returns a cache whose clock the test controls.
func newClockedCache(t *testing.T, defaultTTL time.Duration) (*MemoryCache, *time.Time) {
	t.Helper()
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	c := NewMemoryCache(MemoryCacheOptions{DefaultTTL: defaultTTL})
	c.now = func() time.Time { return now }
	t.Cleanup(func() { _ = c.Close() })
	return c, &now
}

func TestMemoryCache_PutHasDelete(t *testing.T) {
	c, _ := newClockedCache(t, time.Minute)
	ctx := context.Background()

	if ok, err := c.Has(ctx, "k"); err != nil || ok {
		t.Fatalf("Has(missing) = %v, %v; want false, nil", ok, err)
	}
	if err := c.Put(ctx, "k", time.Minute); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if ok, _ := c.Has(ctx, "k"); !ok {
		t.Error("Has after Put = false, want true")
	}
	if err := c.Delete(ctx, "k"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if ok, _ := c.Has(ctx, "k"); ok {
		t.Error("Has after Delete = true, want false")
	}
	if err := c.Delete(ctx, "never-set"); err != nil {
		t.Errorf("Delete(missing) = %v, want nil", err)
	}
}

func TestMemoryCache_Expiration(t *testing.T) {
	c, now := newClockedCache(t, time.Hour)
	ctx := context.Background()

	_ = c.Put(ctx, "short", 10*time.Second)
	_ = c.Put(ctx, "default", 0)

	*now = now.Add(10 * time.Second)
	if ok, _ := c.Has(ctx, "short"); ok {
		t.Error("key should expire exactly at its TTL")
	}
	if ok, _ := c.Has(ctx, "default"); !ok {
		t.Error("zero TTL should use the default TTL")
	}

	*now = now.Add(time.Hour)
	if ok, _ := c.Has(ctx, "default"); ok {
		t.Error("default TTL key should have expired")
	}
}

func TestMemoryCache_PutResetsExpiry(t *testing.T) {
	c, now := newClockedCache(t, time.Minute)
	ctx := context.Background()

	_ = c.Put(ctx, "k", time.Minute)
	*now = now.Add(50 * time.Second)
	_ = c.Put(ctx, "k", time.Minute)
	*now = now.Add(50 * time.Second)

	if ok, _ := c.Has(ctx, "k"); !ok {
		t.Error("second Put should extend the key lifetime")
	}
}

func TestMemoryCache_Sweep(t *testing.T) {
	c, now := newClockedCache(t, time.Minute)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_ = c.Put(ctx, fmt.Sprintf("old-%d", i), time.Second)
	}
	_ = c.Put(ctx, "fresh", time.Hour)

	*now = now.Add(time.Minute)
	if removed := c.sweep(); removed != 5 {
		t.Errorf("sweep() removed %d, want 5", removed)
	}
	if c.Len() != 1 {
		t.Errorf("Len() = %d, want 1", c.Len())
	}
}

func TestMemoryCache_ConcurrentAccess(t *testing.T) {
	c := NewMemoryCache(MemoryCacheOptions{DefaultTTL: time.Minute, CleanupInterval: time.Millisecond})
	defer func() { _ = c.Close() }()
	ctx := context.Background()

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				key := fmt.Sprintf("g%d-%d", g, i)
				_ = c.Put(ctx, key, 0)
				if ok, err := c.Has(ctx, key); err != nil || !ok {
					t.Errorf("Has(%s) = %v, %v", key, ok, err)
					return
				}
			}
		}(g)
	}
	wg.Wait()

	if c.Len() != 800 {
		t.Errorf("Len() = %d, want 800", c.Len())
	}
}

func TestMemoryCache_Close(t *testing.T) {
	c := NewMemoryCache(MemoryCacheOptions{DefaultTTL: time.Minute, CleanupInterval: time.Second})
	ctx := context.Background()

	if err := c.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := c.Close(); err != nil {
		t.Errorf("second Close = %v, want nil", err)
	}
	if err := c.Put(ctx, "k", 0); err != ErrCacheClosed {
		t.Errorf("Put after Close = %v, want ErrCacheClosed", err)
	}
	if _, err := c.Has(ctx, "k"); err != ErrCacheClosed {
		t.Errorf("Has after Close = %v, want ErrCacheClosed", err)
	}
	if err := c.Delete(ctx, "k"); err != ErrCacheClosed {
		t.Errorf("Delete after Close = %v, want ErrCacheClosed", err)
	}
}
