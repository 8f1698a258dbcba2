// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package cache

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// MemoryCache keeps keys in process memory. Keys are never evicted before
// they expire: a dropped revocation would make a revoked token valid again.
type MemoryCache struct {
	mu         sync.Mutex
	expiry     map[string]time.Time
	defaultTTL time.Duration
	closed     bool
	stop       chan struct{}
	now        func() time.Time
}

// MemoryCacheOptions configures the memory cache.
type MemoryCacheOptions struct {
	DefaultTTL      time.Duration
	CleanupInterval time.Duration // 0 disables the background sweep
}

// NewMemoryCache creates a memory cache. With a positive CleanupInterval
// a goroutine sweeps expired keys until Close.
func NewMemoryCache(opts MemoryCacheOptions) *MemoryCache {
	c := &MemoryCache{
		expiry:     make(map[string]time.Time),
		defaultTTL: opts.DefaultTTL,
		stop:       make(chan struct{}),
		now:        time.Now,
	}
	if opts.CleanupInterval > 0 {
		go c.sweepLoop(opts.CleanupInterval)
	}
	return c
}

// Put adds key until now+ttl.
func (c *MemoryCache) Put(_ context.Context, key string, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = c.defaultTTL
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrCacheClosed
	}
	c.expiry[key] = c.now().Add(ttl)
	return nil
}

// Has reports whether key is present. Expired keys are dropped on access.
func (c *MemoryCache) Has(_ context.Context, key string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false, ErrCacheClosed
	}

	exp, ok := c.expiry[key]
	if !ok {
		return false, nil
	}
	if !c.now().Before(exp) {
		delete(c.expiry, key)
		return false, nil
	}
	return true, nil
}

// Delete removes key.
func (c *MemoryCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrCacheClosed
	}
	delete(c.expiry, key)
	return nil
}

// Close stops the sweep goroutine. Further calls fail with ErrCacheClosed.
func (c *MemoryCache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.stop)
	}
	return nil
}

// Len returns the number of stored keys, expired ones included until the
// next sweep.
func (c *MemoryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.expiry)
}

// sweep drops expired keys and returns how many were removed.
func (c *MemoryCache) sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	removed := 0
	for key, exp := range c.expiry {
		if !now.Before(exp) {
			delete(c.expiry, key)
			removed++
		}
	}
	return removed
}

func (c *MemoryCache) sweepLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if n := c.sweep(); n > 0 {
				slog.Debug("memory cache swept", "removed", n, "remaining", c.Len())
			}
		case <-c.stop:
			return
		}
	}
}

var _ Cache = (*MemoryCache)(nil)
