// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package cache

import (
	"fmt"
	"log/slog"
	"time"
)

// Backend names a cache implementation.
type Backend string

// Cache backends.
const (
	BackendMemory Backend = "memory"
	BackendRedis  Backend = "redis"
)

// Config holds configuration for cache creation.
type Config struct {
	// Type is the cache backend type: "memory" or "redis". An empty Type
	// selects redis when RedisURL is set and memory otherwise.
	Type string

	// RedisURL is the Redis connection URL (only for redis type)
	// Example: redis://localhost:6379/0
	RedisURL string

	// Prefix is the key prefix for Redis (only for redis type)
	Prefix string

	// DefaultTTL is the default TTL for cache entries
	DefaultTTL time.Duration

	// CleanupInterval is the interval for expired entry cleanup
	CleanupInterval time.Duration

	// FallbackToMemory creates a memory cache when Redis is unreachable.
	FallbackToMemory bool
}

// DefaultConfig returns default cache configuration.
func DefaultConfig() Config {
	return Config{
		Type:             string(BackendMemory),
		Prefix:           "otask:",
		DefaultTTL:       time.Hour,
		CleanupInterval:  time.Minute,
		FallbackToMemory: true,
	}
}

// Result describes the cache that was actually created.
type Result struct {
	Cache       Cache
	BackendType Backend
	IsFallback  bool
}

// NewWithInfo creates a cache based on cfg and reports which backend is in use.
func NewWithInfo(cfg Config) (*Result, error) {
	backend := Backend(cfg.Type)
	if backend == "" {
		backend = BackendMemory
		if cfg.RedisURL != "" {
			backend = BackendRedis
		}
	}

	switch backend {
	case BackendMemory:
		return &Result{Cache: newMemory(cfg), BackendType: BackendMemory}, nil
	case BackendRedis:
		rc, err := NewRedisCacheFromURL(cfg.RedisURL, cfg.Prefix, cfg.DefaultTTL)
		if err == nil {
			return &Result{Cache: rc, BackendType: BackendRedis}, nil
		}
		if !cfg.FallbackToMemory {
			return nil, fmt.Errorf("connecting to redis at %s: %w", SanitizeRedisURL(cfg.RedisURL), err)
		}
		slog.Warn("redis unavailable, falling back to memory cache",
			"url", SanitizeRedisURL(cfg.RedisURL), "error", err)
		return &Result{Cache: newMemory(cfg), BackendType: BackendMemory, IsFallback: true}, nil
	default:
		return nil, fmt.Errorf("unknown cache type %q", cfg.Type)
	}
}

// New creates a cache based on cfg.
func New(cfg Config) (Cache, error) {
	res, err := NewWithInfo(cfg)
	if err != nil {
		return nil, err
	}
	return res.Cache, nil
}

func newMemory(cfg Config) *MemoryCache {
	return NewMemoryCache(MemoryCacheOptions{
		DefaultTTL:      cfg.DefaultTTL,
		CleanupInterval: cfg.CleanupInterval,
	})
}
