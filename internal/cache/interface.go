// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package cache provides the expiring key store behind the token
// revocation list. Two backends exist: an in-process memory store and
// Redis for deployments running more than one instance.
package cache

import (
	"context"
	"time"
)

// Cache is a set of keys that disappear once their TTL elapses.
// Implementations are safe for concurrent use.
type Cache interface {
	// Put adds key for ttl. A non-positive ttl selects the default TTL.
	// Putting an existing key resets its expiry.
	Put(ctx context.Context, key string, ttl time.Duration) error

	// Has reports whether key is present and not expired.
	Has(ctx context.Context, key string) (bool, error)

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases any resources held by the cache.
	Close() error
}

// Error represents an error type for cache operations.
type Error string

func (e Error) Error() string {
	return string(e)
}

// ErrCacheClosed is returned by every operation after Close.
const ErrCacheClosed Error = "cache closed"
