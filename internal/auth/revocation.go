// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/olegiv/otask-go/internal/cache"
)

const revokedKeyPrefix = "revoked:"

// RevocationList records token IDs that must be rejected before their
// natural expiry. Entries live in the cache with a TTL equal to the
// remaining token lifetime, so the list never outgrows the set of
// still-valid tokens. Backed by Redis it is shared between instances.
type RevocationList struct {
	cache cache.Cache
	now   func() time.Time
}

// NewRevocationList creates a revocation list on top of c.
func NewRevocationList(c cache.Cache) *RevocationList {
	return &RevocationList{cache: c, now: time.Now}
}

// Revoke marks tokenID as revoked until expiresAt. Already expired tokens
// are ignored since verification rejects them anyway.
func (rl *RevocationList) Revoke(ctx context.Context, tokenID string, expiresAt time.Time) error {
	if tokenID == "" {
		return errors.New("empty token id")
	}
	ttl := expiresAt.Sub(rl.now())
	if ttl <= 0 {
		return nil
	}
	if err := rl.cache.Put(ctx, revokedKeyPrefix+tokenID, ttl); err != nil {
		return fmt.Errorf("revoking token: %w", err)
	}
	return nil
}

// IsRevoked reports whether tokenID has been revoked.
func (rl *RevocationList) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	revoked, err := rl.cache.Has(ctx, revokedKeyPrefix+tokenID)
	if err != nil {
		return false, fmt.Errorf("checking revocation: %w", err)
	}
	return revoked, nil
}
