// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/olegiv/otask-go/internal/model"
)

// DefaultAdminName is the display name of the seeded admin account.
const DefaultAdminName = "Administrator"

// PasswordHasher hashes a plaintext password for storage.
type PasswordHasher interface {
	Hash(password string) (string, error)
}

// SeedAdmin creates an admin account with the given normalized email unless
// a user with that email already exists. It reports whether a user was created.
func SeedAdmin(ctx context.Context, db *sql.DB, hasher PasswordHasher, email, password string) (bool, error) {
	if email == "" || password == "" {
		return false, errors.New("seed admin email and password are required")
	}
	queries := New(db)

	_, err := queries.GetUserByEmail(ctx, email)
	if err == nil {
		slog.Info("admin user already exists, skipping seed", "email", email)
		return false, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return false, fmt.Errorf("checking for admin user: %w", err)
	}

	passwordHash, err := hasher.Hash(password)
	if err != nil {
		return false, fmt.Errorf("hashing password: %w", err)
	}

	now := time.Now()
	user, err := queries.CreateUser(ctx, CreateUserParams{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: passwordHash,
		Role:         model.RoleAdmin,
		Name:         DefaultAdminName,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if errors.Is(err, model.ErrDuplicateEmail) {
		// Another instance seeded concurrently.
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("creating admin user: %w", err)
	}

	slog.Info("created admin user", "id", user.ID, "email", user.Email)
	return true, nil
}
