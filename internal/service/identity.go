// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/olegiv/otask-go/internal/auth"
	"github.com/olegiv/otask-go/internal/model"
	"github.com/olegiv/otask-go/internal/policy"
	"github.com/olegiv/otask-go/internal/store"
	"github.com/olegiv/otask-go/internal/util"
)

// Credential limits.
const (
	MinPasswordLength = 6
	MaxPasswordBytes  = 72
	MaxNameLength     = 100
)

// IdentityService registers and authenticates users and manages their tokens.
type IdentityService struct {
	queries *store.Queries
	hasher  *auth.Hasher
	tokens  *auth.TokenIssuer
	revoked *auth.RevocationList
	policy  policy.Policy
	events  *EventService
	now     func() time.Time
}

// NewIdentityService creates an IdentityService.
func NewIdentityService(
	db *sql.DB,
	hasher *auth.Hasher,
	tokens *auth.TokenIssuer,
	revoked *auth.RevocationList,
	pol policy.Policy,
	events *EventService,
) *IdentityService {
	return &IdentityService{
		queries: store.New(db),
		hasher:  hasher,
		tokens:  tokens,
		revoked: revoked,
		policy:  pol,
		events:  events,
		now:     time.Now,
	}
}

// Register creates a user with role "user" and returns a session for it.
func (s *IdentityService) Register(ctx context.Context, email, password, name string) (*model.Session, error) {
	email = util.NormalizeEmail(email)
	name = strings.TrimSpace(name)

	ve := &model.ValidationError{}
	if !util.ValidEmail(email) {
		ve.Add("email", "Valid email is required")
	}
	switch {
	case utf8.RuneCountInString(password) < MinPasswordLength:
		ve.Add("password", fmt.Sprintf("Password must be at least %d characters", MinPasswordLength))
	case len(password) > MaxPasswordBytes:
		ve.Add("password", fmt.Sprintf("Password must be at most %d bytes", MaxPasswordBytes))
	}
	if utf8.RuneCountInString(name) > MaxNameLength {
		ve.Add("name", fmt.Sprintf("Name must be at most %d characters", MaxNameLength))
	}
	if err := ve.OrNil(); err != nil {
		return nil, err
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}

	now := s.now()
	user, err := s.queries.CreateUser(ctx, store.CreateUserParams{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: hash,
		Role:         model.RoleUser,
		Name:         name,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if errors.Is(err, model.ErrDuplicateEmail) {
		return nil, model.ErrDuplicateEmail
	}
	if err != nil {
		return nil, fmt.Errorf("creating user: %w", err)
	}

	session, err := s.issue(user)
	if err != nil {
		return nil, err
	}
	_ = s.events.LogAuthEvent(ctx, model.EventLevelInfo, "User registered", user.ID, map[string]any{"email": user.Email})
	return session, nil
}

// Authenticate checks email and password and returns a session. Unknown
// email and wrong password both yield model.ErrInvalidCredentials.
func (s *IdentityService) Authenticate(ctx context.Context, email, password string) (*model.Session, error) {
	email = util.NormalizeEmail(email)

	ve := &model.ValidationError{}
	if !util.ValidEmail(email) {
		ve.Add("email", "Valid email is required")
	}
	if password == "" {
		ve.Add("password", "Password is required")
	}
	if err := ve.OrNil(); err != nil {
		return nil, err
	}

	user, err := s.queries.GetUserByEmail(ctx, email)
	if errors.Is(err, sql.ErrNoRows) {
		s.hasher.VerifyDummy(password)
		_ = s.events.LogAuthEvent(ctx, model.EventLevelWarning, "Failed login attempt", "", map[string]any{"email": email, "reason": "unknown email"})
		return nil, model.ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("looking up user: %w", err)
	}

	valid, err := s.hasher.Verify(password, user.PasswordHash)
	if err != nil {
		return nil, fmt.Errorf("verifying password: %w", err)
	}
	if !valid {
		_ = s.events.LogAuthEvent(ctx, model.EventLevelWarning, "Failed login attempt", user.ID, map[string]any{"email": email, "reason": "wrong password"})
		return nil, model.ErrInvalidCredentials
	}

	if s.hasher.NeedsRehash(user.PasswordHash) {
		s.rehash(ctx, user.ID, password)
	}

	session, err := s.issue(user)
	if err != nil {
		return nil, err
	}
	_ = s.events.LogAuthEvent(ctx, model.EventLevelInfo, "User logged in", user.ID, map[string]any{"email": user.Email})
	return session, nil
}

// rehash upgrades a stored hash to the current parameters. Failure only
// costs another rehash on the next login.
func (s *IdentityService) rehash(ctx context.Context, userID, password string) {
	hash, err := s.hasher.Hash(password)
	if err == nil {
		err = s.queries.UpdateUserPassword(ctx, store.UpdateUserPasswordParams{
			ID:           userID,
			PasswordHash: hash,
			UpdatedAt:    s.now(),
		})
	}
	if err != nil {
		slog.Warn("password rehash failed", "user_id", userID, "error", err)
		return
	}
	slog.Info("password hash upgraded", "user_id", userID, "algorithm", s.hasher.Algorithm())
}

// Verify resolves a bearer token to the caller identity. Any malformed,
// expired, foreign or revoked token yields model.ErrUnauthenticated.
func (s *IdentityService) Verify(ctx context.Context, token string) (*model.Identity, error) {
	claims, err := s.tokens.Parse(token)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", model.ErrUnauthenticated, err)
	}
	if !model.Role(claims.Role).Valid() {
		return nil, fmt.Errorf("%w: unknown role %q", model.ErrUnauthenticated, claims.Role)
	}

	revoked, err := s.revoked.IsRevoked(ctx, claims.ID)
	if err != nil {
		return nil, fmt.Errorf("checking token revocation: %w", err)
	}
	if revoked {
		return nil, fmt.Errorf("%w: token revoked", model.ErrUnauthenticated)
	}

	return claims.Identity(), nil
}

// ReissueWithRole persists a new role for the caller and returns a token
// carrying it. The token used for the request is revoked. Other tokens the
// caller holds keep the old role until they expire.
func (s *IdentityService) ReissueWithRole(ctx context.Context, identity *model.Identity, newRole string) (*model.Session, error) {
	if identity == nil {
		return nil, model.ErrUnauthenticated
	}
	if !s.policy.Can(identity, policy.ActionAssignRole, policy.Resource{}) {
		return nil, model.ErrForbidden
	}
	role, err := model.ParseRole(newRole)
	if err != nil {
		return nil, err
	}

	user, err := s.queries.UpdateUserRole(ctx, store.UpdateUserRoleParams{
		ID:        identity.UserID,
		Role:      role,
		UpdatedAt: s.now(),
	})
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("updating role: %w", err)
	}

	session, err := s.issue(user)
	if err != nil {
		return nil, err
	}

	if err := s.revoked.Revoke(ctx, identity.TokenID, identity.ExpiresAt); err != nil {
		slog.Warn("revoking superseded token failed", "user_id", user.ID, "error", err)
	}

	_ = s.events.LogUserEvent(ctx, model.EventLevelInfo, "User role changed", user.ID,
		map[string]any{"from": string(identity.Role), "to": string(role)})
	return session, nil
}

// Logout revokes the token the caller presented.
func (s *IdentityService) Logout(ctx context.Context, identity *model.Identity) error {
	if identity == nil {
		return model.ErrUnauthenticated
	}
	if err := s.revoked.Revoke(ctx, identity.TokenID, identity.ExpiresAt); err != nil {
		return fmt.Errorf("logging out: %w", err)
	}
	_ = s.events.LogAuthEvent(ctx, model.EventLevelInfo, "User logged out", identity.UserID, nil)
	return nil
}

// CurrentUser reloads the caller's user record.
func (s *IdentityService) CurrentUser(ctx context.Context, identity *model.Identity) (*model.User, error) {
	if identity == nil {
		return nil, model.ErrUnauthenticated
	}
	user, err := s.queries.GetUserByID(ctx, identity.UserID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading user: %w", err)
	}
	return &user, nil
}

// ListUsers returns every user ordered by name. Admin only.
func (s *IdentityService) ListUsers(ctx context.Context, identity *model.Identity) ([]model.User, error) {
	if identity == nil {
		return nil, model.ErrUnauthenticated
	}
	if !s.policy.Can(identity, policy.ActionListUsers, policy.Resource{}) {
		return nil, model.ErrForbidden
	}
	users, err := s.queries.ListUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing users: %w", err)
	}
	return users, nil
}

func (s *IdentityService) issue(user model.User) (*model.Session, error) {
	token, _, err := s.tokens.Issue(user)
	if err != nil {
		return nil, fmt.Errorf("issuing token: %w", err)
	}
	return &model.Session{Token: token, User: user}, nil
}
