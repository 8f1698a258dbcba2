// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/olegiv/otask-go/internal/auth"
	"github.com/olegiv/otask-go/internal/cache"
	"github.com/olegiv/otask-go/internal/model"
	"github.com/olegiv/otask-go/internal/policy"
	"github.com/olegiv/otask-go/internal/store"
	"github.com/olegiv/otask-go/internal/testutil"
)

var testSecret = []byte("Zq8#vN2!pL5@xR9$wT3%yB6^mK1&hD4*")

type testEnv struct {
	db       *sql.DB
	hasher   *auth.Hasher
	tokens   *auth.TokenIssuer
	revoked  *auth.RevocationList
	events   *EventService
	identity *IdentityService
	tasks    *TaskService
}

func newTestEnv(t *testing.T, roleSelfService bool) *testEnv {
	t.Helper()

	db, cleanup := testutil.TestDB(t)
	t.Cleanup(cleanup)

	hasher, err := auth.NewHasher(auth.AlgorithmBcrypt, bcrypt.MinCost)
	require.NoError(t, err)

	c := cache.NewMemoryCache(cache.MemoryCacheOptions{DefaultTTL: time.Hour})
	t.Cleanup(func() { _ = c.Close() })

	pol := policy.New(roleSelfService)
	tokens := auth.NewTokenIssuer(testSecret, time.Hour, "otask-test")
	revoked := auth.NewRevocationList(c)
	events := NewEventService(db, pol)

	return &testEnv{
		db:       db,
		hasher:   hasher,
		tokens:   tokens,
		revoked:  revoked,
		events:   events,
		identity: NewIdentityService(db, hasher, tokens, revoked, pol, events),
		tasks:    NewTaskService(db, pol, events),
	}
}

// signup registers a user and returns the verified identity of its session.
func (e *testEnv) signup(t *testing.T, email, name string) (*model.Session, *model.Identity) {
	t.Helper()
	ctx := context.Background()
	session, err := e.identity.Register(ctx, email, "password123", name)
	require.NoError(t, err)
	id, err := e.identity.Verify(ctx, session.Token)
	require.NoError(t, err)
	return session, id
}

// admin creates a user, promotes it directly in the store and returns an
// identity carrying the admin role.
func (e *testEnv) admin(t *testing.T, email string) *model.Identity {
	t.Helper()
	session, _ := e.signup(t, email, "Admin")
	user, err := store.New(e.db).UpdateUserRole(context.Background(), store.UpdateUserRoleParams{
		ID: session.User.ID, Role: model.RoleAdmin, UpdatedAt: time.Now(),
	})
	require.NoError(t, err)
	token, _, err := e.tokens.Issue(user)
	require.NoError(t, err)
	id, err := e.identity.Verify(context.Background(), token)
	require.NoError(t, err)
	return id
}
