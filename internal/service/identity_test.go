// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/olegiv/otask-go/internal/auth"
	"github.com/olegiv/otask-go/internal/model"
	"github.com/olegiv/otask-go/internal/store"
)

func TestRegisterThenAuthenticate(t *testing.T) {
	env := newTestEnv(t, true)
	ctx := context.Background()

	reg, err := env.identity.Register(ctx, "Ann@Example.com", "secret1", "Ann")
	require.NoError(t, err)
	assert.Equal(t, "ann@example.com", reg.User.Email)
	assert.Equal(t, model.RoleUser, reg.User.Role)
	assert.Equal(t, "Ann", reg.User.Name)
	assert.NotEmpty(t, reg.User.ID)
	assert.NotEqual(t, "secret1", reg.User.PasswordHash)

	login, err := env.identity.Authenticate(ctx, "ann@example.com", "secret1")
	require.NoError(t, err)
	assert.Equal(t, reg.User.ID, login.User.ID)

	id, err := env.identity.Verify(ctx, login.Token)
	require.NoError(t, err)
	assert.Equal(t, reg.User.ID, id.UserID)
	assert.Equal(t, "ann@example.com", id.Email)
	assert.Equal(t, model.RoleUser, id.Role)
	assert.NotEmpty(t, id.TokenID)
}

func TestRegister_DuplicateEmailCaseInsensitive(t *testing.T) {
	env := newTestEnv(t, true)
	ctx := context.Background()

	_, err := env.identity.Register(ctx, "bob@example.com", "secret1", "Bob")
	require.NoError(t, err)

	_, err = env.identity.Register(ctx, "BOB@Example.COM", "secret2", "Bobby")
	assert.ErrorIs(t, err, model.ErrDuplicateEmail)

	users, err := env.identity.ListUsers(ctx, &model.Identity{UserID: "x", Role: model.RoleAdmin})
	require.NoError(t, err)
	assert.Len(t, users, 1)
}

func TestRegister_ConcurrentDuplicate(t *testing.T) {
	env := newTestEnv(t, true)
	ctx := context.Background()

	const workers = 6
	var wg sync.WaitGroup
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = env.identity.Register(ctx, "race@example.com", fmt.Sprintf("password-%d", i), "Racer")
		}(i)
	}
	wg.Wait()

	ok, dup := 0, 0
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, model.ErrDuplicateEmail):
			dup++
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, workers-1, dup)
}

func TestRegister_Validation(t *testing.T) {
	env := newTestEnv(t, true)
	ctx := context.Background()

	long := make([]rune, MaxNameLength+1)
	for i := range long {
		long[i] = 'n'
	}

	tests := []struct {
		name      string
		email     string
		password  string
		userName  string
		wantField string
	}{
		{"bad email", "not-an-email", "secret1", "", "email"},
		{"empty email", "", "secret1", "", "email"},
		{"short password", "a@example.com", "12345", "", "password"},
		{"long password", "a@example.com", string(make([]byte, MaxPasswordBytes+1)), "", "password"},
		{"long name", "a@example.com", "secret1", string(long), "name"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.identity.Register(ctx, tt.email, tt.password, tt.userName)
			var ve *model.ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Contains(t, ve.Fields, tt.wantField)
		})
	}
}

func TestAuthenticate_InvalidCredentials(t *testing.T) {
	env := newTestEnv(t, true)
	ctx := context.Background()

	_, err := env.identity.Register(ctx, "carol@example.com", "secret1", "Carol")
	require.NoError(t, err)

	_, err = env.identity.Authenticate(ctx, "carol@example.com", "wrong-password")
	assert.ErrorIs(t, err, model.ErrInvalidCredentials)

	_, err = env.identity.Authenticate(ctx, "nobody@example.com", "secret1")
	assert.ErrorIs(t, err, model.ErrInvalidCredentials)

	_, err = env.identity.Authenticate(ctx, "carol@example.com", "")
	assert.ErrorAs(t, err, new(*model.ValidationError))

	events, err := env.events.List(ctx, &model.Identity{UserID: "x", Role: model.RoleAdmin}, 0)
	require.NoError(t, err)
	failed := 0
	for _, e := range events {
		if e.Message == "Failed login attempt" {
			failed++
			assert.Equal(t, model.EventLevelWarning, e.Level)
			assert.Equal(t, model.EventCategoryAuth, e.Category)
		}
	}
	assert.Equal(t, 2, failed)
}

func TestAuthenticate_RehashesOutdatedHash(t *testing.T) {
	env := newTestEnv(t, true)
	ctx := context.Background()

	reg, err := env.identity.Register(ctx, "dave@example.com", "secret1", "Dave")
	require.NoError(t, err)

	stronger, err := auth.NewHasher(auth.AlgorithmBcrypt, bcrypt.MinCost+1)
	require.NoError(t, err)
	env.identity.hasher = stronger

	_, err = env.identity.Authenticate(ctx, "dave@example.com", "secret1")
	require.NoError(t, err)

	user, err := store.New(env.db).GetUserByID(ctx, reg.User.ID)
	require.NoError(t, err)
	cost, err := bcrypt.Cost([]byte(user.PasswordHash))
	require.NoError(t, err)
	assert.Equal(t, bcrypt.MinCost+1, cost)

	// The upgraded hash still verifies.
	_, err = env.identity.Authenticate(ctx, "dave@example.com", "secret1")
	assert.NoError(t, err)
}

func TestVerify_Rejects(t *testing.T) {
	env := newTestEnv(t, true)
	ctx := context.Background()

	session, _ := env.signup(t, "erin@example.com", "Erin")

	start := time.Now()
	past := env.tokens.WithClock(func() time.Time { return start.Add(-2 * time.Hour) })
	expired, _, err := past.Issue(session.User)
	require.NoError(t, err)

	for name, token := range map[string]string{
		"empty":     "",
		"malformed": "abc.def",
		"expired":   expired,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := env.identity.Verify(ctx, token)
			assert.ErrorIs(t, err, model.ErrUnauthenticated)
		})
	}
}

func TestLogout_RevokesToken(t *testing.T) {
	env := newTestEnv(t, true)
	ctx := context.Background()

	session, id := env.signup(t, "frank@example.com", "Frank")
	other, err := env.identity.Authenticate(ctx, "frank@example.com", "password123")
	require.NoError(t, err)

	require.NoError(t, env.identity.Logout(ctx, id))

	_, err = env.identity.Verify(ctx, session.Token)
	assert.ErrorIs(t, err, model.ErrUnauthenticated)

	_, err = env.identity.Verify(ctx, other.Token)
	assert.NoError(t, err, "other sessions stay valid")

	assert.ErrorIs(t, env.identity.Logout(ctx, nil), model.ErrUnauthenticated)
}

func TestReissueWithRole(t *testing.T) {
	env := newTestEnv(t, true)
	ctx := context.Background()

	old, id := env.signup(t, "gina@example.com", "Gina")

	session, err := env.identity.ReissueWithRole(ctx, id, "admin")
	require.NoError(t, err)
	assert.Equal(t, model.RoleAdmin, session.User.Role)

	newID, err := env.identity.Verify(ctx, session.Token)
	require.NoError(t, err)
	assert.Equal(t, model.RoleAdmin, newID.Role)
	assert.NotEqual(t, id.TokenID, newID.TokenID)

	_, err = env.identity.Verify(ctx, old.Token)
	assert.ErrorIs(t, err, model.ErrUnauthenticated, "superseded token must be revoked")

	user, err := env.identity.CurrentUser(ctx, newID)
	require.NoError(t, err)
	assert.Equal(t, model.RoleAdmin, user.Role)
}

func TestReissueWithRole_InvalidRole(t *testing.T) {
	env := newTestEnv(t, true)
	ctx := context.Background()

	old, id := env.signup(t, "hank@example.com", "Hank")

	_, err := env.identity.ReissueWithRole(ctx, id, "superuser")
	var ve *model.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "Invalid role", ve.Fields["role"])

	_, err = env.identity.Verify(ctx, old.Token)
	assert.NoError(t, err, "failed reissue must not revoke the token")
}

func TestReissueWithRole_SelfServiceDisabled(t *testing.T) {
	env := newTestEnv(t, false)
	ctx := context.Background()

	_, id := env.signup(t, "ivy@example.com", "Ivy")
	_, err := env.identity.ReissueWithRole(ctx, id, "admin")
	assert.ErrorIs(t, err, model.ErrForbidden)

	adminID := env.admin(t, "root@example.com")
	session, err := env.identity.ReissueWithRole(ctx, adminID, "user")
	require.NoError(t, err)
	assert.Equal(t, model.RoleUser, session.User.Role)
}

func TestCurrentUser(t *testing.T) {
	env := newTestEnv(t, true)
	ctx := context.Background()

	session, id := env.signup(t, "jack@example.com", "Jack")
	user, err := env.identity.CurrentUser(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, session.User.ID, user.ID)

	_, err = env.identity.CurrentUser(ctx, &model.Identity{UserID: "vanished", Role: model.RoleUser})
	assert.ErrorIs(t, err, model.ErrNotFound)

	_, err = env.identity.CurrentUser(ctx, nil)
	assert.ErrorIs(t, err, model.ErrUnauthenticated)
}

func TestListUsers(t *testing.T) {
	env := newTestEnv(t, true)
	ctx := context.Background()

	_, userID := env.signup(t, "zed@example.com", "Zed")
	env.signup(t, "amy@example.com", "Amy")
	adminID := env.admin(t, "boss@example.com")

	_, err := env.identity.ListUsers(ctx, userID)
	assert.ErrorIs(t, err, model.ErrForbidden)

	users, err := env.identity.ListUsers(ctx, adminID)
	require.NoError(t, err)
	require.Len(t, users, 3)
	assert.Equal(t, []string{"Admin", "Amy", "Zed"}, []string{users[0].Name, users[1].Name, users[2].Name})
}
