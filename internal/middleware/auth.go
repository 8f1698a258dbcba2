// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package middleware provides HTTP middleware for authentication,
// rate limiting, and request context handling.
package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/olegiv/otask-go/internal/model"
	"github.com/olegiv/otask-go/internal/service"
)

// ContextKey is a type for context keys to avoid collisions.
type ContextKey string

// ContextKeyIdentity is the context key for the authenticated caller.
const ContextKeyIdentity ContextKey = "identity"

// Verifier resolves a bearer token to the caller identity.
type Verifier interface {
	Verify(ctx context.Context, token string) (*model.Identity, error)
}

// BearerAuth creates middleware that requires a valid bearer token.
// The verified identity is stored in the request context.
func BearerAuth(v Verifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r)
			if !ok {
				WriteAPIError(w, http.StatusUnauthorized, "unauthorized", "Missing or malformed Authorization header", nil)
				return
			}

			identity, err := v.Verify(r.Context(), token)
			if err != nil {
				if errors.Is(err, model.ErrUnauthenticated) {
					WriteAPIError(w, http.StatusUnauthorized, "unauthorized", "Invalid or expired token", nil)
					return
				}
				slog.Error("failed to verify token", "error", err)
				WriteAPIError(w, http.StatusInternalServerError, "internal_error", "Internal server error", nil)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), identity)))
		})
	}
}

// bearerToken extracts the token from an "Authorization: Bearer <token>" header.
func bearerToken(r *http.Request) (string, bool) {
	authHeader := r.Header.Get("Authorization")
	scheme, token, found := strings.Cut(authHeader, " ")
	if !found || !strings.EqualFold(scheme, "bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// WithIdentity returns a copy of ctx carrying identity.
func WithIdentity(ctx context.Context, identity *model.Identity) context.Context {
	return context.WithValue(ctx, ContextKeyIdentity, identity)
}

// GetIdentity retrieves the caller identity from the request context.
// Returns nil if the request was not authenticated.
func GetIdentity(r *http.Request) *model.Identity {
	identity, _ := r.Context().Value(ContextKeyIdentity).(*model.Identity)
	return identity
}

// ClientInfo stores the client IP and user agent in the request context
// for audit logging.
func ClientInfo(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := service.WithRequestInfo(r.Context(), service.RequestInfo{
			IPAddress: GetClientIP(r),
			UserAgent: r.UserAgent(),
		})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
