// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package api

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/olegiv/otask-go/internal/middleware"
	"github.com/olegiv/otask-go/internal/model"
	"github.com/olegiv/otask-go/internal/util"
)

// attemptsWarning is the remaining-attempt count at which a failed login
// starts reporting how close the account is to a lockout.
const attemptsWarning = 3

// SignupRequest represents the request body for POST /auth/signup.
type SignupRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name,omitempty"`
}

// LoginRequest represents the request body for POST /auth/login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// RoleRequest represents the request body for PUT /auth/role.
type RoleRequest struct {
	Role string `json:"role"`
}

// UserResponse wraps a single user.
type UserResponse struct {
	User model.User `json:"user"`
}

// UsersResponse wraps a user list.
type UsersResponse struct {
	Users []model.User `json:"users"`
}

// Signup handles POST /api/auth/signup.
func (h *Handler) Signup(w http.ResponseWriter, r *http.Request) {
	var req SignupRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	session, err := h.identity.Register(r.Context(), req.Email, req.Password, req.Name)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusCreated, session)
}

// Login handles POST /api/auth/login. Repeated failures for one account
// lock it out for a growing period.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	email := util.NormalizeEmail(req.Email)

	if h.login != nil {
		if locked, remaining := h.login.IsAccountLocked(email); locked {
			_ = h.events.LogAuthEvent(r.Context(), model.EventLevelWarning, "Login attempt on locked account", "",
				map[string]any{"email": email})
			writeLocked(w, remaining)
			return
		}
	}

	session, err := h.identity.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, model.ErrInvalidCredentials) && h.login != nil {
			if locked, lockDuration := h.login.RecordFailedAttempt(email); locked {
				_ = h.events.LogAuthEvent(r.Context(), model.EventLevelWarning, "Account locked due to failed attempts", "",
					map[string]any{"email": email, "duration": lockDuration.String()})
				writeLocked(w, lockDuration)
				return
			}
			if remaining := h.login.RemainingAttempts(email); remaining > 0 && remaining <= attemptsWarning {
				WriteError(w, http.StatusBadRequest, "invalid_credentials",
					fmt.Sprintf("Invalid credentials. Attempts remaining before lockout: %d", remaining), nil)
				return
			}
		}
		writeServiceError(w, r, err)
		return
	}

	if h.login != nil {
		h.login.RecordSuccessfulLogin(email)
	}
	WriteJSON(w, http.StatusOK, session)
}

func writeLocked(w http.ResponseWriter, d time.Duration) {
	w.Header().Set("Retry-After", fmt.Sprintf("%d", int(d.Round(time.Second).Seconds())))
	WriteError(w, http.StatusTooManyRequests, "account_locked",
		fmt.Sprintf("Too many failed login attempts. Try again in %s.", d.Round(time.Second)), nil)
}

// Me handles GET /api/auth/me.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	user, err := h.identity.CurrentUser(r.Context(), middleware.GetIdentity(r))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, UserResponse{User: *user})
}

// UpdateRole handles PUT /api/auth/role. The response carries a fresh
// token with the new role; the presented token stops working.
func (h *Handler) UpdateRole(w http.ResponseWriter, r *http.Request) {
	var req RoleRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	session, err := h.identity.ReissueWithRole(r.Context(), middleware.GetIdentity(r), req.Role)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, session)
}

// Logout handles POST /api/auth/logout.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.identity.Logout(r.Context(), middleware.GetIdentity(r)); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListUsers handles GET /api/auth/users and GET /api/users.
func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.identity.ListUsers(r.Context(), middleware.GetIdentity(r))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if users == nil {
		users = []model.User{}
	}
	WriteJSON(w, http.StatusOK, UsersResponse{Users: users})
}
