// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package api provides the JSON REST handlers for tasks, users, auth and
// maintenance jobs.
package api

import (
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/olegiv/otask-go/internal/middleware"
	"github.com/olegiv/otask-go/internal/model"
	"github.com/olegiv/otask-go/internal/render"
	"github.com/olegiv/otask-go/internal/service"
	"github.com/olegiv/otask-go/internal/version"
)

// maxBodyBytes caps request bodies.
const maxBodyBytes = 1 << 20

// Deps holds the services the API handlers depend on.
type Deps struct {
	DB              *sql.DB
	Identity        *service.IdentityService
	Tasks           *service.TaskService
	Events          *service.EventService
	Jobs            *service.JobService
	Markdown        *render.Markdown
	LoginProtection *middleware.LoginProtection
	Version         version.Info
}

// Handler holds shared dependencies for all API handlers.
type Handler struct {
	db       *sql.DB
	identity *service.IdentityService
	tasks    *service.TaskService
	events   *service.EventService
	jobs     *service.JobService
	markdown *render.Markdown
	login    *middleware.LoginProtection
	version  version.Info
}

// NewHandler creates a new API handler.
func NewHandler(d Deps) *Handler {
	md := d.Markdown
	if md == nil {
		md = render.NewMarkdown()
	}
	return &Handler{
		db:       d.DB,
		identity: d.Identity,
		tasks:    d.Tasks,
		events:   d.Events,
		jobs:     d.Jobs,
		markdown: md,
		login:    d.LoginProtection,
		version:  d.Version,
	}
}

// ErrorResponse is the standard API error response.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains error information.
type ErrorDetail struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Details map[string]string `json:"details,omitempty"`
}

// WriteJSON writes a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(data)
}

// WriteError writes an error JSON response.
func WriteError(w http.ResponseWriter, statusCode int, code, message string, details map[string]string) {
	WriteJSON(w, statusCode, ErrorResponse{
		Error: ErrorDetail{
			Code:    code,
			Message: message,
			Details: details,
		},
	})
}

// WriteBadRequest writes a 400 Bad Request response.
func WriteBadRequest(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusBadRequest, "bad_request", message, nil)
}

// writeServiceError maps an error returned by the service layer to an HTTP
// response. Unexpected errors are logged and reported without detail.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var ve *model.ValidationError
	switch {
	case errors.As(err, &ve):
		WriteError(w, http.StatusBadRequest, "validation_error", "Validation failed", ve.Fields)
	case errors.Is(err, model.ErrDuplicateEmail):
		WriteError(w, http.StatusBadRequest, "duplicate_email", "User already exists", nil)
	case errors.Is(err, model.ErrInvalidCredentials):
		WriteError(w, http.StatusBadRequest, "invalid_credentials", "Invalid credentials", nil)
	case errors.Is(err, model.ErrUnauthenticated):
		WriteError(w, http.StatusUnauthorized, "unauthorized", "Unauthorized", nil)
	case errors.Is(err, model.ErrForbidden):
		WriteError(w, http.StatusForbidden, "forbidden", "Forbidden", nil)
	case errors.Is(err, model.ErrNotFound):
		WriteError(w, http.StatusNotFound, "not_found", "Not found", nil)
	case errors.Is(err, model.ErrConflict):
		WriteError(w, http.StatusConflict, "conflict", "The resource was modified concurrently, reload and retry", nil)
	case errors.Is(err, model.ErrRateLimited):
		WriteError(w, http.StatusTooManyRequests, "rate_limit_exceeded", "Too many requests, try again in a few seconds", nil)
	default:
		slog.Error("request failed", "error", err, "method", r.Method, "path", r.URL.Path)
		WriteError(w, http.StatusInternalServerError, "internal_error", "Internal server error", nil)
	}
}

// decodeJSON reads the request body into dst. On failure a 400 response is
// written and false returned.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		WriteBadRequest(w, "Invalid JSON body")
		return false
	}
	return true
}
