// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package service holds the business operations behind the API: identity,
// tasks and the audit event log. Every operation takes the caller identity
// and consults the authorization policy before touching the store.
package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/mileusna/useragent"

	"github.com/olegiv/otask-go/internal/model"
	"github.com/olegiv/otask-go/internal/policy"
	"github.com/olegiv/otask-go/internal/store"
)

// Limits for event listing.
const (
	DefaultEventLimit = 50
	MaxEventLimit     = 500
)

// RequestInfo describes the HTTP client behind an operation.
type RequestInfo struct {
	IPAddress string
	UserAgent string
}

type requestInfoKey struct{}

// WithRequestInfo attaches client details to ctx for audit logging.
func WithRequestInfo(ctx context.Context, info RequestInfo) context.Context {
	return context.WithValue(ctx, requestInfoKey{}, info)
}

// RequestInfoFrom returns the client details attached to ctx, if any.
func RequestInfoFrom(ctx context.Context) RequestInfo {
	info, _ := ctx.Value(requestInfoKey{}).(RequestInfo)
	return info
}

// EventService records and lists audit events.
type EventService struct {
	queries *store.Queries
	policy  policy.Policy
	now     func() time.Time
}

// NewEventService creates a new EventService.
func NewEventService(db *sql.DB, pol policy.Policy) *EventService {
	return &EventService{
		queries: store.New(db),
		policy:  pol,
		now:     time.Now,
	}
}

// LogEvent creates a new event log entry. The client IP is taken from ctx.
func (s *EventService) LogEvent(ctx context.Context, level, category, message, userID string, metadata map[string]any) error {
	metadataJSON := "{}"
	if len(metadata) > 0 {
		if b, err := json.Marshal(metadata); err == nil {
			metadataJSON = string(b)
		}
	}

	err := s.queries.CreateEvent(ctx, store.CreateEventParams{
		Level:     level,
		Category:  category,
		Message:   message,
		UserID:    sql.NullString{String: userID, Valid: userID != ""},
		IPAddress: RequestInfoFrom(ctx).IPAddress,
		Metadata:  metadataJSON,
		CreatedAt: s.now(),
	})
	if err != nil {
		// Not through slog.Warn: the event log handler would retry the same write.
		slog.Debug("failed to log event", "message", message, "error", err)
		return fmt.Errorf("logging event: %w", err)
	}
	return nil
}

// LogAuthEvent logs an authentication event enriched with the client's
// browser, OS and device type.
func (s *EventService) LogAuthEvent(ctx context.Context, level, message, userID string, metadata map[string]any) error {
	meta := clientMetadata(RequestInfoFrom(ctx).UserAgent)
	for k, v := range metadata {
		meta[k] = v
	}
	return s.LogEvent(ctx, level, model.EventCategoryAuth, message, userID, meta)
}

// LogTaskEvent logs a task-related event.
func (s *EventService) LogTaskEvent(ctx context.Context, level, message, userID string, metadata map[string]any) error {
	return s.LogEvent(ctx, level, model.EventCategoryTask, message, userID, metadata)
}

// LogUserEvent logs a user-related event.
func (s *EventService) LogUserEvent(ctx context.Context, level, message, userID string, metadata map[string]any) error {
	return s.LogEvent(ctx, level, model.EventCategoryUser, message, userID, metadata)
}

// LogSystemEvent logs a system event.
func (s *EventService) LogSystemEvent(ctx context.Context, level, message string, metadata map[string]any) error {
	return s.LogEvent(ctx, level, model.EventCategorySystem, message, "", metadata)
}

// List returns the most recent events. Only admins may list events.
// limit is clamped to [1, MaxEventLimit]; zero selects DefaultEventLimit.
func (s *EventService) List(ctx context.Context, identity *model.Identity, limit int) ([]model.Event, error) {
	if identity == nil {
		return nil, model.ErrUnauthenticated
	}
	if !s.policy.Can(identity, policy.ActionListEvents, policy.Resource{}) {
		return nil, model.ErrForbidden
	}

	switch {
	case limit <= 0:
		limit = DefaultEventLimit
	case limit > MaxEventLimit:
		limit = MaxEventLimit
	}

	events, err := s.queries.ListEvents(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("listing events: %w", err)
	}
	return events, nil
}

// DeleteOldEvents removes events older than the given duration.
func (s *EventService) DeleteOldEvents(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := s.now().Add(-olderThan)
	n, err := s.queries.DeleteEventsBefore(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("deleting old events: %w", err)
	}
	return n, nil
}

// clientMetadata extracts browser, OS and device type from a user agent.
func clientMetadata(uaString string) map[string]any {
	meta := map[string]any{}
	if uaString == "" {
		return meta
	}

	ua := useragent.Parse(uaString)
	browser, osName := ua.Name, ua.OS
	if browser == "" {
		browser = "Unknown"
	}
	if osName == "" {
		osName = "Unknown"
	}

	var device string
	switch {
	case ua.Bot:
		device = "bot"
	case ua.Mobile:
		device = "mobile"
	case ua.Tablet:
		device = "tablet"
	default:
		device = "desktop"
	}

	meta["browser"] = browser
	meta["os"] = osName
	meta["device"] = device
	return meta
}
