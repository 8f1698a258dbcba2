// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"testing"
	"time"

	"github.com/olegiv/otask-go/internal/model"
	"github.com/olegiv/otask-go/internal/policy"
	"github.com/olegiv/otask-go/internal/testutil"
)

var adminIdentity = &model.Identity{UserID: "admin-1", Role: model.RoleAdmin}

func setupEventService(t *testing.T) (*EventService, *sql.DB) {
	t.Helper()
	db, cleanup := testutil.TestDB(t)
	t.Cleanup(cleanup)
	return NewEventService(db, policy.New(true)), db
}

func TestLogEvent(t *testing.T) {
	svc, db := setupEventService(t)
	ctx := WithRequestInfo(context.Background(), RequestInfo{IPAddress: "192.168.1.100"})

	err := svc.LogEvent(ctx, model.EventLevelInfo, model.EventCategoryTask, "Test message", "user-123", map[string]any{
		"key": "value",
	})
	if err != nil {
		t.Fatalf("LogEvent failed: %v", err)
	}

	var level, category, message, metadata, ip string
	var userID sql.NullString
	err = db.QueryRow("SELECT level, category, message, user_id, metadata, ip_address FROM events").
		Scan(&level, &category, &message, &userID, &metadata, &ip)
	if err != nil {
		t.Fatalf("failed to read event: %v", err)
	}

	if level != "info" {
		t.Errorf("level = %q, want %q", level, "info")
	}
	if category != "task" {
		t.Errorf("category = %q, want %q", category, "task")
	}
	if message != "Test message" {
		t.Errorf("message = %q, want %q", message, "Test message")
	}
	if !userID.Valid || userID.String != "user-123" {
		t.Errorf("user_id = %v, want user-123", userID)
	}
	if metadata != `{"key":"value"}` {
		t.Errorf("metadata = %q, want %q", metadata, `{"key":"value"}`)
	}
	if ip != "192.168.1.100" {
		t.Errorf("ip_address = %q, want %q", ip, "192.168.1.100")
	}
}

func TestLogEvent_NoUserNoMetadata(t *testing.T) {
	svc, db := setupEventService(t)

	if err := svc.LogSystemEvent(context.Background(), model.EventLevelWarning, "No user", nil); err != nil {
		t.Fatalf("LogSystemEvent failed: %v", err)
	}

	var userID sql.NullString
	var metadata, category string
	if err := db.QueryRow("SELECT user_id, metadata, category FROM events").Scan(&userID, &metadata, &category); err != nil {
		t.Fatalf("failed to read event: %v", err)
	}
	if userID.Valid {
		t.Error("user_id should be NULL")
	}
	if metadata != "{}" {
		t.Errorf("metadata = %q, want %q", metadata, "{}")
	}
	if category != model.EventCategorySystem {
		t.Errorf("category = %q, want %q", category, model.EventCategorySystem)
	}
}

func TestLogAuthEvent_ClientMetadata(t *testing.T) {
	svc, db := setupEventService(t)
	ctx := WithRequestInfo(context.Background(), RequestInfo{
		IPAddress: "10.0.0.1",
		UserAgent: "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	})

	if err := svc.LogAuthEvent(ctx, model.EventLevelInfo, "User logged in", "u1", map[string]any{"email": "a@b.co"}); err != nil {
		t.Fatalf("LogAuthEvent failed: %v", err)
	}

	var raw string
	if err := db.QueryRow("SELECT metadata FROM events").Scan(&raw); err != nil {
		t.Fatalf("failed to read event: %v", err)
	}
	var meta map[string]string
	if err := json.Unmarshal([]byte(raw), &meta); err != nil {
		t.Fatalf("metadata is not JSON: %v", err)
	}
	if meta["browser"] != "Chrome" {
		t.Errorf("browser = %q, want Chrome", meta["browser"])
	}
	if meta["os"] != "Windows" {
		t.Errorf("os = %q, want Windows", meta["os"])
	}
	if meta["device"] != "desktop" {
		t.Errorf("device = %q, want desktop", meta["device"])
	}
	if meta["email"] != "a@b.co" {
		t.Errorf("email = %q, want a@b.co", meta["email"])
	}
}

func TestClientMetadata(t *testing.T) {
	tests := []struct {
		name       string
		ua         string
		wantDevice string
	}{
		{"empty", "", ""},
		{"mobile", "Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Mobile/15E148 Safari/604.1", "mobile"},
		{"bot", "Mozilla/5.0 (compatible; Googlebot/2.1; +http://www.google.com/bot.html)", "bot"},
		{"desktop", "Mozilla/5.0 (X11; Linux x86_64; rv:121.0) Gecko/20100101 Firefox/121.0", "desktop"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			meta := clientMetadata(tt.ua)
			if tt.wantDevice == "" {
				if len(meta) != 0 {
					t.Errorf("clientMetadata(%q) = %v, want empty", tt.ua, meta)
				}
				return
			}
			if meta["device"] != tt.wantDevice {
				t.Errorf("device = %v, want %q", meta["device"], tt.wantDevice)
			}
			if meta["browser"] == "" || meta["os"] == "" {
				t.Errorf("browser and os must be set, got %v", meta)
			}
		})
	}
}

func TestEventService_List(t *testing.T) {
	svc, _ := setupEventService(t)
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for i, msg := range []string{"first", "second", "third"} {
		at := base.Add(time.Duration(i) * time.Minute)
		svc.now = func() time.Time { return at }
		if err := svc.LogSystemEvent(ctx, model.EventLevelInfo, msg, nil); err != nil {
			t.Fatalf("LogSystemEvent: %v", err)
		}
	}

	events, err := svc.List(ctx, adminIdentity, 2)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("len(events) = %d, want 2", len(events))
	}
	if events[0].Message != "third" || events[1].Message != "second" {
		t.Errorf("order = [%s %s], want [third second]", events[0].Message, events[1].Message)
	}

	events, err = svc.List(ctx, adminIdentity, 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(events) != 3 {
		t.Errorf("default limit returned %d events, want 3", len(events))
	}
}

func TestEventService_ListAdminOnly(t *testing.T) {
	svc, _ := setupEventService(t)
	ctx := context.Background()

	if _, err := svc.List(ctx, nil, 10); err != model.ErrUnauthenticated {
		t.Errorf("nil identity: err = %v, want ErrUnauthenticated", err)
	}
	user := &model.Identity{UserID: "u1", Role: model.RoleUser}
	if _, err := svc.List(ctx, user, 10); err != model.ErrForbidden {
		t.Errorf("user identity: err = %v, want ErrForbidden", err)
	}
}

func TestDeleteOldEvents(t *testing.T) {
	svc, db := setupEventService(t)
	ctx := context.Background()

	now := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	for _, age := range []time.Duration{40 * 24 * time.Hour, 31 * 24 * time.Hour, time.Hour} {
		at := now.Add(-age)
		svc.now = func() time.Time { return at }
		if err := svc.LogSystemEvent(ctx, model.EventLevelInfo, "tick", nil); err != nil {
			t.Fatalf("LogSystemEvent: %v", err)
		}
	}

	svc.now = func() time.Time { return now }
	n, err := svc.DeleteOldEvents(ctx, 30*24*time.Hour)
	if err != nil {
		t.Fatalf("DeleteOldEvents: %v", err)
	}
	if n != 2 {
		t.Errorf("deleted = %d, want 2", n)
	}

	var count int
	if err := db.QueryRow("SELECT COUNT(*) FROM events").Scan(&count); err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Errorf("remaining = %d, want 1", count)
	}
}
