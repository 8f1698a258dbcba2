// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package model

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestEventJSON(t *testing.T) {
	e := Event{
		ID:        7,
		Level:     EventLevelWarning,
		Category:  EventCategoryAuth,
		Message:   "Failed login attempt",
		Metadata:  `{"email":"alice@example.com"}`,
		CreatedAt: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
	}

	data, err := json.Marshal(e)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	got := string(data)

	for _, want := range []string{`"level":"warning"`, `"category":"auth"`, `"createdAt":"2026-03-01T09:00:00Z"`} {
		if !strings.Contains(got, want) {
			t.Errorf("JSON %s missing %s", got, want)
		}
	}
	for _, absent := range []string{`"userId"`, `"ipAddress"`} {
		if strings.Contains(got, absent) {
			t.Errorf("JSON %s should omit empty %s", got, absent)
		}
	}
}

func TestEventConstantsDistinct(t *testing.T) {
	seen := make(map[string]bool)
	for _, v := range []string{
		EventLevelInfo, EventLevelWarning, EventLevelError,
		EventCategoryAuth, EventCategoryTask, EventCategoryUser, EventCategorySystem,
	} {
		if seen[v] {
			t.Errorf("duplicate event constant %q", v)
		}
		seen[v] = true
	}
}
