// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package api

import (
	"net/http"
	"strconv"

	"github.com/olegiv/otask-go/internal/middleware"
	"github.com/olegiv/otask-go/internal/model"
)

// EventsResponse wraps an audit event list.
type EventsResponse struct {
	Events []model.Event `json:"events"`
}

// ListEvents handles GET /api/events (admin only). The optional limit
// query parameter bounds the number of events returned.
func (h *Handler) ListEvents(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			WriteError(w, http.StatusBadRequest, "validation_error", "Validation failed",
				map[string]string{"limit": "limit must be a positive integer"})
			return
		}
		limit = n
	}

	events, err := h.events.List(r.Context(), middleware.GetIdentity(r), limit)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if events == nil {
		events = []model.Event{}
	}
	WriteJSON(w, http.StatusOK, EventsResponse{Events: events})
}
