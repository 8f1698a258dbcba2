// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package api

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/olegiv/otask-go/internal/middleware"
	"github.com/olegiv/otask-go/internal/model"
)

// TaskAPIResponse represents a task in API responses. DescriptionHTML is
// the description rendered from Markdown and sanitized.
type TaskAPIResponse struct {
	model.Task
	DescriptionHTML string `json:"descriptionHtml"`
}

// TasksResponse wraps a task list.
type TasksResponse struct {
	Tasks []TaskAPIResponse `json:"tasks"`
}

// CreateTaskRequest represents the request body for creating a task.
type CreateTaskRequest struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	AssignedTo  string `json:"assignedTo"`
}

// parseTaskUpdate builds a TaskUpdate from the body of PUT /api/tasks/{id}.
// Absent fields are left unchanged. Every key present in the body is
// reported by the update's Fields; null values and unknown keys land in
// Rejected.
func parseTaskUpdate(raw map[string]json.RawMessage) model.TaskUpdate {
	var upd model.TaskUpdate
	reject := func(key, msg string) {
		if upd.Rejected == nil {
			upd.Rejected = make(map[string]string)
		}
		upd.Rejected[key] = msg
	}

	for key, value := range raw {
		var dst **string
		switch key {
		case model.TaskFieldTitle:
			dst = &upd.Title
		case model.TaskFieldDescription:
			dst = &upd.Description
		case model.TaskFieldAssignedTo:
			dst = &upd.AssignedTo
		case model.TaskFieldStatus:
			var status string
			if msg := decodeString(value, &status); msg != "" {
				reject(key, msg)
				continue
			}
			st := model.TaskStatus(status)
			upd.Status = &st
			continue
		default:
			reject(key, "Unknown field")
			continue
		}

		var v string
		if msg := decodeString(value, &v); msg != "" {
			reject(key, msg)
			continue
		}
		*dst = &v
	}
	return upd
}

// decodeString decodes a JSON string into dst and returns a validation
// message when the value is null or not a string.
func decodeString(value json.RawMessage, dst *string) string {
	if string(bytes.TrimSpace(value)) == "null" {
		return "Must not be null"
	}
	if err := json.Unmarshal(value, dst); err != nil {
		return "Must be a string"
	}
	return ""
}

// ListTasks handles GET /api/tasks (admin only).
func (h *Handler) ListTasks(w http.ResponseWriter, r *http.Request) {
	tasks, err := h.tasks.ListAll(r.Context(), middleware.GetIdentity(r))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, TasksResponse{Tasks: h.taskList(tasks)})
}

// MyTasks handles GET /api/tasks/my-tasks.
func (h *Handler) MyTasks(w http.ResponseWriter, r *http.Request) {
	tasks, err := h.tasks.ListMine(r.Context(), middleware.GetIdentity(r))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, TasksResponse{Tasks: h.taskList(tasks)})
}

// GetTask handles GET /api/tasks/{id}.
func (h *Handler) GetTask(w http.ResponseWriter, r *http.Request) {
	task, err := h.tasks.Get(r.Context(), middleware.GetIdentity(r), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, h.taskResponse(*task))
}

// CreateTask handles POST /api/tasks (admin only).
func (h *Handler) CreateTask(w http.ResponseWriter, r *http.Request) {
	var req CreateTaskRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	task, err := h.tasks.Create(r.Context(), middleware.GetIdentity(r), model.NewTask{
		Title:       req.Title,
		Description: req.Description,
		AssignedTo:  req.AssignedTo,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusCreated, h.taskResponse(*task))
}

// UpdateTask handles PUT /api/tasks/{id}.
func (h *Handler) UpdateTask(w http.ResponseWriter, r *http.Request) {
	var raw map[string]json.RawMessage
	if !decodeJSON(w, r, &raw) {
		return
	}

	task, err := h.tasks.Update(r.Context(), middleware.GetIdentity(r), chi.URLParam(r, "id"), parseTaskUpdate(raw))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, h.taskResponse(*task))
}

// DeleteTask handles DELETE /api/tasks/{id} (admin only).
func (h *Handler) DeleteTask(w http.ResponseWriter, r *http.Request) {
	if err := h.tasks.Delete(r.Context(), middleware.GetIdentity(r), chi.URLParam(r, "id")); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) taskResponse(t model.Task) TaskAPIResponse {
	html, err := h.markdown.Render(t.Description)
	if err != nil {
		slog.Warn("failed to render task description", "task_id", t.ID, "error", err)
	}
	return TaskAPIResponse{Task: t, DescriptionHTML: html}
}

func (h *Handler) taskList(tasks []model.Task) []TaskAPIResponse {
	out := make([]TaskAPIResponse, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, h.taskResponse(t))
	}
	return out
}
