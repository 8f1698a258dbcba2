// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/olegiv/otask-go/internal/middleware"
	"github.com/olegiv/otask-go/internal/scheduler"
)

// Job is the JSON view of a maintenance job. LastRun is omitted until the
// job has run once.
type Job struct {
	Name            string     `json:"name"`
	Description     string     `json:"description"`
	DefaultSchedule string     `json:"defaultSchedule"`
	Schedule        string     `json:"schedule"`
	IsOverridden    bool       `json:"isOverridden"`
	LastRun         *time.Time `json:"lastRun,omitempty"`
	NextRun         *time.Time `json:"nextRun,omitempty"`
}

// JobResponse wraps a single job.
type JobResponse struct {
	Job Job `json:"job"`
}

// JobsResponse wraps a job list.
type JobsResponse struct {
	Jobs []Job `json:"jobs"`
}

// ScheduleRequest represents the request body for PUT /api/jobs/{name}.
type ScheduleRequest struct {
	Schedule string `json:"schedule"`
}

func toJob(j scheduler.JobInfo) Job {
	resp := Job{
		Name:            j.Name,
		Description:     j.Description,
		DefaultSchedule: j.DefaultSchedule,
		Schedule:        j.Schedule,
		IsOverridden:    j.IsOverridden,
	}
	if !j.LastRun.IsZero() {
		t := j.LastRun.UTC()
		resp.LastRun = &t
	}
	if !j.NextRun.IsZero() {
		t := j.NextRun.UTC()
		resp.NextRun = &t
	}
	return resp
}

// ListJobs handles GET /api/jobs (admin only).
func (h *Handler) ListJobs(w http.ResponseWriter, r *http.Request) {
	jobs, err := h.jobs.List(r.Context(), middleware.GetIdentity(r))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	resp := JobsResponse{Jobs: make([]Job, 0, len(jobs))}
	for _, j := range jobs {
		resp.Jobs = append(resp.Jobs, toJob(j))
	}
	WriteJSON(w, http.StatusOK, resp)
}

// RunJob handles POST /api/jobs/{name}/run (admin only). The job runs to
// completion before the response is sent.
func (h *Handler) RunJob(w http.ResponseWriter, r *http.Request) {
	if err := h.jobs.Run(r.Context(), middleware.GetIdentity(r), chi.URLParam(r, "name")); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// UpdateJobSchedule handles PUT /api/jobs/{name} (admin only). The new
// schedule lasts until the next restart.
func (h *Handler) UpdateJobSchedule(w http.ResponseWriter, r *http.Request) {
	var req ScheduleRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	job, err := h.jobs.Reschedule(r.Context(), middleware.GetIdentity(r), chi.URLParam(r, "name"), req.Schedule)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, JobResponse{Job: toJob(*job)})
}
