// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/olegiv/otask-go/internal/middleware"
)

// Route paths relative to the /api mount point.
const (
	RouteHealth  = "/health"
	RouteAuth    = "/auth"
	RouteSignup  = "/signup"
	RouteLogin   = "/login"
	RouteMe      = "/me"
	RouteRole    = "/role"
	RouteLogout  = "/logout"
	RouteUsers   = "/users"
	RouteTasks   = "/tasks"
	RouteMyTasks = "/my-tasks"
	RouteTaskID  = "/{id}"
	RouteEvents  = "/events"
	RouteJobs    = "/jobs"
	RouteJobName = "/{name}"
	RouteJobRun  = "/{name}/run"
)

// Routes registers every API route on r. Public routes are health,
// signup and login; everything else requires a bearer token.
func (h *Handler) Routes(r chi.Router) {
	r.Get(RouteHealth, h.Health)

	r.Route(RouteAuth, func(r chi.Router) {
		r.Post(RouteSignup, h.Signup)
		if h.login != nil {
			r.With(h.login.Middleware()).Post(RouteLogin, h.Login)
		} else {
			r.Post(RouteLogin, h.Login)
		}

		r.Group(func(r chi.Router) {
			r.Use(middleware.BearerAuth(h.identity))
			r.Get(RouteMe, h.Me)
			r.Put(RouteRole, h.UpdateRole)
			r.Post(RouteLogout, h.Logout)
			r.Get(RouteUsers, h.ListUsers)
		})
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.BearerAuth(h.identity))

		r.Get(RouteUsers, h.ListUsers)
		r.Get(RouteEvents, h.ListEvents)

		r.Route(RouteTasks, func(r chi.Router) {
			r.Get("/", h.ListTasks)
			r.Post("/", h.CreateTask)
			r.Get(RouteMyTasks, h.MyTasks)
			r.Get(RouteTaskID, h.GetTask)
			r.Put(RouteTaskID, h.UpdateTask)
			r.Delete(RouteTaskID, h.DeleteTask)
		})

		if h.jobs != nil {
			r.Route(RouteJobs, func(r chi.Router) {
				r.Get("/", h.ListJobs)
				r.Put(RouteJobName, h.UpdateJobSchedule)
				r.Post(RouteJobRun, h.RunJob)
			})
		}
	})

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		WriteError(w, http.StatusNotFound, "not_found", "Route not found", nil)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		WriteError(w, http.StatusMethodNotAllowed, "method_not_allowed", "Method not allowed", nil)
	})
}
