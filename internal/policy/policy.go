// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package policy implements the task-access authorization rules.
//
// Every decision is a pure function of the caller identity, the action and
// the target resource: no I/O, no clock, no shared state. Role checks are
// evaluated before ownership checks, so an admin bypasses ownership
// entirely. A nil identity or an unrecognized role is always denied.
package policy

import (
	"github.com/olegiv/otask-go/internal/model"
)

// Action names an operation subject to authorization.
type Action string

// Actions
const (
	ActionCreateTask   Action = "task/create"
	ActionListAllTasks Action = "task/list-all"
	ActionListOwnTasks Action = "task/list-own"
	ActionReadTask     Action = "task/read"
	ActionUpdateTask   Action = "task/update"
	ActionDeleteTask   Action = "task/delete"
	ActionListUsers    Action = "user/list"
	ActionListEvents   Action = "event/list"
	ActionAssignRole   Action = "user/assign-role"
	ActionListJobs     Action = "job/list"
	ActionRunJob       Action = "job/run"
	ActionScheduleJob  Action = "job/schedule"
)

// Resource describes the target of an action. AssignedTo is only
// meaningful for task actions.
type Resource struct {
	AssignedTo string
}

// TaskResource returns the Resource for an existing task.
func TaskResource(t model.Task) Resource {
	return Resource{AssignedTo: t.AssignedTo}
}

// Policy holds the deployment-level switches that shape the rules.
// The zero value disables role self-service.
type Policy struct {
	// RoleSelfService lets any authenticated user change their own role.
	RoleSelfService bool
}

// New creates a policy.
func New(roleSelfService bool) Policy {
	return Policy{RoleSelfService: roleSelfService}
}

// Can reports whether identity may perform action on res.
func (p Policy) Can(identity *model.Identity, action Action, res Resource) bool {
	if identity == nil || !identity.Role.Valid() {
		return false
	}

	isAdmin := identity.Role == model.RoleAdmin

	switch action {
	case ActionCreateTask, ActionListAllTasks, ActionDeleteTask, ActionListUsers, ActionListEvents,
		ActionListJobs, ActionRunJob, ActionScheduleJob:
		return isAdmin
	case ActionListOwnTasks:
		return true
	case ActionReadTask, ActionUpdateTask:
		if isAdmin {
			return true
		}
		return res.AssignedTo != "" && res.AssignedTo == identity.UserID
	case ActionAssignRole:
		return isAdmin || p.RoleSelfService
	default:
		return false
	}
}

// CheckUpdateFields enforces the field-level update rule. Admins may change
// any field. Everyone else may change only the status, and an update that
// names any other field is rejected in full.
func CheckUpdateFields(identity *model.Identity, fields []string) error {
	if identity.IsAdmin() {
		return nil
	}

	hasStatus := false
	for _, f := range fields {
		if f != model.TaskFieldStatus {
			return model.NewValidationError(f, "Only status can be updated by non-admin users")
		}
		hasStatus = true
	}
	if !hasStatus {
		return model.NewValidationError(model.TaskFieldStatus, "Only status can be updated by non-admin users")
	}
	return nil
}
