// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package model

import (
	"maps"
	"slices"
	"time"
)

// TaskStatus is the closed set of task states. Any state is reachable from any other.
type TaskStatus string

// Task statuses
const (
	TaskStatusPending    TaskStatus = "pending"
	TaskStatusInProgress TaskStatus = "inProgress"
	TaskStatusCompleted  TaskStatus = "completed"
)

// Valid reports whether s is one of the known statuses.
func (s TaskStatus) Valid() bool {
	switch s {
	case TaskStatusPending, TaskStatusInProgress, TaskStatusCompleted:
		return true
	}
	return false
}

// Task field names as they appear in update requests.
const (
	TaskFieldTitle       = "title"
	TaskFieldDescription = "description"
	TaskFieldAssignedTo  = "assignedTo"
	TaskFieldStatus      = "status"
)

// Task is a unit of work assigned to a user.
type Task struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	AssignedTo  string     `json:"assignedTo"`
	Status      TaskStatus `json:"status"`
	CreatedBy   string     `json:"createdBy"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
	Version     int64      `json:"version"`
}

// NewTask holds the caller-supplied fields of a task to be created.
type NewTask struct {
	Title       string
	Description string
	AssignedTo  string
}

// TaskUpdate is a partial update. A nil field is left unchanged.
// Rejected holds keys that were present in the request but carry no usable
// value (null, wrong type or unknown), mapped to the reason.
type TaskUpdate struct {
	Title       *string
	Description *string
	AssignedTo  *string
	Status      *TaskStatus
	Rejected    map[string]string
}

// Fields returns the names of the fields present in the update, rejected
// keys included, in a stable order.
func (u TaskUpdate) Fields() []string {
	var fields []string
	if u.Title != nil {
		fields = append(fields, TaskFieldTitle)
	}
	if u.Description != nil {
		fields = append(fields, TaskFieldDescription)
	}
	if u.AssignedTo != nil {
		fields = append(fields, TaskFieldAssignedTo)
	}
	if u.Status != nil {
		fields = append(fields, TaskFieldStatus)
	}
	return append(fields, slices.Sorted(maps.Keys(u.Rejected))...)
}

// Apply returns a copy of t with the present fields of u applied.
func (u TaskUpdate) Apply(t Task) Task {
	if u.Title != nil {
		t.Title = *u.Title
	}
	if u.Description != nil {
		t.Description = *u.Description
	}
	if u.AssignedTo != nil {
		t.AssignedTo = *u.AssignedTo
	}
	if u.Status != nil {
		t.Status = *u.Status
	}
	return t
}
