// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/olegiv/otask-go/internal/model"
	"github.com/olegiv/otask-go/internal/policy"
	"github.com/olegiv/otask-go/internal/store"
)

// TaskService applies the authorization policy and input rules to task
// operations before they reach the store.
type TaskService struct {
	queries *store.Queries
	policy  policy.Policy
	events  *EventService
	now     func() time.Time
}

// NewTaskService creates a TaskService.
func NewTaskService(db *sql.DB, pol policy.Policy, events *EventService) *TaskService {
	return &TaskService{
		queries: store.New(db),
		policy:  pol,
		events:  events,
		now:     time.Now,
	}
}

// Create stores a new pending task. Admin only.
func (s *TaskService) Create(ctx context.Context, identity *model.Identity, in model.NewTask) (*model.Task, error) {
	if identity == nil {
		return nil, model.ErrUnauthenticated
	}
	if !s.policy.Can(identity, policy.ActionCreateTask, policy.Resource{}) {
		return nil, model.ErrForbidden
	}

	title := strings.TrimSpace(in.Title)
	assignee := strings.TrimSpace(in.AssignedTo)

	ve := &model.ValidationError{}
	if title == "" {
		ve.Add(model.TaskFieldTitle, "Title is required")
	}
	if assignee == "" {
		ve.Add(model.TaskFieldAssignedTo, "assignedTo is required")
	} else if err := s.checkAssignee(ctx, assignee, ve); err != nil {
		return nil, err
	}
	if err := ve.OrNil(); err != nil {
		return nil, err
	}

	now := s.now()
	task, err := s.queries.CreateTask(ctx, store.CreateTaskParams{
		ID:          uuid.NewString(),
		Title:       title,
		Description: in.Description,
		AssignedTo:  assignee,
		Status:      model.TaskStatusPending,
		CreatedBy:   identity.UserID,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	if err != nil {
		return nil, fmt.Errorf("creating task: %w", err)
	}

	_ = s.events.LogTaskEvent(ctx, model.EventLevelInfo, "Task created", identity.UserID,
		map[string]any{"task_id": task.ID, "assigned_to": task.AssignedTo})
	return &task, nil
}

// Get returns a task the caller is allowed to read.
func (s *TaskService) Get(ctx context.Context, identity *model.Identity, id string) (*model.Task, error) {
	if identity == nil {
		return nil, model.ErrUnauthenticated
	}
	task, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !s.policy.Can(identity, policy.ActionReadTask, policy.TaskResource(*task)) {
		return nil, model.ErrForbidden
	}
	return task, nil
}

// ListAll returns every task, newest first. Admin only.
func (s *TaskService) ListAll(ctx context.Context, identity *model.Identity) ([]model.Task, error) {
	if identity == nil {
		return nil, model.ErrUnauthenticated
	}
	if !s.policy.Can(identity, policy.ActionListAllTasks, policy.Resource{}) {
		return nil, model.ErrForbidden
	}
	tasks, err := s.queries.ListTasks(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing tasks: %w", err)
	}
	return tasks, nil
}

// ListMine returns the tasks assigned to the caller, newest first.
func (s *TaskService) ListMine(ctx context.Context, identity *model.Identity) ([]model.Task, error) {
	if identity == nil {
		return nil, model.ErrUnauthenticated
	}
	if !s.policy.Can(identity, policy.ActionListOwnTasks, policy.Resource{AssignedTo: identity.UserID}) {
		return nil, model.ErrForbidden
	}
	tasks, err := s.queries.ListTasksByAssignee(ctx, identity.UserID)
	if err != nil {
		return nil, fmt.Errorf("listing tasks: %w", err)
	}
	return tasks, nil
}

// Update applies a partial update. Admins may change any field; assignees
// may change only the status. The write succeeds only if nobody else
// updated the task since it was read, otherwise model.ErrConflict.
func (s *TaskService) Update(ctx context.Context, identity *model.Identity, id string, upd model.TaskUpdate) (*model.Task, error) {
	if identity == nil {
		return nil, model.ErrUnauthenticated
	}
	current, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !s.policy.Can(identity, policy.ActionUpdateTask, policy.TaskResource(*current)) {
		return nil, model.ErrForbidden
	}
	if err := policy.CheckUpdateFields(identity, upd.Fields()); err != nil {
		return nil, err
	}

	if upd.Title != nil {
		t := strings.TrimSpace(*upd.Title)
		upd.Title = &t
	}
	if upd.AssignedTo != nil {
		a := strings.TrimSpace(*upd.AssignedTo)
		upd.AssignedTo = &a
	}

	ve := &model.ValidationError{}
	for field, msg := range upd.Rejected {
		ve.Add(field, msg)
	}
	if upd.Title != nil && *upd.Title == "" {
		ve.Add(model.TaskFieldTitle, "Title cannot be empty")
	}
	if upd.Status != nil && !upd.Status.Valid() {
		ve.Add(model.TaskFieldStatus, "Invalid status")
	}
	if upd.AssignedTo != nil && *upd.AssignedTo != current.AssignedTo {
		if *upd.AssignedTo == "" {
			ve.Add(model.TaskFieldAssignedTo, "assignedTo cannot be empty")
		} else if err := s.checkAssignee(ctx, *upd.AssignedTo, ve); err != nil {
			return nil, err
		}
	}
	if err := ve.OrNil(); err != nil {
		return nil, err
	}

	next := upd.Apply(*current)
	updated, err := s.queries.UpdateTask(ctx, store.UpdateTaskParams{
		ID:          current.ID,
		Title:       next.Title,
		Description: next.Description,
		AssignedTo:  next.AssignedTo,
		Status:      next.Status,
		UpdatedAt:   s.now(),
		Version:     current.Version,
	})
	if errors.Is(err, sql.ErrNoRows) {
		// Deleted or modified since it was read.
		if _, lerr := s.load(ctx, id); errors.Is(lerr, model.ErrNotFound) {
			return nil, model.ErrNotFound
		}
		return nil, model.ErrConflict
	}
	if err != nil {
		return nil, fmt.Errorf("updating task: %w", err)
	}

	_ = s.events.LogTaskEvent(ctx, model.EventLevelInfo, "Task updated", identity.UserID,
		map[string]any{"task_id": updated.ID, "fields": upd.Fields(), "version": updated.Version})
	return &updated, nil
}

// Delete removes a task. Admin only.
func (s *TaskService) Delete(ctx context.Context, identity *model.Identity, id string) error {
	if identity == nil {
		return model.ErrUnauthenticated
	}
	if !s.policy.Can(identity, policy.ActionDeleteTask, policy.Resource{}) {
		return model.ErrForbidden
	}
	n, err := s.queries.DeleteTask(ctx, id)
	if err != nil {
		return fmt.Errorf("deleting task: %w", err)
	}
	if n == 0 {
		return model.ErrNotFound
	}

	_ = s.events.LogTaskEvent(ctx, model.EventLevelInfo, "Task deleted", identity.UserID,
		map[string]any{"task_id": id})
	return nil
}

func (s *TaskService) load(ctx context.Context, id string) (*model.Task, error) {
	task, err := s.queries.GetTaskByID(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading task: %w", err)
	}
	return &task, nil
}

// checkAssignee records a validation error when userID names no user.
func (s *TaskService) checkAssignee(ctx context.Context, userID string, ve *model.ValidationError) error {
	exists, err := s.queries.UserExists(ctx, userID)
	if err != nil {
		return fmt.Errorf("checking assignee: %w", err)
	}
	if !exists {
		ve.Add(model.TaskFieldAssignedTo, "Assigned user does not exist")
	}
	return nil
}
