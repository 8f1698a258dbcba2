// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/olegiv/otask-go/internal/model"
)

const taskColumns = `id, title, description, assigned_to, status, created_by, created_at, updated_at, version`

func scanTask(row rowScanner) (model.Task, error) {
	var t model.Task
	var status string
	err := row.Scan(&t.ID, &t.Title, &t.Description, &t.AssignedTo, &status,
		&t.CreatedBy, &t.CreatedAt, &t.UpdatedAt, &t.Version)
	t.Status = model.TaskStatus(status)
	t.CreatedAt, t.UpdatedAt = t.CreatedAt.UTC(), t.UpdatedAt.UTC()
	return t, err
}

func (q *Queries) listTasks(ctx context.Context, query string, args ...any) ([]model.Task, error) {
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	items := []model.Task{}
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

// CreateTaskParams holds the columns of a new task.
type CreateTaskParams struct {
	ID          string
	Title       string
	Description string
	AssignedTo  string
	Status      model.TaskStatus
	CreatedBy   string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

const createTask = `INSERT INTO tasks (` + taskColumns + `)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, 1)`

// CreateTask inserts a task at version 1.
func (q *Queries) CreateTask(ctx context.Context, arg CreateTaskParams) (model.Task, error) {
	t := model.Task{
		ID:          arg.ID,
		Title:       arg.Title,
		Description: arg.Description,
		AssignedTo:  arg.AssignedTo,
		Status:      arg.Status,
		CreatedBy:   arg.CreatedBy,
		CreatedAt:   arg.CreatedAt.UTC(),
		UpdatedAt:   arg.UpdatedAt.UTC(),
		Version:     1,
	}
	_, err := q.db.ExecContext(ctx, createTask,
		t.ID,
		t.Title,
		t.Description,
		t.AssignedTo,
		string(t.Status),
		t.CreatedBy,
		t.CreatedAt,
		t.UpdatedAt,
	)
	if err != nil {
		return model.Task{}, err
	}
	return t, nil
}

const getTaskByID = `SELECT ` + taskColumns + ` FROM tasks WHERE id = ?`

// GetTaskByID returns sql.ErrNoRows when the task does not exist.
func (q *Queries) GetTaskByID(ctx context.Context, id string) (model.Task, error) {
	return scanTask(q.db.QueryRowContext(ctx, getTaskByID, id))
}

const listTasks = `SELECT ` + taskColumns + ` FROM tasks ORDER BY created_at DESC, rowid DESC`

// ListTasks returns every task, newest first.
func (q *Queries) ListTasks(ctx context.Context) ([]model.Task, error) {
	return q.listTasks(ctx, listTasks)
}

const listTasksByAssignee = `SELECT ` + taskColumns + ` FROM tasks
WHERE assigned_to = ?
ORDER BY created_at DESC, rowid DESC`

// ListTasksByAssignee returns the tasks assigned to userID, newest first.
func (q *Queries) ListTasksByAssignee(ctx context.Context, userID string) ([]model.Task, error) {
	return q.listTasks(ctx, listTasksByAssignee, userID)
}

// UpdateTaskParams holds the full new state of a task and the version the
// caller read it at.
type UpdateTaskParams struct {
	ID          string
	Title       string
	Description string
	AssignedTo  string
	Status      model.TaskStatus
	UpdatedAt   time.Time
	Version     int64
}

const updateTask = `UPDATE tasks
SET title = ?, description = ?, assigned_to = ?, status = ?, updated_at = ?, version = version + 1
WHERE id = ? AND version = ?`

// UpdateTask writes the new state only if the stored version still equals
// arg.Version. It returns sql.ErrNoRows when the task is missing or the
// version moved on.
func (q *Queries) UpdateTask(ctx context.Context, arg UpdateTaskParams) (model.Task, error) {
	res, err := q.db.ExecContext(ctx, updateTask,
		arg.Title,
		arg.Description,
		arg.AssignedTo,
		string(arg.Status),
		arg.UpdatedAt.UTC(),
		arg.ID,
		arg.Version,
	)
	if err != nil {
		return model.Task{}, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return model.Task{}, err
	}
	if n == 0 {
		return model.Task{}, sql.ErrNoRows
	}
	return q.GetTaskByID(ctx, arg.ID)
}

const deleteTask = `DELETE FROM tasks WHERE id = ?`

// DeleteTask removes a task and returns the number of rows deleted.
func (q *Queries) DeleteTask(ctx context.Context, id string) (int64, error) {
	res, err := q.db.ExecContext(ctx, deleteTask, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
