// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/olegiv/otask-go/internal/model"
)

const userColumns = `id, email, password_hash, role, name, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (model.User, error) {
	var u model.User
	var role string
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &role, &u.Name, &u.CreatedAt, &u.UpdatedAt)
	u.Role = model.Role(role)
	u.CreatedAt, u.UpdatedAt = u.CreatedAt.UTC(), u.UpdatedAt.UTC()
	return u, err
}

// CreateUserParams holds the columns of a new user.
type CreateUserParams struct {
	ID           string
	Email        string
	PasswordHash string
	Role         model.Role
	Name         string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

const createUser = `INSERT INTO users (` + userColumns + `)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(email) DO NOTHING`

// CreateUser inserts a user unless the email is taken, in which case it
// returns model.ErrDuplicateEmail. The check and the insert are one statement.
func (q *Queries) CreateUser(ctx context.Context, arg CreateUserParams) (model.User, error) {
	u := model.User{
		ID:           arg.ID,
		Email:        arg.Email,
		PasswordHash: arg.PasswordHash,
		Role:         arg.Role,
		Name:         arg.Name,
		CreatedAt:    arg.CreatedAt.UTC(),
		UpdatedAt:    arg.UpdatedAt.UTC(),
	}
	res, err := q.db.ExecContext(ctx, createUser,
		u.ID,
		u.Email,
		u.PasswordHash,
		string(u.Role),
		u.Name,
		u.CreatedAt,
		u.UpdatedAt,
	)
	if err != nil {
		return model.User{}, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return model.User{}, err
	}
	if n == 0 {
		return model.User{}, model.ErrDuplicateEmail
	}
	return u, nil
}

const getUserByID = `SELECT ` + userColumns + ` FROM users WHERE id = ?`

// GetUserByID returns sql.ErrNoRows when the user does not exist.
func (q *Queries) GetUserByID(ctx context.Context, id string) (model.User, error) {
	return scanUser(q.db.QueryRowContext(ctx, getUserByID, id))
}

const getUserByEmail = `SELECT ` + userColumns + ` FROM users WHERE email = ?`

// GetUserByEmail looks up a user by normalized email.
func (q *Queries) GetUserByEmail(ctx context.Context, email string) (model.User, error) {
	return scanUser(q.db.QueryRowContext(ctx, getUserByEmail, email))
}

const userExists = `SELECT EXISTS(SELECT 1 FROM users WHERE id = ?)`

// UserExists reports whether a user with id exists.
func (q *Queries) UserExists(ctx context.Context, id string) (bool, error) {
	var exists bool
	err := q.db.QueryRowContext(ctx, userExists, id).Scan(&exists)
	return exists, err
}

const listUsers = `SELECT ` + userColumns + ` FROM users ORDER BY name COLLATE NOCASE, email`

// ListUsers returns all users ordered by name.
func (q *Queries) ListUsers(ctx context.Context) ([]model.User, error) {
	rows, err := q.db.QueryContext(ctx, listUsers)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	items := []model.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, u)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

// UpdateUserRoleParams holds the new role of a user.
type UpdateUserRoleParams struct {
	ID        string
	Role      model.Role
	UpdatedAt time.Time
}

const updateUserRole = `UPDATE users SET role = ?, updated_at = ? WHERE id = ?`

// UpdateUserRole changes the role of a user and returns the updated row.
func (q *Queries) UpdateUserRole(ctx context.Context, arg UpdateUserRoleParams) (model.User, error) {
	res, err := q.db.ExecContext(ctx, updateUserRole, string(arg.Role), arg.UpdatedAt.UTC(), arg.ID)
	if err != nil {
		return model.User{}, err
	}
	if n, err := res.RowsAffected(); err != nil {
		return model.User{}, err
	} else if n == 0 {
		return model.User{}, sql.ErrNoRows
	}
	return q.GetUserByID(ctx, arg.ID)
}

// UpdateUserPasswordParams holds a replacement password hash.
type UpdateUserPasswordParams struct {
	ID           string
	PasswordHash string
	UpdatedAt    time.Time
}

const updateUserPassword = `UPDATE users SET password_hash = ?, updated_at = ? WHERE id = ?`

// UpdateUserPassword replaces the stored password hash.
func (q *Queries) UpdateUserPassword(ctx context.Context, arg UpdateUserPasswordParams) error {
	_, err := q.db.ExecContext(ctx, updateUserPassword, arg.PasswordHash, arg.UpdatedAt.UTC(), arg.ID)
	return err
}
