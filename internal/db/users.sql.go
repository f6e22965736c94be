package db

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

const userColumns = `id, email, name, password_hash, role_id, department_id, is_active, failed_login_attempts, locked_until, last_login_at, created_at`

func scanUser(row interface{ Scan(...interface{}) error }) (User, error) {
	var i User
	err := row.Scan(
		&i.ID,
		&i.Email,
		&i.Name,
		&i.PasswordHash,
		&i.RoleID,
		&i.DepartmentID,
		&i.IsActive,
		&i.FailedLoginAttempts,
		&i.LockedUntil,
		&i.LastLoginAt,
		&i.CreatedAt,
	)
	return i, err
}

const getUserByID = `-- name: GetUserByID :one
SELECT ` + userColumns + ` FROM users WHERE id = $1
`

func (q *Queries) GetUserByID(ctx context.Context, id int64) (User, error) {
	return scanUser(q.db.QueryRow(ctx, getUserByID, id))
}

const getUserByEmail = `-- name: GetUserByEmail :one
SELECT ` + userColumns + ` FROM users WHERE lower(email) = lower($1)
`

func (q *Queries) GetUserByEmail(ctx context.Context, email string) (User, error) {
	return scanUser(q.db.QueryRow(ctx, getUserByEmail, email))
}

const getUsersByIDs = `-- name: GetUsersByIDs :many
SELECT ` + userColumns + ` FROM users WHERE id = ANY($1::bigint[]) AND is_active
`

func (q *Queries) GetUsersByIDs(ctx context.Context, ids []int64) ([]User, error) {
	rows, err := q.db.Query(ctx, getUsersByIDs, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []User{}
	for rows.Next() {
		i, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const getUserWithRole = `-- name: GetUserWithRole :one
SELECT u.id, u.email, u.name, u.department_id, u.is_active,
       r.id, r.name, r.scope, r.department_id, r.is_shared, r.permissions, r.is_active
FROM users u
JOIN roles r ON r.id = u.role_id
WHERE u.id = $1
`

type GetUserWithRoleRow struct {
	ID               int64       `json:"id"`
	Email            string      `json:"email"`
	Name             string      `json:"name"`
	DepartmentID     pgtype.Int8 `json:"department_id"`
	IsActive         bool        `json:"is_active"`
	RoleID           int64       `json:"role_id"`
	RoleName         string      `json:"role_name"`
	RoleScope        RoleScope   `json:"role_scope"`
	RoleDepartmentID pgtype.Int8 `json:"role_department_id"`
	RoleIsShared     bool        `json:"role_is_shared"`
	RolePermissions  string      `json:"role_permissions"`
	RoleIsActive     bool        `json:"role_is_active"`
}

func (q *Queries) GetUserWithRole(ctx context.Context, id int64) (GetUserWithRoleRow, error) {
	row := q.db.QueryRow(ctx, getUserWithRole, id)
	var i GetUserWithRoleRow
	err := row.Scan(
		&i.ID,
		&i.Email,
		&i.Name,
		&i.DepartmentID,
		&i.IsActive,
		&i.RoleID,
		&i.RoleName,
		&i.RoleScope,
		&i.RoleDepartmentID,
		&i.RoleIsShared,
		&i.RolePermissions,
		&i.RoleIsActive,
	)
	return i, err
}

const listUsers = `-- name: ListUsers :many
SELECT ` + userColumns + ` FROM users
WHERE ($1::bigint IS NULL OR department_id = $1::bigint)
ORDER BY id
LIMIT $2 OFFSET $3
`

type ListUsersParams struct {
	DepartmentID pgtype.Int8 `json:"department_id"`
	Limit        int32       `json:"limit"`
	Offset       int32       `json:"offset"`
}

func (q *Queries) ListUsers(ctx context.Context, arg ListUsersParams) ([]User, error) {
	rows, err := q.db.Query(ctx, listUsers, arg.DepartmentID, arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []User{}
	for rows.Next() {
		i, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const countUsers = `-- name: CountUsers :one
SELECT count(*) FROM users WHERE ($1::bigint IS NULL OR department_id = $1::bigint)
`

func (q *Queries) CountUsers(ctx context.Context, departmentID pgtype.Int8) (int64, error) {
	row := q.db.QueryRow(ctx, countUsers, departmentID)
	var count int64
	err := row.Scan(&count)
	return count, err
}

const createUser = `-- name: CreateUser :one
INSERT INTO users (email, name, password_hash, role_id, department_id)
VALUES ($1, $2, $3, $4, $5)
RETURNING ` + userColumns

type CreateUserParams struct {
	Email        string      `json:"email"`
	Name         string      `json:"name"`
	PasswordHash string      `json:"password_hash"`
	RoleID       int64       `json:"role_id"`
	DepartmentID pgtype.Int8 `json:"department_id"`
}

func (q *Queries) CreateUser(ctx context.Context, arg CreateUserParams) (User, error) {
	return scanUser(q.db.QueryRow(ctx, createUser,
		arg.Email,
		arg.Name,
		arg.PasswordHash,
		arg.RoleID,
		arg.DepartmentID,
	))
}

const recordFailedLogin = `-- name: RecordFailedLogin :one
UPDATE users
SET failed_login_attempts = failed_login_attempts + 1,
    locked_until = CASE
        WHEN failed_login_attempts + 1 >= $2::int THEN $3::timestamptz
        ELSE locked_until
    END
WHERE id = $1
RETURNING failed_login_attempts, locked_until
`

type RecordFailedLoginParams struct {
	ID          int64              `json:"id"`
	MaxAttempts int32              `json:"max_attempts"`
	LockUntil   pgtype.Timestamptz `json:"lock_until"`
}

type RecordFailedLoginRow struct {
	FailedLoginAttempts int32              `json:"failed_login_attempts"`
	LockedUntil         pgtype.Timestamptz `json:"locked_until"`
}

// RecordFailedLogin bumps the counter and sets locked_until once it reaches MaxAttempts.
func (q *Queries) RecordFailedLogin(ctx context.Context, arg RecordFailedLoginParams) (RecordFailedLoginRow, error) {
	row := q.db.QueryRow(ctx, recordFailedLogin, arg.ID, arg.MaxAttempts, arg.LockUntil)
	var i RecordFailedLoginRow
	err := row.Scan(&i.FailedLoginAttempts, &i.LockedUntil)
	return i, err
}

const resetLoginFailures = `-- name: ResetLoginFailures :exec
UPDATE users SET failed_login_attempts = 0, locked_until = NULL WHERE id = $1
`

func (q *Queries) ResetLoginFailures(ctx context.Context, id int64) error {
	_, err := q.db.Exec(ctx, resetLoginFailures, id)
	return err
}

const recordSuccessfulLogin = `-- name: RecordSuccessfulLogin :exec
UPDATE users
SET failed_login_attempts = 0,
    locked_until = NULL,
    last_login_at = now()
WHERE id = $1
`

func (q *Queries) RecordSuccessfulLogin(ctx context.Context, id int64) error {
	_, err := q.db.Exec(ctx, recordSuccessfulLogin, id)
	return err
}
