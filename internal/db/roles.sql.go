package db

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

const roleColumns = `id, name, description, scope, department_id, is_shared, permissions, is_active, created_at, updated_at`

func scanRole(row interface{ Scan(...interface{}) error }) (Role, error) {
	var i Role
	err := row.Scan(
		&i.ID,
		&i.Name,
		&i.Description,
		&i.Scope,
		&i.DepartmentID,
		&i.IsShared,
		&i.Permissions,
		&i.IsActive,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const getRoleByID = `-- name: GetRoleByID :one
SELECT ` + roleColumns + ` FROM roles WHERE id = $1
`

func (q *Queries) GetRoleByID(ctx context.Context, id int64) (Role, error) {
	return scanRole(q.db.QueryRow(ctx, getRoleByID, id))
}

const getRoleByName = `-- name: GetRoleByName :one
SELECT ` + roleColumns + ` FROM roles
WHERE name = $1 AND department_id IS NOT DISTINCT FROM $2
`

type GetRoleByNameParams struct {
	Name         string      `json:"name"`
	DepartmentID pgtype.Int8 `json:"department_id"`
}

func (q *Queries) GetRoleByName(ctx context.Context, arg GetRoleByNameParams) (Role, error) {
	return scanRole(q.db.QueryRow(ctx, getRoleByName, arg.Name, arg.DepartmentID))
}

const listRoles = `-- name: ListRoles :many
SELECT ` + roleColumns + ` FROM roles
WHERE ($1::bigint IS NULL OR department_id = $1::bigint OR department_id IS NULL)
ORDER BY id
`

// ListRoles with a department returns that department's roles plus the
// global and shared ones.
func (q *Queries) ListRoles(ctx context.Context, departmentID pgtype.Int8) ([]Role, error) {
	rows, err := q.db.Query(ctx, listRoles, departmentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []Role{}
	for rows.Next() {
		i, err := scanRole(rows)
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

const createRole = `-- name: CreateRole :one
INSERT INTO roles (name, description, scope, department_id, is_shared, permissions, is_active)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING ` + roleColumns

type CreateRoleParams struct {
	Name         string      `json:"name"`
	Description  string      `json:"description"`
	Scope        RoleScope   `json:"scope"`
	DepartmentID pgtype.Int8 `json:"department_id"`
	IsShared     bool        `json:"is_shared"`
	Permissions  string      `json:"permissions"`
	IsActive     bool        `json:"is_active"`
}

func (q *Queries) CreateRole(ctx context.Context, arg CreateRoleParams) (Role, error) {
	return scanRole(q.db.QueryRow(ctx, createRole,
		arg.Name,
		arg.Description,
		arg.Scope,
		arg.DepartmentID,
		arg.IsShared,
		arg.Permissions,
		arg.IsActive,
	))
}

const updateRole = `-- name: UpdateRole :one
UPDATE roles
SET name = $2,
    description = $3,
    scope = $4,
    department_id = $5,
    is_shared = $6,
    permissions = $7,
    is_active = $8,
    updated_at = now()
WHERE id = $1
RETURNING ` + roleColumns

type UpdateRoleParams struct {
	ID           int64       `json:"id"`
	Name         string      `json:"name"`
	Description  string      `json:"description"`
	Scope        RoleScope   `json:"scope"`
	DepartmentID pgtype.Int8 `json:"department_id"`
	IsShared     bool        `json:"is_shared"`
	Permissions  string      `json:"permissions"`
	IsActive     bool        `json:"is_active"`
}

func (q *Queries) UpdateRole(ctx context.Context, arg UpdateRoleParams) (Role, error) {
	return scanRole(q.db.QueryRow(ctx, updateRole,
		arg.ID,
		arg.Name,
		arg.Description,
		arg.Scope,
		arg.DepartmentID,
		arg.IsShared,
		arg.Permissions,
		arg.IsActive,
	))
}

const countUsersWithRole = `-- name: CountUsersWithRole :one
SELECT count(*) FROM users WHERE role_id = $1
`

func (q *Queries) CountUsersWithRole(ctx context.Context, roleID int64) (int64, error) {
	row := q.db.QueryRow(ctx, countUsersWithRole, roleID)
	var count int64
	err := row.Scan(&count)
	return count, err
}

const deleteRole = `-- name: DeleteRole :execrows
DELETE FROM roles WHERE id = $1
`

func (q *Queries) DeleteRole(ctx context.Context, id int64) (int64, error) {
	result, err := q.db.Exec(ctx, deleteRole, id)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}
