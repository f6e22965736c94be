package db

import "context"

const listDepartments = `-- name: ListDepartments :many
SELECT id, code, name, created_at FROM departments ORDER BY name
`

func (q *Queries) ListDepartments(ctx context.Context) ([]Department, error) {
	rows, err := q.db.Query(ctx, listDepartments)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []Department{}
	for rows.Next() {
		var i Department
		if err := rows.Scan(&i.ID, &i.Code, &i.Name, &i.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const getDepartmentByID = `-- name: GetDepartmentByID :one
SELECT id, code, name, created_at FROM departments WHERE id = $1
`

func (q *Queries) GetDepartmentByID(ctx context.Context, id int64) (Department, error) {
	row := q.db.QueryRow(ctx, getDepartmentByID, id)
	var i Department
	err := row.Scan(&i.ID, &i.Code, &i.Name, &i.CreatedAt)
	return i, err
}

const getDepartmentByCode = `-- name: GetDepartmentByCode :one
SELECT id, code, name, created_at FROM departments WHERE code = $1
`

func (q *Queries) GetDepartmentByCode(ctx context.Context, code string) (Department, error) {
	row := q.db.QueryRow(ctx, getDepartmentByCode, code)
	var i Department
	err := row.Scan(&i.ID, &i.Code, &i.Name, &i.CreatedAt)
	return i, err
}

const createDepartment = `-- name: CreateDepartment :one
INSERT INTO departments (code, name) VALUES ($1, $2)
RETURNING id, code, name, created_at
`

type CreateDepartmentParams struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

func (q *Queries) CreateDepartment(ctx context.Context, arg CreateDepartmentParams) (Department, error) {
	row := q.db.QueryRow(ctx, createDepartment, arg.Code, arg.Name)
	var i Department
	err := row.Scan(&i.ID, &i.Code, &i.Name, &i.CreatedAt)
	return i, err
}
