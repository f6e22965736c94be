package db

import "context"

const listActiveModules = `-- name: ListActiveModules :many
SELECT id, code, name, path, sort_order, is_active FROM modules
WHERE is_active
ORDER BY sort_order, id
`

func (q *Queries) ListActiveModules(ctx context.Context) ([]Module, error) {
	rows, err := q.db.Query(ctx, listActiveModules)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []Module{}
	for rows.Next() {
		var i Module
		if err := rows.Scan(&i.ID, &i.Code, &i.Name, &i.Path, &i.SortOrder, &i.IsActive); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const upsertModule = `-- name: UpsertModule :one
INSERT INTO modules (code, name, path, sort_order, is_active)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (code) DO UPDATE
SET name = EXCLUDED.name,
    path = EXCLUDED.path,
    sort_order = EXCLUDED.sort_order,
    is_active = EXCLUDED.is_active
RETURNING id, code, name, path, sort_order, is_active
`

type UpsertModuleParams struct {
	Code      string `json:"code"`
	Name      string `json:"name"`
	Path      string `json:"path"`
	SortOrder int32  `json:"sort_order"`
	IsActive  bool   `json:"is_active"`
}

func (q *Queries) UpsertModule(ctx context.Context, arg UpsertModuleParams) (Module, error) {
	row := q.db.QueryRow(ctx, upsertModule, arg.Code, arg.Name, arg.Path, arg.SortOrder, arg.IsActive)
	var i Module
	err := row.Scan(&i.ID, &i.Code, &i.Name, &i.Path, &i.SortOrder, &i.IsActive)
	return i, err
}
