package db

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

const assetColumns = `id, code, name, category, location, total_stock, current_stock, status, department_id, created_at, updated_at`

func scanAsset(row interface{ Scan(...interface{}) error }) (Asset, error) {
	var i Asset
	err := row.Scan(
		&i.ID,
		&i.Code,
		&i.Name,
		&i.Category,
		&i.Location,
		&i.TotalStock,
		&i.CurrentStock,
		&i.Status,
		&i.DepartmentID,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const getAssetByID = `-- name: GetAssetByID :one
SELECT ` + assetColumns + ` FROM assets WHERE id = $1
`

func (q *Queries) GetAssetByID(ctx context.Context, id int64) (Asset, error) {
	return scanAsset(q.db.QueryRow(ctx, getAssetByID, id))
}

const getAssetByIDForUpdate = `-- name: GetAssetByIDForUpdate :one
SELECT ` + assetColumns + ` FROM assets WHERE id = $1 FOR UPDATE
`

// GetAssetByIDForUpdate locks the asset row until the surrounding transaction ends.
func (q *Queries) GetAssetByIDForUpdate(ctx context.Context, id int64) (Asset, error) {
	return scanAsset(q.db.QueryRow(ctx, getAssetByIDForUpdate, id))
}

const getAssetByCode = `-- name: GetAssetByCode :one
SELECT ` + assetColumns + ` FROM assets WHERE code = $1
`

func (q *Queries) GetAssetByCode(ctx context.Context, code string) (Asset, error) {
	return scanAsset(q.db.QueryRow(ctx, getAssetByCode, code))
}

const assetFilter = `
WHERE ($1::asset_status IS NULL OR status = $1::asset_status)
  AND ($2::text IS NULL OR category = $2::text)
  AND ($3::bigint IS NULL OR department_id = $3::bigint)
  AND ($4::text IS NULL OR name ILIKE '%' || $4::text || '%' OR code ILIKE '%' || $4::text || '%')
  AND ($5::bigint IS NULL OR department_id IS NULL OR department_id = $5::bigint)
`

const listAssets = `-- name: ListAssets :many
SELECT ` + assetColumns + ` FROM assets` + assetFilter + `
ORDER BY id
LIMIT $6 OFFSET $7
`

type ListAssetsParams struct {
	Status       NullAssetStatus `json:"status"`
	Category     pgtype.Text     `json:"category"`
	DepartmentID pgtype.Int8     `json:"department_id"`
	Search       pgtype.Text     `json:"search"`
	VisibleTo    pgtype.Int8     `json:"visible_to"`
	Limit        int32           `json:"limit"`
	Offset       int32           `json:"offset"`
}

func (q *Queries) ListAssets(ctx context.Context, arg ListAssetsParams) ([]Asset, error) {
	rows, err := q.db.Query(ctx, listAssets,
		arg.Status,
		arg.Category,
		arg.DepartmentID,
		arg.Search,
		arg.VisibleTo,
		arg.Limit,
		arg.Offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []Asset{}
	for rows.Next() {
		i, err := scanAsset(rows)
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

const countAssets = `-- name: CountAssets :one
SELECT count(*) FROM assets` + assetFilter

type CountAssetsParams struct {
	Status       NullAssetStatus `json:"status"`
	Category     pgtype.Text     `json:"category"`
	DepartmentID pgtype.Int8     `json:"department_id"`
	Search       pgtype.Text     `json:"search"`
	VisibleTo    pgtype.Int8     `json:"visible_to"`
}

func (q *Queries) CountAssets(ctx context.Context, arg CountAssetsParams) (int64, error) {
	row := q.db.QueryRow(ctx, countAssets,
		arg.Status,
		arg.Category,
		arg.DepartmentID,
		arg.Search,
		arg.VisibleTo,
	)
	var count int64
	err := row.Scan(&count)
	return count, err
}

const createAsset = `-- name: CreateAsset :one
INSERT INTO assets (code, name, category, location, total_stock, current_stock, status, department_id)
VALUES ($1, $2, $3, $4, $5, $5, $6, $7)
RETURNING ` + assetColumns

type CreateAssetParams struct {
	Code         string      `json:"code"`
	Name         string      `json:"name"`
	Category     string      `json:"category"`
	Location     string      `json:"location"`
	TotalStock   int32       `json:"total_stock"`
	Status       AssetStatus `json:"status"`
	DepartmentID pgtype.Int8 `json:"department_id"`
}

// CreateAsset starts every asset fully in stock.
func (q *Queries) CreateAsset(ctx context.Context, arg CreateAssetParams) (Asset, error) {
	return scanAsset(q.db.QueryRow(ctx, createAsset,
		arg.Code,
		arg.Name,
		arg.Category,
		arg.Location,
		arg.TotalStock,
		arg.Status,
		arg.DepartmentID,
	))
}

const updateAsset = `-- name: UpdateAsset :one
UPDATE assets
SET name = $2,
    category = $3,
    location = $4,
    total_stock = $5,
    current_stock = $6,
    status = $7,
    department_id = $8,
    updated_at = now()
WHERE id = $1
RETURNING ` + assetColumns

type UpdateAssetParams struct {
	ID           int64       `json:"id"`
	Name         string      `json:"name"`
	Category     string      `json:"category"`
	Location     string      `json:"location"`
	TotalStock   int32       `json:"total_stock"`
	CurrentStock int32       `json:"current_stock"`
	Status       AssetStatus `json:"status"`
	DepartmentID pgtype.Int8 `json:"department_id"`
}

func (q *Queries) UpdateAsset(ctx context.Context, arg UpdateAssetParams) (Asset, error) {
	return scanAsset(q.db.QueryRow(ctx, updateAsset,
		arg.ID,
		arg.Name,
		arg.Category,
		arg.Location,
		arg.TotalStock,
		arg.CurrentStock,
		arg.Status,
		arg.DepartmentID,
	))
}

const countReservedAssetUnits = `-- name: CountReservedAssetUnits :one
SELECT COALESCE(sum(bi.quantity), 0)::int4
FROM borrow_items bi
JOIN borrow_transactions t ON t.id = bi.transaction_id
WHERE bi.asset_id = $1 AND t.status = 'Approved' AND NOT t.is_signed
`

// CountReservedAssetUnits sums the units held by approved transactions that
// are still waiting for a signature.
func (q *Queries) CountReservedAssetUnits(ctx context.Context, assetID int64) (int32, error) {
	row := q.db.QueryRow(ctx, countReservedAssetUnits, assetID)
	var units int32
	err := row.Scan(&units)
	return units, err
}

const decrementAssetStock = `-- name: DecrementAssetStock :one
UPDATE assets
SET current_stock = current_stock - $2,
    status = $3,
    updated_at = now()
WHERE id = $1 AND current_stock >= $2
RETURNING ` + assetColumns

type DecrementAssetStockParams struct {
	ID       int64       `json:"id"`
	Quantity int32       `json:"quantity"`
	Status   AssetStatus `json:"status"`
}

// DecrementAssetStock returns pgx.ErrNoRows when fewer than Quantity units remain.
func (q *Queries) DecrementAssetStock(ctx context.Context, arg DecrementAssetStockParams) (Asset, error) {
	return scanAsset(q.db.QueryRow(ctx, decrementAssetStock, arg.ID, arg.Quantity, arg.Status))
}

const incrementAssetStock = `-- name: IncrementAssetStock :one
UPDATE assets
SET current_stock = current_stock + $2,
    status = $3,
    updated_at = now()
WHERE id = $1 AND current_stock + $2 <= total_stock
RETURNING ` + assetColumns

type IncrementAssetStockParams struct {
	ID       int64       `json:"id"`
	Quantity int32       `json:"quantity"`
	Status   AssetStatus `json:"status"`
}

func (q *Queries) IncrementAssetStock(ctx context.Context, arg IncrementAssetStockParams) (Asset, error) {
	return scanAsset(q.db.QueryRow(ctx, incrementAssetStock, arg.ID, arg.Quantity, arg.Status))
}

const updateAssetStatus = `-- name: UpdateAssetStatus :one
UPDATE assets SET status = $2, updated_at = now()
WHERE id = $1
RETURNING ` + assetColumns

type UpdateAssetStatusParams struct {
	ID     int64       `json:"id"`
	Status AssetStatus `json:"status"`
}

func (q *Queries) UpdateAssetStatus(ctx context.Context, arg UpdateAssetStatusParams) (Asset, error) {
	return scanAsset(q.db.QueryRow(ctx, updateAssetStatus, arg.ID, arg.Status))
}

const countActiveAssetReferences = `-- name: CountActiveAssetReferences :one
SELECT
    (SELECT count(*) FROM borrow_requests r
      WHERE r.asset_id = $1 AND r.status IN ('Pending', 'Approved'))
  + (SELECT count(*) FROM borrow_items bi
      JOIN borrow_transactions t ON t.id = bi.transaction_id
      WHERE bi.asset_id = $1 AND t.status IN ('Pending', 'Approved'))
`

func (q *Queries) CountActiveAssetReferences(ctx context.Context, assetID int64) (int64, error) {
	row := q.db.QueryRow(ctx, countActiveAssetReferences, assetID)
	var count int64
	err := row.Scan(&count)
	return count, err
}

const deleteAsset = `-- name: DeleteAsset :execrows
DELETE FROM assets WHERE id = $1
`

func (q *Queries) DeleteAsset(ctx context.Context, id int64) (int64, error) {
	result, err := q.db.Exec(ctx, deleteAsset, id)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}
