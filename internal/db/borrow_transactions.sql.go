package db

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

const borrowTransactionColumns = `id, document_no, user_id, status, start_date, end_date, reason, is_signed, signature_key, signed_at, reviewed_by, reviewed_at, returned_at, created_at, updated_at`

func scanBorrowTransaction(row interface{ Scan(...interface{}) error }) (BorrowTransaction, error) {
	var i BorrowTransaction
	err := row.Scan(
		&i.ID,
		&i.DocumentNo,
		&i.UserID,
		&i.Status,
		&i.StartDate,
		&i.EndDate,
		&i.Reason,
		&i.IsSigned,
		&i.SignatureKey,
		&i.SignedAt,
		&i.ReviewedBy,
		&i.ReviewedAt,
		&i.ReturnedAt,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const createBorrowTransaction = `-- name: CreateBorrowTransaction :one
INSERT INTO borrow_transactions (document_no, user_id, start_date, end_date, reason)
VALUES ($1, $2, $3, $4, $5)
RETURNING ` + borrowTransactionColumns

type CreateBorrowTransactionParams struct {
	DocumentNo string      `json:"document_no"`
	UserID     int64       `json:"user_id"`
	StartDate  pgtype.Date `json:"start_date"`
	EndDate    pgtype.Date `json:"end_date"`
	Reason     string      `json:"reason"`
}

func (q *Queries) CreateBorrowTransaction(ctx context.Context, arg CreateBorrowTransactionParams) (BorrowTransaction, error) {
	return scanBorrowTransaction(q.db.QueryRow(ctx, createBorrowTransaction,
		arg.DocumentNo,
		arg.UserID,
		arg.StartDate,
		arg.EndDate,
		arg.Reason,
	))
}

const createBorrowItem = `-- name: CreateBorrowItem :one
INSERT INTO borrow_items (transaction_id, asset_id, quantity)
VALUES ($1, $2, $3)
RETURNING id, transaction_id, asset_id, quantity
`

type CreateBorrowItemParams struct {
	TransactionID int64 `json:"transaction_id"`
	AssetID       int64 `json:"asset_id"`
	Quantity      int32 `json:"quantity"`
}

func (q *Queries) CreateBorrowItem(ctx context.Context, arg CreateBorrowItemParams) (BorrowItem, error) {
	row := q.db.QueryRow(ctx, createBorrowItem, arg.TransactionID, arg.AssetID, arg.Quantity)
	var i BorrowItem
	err := row.Scan(&i.ID, &i.TransactionID, &i.AssetID, &i.Quantity)
	return i, err
}

const listBorrowItemsByTransaction = `-- name: ListBorrowItemsByTransaction :many
SELECT id, transaction_id, asset_id, quantity FROM borrow_items
WHERE transaction_id = $1
ORDER BY asset_id
`

// ListBorrowItemsByTransaction orders by asset id so callers lock assets in a
// stable order.
func (q *Queries) ListBorrowItemsByTransaction(ctx context.Context, transactionID int64) ([]BorrowItem, error) {
	rows, err := q.db.Query(ctx, listBorrowItemsByTransaction, transactionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []BorrowItem{}
	for rows.Next() {
		var i BorrowItem
		if err := rows.Scan(&i.ID, &i.TransactionID, &i.AssetID, &i.Quantity); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const getBorrowTransactionByID = `-- name: GetBorrowTransactionByID :one
SELECT ` + borrowTransactionColumns + ` FROM borrow_transactions WHERE id = $1
`

func (q *Queries) GetBorrowTransactionByID(ctx context.Context, id int64) (BorrowTransaction, error) {
	return scanBorrowTransaction(q.db.QueryRow(ctx, getBorrowTransactionByID, id))
}

const getBorrowTransactionByIDForUpdate = `-- name: GetBorrowTransactionByIDForUpdate :one
SELECT ` + borrowTransactionColumns + ` FROM borrow_transactions WHERE id = $1 FOR UPDATE
`

func (q *Queries) GetBorrowTransactionByIDForUpdate(ctx context.Context, id int64) (BorrowTransaction, error) {
	return scanBorrowTransaction(q.db.QueryRow(ctx, getBorrowTransactionByIDForUpdate, id))
}

const borrowTransactionFilter = `
WHERE ($1::bigint IS NULL OR user_id = $1::bigint)
  AND ($2::request_status IS NULL OR status = $2::request_status)
  AND ($3::bigint IS NULL OR NOT EXISTS (
        SELECT 1 FROM borrow_items bi
        JOIN assets a ON a.id = bi.asset_id
        WHERE bi.transaction_id = borrow_transactions.id
          AND a.department_id IS NOT NULL
          AND a.department_id <> $3::bigint))
`

const listBorrowTransactions = `-- name: ListBorrowTransactions :many
SELECT ` + borrowTransactionColumns + ` FROM borrow_transactions` + borrowTransactionFilter + `
ORDER BY created_at DESC, id DESC
LIMIT $4 OFFSET $5
`

// ListBorrowTransactionsParams.DepartmentID keeps only transactions whose
// items are all owned by that department or by none.
type ListBorrowTransactionsParams struct {
	UserID       pgtype.Int8       `json:"user_id"`
	Status       NullRequestStatus `json:"status"`
	DepartmentID pgtype.Int8       `json:"department_id"`
	Limit        int32             `json:"limit"`
	Offset       int32             `json:"offset"`
}

func (q *Queries) ListBorrowTransactions(ctx context.Context, arg ListBorrowTransactionsParams) ([]BorrowTransaction, error) {
	rows, err := q.db.Query(ctx, listBorrowTransactions,
		arg.UserID,
		arg.Status,
		arg.DepartmentID,
		arg.Limit,
		arg.Offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []BorrowTransaction{}
	for rows.Next() {
		i, err := scanBorrowTransaction(rows)
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

const countBorrowTransactions = `-- name: CountBorrowTransactions :one
SELECT count(*) FROM borrow_transactions` + borrowTransactionFilter

type CountBorrowTransactionsParams struct {
	UserID       pgtype.Int8       `json:"user_id"`
	Status       NullRequestStatus `json:"status"`
	DepartmentID pgtype.Int8       `json:"department_id"`
}

func (q *Queries) CountBorrowTransactions(ctx context.Context, arg CountBorrowTransactionsParams) (int64, error) {
	row := q.db.QueryRow(ctx, countBorrowTransactions, arg.UserID, arg.Status, arg.DepartmentID)
	var count int64
	err := row.Scan(&count)
	return count, err
}

const reviewBorrowTransaction = `-- name: ReviewBorrowTransaction :one
UPDATE borrow_transactions
SET status = $2,
    reviewed_by = $3,
    reviewed_at = now(),
    updated_at = now()
WHERE id = $1
RETURNING ` + borrowTransactionColumns

type ReviewBorrowTransactionParams struct {
	ID         int64         `json:"id"`
	Status     RequestStatus `json:"status"`
	ReviewedBy pgtype.Int8   `json:"reviewed_by"`
}

func (q *Queries) ReviewBorrowTransaction(ctx context.Context, arg ReviewBorrowTransactionParams) (BorrowTransaction, error) {
	return scanBorrowTransaction(q.db.QueryRow(ctx, reviewBorrowTransaction, arg.ID, arg.Status, arg.ReviewedBy))
}

const signBorrowTransaction = `-- name: SignBorrowTransaction :one
UPDATE borrow_transactions
SET is_signed = TRUE,
    signature_key = $2,
    signed_at = now(),
    updated_at = now()
WHERE id = $1
RETURNING ` + borrowTransactionColumns

type SignBorrowTransactionParams struct {
	ID           int64       `json:"id"`
	SignatureKey pgtype.Text `json:"signature_key"`
}

func (q *Queries) SignBorrowTransaction(ctx context.Context, arg SignBorrowTransactionParams) (BorrowTransaction, error) {
	return scanBorrowTransaction(q.db.QueryRow(ctx, signBorrowTransaction, arg.ID, arg.SignatureKey))
}

const markBorrowTransactionReturned = `-- name: MarkBorrowTransactionReturned :one
UPDATE borrow_transactions
SET status = 'Returned',
    returned_at = now(),
    updated_at = now()
WHERE id = $1
RETURNING ` + borrowTransactionColumns

func (q *Queries) MarkBorrowTransactionReturned(ctx context.Context, id int64) (BorrowTransaction, error) {
	return scanBorrowTransaction(q.db.QueryRow(ctx, markBorrowTransactionReturned, id))
}
