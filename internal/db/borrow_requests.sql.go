package db

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

const borrowRequestColumns = `id, asset_id, user_id, quantity, status, start_date, end_date, reason, reviewed_by, reviewed_at, returned_at, reminder_sent_at, created_at, updated_at`

func scanBorrowRequest(row interface{ Scan(...interface{}) error }) (BorrowRequest, error) {
	var i BorrowRequest
	err := row.Scan(
		&i.ID,
		&i.AssetID,
		&i.UserID,
		&i.Quantity,
		&i.Status,
		&i.StartDate,
		&i.EndDate,
		&i.Reason,
		&i.ReviewedBy,
		&i.ReviewedAt,
		&i.ReturnedAt,
		&i.ReminderSentAt,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const createBorrowRequest = `-- name: CreateBorrowRequest :one
INSERT INTO borrow_requests (asset_id, user_id, quantity, start_date, end_date, reason)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING ` + borrowRequestColumns

type CreateBorrowRequestParams struct {
	AssetID   int64       `json:"asset_id"`
	UserID    int64       `json:"user_id"`
	Quantity  int32       `json:"quantity"`
	StartDate pgtype.Date `json:"start_date"`
	EndDate   pgtype.Date `json:"end_date"`
	Reason    string      `json:"reason"`
}

func (q *Queries) CreateBorrowRequest(ctx context.Context, arg CreateBorrowRequestParams) (BorrowRequest, error) {
	return scanBorrowRequest(q.db.QueryRow(ctx, createBorrowRequest,
		arg.AssetID,
		arg.UserID,
		arg.Quantity,
		arg.StartDate,
		arg.EndDate,
		arg.Reason,
	))
}

const getBorrowRequestByID = `-- name: GetBorrowRequestByID :one
SELECT ` + borrowRequestColumns + ` FROM borrow_requests WHERE id = $1
`

func (q *Queries) GetBorrowRequestByID(ctx context.Context, id int64) (BorrowRequest, error) {
	return scanBorrowRequest(q.db.QueryRow(ctx, getBorrowRequestByID, id))
}

const getBorrowRequestByIDForUpdate = `-- name: GetBorrowRequestByIDForUpdate :one
SELECT ` + borrowRequestColumns + ` FROM borrow_requests WHERE id = $1 FOR UPDATE
`

func (q *Queries) GetBorrowRequestByIDForUpdate(ctx context.Context, id int64) (BorrowRequest, error) {
	return scanBorrowRequest(q.db.QueryRow(ctx, getBorrowRequestByIDForUpdate, id))
}

const borrowRequestFilter = `
WHERE ($1::bigint IS NULL OR user_id = $1::bigint)
  AND ($2::request_status IS NULL OR status = $2::request_status)
  AND ($3::bigint IS NULL OR asset_id IN (SELECT a.id FROM assets a WHERE a.department_id = $3::bigint))
`

const listBorrowRequests = `-- name: ListBorrowRequests :many
SELECT ` + borrowRequestColumns + ` FROM borrow_requests` + borrowRequestFilter + `
ORDER BY created_at DESC, id DESC
LIMIT $4 OFFSET $5
`

type ListBorrowRequestsParams struct {
	UserID       pgtype.Int8       `json:"user_id"`
	Status       NullRequestStatus `json:"status"`
	DepartmentID pgtype.Int8       `json:"department_id"`
	Limit        int32             `json:"limit"`
	Offset       int32             `json:"offset"`
}

func (q *Queries) ListBorrowRequests(ctx context.Context, arg ListBorrowRequestsParams) ([]BorrowRequest, error) {
	rows, err := q.db.Query(ctx, listBorrowRequests,
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
	items := []BorrowRequest{}
	for rows.Next() {
		i, err := scanBorrowRequest(rows)
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

const countBorrowRequests = `-- name: CountBorrowRequests :one
SELECT count(*) FROM borrow_requests` + borrowRequestFilter

type CountBorrowRequestsParams struct {
	UserID       pgtype.Int8       `json:"user_id"`
	Status       NullRequestStatus `json:"status"`
	DepartmentID pgtype.Int8       `json:"department_id"`
}

func (q *Queries) CountBorrowRequests(ctx context.Context, arg CountBorrowRequestsParams) (int64, error) {
	row := q.db.QueryRow(ctx, countBorrowRequests, arg.UserID, arg.Status, arg.DepartmentID)
	var count int64
	err := row.Scan(&count)
	return count, err
}

const reviewBorrowRequest = `-- name: ReviewBorrowRequest :one
UPDATE borrow_requests
SET status = $2,
    reviewed_by = $3,
    reviewed_at = now(),
    updated_at = now()
WHERE id = $1
RETURNING ` + borrowRequestColumns

type ReviewBorrowRequestParams struct {
	ID         int64         `json:"id"`
	Status     RequestStatus `json:"status"`
	ReviewedBy pgtype.Int8   `json:"reviewed_by"`
}

func (q *Queries) ReviewBorrowRequest(ctx context.Context, arg ReviewBorrowRequestParams) (BorrowRequest, error) {
	return scanBorrowRequest(q.db.QueryRow(ctx, reviewBorrowRequest, arg.ID, arg.Status, arg.ReviewedBy))
}

const markBorrowRequestReturned = `-- name: MarkBorrowRequestReturned :one
UPDATE borrow_requests
SET status = 'Returned',
    returned_at = now(),
    updated_at = now()
WHERE id = $1
RETURNING ` + borrowRequestColumns

func (q *Queries) MarkBorrowRequestReturned(ctx context.Context, id int64) (BorrowRequest, error) {
	return scanBorrowRequest(q.db.QueryRow(ctx, markBorrowRequestReturned, id))
}

const listOverdueBorrowRequests = `-- name: ListOverdueBorrowRequests :many
SELECT ` + borrowRequestColumns + ` FROM borrow_requests
WHERE status = 'Approved'
  AND end_date < $1
  AND reminder_sent_at IS NULL
ORDER BY end_date, id
LIMIT $2
`

type ListOverdueBorrowRequestsParams struct {
	AsOf  pgtype.Date `json:"as_of"`
	Limit int32       `json:"limit"`
}

func (q *Queries) ListOverdueBorrowRequests(ctx context.Context, arg ListOverdueBorrowRequestsParams) ([]BorrowRequest, error) {
	rows, err := q.db.Query(ctx, listOverdueBorrowRequests, arg.AsOf, arg.Limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []BorrowRequest{}
	for rows.Next() {
		i, err := scanBorrowRequest(rows)
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

const markReminderSent = `-- name: MarkReminderSent :exec
UPDATE borrow_requests SET reminder_sent_at = now() WHERE id = $1
`

func (q *Queries) MarkReminderSent(ctx context.Context, id int64) error {
	_, err := q.db.Exec(ctx, markReminderSent, id)
	return err
}
