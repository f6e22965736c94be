package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/USSTM/asset-backend/internal/db"
	"github.com/USSTM/asset-backend/internal/logging"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// Beginner starts database transactions. *pgxpool.Pool satisfies it.
type Beginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Tracker runs every asset mutation as a single database transaction. Rows
// are locked request/transaction first, then assets in id order.
type Tracker struct {
	pool     Beginner
	tracer   trace.Tracer
	outcomes metric.Int64Counter
}

func NewTracker(pool Beginner) *Tracker {
	const scope = "github.com/USSTM/asset-backend/internal/lifecycle"
	outcomes, err := otel.Meter(scope).Int64Counter("lifecycle.commands",
		metric.WithDescription("Lifecycle commands by outcome"))
	if err != nil {
		logging.Warn("lifecycle counter unavailable", "error", err)
	}
	return &Tracker{
		pool:     pool,
		tracer:   otel.Tracer(scope),
		outcomes: outcomes,
	}
}

type RequestOutcome struct {
	Request db.BorrowRequest
	Asset   db.Asset
}

type TransactionOutcome struct {
	Transaction db.BorrowTransaction
	Items       []db.BorrowItem
	Assets      []db.Asset
}

type CreateRequestInput struct {
	AssetID   int64
	UserID    int64
	Quantity  int32
	StartDate time.Time
	EndDate   time.Time
	Reason    string
}

type ItemInput struct {
	AssetID  int64
	Quantity int32
}

type CreateTransactionInput struct {
	UserID    int64
	Items     []ItemInput
	StartDate time.Time
	EndDate   time.Time
	Reason    string
}

func (t *Tracker) inTx(ctx context.Context, span trace.Span, fn func(q *db.Queries) error) error {
	tx, err := t.pool.Begin(ctx)
	if err != nil {
		return t.fail(span, fmt.Errorf("failed to begin transaction: %w", err))
	}
	defer tx.Rollback(ctx)

	if err := fn(db.New(tx)); err != nil {
		t.count(ctx, err)
		return t.fail(span, err)
	}

	if err := tx.Commit(ctx); err != nil {
		t.count(ctx, err)
		return t.fail(span, fmt.Errorf("failed to commit transaction: %w", err))
	}
	span.SetAttributes(attribute.Bool("lifecycle.committed", true))
	t.count(ctx, nil)
	return nil
}

func (t *Tracker) count(ctx context.Context, err error) {
	if t.outcomes == nil {
		return
	}
	outcome := "committed"
	switch {
	case err == nil:
	case errors.Is(err, ErrUnavailable):
		outcome = "unavailable"
	case errors.Is(err, ErrNotFound):
		outcome = "not_found"
	default:
		outcome = "failed"
	}
	t.outcomes.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

func (t *Tracker) fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}

func notFound(err error, what string, id int64) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%w: %s %d", ErrNotFound, what, id)
	}
	return fmt.Errorf("failed to load %s %d: %w", what, id, err)
}

func toDate(t time.Time) pgtype.Date {
	return pgtype.Date{Time: t, Valid: true}
}

func checkDates(start, end time.Time) error {
	if end.Before(start) {
		return ErrInvalidDates
	}
	return nil
}

// CreateRequest opens a Pending borrow request for one asset.
func (t *Tracker) CreateRequest(ctx context.Context, in CreateRequestInput) (db.BorrowRequest, error) {
	ctx, span := t.tracer.Start(ctx, "lifecycle.create_request", trace.WithAttributes(
		attribute.Int64("asset.id", in.AssetID),
		attribute.Int64("user.id", in.UserID),
	))
	defer span.End()

	if in.Quantity == 0 {
		in.Quantity = 1
	}
	if err := checkDates(in.StartDate, in.EndDate); err != nil {
		return db.BorrowRequest{}, t.fail(span, err)
	}

	var created db.BorrowRequest
	err := t.inTx(ctx, span, func(q *db.Queries) error {
		asset, err := q.GetAssetByID(ctx, in.AssetID)
		if err != nil {
			return notFound(err, "asset", in.AssetID)
		}
		if err := Requestable(asset, in.Quantity); err != nil {
			return err
		}

		created, err = q.CreateBorrowRequest(ctx, db.CreateBorrowRequestParams{
			AssetID:   in.AssetID,
			UserID:    in.UserID,
			Quantity:  in.Quantity,
			StartDate: toDate(in.StartDate),
			EndDate:   toDate(in.EndDate),
			Reason:    in.Reason,
		})
		if err != nil {
			return fmt.Errorf("failed to create borrow request: %w", err)
		}
		return nil
	})
	return created, err
}

// ApproveRequest lends the requested units directly: Available -> Borrowed
// once the last unit is out.
func (t *Tracker) ApproveRequest(ctx context.Context, requestID, reviewerID int64) (RequestOutcome, error) {
	ctx, span := t.tracer.Start(ctx, "lifecycle.approve_request", trace.WithAttributes(
		attribute.Int64("request.id", requestID),
		attribute.Int64("reviewer.id", reviewerID),
	))
	defer span.End()

	var out RequestOutcome
	err := t.inTx(ctx, span, func(q *db.Queries) error {
		req, err := q.GetBorrowRequestByIDForUpdate(ctx, requestID)
		if err != nil {
			return notFound(err, "borrow request", requestID)
		}
		if req.Status != db.RequestStatusPending {
			return fmt.Errorf("%w: request %d is %s", ErrInvalidTransition, requestID, req.Status)
		}

		asset, err := t.checkout(ctx, q, req.AssetID, req.Quantity, db.AssetStatusBorrowed)
		if err != nil {
			return err
		}

		req, err = q.ReviewBorrowRequest(ctx, db.ReviewBorrowRequestParams{
			ID:         requestID,
			Status:     db.RequestStatusApproved,
			ReviewedBy: pgtype.Int8{Int64: reviewerID, Valid: true},
		})
		if err != nil {
			return fmt.Errorf("failed to approve request %d: %w", requestID, err)
		}

		out = RequestOutcome{Request: req, Asset: asset}
		return nil
	})
	if err != nil {
		return RequestOutcome{}, err
	}

	logging.Info("Borrow request approved",
		"request_id", requestID,
		"asset_id", out.Asset.ID,
		"current_stock", out.Asset.CurrentStock,
		"status", out.Asset.Status)
	return out, nil
}

// checkout locks the asset row, applies Checkout and persists it. The
// conditional decrement is a second guard against a stale read.
func (t *Tracker) checkout(ctx context.Context, q *db.Queries, assetID int64, qty int32, hold db.AssetStatus) (db.Asset, error) {
	asset, err := q.GetAssetByIDForUpdate(ctx, assetID)
	if err != nil {
		return db.Asset{}, notFound(err, "asset", assetID)
	}

	next, err := Checkout(StockOf(asset), qty, hold)
	if err != nil {
		return db.Asset{}, fmt.Errorf("asset %d: %w", assetID, err)
	}

	asset, err = q.DecrementAssetStock(ctx, db.DecrementAssetStockParams{
		ID:       assetID,
		Quantity: qty,
		Status:   next.Status,
	})
	if errors.Is(err, pgx.ErrNoRows) {
		return db.Asset{}, fmt.Errorf("%w: asset %d stock changed concurrently", ErrUnavailable, assetID)
	}
	if err != nil {
		return db.Asset{}, fmt.Errorf("failed to update asset %d: %w", assetID, err)
	}
	return asset, nil
}

func (t *Tracker) giveBack(ctx context.Context, q *db.Queries, assetID int64, qty int32) (db.Asset, error) {
	asset, err := q.GetAssetByIDForUpdate(ctx, assetID)
	if err != nil {
		return db.Asset{}, notFound(err, "asset", assetID)
	}

	next, err := Return(StockOf(asset), qty)
	if err != nil {
		return db.Asset{}, fmt.Errorf("asset %d: %w", assetID, err)
	}

	asset, err = q.IncrementAssetStock(ctx, db.IncrementAssetStockParams{
		ID:       assetID,
		Quantity: qty,
		Status:   next.Status,
	})
	if err != nil {
		return db.Asset{}, fmt.Errorf("failed to restock asset %d: %w", assetID, err)
	}
	return asset, nil
}

// RejectRequest closes a Pending request without touching the asset.
func (t *Tracker) RejectRequest(ctx context.Context, requestID, reviewerID int64) (RequestOutcome, error) {
	ctx, span := t.tracer.Start(ctx, "lifecycle.reject_request", trace.WithAttributes(
		attribute.Int64("request.id", requestID),
	))
	defer span.End()

	var out RequestOutcome
	err := t.inTx(ctx, span, func(q *db.Queries) error {
		req, err := q.GetBorrowRequestByIDForUpdate(ctx, requestID)
		if err != nil {
			return notFound(err, "borrow request", requestID)
		}
		if req.Status != db.RequestStatusPending {
			return fmt.Errorf("%w: request %d is %s", ErrInvalidTransition, requestID, req.Status)
		}

		req, err = q.ReviewBorrowRequest(ctx, db.ReviewBorrowRequestParams{
			ID:         requestID,
			Status:     db.RequestStatusRejected,
			ReviewedBy: pgtype.Int8{Int64: reviewerID, Valid: true},
		})
		if err != nil {
			return fmt.Errorf("failed to reject request %d: %w", requestID, err)
		}

		asset, err := q.GetAssetByID(ctx, req.AssetID)
		if err != nil {
			return notFound(err, "asset", req.AssetID)
		}
		out = RequestOutcome{Request: req, Asset: asset}
		return nil
	})
	return out, err
}

// ReturnRequest restocks the asset of an Approved request and marks it Returned.
func (t *Tracker) ReturnRequest(ctx context.Context, requestID int64) (RequestOutcome, error) {
	ctx, span := t.tracer.Start(ctx, "lifecycle.return_request", trace.WithAttributes(
		attribute.Int64("request.id", requestID),
	))
	defer span.End()

	var out RequestOutcome
	err := t.inTx(ctx, span, func(q *db.Queries) error {
		req, err := q.GetBorrowRequestByIDForUpdate(ctx, requestID)
		if err != nil {
			return notFound(err, "borrow request", requestID)
		}
		if req.Status != db.RequestStatusApproved {
			return fmt.Errorf("%w: request %d is %s", ErrInvalidTransition, requestID, req.Status)
		}

		asset, err := t.giveBack(ctx, q, req.AssetID, req.Quantity)
		if err != nil {
			return err
		}

		req, err = q.MarkBorrowRequestReturned(ctx, requestID)
		if err != nil {
			return fmt.Errorf("failed to mark request %d returned: %w", requestID, err)
		}

		out = RequestOutcome{Request: req, Asset: asset}
		return nil
	})
	if err != nil {
		return RequestOutcome{}, err
	}

	logging.Info("Borrow request returned",
		"request_id", requestID,
		"asset_id", out.Asset.ID,
		"current_stock", out.Asset.CurrentStock)
	return out, nil
}

// CreateTransaction opens a Pending multi-item transaction.
func (t *Tracker) CreateTransaction(ctx context.Context, in CreateTransactionInput) (TransactionOutcome, error) {
	ctx, span := t.tracer.Start(ctx, "lifecycle.create_transaction", trace.WithAttributes(
		attribute.Int64("user.id", in.UserID),
		attribute.Int("items.count", len(in.Items)),
	))
	defer span.End()

	if len(in.Items) == 0 {
		return TransactionOutcome{}, t.fail(span, fmt.Errorf("%w: no items", ErrInvalidQuantity))
	}
	if err := checkDates(in.StartDate, in.EndDate); err != nil {
		return TransactionOutcome{}, t.fail(span, err)
	}

	// merge duplicate lines for the same asset
	merged := map[int64]int32{}
	order := []int64{}
	for _, item := range in.Items {
		if item.Quantity == 0 {
			item.Quantity = 1
		}
		if _, seen := merged[item.AssetID]; !seen {
			order = append(order, item.AssetID)
		}
		merged[item.AssetID] += item.Quantity
	}

	var out TransactionOutcome
	err := t.inTx(ctx, span, func(q *db.Queries) error {
		txn, err := q.CreateBorrowTransaction(ctx, db.CreateBorrowTransactionParams{
			DocumentNo: "BT-" + uuid.NewString()[:8],
			UserID:     in.UserID,
			StartDate:  toDate(in.StartDate),
			EndDate:    toDate(in.EndDate),
			Reason:     in.Reason,
		})
		if err != nil {
			return fmt.Errorf("failed to create borrow transaction: %w", err)
		}

		for _, assetID := range order {
			asset, err := q.GetAssetByID(ctx, assetID)
			if err != nil {
				return notFound(err, "asset", assetID)
			}
			if err := Requestable(asset, merged[assetID]); err != nil {
				return err
			}

			item, err := q.CreateBorrowItem(ctx, db.CreateBorrowItemParams{
				TransactionID: txn.ID,
				AssetID:       assetID,
				Quantity:      merged[assetID],
			})
			if err != nil {
				return fmt.Errorf("failed to add asset %d: %w", assetID, err)
			}
			out.Items = append(out.Items, item)
			out.Assets = append(out.Assets, asset)
		}

		out.Transaction = txn
		return nil
	})
	if err != nil {
		return TransactionOutcome{}, err
	}
	return out, nil
}

// ApproveTransaction reserves every item or none of them.
func (t *Tracker) ApproveTransaction(ctx context.Context, transactionID, reviewerID int64) (TransactionOutcome, error) {
	ctx, span := t.tracer.Start(ctx, "lifecycle.approve_transaction", trace.WithAttributes(
		attribute.Int64("transaction.id", transactionID),
		attribute.Int64("reviewer.id", reviewerID),
	))
	defer span.End()

	var out TransactionOutcome
	err := t.inTx(ctx, span, func(q *db.Queries) error {
		txn, err := q.GetBorrowTransactionByIDForUpdate(ctx, transactionID)
		if err != nil {
			return notFound(err, "borrow transaction", transactionID)
		}
		if txn.Status != db.RequestStatusPending {
			return fmt.Errorf("%w: transaction %d is %s", ErrInvalidTransition, transactionID, txn.Status)
		}

		items, err := q.ListBorrowItemsByTransaction(ctx, transactionID)
		if err != nil {
			return fmt.Errorf("failed to load items: %w", err)
		}

		for _, item := range items {
			asset, err := t.checkout(ctx, q, item.AssetID, item.Quantity, db.AssetStatusReserved)
			if err != nil {
				return err
			}
			out.Assets = append(out.Assets, asset)
		}

		txn, err = q.ReviewBorrowTransaction(ctx, db.ReviewBorrowTransactionParams{
			ID:         transactionID,
			Status:     db.RequestStatusApproved,
			ReviewedBy: pgtype.Int8{Int64: reviewerID, Valid: true},
		})
		if err != nil {
			return fmt.Errorf("failed to approve transaction %d: %w", transactionID, err)
		}

		out.Transaction = txn
		out.Items = items
		return nil
	})
	if err != nil {
		return TransactionOutcome{}, err
	}

	logging.Info("Borrow transaction approved", "transaction_id", transactionID, "items", len(out.Items))
	return out, nil
}

func (t *Tracker) RejectTransaction(ctx context.Context, transactionID, reviewerID int64) (TransactionOutcome, error) {
	ctx, span := t.tracer.Start(ctx, "lifecycle.reject_transaction", trace.WithAttributes(
		attribute.Int64("transaction.id", transactionID),
	))
	defer span.End()

	var out TransactionOutcome
	err := t.inTx(ctx, span, func(q *db.Queries) error {
		txn, err := q.GetBorrowTransactionByIDForUpdate(ctx, transactionID)
		if err != nil {
			return notFound(err, "borrow transaction", transactionID)
		}
		if txn.Status != db.RequestStatusPending {
			return fmt.Errorf("%w: transaction %d is %s", ErrInvalidTransition, transactionID, txn.Status)
		}

		txn, err = q.ReviewBorrowTransaction(ctx, db.ReviewBorrowTransactionParams{
			ID:         transactionID,
			Status:     db.RequestStatusRejected,
			ReviewedBy: pgtype.Int8{Int64: reviewerID, Valid: true},
		})
		if err != nil {
			return fmt.Errorf("failed to reject transaction %d: %w", transactionID, err)
		}

		items, err := q.ListBorrowItemsByTransaction(ctx, transactionID)
		if err != nil {
			return fmt.Errorf("failed to load items: %w", err)
		}
		out = TransactionOutcome{Transaction: txn, Items: items}
		return nil
	})
	return out, err
}

// ConfirmSignature records the signed document and turns reservations into loans.
func (t *Tracker) ConfirmSignature(ctx context.Context, transactionID int64, signatureKey string) (TransactionOutcome, error) {
	ctx, span := t.tracer.Start(ctx, "lifecycle.confirm_signature", trace.WithAttributes(
		attribute.Int64("transaction.id", transactionID),
	))
	defer span.End()

	var out TransactionOutcome
	err := t.inTx(ctx, span, func(q *db.Queries) error {
		txn, err := q.GetBorrowTransactionByIDForUpdate(ctx, transactionID)
		if err != nil {
			return notFound(err, "borrow transaction", transactionID)
		}
		if txn.Status != db.RequestStatusApproved || txn.IsSigned {
			return fmt.Errorf("%w: transaction %d is %s (signed=%t)", ErrInvalidTransition, transactionID, txn.Status, txn.IsSigned)
		}

		items, err := q.ListBorrowItemsByTransaction(ctx, transactionID)
		if err != nil {
			return fmt.Errorf("failed to load items: %w", err)
		}

		for _, item := range items {
			asset, err := q.GetAssetByIDForUpdate(ctx, item.AssetID)
			if err != nil {
				return notFound(err, "asset", item.AssetID)
			}
			next, err := Sign(StockOf(asset))
			if err != nil {
				return fmt.Errorf("asset %d: %w", item.AssetID, err)
			}
			if next.Status != asset.Status {
				asset, err = q.UpdateAssetStatus(ctx, db.UpdateAssetStatusParams{ID: asset.ID, Status: next.Status})
				if err != nil {
					return fmt.Errorf("failed to update asset %d: %w", item.AssetID, err)
				}
			}
			out.Assets = append(out.Assets, asset)
		}

		txn, err = q.SignBorrowTransaction(ctx, db.SignBorrowTransactionParams{
			ID:           transactionID,
			SignatureKey: pgtype.Text{String: signatureKey, Valid: signatureKey != ""},
		})
		if err != nil {
			return fmt.Errorf("failed to sign transaction %d: %w", transactionID, err)
		}

		out.Transaction = txn
		out.Items = items
		return nil
	})
	if err != nil {
		return TransactionOutcome{}, err
	}
	return out, nil
}

// ReturnTransaction restocks every item of an Approved transaction.
func (t *Tracker) ReturnTransaction(ctx context.Context, transactionID int64) (TransactionOutcome, error) {
	ctx, span := t.tracer.Start(ctx, "lifecycle.return_transaction", trace.WithAttributes(
		attribute.Int64("transaction.id", transactionID),
	))
	defer span.End()

	var out TransactionOutcome
	err := t.inTx(ctx, span, func(q *db.Queries) error {
		txn, err := q.GetBorrowTransactionByIDForUpdate(ctx, transactionID)
		if err != nil {
			return notFound(err, "borrow transaction", transactionID)
		}
		if txn.Status != db.RequestStatusApproved {
			return fmt.Errorf("%w: transaction %d is %s", ErrInvalidTransition, transactionID, txn.Status)
		}

		items, err := q.ListBorrowItemsByTransaction(ctx, transactionID)
		if err != nil {
			return fmt.Errorf("failed to load items: %w", err)
		}

		for _, item := range items {
			asset, err := t.giveBack(ctx, q, item.AssetID, item.Quantity)
			if err != nil {
				return err
			}
			out.Assets = append(out.Assets, asset)
		}

		txn, err = q.MarkBorrowTransactionReturned(ctx, transactionID)
		if err != nil {
			return fmt.Errorf("failed to mark transaction %d returned: %w", transactionID, err)
		}

		out.Transaction = txn
		out.Items = items
		return nil
	})
	if err != nil {
		return TransactionOutcome{}, err
	}
	return out, nil
}

// SetStatus applies a manual inspection status change.
func (t *Tracker) SetStatus(ctx context.Context, assetID int64, to db.AssetStatus) (db.Asset, error) {
	ctx, span := t.tracer.Start(ctx, "lifecycle.set_status", trace.WithAttributes(
		attribute.Int64("asset.id", assetID),
		attribute.String("asset.status", string(to)),
	))
	defer span.End()

	var out db.Asset
	err := t.inTx(ctx, span, func(q *db.Queries) error {
		asset, err := q.GetAssetByIDForUpdate(ctx, assetID)
		if err != nil {
			return notFound(err, "asset", assetID)
		}

		next, err := Inspect(StockOf(asset), to)
		if err != nil {
			return fmt.Errorf("asset %d: %w", assetID, err)
		}
		if next.Status == asset.Status {
			out = asset
			return nil
		}

		out, err = q.UpdateAssetStatus(ctx, db.UpdateAssetStatusParams{ID: assetID, Status: next.Status})
		if err != nil {
			return fmt.Errorf("failed to update asset %d: %w", assetID, err)
		}
		return nil
	})
	return out, err
}

type UpdateAssetInput struct {
	Name         string
	Category     string
	Location     string
	TotalStock   int32
	DepartmentID pgtype.Int8
}

// UpdateAsset edits an asset's descriptive fields and resizes its stock
// under the row lock, so status follows the new shelf count.
func (t *Tracker) UpdateAsset(ctx context.Context, assetID int64, in UpdateAssetInput) (db.Asset, error) {
	ctx, span := t.tracer.Start(ctx, "lifecycle.update_asset", trace.WithAttributes(
		attribute.Int64("asset.id", assetID),
		attribute.Int("asset.total_stock", int(in.TotalStock)),
	))
	defer span.End()

	var out db.Asset
	err := t.inTx(ctx, span, func(q *db.Queries) error {
		asset, err := q.GetAssetByIDForUpdate(ctx, assetID)
		if err != nil {
			return notFound(err, "asset", assetID)
		}

		hold := db.AssetStatusBorrowed
		if asset.Status == db.AssetStatusReserved || asset.Status == db.AssetStatusAvailable {
			reserved, err := q.CountReservedAssetUnits(ctx, assetID)
			if err != nil {
				return fmt.Errorf("failed to count reserved units of asset %d: %w", assetID, err)
			}
			if out := asset.TotalStock - asset.CurrentStock; out > 0 && reserved >= out {
				hold = db.AssetStatusReserved
			}
		}

		next, err := Resize(StockOf(asset), in.TotalStock, hold)
		if err != nil {
			return fmt.Errorf("asset %d: %w", assetID, err)
		}

		out, err = q.UpdateAsset(ctx, db.UpdateAssetParams{
			ID:           assetID,
			Name:         in.Name,
			Category:     in.Category,
			Location:     in.Location,
			TotalStock:   next.TotalStock,
			CurrentStock: next.CurrentStock,
			Status:       next.Status,
			DepartmentID: in.DepartmentID,
		})
		if err != nil {
			return fmt.Errorf("failed to update asset %d: %w", assetID, err)
		}
		return nil
	})
	return out, err
}
