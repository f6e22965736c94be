package api

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/USSTM/asset-backend/internal/auth"
	"github.com/USSTM/asset-backend/internal/db"
	"github.com/USSTM/asset-backend/internal/image"
	"github.com/USSTM/asset-backend/internal/lifecycle"
	"github.com/USSTM/asset-backend/internal/middleware"
	"github.com/USSTM/asset-backend/internal/rbac"
	"github.com/google/uuid"
	openapi_types "github.com/oapi-codegen/runtime/types"
)

type CreateTransactionRequest struct {
	Items []struct {
		AssetID  int64 `json:"assetId"`
		Quantity int32 `json:"quantity"`
	} `json:"items"`
	StartDate *openapi_types.Date `json:"startDate"`
	EndDate   *openapi_types.Date `json:"endDate"`
	Reason    string              `json:"reason"`
}

// transactionResponse attaches a short-lived link to the stored signature.
func (s *Server) transactionResponse(ctx context.Context, txn db.BorrowTransaction, items []db.BorrowItem) TransactionResponse {
	resp := toTransactionResponse(txn, items)
	if txn.SignatureKey.Valid && s.storage != nil {
		url, err := s.storage.PresignGetURL(ctx, txn.SignatureKey.String, signatureURLTTL)
		if err != nil {
			middleware.GetLoggerFromContext(ctx).Warn("Failed to presign signature", "transaction_id", txn.ID, "error", err)
		} else {
			resp.SignatureURL = url
		}
	}
	return resp
}

// loadTransaction fetches a transaction the user owns or may review. Reviewers
// outside the owning department get the same 404 as strangers.
func (s *Server) loadTransaction(w http.ResponseWriter, r *http.Request, user *auth.AuthenticatedUser, id int64) (db.BorrowTransaction, bool) {
	txn, err := s.db.Queries().GetBorrowTransactionByID(r.Context(), id)
	if err != nil {
		s.fail(w, r, "Transaction", err)
		return db.BorrowTransaction{}, false
	}
	if txn.UserID == user.ID {
		return txn, true
	}
	if !s.reviewer(user, rbac.ModuleTransactions) {
		writeError(w, NotFound("Transaction"))
		return db.BorrowTransaction{}, false
	}
	inReach, err := s.transactionInReach(r.Context(), user, id)
	if err != nil {
		s.fail(w, r, "Transaction", err)
		return db.BorrowTransaction{}, false
	}
	if !inReach {
		writeError(w, NotFound("Transaction"))
		return db.BorrowTransaction{}, false
	}
	return txn, true
}

// transactionInReach holds when every item's asset is in the user's reach.
func (s *Server) transactionInReach(ctx context.Context, user *auth.AuthenticatedUser, id int64) (bool, error) {
	if s.resolver.IsAdmin(user.Subject) {
		return true, nil
	}
	items, err := s.db.Queries().ListBorrowItemsByTransaction(ctx, id)
	if err != nil {
		return false, err
	}
	for _, item := range items {
		asset, err := s.db.Queries().GetAssetByID(ctx, item.AssetID)
		if err != nil {
			return false, err
		}
		if !s.assetInReach(user, asset) {
			return false, nil
		}
	}
	return true, nil
}

func (s *Server) ListTransactions(w http.ResponseWriter, r *http.Request) {
	user, ok := s.authorize(w, r, rbac.ModuleTransactions, rbac.ActionView)
	if !ok {
		return
	}

	limit, offset, err := bindPagination(r)
	if err != nil {
		writeError(w, ValidationErr("Invalid pagination parameters", []ErrorDetail{{Message: err.Error()}}))
		return
	}
	status, err := bindRequestStatus(r)
	if err != nil {
		writeError(w, ValidationErr("Invalid filter", []ErrorDetail{{Field: "status", Message: err.Error()}}))
		return
	}

	params := db.ListBorrowTransactionsParams{Status: status, Limit: limit, Offset: offset}
	if s.reviewer(user, rbac.ModuleTransactions) {
		params.DepartmentID = s.departmentFilter(user)
	} else {
		params.UserID = int8Of(&user.ID)
	}

	txns, err := s.db.Queries().ListBorrowTransactions(r.Context(), params)
	if err != nil {
		s.fail(w, r, "Transaction", err)
		return
	}
	total, err := s.db.Queries().CountBorrowTransactions(r.Context(), db.CountBorrowTransactionsParams{
		UserID:       params.UserID,
		Status:       params.Status,
		DepartmentID: params.DepartmentID,
	})
	if err != nil {
		s.fail(w, r, "Transaction", err)
		return
	}

	resp := make([]TransactionResponse, 0, len(txns))
	for _, txn := range txns {
		items, err := s.db.Queries().ListBorrowItemsByTransaction(r.Context(), txn.ID)
		if err != nil {
			s.fail(w, r, "Transaction", err)
			return
		}
		resp = append(resp, toTransactionResponse(txn, items))
	}
	writeJSON(w, http.StatusOK, newList(resp, total, limit, offset))
}

func (s *Server) CreateTransaction(w http.ResponseWriter, r *http.Request) {
	logger := middleware.GetLoggerFromContext(r.Context())

	user, ok := s.authorize(w, r, rbac.ModuleTransactions, rbac.ActionCreate)
	if !ok {
		return
	}

	var req CreateTransactionRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if len(req.Items) == 0 {
		writeError(w, ValidationErr("Invalid transaction", []ErrorDetail{{Field: "items", Message: "must contain at least one asset"}}))
		return
	}

	items := make([]lifecycle.ItemInput, 0, len(req.Items))
	for i, it := range req.Items {
		if it.AssetID < 1 {
			writeError(w, ValidationErr("Invalid transaction", []ErrorDetail{{Field: fmt.Sprintf("items[%d].assetId", i), Message: "is required"}}))
			return
		}
		asset, err := s.db.Queries().GetAssetByID(r.Context(), it.AssetID)
		if err != nil {
			s.fail(w, r, "Asset", err)
			return
		}
		if !s.assetInReach(user, asset) {
			writeError(w, NotFound("Asset"))
			return
		}
		items = append(items, lifecycle.ItemInput{AssetID: it.AssetID, Quantity: it.Quantity})
	}

	start, end := s.loanWindow(req.StartDate, req.EndDate)
	out, err := s.tracker.CreateTransaction(r.Context(), lifecycle.CreateTransactionInput{
		UserID:    user.ID,
		Items:     items,
		StartDate: start,
		EndDate:   end,
		Reason:    req.Reason,
	})
	if err != nil {
		s.fail(w, r, "Asset", err)
		return
	}

	logger.Info("Borrow transaction created", "transaction_id", out.Transaction.ID,
		"document_no", out.Transaction.DocumentNo, "items", len(out.Items))
	writeJSON(w, http.StatusCreated, toTransactionResponse(out.Transaction, out.Items))
}

func (s *Server) GetTransaction(w http.ResponseWriter, r *http.Request) {
	user, ok := s.authorize(w, r, rbac.ModuleTransactions, rbac.ActionView)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	txn, ok := s.loadTransaction(w, r, user, id)
	if !ok {
		return
	}
	items, err := s.db.Queries().ListBorrowItemsByTransaction(r.Context(), id)
	if err != nil {
		s.fail(w, r, "Transaction", err)
		return
	}
	writeJSON(w, http.StatusOK, s.transactionResponse(r.Context(), txn, items))
}

type transactionStep func(ctx context.Context, id, actorID int64) (lifecycle.TransactionOutcome, error)

// review runs an approver-only step and notifies the borrower.
func (s *Server) review(w http.ResponseWriter, r *http.Request, name string, step transactionStep) {
	logger := middleware.GetLoggerFromContext(r.Context())

	user, ok := s.authorize(w, r, rbac.ModuleTransactions, rbac.ActionApprove)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	if _, err := s.db.Queries().GetBorrowTransactionByID(r.Context(), id); err != nil {
		s.fail(w, r, "Transaction", err)
		return
	}
	inReach, err := s.transactionInReach(r.Context(), user, id)
	if err != nil {
		s.fail(w, r, "Transaction", err)
		return
	}
	if !inReach {
		writeError(w, PermissionDenied("Transaction includes assets of another department"))
		return
	}

	out, err := step(r.Context(), id, user.ID)
	if err != nil {
		logger.Warn("Transaction "+name+" failed", "transaction_id", id, "error", err)
		s.fail(w, r, "Transaction", err)
		return
	}

	logger.Info("Transaction "+name, "transaction_id", id, "status", out.Transaction.Status)
	if err := s.notifier.TransactionReviewed(r.Context(), user.ID, out.Transaction); err != nil {
		logger.Error("Failed to send transaction notification", "transaction_id", id, "error", err)
	}
	writeJSON(w, http.StatusOK, s.transactionResponse(r.Context(), out.Transaction, out.Items))
}

func (s *Server) ApproveTransaction(w http.ResponseWriter, r *http.Request) {
	s.review(w, r, "approved", s.tracker.ApproveTransaction)
}

func (s *Server) RejectTransaction(w http.ResponseWriter, r *http.Request) {
	s.review(w, r, "rejected", s.tracker.RejectTransaction)
}

func (s *Server) ReturnTransaction(w http.ResponseWriter, r *http.Request) {
	s.review(w, r, "returned", func(ctx context.Context, id, _ int64) (lifecycle.TransactionOutcome, error) {
		return s.tracker.ReturnTransaction(ctx, id)
	})
}

// SignTransaction stores the borrower's signature and hands out the reserved
// units. Only the borrower signs. The image is uploaded before the status
// changes; a failed status change removes it again.
func (s *Server) SignTransaction(w http.ResponseWriter, r *http.Request) {
	logger := middleware.GetLoggerFromContext(r.Context())

	user, ok := s.authorize(w, r, rbac.ModuleTransactions, rbac.ActionView)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	txn, ok := s.loadTransaction(w, r, user, id)
	if !ok {
		return
	}
	if txn.UserID != user.ID {
		writeError(w, PermissionDenied("Only the borrower can sign the transaction"))
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, image.MaxFileSize+1<<20)
	if err := r.ParseMultipartForm(image.MaxFileSize); err != nil {
		writeError(w, ValidationErr("Invalid upload", []ErrorDetail{{Field: "signature", Message: err.Error()}}))
		return
	}
	file, header, err := r.FormFile("signature")
	if err != nil {
		writeError(w, ValidationErr("Invalid upload", []ErrorDetail{{Field: "signature", Message: "file is required"}}))
		return
	}
	defer file.Close()

	sig, err := image.ProcessSignature(file, header.Size)
	if err != nil {
		s.fail(w, r, "Signature", err)
		return
	}

	key := fmt.Sprintf("signatures/%d/%s.png", id, uuid.NewString())
	if err := s.storage.PutObject(r.Context(), key, bytes.NewReader(sig.Data), sig.ContentType); err != nil {
		s.fail(w, r, "Signature", fmt.Errorf("failed to store signature: %w", err))
		return
	}

	out, err := s.tracker.ConfirmSignature(r.Context(), id, key)
	if err != nil {
		if delErr := s.storage.DeleteObject(r.Context(), key); delErr != nil {
			logger.Warn("Failed to remove orphaned signature", "key", key, "error", delErr)
		}
		if errors.Is(err, lifecycle.ErrInvalidTransition) {
			writeError(w, ValidationErr("Transaction cannot be signed in its current state", nil))
			return
		}
		s.fail(w, r, "Transaction", err)
		return
	}

	logger.Info("Transaction signed", "transaction_id", id, "signature_key", key,
		"width", sig.Width, "height", sig.Height)
	writeJSON(w, http.StatusOK, s.transactionResponse(r.Context(), out.Transaction, out.Items))
}
