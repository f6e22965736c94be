package api

import (
	"net/http"
	"time"

	"github.com/USSTM/asset-backend/internal/auth"
	"github.com/USSTM/asset-backend/internal/db"
	"github.com/USSTM/asset-backend/internal/lifecycle"
	"github.com/USSTM/asset-backend/internal/middleware"
	"github.com/USSTM/asset-backend/internal/rbac"
	"github.com/oapi-codegen/runtime"
	openapi_types "github.com/oapi-codegen/runtime/types"
)

type CreateBorrowRequest struct {
	AssetID   int64               `json:"assetId"`
	Quantity  int32               `json:"quantity"`
	StartDate *openapi_types.Date `json:"startDate"`
	EndDate   *openapi_types.Date `json:"endDate"`
	Reason    string              `json:"reason"`
}

// loanWindow fills in missing dates: today, and the configured loan length
// after the start.
func (s *Server) loanWindow(start, end *openapi_types.Date) (time.Time, time.Time) {
	from := time.Now().UTC().Truncate(24 * time.Hour)
	if start != nil {
		from = start.Time
	}
	days := 7
	if s.cfg != nil && s.cfg.Borrow.DefaultLoanDays > 0 {
		days = s.cfg.Borrow.DefaultLoanDays
	}
	to := from.AddDate(0, 0, days)
	if end != nil {
		to = end.Time
	}
	return from, to
}

func bindRequestStatus(r *http.Request) (db.NullRequestStatus, error) {
	var status *db.RequestStatus
	if err := runtime.BindQueryParameter("form", true, false, "status", r.URL.Query(), &status); err != nil {
		return db.NullRequestStatus{}, err
	}
	if status == nil {
		return db.NullRequestStatus{}, nil
	}
	return db.NullRequestStatus{RequestStatus: *status, Valid: true}, nil
}

// reviewer reports whether the user may act on other people's requests in module.
func (s *Server) reviewer(user *auth.AuthenticatedUser, module string) bool {
	return s.resolver.HasPermission(user.Subject, module, rbac.ActionApprove)
}

func (s *Server) ListBorrowRequests(w http.ResponseWriter, r *http.Request) {
	user, ok := s.authorize(w, r, rbac.ModuleBorrow, rbac.ActionView)
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

	params := db.ListBorrowRequestsParams{Status: status, Limit: limit, Offset: offset}
	if s.reviewer(user, rbac.ModuleBorrow) {
		params.DepartmentID = s.departmentFilter(user)
	} else {
		params.UserID = int8Of(&user.ID)
	}

	requests, err := s.db.Queries().ListBorrowRequests(r.Context(), params)
	if err != nil {
		s.fail(w, r, "Borrow request", err)
		return
	}
	total, err := s.db.Queries().CountBorrowRequests(r.Context(), db.CountBorrowRequestsParams{
		UserID:       params.UserID,
		Status:       params.Status,
		DepartmentID: params.DepartmentID,
	})
	if err != nil {
		s.fail(w, r, "Borrow request", err)
		return
	}

	resp := make([]BorrowRequestResponse, 0, len(requests))
	for _, req := range requests {
		resp = append(resp, toBorrowRequestResponse(req))
	}
	writeJSON(w, http.StatusOK, newList(resp, total, limit, offset))
}

func (s *Server) CreateBorrowRequest(w http.ResponseWriter, r *http.Request) {
	logger := middleware.GetLoggerFromContext(r.Context())

	user, ok := s.authorize(w, r, rbac.ModuleBorrow, rbac.ActionCreate)
	if !ok {
		return
	}

	var req CreateBorrowRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.AssetID < 1 {
		writeError(w, ValidationErr("Invalid borrow request", []ErrorDetail{{Field: "assetId", Message: "is required"}}))
		return
	}

	asset, err := s.db.Queries().GetAssetByID(r.Context(), req.AssetID)
	if err != nil {
		s.fail(w, r, "Asset", err)
		return
	}
	if !s.assetInReach(user, asset) {
		writeError(w, NotFound("Asset"))
		return
	}

	start, end := s.loanWindow(req.StartDate, req.EndDate)
	created, err := s.tracker.CreateRequest(r.Context(), lifecycle.CreateRequestInput{
		AssetID:   req.AssetID,
		UserID:    user.ID,
		Quantity:  req.Quantity,
		StartDate: start,
		EndDate:   end,
		Reason:    req.Reason,
	})
	if err != nil {
		s.fail(w, r, "Asset", err)
		return
	}

	logger.Info("Borrow request created", "request_id", created.ID, "asset_id", created.AssetID, "quantity", created.Quantity)
	writeJSON(w, http.StatusCreated, toBorrowRequestResponse(created))
}

func (s *Server) GetBorrowRequest(w http.ResponseWriter, r *http.Request) {
	user, ok := s.authorize(w, r, rbac.ModuleBorrow, rbac.ActionView)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	req, err := s.db.Queries().GetBorrowRequestByID(r.Context(), id)
	if err != nil {
		s.fail(w, r, "Borrow request", err)
		return
	}
	if req.UserID != user.ID {
		if !s.reviewer(user, rbac.ModuleBorrow) || !s.requestInReach(r, user, req) {
			writeError(w, NotFound("Borrow request"))
			return
		}
	}
	writeJSON(w, http.StatusOK, toBorrowRequestResponse(req))
}

func (s *Server) requestInReach(r *http.Request, user *auth.AuthenticatedUser, req db.BorrowRequest) bool {
	asset, err := s.db.Queries().GetAssetByID(r.Context(), req.AssetID)
	if err != nil {
		return false
	}
	return s.assetInReach(user, asset)
}

// ReviewBorrowRequest moves a request to Approved, Rejected or Returned.
func (s *Server) ReviewBorrowRequest(w http.ResponseWriter, r *http.Request) {
	logger := middleware.GetLoggerFromContext(r.Context())

	user, ok := s.authorize(w, r, rbac.ModuleBorrow, rbac.ActionApprove)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	var body struct {
		Status db.RequestStatus `json:"status"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}

	existing, err := s.db.Queries().GetBorrowRequestByID(r.Context(), id)
	if err != nil {
		s.fail(w, r, "Borrow request", err)
		return
	}
	if !s.requestInReach(r, user, existing) {
		writeError(w, PermissionDenied("Request belongs to another department"))
		return
	}

	var outcome lifecycle.RequestOutcome
	switch body.Status {
	case db.RequestStatusApproved:
		outcome, err = s.tracker.ApproveRequest(r.Context(), id, user.ID)
	case db.RequestStatusRejected:
		outcome, err = s.tracker.RejectRequest(r.Context(), id, user.ID)
	case db.RequestStatusReturned:
		outcome, err = s.tracker.ReturnRequest(r.Context(), id)
	default:
		writeError(w, ValidationErr("Invalid status", []ErrorDetail{{Field: "status", Message: "must be Approved, Rejected or Returned"}}))
		return
	}
	if err != nil {
		logger.Warn("Borrow request review failed", "request_id", id, "status", body.Status, "error", err)
		s.fail(w, r, "Borrow request", err)
		return
	}

	logger.Info("Borrow request reviewed", "request_id", id, "status", outcome.Request.Status,
		"asset_id", outcome.Asset.ID, "asset_status", outcome.Asset.Status, "current_stock", outcome.Asset.CurrentStock)

	if err := s.notifier.RequestReviewed(r.Context(), user.ID, outcome.Request, outcome.Asset); err != nil {
		logger.Error("Failed to send borrow notification", "request_id", id, "error", err)
	}

	writeJSON(w, http.StatusOK, toBorrowRequestResponse(outcome.Request))
}
