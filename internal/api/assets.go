package api

import (
	"net/http"
	"strings"

	"github.com/USSTM/asset-backend/internal/auth"
	"github.com/USSTM/asset-backend/internal/db"
	"github.com/USSTM/asset-backend/internal/lifecycle"
	"github.com/USSTM/asset-backend/internal/middleware"
	"github.com/USSTM/asset-backend/internal/rbac"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/oapi-codegen/runtime"
)

type AssetInput struct {
	Code         string `json:"code"`
	Name         string `json:"name"`
	Category     string `json:"category"`
	Location     string `json:"location"`
	TotalStock   int32  `json:"totalStock"`
	DepartmentID *int64 `json:"departmentId"`
}

func (in *AssetInput) validate() []ErrorDetail {
	in.Code = strings.TrimSpace(in.Code)
	in.Name = strings.TrimSpace(in.Name)
	in.Category = strings.TrimSpace(in.Category)
	in.Location = strings.TrimSpace(in.Location)

	var details []ErrorDetail
	if in.Code == "" {
		details = append(details, ErrorDetail{Field: "code", Message: "is required"})
	}
	if in.Name == "" {
		details = append(details, ErrorDetail{Field: "name", Message: "is required"})
	}
	if in.TotalStock < 1 {
		details = append(details, ErrorDetail{Field: "totalStock", Message: "must be at least 1"})
	}
	return details
}

type assetFilters struct {
	Status       *db.AssetStatus
	Category     *string
	DepartmentID *int64
	Query        *string
}

func bindAssetFilters(r *http.Request) (assetFilters, error) {
	var f assetFilters
	q := r.URL.Query()
	if err := runtime.BindQueryParameter("form", true, false, "status", q, &f.Status); err != nil {
		return f, err
	}
	if err := runtime.BindQueryParameter("form", true, false, "category", q, &f.Category); err != nil {
		return f, err
	}
	if err := runtime.BindQueryParameter("form", true, false, "departmentId", q, &f.DepartmentID); err != nil {
		return f, err
	}
	if err := runtime.BindQueryParameter("form", true, false, "q", q, &f.Query); err != nil {
		return f, err
	}
	return f, nil
}

func textOf(s *string) pgtype.Text {
	if s == nil || strings.TrimSpace(*s) == "" {
		return pgtype.Text{}
	}
	return pgtype.Text{String: strings.TrimSpace(*s), Valid: true}
}

// assetInReach hides assets owned by another department from non-admins.
func (s *Server) assetInReach(user *auth.AuthenticatedUser, asset db.Asset) bool {
	if s.resolver.IsAdmin(user.Subject) || !asset.DepartmentID.Valid {
		return true
	}
	return user.CanAccessDepartment(&asset.DepartmentID.Int64)
}

// departmentAllowed checks the department a non-admin writes an asset into.
func (s *Server) departmentAllowed(user *auth.AuthenticatedUser, departmentID *int64) bool {
	if s.resolver.IsAdmin(user.Subject) {
		return true
	}
	return departmentID != nil && user.CanAccessDepartment(departmentID)
}

func (s *Server) ListAssets(w http.ResponseWriter, r *http.Request) {
	user, ok := s.authorize(w, r, rbac.ModuleAssets, rbac.ActionView)
	if !ok {
		return
	}

	limit, offset, err := bindPagination(r)
	if err != nil {
		writeError(w, ValidationErr("Invalid pagination parameters", []ErrorDetail{{Message: err.Error()}}))
		return
	}
	f, err := bindAssetFilters(r)
	if err != nil {
		writeError(w, ValidationErr("Invalid filter", []ErrorDetail{{Message: err.Error()}}))
		return
	}

	var status db.NullAssetStatus
	if f.Status != nil {
		status = db.NullAssetStatus{AssetStatus: *f.Status, Valid: true}
	}
	// non-admins see their department plus unowned assets
	visible := s.departmentFilter(user)

	assets, err := s.db.Queries().ListAssets(r.Context(), db.ListAssetsParams{
		Status:       status,
		Category:     textOf(f.Category),
		DepartmentID: int8Of(f.DepartmentID),
		Search:       textOf(f.Query),
		VisibleTo:    visible,
		Limit:        limit,
		Offset:       offset,
	})
	if err != nil {
		s.fail(w, r, "Asset", err)
		return
	}

	total, err := s.db.Queries().CountAssets(r.Context(), db.CountAssetsParams{
		Status:       status,
		Category:     textOf(f.Category),
		DepartmentID: int8Of(f.DepartmentID),
		Search:       textOf(f.Query),
		VisibleTo:    visible,
	})
	if err != nil {
		s.fail(w, r, "Asset", err)
		return
	}

	resp := make([]AssetResponse, 0, len(assets))
	for _, a := range assets {
		resp = append(resp, toAssetResponse(a))
	}
	writeJSON(w, http.StatusOK, newList(resp, total, limit, offset))
}

func (s *Server) GetAsset(w http.ResponseWriter, r *http.Request) {
	user, ok := s.authorize(w, r, rbac.ModuleAssets, rbac.ActionView)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	asset, err := s.db.Queries().GetAssetByID(r.Context(), id)
	if err != nil {
		s.fail(w, r, "Asset", err)
		return
	}
	if !s.assetInReach(user, asset) {
		writeError(w, NotFound("Asset"))
		return
	}
	writeJSON(w, http.StatusOK, toAssetResponse(asset))
}

func (s *Server) CreateAsset(w http.ResponseWriter, r *http.Request) {
	logger := middleware.GetLoggerFromContext(r.Context())

	user, ok := s.authorize(w, r, rbac.ModuleAssets, rbac.ActionCreate)
	if !ok {
		return
	}

	var in AssetInput
	if !decodeJSON(w, r, &in) {
		return
	}
	if details := in.validate(); len(details) > 0 {
		writeError(w, ValidationErr("Invalid asset", details))
		return
	}
	if !s.departmentAllowed(user, in.DepartmentID) {
		writeError(w, PermissionDenied("Assets can only be created in your own department"))
		return
	}

	asset, err := s.db.Queries().CreateAsset(r.Context(), db.CreateAssetParams{
		Code:         in.Code,
		Name:         in.Name,
		Category:     in.Category,
		Location:     in.Location,
		TotalStock:   in.TotalStock,
		Status:       db.AssetStatusAvailable,
		DepartmentID: int8Of(in.DepartmentID),
	})
	if err != nil {
		s.fail(w, r, "Asset", err)
		return
	}

	logger.Info("Asset created", "asset_id", asset.ID, "code", asset.Code, "stock", asset.TotalStock)
	writeJSON(w, http.StatusCreated, toAssetResponse(asset))
}

// UpdateAsset edits descriptive fields and total stock. The code is fixed at
// creation. Status follows the resized shelf count; everything else about it
// moves through SetAssetStatus or the borrow flows.
func (s *Server) UpdateAsset(w http.ResponseWriter, r *http.Request) {
	logger := middleware.GetLoggerFromContext(r.Context())

	user, ok := s.authorize(w, r, rbac.ModuleAssets, rbac.ActionUpdate)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	existing, err := s.db.Queries().GetAssetByID(r.Context(), id)
	if err != nil {
		s.fail(w, r, "Asset", err)
		return
	}
	if !s.assetInReach(user, existing) {
		writeError(w, NotFound("Asset"))
		return
	}

	var in AssetInput
	if !decodeJSON(w, r, &in) {
		return
	}
	if in.Code == "" {
		in.Code = existing.Code
	}
	if details := in.validate(); len(details) > 0 {
		writeError(w, ValidationErr("Invalid asset", details))
		return
	}
	if in.Code != existing.Code {
		writeError(w, ValidationErr("Invalid asset", []ErrorDetail{{Field: "code", Message: "cannot be changed"}}))
		return
	}
	if !s.departmentAllowed(user, in.DepartmentID) {
		writeError(w, PermissionDenied("Assets can only be moved within your own department"))
		return
	}

	asset, err := s.tracker.UpdateAsset(r.Context(), id, lifecycle.UpdateAssetInput{
		Name:         in.Name,
		Category:     in.Category,
		Location:     in.Location,
		TotalStock:   in.TotalStock,
		DepartmentID: int8Of(in.DepartmentID),
	})
	if err != nil {
		s.fail(w, r, "Asset", err)
		return
	}

	logger.Info("Asset updated", "asset_id", asset.ID)
	writeJSON(w, http.StatusOK, toAssetResponse(asset))
}

func (s *Server) DeleteAsset(w http.ResponseWriter, r *http.Request) {
	logger := middleware.GetLoggerFromContext(r.Context())

	user, ok := s.authorize(w, r, rbac.ModuleAssets, rbac.ActionDelete)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	asset, err := s.db.Queries().GetAssetByID(r.Context(), id)
	if err != nil {
		s.fail(w, r, "Asset", err)
		return
	}
	if !s.assetInReach(user, asset) {
		writeError(w, NotFound("Asset"))
		return
	}

	refs, err := s.db.Queries().CountActiveAssetReferences(r.Context(), id)
	if err != nil {
		s.fail(w, r, "Asset", err)
		return
	}
	if refs > 0 {
		writeError(w, ConflictErr("Asset has pending or active borrows").
			WithContext(ErrorContext{"references": refs}))
		return
	}

	if _, err := s.db.Queries().DeleteAsset(r.Context(), id); err != nil {
		s.fail(w, r, "Asset", err)
		return
	}

	logger.Info("Asset deleted", "asset_id", id, "code", asset.Code)
	w.WriteHeader(http.StatusNoContent)
}

// SetAssetStatus is the inspection entry point: maintenance, damage, loss,
// retirement and recovery back to Available.
func (s *Server) SetAssetStatus(w http.ResponseWriter, r *http.Request) {
	logger := middleware.GetLoggerFromContext(r.Context())

	user, ok := s.authorize(w, r, rbac.ModuleAssets, rbac.ActionUpdate)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	var req struct {
		Status db.AssetStatus `json:"status"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	existing, err := s.db.Queries().GetAssetByID(r.Context(), id)
	if err != nil {
		s.fail(w, r, "Asset", err)
		return
	}
	if !s.assetInReach(user, existing) {
		writeError(w, NotFound("Asset"))
		return
	}

	asset, err := s.tracker.SetStatus(r.Context(), id, req.Status)
	if err != nil {
		s.fail(w, r, "Asset", err)
		return
	}

	logger.Info("Asset status changed", "asset_id", id, "from", existing.Status, "to", asset.Status)
	writeJSON(w, http.StatusOK, toAssetResponse(asset))
}
