package api

import (
	"net/http"
	"strings"

	"github.com/USSTM/asset-backend/internal/auth"
	"github.com/USSTM/asset-backend/internal/db"
	"github.com/USSTM/asset-backend/internal/middleware"
	"github.com/USSTM/asset-backend/internal/rbac"
	"github.com/jackc/pgx/v5/pgtype"
)

type CreateUserRequest struct {
	Email        string `json:"email"`
	Name         string `json:"name"`
	Password     string `json:"password"`
	RoleID       int64  `json:"roleId"`
	DepartmentID *int64 `json:"departmentId"`
}

// departmentFilter limits non-admins to their own department.
func (s *Server) departmentFilter(user *auth.AuthenticatedUser) pgtype.Int8 {
	if s.resolver.IsAdmin(user.Subject) {
		return pgtype.Int8{}
	}
	if user.DepartmentID == nil {
		// matches nothing
		return pgtype.Int8{Int64: 0, Valid: true}
	}
	return pgtype.Int8{Int64: *user.DepartmentID, Valid: true}
}

func (s *Server) ListUsers(w http.ResponseWriter, r *http.Request) {
	user, ok := s.authorize(w, r, rbac.ModuleUsers, rbac.ActionView)
	if !ok {
		return
	}

	limit, offset, err := bindPagination(r)
	if err != nil {
		writeError(w, ValidationErr("Invalid pagination parameters", []ErrorDetail{{Message: err.Error()}}))
		return
	}

	dept := s.departmentFilter(user)
	users, err := s.db.Queries().ListUsers(r.Context(), db.ListUsersParams{
		DepartmentID: dept,
		Limit:        limit,
		Offset:       offset,
	})
	if err != nil {
		s.fail(w, r, "User", err)
		return
	}

	total, err := s.db.Queries().CountUsers(r.Context(), dept)
	if err != nil {
		s.fail(w, r, "User", err)
		return
	}

	resp := make([]UserResponse, 0, len(users))
	for _, u := range users {
		resp = append(resp, toUserResponse(u))
	}
	writeJSON(w, http.StatusOK, newList(resp, total, limit, offset))
}

func (s *Server) CreateUser(w http.ResponseWriter, r *http.Request) {
	logger := middleware.GetLoggerFromContext(r.Context())

	user, ok := s.authorize(w, r, rbac.ModuleUsers, rbac.ActionCreate)
	if !ok {
		return
	}

	var req CreateUserRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))

	var details []ErrorDetail
	if req.Email == "" || !strings.Contains(req.Email, "@") {
		details = append(details, ErrorDetail{Field: "email", Message: "must be a valid email"})
	}
	if strings.TrimSpace(req.Name) == "" {
		details = append(details, ErrorDetail{Field: "name", Message: "is required"})
	}
	if len(req.Password) < 8 {
		details = append(details, ErrorDetail{Field: "password", Message: "must be at least 8 characters"})
	}
	if len(details) > 0 {
		writeError(w, ValidationErr("Invalid user", details))
		return
	}

	if !s.resolver.IsAdmin(user.Subject) {
		// department managers only add users to their own department
		if req.DepartmentID == nil || !user.CanAccessDepartment(req.DepartmentID) {
			writeError(w, PermissionDenied("Users can only be created in your own department"))
			return
		}
	}

	role, err := s.db.Queries().GetRoleByID(r.Context(), req.RoleID)
	if err != nil {
		s.fail(w, r, "Role", err)
		return
	}
	if !s.resolver.IsAdmin(user.Subject) {
		if role.Scope == db.RoleScopeGlobal || rbac.ReservedRoleName(role.Name) {
			writeError(w, PermissionDenied("Only administrators can assign administrator roles"))
			return
		}
		if !roleVisible(user, role) {
			writeError(w, PermissionDenied("Roles can only be assigned within your own department"))
			return
		}
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		s.fail(w, r, "User", err)
		return
	}

	created, err := s.db.Queries().CreateUser(r.Context(), db.CreateUserParams{
		Email:        req.Email,
		Name:         strings.TrimSpace(req.Name),
		PasswordHash: hash,
		RoleID:       role.ID,
		DepartmentID: int8Of(req.DepartmentID),
	})
	if err != nil {
		s.fail(w, r, "User", err)
		return
	}

	logger.Info("User created", "new_user_id", created.ID, "role", role.Name)
	writeJSON(w, http.StatusCreated, toUserResponse(created))
}

func (s *Server) ListDepartments(w http.ResponseWriter, r *http.Request) {
	departments, err := s.db.Queries().ListDepartments(r.Context())
	if err != nil {
		s.fail(w, r, "Department", err)
		return
	}

	resp := make([]DepartmentResponse, 0, len(departments))
	for _, d := range departments {
		resp = append(resp, DepartmentResponse{ID: d.ID, Code: d.Code, Name: d.Name})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) CreateDepartment(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)
	if !s.resolver.IsAdmin(user.Subject) {
		writeError(w, PermissionDenied("Only administrators can create departments"))
		return
	}

	var req struct {
		Code string `json:"code"`
		Name string `json:"name"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	req.Code = strings.ToUpper(strings.TrimSpace(req.Code))
	req.Name = strings.TrimSpace(req.Name)
	if req.Code == "" || req.Name == "" {
		writeError(w, ValidationErr("Code and name are required", nil))
		return
	}

	dept, err := s.db.Queries().CreateDepartment(r.Context(), db.CreateDepartmentParams{Code: req.Code, Name: req.Name})
	if err != nil {
		s.fail(w, r, "Department", err)
		return
	}
	writeJSON(w, http.StatusCreated, DepartmentResponse{ID: dept.ID, Code: dept.Code, Name: dept.Name})
}
