package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/USSTM/asset-backend/internal/auth"
	"github.com/USSTM/asset-backend/internal/db"
	"github.com/USSTM/asset-backend/internal/middleware"
	"github.com/USSTM/asset-backend/internal/rbac"
)

type RoleInput struct {
	Name         string          `json:"name"`
	Description  string          `json:"description"`
	Scope        db.RoleScope    `json:"scope"`
	DepartmentID *int64          `json:"departmentId"`
	IsShared     bool            `json:"isShared"`
	IsActive     *bool           `json:"isActive"`
	Permissions  json.RawMessage `json:"permissions"`
}

// normalizeRole validates the input against the module catalog and the caller's
// reach, returning the canonical permissions document.
func (s *Server) normalizeRole(r *http.Request, user *auth.AuthenticatedUser, in *RoleInput) (string, *ErrorBuilder, error) {
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" {
		return "", ValidationErr("Invalid role", []ErrorDetail{{Field: "name", Message: "is required"}}), nil
	}

	if rbac.ReservedRoleName(in.Name) {
		if !s.resolver.IsAdmin(user.Subject) {
			return "", PermissionDenied("Only administrators can manage the " + rbac.RoleAdmin + " role"), nil
		}
		if in.Scope != db.RoleScopeGlobal {
			return "", ValidationErr("Invalid role", []ErrorDetail{{Field: "name", Message: "is reserved for the global administrator role"}}), nil
		}
	}

	switch in.Scope {
	case db.RoleScopeGlobal:
		if !s.resolver.IsAdmin(user.Subject) {
			return "", PermissionDenied("Only administrators can manage global roles"), nil
		}
		if in.DepartmentID != nil {
			return "", ValidationErr("Invalid role", []ErrorDetail{{Field: "departmentId", Message: "must be empty for global roles"}}), nil
		}
	case db.RoleScopeDepartment:
		if in.DepartmentID == nil && !in.IsShared {
			return "", ValidationErr("Invalid role", []ErrorDetail{{Field: "departmentId", Message: "is required unless the role is shared"}}), nil
		}
		if !s.resolver.IsAdmin(user.Subject) {
			if in.DepartmentID == nil || !user.CanAccessDepartment(in.DepartmentID) {
				return "", PermissionDenied("Roles can only be managed in your own department"), nil
			}
		}
	default:
		return "", ValidationErr("Invalid role", []ErrorDetail{{Field: "scope", Message: "must be global or department"}}), nil
	}

	raw := "{}"
	if len(in.Permissions) > 0 {
		raw = string(in.Permissions)
	}
	perms, err := rbac.ParseDocument(raw)
	if err != nil {
		return "", nil, err
	}

	catalog, err := s.resolver.ModuleCodes(r.Context())
	if err != nil {
		return "", nil, err
	}
	if err := perms.Validate(catalog); err != nil {
		return "", nil, err
	}

	doc, err := perms.Encode()
	if err != nil {
		return "", nil, err
	}
	return doc, nil, nil
}

// roleVisible reports whether a non-admin may see a role: global and shared
// roles, plus their own department's.
func roleVisible(user *auth.AuthenticatedUser, role db.Role) bool {
	if !role.DepartmentID.Valid {
		return true
	}
	return user.CanAccessDepartment(&role.DepartmentID.Int64)
}

func (s *Server) ListRoles(w http.ResponseWriter, r *http.Request) {
	user, ok := s.authorize(w, r, rbac.ModuleRoles, rbac.ActionView)
	if !ok {
		return
	}

	roles, err := s.db.Queries().ListRoles(r.Context(), s.departmentFilter(user))
	if err != nil {
		s.fail(w, r, "Role", err)
		return
	}

	resp := make([]RoleResponse, 0, len(roles))
	for _, role := range roles {
		resp = append(resp, toRoleResponse(role))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) GetRole(w http.ResponseWriter, r *http.Request) {
	user, ok := s.authorize(w, r, rbac.ModuleRoles, rbac.ActionView)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	role, err := s.db.Queries().GetRoleByID(r.Context(), id)
	if err != nil {
		s.fail(w, r, "Role", err)
		return
	}
	if !s.resolver.IsAdmin(user.Subject) && !roleVisible(user, role) {
		writeError(w, NotFound("Role"))
		return
	}
	writeJSON(w, http.StatusOK, toRoleResponse(role))
}

func (s *Server) CreateRole(w http.ResponseWriter, r *http.Request) {
	logger := middleware.GetLoggerFromContext(r.Context())

	user, ok := s.authorize(w, r, rbac.ModuleRoles, rbac.ActionCreate)
	if !ok {
		return
	}

	var in RoleInput
	if !decodeJSON(w, r, &in) {
		return
	}
	doc, rejected, err := s.normalizeRole(r, user, &in)
	if err != nil {
		s.fail(w, r, "Role", err)
		return
	}
	if rejected != nil {
		writeError(w, rejected)
		return
	}

	role, err := s.db.Queries().CreateRole(r.Context(), db.CreateRoleParams{
		Name:         in.Name,
		Description:  strings.TrimSpace(in.Description),
		Scope:        in.Scope,
		DepartmentID: int8Of(in.DepartmentID),
		IsShared:     in.IsShared,
		Permissions:  doc,
		IsActive:     in.IsActive == nil || *in.IsActive,
	})
	if err != nil {
		s.fail(w, r, "Role", err)
		return
	}

	logger.Info("Role created", "role_id", role.ID, "role", role.Name, "scope", role.Scope)
	writeJSON(w, http.StatusCreated, toRoleResponse(role))
}

func (s *Server) UpdateRole(w http.ResponseWriter, r *http.Request) {
	logger := middleware.GetLoggerFromContext(r.Context())

	user, ok := s.authorize(w, r, rbac.ModuleRoles, rbac.ActionUpdate)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	existing, err := s.db.Queries().GetRoleByID(r.Context(), id)
	if err != nil {
		s.fail(w, r, "Role", err)
		return
	}
	if !s.resolver.IsAdmin(user.Subject) {
		if existing.Scope == db.RoleScopeGlobal {
			writeError(w, PermissionDenied("Only administrators can manage global roles"))
			return
		}
		if !existing.DepartmentID.Valid || !user.CanAccessDepartment(&existing.DepartmentID.Int64) {
			writeError(w, PermissionDenied("Roles can only be managed in your own department"))
			return
		}
	}

	var in RoleInput
	if !decodeJSON(w, r, &in) {
		return
	}
	doc, rejected, err := s.normalizeRole(r, user, &in)
	if err != nil {
		s.fail(w, r, "Role", err)
		return
	}
	if rejected != nil {
		writeError(w, rejected)
		return
	}

	active := existing.IsActive
	if in.IsActive != nil {
		active = *in.IsActive
	}

	role, err := s.db.Queries().UpdateRole(r.Context(), db.UpdateRoleParams{
		ID:           id,
		Name:         in.Name,
		Description:  strings.TrimSpace(in.Description),
		Scope:        in.Scope,
		DepartmentID: int8Of(in.DepartmentID),
		IsShared:     in.IsShared,
		Permissions:  doc,
		IsActive:     active,
	})
	if err != nil {
		s.fail(w, r, "Role", err)
		return
	}

	logger.Info("Role updated", "role_id", role.ID)
	writeJSON(w, http.StatusOK, toRoleResponse(role))
}

func (s *Server) DeleteRole(w http.ResponseWriter, r *http.Request) {
	logger := middleware.GetLoggerFromContext(r.Context())

	user, ok := s.authorize(w, r, rbac.ModuleRoles, rbac.ActionDelete)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	role, err := s.db.Queries().GetRoleByID(r.Context(), id)
	if err != nil {
		s.fail(w, r, "Role", err)
		return
	}
	if !s.resolver.IsAdmin(user.Subject) &&
		(role.Scope == db.RoleScopeGlobal || !role.DepartmentID.Valid || !user.CanAccessDepartment(&role.DepartmentID.Int64)) {
		writeError(w, PermissionDenied("Roles can only be managed in your own department"))
		return
	}

	inUse, err := s.db.Queries().CountUsersWithRole(r.Context(), id)
	if err != nil {
		s.fail(w, r, "Role", err)
		return
	}
	if inUse > 0 {
		writeError(w, ConflictErr("Role is still assigned to users").
			WithContext(ErrorContext{"users": inUse}))
		return
	}

	if _, err := s.db.Queries().DeleteRole(r.Context(), id); err != nil {
		s.fail(w, r, "Role", err)
		return
	}

	logger.Info("Role deleted", "role_id", id)
	w.WriteHeader(http.StatusNoContent)
}
