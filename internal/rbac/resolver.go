package rbac

import (
	"context"
	"fmt"

	"github.com/USSTM/asset-backend/internal/db"
	"github.com/USSTM/asset-backend/internal/logging"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Role is the resolver's view of a role row, with its document parsed once.
type Role struct {
	ID           int64
	Name         string
	Scope        Scope
	DepartmentID *int64
	IsShared     bool
	Active       bool
	Permissions  PermissionSet

	// Malformed marks a stored document that failed to parse. Such roles are
	// denied everything, global scope included.
	Malformed bool
}

// Subject is an authenticated user as seen by the resolver.
type Subject struct {
	UserID       int64
	DepartmentID *int64
	Role         *Role
}

// NewRole parses doc and degrades to deny-all on failure, logging a warning.
func NewRole(id int64, name string, scope Scope, departmentID *int64, shared, active bool, doc string) *Role {
	role := &Role{
		ID:           id,
		Name:         name,
		Scope:        scope,
		DepartmentID: departmentID,
		IsShared:     shared,
		Active:       active,
	}

	perms, err := ParseDocument(doc)
	if err != nil {
		logging.Warn("Failed to parse role permissions", "role_id", id, "role", name, "error", err)
		role.Permissions = PermissionSet{}
		role.Malformed = true
		return role
	}
	role.Permissions = perms
	return role
}

// RoleFromRow adapts a user+role query row.
func RoleFromRow(row db.GetUserWithRoleRow) *Role {
	return NewRole(
		row.RoleID,
		row.RoleName,
		Scope(row.RoleScope),
		int8Ptr(row.RoleDepartmentID.Int64, row.RoleDepartmentID.Valid),
		row.RoleIsShared,
		row.RoleIsActive,
		row.RolePermissions,
	)
}

// SubjectFromRow builds the resolver subject for a loaded user.
func SubjectFromRow(row db.GetUserWithRoleRow) *Subject {
	return &Subject{
		UserID:       row.ID,
		DepartmentID: int8Ptr(row.DepartmentID.Int64, row.DepartmentID.Valid),
		Role:         RoleFromRow(row),
	}
}

func int8Ptr(v int64, valid bool) *int64 {
	if !valid {
		return nil
	}
	return &v
}

// HasPermission decides whether subject may perform action on module.
func HasPermission(subject *Subject, module string, action Action) bool {
	if subject == nil || subject.Role == nil || !subject.Role.Active {
		return false
	}
	role := subject.Role

	grant, listed := role.Permissions[module]

	if role.Scope == ScopeGlobal {
		if role.Malformed {
			return false
		}
		return !(listed && grant.denies(action))
	}

	if !listed {
		return false
	}
	return grant.allows(action)
}

// IsAdmin reports whether the subject holds the Admin role or any global role.
func IsAdmin(subject *Subject) bool {
	if subject == nil || subject.Role == nil || !subject.Role.Active {
		return false
	}
	return subject.Role.Name == RoleAdmin || subject.Role.Scope == ScopeGlobal
}

// CanAccessDepartment reports whether subject may act on records owned by
// departmentID. Records without a department are visible to everyone.
func CanAccessDepartment(subject *Subject, departmentID *int64) bool {
	if departmentID == nil {
		return subject != nil
	}
	if IsAdmin(subject) {
		return true
	}
	return subject != nil && subject.DepartmentID != nil && *subject.DepartmentID == *departmentID
}

// ModuleCatalog provides the active module catalog in display order.
type ModuleCatalog interface {
	ListActiveModules(ctx context.Context) ([]db.Module, error)
}

type Resolver struct {
	catalog ModuleCatalog
	tracer  trace.Tracer
}

func NewResolver(catalog ModuleCatalog) *Resolver {
	return &Resolver{
		catalog: catalog,
		tracer:  otel.Tracer("github.com/USSTM/asset-backend/internal/rbac"),
	}
}

func (r *Resolver) HasPermission(subject *Subject, module string, action Action) bool {
	return HasPermission(subject, module, action)
}

func (r *Resolver) IsAdmin(subject *Subject) bool {
	return IsAdmin(subject)
}

// AccessibleModules returns the catalog entries the subject can view, keeping
// catalog order.
func (r *Resolver) AccessibleModules(ctx context.Context, subject *Subject) ([]db.Module, error) {
	ctx, span := r.tracer.Start(ctx, "rbac.accessible_modules")
	defer span.End()

	modules, err := r.catalog.ListActiveModules(ctx)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("loading module catalog: %w", err)
	}

	out := make([]db.Module, 0, len(modules))
	for _, m := range modules {
		if HasPermission(subject, m.Code, ActionView) {
			out = append(out, m)
		}
	}

	span.SetAttributes(
		attribute.Int("modules.catalog", len(modules)),
		attribute.Int("modules.accessible", len(out)),
	)
	return out, nil
}

// EffectivePermissions expands the subject's rights over the active catalog.
func (r *Resolver) EffectivePermissions(ctx context.Context, subject *Subject) (map[string][]Action, error) {
	ctx, span := r.tracer.Start(ctx, "rbac.effective_permissions")
	defer span.End()

	modules, err := r.catalog.ListActiveModules(ctx)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("loading module catalog: %w", err)
	}

	out := make(map[string][]Action, len(modules))
	for _, m := range modules {
		granted := []Action{}
		for _, a := range Actions {
			if HasPermission(subject, m.Code, a) {
				granted = append(granted, a)
			}
		}
		out[m.Code] = granted
	}
	return out, nil
}

// ModuleCodes lists the codes of the active catalog, for validating documents.
func (r *Resolver) ModuleCodes(ctx context.Context) ([]string, error) {
	modules, err := r.catalog.ListActiveModules(ctx)
	if err != nil {
		return nil, err
	}
	codes := make([]string, len(modules))
	for i, m := range modules {
		codes[i] = m.Code
	}
	return codes, nil
}
