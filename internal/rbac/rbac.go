package rbac

import "strings"

// Actions a permission document may grant on a module.
type Action string

const (
	ActionView    Action = "view"
	ActionCreate  Action = "create"
	ActionUpdate  Action = "update"
	ActionDelete  Action = "delete"
	ActionApprove Action = "approve"
)

// Actions lists every known action in display order.
var Actions = []Action{ActionView, ActionCreate, ActionUpdate, ActionDelete, ActionApprove}

func (a Action) Valid() bool {
	switch a {
	case ActionView, ActionCreate, ActionUpdate, ActionDelete, ActionApprove:
		return true
	}
	return false
}

// Module codes seeded in migrations/20250301090400_seed_modules_roles.sql
const (
	ModuleDashboard    = "dashboard"
	ModuleAssets       = "assets"
	ModuleBorrow       = "borrow"
	ModuleTransactions = "transactions"
	ModuleMaintenance  = "maintenance"
	ModuleReports      = "reports"
	ModuleUsers        = "users"
	ModuleRoles        = "roles"
	ModuleSettings     = "settings"
)

// Role names
const (
	RoleAdmin = "Admin" // always treated as administrator
	RoleStaff = "Staff"
	RoleUser  = "User"
)

// ReservedRoleName reports whether name would make its holders
// administrators. Only a global role may carry it.
func ReservedRoleName(name string) bool {
	return strings.EqualFold(strings.TrimSpace(name), RoleAdmin)
}

type Scope string

const (
	ScopeGlobal     Scope = "global"
	ScopeDepartment Scope = "department"
)

func (s Scope) Valid() bool {
	return s == ScopeGlobal || s == ScopeDepartment
}
