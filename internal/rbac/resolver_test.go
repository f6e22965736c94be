package rbac

import (
	"context"
	"errors"
	"testing"

	"github.com/USSTM/asset-backend/internal/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

type mockCatalog struct {
	mock.Mock
}

func (m *mockCatalog) ListActiveModules(ctx context.Context) ([]db.Module, error) {
	args := m.Called(ctx)
	modules, _ := args.Get(0).([]db.Module)
	return modules, args.Error(1)
}

func subjectWith(name string, scope Scope, doc string) *Subject {
	dept := int64(3)
	var roleDept *int64
	if scope == ScopeDepartment {
		roleDept = &dept
	}
	return &Subject{
		UserID:       1,
		DepartmentID: &dept,
		Role:         NewRole(7, name, scope, roleDept, false, true, doc),
	}
}

func TestHasPermission_DepartmentRole(t *testing.T) {
	user := subjectWith("User", ScopeDepartment, `{"assets": {"permissions": ["view"]}}`)

	assert.True(t, HasPermission(user, "assets", ActionView))
	assert.False(t, HasPermission(user, "assets", ActionCreate))
	assert.False(t, HasPermission(user, "borrow", ActionView))
}

func TestHasPermission_GlobalRole(t *testing.T) {
	admin := subjectWith("Admin", ScopeGlobal, `{}`)
	assert.True(t, HasPermission(admin, "assets", ActionDelete))
	assert.True(t, HasPermission(admin, "anything", ActionApprove))

	restricted := subjectWith("Auditor", ScopeGlobal, `{"assets": {"delete": false}, "roles": {"permissions": [], "deny": ["update"]}}`)
	assert.False(t, HasPermission(restricted, "assets", ActionDelete))
	assert.True(t, HasPermission(restricted, "assets", ActionView))
	assert.False(t, HasPermission(restricted, "roles", ActionUpdate))
	assert.True(t, HasPermission(restricted, "roles", ActionView))
}

func TestHasPermission_DeniesWithoutActiveRole(t *testing.T) {
	assert.False(t, HasPermission(nil, "assets", ActionView))
	assert.False(t, HasPermission(&Subject{UserID: 1}, "assets", ActionView))

	inactive := subjectWith("Admin", ScopeGlobal, `{}`)
	inactive.Role.Active = false
	assert.False(t, HasPermission(inactive, "assets", ActionView))
	assert.False(t, IsAdmin(inactive))
}

func TestHasPermission_MalformedDocumentDeniesAll(t *testing.T) {
	for _, scope := range []Scope{ScopeGlobal, ScopeDepartment} {
		s := subjectWith("Broken", scope, `{"assets": [`)
		assert.True(t, s.Role.Malformed)
		assert.NotPanics(t, func() {
			assert.False(t, HasPermission(s, "assets", ActionView))
		})
	}
}

func TestIsAdmin(t *testing.T) {
	assert.True(t, IsAdmin(subjectWith("Admin", ScopeDepartment, `{}`)))
	assert.True(t, IsAdmin(subjectWith("Operator", ScopeGlobal, `{}`)))
	assert.False(t, IsAdmin(subjectWith("Staff", ScopeDepartment, `{}`)))
	assert.False(t, IsAdmin(nil))
}

func TestReservedRoleName(t *testing.T) {
	for _, name := range []string{"Admin", "admin", "  ADMIN "} {
		assert.True(t, ReservedRoleName(name), name)
	}
	for _, name := range []string{"Administrator", "Staff", "Lab Admin", ""} {
		assert.False(t, ReservedRoleName(name), name)
	}
}

func TestCanAccessDepartment(t *testing.T) {
	staff := subjectWith("Staff", ScopeDepartment, `{}`)
	own, other := int64(3), int64(4)

	assert.True(t, CanAccessDepartment(staff, &own))
	assert.False(t, CanAccessDepartment(staff, &other))
	assert.True(t, CanAccessDepartment(staff, nil))
	assert.True(t, CanAccessDepartment(subjectWith("Admin", ScopeGlobal, `{}`), &other))
}

func TestResolver_AccessibleModulesKeepsCatalogOrder(t *testing.T) {
	catalog := &mockCatalog{}
	catalog.Test(t)
	catalog.On("ListActiveModules", mock.Anything).Return([]db.Module{
		{Code: "dashboard", SortOrder: 10},
		{Code: "assets", SortOrder: 20},
		{Code: "borrow", SortOrder: 30},
		{Code: "roles", SortOrder: 80},
	}, nil)

	resolver := NewResolver(catalog)
	user := subjectWith("User", ScopeDepartment, `{"borrow": ["view"], "dashboard": ["view"], "roles": ["update"]}`)

	modules, err := resolver.AccessibleModules(context.Background(), user)
	require.NoError(t, err)

	codes := make([]string, len(modules))
	for i, m := range modules {
		codes[i] = m.Code
	}
	assert.Equal(t, []string{"dashboard", "borrow"}, codes)
	catalog.AssertExpectations(t)
}

func TestResolver_AccessibleModulesPropagatesCatalogError(t *testing.T) {
	catalog := &mockCatalog{}
	catalog.Test(t)
	catalog.On("ListActiveModules", mock.Anything).Return(nil, errors.New("connection refused"))

	_, err := NewResolver(catalog).AccessibleModules(context.Background(), subjectWith("Admin", ScopeGlobal, `{}`))
	assert.ErrorContains(t, err, "connection refused")
}

func TestResolver_EffectivePermissions(t *testing.T) {
	catalog := &mockCatalog{}
	catalog.Test(t)
	catalog.On("ListActiveModules", mock.Anything).Return([]db.Module{{Code: "assets"}, {Code: "borrow"}}, nil)

	perms, err := NewResolver(catalog).EffectivePermissions(context.Background(),
		subjectWith("Staff", ScopeDepartment, `{"assets": ["view", "update"]}`))
	require.NoError(t, err)

	assert.Equal(t, []Action{ActionView, ActionUpdate}, perms["assets"])
	assert.Empty(t, perms["borrow"])
}

var (
	genAction = rapid.SampledFrom(Actions)
	genModule = rapid.SampledFrom([]string{ModuleAssets, ModuleBorrow, ModuleTransactions, ModuleRoles, ModuleUsers})
)

func TestProperty_GlobalRoleAllowsUnlessDenied(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		module := genModule.Draw(t, "module")
		action := genAction.Draw(t, "action")
		deniedModule := genModule.Draw(t, "deniedModule")
		deniedAction := genAction.Draw(t, "deniedAction")

		doc := `{"` + deniedModule + `": {"permissions": [], "deny": ["` + string(deniedAction) + `"]}}`
		s := subjectWith("Global", ScopeGlobal, doc)

		want := !(module == deniedModule && action == deniedAction)
		if got := HasPermission(s, module, action); got != want {
			t.Fatalf("HasPermission(%s, %s) = %v, want %v", module, action, got, want)
		}
	})
}

func TestProperty_DepartmentRoleGrantsExactlyListed(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		granted := rapid.SliceOfDistinct(genAction, func(a Action) Action { return a }).Draw(t, "granted")
		module := genModule.Draw(t, "module")
		probeModule := genModule.Draw(t, "probeModule")
		probe := genAction.Draw(t, "probe")

		set := PermissionSet{module: {Allowed: map[Action]bool{}, Denied: map[Action]bool{}}}
		for _, a := range granted {
			set[module].Allowed[a] = true
		}
		doc, err := set.Encode()
		if err != nil {
			t.Fatal(err)
		}

		s := subjectWith("Dept", ScopeDepartment, doc)
		want := probeModule == module && set[module].Allowed[probe]
		if got := HasPermission(s, probeModule, probe); got != want {
			t.Fatalf("HasPermission(%s, %s) = %v, want %v", probeModule, probe, got, want)
		}
	})
}

func TestProperty_ArbitraryDocumentsNeverPanic(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		doc := rapid.String().Draw(t, "doc")
		scope := rapid.SampledFrom([]Scope{ScopeGlobal, ScopeDepartment}).Draw(t, "scope")
		s := subjectWith("Fuzz", scope, doc)

		granted := HasPermission(s, genModule.Draw(t, "module"), genAction.Draw(t, "action"))
		if s.Role.Malformed && granted {
			t.Fatalf("malformed document %q granted access", doc)
		}
	})
}
