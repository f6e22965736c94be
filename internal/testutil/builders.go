package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/USSTM/asset-backend/internal/db"
	"github.com/USSTM/asset-backend/internal/rbac"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

// DefaultPassword is the plain-text password of every built user unless
// WithPassword overrides it.
const DefaultPassword = "correct-horse-battery"

func uniqueSuffix() string {
	return uuid.NewString()[:8]
}

func int8Of(id *int64) pgtype.Int8 {
	if id == nil {
		return pgtype.Int8{}
	}
	return pgtype.Int8{Int64: *id, Valid: true}
}

// DepartmentBuilder provides a fluent interface for creating test departments
type DepartmentBuilder struct {
	code   string
	name   string
	testDB *TestDatabase
	t      *testing.T
}

func (tdb *TestDatabase) NewDepartment(t *testing.T) *DepartmentBuilder {
	suffix := uniqueSuffix()
	return &DepartmentBuilder{
		code:   "D-" + suffix,
		name:   "Department " + suffix,
		testDB: tdb,
		t:      t,
	}
}

func (b *DepartmentBuilder) WithCode(code string) *DepartmentBuilder {
	b.code = code
	return b
}

func (b *DepartmentBuilder) WithName(name string) *DepartmentBuilder {
	b.name = name
	return b
}

func (b *DepartmentBuilder) Create() db.Department {
	dept, err := b.testDB.Queries().CreateDepartment(context.Background(), db.CreateDepartmentParams{
		Code: b.code,
		Name: b.name,
	})
	require.NoError(b.t, err, "Failed to create department")
	return dept
}

// TestUser is a persisted user plus the password it logs in with.
type TestUser struct {
	ID           int64
	Email        string
	Password     string
	RoleID       int64
	DepartmentID *int64
}

// UserBuilder provides a fluent interface for creating test users
type UserBuilder struct {
	email        string
	name         string
	password     string
	roleName     string
	roleID       int64
	departmentID *int64
	inactive     bool
	testDB       *TestDatabase
	t            *testing.T
}

// NewUser defaults to the shared User role with no department.
func (tdb *TestDatabase) NewUser(t *testing.T) *UserBuilder {
	return &UserBuilder{
		email:    "user-" + uniqueSuffix() + "@example.com",
		name:     "Test User",
		password: DefaultPassword,
		roleName: rbac.RoleUser,
		testDB:   tdb,
		t:        t,
	}
}

func (b *UserBuilder) WithEmail(email string) *UserBuilder {
	b.email = email
	return b
}

func (b *UserBuilder) WithName(name string) *UserBuilder {
	b.name = name
	return b
}

func (b *UserBuilder) WithPassword(password string) *UserBuilder {
	b.password = password
	return b
}

func (b *UserBuilder) AsAdmin() *UserBuilder {
	b.roleName, b.roleID = rbac.RoleAdmin, 0
	return b
}

func (b *UserBuilder) AsStaff() *UserBuilder {
	b.roleName, b.roleID = rbac.RoleStaff, 0
	return b
}

func (b *UserBuilder) AsUser() *UserBuilder {
	b.roleName, b.roleID = rbac.RoleUser, 0
	return b
}

// WithRole assigns a role created by RoleBuilder.
func (b *UserBuilder) WithRole(roleID int64) *UserBuilder {
	b.roleID = roleID
	return b
}

func (b *UserBuilder) InDepartment(departmentID int64) *UserBuilder {
	b.departmentID = &departmentID
	return b
}

func (b *UserBuilder) Inactive() *UserBuilder {
	b.inactive = true
	return b
}

func (b *UserBuilder) Create() *TestUser {
	ctx := context.Background()
	q := b.testDB.Queries()

	roleID := b.roleID
	if roleID == 0 {
		role, err := q.GetRoleByName(ctx, db.GetRoleByNameParams{Name: b.roleName})
		require.NoError(b.t, err, "Failed to find seeded role %s", b.roleName)
		roleID = role.ID
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(b.password), bcrypt.MinCost)
	require.NoError(b.t, err)

	user, err := q.CreateUser(ctx, db.CreateUserParams{
		Email:        b.email,
		Name:         b.name,
		PasswordHash: string(hash),
		RoleID:       roleID,
		DepartmentID: int8Of(b.departmentID),
	})
	require.NoError(b.t, err, "Failed to create user")

	if b.inactive {
		_, err = b.testDB.Pool().Exec(ctx, "UPDATE users SET is_active = FALSE WHERE id = $1", user.ID)
		require.NoError(b.t, err)
	}

	return &TestUser{
		ID:           user.ID,
		Email:        user.Email,
		Password:     b.password,
		RoleID:       roleID,
		DepartmentID: b.departmentID,
	}
}

// RoleBuilder provides a fluent interface for creating custom roles
type RoleBuilder struct {
	params db.CreateRoleParams
	testDB *TestDatabase
	t      *testing.T
}

func (tdb *TestDatabase) NewRole(t *testing.T) *RoleBuilder {
	return &RoleBuilder{
		params: db.CreateRoleParams{
			Name:        "Role " + uniqueSuffix(),
			Scope:       db.RoleScopeDepartment,
			IsShared:    true,
			Permissions: "{}",
			IsActive:    true,
		},
		testDB: tdb,
		t:      t,
	}
}

func (b *RoleBuilder) WithName(name string) *RoleBuilder {
	b.params.Name = name
	return b
}

func (b *RoleBuilder) Global() *RoleBuilder {
	b.params.Scope = db.RoleScopeGlobal
	b.params.IsShared = false
	b.params.DepartmentID = pgtype.Int8{}
	return b
}

func (b *RoleBuilder) InDepartment(departmentID int64) *RoleBuilder {
	b.params.Scope = db.RoleScopeDepartment
	b.params.IsShared = false
	b.params.DepartmentID = pgtype.Int8{Int64: departmentID, Valid: true}
	return b
}

// WithPermissions stores the document as given, malformed or not.
func (b *RoleBuilder) WithPermissions(document string) *RoleBuilder {
	b.params.Permissions = document
	return b
}

func (b *RoleBuilder) Inactive() *RoleBuilder {
	b.params.IsActive = false
	return b
}

func (b *RoleBuilder) Create() db.Role {
	role, err := b.testDB.Queries().CreateRole(context.Background(), b.params)
	require.NoError(b.t, err, "Failed to create role")
	return role
}

// AssetBuilder provides a fluent interface for creating test assets
type AssetBuilder struct {
	params  db.CreateAssetParams
	current *int32
	status  db.AssetStatus
	testDB  *TestDatabase
	t       *testing.T
}

// NewAsset defaults to a unique, Available item.
func (tdb *TestDatabase) NewAsset(t *testing.T) *AssetBuilder {
	suffix := uniqueSuffix()
	return &AssetBuilder{
		params: db.CreateAssetParams{
			Code:       "AST-" + suffix,
			Name:       "Projector " + suffix,
			Category:   "AV",
			Location:   "Room 101",
			TotalStock: 1,
			Status:     db.AssetStatusAvailable,
		},
		status: db.AssetStatusAvailable,
		testDB: tdb,
		t:      t,
	}
}

func (b *AssetBuilder) WithCode(code string) *AssetBuilder {
	b.params.Code = code
	return b
}

func (b *AssetBuilder) WithName(name string) *AssetBuilder {
	b.params.Name = name
	return b
}

func (b *AssetBuilder) WithCategory(category string) *AssetBuilder {
	b.params.Category = category
	return b
}

func (b *AssetBuilder) WithStock(total int32) *AssetBuilder {
	b.params.TotalStock = total
	return b
}

// WithCurrentStock simulates units already out on loan.
func (b *AssetBuilder) WithCurrentStock(current int32) *AssetBuilder {
	b.current = &current
	return b
}

func (b *AssetBuilder) WithStatus(status db.AssetStatus) *AssetBuilder {
	b.status = status
	return b
}

func (b *AssetBuilder) InDepartment(departmentID int64) *AssetBuilder {
	b.params.DepartmentID = pgtype.Int8{Int64: departmentID, Valid: true}
	return b
}

func (b *AssetBuilder) Create() db.Asset {
	ctx := context.Background()
	b.params.Status = b.status

	asset, err := b.testDB.Queries().CreateAsset(ctx, b.params)
	require.NoError(b.t, err, "Failed to create asset")

	if b.current != nil {
		err = b.testDB.Pool().QueryRow(ctx,
			"UPDATE assets SET current_stock = $2 WHERE id = $1 RETURNING current_stock",
			asset.ID, *b.current,
		).Scan(&asset.CurrentStock)
		require.NoError(b.t, err, "Failed to set current stock")
	}
	return asset
}

// BorrowRequestBuilder provides a fluent interface for creating borrow requests
type BorrowRequestBuilder struct {
	params db.CreateBorrowRequestParams
	status db.RequestStatus
	testDB *TestDatabase
	t      *testing.T
}

func (tdb *TestDatabase) NewBorrowRequest(t *testing.T, assetID, userID int64) *BorrowRequestBuilder {
	start := time.Now().UTC().Truncate(24 * time.Hour)
	return &BorrowRequestBuilder{
		params: db.CreateBorrowRequestParams{
			AssetID:   assetID,
			UserID:    userID,
			Quantity:  1,
			StartDate: pgtype.Date{Time: start, Valid: true},
			EndDate:   pgtype.Date{Time: start.AddDate(0, 0, 7), Valid: true},
			Reason:    "class demo",
		},
		status: db.RequestStatusPending,
		testDB: tdb,
		t:      t,
	}
}

func (b *BorrowRequestBuilder) WithQuantity(qty int32) *BorrowRequestBuilder {
	b.params.Quantity = qty
	return b
}

func (b *BorrowRequestBuilder) WithDates(start, end time.Time) *BorrowRequestBuilder {
	b.params.StartDate = pgtype.Date{Time: start, Valid: true}
	b.params.EndDate = pgtype.Date{Time: end, Valid: true}
	return b
}

// WithStatus writes the status directly without touching stock.
func (b *BorrowRequestBuilder) WithStatus(status db.RequestStatus) *BorrowRequestBuilder {
	b.status = status
	return b
}

func (b *BorrowRequestBuilder) Create() db.BorrowRequest {
	ctx := context.Background()
	req, err := b.testDB.Queries().CreateBorrowRequest(ctx, b.params)
	require.NoError(b.t, err, "Failed to create borrow request")

	if b.status != db.RequestStatusPending {
		_, err = b.testDB.Pool().Exec(ctx, "UPDATE borrow_requests SET status = $2 WHERE id = $1", req.ID, b.status)
		require.NoError(b.t, err)
		req.Status = b.status
	}
	return req
}
