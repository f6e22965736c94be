package auth_test

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"

	"github.com/USSTM/asset-backend/internal/auth"
	"github.com/USSTM/asset-backend/internal/db"
	"github.com/USSTM/asset-backend/internal/rbac"
	"github.com/USSTM/asset-backend/internal/testutil"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubUsers map[int64]db.GetUserWithRoleRow

func (s stubUsers) GetUserWithRole(_ context.Context, id int64) (db.GetUserWithRoleRow, error) {
	row, ok := s[id]
	if !ok {
		return db.GetUserWithRoleRow{}, pgx.ErrNoRows
	}
	return row, nil
}

func staffRow(id int64, active bool) db.GetUserWithRoleRow {
	return db.GetUserWithRoleRow{
		ID:              id,
		Email:           "staff@example.com",
		Name:            "Staff",
		DepartmentID:    pgtype.Int8{Int64: 3, Valid: true},
		IsActive:        active,
		RoleID:          2,
		RoleName:        "Staff",
		RoleScope:       db.RoleScopeDepartment,
		RoleIsShared:    true,
		RolePermissions: `{"assets":{"permissions":["view","update"]}}`,
		RoleIsActive:    true,
	}
}

func TestAuthenticator_UserFromRequest(t *testing.T) {
	tokens := testutil.NewMockJWTService(t)
	users := stubUsers{
		7: staffRow(7, true),
		8: staffRow(8, false),
	}
	a := auth.NewAuthenticator(tokens, users)

	tokens.ExpectValidateToken("good", &auth.TokenClaims{UserID: 7}, nil)
	tokens.ExpectValidateToken("inactive", &auth.TokenClaims{UserID: 8}, nil)
	tokens.ExpectValidateToken("ghost", &auth.TokenClaims{UserID: 99}, nil)
	tokens.ExpectValidateToken("expired", nil, errors.New("token expired"))

	request := func(header string) (*auth.AuthenticatedUser, error) {
		r := httptest.NewRequest("GET", "/me", nil)
		if header != "" {
			r.Header.Set("Authorization", header)
		}
		return a.UserFromRequest(r)
	}

	user, err := request("Bearer good")
	require.NoError(t, err)
	assert.Equal(t, int64(7), user.ID)
	assert.Equal(t, int64(3), *user.DepartmentID)
	assert.True(t, user.Can("assets", rbac.ActionUpdate))
	assert.False(t, user.Can("assets", rbac.ActionDelete))
	assert.False(t, user.IsAdmin())

	for name, header := range map[string]string{
		"missing header": "",
		"wrong scheme":   "Basic abc",
		"bad token":      "Bearer expired",
		"inactive user":  "Bearer inactive",
		"unknown user":   "Bearer ghost",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := request(header)
			assert.ErrorIs(t, err, auth.ErrUnauthenticated)
		})
	}

	tokens.AssertExpectations(t)
}

func TestWithUser_RoundTrip(t *testing.T) {
	user := &auth.AuthenticatedUser{ID: 42}
	ctx := auth.WithUser(context.Background(), user)

	id, ok := auth.GetUserID(ctx)
	require.True(t, ok)
	assert.Equal(t, int64(42), id)

	got, ok := auth.GetAuthenticatedUser(ctx)
	require.True(t, ok)
	assert.Same(t, user, got)

	_, ok = auth.GetAuthenticatedUser(context.Background())
	assert.False(t, ok)
}
