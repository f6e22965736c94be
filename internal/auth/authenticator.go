package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/USSTM/asset-backend/internal/db"
	"github.com/USSTM/asset-backend/internal/rbac"
	"github.com/getkin/kin-openapi/openapi3filter"
)

type contextKey string

const (
	UserIDKey     contextKey = "user_id"
	UserClaimsKey contextKey = "user_claims"
)

var ErrUnauthenticated = errors.New("authentication required")

// AuthenticatedUser is the acting user with role and department loaded.
type AuthenticatedUser struct {
	ID           int64
	Email        string
	Name         string
	DepartmentID *int64
	Subject      *rbac.Subject
}

func (u *AuthenticatedUser) Can(module string, action rbac.Action) bool {
	return rbac.HasPermission(u.Subject, module, action)
}

func (u *AuthenticatedUser) IsAdmin() bool {
	return rbac.IsAdmin(u.Subject)
}

func (u *AuthenticatedUser) CanAccessDepartment(departmentID *int64) bool {
	return rbac.CanAccessDepartment(u.Subject, departmentID)
}

type TokenValidator interface {
	ValidateToken(ctx context.Context, token string) (*TokenClaims, error)
}

type UserLoader interface {
	GetUserWithRole(ctx context.Context, id int64) (db.GetUserWithRoleRow, error)
}

type Authenticator struct {
	tokens TokenValidator
	users  UserLoader
}

func NewAuthenticator(tokens TokenValidator, users UserLoader) *Authenticator {
	return &Authenticator{
		tokens: tokens,
		users:  users,
	}
}

// Authenticate is the OpenAPI validator hook for the BearerAuth scheme.
func (a *Authenticator) Authenticate(ctx context.Context, input *openapi3filter.AuthenticationInput) error {
	if input.SecuritySchemeName != "BearerAuth" {
		return fmt.Errorf("authentication service missing")
	}

	req := input.RequestValidationInput.Request
	user, err := a.UserFromRequest(req)
	if err != nil {
		return err
	}

	*input.RequestValidationInput.Request = *req.WithContext(WithUser(req.Context(), user))
	return nil
}

// UserFromRequest resolves the bearer token to a loaded user.
func (a *Authenticator) UserFromRequest(r *http.Request) (*AuthenticatedUser, error) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return nil, fmt.Errorf("%w: authorization header missing", ErrUnauthenticated)
	}

	const bearerPrefix = "Bearer "
	if !strings.HasPrefix(authHeader, bearerPrefix) {
		return nil, fmt.Errorf("%w: invalid authorization header format", ErrUnauthenticated)
	}

	claims, err := a.tokens.ValidateToken(r.Context(), strings.TrimPrefix(authHeader, bearerPrefix))
	if err != nil {
		return nil, fmt.Errorf("%w: invalid token: %v", ErrUnauthenticated, err)
	}

	return a.LoadUser(r.Context(), claims.UserID)
}

// LoadUser fails when the user or its role cannot be loaded or is inactive.
func (a *Authenticator) LoadUser(ctx context.Context, userID int64) (*AuthenticatedUser, error) {
	row, err := a.users.GetUserWithRole(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: user %d not found: %v", ErrUnauthenticated, userID, err)
	}
	if !row.IsActive {
		return nil, fmt.Errorf("%w: user %d is inactive", ErrUnauthenticated, userID)
	}

	subject := rbac.SubjectFromRow(row)
	return &AuthenticatedUser{
		ID:           row.ID,
		Email:        row.Email,
		Name:         row.Name,
		DepartmentID: subject.DepartmentID,
		Subject:      subject,
	}, nil
}

func WithUser(ctx context.Context, user *AuthenticatedUser) context.Context {
	ctx = context.WithValue(ctx, UserIDKey, user.ID)
	return context.WithValue(ctx, UserClaimsKey, user)
}

func GetUserID(ctx context.Context) (int64, bool) {
	userID, ok := ctx.Value(UserIDKey).(int64)
	return userID, ok
}

func GetAuthenticatedUser(ctx context.Context) (*AuthenticatedUser, bool) {
	user, ok := ctx.Value(UserClaimsKey).(*AuthenticatedUser)
	return user, ok
}
