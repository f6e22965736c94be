package testutil

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/USSTM/asset-backend/internal/auth"
	"github.com/stretchr/testify/mock"
)

// MockJWTService is a mock implementation of the JWT service interface
type MockJWTService struct {
	mock.Mock
}

func NewMockJWTService(t *testing.T) *MockJWTService {
	mockJWT := &MockJWTService{}
	mockJWT.Test(t)
	return mockJWT
}

func (m *MockJWTService) GenerateToken(ctx context.Context, userID int64) (string, error) {
	args := m.Called(ctx, userID)
	return args.String(0), args.Error(1)
}

func (m *MockJWTService) ValidateToken(ctx context.Context, token string) (*auth.TokenClaims, error) {
	args := m.Called(ctx, token)
	claims, _ := args.Get(0).(*auth.TokenClaims)
	return claims, args.Error(1)
}

// ExpectValidateToken sets up expectation for ValidateToken
func (m *MockJWTService) ExpectValidateToken(token string, claims *auth.TokenClaims, err error) *mock.Call {
	return m.On("ValidateToken", mock.Anything, token).Return(claims, err)
}

// MockObjectStore stands in for S3. Put bodies are drained so callers see
// a realistic read.
type MockObjectStore struct {
	mock.Mock
}

func NewMockObjectStore(t *testing.T) *MockObjectStore {
	m := &MockObjectStore{}
	m.Test(t)
	return m
}

func (m *MockObjectStore) PutObject(ctx context.Context, key string, body io.Reader, contentType string) error {
	_, _ = io.Copy(io.Discard, body)
	args := m.Called(ctx, key, contentType)
	return args.Error(0)
}

func (m *MockObjectStore) DeleteObject(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

func (m *MockObjectStore) PresignGetURL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	args := m.Called(ctx, key, ttl)
	return args.String(0), args.Error(1)
}

// ExpectPut accepts any key with the given content type.
func (m *MockObjectStore) ExpectPut(contentType string, err error) *mock.Call {
	return m.On("PutObject", mock.Anything, mock.AnythingOfType("string"), contentType).Return(err)
}
