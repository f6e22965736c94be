package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/USSTM/asset-backend/internal/config"
	"github.com/USSTM/asset-backend/internal/db"
	"github.com/USSTM/asset-backend/internal/logging"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrAccountLocked      = errors.New("account locked")
	ErrRefreshInvalid     = errors.New("invalid or expired refresh token")
)

// LockoutError carries the moment the lock lifts. errors.Is matches ErrAccountLocked.
type LockoutError struct {
	Until time.Time
}

func (e *LockoutError) Error() string {
	return fmt.Sprintf("account locked until %s", e.Until.UTC().Format(time.RFC3339))
}

func (e *LockoutError) Is(target error) bool {
	return target == ErrAccountLocked
}

// Credentials is the slice of the query layer login needs.
type Credentials interface {
	GetUserByEmail(ctx context.Context, email string) (db.User, error)
	RecordFailedLogin(ctx context.Context, arg db.RecordFailedLoginParams) (db.RecordFailedLoginRow, error)
	ResetLoginFailures(ctx context.Context, id int64) error
	RecordSuccessfulLogin(ctx context.Context, id int64) error
}

type TokenPair struct {
	AccessToken  string
	RefreshToken string
	ExpiresIn    time.Duration
}

// AuthService handles password login with lockout and rotating refresh tokens.
type AuthService struct {
	store           *redisStore
	jwt             *JWTService
	users           Credentials
	maxFailed       int
	lockoutDuration time.Duration
	refreshExpiry   time.Duration
	now             func() time.Time
}

func NewAuthService(redisClient *redis.Client, jwtSvc *JWTService, users Credentials, cfg config.AuthConfig) *AuthService {
	return &AuthService{
		store:           newRedisStore(redisClient),
		jwt:             jwtSvc,
		users:           users,
		maxFailed:       cfg.MaxFailedLogins,
		lockoutDuration: cfg.LockoutDuration,
		refreshExpiry:   cfg.RefreshExpiry,
		now:             time.Now,
	}
}

func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hashing password: %w", err)
	}
	return string(hash), nil
}

// Login verifies the password. Every failure counts towards the lockout
// threshold; success clears the counter.
func (s *AuthService) Login(ctx context.Context, email, password string) (TokenPair, error) {
	user, err := s.users.GetUserByEmail(ctx, email)
	if errors.Is(err, pgx.ErrNoRows) {
		return TokenPair{}, ErrInvalidCredentials
	}
	if err != nil {
		return TokenPair{}, fmt.Errorf("loading user: %w", err)
	}
	if !user.IsActive {
		return TokenPair{}, ErrInvalidCredentials
	}

	now := s.now()
	if user.LockedUntil.Valid {
		if now.Before(user.LockedUntil.Time) {
			return TokenPair{}, &LockoutError{Until: user.LockedUntil.Time}
		}
		// lock expired, start counting afresh
		if err := s.users.ResetLoginFailures(ctx, user.ID); err != nil {
			return TokenPair{}, fmt.Errorf("clearing expired lock: %w", err)
		}
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		row, err := s.users.RecordFailedLogin(ctx, db.RecordFailedLoginParams{
			ID:          user.ID,
			MaxAttempts: int32(s.maxFailed),
			LockUntil:   pgtype.Timestamptz{Time: now.Add(s.lockoutDuration), Valid: true},
		})
		if err != nil {
			return TokenPair{}, fmt.Errorf("recording failed login: %w", err)
		}

		logging.Warn("Failed login", "user_id", user.ID, "attempts", row.FailedLoginAttempts)
		if row.LockedUntil.Valid && now.Before(row.LockedUntil.Time) {
			logging.Warn("Account locked", "user_id", user.ID, "until", row.LockedUntil.Time)
			return TokenPair{}, &LockoutError{Until: row.LockedUntil.Time}
		}
		return TokenPair{}, ErrInvalidCredentials
	}

	if err := s.users.RecordSuccessfulLogin(ctx, user.ID); err != nil {
		return TokenPair{}, fmt.Errorf("recording login: %w", err)
	}

	logging.Info("User logged in", "user_id", user.ID)
	return s.issueTokenPair(ctx, user.ID)
}

// Refresh rotates the refresh token and returns a new pair.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (TokenPair, error) {
	userID, err := s.store.takeRefreshToken(ctx, hashString(refreshToken))
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return TokenPair{}, ErrRefreshInvalid
		}
		return TokenPair{}, fmt.Errorf("retrieving refresh token: %w", err)
	}

	pair, err := s.issueTokenPair(ctx, userID)
	if err != nil {
		return TokenPair{}, err
	}

	logging.Info("refresh token rotated", "user_id", userID)
	return pair, nil
}

// Logout revokes the refresh token. Unknown tokens are not an error.
func (s *AuthService) Logout(ctx context.Context, refreshToken string) error {
	hash := hashString(refreshToken)

	userID, err := s.store.getRefreshToken(ctx, hash)
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("looking up refresh token: %w", err)
	}

	if err := s.store.deleteRefreshToken(ctx, hash); err != nil {
		return fmt.Errorf("deleting refresh token: %w", err)
	}

	if userID != 0 {
		logging.Info("user logged out", "user_id", userID)
	}
	return nil
}

func (s *AuthService) issueTokenPair(ctx context.Context, userID int64) (TokenPair, error) {
	accessToken, err := s.jwt.GenerateToken(ctx, userID)
	if err != nil {
		return TokenPair{}, fmt.Errorf("generating access token: %w", err)
	}

	rawRefresh, err := generateRefreshToken()
	if err != nil {
		return TokenPair{}, fmt.Errorf("generating refresh token: %w", err)
	}

	if err := s.store.storeRefreshToken(ctx, hashString(rawRefresh), userID, s.refreshExpiry); err != nil {
		return TokenPair{}, fmt.Errorf("storing refresh token: %w", err)
	}

	return TokenPair{
		AccessToken:  accessToken,
		RefreshToken: rawRefresh,
		ExpiresIn:    s.jwt.Expiry(),
	}, nil
}

// returns 32 random bytes as a hex string (64 chars).
func generateRefreshToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

func hashString(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}
