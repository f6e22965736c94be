package api

import (
	"context"

	"github.com/USSTM/asset-backend/internal/auth"
	"github.com/USSTM/asset-backend/internal/db"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

// DatabaseService defines the interface for database operations
type DatabaseService interface {
	Queries() *db.Queries
	Pool() *pgxpool.Pool
}

// RedisPinger is the readiness probe for the Redis connection.
type RedisPinger interface {
	Ping(ctx context.Context) *redis.StatusCmd
}

// AuthService covers password login and refresh-token rotation.
type AuthService interface {
	Login(ctx context.Context, email, password string) (auth.TokenPair, error)
	Refresh(ctx context.Context, refreshToken string) (auth.TokenPair, error)
	Logout(ctx context.Context, refreshToken string) error
}

// Notifier publishes review outcomes and serves the notification inbox.
type Notifier interface {
	RequestReviewed(ctx context.Context, actorID int64, req db.BorrowRequest, asset db.Asset) error
	TransactionReviewed(ctx context.Context, actorID int64, txn db.BorrowTransaction) error

	GetUserNotifications(ctx context.Context, userID int64, unreadOnly bool, limit, offset int32) ([]db.Notification, error)
	MarkAsRead(ctx context.Context, userID, notificationID int64) error
	MarkAllAsRead(ctx context.Context, userID int64) (int64, error)
	GetUnreadCount(ctx context.Context, userID int64) (int64, error)
	GetTotalCount(ctx context.Context, userID int64) (int64, error)
	GetSettings(ctx context.Context, userID int64) (db.NotificationSetting, error)
	UpdateSettings(ctx context.Context, settings db.NotificationSetting) (db.NotificationSetting, error)
}
