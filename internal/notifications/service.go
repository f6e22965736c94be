package notifications

import (
	"context"
	"errors"
	"fmt"

	"github.com/USSTM/asset-backend/internal/db"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	EntityBorrowRequest     = "borrow_request"
	EntityBorrowTransaction = "borrow_transaction"
)

var ErrNotFound = errors.New("notification not found")

type NotificationService struct {
	pool *pgxpool.Pool
	db   *db.Queries
}

func NewNotificationService(pool *pgxpool.Pool, queries *db.Queries) *NotificationService {
	return &NotificationService{
		pool: pool,
		db:   queries,
	}
}

// Publish writes one in-app notification per recipient. The actor never
// notifies themselves.
func (s *NotificationService) Publish(ctx context.Context, actorID int64, entityType string, entityID int64, message string, notifierIDs []int64) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	qtx := s.db.WithTx(tx)

	actor := pgtype.Int8{Int64: actorID, Valid: actorID != 0}
	seen := make(map[int64]bool, len(notifierIDs))
	for _, notifierID := range notifierIDs {
		if notifierID == actorID || seen[notifierID] {
			continue
		}
		seen[notifierID] = true

		_, err = qtx.CreateNotification(ctx, db.CreateNotificationParams{
			UserID:     notifierID,
			ActorID:    actor,
			EntityType: entityType,
			EntityID:   entityID,
			Message:    message,
		})
		if err != nil {
			return fmt.Errorf("failed to create notification for %d: %w", notifierID, err)
		}
	}

	return tx.Commit(ctx)
}

func (s *NotificationService) GetUserNotifications(ctx context.Context, userID int64, unreadOnly bool, limit, offset int32) ([]db.Notification, error) {
	return s.db.ListUserNotifications(ctx, db.ListUserNotificationsParams{
		UserID:     userID,
		UnreadOnly: unreadOnly,
		Limit:      limit,
		Offset:     offset,
	})
}

func (s *NotificationService) MarkAsRead(ctx context.Context, userID, notificationID int64) error {
	n, err := s.db.MarkNotificationAsRead(ctx, db.MarkNotificationAsReadParams{
		ID:     notificationID,
		UserID: userID,
	})
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *NotificationService) MarkAllAsRead(ctx context.Context, userID int64) (int64, error) {
	return s.db.MarkAllNotificationsAsRead(ctx, userID)
}

func (s *NotificationService) GetUnreadCount(ctx context.Context, userID int64) (int64, error) {
	return s.db.CountUserNotifications(ctx, db.CountUserNotificationsParams{UserID: userID, UnreadOnly: true})
}

func (s *NotificationService) GetTotalCount(ctx context.Context, userID int64) (int64, error) {
	return s.db.CountUserNotifications(ctx, db.CountUserNotificationsParams{UserID: userID})
}

// DefaultSettings mirrors the column defaults of notification_settings.
func DefaultSettings(userID int64) db.NotificationSetting {
	return db.NotificationSetting{
		UserID:           userID,
		EmailOnApproval:  true,
		EmailOnRejection: true,
		EmailOnReturn:    false,
		EmailReminders:   true,
	}
}

// GetSettings returns the stored preferences, or the defaults when the user
// never saved any.
func (s *NotificationService) GetSettings(ctx context.Context, userID int64) (db.NotificationSetting, error) {
	settings, err := s.db.GetNotificationSettings(ctx, userID)
	if errors.Is(err, pgx.ErrNoRows) {
		return DefaultSettings(userID), nil
	}
	return settings, err
}

func (s *NotificationService) UpdateSettings(ctx context.Context, settings db.NotificationSetting) (db.NotificationSetting, error) {
	return s.db.UpsertNotificationSettings(ctx, db.UpsertNotificationSettingsParams{
		UserID:           settings.UserID,
		EmailOnApproval:  settings.EmailOnApproval,
		EmailOnRejection: settings.EmailOnRejection,
		EmailOnReturn:    settings.EmailOnReturn,
		EmailReminders:   settings.EmailReminders,
	})
}
