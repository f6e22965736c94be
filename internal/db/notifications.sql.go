package db

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

const createNotification = `-- name: CreateNotification :one
INSERT INTO notifications (user_id, actor_id, entity_type, entity_id, message)
VALUES ($1, $2, $3, $4, $5)
RETURNING id, user_id, actor_id, entity_type, entity_id, message, is_read, created_at
`

type CreateNotificationParams struct {
	UserID     int64       `json:"user_id"`
	ActorID    pgtype.Int8 `json:"actor_id"`
	EntityType string      `json:"entity_type"`
	EntityID   int64       `json:"entity_id"`
	Message    string      `json:"message"`
}

func scanNotification(row interface{ Scan(...interface{}) error }) (Notification, error) {
	var i Notification
	err := row.Scan(
		&i.ID,
		&i.UserID,
		&i.ActorID,
		&i.EntityType,
		&i.EntityID,
		&i.Message,
		&i.IsRead,
		&i.CreatedAt,
	)
	return i, err
}

func (q *Queries) CreateNotification(ctx context.Context, arg CreateNotificationParams) (Notification, error) {
	return scanNotification(q.db.QueryRow(ctx, createNotification,
		arg.UserID,
		arg.ActorID,
		arg.EntityType,
		arg.EntityID,
		arg.Message,
	))
}

const listUserNotifications = `-- name: ListUserNotifications :many
SELECT id, user_id, actor_id, entity_type, entity_id, message, is_read, created_at
FROM notifications
WHERE user_id = $1 AND (NOT $2::bool OR NOT is_read)
ORDER BY created_at DESC, id DESC
LIMIT $3 OFFSET $4
`

type ListUserNotificationsParams struct {
	UserID     int64 `json:"user_id"`
	UnreadOnly bool  `json:"unread_only"`
	Limit      int32 `json:"limit"`
	Offset     int32 `json:"offset"`
}

func (q *Queries) ListUserNotifications(ctx context.Context, arg ListUserNotificationsParams) ([]Notification, error) {
	rows, err := q.db.Query(ctx, listUserNotifications, arg.UserID, arg.UnreadOnly, arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []Notification{}
	for rows.Next() {
		i, err := scanNotification(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const countUserNotifications = `-- name: CountUserNotifications :one
SELECT count(*) FROM notifications WHERE user_id = $1 AND (NOT $2::bool OR NOT is_read)
`

type CountUserNotificationsParams struct {
	UserID     int64 `json:"user_id"`
	UnreadOnly bool  `json:"unread_only"`
}

func (q *Queries) CountUserNotifications(ctx context.Context, arg CountUserNotificationsParams) (int64, error) {
	row := q.db.QueryRow(ctx, countUserNotifications, arg.UserID, arg.UnreadOnly)
	var count int64
	err := row.Scan(&count)
	return count, err
}

const markNotificationAsRead = `-- name: MarkNotificationAsRead :execrows
UPDATE notifications SET is_read = TRUE WHERE id = $1 AND user_id = $2
`

type MarkNotificationAsReadParams struct {
	ID     int64 `json:"id"`
	UserID int64 `json:"user_id"`
}

func (q *Queries) MarkNotificationAsRead(ctx context.Context, arg MarkNotificationAsReadParams) (int64, error) {
	result, err := q.db.Exec(ctx, markNotificationAsRead, arg.ID, arg.UserID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}

const markAllNotificationsAsRead = `-- name: MarkAllNotificationsAsRead :execrows
UPDATE notifications SET is_read = TRUE WHERE user_id = $1 AND NOT is_read
`

func (q *Queries) MarkAllNotificationsAsRead(ctx context.Context, userID int64) (int64, error) {
	result, err := q.db.Exec(ctx, markAllNotificationsAsRead, userID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}

const getNotificationSettings = `-- name: GetNotificationSettings :one
SELECT user_id, email_on_approval, email_on_rejection, email_on_return, email_reminders, updated_at
FROM notification_settings WHERE user_id = $1
`

func (q *Queries) GetNotificationSettings(ctx context.Context, userID int64) (NotificationSetting, error) {
	row := q.db.QueryRow(ctx, getNotificationSettings, userID)
	var i NotificationSetting
	err := row.Scan(
		&i.UserID,
		&i.EmailOnApproval,
		&i.EmailOnRejection,
		&i.EmailOnReturn,
		&i.EmailReminders,
		&i.UpdatedAt,
	)
	return i, err
}

const upsertNotificationSettings = `-- name: UpsertNotificationSettings :one
INSERT INTO notification_settings (user_id, email_on_approval, email_on_rejection, email_on_return, email_reminders)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (user_id) DO UPDATE
SET email_on_approval = EXCLUDED.email_on_approval,
    email_on_rejection = EXCLUDED.email_on_rejection,
    email_on_return = EXCLUDED.email_on_return,
    email_reminders = EXCLUDED.email_reminders,
    updated_at = now()
RETURNING user_id, email_on_approval, email_on_rejection, email_on_return, email_reminders, updated_at
`

type UpsertNotificationSettingsParams struct {
	UserID           int64 `json:"user_id"`
	EmailOnApproval  bool  `json:"email_on_approval"`
	EmailOnRejection bool  `json:"email_on_rejection"`
	EmailOnReturn    bool  `json:"email_on_return"`
	EmailReminders   bool  `json:"email_reminders"`
}

func (q *Queries) UpsertNotificationSettings(ctx context.Context, arg UpsertNotificationSettingsParams) (NotificationSetting, error) {
	row := q.db.QueryRow(ctx, upsertNotificationSettings,
		arg.UserID,
		arg.EmailOnApproval,
		arg.EmailOnRejection,
		arg.EmailOnReturn,
		arg.EmailReminders,
	)
	var i NotificationSetting
	err := row.Scan(
		&i.UserID,
		&i.EmailOnApproval,
		&i.EmailOnRejection,
		&i.EmailOnReturn,
		&i.EmailReminders,
		&i.UpdatedAt,
	)
	return i, err
}
