package notifications

import (
	"bytes"
	"context"
	"fmt"
	"html/template"

	"github.com/USSTM/asset-backend/internal/db"
	"github.com/USSTM/asset-backend/internal/logging"
	"github.com/USSTM/asset-backend/internal/queue"
	"github.com/hibiken/asynq"
)

// Kind selects which notification_settings flag gates the email.
type Kind string

const (
	KindApproval  Kind = "approval"
	KindRejection Kind = "rejection"
	KindReturn    Kind = "return"
	KindReminder  Kind = "reminder"
)

// defines a set of recipients and an optional email template.
// Template = "" means in-app notification (no-email) only.
type NotifierGroup struct {
	IDs          []int64
	Kind         Kind
	Template     string
	TemplateData map[string]any
}

// resolves user IDs to email address.
type EmailLookupFunc func(ctx context.Context, ids []int64) (map[int64]string, error)

type notificationSvc interface {
	Publish(ctx context.Context, actorID int64, entityType string, entityID int64, message string, notifierIDs []int64) error
	GetUserNotifications(ctx context.Context, userID int64, unreadOnly bool, limit, offset int32) ([]db.Notification, error)
	MarkAsRead(ctx context.Context, userID, notificationID int64) error
	MarkAllAsRead(ctx context.Context, userID int64) (int64, error)
	GetUnreadCount(ctx context.Context, userID int64) (int64, error)
	GetTotalCount(ctx context.Context, userID int64) (int64, error)
	GetSettings(ctx context.Context, userID int64) (db.NotificationSetting, error)
	UpdateSettings(ctx context.Context, settings db.NotificationSetting) (db.NotificationSetting, error)
}

// subset of TaskQueue.
type queueService interface {
	Enqueue(ctx context.Context, taskType string, data any, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

type NotificationDispatcher struct {
	svc         notificationSvc
	queue       queueService
	templates   *template.Template
	emailLookup EmailLookupFunc
}

func NewNotificationDispatcher(svc notificationSvc, q queueService, tmpl *template.Template, lookup EmailLookupFunc) *NotificationDispatcher {
	return &NotificationDispatcher{
		svc:         svc,
		queue:       q,
		templates:   tmpl,
		emailLookup: lookup,
	}
}

// WantsEmail reports whether the settings allow an email of this kind.
func WantsEmail(s db.NotificationSetting, kind Kind) bool {
	switch kind {
	case KindApproval:
		return s.EmailOnApproval
	case KindRejection:
		return s.EmailOnRejection
	case KindReturn:
		return s.EmailOnReturn
	case KindReminder:
		return s.EmailReminders
	default:
		return false
	}
}

// writes in-app notifications for all groups, then enqueues emails for
// groups that specify a template. Email failures are logged, not returned.
func (d *NotificationDispatcher) Notify(ctx context.Context, actorID int64, entityType string, entityID int64, message string, groups []NotifierGroup) error {
	var allIDs []int64
	for _, g := range groups {
		allIDs = append(allIDs, g.IDs...)
	}

	if len(allIDs) == 0 {
		return nil
	}

	if err := d.svc.Publish(ctx, actorID, entityType, entityID, message, allIDs); err != nil {
		return fmt.Errorf("failed to publish in-app notification: %w", err)
	}

	for _, g := range groups {
		if g.Template == "" {
			continue
		}
		d.sendGroupEmails(ctx, g)
	}

	return nil
}

func (d *NotificationDispatcher) sendGroupEmails(ctx context.Context, g NotifierGroup) {
	recipients := d.optedIn(ctx, g)
	if len(recipients) == 0 {
		return
	}
	if d.emailLookup == nil || d.templates == nil {
		logging.Error("email dispatch not configured, skipping", "template", g.Template)
		return
	}
	emails, err := d.emailLookup(ctx, recipients)
	if err != nil {
		logging.Error("failed to look up emails for notification", "template", g.Template, "error", err)
		return
	}

	subject, body, err := d.renderTemplate(g.Template, g.TemplateData)
	if err != nil {
		logging.Error("failed to render notification template", "template", g.Template, "error", err)
		return
	}

	for _, email := range emails {
		if _, err := d.queue.Enqueue(ctx, queue.TypeEmailDelivery, queue.EmailDeliveryPayload{
			To:      email,
			Subject: subject,
			Body:    body,
		}); err != nil {
			logging.Error("failed to enqueue notification email", "to", email, "template", g.Template, "error", err)
		}
	}
}

func (d *NotificationDispatcher) optedIn(ctx context.Context, g NotifierGroup) []int64 {
	var out []int64
	for _, id := range g.IDs {
		settings, err := d.svc.GetSettings(ctx, id)
		if err != nil {
			logging.Warn("failed to load notification settings", "user_id", id, "error", err)
			continue
		}
		if WantsEmail(settings, g.Kind) {
			out = append(out, id)
		}
	}
	return out
}

// only expose dispatcher, notiService should be wrapped under disptacher

func (d *NotificationDispatcher) GetUserNotifications(ctx context.Context, userID int64, unreadOnly bool, limit, offset int32) ([]db.Notification, error) {
	return d.svc.GetUserNotifications(ctx, userID, unreadOnly, limit, offset)
}

func (d *NotificationDispatcher) MarkAsRead(ctx context.Context, userID, notificationID int64) error {
	return d.svc.MarkAsRead(ctx, userID, notificationID)
}

func (d *NotificationDispatcher) MarkAllAsRead(ctx context.Context, userID int64) (int64, error) {
	return d.svc.MarkAllAsRead(ctx, userID)
}

func (d *NotificationDispatcher) GetUnreadCount(ctx context.Context, userID int64) (int64, error) {
	return d.svc.GetUnreadCount(ctx, userID)
}

func (d *NotificationDispatcher) GetTotalCount(ctx context.Context, userID int64) (int64, error) {
	return d.svc.GetTotalCount(ctx, userID)
}

func (d *NotificationDispatcher) GetSettings(ctx context.Context, userID int64) (db.NotificationSetting, error) {
	return d.svc.GetSettings(ctx, userID)
}

func (d *NotificationDispatcher) UpdateSettings(ctx context.Context, settings db.NotificationSetting) (db.NotificationSetting, error) {
	return d.svc.UpdateSettings(ctx, settings)
}

// {{define "name:subject"}} and {{define "name:body"}}
func (d *NotificationDispatcher) renderTemplate(name string, data map[string]any) (subject, body string, err error) {
	var subjectBuf bytes.Buffer
	if err = d.templates.ExecuteTemplate(&subjectBuf, name+":subject", data); err != nil {
		return "", "", fmt.Errorf("render subject for %q: %w", name, err)
	}

	var bodyBuf bytes.Buffer
	if err = d.templates.ExecuteTemplate(&bodyBuf, name+":body", data); err != nil {
		return "", "", fmt.Errorf("render body for %q: %w", name, err)
	}

	return subjectBuf.String(), bodyBuf.String(), nil
}
