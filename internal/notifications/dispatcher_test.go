package notifications_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/USSTM/asset-backend/internal/db"
	"github.com/USSTM/asset-backend/internal/notifications"
	"github.com/USSTM/asset-backend/internal/queue"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDispatcher(t *testing.T) *notifications.NotificationDispatcher {
	t.Helper()
	svc := notifications.NewNotificationService(sharedDB.Pool(), sharedDB.Queries())
	emailTemplates, err := notifications.LoadTemplates("../../templates/email")
	require.NoError(t, err)
	return notifications.NewNotificationDispatcher(svc, sharedQueue, emailTemplates, notifications.NewEmailLookupFunc(sharedDB.Queries()))
}

func pendingEmails(t *testing.T) []queue.EmailDeliveryPayload {
	t.Helper()
	var out []queue.EmailDeliveryPayload
	for _, task := range sharedQueue.PendingTasks(queue.TypeEmailDelivery) {
		var payload queue.EmailDeliveryPayload
		require.NoError(t, json.Unmarshal(task.Payload, &payload))
		out = append(out, payload)
	}
	return out
}

func TestWantsEmail(t *testing.T) {
	s := notifications.DefaultSettings(1)
	assert.True(t, notifications.WantsEmail(s, notifications.KindApproval))
	assert.True(t, notifications.WantsEmail(s, notifications.KindRejection))
	assert.False(t, notifications.WantsEmail(s, notifications.KindReturn))
	assert.True(t, notifications.WantsEmail(s, notifications.KindReminder))
	assert.False(t, notifications.WantsEmail(s, notifications.Kind("unknown")))
}

func TestNotificationDispatcher_Notify_InAppOnly(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration tests in short mode")
	}

	sharedDB.CleanupDatabase(t)
	sharedQueue.Cleanup(t)

	ctx := context.Background()
	actor := sharedDB.NewUser(t).AsStaff().Create()
	notifier := sharedDB.NewUser(t).Create()

	d := newTestDispatcher(t)

	err := d.Notify(ctx, actor.ID, notifications.EntityBorrowRequest, 7, "heads up", []notifications.NotifierGroup{
		{IDs: []int64{notifier.ID}},
	})
	require.NoError(t, err)

	notifs, err := d.GetUserNotifications(ctx, notifier.ID, false, 10, 0)
	require.NoError(t, err)
	require.Len(t, notifs, 1)
	assert.Equal(t, int64(7), notifs[0].EntityID)

	assert.Empty(t, pendingEmails(t), "no email tasks should be enqueued for in-app only group")
}

func TestNotificationDispatcher_RequestReviewed_SendsEmail(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration tests in short mode")
	}

	sharedDB.CleanupDatabase(t)
	sharedQueue.Cleanup(t)

	ctx := context.Background()
	staff := sharedDB.NewUser(t).AsStaff().Create()
	borrower := sharedDB.NewUser(t).WithEmail("borrower@example.com").Create()
	asset := sharedDB.NewAsset(t).WithName("Tripod").WithCode("TRI-1").Create()
	req := sharedDB.NewBorrowRequest(t, asset.ID, borrower.ID).WithStatus(db.RequestStatusApproved).Create()

	d := newTestDispatcher(t)
	require.NoError(t, d.RequestReviewed(ctx, staff.ID, req, asset))

	notifs, err := d.GetUserNotifications(ctx, borrower.ID, false, 10, 0)
	require.NoError(t, err)
	require.Len(t, notifs, 1)
	assert.Contains(t, notifs[0].Message, "Tripod")
	assert.Contains(t, notifs[0].Message, "approved")

	emails := pendingEmails(t)
	require.Len(t, emails, 1)
	assert.Equal(t, "borrower@example.com", emails[0].To)
	assert.Contains(t, emails[0].Subject, "approved")
	assert.Contains(t, emails[0].Body, "TRI-1")
}

func TestNotificationDispatcher_RespectsSettings(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration tests in short mode")
	}

	sharedDB.CleanupDatabase(t)
	sharedQueue.Cleanup(t)

	ctx := context.Background()
	staff := sharedDB.NewUser(t).AsStaff().Create()
	borrower := sharedDB.NewUser(t).Create()
	asset := sharedDB.NewAsset(t).Create()

	d := newTestDispatcher(t)
	_, err := d.UpdateSettings(ctx, db.NotificationSetting{UserID: borrower.ID, EmailOnApproval: false})
	require.NoError(t, err)

	approved := sharedDB.NewBorrowRequest(t, asset.ID, borrower.ID).WithStatus(db.RequestStatusApproved).Create()
	require.NoError(t, d.RequestReviewed(ctx, staff.ID, approved, asset))

	// returns are off by default
	returned := sharedDB.NewBorrowRequest(t, asset.ID, borrower.ID).WithStatus(db.RequestStatusReturned).Create()
	require.NoError(t, d.RequestReviewed(ctx, staff.ID, returned, asset))

	assert.Empty(t, pendingEmails(t))

	count, err := d.GetUnreadCount(ctx, borrower.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count, "in-app notifications ignore email settings")
}

func TestNotificationDispatcher_PendingIsSilent(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration tests in short mode")
	}

	sharedDB.CleanupDatabase(t)
	sharedQueue.Cleanup(t)

	ctx := context.Background()
	borrower := sharedDB.NewUser(t).Create()
	asset := sharedDB.NewAsset(t).Create()
	req := sharedDB.NewBorrowRequest(t, asset.ID, borrower.ID).Create()

	d := newTestDispatcher(t)
	require.NoError(t, d.RequestReviewed(ctx, 0, req, asset))

	total, err := d.GetTotalCount(ctx, borrower.ID)
	require.NoError(t, err)
	assert.Zero(t, total)
}

func TestNotificationDispatcher_ActorSkippedInApp(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration tests in short mode")
	}

	sharedDB.CleanupDatabase(t)
	sharedQueue.Cleanup(t)

	ctx := context.Background()
	actor := sharedDB.NewUser(t).AsStaff().Create()

	d := newTestDispatcher(t)

	err := d.Notify(ctx, actor.ID, notifications.EntityBorrowRequest, 1, "self", []notifications.NotifierGroup{
		{IDs: []int64{actor.ID}},
	})
	require.NoError(t, err)

	notifs, err := d.GetUserNotifications(ctx, actor.ID, false, 10, 0)
	require.NoError(t, err)
	assert.Empty(t, notifs, "actor should not receive their own in-app notification")
}

func TestReminders_SendOverdueReminders(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration tests in short mode")
	}

	sharedDB.CleanupDatabase(t)
	sharedQueue.Cleanup(t)

	ctx := context.Background()
	borrower := sharedDB.NewUser(t).WithEmail("late@example.com").Create()
	asset := sharedDB.NewAsset(t).WithName("Camera").Create()

	today := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	overdue := sharedDB.NewBorrowRequest(t, asset.ID, borrower.ID).
		WithDates(today.AddDate(0, 0, -7), today.AddDate(0, 0, -1)).
		WithStatus(db.RequestStatusApproved).
		Create()
	// due today is not overdue yet
	sharedDB.NewBorrowRequest(t, asset.ID, borrower.ID).
		WithDates(today.AddDate(0, 0, -3), today).
		WithStatus(db.RequestStatusApproved).
		Create()
	// returned loans are never reminded
	sharedDB.NewBorrowRequest(t, asset.ID, borrower.ID).
		WithDates(today.AddDate(0, 0, -9), today.AddDate(0, 0, -2)).
		WithStatus(db.RequestStatusReturned).
		Create()

	reminders := notifications.NewReminders(sharedDB.Queries(), newTestDispatcher(t))

	sent, err := reminders.SendOverdueReminders(ctx, today.Add(8*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, sent)

	emails := pendingEmails(t)
	require.Len(t, emails, 1)
	assert.Equal(t, "late@example.com", emails[0].To)
	assert.Contains(t, emails[0].Subject, "Camera")

	reloaded, err := sharedDB.Queries().GetBorrowRequestByID(ctx, overdue.ID)
	require.NoError(t, err)
	assert.True(t, reloaded.ReminderSentAt.Valid)

	again, err := reminders.SendOverdueReminders(ctx, today.Add(8*time.Hour))
	require.NoError(t, err)
	assert.Zero(t, again, "each request is reminded once")
}
