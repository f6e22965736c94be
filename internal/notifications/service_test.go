package notifications_test

import (
	"context"
	"flag"
	"fmt"
	"os"
	"testing"

	"github.com/USSTM/asset-backend/internal/db"
	"github.com/USSTM/asset-backend/internal/notifications"
	"github.com/USSTM/asset-backend/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	sharedDB    *testutil.TestDatabase
	sharedQueue *testutil.TestQueue
)

func TestMain(m *testing.M) {
	flag.Parse()
	if testing.Short() {
		os.Exit(0)
	}

	ctx := context.Background()
	var err error
	sharedDB, err = testutil.StartDatabase(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	sharedQueue, err = testutil.StartQueue(ctx)
	if err != nil {
		sharedDB.Terminate()
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	code := m.Run()

	sharedQueue.Close()
	sharedDB.Terminate()
	os.Exit(code)
}

func newTestNotificationService(t *testing.T) *notifications.NotificationService {
	t.Helper()
	return notifications.NewNotificationService(sharedDB.Pool(), sharedDB.Queries())
}

func TestNotificationService_PublishAndGet(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration tests in short mode")
	}

	ctx := context.Background()

	t.Run("publishes and retrieves notification", func(t *testing.T) {
		sharedDB.CleanupDatabase(t)
		svc := newTestNotificationService(t)

		actor := sharedDB.NewUser(t).AsStaff().Create()
		notifier := sharedDB.NewUser(t).Create()

		err := svc.Publish(ctx, actor.ID, notifications.EntityBorrowRequest, 42, "approved", []int64{notifier.ID, notifier.ID})
		require.NoError(t, err)

		notifs, err := svc.GetUserNotifications(ctx, notifier.ID, false, 10, 0)
		require.NoError(t, err)

		require.Len(t, notifs, 1, "duplicate recipients collapse")
		n := notifs[0]
		assert.False(t, n.IsRead)
		assert.Equal(t, actor.ID, n.ActorID.Int64)
		assert.Equal(t, int64(42), n.EntityID)
		assert.Equal(t, notifications.EntityBorrowRequest, n.EntityType)
		assert.Equal(t, "approved", n.Message)

		count, err := svc.GetUnreadCount(ctx, notifier.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(1), count)

		require.NoError(t, svc.MarkAsRead(ctx, notifier.ID, n.ID))

		countAfterRead, err := svc.GetUnreadCount(ctx, notifier.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(0), countAfterRead)

		total, err := svc.GetTotalCount(ctx, notifier.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(1), total)
	})

	t.Run("cannot mark someone else's notification", func(t *testing.T) {
		sharedDB.CleanupDatabase(t)
		svc := newTestNotificationService(t)

		owner := sharedDB.NewUser(t).Create()
		other := sharedDB.NewUser(t).Create()

		require.NoError(t, svc.Publish(ctx, 0, notifications.EntityBorrowRequest, 1, "hi", []int64{owner.ID}))
		notifs, err := svc.GetUserNotifications(ctx, owner.ID, false, 10, 0)
		require.NoError(t, err)
		require.Len(t, notifs, 1)
		assert.False(t, notifs[0].ActorID.Valid)

		err = svc.MarkAsRead(ctx, other.ID, notifs[0].ID)
		assert.ErrorIs(t, err, notifications.ErrNotFound)
	})

	t.Run("mark all as read", func(t *testing.T) {
		sharedDB.CleanupDatabase(t)
		svc := newTestNotificationService(t)

		actor := sharedDB.NewUser(t).AsStaff().Create()
		notifier := sharedDB.NewUser(t).Create()

		require.NoError(t, svc.Publish(ctx, actor.ID, notifications.EntityBorrowRequest, 1, "one", []int64{notifier.ID}))
		require.NoError(t, svc.Publish(ctx, actor.ID, notifications.EntityBorrowRequest, 2, "two", []int64{notifier.ID}))

		unread, err := svc.GetUserNotifications(ctx, notifier.ID, true, 10, 0)
		require.NoError(t, err)
		assert.Len(t, unread, 2)

		marked, err := svc.MarkAllAsRead(ctx, notifier.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(2), marked)

		countAfter, err := svc.GetUnreadCount(ctx, notifier.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(0), countAfter)
	})
}

func TestNotificationService_Settings(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration tests in short mode")
	}

	sharedDB.CleanupDatabase(t)
	ctx := context.Background()
	svc := newTestNotificationService(t)
	user := sharedDB.NewUser(t).Create()

	settings, err := svc.GetSettings(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, notifications.DefaultSettings(user.ID), settings)

	updated, err := svc.UpdateSettings(ctx, db.NotificationSetting{
		UserID:         user.ID,
		EmailOnReturn:  true,
		EmailReminders: false,
	})
	require.NoError(t, err)
	assert.True(t, updated.EmailOnReturn)
	assert.False(t, updated.EmailOnApproval)

	reloaded, err := svc.GetSettings(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, updated.EmailOnReturn, reloaded.EmailOnReturn)
	assert.False(t, reloaded.EmailReminders)
}
