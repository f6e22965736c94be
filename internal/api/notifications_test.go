package api

import (
	"context"
	"fmt"
	"net/http"
	"testing"

	"github.com/USSTM/asset-backend/internal/notifications"
	"github.com/USSTM/asset-backend/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServer_Notifications(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping notifications tests in short mode")
	}

	env := newTestEnv(t)
	actor := env.db.NewUser(t).AsStaff().Create()
	user := env.db.NewUser(t).Create()
	other := env.db.NewUser(t).Create()
	token := env.token(t, user)

	svc := notifications.NewNotificationService(env.db.Pool(), env.db.Queries())
	for i := 0; i < 3; i++ {
		require.NoError(t, svc.Publish(context.Background(), actor.ID, notifications.EntityBorrowRequest, int64(i+1),
			fmt.Sprintf("update %d", i), []int64{user.ID}))
	}
	require.NoError(t, svc.Publish(context.Background(), actor.ID, notifications.EntityBorrowRequest, 99, "not yours", []int64{other.ID}))

	list := func(t *testing.T, query map[string]string) *testutil.Response {
		resp := testutil.AuthenticatedRequest(t, env.handler, testutil.Request{
			Method: http.MethodGet, Path: "/notifications", QueryParams: query,
		}, token)
		require.Equal(t, http.StatusOK, resp.Code)
		return resp
	}

	t.Run("lists own notifications newest first", func(t *testing.T) {
		resp := list(t, nil)
		data := resp.Body["data"].([]interface{})
		require.Len(t, data, 3)
		assert.Equal(t, "update 2", data[0].(map[string]interface{})["message"])
		assert.Equal(t, float64(3), resp.Body["unreadCount"])
		assert.Equal(t, float64(actor.ID), data[0].(map[string]interface{})["actorId"])
	})

	var firstID int64
	t.Run("mark one read", func(t *testing.T) {
		data := list(t, nil).Body["data"].([]interface{})
		firstID = int64(data[0].(map[string]interface{})["id"].(float64))

		resp := testutil.AuthenticatedRequest(t, env.handler, testutil.Request{
			Method: http.MethodPost, Path: fmt.Sprintf("/notifications/%d/read", firstID),
		}, token)
		require.Equal(t, http.StatusNoContent, resp.Code)

		resp = list(t, map[string]string{"unreadOnly": "true"})
		assert.Len(t, resp.Body["data"], 2)
		assert.Equal(t, float64(2), resp.Body["unreadCount"])
	})

	t.Run("cannot mark another user's notification", func(t *testing.T) {
		resp := testutil.AuthenticatedRequest(t, env.handler, testutil.Request{
			Method: http.MethodPost, Path: fmt.Sprintf("/notifications/%d/read", firstID),
		}, env.token(t, other))
		assert.Equal(t, http.StatusNotFound, resp.Code)
	})

	t.Run("mark all read", func(t *testing.T) {
		resp := testutil.AuthenticatedRequest(t, env.handler, testutil.Request{
			Method: http.MethodPost, Path: "/notifications/read-all",
		}, token)
		require.Equal(t, http.StatusOK, resp.Code)
		testutil.AssertJSON(t, resp, "updated", float64(2))

		resp = list(t, nil)
		assert.Equal(t, float64(0), resp.Body["unreadCount"])
		assert.Equal(t, float64(3), resp.Body["meta"].(map[string]interface{})["total"])
	})

	t.Run("requires authentication", func(t *testing.T) {
		resp := testutil.MakeRequest(t, env.handler, testutil.Request{Method: http.MethodGet, Path: "/notifications"})
		assert.Equal(t, http.StatusUnauthorized, resp.Code)
	})
}
