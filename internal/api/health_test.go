package api

import (
	"net/http"
	"testing"
	"time"

	"github.com/USSTM/asset-backend/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServer_HealthCheck(t *testing.T) {
	handler := NewServer(Deps{}).Handler()

	t.Run("returns 200 OK with timestamp", func(t *testing.T) {
		resp := testutil.MakeRequest(t, handler, testutil.Request{Method: http.MethodGet, Path: "/health"})

		require.Equal(t, http.StatusOK, resp.Code)
		testutil.AssertJSON(t, resp, "status", "ok")

		ts, err := time.Parse(time.RFC3339Nano, resp.Body["timestamp"].(string))
		require.NoError(t, err)
		assert.WithinDuration(t, time.Now(), ts, time.Second)
	})

	t.Run("unknown route is 404", func(t *testing.T) {
		resp := testutil.MakeRequest(t, handler, testutil.Request{Method: http.MethodGet, Path: "/nope"})
		assert.Equal(t, http.StatusNotFound, resp.Code)
	})
}

func TestServer_ReadinessCheck(t *testing.T) {
	env := newTestEnv(t)

	t.Run("returns 200 ready when dependencies are healthy", func(t *testing.T) {
		resp := testutil.MakeRequest(t, env.handler, testutil.Request{Method: http.MethodGet, Path: "/ready"})

		require.Equal(t, http.StatusOK, resp.Code)
		testutil.AssertJSON(t, resp, "status", "ready")
		checks, ok := resp.Body["checks"].(map[string]interface{})
		require.True(t, ok)
		assert.Equal(t, "ok", checks["database"])
		assert.Equal(t, "ok", checks["redis"])
	})

	t.Run("works without authentication", func(t *testing.T) {
		resp := testutil.MakeRequest(t, env.handler, testutil.Request{
			Method:  http.MethodGet,
			Path:    "/ready",
			Headers: map[string]string{"Authorization": "Bearer garbage"},
		})
		assert.Equal(t, http.StatusOK, resp.Code)
	})
}
