package api

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"testing"
	"time"

	specdoc "github.com/USSTM/asset-backend/api"
	"github.com/USSTM/asset-backend/internal/auth"
	"github.com/USSTM/asset-backend/internal/config"
	"github.com/USSTM/asset-backend/internal/lifecycle"
	"github.com/USSTM/asset-backend/internal/notifications"
	"github.com/USSTM/asset-backend/internal/rbac"
	"github.com/USSTM/asset-backend/internal/testutil"
	"github.com/stretchr/testify/require"
)

var (
	sharedTestDB    *testutil.TestDatabase
	sharedTestQueue *testutil.TestQueue
)

func TestMain(m *testing.M) {
	flag.Parse()
	if testing.Short() {
		os.Exit(m.Run())
	}

	ctx := context.Background()
	var err error
	sharedTestDB, err = testutil.StartDatabase(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	sharedTestQueue, err = testutil.StartQueue(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		sharedTestDB.Terminate()
		os.Exit(1)
	}

	code := m.Run()

	sharedTestQueue.Close()
	sharedTestDB.Terminate()
	os.Exit(code)
}

// testEnv is a fully wired server over the shared containers.
type testEnv struct {
	handler http.Handler
	db      *testutil.TestDatabase
	queue   *testutil.TestQueue
	jwt     *auth.JWTService
	storage *testutil.MockObjectStore
}

func (e *testEnv) token(t *testing.T, user *testutil.TestUser) string {
	return testutil.TokenFor(t, e.jwt, user)
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	if testing.Short() {
		t.Skip("Skipping integration tests in short mode")
	}

	sharedTestDB.CleanupDatabase(t)
	sharedTestQueue.Cleanup(t)

	jwtSvc := testutil.NewTestJWTService(t)
	queries := sharedTestDB.Queries()

	spec, err := specdoc.GetSwagger()
	require.NoError(t, err)

	templates, err := notifications.LoadTemplates("../../templates/email")
	require.NoError(t, err)
	notifier := notifications.NewNotificationDispatcher(
		notifications.NewNotificationService(sharedTestDB.Pool(), queries),
		sharedTestQueue.Queue,
		templates,
		notifications.NewEmailLookupFunc(queries),
	)

	cfg := config.Load()
	storage := testutil.NewMockObjectStore(t)

	server := NewServer(Deps{
		DB:            sharedTestDB,
		Redis:         sharedTestQueue.Redis,
		Tracker:       lifecycle.NewTracker(sharedTestDB.Pool()),
		Resolver:      rbac.NewResolver(queries),
		Authenticator: auth.NewAuthenticator(jwtSvc, queries),
		AuthService: auth.NewAuthService(sharedTestQueue.Redis, jwtSvc, queries, config.AuthConfig{
			MaxFailedLogins: 3,
			LockoutDuration: 15 * time.Minute,
			RefreshExpiry:   time.Hour,
		}),
		Notifier: notifier,
		Storage:  storage,
		Spec:     spec,
		Config:   cfg,
	})

	return &testEnv{
		handler: server.Handler(),
		db:      sharedTestDB,
		queue:   sharedTestQueue,
		jwt:     jwtSvc,
		storage: storage,
	}
}

// decodeBody decodes the raw response, for endpoints that return arrays.
func decodeBody(t *testing.T, resp *testutil.Response, dst any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(resp.ResponseRecorder.Body.Bytes(), dst))
}
