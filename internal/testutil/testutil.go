package testutil

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/USSTM/asset-backend/internal/auth"
	"github.com/stretchr/testify/require"
)

// Request represents a test HTTP request
type Request struct {
	Method      string
	Path        string
	Body        interface{}
	Headers     map[string]string
	QueryParams map[string]string
}

// Response represents a test HTTP response
type Response struct {
	*httptest.ResponseRecorder
	Body map[string]interface{}
}

// MakeRequest runs the request against handler in-process.
func MakeRequest(t *testing.T, handler http.Handler, req Request) *Response {
	t.Helper()

	var body *bytes.Reader
	if req.Body != nil {
		bodyBytes, err := json.Marshal(req.Body)
		require.NoError(t, err, "Failed to marshal request body")
		body = bytes.NewReader(bodyBytes)
	} else {
		body = bytes.NewReader(nil)
	}

	httpReq := httptest.NewRequest(req.Method, req.Path, body)

	for key, value := range req.Headers {
		httpReq.Header.Set(key, value)
	}

	if req.QueryParams != nil {
		q := httpReq.URL.Query()
		for key, value := range req.QueryParams {
			q.Add(key, value)
		}
		httpReq.URL.RawQuery = q.Encode()
	}

	if req.Body != nil && httpReq.Header.Get("Content-Type") == "" {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	return serve(t, handler, httpReq)
}

// AuthenticatedRequest creates a request with authentication headers
func AuthenticatedRequest(t *testing.T, handler http.Handler, req Request, token string) *Response {
	t.Helper()
	if req.Headers == nil {
		req.Headers = make(map[string]string)
	}
	req.Headers["Authorization"] = "Bearer " + token
	return MakeRequest(t, handler, req)
}

// UploadFile posts a single multipart file under field.
func UploadFile(t *testing.T, handler http.Handler, path, field, filename string, data []byte, token string) *Response {
	t.Helper()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile(field, filename)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	httpReq := httptest.NewRequest(http.MethodPost, path, &buf)
	httpReq.Header.Set("Content-Type", w.FormDataContentType())
	if token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+token)
	}
	return serve(t, handler, httpReq)
}

func serve(t *testing.T, handler http.Handler, httpReq *http.Request) *Response {
	t.Helper()
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, httpReq)

	var responseBody map[string]interface{}
	if recorder.Body.Len() > 0 {
		if err := json.Unmarshal(recorder.Body.Bytes(), &responseBody); err != nil {
			t.Logf("Failed to decode response body: %v", err)
		}
	}

	return &Response{
		ResponseRecorder: recorder,
		Body:             responseBody,
	}
}

// NewTestJWTService signs tokens with a fixed test key.
func NewTestJWTService(t *testing.T) *auth.JWTService {
	t.Helper()
	svc, err := auth.NewJWTService([]byte("test-signing-key"), "test-issuer", time.Hour)
	require.NoError(t, err)
	return svc
}

// TokenFor issues an access token for a built user.
func TokenFor(t *testing.T, jwt *auth.JWTService, user *TestUser) string {
	t.Helper()
	token, err := jwt.GenerateToken(context.Background(), user.ID)
	require.NoError(t, err)
	return token
}

// ContextWithUser adds an already loaded user to the context
func ContextWithUser(ctx context.Context, user *auth.AuthenticatedUser) context.Context {
	return auth.WithUser(ctx, user)
}

// TimeNow returns a consistent time for testing
func TimeNow() time.Time {
	return time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
}

// AssertJSON checks if the response body contains expected JSON fields
func AssertJSON(t *testing.T, resp *Response, field string, expected interface{}) {
	t.Helper()
	if resp.Body[field] != expected {
		t.Errorf("Expected %s to be %v, got %v", field, expected, resp.Body[field])
	}
}

// AssertJSONExists checks if a JSON field exists in the response
func AssertJSONExists(t *testing.T, resp *Response, field string) {
	t.Helper()
	if _, exists := resp.Body[field]; !exists {
		t.Errorf("Expected field %s to exist in response", field)
	}
}

// ErrorCode digs error.code out of an ErrorBuilder response.
func ErrorCode(resp *Response) string {
	errObj, _ := resp.Body["error"].(map[string]interface{})
	code, _ := errObj["code"].(string)
	return code
}
