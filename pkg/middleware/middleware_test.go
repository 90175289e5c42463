package middleware

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tilespace-backend/pkg/config"
	"tilespace-backend/pkg/models"
	"tilespace-backend/pkg/utils"
)

const testSecret = "test-secret"

func okHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) utils.APIError {
	t.Helper()
	var resp utils.APIResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotNil(t, resp.Error)
	return *resp.Error
}

func TestAuthMiddleware(t *testing.T) {
	jwtService := utils.NewJWTService(testSecret)
	token, _, err := jwtService.GenerateAccessToken("user-1", "a@b.c", time.Hour)
	require.NoError(t, err)
	expired, err := jwt.NewWithClaims(jwt.SigningMethodHS256, &models.TokenClaims{
		UserID: "user-1",
		Role:   models.RoleAuthenticated,
		Exp:    time.Now().Add(-time.Minute).Unix(),
	}).SignedString([]byte(testSecret))
	require.NoError(t, err)

	var seen string
	h := AuthMiddleware(jwtService)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, err := RequireUser(r.Context())
		require.NoError(t, err)
		seen = user.ID
	}))

	cases := []struct {
		name    string
		header  string
		status  int
		message string
	}{
		{"missing", "", http.StatusUnauthorized, "Missing authorization header"},
		{"not bearer", "Basic abc", http.StatusUnauthorized, "Invalid authorization header format"},
		{"garbage", "Bearer nope", http.StatusUnauthorized, "Invalid token"},
		{"expired", "Bearer " + expired, http.StatusUnauthorized, "Token expired"},
		{"valid", "Bearer " + token, http.StatusOK, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/session", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			assert.Equal(t, tc.status, rec.Code)
			if tc.message != "" {
				assert.Equal(t, tc.message, decodeError(t, rec).Message)
			}
		})
	}
	assert.Equal(t, "user-1", seen)
}

func TestOptionalAuthMiddlewarePassesAnonymous(t *testing.T) {
	jwtService := utils.NewJWTService(testSecret)
	var authed bool
	h := OptionalAuthMiddleware(jwtService)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, authed = GetUserFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/palettes", nil)
	req.Header.Set("Authorization", "Bearer broken")
	h.ServeHTTP(httptest.NewRecorder(), req)
	assert.False(t, authed)

	token, _, err := jwtService.GenerateAccessToken("user-2", "", time.Hour)
	require.NoError(t, err)
	req = httptest.NewRequest(http.MethodGet, "/api/palettes", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	h.ServeHTTP(httptest.NewRecorder(), req)
	assert.True(t, authed)
}

func TestSessionRequiresUser(t *testing.T) {
	_, err := Session().UserID(httptest.NewRequest(http.MethodGet, "/", nil).Context())
	assert.Error(t, err)
}

func TestCaptureCORS(t *testing.T) {
	cfg := &config.Config{AllowedOrigins: []string{"https://tilespace.app", "chrome-extension://*"}}
	h := CaptureCORS(cfg)(http.HandlerFunc(okHandler))

	cases := map[string]string{
		"https://tilespace.app":     "https://tilespace.app",
		"chrome-extension://abcdef": "chrome-extension://abcdef",
		"https://evil.example":      "https://tilespace.app",
		"":                          "https://tilespace.app",
	}
	for origin, want := range cases {
		req := httptest.NewRequest(http.MethodOptions, "/api/capture", nil)
		if origin != "" {
			req.Header.Set("Origin", origin)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, want, rec.Header().Get("Access-Control-Allow-Origin"), origin)
	}
}

func TestCORSWildcardDisablesCredentials(t *testing.T) {
	h := CORS(&config.Config{AllowedOrigins: []string{"*"}})(http.HandlerFunc(okHandler))
	req := httptest.NewRequest(http.MethodGet, "/api/tiles", nil)
	req.Header.Set("Origin", "https://anything.example")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Credentials"))
}

func TestNormalizeStripsTrailingSlash(t *testing.T) {
	var path, host string
	h := Normalize()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path, host = r.URL.Path, r.Host
	}))
	req := httptest.NewRequest(http.MethodGet, "/api/tiles/", nil)
	req.Header.Set("X-Forwarded-Host", "tilespace.app")
	h.ServeHTTP(httptest.NewRecorder(), req)
	assert.Equal(t, "/api/tiles", path)
	assert.Equal(t, "tilespace.app", host)

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, "/", path)
}

func TestRecoveryWritesEnvelope(t *testing.T) {
	h := Recovery(&config.Config{Environment: "production"})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	apiErr := decodeError(t, rec)
	assert.Equal(t, "Internal server error occurred", apiErr.Message)
	assert.Empty(t, apiErr.Details)
}

func TestLoggerRecordsAccess(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)
	h := middleware.RequestID(Logger(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/tiles", nil))

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry))
	assert.Equal(t, "warn", entry["level"])
	assert.Equal(t, "/api/tiles", entry["path"])
	assert.EqualValues(t, http.StatusTeapot, entry["status"])
	assert.NotEmpty(t, entry["request_id"])
}

func TestContentTypeJSON(t *testing.T) {
	h := ContentTypeJSON(http.HandlerFunc(okHandler))

	req := httptest.NewRequest(http.MethodPost, "/api/tiles", strings.NewReader("{}"))
	req.Header.Set("Content-Type", "text/plain")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	req = httptest.NewRequest(http.MethodPost, "/api/tiles", strings.NewReader("{}"))
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRateLimit(t *testing.T) {
	mr := miniredis.RunT(t)
	client, err := NewRedisClient(t.Context(), "redis://"+mr.Addr())
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	rl := NewRateLimiter(client, 2, time.Minute)
	h := RateLimit(rl)(http.HandlerFunc(okHandler))

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/capture", nil)
		req.RemoteAddr = "10.0.0.1:5555"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
		if i == 2 {
			assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))
		}
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)

	// 其他客户端不受影响
	req := httptest.NewRequest(http.MethodPost, "/api/capture", nil)
	req.RemoteAddr = "10.0.0.2:5555"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRateLimitFailsOpen(t *testing.T) {
	mr := miniredis.RunT(t)
	client, err := NewRedisClient(t.Context(), "redis://"+mr.Addr())
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	mr.Close()

	h := RateLimit(NewRateLimiter(client, 1, time.Minute))(http.HandlerFunc(okHandler))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/capture", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestNewRedisClientRejectsBadURL(t *testing.T) {
	_, err := NewRedisClient(t.Context(), "not a url")
	assert.Error(t, err)
}
