package handler

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tilespace-backend/pkg/config"
	"tilespace-backend/pkg/database"
	"tilespace-backend/pkg/utils"
)

func testRouter(t *testing.T, cfg *config.Config) http.Handler {
	t.Helper()
	return NewRouter(Dependencies{
		Config:      cfg,
		DB:          database.NewMemoryDatabase(),
		Logger:      zerolog.Nop(),
		RateLimiter: NewRateLimiter(t.Context(), cfg, zerolog.Nop()),
	})
}

func testConfig() *config.Config {
	return &config.Config{
		Environment:    "production",
		JWTSecret:      "router-secret",
		AllowedOrigins: []string{"https://tilespace.app"},
	}
}

func bearer(t *testing.T, cfg *config.Config) string {
	t.Helper()
	token, _, err := utils.NewJWTService(cfg.JWTSecret).GenerateAccessToken("router-user", "", time.Hour)
	require.NoError(t, err)
	return "Bearer " + token
}

func TestRouterCaptureFlow(t *testing.T) {
	cfg := testConfig()
	router := testRouter(t, cfg)

	// 预检请求不需要认证
	req := httptest.NewRequest(http.MethodOptions, "/api/capture", nil)
	req.Header.Set("Origin", "https://evil.example")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "https://tilespace.app", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodPost, "/api/capture", bytes.NewBufferString(`{"url":"https://go.dev"}`))
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req = httptest.NewRequest(http.MethodPost, "/api/capture/", bytes.NewBufferString(`{"url":"https://go.dev"}`))
	req.Header.Set("Authorization", bearer(t, cfg))
	req.Header.Set("Content-Type", "application/json")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), "Link saved to Inbox")
}

func TestRouterCaptureRateLimit(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := testConfig()
	cfg.RedisURL = "redis://" + mr.Addr()
	cfg.CaptureRateLimit = 1
	router := testRouter(t, cfg)

	codes := []int{}
	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/capture", bytes.NewBufferString(`{"url":"https://go.dev"}`))
		req.Header.Set("Authorization", bearer(t, cfg))
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusTooManyRequests}, codes)
}

func TestRouterRESTRoutes(t *testing.T) {
	cfg := testConfig()
	router := testRouter(t, cfg)

	req := httptest.NewRequest(http.MethodPost, "/api/tiles", nil)
	req.Header.Set("Authorization", bearer(t, cfg))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	req = httptest.NewRequest(http.MethodGet, "/api/tiles/", nil)
	req.Header.Set("Authorization", bearer(t, cfg))
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/palettes", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	// 生产环境不注册开发令牌接口
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/auth/dev-token", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nope", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "Route not found")
}

func TestRouterHealth(t *testing.T) {
	rec := httptest.NewRecorder()
	testRouter(t, testConfig()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"db_status":"healthy"`)
}
