package main

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cardsignup/internal/config"
	"cardsignup/internal/core"
	"cardsignup/internal/signup"
)

func setTestEnv(t *testing.T) {
	t.Helper()
	t.Chdir(t.TempDir())
	t.Setenv("APP_ENV", "local")
	t.Setenv("SECRET_BACKEND", "env")
	t.Setenv("STRIPE_SECRET_KEY", "sk_test_local")
	t.Setenv("ENABLE_METRICS", "false")
	t.Setenv("ORPHAN_QUEUE_URL", "")
}

func TestNewLogger_Levels(t *testing.T) {
	ctx := context.Background()
	assert.True(t, newLogger("debug").Enabled(ctx, slog.LevelDebug))
	assert.False(t, newLogger("warn").Enabled(ctx, slog.LevelInfo))
	assert.True(t, newLogger("bogus").Enabled(ctx, slog.LevelInfo))
	assert.False(t, newLogger("bogus").Enabled(ctx, slog.LevelDebug))
}

func TestIsLambdaEnvironment(t *testing.T) {
	t.Setenv("AWS_LAMBDA_RUNTIME_API", "127.0.0.1:9001")
	assert.True(t, isLambdaEnvironment())
}

func TestUserAgent(t *testing.T) {
	assert.Equal(t, "CardSignup/dev", userAgent(&config.Config{}))
	assert.Equal(t, "CardSignup/1.2.3", userAgent(&config.Config{Build: config.BuildInfo{Version: "1.2.3"}}))
}

func TestBuildDependencies_LocalServer(t *testing.T) {
	setTestEnv(t)

	cfg, err := config.LoadConfig()
	require.NoError(t, err)

	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	deps, err := buildDependencies(context.Background(), cfg, logger)
	require.NoError(t, err)
	defer deps.close()

	srv, err := core.NewServer(logger)
	require.NoError(t, err)
	srv.MountRoutes(deps.handler)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/signup", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, signup.MethodNotAllowedBody, rec.Body.String())

	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", strings.NewReader("")))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, signup.EmptyBodyPrompt, rec.Body.String())

	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}
