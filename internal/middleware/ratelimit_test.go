package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"modqueue/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRateLimitRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

func limitedApp(handler fiber.Handler) *fiber.App {
	app := fiber.New()
	app.Post("/sessions/:sid/batch", handler, func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})
	return app
}

func hit(t *testing.T, app *fiber.App, sid string) int {
	t.Helper()
	resp, err := app.Test(httptest.NewRequest(http.MethodPost, "/sessions/"+sid+"/batch", nil), -1)
	require.NoError(t, err)
	return resp.StatusCode
}

func TestCheckRateLimit(t *testing.T) {
	mr, rdb := setupRateLimitRedis(t)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		ok, err := CheckRateLimit(ctx, rdb, "batch", "session:a", 2, time.Minute)
		require.NoError(t, err)
		assert.True(t, ok)
	}
	ok, err := CheckRateLimit(ctx, rdb, "batch", "session:a", 2, time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, time.Minute, mr.TTL("rl:batch:session:a"))

	mr.FastForward(time.Minute + time.Second)
	ok, err = CheckRateLimit(ctx, rdb, "batch", "session:a", 2, time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = CheckRateLimit(ctx, nil, "batch", "session:a", 2, time.Minute)
	assert.Error(t, err)
}

func TestRateLimit_PerSession(t *testing.T) {
	_, rdb := setupRateLimitRedis(t)
	app := limitedApp(RateLimit(rdb, "batch", 1, time.Minute, SessionOrIP))

	assert.Equal(t, http.StatusOK, hit(t, app, "a"))
	assert.Equal(t, http.StatusOK, hit(t, app, "b"))

	resp, err := app.Test(httptest.NewRequest(http.MethodPost, "/sessions/a/batch", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	var body models.ErrorResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, models.CodeRateLimited, body.Code)
}

func TestRateLimit_StoreFailure(t *testing.T) {
	rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", MaxRetries: -1})
	t.Cleanup(func() { _ = rdb.Close() })

	tests := []struct {
		name   string
		rdb    *redis.Client
		policy FailPolicy
		want   int
	}{
		{"nil store fails open", nil, FailOpen, http.StatusOK},
		{"down store fails open", rdb, FailOpen, http.StatusOK},
		{"nil store fails closed", nil, FailClosed, http.StatusServiceUnavailable},
		{"down store fails closed", rdb, FailClosed, http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := limitedApp(RateLimitWithPolicy(tt.rdb, "batch", 1, time.Minute, nil, tt.policy))
			assert.Equal(t, tt.want, hit(t, app, "a"))
		})
	}
}

func TestRateLimit_ZeroLimitDisables(t *testing.T) {
	app := limitedApp(RateLimitWithPolicy(nil, "batch", 0, time.Minute, SessionOrIP, FailClosed))
	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusOK, hit(t, app, "a"))
	}
}
