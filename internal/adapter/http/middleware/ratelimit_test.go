package middleware_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"wager-ledger/internal/adapter/http/middleware"
	redisStore "wager-ledger/internal/adapter/storage/redis"
	"wager-ledger/internal/core/ports"
	"wager-ledger/internal/core/ports/mocks"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"go.uber.org/mock/gomock"
)

func setupRateLimitRouter(limiter ports.RateLimiter) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()

	rule := middleware.RateLimitRule{Limit: 3, Window: time.Minute}

	r.GET("/test", func(c *gin.Context) {
		if u := c.GetHeader("X-Test-User"); u != "" {
			c.Set(middleware.CtxUsername, u)
		}
		c.Next()
	}, middleware.RateLimiter(limiter, "test", rule, zerolog.Nop()), func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})
	return r
}

func newRedisLimiter(t *testing.T) *redisStore.RateLimitStore {
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return redisStore.NewRateLimitStore(client)
}

func doGet(router *gin.Engine, user string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req, _ := http.NewRequestWithContext(context.Background(), http.MethodGet, "/test", nil)
	if user != "" {
		req.Header.Set("X-Test-User", user)
	}
	router.ServeHTTP(w, req)
	return w
}

func TestRateLimiter_AllowsWithinLimit(t *testing.T) {
	router := setupRateLimitRouter(newRedisLimiter(t))

	for i := 0; i < 3; i++ {
		w := doGet(router, "")
		assert.Equal(t, 200, w.Code, "request %d should succeed", i+1)
		assert.NotEmpty(t, w.Header().Get("X-RateLimit-Limit"))
		assert.NotEmpty(t, w.Header().Get("X-RateLimit-Remaining"))
		assert.NotEmpty(t, w.Header().Get("X-RateLimit-Reset"))
	}
}

func TestRateLimiter_BlocksOverLimit(t *testing.T) {
	router := setupRateLimitRouter(newRedisLimiter(t))

	for i := 0; i < 3; i++ {
		assert.Equal(t, 200, doGet(router, "").Code)
	}

	w := doGet(router, "")
	assert.Equal(t, 429, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))
	assert.Contains(t, w.Body.String(), "RATE_001")
}

func TestRateLimiter_KeysByUsername(t *testing.T) {
	router := setupRateLimitRouter(newRedisLimiter(t))

	for i := 0; i < 3; i++ {
		assert.Equal(t, 200, doGet(router, "alice").Code)
	}
	assert.Equal(t, 429, doGet(router, "alice").Code)

	// bob has an independent counter
	assert.Equal(t, 200, doGet(router, "bob").Code)
}

func TestRateLimiter_DegradedModeAllows(t *testing.T) {
	ctrl := gomock.NewController(t)
	limiter := mocks.NewMockRateLimiter(ctrl)
	limiter.EXPECT().Allow(gomock.Any(), gomock.Any(), int64(3), time.Minute).Return(nil, errors.New("redis down"))

	router := setupRateLimitRouter(limiter)
	assert.Equal(t, 200, doGet(router, "").Code)
}

func TestDefaultRateLimitRules(t *testing.T) {
	rules := middleware.DefaultRateLimitRules()
	assert.Equal(t, int64(10), rules["auth_login"].Limit)
	assert.Equal(t, int64(5), rules["auth_register"].Limit)
	assert.Equal(t, time.Hour, rules["auth_register"].Window)
	assert.Equal(t, int64(60), rules["bets"].Limit)
	assert.Contains(t, rules, "admin")
}
