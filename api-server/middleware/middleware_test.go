package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"nko-map-backend/api-server/response"
	"nko-map-backend/shared/database/models"
	"nko-map-backend/shared/repository"
	"nko-map-backend/shared/services"
	utils "nko-map-backend/shared/utils/auth"
)

const testSecret = "middleware-test-secret"

type guardFixture struct {
	store  *repository.MemoryStore
	tokens *utils.TokenService
	guard  *Guard
	user   *models.User
}

func newGuardFixture(t *testing.T) *guardFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := repository.NewMemoryStore()
	user := &models.User{Email: "alice@example.com", FirstName: "Алиса", LastName: "Иванова", Role: models.RoleUser}
	require.NoError(t, store.Users().Create(context.Background(), user))

	tokens := utils.NewTokenService(testSecret, time.Hour)
	return &guardFixture{
		store:  store,
		tokens: tokens,
		guard:  NewGuard(tokens, store.Users(), services.NewPolicy(false)),
		user:   user,
	}
}

func (f *guardFixture) token(t *testing.T, id uuid.UUID) string {
	t.Helper()
	token, _, err := f.tokens.Issue(id)
	require.NoError(t, err)
	return token
}

func decode(t *testing.T, w *httptest.ResponseRecorder) response.UnifiedResponse {
	t.Helper()
	var body response.UnifiedResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func serve(r http.Handler, method, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestGuardAuthenticate(t *testing.T) {
	f := newGuardFixture(t)
	r := gin.New()
	r.GET("/me", f.guard.Authenticate(), func(c *gin.Context) {
		user, ok := CurrentUser(c)
		require.True(t, ok)
		c.String(http.StatusOK, user.Email)
	})

	t.Run("valid token", func(t *testing.T) {
		w := serve(r, http.MethodGet, "/me", f.token(t, f.user.ID))
		require.Equal(t, http.StatusOK, w.Code)
		require.Equal(t, "alice@example.com", w.Body.String())
	})

	t.Run("missing token", func(t *testing.T) {
		w := serve(r, http.MethodGet, "/me", "")
		require.Equal(t, http.StatusUnauthorized, w.Code)
		body := decode(t, w)
		require.False(t, body.Success)
		require.Equal(t, "UNAUTHORIZED", body.Error.Code)
	})

	t.Run("forged token", func(t *testing.T) {
		other := utils.NewTokenService("other-secret", time.Hour)
		token, _, err := other.Issue(f.user.ID)
		require.NoError(t, err)
		w := serve(r, http.MethodGet, "/me", token)
		require.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("expired token", func(t *testing.T) {
		past := f.tokens.WithClock(func() time.Time { return time.Now().Add(-2 * time.Hour) })
		token, _, err := past.Issue(f.user.ID)
		require.NoError(t, err)
		w := serve(r, http.MethodGet, "/me", token)
		require.Equal(t, http.StatusUnauthorized, w.Code)
		require.Equal(t, "Срок действия токена истёк", decode(t, w).Message)
	})

	t.Run("unknown user", func(t *testing.T) {
		w := serve(r, http.MethodGet, "/me", f.token(t, uuid.New()))
		require.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

func TestGuardOptionalIgnoresBadTokens(t *testing.T) {
	f := newGuardFixture(t)
	r := gin.New()
	r.GET("/list", f.guard.Optional(), func(c *gin.Context) {
		if user, ok := CurrentUser(c); ok {
			c.String(http.StatusOK, user.Email)
			return
		}
		c.String(http.StatusOK, "anonymous")
	})

	past := f.tokens.WithClock(func() time.Time { return time.Now().Add(-2 * time.Hour) })
	expired, _, err := past.Issue(f.user.ID)
	require.NoError(t, err)

	cases := map[string]struct {
		token string
		want  string
	}{
		"no token":      {"", "anonymous"},
		"expired token": {expired, "anonymous"},
		"garbage":       {"not-a-jwt", "anonymous"},
		"valid token":   {f.token(t, f.user.ID), "alice@example.com"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			w := serve(r, http.MethodGet, "/list", tc.token)
			require.Equal(t, http.StatusOK, w.Code)
			require.Equal(t, tc.want, w.Body.String())
		})
	}
}

func TestGuardRequire(t *testing.T) {
	f := newGuardFixture(t)
	admin := &models.User{Email: "root@example.com", FirstName: "Админ", LastName: "Главный", Role: models.RoleAdmin}
	require.NoError(t, f.store.Users().Create(context.Background(), admin))

	r := gin.New()
	r.PATCH("/approve", f.guard.Authenticate(), f.guard.Require(services.OpModerateNPO), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})

	w := serve(r, http.MethodPatch, "/approve", f.token(t, f.user.ID))
	require.Equal(t, http.StatusForbidden, w.Code)
	require.Equal(t, "FORBIDDEN", decode(t, w).Error.Code)

	w = serve(r, http.MethodPatch, "/approve", f.token(t, admin.ID))
	require.Equal(t, http.StatusNoContent, w.Code)
}

func TestBearerTokenFromQueryOnlyForWebSocket(t *testing.T) {
	gin.SetMode(gin.TestMode)

	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodGet, "/api/ws?token=abc", nil)
	require.Empty(t, bearerToken(c))

	c.Request.Header.Set("Connection", "Upgrade")
	c.Request.Header.Set("Upgrade", "websocket")
	require.Equal(t, "abc", bearerToken(c))
}

func TestRateLimiterBlocksAfterMaxRequests(t *testing.T) {
	gin.SetMode(gin.TestMode)

	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	rl := NewRateLimiter()
	rl.now = func() time.Time { return now }

	r := gin.New()
	r.POST("/login", rl.Limit("login", "Слишком много попыток", RateLimitConfig{
		MaxRequests:   3,
		TimeWindow:    time.Minute,
		BlockDuration: 10 * time.Minute,
	}), func(c *gin.Context) { c.Status(http.StatusOK) })

	for i := 0; i < 3; i++ {
		require.Equal(t, http.StatusOK, serve(r, http.MethodPost, "/login", "").Code)
	}

	w := serve(r, http.MethodPost, "/login", "")
	require.Equal(t, http.StatusTooManyRequests, w.Code)
	require.Equal(t, "RATE_LIMITED", decode(t, w).Error.Code)

	now = now.Add(5 * time.Minute)
	require.Equal(t, http.StatusTooManyRequests, serve(r, http.MethodPost, "/login", "").Code)

	now = now.Add(6 * time.Minute)
	require.Equal(t, http.StatusOK, serve(r, http.MethodPost, "/login", "").Code)
}

func TestRateLimiterWindowResets(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	rl := NewRateLimiter()
	rl.now = func() time.Time { return now }
	cfg := RateLimitConfig{MaxRequests: 2, TimeWindow: time.Minute, BlockDuration: time.Hour}

	require.True(t, rl.isAllowed("k", cfg))
	require.True(t, rl.isAllowed("k", cfg))

	now = now.Add(2 * time.Minute)
	require.True(t, rl.isAllowed("k", cfg))
	require.True(t, rl.isAllowed("k", cfg))
	require.False(t, rl.isAllowed("k", cfg))

	require.True(t, rl.isAllowed("other", cfg))
	require.True(t, rl.isAllowed("k", RateLimitConfig{}))
}

func TestRateLimiterCleanupKeepsActiveBlocks(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	rl := NewRateLimiter()
	rl.now = func() time.Time { return now }

	rl.store["stale"] = &RateLimit{LastAccess: now.Add(-48 * time.Hour)}
	rl.store["blocked"] = &RateLimit{LastAccess: now.Add(-48 * time.Hour), Blocked: true, BlockUntil: now.Add(time.Hour)}
	rl.store["fresh"] = &RateLimit{LastAccess: now}

	rl.cleanup()

	require.NotContains(t, rl.store, "stale")
	require.Contains(t, rl.store, "blocked")
	require.Contains(t, rl.store, "fresh")
}

func TestThrottle(t *testing.T) {
	gin.SetMode(gin.TestMode)

	require.Nil(t, NewThrottle(0, 10))

	var disabled *Throttle
	r := gin.New()
	r.GET("/open", disabled.Handler(), func(c *gin.Context) { c.Status(http.StatusOK) })
	for i := 0; i < 50; i++ {
		require.Equal(t, http.StatusOK, serve(r, http.MethodGet, "/open", "").Code)
	}

	th := NewThrottle(60, 2)
	r = gin.New()
	r.GET("/limited", th.Handler(), func(c *gin.Context) { c.Status(http.StatusOK) })

	require.Equal(t, http.StatusOK, serve(r, http.MethodGet, "/limited", "").Code)
	require.Equal(t, http.StatusOK, serve(r, http.MethodGet, "/limited", "").Code)
	w := serve(r, http.MethodGet, "/limited", "")
	require.Equal(t, http.StatusTooManyRequests, w.Code)
	require.Equal(t, "RATE_LIMITED", decode(t, w).Error.Code)
}

func TestRequestLoggerSetsRequestID(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.Use(RequestLogger(zap.NewNop()))
	r.GET("/ping", func(c *gin.Context) { response.OK(c, "pong") })

	w := serve(r, http.MethodGet, "/ping", "")
	require.Equal(t, http.StatusOK, w.Code)
	id := w.Header().Get("X-Request-ID")
	require.NotEmpty(t, id)
	require.Equal(t, id, decode(t, w).Meta.RequestID)

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("X-Request-ID", "given-id")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, "given-id", w.Header().Get("X-Request-ID"))
}

func TestRecoveryWritesInternalError(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.Use(Recovery(zap.NewNop()))
	r.GET("/boom", func(c *gin.Context) { panic("boom") })

	w := serve(r, http.MethodGet, "/boom", "")
	require.Equal(t, http.StatusInternalServerError, w.Code)
	body := decode(t, w)
	require.False(t, body.Success)
	require.Equal(t, "INTERNAL_ERROR", body.Error.Code)
}

func TestAuditTrailRecordsMutations(t *testing.T) {
	f := newGuardFixture(t)
	trail := NewAuditTrail(f.store.Audit(), zap.NewNop())

	r := gin.New()
	r.Use(trail.Handler())
	r.GET("/read", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.POST("/write", f.guard.Authenticate(), func(c *gin.Context) { c.Status(http.StatusCreated) })

	serve(r, http.MethodGet, "/read", "")
	serve(r, http.MethodPost, "/write", f.token(t, f.user.ID))
	trail.Wait()

	entries := f.store.AuditEntries()
	require.Len(t, entries, 1)
	require.Equal(t, http.MethodPost, entries[0].Method)
	require.Equal(t, "/write", entries[0].Path)
	require.Equal(t, http.StatusCreated, entries[0].StatusCode)
	require.NotNil(t, entries[0].UserID)
	require.Equal(t, f.user.ID, *entries[0].UserID)
}
