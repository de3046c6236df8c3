package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/nightwatch-game/server/cache"
	"github.com/nightwatch-game/server/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var testSec = config.SecurityConfig{JWTSecret: "secret", JWTTTLH: time.Hour}

func setupTestCache(t *testing.T) cache.Cache {
	t.Helper()
	c, err := cache.NewCache(config.CacheConfig{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func newProtectedRouter(c cache.Cache) *gin.Engine {
	r := gin.New()
	r.Use(Auth(testSec, c))
	r.GET("/protected", func(ctx *gin.Context) {
		ctx.String(http.StatusOK, GetClaims(ctx).Subject)
	})
	return r
}

func get(r http.Handler, path string, header ...string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

// ---- Auth ----

func TestAuth_MissingToken(t *testing.T) {
	r := newProtectedRouter(setupTestCache(t))
	assert.Equal(t, http.StatusUnauthorized, get(r, "/protected").Code)
}

func TestAuth_NoBearer(t *testing.T) {
	r := newProtectedRouter(setupTestCache(t))
	w := get(r, "/protected", "Authorization", "Token abc123")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuth_InvalidToken(t *testing.T) {
	r := newProtectedRouter(setupTestCache(t))
	w := get(r, "/protected", "Authorization", "Bearer notavalidtoken")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuth_ValidHeaderToken(t *testing.T) {
	r := newProtectedRouter(setupTestCache(t))
	token, _, err := GenerateToken("p42", RolePlayer, "", "", "secret", time.Hour)
	require.NoError(t, err)

	w := get(r, "/protected", "Authorization", "Bearer "+token)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "p42", w.Body.String())
}

func TestAuth_QueryToken(t *testing.T) {
	r := newProtectedRouter(setupTestCache(t))
	token, _, err := GenerateToken("p7", RoleSpectator, "", "", "secret", time.Hour)
	require.NoError(t, err)

	w := get(r, "/protected?token="+token)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "p7", w.Body.String())
}

func TestAuth_RevokedToken(t *testing.T) {
	c := setupTestCache(t)
	r := newProtectedRouter(c)
	token, claims, err := GenerateToken("p1", RolePlayer, "", "", "secret", time.Hour)
	require.NoError(t, err)

	require.NoError(t, Revoke(context.Background(), c, claims))
	w := get(r, "/protected", "Authorization", "Bearer "+token)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	ok, err := c.Exists(context.Background(), revokedKey(claims.ID))
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRequireRole(t *testing.T) {
	c := setupTestCache(t)
	r := gin.New()
	r.GET("/play", Auth(testSec, c), RequireRole(RolePlayer), func(ctx *gin.Context) { ctx.Status(http.StatusOK) })

	player, _, _ := GenerateToken("p1", RolePlayer, "", "", "secret", time.Hour)
	watcher, _, _ := GenerateToken("s1", RoleSpectator, "", "", "secret", time.Hour)

	assert.Equal(t, http.StatusOK, get(r, "/play?token="+player).Code)
	assert.Equal(t, http.StatusForbidden, get(r, "/play?token="+watcher).Code)
}

func TestRequireRole_WithoutAuth(t *testing.T) {
	r := gin.New()
	r.GET("/play", RequireRole(RolePlayer), func(ctx *gin.Context) { ctx.Status(http.StatusOK) })
	assert.Equal(t, http.StatusUnauthorized, get(r, "/play").Code)
}

func TestGetClaims_Missing(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	assert.Nil(t, GetClaims(c))
}

// ---- AdminKey ----

func TestAdminKey(t *testing.T) {
	r := gin.New()
	r.GET("/admin", AdminKey("k3y"), func(ctx *gin.Context) { ctx.Status(http.StatusOK) })

	assert.Equal(t, http.StatusOK, get(r, "/admin", AdminKeyHeader, "k3y").Code)
	assert.Equal(t, http.StatusUnauthorized, get(r, "/admin", AdminKeyHeader, "nope").Code)
	assert.Equal(t, http.StatusUnauthorized, get(r, "/admin").Code)
}

func TestAdminKey_EmptyDisables(t *testing.T) {
	r := gin.New()
	r.GET("/admin", AdminKey(""), func(ctx *gin.Context) { ctx.Status(http.StatusOK) })
	assert.Equal(t, http.StatusServiceUnavailable, get(r, "/admin", AdminKeyHeader, "").Code)
}

// ---- Logger ----

func TestLogger_RequestLogged(t *testing.T) {
	logger, _ := zap.NewDevelopment()
	r := gin.New()
	r.Use(TraceID())
	r.Use(Logger(logger))
	r.GET("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })
	assert.Equal(t, http.StatusOK, get(r, "/ping").Code)
}

func TestLogger_ErrorResponse(t *testing.T) {
	r := gin.New()
	r.Use(Logger(zap.NewNop()))
	r.GET("/fail", func(c *gin.Context) { c.Status(http.StatusInternalServerError) })
	assert.Equal(t, http.StatusInternalServerError, get(r, "/fail").Code)
}
