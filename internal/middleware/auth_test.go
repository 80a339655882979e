package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/user/flixdeck/internal/model"
)

const testSecret = "test-secret"

func newAuthRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/me", RequireAuth(testSecret), func(c *gin.Context) {
		c.JSON(http.StatusOK, GetIdentity(c))
	})
	return r
}

func TestRequireAuth_NoToken(t *testing.T) {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	newAuthRouter().ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRequireAuth_BearerHeader(t *testing.T) {
	token, err := GenerateToken("u1", "a@b.c", "Ann", testSecret, time.Hour)
	require.NoError(t, err)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	newAuthRouter().ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"u1"`)
	// 刚签发的 Token 不续期
	assert.Empty(t, w.Header().Values("Set-Cookie"))
}

func TestRequireAuth_Cookie(t *testing.T) {
	token, err := GenerateToken("u2", "", "", testSecret, time.Hour)
	require.NoError(t, err)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.AddCookie(&http.Cookie{Name: "token", Value: token})
	newAuthRouter().ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"u2"`)
}

func TestRequireAuth_WrongSecret(t *testing.T) {
	token, err := GenerateToken("u1", "", "", "other-secret", time.Hour)
	require.NoError(t, err)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	newAuthRouter().ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRequireAuth_Expired(t *testing.T) {
	token, err := GenerateToken("u1", "", "", testSecret, -time.Minute)
	require.NoError(t, err)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	newAuthRouter().ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestShouldRefresh(t *testing.T) {
	now := time.Now()
	fresh := &Claims{RegisteredClaims: jwt.RegisteredClaims{
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
	}}
	assert.False(t, shouldRefresh(fresh))

	old := &Claims{RegisteredClaims: jwt.RegisteredClaims{
		IssuedAt:  jwt.NewNumericDate(now.Add(-45 * time.Minute)),
		ExpiresAt: jwt.NewNumericDate(now.Add(15 * time.Minute)),
	}}
	assert.True(t, shouldRefresh(old))

	assert.False(t, shouldRefresh(&Claims{}))
}

func TestGetIdentity_Anonymous(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	assert.Equal(t, model.SessionUser{}, GetIdentity(c))
}
