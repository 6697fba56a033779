// internal/middleware/auth_middleware_test.go
package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	xjwt "babylon-billing-service/internal/pkg/jwt"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAuthRouter(manager *xjwt.Manager) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/protected", AuthMiddleware(manager), func(c *gin.Context) {
		userID, _ := GetUserID(c)
		c.JSON(http.StatusOK, gin.H{"user_id": userID, "admin": IsAdmin(c)})
	})
	return r
}

func getProtected(r *gin.Engine, authHeader string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuthMiddlewareAcceptsValidToken(t *testing.T) {
	manager := xjwt.NewManager("test-secret")
	token, err := manager.Generate("user-1", []string{"admin"})
	require.NoError(t, err)

	r := newAuthRouter(manager)
	w := getProtected(r, "Bearer "+token)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"user_id":"user-1"`)
	assert.Contains(t, w.Body.String(), `"admin":true`)
}

func TestAuthMiddlewareRejectsMissingHeader(t *testing.T) {
	r := newAuthRouter(xjwt.NewManager("test-secret"))
	w := getProtected(r, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthMiddlewareRejectsMalformedHeader(t *testing.T) {
	r := newAuthRouter(xjwt.NewManager("test-secret"))
	w := getProtected(r, "Token abc")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthMiddlewareRejectsWrongSecret(t *testing.T) {
	other := xjwt.NewManager("other-secret")
	token, err := other.Generate("user-1", nil)
	require.NoError(t, err)

	r := newAuthRouter(xjwt.NewManager("test-secret"))
	w := getProtected(r, "Bearer "+token)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
