package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/consulta/backend/internal/infrastructure/auth"
	"github.com/consulta/backend/internal/infrastructure/config"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAuthTestRouter(verifier *auth.TokenVerifier) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(Auth(verifier))
	router.GET("/api/v1/me", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"user_id": GetAuthUserID(c)})
	})
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.POST("/api/v1/webhooks/stripe", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"received": true})
	})
	return router
}

func newTestVerifier() *auth.TokenVerifier {
	return auth.NewTokenVerifier(config.JWTConfig{
		Secret: "test-secret-key-at-least-32-bytes-long",
		Issuer: "consulta-backend",
	})
}

func TestAuth_ValidToken(t *testing.T) {
	verifier := newTestVerifier()
	router := newAuthTestRouter(verifier)
	userID := uuid.New()

	token, err := verifier.Issue(userID, "user@example.com", time.Hour)
	require.NoError(t, err)

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/api/v1/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), userID.String())
}

func TestAuth_MissingHeader(t *testing.T) {
	router := newAuthTestRouter(newTestVerifier())

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/api/v1/me", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "ERR_UNAUTHORIZED")
}

func TestAuth_ExpiredToken(t *testing.T) {
	verifier := newTestVerifier()
	router := newAuthTestRouter(verifier)

	token, err := verifier.Issue(uuid.New(), "", -time.Minute)
	require.NoError(t, err)

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/api/v1/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "ERR_TOKEN_EXPIRED")
}

func TestAuth_MalformedHeader(t *testing.T) {
	router := newAuthTestRouter(newTestVerifier())

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/api/v1/me", nil)
	req.Header.Set("Authorization", "Token abc123")
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuth_SkipPaths(t *testing.T) {
	router := newAuthTestRouter(newTestVerifier())

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/health", nil)
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	req = httptest.NewRequest("POST", "/api/v1/webhooks/stripe", nil)
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}
