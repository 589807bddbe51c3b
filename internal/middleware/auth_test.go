package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	iauth "github.com/progdesk/comms/internal/auth"
	"github.com/progdesk/comms/internal/identity"
)

func newAuthTestRouter(t *testing.T) (*gin.Engine, *iauth.JWTService) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	jwt, err := iauth.NewJWTService(iauth.JWTConfig{Secret: "test-secret"})
	require.NoError(t, err)

	r := gin.New()
	r.GET("/protected", Auth(jwt), func(c *gin.Context) {
		caller, ok := c.Get(CtxIdentityKey)
		require.True(t, ok)
		id := caller.(identity.Identity)
		c.JSON(http.StatusOK, gin.H{"id": id.ID, "role": string(id.Role)})
	})
	return r, jwt
}

func TestAuthMiddlewareAcceptsValidToken(t *testing.T) {
	r, jwt := newAuthTestRouter(t)

	token, err := jwt.GenerateAccessToken(iauth.AccessTokenInput{UserID: "user-1", Role: identity.RoleFinance})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), `"id":"user-1"`)
	require.Contains(t, w.Body.String(), `"role":"finance"`)
}

func TestAuthMiddlewareRejectsMissingOrMalformedHeader(t *testing.T) {
	r, _ := newAuthTestRouter(t)

	for _, header := range []string{"", "Token abc", "Bearer", "Bearer "} {
		req := httptest.NewRequest(http.MethodGet, "/protected", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		require.Equal(t, http.StatusUnauthorized, w.Code, "header %q", header)
	}
}

func TestAuthMiddlewareRejectsInvalidToken(t *testing.T) {
	r, _ := newAuthTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusUnauthorized, w.Code)
	require.Equal(t, "Bearer", w.Header().Get("WWW-Authenticate"))
}

func TestAuthMiddlewareRejectsUnknownRoleClaim(t *testing.T) {
	gin.SetMode(gin.TestMode)

	// A token signed with the right secret but carrying a role tag outside the
	// closed set must not pass the boundary.
	r, _ := newAuthTestRouter(t)

	other, err := iauth.NewJWTService(iauth.JWTConfig{Secret: "test-secret"})
	require.NoError(t, err)
	token, err := other.GenerateAccessToken(iauth.AccessTokenInput{UserID: "user-1", Role: identity.Role("director")})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusUnauthorized, w.Code)
}
