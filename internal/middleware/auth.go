package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	iauth "github.com/progdesk/comms/internal/auth"
	"github.com/progdesk/comms/pkg/errors"
	"github.com/progdesk/comms/pkg/response"
)

const (
	CtxIdentityKey = "callerIdentity"
	CtxUserIDKey   = "userID"
	CtxRoleKey     = "userRole"
)

// Auth enforces JWT authentication using the supplied JWT service and
// propagates the caller's `{id, role}` identity into the request context.
func Auth(jwt *iauth.JWTService) gin.HandlerFunc {
	return func(c *gin.Context) {
		authz := c.GetHeader("Authorization")
		if len(authz) < 8 || !strings.EqualFold(authz[:7], "Bearer ") {
			response.Error(c, errors.ErrUnauthorized)
			c.Abort()
			return
		}

		token := strings.TrimSpace(authz[7:])
		claims, err := jwt.ValidateAccessToken(token)
		if err != nil {
			// Normalise all validation failures to 401
			c.Header("WWW-Authenticate", "Bearer")
			response.Error(c, errors.ErrUnauthorized)
			c.Abort()
			return
		}

		caller, err := claims.Identity()
		if err != nil {
			response.Error(c, errors.ErrUnauthorized)
			c.Abort()
			return
		}

		c.Set(CtxIdentityKey, caller)
		c.Set(CtxUserIDKey, caller.ID)
		c.Set(CtxRoleKey, string(caller.Role))

		c.Next()
	}
}
