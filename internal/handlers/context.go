package handlers

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/progdesk/comms/internal/identity"
	"github.com/progdesk/comms/internal/middleware"
)

// requestContext safely returns the request context with a background fallback for tests.
func requestContext(c *gin.Context) context.Context {
	if c == nil {
		return context.Background()
	}
	if req := c.Request; req != nil {
		return req.Context()
	}
	return context.Background()
}

// callerIdentity extracts the authenticated `{id, role}` pair set by the auth
// middleware. The bool is false when the request is unauthenticated.
func callerIdentity(c *gin.Context) (identity.Identity, bool) {
	value, ok := c.Get(middleware.CtxIdentityKey)
	if !ok {
		return identity.Identity{}, false
	}
	caller, ok := value.(identity.Identity)
	if !ok || caller.ID == "" {
		return identity.Identity{}, false
	}
	return caller, true
}
