package api

import (
	"github.com/gin-gonic/gin"

	"github.com/progdesk/comms/internal/handlers"
)

func registerUserRoutes(api *gin.RouterGroup, handler *handlers.UserHandler) {
	group := api.Group("/users")
	{
		group.GET("/search", handler.Search)
	}
}
