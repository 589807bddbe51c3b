package api

import (
	"github.com/gin-gonic/gin"

	"github.com/progdesk/comms/internal/handlers"
)

func registerNotificationRoutes(api *gin.RouterGroup, handler *handlers.NotificationHandler) {
	group := api.Group("/notifications")
	{
		group.GET("", handler.List)
		group.POST("", handler.Create)
		group.POST("/read-all", handler.MarkAllRead)

		group.POST("/:id/read", handler.MarkRead)
		group.POST("/:id/expand", handler.ToggleExpand)
		group.DELETE("/:id", handler.Delete)
		group.DELETE("", handler.DeleteAll)
	}
}
