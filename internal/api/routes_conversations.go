package api

import (
	"github.com/gin-gonic/gin"

	"github.com/progdesk/comms/internal/handlers"
)

func registerConversationRoutes(api *gin.RouterGroup, handler *handlers.ConversationHandler) {
	group := api.Group("/conversations")
	{
		group.GET("", handler.List)
		group.POST("", handler.Create)
		group.POST("/bootstrap", handler.Bootstrap)

		group.GET("/:id/messages", handler.ListMessages)
		group.POST("/:id/messages", handler.SendMessage)
		group.POST("/:id/read", handler.MarkRead)
	}
}
