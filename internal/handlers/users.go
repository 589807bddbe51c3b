package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/progdesk/comms/internal/services"
	"github.com/progdesk/comms/pkg/errors"
	"github.com/progdesk/comms/pkg/response"
)

// UserHandler exposes the role-filtered user search used when starting a
// conversation.
type UserHandler struct {
	service *services.UserService
}

// NewUserHandler constructs a user handler.
func NewUserHandler(db *gorm.DB) (*UserHandler, error) {
	service, err := services.NewUserService(db)
	if err != nil {
		return nil, err
	}
	return &UserHandler{service: service}, nil
}

// Search matches users by name or email, scoped by the caller's role.
func (h *UserHandler) Search(c *gin.Context) {
	caller, ok := callerIdentity(c)
	if !ok {
		response.Error(c, errors.ErrUnauthorized)
		return
	}

	users, err := h.service.Search(requestContext(c), services.SearchUsersInput{
		Term:       c.Query("q"),
		CallerID:   caller.ID,
		CallerRole: caller.Role,
		Limit:      parseIntQuery(c, "limit", 20),
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, users)
}
