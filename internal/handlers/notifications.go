package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/progdesk/comms/internal/identity"
	"github.com/progdesk/comms/internal/services"
	"github.com/progdesk/comms/pkg/errors"
	"github.com/progdesk/comms/pkg/response"
)

// NotificationHandler exposes HTTP endpoints for notifications.
type NotificationHandler struct {
	service   *services.NotificationService
	viewState *services.ViewStateStore
}

// NewNotificationHandler constructs a notification handler.
func NewNotificationHandler(db *gorm.DB) (*NotificationHandler, error) {
	service, err := services.NewNotificationService(db)
	if err != nil {
		return nil, err
	}
	return &NotificationHandler{
		service:   service,
		viewState: services.NewViewStateStore(),
	}, nil
}

// notificationView decorates the DTO with display-only fields.
type notificationView struct {
	services.NotificationDTO
	RelativeTime string `json:"relative_time"`
	Expanded     bool   `json:"expanded"`
}

// List returns notifications for the current user.
func (h *NotificationHandler) List(c *gin.Context) {
	caller, ok := callerIdentity(c)
	if !ok {
		response.Error(c, errors.ErrUnauthorized)
		return
	}

	items, err := h.service.ListForUser(requestContext(c), services.ListNotificationsInput{
		UserID: caller.ID,
		Limit:  parseIntQuery(c, "limit", 25),
		Offset: parseIntQuery(c, "offset", 0),
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	now := time.Now()
	views := make([]notificationView, 0, len(items))
	for _, item := range items {
		views = append(views, notificationView{
			NotificationDTO: item,
			RelativeTime:    services.FormatRelativeTime(item.CreatedAt, now),
			Expanded:        h.viewState.IsExpanded(caller.ID, item.ID),
		})
	}
	response.Success(c, http.StatusOK, views)
}

// Create registers a notification for a user. Staff only: regular users must
// never write into another user's feed.
func (h *NotificationHandler) Create(c *gin.Context) {
	caller, ok := callerIdentity(c)
	if !ok {
		response.Error(c, errors.ErrUnauthorized)
		return
	}
	if !identity.IsStaff(caller.Role) {
		response.Error(c, errors.NewForbidden("creating notifications requires a staff role"))
		return
	}

	var payload struct {
		UserID   string         `json:"user_id" validate:"required"`
		Type     string         `json:"type" validate:"omitempty,oneof=info success warning error"`
		Title    string         `json:"title" validate:"required,notblank,max=255"`
		Message  string         `json:"message"`
		Metadata map[string]any `json:"metadata"`
	}
	if !bindAndValidate(c, &payload) {
		return
	}

	dto, err := h.service.Create(requestContext(c), services.CreateNotificationInput{
		UserID:   payload.UserID,
		Type:     payload.Type,
		Title:    payload.Title,
		Message:  payload.Message,
		Metadata: payload.Metadata,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, dto)
}

// MarkRead marks a single notification read.
func (h *NotificationHandler) MarkRead(c *gin.Context) {
	caller, ok := callerIdentity(c)
	if !ok {
		response.Error(c, errors.ErrUnauthorized)
		return
	}

	dto, err := h.service.MarkRead(requestContext(c), caller.ID, strings.TrimSpace(c.Param("id")))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, dto)
}

// MarkAllRead marks all notifications read.
func (h *NotificationHandler) MarkAllRead(c *gin.Context) {
	caller, ok := callerIdentity(c)
	if !ok {
		response.Error(c, errors.ErrUnauthorized)
		return
	}

	if err := h.service.MarkAllRead(requestContext(c), caller.ID); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"updated": true})
}

// Delete removes a notification.
func (h *NotificationHandler) Delete(c *gin.Context) {
	caller, ok := callerIdentity(c)
	if !ok {
		response.Error(c, errors.ErrUnauthorized)
		return
	}

	id := strings.TrimSpace(c.Param("id"))
	if err := h.service.Delete(requestContext(c), caller.ID, id); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"deleted": true})
}

// DeleteAll removes every notification owned by the caller.
func (h *NotificationHandler) DeleteAll(c *gin.Context) {
	caller, ok := callerIdentity(c)
	if !ok {
		response.Error(c, errors.ErrUnauthorized)
		return
	}

	deleted, err := h.service.DeleteAll(requestContext(c), caller.ID)
	if err != nil {
		response.Error(c, err)
		return
	}
	h.viewState.Reset(caller.ID)
	response.Success(c, http.StatusOK, gin.H{"deleted": deleted})
}

// ToggleExpand flips the expand/collapse view state for a notification.
// Presentation state only; read flags are untouched.
func (h *NotificationHandler) ToggleExpand(c *gin.Context) {
	caller, ok := callerIdentity(c)
	if !ok {
		response.Error(c, errors.ErrUnauthorized)
		return
	}

	expanded := h.viewState.Toggle(caller.ID, strings.TrimSpace(c.Param("id")))
	response.Success(c, http.StatusOK, gin.H{"expanded": expanded})
}
