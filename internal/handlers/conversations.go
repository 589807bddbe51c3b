package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/progdesk/comms/internal/identity"
	"github.com/progdesk/comms/internal/services"
	"github.com/progdesk/comms/pkg/errors"
	"github.com/progdesk/comms/pkg/response"
)

// ConversationHandler exposes HTTP endpoints for the conversation directory
// and the message store.
type ConversationHandler struct {
	conversations *services.ConversationService
	messages      *services.MessageService
	bootstrap     *services.BootstrapService
}

// NewConversationHandler wires the directory, message, and bootstrap services.
func NewConversationHandler(db *gorm.DB, resolver *identity.Resolver, policy services.BootstrapPolicy) (*ConversationHandler, error) {
	conversations, err := services.NewConversationService(db)
	if err != nil {
		return nil, err
	}
	messages, err := services.NewMessageService(db, conversations)
	if err != nil {
		return nil, err
	}
	bootstrap, err := services.NewBootstrapService(db, conversations, resolver, policy)
	if err != nil {
		return nil, err
	}
	return &ConversationHandler{
		conversations: conversations,
		messages:      messages,
		bootstrap:     bootstrap,
	}, nil
}

// List returns the caller's conversations, role-scoped and projection-enriched.
func (h *ConversationHandler) List(c *gin.Context) {
	caller, ok := callerIdentity(c)
	if !ok {
		response.Error(c, errors.ErrUnauthorized)
		return
	}

	items, err := h.conversations.List(requestContext(c), caller.ID, caller.Role)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, items)
}

// Create validates and creates a conversation. Direct creates are idempotent:
// an existing pair conversation is returned with 200 instead of 201.
func (h *ConversationHandler) Create(c *gin.Context) {
	caller, ok := callerIdentity(c)
	if !ok {
		response.Error(c, errors.ErrUnauthorized)
		return
	}

	var payload struct {
		Title          string   `json:"title" validate:"required,notblank,max=255"`
		ParticipantIDs []string `json:"participant_ids" validate:"required,min=1"`
		Kind           string   `json:"kind" validate:"omitempty,oneof=direct group program"`
		ProgramRef     string   `json:"program_ref"`
	}
	if !bindAndValidate(c, &payload) {
		return
	}

	conversation, created, err := h.conversations.Create(requestContext(c), services.CreateConversationInput{
		CreatorID:      caller.ID,
		Title:          payload.Title,
		ParticipantIDs: payload.ParticipantIDs,
		Kind:           payload.Kind,
		ProgramRef:     payload.ProgramRef,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	status := http.StatusCreated
	if !created {
		status = http.StatusOK
	}
	response.Success(c, status, conversation)
}

// Bootstrap runs the role-appropriate bootstrap policy for the caller. Always
// answers 200: bootstrap is best-effort and never blocks the session.
func (h *ConversationHandler) Bootstrap(c *gin.Context) {
	caller, ok := callerIdentity(c)
	if !ok {
		response.Error(c, errors.ErrUnauthorized)
		return
	}

	if err := h.bootstrap.Run(requestContext(c), caller); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"bootstrapped": true})
}

// ListMessages returns a conversation's messages in creation order.
func (h *ConversationHandler) ListMessages(c *gin.Context) {
	caller, ok := callerIdentity(c)
	if !ok {
		response.Error(c, errors.ErrUnauthorized)
		return
	}

	items, err := h.messages.List(requestContext(c), c.Param("id"), caller.ID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, items)
}

// SendMessage appends a message and returns it with the caller's refreshed
// conversation projection.
func (h *ConversationHandler) SendMessage(c *gin.Context) {
	caller, ok := callerIdentity(c)
	if !ok {
		response.Error(c, errors.ErrUnauthorized)
		return
	}

	var payload struct {
		Text     string `json:"text" validate:"max=4000"`
		Kind     string `json:"kind" validate:"omitempty,oneof=text file system"`
		FileName string `json:"file_name"`
		FileURL  string `json:"file_url"`
		FileSize int64  `json:"file_size"`
	}
	if !bindAndValidate(c, &payload) {
		return
	}

	result, err := h.messages.Append(requestContext(c), services.AppendMessageInput{
		ConversationID: c.Param("id"),
		SenderID:       caller.ID,
		Kind:           payload.Kind,
		Text:           payload.Text,
		FileName:       payload.FileName,
		FileURL:        payload.FileURL,
		FileSize:       payload.FileSize,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, result)
}

// MarkRead marks every message in the conversation as read by the caller.
func (h *ConversationHandler) MarkRead(c *gin.Context) {
	caller, ok := callerIdentity(c)
	if !ok {
		response.Error(c, errors.ErrUnauthorized)
		return
	}

	if err := h.messages.MarkConversationRead(requestContext(c), c.Param("id"), caller.ID); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"read": true})
}
