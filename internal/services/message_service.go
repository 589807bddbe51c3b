package services

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/oklog/ulid/v2"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/progdesk/comms/internal/models"
	apperrors "github.com/progdesk/comms/pkg/errors"
	"github.com/progdesk/comms/pkg/metrics"
)

const maxMessageLength = 4000

// AppendMessageInput carries the payload required to append a message.
type AppendMessageInput struct {
	ConversationID string
	SenderID       string
	Kind           string
	Text           string
	FileName       string
	FileURL        string
	FileSize       int64
}

// AppendMessageResult returns the created message together with the sender's
// refreshed conversation projection, so callers never re-fetch for consistency.
type AppendMessageResult struct {
	Message    models.Message          `json:"message"`
	Projection *ConversationProjection `json:"projection"`
}

// MessageService owns ordered messages and per-participant read state.
type MessageService struct {
	db            *gorm.DB
	conversations *ConversationService
	timeNow       func() time.Time

	entropyMu sync.Mutex
	entropy   *ulid.MonotonicEntropy
}

// NewMessageService constructs a MessageService once its dependencies are supplied.
func NewMessageService(db *gorm.DB, conversations *ConversationService) (*MessageService, error) {
	if db == nil {
		return nil, errors.New("message service: db is required")
	}
	if conversations == nil {
		return nil, errors.New("message service: conversation service is required")
	}
	return &MessageService{
		db:            db,
		conversations: conversations,
		timeNow:       time.Now,
		entropy:       ulid.Monotonic(rand.Reader, 0),
	}, nil
}

// Append validates and persists a message, bumps the owning conversation, and
// records the sender's implicit read in a single transaction.
func (s *MessageService) Append(ctx context.Context, input AppendMessageInput) (*AppendMessageResult, error) {
	ctx = ensureContext(ctx)

	conversationID := strings.TrimSpace(input.ConversationID)
	if conversationID == "" {
		return nil, apperrors.NewValidation("conversation id is required")
	}
	senderID := strings.TrimSpace(input.SenderID)
	if senderID == "" {
		return nil, apperrors.NewValidation("sender id is required")
	}

	kind := strings.TrimSpace(input.Kind)
	if kind == "" {
		kind = models.MessageKindText
	}
	switch kind {
	case models.MessageKindText, models.MessageKindFile, models.MessageKindSystem:
	default:
		return nil, apperrors.NewValidation(fmt.Sprintf("unknown message kind %q", input.Kind))
	}

	text := strings.TrimSpace(input.Text)
	if kind == models.MessageKindText && text == "" {
		return nil, apperrors.NewValidation("message text is required")
	}
	if utf8.RuneCountInString(text) > maxMessageLength {
		return nil, apperrors.NewValidation("message text exceeds maximum length")
	}
	if kind == models.MessageKindFile && strings.TrimSpace(input.FileURL) == "" {
		return nil, apperrors.NewValidation("file messages require a file reference")
	}

	if err := s.requireParticipant(ctx, conversationID, senderID); err != nil {
		return nil, err
	}

	now := s.timeNow().UTC()
	message := models.Message{
		ID:             s.newMessageID(now),
		ConversationID: conversationID,
		SenderID:       senderID,
		Kind:           kind,
		Body:           text,
		FileName:       strings.TrimSpace(input.FileName),
		FileURL:        strings.TrimSpace(input.FileURL),
		FileSize:       input.FileSize,
		CreatedAt:      now,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&message).Error; err != nil {
			return err
		}
		read := models.MessageRead{MessageID: message.ID, UserID: senderID, ReadAt: now}
		if err := tx.Create(&read).Error; err != nil {
			return err
		}
		return tx.Model(&models.Conversation{}).
			Where("id = ?", conversationID).
			Update("updated_at", now).Error
	})
	if err != nil {
		return nil, fmt.Errorf("message service: append message: %w", err)
	}

	metrics.MessagesSent.WithLabelValues(kind).Inc()

	projection, err := s.conversations.Projection(ctx, conversationID, senderID)
	if err != nil {
		return nil, err
	}
	return &AppendMessageResult{Message: message, Projection: projection}, nil
}

// List returns the conversation's messages in ascending (created_at, id)
// order. Listing never mutates read state.
func (s *MessageService) List(ctx context.Context, conversationID, viewerID string) ([]models.Message, error) {
	ctx = ensureContext(ctx)

	conversationID = strings.TrimSpace(conversationID)
	if conversationID == "" {
		return nil, apperrors.NewValidation("conversation id is required")
	}
	if err := s.requireParticipant(ctx, conversationID, viewerID); err != nil {
		return nil, err
	}

	var rows []models.Message
	if err := s.db.WithContext(ctx).
		Preload("Reads").
		Where("conversation_id = ?", conversationID).
		Order("created_at ASC, id ASC").
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("message service: list messages: %w", err)
	}
	return rows, nil
}

// MarkConversationRead inserts read rows for every message the user has not
// yet read and did not send. Idempotent: re-running inserts nothing new.
func (s *MessageService) MarkConversationRead(ctx context.Context, conversationID, userID string) error {
	ctx = ensureContext(ctx)

	conversationID = strings.TrimSpace(conversationID)
	userID = strings.TrimSpace(userID)
	if conversationID == "" || userID == "" {
		return apperrors.NewValidation("conversation id and user id are required")
	}
	if err := s.requireParticipant(ctx, conversationID, userID); err != nil {
		return err
	}

	var unread []models.Message
	if err := s.db.WithContext(ctx).
		Select("id").
		Where("conversation_id = ? AND sender_id <> ?", conversationID, userID).
		Where("id NOT IN (?)", s.db.Table("message_reads").
			Select("message_id").
			Where("user_id = ?", userID)).
		Find(&unread).Error; err != nil {
		return fmt.Errorf("message service: load unread: %w", err)
	}
	if len(unread) == 0 {
		return nil
	}

	now := s.timeNow().UTC()
	reads := make([]models.MessageRead, 0, len(unread))
	for _, message := range unread {
		reads = append(reads, models.MessageRead{MessageID: message.ID, UserID: userID, ReadAt: now})
	}
	if err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&reads).Error; err != nil {
		return fmt.Errorf("message service: mark read: %w", err)
	}
	return nil
}

// UnreadCount returns the number of messages the viewer has not read and did
// not send.
func (s *MessageService) UnreadCount(ctx context.Context, conversationID, viewerID string) (int64, error) {
	ctx = ensureContext(ctx)
	return s.conversations.unreadCount(ctx, strings.TrimSpace(conversationID), strings.TrimSpace(viewerID))
}

func (s *MessageService) requireParticipant(ctx context.Context, conversationID, userID string) error {
	ok, err := s.conversations.IsParticipant(ctx, conversationID, userID)
	if err != nil {
		return err
	}
	if !ok {
		// Distinguish an unknown conversation from a non-participant.
		var count int64
		if err := s.db.WithContext(ctx).
			Model(&models.Conversation{}).
			Where("id = ?", conversationID).
			Count(&count).Error; err != nil {
			return fmt.Errorf("message service: conversation lookup: %w", err)
		}
		if count == 0 {
			return apperrors.ErrNotFound
		}
		return apperrors.NewForbidden("not a participant of this conversation")
	}
	return nil
}

// newMessageID issues a ULID from the monotonic entropy source, so ids issued
// within the same millisecond still sort in creation order.
func (s *MessageService) newMessageID(now time.Time) string {
	s.entropyMu.Lock()
	defer s.entropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(now), s.entropy).String()
}
