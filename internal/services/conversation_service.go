package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/progdesk/comms/internal/identity"
	"github.com/progdesk/comms/internal/models"
	apperrors "github.com/progdesk/comms/pkg/errors"
	"github.com/progdesk/comms/pkg/metrics"
)

const subtitleRuneLimit = 30

// LastMessage is the display projection of a conversation's most recent message.
type LastMessage struct {
	Text string    `json:"text"`
	Time time.Time `json:"time"`
}

// ConversationProjection bundles the viewer-dependent aggregates derived from
// the message store. Never persisted.
type ConversationProjection struct {
	LastMessage *LastMessage `json:"last_message,omitempty"`
	UnreadCount int64        `json:"unread_count"`
}

// ConversationDTO is the API-facing conversation shape.
type ConversationDTO struct {
	ID           string        `json:"id"`
	Title        string        `json:"title"`
	Kind         string        `json:"kind"`
	ProgramRef   *string       `json:"program_ref,omitempty"`
	CreatedAt    time.Time     `json:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at"`
	Participants []models.User `json:"participants"`
	ConversationProjection
}

// CreateConversationInput carries the payload for conversation creation.
type CreateConversationInput struct {
	CreatorID      string
	Title          string
	ParticipantIDs []string
	Kind           string // optional; text/group resolution applies when empty
	ProgramRef     string
}

// ConversationService owns conversation records, participant membership, and
// role-scoped listing. Direct-pair uniqueness is enforced by a per-pair mutex
// in front of the pair-key unique index.
type ConversationService struct {
	db        *gorm.DB
	pairLocks *keyedMutex
}

// NewConversationService constructs a ConversationService.
func NewConversationService(db *gorm.DB) (*ConversationService, error) {
	if db == nil {
		return nil, errors.New("conversation service: db is required")
	}
	return &ConversationService{db: db, pairLocks: newKeyedMutex()}, nil
}

// List returns the caller's conversations ordered by recency, with display
// titles and message projections resolved for the caller. Callers with role
// `user` only see conversations that include a finance-role counterpart; the
// filter is applied at read time and never mutates membership.
func (s *ConversationService) List(ctx context.Context, callerID string, callerRole identity.Role) ([]ConversationDTO, error) {
	ctx = ensureContext(ctx)
	callerID = strings.TrimSpace(callerID)
	if callerID == "" {
		return nil, apperrors.NewValidation("caller id is required")
	}

	var rows []models.Conversation
	if err := s.db.WithContext(ctx).
		Preload("Participants").
		Joins("JOIN conversation_participants cp ON cp.conversation_id = conversations.id").
		Where("cp.user_id = ?", callerID).
		Order("conversations.updated_at DESC").
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("conversation service: list conversations: %w", err)
	}

	out := make([]ConversationDTO, 0, len(rows))
	for i := range rows {
		conv := &rows[i]
		if callerRole == identity.RoleUser && !hasFinanceCounterpart(conv, callerID) {
			continue
		}

		projection, err := s.Projection(ctx, conv.ID, callerID)
		if err != nil {
			return nil, err
		}

		out = append(out, ConversationDTO{
			ID:                     conv.ID,
			Title:                  DisplayTitle(conv, callerID),
			Kind:                   conv.Kind,
			ProgramRef:             conv.ProgramRef,
			CreatedAt:              conv.CreatedAt,
			UpdatedAt:              conv.UpdatedAt,
			Participants:           conv.Participants,
			ConversationProjection: *projection,
		})
	}
	return out, nil
}

// Create validates and persists a conversation. Direct creates are idempotent
// per unordered participant pair: a second create for the same pair returns
// the existing conversation with created == false.
func (s *ConversationService) Create(ctx context.Context, input CreateConversationInput) (*models.Conversation, bool, error) {
	ctx = ensureContext(ctx)

	creatorID := strings.TrimSpace(input.CreatorID)
	if creatorID == "" {
		return nil, false, apperrors.NewValidation("creator id is required")
	}
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, false, apperrors.NewValidation("title is required")
	}

	participantIDs := normaliseIDs(append(input.ParticipantIDs, creatorID))
	if len(participantIDs) < 2 {
		return nil, false, apperrors.NewValidation("at least one other participant is required")
	}

	participants, err := s.loadParticipants(ctx, participantIDs)
	if err != nil {
		return nil, false, err
	}

	kind, err := resolveKind(input.Kind, len(participantIDs))
	if err != nil {
		return nil, false, err
	}

	conversation := models.Conversation{
		Title:     title,
		Kind:      kind,
		CreatedBy: creatorID,
	}
	if kind == models.ConversationKindProgram {
		programRef := strings.TrimSpace(input.ProgramRef)
		if programRef == "" {
			return nil, false, apperrors.NewValidation("program conversations require a program reference")
		}
		conversation.ProgramRef = &programRef
	}

	if kind == models.ConversationKindDirect {
		return s.findOrCreateDirect(ctx, conversation, participants)
	}

	if err := s.createWithParticipants(ctx, &conversation, participants); err != nil {
		return nil, false, fmt.Errorf("conversation service: create conversation: %w", err)
	}
	metrics.ConversationsCreated.WithLabelValues(kind, "created").Inc()
	return &conversation, true, nil
}

// Get loads a conversation the caller participates in. Non-participants get a
// forbidden result, unknown ids a not-found result.
func (s *ConversationService) Get(ctx context.Context, conversationID, callerID string) (*models.Conversation, error) {
	ctx = ensureContext(ctx)

	var conversation models.Conversation
	if err := s.db.WithContext(ctx).
		Preload("Participants").
		First(&conversation, "id = ?", strings.TrimSpace(conversationID)).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("conversation service: load conversation: %w", err)
	}

	if !isParticipant(&conversation, callerID) {
		return nil, apperrors.NewForbidden("not a participant of this conversation")
	}
	return &conversation, nil
}

// IsParticipant reports membership without loading the full participant set.
func (s *ConversationService) IsParticipant(ctx context.Context, conversationID, userID string) (bool, error) {
	ctx = ensureContext(ctx)

	var count int64
	err := s.db.WithContext(ctx).
		Table("conversation_participants").
		Where("conversation_id = ? AND user_id = ?", strings.TrimSpace(conversationID), strings.TrimSpace(userID)).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("conversation service: participant check: %w", err)
	}
	return count > 0, nil
}

// Projection computes the last-message and unread aggregates for a viewer.
func (s *ConversationService) Projection(ctx context.Context, conversationID, viewerID string) (*ConversationProjection, error) {
	ctx = ensureContext(ctx)
	projection := &ConversationProjection{}

	var last models.Message
	err := s.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("created_at DESC, id DESC").
		First(&last).Error
	switch {
	case err == nil:
		projection.LastMessage = &LastMessage{
			Text: truncateRunes(last.Body, subtitleRuneLimit),
			Time: last.CreatedAt,
		}
	case errors.Is(err, gorm.ErrRecordNotFound):
		// no messages yet
	default:
		return nil, fmt.Errorf("conversation service: last message: %w", err)
	}

	unread, err := s.unreadCount(ctx, conversationID, viewerID)
	if err != nil {
		return nil, err
	}
	projection.UnreadCount = unread
	return projection, nil
}

func (s *ConversationService) unreadCount(ctx context.Context, conversationID, viewerID string) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).
		Model(&models.Message{}).
		Where("conversation_id = ? AND sender_id <> ?", conversationID, viewerID).
		Where("id NOT IN (?)", s.db.Table("message_reads").
			Select("message_id").
			Where("user_id = ?", viewerID)).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("conversation service: unread count: %w", err)
	}
	return count, nil
}

// findOrCreateDirect serialises direct creation per unordered pair. Losing a
// cross-process race surfaces as a unique violation on the pair key, which is
// resolved by re-reading the winner's row.
func (s *ConversationService) findOrCreateDirect(ctx context.Context, conversation models.Conversation, participants []models.User) (*models.Conversation, bool, error) {
	pairKey := models.DirectPairKey(participants[0].ID, participants[1].ID)

	unlock := s.pairLocks.lock(pairKey)
	defer unlock()

	if existing, err := s.findDirectByPairKey(ctx, pairKey); err != nil {
		return nil, false, err
	} else if existing != nil {
		metrics.ConversationsCreated.WithLabelValues(models.ConversationKindDirect, "existing").Inc()
		return existing, false, nil
	}

	conversation.PairKey = &pairKey
	if err := s.createWithParticipants(ctx, &conversation, participants); err != nil {
		if isUniqueConstraintError(err) {
			existing, findErr := s.findDirectByPairKey(ctx, pairKey)
			if findErr == nil && existing != nil {
				metrics.ConversationsCreated.WithLabelValues(models.ConversationKindDirect, "existing").Inc()
				return existing, false, nil
			}
			return nil, false, apperrors.ErrConflict.WithInternal(err)
		}
		return nil, false, fmt.Errorf("conversation service: create direct conversation: %w", err)
	}

	metrics.ConversationsCreated.WithLabelValues(models.ConversationKindDirect, "created").Inc()
	return &conversation, true, nil
}

func (s *ConversationService) findDirectByPairKey(ctx context.Context, pairKey string) (*models.Conversation, error) {
	var existing models.Conversation
	err := s.db.WithContext(ctx).
		Preload("Participants").
		First(&existing, "pair_key = ?", pairKey).Error
	if err == nil {
		return &existing, nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return nil, fmt.Errorf("conversation service: lookup pair %s: %w", pairKey, err)
}

// createWithParticipants persists the conversation and its membership in a
// single transaction so cancellation can never leave a half-created row.
func (s *ConversationService) createWithParticipants(ctx context.Context, conversation *models.Conversation, participants []models.User) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(conversation).Error; err != nil {
			return err
		}
		return tx.Model(conversation).Association("Participants").Append(&participants)
	})
}

func (s *ConversationService) loadParticipants(ctx context.Context, ids []string) ([]models.User, error) {
	var users []models.User
	if err := s.db.WithContext(ctx).Where("id IN ?", ids).Find(&users).Error; err != nil {
		return nil, fmt.Errorf("conversation service: load participants: %w", err)
	}
	if len(users) != len(ids) {
		return nil, apperrors.NewValidation("one or more participants do not exist")
	}
	return users, nil
}

// DisplayTitle resolves the title shown to a viewer: for direct conversations
// the other participant's name, otherwise the stored title verbatim.
func DisplayTitle(conversation *models.Conversation, viewerID string) string {
	if conversation.Kind != models.ConversationKindDirect {
		return conversation.Title
	}
	for _, participant := range conversation.Participants {
		if participant.ID != viewerID {
			return participant.Name
		}
	}
	return conversation.Title
}

func resolveKind(requested string, participantCount int) (string, error) {
	switch strings.TrimSpace(requested) {
	case models.ConversationKindProgram:
		return models.ConversationKindProgram, nil
	case "", models.ConversationKindDirect, models.ConversationKindGroup:
		if participantCount == 2 {
			return models.ConversationKindDirect, nil
		}
		return models.ConversationKindGroup, nil
	default:
		return "", apperrors.NewValidation(fmt.Sprintf("unknown conversation kind %q", requested))
	}
}

func isParticipant(conversation *models.Conversation, userID string) bool {
	for _, participant := range conversation.Participants {
		if participant.ID == userID {
			return true
		}
	}
	return false
}

func hasFinanceCounterpart(conversation *models.Conversation, viewerID string) bool {
	for _, participant := range conversation.Participants {
		if participant.ID == viewerID {
			continue
		}
		if role, err := identity.ParseRole(participant.Role); err == nil && identity.IsFinance(role) {
			return true
		}
	}
	return false
}
