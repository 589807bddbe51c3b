package services

import (
	"context"
	"fmt"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/progdesk/comms/internal/database/testutil"
	"github.com/progdesk/comms/internal/models"
	apperrors "github.com/progdesk/comms/pkg/errors"
)

func newMessageFixture(t *testing.T, db *gorm.DB) (*ConversationService, *MessageService, *models.Conversation) {
	t.Helper()

	seedUser(t, db, "user-1", "Alice", "user")
	seedUser(t, db, "fin-1", "Frank", "finance")

	conversations, err := NewConversationService(db)
	require.NoError(t, err)
	messages, err := NewMessageService(db, conversations)
	require.NoError(t, err)

	conv, _, err := conversations.Create(context.Background(), CreateConversationInput{
		CreatorID:      "user-1",
		Title:          "Frank",
		ParticipantIDs: []string{"fin-1"},
	})
	require.NoError(t, err)

	return conversations, messages, conv
}

func TestMessageServiceAppendAndOrdering(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	_, messages, conv := newMessageFixture(t, db)

	// Freeze the clock so every message lands in the same millisecond; the
	// monotonic id source must still keep them in send order.
	frozen := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	messages.timeNow = func() time.Time { return frozen }

	ctx := context.Background()
	sent := make([]string, 0, 5)
	for i := 0; i < 5; i++ {
		result, err := messages.Append(ctx, AppendMessageInput{
			ConversationID: conv.ID,
			SenderID:       "user-1",
			Text:           fmt.Sprintf("message %d", i),
		})
		require.NoError(t, err)
		sent = append(sent, result.Message.ID)
	}

	require.True(t, sort.StringsAreSorted(sent))

	listed, err := messages.List(ctx, conv.ID, "fin-1")
	require.NoError(t, err)
	require.Len(t, listed, 5)
	for i, message := range listed {
		require.Equal(t, sent[i], message.ID)
		require.Equal(t, fmt.Sprintf("message %d", i), message.Body)
		require.Len(t, message.Reads, 1)
		require.Equal(t, "user-1", message.Reads[0].UserID)
	}
}

func TestMessageServiceAppendReturnsProjection(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	_, messages, conv := newMessageFixture(t, db)

	ctx := context.Background()
	result, err := messages.Append(ctx, AppendMessageInput{
		ConversationID: conv.ID,
		SenderID:       "user-1",
		Text:           "hello",
	})
	require.NoError(t, err)
	require.NotNil(t, result.Projection)
	require.NotNil(t, result.Projection.LastMessage)
	require.Equal(t, "hello", result.Projection.LastMessage.Text)

	// The sender reads their own message implicitly.
	require.EqualValues(t, 0, result.Projection.UnreadCount)

	unread, err := messages.UnreadCount(ctx, conv.ID, "fin-1")
	require.NoError(t, err)
	require.EqualValues(t, 1, unread)
}

func TestMessageServiceAppendBumpsConversation(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	_, messages, conv := newMessageFixture(t, db)

	later := time.Now().Add(time.Hour).UTC()
	messages.timeNow = func() time.Time { return later }

	_, err := messages.Append(context.Background(), AppendMessageInput{
		ConversationID: conv.ID,
		SenderID:       "user-1",
		Text:           "bump",
	})
	require.NoError(t, err)

	var reloaded models.Conversation
	require.NoError(t, db.First(&reloaded, "id = ?", conv.ID).Error)
	require.WithinDuration(t, later, reloaded.UpdatedAt, time.Second)
}

func TestMessageServiceAppendValidation(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	_, messages, conv := newMessageFixture(t, db)

	ctx := context.Background()

	cases := []struct {
		name  string
		input AppendMessageInput
	}{
		{"empty text", AppendMessageInput{ConversationID: conv.ID, SenderID: "user-1"}},
		{"blank text", AppendMessageInput{ConversationID: conv.ID, SenderID: "user-1", Text: "   "}},
		{"unknown kind", AppendMessageInput{ConversationID: conv.ID, SenderID: "user-1", Kind: "gif", Text: "x"}},
		{"file without url", AppendMessageInput{ConversationID: conv.ID, SenderID: "user-1", Kind: models.MessageKindFile, FileName: "report.pdf"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := messages.Append(ctx, tc.input)
			require.Error(t, err)
			require.Equal(t, apperrors.ErrValidation.Code, apperrors.FromError(err).Code)
		})
	}

	// File messages may omit text entirely.
	result, err := messages.Append(ctx, AppendMessageInput{
		ConversationID: conv.ID,
		SenderID:       "user-1",
		Kind:           models.MessageKindFile,
		FileName:       "report.pdf",
		FileURL:        "https://files.example.com/report.pdf",
		FileSize:       2048,
	})
	require.NoError(t, err)
	require.Equal(t, models.MessageKindFile, result.Message.Kind)
}

func TestMessageServiceParticipantScoping(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	_, messages, conv := newMessageFixture(t, db)
	seedUser(t, db, "user-9", "Mallory", "user")

	ctx := context.Background()

	_, err := messages.Append(ctx, AppendMessageInput{
		ConversationID: conv.ID,
		SenderID:       "user-9",
		Text:           "let me in",
	})
	require.Error(t, err)
	require.Equal(t, apperrors.ErrForbidden.Code, apperrors.FromError(err).Code)

	_, err = messages.List(ctx, conv.ID, "user-9")
	require.Error(t, err)
	require.Equal(t, apperrors.ErrForbidden.Code, apperrors.FromError(err).Code)

	_, err = messages.List(ctx, "missing-conversation", "user-9")
	require.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestMessageServiceMarkConversationRead(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	_, messages, conv := newMessageFixture(t, db)

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		_, err := messages.Append(ctx, AppendMessageInput{
			ConversationID: conv.ID,
			SenderID:       "user-1",
			Text:           fmt.Sprintf("note %d", i),
		})
		require.NoError(t, err)
	}

	unread, err := messages.UnreadCount(ctx, conv.ID, "fin-1")
	require.NoError(t, err)
	require.EqualValues(t, 3, unread)

	require.NoError(t, messages.MarkConversationRead(ctx, conv.ID, "fin-1"))

	unread, err = messages.UnreadCount(ctx, conv.ID, "fin-1")
	require.NoError(t, err)
	require.EqualValues(t, 0, unread)

	// Re-running inserts nothing new.
	require.NoError(t, messages.MarkConversationRead(ctx, conv.ID, "fin-1"))

	var reads int64
	require.NoError(t, db.Model(&models.MessageRead{}).
		Where("user_id = ?", "fin-1").
		Count(&reads).Error)
	require.EqualValues(t, 3, reads)
}

func TestMessageServiceListingDoesNotMutateReadState(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	_, messages, conv := newMessageFixture(t, db)

	ctx := context.Background()
	_, err := messages.Append(ctx, AppendMessageInput{
		ConversationID: conv.ID,
		SenderID:       "user-1",
		Text:           "unread until acknowledged",
	})
	require.NoError(t, err)

	_, err = messages.List(ctx, conv.ID, "fin-1")
	require.NoError(t, err)

	unread, err := messages.UnreadCount(ctx, conv.ID, "fin-1")
	require.NoError(t, err)
	require.EqualValues(t, 1, unread)
}
