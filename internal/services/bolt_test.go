package services_test

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/nfarrell/chat-stream-ui/internal/models"
	"github.com/nfarrell/chat-stream-ui/internal/services"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) services.BoltDB {
	t.Helper()

	store, err := services.NewBoltDB(filepath.Join(t.TempDir(), "store.db"))
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, store.Close())
	})
	return store
}

func TestConversationLifecycle(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	first, err := store.AddConversation(ctx, models.Conversation{ID: "a", Title: models.DefaultConversationTitle})
	require.NoError(t, err)
	second, err := store.AddConversation(ctx, models.Conversation{ID: "b", Title: models.DefaultConversationTitle})
	require.NoError(t, err)

	// Most recent first.
	conversations, err := store.Conversations(ctx)
	require.NoError(t, err)
	require.Len(t, conversations, 2)
	require.Equal(t, second, conversations[0].ID)
	require.Equal(t, first, conversations[1].ID)

	require.NoError(t, store.UpdateConversation(ctx, models.Conversation{ID: first, Title: "Renamed"}))
	conversations, err = store.Conversations(ctx)
	require.NoError(t, err)
	require.Equal(t, "Renamed", conversations[1].Title)

	require.NoError(t, store.DeleteConversation(ctx, first))
	conversations, err = store.Conversations(ctx)
	require.NoError(t, err)
	require.Len(t, conversations, 1)
	require.Equal(t, second, conversations[0].ID)
}

func TestMessagesKeepInsertionOrder(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	convID, err := store.AddConversation(ctx, models.Conversation{ID: "conv"})
	require.NoError(t, err)

	// Enough messages to cross a sequence-number digit boundary.
	for i := 0; i < 12; i++ {
		_, err := store.AddMessage(ctx, convID, models.Message{
			ID:      fmt.Sprintf("m%d", i),
			Role:    models.RoleUser,
			Content: fmt.Sprintf("message %d", i),
		})
		require.NoError(t, err)
	}

	messages, err := store.Messages(ctx, convID)
	require.NoError(t, err)
	require.Len(t, messages, 12)
	for i, msg := range messages {
		require.Equal(t, fmt.Sprintf("message %d", i), msg.Content)
		require.Equal(t, convID, msg.ConversationID)
	}
}

func TestUpdateMessageContent(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	convID, err := store.AddConversation(ctx, models.Conversation{ID: "conv"})
	require.NoError(t, err)

	msgID, err := store.AddMessage(ctx, convID, models.Message{
		ID:          "ai",
		Role:        models.RoleAssistant,
		IsStreaming: true,
	})
	require.NoError(t, err)

	require.NoError(t, store.UpdateMessageContent(ctx, convID, msgID, "partial", true))
	msg, found, err := store.Message(ctx, convID, msgID)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, "partial", msg.Content)
	require.True(t, msg.IsStreaming)
	require.Equal(t, models.RoleAssistant, msg.Role)

	require.NoError(t, store.UpdateMessageContent(ctx, convID, msgID, "partial and done", false))
	msg, found, err = store.Message(ctx, convID, msgID)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, "partial and done", msg.Content)
	require.False(t, msg.IsStreaming)
}

func TestMessageNotFound(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	convID, err := store.AddConversation(ctx, models.Conversation{ID: "conv"})
	require.NoError(t, err)

	_, found, err := store.Message(ctx, convID, "missing")
	require.NoError(t, err)
	require.False(t, found)

	// Patching a missing message is silently ignored.
	require.NoError(t, store.UpdateMessageContent(ctx, convID, "missing", "content", false))
}

func TestDeleteConversationRemovesMessages(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	convID, err := store.AddConversation(ctx, models.Conversation{ID: "conv"})
	require.NoError(t, err)
	_, err = store.AddMessage(ctx, convID, models.Message{ID: "m", Role: models.RoleUser, Content: "hi"})
	require.NoError(t, err)

	require.NoError(t, store.DeleteConversation(ctx, convID))

	messages, err := store.Messages(ctx, convID)
	require.NoError(t, err)
	require.Empty(t, messages)

	// Deleting twice is not an error.
	require.NoError(t, store.DeleteConversation(ctx, convID))
}
