package chat_test

import (
	"context"
	"testing"
	"time"

	"github.com/nfarrell/chat-stream-ui/internal/chat"
	"github.com/nfarrell/chat-stream-ui/internal/models"
	"github.com/stretchr/testify/require"
)

func seedEmptyConversation(store *mockStore) string {
	store.conversations = []models.Conversation{
		{ID: testConversationID, Title: models.DefaultConversationTitle},
	}
	store.messages[testConversationID] = nil
	return testConversationID
}

func TestSendMessageCreatesPlaceholderBeforeReturning(t *testing.T) {
	store := newMockStore()
	convID := seedEmptyConversation(store)
	llm := &mockStreamer{deltas: []string{"Hello there"}}
	titles := newMockTitleGenerator("Friendly Greeting")

	orch := chat.NewOrchestrator(llm, titles, store, &mockNotifier{}, discardLogger())

	userMsg, assistantMsg, err := orch.SendMessage(context.Background(), convID, "Hi")
	require.NoError(t, err)

	require.Equal(t, models.RoleUser, userMsg.Role)
	require.Equal(t, "Hi", userMsg.Content)
	require.Equal(t, models.RoleAssistant, assistantMsg.Role)
	require.True(t, assistantMsg.IsStreaming)
	require.Empty(t, assistantMsg.Content)

	// The placeholder row exists by the time SendMessage returns, so a
	// subscriber never observes a gap.
	msg, found, err := store.Message(context.Background(), convID, assistantMsg.ID)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, models.RoleAssistant, msg.Role)

	// The background turn reaches its terminal state on its own.
	require.Eventually(t, func() bool {
		msg, found, err := store.Message(context.Background(), convID, assistantMsg.ID)
		return err == nil && found && !msg.IsStreaming && msg.Content == "Hello there"
	}, 2*time.Second, 10*time.Millisecond)
}

func TestSendMessageGeneratesTitleForFirstMessageOnly(t *testing.T) {
	store := newMockStore()
	convID := seedEmptyConversation(store)
	llm := &mockStreamer{deltas: []string{"Sure"}}
	titles := newMockTitleGenerator("Trip Planning Help")
	notifier := &mockNotifier{}

	orch := chat.NewOrchestrator(llm, titles, store, notifier, discardLogger())

	_, _, err := orch.SendMessage(context.Background(), convID, "Help me plan a trip")
	require.NoError(t, err)

	select {
	case msg := <-titles.calls:
		require.Equal(t, "Help me plan a trip", msg)
	case <-time.After(2 * time.Second):
		t.Fatal("title generation was not scheduled for the first message")
	}

	require.Eventually(t, func() bool {
		conversations, err := store.Conversations(context.Background())
		return err == nil && len(conversations) == 1 && conversations[0].Title == "Trip Planning Help"
	}, 2*time.Second, 10*time.Millisecond)

	require.Eventually(t, func() bool {
		return len(notifier.conversationEvents()) == 1
	}, 2*time.Second, 10*time.Millisecond)

	// A follow-up message must not retitle the conversation.
	_, _, err = orch.SendMessage(context.Background(), convID, "And a packing list")
	require.NoError(t, err)

	select {
	case <-titles.calls:
		t.Fatal("title generation ran for a non-first message")
	case <-time.After(200 * time.Millisecond):
	}
}

func TestSendMessageTitleFailureKeepsDefault(t *testing.T) {
	store := newMockStore()
	convID := seedEmptyConversation(store)
	llm := &mockStreamer{deltas: []string{"Sure"}}
	titles := newMockTitleGenerator("")
	titles.err = context.DeadlineExceeded

	orch := chat.NewOrchestrator(llm, titles, store, &mockNotifier{}, discardLogger())

	_, _, err := orch.SendMessage(context.Background(), convID, "First message")
	require.NoError(t, err)

	select {
	case <-titles.calls:
	case <-time.After(2 * time.Second):
		t.Fatal("title generation was not scheduled")
	}

	// The failure is swallowed and the default title stays.
	time.Sleep(50 * time.Millisecond)
	conversations, err := store.Conversations(context.Background())
	require.NoError(t, err)
	require.Equal(t, models.DefaultConversationTitle, conversations[0].Title)
}
