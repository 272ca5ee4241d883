package chat_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"sync"

	"github.com/nfarrell/chat-stream-ui/internal/models"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type write struct {
	content     string
	isStreaming bool
}

// mockStore is a mutex-guarded in-memory chat.Store that records every
// content write in order.
type mockStore struct {
	mu            sync.Mutex
	conversations []models.Conversation
	messages      map[string][]models.Message
	writes        []write

	failStreamingWrites bool
}

func newMockStore() *mockStore {
	return &mockStore{messages: map[string][]models.Message{}}
}

func (m *mockStore) Conversations(context.Context) ([]models.Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.Conversation(nil), m.conversations...), nil
}

func (m *mockStore) AddConversation(_ context.Context, conversation models.Conversation) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.conversations = append(m.conversations, conversation)
	if _, ok := m.messages[conversation.ID]; !ok {
		m.messages[conversation.ID] = nil
	}
	return conversation.ID, nil
}

func (m *mockStore) UpdateConversation(_ context.Context, conversation models.Conversation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.conversations {
		if m.conversations[i].ID == conversation.ID {
			m.conversations[i] = conversation
			return nil
		}
	}
	return errors.New("conversation not found")
}

func (m *mockStore) DeleteConversation(_ context.Context, conversationID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.conversations {
		if m.conversations[i].ID == conversationID {
			m.conversations = append(m.conversations[:i], m.conversations[i+1:]...)
			break
		}
	}
	delete(m.messages, conversationID)
	return nil
}

func (m *mockStore) Messages(_ context.Context, conversationID string) ([]models.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.Message(nil), m.messages[conversationID]...), nil
}

func (m *mockStore) Message(_ context.Context, conversationID, messageID string) (models.Message, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, msg := range m.messages[conversationID] {
		if msg.ID == messageID {
			return msg, true, nil
		}
	}
	return models.Message{}, false, nil
}

func (m *mockStore) AddMessage(_ context.Context, conversationID string, message models.Message) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	message.ConversationID = conversationID
	m.messages[conversationID] = append(m.messages[conversationID], message)
	return message.ID, nil
}

func (m *mockStore) UpdateMessageContent(
	_ context.Context, conversationID, messageID, content string, isStreaming bool,
) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.writes = append(m.writes, write{content: content, isStreaming: isStreaming})
	if m.failStreamingWrites && isStreaming {
		return errors.New("store unavailable")
	}

	msgs := m.messages[conversationID]
	for i := range msgs {
		if msgs[i].ID == messageID {
			msgs[i].Content = content
			msgs[i].IsStreaming = isStreaming
			return nil
		}
	}
	return fmt.Errorf("message %s not found", messageID)
}

func (m *mockStore) recordedWrites() []write {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]write(nil), m.writes...)
}

// mockStreamer yields its deltas in order, then err (if set) as the final
// iteration value.
type mockStreamer struct {
	deltas []string
	err    error

	mu      sync.Mutex
	history []models.Message
}

func (m *mockStreamer) Chat(_ context.Context, messages []models.Message) iter.Seq2[string, error] {
	m.mu.Lock()
	m.history = append([]models.Message(nil), messages...)
	m.mu.Unlock()

	return func(yield func(string, error) bool) {
		for _, delta := range m.deltas {
			if !yield(delta, nil) {
				return
			}
		}
		if m.err != nil {
			yield("", m.err)
		}
	}
}

func (m *mockStreamer) receivedHistory() []models.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.history
}

type mockTitleGenerator struct {
	title string
	err   error

	calls chan string
}

func newMockTitleGenerator(title string) *mockTitleGenerator {
	return &mockTitleGenerator{title: title, calls: make(chan string, 8)}
}

func (m *mockTitleGenerator) GenerateTitle(_ context.Context, message string) (string, error) {
	m.calls <- message
	return m.title, m.err
}

type mockNotifier struct {
	mu              sync.Mutex
	messageEvents   []string
	conversationIDs []string
}

func (m *mockNotifier) MessageChanged(_, messageID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messageEvents = append(m.messageEvents, messageID)
}

func (m *mockNotifier) ConversationChanged(conversationID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.conversationIDs = append(m.conversationIDs, conversationID)
}

func (m *mockNotifier) conversationEvents() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.conversationIDs...)
}
