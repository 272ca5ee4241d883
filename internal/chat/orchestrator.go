package chat

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nfarrell/chat-stream-ui/internal/models"
)

// Orchestrator owns the lifecycle of an assistant turn: it appends the user
// message, schedules title generation for brand-new conversations, creates
// the streaming placeholder, and hands off to the StreamConsumer in the
// background so the enqueuing request never blocks on model completion.
type Orchestrator struct {
	store    Store
	titles   TitleGenerator
	notifier Notifier
	consumer StreamConsumer

	logger *slog.Logger
}

// NewOrchestrator wires an Orchestrator and its StreamConsumer from the given
// collaborators.
func NewOrchestrator(
	llm Streamer,
	titles TitleGenerator,
	store Store,
	notifier Notifier,
	logger *slog.Logger,
) Orchestrator {
	return Orchestrator{
		store:    store,
		titles:   titles,
		notifier: notifier,
		consumer: NewStreamConsumer(llm, store, notifier, logger),
		logger:   logger.With(slog.String("module", "orchestrator")),
	}
}

// SendMessage stores the user's message and starts generating the assistant's
// reply. The placeholder assistant row is created before the consumer
// goroutine starts, so subscribers always have a row to observe. The returned
// messages carry their store-assigned IDs.
func (o Orchestrator) SendMessage(
	ctx context.Context, conversationID, content string,
) (userMsg, assistantMsg models.Message, err error) {
	um := models.Message{
		ID:             uuid.New().String(),
		ConversationID: conversationID,
		Role:           models.RoleUser,
		Content:        content,
		Timestamp:      time.Now(),
	}
	userID, err := o.store.AddMessage(ctx, conversationID, um)
	if err != nil {
		return models.Message{}, models.Message{}, fmt.Errorf("failed to add user message: %w", err)
	}
	um.ID = userID

	messages, err := o.store.Messages(ctx, conversationID)
	if err != nil {
		return models.Message{}, models.Message{}, fmt.Errorf("failed to get messages: %w", err)
	}
	if len(messages) == 1 {
		go o.generateTitle(conversationID, content)
	}

	am := models.Message{
		ID:             uuid.New().String(),
		ConversationID: conversationID,
		Role:           models.RoleAssistant,
		Timestamp:      time.Now(),
		IsStreaming:    true,
	}
	assistantID, err := o.store.AddMessage(ctx, conversationID, am)
	if err != nil {
		return models.Message{}, models.Message{}, fmt.Errorf("failed to add assistant placeholder: %w", err)
	}
	am.ID = assistantID

	go o.consumer.Run(context.Background(), conversationID, assistantID)

	return um, am, nil
}

// generateTitle runs as a fire-and-forget task. Any failure is logged and
// swallowed, leaving the default title in place.
func (o Orchestrator) generateTitle(conversationID, firstMessage string) {
	title, err := o.titles.GenerateTitle(context.Background(), firstMessage)
	if err != nil {
		o.logger.Error("Error generating conversation title",
			slog.String("conversationID", conversationID),
			slog.String("err", err.Error()))
		return
	}

	title = strings.Trim(strings.TrimSpace(title), `"`)
	if title == "" {
		return
	}

	if err := o.store.UpdateConversation(context.Background(), models.Conversation{
		ID:    conversationID,
		Title: title,
	}); err != nil {
		o.logger.Error("Failed to update conversation title",
			slog.String("conversationID", conversationID),
			slog.String("err", err.Error()))
		return
	}

	o.notifier.ConversationChanged(conversationID)
}
