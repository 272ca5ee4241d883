package chat

import (
	"context"
	"iter"
	"log/slog"

	"github.com/nfarrell/chat-stream-ui/internal/models"
)

// FallbackResponse replaces whatever partial content had accumulated when a
// generation turn fails. Partial output is never presented as a finished
// answer; the terminal state is either the complete response or this text.
const FallbackResponse = "I'm sorry, I encountered an error while generating a response."

// Streamer is a streaming language model source. Given a role-tagged message
// history it returns an iterator of incremental text deltas; the stream ends
// by exhaustion, and failures are yielded as the iterator's error value.
type Streamer interface {
	Chat(ctx context.Context, messages []models.Message) iter.Seq2[string, error]
}

// TitleGenerator produces a short conversation title from its first message
// via a single non-streaming model call.
type TitleGenerator interface {
	GenerateTitle(ctx context.Context, message string) (string, error)
}

// Store defines the persistence operations for conversations and messages.
// Messages are returned in stable insertion order, and UpdateMessageContent
// applies its fields atomically.
type Store interface {
	Conversations(ctx context.Context) ([]models.Conversation, error)
	AddConversation(ctx context.Context, conversation models.Conversation) (string, error)
	UpdateConversation(ctx context.Context, conversation models.Conversation) error
	DeleteConversation(ctx context.Context, conversationID string) error

	Messages(ctx context.Context, conversationID string) ([]models.Message, error)
	Message(ctx context.Context, conversationID, messageID string) (models.Message, bool, error)
	AddMessage(ctx context.Context, conversationID string, message models.Message) (string, error)
	UpdateMessageContent(ctx context.Context, conversationID, messageID, content string, isStreaming bool) error
}

// Notifier is signalled after every persisted change so subscribers can
// re-read the affected row and re-render. Implementations must derive what
// they push from the store, not from the signal itself.
type Notifier interface {
	MessageChanged(conversationID, messageID string)
	ConversationChanged(conversationID string)
}

// StreamConsumer drives a single assistant turn against the model source. It
// is the only writer of the target message's content and streaming flag for
// the duration of Run.
type StreamConsumer struct {
	llm   Streamer
	store Store

	notifier Notifier
	logger   *slog.Logger
}

// NewStreamConsumer returns a StreamConsumer writing through the given store
// and signalling the notifier after each persisted change.
func NewStreamConsumer(llm Streamer, store Store, notifier Notifier, logger *slog.Logger) StreamConsumer {
	return StreamConsumer{
		llm:      llm,
		store:    store,
		notifier: notifier,
		logger:   logger.With(slog.String("module", "consumer")),
	}
}

// Run consumes the model's delta stream for the given assistant message,
// flushing accumulated content per ShouldFlush and finishing with a single
// terminal write that clears the streaming flag. Run never reports an error
// to its caller: a failure mid-stream discards the partial content and
// resolves through the same store channel as success, as a terminal write of
// FallbackResponse.
func (c StreamConsumer) Run(ctx context.Context, conversationID, messageID string) {
	messages, err := c.store.Messages(ctx, conversationID)
	if err != nil {
		c.logger.Error("Failed to load conversation history",
			slog.String("conversationID", conversationID),
			slog.String("err", err.Error()))
		c.terminate(ctx, conversationID, messageID, FallbackResponse)
		return
	}

	// The still-empty placeholder is excluded from the prompt context.
	history := make([]models.Message, 0, len(messages))
	for _, msg := range messages {
		if msg.IsStreaming {
			continue
		}
		history = append(history, msg)
	}

	fullContent := ""
	chunkCount := 0

	for delta, err := range c.llm.Chat(ctx, history) {
		if err != nil {
			c.logger.Error("Error from llm provider",
				slog.String("messageID", messageID),
				slog.String("err", err.Error()))
			c.terminate(ctx, conversationID, messageID, FallbackResponse)
			return
		}

		// An absent delta is an empty contribution, not an error.
		if delta == "" {
			continue
		}

		fullContent += delta
		chunkCount++
		if !ShouldFlush(chunkCount, len(fullContent)) {
			continue
		}

		if err := c.store.UpdateMessageContent(ctx, conversationID, messageID, fullContent, true); err != nil {
			c.logger.Error("Failed to flush streaming content",
				slog.String("messageID", messageID),
				slog.String("err", err.Error()))
			c.terminate(ctx, conversationID, messageID, FallbackResponse)
			return
		}
		c.notifier.MessageChanged(conversationID, messageID)
	}

	c.terminate(ctx, conversationID, messageID, fullContent)
}

// terminate performs the single authoritative terminal write for the message.
// A failure here is logged and swallowed; there is nothing further to fall
// back to.
func (c StreamConsumer) terminate(ctx context.Context, conversationID, messageID, content string) {
	if err := c.store.UpdateMessageContent(ctx, conversationID, messageID, content, false); err != nil {
		c.logger.Error("Failed to write terminal message state",
			slog.String("messageID", messageID),
			slog.String("err", err.Error()))
		return
	}
	c.notifier.MessageChanged(conversationID, messageID)
}
