package handlers

import (
	"context"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"strings"
	"time"

	chatstreamui "github.com/nfarrell/chat-stream-ui"
	"github.com/nfarrell/chat-stream-ui/internal/chat"
	"github.com/nfarrell/chat-stream-ui/internal/markdown"
	"github.com/nfarrell/chat-stream-ui/internal/models"
	"github.com/tmaxmax/go-sse"
)

const errLoggerKey = "err"

const conversationsSSETopic = "conversations"

// SSE event types for real-time updates.
var (
	conversationsSSEType = sse.Type("conversations")
	messagesSSEType      = sse.Type("messages")
)

// Main handles the core functionality of the chat application, managing
// server-sent events, HTML templates, and the interactions between the
// conversation orchestrator, the store, and the markdown renderer. It
// implements chat.Notifier: store changes are pushed to subscribers as
// rendered HTML snapshots derived by re-reading the affected rows.
type Main struct {
	sseSrv    *sse.Server
	templates *template.Template
	renderer  markdown.Renderer

	store        chat.Store
	orchestrator chat.Orchestrator

	logger *slog.Logger
}

// NewMain creates a new Main instance with the provided LLM, title generator,
// and store implementations. It initializes the SSE server with default
// configurations and parses the required HTML templates from the embedded
// filesystem. The SSE server is configured to handle both default events and
// message-specific topics.
func NewMain(
	llm chat.Streamer,
	titles chat.TitleGenerator,
	store chat.Store,
	logger *slog.Logger,
) (Main, error) {
	// We parse templates from three distinct directories to separate layout, pages, and partial views
	tmpl, err := template.ParseFS(
		chatstreamui.TemplateFS,
		"templates/layout/*.html",
		"templates/pages/*.html",
		"templates/partials/*.html",
	)
	if err != nil {
		return Main{}, err
	}

	m := Main{
		sseSrv: &sse.Server{
			OnSession: func(s *sse.Session) (sse.Subscription, bool) {
				// We start with default topics that all clients should subscribe to
				topics := []string{sse.DefaultTopic, conversationsSSETopic}

				// We create a message-specific topic if the client requests updates for a particular message
				messageID := s.Req.URL.Query().Get("message_id")
				if messageID != "" {
					topics = append(topics, messageIDTopic(messageID))
				}

				return sse.Subscription{
					Client:      s,
					LastEventID: s.LastEventID,
					Topics:      topics,
				}, true
			},
		},
		templates: tmpl,
		renderer:  markdown.NewRenderer(),
		store:     store,
		logger:    logger.With(slog.String("module", "handlers")),
	}

	// The orchestrator publishes through m, which only touches the fields set above.
	m.orchestrator = chat.NewOrchestrator(llm, titles, store, m, logger)

	return m, nil
}

func messageIDTopic(messageID string) string {
	return fmt.Sprintf("message-%s", messageID)
}

// HandleSSE serves the server-sent events endpoint that clients subscribe to
// for conversation-list and streaming-message updates.
func (m Main) HandleSSE(w http.ResponseWriter, r *http.Request) {
	m.sseSrv.ServeHTTP(w, r)
}

// MessageChanged implements chat.Notifier. It re-reads the message row,
// renders the latest snapshot, and publishes it to the message's topic. When
// the row has reached its terminal state a close event follows, so clients
// can drop their subscription.
func (m Main) MessageChanged(conversationID, messageID string) {
	msg, found, err := m.store.Message(context.Background(), conversationID, messageID)
	if err != nil {
		m.logger.Error("Failed to read message for publish",
			slog.String("messageID", messageID),
			slog.String(errLoggerKey, err.Error()))
		return
	}
	if !found {
		return
	}

	content, err := m.renderer.Render(msg.Content, msg.IsStreaming)
	if err != nil {
		m.logger.Error("Failed to render message content",
			slog.String("messageID", messageID),
			slog.String(errLoggerKey, err.Error()))
		return
	}

	ev := sse.Message{Type: messagesSSEType}
	ev.AppendData(string(content))
	if err := m.sseSrv.Publish(&ev, messageIDTopic(messageID)); err != nil {
		m.logger.Error("Failed to publish message",
			slog.String("messageID", messageID),
			slog.String(errLoggerKey, err.Error()))
		return
	}

	if !msg.IsStreaming {
		closeEv := sse.Message{Type: sse.Type("closeMessage")}
		closeEv.AppendData("bye")
		_ = m.sseSrv.Publish(&closeEv, messageIDTopic(messageID))
	}
}

// ConversationChanged implements chat.Notifier. It republishes the rendered
// conversation list whenever a conversation is created, retitled, or deleted.
func (m Main) ConversationChanged(activeID string) {
	divs, err := m.conversationDivs(activeID)
	if err != nil {
		m.logger.Error("Failed to render conversation list",
			slog.String(errLoggerKey, err.Error()))
		return
	}

	ev := sse.Message{Type: conversationsSSEType}
	ev.AppendData(divs)
	if err := m.sseSrv.Publish(&ev, conversationsSSETopic); err != nil {
		m.logger.Error("Failed to publish conversation list",
			slog.String(errLoggerKey, err.Error()))
	}
}

func (m Main) conversationDivs(activeID string) (string, error) {
	conversations, err := m.store.Conversations(context.Background())
	if err != nil {
		return "", fmt.Errorf("failed to get conversations: %w", err)
	}

	var sb strings.Builder
	for _, c := range conversations {
		err := m.templates.ExecuteTemplate(&sb, "conversation_title", conversation{
			ID:     c.ID,
			Title:  c.Title,
			Active: c.ID == activeID,
		})
		if err != nil {
			return "", fmt.Errorf("failed to execute conversation_title template: %w", err)
		}
	}
	return sb.String(), nil
}

// messageView converts a stored message into its template form, rendering the
// content through the segmenter-backed markdown renderer.
func (m Main) messageView(msg models.Message) (message, error) {
	content, err := m.renderer.Render(msg.Content, msg.IsStreaming)
	if err != nil {
		return message{}, fmt.Errorf("failed to render contents: %w", err)
	}
	return message{
		ID:          msg.ID,
		Role:        string(msg.Role),
		Content:     content,
		Timestamp:   msg.Timestamp,
		IsStreaming: msg.IsStreaming,
	}, nil
}

// Shutdown gracefully terminates the Main instance's SSE server. It
// broadcasts a close message to all connected clients and waits up to 5
// seconds for connections to terminate. After the timeout, any remaining
// connections are forcefully closed.
func (m Main) Shutdown(ctx context.Context) error {
	e := &sse.Message{Type: sse.Type("closeChat")}
	// We create a close event that complies with SSE spec requiring data
	e.AppendData("bye")

	// We ignore the error here since we're shutting down anyway
	_ = m.sseSrv.Publish(e)

	ctx, cancel := context.WithTimeout(ctx, time.Second*5)
	defer cancel()

	return m.sseSrv.Shutdown(ctx)
}
