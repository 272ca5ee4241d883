package handlers

import (
	"context"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/nfarrell/chat-stream-ui/internal/models"
)

type conversation struct {
	ID    string
	Title string

	Active bool
}

type message struct {
	ID        string
	Role      string
	Content   template.HTML
	Timestamp time.Time

	IsStreaming bool
}

// HandleChats processes chat interactions through HTTP POST requests,
// managing both new conversation creation and message handling. It accepts
// user messages through form data, creates the conversation context when
// needed, and hands off to the orchestrator, which streams the AI response
// through Server-Sent Events while this handler returns rendered templates.
//
// The handler expects a "message" form field and an optional
// "conversation_id" field. If no conversation_id is provided, it creates a
// new conversation. For new conversations it renders the complete chatbox
// template; for existing ones it renders the user message and the assistant
// placeholder individually.
func (m Main) HandleChats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		m.logger.Error("Method not allowed", slog.String("method", r.Method))
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	msg := r.FormValue("message")
	if msg == "" {
		m.logger.Error("Message is required")
		http.Error(w, "Message is required", http.StatusBadRequest)
		return
	}

	var err error

	conversationID := r.FormValue("conversation_id")
	// We track if this is a new conversation to determine the appropriate template rendering strategy
	isNewConversation := false
	if conversationID == "" {
		conversationID, err = m.newConversation()
		if err != nil {
			m.logger.Error("Failed to create new conversation", slog.String(errLoggerKey, err.Error()))
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		isNewConversation = true
	}

	// The orchestrator appends the user message, creates the streaming
	// placeholder, and starts the generation turn in the background.
	userMsg, assistantMsg, err := m.orchestrator.SendMessage(r.Context(), conversationID, msg)
	if err != nil {
		m.logger.Error("Failed to send message",
			slog.String("conversationID", conversationID),
			slog.String(errLoggerKey, err.Error()))
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	if isNewConversation {
		messages, err := m.store.Messages(r.Context(), conversationID)
		if err != nil {
			m.logger.Error("Failed to get messages",
				slog.String("conversationID", conversationID),
				slog.String(errLoggerKey, err.Error()))
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		msgs := make([]message, len(messages))
		for i := range messages {
			mv, err := m.messageView(messages[i])
			if err != nil {
				m.logger.Error("Failed to render contents",
					slog.String("message", fmt.Sprintf("%+v", messages[i])),
					slog.String(errLoggerKey, err.Error()))
				http.Error(w, err.Error(), http.StatusInternalServerError)
				return
			}
			msgs[i] = mv
		}

		data := homePageData{
			CurrentConversationID: conversationID,
			Messages:              msgs,
		}
		if err := m.templates.ExecuteTemplate(w, "chatbox", data); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
		return
	}

	userView, err := m.messageView(userMsg)
	if err != nil {
		m.logger.Error("Failed to render contents",
			slog.String("message", fmt.Sprintf("%+v", userMsg)),
			slog.String(errLoggerKey, err.Error()))
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if err := m.templates.ExecuteTemplate(w, "user_message", userView); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	assistantView, err := m.messageView(assistantMsg)
	if err != nil {
		m.logger.Error("Failed to render contents",
			slog.String("message", fmt.Sprintf("%+v", assistantMsg)),
			slog.String(errLoggerKey, err.Error()))
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if err := m.templates.ExecuteTemplate(w, "ai_message", assistantView); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// HandleDeleteConversation removes a conversation and all of its messages,
// then pushes the refreshed conversation list to subscribers.
func (m Main) HandleDeleteConversation(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	conversationID := r.FormValue("conversation_id")
	if conversationID == "" {
		http.Error(w, "Conversation ID is required", http.StatusBadRequest)
		return
	}

	if err := m.store.DeleteConversation(r.Context(), conversationID); err != nil {
		m.logger.Error("Failed to delete conversation",
			slog.String("conversationID", conversationID),
			slog.String(errLoggerKey, err.Error()))
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	m.ConversationChanged("")
	w.WriteHeader(http.StatusOK)
}

func (m Main) newConversation() (string, error) {
	newConversation := models.Conversation{
		ID:    uuid.New().String(),
		Title: models.DefaultConversationTitle,
	}
	newID, err := m.store.AddConversation(context.Background(), newConversation)
	if err != nil {
		return "", fmt.Errorf("failed to add conversation: %w", err)
	}

	m.ConversationChanged(newID)

	return newID, nil
}
