package handlers

import (
	"fmt"
	"log/slog"
	"net/http"
)

type homePageData struct {
	Conversations         []conversation
	CurrentConversationID string
	Messages              []message
}

// HandleHome renders the home page with the conversation list and, when a
// conversation_id query parameter is present, that conversation's messages
// including any in-flight streaming content.
func (m Main) HandleHome(w http.ResponseWriter, r *http.Request) {
	currentID := r.URL.Query().Get("conversation_id")

	conversations, err := m.store.Conversations(r.Context())
	if err != nil {
		m.logger.Error("Failed to get conversations", slog.String(errLoggerKey, err.Error()))
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	cs := make([]conversation, len(conversations))
	for i, c := range conversations {
		cs[i] = conversation{
			ID:     c.ID,
			Title:  c.Title,
			Active: c.ID == currentID,
		}
	}

	data := homePageData{
		Conversations:         cs,
		CurrentConversationID: currentID,
	}

	if currentID != "" {
		messages, err := m.store.Messages(r.Context(), currentID)
		if err != nil {
			m.logger.Error("Failed to get messages",
				slog.String("conversationID", currentID),
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
		data.Messages = msgs
	}

	if err := m.templates.ExecuteTemplate(w, "home.html", data); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
