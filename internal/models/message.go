package models

import "time"

// Message represents an individual communication entry within a conversation. Assistant
// messages are created empty with IsStreaming set, and their Content grows monotonically
// (each stored value is a prefix of the next) until the single terminal write clears
// IsStreaming. User messages are stored complete and never change.
type Message struct {
	ID             string
	ConversationID string
	Role           Role
	Content        string
	Timestamp      time.Time

	// IsStreaming is true from placeholder creation until the stream consumer
	// reaches a terminal state; after that it is permanently false.
	IsStreaming bool
}

// Role represents the role of a message participant.
type Role string

const (
	// RoleUser represents a user message.
	RoleUser Role = "user"
	// RoleAssistant represents an assistant message.
	RoleAssistant Role = "assistant"
)
