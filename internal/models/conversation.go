package models

// DefaultConversationTitle is used until the background title generator
// produces a real one, and kept permanently if that generation fails.
const DefaultConversationTitle = "New Chat"

// Conversation represents a message thread in the chat system. It provides basic
// identification and labeling capabilities for organizing message histories.
type Conversation struct {
	ID    string
	Title string
}
