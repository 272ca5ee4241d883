package services

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"

	"github.com/nfarrell/chat-stream-ui/internal/models"
	bolt "go.etcd.io/bbolt"
)

// BoltDB implements the chat.Store interface using a BoltDB backend for
// persistent storage of conversations and messages. Conversations live in a
// single bucket; each conversation owns a dedicated message bucket whose keys
// are zero-padded sequence numbers, so iteration order is insertion order.
type BoltDB struct {
	db *bolt.DB
}

const conversationsBucket = "conversations"

// NewBoltDB creates a new BoltDB instance with the specified file path. It
// initializes the database with the required buckets and returns an error if
// the database cannot be opened or initialized. The database file is created
// with 0600 permissions if it doesn't exist.
func NewBoltDB(path string) (BoltDB, error) {
	db, err := bolt.Open(path, 0600, nil)
	if err != nil {
		return BoltDB{}, fmt.Errorf("failed to open bolt db: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(conversationsBucket))
		return err
	})

	return BoltDB{db: db}, err
}

// Close releases the underlying database file.
func (b BoltDB) Close() error {
	return b.db.Close()
}

func messageBucketName(conversationID string) []byte {
	return []byte(fmt.Sprintf("messages-%s", conversationID))
}

// sequencedID prefixes an ID with a zero-padded bucket sequence number so
// byte-ordered bucket iteration matches insertion order.
func sequencedID(b *bolt.Bucket, id string) (string, error) {
	seq, err := b.NextSequence()
	if err != nil {
		return "", fmt.Errorf("failed to get next sequence: %w", err)
	}
	return fmt.Sprintf("%010d-%s", seq, id), nil
}

// Conversations retrieves all stored conversations, most recent first.
func (b BoltDB) Conversations(context.Context) ([]models.Conversation, error) {
	var conversations []models.Conversation
	err := b.db.View(func(tx *bolt.Tx) error {
		bkt := tx.Bucket([]byte(conversationsBucket))
		if bkt == nil {
			return nil
		}

		return bkt.ForEach(func(_, v []byte) error {
			var conversation models.Conversation
			if err := json.Unmarshal(v, &conversation); err != nil {
				return fmt.Errorf("failed to unmarshal conversation: %w", err)
			}
			conversations = append(conversations, conversation)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	slices.Reverse(conversations)
	return conversations, nil
}

// AddConversation stores a new conversation and creates its message bucket.
// It returns the store-assigned ID.
func (b BoltDB) AddConversation(_ context.Context, conversation models.Conversation) (string, error) {
	var newID string
	err := b.db.Update(func(tx *bolt.Tx) error {
		bkt := tx.Bucket([]byte(conversationsBucket))
		if bkt == nil {
			return nil
		}

		var err error
		newID, err = sequencedID(bkt, conversation.ID)
		if err != nil {
			return err
		}
		conversation.ID = newID

		if _, err := tx.CreateBucketIfNotExists(messageBucketName(conversation.ID)); err != nil {
			return fmt.Errorf("failed to create message bucket: %w", err)
		}

		v, err := json.Marshal(conversation)
		if err != nil {
			return fmt.Errorf("failed to marshal conversation: %w", err)
		}

		return bkt.Put([]byte(newID), v)
	})

	return newID, err
}

// UpdateConversation modifies an existing conversation record. If the
// conversation doesn't exist, the operation is silently ignored.
func (b BoltDB) UpdateConversation(_ context.Context, conversation models.Conversation) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		bkt := tx.Bucket([]byte(conversationsBucket))
		if bkt == nil {
			return nil
		}

		if bkt.Get([]byte(conversation.ID)) == nil {
			return nil
		}

		v, err := json.Marshal(conversation)
		if err != nil {
			return fmt.Errorf("failed to marshal conversation: %w", err)
		}

		return bkt.Put([]byte(conversation.ID), v)
	})
}

// DeleteConversation removes a conversation together with all of its
// messages.
func (b BoltDB) DeleteConversation(_ context.Context, conversationID string) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		if err := tx.DeleteBucket(messageBucketName(conversationID)); err != nil &&
			err != bolt.ErrBucketNotFound {
			return fmt.Errorf("failed to delete message bucket: %w", err)
		}

		bkt := tx.Bucket([]byte(conversationsBucket))
		if bkt == nil {
			return nil
		}
		return bkt.Delete([]byte(conversationID))
	})
}

// Messages retrieves all messages of a conversation in insertion order.
func (b BoltDB) Messages(_ context.Context, conversationID string) ([]models.Message, error) {
	var messages []models.Message
	err := b.db.View(func(tx *bolt.Tx) error {
		bkt := tx.Bucket(messageBucketName(conversationID))
		if bkt == nil {
			return nil
		}

		return bkt.ForEach(func(_, v []byte) error {
			var message models.Message
			if err := json.Unmarshal(v, &message); err != nil {
				return fmt.Errorf("failed to unmarshal message: %w", err)
			}
			messages = append(messages, message)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return messages, nil
}

// Message retrieves a single message by ID. The second return value reports
// whether the message exists.
func (b BoltDB) Message(_ context.Context, conversationID, messageID string) (models.Message, bool, error) {
	var (
		message models.Message
		found   bool
	)
	err := b.db.View(func(tx *bolt.Tx) error {
		bkt := tx.Bucket(messageBucketName(conversationID))
		if bkt == nil {
			return nil
		}

		v := bkt.Get([]byte(messageID))
		if v == nil {
			return nil
		}
		if err := json.Unmarshal(v, &message); err != nil {
			return fmt.Errorf("failed to unmarshal message: %w", err)
		}
		found = true
		return nil
	})
	return message, found, err
}

// AddMessage stores a new message in the conversation's message bucket and
// returns the store-assigned ID.
func (b BoltDB) AddMessage(_ context.Context, conversationID string, message models.Message) (string, error) {
	var newID string
	err := b.db.Update(func(tx *bolt.Tx) error {
		bkt := tx.Bucket(messageBucketName(conversationID))
		if bkt == nil {
			return fmt.Errorf("conversation %s not found", conversationID)
		}

		var err error
		newID, err = sequencedID(bkt, message.ID)
		if err != nil {
			return err
		}
		message.ID = newID
		message.ConversationID = conversationID

		v, err := json.Marshal(message)
		if err != nil {
			return fmt.Errorf("failed to marshal message: %w", err)
		}

		return bkt.Put([]byte(newID), v)
	})

	return newID, err
}

// UpdateMessageContent patches a message's content and streaming flag in a
// single transaction; readers never observe one field without the other. All
// other fields are left untouched. If the message doesn't exist, the
// operation is silently ignored.
func (b BoltDB) UpdateMessageContent(
	_ context.Context, conversationID, messageID, content string, isStreaming bool,
) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		bkt := tx.Bucket(messageBucketName(conversationID))
		if bkt == nil {
			return nil
		}

		v := bkt.Get([]byte(messageID))
		if v == nil {
			return nil
		}

		var message models.Message
		if err := json.Unmarshal(v, &message); err != nil {
			return fmt.Errorf("failed to unmarshal message: %w", err)
		}

		message.Content = content
		message.IsStreaming = isStreaming

		nv, err := json.Marshal(message)
		if err != nil {
			return fmt.Errorf("failed to marshal message: %w", err)
		}

		return bkt.Put([]byte(messageID), nv)
	})
}
