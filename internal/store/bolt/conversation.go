package bolt

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/bytebuddy/bytebuddy/internal/model"
	"github.com/bytebuddy/bytebuddy/internal/store"
)

// ListConversations returns the identity's conversations newest first.
func (s *Store) ListConversations(_ context.Context, identityID string) ([]model.Conversation, error) {
	conversations := []model.Conversation{}
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketConversations).Bucket([]byte(identityID))
		if b == nil {
			return nil
		}
		return b.ForEach(func(_, v []byte) error {
			var c model.Conversation
			if err := json.Unmarshal(v, &c); err != nil {
				return fmt.Errorf("failed to decode conversation: %w", err)
			}
			if c.Messages == nil {
				c.Messages = []model.Message{}
			}
			conversations = append(conversations, c)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	slices.SortFunc(conversations, func(a, b model.Conversation) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(b.ID, a.ID)
	})
	return conversations, nil
}

// CreateConversation stores c under the identity's bucket.
func (s *Store) CreateConversation(_ context.Context, identityID string, c model.Conversation) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b, err := tx.Bucket(bucketConversations).CreateBucketIfNotExists([]byte(identityID))
		if err != nil {
			return err
		}
		if b.Get([]byte(c.ID)) != nil {
			return fmt.Errorf("conversation %s already exists", c.ID)
		}
		return putJSON(b, c.ID, c)
	})
}

// AppendMessage adds m to the end of the conversation.
func (s *Store) AppendMessage(_ context.Context, identityID, conversationID string, m model.Message) error {
	return s.updateConversation(identityID, conversationID, func(c *model.Conversation) {
		*c = c.WithMessage(m)
	})
}

// UpdateTitle replaces the conversation's title and stamps it with at.
func (s *Store) UpdateTitle(_ context.Context, identityID, conversationID, title string, at time.Time) error {
	return s.updateConversation(identityID, conversationID, func(c *model.Conversation) {
		c.Title = title
		c.UpdatedAt = at
	})
}

// DeleteConversation removes the conversation and its messages.
func (s *Store) DeleteConversation(_ context.Context, identityID, conversationID string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketConversations).Bucket([]byte(identityID))
		if b == nil || b.Get([]byte(conversationID)) == nil {
			return store.ErrConversationNotFound
		}
		return b.Delete([]byte(conversationID))
	})
}

func (s *Store) updateConversation(identityID, conversationID string, fn func(c *model.Conversation)) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketConversations).Bucket([]byte(identityID))
		if b == nil {
			return store.ErrConversationNotFound
		}
		data := b.Get([]byte(conversationID))
		if data == nil {
			return store.ErrConversationNotFound
		}

		var c model.Conversation
		if err := json.Unmarshal(data, &c); err != nil {
			return fmt.Errorf("failed to decode conversation: %w", err)
		}
		fn(&c)
		return putJSON(b, c.ID, c)
	})
}
