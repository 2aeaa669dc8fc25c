package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/bytebuddy/bytebuddy/internal/model"
	"github.com/bytebuddy/bytebuddy/internal/store"
)

// ListConversations loads every conversation of the identity with its
// messages in one round trip, newest conversation first.
func (db *DB) ListConversations(ctx context.Context, identityID string) ([]model.Conversation, error) {
	const q = `
		SELECT c.id, c.title, c.created_at, c.updated_at,
		       m.id, m.role, m.content, m.created_at
		FROM conversations c
		LEFT JOIN messages m ON m.conversation_id = c.id
		WHERE c.user_id = $1
		ORDER BY c.created_at DESC, c.id DESC, m.seq ASC
	`

	rows, err := db.Pool.Query(ctx, q, identityID)
	if err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}
	defer rows.Close()

	conversations := []model.Conversation{}
	for rows.Next() {
		var (
			c         model.Conversation
			msgID     pgtype.Text
			role      pgtype.Text
			content   pgtype.Text
			createdAt pgtype.Timestamptz
		)
		if err := rows.Scan(&c.ID, &c.Title, &c.CreatedAt, &c.UpdatedAt, &msgID, &role, &content, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan conversation: %w", err)
		}

		n := len(conversations)
		if n == 0 || conversations[n-1].ID != c.ID {
			c.Messages = []model.Message{}
			conversations = append(conversations, c)
			n++
		}
		if msgID.Valid {
			conversations[n-1].Messages = append(conversations[n-1].Messages, model.Message{
				ID:        msgID.String,
				Role:      model.Role(role.String),
				Content:   content.String,
				CreatedAt: createdAt.Time,
			})
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating conversations: %w", err)
	}

	return conversations, nil
}

// CreateConversation inserts an empty conversation for the identity.
func (db *DB) CreateConversation(ctx context.Context, identityID string, c model.Conversation) error {
	const q = `
		INSERT INTO conversations (id, user_id, title, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
	`

	if _, err := db.Pool.Exec(ctx, q, c.ID, identityID, c.Title, c.CreatedAt, c.UpdatedAt); err != nil {
		return fmt.Errorf("failed to create conversation: %w", err)
	}
	return nil
}

// AppendMessage inserts m and bumps the conversation's updated_at in one
// transaction. The conversation must belong to the identity.
func (db *DB) AppendMessage(ctx context.Context, identityID, conversationID string, m model.Message) (err error) {
	const touch = `UPDATE conversations SET updated_at = $3 WHERE id = $1 AND user_id = $2`
	const ins = `INSERT INTO messages (id, conversation_id, role, content, created_at) VALUES ($1, $2, $3, $4, $5)`

	tx, err := db.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
			return
		}
		if e := tx.Commit(ctx); e != nil {
			err = fmt.Errorf("failed to commit message: %w", e)
		}
	}()

	tag, err := tx.Exec(ctx, touch, conversationID, identityID, m.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to touch conversation: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrConversationNotFound
	}

	if _, err = tx.Exec(ctx, ins, m.ID, conversationID, string(m.Role), m.Content, m.CreatedAt); err != nil {
		return fmt.Errorf("failed to insert message: %w", err)
	}
	return nil
}

// UpdateTitle sets the conversation title.
func (db *DB) UpdateTitle(ctx context.Context, identityID, conversationID, title string, at time.Time) error {
	const q = `UPDATE conversations SET title = $3, updated_at = $4 WHERE id = $1 AND user_id = $2`

	tag, err := db.Pool.Exec(ctx, q, conversationID, identityID, title, at)
	if err != nil {
		return fmt.Errorf("failed to update title: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrConversationNotFound
	}
	return nil
}

// DeleteConversation removes the conversation; messages cascade.
func (db *DB) DeleteConversation(ctx context.Context, identityID, conversationID string) error {
	const q = `DELETE FROM conversations WHERE id = $1 AND user_id = $2`

	tag, err := db.Pool.Exec(ctx, q, conversationID, identityID)
	if err != nil {
		return fmt.Errorf("failed to delete conversation: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrConversationNotFound
	}
	return nil
}
