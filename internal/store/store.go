// Package store defines the persistence contracts shared by the local and
// remote backends. The rest of the application depends only on these.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/bytebuddy/bytebuddy/internal/model"
)

// Common errors returned by every backend.
var (
	ErrUserNotFound         = errors.New("user not found")
	ErrEmailExists          = errors.New("email already exists")
	ErrResetCodeNotFound    = errors.New("reset code not found")
	ErrConversationNotFound = errors.New("conversation not found")
)

// UserStore persists credentials.
type UserStore interface {
	CreateUser(ctx context.Context, c *model.Credential) error
	GetUserByEmail(ctx context.Context, email string) (*model.Credential, error)
	GetUserByID(ctx context.Context, id string) (*model.Credential, error)
	UpdatePassword(ctx context.Context, id, passwordHash string) error
}

// ResetCodeStore keeps at most one active reset code per email.
type ResetCodeStore interface {
	// PutResetCode stores code, replacing any previous code for the same email.
	PutResetCode(ctx context.Context, code model.ResetCode) error
	GetResetCode(ctx context.Context, email string) (*model.ResetCode, error)
	// DeleteResetCode is a no-op when no code exists.
	DeleteResetCode(ctx context.Context, email string) error
}

// SessionRevoker records signed-out session tokens until they expire.
type SessionRevoker interface {
	RevokeSession(ctx context.Context, tokenID string, until time.Time) error
	IsSessionRevoked(ctx context.Context, tokenID string) (bool, error)
}

// ConversationStore persists conversations scoped to an identity.
type ConversationStore interface {
	// ListConversations returns the identity's conversations newest first,
	// each with its messages in insertion order.
	ListConversations(ctx context.Context, identityID string) ([]model.Conversation, error)
	CreateConversation(ctx context.Context, identityID string, c model.Conversation) error
	AppendMessage(ctx context.Context, identityID, conversationID string, m model.Message) error
	UpdateTitle(ctx context.Context, identityID, conversationID, title string, at time.Time) error
	DeleteConversation(ctx context.Context, identityID, conversationID string) error
}

// Backend is a complete persistence implementation.
type Backend interface {
	UserStore
	ResetCodeStore
	SessionRevoker
	ConversationStore
	Ping(ctx context.Context) error
	Close() error
}
