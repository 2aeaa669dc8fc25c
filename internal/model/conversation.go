package model

import "time"

// DefaultConversationTitle is the title every new conversation starts with.
const DefaultConversationTitle = "New Chat"

// Role identifies the author of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// IsValid reports whether the role is one of the known roles.
func (r Role) IsValid() bool {
	return r == RoleUser || r == RoleAssistant
}

// Message is a single immutable chat turn.
type Message struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// Now returns the current UTC time at the microsecond precision both
// backends keep.
func Now() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}

// NewMessage creates a message with a fresh ID.
func NewMessage(role Role, content string) Message {
	return Message{
		ID:        NewID(),
		Role:      role,
		Content:   content,
		CreatedAt: Now(),
	}
}

// Conversation is a titled, ordered sequence of messages owned by one identity.
type Conversation struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Messages  []Message `json:"messages"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewConversation creates an empty conversation with the default title.
func NewConversation() Conversation {
	now := Now()
	return Conversation{
		ID:        NewID(),
		Title:     DefaultConversationTitle,
		Messages:  []Message{},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Clone returns a copy that shares no slice storage with c.
func (c Conversation) Clone() Conversation {
	out := c
	out.Messages = make([]Message, len(c.Messages))
	copy(out.Messages, c.Messages)
	return out
}

// WithMessage returns a copy of c with m appended.
func (c Conversation) WithMessage(m Message) Conversation {
	out := c
	out.Messages = make([]Message, len(c.Messages), len(c.Messages)+1)
	copy(out.Messages, c.Messages)
	out.Messages = append(out.Messages, m)
	out.UpdatedAt = m.CreatedAt
	return out
}

// HasDefaultTitle reports whether the title was never changed.
func (c Conversation) HasDefaultTitle() bool {
	return c.Title == DefaultConversationTitle
}
