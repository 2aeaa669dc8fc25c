package model

import (
	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

// NewIdentityID returns a random identifier for a new identity.
func NewIdentityID() string {
	return uuid.NewString()
}

// NewID returns a time-ordered identifier for conversations and messages.
// IDs generated within the same millisecond are monotonically increasing,
// so sorting by ID preserves creation order.
func NewID() string {
	return ulid.Make().String()
}
