package dto

import (
	"github.com/bytebuddy/bytebuddy/internal/model"
	"github.com/bytebuddy/bytebuddy/internal/navigation"
)

// ConversationListResponse is the identity's conversation list.
type ConversationListResponse struct {
	Conversations []model.Conversation `json:"conversations"`
	Loaded        bool                 `json:"loaded"`
	Landing       navigation.Target    `json:"landing"`
}

// ConversationResponse is one conversation plus its exchange state.
type ConversationResponse struct {
	model.Conversation
	State string `json:"state"`
}

// UpdateTitleRequest is the body of PATCH /api/v1/conversations/{id}.
type UpdateTitleRequest struct {
	Title string `json:"title"`
}

// DeleteConversationResponse names the conversation to show next.
type DeleteConversationResponse struct {
	Next navigation.Target `json:"next"`
}

// SendMessageRequest is the body of POST /api/v1/conversations/{id}/messages.
type SendMessageRequest struct {
	Content string `json:"content"`
}
