// Package completion turns chat history and wellness questionnaires into
// model completions through a pluggable provider.
package completion

import (
	"context"
	"errors"
)

// Provider errors.
var (
	ErrEmptyCompletion = errors.New("provider returned no text")
	ErrNotConfigured   = errors.New("completion provider not configured")
)

// Role of a turn in a provider request.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one message of the conversation sent to the provider.
type Turn struct {
	Role    Role
	Content string
}

// Request is a single completion call.
type Request struct {
	// System is the optional system instruction.
	System string
	Turns  []Turn
	// Grounded asks the provider to search the web and report sources,
	// where the provider supports it.
	Grounded bool
}

// Source is a web page the provider used for a grounded answer.
type Source struct {
	Title string
	URI   string
}

// Response is a provider's answer.
type Response struct {
	Text    string
	Sources []Source
}

// Provider produces completions.
type Provider interface {
	Complete(ctx context.Context, req Request) (Response, error)
}

// Unconfigured is the provider used when no API key is set. Every call
// fails with ErrNotConfigured.
type Unconfigured struct{}

// Complete always fails.
func (Unconfigured) Complete(context.Context, Request) (Response, error) {
	return Response{}, ErrNotConfigured
}
