// Package navigation decides which screen or conversation a client should
// show, given the session and conversation state.
package navigation

import "github.com/bytebuddy/bytebuddy/internal/conversation"

// Screen is the top-level view.
type Screen string

const (
	ScreenLoading        Screen = "loading"
	ScreenSignIn         Screen = "sign_in"
	ScreenLoadingHistory Screen = "loading_history"
	ScreenApp            Screen = "app"
)

// Gate picks the top-level screen. Session restoration wins over everything,
// then authentication, then history loading.
func Gate(sessionReady, authenticated, historyLoaded bool) Screen {
	switch {
	case !sessionReady:
		return ScreenLoading
	case !authenticated:
		return ScreenSignIn
	case !historyLoaded:
		return ScreenLoadingHistory
	default:
		return ScreenApp
	}
}

// Action tells the client what to do with its current selection.
type Action string

const (
	// ActionStay keeps the current selection.
	ActionStay Action = "stay"
	// ActionOpen selects ConversationID.
	ActionOpen Action = "open"
	// ActionNewChat shows the empty new-chat view.
	ActionNewChat Action = "new_chat"
)

// Target is a navigation decision.
type Target struct {
	Action         Action `json:"action"`
	ConversationID string `json:"conversation_id,omitempty"`
}

// Landing is where a freshly loaded app opens: the newest conversation, or
// a new chat when there is none.
func Landing(snap conversation.Snapshot) Target {
	if len(snap.Conversations) == 0 {
		return Target{Action: ActionNewChat}
	}
	return Target{Action: ActionOpen, ConversationID: snap.Conversations[0].ID}
}

// AfterDelete decides where to go once a conversation has been removed.
// It only acts when the list is loaded and selectedID is no longer in it.
func AfterDelete(snap conversation.Snapshot, selectedID string) Target {
	if !snap.Loaded {
		return Target{Action: ActionStay}
	}
	if _, ok := snap.Find(selectedID); ok {
		return Target{Action: ActionStay, ConversationID: selectedID}
	}
	return Landing(snap)
}
