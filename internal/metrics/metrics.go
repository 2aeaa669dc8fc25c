// Package metrics provides lightweight hooks for instrumentation.
package metrics

import "time"

// Sign-in outcomes.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// Completion tasks.
const (
	TaskChat         = "chat"
	TaskTitle        = "title"
	TaskDietaryPlan  = "dietary_plan"
	TaskFoodAnalysis = "food_analysis"
)

// Recorder captures metric events for the application.
type Recorder interface {
	// Session metrics
	IncSignUp()
	IncSignIn(outcome string)
	IncPasswordResetRequested()
	IncPasswordResetCompleted()

	// Conversation metrics
	IncConversationCreated()
	IncConversationDeleted()
	IncMessageAppended()
	IncTitleDerived()
	IncDurableWriteFailure(op string)

	// Completion metrics
	ObserveCompletion(task string, duration time.Duration, failed bool)
}

// Snapshotter exposes a snapshot of current metrics.
type Snapshotter interface {
	Snapshot() Snapshot
}
