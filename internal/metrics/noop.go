package metrics

import "time"

// NoopRecorder implements Recorder with no-op methods.
type NoopRecorder struct{}

// NewNoop returns a Recorder that discards all metrics.
func NewNoop() Recorder {
	return &NoopRecorder{}
}

func (n *NoopRecorder) IncSignUp()                                    {}
func (n *NoopRecorder) IncSignIn(string)                              {}
func (n *NoopRecorder) IncPasswordResetRequested()                    {}
func (n *NoopRecorder) IncPasswordResetCompleted()                    {}
func (n *NoopRecorder) IncConversationCreated()                       {}
func (n *NoopRecorder) IncConversationDeleted()                       {}
func (n *NoopRecorder) IncMessageAppended()                           {}
func (n *NoopRecorder) IncTitleDerived()                              {}
func (n *NoopRecorder) IncDurableWriteFailure(string)                 {}
func (n *NoopRecorder) ObserveCompletion(string, time.Duration, bool) {}
