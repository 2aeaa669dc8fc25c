package handler

import (
	"fmt"
	"net/http"

	"github.com/bytebuddy/bytebuddy/internal/metrics"
)

// MetricsHandler exposes in-memory metrics.
type MetricsHandler struct {
	snapshotter metrics.Snapshotter
}

// NewMetricsHandler creates a new MetricsHandler.
func NewMetricsHandler(snapshotter metrics.Snapshotter) *MetricsHandler {
	return &MetricsHandler{snapshotter: snapshotter}
}

// Metrics returns metrics in Prometheus exposition format.
func (h *MetricsHandler) Metrics(w http.ResponseWriter, r *http.Request) {
	if h.snapshotter == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}

	snap := h.snapshotter.Snapshot()

	w.Header().Set("Content-Type", "text/plain; version=0.0.4")

	writeMetric(w, "bytebuddy_signups_total %d\n", snap.SignUps)
	writeMetric(w, "bytebuddy_signins_total{outcome=\"success\"} %d\n", snap.SignInSuccesses)
	writeMetric(w, "bytebuddy_signins_total{outcome=\"failure\"} %d\n", snap.SignInFailures)
	writeMetric(w, "bytebuddy_password_reset_requests_total %d\n", snap.PasswordResetRequests)
	writeMetric(w, "bytebuddy_password_resets_completed_total %d\n", snap.PasswordResetsComplete)

	writeMetric(w, "bytebuddy_conversations_created_total %d\n", snap.ConversationsCreated)
	writeMetric(w, "bytebuddy_conversations_deleted_total %d\n", snap.ConversationsDeleted)
	writeMetric(w, "bytebuddy_messages_appended_total %d\n", snap.MessagesAppended)
	writeMetric(w, "bytebuddy_titles_derived_total %d\n", snap.TitlesDerived)

	for _, op := range metrics.SortedKeys(snap.DurableWriteFailures) {
		writeMetric(w, "bytebuddy_durable_write_failures_total{op=%q} %d\n", op, snap.DurableWriteFailures[op])
	}

	for _, task := range metrics.SortedKeys(snap.Completions) {
		c := snap.Completions[task]
		writeMetric(w, "bytebuddy_completions_total{task=%q,status=\"success\"} %d\n", task, c.Count-c.Failed)
		writeMetric(w, "bytebuddy_completions_total{task=%q,status=\"failed\"} %d\n", task, c.Failed)
		writeMetric(w, "bytebuddy_completion_duration_seconds_count{task=%q} %d\n", task, c.Count)
		writeMetric(w, "bytebuddy_completion_duration_seconds_sum{task=%q} %.6f\n", task, float64(c.TotalNs)/1e9)
	}
}

func writeMetric(w http.ResponseWriter, format string, args ...any) {
	_, _ = fmt.Fprintf(w, format, args...)
}
