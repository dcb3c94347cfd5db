// Package metrics exposes Prometheus collectors for sink activity.
//
// # Basic Usage
//
//	timer := metrics.NewTimer()
//	resp := s.Push(ctx, batch)
//	metrics.PushLatency.WithLabelValues("bigquery").Observe(timer.Stop().Seconds())
//
//	metrics.RecordResponse("bigquery", len(batch), resp.ErrorTypes())
//
// All collectors are registered with the default registry through promauto
// and are served by promhttp.Handler.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "nebula_sink"

var (
	// MessagesTotal counts pushed messages.
	// Labels: sink, status (success/failure)
	MessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_total",
			Help:      "Total number of messages pushed to a sink",
		},
		[]string{"sink", "status"},
	)

	// ErrorsTotal counts failed messages by classified error type.
	// Labels: sink, error_type
	ErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "errors_total",
			Help:      "Total number of failed messages by error type",
		},
		[]string{"sink", "error_type"},
	)

	// PushLatency tracks the duration of a whole push call in seconds.
	PushLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "push_duration_seconds",
			Help:      "Duration of a push call",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 8),
		},
		[]string{"sink"},
	)

	// WriteLatency tracks the duration of the backend write in seconds.
	WriteLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "write_duration_seconds",
			Help:      "Duration of a backend write",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 8),
		},
		[]string{"sink"},
	)

	// BatchSize tracks the number of messages per push.
	BatchSize = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "batch_size",
			Help:      "Messages per push call",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
		},
		[]string{"sink"},
	)

	// SchemaRefreshes counts schema registry refreshes.
	// Labels: status (unchanged/updated/failed)
	SchemaRefreshes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "schema_refreshes_total",
			Help:      "Schema registry refresh attempts by outcome",
		},
		[]string{"status"},
	)
)

// RecordResponse updates the message and error counters for one push.
// errorTypes holds one entry per failed message.
func RecordResponse(sink string, total int, errorTypes []string) {
	failed := len(errorTypes)
	MessagesTotal.WithLabelValues(sink, "success").Add(float64(total - failed))
	if failed == 0 {
		return
	}
	MessagesTotal.WithLabelValues(sink, "failure").Add(float64(failed))
	for _, t := range errorTypes {
		ErrorsTotal.WithLabelValues(sink, t).Inc()
	}
}

// Timer measures the duration of an operation.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer and starts timing immediately.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// Stop returns the elapsed duration since creation. It can be called more
// than once.
func (t *Timer) Stop() time.Duration {
	return time.Since(t.start)
}
