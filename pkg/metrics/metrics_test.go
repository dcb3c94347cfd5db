package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecordResponse(t *testing.T) {
	RecordResponse("test_sink", 5, []string{"SINK_5XX_ERROR", "SINK_5XX_ERROR", "DESERIALIZATION_ERROR"})

	assert.Equal(t, 2.0, testutil.ToFloat64(MessagesTotal.WithLabelValues("test_sink", "success")))
	assert.Equal(t, 3.0, testutil.ToFloat64(MessagesTotal.WithLabelValues("test_sink", "failure")))
	assert.Equal(t, 2.0, testutil.ToFloat64(ErrorsTotal.WithLabelValues("test_sink", "SINK_5XX_ERROR")))
	assert.Equal(t, 1.0, testutil.ToFloat64(ErrorsTotal.WithLabelValues("test_sink", "DESERIALIZATION_ERROR")))
}

func TestRecordResponseNoErrors(t *testing.T) {
	RecordResponse("clean_sink", 4, nil)
	assert.Equal(t, 4.0, testutil.ToFloat64(MessagesTotal.WithLabelValues("clean_sink", "success")))
	assert.Equal(t, 0.0, testutil.ToFloat64(MessagesTotal.WithLabelValues("clean_sink", "failure")))
}

func TestTimer(t *testing.T) {
	timer := NewTimer()
	time.Sleep(2 * time.Millisecond)
	assert.GreaterOrEqual(t, timer.Stop(), 2*time.Millisecond)
}
