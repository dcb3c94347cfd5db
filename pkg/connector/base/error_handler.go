package base

import (
	"context"
	"net/http"

	"go.uber.org/zap"
	"google.golang.org/api/googleapi"

	"github.com/ajitpratap0/nebula-sink/pkg/errors"
	"github.com/ajitpratap0/nebula-sink/pkg/sink"
)

// RetryableHTTPStatus reports whether an HTTP status signals a transient
// failure.
func RetryableHTTPStatus(code int) bool {
	switch code {
	case http.StatusRequestTimeout, http.StatusTooManyRequests,
		http.StatusInternalServerError, http.StatusBadGateway,
		http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}

// IsNotFound reports whether err is a Google API 404.
func IsNotFound(err error) bool {
	var gerr *googleapi.Error
	return errors.As(err, &gerr) && gerr.Code == http.StatusNotFound
}

// TransportError wraps a failed backend call so that it classifies per
// outcome. Context expiry is retryable.
func TransportError(err error, outcome errors.Outcome) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		outcome = errors.StatusOutcome(true, 0)
	}
	return &errors.WriteError{Outcome: outcome, Cause: err}
}

// ErrorHandler logs the failures of one write, one line per error type.
type ErrorHandler struct {
	dest *BaseDestination
}

// NewErrorHandler creates a handler logging through dest.
func NewErrorHandler(dest *BaseDestination) *ErrorHandler {
	return &ErrorHandler{dest: dest}
}

// Report logs failures grouped by classified type with one sample cause each.
func (h *ErrorHandler) Report(failures []sink.Failure) {
	if len(failures) == 0 {
		return
	}
	counts := make(map[errors.ErrorType]int)
	samples := make(map[errors.ErrorType]error)
	for _, f := range failures {
		t := errors.Classify(f.Outcome)
		if t == "" {
			continue
		}
		counts[t]++
		if _, ok := samples[t]; !ok {
			samples[t] = f.Cause
		}
	}
	for t, n := range counts {
		h.dest.Logger().Warn("records rejected by destination",
			zap.String("error_type", string(t)),
			zap.Int("count", n),
			zap.NamedError("sample", samples[t]))
	}
}
