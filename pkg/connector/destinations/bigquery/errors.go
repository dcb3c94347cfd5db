package bigquery

import (
	"net/http"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/googleapi"

	"github.com/ajitpratap0/nebula-sink/pkg/connector/base"
	"github.com/ajitpratap0/nebula-sink/pkg/errors"
	"github.com/ajitpratap0/nebula-sink/pkg/sink"
)

// reasonOutcome maps a BigQuery error reason to a write outcome.
// See https://cloud.google.com/bigquery/docs/error-messages.
func reasonOutcome(reason string) errors.Outcome {
	switch reason {
	case "stopped", "timeout", "backendError", "internalError", "rateLimitExceeded", "quotaExceeded":
		return errors.StatusOutcome(true, 0)
	case "invalid", "invalidQuery":
		return errors.StatusOutcome(false, http.StatusBadRequest)
	case "notFound":
		return errors.StatusOutcome(false, http.StatusNotFound)
	case "accessDenied":
		return errors.StatusOutcome(false, http.StatusForbidden)
	default:
		return errors.StatusOutcome(false, 0)
	}
}

// rowFailures converts the per-row errors of a streaming insert into
// failures. The first error of a row decides its outcome.
func rowFailures(pme bigquery.PutMultiError) []sink.Failure {
	failures := make([]sink.Failure, 0, len(pme))
	for i := range pme {
		rie := &pme[i]
		outcome := errors.StatusOutcome(false, 0)
		var cause error = rie
		if len(rie.Errors) > 0 {
			cause = rie.Errors[0]
			var bqErr *bigquery.Error
			if errors.As(rie.Errors[0], &bqErr) {
				outcome = reasonOutcome(bqErr.Reason)
			}
		}
		failures = append(failures, sink.Failure{Ordinal: rie.RowIndex, Outcome: outcome, Cause: cause})
	}
	return failures
}

// writeError wraps a failed insert call with the outcome of its API status.
func writeError(err error) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		retryable := base.RetryableHTTPStatus(gerr.Code)
		for _, item := range gerr.Errors {
			if reasonOutcome(item.Reason).Retryable {
				retryable = true
			}
		}
		return &errors.WriteError{Outcome: errors.StatusOutcome(retryable, gerr.Code), Cause: err}
	}
	return base.TransportError(err, errors.StatusOutcome(false, 0))
}
