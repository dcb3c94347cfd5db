package errors

import (
	"errors"
	"fmt"
	"strconv"
)

// ErrorInfo is the per-message failure reported back to the caller.
type ErrorInfo struct {
	Cause error
	Type  ErrorType
}

// NewErrorInfo pairs a cause with its classified type.
func NewErrorInfo(cause error, errType ErrorType) *ErrorInfo {
	return &ErrorInfo{Cause: cause, Type: errType}
}

func (i *ErrorInfo) Error() string {
	if i.Cause == nil {
		return string(i.Type)
	}
	return fmt.Sprintf("%s: %v", i.Type, i.Cause)
}

func (i *ErrorInfo) Unwrap() error {
	return i.Cause
}

type outcomeShape int

const (
	shapeStatus outcomeShape = iota
	shapeCode
	shapeFailure
)

// Outcome describes how a backend reported the result of writing one record.
// Backends differ in what they expose, so an Outcome is built with one of
// StatusOutcome, CodeOutcome or FailureOutcome. A zero Code means the backend
// gave no status code.
type Outcome struct {
	Retryable bool
	Code      int
	Failed    bool
	shape     outcomeShape
}

// StatusOutcome is an explicit retryable flag plus a status code.
func StatusOutcome(retryable bool, code int) Outcome {
	return Outcome{Retryable: retryable, Code: code, Failed: true, shape: shapeStatus}
}

// CodeOutcome is a bare status code.
func CodeOutcome(code int) Outcome {
	return Outcome{Code: code, Failed: true, shape: shapeCode}
}

// FailureOutcome is a bare failure flag with no code.
func FailureOutcome(failed bool) Outcome {
	return Outcome{Failed: failed, shape: shapeFailure}
}

// Classify maps a backend write outcome onto the sink taxonomy. It returns the
// empty type for a boolean outcome that did not fail.
func Classify(o Outcome) ErrorType {
	if o.shape == shapeFailure {
		if o.Failed {
			return ErrorTypeDefault
		}
		return ""
	}
	if o.shape == shapeStatus && o.Retryable {
		return ErrorTypeSinkRetryable
	}
	if o.Code <= 0 {
		return ErrorTypeSinkUnknown
	}
	switch strconv.Itoa(o.Code)[0] {
	case '4':
		return ErrorTypeSink4xx
	case '5':
		return ErrorTypeSink5xx
	default:
		return ErrorTypeSinkUnknown
	}
}

// ClassifyBuildError folds any parse or record-construction failure into one of
// UnknownFields, Deserialization or InvalidMessage.
func ClassifyBuildError(err error) ErrorType {
	switch TypeOf(err) {
	case ErrorTypeUnknownFields:
		return ErrorTypeUnknownFields
	case ErrorTypeDeserialization:
		return ErrorTypeDeserialization
	default:
		return ErrorTypeInvalidMessage
	}
}

// WriteError is a transport-level failure of a whole backend write that still
// carries an outcome, e.g. an API error with an HTTP status.
type WriteError struct {
	Outcome Outcome
	Cause   error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("write failed: %v", e.Cause)
}

func (e *WriteError) Unwrap() error {
	return e.Cause
}

// OutcomeOf extracts the outcome carried by err, or a code-less outcome that
// classifies as SINK_UNKNOWN_ERROR.
func OutcomeOf(err error) Outcome {
	var we *WriteError
	if errors.As(err, &we) {
		return we.Outcome
	}
	return CodeOutcome(0)
}
