// Package errors provides structured error handling for nebula-sink.
//
// Every failure that can be reported for a single message is tagged with one
// ErrorType from a closed set. Parse and build steps return *Error values whose
// type describes what went wrong; those types are later folded into the sink
// taxonomy by ClassifyBuildError, and backend write outcomes are folded into it
// by Classify.
package errors

import (
	"errors"
	"fmt"
	"runtime"
)

// ErrorType represents the category of error
type ErrorType string

// Sink taxonomy. Exactly one of these is reported per failing message index.
const (
	// ErrorTypeDeserialization means the payload could not be decoded against the schema
	ErrorTypeDeserialization ErrorType = "DESERIALIZATION_ERROR"
	// ErrorTypeInvalidMessage means the payload was empty or structurally unsupported
	ErrorTypeInvalidMessage ErrorType = "INVALID_MESSAGE_ERROR"
	// ErrorTypeUnknownFields means strict mode found fields absent from the schema
	ErrorTypeUnknownFields ErrorType = "UNKNOWN_FIELDS_ERROR"
	// ErrorTypeSinkRetryable means the backend reported a transient failure
	ErrorTypeSinkRetryable ErrorType = "SINK_RETRYABLE_ERROR"
	// ErrorTypeSink4xx means the backend reported a client class failure
	ErrorTypeSink4xx ErrorType = "SINK_4XX_ERROR"
	// ErrorTypeSink5xx means the backend reported a server class failure
	ErrorTypeSink5xx ErrorType = "SINK_5XX_ERROR"
	// ErrorTypeSinkUnknown means a failure with no usable status code
	ErrorTypeSinkUnknown ErrorType = "SINK_UNKNOWN_ERROR"
	// ErrorTypeDefault means a failure reported only as a boolean flag
	ErrorTypeDefault ErrorType = "DEFAULT_ERROR"
)

// Internal types. They never appear in a sink response; ClassifyBuildError maps
// them onto the taxonomy above.
const (
	// ErrorTypeConfig represents configuration errors
	ErrorTypeConfig ErrorType = "CONFIGURATION_ERROR"
	// ErrorTypeEmptyMessage represents a nil or zero-length payload
	ErrorTypeEmptyMessage ErrorType = "EMPTY_MESSAGE"
	// ErrorTypeInvalidField represents a field path that does not resolve
	ErrorTypeInvalidField ErrorType = "INVALID_FIELD_CONFIG"
	// ErrorTypeConnection represents failures reaching an external service
	ErrorTypeConnection ErrorType = "CONNECTION_ERROR"
)

// Error represents a structured error with context
type Error struct {
	Type    ErrorType
	Message string
	Cause   error
	Details map[string]interface{}
	Stack   []StackFrame
}

// StackFrame represents a single frame in the call stack
type StackFrame struct {
	Function string
	File     string
	Line     int
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// WithDetail adds a key-value detail to the error
func (e *Error) WithDetail(key string, value interface{}) *Error {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// New creates a new error with the given type and message
func New(errType ErrorType, message string) *Error {
	return &Error{
		Type:    errType,
		Message: message,
		Stack:   captureStack(2),
	}
}

// Newf creates a new error with a formatted message
func Newf(errType ErrorType, format string, args ...interface{}) *Error {
	return &Error{
		Type:    errType,
		Message: fmt.Sprintf(format, args...),
		Stack:   captureStack(2),
	}
}

// Wrap wraps an existing error with additional context
func Wrap(err error, errType ErrorType, message string) *Error {
	if err == nil {
		return nil
	}

	// If already our error type, preserve the stack
	var existingErr *Error
	if errors.As(err, &existingErr) {
		return &Error{
			Type:    errType,
			Message: message,
			Cause:   err,
			Stack:   existingErr.Stack,
		}
	}

	return &Error{
		Type:    errType,
		Message: message,
		Cause:   err,
		Stack:   captureStack(2),
	}
}

// TypeOf returns the type of the outermost *Error in err's chain, or the empty
// type when there is none.
func TypeOf(err error) ErrorType {
	var e *Error
	if !errors.As(err, &e) {
		return ""
	}
	return e.Type
}

// IsType checks if the error is of the given type
func IsType(err error, errType ErrorType) bool {
	return TypeOf(err) == errType
}

// Is and As re-export the standard library helpers so callers need a single import.
func Is(err, target error) bool { return errors.Is(err, target) }

func As(err error, target interface{}) bool { return errors.As(err, target) }

// captureStack captures the current call stack
func captureStack(skip int) []StackFrame {
	const maxFrames = 32
	frames := make([]StackFrame, 0, maxFrames)

	for i := skip; i < maxFrames+skip; i++ {
		pc, file, line, ok := runtime.Caller(i)
		if !ok {
			break
		}

		fn := runtime.FuncForPC(pc)
		if fn == nil {
			continue
		}

		frames = append(frames, StackFrame{
			Function: fn.Name(),
			File:     file,
			Line:     line,
		})
	}

	return frames
}
