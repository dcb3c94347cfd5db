package errors

import (
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name    string
		outcome Outcome
		want    ErrorType
	}{
		{"retryable wins over 4xx", StatusOutcome(true, 404), ErrorTypeSinkRetryable},
		{"retryable wins over 5xx", StatusOutcome(true, 503), ErrorTypeSinkRetryable},
		{"retryable without code", StatusOutcome(true, 0), ErrorTypeSinkRetryable},
		{"not retryable 404", StatusOutcome(false, 404), ErrorTypeSink4xx},
		{"not retryable 503", StatusOutcome(false, 503), ErrorTypeSink5xx},
		{"not retryable 302", StatusOutcome(false, 302), ErrorTypeSinkUnknown},
		{"not retryable missing code", StatusOutcome(false, 0), ErrorTypeSinkUnknown},
		{"bare 400", CodeOutcome(400), ErrorTypeSink4xx},
		{"bare 500", CodeOutcome(500), ErrorTypeSink5xx},
		{"bare 200", CodeOutcome(200), ErrorTypeSinkUnknown},
		{"bare missing", CodeOutcome(0), ErrorTypeSinkUnknown},
		{"boolean failure", FailureOutcome(true), ErrorTypeDefault},
		{"boolean success", FailureOutcome(false), ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.outcome))
		})
	}
}

func TestClassifyIsPure(t *testing.T) {
	o := StatusOutcome(false, 429)
	assert.Equal(t, Classify(o), Classify(o))
}

func TestClassifyBuildError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorType
	}{
		{"unknown fields", New(ErrorTypeUnknownFields, "x"), ErrorTypeUnknownFields},
		{"deserialization", Wrap(io.EOF, ErrorTypeDeserialization, "x"), ErrorTypeDeserialization},
		{"empty", New(ErrorTypeEmptyMessage, "x"), ErrorTypeInvalidMessage},
		{"invalid field", New(ErrorTypeInvalidField, "x"), ErrorTypeInvalidMessage},
		{"config", New(ErrorTypeConfig, "x"), ErrorTypeInvalidMessage},
		{"wrapped deserialization", fmt.Errorf("outer: %w", New(ErrorTypeDeserialization, "x")), ErrorTypeDeserialization},
		{"plain error", io.ErrUnexpectedEOF, ErrorTypeInvalidMessage},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifyBuildError(tt.err))
		})
	}
}

func TestOutcomeOf(t *testing.T) {
	we := &WriteError{Outcome: CodeOutcome(503), Cause: io.EOF}
	assert.Equal(t, ErrorTypeSink5xx, Classify(OutcomeOf(fmt.Errorf("wrapped: %w", we))))
	assert.Equal(t, ErrorTypeSinkUnknown, Classify(OutcomeOf(io.EOF)))
}

func TestErrorInfo(t *testing.T) {
	info := NewErrorInfo(io.EOF, ErrorTypeDeserialization)
	assert.Equal(t, "DESERIALIZATION_ERROR: EOF", info.Error())
	assert.ErrorIs(t, info, io.EOF)
}

func TestWrapPreservesStack(t *testing.T) {
	inner := New(ErrorTypeEmptyMessage, "empty")
	outer := Wrap(inner, ErrorTypeInvalidMessage, "bad message")
	assert.Equal(t, inner.Stack, outer.Stack)
	assert.True(t, IsType(outer, ErrorTypeInvalidMessage))
	assert.Nil(t, Wrap(nil, ErrorTypeConfig, "nothing"))
}
