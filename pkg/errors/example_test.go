// Package errors provides examples of structured error handling in nebula-sink.
package errors_test

import (
	"fmt"
	"io"

	"github.com/ajitpratap0/nebula-sink/pkg/errors"
)

// Example demonstrates basic error creation and wrapping.
func Example() {
	err := errors.New(errors.ErrorTypeEmptyMessage, "payload is empty").
		WithDetail("mode", "value")

	fmt.Println(err.Error())

	// Output:
	// EMPTY_MESSAGE: payload is empty
}

// ExampleWrap shows how a decode failure keeps its cause.
func ExampleWrap() {
	err := errors.Wrap(io.ErrUnexpectedEOF, errors.ErrorTypeDeserialization, "failed to decode payload")

	if errors.IsType(err, errors.ErrorTypeDeserialization) {
		fmt.Println("decode error")
	}
	if errors.Is(err, io.ErrUnexpectedEOF) {
		fmt.Println("caused by unexpected EOF")
	}

	// Output:
	// decode error
	// caused by unexpected EOF
}

// ExampleClassify shows the three outcome shapes backends report.
func ExampleClassify() {
	fmt.Println(errors.Classify(errors.StatusOutcome(true, 400)))
	fmt.Println(errors.Classify(errors.CodeOutcome(503)))
	fmt.Println(errors.Classify(errors.FailureOutcome(true)))

	// Output:
	// SINK_RETRYABLE_ERROR
	// SINK_5XX_ERROR
	// DEFAULT_ERROR
}
