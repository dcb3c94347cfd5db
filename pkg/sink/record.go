package sink

import (
	"context"

	"github.com/ajitpratap0/nebula-sink/pkg/errors"
	"github.com/ajitpratap0/nebula-sink/pkg/message"
	"github.com/ajitpratap0/nebula-sink/pkg/schema"
)

// Record is the backend-shaped unit of work built from one message. Exactly
// one of Payload and Err is set. Several records may share an Index.
type Record struct {
	Index    int64
	Payload  interface{}
	Err      *errors.ErrorInfo
	Metadata map[string]interface{}
}

// Valid reports whether the record carries a payload.
func (r *Record) Valid() bool {
	return r.Err == nil
}

// NewRecord creates a valid record.
func NewRecord(index int64, payload interface{}, metadata map[string]interface{}) *Record {
	return &Record{Index: index, Payload: payload, Metadata: metadata}
}

// ErrorRecord creates a record for a message that could not be converted.
// The error is folded into UNKNOWN_FIELDS, DESERIALIZATION or INVALID_MESSAGE.
func ErrorRecord(index int64, err error, metadata map[string]interface{}) *Record {
	return &Record{
		Index:    index,
		Err:      errors.NewErrorInfo(err, errors.ClassifyBuildError(err)),
		Metadata: metadata,
	}
}

// RecordBuilder turns one parsed message into backend payloads. A message may
// yield several payloads; any error fails the whole message.
type RecordBuilder interface {
	Build(msg *message.Message, parsed message.ParsedMessage) ([]interface{}, error)
}

// RecordBuilderFunc adapts a function to RecordBuilder.
type RecordBuilderFunc func(msg *message.Message, parsed message.ParsedMessage) ([]interface{}, error)

// Build calls f.
func (f RecordBuilderFunc) Build(msg *message.Message, parsed message.ParsedMessage) ([]interface{}, error) {
	return f(msg, parsed)
}

// BuildRecords parses, validates and converts one message. It never fails:
// every error becomes a single error record carrying index.
func BuildRecords(p message.Parser, b RecordBuilder, msg *message.Message, mode message.Mode, schemaRef string, index int64) []*Record {
	parsed, err := p.Parse(msg, mode, schemaRef)
	if err != nil {
		return []*Record{ErrorRecord(index, err, msg.Metadata)}
	}
	if err := parsed.Validate(); err != nil {
		return []*Record{ErrorRecord(index, err, msg.Metadata)}
	}
	payloads, err := b.Build(msg, parsed)
	if err != nil {
		return []*Record{ErrorRecord(index, err, msg.Metadata)}
	}
	records := make([]*Record, len(payloads))
	for i, payload := range payloads {
		records[i] = NewRecord(index, payload, msg.Metadata)
	}
	return records
}

// Failure is one record the backend did not accept. Ordinal is the record's
// position in the slice passed to Write.
type Failure struct {
	Ordinal int
	Outcome errors.Outcome
	Cause   error
}

// Writer sends valid records to a backend. A returned error means the whole
// write failed; it is applied to every record that was sent.
type Writer interface {
	Write(ctx context.Context, records []*Record) ([]Failure, error)
	Close() error
}

// Backend is one sink implementation.
type Backend interface {
	Writer
	// NewBuilder returns the record builder for s. s is nil when the input
	// format carries no fixed schema. It may apply s to the backend, for
	// example by updating a table.
	NewBuilder(ctx context.Context, s *schema.Schema) (RecordBuilder, error)
}
