// Package message defines the unit of input handed to a sink and the parsed
// view of it that record builders work on.
package message

import (
	"strings"

	"github.com/ajitpratap0/nebula-sink/pkg/errors"
	"github.com/ajitpratap0/nebula-sink/pkg/schema"
)

// Message is one input record. It is never mutated after construction.
type Message struct {
	Key      []byte
	Value    []byte
	Metadata map[string]interface{}
}

// New creates a message. The metadata map is copied.
func New(key, value []byte, metadata map[string]interface{}) *Message {
	md := make(map[string]interface{}, len(metadata))
	for k, v := range metadata {
		md[k] = v
	}
	return &Message{Key: key, Value: value, Metadata: md}
}

// Mode selects which part of a message is the payload.
type Mode string

const (
	ModeKey   Mode = "key"
	ModeValue Mode = "value"
)

// ParseMode parses a configured mode name.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case ModeKey:
		return ModeKey, nil
	case ModeValue, "":
		return ModeValue, nil
	default:
		return "", errors.Newf(errors.ErrorTypeConfig, "unrecognized message mode %q", s)
	}
}

// Payload returns the bytes selected by mode. A nil or empty payload fails
// with an EMPTY_MESSAGE error.
func (m *Message) Payload(mode Mode) ([]byte, error) {
	var payload []byte
	switch mode {
	case ModeKey:
		payload = m.Key
	case ModeValue:
		payload = m.Value
	default:
		return nil, errors.Newf(errors.ErrorTypeConfig, "unrecognized message mode %q", mode)
	}
	if len(payload) == 0 {
		return nil, errors.Newf(errors.ErrorTypeEmptyMessage, "message %s is empty", mode)
	}
	return payload, nil
}

// Field is a resolved field of a parsed message.
type Field interface {
	// Value returns the field's native value without string rendering.
	Value() interface{}
	// Render returns the canonical string form used in templates and keys.
	Render() (string, error)
}

// ParsedMessage is a decoded payload together with the schema used to decode it.
type ParsedMessage interface {
	// Raw returns the decoded value.
	Raw() interface{}
	// Schema returns the schema of the decoded value.
	Schema() *schema.Schema
	// Validate rejects payloads carrying fields unknown to the schema when
	// strict mode is configured.
	Validate() error
	// Mapping returns the top-level field name to native value map.
	Mapping() (map[string]interface{}, error)
	// FieldByName resolves a field by name or dotted path.
	FieldByName(name string) (Field, error)
}

// Parser decodes a message into a ParsedMessage. schemaRef names the schema
// to decode with; parsers that need no reference ignore it.
type Parser interface {
	Parse(msg *Message, mode Mode, schemaRef string) (ParsedMessage, error)
}
