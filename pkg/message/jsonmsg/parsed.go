package jsonmsg

import (
	"encoding/base64"
	"strconv"
	"strings"
	"time"

	gojson "github.com/goccy/go-json"

	"github.com/ajitpratap0/nebula-sink/pkg/errors"
	"github.com/ajitpratap0/nebula-sink/pkg/message"
	"github.com/ajitpratap0/nebula-sink/pkg/schema"
)

// ParsedMessage is a decoded JSON object.
type ParsedMessage struct {
	doc    map[string]interface{}
	schema *schema.Schema
}

// NewParsedMessage wraps an already decoded document.
func NewParsedMessage(doc map[string]interface{}) *ParsedMessage {
	if doc == nil {
		doc = map[string]interface{}{}
	}
	return &ParsedMessage{doc: doc}
}

func (m *ParsedMessage) Raw() interface{} {
	return m.doc
}

// Schema sniffs the document structure on first use.
func (m *ParsedMessage) Schema() *schema.Schema {
	if m.schema == nil {
		m.schema = schema.Sniff("", m.doc)
	}
	return m.schema
}

// Validate always succeeds: a document has no schema to disagree with.
func (m *ParsedMessage) Validate() error {
	return nil
}

func (m *ParsedMessage) Mapping() (map[string]interface{}, error) {
	out := make(map[string]interface{}, len(m.doc))
	for k, v := range m.doc {
		out[k] = v
	}
	return out, nil
}

// FieldByName resolves a dot path such as "customer.address.city". Numeric
// segments index into arrays. A key that itself contains dots is matched
// before the path is split.
func (m *ParsedMessage) FieldByName(name string) (message.Field, error) {
	v, err := Lookup(m.doc, name)
	if err != nil {
		return nil, err
	}
	return &Field{value: v}, nil
}

// Lookup resolves a dot path in a decoded document.
func Lookup(doc map[string]interface{}, path string) (interface{}, error) {
	if v, ok := doc[path]; ok {
		return v, nil
	}
	var cur interface{} = doc
	for _, seg := range strings.Split(path, ".") {
		switch node := cur.(type) {
		case map[string]interface{}:
			next, ok := node[seg]
			if !ok {
				return nil, errors.Newf(errors.ErrorTypeInvalidField, "field %q not found in message", path)
			}
			cur = next
		case []interface{}:
			i, err := strconv.Atoi(seg)
			if err != nil || i < 0 || i >= len(node) {
				return nil, errors.Newf(errors.ErrorTypeInvalidField, "field %q not found in message", path)
			}
			cur = node[i]
		default:
			return nil, errors.Newf(errors.ErrorTypeInvalidField, "field %q not found in message", path)
		}
	}
	return cur, nil
}

// Field is a resolved JSON value.
type Field struct {
	value interface{}
}

// NewField wraps a native document value.
func NewField(v interface{}) *Field {
	return &Field{value: v}
}

func (f *Field) Value() interface{} {
	return f.value
}

// Render returns strings unquoted, numbers and booleans in their literal form
// and objects or arrays as compact JSON. Timestamps and durations render as
// strings wherever they appear; an array of them renders as the bracketed,
// comma-joined element forms.
func (f *Field) Render() (string, error) {
	switch v := f.value.(type) {
	case string:
		return v, nil
	case gojson.Number:
		return string(v), nil
	case bool:
		return strconv.FormatBool(v), nil
	case nil:
		return "null", nil
	case int:
		return strconv.Itoa(v), nil
	case int32:
		return strconv.FormatInt(int64(v), 10), nil
	case int64:
		return strconv.FormatInt(v, 10), nil
	case float32:
		return strconv.FormatFloat(float64(v), 'g', -1, 32), nil
	case float64:
		return strconv.FormatFloat(v, 'g', -1, 64), nil
	case []byte:
		return base64.StdEncoding.EncodeToString(v), nil
	case time.Time:
		return message.FormatTimestamp(v), nil
	case time.Duration:
		return message.FormatGoDuration(v), nil
	case []interface{}:
		if temporalList(v) {
			parts := make([]string, len(v))
			for i, e := range v {
				s, err := NewField(e).Render()
				if err != nil {
					return "", err
				}
				parts[i] = s
			}
			return "[" + strings.Join(parts, ",") + "]", nil
		}
		return marshal(message.JSONValue(v))
	default:
		return marshal(message.JSONValue(v))
	}
}

func temporalList(l []interface{}) bool {
	if len(l) == 0 {
		return false
	}
	for _, e := range l {
		switch e.(type) {
		case time.Time, time.Duration:
		default:
			return false
		}
	}
	return true
}

func marshal(v interface{}) (string, error) {
	raw, err := gojson.Marshal(v)
	if err != nil {
		return "", errors.Wrap(err, errors.ErrorTypeInvalidMessage, "failed to render field as JSON")
	}
	return string(raw), nil
}
