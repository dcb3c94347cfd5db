// Package jsonmsg parses self-describing JSON documents into parsed messages.
package jsonmsg

import (
	"bytes"
	"io"
	"strconv"

	gojson "github.com/goccy/go-json"

	"github.com/ajitpratap0/nebula-sink/pkg/errors"
	"github.com/ajitpratap0/nebula-sink/pkg/message"
)

// Config controls JSON parsing.
type Config struct {
	// StringMode converts every scalar to its string form and rejects nested
	// objects instead of flattening them.
	StringMode bool `yaml:"string_mode"`
}

// Parser decodes JSON object payloads. It keeps no per-message state.
type Parser struct {
	cfg Config
}

// NewParser creates a JSON parser.
func NewParser(cfg Config) *Parser {
	return &Parser{cfg: cfg}
}

// Parse decodes the selected payload. The schema reference is ignored since
// documents describe themselves.
func (p *Parser) Parse(msg *message.Message, mode message.Mode, _ string) (message.ParsedMessage, error) {
	payload, err := msg.Payload(mode)
	if err != nil {
		return nil, err
	}
	doc, err := Decode(payload)
	if err != nil {
		return nil, err
	}
	if p.cfg.StringMode {
		coerced, err := coerceObject(doc)
		if err != nil {
			return nil, err
		}
		doc = coerced
	}
	return NewParsedMessage(doc), nil
}

// Decode parses a JSON object, keeping numbers as gojson.Number so that
// integer and decimal values stay distinguishable.
func Decode(payload []byte) (map[string]interface{}, error) {
	dec := gojson.NewDecoder(bytes.NewReader(payload))
	dec.UseNumber()

	var v interface{}
	if err := dec.Decode(&v); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeDeserialization, "failed to decode JSON payload")
	}
	var extra interface{}
	if err := dec.Decode(&extra); err != io.EOF {
		return nil, errors.New(errors.ErrorTypeDeserialization, "unexpected data after JSON document")
	}
	doc, ok := v.(map[string]interface{})
	if !ok {
		return nil, errors.New(errors.ErrorTypeDeserialization, "JSON payload is not an object")
	}
	return doc, nil
}

func coerceObject(doc map[string]interface{}) (map[string]interface{}, error) {
	out := make(map[string]interface{}, len(doc))
	for k, v := range doc {
		c, err := coerce(k, v)
		if err != nil {
			return nil, err
		}
		out[k] = c
	}
	return out, nil
}

func coerce(key string, v interface{}) (interface{}, error) {
	switch val := v.(type) {
	case map[string]interface{}:
		return nil, errors.Newf(errors.ErrorTypeInvalidMessage, "nested JSON object in field %q is not supported in string mode", key)
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, e := range val {
			c, err := coerce(key, e)
			if err != nil {
				return nil, err
			}
			out[i] = c
		}
		return out, nil
	case gojson.Number:
		return string(val), nil
	case bool:
		return strconv.FormatBool(val), nil
	default:
		return v, nil
	}
}
