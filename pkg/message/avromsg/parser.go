// Package avromsg decodes Avro binary payloads written with a schema supplied
// in configuration, optionally wrapped in Confluent wire framing.
package avromsg

import (
	"encoding/binary"

	gojson "github.com/goccy/go-json"
	"github.com/linkedin/goavro/v2"

	"github.com/ajitpratap0/nebula-sink/pkg/errors"
	"github.com/ajitpratap0/nebula-sink/pkg/message"
	"github.com/ajitpratap0/nebula-sink/pkg/message/jsonmsg"
	"github.com/ajitpratap0/nebula-sink/pkg/schema"
)

const (
	confluentMagic     = 0x0
	confluentHeaderLen = 5
)

// Config controls Avro parsing.
type Config struct {
	// Schema is the writer schema as Avro JSON. Its top level must be a record.
	Schema string `yaml:"schema"`
	// Confluent expects a magic byte and a 4-byte schema id before the body.
	Confluent bool `yaml:"confluent"`
}

// Parser decodes Avro records into plain documents.
type Parser struct {
	cfg   Config
	codec *goavro.Codec
	root  *node
}

// NewParser compiles the configured schema.
func NewParser(cfg Config) (*Parser, error) {
	if cfg.Schema == "" {
		return nil, errors.New(errors.ErrorTypeConfig, "avro schema is required")
	}
	codec, err := goavro.NewCodec(cfg.Schema)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "invalid avro schema")
	}
	var raw interface{}
	if err := gojson.Unmarshal([]byte(cfg.Schema), &raw); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "invalid avro schema")
	}
	root := compile(raw, "", map[string]*node{})
	if root.kind != "record" {
		return nil, errors.Newf(errors.ErrorTypeConfig, "avro schema must be a record, got %s", root.kind)
	}
	return &Parser{cfg: cfg, codec: codec, root: root}, nil
}

// Parse decodes the selected payload. The schema reference is ignored; the
// writer schema is fixed by configuration.
func (p *Parser) Parse(msg *message.Message, mode message.Mode, _ string) (message.ParsedMessage, error) {
	payload, err := msg.Payload(mode)
	if err != nil {
		return nil, err
	}
	body := payload
	var schemaID uint32
	if p.cfg.Confluent {
		if len(payload) < confluentHeaderLen || payload[0] != confluentMagic {
			return nil, errors.New(errors.ErrorTypeDeserialization, "payload is missing confluent framing")
		}
		schemaID = binary.BigEndian.Uint32(payload[1:confluentHeaderLen])
		body = payload[confluentHeaderLen:]
	}

	native, rest, err := p.codec.NativeFromBinary(body)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeDeserialization, "failed to decode avro payload").
			WithDetail("schema_id", schemaID)
	}
	if len(rest) > 0 {
		return nil, errors.Newf(errors.ErrorTypeDeserialization, "%d unexpected bytes after avro record", len(rest))
	}
	doc, ok := p.root.unwrap(native).(map[string]interface{})
	if !ok {
		return nil, errors.New(errors.ErrorTypeDeserialization, "avro payload is not a record")
	}
	return &ParsedMessage{ParsedMessage: jsonmsg.NewParsedMessage(doc), name: p.root.name}, nil
}

// ParsedMessage is a decoded Avro record. Field lookup and rendering behave
// like a JSON document.
type ParsedMessage struct {
	*jsonmsg.ParsedMessage
	name   string
	schema *schema.Schema
}

// Schema sniffs the decoded record, named after the writer schema.
func (m *ParsedMessage) Schema() *schema.Schema {
	if m.schema == nil {
		raw, _ := m.Raw().(map[string]interface{})
		m.schema = schema.Sniff(m.name, raw)
	}
	return m.schema
}
