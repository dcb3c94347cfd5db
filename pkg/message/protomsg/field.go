package protomsg

import (
	"encoding/base64"
	"strconv"
	"strings"

	gojson "github.com/goccy/go-json"
	"google.golang.org/protobuf/reflect/protoreflect"

	"github.com/ajitpratap0/nebula-sink/pkg/errors"
	"github.com/ajitpratap0/nebula-sink/pkg/schema"
)

// Field is one resolved field of a protobuf message. Its kind is computed once
// from the descriptor.
type Field struct {
	fd    protoreflect.FieldDescriptor
	value protoreflect.Value
	kind  schema.Kind
}

// NewField binds a descriptor and its value.
func NewField(fd protoreflect.FieldDescriptor, v protoreflect.Value) *Field {
	return &Field{fd: fd, value: v, kind: schema.KindOf(fd)}
}

// Kind reports the rendering kind of the field.
func (f *Field) Kind() schema.Kind {
	return f.kind
}

// Descriptor returns the field descriptor.
func (f *Field) Descriptor() protoreflect.FieldDescriptor {
	return f.fd
}

// Value returns the canonical native value (see Native).
func (f *Field) Value() interface{} {
	return Native(f.fd, f.value)
}

// Render returns the canonical string form of the field:
//
//	duration  "12.5s"
//	timestamp RFC 3339 in UTC
//	map       JSON object, values rendered by kind
//	struct    JSON object
//	message   JSON object keyed by field name
//	other     literal scalar form; enums by name, bytes as base64
//
// Repeated messages, durations, timestamps and structs render as the
// bracketed, comma-joined element renderings. Other repeated fields are
// encoded as a JSON array.
func (f *Field) Render() (string, error) {
	if f.fd.IsList() {
		return f.renderList()
	}
	if f.kind == schema.KindMap {
		return marshal(jsonValue(f.fd, f.value))
	}
	return renderElement(f.kind, f.fd, f.value)
}

func renderElement(kind schema.Kind, fd protoreflect.FieldDescriptor, v protoreflect.Value) (string, error) {
	switch kind {
	case schema.KindDuration, schema.KindTimestamp:
		return jsonSingular(fd, v).(string), nil
	case schema.KindStruct, schema.KindMessage:
		return marshal(jsonSingular(fd, v))
	default:
		return renderScalar(fd, v), nil
	}
}

func (f *Field) renderList() (string, error) {
	l := f.value.List()
	switch f.kind {
	case schema.KindDuration, schema.KindTimestamp, schema.KindStruct, schema.KindMessage:
		parts := make([]string, l.Len())
		for i := range parts {
			s, err := renderElement(f.kind, f.fd, l.Get(i))
			if err != nil {
				return "", err
			}
			parts[i] = s
		}
		return "[" + strings.Join(parts, ",") + "]", nil
	default:
		return marshal(Native(f.fd, f.value))
	}
}

func renderScalar(fd protoreflect.FieldDescriptor, v protoreflect.Value) string {
	switch fd.Kind() {
	case protoreflect.StringKind:
		return v.String()
	case protoreflect.BoolKind:
		return strconv.FormatBool(v.Bool())
	case protoreflect.Int32Kind, protoreflect.Sint32Kind, protoreflect.Sfixed32Kind,
		protoreflect.Int64Kind, protoreflect.Sint64Kind, protoreflect.Sfixed64Kind:
		return strconv.FormatInt(v.Int(), 10)
	case protoreflect.Uint32Kind, protoreflect.Fixed32Kind,
		protoreflect.Uint64Kind, protoreflect.Fixed64Kind:
		return strconv.FormatUint(v.Uint(), 10)
	case protoreflect.FloatKind:
		return strconv.FormatFloat(v.Float(), 'g', -1, 32)
	case protoreflect.DoubleKind:
		return strconv.FormatFloat(v.Float(), 'g', -1, 64)
	case protoreflect.BytesKind:
		return base64.StdEncoding.EncodeToString(v.Bytes())
	case protoreflect.EnumKind:
		if ev := fd.Enum().Values().ByNumber(v.Enum()); ev != nil {
			return string(ev.Name())
		}
		return strconv.FormatInt(int64(v.Enum()), 10)
	default:
		return v.String()
	}
}

func marshal(v interface{}) (string, error) {
	raw, err := gojson.Marshal(v)
	if err != nil {
		return "", errors.Wrap(err, errors.ErrorTypeInvalidMessage, "failed to render field as JSON")
	}
	return string(raw), nil
}
