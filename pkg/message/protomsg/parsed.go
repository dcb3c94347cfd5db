package protomsg

import (
	"strings"

	"google.golang.org/protobuf/reflect/protoreflect"

	"github.com/ajitpratap0/nebula-sink/pkg/errors"
	"github.com/ajitpratap0/nebula-sink/pkg/message"
	"github.com/ajitpratap0/nebula-sink/pkg/schema"
)

// ParsedMessage is a decoded protobuf message.
type ParsedMessage struct {
	msg    protoreflect.ProtoMessage
	schema *schema.Schema
	strict bool
}

// NewParsedMessage wraps an already decoded message.
func NewParsedMessage(msg protoreflect.ProtoMessage, strict bool) *ParsedMessage {
	return &ParsedMessage{
		msg:    msg,
		schema: schema.FromDescriptor(msg.ProtoReflect().Descriptor()),
		strict: strict,
	}
}

// Raw returns the decoded proto.Message.
func (m *ParsedMessage) Raw() interface{} {
	return m.msg
}

func (m *ParsedMessage) Schema() *schema.Schema {
	return m.schema
}

// Validate fails with UNKNOWN_FIELDS_ERROR in strict mode when the payload, at
// any depth, carried fields the descriptor does not declare.
func (m *ParsedMessage) Validate() error {
	if !m.strict {
		return nil
	}
	if path, ok := findUnknown(m.msg.ProtoReflect(), ""); ok {
		where := "top level"
		if path != "" {
			where = "field " + path
		}
		return errors.Newf(errors.ErrorTypeUnknownFields, "message %s has unknown fields at %s",
			m.msg.ProtoReflect().Descriptor().FullName(), where)
	}
	return nil
}

func findUnknown(m protoreflect.Message, path string) (string, bool) {
	if len(m.GetUnknown()) > 0 {
		return path, true
	}
	var (
		found string
		hit   bool
	)
	m.Range(func(fd protoreflect.FieldDescriptor, v protoreflect.Value) bool {
		if fd.Message() == nil {
			return true
		}
		child := joinPath(path, string(fd.Name()))
		switch {
		case fd.IsMap():
			if fd.MapValue().Message() == nil {
				return true
			}
			v.Map().Range(func(k protoreflect.MapKey, mv protoreflect.Value) bool {
				found, hit = findUnknown(mv.Message(), child+"."+k.String())
				return !hit
			})
		case fd.IsList():
			l := v.List()
			for i := 0; i < l.Len() && !hit; i++ {
				found, hit = findUnknown(l.Get(i).Message(), child)
			}
		default:
			found, hit = findUnknown(v.Message(), child)
		}
		return !hit
	})
	return found, hit
}

func joinPath(parent, name string) string {
	if parent == "" {
		return name
	}
	return parent + "." + name
}

// Mapping returns every populated top-level field as its native value.
func (m *ParsedMessage) Mapping() (map[string]interface{}, error) {
	return nativeMessage(m.msg.ProtoReflect()), nil
}

// FieldByName resolves a field by its name or json name. Dotted paths descend
// into singular nested messages.
func (m *ParsedMessage) FieldByName(name string) (message.Field, error) {
	cur := m.msg.ProtoReflect()
	segs := strings.Split(name, ".")
	for i, seg := range segs {
		fd := lookupField(cur.Descriptor(), seg)
		if fd == nil {
			return nil, errors.Newf(errors.ErrorTypeInvalidField, "field %q not found in %s", name, m.schema.FullName)
		}
		if i == len(segs)-1 {
			return NewField(fd, cur.Get(fd)), nil
		}
		if fd.Message() == nil || fd.IsList() || fd.IsMap() {
			return nil, errors.Newf(errors.ErrorTypeInvalidField, "field %q cannot be traversed in %s", name, m.schema.FullName)
		}
		cur = cur.Get(fd).Message()
	}
	return nil, errors.Newf(errors.ErrorTypeInvalidField, "field %q not found in %s", name, m.schema.FullName)
}

func lookupField(md protoreflect.MessageDescriptor, name string) protoreflect.FieldDescriptor {
	fields := md.Fields()
	if fd := fields.ByName(protoreflect.Name(name)); fd != nil {
		return fd
	}
	return fields.ByJSONName(name)
}
