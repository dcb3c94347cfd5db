// Package schema describes the structure of decoded messages.
//
// A Schema is a named, possibly recursive tree of Fields. It is derived once
// from a protobuf message descriptor (FromDescriptor) or per message by
// sniffing a decoded document (Sniff). Schemas are immutable after
// construction and safe to share between goroutines.
package schema

// LogicalType refines a structural message type.
type LogicalType string

const (
	LogicalMessage   LogicalType = "MESSAGE"
	LogicalTimestamp LogicalType = "TIMESTAMP"
	LogicalDuration  LogicalType = "DURATION"
	LogicalStruct    LogicalType = "STRUCT"
	LogicalMap       LogicalType = "MAP"
)

// FieldType is the scalar type tag of a field.
type FieldType string

const (
	TypeString  FieldType = "STRING"
	TypeInt32   FieldType = "INT32"
	TypeInt64   FieldType = "INT64"
	TypeUint32  FieldType = "UINT32"
	TypeUint64  FieldType = "UINT64"
	TypeFloat   FieldType = "FLOAT"
	TypeDouble  FieldType = "DOUBLE"
	TypeBool    FieldType = "BOOLEAN"
	TypeBytes   FieldType = "BYTES"
	TypeEnum    FieldType = "ENUM"
	TypeMessage FieldType = "MESSAGE"
)

// Kind selects how a field value is rendered and converted. The constants are
// listed in dispatch priority order.
type Kind int

const (
	KindDuration Kind = iota
	KindTimestamp
	KindMap
	KindStruct
	KindMessage
	KindDefault
)

func (k Kind) String() string {
	switch k {
	case KindDuration:
		return "duration"
	case KindTimestamp:
		return "timestamp"
	case KindMap:
		return "map"
	case KindStruct:
		return "struct"
	case KindMessage:
		return "message"
	default:
		return "default"
	}
}

// Well-known logical schemas shared by every tree that refers to them.
var (
	TimestampSchema = &Schema{FullName: "google.protobuf.Timestamp", Logical: LogicalTimestamp}
	DurationSchema  = &Schema{FullName: "google.protobuf.Duration", Logical: LogicalDuration}
	StructSchema    = &Schema{FullName: "google.protobuf.Struct", Logical: LogicalStruct}
)

// Schema is a named type with ordered fields.
type Schema struct {
	FullName string
	Fields   []*Field
	Logical  LogicalType

	byName map[string]*Field
}

// Field is one member of a Schema. Type and Repeated never change after the
// schema is built.
type Field struct {
	Name     string
	JSONName string
	Type     FieldType
	Repeated bool
	// Schema is set for message-typed fields.
	Schema *Schema
}

// Field returns the field with the given name or wire/json name.
func (s *Schema) Field(name string) (*Field, bool) {
	if s == nil {
		return nil, false
	}
	if s.byName == nil {
		for _, f := range s.Fields {
			if f.Name == name || f.JSONName == name {
				return f, true
			}
		}
		return nil, false
	}
	f, ok := s.byName[name]
	return f, ok
}

// index must be called once, after Fields is final.
func (s *Schema) index() {
	s.byName = make(map[string]*Field, len(s.Fields)*2)
	for _, f := range s.Fields {
		s.byName[f.Name] = f
		if f.JSONName != "" {
			if _, taken := s.byName[f.JSONName]; !taken {
				s.byName[f.JSONName] = f
			}
		}
	}
}

// Kind reports how values of this field are rendered.
func (f *Field) Kind() Kind {
	if f.Type != TypeMessage || f.Schema == nil {
		return KindDefault
	}
	switch f.Schema.Logical {
	case LogicalDuration:
		return KindDuration
	case LogicalTimestamp:
		return KindTimestamp
	case LogicalMap:
		return KindMap
	case LogicalStruct:
		return KindStruct
	default:
		return KindMessage
	}
}

// MapValue returns the value field of a map entry schema.
func (f *Field) MapValue() *Field {
	if f.Kind() != KindMap {
		return nil
	}
	v, _ := f.Schema.Field("value")
	return v
}

// Names returns the field names in declaration order.
func (s *Schema) Names() []string {
	names := make([]string, len(s.Fields))
	for i, f := range s.Fields {
		names[i] = f.Name
	}
	return names
}
