package schema

import (
	"google.golang.org/protobuf/reflect/protoreflect"
)

const (
	timestampName protoreflect.FullName = "google.protobuf.Timestamp"
	durationName  protoreflect.FullName = "google.protobuf.Duration"
	structName    protoreflect.FullName = "google.protobuf.Struct"
)

// KindOf computes the rendering kind of a protobuf field descriptor. For map
// fields the result is KindMap; use KindOf(fd.MapValue()) for their values.
func KindOf(fd protoreflect.FieldDescriptor) Kind {
	if fd.Kind() != protoreflect.MessageKind && fd.Kind() != protoreflect.GroupKind {
		return KindDefault
	}
	switch fd.Message().FullName() {
	case durationName:
		return KindDuration
	case timestampName:
		return KindTimestamp
	}
	if fd.IsMap() {
		return KindMap
	}
	if fd.Message().FullName() == structName {
		return KindStruct
	}
	return KindMessage
}

// FromDescriptor derives a Schema tree from a protobuf message descriptor.
// Self-referencing message types resolve to the same *Schema, so the result
// may contain cycles.
func FromDescriptor(md protoreflect.MessageDescriptor) *Schema {
	b := &descriptorWalker{seen: make(map[protoreflect.FullName]*Schema)}
	return b.walk(md)
}

type descriptorWalker struct {
	seen map[protoreflect.FullName]*Schema
}

func (w *descriptorWalker) walk(md protoreflect.MessageDescriptor) *Schema {
	if s, ok := w.seen[md.FullName()]; ok {
		return s
	}
	s := &Schema{FullName: string(md.FullName()), Logical: logicalOf(md)}
	w.seen[md.FullName()] = s

	fields := md.Fields()
	s.Fields = make([]*Field, 0, fields.Len())
	for i := 0; i < fields.Len(); i++ {
		fd := fields.Get(i)
		f := &Field{
			Name:     string(fd.Name()),
			JSONName: fd.JSONName(),
			Type:     typeOf(fd),
			Repeated: fd.IsList() || fd.IsMap(),
		}
		if fd.Message() != nil {
			f.Schema = w.walk(fd.Message())
		}
		s.Fields = append(s.Fields, f)
	}
	s.index()
	return s
}

func logicalOf(md protoreflect.MessageDescriptor) LogicalType {
	switch md.FullName() {
	case timestampName:
		return LogicalTimestamp
	case durationName:
		return LogicalDuration
	case structName:
		return LogicalStruct
	}
	if md.IsMapEntry() {
		return LogicalMap
	}
	return LogicalMessage
}

func typeOf(fd protoreflect.FieldDescriptor) FieldType {
	switch fd.Kind() {
	case protoreflect.StringKind:
		return TypeString
	case protoreflect.Int32Kind, protoreflect.Sint32Kind, protoreflect.Sfixed32Kind:
		return TypeInt32
	case protoreflect.Int64Kind, protoreflect.Sint64Kind, protoreflect.Sfixed64Kind:
		return TypeInt64
	case protoreflect.Uint32Kind, protoreflect.Fixed32Kind:
		return TypeUint32
	case protoreflect.Uint64Kind, protoreflect.Fixed64Kind:
		return TypeUint64
	case protoreflect.FloatKind:
		return TypeFloat
	case protoreflect.DoubleKind:
		return TypeDouble
	case protoreflect.BoolKind:
		return TypeBool
	case protoreflect.BytesKind:
		return TypeBytes
	case protoreflect.EnumKind:
		return TypeEnum
	default:
		return TypeMessage
	}
}
