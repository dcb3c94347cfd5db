// Package testproto builds protobuf fixtures for tests without generated code.
//
// The descriptors are assembled from descriptorpb so that they travel through
// the same FileDescriptorSet path the schema registry uses in production.
package testproto

import (
	"sync"
	"time"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protodesc"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/reflect/protoregistry"
	"google.golang.org/protobuf/types/descriptorpb"
	"google.golang.org/protobuf/types/dynamicpb"
	"google.golang.org/protobuf/types/known/durationpb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/timestamppb"
)

// Message names available in the fixture set.
const (
	TestMessage       = "nebula.test.TestMessage"
	TestItem          = "nebula.test.TestItem"
	TestRecursive     = "nebula.test.TestRecursive"
	TestSmall         = "nebula.test.TestSmall"
	TestNestedSmall   = "nebula.test.TestNestedSmall"
	TestItemSmall     = "nebula.test.TestItemSmall"
	TestClashMetadata = "nebula.test.TestClashMetadata"
)

var (
	buildOnce sync.Once
	fileSet   *descriptorpb.FileDescriptorSet
	files     *protoregistry.Files
	buildErr  error
)

// FileDescriptorSet returns the fixture descriptors together with the
// well-known types they import.
func FileDescriptorSet() *descriptorpb.FileDescriptorSet {
	build()
	return fileSet
}

// MarshaledSet returns the serialized descriptor set, as a registry would serve it.
func MarshaledSet() []byte {
	raw, err := proto.Marshal(FileDescriptorSet())
	if err != nil {
		panic(err)
	}
	return raw
}

// Files returns the fixture descriptors as a resolver.
func Files() *protoregistry.Files {
	build()
	if buildErr != nil {
		panic(buildErr)
	}
	return files
}

// Descriptor finds a fixture message descriptor by full name.
func Descriptor(name string) protoreflect.MessageDescriptor {
	d, err := Files().FindDescriptorByName(protoreflect.FullName(name))
	if err != nil {
		panic(err)
	}
	return d.(protoreflect.MessageDescriptor)
}

func build() {
	buildOnce.Do(func() {
		fileSet = &descriptorpb.FileDescriptorSet{
			File: []*descriptorpb.FileDescriptorProto{
				protodesc.ToFileDescriptorProto(timestamppb.File_google_protobuf_timestamp_proto),
				protodesc.ToFileDescriptorProto(durationpb.File_google_protobuf_duration_proto),
				protodesc.ToFileDescriptorProto(structpb.File_google_protobuf_struct_proto),
				fixtureFile(),
			},
		}
		files, buildErr = protodesc.NewFiles(fileSet)
	})
}

type (
	fieldType  = descriptorpb.FieldDescriptorProto_Type
	fieldLabel = descriptorpb.FieldDescriptorProto_Label
)

const (
	optional = descriptorpb.FieldDescriptorProto_LABEL_OPTIONAL
	repeated = descriptorpb.FieldDescriptorProto_LABEL_REPEATED

	tString  = descriptorpb.FieldDescriptorProto_TYPE_STRING
	tInt32   = descriptorpb.FieldDescriptorProto_TYPE_INT32
	tInt64   = descriptorpb.FieldDescriptorProto_TYPE_INT64
	tBool    = descriptorpb.FieldDescriptorProto_TYPE_BOOL
	tDouble  = descriptorpb.FieldDescriptorProto_TYPE_DOUBLE
	tBytes   = descriptorpb.FieldDescriptorProto_TYPE_BYTES
	tEnum    = descriptorpb.FieldDescriptorProto_TYPE_ENUM
	tMessage = descriptorpb.FieldDescriptorProto_TYPE_MESSAGE
)

func field(name string, number int32, typ fieldType, label fieldLabel, typeName string) *descriptorpb.FieldDescriptorProto {
	f := &descriptorpb.FieldDescriptorProto{
		Name:   proto.String(name),
		Number: proto.Int32(number),
		Type:   typ.Enum(),
		Label:  label.Enum(),
	}
	if typeName != "" {
		f.TypeName = proto.String(typeName)
	}
	return f
}

func mapEntry(name string, valueType fieldType, valueTypeName string) *descriptorpb.DescriptorProto {
	return &descriptorpb.DescriptorProto{
		Name: proto.String(name),
		Field: []*descriptorpb.FieldDescriptorProto{
			field("key", 1, tString, optional, ""),
			field("value", 2, valueType, optional, valueTypeName),
		},
		Options: &descriptorpb.MessageOptions{MapEntry: proto.Bool(true)},
	}
}

func fixtureFile() *descriptorpb.FileDescriptorProto {
	return &descriptorpb.FileDescriptorProto{
		Name:    proto.String("nebula/test/order.proto"),
		Package: proto.String("nebula.test"),
		Syntax:  proto.String("proto3"),
		Dependency: []string{
			"google/protobuf/timestamp.proto",
			"google/protobuf/duration.proto",
			"google/protobuf/struct.proto",
		},
		MessageType: []*descriptorpb.DescriptorProto{
			{
				Name: proto.String("TestItem"),
				Field: []*descriptorpb.FieldDescriptorProto{
					field("id", 1, tString, optional, ""),
					field("quantity", 2, tInt32, optional, ""),
				},
			},
			{
				Name: proto.String("TestMessage"),
				Field: []*descriptorpb.FieldDescriptorProto{
					field("order_number", 1, tString, optional, ""),
					field("order_url", 2, tString, optional, ""),
					field("order_details", 3, tString, optional, ""),
					field("created_at", 4, tMessage, optional, ".google.protobuf.Timestamp"),
					field("trip_duration", 5, tMessage, optional, ".google.protobuf.Duration"),
					field("current_state", 6, tMessage, repeated, ".nebula.test.TestMessage.CurrentStateEntry"),
					field("properties", 7, tMessage, optional, ".google.protobuf.Struct"),
					field("aliases", 8, tString, repeated, ""),
					field("item", 9, tMessage, optional, ".nebula.test.TestItem"),
					field("items", 10, tMessage, repeated, ".nebula.test.TestItem"),
					field("price", 11, tInt64, optional, ""),
					field("enabled", 12, tBool, optional, ""),
					field("updated_at", 13, tMessage, repeated, ".google.protobuf.Timestamp"),
					field("timestamps", 14, tMessage, repeated, ".nebula.test.TestMessage.TimestampsEntry"),
					field("status", 15, tEnum, optional, ".nebula.test.TestMessage.Status"),
					field("discount", 16, tDouble, optional, ""),
					field("payload", 17, tBytes, optional, ""),
					field("durations", 18, tMessage, repeated, ".google.protobuf.Duration"),
				},
				NestedType: []*descriptorpb.DescriptorProto{
					mapEntry("CurrentStateEntry", tString, ""),
					mapEntry("TimestampsEntry", tMessage, ".google.protobuf.Timestamp"),
				},
				EnumType: []*descriptorpb.EnumDescriptorProto{
					{
						Name: proto.String("Status"),
						Value: []*descriptorpb.EnumValueDescriptorProto{
							{Name: proto.String("UNKNOWN"), Number: proto.Int32(0)},
							{Name: proto.String("ACTIVE"), Number: proto.Int32(1)},
						},
					},
				},
			},
			{
				Name: proto.String("TestRecursive"),
				Field: []*descriptorpb.FieldDescriptorProto{
					field("name", 1, tString, optional, ""),
					field("child", 2, tMessage, optional, ".nebula.test.TestRecursive"),
				},
			},
			{
				Name: proto.String("TestSmall"),
				Field: []*descriptorpb.FieldDescriptorProto{
					field("order_number", 1, tString, optional, ""),
				},
			},
			{
				Name: proto.String("TestItemSmall"),
				Field: []*descriptorpb.FieldDescriptorProto{
					field("id", 1, tString, optional, ""),
				},
			},
			{
				Name: proto.String("TestNestedSmall"),
				Field: []*descriptorpb.FieldDescriptorProto{
					field("order_number", 1, tString, optional, ""),
					field("item", 9, tMessage, optional, ".nebula.test.TestItemSmall"),
				},
			},
			{
				Name: proto.String("TestClashMetadata"),
				Field: []*descriptorpb.FieldDescriptorProto{
					field("order_number", 1, tString, optional, ""),
					field("message_offset", 2, tInt64, optional, ""),
					field("created_at", 3, tMessage, optional, ".google.protobuf.Timestamp"),
				},
			},
		},
	}
}

// Builder populates a dynamic message of a fixture type.
type Builder struct {
	m *dynamicpb.Message
}

// New starts a message of the named fixture type.
func New(name string) *Builder {
	return &Builder{m: dynamicpb.NewMessage(Descriptor(name))}
}

func (b *Builder) fd(name string) protoreflect.FieldDescriptor {
	fd := b.m.Descriptor().Fields().ByName(protoreflect.Name(name))
	if fd == nil {
		panic("unknown field " + name)
	}
	return fd
}

// Str sets a string field.
func (b *Builder) Str(field, v string) *Builder {
	b.m.Set(b.fd(field), protoreflect.ValueOfString(v))
	return b
}

// Int sets an int32 or int64 field.
func (b *Builder) Int(field string, v int64) *Builder {
	fd := b.fd(field)
	if fd.Kind() == protoreflect.Int32Kind {
		b.m.Set(fd, protoreflect.ValueOfInt32(int32(v)))
	} else {
		b.m.Set(fd, protoreflect.ValueOfInt64(v))
	}
	return b
}

// Bool sets a bool field.
func (b *Builder) Bool(field string, v bool) *Builder {
	b.m.Set(b.fd(field), protoreflect.ValueOfBool(v))
	return b
}

// Double sets a double field.
func (b *Builder) Double(field string, v float64) *Builder {
	b.m.Set(b.fd(field), protoreflect.ValueOfFloat64(v))
	return b
}

// Raw sets a bytes field.
func (b *Builder) Raw(field string, v []byte) *Builder {
	b.m.Set(b.fd(field), protoreflect.ValueOfBytes(v))
	return b
}

// Enum sets an enum field by number.
func (b *Builder) Enum(field string, n int32) *Builder {
	b.m.Set(b.fd(field), protoreflect.ValueOfEnum(protoreflect.EnumNumber(n)))
	return b
}

// Strings appends to a repeated string field.
func (b *Builder) Strings(field string, vs ...string) *Builder {
	l := b.m.Mutable(b.fd(field)).List()
	for _, v := range vs {
		l.Append(protoreflect.ValueOfString(v))
	}
	return b
}

// Timestamp sets a google.protobuf.Timestamp field.
func (b *Builder) Timestamp(field string, t time.Time) *Builder {
	fd := b.fd(field)
	v := b.m.NewField(fd)
	setTimestamp(v.Message(), t)
	b.m.Set(fd, v)
	return b
}

// Timestamps appends to a repeated google.protobuf.Timestamp field.
func (b *Builder) Timestamps(field string, ts ...time.Time) *Builder {
	l := b.m.Mutable(b.fd(field)).List()
	for _, t := range ts {
		v := l.NewElement()
		setTimestamp(v.Message(), t)
		l.Append(v)
	}
	return b
}

// Duration sets a google.protobuf.Duration field.
func (b *Builder) Duration(field string, d time.Duration) *Builder {
	fd := b.fd(field)
	v := b.m.NewField(fd)
	setDuration(v.Message(), d)
	b.m.Set(fd, v)
	return b
}

// Durations appends to a repeated google.protobuf.Duration field.
func (b *Builder) Durations(field string, ds ...time.Duration) *Builder {
	l := b.m.Mutable(b.fd(field)).List()
	for _, d := range ds {
		v := l.NewElement()
		setDuration(v.Message(), d)
		l.Append(v)
	}
	return b
}

// StringMap sets entries of a map<string,string> field.
func (b *Builder) StringMap(field string, kv map[string]string) *Builder {
	m := b.m.Mutable(b.fd(field)).Map()
	for k, v := range kv {
		m.Set(protoreflect.ValueOfString(k).MapKey(), protoreflect.ValueOfString(v))
	}
	return b
}

// TimestampMap sets entries of a map<string,Timestamp> field.
func (b *Builder) TimestampMap(field string, kv map[string]time.Time) *Builder {
	m := b.m.Mutable(b.fd(field)).Map()
	for k, t := range kv {
		v := m.NewValue()
		setTimestamp(v.Message(), t)
		m.Set(protoreflect.ValueOfString(k).MapKey(), v)
	}
	return b
}

// Struct sets a google.protobuf.Struct field from a plain map.
func (b *Builder) Struct(field string, v map[string]interface{}) *Builder {
	sp, err := structpb.NewStruct(v)
	if err != nil {
		panic(err)
	}
	raw, err := proto.Marshal(sp)
	if err != nil {
		panic(err)
	}
	fd := b.fd(field)
	val := b.m.NewField(fd)
	if err := proto.Unmarshal(raw, val.Message().Interface()); err != nil {
		panic(err)
	}
	b.m.Set(fd, val)
	return b
}

// Message sets a singular message field.
func (b *Builder) Message(field string, child *Builder) *Builder {
	b.m.Set(b.fd(field), protoreflect.ValueOfMessage(child.m))
	return b
}

// Messages appends to a repeated message field.
func (b *Builder) Messages(field string, children ...*Builder) *Builder {
	l := b.m.Mutable(b.fd(field)).List()
	for _, c := range children {
		l.Append(protoreflect.ValueOfMessage(c.m))
	}
	return b
}

// Proto returns the built message.
func (b *Builder) Proto() *dynamicpb.Message {
	return b.m
}

// Bytes returns the wire encoding of the built message.
func (b *Builder) Bytes() []byte {
	raw, err := proto.MarshalOptions{Deterministic: true}.Marshal(b.m)
	if err != nil {
		panic(err)
	}
	return raw
}

func setTimestamp(m protoreflect.Message, t time.Time) {
	fields := m.Descriptor().Fields()
	m.Set(fields.ByName("seconds"), protoreflect.ValueOfInt64(t.Unix()))
	m.Set(fields.ByName("nanos"), protoreflect.ValueOfInt32(int32(t.Nanosecond())))
}

func setDuration(m protoreflect.Message, d time.Duration) {
	fields := m.Descriptor().Fields()
	m.Set(fields.ByName("seconds"), protoreflect.ValueOfInt64(int64(d/time.Second)))
	m.Set(fields.ByName("nanos"), protoreflect.ValueOfInt32(int32(d%time.Second)))
}
