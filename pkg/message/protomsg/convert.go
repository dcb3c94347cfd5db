package protomsg

import (
	"time"

	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/ajitpratap0/nebula-sink/pkg/message"
	"github.com/ajitpratap0/nebula-sink/pkg/schema"
)

// Native converts a field value to its canonical Go form:
//
//	Timestamp -> time.Time (UTC)
//	Duration  -> time.Duration
//	Struct    -> map[string]interface{}
//	message   -> map[string]interface{} keyed by field name
//	map       -> map[string]interface{}
//	repeated  -> []interface{}
//	enum      -> value name
//
// Other scalars keep their protobuf Go type.
func Native(fd protoreflect.FieldDescriptor, v protoreflect.Value) interface{} {
	switch {
	case fd.IsMap():
		out := make(map[string]interface{}, v.Map().Len())
		v.Map().Range(func(k protoreflect.MapKey, mv protoreflect.Value) bool {
			out[k.String()] = nativeSingular(fd.MapValue(), mv)
			return true
		})
		return out
	case fd.IsList():
		l := v.List()
		out := make([]interface{}, l.Len())
		for i := range out {
			out[i] = nativeSingular(fd, l.Get(i))
		}
		return out
	default:
		return nativeSingular(fd, v)
	}
}

func nativeSingular(fd protoreflect.FieldDescriptor, v protoreflect.Value) interface{} {
	switch schema.KindOf(fd) {
	case schema.KindDuration:
		s, n := secondsNanos(v.Message())
		return time.Duration(s)*time.Second + time.Duration(n)
	case schema.KindTimestamp:
		s, n := secondsNanos(v.Message())
		return time.Unix(s, int64(n)).UTC()
	case schema.KindStruct:
		return structMap(v.Message())
	case schema.KindMessage:
		return nativeMessage(v.Message())
	default:
		return scalar(fd, v)
	}
}

func nativeMessage(m protoreflect.Message) map[string]interface{} {
	out := make(map[string]interface{})
	m.Range(func(fd protoreflect.FieldDescriptor, v protoreflect.Value) bool {
		out[string(fd.Name())] = Native(fd, v)
		return true
	})
	return out
}

func scalar(fd protoreflect.FieldDescriptor, v protoreflect.Value) interface{} {
	switch fd.Kind() {
	case protoreflect.EnumKind:
		if ev := fd.Enum().Values().ByNumber(v.Enum()); ev != nil {
			return string(ev.Name())
		}
		return int32(v.Enum())
	case protoreflect.BytesKind:
		return v.Bytes()
	default:
		return v.Interface()
	}
}

func secondsNanos(m protoreflect.Message) (int64, int32) {
	fields := m.Descriptor().Fields()
	return m.Get(fields.ByName("seconds")).Int(), int32(m.Get(fields.ByName("nanos")).Int())
}

// structMap converts a google.protobuf.Struct, generated or dynamic, into a
// plain map.
func structMap(m protoreflect.Message) map[string]interface{} {
	if sp, ok := m.Interface().(*structpb.Struct); ok {
		return sp.AsMap()
	}
	out := make(map[string]interface{})
	fields := m.Descriptor().Fields().ByName("fields")
	if fields == nil {
		return out
	}
	m.Get(fields).Map().Range(func(k protoreflect.MapKey, v protoreflect.Value) bool {
		out[k.String()] = structValue(v.Message())
		return true
	})
	return out
}

func structValue(m protoreflect.Message) interface{} {
	od := m.Descriptor().Oneofs().ByName("kind")
	if od == nil {
		return nil
	}
	fd := m.WhichOneof(od)
	if fd == nil {
		return nil
	}
	v := m.Get(fd)
	switch fd.Name() {
	case "number_value":
		return v.Float()
	case "string_value":
		return v.String()
	case "bool_value":
		return v.Bool()
	case "struct_value":
		return structMap(v.Message())
	case "list_value":
		values := v.Message().Descriptor().Fields().ByName("values")
		l := v.Message().Get(values).List()
		out := make([]interface{}, l.Len())
		for i := range out {
			out[i] = structValue(l.Get(i).Message())
		}
		return out
	default:
		return nil
	}
}

// jsonValue is like Native except that timestamps and durations become their
// rendered strings, which is how they appear inside rendered JSON.
func jsonValue(fd protoreflect.FieldDescriptor, v protoreflect.Value) interface{} {
	switch {
	case fd.IsMap():
		out := make(map[string]interface{}, v.Map().Len())
		v.Map().Range(func(k protoreflect.MapKey, mv protoreflect.Value) bool {
			out[k.String()] = jsonSingular(fd.MapValue(), mv)
			return true
		})
		return out
	case fd.IsList():
		l := v.List()
		out := make([]interface{}, l.Len())
		for i := range out {
			out[i] = jsonSingular(fd, l.Get(i))
		}
		return out
	default:
		return jsonSingular(fd, v)
	}
}

func jsonSingular(fd protoreflect.FieldDescriptor, v protoreflect.Value) interface{} {
	switch schema.KindOf(fd) {
	case schema.KindDuration:
		return message.FormatDuration(secondsNanos(v.Message()))
	case schema.KindTimestamp:
		s, n := secondsNanos(v.Message())
		return message.FormatTimestamp(time.Unix(s, int64(n)))
	case schema.KindStruct:
		return structMap(v.Message())
	case schema.KindMessage:
		return jsonMessage(v.Message())
	default:
		return scalar(fd, v)
	}
}

func jsonMessage(m protoreflect.Message) map[string]interface{} {
	out := make(map[string]interface{})
	m.Range(func(fd protoreflect.FieldDescriptor, v protoreflect.Value) bool {
		out[string(fd.Name())] = jsonValue(fd, v)
		return true
	})
	return out
}
