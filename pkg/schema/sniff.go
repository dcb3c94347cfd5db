package schema

import (
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	gojson "github.com/goccy/go-json"
)

// Sniff derives a schema from a decoded document. Keys are visited in sorted
// order so that the same document always yields the same field order.
func Sniff(name string, doc map[string]interface{}) *Schema {
	s := &Schema{FullName: name, Logical: LogicalMessage}
	keys := make([]string, 0, len(doc))
	for k := range doc {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	s.Fields = make([]*Field, 0, len(keys))
	for _, k := range keys {
		s.Fields = append(s.Fields, sniffField(joinName(name, k), k, doc[k]))
	}
	s.index()
	return s
}

func sniffField(path, name string, v interface{}) *Field {
	f := &Field{Name: name, JSONName: name}
	switch val := v.(type) {
	case map[string]interface{}:
		f.Type = TypeMessage
		f.Schema = Sniff(path, val)
	case []interface{}:
		if len(val) == 0 {
			f.Type = TypeString
		} else {
			first := sniffField(path, name, val[0])
			f.Type = first.Type
			f.Schema = first.Schema
		}
		f.Repeated = true
	case gojson.Number:
		f.Type = numberType(string(val))
	case float64:
		f.Type = TypeDouble
	case float32:
		f.Type = TypeFloat
	case int32:
		f.Type = TypeInt32
	case int, int64:
		f.Type = TypeInt64
	case bool:
		f.Type = TypeBool
	case []byte:
		f.Type = TypeBytes
	case time.Time:
		f.Type = TypeMessage
		f.Schema = TimestampSchema
	case time.Duration:
		f.Type = TypeMessage
		f.Schema = DurationSchema
	default:
		f.Type = TypeString
	}
	return f
}

func numberType(n string) FieldType {
	if strings.ContainsAny(n, ".eE") {
		return TypeDouble
	}
	i, err := strconv.ParseInt(n, 10, 64)
	if err != nil {
		return TypeDouble
	}
	if i >= math.MinInt32 && i <= math.MaxInt32 {
		return TypeInt32
	}
	return TypeInt64
}

func joinName(parent, child string) string {
	if parent == "" {
		return child
	}
	return parent + "." + child
}
