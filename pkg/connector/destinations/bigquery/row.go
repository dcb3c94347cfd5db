package bigquery

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"time"

	"cloud.google.com/go/bigquery"
	gojson "github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/ajitpratap0/nebula-sink/pkg/config"
	"github.com/ajitpratap0/nebula-sink/pkg/errors"
	"github.com/ajitpratap0/nebula-sink/pkg/message"
)

// Row is one streaming insert row. It implements bigquery.ValueSaver.
type Row struct {
	Values   map[string]bigquery.Value
	InsertID string
}

// Save implements bigquery.ValueSaver.
func (r *Row) Save() (map[string]bigquery.Value, string, error) {
	return r.Values, r.InsertID, nil
}

// rowBuilder converts message mappings into rows shaped by the table schema.
type rowBuilder struct {
	fields    map[string]*bigquery.FieldSchema
	meta      []config.MetadataColumn
	namespace string
	insertID  bool
}

func newRowBuilder(s bigquery.Schema, meta []config.MetadataColumn, namespace string, insertID bool) *rowBuilder {
	fields := make(map[string]*bigquery.FieldSchema, len(s))
	for _, f := range s {
		fields[f.Name] = f
	}
	return &rowBuilder{fields: fields, meta: meta, namespace: namespace, insertID: insertID}
}

// Build implements sink.RecordBuilder.
func (b *rowBuilder) Build(msg *message.Message, parsed message.ParsedMessage) ([]interface{}, error) {
	mapping, err := parsed.Mapping()
	if err != nil {
		return nil, err
	}
	values := make(map[string]bigquery.Value, len(mapping)+len(b.meta))
	for name, v := range mapping {
		cv, err := convert(v, b.fields[name])
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeInvalidMessage, "can't convert field").
				WithDetail("field", name)
		}
		values[name] = cv
	}

	if len(b.meta) > 0 {
		meta, err := b.metadata(msg.Metadata)
		if err != nil {
			return nil, err
		}
		if b.namespace == "" {
			for k, v := range meta {
				values[k] = v
			}
		} else {
			values[b.namespace] = meta
		}
	}

	row := &Row{Values: values, InsertID: bigquery.NoDedupeID}
	if b.insertID {
		row.InsertID = uuid.NewString()
	}
	return []interface{}{row}, nil
}

func (b *rowBuilder) metadata(md map[string]interface{}) (map[string]bigquery.Value, error) {
	out := make(map[string]bigquery.Value, len(b.meta))
	for _, c := range b.meta {
		v, ok := md[c.Name]
		if !ok || v == nil {
			continue
		}
		cv, err := convertMetadata(v, metadataTypes[c.Type])
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeInvalidMessage, "can't convert metadata").
				WithDetail("column", c.Name)
		}
		out[c.Name] = cv
	}
	return out, nil
}

func convertMetadata(v interface{}, typ bigquery.FieldType) (bigquery.Value, error) {
	switch typ {
	case bigquery.IntegerFieldType:
		return toInt64(v)
	case bigquery.TimestampFieldType:
		switch t := v.(type) {
		case time.Time:
			return t, nil
		default:
			ms, err := toInt64(v)
			if err != nil {
				return nil, err
			}
			return time.UnixMilli(ms).UTC(), nil
		}
	case bigquery.StringFieldType:
		if s, ok := v.(string); ok {
			return s, nil
		}
		return fmt.Sprint(v), nil
	default:
		return v, nil
	}
}

// convert shapes one native value for the column fs. fs is nil when the
// table schema is not known.
func convert(v interface{}, fs *bigquery.FieldSchema) (bigquery.Value, error) {
	switch val := v.(type) {
	case nil:
		return nil, nil
	case []interface{}:
		out := make([]bigquery.Value, len(val))
		for i, e := range val {
			cv, err := convert(e, fs)
			if err != nil {
				return nil, err
			}
			out[i] = cv
		}
		return out, nil
	case time.Time:
		return val, nil
	case time.Duration:
		return map[string]bigquery.Value{
			"seconds": int64(val / time.Second),
			"nanos":   int64(val % time.Second),
		}, nil
	case map[string]interface{}:
		return convertMap(val, fs)
	case gojson.Number:
		if fs != nil && fs.Type == bigquery.FloatFieldType {
			return val.Float64()
		}
		if i, err := val.Int64(); err == nil {
			return i, nil
		}
		return val.Float64()
	case uint32:
		return int64(val), nil
	case uint64:
		if val > math.MaxInt64 {
			return nil, errors.Newf(errors.ErrorTypeInvalidMessage, "value %d overflows INTEGER", val)
		}
		return int64(val), nil
	case int32:
		return int64(val), nil
	default:
		return val, nil
	}
}

func convertMap(m map[string]interface{}, fs *bigquery.FieldSchema) (bigquery.Value, error) {
	if fs != nil && fs.Type == bigquery.StringFieldType {
		raw, err := gojson.Marshal(message.JSONValue(m))
		if err != nil {
			return nil, err
		}
		return string(raw), nil
	}
	if fs != nil && fs.Repeated && isMapEntry(fs) {
		keys := make([]string, 0, len(m))
		for k := range m {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		value := fs.Schema[1]
		out := make([]bigquery.Value, 0, len(keys))
		for _, k := range keys {
			cv, err := convert(m[k], value)
			if err != nil {
				return nil, err
			}
			out = append(out, map[string]bigquery.Value{"key": k, "value": cv})
		}
		return out, nil
	}

	var sub map[string]*bigquery.FieldSchema
	if fs != nil {
		sub = make(map[string]*bigquery.FieldSchema, len(fs.Schema))
		for _, f := range fs.Schema {
			sub[f.Name] = f
		}
	}
	out := make(map[string]bigquery.Value, len(m))
	for k, e := range m {
		cv, err := convert(e, sub[k])
		if err != nil {
			return nil, err
		}
		out[k] = cv
	}
	return out, nil
}

func isMapEntry(fs *bigquery.FieldSchema) bool {
	return fs.Type == bigquery.RecordFieldType && len(fs.Schema) == 2 &&
		fs.Schema[0].Name == "key" && fs.Schema[1].Name == "value"
}

func toInt64(v interface{}) (int64, error) {
	switch n := v.(type) {
	case int:
		return int64(n), nil
	case int32:
		return int64(n), nil
	case int64:
		return n, nil
	case uint32:
		return int64(n), nil
	case uint64:
		if n > math.MaxInt64 {
			return 0, errors.Newf(errors.ErrorTypeInvalidMessage, "value %d overflows INTEGER", n)
		}
		return int64(n), nil
	case float64:
		return int64(n), nil
	case gojson.Number:
		return n.Int64()
	case string:
		return strconv.ParseInt(n, 10, 64)
	default:
		return 0, errors.Newf(errors.ErrorTypeInvalidMessage, "can't convert %T to INTEGER", v)
	}
}
