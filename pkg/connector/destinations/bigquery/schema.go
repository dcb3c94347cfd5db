package bigquery

import (
	"strings"

	"cloud.google.com/go/bigquery"

	"github.com/ajitpratap0/nebula-sink/pkg/config"
	"github.com/ajitpratap0/nebula-sink/pkg/errors"
	"github.com/ajitpratap0/nebula-sink/pkg/schema"
)

var metadataTypes = map[string]bigquery.FieldType{
	"string":    bigquery.StringFieldType,
	"integer":   bigquery.IntegerFieldType,
	"int":       bigquery.IntegerFieldType,
	"float":     bigquery.FloatFieldType,
	"boolean":   bigquery.BooleanFieldType,
	"bool":      bigquery.BooleanFieldType,
	"timestamp": bigquery.TimestampFieldType,
	"date":      bigquery.DateFieldType,
	"bytes":     bigquery.BytesFieldType,
}

// GenerateSchema derives the table schema from s in field declaration order
// and appends the metadata columns, flat or nested under namespace. A
// metadata column may not share a name with a data field.
func GenerateSchema(s *schema.Schema, meta []config.MetadataColumn, namespace string) (bigquery.Schema, error) {
	out := generateFields(s, map[string]bool{})
	if len(meta) == 0 {
		return out, nil
	}

	taken := make(map[string]bool, len(out))
	for _, f := range out {
		taken[f.Name] = true
	}
	metaFields := make(bigquery.Schema, 0, len(meta))
	for _, c := range meta {
		typ, ok := metadataTypes[c.Type]
		if !ok {
			return nil, errors.Newf(errors.ErrorTypeConfig, "unsupported metadata column type %q", c.Type).
				WithDetail("column", c.Name)
		}
		if namespace == "" && taken[c.Name] {
			return nil, errors.Newf(errors.ErrorTypeConfig, "metadata column %q collides with a message field", c.Name)
		}
		metaFields = append(metaFields, &bigquery.FieldSchema{Name: c.Name, Type: typ})
	}

	if namespace == "" {
		return append(out, metaFields...), nil
	}
	if taken[namespace] {
		return nil, errors.Newf(errors.ErrorTypeConfig, "metadata namespace %q collides with a message field", namespace)
	}
	return append(out, &bigquery.FieldSchema{
		Name:   namespace,
		Type:   bigquery.RecordFieldType,
		Schema: metaFields,
	}), nil
}

// generateFields walks s depth first. visiting holds the message types on
// the current path; a message that contains itself is stored as JSON.
func generateFields(s *schema.Schema, visiting map[string]bool) bigquery.Schema {
	if s == nil {
		return nil
	}
	visiting[s.FullName] = true
	defer delete(visiting, s.FullName)

	out := make(bigquery.Schema, 0, len(s.Fields))
	for _, f := range s.Fields {
		fs := generateField(f, visiting)
		fs.Repeated = f.Repeated
		out = append(out, fs)
	}
	return out
}

func generateField(f *schema.Field, visiting map[string]bool) *bigquery.FieldSchema {
	fs := &bigquery.FieldSchema{Name: f.Name}
	switch f.Kind() {
	case schema.KindTimestamp:
		fs.Type = bigquery.TimestampFieldType
	case schema.KindDuration:
		fs.Type = bigquery.RecordFieldType
		fs.Schema = bigquery.Schema{
			{Name: "seconds", Type: bigquery.IntegerFieldType},
			{Name: "nanos", Type: bigquery.IntegerFieldType},
		}
	case schema.KindMap:
		key, _ := f.Schema.Field("key")
		value := f.MapValue()
		keyField := &bigquery.FieldSchema{Name: "key", Type: bigquery.StringFieldType}
		if key != nil {
			keyField = generateField(key, visiting)
		}
		fs.Type = bigquery.RecordFieldType
		fs.Schema = bigquery.Schema{keyField, generateField(value, visiting)}
	case schema.KindStruct:
		fs.Type = bigquery.StringFieldType
	case schema.KindMessage:
		if visiting[f.Schema.FullName] {
			fs.Type = bigquery.StringFieldType
			break
		}
		fs.Type = bigquery.RecordFieldType
		fs.Schema = generateFields(f.Schema, visiting)
	default:
		fs.Type = scalarType(f.Type)
	}
	return fs
}

func scalarType(t schema.FieldType) bigquery.FieldType {
	switch t {
	case schema.TypeInt32, schema.TypeInt64, schema.TypeUint32, schema.TypeUint64:
		return bigquery.IntegerFieldType
	case schema.TypeFloat, schema.TypeDouble:
		return bigquery.FloatFieldType
	case schema.TypeBool:
		return bigquery.BooleanFieldType
	case schema.TypeBytes:
		return bigquery.BytesFieldType
	default:
		return bigquery.StringFieldType
	}
}

// ValidateLayout checks the partition and cluster settings against the
// generated schema.
func ValidateLayout(s bigquery.Schema, cfg config.BigQueryConfig) error {
	byName := make(map[string]*bigquery.FieldSchema, len(s))
	for _, f := range s {
		byName[f.Name] = f
	}

	if cfg.PartitionKey != "" {
		f, ok := byName[cfg.PartitionKey]
		if !ok {
			return errors.Newf(errors.ErrorTypeConfig, "partition key %q is not a table field", cfg.PartitionKey)
		}
		switch f.Type {
		case bigquery.TimestampFieldType, bigquery.DateFieldType, bigquery.DateTimeFieldType:
		default:
			return errors.Newf(errors.ErrorTypeConfig, "partition key %q must be a TIMESTAMP or DATE field, got %s",
				cfg.PartitionKey, f.Type)
		}
		if f.Repeated {
			return errors.Newf(errors.ErrorTypeConfig, "partition key %q cannot be repeated", cfg.PartitionKey)
		}
	}

	if len(cfg.ClusterKeys) > config.MaxClusterKeys {
		return errors.Newf(errors.ErrorTypeConfig, "at most %d cluster keys are allowed, got %d",
			config.MaxClusterKeys, len(cfg.ClusterKeys))
	}
	for _, k := range cfg.ClusterKeys {
		if _, ok := byName[k]; !ok {
			return errors.Newf(errors.ErrorTypeConfig, "cluster key %q is not a table field", k)
		}
	}
	return nil
}

func partitioningType(s string) bigquery.TimePartitioningType {
	switch strings.ToUpper(s) {
	case "HOUR":
		return bigquery.HourPartitioningType
	case "MONTH":
		return bigquery.MonthPartitioningType
	case "YEAR":
		return bigquery.YearPartitioningType
	default:
		return bigquery.DayPartitioningType
	}
}

// mergeSchema returns current with every field of desired it lacks
// appended, recursing into records. BigQuery only accepts additive changes.
func mergeSchema(current, desired bigquery.Schema) (bigquery.Schema, bool) {
	byName := make(map[string]*bigquery.FieldSchema, len(current))
	for _, f := range current {
		byName[f.Name] = f
	}
	out := make(bigquery.Schema, 0, len(desired)+len(current))
	changed := false
	for _, f := range current {
		cp := *f
		out = append(out, &cp)
		byName[f.Name] = &cp
	}
	for _, f := range desired {
		existing, ok := byName[f.Name]
		if !ok {
			out = append(out, f)
			changed = true
			continue
		}
		if existing.Type == bigquery.RecordFieldType && f.Type == bigquery.RecordFieldType {
			merged, sub := mergeSchema(existing.Schema, f.Schema)
			if sub {
				existing.Schema = merged
				changed = true
			}
		}
	}
	return out, changed
}
