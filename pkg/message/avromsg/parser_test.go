package avromsg

import (
	"testing"
	"time"

	"github.com/linkedin/goavro/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/nebula-sink/pkg/errors"
	"github.com/ajitpratap0/nebula-sink/pkg/message"
	"github.com/ajitpratap0/nebula-sink/pkg/schema"
)

const orderSchema = `{
	"type": "record",
	"name": "Order",
	"namespace": "nebula.test",
	"fields": [
		{"name": "order_number", "type": "string"},
		{"name": "quantity", "type": "int"},
		{"name": "price", "type": "long"},
		{"name": "note", "type": ["null", "string"], "default": null},
		{"name": "tags", "type": {"type": "array", "items": "string"}},
		{"name": "customer", "type": ["null", {
			"type": "record",
			"name": "Customer",
			"fields": [
				{"name": "name", "type": "string"},
				{"name": "email", "type": ["null", "string"], "default": null}
			]
		}], "default": null}
	]
}`

func encode(t *testing.T, native map[string]interface{}) []byte {
	t.Helper()
	codec, err := goavro.NewCodec(orderSchema)
	require.NoError(t, err)
	raw, err := codec.BinaryFromNative(nil, native)
	require.NoError(t, err)
	return raw
}

func sample() map[string]interface{} {
	return map[string]interface{}{
		"order_number": "test-order",
		"quantity":     int32(2),
		"price":        int64(1000),
		"note":         goavro.Union("string", "fragile"),
		"tags":         []interface{}{"a", "b"},
		"customer": goavro.Union("nebula.test.Customer", map[string]interface{}{
			"name":  "alice",
			"email": goavro.Union("string", "a@example.com"),
		}),
	}
}

func TestNewParserErrors(t *testing.T) {
	for _, s := range []string{"", `{"type": "nope"}`, `"string"`} {
		_, err := NewParser(Config{Schema: s})
		assert.Equal(t, errors.ErrorTypeConfig, errors.TypeOf(err), s)
	}
}

func TestParseUnwrapsUnions(t *testing.T) {
	p, err := NewParser(Config{Schema: orderSchema})
	require.NoError(t, err)

	parsed, err := p.Parse(message.New(nil, encode(t, sample()), nil), message.ModeValue, "")
	require.NoError(t, err)

	mapping, err := parsed.Mapping()
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{
		"order_number": "test-order",
		"quantity":     int32(2),
		"price":        int64(1000),
		"note":         "fragile",
		"tags":         []interface{}{"a", "b"},
		"customer":     map[string]interface{}{"name": "alice", "email": "a@example.com"},
	}, mapping)

	f, err := parsed.FieldByName("customer.email")
	require.NoError(t, err)
	got, err := f.Render()
	require.NoError(t, err)
	assert.Equal(t, "a@example.com", got)

	f, err = parsed.FieldByName("quantity")
	require.NoError(t, err)
	got, err = f.Render()
	require.NoError(t, err)
	assert.Equal(t, "2", got)

	s := parsed.Schema()
	assert.Equal(t, "nebula.test.Order", s.FullName)
	q, ok := s.Field("quantity")
	require.True(t, ok)
	assert.Equal(t, schema.TypeInt32, q.Type)
}

func TestParseNullUnion(t *testing.T) {
	p, err := NewParser(Config{Schema: orderSchema})
	require.NoError(t, err)

	native := sample()
	native["note"] = nil
	native["customer"] = nil
	parsed, err := p.Parse(message.New(nil, encode(t, native), nil), message.ModeValue, "")
	require.NoError(t, err)

	f, err := parsed.FieldByName("note")
	require.NoError(t, err)
	assert.Nil(t, f.Value())
}

func TestConfluentFraming(t *testing.T) {
	p, err := NewParser(Config{Schema: orderSchema, Confluent: true})
	require.NoError(t, err)

	framed := append([]byte{0, 0, 0, 0, 42}, encode(t, sample())...)
	parsed, err := p.Parse(message.New(nil, framed, nil), message.ModeValue, "")
	require.NoError(t, err)
	f, err := parsed.FieldByName("order_number")
	require.NoError(t, err)
	assert.Equal(t, "test-order", f.Value())

	_, err = p.Parse(message.New(nil, encode(t, sample()), nil), message.ModeValue, "")
	assert.Equal(t, errors.ErrorTypeDeserialization, errors.TypeOf(err))
}

const timingSchema = `{
	"type": "record",
	"name": "Timing",
	"fields": [
		{"name": "waits", "type": {"type": "map", "values": {"type": "int", "logicalType": "time-millis"}}},
		{"name": "laps", "type": {"type": "array", "items": {"type": "int", "logicalType": "time-millis"}}},
		{"name": "marks", "type": {"type": "array", "items": {"type": "long", "logicalType": "timestamp-millis"}}}
	]
}`

func TestRenderTemporalCollections(t *testing.T) {
	codec, err := goavro.NewCodec(timingSchema)
	require.NoError(t, err)
	raw, err := codec.BinaryFromNative(nil, map[string]interface{}{
		"waits": map[string]interface{}{"a": 12500 * time.Millisecond},
		"laps":  []interface{}{1500 * time.Millisecond},
		"marks": []interface{}{time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)},
	})
	require.NoError(t, err)

	p, err := NewParser(Config{Schema: timingSchema})
	require.NoError(t, err)
	parsed, err := p.Parse(message.New(nil, raw, nil), message.ModeValue, "")
	require.NoError(t, err)

	tests := []struct {
		field string
		want  string
	}{
		{"waits", `{"a":"12.5s"}`},
		{"laps", "[1.5s]"},
		{"marks", "[2024-01-02T03:04:05Z]"},
	}
	for _, tt := range tests {
		f, err := parsed.FieldByName(tt.field)
		require.NoError(t, err)
		got, err := f.Render()
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, tt.field)
	}
}

func TestParseErrors(t *testing.T) {
	p, err := NewParser(Config{Schema: orderSchema})
	require.NoError(t, err)

	_, err = p.Parse(message.New(nil, nil, nil), message.ModeValue, "")
	assert.Equal(t, errors.ErrorTypeEmptyMessage, errors.TypeOf(err))

	_, err = p.Parse(message.New(nil, []byte{0x02}, nil), message.ModeValue, "")
	assert.Equal(t, errors.ErrorTypeDeserialization, errors.TypeOf(err))

	trailing := append(encode(t, sample()), 0x00)
	_, err = p.Parse(message.New(nil, trailing, nil), message.ModeValue, "")
	assert.Equal(t, errors.ErrorTypeDeserialization, errors.TypeOf(err))
}
