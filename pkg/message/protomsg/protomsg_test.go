package protomsg

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/reflect/protoreflect"

	"github.com/ajitpratap0/nebula-sink/internal/testproto"
	"github.com/ajitpratap0/nebula-sink/pkg/errors"
	"github.com/ajitpratap0/nebula-sink/pkg/message"
)

var fixtures = ResolverFunc(func(name string) (protoreflect.MessageDescriptor, error) {
	d, err := testproto.Files().FindDescriptorByName(protoreflect.FullName(name))
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "unknown message")
	}
	return d.(protoreflect.MessageDescriptor), nil
})

var createdAt = time.Date(2021, 3, 4, 5, 6, 7, 500000000, time.UTC)

func fullMessage() *testproto.Builder {
	return testproto.New(testproto.TestMessage).
		Str("order_number", "test-order").
		Str("order_url", "https://example.com/o/1").
		Timestamp("created_at", createdAt).
		Duration("trip_duration", 12*time.Second+500*time.Millisecond).
		StringMap("current_state", map[string]string{"b": "2", "a": "1"}).
		Struct("properties", map[string]interface{}{"name": "alice", "age": 30}).
		Strings("aliases", "x", "y").
		Message("item", testproto.New(testproto.TestItem).Str("id", "i1").Int("quantity", 3)).
		Messages("items",
			testproto.New(testproto.TestItem).Str("id", "a"),
			testproto.New(testproto.TestItem).Str("id", "b").Int("quantity", 2)).
		Int("price", 1000).
		Bool("enabled", true).
		Timestamps("updated_at", createdAt, createdAt.Add(time.Second)).
		TimestampMap("timestamps", map[string]time.Time{"k": createdAt}).
		Enum("status", 1).
		Double("discount", 0.25).
		Raw("payload", []byte("hi")).
		Durations("durations", time.Second, 1500*time.Millisecond)
}

func parseValue(t *testing.T, p *Parser, value []byte, ref string) message.ParsedMessage {
	t.Helper()
	parsed, err := p.Parse(message.New(nil, value, nil), message.ModeValue, ref)
	require.NoError(t, err)
	return parsed
}

func TestParseErrors(t *testing.T) {
	p := NewParser(fixtures, Config{})

	_, err := p.Parse(message.New(nil, nil, nil), message.ModeValue, testproto.TestMessage)
	assert.Equal(t, errors.ErrorTypeEmptyMessage, errors.TypeOf(err))

	_, err = p.Parse(message.New(nil, []byte{0xff, 0xff, 0xff}, nil), message.ModeValue, testproto.TestMessage)
	assert.Equal(t, errors.ErrorTypeDeserialization, errors.TypeOf(err))

	_, err = p.Parse(message.New(nil, []byte{0x0a, 0x00}, nil), message.ModeValue, "nebula.test.Missing")
	assert.Equal(t, errors.ErrorTypeConfig, errors.TypeOf(err))

	_, err = p.Parse(message.New(nil, []byte{0x0a, 0x00}, nil), message.Mode("x"), testproto.TestMessage)
	assert.Equal(t, errors.ErrorTypeConfig, errors.TypeOf(err))
}

func TestSchemaIsShared(t *testing.T) {
	p := NewParser(fixtures, Config{})
	raw := testproto.New(testproto.TestSmall).Str("order_number", "1").Bytes()
	a := parseValue(t, p, raw, testproto.TestSmall)
	b := parseValue(t, p, raw, testproto.TestSmall)
	assert.Same(t, a.Schema(), b.Schema())
	assert.Equal(t, testproto.TestSmall, a.Schema().FullName)
}

func TestValidate(t *testing.T) {
	full := fullMessage().Bytes()
	nested := testproto.New(testproto.TestMessage).
		Str("order_number", "n").
		Message("item", testproto.New(testproto.TestItem).Str("id", "i").Int("quantity", 5)).
		Bytes()
	matching := testproto.New(testproto.TestNestedSmall).
		Str("order_number", "n").
		Message("item", testproto.New(testproto.TestItemSmall).Str("id", "i")).
		Bytes()

	tests := []struct {
		name    string
		strict  bool
		value   []byte
		ref     string
		wantErr bool
	}{
		{"top level unknown strict", true, full, testproto.TestSmall, true},
		{"top level unknown lenient", false, full, testproto.TestSmall, false},
		{"nested unknown strict", true, nested, testproto.TestNestedSmall, true},
		{"known fields strict", true, matching, testproto.TestNestedSmall, false},
		{"full message strict", true, full, testproto.TestMessage, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			parsed := parseValue(t, NewParser(fixtures, Config{Strict: tt.strict}), tt.value, tt.ref)
			err := parsed.Validate()
			if tt.wantErr {
				assert.Equal(t, errors.ErrorTypeUnknownFields, errors.TypeOf(err))
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestRender(t *testing.T) {
	parsed := parseValue(t, NewParser(fixtures, Config{}), fullMessage().Bytes(), testproto.TestMessage)

	tests := []struct {
		field string
		want  string
	}{
		{"order_number", "test-order"},
		{"orderNumber", "test-order"},
		{"created_at", "2021-03-04T05:06:07.5Z"},
		{"trip_duration", "12.5s"},
		{"current_state", `{"a":"1","b":"2"}`},
		{"properties", `{"age":30,"name":"alice"}`},
		{"aliases", `["x","y"]`},
		{"item", `{"id":"i1","quantity":3}`},
		{"item.id", "i1"},
		{"items", `[{"id":"a"},{"id":"b","quantity":2}]`},
		{"price", "1000"},
		{"enabled", "true"},
		{"updated_at", "[2021-03-04T05:06:07.5Z,2021-03-04T05:06:08.5Z]"},
		{"timestamps", `{"k":"2021-03-04T05:06:07.5Z"}`},
		{"status", "ACTIVE"},
		{"discount", "0.25"},
		{"payload", "aGk="},
		{"durations", "[1s,1.5s]"},
	}
	for _, tt := range tests {
		t.Run(tt.field, func(t *testing.T) {
			f, err := parsed.FieldByName(tt.field)
			require.NoError(t, err)
			got, err := f.Render()
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFieldByNameMissing(t *testing.T) {
	parsed := parseValue(t, NewParser(fixtures, Config{}), fullMessage().Bytes(), testproto.TestMessage)
	for _, name := range []string{"missing", "item.missing", "order_number.x", "items.id"} {
		_, err := parsed.FieldByName(name)
		assert.Equal(t, errors.ErrorTypeInvalidField, errors.TypeOf(err), name)
	}
}

func TestMapping(t *testing.T) {
	raw := testproto.New(testproto.TestMessage).
		Str("order_number", "o-1").
		Timestamp("created_at", createdAt).
		Duration("trip_duration", 90*time.Second).
		Struct("properties", map[string]interface{}{"k": "v"}).
		Message("item", testproto.New(testproto.TestItem).Str("id", "i1")).
		Strings("aliases", "a").
		Enum("status", 1).
		Int("price", 7).
		Bytes()
	parsed := parseValue(t, NewParser(fixtures, Config{}), raw, testproto.TestMessage)

	mapping, err := parsed.Mapping()
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{
		"order_number":  "o-1",
		"created_at":    createdAt,
		"trip_duration": 90 * time.Second,
		"properties":    map[string]interface{}{"k": "v"},
		"item":          map[string]interface{}{"id": "i1"},
		"aliases":       []interface{}{"a"},
		"status":        "ACTIVE",
		"price":         int64(7),
	}, mapping)
}

func TestMappingEmptyMessage(t *testing.T) {
	parsed := NewParsedMessage(testproto.New(testproto.TestMessage).Proto(), false)
	mapping, err := parsed.Mapping()
	require.NoError(t, err)
	assert.Empty(t, mapping)
}

func TestFieldValue(t *testing.T) {
	parsed := NewParsedMessage(fullMessage().Proto(), false)

	f, err := parsed.FieldByName("price")
	require.NoError(t, err)
	assert.Equal(t, int64(1000), f.Value())

	f, err = parsed.FieldByName("current_state")
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{"a": "1", "b": "2"}, f.Value())

	f, err = parsed.FieldByName("properties")
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{"name": "alice", "age": float64(30)}, f.Value())
}
