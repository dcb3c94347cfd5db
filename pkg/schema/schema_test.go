package schema

import (
	"strings"
	"testing"
	"time"

	gojson "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/nebula-sink/internal/testproto"
)

func TestFromDescriptor(t *testing.T) {
	s := FromDescriptor(testproto.Descriptor(testproto.TestMessage))

	assert.Equal(t, testproto.TestMessage, s.FullName)
	assert.Equal(t, LogicalMessage, s.Logical)
	assert.Equal(t, []string{
		"order_number", "order_url", "order_details", "created_at", "trip_duration",
		"current_state", "properties", "aliases", "item", "items", "price", "enabled",
		"updated_at", "timestamps", "status", "discount", "payload", "durations",
	}, s.Names())

	tests := []struct {
		field    string
		typ      FieldType
		repeated bool
		kind     Kind
	}{
		{"order_number", TypeString, false, KindDefault},
		{"created_at", TypeMessage, false, KindTimestamp},
		{"trip_duration", TypeMessage, false, KindDuration},
		{"current_state", TypeMessage, true, KindMap},
		{"properties", TypeMessage, false, KindStruct},
		{"aliases", TypeString, true, KindDefault},
		{"item", TypeMessage, false, KindMessage},
		{"items", TypeMessage, true, KindMessage},
		{"price", TypeInt64, false, KindDefault},
		{"enabled", TypeBool, false, KindDefault},
		{"status", TypeEnum, false, KindDefault},
		{"discount", TypeDouble, false, KindDefault},
		{"payload", TypeBytes, false, KindDefault},
	}
	for _, tt := range tests {
		t.Run(tt.field, func(t *testing.T) {
			f, ok := s.Field(tt.field)
			require.True(t, ok)
			assert.Equal(t, tt.typ, f.Type)
			assert.Equal(t, tt.repeated, f.Repeated)
			assert.Equal(t, tt.kind, f.Kind())
		})
	}

	byJSON, ok := s.Field("orderNumber")
	require.True(t, ok)
	assert.Equal(t, "order_number", byJSON.Name)

	state, _ := s.Field("current_state")
	assert.Equal(t, TypeString, state.MapValue().Type)
}

func TestFromDescriptorDeterministic(t *testing.T) {
	md := testproto.Descriptor(testproto.TestMessage)
	a, b := FromDescriptor(md), FromDescriptor(md)
	require.Equal(t, len(a.Fields), len(b.Fields))
	for i := range a.Fields {
		assert.Equal(t, a.Fields[i].Name, b.Fields[i].Name)
		assert.Equal(t, a.Fields[i].Type, b.Fields[i].Type)
		assert.Equal(t, a.Fields[i].Repeated, b.Fields[i].Repeated)
	}
}

func TestFromDescriptorRecursive(t *testing.T) {
	s := FromDescriptor(testproto.Descriptor(testproto.TestRecursive))
	child, ok := s.Field("child")
	require.True(t, ok)
	assert.Same(t, s, child.Schema)
}

func TestKindOf(t *testing.T) {
	md := testproto.Descriptor(testproto.TestMessage)
	fields := md.Fields()
	assert.Equal(t, KindTimestamp, KindOf(fields.ByName("created_at")))
	assert.Equal(t, KindDuration, KindOf(fields.ByName("trip_duration")))
	assert.Equal(t, KindMap, KindOf(fields.ByName("current_state")))
	assert.Equal(t, KindTimestamp, KindOf(fields.ByName("timestamps").MapValue()))
	assert.Equal(t, KindStruct, KindOf(fields.ByName("properties")))
	assert.Equal(t, KindMessage, KindOf(fields.ByName("items")))
	assert.Equal(t, KindDefault, KindOf(fields.ByName("aliases")))
}

func TestSniff(t *testing.T) {
	var doc map[string]interface{}
	dec := gojson.NewDecoder(strings.NewReader(`{
		"name": "john",
		"age": 31,
		"big": 9007199254740993,
		"score": 1.5,
		"active": true,
		"tags": ["a", "b"],
		"empty": [],
		"address": {"city": "x"},
		"nothing": null
	}`))
	dec.UseNumber()
	require.NoError(t, dec.Decode(&doc))

	s := Sniff("", doc)
	assert.Equal(t, []string{"active", "address", "age", "big", "empty", "name", "nothing", "score", "tags"}, s.Names())

	want := map[string]struct {
		typ      FieldType
		repeated bool
	}{
		"active":  {TypeBool, false},
		"address": {TypeMessage, false},
		"age":     {TypeInt32, false},
		"big":     {TypeInt64, false},
		"empty":   {TypeString, true},
		"name":    {TypeString, false},
		"nothing": {TypeString, false},
		"score":   {TypeDouble, false},
		"tags":    {TypeString, true},
	}
	for name, w := range want {
		f, ok := s.Field(name)
		require.True(t, ok, name)
		assert.Equal(t, w.typ, f.Type, name)
		assert.Equal(t, w.repeated, f.Repeated, name)
	}

	address, _ := s.Field("address")
	assert.Equal(t, KindMessage, address.Kind())
	assert.Equal(t, "address", address.Schema.FullName)
}

func TestSniffNativeValues(t *testing.T) {
	s := Sniff("avro", map[string]interface{}{
		"at":    time.Unix(0, 0),
		"took":  time.Second,
		"count": int32(3),
		"raw":   []byte("x"),
	})
	at, _ := s.Field("at")
	took, _ := s.Field("took")
	count, _ := s.Field("count")
	raw, _ := s.Field("raw")
	assert.Equal(t, KindTimestamp, at.Kind())
	assert.Equal(t, KindDuration, took.Kind())
	assert.Equal(t, TypeInt32, count.Type)
	assert.Equal(t, TypeBytes, raw.Type)
}
