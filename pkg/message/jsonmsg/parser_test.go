package jsonmsg

import (
	"testing"
	"time"

	gojson "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/nebula-sink/pkg/errors"
	"github.com/ajitpratap0/nebula-sink/pkg/message"
)

func parse(t *testing.T, p *Parser, payload string) message.ParsedMessage {
	t.Helper()
	parsed, err := p.Parse(message.New(nil, []byte(payload), nil), message.ModeValue, "")
	require.NoError(t, err)
	return parsed
}

func TestParseMapping(t *testing.T) {
	parsed := parse(t, NewParser(Config{}), `{"first_name":"john"}`)
	mapping, err := parsed.Mapping()
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{"first_name": "john"}, mapping)
}

func TestParseEmptyDocument(t *testing.T) {
	parsed := parse(t, NewParser(Config{}), `{}`)
	mapping, err := parsed.Mapping()
	require.NoError(t, err)
	assert.Empty(t, mapping)
	assert.NoError(t, parsed.Validate())
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name    string
		msg     *message.Message
		mode    message.Mode
		errType errors.ErrorType
	}{
		{"malformed", message.New(nil, []byte(`{"last_name`), nil), message.ModeValue, errors.ErrorTypeDeserialization},
		{"not an object", message.New(nil, []byte(`[1,2]`), nil), message.ModeValue, errors.ErrorTypeDeserialization},
		{"trailing data", message.New(nil, []byte(`{"a":1} {"b":2}`), nil), message.ModeValue, errors.ErrorTypeDeserialization},
		{"empty value", message.New([]byte(`{}`), nil, nil), message.ModeValue, errors.ErrorTypeEmptyMessage},
		{"bad mode", message.New(nil, []byte(`{}`), nil), message.Mode("header"), errors.ErrorTypeConfig},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewParser(Config{}).Parse(tt.msg, tt.mode, "")
			require.Error(t, err)
			assert.Equal(t, tt.errType, errors.TypeOf(err))
		})
	}
}

func TestParseKeyMode(t *testing.T) {
	msg := message.New([]byte(`{"id":"k"}`), []byte(`{"id":"v"}`), nil)
	parsed, err := NewParser(Config{}).Parse(msg, message.ModeKey, "")
	require.NoError(t, err)
	f, err := parsed.FieldByName("id")
	require.NoError(t, err)
	assert.Equal(t, "k", f.Value())
}

func TestStringMode(t *testing.T) {
	p := NewParser(Config{StringMode: true})
	parsed := parse(t, p, `{"count": 3, "ratio": 0.5, "ok": true, "tags": [1, "x"], "name": "n", "none": null}`)
	mapping, err := parsed.Mapping()
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{
		"count": "3",
		"ratio": "0.5",
		"ok":    "true",
		"tags":  []interface{}{"1", "x"},
		"name":  "n",
		"none":  nil,
	}, mapping)

	_, err = p.Parse(message.New(nil, []byte(`{"a": {"b": 1}}`), nil), message.ModeValue, "")
	assert.Equal(t, errors.ErrorTypeInvalidMessage, errors.TypeOf(err))

	_, err = p.Parse(message.New(nil, []byte(`{"a": [{"b": 1}]}`), nil), message.ModeValue, "")
	assert.Equal(t, errors.ErrorTypeInvalidMessage, errors.TypeOf(err))
}

func TestFieldByName(t *testing.T) {
	parsed := parse(t, NewParser(Config{}), `{
		"order_number": "test-order",
		"customer": {"address": {"city": "Jakarta"}, "age": 30},
		"items": [{"id": "a"}, {"id": "b"}],
		"dotted.key": "direct",
		"price": 12.50,
		"paid": false
	}`)

	tests := []struct {
		path string
		want string
	}{
		{"order_number", "test-order"},
		{"customer.address.city", "Jakarta"},
		{"customer.age", "30"},
		{"customer.address", `{"city":"Jakarta"}`},
		{"items.1.id", "b"},
		{"items", `[{"id":"a"},{"id":"b"}]`},
		{"dotted.key", "direct"},
		{"price", "12.50"},
		{"paid", "false"},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			f, err := parsed.FieldByName(tt.path)
			require.NoError(t, err)
			got, err := f.Render()
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	for _, missing := range []string{"missing", "customer.missing", "items.5.id", "order_number.x"} {
		_, err := parsed.FieldByName(missing)
		assert.Equal(t, errors.ErrorTypeInvalidField, errors.TypeOf(err), missing)
	}
}

func TestFieldValueKeepsNativeType(t *testing.T) {
	parsed := parse(t, NewParser(Config{}), `{"price": 10, "ok": true, "obj": {"a": 1}}`)

	price, _ := parsed.FieldByName("price")
	assert.Equal(t, gojson.Number("10"), price.Value())
	ok, _ := parsed.FieldByName("ok")
	assert.Equal(t, true, ok.Value())
	obj, _ := parsed.FieldByName("obj")
	assert.IsType(t, map[string]interface{}{}, obj.Value())
}

func TestRenderNativeValues(t *testing.T) {
	tests := []struct {
		value interface{}
		want  string
	}{
		{int32(7), "7"},
		{int64(-8), "-8"},
		{1.25, "1.25"},
		{[]byte("hi"), "aGk="},
		{time.Date(2021, 1, 2, 3, 4, 5, 0, time.UTC), "2021-01-02T03:04:05Z"},
		{12*time.Second + 500*time.Millisecond, "12.5s"},
		{nil, "null"},
		{map[string]interface{}{"a": 12500 * time.Millisecond}, `{"a":"12.5s"}`},
		{[]interface{}{1500 * time.Millisecond, 2 * time.Second}, "[1.5s,2s]"},
		{[]interface{}{time.Date(2021, 1, 2, 3, 4, 5, 0, time.UTC)}, "[2021-01-02T03:04:05Z]"},
		{[]interface{}{int32(1), time.Second}, `[1,"1s"]`},
		{[]interface{}{}, "[]"},
	}
	for _, tt := range tests {
		got, err := NewField(tt.value).Render()
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}
}

func TestSchemaIsSniffedPerMessage(t *testing.T) {
	parsed := parse(t, NewParser(Config{}), `{"b": 1, "a": "x"}`)
	assert.Equal(t, []string{"a", "b"}, parsed.Schema().Names())
}
