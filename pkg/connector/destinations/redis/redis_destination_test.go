package redis

import (
	"context"
	stderrors "errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/ajitpratap0/nebula-sink/pkg/config"
	"github.com/ajitpratap0/nebula-sink/pkg/errors"
	"github.com/ajitpratap0/nebula-sink/pkg/message"
	"github.com/ajitpratap0/nebula-sink/pkg/message/jsonmsg"
	"github.com/ajitpratap0/nebula-sink/pkg/sink"
)

type fakePipeline struct {
	pingErr error
	cmds    [][]interface{}
	fail    map[int]error
	err     error
}

func (f *fakePipeline) Ping(context.Context) error { return f.pingErr }

func (f *fakePipeline) Exec(_ context.Context, cmds [][]interface{}) ([]error, error) {
	f.cmds = append(f.cmds, cmds...)
	if f.err != nil {
		return nil, f.err
	}
	errs := make([]error, len(cmds))
	for i, e := range f.fail {
		if i < len(errs) {
			errs[i] = e
		}
	}
	return errs, nil
}

func newTestDestination(t *testing.T, cfg config.RedisConfig, pipe pipeline) *Destination {
	t.Helper()
	d, err := newDestination(context.Background(), cfg, pipe, zaptest.NewLogger(t))
	require.NoError(t, err)
	return d
}

func build(t *testing.T, d *Destination, doc string) []interface{} {
	t.Helper()
	msg := message.New(nil, []byte(doc), nil)
	parsed, err := jsonmsg.NewParser(jsonmsg.Config{}).Parse(msg, message.ModeValue, "")
	require.NoError(t, err)
	b, err := d.NewBuilder(context.Background(), nil)
	require.NoError(t, err)
	out, err := b.Build(msg, parsed)
	require.NoError(t, err)
	return out
}

const order = `{"order_number":"o-1","order_url":"http://x","details":{"state":"NEW"}}`

func TestBuild(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.RedisConfig
		want []interface{}
	}{
		{
			name: "key value",
			cfg:  config.RedisConfig{DataType: config.RedisKeyValue, KeyTemplate: "order-%s,order_number", KeyValueDataField: "order_url"},
			want: []interface{}{&Entry{Commands: [][]interface{}{{"SET", "order-o-1", "http://x"}}}},
		},
		{
			name: "list with duration ttl",
			cfg: config.RedisConfig{DataType: config.RedisList, KeyTemplate: "orders", ListDataField: "details.state",
				TTLType: config.TTLDuration, TTLValue: 60},
			want: []interface{}{&Entry{Commands: [][]interface{}{
				{"LPUSH", "orders", "NEW"},
				{"EXPIRE", "orders", int64(60)},
			}}},
		},
		{
			name: "hash set with exact expiry",
			cfg: config.RedisConfig{DataType: config.RedisHashSet, KeyTemplate: "order-%s,order_number",
				HashSetFieldMapping: map[string]string{"order_url": "url", "details.state": "state_%s,order_number"},
				TTLType:             config.TTLExactTime, TTLValue: 1700000000},
			want: []interface{}{
				&Entry{Commands: [][]interface{}{
					{"HSET", "order-o-1", "state_o-1", "NEW"},
					{"EXPIREAT", "order-o-1", int64(1700000000)},
				}},
				&Entry{Commands: [][]interface{}{
					{"HSET", "order-o-1", "url", "http://x"},
					{"EXPIREAT", "order-o-1", int64(1700000000)},
				}},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := newTestDestination(t, tt.cfg, &fakePipeline{})
			assert.Equal(t, tt.want, build(t, d, order))
		})
	}
}

func TestBuildMissingField(t *testing.T) {
	d := newTestDestination(t, config.RedisConfig{DataType: config.RedisKeyValue, KeyTemplate: "k", KeyValueDataField: "absent"}, &fakePipeline{})
	msg := message.New(nil, []byte(order), nil)
	parsed, err := jsonmsg.NewParser(jsonmsg.Config{}).Parse(msg, message.ModeValue, "")
	require.NoError(t, err)
	_, err = d.build(msg, parsed)
	assert.Error(t, err)
}

func TestNewDestinationErrors(t *testing.T) {
	tests := []struct {
		name     string
		cfg      config.RedisConfig
		pipe     *fakePipeline
		wantType errors.ErrorType
	}{
		{"ping", config.RedisConfig{DataType: config.RedisList, KeyTemplate: "k", ListDataField: "f"},
			&fakePipeline{pingErr: stderrors.New("refused")}, errors.ErrorTypeConnection},
		{"data type", config.RedisConfig{DataType: "SORTEDSET", KeyTemplate: "k"}, &fakePipeline{}, errors.ErrorTypeConfig},
		{"key template", config.RedisConfig{DataType: config.RedisList, KeyTemplate: "%s"}, &fakePipeline{}, errors.ErrorTypeConfig},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := newDestination(context.Background(), tt.cfg, tt.pipe, zaptest.NewLogger(t))
			assert.Equal(t, tt.wantType, errors.TypeOf(err))
		})
	}
}

func TestPushHashSetFailures(t *testing.T) {
	// Two mapped fields and a TTL give two records of two commands each per
	// message. Command 5 belongs to the third record, which is message 1.
	pipe := &fakePipeline{fail: map[int]error{5: stderrors.New("OOM")}}
	d := newTestDestination(t, config.RedisConfig{
		DataType:            config.RedisHashSet,
		KeyTemplate:         "order-%s,order_number",
		HashSetFieldMapping: map[string]string{"order_url": "url", "order_number": "id"},
		TTLType:             config.TTLDuration,
		TTLValue:            10,
	}, pipe)
	b, err := d.NewBuilder(context.Background(), nil)
	require.NoError(t, err)

	cache := sink.NewSchemaCache(&sink.Snapshot{Parser: jsonmsg.NewParser(jsonmsg.Config{}), Builder: b})
	s := sink.New(sink.Options{Name: "redis"}, cache, d)

	resp := s.Push(context.Background(), []*message.Message{
		message.New(nil, []byte(order), nil),
		message.New(nil, []byte(`{"order_number":"o-2","order_url":"u"}`), nil),
		message.New(nil, []byte(`{"order_number":"o-3"}`), nil),
	})

	assert.Equal(t, []int64{1, 2}, resp.Indices())
	info, _ := resp.Get(1)
	assert.Equal(t, errors.ErrorTypeDefault, info.Type)
	info, _ = resp.Get(2)
	assert.Equal(t, errors.ErrorTypeInvalidMessage, info.Type)
	assert.Len(t, pipe.cmds, 8)
}

func TestWriteTransportError(t *testing.T) {
	d := newTestDestination(t, config.RedisConfig{DataType: config.RedisList, KeyTemplate: "k", ListDataField: "f"},
		&fakePipeline{err: stderrors.New("connection reset")})
	failures, err := d.Write(context.Background(), []*sink.Record{
		sink.NewRecord(0, &Entry{Commands: [][]interface{}{{"LPUSH", "k", "v"}}}, nil),
	})
	assert.Nil(t, failures)
	assert.Equal(t, errors.ErrorTypeDefault, errors.Classify(errors.OutcomeOf(err)))
}
