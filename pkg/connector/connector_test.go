package connector

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/descriptorpb"

	"github.com/ajitpratap0/nebula-sink/internal/testproto"
	"github.com/ajitpratap0/nebula-sink/pkg/config"
	"github.com/ajitpratap0/nebula-sink/pkg/errors"
	"github.com/ajitpratap0/nebula-sink/pkg/message"
)

func writeDescriptors(t *testing.T, path string, extra bool) {
	t.Helper()
	set := proto.Clone(testproto.FileDescriptorSet()).(*descriptorpb.FileDescriptorSet)
	if extra {
		set.File = append(set.File, &descriptorpb.FileDescriptorProto{
			Name:    proto.String("nebula/extra.proto"),
			Package: proto.String("nebula.extra"),
			Syntax:  proto.String("proto3"),
			MessageType: []*descriptorpb.DescriptorProto{{
				Name: proto.String("Extra"),
			}},
		})
	}
	raw, err := proto.Marshal(set)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, raw, 0o600))
}

func protoConfig(t *testing.T) (*config.Config, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "descriptors.pb")
	writeDescriptors(t, path, false)
	cfg := config.New("orders", config.SinkLog)
	cfg.Input.Format = config.FormatProto
	cfg.Input.Schema = testproto.TestMessage
	cfg.Registry.URLs = []string{path}
	return cfg, path
}

func TestOpenJSON(t *testing.T) {
	cfg := config.New("orders", config.SinkLog)
	cfg.Input.Format = config.FormatJSON

	c, err := Open(context.Background(), cfg, zaptest.NewLogger(t))
	require.NoError(t, err)
	defer c.Close()

	resp := c.Push(context.Background(), []*message.Message{
		message.New(nil, []byte(`{"order_number":"o-1"}`), nil),
		message.New(nil, []byte(`{`), nil),
		message.New(nil, nil, nil),
	})
	assert.Equal(t, []int64{1, 2}, resp.Indices())
	info, _ := resp.Get(1)
	assert.Equal(t, errors.ErrorTypeDeserialization, info.Type)
	info, _ = resp.Get(2)
	assert.Equal(t, errors.ErrorTypeInvalidMessage, info.Type)

	_, err = c.Refresh(context.Background())
	assert.Equal(t, errors.ErrorTypeConfig, errors.TypeOf(err))
}

func TestOpenProto(t *testing.T) {
	cfg, _ := protoConfig(t)
	c, err := Open(context.Background(), cfg, zaptest.NewLogger(t))
	require.NoError(t, err)
	defer c.Close()

	snap := c.Cache().Current()
	require.NotNil(t, snap.Schema)
	assert.Equal(t, testproto.TestMessage, snap.Schema.FullName)

	resp := c.Push(context.Background(), []*message.Message{
		message.New(nil, testproto.New(testproto.TestMessage).Str("order_number", "o-1").Bytes(), nil),
		message.New(nil, []byte{0xff, 0xff}, nil),
	})
	assert.Equal(t, []int64{1}, resp.Indices())
}

func TestOpenProtoKeyMode(t *testing.T) {
	cfg, _ := protoConfig(t)
	cfg.Input.Mode = "key"
	c, err := Open(context.Background(), cfg, zaptest.NewLogger(t))
	require.NoError(t, err)
	defer c.Close()

	payload := testproto.New(testproto.TestMessage).Str("order_number", "o-1").Bytes()
	resp := c.Push(context.Background(), []*message.Message{
		message.New(payload, nil, nil),
		message.New(nil, payload, nil),
	})
	assert.Equal(t, []int64{1}, resp.Indices())
}

func TestRefreshPublishesNewSnapshot(t *testing.T) {
	cfg, path := protoConfig(t)
	c, err := Open(context.Background(), cfg, zaptest.NewLogger(t))
	require.NoError(t, err)
	defer c.Close()

	before := c.Cache().Current()

	changed, err := c.Refresh(context.Background())
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Same(t, before, c.Cache().Current())

	writeDescriptors(t, path, true)
	changed, err = c.Refresh(context.Background())
	require.NoError(t, err)
	assert.True(t, changed)
	assert.NotSame(t, before, c.Cache().Current())
}

func TestOpenErrors(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(t *testing.T, cfg *config.Config)
		wantType errors.ErrorType
	}{
		{"unknown sink", func(_ *testing.T, cfg *config.Config) { cfg.Sink = "kafka" }, errors.ErrorTypeConfig},
		{"unknown schema", func(_ *testing.T, cfg *config.Config) { cfg.Input.Schema = "nebula.test.Missing" }, errors.ErrorTypeConfig},
		{"missing registry", func(t *testing.T, cfg *config.Config) {
			cfg.Registry.URLs = []string{filepath.Join(t.TempDir(), "absent.pb")}
		}, errors.ErrorTypeConfig},
		{"bad avro schema", func(_ *testing.T, cfg *config.Config) {
			cfg.Input.Format = config.FormatAvro
			cfg.Input.AvroSchema = `{"type":"string"}`
		}, errors.ErrorTypeConfig},
		{"bad log level", func(_ *testing.T, cfg *config.Config) { cfg.Log.Level = "loud" }, errors.ErrorTypeConfig},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, _ := protoConfig(t)
			tt.mutate(t, cfg)
			_, err := Open(context.Background(), cfg, zaptest.NewLogger(t))
			require.Error(t, err)
			assert.Equal(t, tt.wantType, errors.TypeOf(err))
		})
	}
}
