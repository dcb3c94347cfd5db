package registry

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/descriptorpb"

	"github.com/ajitpratap0/nebula-sink/internal/testproto"
	"github.com/ajitpratap0/nebula-sink/pkg/clients"
	"github.com/ajitpratap0/nebula-sink/pkg/compression"
	"github.com/ajitpratap0/nebula-sink/pkg/errors"
)

type fakeSource struct {
	mu   sync.Mutex
	data []byte
	err  error
}

func (s *fakeSource) Fetch(context.Context) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data, s.err
}

func (s *fakeSource) String() string { return "fake" }

func (s *fakeSource) set(data []byte, err error) {
	s.mu.Lock()
	s.data, s.err = data, err
	s.mu.Unlock()
}

// extendedSet is the fixture set plus one extra file, so it fingerprints
// differently.
func extendedSet(t *testing.T) []byte {
	t.Helper()
	set := proto.Clone(testproto.FileDescriptorSet()).(*descriptorpb.FileDescriptorSet)
	set.File = append(set.File, &descriptorpb.FileDescriptorProto{
		Name:    proto.String("nebula/extra.proto"),
		Package: proto.String("nebula.extra"),
		Syntax:  proto.String("proto3"),
		MessageType: []*descriptorpb.DescriptorProto{{
			Name: proto.String("Extra"),
			Field: []*descriptorpb.FieldDescriptorProto{{
				Name:     proto.String("id"),
				JsonName: proto.String("id"),
				Number:   proto.Int32(1),
				Type:     descriptorpb.FieldDescriptorProto_TYPE_STRING.Enum(),
				Label:    descriptorpb.FieldDescriptorProto_LABEL_OPTIONAL.Enum(),
			}},
		}},
	})
	raw, err := proto.Marshal(set)
	require.NoError(t, err)
	return raw
}

func TestBuild(t *testing.T) {
	d, err := Build(testproto.MarshaledSet())
	require.NoError(t, err)

	md, err := d.FindMessage(testproto.TestMessage)
	require.NoError(t, err)
	assert.Equal(t, testproto.TestMessage, string(md.FullName()))

	_, err = d.FindMessage("nebula.test.Missing")
	assert.Equal(t, errors.ErrorTypeConfig, errors.TypeOf(err))

	_, err = d.FindMessage("nebula.test")
	assert.Equal(t, errors.ErrorTypeConfig, errors.TypeOf(err))

	again, err := Build(testproto.MarshaledSet())
	require.NoError(t, err)
	assert.Equal(t, d.Fingerprint(), again.Fingerprint())
}

func TestBuildMergesSets(t *testing.T) {
	d, err := Build(testproto.MarshaledSet(), extendedSet(t))
	require.NoError(t, err)

	_, err = d.FindMessage("nebula.extra.Extra")
	require.NoError(t, err)
	_, err = d.FindMessage(testproto.TestItem)
	require.NoError(t, err)

	single, err := Build(testproto.MarshaledSet())
	require.NoError(t, err)
	assert.NotEqual(t, single.Fingerprint(), d.Fingerprint())
}

func TestBuildErrors(t *testing.T) {
	_, err := Build([]byte("not a descriptor set"))
	assert.Equal(t, errors.ErrorTypeConfig, errors.TypeOf(err))

	// A file whose import is missing does not link.
	set := &descriptorpb.FileDescriptorSet{File: []*descriptorpb.FileDescriptorProto{{
		Name:       proto.String("broken.proto"),
		Dependency: []string{"missing.proto"},
	}}}
	raw, err := proto.Marshal(set)
	require.NoError(t, err)
	_, err = Build(raw)
	assert.Equal(t, errors.ErrorTypeConfig, errors.TypeOf(err))
}

func TestHTTPSource(t *testing.T) {
	var auth atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth.Store(r.Header.Get("Authorization"))
		if r.URL.Path == "/missing" {
			http.Error(w, "no such set", http.StatusNotFound)
			return
		}
		_, _ = w.Write(testproto.MarshaledSet())
	}))
	defer srv.Close()

	httpClient := clients.NewHTTPClient(nil, nil)
	cfg := SourceConfig{Headers: map[string]string{"Authorization": "Bearer token"}}

	src, err := NewSource(context.Background(), srv.URL+"/descriptors.pb", cfg, httpClient)
	require.NoError(t, err)
	raw, err := src.Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, testproto.MarshaledSet(), raw)
	assert.Equal(t, "Bearer token", auth.Load())

	src, err = NewSource(context.Background(), srv.URL+"/missing", cfg, httpClient)
	require.NoError(t, err)
	_, err = src.Fetch(context.Background())
	require.Error(t, err)
	assert.Equal(t, errors.ErrorTypeConnection, errors.TypeOf(err))
}

func TestFileSource(t *testing.T) {
	dir := t.TempDir()
	plain := filepath.Join(dir, "descriptors.pb")
	require.NoError(t, os.WriteFile(plain, testproto.MarshaledSet(), 0o600))

	gz, err := compression.NewCompressor(compression.Config{Algorithm: compression.Gzip})
	require.NoError(t, err)
	packed, err := gz.Compress(testproto.MarshaledSet())
	require.NoError(t, err)
	compressed := filepath.Join(dir, "descriptors.pb.gz")
	require.NoError(t, os.WriteFile(compressed, packed, 0o600))

	for _, location := range []string{plain, "file://" + plain, compressed} {
		src, err := NewSource(context.Background(), location, SourceConfig{}, nil)
		require.NoError(t, err, location)
		raw, err := src.Fetch(context.Background())
		require.NoError(t, err, location)
		assert.Equal(t, testproto.MarshaledSet(), raw, location)
	}

	src, err := NewSource(context.Background(), filepath.Join(dir, "nope.pb"), SourceConfig{}, nil)
	require.NoError(t, err)
	_, err = src.Fetch(context.Background())
	assert.Equal(t, errors.ErrorTypeConfig, errors.TypeOf(err))
}

func TestNewSourceErrors(t *testing.T) {
	_, err := NewSource(context.Background(), "ftp://host/set.pb", SourceConfig{}, nil)
	assert.Equal(t, errors.ErrorTypeConfig, errors.TypeOf(err))

	_, err = New(context.Background(), Config{}, nil, nil)
	assert.Equal(t, errors.ErrorTypeConfig, errors.TypeOf(err))
}

func TestClientRefresh(t *testing.T) {
	src := &fakeSource{data: testproto.MarshaledSet()}
	c := NewWithSources([]Source{src}, 0, zaptest.NewLogger(t))

	assert.Nil(t, c.Current())
	first, err := c.Fetch(context.Background())
	require.NoError(t, err)
	assert.Same(t, first, c.Current())

	var calls []*Descriptors
	c.OnUpdate(func(d *Descriptors) error {
		calls = append(calls, d)
		return nil
	})

	changed, err := c.Refresh(context.Background())
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Same(t, first, c.Current())
	assert.Empty(t, calls)

	src.set(extendedSet(t), nil)
	changed, err = c.Refresh(context.Background())
	require.NoError(t, err)
	assert.True(t, changed)
	require.Len(t, calls, 1)
	assert.Same(t, calls[0], c.Current())
	_, err = c.Current().FindMessage("nebula.extra.Extra")
	require.NoError(t, err)

	updated := c.Current()
	src.set(nil, errors.New(errors.ErrorTypeConnection, "registry down"))
	changed, err = c.Refresh(context.Background())
	require.Error(t, err)
	assert.False(t, changed)
	assert.Equal(t, errors.ErrorTypeConnection, errors.TypeOf(err))
	assert.Same(t, updated, c.Current())

	src.set([]byte("garbage"), nil)
	_, err = c.Refresh(context.Background())
	assert.Equal(t, errors.ErrorTypeConfig, errors.TypeOf(err))
	assert.Same(t, updated, c.Current())
}

func TestClientRetriesFailedUpdate(t *testing.T) {
	src := &fakeSource{data: testproto.MarshaledSet()}
	c := NewWithSources([]Source{src}, 0, zaptest.NewLogger(t))
	first, err := c.Fetch(context.Background())
	require.NoError(t, err)

	var attempts int
	var applied []*Descriptors
	c.OnUpdate(func(d *Descriptors) error {
		attempts++
		if attempts == 1 {
			return errors.New(errors.ErrorTypeConnection, "table update failed")
		}
		applied = append(applied, d)
		return nil
	})

	src.set(extendedSet(t), nil)
	changed, err := c.Refresh(context.Background())
	require.Error(t, err)
	assert.False(t, changed)
	assert.Equal(t, errors.ErrorTypeConnection, errors.TypeOf(err))
	assert.NotSame(t, first, c.Current())
	assert.Empty(t, applied)

	changed, err = c.Refresh(context.Background())
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, 2, attempts)
	require.Len(t, applied, 1)

	changed, err = c.Refresh(context.Background())
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, 2, attempts)
}

func TestClientStartAndClose(t *testing.T) {
	src := &fakeSource{data: testproto.MarshaledSet()}
	c := NewWithSources([]Source{src}, 5*time.Millisecond, zaptest.NewLogger(t))
	_, err := c.Fetch(context.Background())
	require.NoError(t, err)

	var updates atomic.Int32
	c.OnUpdate(func(*Descriptors) error {
		updates.Add(1)
		return nil
	})

	c.Start(context.Background())
	c.Start(context.Background())
	src.set(extendedSet(t), nil)

	assert.Eventually(t, func() bool { return updates.Load() == 1 }, time.Second, 5*time.Millisecond)
	require.NoError(t, c.Close())
	require.NoError(t, c.Close())
	assert.Equal(t, int32(1), updates.Load())
}

func TestClientCloseWithoutStart(t *testing.T) {
	c := NewWithSources(nil, 0, nil)
	c.Start(context.Background())
	done := make(chan struct{})
	go func() {
		_ = c.Close()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Close blocked without a running refresh loop")
	}
}
