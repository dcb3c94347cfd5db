package logger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"defaults", Config{}, false},
		{"console debug", Config{Level: "debug", Encoding: "console", Development: true}, false},
		{"bad level", Config{Level: "loud"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, err := New(tt.cfg)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, l)
		})
	}
}

func TestWithContext(t *testing.T) {
	require.NoError(t, Init(Config{Level: "info", OutputPaths: []string{"stderr"}}))

	ctx := context.WithValue(context.Background(), SinkKey, "bigquery")
	ctx = context.WithValue(ctx, BatchIDKey, "b-1")
	assert.NotNil(t, WithContext(ctx))
	assert.NotNil(t, Get())
}
