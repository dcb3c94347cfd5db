package message

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/nebula-sink/pkg/errors"
)

func TestParseMode(t *testing.T) {
	tests := []struct {
		in      string
		want    Mode
		wantErr bool
	}{
		{"key", ModeKey, false},
		{" VALUE ", ModeValue, false},
		{"", ModeValue, false},
		{"header", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseMode(tt.in)
			if tt.wantErr {
				assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPayload(t *testing.T) {
	msg := New([]byte("k"), nil, map[string]interface{}{"offset": 1})

	key, err := msg.Payload(ModeKey)
	require.NoError(t, err)
	assert.Equal(t, []byte("k"), key)

	_, err = msg.Payload(ModeValue)
	assert.True(t, errors.IsType(err, errors.ErrorTypeEmptyMessage))

	_, err = New(nil, []byte{}, nil).Payload(ModeValue)
	assert.True(t, errors.IsType(err, errors.ErrorTypeEmptyMessage))

	_, err = msg.Payload(Mode("other"))
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
}

func TestNewCopiesMetadata(t *testing.T) {
	md := map[string]interface{}{"offset": 1}
	msg := New(nil, nil, md)
	md["offset"] = 2
	assert.Equal(t, 1, msg.Metadata["offset"])
}

func TestJSONValue(t *testing.T) {
	ts := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	in := map[string]interface{}{
		"at":    ts,
		"took":  1500 * time.Millisecond,
		"tags":  []interface{}{"a", time.Second},
		"count": int64(3),
	}
	assert.Equal(t, map[string]interface{}{
		"at":    "2024-01-02T03:04:05Z",
		"took":  "1.5s",
		"tags":  []interface{}{"a", "1s"},
		"count": int64(3),
	}, JSONValue(in))
}
