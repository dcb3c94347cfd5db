package message

import (
	"strconv"
	"strings"
	"time"
)

// FormatDuration renders a duration as seconds with an optional fractional
// part, e.g. "12s" or "12.5s".
func FormatDuration(seconds int64, nanos int32) string {
	neg := seconds < 0 || nanos < 0
	if seconds < 0 {
		seconds = -seconds
	}
	if nanos < 0 {
		nanos = -nanos
	}
	var b strings.Builder
	if neg {
		b.WriteByte('-')
	}
	b.WriteString(strconv.FormatInt(seconds, 10))
	if nanos > 0 {
		frac := strconv.FormatInt(int64(nanos)+1e9, 10)[1:]
		b.WriteByte('.')
		b.WriteString(strings.TrimRight(frac, "0"))
	}
	b.WriteByte('s')
	return b.String()
}

// FormatGoDuration renders a time.Duration the same way as FormatDuration.
func FormatGoDuration(d time.Duration) string {
	return FormatDuration(int64(d/time.Second), int32(d%time.Second))
}

// FormatTimestamp renders an ISO-8601 instant in UTC.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// JSONValue replaces values without a natural JSON form inside a native
// value: timestamps and durations become their rendered strings.
func JSONValue(v interface{}) interface{} {
	switch val := v.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(val))
		for k, e := range val {
			out[k] = JSONValue(e)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, e := range val {
			out[i] = JSONValue(e)
		}
		return out
	case time.Time:
		return FormatTimestamp(val)
	case time.Duration:
		return FormatGoDuration(val)
	default:
		return val
	}
}
