package main

import (
	"bufio"
	"context"
	"encoding/base64"
	"fmt"
	"io"

	gojson "github.com/goccy/go-json"

	"github.com/ajitpratap0/nebula-sink/pkg/message"
	"github.com/ajitpratap0/nebula-sink/pkg/sink"
)

const maxLineSize = 16 << 20

// inputLine is one line of the run command's input.
type inputLine struct {
	Key      *string                `json:"key"`
	Value    *string                `json:"value"`
	Metadata map[string]interface{} `json:"metadata"`
}

type reader struct {
	scanner *bufio.Scanner
	base64  bool
	line    int
}

func newReader(r io.Reader, b64 bool) *reader {
	s := bufio.NewScanner(r)
	s.Buffer(make([]byte, 64<<10), maxLineSize)
	return &reader{scanner: s, base64: b64}
}

// next returns the next message and its 1-based line number, or io.EOF.
// Blank lines are skipped.
func (r *reader) next() (*message.Message, int, error) {
	for r.scanner.Scan() {
		r.line++
		raw := r.scanner.Bytes()
		if len(raw) == 0 {
			continue
		}
		var in inputLine
		if err := gojson.Unmarshal(raw, &in); err != nil {
			return nil, r.line, fmt.Errorf("line %d: %w", r.line, err)
		}
		key, err := r.decode(in.Key)
		if err != nil {
			return nil, r.line, fmt.Errorf("line %d: key: %w", r.line, err)
		}
		value, err := r.decode(in.Value)
		if err != nil {
			return nil, r.line, fmt.Errorf("line %d: value: %w", r.line, err)
		}
		return message.New(key, value, in.Metadata), r.line, nil
	}
	if err := r.scanner.Err(); err != nil {
		return nil, r.line, err
	}
	return nil, r.line, io.EOF
}

func (r *reader) decode(s *string) ([]byte, error) {
	if s == nil {
		return nil, nil
	}
	if !r.base64 {
		return []byte(*s), nil
	}
	return base64.StdEncoding.DecodeString(*s)
}

type pusher interface {
	Push(ctx context.Context, batch []*message.Message) *sink.Response
}

type pushStats struct {
	messages int
	failed   int
	batches  int
}

// pushAll pushes r in batches of size and prints one line per failed
// message to out.
func pushAll(ctx context.Context, p pusher, r *reader, size int, out io.Writer) (pushStats, error) {
	if size <= 0 {
		size = 1
	}
	var stats pushStats
	batch := make([]*message.Message, 0, size)
	lines := make([]int, 0, size)

	flush := func() {
		if len(batch) == 0 {
			return
		}
		resp := p.Push(ctx, batch)
		stats.batches++
		stats.messages += len(batch)
		stats.failed += resp.Len()
		for _, idx := range resp.Indices() {
			info, _ := resp.Get(idx)
			fmt.Fprintf(out, "%d\t%s\t%v\n", lines[idx], info.Type, info.Cause)
		}
		batch = batch[:0]
		lines = lines[:0]
	}

	for {
		if err := ctx.Err(); err != nil {
			flush()
			return stats, err
		}
		msg, line, err := r.next()
		if err == io.EOF {
			break
		}
		if err != nil {
			flush()
			return stats, err
		}
		batch = append(batch, msg)
		lines = append(lines, line)
		if len(batch) == size {
			flush()
		}
	}
	flush()
	return stats, nil
}
