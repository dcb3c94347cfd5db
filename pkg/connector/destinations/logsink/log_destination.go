// Package logsink writes every message's field mapping to the logger. It is
// useful for inspecting a stream before pointing it at a real backend.
package logsink

import (
	"context"
	"sort"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/ajitpratap0/nebula-sink/pkg/config"
	"github.com/ajitpratap0/nebula-sink/pkg/connector/base"
	"github.com/ajitpratap0/nebula-sink/pkg/errors"
	"github.com/ajitpratap0/nebula-sink/pkg/message"
	"github.com/ajitpratap0/nebula-sink/pkg/schema"
	"github.com/ajitpratap0/nebula-sink/pkg/sink"
)

// Entry is the logged form of one message.
type Entry struct {
	Fields map[string]interface{}
}

// Destination is the log sink backend.
type Destination struct {
	*base.BaseDestination
	level zapcore.Level
}

// New creates the destination.
func New(cfg config.LogConfig, logger *zap.Logger) (*Destination, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "invalid log sink level").WithDetail("level", cfg.Level)
	}
	return &Destination{
		BaseDestination: base.NewBaseDestination(config.SinkLog, logger, 0),
		level:           level,
	}, nil
}

// NewBuilder implements sink.Backend.
func (d *Destination) NewBuilder(context.Context, *schema.Schema) (sink.RecordBuilder, error) {
	return sink.RecordBuilderFunc(func(_ *message.Message, parsed message.ParsedMessage) ([]interface{}, error) {
		m, err := parsed.Mapping()
		if err != nil {
			return nil, err
		}
		return []interface{}{&Entry{Fields: message.JSONValue(m).(map[string]interface{})}}, nil
	}), nil
}

// Write logs each record. It never reports a failure.
func (d *Destination) Write(_ context.Context, records []*sink.Record) ([]sink.Failure, error) {
	for _, r := range records {
		e, ok := r.Payload.(*Entry)
		if !ok {
			continue
		}
		ce := d.Logger().Check(d.level, "message")
		if ce == nil {
			continue
		}
		fields := make([]zap.Field, 0, len(e.Fields)+len(r.Metadata)+1)
		fields = append(fields, zap.Int64("index", r.Index))
		names := make([]string, 0, len(e.Fields))
		for k := range e.Fields {
			names = append(names, k)
		}
		sort.Strings(names)
		for _, k := range names {
			fields = append(fields, zap.Any(k, e.Fields[k]))
		}
		if len(r.Metadata) > 0 {
			fields = append(fields, zap.Any("metadata", r.Metadata))
		}
		ce.Write(fields...)
	}
	return nil, nil
}
