// Package redis writes messages into Redis as plain values, list items or
// hash fields. Every record is sent in one pipeline per batch.
package redis

import (
	"context"
	"sort"
	"strings"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/ajitpratap0/nebula-sink/pkg/config"
	"github.com/ajitpratap0/nebula-sink/pkg/connector/base"
	"github.com/ajitpratap0/nebula-sink/pkg/errors"
	"github.com/ajitpratap0/nebula-sink/pkg/message"
	"github.com/ajitpratap0/nebula-sink/pkg/schema"
	"github.com/ajitpratap0/nebula-sink/pkg/sink"
	"github.com/ajitpratap0/nebula-sink/pkg/template"
)

// Entry is the commands for one record. Commands run in order; the record
// fails when any of them does.
type Entry struct {
	Commands [][]interface{}
}

// pipeline runs commands in one round trip and returns one error slot per
// command.
type pipeline interface {
	Ping(ctx context.Context) error
	Exec(ctx context.Context, cmds [][]interface{}) ([]error, error)
}

type hashField struct {
	field  string
	column *template.Template
}

// Destination is the Redis sink backend.
type Destination struct {
	*base.BaseDestination

	dataType  string
	key       *template.Template
	dataField string
	hash      []hashField
	ttlType   string
	ttlValue  int64
	pipe      pipeline
	errs      *base.ErrorHandler
}

// New connects to a standalone server or a cluster.
func New(ctx context.Context, cfg config.RedisConfig, logger *zap.Logger) (*Destination, error) {
	var client goredis.UniversalClient
	if strings.EqualFold(cfg.Deployment, "cluster") {
		client = goredis.NewClusterClient(&goredis.ClusterOptions{
			Addrs:        cfg.Addrs,
			Username:     cfg.Username,
			Password:     cfg.Password,
			DialTimeout:  cfg.DialTimeout,
			WriteTimeout: cfg.WriteTimeout,
		})
	} else {
		client = goredis.NewClient(&goredis.Options{
			Addr:         cfg.Addrs[0],
			Username:     cfg.Username,
			Password:     cfg.Password,
			DB:           cfg.DB,
			DialTimeout:  cfg.DialTimeout,
			WriteTimeout: cfg.WriteTimeout,
		})
	}

	d, err := newDestination(ctx, cfg, &clientPipeline{client: client}, logger)
	if err != nil {
		_ = client.Close()
		return nil, err
	}
	d.OnClose(client.Close)
	return d, nil
}

func newDestination(ctx context.Context, cfg config.RedisConfig, pipe pipeline, logger *zap.Logger) (*Destination, error) {
	key, err := template.New(cfg.KeyTemplate)
	if err != nil {
		return nil, err
	}
	d := &Destination{
		BaseDestination: base.NewBaseDestination(config.SinkRedis, logger, cfg.WriteTimeout),
		dataType:        strings.ToUpper(cfg.DataType),
		key:             key,
		ttlType:         strings.ToUpper(cfg.TTLType),
		ttlValue:        cfg.TTLValue,
		pipe:            pipe,
	}
	d.errs = base.NewErrorHandler(d.BaseDestination)

	switch d.dataType {
	case config.RedisKeyValue:
		d.dataField = cfg.KeyValueDataField
	case config.RedisList:
		d.dataField = cfg.ListDataField
	case config.RedisHashSet:
		fields := make([]string, 0, len(cfg.HashSetFieldMapping))
		for f := range cfg.HashSetFieldMapping {
			fields = append(fields, f)
		}
		sort.Strings(fields)
		for _, f := range fields {
			column, err := template.New(cfg.HashSetFieldMapping[f])
			if err != nil {
				return nil, err
			}
			d.hash = append(d.hash, hashField{field: f, column: column})
		}
	default:
		return nil, errors.Newf(errors.ErrorTypeConfig, "unsupported redis data_type %q", cfg.DataType)
	}

	if err := pipe.Ping(ctx); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConnection, "redis is not reachable")
	}
	return d, nil
}

// NewBuilder implements sink.Backend.
func (d *Destination) NewBuilder(context.Context, *schema.Schema) (sink.RecordBuilder, error) {
	return sink.RecordBuilderFunc(d.build), nil
}

// build emits one record per message, except HASHSET which emits one record
// per mapped field.
func (d *Destination) build(_ *message.Message, parsed message.ParsedMessage) ([]interface{}, error) {
	key, err := d.key.Render(parsed)
	if err != nil {
		return nil, err
	}

	switch d.dataType {
	case config.RedisHashSet:
		out := make([]interface{}, 0, len(d.hash))
		for _, h := range d.hash {
			value, err := renderField(parsed, h.field)
			if err != nil {
				return nil, err
			}
			column, err := h.column.Render(parsed)
			if err != nil {
				return nil, err
			}
			out = append(out, d.entry(key, []interface{}{"HSET", key, column, value}))
		}
		return out, nil
	case config.RedisList:
		value, err := renderField(parsed, d.dataField)
		if err != nil {
			return nil, err
		}
		return []interface{}{d.entry(key, []interface{}{"LPUSH", key, value})}, nil
	default:
		value, err := renderField(parsed, d.dataField)
		if err != nil {
			return nil, err
		}
		return []interface{}{d.entry(key, []interface{}{"SET", key, value})}, nil
	}
}

func (d *Destination) entry(key string, cmd []interface{}) *Entry {
	e := &Entry{Commands: [][]interface{}{cmd}}
	switch d.ttlType {
	case config.TTLDuration:
		e.Commands = append(e.Commands, []interface{}{"EXPIRE", key, d.ttlValue})
	case config.TTLExactTime:
		e.Commands = append(e.Commands, []interface{}{"EXPIREAT", key, d.ttlValue})
	}
	return e
}

func renderField(parsed message.ParsedMessage, name string) (string, error) {
	f, err := parsed.FieldByName(name)
	if err != nil {
		return "", err
	}
	return f.Render()
}

// Write implements sink.Writer. Redis only reports whether a command
// failed, so every failure is a bare failure flag.
func (d *Destination) Write(ctx context.Context, records []*sink.Record) ([]sink.Failure, error) {
	if len(records) == 0 {
		return nil, nil
	}
	ctx, span := d.StartSpan(ctx, "pipeline")
	defer span.End()

	var cmds [][]interface{}
	owner := make([]int, 0, len(records))
	for i, r := range records {
		e, ok := r.Payload.(*Entry)
		if !ok {
			return nil, errors.Newf(errors.ErrorTypeInvalidMessage, "unexpected payload %T", r.Payload)
		}
		for _, c := range e.Commands {
			cmds = append(cmds, c)
			owner = append(owner, i)
		}
	}
	span.SetAttribute("commands", len(cmds))

	wctx, cancel := d.WriteContext(ctx)
	defer cancel()
	errs, err := d.pipe.Exec(wctx, cmds)
	if err != nil {
		span.RecordError(err)
		d.Logger().Error("pipeline failed", zap.Int("commands", len(cmds)), zap.Error(err))
		return nil, base.TransportError(err, errors.FailureOutcome(true))
	}

	var failures []sink.Failure
	failed := make(map[int]bool)
	for j, e := range errs {
		if e == nil || j >= len(owner) || failed[owner[j]] {
			continue
		}
		failed[owner[j]] = true
		failures = append(failures, sink.Failure{Ordinal: owner[j], Outcome: errors.FailureOutcome(true), Cause: e})
	}
	d.errs.Report(failures)
	return failures, nil
}

// clientPipeline runs commands on a go-redis client.
type clientPipeline struct {
	client goredis.UniversalClient
}

func (c *clientPipeline) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *clientPipeline) Exec(ctx context.Context, cmds [][]interface{}) ([]error, error) {
	pipe := c.client.Pipeline()
	results := make([]*goredis.Cmd, len(cmds))
	for i, args := range cmds {
		results[i] = pipe.Do(ctx, args...)
	}
	// Exec reports the first failed command; per-command errors are read
	// from the results below.
	if _, err := pipe.Exec(ctx); err != nil && !hasCommandError(results) {
		return nil, err
	}
	errs := make([]error, len(results))
	for i, r := range results {
		errs[i] = r.Err()
	}
	return errs, nil
}

func hasCommandError(results []*goredis.Cmd) bool {
	for _, r := range results {
		if r.Err() != nil {
			return true
		}
	}
	return false
}
