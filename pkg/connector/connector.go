package connector

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/ajitpratap0/nebula-sink/pkg/clients"
	"github.com/ajitpratap0/nebula-sink/pkg/config"
	// Link the built-in destinations into every binary that opens a connector.
	_ "github.com/ajitpratap0/nebula-sink/pkg/connector/destinations"
	"github.com/ajitpratap0/nebula-sink/pkg/connector/registry"
	"github.com/ajitpratap0/nebula-sink/pkg/errors"
	"github.com/ajitpratap0/nebula-sink/pkg/message"
	"github.com/ajitpratap0/nebula-sink/pkg/message/avromsg"
	"github.com/ajitpratap0/nebula-sink/pkg/message/jsonmsg"
	"github.com/ajitpratap0/nebula-sink/pkg/message/protomsg"
	schemaregistry "github.com/ajitpratap0/nebula-sink/pkg/registry"
	"github.com/ajitpratap0/nebula-sink/pkg/sink"
)

// refreshTimeout bounds backend side effects of one schema refresh, such as a
// BigQuery table update.
const refreshTimeout = 2 * time.Minute

// Connector is a sink together with the schema registry feeding it.
type Connector struct {
	*sink.Sink

	backend  sink.Backend
	schemas  *schemaregistry.Client
	logger   *zap.Logger
}

// Open validates cfg, creates the configured backend and returns a connector
// ready for Push. Protobuf input fetches descriptors before returning and
// refreshes them in the background until Close.
func Open(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Connector, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	mode, err := message.ParseMode(cfg.Input.Mode)
	if err != nil {
		return nil, err
	}
	logger = logger.With(zap.String("sink", cfg.Name))

	backend, err := registry.Create(ctx, cfg.Sink, cfg, logger)
	if err != nil {
		return nil, err
	}

	c := &Connector{backend: backend, logger: logger}
	snap, err := c.initialSnapshot(ctx, cfg)
	if err != nil {
		_ = backend.Close()
		if c.schemas != nil {
			_ = c.schemas.Close()
		}
		return nil, err
	}

	cache := sink.NewSchemaCache(snap)
	c.Sink = sink.New(sink.Options{
		Name:      cfg.Name,
		Mode:      mode,
		SchemaRef: cfg.Input.Schema,
		Logger:    logger,
	}, cache, backend)

	if c.schemas != nil {
		refreshCtx := context.WithoutCancel(ctx)
		c.schemas.OnUpdate(cache.RefreshFrom(func(d *schemaregistry.Descriptors) (*sink.Snapshot, error) {
			rctx, cancel := context.WithTimeout(refreshCtx, refreshTimeout)
			defer cancel()
			return protoSnapshot(rctx, cfg, d, backend)
		}, logger))
		c.schemas.Start(refreshCtx)
	}

	logger.Info("connector opened",
		zap.String("destination", cfg.Sink),
		zap.String("format", cfg.Input.Format),
		zap.String("mode", string(mode)))
	return c, nil
}

func (c *Connector) initialSnapshot(ctx context.Context, cfg *config.Config) (*sink.Snapshot, error) {
	switch cfg.Input.Format {
	case config.FormatProto:
		rc, err := schemaregistry.New(ctx, cfg.Registry, clients.NewHTTPClient(nil, c.logger), c.logger)
		if err != nil {
			return nil, err
		}
		c.schemas = rc
		d, err := rc.Fetch(ctx)
		if err != nil {
			return nil, err
		}
		return protoSnapshot(ctx, cfg, d, c.backend)
	case config.FormatAvro:
		p, err := avromsg.NewParser(avromsg.Config{Schema: cfg.Input.AvroSchema, Confluent: cfg.Input.Confluent})
		if err != nil {
			return nil, err
		}
		return documentSnapshot(ctx, p, c.backend)
	default:
		return documentSnapshot(ctx, jsonmsg.NewParser(jsonmsg.Config{StringMode: cfg.Input.StringMode}), c.backend)
	}
}

// protoSnapshot resolves the configured message in d and prepares the backend
// for its schema.
func protoSnapshot(ctx context.Context, cfg *config.Config, d *schemaregistry.Descriptors, backend sink.Backend) (*sink.Snapshot, error) {
	md, err := d.FindMessage(cfg.Input.Schema)
	if err != nil {
		return nil, err
	}
	p := protomsg.NewParser(d, protomsg.Config{Strict: cfg.Input.Strict})
	s := p.Schema(md)
	b, err := backend.NewBuilder(ctx, s)
	if err != nil {
		return nil, err
	}
	return &sink.Snapshot{Schema: s, Parser: p, Builder: b}, nil
}

// documentSnapshot serves self-describing inputs, whose schema is known only
// per message.
func documentSnapshot(ctx context.Context, p message.Parser, backend sink.Backend) (*sink.Snapshot, error) {
	b, err := backend.NewBuilder(ctx, nil)
	if err != nil {
		return nil, err
	}
	return &sink.Snapshot{Parser: p, Builder: b}, nil
}

// Refresh fetches descriptors now instead of waiting for the next tick. It
// reports whether a changed descriptor set was applied.
func (c *Connector) Refresh(ctx context.Context) (bool, error) {
	if c.schemas == nil {
		return false, errors.New(errors.ErrorTypeConfig, "connector input has no schema registry")
	}
	return c.schemas.Refresh(ctx)
}

// Close stops schema refresh and releases the backend.
func (c *Connector) Close() error {
	if c.schemas != nil {
		_ = c.schemas.Close()
	}
	return c.Sink.Close()
}
