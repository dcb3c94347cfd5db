// Package base provides the pieces every destination shares: a name-scoped
// logger and tracer, write deadlines, close bookkeeping and error helpers.
//
// # Usage
//
// Destinations embed BaseDestination:
//
//	type Destination struct {
//	    *base.BaseDestination
//	    client *redis.Client
//	}
//
//	func New(cfg config.RedisConfig, logger *zap.Logger) *Destination {
//	    return &Destination{
//	        BaseDestination: base.NewBaseDestination("redis", logger, cfg.WriteTimeout),
//	    }
//	}
//
// Write implementations call WriteContext to bound each backend call and
// StartSpan to trace it.
package base

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ajitpratap0/nebula-sink/pkg/errors"
	"github.com/ajitpratap0/nebula-sink/pkg/observability"
)

// BaseDestination holds the state common to all destinations.
type BaseDestination struct {
	name    string
	logger  *zap.Logger
	tracer  *observability.SinkTracer
	timeout time.Duration

	closeMu sync.Mutex
	closed  bool
	closers []func() error
}

// NewBaseDestination creates the base for a destination called name. A zero
// timeout leaves writes bounded only by the caller's context.
func NewBaseDestination(name string, logger *zap.Logger, timeout time.Duration) *BaseDestination {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BaseDestination{
		name:    name,
		logger:  logger.With(zap.String("destination", name)),
		tracer:  observability.NewSinkTracer(name),
		timeout: timeout,
	}
}

// Name returns the destination name.
func (b *BaseDestination) Name() string {
	return b.name
}

// Logger returns the destination logger.
func (b *BaseDestination) Logger() *zap.Logger {
	return b.logger
}

// StartSpan starts a span for one destination operation.
func (b *BaseDestination) StartSpan(ctx context.Context, operation string) (context.Context, *observability.Span) {
	return b.tracer.StartSpan(ctx, operation)
}

// WriteContext bounds ctx by the write timeout.
func (b *BaseDestination) WriteContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if b.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, b.timeout)
}

// OnClose registers fn to run on Close, in reverse registration order.
func (b *BaseDestination) OnClose(fn func() error) {
	b.closeMu.Lock()
	b.closers = append(b.closers, fn)
	b.closeMu.Unlock()
}

// Close runs the registered closers once and returns the first error.
func (b *BaseDestination) Close() error {
	b.closeMu.Lock()
	defer b.closeMu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true

	var first error
	for i := len(b.closers) - 1; i >= 0; i-- {
		if err := b.closers[i](); err != nil {
			b.logger.Warn("failed to release destination resource", zap.Error(err))
			if first == nil {
				first = errors.Wrap(err, errors.ErrorTypeConnection, "close failed")
			}
		}
	}
	b.logger.Info("destination closed")
	return first
}

// Closed reports whether Close was called.
func (b *BaseDestination) Closed() bool {
	b.closeMu.Lock()
	defer b.closeMu.Unlock()
	return b.closed
}
