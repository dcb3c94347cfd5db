package registry

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/ajitpratap0/nebula-sink/pkg/clients"
	"github.com/ajitpratap0/nebula-sink/pkg/errors"
	"github.com/ajitpratap0/nebula-sink/pkg/metrics"
)

// Config configures the registry client.
type Config struct {
	URLs            []string      `yaml:"urls"`
	RefreshInterval time.Duration `yaml:"refresh_interval"`
	SourceConfig    `yaml:",inline"`
}

// Listener receives every new descriptor snapshot. A listener that returns an
// error keeps its previous state and the snapshot is offered again on the
// next refresh.
type Listener func(*Descriptors) error

// Client fetches descriptor sets and publishes new snapshots when they
// change.
type Client struct {
	sources  []Source
	interval time.Duration
	logger   *zap.Logger

	current atomic.Pointer[Descriptors]
	// applied is the last snapshot every listener accepted.
	applied atomic.Pointer[Descriptors]

	mu        sync.Mutex
	listeners []Listener

	running  atomic.Bool
	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

// New creates a client for the configured URLs.
func New(ctx context.Context, cfg Config, httpClient *clients.HTTPClient, logger *zap.Logger) (*Client, error) {
	if len(cfg.URLs) == 0 {
		return nil, errors.New(errors.ErrorTypeConfig, "registry urls are required")
	}
	sources := make([]Source, 0, len(cfg.URLs))
	for _, u := range cfg.URLs {
		src, err := NewSource(ctx, u, cfg.SourceConfig, httpClient)
		if err != nil {
			return nil, err
		}
		sources = append(sources, src)
	}
	return NewWithSources(sources, cfg.RefreshInterval, logger), nil
}

// NewWithSources creates a client over explicit sources. A zero interval
// disables background refresh.
func NewWithSources(sources []Source, interval time.Duration, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		sources:  sources,
		interval: interval,
		logger:   logger.With(zap.String("component", "schema_registry")),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Fetch loads every source and stores the result as the current snapshot.
func (c *Client) Fetch(ctx context.Context) (*Descriptors, error) {
	d, err := c.load(ctx)
	if err != nil {
		return nil, err
	}
	c.current.Store(d)
	c.applied.Store(d)
	return d, nil
}

func (c *Client) load(ctx context.Context) (*Descriptors, error) {
	sets := make([][]byte, 0, len(c.sources))
	for _, src := range c.sources {
		raw, err := src.Fetch(ctx)
		if err != nil {
			errType := errors.TypeOf(err)
			if errType == "" {
				errType = errors.ErrorTypeConnection
			}
			return nil, errors.Wrap(err, errType, "failed to fetch descriptor set").
				WithDetail("source", src.String())
		}
		sets = append(sets, raw)
	}
	return Build(sets...)
}

// Current returns the last fetched snapshot, or nil before the first Fetch.
func (c *Client) Current() *Descriptors {
	return c.current.Load()
}

// OnUpdate registers a listener for schema drift.
func (c *Client) OnUpdate(l Listener) {
	c.mu.Lock()
	c.listeners = append(c.listeners, l)
	c.mu.Unlock()
}

// Refresh refetches the sources and notifies listeners when the descriptor
// bytes differ from the last applied snapshot. It reports whether a new
// snapshot was applied. When a listener fails the error is returned and the
// same snapshot is offered again on the next call.
func (c *Client) Refresh(ctx context.Context) (bool, error) {
	prev := c.applied.Load()
	d, err := c.load(ctx)
	if err != nil {
		metrics.SchemaRefreshes.WithLabelValues("failed").Inc()
		return false, err
	}
	if prev != nil && prev.Fingerprint() == d.Fingerprint() {
		metrics.SchemaRefreshes.WithLabelValues("unchanged").Inc()
		return false, nil
	}

	c.current.Store(d)
	c.logger.Info("schema drift detected", zap.String("fingerprint", d.Fingerprint()))

	c.mu.Lock()
	listeners := append([]Listener(nil), c.listeners...)
	c.mu.Unlock()
	var first error
	for _, l := range listeners {
		if err := l(d); err != nil {
			c.logger.Error("schema update listener failed", zap.Error(err))
			if first == nil {
				first = err
			}
		}
	}
	if first != nil {
		metrics.SchemaRefreshes.WithLabelValues("failed").Inc()
		errType := errors.TypeOf(first)
		if errType == "" {
			errType = errors.ErrorTypeConfig
		}
		return false, errors.Wrap(first, errType, "schema update not applied").
			WithDetail("fingerprint", d.Fingerprint())
	}
	c.applied.Store(d)
	metrics.SchemaRefreshes.WithLabelValues("updated").Inc()
	return true, nil
}

// Start refreshes in the background until ctx is done or Close is called.
func (c *Client) Start(ctx context.Context) {
	if c.interval <= 0 || !c.running.CompareAndSwap(false, true) {
		return
	}
	go func() {
		defer close(c.done)
		ticker := time.NewTicker(c.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-c.stop:
				return
			case <-ticker.C:
				if _, err := c.Refresh(ctx); err != nil {
					c.logger.Warn("schema refresh failed, keeping current schema", zap.Error(err))
				}
			}
		}
	}()
}

// Close stops background refresh and waits for it to exit.
func (c *Client) Close() error {
	c.stopOnce.Do(func() { close(c.stop) })
	if c.running.Load() {
		<-c.done
	}
	return nil
}
