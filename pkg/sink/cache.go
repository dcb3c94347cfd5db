package sink

import (
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/ajitpratap0/nebula-sink/pkg/message"
	"github.com/ajitpratap0/nebula-sink/pkg/registry"
	"github.com/ajitpratap0/nebula-sink/pkg/schema"
)

// Snapshot is a consistent schema, parser and builder triple.
type Snapshot struct {
	Schema  *schema.Schema
	Parser  message.Parser
	Builder RecordBuilder
}

// SchemaCache holds the snapshot used by pushes. Readers take one snapshot
// per push and never lock.
type SchemaCache struct {
	current atomic.Pointer[Snapshot]
}

// NewSchemaCache creates a cache holding initial.
func NewSchemaCache(initial *Snapshot) *SchemaCache {
	c := &SchemaCache{}
	c.current.Store(initial)
	return c
}

// Current returns the active snapshot.
func (c *SchemaCache) Current() *Snapshot {
	return c.current.Load()
}

// Publish replaces the active snapshot. s must be complete.
func (c *SchemaCache) Publish(s *Snapshot) {
	c.current.Store(s)
}

// RefreshFrom returns a registry listener that builds a snapshot from new
// descriptors and publishes it. When build fails the current snapshot stays.
func (c *SchemaCache) RefreshFrom(build func(*registry.Descriptors) (*Snapshot, error), logger *zap.Logger) registry.Listener {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(d *registry.Descriptors) error {
		snap, err := build(d)
		if err != nil {
			logger.Error("failed to rebuild schema snapshot, keeping current schema", zap.Error(err))
			return err
		}
		c.Publish(snap)
		name := ""
		if snap.Schema != nil {
			name = snap.Schema.FullName
		}
		logger.Info("schema snapshot published",
			zap.String("schema", name),
			zap.String("fingerprint", d.Fingerprint()))
		return nil
	}
}
