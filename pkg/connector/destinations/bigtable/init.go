package bigtable

import (
	"context"

	"go.uber.org/zap"

	"github.com/ajitpratap0/nebula-sink/pkg/config"
	"github.com/ajitpratap0/nebula-sink/pkg/connector/registry"
	"github.com/ajitpratap0/nebula-sink/pkg/sink"
)

func init() {
	_ = registry.Register(registry.Info{
		Name:        config.SinkBigtable,
		Description: "one row per message with templated row keys",
		Shape:       "status",
	}, func(ctx context.Context, cfg *config.Config, logger *zap.Logger) (sink.Backend, error) {
		return New(ctx, cfg.Bigtable, logger)
	})
}
