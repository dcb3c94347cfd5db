package redis

import (
	"context"

	"go.uber.org/zap"

	"github.com/ajitpratap0/nebula-sink/pkg/config"
	"github.com/ajitpratap0/nebula-sink/pkg/connector/registry"
	"github.com/ajitpratap0/nebula-sink/pkg/sink"
)

func init() {
	_ = registry.Register(registry.Info{
		Name:        config.SinkRedis,
		Description: "pipelined SET, LPUSH or HSET writes with optional expiry",
		Shape:       "boolean",
	}, func(ctx context.Context, cfg *config.Config, logger *zap.Logger) (sink.Backend, error) {
		return New(ctx, cfg.Redis, logger)
	})
}
