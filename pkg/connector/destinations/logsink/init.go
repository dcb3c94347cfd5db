package logsink

import (
	"context"

	"go.uber.org/zap"

	"github.com/ajitpratap0/nebula-sink/pkg/config"
	"github.com/ajitpratap0/nebula-sink/pkg/connector/registry"
	"github.com/ajitpratap0/nebula-sink/pkg/sink"
)

func init() {
	_ = registry.Register(registry.Info{
		Name:        config.SinkLog,
		Description: "logs each message's fields, never fails",
		Shape:       "boolean",
	}, func(_ context.Context, cfg *config.Config, logger *zap.Logger) (sink.Backend, error) {
		return New(cfg.Log, logger)
	})
}
