package httpsink

import (
	"context"

	"go.uber.org/zap"

	"github.com/ajitpratap0/nebula-sink/pkg/config"
	"github.com/ajitpratap0/nebula-sink/pkg/connector/registry"
	"github.com/ajitpratap0/nebula-sink/pkg/message"
	"github.com/ajitpratap0/nebula-sink/pkg/sink"
)

func init() {
	_ = registry.Register(registry.Info{
		Name:        config.SinkHTTP,
		Description: "templated HTTP requests, one per message or one per batch",
		Shape:       "status",
	}, func(ctx context.Context, cfg *config.Config, logger *zap.Logger) (sink.Backend, error) {
		mode, err := message.ParseMode(cfg.Input.Mode)
		if err != nil {
			return nil, err
		}
		return New(ctx, cfg.HTTP, mode, logger)
	})
}
