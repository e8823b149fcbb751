// internal/sink/sink.go

// Package sink persists per-iteration session telemetry. Sinks are
// fire-and-forget: a broken backend degrades observability, never the flow.
package sink

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/xkilldash9x/flowpilot-cli/api/schemas"
	"github.com/xkilldash9x/flowpilot-cli/internal/config"
)

// New builds the configured sink backend. An empty or "none" type yields the
// no-op sink.
func New(ctx context.Context, cfg config.SinkConfig, logger *zap.Logger) (schemas.SessionSink, error) {
	switch cfg.Type {
	case "", "none":
		return NopSink{}, nil
	case "postgres":
		return NewPostgresSink(ctx, cfg.Postgres, logger)
	case "redis":
		return NewRedisSink(cfg.Redis, logger)
	default:
		return nil, fmt.Errorf("unknown sink type '%s' (expected none, postgres or redis)", cfg.Type)
	}
}

// NopSink discards all records.
type NopSink struct{}

var _ schemas.SessionSink = NopSink{}

func (NopSink) Emit(context.Context, *schemas.SessionRecord) {}
func (NopSink) Close() error                                 { return nil }
