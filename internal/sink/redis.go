// internal/sink/redis.go
package sink

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/xkilldash9x/flowpilot-cli/api/schemas"
	"github.com/xkilldash9x/flowpilot-cli/internal/config"
)

const sessionKeyPrefix = "flowpilot:session:"

// RedisSink stores session records as JSON values keyed by session and
// iteration, with an optional TTL.
type RedisSink struct {
	client redis.Cmdable
	closer func() error
	ttl    time.Duration
	logger *zap.Logger
}

var _ schemas.SessionSink = (*RedisSink)(nil)

// NewRedisSink connects to Redis and verifies the connection.
func NewRedisSink(cfg config.RedisConfig, logger *zap.Logger) (*RedisSink, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := client.Ping(ctx).Result(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisSink{
		client: client,
		closer: client.Close,
		ttl:    cfg.TTL,
		logger: logger.Named("redis_sink"),
	}, nil
}

// NewRedisSinkWithClient wires the sink to an existing client. Used by tests.
func NewRedisSinkWithClient(client redis.Cmdable, ttl time.Duration, logger *zap.Logger) *RedisSink {
	return &RedisSink{client: client, ttl: ttl, logger: logger.Named("redis_sink")}
}

// Emit writes one record. Failures are logged and swallowed.
func (s *RedisSink) Emit(ctx context.Context, rec *schemas.SessionRecord) {
	if rec == nil {
		return
	}

	emitCtx, cancel := context.WithTimeout(ctx, emitTimeout)
	defer cancel()

	data, err := json.Marshal(rec)
	if err != nil {
		s.logger.Warn("Failed to marshal session record.", zap.Error(err))
		return
	}

	key := fmt.Sprintf("%s%s:%d", sessionKeyPrefix, rec.SessionID, rec.Iteration)
	if err := s.client.Set(emitCtx, key, data, s.ttl).Err(); err != nil {
		s.logger.Warn("Failed to persist session record.",
			zap.String("key", key), zap.Error(err))
	}
}

// Close releases the Redis connection.
func (s *RedisSink) Close() error {
	if s.closer != nil {
		return s.closer()
	}
	return nil
}
