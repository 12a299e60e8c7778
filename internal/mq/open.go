package mq

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/debugmarathon/apiserver/config"
)

// Backend names accepted in EVENTS_BACKEND.
const (
	BackendLog      = "log"
	BackendRabbitMQ = "rabbitmq"
	BackendPubSub   = "pubsub"
	BackendRedis    = "redis"
)

// Open builds the backend selected by cfg.Backend.
func Open(ctx context.Context, cfg config.EventsConfig, logger *slog.Logger) (Backend, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Backend)) {
	case "", BackendLog:
		return NewLocalBackend(logger), nil
	case BackendRabbitMQ:
		return NewRabbitMQClient(ctx, cfg.RabbitMQ)
	case BackendPubSub:
		return NewPubSubClient(ctx, cfg.PubSub)
	case BackendRedis:
		return NewRedisClient(ctx, cfg.Redis)
	default:
		return nil, fmt.Errorf("unknown events backend %q", cfg.Backend)
	}
}
