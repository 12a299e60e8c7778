package mq

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/debugmarathon/apiserver/config"
)

const redisPingTimeout = 5 * time.Second

// redisEnvelope carries the message ID and attributes, which Redis Pub/Sub
// has no native slot for.
type redisEnvelope struct {
	ID         string            `json:"id"`
	Data       json.RawMessage   `json:"data,omitempty"`
	Raw        []byte            `json:"raw,omitempty"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

// RedisClient publishes over Redis Pub/Sub. Delivery is at-most-once: a
// message published with no active subscriber is lost.
type RedisClient struct {
	client *redis.Client
}

// NewRedisClient connects to the Redis server at cfg.URL and pings it.
func NewRedisClient(ctx context.Context, cfg config.RedisConfig) (*RedisClient, error) {
	if strings.TrimSpace(cfg.URL) == "" {
		return nil, errors.New("redis url is required")
	}

	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, err
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, redisPingTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}

	return NewRedisClientFrom(client), nil
}

// NewRedisClientFrom wraps an existing go-redis client.
func NewRedisClientFrom(client *redis.Client) *RedisClient {
	return &RedisClient{client: client}
}

// Publish sends a message on the Redis channel of the same name.
func (r *RedisClient) Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error) {
	if strings.TrimSpace(channel) == "" {
		return "", ErrChannelRequired
	}

	payload, id, err := encodeEnvelope(data, attrs)
	if err != nil {
		return "", err
	}
	if err := r.client.Publish(ctx, channel, payload).Err(); err != nil {
		return "", err
	}
	return id, nil
}

// Subscribe consumes messages from the named Redis channel until ctx is
// done. Handler errors are dropped since Redis Pub/Sub cannot redeliver.
func (r *RedisClient) Subscribe(ctx context.Context, channel string, handler Handler) error {
	if strings.TrimSpace(channel) == "" {
		return ErrChannelRequired
	}

	sub := r.client.Subscribe(ctx, channel)
	defer func() {
		_ = sub.Close()
	}()

	if _, err := sub.Receive(ctx); err != nil {
		return err
	}

	messages := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-messages:
			if !ok {
				return errors.New("redis subscription closed")
			}
			message, err := decodeEnvelope([]byte(msg.Payload))
			if err != nil {
				continue
			}
			_ = handler(ctx, message)
		}
	}
}

// Close closes the underlying client.
func (r *RedisClient) Close() error {
	return r.client.Close()
}

func encodeEnvelope(data []byte, attrs map[string]string) ([]byte, string, error) {
	env := redisEnvelope{
		ID:         uuid.NewString(),
		Attributes: attrs,
	}
	if json.Valid(data) {
		env.Data = data
	} else {
		env.Raw = data
	}
	payload, err := json.Marshal(env)
	if err != nil {
		return nil, "", err
	}
	return payload, env.ID, nil
}

func decodeEnvelope(payload []byte) (Message, error) {
	var env redisEnvelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return Message{}, err
	}
	data := []byte(env.Data)
	if len(data) == 0 {
		data = env.Raw
	}
	return Message{
		ID:         env.ID,
		Data:       data,
		Attributes: env.Attributes,
	}, nil
}
