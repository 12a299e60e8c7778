package mq

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

// LocalBackend delivers messages to in-process subscribers and logs every
// publish. It is the default when no broker is configured.
type LocalBackend struct {
	logger *slog.Logger

	mu          sync.RWMutex
	nextID      uint64
	subscribers map[string]map[uint64]Handler
}

// NewLocalBackend constructs a LocalBackend. A nil logger discards output.
func NewLocalBackend(logger *slog.Logger) *LocalBackend {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &LocalBackend{
		logger:      logger,
		subscribers: make(map[string]map[uint64]Handler),
	}
}

// Publish logs the message and hands it to current subscribers of channel.
// Subscriber errors are logged and otherwise ignored.
func (l *LocalBackend) Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error) {
	if channel == "" {
		return "", ErrChannelRequired
	}

	id := uuid.NewString()
	l.logger.InfoContext(ctx, "event published",
		"channel", channel,
		"message_id", id,
		"payload", string(data),
	)

	l.mu.RLock()
	handlers := make([]Handler, 0, len(l.subscribers[channel]))
	for _, handler := range l.subscribers[channel] {
		handlers = append(handlers, handler)
	}
	l.mu.RUnlock()

	msg := Message{ID: id, Data: data, Attributes: attrs}
	for _, handler := range handlers {
		if err := handler(ctx, msg); err != nil {
			l.logger.WarnContext(ctx, "local subscriber failed", "channel", channel, "error", err)
		}
	}
	return id, nil
}

// Subscribe registers handler for channel and blocks until ctx is done.
func (l *LocalBackend) Subscribe(ctx context.Context, channel string, handler Handler) error {
	if channel == "" {
		return ErrChannelRequired
	}

	l.mu.Lock()
	l.nextID++
	id := l.nextID
	if l.subscribers[channel] == nil {
		l.subscribers[channel] = make(map[uint64]Handler)
	}
	l.subscribers[channel][id] = handler
	l.mu.Unlock()

	<-ctx.Done()

	l.mu.Lock()
	delete(l.subscribers[channel], id)
	if len(l.subscribers[channel]) == 0 {
		delete(l.subscribers, channel)
	}
	l.mu.Unlock()

	return ctx.Err()
}

// Close drops all subscribers.
func (l *LocalBackend) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.subscribers = make(map[string]map[uint64]Handler)
	return nil
}
