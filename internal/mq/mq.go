// Package mq publishes realtime platform events to a message broker.
package mq

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
)

// Attribute keys set on every JSON event.
const (
	AttrContentType = "content-type"
	AttrEvent       = "event"

	contentTypeJSON = "application/json"
)

// ErrChannelRequired is returned when a publish or subscribe names no channel.
var ErrChannelRequired = errors.New("mq channel is required")

// Message represents a broker-agnostic payload delivered to subscribers.
type Message struct {
	ID         string
	Data       []byte
	Attributes map[string]string
}

// Handler processes a message. Return an error to signal a retry/nack.
type Handler func(ctx context.Context, msg Message) error

// Backend defines the broker-agnostic operations used by the app.
type Backend interface {
	Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error)
	Subscribe(ctx context.Context, channel string, handler Handler) error
	Close() error
}

// MQ wraps a backend with JSON event helpers.
type MQ struct {
	backend Backend
}

// New constructs an MQ wrapper for the provided backend.
func New(backend Backend) *MQ {
	return &MQ{backend: backend}
}

// Publish sends raw bytes to the named channel.
func (m *MQ) Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error) {
	if strings.TrimSpace(channel) == "" {
		return "", ErrChannelRequired
	}
	return m.backend.Publish(ctx, channel, data, attrs)
}

// PublishEvent JSON-encodes payload and sends it on the channel named after
// the event. The event name is also carried as an attribute so consumers of
// a shared channel can route on it.
func (m *MQ) PublishEvent(ctx context.Context, event string, payload any) (string, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	attrs := map[string]string{
		AttrContentType: contentTypeJSON,
		AttrEvent:       event,
	}
	return m.Publish(ctx, event, data, attrs)
}

// Subscribe consumes messages from the named channel until ctx is done.
func (m *MQ) Subscribe(ctx context.Context, channel string, handler Handler) error {
	if strings.TrimSpace(channel) == "" {
		return ErrChannelRequired
	}
	return m.backend.Subscribe(ctx, channel, handler)
}

// Close closes the underlying backend.
func (m *MQ) Close() error {
	return m.backend.Close()
}

func contentType(attrs map[string]string) string {
	if ct := attrs[AttrContentType]; ct != "" {
		return ct
	}
	return "application/octet-stream"
}
