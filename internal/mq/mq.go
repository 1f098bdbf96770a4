package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/inkpost/apiserver/config"
)

// Message attribute keys understood by every backend.
const (
	AttrType        = "type"
	AttrContentType = "content_type"
	// AttrKey groups related messages. Pub/Sub uses it as the ordering key.
	AttrKey = "key"

	jsonContentType = "application/json"
)

// Message is a payload as delivered to subscribers.
type Message struct {
	ID         string
	Data       []byte
	Attributes map[string]string
}

// Handler processes a message. A non-nil error requeues it.
type Handler func(ctx context.Context, msg Message) error

// Backend is implemented by the RabbitMQ and Pub/Sub clients.
type Backend interface {
	Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error)
	Subscribe(ctx context.Context, channel string, handler Handler) error
	Close() error
}

// MQ encodes payloads as JSON on top of a Backend.
type MQ struct {
	backend Backend
}

// New wraps a connected backend.
func New(backend Backend) *MQ {
	return &MQ{backend: backend}
}

// Open connects to the broker selected by cfg.Backend. It returns nil when
// messaging is disabled.
func Open(ctx context.Context, cfg config.MQConfig) (*MQ, error) {
	var (
		backend Backend
		err     error
	)
	switch strings.ToLower(strings.TrimSpace(cfg.Backend)) {
	case "", config.BackendNone:
		return nil, nil
	case config.BackendRabbitMQ:
		backend, err = NewRabbitMQClient(cfg.RabbitMQ)
	case config.BackendPubSub:
		backend, err = NewPubSubClient(ctx, cfg.PubSub)
	default:
		return nil, fmt.Errorf("unknown mq backend %q", cfg.Backend)
	}
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", cfg.Backend, err)
	}
	return New(backend), nil
}

// PublishJSON marshals v and publishes it with the given type and key
// attributes.
func (m *MQ) PublishJSON(ctx context.Context, channel, kind, key string, v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("encode %s: %w", kind, err)
	}
	attrs := map[string]string{
		AttrType:        kind,
		AttrContentType: jsonContentType,
	}
	if key != "" {
		attrs[AttrKey] = key
	}
	return m.backend.Publish(ctx, channel, data, attrs)
}

// Subscribe delivers messages on channel to handler until ctx is done.
func (m *MQ) Subscribe(ctx context.Context, channel string, handler Handler) error {
	return m.backend.Subscribe(ctx, channel, handler)
}

// Close releases the backend connection.
func (m *MQ) Close() error {
	return m.backend.Close()
}
