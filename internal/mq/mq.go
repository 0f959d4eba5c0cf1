// Package mq carries asynchronous jobs between the API server and the
// worker over a message broker.
package mq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/taskdash/apiserver/config"
)

// Backend names accepted by Open.
const (
	BackendRabbitMQ = "rabbitmq"
	BackendPubSub   = "pubsub"
	BackendNone     = "none"
)

// ErrDisabled is returned by Open when no broker is configured.
var ErrDisabled = errors.New("message queue disabled")

// Message represents a broker-agnostic payload delivered to subscribers.
type Message struct {
	ID         string
	Data       []byte
	Attributes map[string]string
}

// Handler processes a message. Returning an error requeues the message
// unless the error is marked with Permanent.
type Handler func(ctx context.Context, msg Message) error

// Backend defines the broker-agnostic operations used by the app.
type Backend interface {
	Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error)
	Subscribe(ctx context.Context, channel string, handler Handler) error
	Close() error
}

// Open connects to the broker selected by cfg.Backend.
func Open(ctx context.Context, cfg config.MQConfig) (Backend, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Backend)) {
	case BackendRabbitMQ:
		return NewRabbitMQClient(cfg.RabbitMQ)
	case BackendPubSub:
		return NewPubSubClient(ctx, cfg.PubSub)
	case BackendNone, "":
		return nil, ErrDisabled
	default:
		return nil, fmt.Errorf("unknown mq backend %q", cfg.Backend)
	}
}

// PublishJSON encodes v as JSON and publishes it on channel.
func PublishJSON(ctx context.Context, b Backend, channel string, v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return b.Publish(ctx, channel, data, map[string]string{"content-type": "application/json"})
}

type permanentError struct {
	err error
}

func (e permanentError) Error() string { return e.err.Error() }
func (e permanentError) Unwrap() error { return e.err }

// Permanent marks err as not worth retrying. The message is dropped.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return permanentError{err: err}
}

// IsPermanent reports whether err was marked with Permanent.
func IsPermanent(err error) bool {
	var p permanentError
	return errors.As(err, &p)
}
