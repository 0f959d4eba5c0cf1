package mq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskdash/apiserver/config"
)

type captureBackend struct {
	channel string
	data    []byte
	attrs   map[string]string
}

func (c *captureBackend) Publish(_ context.Context, channel string, data []byte, attrs map[string]string) (string, error) {
	c.channel = channel
	c.data = data
	c.attrs = attrs
	return "id-1", nil
}

func (c *captureBackend) Subscribe(context.Context, string, Handler) error { return nil }
func (c *captureBackend) Close() error                                   { return nil }

func TestPublishJSON(t *testing.T) {
	backend := &captureBackend{}

	id, err := PublishJSON(context.Background(), backend, "taskdash.mail", map[string]string{"to": "a@example.com"})

	require.NoError(t, err)
	assert.Equal(t, "id-1", id)
	assert.Equal(t, "taskdash.mail", backend.channel)
	assert.Equal(t, "application/json", backend.attrs["content-type"])
	var decoded map[string]string
	require.NoError(t, json.Unmarshal(backend.data, &decoded))
	assert.Equal(t, "a@example.com", decoded["to"])
}

func TestPermanent(t *testing.T) {
	base := errors.New("bad payload")

	assert.Nil(t, Permanent(nil))
	assert.False(t, IsPermanent(base))
	assert.True(t, IsPermanent(Permanent(base)))
	assert.True(t, IsPermanent(fmt.Errorf("decode: %w", Permanent(base))))
	assert.ErrorIs(t, Permanent(base), base)
}

func TestOpen(t *testing.T) {
	_, err := Open(context.Background(), config.MQConfig{Backend: "none"})
	assert.ErrorIs(t, err, ErrDisabled)

	_, err = Open(context.Background(), config.MQConfig{Backend: "kafka"})
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrDisabled)

	_, err = Open(context.Background(), config.MQConfig{Backend: "rabbitmq"})
	assert.EqualError(t, err, "rabbitmq url is required")
}

func TestHeadersToAttributes(t *testing.T) {
	assert.Nil(t, headersToAttributes(nil))

	attrs := headersToAttributes(amqp.Table{
		"content-type": "application/json",
		"raw":          []byte("bytes"),
		"attempt":      int32(3),
	})
	assert.Equal(t, map[string]string{
		"content-type": "application/json",
		"raw":          "bytes",
		"attempt":      "3",
	}, attrs)
}
