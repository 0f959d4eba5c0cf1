package mail

import (
	"context"
	"encoding/json"
	"errors"
	"net/smtp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/taskdash/apiserver/config"
	"github.com/taskdash/apiserver/internal/logger"
	"github.com/taskdash/apiserver/internal/mq"
)

type memoryBackend struct {
	published []mq.Message
}

func (b *memoryBackend) Publish(_ context.Context, channel string, data []byte, attrs map[string]string) (string, error) {
	b.published = append(b.published, mq.Message{ID: channel, Data: data, Attributes: attrs})
	return channel, nil
}

func (b *memoryBackend) Subscribe(ctx context.Context, _ string, handler mq.Handler) error {
	for _, msg := range b.published {
		if err := handler(ctx, msg); err != nil {
			return err
		}
	}
	return nil
}

func (b *memoryBackend) Close() error { return nil }

type mockSender struct {
	mock.Mock
}

func (m *mockSender) Send(ctx context.Context, msg Message) error {
	return m.Called(ctx, msg).Error(0)
}

func TestQueueNotifierToWorker(t *testing.T) {
	ctx := context.Background()
	backend := &memoryBackend{}
	notifier := NewQueueNotifier(backend, "taskdash.mail")

	require.NoError(t, notifier.Notify(ctx, "alice@example.com", "Password reset", "click here"))
	require.Len(t, backend.published, 1)
	assert.Equal(t, "application/json", backend.published[0].Attributes["content-type"])

	sender := &mockSender{}
	sender.Test(t)
	sender.On("Send", ctx, Message{To: "alice@example.com", Subject: "Password reset", Body: "click here"}).
		Return(nil).
		Once()

	worker := NewWorker(sender, logger.Discard())
	require.NoError(t, worker.Run(ctx, backend, "taskdash.mail"))
	sender.AssertExpectations(t)
}

func TestQueueNotifierRejectsBadRecipient(t *testing.T) {
	backend := &memoryBackend{}

	err := NewQueueNotifier(backend, "taskdash.mail").Notify(context.Background(), "not-an-address", "s", "b")

	assert.Error(t, err)
	assert.Empty(t, backend.published)
}

func TestWorkerDropsMalformedMessages(t *testing.T) {
	sender := &mockSender{}
	worker := NewWorker(sender, logger.Discard())

	err := worker.Handle(context.Background(), mq.Message{ID: "1", Data: []byte("{")})
	assert.True(t, mq.IsPermanent(err))

	data, _ := json.Marshal(Message{To: "", Subject: "x"})
	err = worker.Handle(context.Background(), mq.Message{ID: "2", Data: data})
	assert.True(t, mq.IsPermanent(err))

	sender.AssertNotCalled(t, "Send", mock.Anything, mock.Anything)
}

func TestWorkerRetriesDeliveryFailures(t *testing.T) {
	ctx := context.Background()
	sender := &mockSender{}
	sender.On("Send", ctx, mock.Anything).Return(errors.New("connection refused")).Once()
	data, _ := json.Marshal(Message{To: "bob@example.com", Subject: "hi", Body: "there"})

	err := NewWorker(sender, logger.Discard()).Handle(ctx, mq.Message{ID: "3", Data: data})

	require.Error(t, err)
	assert.False(t, mq.IsPermanent(err))
}

func TestSMTPSender(t *testing.T) {
	sender := NewSMTPSender(config.SMTPConfig{Host: "mail.local", Port: 2525, From: "no-reply@taskdash.local"})

	var gotAddr, gotFrom string
	var gotTo []string
	var gotBody []byte
	sender.send = func(addr string, _ smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotFrom, gotTo, gotBody = addr, from, to, msg
		return nil
	}

	err := sender.Send(context.Background(), Message{To: "bob@example.com", Subject: "Hi\r\nBcc: x@y", Body: "line1\nline2"})

	require.NoError(t, err)
	assert.Equal(t, "mail.local:2525", gotAddr)
	assert.Equal(t, "no-reply@taskdash.local", gotFrom)
	assert.Equal(t, []string{"bob@example.com"}, gotTo)
	body := string(gotBody)
	assert.Contains(t, body, "Subject: Hi  Bcc: x@y\r\n")
	assert.True(t, strings.HasSuffix(body, "\r\n\r\nline1\r\nline2"))
	assert.Nil(t, sender.auth)
}

func TestSMTPSenderHonoursCancelledContext(t *testing.T) {
	sender := NewSMTPSender(config.SMTPConfig{Host: "mail.local", Port: 25, From: "a@b.c"})
	sender.send = func(string, smtp.Auth, string, []string, []byte) error {
		t.Fatal("must not dial")
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Nanosecond)
	defer cancel()
	<-ctx.Done()

	err := sender.Send(ctx, Message{To: "bob@example.com", Subject: "x"})

	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
