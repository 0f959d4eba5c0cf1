// Package mail delivers outbound email. The API server enqueues messages
// through a Notifier and the worker command sends them over SMTP.
package mail

import (
	"context"
	"errors"
	"log/slog"
	"net/mail"
	"strings"

	"github.com/taskdash/apiserver/internal/mq"
)

// Message is the queued form of an email.
type Message struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// Validate checks that the message can be delivered.
func (m Message) Validate() error {
	if _, err := mail.ParseAddress(strings.TrimSpace(m.To)); err != nil {
		return errors.New("invalid recipient address")
	}
	if strings.TrimSpace(m.Subject) == "" {
		return errors.New("subject is required")
	}
	return nil
}

// QueueNotifier publishes messages to a broker channel.
type QueueNotifier struct {
	backend mq.Backend
	channel string
}

func NewQueueNotifier(backend mq.Backend, channel string) *QueueNotifier {
	return &QueueNotifier{backend: backend, channel: channel}
}

func (n *QueueNotifier) Notify(ctx context.Context, to, subject, body string) error {
	msg := Message{To: to, Subject: subject, Body: body}
	if err := msg.Validate(); err != nil {
		return err
	}
	_, err := mq.PublishJSON(ctx, n.backend, n.channel, msg)
	return err
}

// LogNotifier writes messages to the log instead of sending them. It is
// used when no broker is configured.
type LogNotifier struct {
	log *slog.Logger
}

func NewLogNotifier(log *slog.Logger) *LogNotifier {
	return &LogNotifier{log: log}
}

func (n *LogNotifier) Notify(_ context.Context, to, subject, body string) error {
	n.log.Info("mail not sent: no queue configured",
		slog.String("to", to),
		slog.String("subject", subject),
		slog.Int("body_bytes", len(body)),
	)
	return nil
}
