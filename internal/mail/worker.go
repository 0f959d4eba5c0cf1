package mail

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/taskdash/apiserver/internal/logger"
	"github.com/taskdash/apiserver/internal/mq"
)

// Worker consumes queued messages and hands them to a Sender.
type Worker struct {
	sender Sender
	log    *slog.Logger
}

func NewWorker(sender Sender, log *slog.Logger) *Worker {
	return &Worker{sender: sender, log: log}
}

// Handle is an mq.Handler. Malformed messages are dropped; delivery
// failures are retried by the broker.
func (w *Worker) Handle(ctx context.Context, raw mq.Message) error {
	var msg Message
	if err := json.Unmarshal(raw.Data, &msg); err != nil {
		w.log.Warn("dropping malformed mail message", slog.String("message_id", raw.ID), logger.Err(err))
		return mq.Permanent(fmt.Errorf("decode mail message: %w", err))
	}
	if err := msg.Validate(); err != nil {
		w.log.Warn("dropping undeliverable mail message", slog.String("message_id", raw.ID), logger.Err(err))
		return mq.Permanent(err)
	}

	if err := w.sender.Send(ctx, msg); err != nil {
		w.log.Error("mail delivery failed", slog.String("message_id", raw.ID), logger.Err(err))
		return err
	}
	w.log.Info("mail delivered", slog.String("message_id", raw.ID), slog.String("subject", msg.Subject))
	return nil
}

// Run subscribes to channel and blocks until ctx is done or the broker
// fails.
func (w *Worker) Run(ctx context.Context, backend mq.Backend, channel string) error {
	return backend.Subscribe(ctx, channel, w.Handle)
}
