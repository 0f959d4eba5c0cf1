/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/taskdash/apiserver/internal/mail"
	"github.com/taskdash/apiserver/internal/mq"
)

// workerCmd represents the worker command
var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Delivers queued email over SMTP",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, err := loadEnv()
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		backend, err := mq.Open(ctx, cfg.MQ)
		if errors.Is(err, mq.ErrDisabled) {
			return errors.New("worker requires MQ_BACKEND to be rabbitmq or pubsub")
		}
		if err != nil {
			return fmt.Errorf("open message queue: %w", err)
		}
		defer backend.Close()

		worker := mail.NewWorker(mail.NewSMTPSender(cfg.SMTP), log)
		log.Info("mail worker started",
			slog.String("backend", cfg.MQ.Backend),
			slog.String("channel", cfg.MQ.MailChannel),
		)
		if err := worker.Run(ctx, backend, cfg.MQ.MailChannel); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		log.Info("mail worker stopped")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(workerCmd)
}
