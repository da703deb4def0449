/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"os/signal"
	"syscall"

	"github.com/matchup/apiserver/internal/mq"
	"github.com/matchup/apiserver/types"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var workerChannel string

// workerCmd consumes account events until interrupted.
var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Consume account events",
	Long: `Consume account events from the configured message queue
(MQ_BACKEND=rabbitmq|pubsub). By default it reads the verification channel.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, err := setup()
		if err != nil {
			return err
		}
		defer func() { _ = log.Sync() }()

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		queue, err := mq.Open(ctx, cfg.MQ)
		if err != nil {
			return err
		}
		if queue == nil {
			return errors.New("worker needs MQ_BACKEND to be rabbitmq or pubsub")
		}
		defer queue.Close()

		channel := workerChannel
		if channel == "" {
			channel = cfg.MQ.VerificationChannel
		}
		log.Info("worker subscribed", zap.String("channel", channel), zap.String("backend", cfg.MQ.Backend))

		err = queue.Subscribe(ctx, channel, accountEventHandler(log))
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	},
}

func init() {
	rootCmd.AddCommand(workerCmd)
	workerCmd.Flags().StringVar(&workerChannel, "channel", "", "channel to consume (defaults to MQ_VERIFICATION_CHANNEL)")
}

// accountEventHandler logs each account event. Malformed and unknown events
// are acknowledged and dropped.
func accountEventHandler(log *zap.Logger) mq.Handler {
	return func(_ context.Context, msg mq.Message) error {
		var event types.AccountEvent
		if err := json.Unmarshal(msg.Data, &event); err != nil {
			log.Warn("drop malformed account event", zap.String("message_id", msg.ID), zap.Error(err))
			return nil
		}
		if event.UserID < 1 {
			log.Warn("drop account event without user", zap.String("message_id", msg.ID), zap.String("type", event.Type))
			return nil
		}

		fields := []zap.Field{
			zap.String("message_id", msg.ID),
			zap.String("type", event.Type),
			zap.Int("user_id", event.UserID),
			zap.String("role", event.Role.String()),
		}
		switch event.Type {
		case types.EventAccountCreated:
			if event.Active {
				log.Info("account created already active", fields...)
				return nil
			}
			log.Info("verification requested", append(fields, zap.String("email", event.Email))...)
		case types.EventAccessAssigned:
			log.Info("access assigned",
				append(fields, zap.Ints("user_permissions", event.PermissionIDs), zap.Ints("groups", event.GroupIDs))...)
		default:
			log.Warn("drop unknown account event", fields...)
		}
		return nil
	}
}
