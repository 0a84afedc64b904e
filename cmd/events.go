/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/clickrush/apiserver/config"
	"github.com/clickrush/apiserver/internal/logging"
	"github.com/clickrush/apiserver/internal/mq"
	"github.com/clickrush/apiserver/types"
	"github.com/spf13/cobra"
)

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Inspect score events",
}

var eventsTailCmd = &cobra.Command{
	Use:   "tail",
	Short: "Log score-created events as they arrive",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.LoadConfig()
		logger := logging.New(cfg.Log)

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		broker, err := mq.Open(ctx, cfg.MQ)
		if err != nil {
			return fmt.Errorf("open message queue: %w", err)
		}
		if broker == nil {
			return errors.New("MQ_BACKEND is not configured")
		}
		defer broker.Close()

		logger.Info().Str("channel", cfg.MQ.ScoreEventChannel).Msg("tailing score events")
		subscriber := mq.NewScorePublisher(broker, cfg.MQ.ScoreEventChannel)
		err = subscriber.SubscribeScores(ctx, func(_ context.Context, event types.ScoreEvent) error {
			logger.Info().
				Str("score_id", event.ScoreID.String()).
				Str("user_id", event.UserID.String()).
				Str("mode", string(event.Mode)).
				Int("mode_value", event.ModeValue).
				Float64("cps", event.CPS).
				Float64("accuracy", event.Accuracy).
				Time("created_at", event.CreatedAt).
				Msg("score created")
			return nil
		})
		if err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(eventsCmd)
	eventsCmd.AddCommand(eventsTailCmd)
}
