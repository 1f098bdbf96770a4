/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/inkpost/apiserver/config"
	"github.com/inkpost/apiserver/internal/logging"
	"github.com/inkpost/apiserver/internal/mq"
	"github.com/inkpost/apiserver/types"
	"github.com/spf13/cobra"
)

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Inspect post lifecycle events",
}

var eventsTailCmd = &cobra.Command{
	Use:   "tail",
	Short: "Subscribe to the post events channel and log every event",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.LoadConfig()
		logger := logging.New(cfg.Log)

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		queue, err := mq.Open(ctx, cfg.MQ)
		if err != nil {
			return err
		}
		if queue == nil {
			return errors.New("MQ_BACKEND is not configured")
		}
		defer queue.Close()

		events, err := mq.NewPostEvents(queue, cfg.MQ.PostEventsChannel)
		if err != nil {
			return err
		}

		logger.Info().Str("channel", cfg.MQ.PostEventsChannel).Msg("waiting for post events")
		err = events.Consume(ctx, func(_ context.Context, event types.PostEvent) error {
			logger.Info().
				Str("type", string(event.Type)).
				Stringer("post_id", event.PostID).
				Stringer("owner_id", event.OwnerID).
				Str("title", event.Title).
				Time("occurred_at", event.OccurredAt).
				Msg("post event")
			return nil
		})
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	},
}

func init() {
	rootCmd.AddCommand(eventsCmd)
	eventsCmd.AddCommand(eventsTailCmd)
}
