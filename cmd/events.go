/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/debugmarathon/apiserver/config"
	"github.com/debugmarathon/apiserver/internal/events"
	"github.com/debugmarathon/apiserver/internal/logging"
	"github.com/debugmarathon/apiserver/internal/mq"
)

var tailCount int

// eventsCmd groups commands that work with the realtime event backend.
var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Inspect realtime platform events",
}

// eventsTailCmd prints events from the configured backend as JSON lines.
var eventsTailCmd = &cobra.Command{
	Use:   "tail [event]",
	Short: "Print events from the configured backend",
	Long: `Subscribe to an event channel on the backend selected by EVENTS_BACKEND
and print each message as a JSON line. The channel defaults to
participant:joined.

	marathon events tail --count 10
`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		event := events.EventParticipantJoined
		if len(args) == 1 {
			event = args[0]
		}

		cfg, err := config.LoadConfig()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		logger := logging.Setup("marathon", Version, cfg.Log.Format, cfg.Log.Level, cmd.ErrOrStderr())

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		backend, err := mq.Open(ctx, cfg.Events, logger)
		if err != nil {
			return fmt.Errorf("open events backend: %w", err)
		}
		queue := mq.New(backend)
		defer func() {
			_ = queue.Close()
		}()

		logger.Info("tailing events", "backend", cfg.Events.Backend, "event", event)
		return events.Tail(ctx, queue, event, cmd.OutOrStdout(), tailCount)
	},
}

func init() {
	rootCmd.AddCommand(eventsCmd)
	eventsCmd.AddCommand(eventsTailCmd)
	eventsTailCmd.Flags().IntVar(&tailCount, "count", 0, "exit after this many events (0 runs until interrupted)")
}
