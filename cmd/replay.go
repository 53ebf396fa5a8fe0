package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"interaction-gateway/internal/db"
	"interaction-gateway/internal/deadletter"
	"interaction-gateway/internal/dispatcher"
	"interaction-gateway/internal/metrics"
)

func newReplayCmd() *cobra.Command {
	var batchSize int

	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Republish dead-lettered events to the interaction topic",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := setup()
			if err != nil {
				return err
			}
			defer log.Sync()

			if cfg.DeadLetterDatabaseURL == "" {
				return errors.New("DEAD_LETTER_DATABASE_URL is required for replay")
			}
			if batchSize <= 0 {
				batchSize = cfg.ReplayBatchSize
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			pool, err := db.NewPool(ctx, cfg, log)
			if err != nil {
				return err
			}
			defer pool.Close()

			writer, err := dispatcher.NewWriter(writerConfig(cfg), log)
			if err != nil {
				return err
			}
			d := dispatcher.New(writer, nil, dispatcherOptions(cfg), log, metrics.NewNop())
			defer d.Close()

			replayed, err := deadletter.NewReplayer(deadletter.NewStore(pool), d, batchSize, log).Run(ctx)
			log.Infow("replay finished", "replayed", replayed)
			return err
		},
	}

	cmd.Flags().IntVar(&batchSize, "batch-size", 0, "Dead letters per page (defaults to REPLAY_BATCH_SIZE)")

	return cmd
}
