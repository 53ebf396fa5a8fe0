package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"interaction-gateway/internal/consumer"
	"interaction-gateway/internal/db"
	"interaction-gateway/internal/repository"
)

func newMaterializeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "materialize",
		Short: "Consume the interaction topic into ClickHouse",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := setup()
			if err != nil {
				return err
			}
			defer log.Sync()

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			conn, err := db.NewConnection(ctx, cfg)
			if err != nil {
				return err
			}
			defer conn.Close()

			if err := db.RunMigrations(ctx, conn); err != nil {
				return err
			}

			reader, err := consumer.NewReader(consumer.ReaderConfig{
				Brokers: cfg.KafkaBrokers,
				Topic:   cfg.KafkaTopic,
				GroupID: cfg.ConsumerGroup,
				MaxWait: cfg.ConsumerMaxWait,
			}, log)
			if err != nil {
				return err
			}
			defer reader.Close()

			c := consumer.New(reader, repository.NewEventRepository(conn), cfg.ConsumerBatchSize, cfg.ConsumerMaxWait, log)

			log.Infow("starting materializer", "topic", cfg.KafkaTopic, "group", cfg.ConsumerGroup)
			return c.Run(ctx)
		},
	}
}
