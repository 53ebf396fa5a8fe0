package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"interaction-gateway/internal/config"
	"interaction-gateway/internal/controller"
	"interaction-gateway/internal/db"
	"interaction-gateway/internal/deadletter"
	"interaction-gateway/internal/dispatcher"
	httpserver "interaction-gateway/internal/http"
	"interaction-gateway/internal/metrics"
	"interaction-gateway/internal/schema"
	"interaction-gateway/internal/service"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP ingestion gateway",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := setup()
			if err != nil {
				return err
			}
			defer log.Sync()

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			reg := prometheus.NewRegistry()
			reg.MustRegister(
				collectors.NewGoCollector(),
				collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
			)
			m := metrics.New(reg)

			writer, err := dispatcher.NewWriter(writerConfig(cfg), log)
			if err != nil {
				return err
			}

			var sink dispatcher.DeadLetterSink
			if cfg.DeadLetterDatabaseURL != "" {
				pool, err := db.NewPool(ctx, cfg, log)
				if err != nil {
					return err
				}
				defer pool.Close()

				store := deadletter.NewStore(pool)
				if err := store.EnsureSchema(ctx); err != nil {
					return err
				}
				sink = store
			} else {
				log.Warn("DEAD_LETTER_DATABASE_URL not set, failed events will only be logged")
			}

			d := dispatcher.New(writer, sink, dispatcherOptions(cfg), log, m)

			eventService := service.NewEventService(schema.NewFactory(), d, m)
			eventController := controller.NewEventController(eventService, cfg.BatchMaxEvents, cfg.AppVersion)
			server := httpserver.NewServer(cfg, eventController, reg)

			log.Infow("starting server",
				"addr", cfg.HTTPPort,
				"topic", cfg.KafkaTopic,
				"workers", cfg.DispatchWorkers,
			)
			runErr := server.Run(ctx, cfg.HTTPPort)
			if runErr != nil {
				log.Errorw("server stopped", "error", runErr)
			}

			// Handlers are done, so nothing dispatches after this point.
			log.Info("flushing dispatcher")
			if err := d.Close(); err != nil {
				log.Errorw("close dispatcher", "error", err)
			}
			return runErr
		},
	}
}

func writerConfig(cfg *config.Config) dispatcher.WriterConfig {
	return dispatcher.WriterConfig{
		Brokers:      cfg.KafkaBrokers,
		Topic:        cfg.KafkaTopic,
		Compression:  cfg.KafkaCompression,
		Linger:       cfg.KafkaLinger,
		BatchSize:    cfg.KafkaBatchSize,
		WriteTimeout: cfg.KafkaPublishTimeout,
		MaxAttempts:  cfg.KafkaMaxAttempts,
	}
}

func dispatcherOptions(cfg *config.Config) dispatcher.Options {
	return dispatcher.Options{
		Workers:        cfg.DispatchWorkers,
		QueueSize:      cfg.DispatchQueueSize,
		BatchSize:      cfg.KafkaBatchSize,
		Linger:         cfg.KafkaLinger,
		PublishTimeout: cfg.KafkaPublishTimeout,
	}
}
