package db

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"interaction-gateway/internal/config"
)

// NewPool creates a PostgreSQL connection pool for the dead-letter store.
func NewPool(ctx context.Context, cfg *config.Config, log *zap.SugaredLogger) (*pgxpool.Pool, error) {
	pgxCfg, err := pgxpool.ParseConfig(cfg.DeadLetterDatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse db config: %w", err)
	}

	pgxCfg.MinConns = cfg.DBMinConns
	pgxCfg.MaxConns = cfg.DBMaxConns
	pgxCfg.MaxConnLifetime = cfg.DBMaxConnLifetime
	pgxCfg.MaxConnIdleTime = cfg.DBMaxConnIdleTime
	pgxCfg.HealthCheckPeriod = 30 * time.Second

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, fmt.Errorf("connect db: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}

	if strings.ToLower(cfg.AppMode) == "benchmark" {
		log.Infow("db pool configured",
			"max_conns", pgxCfg.MaxConns,
			"min_conns", pgxCfg.MinConns,
			"max_conn_lifetime", pgxCfg.MaxConnLifetime,
			"max_conn_idle", pgxCfg.MaxConnIdleTime,
		)
	}

	return pool, nil
}
