package db

import (
	"context"
	"fmt"

	"github.com/ClickHouse/clickhouse-go/v2"
)

const envelopeColumns = `
	event_id        String,
	user_id         String,
	video_id        String,
	ts              DateTime64(3, 'UTC'),
	session_id      Nullable(String),
	device_info     String DEFAULT '{}',
	geo_location    String DEFAULT '{}',`

const tableSettings = `
	ingested_at     DateTime DEFAULT now()
)
ENGINE = ReplacingMergeTree
PARTITION BY toYYYYMM(ts)
ORDER BY event_id
SETTINGS index_granularity = 8192;
`

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS video_watch_events
(` + envelopeColumns + `
	watch_duration_ms   Int64,
	video_duration_ms   Int64,
	watch_percentage    Nullable(Float64),
	playback_quality    Nullable(String),
	is_autoplay         Bool,
	is_fullscreen       Bool,` + tableSettings,

	`CREATE TABLE IF NOT EXISTS video_like_events
(` + envelopeColumns + `
	is_liked        Bool,` + tableSettings,

	`CREATE TABLE IF NOT EXISTS video_comment_events
(` + envelopeColumns + `
	comment_id          String,
	comment_text        Nullable(String),
	parent_comment_id   Nullable(String),` + tableSettings,

	`CREATE TABLE IF NOT EXISTS video_skip_events
(` + envelopeColumns + `
	skip_time_ms    Int64,
	skip_type       LowCardinality(String),` + tableSettings,
}

// RunMigrations ensures the per-kind event tables exist. This keeps the
// materializer self-contained without an external migration step.
func RunMigrations(ctx context.Context, conn clickhouse.Conn) error {
	for _, stmt := range migrations {
		if err := conn.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("apply migrations: %w", err)
		}
	}
	return nil
}
