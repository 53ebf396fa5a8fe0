package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"

	"interaction-gateway/internal/model"
)

// EventRepository stores interaction events in per-kind analytics tables.
type EventRepository interface {
	// Create inserts a single event.
	Create(ctx context.Context, event model.Event) error

	// CreateBatch inserts events with one ClickHouse batch per kind.
	CreateBatch(ctx context.Context, events []model.Event) error
}

type eventRepository struct {
	conn clickhouse.Conn
}

// NewEventRepository creates an EventRepository backed by ClickHouse.
func NewEventRepository(conn clickhouse.Conn) EventRepository {
	return &eventRepository{conn: conn}
}

type table struct {
	name    string
	columns []string
}

var envelopeColumns = []string{
	"event_id", "user_id", "video_id", "ts", "session_id", "device_info", "geo_location",
}

var tables = map[model.Kind]table{
	model.KindWatch: {
		name:    "video_watch_events",
		columns: withEnvelope("watch_duration_ms", "video_duration_ms", "watch_percentage", "playback_quality", "is_autoplay", "is_fullscreen"),
	},
	model.KindLike: {
		name:    "video_like_events",
		columns: withEnvelope("is_liked"),
	},
	model.KindComment: {
		name:    "video_comment_events",
		columns: withEnvelope("comment_id", "comment_text", "parent_comment_id"),
	},
	model.KindSkip: {
		name:    "video_skip_events",
		columns: withEnvelope("skip_time_ms", "skip_type"),
	},
}

func withEnvelope(columns ...string) []string {
	out := make([]string, 0, len(envelopeColumns)+len(columns))
	out = append(out, envelopeColumns...)
	return append(out, columns...)
}

// TableFor returns the table that stores events of kind.
func TableFor(kind model.Kind) (string, bool) {
	t, ok := tables[kind]
	return t.name, ok
}

func batchQuery(kind model.Kind) (string, error) {
	t, ok := tables[kind]
	if !ok {
		return "", fmt.Errorf("no table for event type %q", kind)
	}
	return fmt.Sprintf("INSERT INTO %s (%s)", t.name, strings.Join(t.columns, ", ")), nil
}

func insertQuery(kind model.Kind) (string, error) {
	q, err := batchQuery(kind)
	if err != nil {
		return "", err
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(tables[kind].columns)), ", ")
	return q + " VALUES (" + placeholders + ")", nil
}

func (r *eventRepository) Create(ctx context.Context, event model.Event) error {
	query, err := insertQuery(event.Kind())
	if err != nil {
		return err
	}

	row, err := rowFor(event)
	if err != nil {
		return err
	}

	if err := r.conn.Exec(ctx, query, row...); err != nil {
		return fmt.Errorf("insert %s event: %w", event.Kind(), err)
	}
	return nil
}

func (r *eventRepository) CreateBatch(ctx context.Context, events []model.Event) error {
	if len(events) == 0 {
		return nil
	}

	byKind := make(map[model.Kind][]model.Event, len(model.Kinds))
	for _, event := range events {
		byKind[event.Kind()] = append(byKind[event.Kind()], event)
	}

	for _, kind := range model.Kinds {
		group := byKind[kind]
		if len(group) == 0 {
			continue
		}
		if err := r.sendBatch(ctx, kind, group); err != nil {
			return err
		}
	}
	return nil
}

func (r *eventRepository) sendBatch(ctx context.Context, kind model.Kind, events []model.Event) error {
	query, err := batchQuery(kind)
	if err != nil {
		return err
	}

	batch, err := r.conn.PrepareBatch(ctx, query)
	if err != nil {
		return fmt.Errorf("prepare batch %s: %w", kind, err)
	}

	for _, event := range events {
		row, err := rowFor(event)
		if err != nil {
			return err
		}
		if err := batch.Append(row...); err != nil {
			return fmt.Errorf("append batch %s: %w", kind, err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch %s: %w", kind, err)
	}
	return nil
}

func rowFor(event model.Event) ([]any, error) {
	h := event.Header()
	deviceInfo, err := marshalObject(h.DeviceInfo)
	if err != nil {
		return nil, err
	}
	geoLocation, err := marshalObject(h.GeoLocation)
	if err != nil {
		return nil, err
	}

	row := []any{
		h.EventID,
		h.UserID,
		h.VideoID,
		time.UnixMilli(h.Timestamp).UTC(),
		h.SessionID,
		deviceInfo,
		geoLocation,
	}

	switch e := event.(type) {
	case *model.WatchEvent:
		row = append(row, e.WatchDurationMs, e.VideoDurationMs, e.WatchPercentage, e.PlaybackQuality, e.IsAutoplay, e.IsFullscreen)
	case *model.LikeEvent:
		row = append(row, e.IsLiked)
	case *model.CommentEvent:
		row = append(row, e.CommentID, e.CommentText, e.ParentCommentID)
	case *model.SkipEvent:
		row = append(row, e.SkipTimeMs, e.SkipType)
	}
	return row, nil
}

func marshalObject(obj map[string]any) (string, error) {
	if obj == nil {
		return "{}", nil
	}
	b, err := json.Marshal(obj)
	if err != nil {
		return "", fmt.Errorf("marshal object: %w", err)
	}
	return string(b), nil
}
