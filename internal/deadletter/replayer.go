package deadletter

import (
	"context"

	"go.uber.org/zap"

	"interaction-gateway/internal/model"
)

// PendingStore is the part of Store the replayer uses.
type PendingStore interface {
	Pending(ctx context.Context, after model.DeadLetterCursor, limit int) ([]model.DeadLetter, error)
	MarkReplayed(ctx context.Context, ids []string) error
}

// Publisher writes events to the interaction topic synchronously.
type Publisher interface {
	Publish(ctx context.Context, events ...model.Event) error
}

// Replayer republishes dead-lettered events.
type Replayer struct {
	store     PendingStore
	publisher Publisher
	batchSize int
	log       *zap.SugaredLogger
}

// NewReplayer creates a Replayer that reads batchSize records per page.
func NewReplayer(store PendingStore, publisher Publisher, batchSize int, log *zap.SugaredLogger) *Replayer {
	if batchSize < 1 {
		batchSize = 1
	}
	return &Replayer{store: store, publisher: publisher, batchSize: batchSize, log: log}
}

// Run replays pending records page by page and returns how many were
// republished. It stops at the first publish error. Records whose payload
// cannot be decoded are logged, left pending and paged past.
func (r *Replayer) Run(ctx context.Context) (int, error) {
	var (
		replayed int
		after    model.DeadLetterCursor
	)
	for {
		if err := ctx.Err(); err != nil {
			return replayed, err
		}

		page, err := r.store.Pending(ctx, after, r.batchSize)
		if err != nil {
			return replayed, err
		}
		if len(page) == 0 {
			return replayed, nil
		}
		after = page[len(page)-1].After()

		events := make([]model.Event, 0, len(page))
		ids := make([]string, 0, len(page))
		for _, dl := range page {
			event, err := model.Decode(dl.Payload)
			if err != nil {
				r.log.Warnw("skipping undecodable dead letter",
					"id", dl.ID,
					"event_id", dl.EventID,
					"error", err,
				)
				continue
			}
			events = append(events, event)
			ids = append(ids, dl.ID)
		}

		if len(events) > 0 {
			if err := r.publisher.Publish(ctx, events...); err != nil {
				return replayed, err
			}
			if err := r.store.MarkReplayed(ctx, ids); err != nil {
				return replayed, err
			}
			replayed += len(events)
			r.log.Infow("replayed dead letters", "count", len(events), "total", replayed)
		}

		if len(page) < r.batchSize {
			return replayed, nil
		}
	}
}
