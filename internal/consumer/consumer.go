package consumer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"interaction-gateway/internal/model"
	"interaction-gateway/internal/repository"
)

// Reader is the part of *kafka.Reader the consumer uses.
type Reader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Consumer materializes the interaction topic into the event repository.
type Consumer struct {
	reader    Reader
	repo      repository.EventRepository
	batchSize int
	maxWait   time.Duration
	log       *zap.SugaredLogger
}

// New creates a Consumer that stores up to batchSize messages at a time,
// waiting at most maxWait for a batch to fill.
func New(reader Reader, repo repository.EventRepository, batchSize int, maxWait time.Duration, log *zap.SugaredLogger) *Consumer {
	if batchSize < 1 {
		batchSize = 1
	}
	if maxWait <= 0 {
		maxWait = time.Second
	}
	return &Consumer{reader: reader, repo: repo, batchSize: batchSize, maxWait: maxWait, log: log}
}

// Run consumes until ctx is canceled. Offsets are committed only after the
// batch is stored, so a crash redelivers rather than loses events.
func (c *Consumer) Run(ctx context.Context) error {
	for {
		msgs, err := c.fetchBatch(ctx)
		if ctx.Err() != nil {
			c.log.Infow("consumer stopping", "uncommitted", len(msgs))
			return nil
		}
		if err != nil {
			return fmt.Errorf("fetch messages: %w", err)
		}
		if len(msgs) == 0 {
			continue
		}
		if err := c.store(ctx, msgs); err != nil {
			return err
		}
	}
}

func (c *Consumer) fetchBatch(ctx context.Context) ([]kafka.Message, error) {
	fetchCtx, cancel := context.WithTimeout(ctx, c.maxWait)
	defer cancel()

	msgs := make([]kafka.Message, 0, c.batchSize)
	for len(msgs) < c.batchSize {
		msg, err := c.reader.FetchMessage(fetchCtx)
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
				break
			}
			return msgs, err
		}
		msgs = append(msgs, msg)
	}
	return msgs, nil
}

func (c *Consumer) store(ctx context.Context, msgs []kafka.Message) error {
	events := make([]model.Event, 0, len(msgs))
	for _, msg := range msgs {
		event, err := model.Decode(msg.Value)
		if err != nil {
			c.log.Warnw("skipping undecodable message",
				"partition", msg.Partition,
				"offset", msg.Offset,
				"error", err,
			)
			continue
		}
		events = append(events, event)
	}

	if err := c.repo.CreateBatch(ctx, events); err != nil {
		return fmt.Errorf("store events: %w", err)
	}
	if err := c.reader.CommitMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("commit offsets: %w", err)
	}

	c.log.Debugw("materialized batch", "messages", len(msgs), "events", len(events))
	return nil
}
