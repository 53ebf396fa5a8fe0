package dispatcher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"interaction-gateway/internal/metrics"
	"interaction-gateway/internal/model"
)

var (
	ErrQueueFull        = errors.New("dispatch queue full")
	ErrDispatcherClosed = errors.New("dispatcher closed")
)

// DispatchError is a failed background publish of an accepted event.
type DispatchError struct {
	EventID string
	Err     error
}

func (e *DispatchError) Error() string {
	return fmt.Sprintf("dispatch event %s: %v", e.EventID, e.Err)
}

func (e *DispatchError) Unwrap() error { return e.Err }

// Result is the outcome of one dispatched event. Err is a *DispatchError
// when the publish failed.
type Result struct {
	EventID string
	Err     error
}

// Producer is the part of *kafka.Writer the dispatcher uses.
type Producer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// DeadLetterSink stores events whose publish failed.
type DeadLetterSink interface {
	Save(ctx context.Context, dl model.DeadLetter) error
}

// Options tunes queueing and batching.
type Options struct {
	Workers          int
	QueueSize        int
	BatchSize        int
	Linger           time.Duration
	PublishTimeout   time.Duration
	DeadLetterBuffer int
}

// Dispatcher publishes accepted events to the interaction topic in the
// background. Events of one user always go through the same shard, so their
// relative order is kept up to the broker.
type Dispatcher struct {
	producer Producer
	sink     DeadLetterSink
	opts     Options
	log      *zap.SugaredLogger
	metrics  *metrics.Metrics
	now      func() time.Time

	shards      []chan task
	deadLetters chan model.DeadLetter

	mu        sync.RWMutex
	closed    bool
	closeOnce sync.Once
	closeErr  error
	wg        sync.WaitGroup
	dlWG      sync.WaitGroup
}

type task struct {
	event  model.Event
	result chan Result
}

// New starts the shard workers. sink may be nil, in which case failures are
// only logged.
func New(producer Producer, sink DeadLetterSink, opts Options, log *zap.SugaredLogger, m *metrics.Metrics) *Dispatcher {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if opts.BatchSize < 1 {
		opts.BatchSize = 1
	}
	if opts.Linger <= 0 {
		opts.Linger = 5 * time.Millisecond
	}
	if opts.PublishTimeout <= 0 {
		opts.PublishTimeout = 5 * time.Second
	}
	if opts.DeadLetterBuffer < 1 {
		opts.DeadLetterBuffer = 1024
	}

	d := &Dispatcher{
		producer: producer,
		sink:     sink,
		opts:     opts,
		log:      log,
		metrics:  m,
		now:      time.Now,
		shards:   make([]chan task, opts.Workers),
	}

	if sink != nil {
		d.deadLetters = make(chan model.DeadLetter, opts.DeadLetterBuffer)
		d.dlWG.Add(1)
		go d.storeDeadLetters()
	}

	for i := range d.shards {
		d.shards[i] = make(chan task, opts.QueueSize)
		d.wg.Add(1)
		go d.runShard(d.shards[i])
	}
	return d
}

// Dispatch queues event for publishing and returns immediately. The
// returned channel yields exactly one Result; callers may ignore it.
func (d *Dispatcher) Dispatch(event model.Event) <-chan Result {
	t := task{event: event, result: make(chan Result, 1)}

	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		d.failClosed(t)
		return t.result
	}

	select {
	case d.shards[d.shardFor(event)] <- t:
	default:
		d.fail(t, ErrQueueFull)
	}
	return t.result
}

// Publish writes events synchronously. Used for dead-letter replay.
func (d *Dispatcher) Publish(ctx context.Context, events ...model.Event) error {
	if len(events) == 0 {
		return nil
	}
	msgs := make([]kafka.Message, 0, len(events))
	for _, event := range events {
		msg, err := Encode(event)
		if err != nil {
			return err
		}
		msgs = append(msgs, msg)
	}
	if err := d.producer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("publish events: %w", err)
	}
	for _, event := range events {
		d.metrics.EventsDispatched.WithLabelValues(string(event.Kind()), metrics.OutcomePublished).Inc()
	}
	return nil
}

// Close stops accepting events, flushes everything queued and closes the
// producer. It is safe to call more than once.
func (d *Dispatcher) Close() error {
	d.closeOnce.Do(func() {
		d.mu.Lock()
		d.closed = true
		for _, shard := range d.shards {
			close(shard)
		}
		d.mu.Unlock()

		d.wg.Wait()
		if d.deadLetters != nil {
			close(d.deadLetters)
			d.dlWG.Wait()
		}
		d.closeErr = d.producer.Close()
	})
	return d.closeErr
}

// PartitionKey is the broker ordering key of event.
func PartitionKey(event model.Event) []byte {
	return []byte(event.Header().UserID)
}

// Encode serializes event into a broker message keyed by user.
func Encode(event model.Event) (kafka.Message, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("serialize event: %w", err)
	}
	h := event.Header()
	return kafka.Message{
		Key:   PartitionKey(event),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.Kind())},
			{Key: "event_id", Value: []byte(h.EventID)},
		},
	}, nil
}

func (d *Dispatcher) shardFor(event model.Event) int {
	return int(xxhash.Sum64String(event.Header().UserID) % uint64(len(d.shards)))
}

func (d *Dispatcher) publishBatch(batch []task) {
	msgs := make([]kafka.Message, 0, len(batch))
	pending := make([]task, 0, len(batch))
	for _, t := range batch {
		msg, err := Encode(t.event)
		if err != nil {
			d.fail(t, err)
			continue
		}
		msgs = append(msgs, msg)
		pending = append(pending, t)
	}
	if len(msgs) == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), d.opts.PublishTimeout)
	defer cancel()

	start := d.now()
	err := d.producer.WriteMessages(ctx, msgs...)
	d.metrics.PublishDuration.Observe(d.now().Sub(start).Seconds())
	d.metrics.PublishBatchSize.Observe(float64(len(msgs)))

	if err == nil {
		for _, t := range pending {
			d.succeed(t)
		}
		return
	}

	var writeErrs kafka.WriteErrors
	if errors.As(err, &writeErrs) && len(writeErrs) == len(pending) {
		for i, t := range pending {
			if writeErrs[i] == nil {
				d.succeed(t)
			} else {
				d.fail(t, writeErrs[i])
			}
		}
		return
	}

	for _, t := range pending {
		d.fail(t, err)
	}
}

func (d *Dispatcher) succeed(t task) {
	d.metrics.EventsDispatched.WithLabelValues(string(t.event.Kind()), metrics.OutcomePublished).Inc()
	d.complete(t, nil)
}

func (d *Dispatcher) fail(t task, err error) {
	derr := d.recordFailure(t.event, err)
	if d.deadLetters != nil {
		d.enqueueDeadLetter(newDeadLetter(t.event, derr, d.now()))
	}
	d.complete(t, derr)
}

// failClosed handles an event dispatched after Close. The dead-letter
// writer has exited by then, so the record is saved inline.
func (d *Dispatcher) failClosed(t task) {
	derr := d.recordFailure(t.event, ErrDispatcherClosed)
	if d.sink != nil {
		d.saveDeadLetter(newDeadLetter(t.event, derr, d.now()))
	}
	d.complete(t, derr)
}

func (d *Dispatcher) recordFailure(event model.Event, err error) *DispatchError {
	h := event.Header()
	d.log.Errorw("event dispatch failed",
		"event_id", h.EventID,
		"user_id", h.UserID,
		"event_type", event.Kind(),
		"error", err,
	)
	d.metrics.EventsDispatched.WithLabelValues(string(event.Kind()), metrics.OutcomeFailed).Inc()
	return &DispatchError{EventID: h.EventID, Err: err}
}

func (d *Dispatcher) complete(t task, err error) {
	res := Result{EventID: t.event.Header().EventID}
	if err != nil {
		res.Err = err
	}
	t.result <- res
	close(t.result)
}

func newDeadLetter(event model.Event, cause error, now time.Time) model.DeadLetter {
	payload, err := json.Marshal(event)
	if err != nil {
		payload = []byte("null")
	}
	h := event.Header()
	return model.DeadLetter{
		ID:        uuid.NewString(),
		EventID:   h.EventID,
		UserID:    h.UserID,
		EventType: event.Kind(),
		Payload:   payload,
		Reason:    cause.Error(),
		FailedAt:  now.UTC(),
	}
}

func (d *Dispatcher) enqueueDeadLetter(dl model.DeadLetter) {
	select {
	case d.deadLetters <- dl:
	default:
		d.metrics.DeadLetters.WithLabelValues("dropped").Inc()
		d.log.Errorw("dead-letter buffer full, event lost", "event_id", dl.EventID, "user_id", dl.UserID)
	}
}

func (d *Dispatcher) saveDeadLetter(dl model.DeadLetter) {
	ctx, cancel := context.WithTimeout(context.Background(), d.opts.PublishTimeout)
	err := d.sink.Save(ctx, dl)
	cancel()

	if err != nil {
		d.metrics.DeadLetters.WithLabelValues("failed").Inc()
		d.log.Errorw("store dead letter failed", "event_id", dl.EventID, "error", err)
		return
	}
	d.metrics.DeadLetters.WithLabelValues("stored").Inc()
	d.log.Warnw("event dead-lettered", "event_id", dl.EventID, "reason", dl.Reason)
}

func (d *Dispatcher) storeDeadLetters() {
	defer d.dlWG.Done()

	for dl := range d.deadLetters {
		d.saveDeadLetter(dl)
	}
}
