package service

import (
	"context"
	"errors"

	"interaction-gateway/internal/dispatcher"
	"interaction-gateway/internal/metrics"
	"interaction-gateway/internal/model"
	"interaction-gateway/internal/schema"
)

// Dispatcher queues validated events for publishing.
type Dispatcher interface {
	Dispatch(event model.Event) <-chan dispatcher.Result
}

type EventService interface {
	BuildEvent(kind string, raw map[string]any) (model.Event, error)
	ProcessEvent(ctx context.Context, event model.Event) model.EventAccepted
	ProcessBatch(ctx context.Context, items []any) model.BatchResult
}

// eventService wires validation and dispatch for incoming interactions.
type eventService struct {
	factory    *schema.Factory
	dispatcher Dispatcher
	metrics    *metrics.Metrics
}

// NewEventService constructs an eventService.
func NewEventService(factory *schema.Factory, d Dispatcher, m *metrics.Metrics) EventService {
	return &eventService{
		factory:    factory,
		dispatcher: d,
		metrics:    m,
	}
}

// BuildEvent validates raw as an event of the kind named in the request path.
func (s *eventService) BuildEvent(kind string, raw map[string]any) (model.Event, error) {
	event, err := s.factory.Build(model.Kind(kind), raw)
	if err != nil {
		s.metrics.EventsReceived.WithLabelValues(kindLabel(kind), metrics.OutcomeRejected).Inc()
		return nil, err
	}
	return event, nil
}

// ProcessEvent hands a validated event to the dispatcher without waiting
// for the broker.
func (s *eventService) ProcessEvent(ctx context.Context, event model.Event) model.EventAccepted {
	s.dispatcher.Dispatch(event)
	s.metrics.EventsReceived.WithLabelValues(string(event.Kind()), metrics.OutcomeAccepted).Inc()
	return model.EventAccepted{Status: model.StatusAccepted, EventID: event.Header().EventID}
}

// ProcessBatch validates every item independently and dispatches the valid
// ones in input order. One bad item never rejects the others.
func (s *eventService) ProcessBatch(ctx context.Context, items []any) model.BatchResult {
	valid := make([]model.Event, 0, len(items))
	var invalid []model.InvalidEvent

	for i, item := range items {
		raw, ok := item.(map[string]any)
		if !ok {
			s.metrics.EventsReceived.WithLabelValues(kindLabel(""), metrics.OutcomeRejected).Inc()
			invalid = append(invalid, model.InvalidEvent{
				Index:  i,
				Event:  item,
				Error:  "event must be a JSON object",
				Fields: []model.FieldError{{Field: "event", Reason: schema.ReasonWrongType}},
			})
			continue
		}

		event, err := s.factory.BuildFromPayload(raw)
		if err != nil {
			s.metrics.EventsReceived.WithLabelValues(kindLabel(declaredKind(raw)), metrics.OutcomeRejected).Inc()
			invalid = append(invalid, invalidEvent(i, raw, err))
			continue
		}
		valid = append(valid, event)
	}

	for _, event := range valid {
		s.ProcessEvent(ctx, event)
	}

	return model.BatchResult{
		Status:         model.StatusAccepted,
		ProcessedCount: len(valid),
		InvalidCount:   len(invalid),
		InvalidEvents:  invalid,
	}
}

func invalidEvent(index int, raw map[string]any, err error) model.InvalidEvent {
	out := model.InvalidEvent{Index: index, Event: raw, Error: err.Error()}

	var verr *schema.ValidationError
	var kerr *schema.UnknownEventKindError
	switch {
	case errors.As(err, &verr):
		out.Fields = verr.Fields
	case errors.As(err, &kerr):
		out.Fields = []model.FieldError{{Field: "event_type", Reason: schema.ReasonInvalidValue}}
	}
	return out
}

func declaredKind(raw map[string]any) string {
	if s, ok := raw["event_type"].(string); ok {
		return s
	}
	s, _ := raw["event_kind"].(string)
	return s
}

// kindLabel bounds metric cardinality to the known kinds.
func kindLabel(kind string) string {
	if k, ok := model.ParseKind(kind); ok {
		return string(k)
	}
	return "unknown"
}
