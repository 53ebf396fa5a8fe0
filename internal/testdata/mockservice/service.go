package mockservice

import (
	"context"

	"interaction-gateway/internal/model"

	"github.com/stretchr/testify/mock"
)

type Service struct {
	mock.Mock
}

func (m *Service) BuildEvent(kind string, raw map[string]any) (model.Event, error) {
	args := m.Called(kind, raw)
	event, _ := args.Get(0).(model.Event)
	return event, args.Error(1)
}

func (m *Service) ProcessEvent(ctx context.Context, event model.Event) model.EventAccepted {
	args := m.Called(ctx, event)
	return args.Get(0).(model.EventAccepted)
}

func (m *Service) ProcessBatch(ctx context.Context, items []any) model.BatchResult {
	args := m.Called(ctx, items)
	return args.Get(0).(model.BatchResult)
}
