package mockdeadletter

import (
	"context"

	"github.com/stretchr/testify/mock"

	"interaction-gateway/internal/model"
)

// Store doubles both the dispatcher's sink and the replayer's store.
type Store struct {
	mock.Mock
}

func (m *Store) Save(ctx context.Context, dl model.DeadLetter) error {
	return m.Called(ctx, dl).Error(0)
}

func (m *Store) Pending(ctx context.Context, after model.DeadLetterCursor, limit int) ([]model.DeadLetter, error) {
	args := m.Called(ctx, after, limit)
	if v := args.Get(0); v != nil {
		return v.([]model.DeadLetter), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *Store) MarkReplayed(ctx context.Context, ids []string) error {
	return m.Called(ctx, ids).Error(0)
}

type Publisher struct {
	mock.Mock
}

func (m *Publisher) Publish(ctx context.Context, events ...model.Event) error {
	return m.Called(ctx, events).Error(0)
}
