package mockrepository

import (
	"context"

	"interaction-gateway/internal/model"
	"interaction-gateway/internal/repository"

	"github.com/stretchr/testify/mock"
)

type Repository struct {
	mock.Mock
}

// Interface compliance check
var _ repository.EventRepository = &Repository{}

func (m *Repository) Create(ctx context.Context, event model.Event) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

func (m *Repository) CreateBatch(ctx context.Context, events []model.Event) error {
	args := m.Called(ctx, events)
	return args.Error(0)
}
