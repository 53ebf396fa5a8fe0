package mockproducer

import (
	"context"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/mock"
)

type Producer struct {
	mock.Mock
}

func (m *Producer) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	args := m.Called(ctx, msgs)
	return args.Error(0)
}

func (m *Producer) Close() error {
	return m.Called().Error(0)
}
