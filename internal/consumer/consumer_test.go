package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"

	"interaction-gateway/internal/model"
	"interaction-gateway/internal/testdata/mockreader"
	"interaction-gateway/internal/testdata/mockrepository"
)

type ConsumerTestSuite struct {
	suite.Suite
	reader *mockreader.Reader
	repo   *mockrepository.Repository
}

func TestConsumerSuite(t *testing.T) {
	suite.Run(t, new(ConsumerTestSuite))
}

func (s *ConsumerTestSuite) SetupTest() {
	s.reader = &mockreader.Reader{}
	s.repo = &mockrepository.Repository{}
}

func (s *ConsumerTestSuite) TearDownTest() {
	s.reader.AssertExpectations(s.T())
	s.repo.AssertExpectations(s.T())
}

func (s *ConsumerTestSuite) message(offset int64, event model.Event) kafka.Message {
	value, err := json.Marshal(event)
	s.Require().NoError(err)
	return kafka.Message{Offset: offset, Key: []byte(event.Header().UserID), Value: value}
}

func like(id string) *model.LikeEvent {
	return &model.LikeEvent{
		Envelope: model.Envelope{EventID: id, UserID: "u1", VideoID: "v1", Timestamp: 1, EventType: model.KindLike},
		IsLiked:  true,
	}
}

func (s *ConsumerTestSuite) TestRun_StoresThenCommits() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	first := s.message(1, like("e1"))
	second := s.message(2, like("e2"))
	broken := kafka.Message{Offset: 3, Value: []byte("garbage")}

	s.reader.On("FetchMessage", mock.Anything).Return(first, nil).Once()
	s.reader.On("FetchMessage", mock.Anything).Return(second, nil).Once()
	s.reader.On("FetchMessage", mock.Anything).Return(broken, nil).Once()
	s.reader.On("FetchMessage", mock.Anything).Return(kafka.Message{}, context.Canceled).Maybe()

	var stored bool
	s.repo.On("CreateBatch", mock.Anything, mock.MatchedBy(func(events []model.Event) bool {
		return len(events) == 2 &&
			events[0].Header().EventID == "e1" &&
			events[1].Header().EventID == "e2"
	})).Run(func(mock.Arguments) { stored = true }).Return(nil).Once()

	s.reader.On("CommitMessages", mock.Anything, []kafka.Message{first, second, broken}).
		Run(func(mock.Arguments) {
			s.True(stored, "offsets committed before the batch was stored")
			cancel()
		}).Return(nil).Once()

	c := New(s.reader, s.repo, 3, time.Second, zap.NewNop().Sugar())
	s.NoError(c.Run(ctx))
}

func (s *ConsumerTestSuite) TestRun_PartialBatchAfterMaxWait() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	only := s.message(1, like("e1"))
	s.reader.On("FetchMessage", mock.Anything).Return(only, nil).Once()
	s.reader.On("FetchMessage", mock.Anything).Return(kafka.Message{}, context.DeadlineExceeded)

	s.repo.On("CreateBatch", mock.Anything, mock.Anything).Return(nil).Once()
	s.reader.On("CommitMessages", mock.Anything, []kafka.Message{only}).
		Run(func(mock.Arguments) { cancel() }).Return(nil).Once()

	c := New(s.reader, s.repo, 10, 10*time.Millisecond, zap.NewNop().Sugar())
	s.NoError(c.Run(ctx))
}

func (s *ConsumerTestSuite) TestRun_StoreErrorSkipsCommit() {
	storeErr := errors.New("clickhouse down")

	s.reader.On("FetchMessage", mock.Anything).Return(s.message(1, like("e1")), nil).Once()
	s.repo.On("CreateBatch", mock.Anything, mock.Anything).Return(storeErr).Once()

	c := New(s.reader, s.repo, 1, time.Second, zap.NewNop().Sugar())
	err := c.Run(context.Background())

	s.ErrorIs(err, storeErr)
	s.reader.AssertNotCalled(s.T(), "CommitMessages", mock.Anything, mock.Anything)
}

func (s *ConsumerTestSuite) TestRun_FetchError() {
	fetchErr := errors.New("group coordinator unavailable")
	s.reader.On("FetchMessage", mock.Anything).Return(kafka.Message{}, fetchErr).Once()

	c := New(s.reader, s.repo, 5, time.Second, zap.NewNop().Sugar())
	err := c.Run(context.Background())

	s.ErrorIs(err, fetchErr)
}

func (s *ConsumerTestSuite) TestRun_StopsOnCancel() {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s.reader.On("FetchMessage", mock.Anything).Return(kafka.Message{}, context.Canceled).Maybe()

	c := New(s.reader, s.repo, 5, time.Second, zap.NewNop().Sugar())
	s.NoError(c.Run(ctx))
}

func TestNewReader_InvalidConfig(t *testing.T) {
	_, err := NewReader(ReaderConfig{Topic: "t", GroupID: "g"}, nil)
	if err == nil {
		t.Fatal("expected error without brokers")
	}
	_, err = NewReader(ReaderConfig{Brokers: []string{"b:9092"}, Topic: "t"}, nil)
	if err == nil {
		t.Fatal("expected error without group id")
	}
}
