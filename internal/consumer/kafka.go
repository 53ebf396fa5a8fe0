package consumer

import (
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// ReaderConfig describes the consumer group subscription.
type ReaderConfig struct {
	Brokers []string
	Topic   string
	GroupID string
	MaxWait time.Duration
}

// NewReader builds a consumer-group reader with explicit commits.
func NewReader(cfg ReaderConfig, log *zap.SugaredLogger) (*kafka.Reader, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("kafka reader requires at least one broker")
	}
	if cfg.Topic == "" || cfg.GroupID == "" {
		return nil, fmt.Errorf("kafka reader requires a topic and group id")
	}

	rc := kafka.ReaderConfig{
		Brokers:  cfg.Brokers,
		Topic:    cfg.Topic,
		GroupID:  cfg.GroupID,
		MinBytes: 1,
		MaxBytes: 10e6,
		MaxWait:  cfg.MaxWait,
	}
	if log != nil {
		rc.ErrorLogger = kafka.LoggerFunc(log.Errorf)
	}
	return kafka.NewReader(rc), nil
}
