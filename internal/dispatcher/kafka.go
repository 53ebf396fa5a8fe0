package dispatcher

import (
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// WriterConfig describes the connection to the interaction topic.
type WriterConfig struct {
	Brokers      []string
	Topic        string
	Compression  string
	Linger       time.Duration
	BatchSize    int
	WriteTimeout time.Duration
	MaxAttempts  int
}

// NewWriter builds the process-wide writer: all-replica acknowledgement,
// compressed payloads, bounded linger and user-keyed hash partitioning.
func NewWriter(cfg WriterConfig, log *zap.SugaredLogger) (*kafka.Writer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("kafka writer requires at least one broker")
	}
	if cfg.Topic == "" {
		return nil, fmt.Errorf("kafka writer requires a topic")
	}
	codec, err := ParseCompression(cfg.Compression)
	if err != nil {
		return nil, err
	}

	w := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		Compression:  codec,
		BatchTimeout: cfg.Linger,
		BatchSize:    cfg.BatchSize,
		WriteTimeout: cfg.WriteTimeout,
		MaxAttempts:  cfg.MaxAttempts,
	}
	if log != nil {
		w.ErrorLogger = kafka.LoggerFunc(log.Errorf)
	}
	return w, nil
}

// ParseCompression maps a codec name to a kafka compression codec.
func ParseCompression(name string) (kafka.Compression, error) {
	switch name {
	case "", "gzip":
		return kafka.Gzip, nil
	case "snappy":
		return kafka.Snappy, nil
	case "lz4":
		return kafka.Lz4, nil
	case "zstd":
		return kafka.Zstd, nil
	default:
		return 0, fmt.Errorf("unsupported compression %q", name)
	}
}
