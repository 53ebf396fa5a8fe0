package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration loaded from environment variables.
type Config struct {
	HTTPPort        string
	AppVersion      string
	AppMode         string
	FiberPrefork    bool
	LogLevel        string
	LogFormat       string
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration
	BatchMaxEvents  int

	KafkaBrokers        []string
	KafkaTopic          string
	KafkaCompression    string
	KafkaLinger         time.Duration
	KafkaBatchSize      int
	KafkaPublishTimeout time.Duration
	KafkaMaxAttempts    int
	DispatchWorkers     int
	DispatchQueueSize   int

	// DeadLetterDatabaseURL enables the PostgreSQL dead-letter store when set.
	DeadLetterDatabaseURL string
	DBMaxConns            int32
	DBMinConns            int32
	DBMaxConnLifetime     time.Duration
	DBMaxConnIdleTime     time.Duration
	ReplayBatchSize       int

	ClickHouseAddr     []string
	ClickHouseDatabase string
	ClickHouseUser     string
	ClickHousePassword string
	ConsumerGroup      string
	ConsumerBatchSize  int
	ConsumerMaxWait    time.Duration
}

// Load reads configuration from environment variables with sane defaults.
func Load() (*Config, error) {
	cfg := &Config{
		HTTPPort:        getEnv("HTTP_PORT", ":8000"),
		AppVersion:      getEnv("APP_VERSION", "1.0.0"),
		AppMode:         strings.ToLower(getEnv("APP_MODE", "dev")),
		FiberPrefork:    parseBoolEnv("FIBER_PREFORK", false),
		LogLevel:        strings.ToLower(getEnv("LOG_LEVEL", "info")),
		LogFormat:       strings.ToLower(getEnv("LOG_FORMAT", "json")),
		RequestTimeout:  parseDurationEnv("REQUEST_TIMEOUT", 10*time.Second),
		ShutdownTimeout: parseDurationEnv("SHUTDOWN_TIMEOUT", 15*time.Second),
		BatchMaxEvents:  parseIntEnv("BATCH_MAX_EVENTS", 1000),

		KafkaTopic:          getEnv("KAFKA_TOPIC", "user-interactions"),
		KafkaCompression:    strings.ToLower(getEnv("KAFKA_COMPRESSION", "gzip")),
		KafkaLinger:         parseDurationEnv("KAFKA_LINGER", 5*time.Millisecond),
		KafkaBatchSize:      parseIntEnv("KAFKA_BATCH_SIZE", 100),
		KafkaPublishTimeout: parseDurationEnv("KAFKA_PUBLISH_TIMEOUT", 5*time.Second),
		KafkaMaxAttempts:    parseIntEnv("KAFKA_MAX_ATTEMPTS", 3),
		DispatchWorkers:     parseIntEnv("DISPATCH_WORKERS", 8),
		DispatchQueueSize:   parseIntEnv("DISPATCH_QUEUE_SIZE", 1024),

		DeadLetterDatabaseURL: os.Getenv("DEAD_LETTER_DATABASE_URL"),
		DBMaxConns:            parseInt32Env("DB_MAX_CONNS", 10),
		DBMinConns:            parseInt32Env("DB_MIN_CONNS", 1),
		DBMaxConnLifetime:     parseDurationEnv("DB_MAX_CONN_LIFETIME", 30*time.Minute),
		DBMaxConnIdleTime:     parseDurationEnv("DB_MAX_CONN_IDLE_TIME", 5*time.Minute),
		ReplayBatchSize:       parseIntEnv("REPLAY_BATCH_SIZE", 500),

		ClickHouseAddr:     parseListEnv("CLICKHOUSE_ADDR"),
		ClickHouseDatabase: getEnv("CLICKHOUSE_DATABASE", "default"),
		ClickHouseUser:     getEnv("CLICKHOUSE_USER", "default"),
		ClickHousePassword: os.Getenv("CLICKHOUSE_PASSWORD"),
		ConsumerGroup:      getEnv("CONSUMER_GROUP", "event-materializer"),
		ConsumerBatchSize:  parseIntEnv("CONSUMER_BATCH_SIZE", 500),
		ConsumerMaxWait:    parseDurationEnv("CONSUMER_MAX_WAIT", time.Second),
	}

	if len(cfg.ClickHouseAddr) == 0 {
		cfg.ClickHouseAddr = []string{"localhost:9000"}
	}

	cfg.KafkaBrokers = parseListEnv("KAFKA_BROKERS")
	if len(cfg.KafkaBrokers) == 0 {
		return nil, fmt.Errorf("KAFKA_BROKERS is required")
	}
	if cfg.DispatchWorkers < 1 {
		return nil, fmt.Errorf("DISPATCH_WORKERS must be positive")
	}
	if cfg.DispatchQueueSize < 1 {
		return nil, fmt.Errorf("DISPATCH_QUEUE_SIZE must be positive")
	}
	if cfg.KafkaBatchSize < 1 {
		return nil, fmt.Errorf("KAFKA_BATCH_SIZE must be positive")
	}
	if cfg.KafkaLinger <= 0 {
		return nil, fmt.Errorf("KAFKA_LINGER must be positive")
	}
	return cfg, nil
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func parseListEnv(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func parseBoolEnv(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func parseInt32Env(key string, fallback int32) int32 {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return int32(parsed)
}

func parseIntEnv(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func parseDurationEnv(key string, fallback time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(val)
	if err != nil {
		return fallback
	}
	return parsed
}
