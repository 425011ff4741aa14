package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config is centralized process configuration.
// Keep infra values here and pass typed config into builders.
type Config struct {
	ServiceName  string
	PostgresDSN  string
	KafkaBrokers []string

	ConsumerGroup string
	ClearClasses  []string

	AgingInterval    time.Duration
	AgingMaxSeverity int
	AgingBatchSize   int
	ArchiveAge       time.Duration
	ArchiveBatchSize int
	IndexBatchSize   int
	PollInterval     time.Duration

	MaxDetailsBytes       int
	MaxNotesBytes         int
	ProtectedDetailPrefix string
}

func Load() (Config, error) {
	service := os.Getenv("SERVICE_NAME")
	if service == "" {
		service = "summary-engine"
	}

	var brokers []string
	for _, value := range strings.Split(os.Getenv("KAFKA_BROKERS"), ",") {
		value = strings.TrimSpace(value)
		if value != "" {
			brokers = append(brokers, value)
		}
	}
	if len(brokers) == 0 {
		brokers = []string{"localhost:9092"}
	}

	var clearClasses []string
	for _, value := range strings.Split(os.Getenv("CLEAR_EVENT_CLASSES"), ",") {
		value = strings.TrimSpace(value)
		if value != "" {
			clearClasses = append(clearClasses, value)
		}
	}

	return Config{
		ServiceName:  service,
		PostgresDSN:  os.Getenv("POSTGRES_DSN"),
		KafkaBrokers: brokers,

		ConsumerGroup: os.Getenv("CONSUMER_GROUP"),
		ClearClasses:  clearClasses,

		AgingInterval:    envDuration("EVENT_AGING_INTERVAL", 4*time.Hour),
		AgingMaxSeverity: envInt("EVENT_AGING_MAX_SEVERITY", 3),
		AgingBatchSize:   envInt("EVENT_AGING_BATCH_SIZE", 100),
		ArchiveAge:       envDuration("EVENT_ARCHIVE_AGE", 72*time.Hour),
		ArchiveBatchSize: envInt("EVENT_ARCHIVE_BATCH_SIZE", 100),
		IndexBatchSize:   envInt("INDEX_BATCH_SIZE", 100),
		PollInterval:     envDuration("WORKER_POLL_INTERVAL", 2*time.Second),

		MaxDetailsBytes:       envInt("MAX_DETAILS_BYTES", 32768),
		MaxNotesBytes:         envInt("MAX_NOTES_BYTES", 32768),
		ProtectedDetailPrefix: envString("PROTECTED_DETAIL_PREFIX", "zenoss."),
	}, nil
}

func envString(name, fallback string) string {
	value := strings.TrimSpace(os.Getenv(name))
	if value == "" {
		return fallback
	}
	return value
}

func envInt(name string, fallback int) int {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}

func envDuration(name string, fallback time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return fallback
	}
	value, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}
	return value
}
