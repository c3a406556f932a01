package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	ToolName = "phenoxtract"
	Version  = "0.4.0"
)

// DefaultCreator is recorded as created_by/submitted_by when a manifest
// leaves them empty.
func DefaultCreator() string {
	return ToolName + "-" + Version
}

type Config struct {
	// Server
	ServerPort     string
	ServerHost     string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	MaxRequestBody int64

	// Database
	PostgresDSN      string
	PostgresHost     string
	PostgresPort     string
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	// Redis
	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int

	// Kafka
	KafkaBrokers           []string
	KafkaGroupID           string
	ExtractionRequestTopic string
	ExtractionEventsTopic  string
	PhenopacketTopic       string

	// Ontology lookup
	OntologyCacheEnabled bool
	OntologyCacheTTL     time.Duration
	VocabularyToken      string
	VocabularyUser       string
	VocabularyPassword   string
	VocabularyTokenURL   string
	VocabularyTimeout    time.Duration
	VocabularyRetries    int

	// Extraction
	ManifestRoot string
	RunStatusTTL time.Duration
}

func Load() *Config {
	return &Config{
		ServerPort:     getEnv("SERVER_PORT", "8085"),
		ServerHost:     getEnv("SERVER_HOST", "0.0.0.0"),
		ReadTimeout:    getDuration("READ_TIMEOUT", 30*time.Second),
		WriteTimeout:   getDuration("WRITE_TIMEOUT", 30*time.Second),
		MaxRequestBody: int64(getIntEnv("MAX_REQUEST_BODY_BYTES", 1024*1024)),

		PostgresDSN:      getEnv("POSTGRES_DSN", ""),
		PostgresHost:     getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:     getEnv("POSTGRES_PORT", "5432"),
		PostgresUser:     getEnv("POSTGRES_USER", "phenoxtract"),
		PostgresPassword: getEnv("POSTGRES_PASSWORD", "phenoxtract"),
		PostgresDB:       getEnv("POSTGRES_DB", "phenoxtract"),
		PostgresSSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),

		RedisHost:     getEnv("REDIS_HOST", "localhost"),
		RedisPort:     getEnv("REDIS_PORT", "6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getIntEnv("REDIS_DB", 0),

		KafkaBrokers:           getStringSliceEnv("KAFKA_BROKERS", []string{"localhost:9092"}),
		KafkaGroupID:           getEnv("KAFKA_GROUP_ID", "phenoxtract"),
		ExtractionRequestTopic: getEnv("EXTRACTION_REQUEST_TOPIC", "phenoxtract.requests"),
		ExtractionEventsTopic:  getEnv("EXTRACTION_EVENTS_TOPIC", "phenoxtract.runs"),
		PhenopacketTopic:       getEnv("PHENOPACKET_TOPIC", "phenoxtract.phenopackets"),

		OntologyCacheEnabled: getBoolEnv("ONTOLOGY_CACHE_ENABLED", false),
		OntologyCacheTTL:     getDuration("ONTOLOGY_CACHE_TTL", 24*time.Hour),
		VocabularyToken:      getEnv("VOCABULARY_TOKEN", ""),
		VocabularyUser:       getEnv("VOCABULARY_USER", ""),
		VocabularyPassword:   getEnv("VOCABULARY_PASSWORD", ""),
		VocabularyTokenURL:   getEnv("VOCABULARY_TOKEN_URL", ""),
		VocabularyTimeout:    getDuration("VOCABULARY_TIMEOUT", 10*time.Second),
		VocabularyRetries:    getIntEnv("VOCABULARY_RETRIES", 3),

		ManifestRoot: getEnv("PHENOXTRACT_MANIFEST_ROOT", "."),
		RunStatusTTL: getDuration("RUN_STATUS_TTL", 7*24*time.Hour),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

// getStringSliceEnv splits a comma separated value, e.g. KAFKA_BROKERS=a:9092,b:9092.
func getStringSliceEnv(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
