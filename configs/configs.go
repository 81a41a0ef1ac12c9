// Package configs provides application configuration loaded from environment variables.
// All configuration is externalized via environment variables for 12-factor app compliance.
package configs

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// AppConfig holds all application configuration.
// Load it once at startup using AppLoad().
type AppConfig struct {
	// DBDSN is the ClickHouse connection string.
	DBDSN string

	// Ingester contains settings for the Kafka-to-ClickHouse ingester.
	Ingester IngesterConfig

	// KafkaFill contains Kafka connection settings for normalized fills.
	KafkaFill KafkaConfig

	// KafkaIntent contains Kafka connection settings for copy-trade intents.
	KafkaIntent KafkaConfig

	// Feed contains Bitquery API settings.
	Feed FeedConfig

	// Engine contains the in-memory pipeline settings.
	Engine EngineConfig
}

// KafkaConfig holds Kafka connection settings for one topic.
type KafkaConfig struct {
	// Broker is the Kafka broker address (e.g., "localhost:9092").
	Broker string

	// Topic is the Kafka topic name.
	Topic string

	// GroupID is the consumer group ID for readers of the topic.
	GroupID string
}

// IngesterConfig holds settings for batch processing.
type IngesterConfig struct {
	// BatchSize is the maximum number of fills to accumulate before flushing.
	BatchSize int

	// BatchTimeoutSeconds is the maximum seconds to wait before flushing.
	BatchTimeoutSeconds int
}

// FeedConfig holds Bitquery connection settings.
type FeedConfig struct {
	// APIURL is the GraphQL endpoint.
	APIURL string

	// StreamURL is the websocket subscription endpoint.
	StreamURL string

	// Token is the OAuth bearer token.
	Token string

	// Network is the EVM network name (e.g., "matic").
	Network string

	// Dataset selects realtime or combined history.
	Dataset string

	// RequestsPerSecond caps the polling rate.
	RequestsPerSecond float64
}

// EngineConfig holds the in-memory pipeline settings.
type EngineConfig struct {
	// RecentFillsDepth is how many fills are retained per trader.
	RecentFillsDepth int

	// PriceWindow is how many fills the indicative price averages over.
	PriceWindow int

	// OrderingToleranceSeconds is how far a fill may lag a trader-asset
	// pair's latest timestamp before being rejected.
	OrderingToleranceSeconds int

	// Watch is the list of wallet addresses to track (comma-separated
	// in env). Empty tracks the buyer of every fill.
	Watch []string
}

// getDatabaseDSN constructs the ClickHouse DSN from environment variables.
func getDatabaseDSN() string {
	dbUser := getEnv("CLICKHOUSE_USER", "user")
	dbPassword := getEnv("CLICKHOUSE_PASSWORD", "password")
	dbHost := getEnv("CLICKHOUSE_HOST", "localhost")
	dbPort := getEnv("CLICKHOUSE_TCP_PORT", "9000")
	dbName := getEnv("CLICKHOUSE_DB", "db")

	return fmt.Sprintf(
		"clickhouse://%s:%s@%s:%s/%s?dial_timeout=10s&read_timeout=20s",
		dbUser, dbPassword, dbHost, dbPort, dbName,
	)
}

// getEngineConfigs loads pipeline settings from environment.
func getEngineConfigs() EngineConfig {
	watchRaw := getEnv("ENGINE_WATCH_ADDRESSES", "")
	var watch []string
	if watchRaw != "" {
		for _, addr := range strings.Split(watchRaw, ",") {
			if trimmed := strings.TrimSpace(addr); trimmed != "" {
				watch = append(watch, strings.ToLower(trimmed))
			}
		}
	}

	return EngineConfig{
		RecentFillsDepth:         getEnvInt("ENGINE_RECENT_FILLS_DEPTH", 50),
		PriceWindow:              getEnvInt("ENGINE_PRICE_WINDOW", 5),
		OrderingToleranceSeconds: getEnvInt("ENGINE_ORDERING_TOLERANCE_SECONDS", 0),
		Watch:                    watch,
	}
}

// AppLoad loads all application configuration from environment variables.
// It attempts to load a .env file first (for local development).
// Call this once at application startup.
func AppLoad() *AppConfig {
	_ = godotenv.Load() // Ignore error - .env is optional

	return &AppConfig{
		KafkaFill: KafkaConfig{
			Broker:  getEnv("KAFKA_BROKER", "localhost:9092"),
			Topic:   getEnv("KAFKA_FILL_TOPIC", "radar_fills"),
			GroupID: getEnv("KAFKA_FILL_GROUP_ID", "radar-fill-consumer"),
		},
		KafkaIntent: KafkaConfig{
			Broker:  getEnv("KAFKA_BROKER", "localhost:9092"),
			Topic:   getEnv("KAFKA_INTENT_TOPIC", "radar_copy_intents"),
			GroupID: getEnv("KAFKA_INTENT_GROUP_ID", "radar-intent-consumer"),
		},
		DBDSN: getDatabaseDSN(),
		Ingester: IngesterConfig{
			BatchSize:           getEnvInt("BATCH_SIZE", 200),
			BatchTimeoutSeconds: getEnvInt("BATCH_TIMEOUT_SECONDS", 5),
		},
		Feed: FeedConfig{
			APIURL:            getEnv("BITQUERY_API_URL", "https://streaming.bitquery.io/graphql"),
			StreamURL:         getEnv("BITQUERY_STREAM_URL", "wss://streaming.bitquery.io/graphql"),
			Token:             getEnv("BITQUERY_OAUTH_TOKEN", ""),
			Network:           getEnv("BITQUERY_NETWORK", "matic"),
			Dataset:           getEnv("BITQUERY_DATASET", "realtime"),
			RequestsPerSecond: getEnvFloat("BITQUERY_REQUESTS_PER_SECOND", 2),
		},
		Engine: getEngineConfigs(),
	}
}

// getEnv returns the environment variable value or a default.
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

// getEnvInt returns the environment variable as int or a default.
func getEnvInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvFloat returns the environment variable as float64 or a default.
func getEnvFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}
