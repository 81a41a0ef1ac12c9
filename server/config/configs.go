package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"log"
)

type Config struct {
	ClickHouseDSN string
	ServerPort    string
	DebugMode     string

	// Live feed settings. When KafkaBroker is empty the API serves
	// archive data only.
	KafkaBroker  string
	KafkaTopic   string
	KafkaGroupID string

	// Engine knobs for the live view.
	RecentFillsDepth int
	PriceWindow      int
}

func Load() *Config {
	err := godotenv.Load()
	if err != nil {
		log.Println("No .env file found, using environment variables")
	}

	dsn := fmt.Sprintf("clickhouse://%s:%s@%s:%s/%s?dial_timeout=10s&read_timeout=20s",
		getEnv("CLICKHOUSE_USER", "default"),
		getEnv("CLICKHOUSE_PASSWORD", ""),
		getEnv("CLICKHOUSE_HOST", "localhost"),
		getEnv("CLICKHOUSE_TCP_PORT", "9000"),
		getEnv("CLICKHOUSE_DB", "default"),
	)

	return &Config{
		ClickHouseDSN:    dsn,
		ServerPort:       getEnv("SERVER_PORT", "8080"),
		DebugMode:        getEnv("DEBUGMODE", "True"),
		KafkaBroker:      getEnv("KAFKA_BROKER", ""),
		KafkaTopic:       getEnv("KAFKA_FILL_TOPIC", "radar_fills"),
		KafkaGroupID:     getEnv("KAFKA_API_GROUP_ID", "radar-api"),
		RecentFillsDepth: getEnvInt("ENGINE_RECENT_FILLS_DEPTH", 50),
		PriceWindow:      getEnvInt("ENGINE_PRICE_WINDOW", 5),
	}
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	value, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue
	}
	var parsed int
	if _, err := fmt.Sscanf(value, "%d", &parsed); err != nil {
		return defaultValue
	}
	return parsed
}
