package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port        string
	Environment string
	ServiceName string

	// SQLite Configuration
	SQLitePath string

	// JWT Configuration
	JWTSecret string

	// Kafka Configuration
	KafkaBrokers     []string
	KafkaTopicOrders string
	KafkaTopicStock  string
	KafkaTopicAlerts string
	KafkaGroupID     string
	KafkaClientID    string
	KafkaAcks        string
	KafkaRetries     int
	DeadLetterQueue  bool
	DLQTopic         string
	MaxRetries       int
	RetryDelayMs     int

	// Redis Configuration
	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int
	CacheTTL      time.Duration

	// Saga Configuration
	ReservationTTL      time.Duration
	ConflictRetries     int
	ExpirySweepInterval time.Duration
}

func Load() *Config {
	// Load .env file if it exists
	_ = godotenv.Load()

	// Parse Kafka brokers (comma-separated)
	kafkaBrokersStr := getEnv("KAFKA_BROKERS", "localhost:9093")
	kafkaBrokers := strings.Split(kafkaBrokersStr, ",")
	for i, broker := range kafkaBrokers {
		kafkaBrokers[i] = strings.TrimSpace(broker)
	}

	return &Config{
		Port:        getEnv("PORT", "8080"),
		Environment: getEnv("ENVIRONMENT", "development"),
		ServiceName: getEnv("SERVICE_NAME", "order-service"),

		SQLitePath: getEnv("SQLITE_PATH", "./data/stocksaga.db"),

		JWTSecret: getEnv("JWT_SECRET", "your-secret-key-change-in-production-min-32-chars"),

		KafkaBrokers:     kafkaBrokers,
		KafkaTopicOrders: getEnv("KAFKA_TOPIC_ORDERS", "orders.events"),
		KafkaTopicStock:  getEnv("KAFKA_TOPIC_STOCK", "inventory.stock"),
		KafkaTopicAlerts: getEnv("KAFKA_TOPIC_ALERTS", "inventory.alerts"),
		KafkaGroupID:     getEnv("KAFKA_GROUP_ID", "inventory-saga"),
		KafkaClientID:    getEnv("KAFKA_CLIENT_ID", "stocksaga"),
		KafkaAcks:        getEnv("KAFKA_ACKS", "all"),
		KafkaRetries:     getEnvAsInt("KAFKA_RETRIES", 3),
		DeadLetterQueue:  getEnvAsBool("KAFKA_DLQ_ENABLED", false),
		DLQTopic:         getEnv("KAFKA_DLQ_TOPIC", "inventory.dlq"),
		MaxRetries:       getEnvAsInt("CONSUMER_MAX_RETRIES", 3),
		RetryDelayMs:     getEnvAsInt("CONSUMER_RETRY_DELAY_MS", 200),

		RedisHost:     getEnv("REDIS_HOST", "localhost"),
		RedisPort:     getEnv("REDIS_PORT", "6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvAsInt("REDIS_DB", 0),
		CacheTTL:      getEnvAsDuration("CACHE_TTL", 30*time.Second),

		ReservationTTL:      getEnvAsDuration("RESERVATION_TTL", 30*time.Minute),
		ConflictRetries:     getEnvAsInt("CONFLICT_RETRIES", 3),
		ExpirySweepInterval: getEnvAsDuration("EXPIRY_SWEEP_INTERVAL", 1*time.Minute),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	result, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return result
}

func getEnvAsBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	result, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}
	return result
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	result, err := time.ParseDuration(value)
	if err != nil {
		return defaultValue
	}
	return result
}
