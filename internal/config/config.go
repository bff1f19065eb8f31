package config

import (
	"log"
	"os"
	"strconv"
	"time"
)

type ClaimServiceConfig struct {
	Port        string
	LogDir      string
	PostgresCfg PostgresConfig
	RabbitMQCfg RabbitMQConfig
	RedisCfg    RedisConfig
	MinioCfg    MinioConfig
	WorkflowCfg WorkflowConfig
	PortsCfg    PortsConfig
}

type MinioConfig struct {
	MinioURL       string
	MinioAccessKey string
	MinioSecretKey string
	MinioLocation  string
	MinioSecure    string
}

type PostgresConfig struct {
	DBname   string
	Username string
	Password string
	Host     string
	Port     string
}

type RabbitMQConfig struct {
	Username string
	Password string
	Host     string
	Port     string
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

// WorkflowConfig tunes the background adjudication and settlement tasks.
type WorkflowConfig struct {
	NumWorkers        int
	QueueSize         int
	MaxRetries        int
	RetryBackoff      time.Duration
	SettlementDelay   time.Duration
	SettlementLockTTL time.Duration
	SweepInterval     time.Duration
	StaleAfter        time.Duration
	ProcessingTimeout time.Duration
	SnowflakeNode     int64
	DefaultBankAcct   string
	DefaultIFSC       string

	// RequireWeatherData rejects claims with processing_error when no rainfall is available
	RequireWeatherData bool
}

// PortsConfig holds per-port timeouts and the simulated implementations' knobs.
type PortsConfig struct {
	VerificationTimeout time.Duration
	WeatherTimeout      time.Duration
	PaymentTimeout      time.Duration
	NotificationTimeout time.Duration
	WeatherServiceURL   string
	WeatherCacheTTL     time.Duration
	PaymentSuccessRate  float64
	PaymentLatency      time.Duration
	ReceiptURLExpiry    time.Duration
}

func New() *ClaimServiceConfig {
	return &ClaimServiceConfig{
		Port:   getEnvOrDefault("PORT", "8085"),
		LogDir: getEnvOrDefault("LOG_DIR", "/agrisa/log/claim_service"),
		PostgresCfg: PostgresConfig{
			DBname:   getEnvOrDefault("POSTGRES_DB", "claim_service"),
			Username: getEnvOrDefault("POSTGRES_USER", "postgres"),
			Password: getEnvOrDefault("POSTGRES_PASSWORD", "postgres"),
			Host:     getEnvOrDefault("POSTGRES_HOST", "localhost"),
			Port:     getEnvOrDefault("POSTGRES_PORT", "5432"),
		},
		RabbitMQCfg: RabbitMQConfig{
			Username: getEnvOrDefault("RABBITMQ_USER", "admin"),
			Password: getEnvOrDefault("RABBITMQ_PWD", "admin"),
			Host:     getEnvOrDefault("RABBITMQ_HOST", "localhost"),
			Port:     getEnvOrDefault("RABBITMQ_PORT", "5672"),
		},
		RedisCfg: RedisConfig{
			Host:     getEnvOrDefault("REDIS_HOST", "localhost"),
			Port:     getEnvOrDefault("REDIS_PORT", "6379"),
			Password: getEnvOrDefault("REDIS_PASSWORD", ""),
			DB:       getIntOrDefault("REDIS_DB", 0),
		},
		MinioCfg: MinioConfig{
			MinioURL:       getEnvOrDefault("MINIO_ENDPOINT", "http://localhost:9407"),
			MinioAccessKey: getEnvOrDefault("MINIO_ACCESS_KEY", "minio"),
			MinioSecretKey: getEnvOrDefault("MINIO_SECRET_KEY", "minio123"),
			MinioLocation:  getEnvOrDefault("MINIO_LOCATION", "us-east-1"),
			MinioSecure:    getEnvOrDefault("MINIO_SECURE", "false"),
		},
		WorkflowCfg: WorkflowConfig{
			NumWorkers:        getIntOrDefault("WORKFLOW_WORKERS", 8),
			QueueSize:         getIntOrDefault("WORKFLOW_QUEUE_SIZE", 256),
			MaxRetries:        getIntOrDefault("WORKFLOW_MAX_RETRIES", 3),
			RetryBackoff:      getDurationOrDefault("WORKFLOW_RETRY_BACKOFF", 5*time.Second),
			SettlementDelay:   getDurationOrDefault("SETTLEMENT_DELAY", 2*time.Second),
			SettlementLockTTL: getDurationOrDefault("SETTLEMENT_LOCK_TTL", 2*time.Minute),
			SweepInterval:     getDurationOrDefault("SWEEP_INTERVAL", time.Minute),
			StaleAfter:        getDurationOrDefault("STALE_AFTER", 5*time.Minute),
			ProcessingTimeout: getDurationOrDefault("PROCESSING_TIMEOUT", 10*time.Minute),
			SnowflakeNode:     int64(getIntOrDefault("SNOWFLAKE_NODE", 1)),
			DefaultBankAcct:   getEnvOrDefault("DEFAULT_BANK_ACCOUNT", "XXXXXX7890"),
			DefaultIFSC:       getEnvOrDefault("DEFAULT_IFSC", "SBIN0001234"),

			RequireWeatherData: getBoolOrDefault("REQUIRE_WEATHER_DATA", false),
		},
		PortsCfg: PortsConfig{
			VerificationTimeout: getDurationOrDefault("VERIFICATION_TIMEOUT", 5*time.Second),
			WeatherTimeout:      getDurationOrDefault("WEATHER_TIMEOUT", 10*time.Second),
			PaymentTimeout:      getDurationOrDefault("PAYMENT_TIMEOUT", 30*time.Second),
			NotificationTimeout: getDurationOrDefault("NOTIFICATION_TIMEOUT", 5*time.Second),
			WeatherServiceURL:   getEnvOrDefault("WEATHER_SERVICE_URL", ""),
			WeatherCacheTTL:     getDurationOrDefault("WEATHER_CACHE_TTL", time.Hour),
			PaymentSuccessRate:  getFloatOrDefault("PAYMENT_SUCCESS_RATE", 0.98),
			PaymentLatency:      getDurationOrDefault("PAYMENT_LATENCY", 3*time.Second),
			ReceiptURLExpiry:    getDurationOrDefault("RECEIPT_URL_EXPIRY", 15*time.Minute),
		},
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		log.Printf("invalid integer for %s=%q, using default %d", key, value, defaultValue)
		return defaultValue
	}
	return n
}

func getBoolOrDefault(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		log.Printf("invalid bool for %s=%q, using default %t", key, value, defaultValue)
		return defaultValue
	}
	return b
}

func getFloatOrDefault(key string, defaultValue float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		log.Printf("invalid float for %s=%q, using default %v", key, value, defaultValue)
		return defaultValue
	}
	return f
}

func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		log.Printf("invalid duration for %s=%q, using default %s", key, value, defaultValue)
		return defaultValue
	}
	return d
}
