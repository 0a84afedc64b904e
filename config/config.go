package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	ServerPort int
	Database   DatabaseConfig
	JWT        JWTConfig
	RateLimit  RateLimitConfig
	Redis      RedisConfig
	MQ         MQConfig
	Storage    StorageConfig
	Log        LogConfig

	// Warnings collects values that were ignored while loading.
	Warnings []string
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	UseSSL   bool
}

type JWTConfig struct {
	Secret     string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

// RateLimitConfig caps score submissions per user. A zero Window or
// MaxRequests disables limiting.
type RateLimitConfig struct {
	MaxRequests int
	Window      time.Duration
	Backend     string
}

// Enabled reports whether submissions are limited at all.
func (c RateLimitConfig) Enabled() bool {
	return c.MaxRequests > 0 && c.Window > 0
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type MQConfig struct {
	Backend           string
	ScoreEventChannel string
	RabbitMQ          RabbitMQConfig
	PubSub            PubSubConfig
}

type RabbitMQConfig struct {
	URL             string
	QueueDurable    bool
	QueueAutoDelete bool
	PrefetchCount   int
}

type PubSubConfig struct {
	ProjectID          string
	CredentialsFile    string
	SubscriptionSuffix string
}

type StorageConfig struct {
	Backend string
	Minio   MinioConfig
	GCS     GCSConfig
}

type MinioConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

type GCSConfig struct {
	Bucket          string
	ProjectID       string
	CredentialsFile string
}

type LogConfig struct {
	Level  string
	Format string
}

const (
	defaultRateLimitRequests = 60
	defaultRateLimitWindow   = 60
)

func LoadConfig() Config {
	if os.Getenv("ENV") == "dev" {
		godotenv.Load()
	}

	var warnings []string

	dbConfig := DatabaseConfig{
		Host:     getEnv("DB_HOST", "localhost"),
		Port:     getEnvInt("DB_PORT", 5432),
		User:     getEnv("DB_USER", "clickrush"),
		Password: getEnv("DB_PASSWORD", "password"),
		DBName:   getEnv("DB_NAME", "clickrush_db"),
		UseSSL:   getEnvBool("DB_USE_SSL", false),
	}

	jwtConfig := JWTConfig{
		Secret:     strings.TrimSpace(getEnv("JWT_SECRET", "")),
		AccessTTL:  time.Duration(getEnvFloat("MINUTES_TOKEN_EXPIRE", 60) * float64(time.Minute)),
		RefreshTTL: time.Duration(getEnvFloat("DAYS_REFRESH_TOKEN_EXPIRE", 7) * float64(24*time.Hour)),
	}

	maxRequests := getEnvNonNegativeInt("SCORE_SUBMISSION_MAX_REQUESTS", defaultRateLimitRequests, &warnings)
	windowSeconds := getEnvNonNegativeInt("SCORE_SUBMISSION_WINDOW_SECONDS", defaultRateLimitWindow, &warnings)
	rateLimit := RateLimitConfig{
		MaxRequests: maxRequests,
		Window:      time.Duration(windowSeconds) * time.Second,
		Backend:     strings.ToLower(getEnv("RATE_LIMIT_BACKEND", "db")),
	}

	redisConfig := RedisConfig{
		Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
		Password: getEnv("REDIS_PASSWORD", ""),
		DB:       getEnvInt("REDIS_DB", 0),
	}

	mqConfig := MQConfig{
		Backend:           strings.ToLower(getEnv("MQ_BACKEND", "none")),
		ScoreEventChannel: getEnv("SCORE_EVENTS_CHANNEL", "score-events"),
		RabbitMQ: RabbitMQConfig{
			URL:             getEnv("RABBITMQ_URL", ""),
			QueueDurable:    getEnvBool("RABBITMQ_QUEUE_DURABLE", true),
			QueueAutoDelete: getEnvBool("RABBITMQ_QUEUE_AUTO_DELETE", false),
			PrefetchCount:   getEnvInt("RABBITMQ_PREFETCH", 10),
		},
		PubSub: PubSubConfig{
			ProjectID:          getEnv("PUBSUB_PROJECT_ID", ""),
			CredentialsFile:    getEnv("PUBSUB_CREDENTIALS_FILE", ""),
			SubscriptionSuffix: getEnv("PUBSUB_SUBSCRIPTION_SUFFIX", "-sub"),
		},
	}

	storageConfig := StorageConfig{
		Backend: strings.ToLower(getEnv("STORAGE_BACKEND", "none")),
		Minio: MinioConfig{
			Endpoint:  getEnv("MINIO_ENDPOINT", "localhost:9000"),
			AccessKey: getEnv("MINIO_ACCESS_KEY", ""),
			SecretKey: getEnv("MINIO_SECRET_KEY", ""),
			Bucket:    getEnv("MINIO_BUCKET", "clickrush"),
			UseSSL:    getEnvBool("MINIO_USE_SSL", false),
		},
		GCS: GCSConfig{
			Bucket:          getEnv("GCS_BUCKET", ""),
			ProjectID:       getEnv("GCS_PROJECT_ID", ""),
			CredentialsFile: getEnv("GCS_CREDENTIALS_FILE", ""),
		},
	}

	return Config{
		ServerPort: getEnvInt("SERVER_PORT", 8080),
		Database:   dbConfig,
		JWT:        jwtConfig,
		RateLimit:  rateLimit,
		Redis:      redisConfig,
		MQ:         mqConfig,
		Storage:    storageConfig,
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: strings.ToLower(getEnv("LOG_FORMAT", "json")),
		},
		Warnings: warnings,
	}
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if valueStr, exists := os.LookupEnv(key); exists {
		var value int
		fmt.Sscanf(valueStr, "%d", &value)
		return value
	}
	return defaultValue
}

// getEnvNonNegativeInt falls back to defaultValue on unparsable or
// negative input and records a warning.
func getEnvNonNegativeInt(key string, defaultValue int, warnings *[]string) int {
	valueStr, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue
	}
	value, err := strconv.Atoi(strings.TrimSpace(valueStr))
	if err != nil || value < 0 {
		*warnings = append(*warnings, fmt.Sprintf("invalid value for %s=%q, falling back to %d", key, valueStr, defaultValue))
		return defaultValue
	}
	return value
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if valueStr, exists := os.LookupEnv(key); exists {
		value, err := strconv.ParseFloat(strings.TrimSpace(valueStr), 64)
		if err != nil || value <= 0 {
			return defaultValue
		}
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if valueStr, exists := os.LookupEnv(key); exists {
		value, err := strconv.ParseBool(strings.TrimSpace(valueStr))
		if err != nil {
			return defaultValue
		}
		return value
	}
	return defaultValue
}
