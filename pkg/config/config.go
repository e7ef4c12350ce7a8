package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Document backends
const (
	BackendFirestore = "firestore"
	BackendMongo     = "mongo"
)

type Config struct {
	Port                    string `validate:"required,numeric"`
	Env                     string `validate:"oneof=development production test"`
	LogLevel                string `validate:"oneof=debug info warn error"`
	FirebaseCredentialsPath string `validate:"required"`
	FirebaseProjectID       string
	DocumentBackend         string `validate:"oneof=firestore mongo"`
	PostgresConnStr         string `validate:"required"`
	MongoURI                string `validate:"required_if=DocumentBackend mongo"`
	MongoDatabase           string `validate:"required_if=DocumentBackend mongo"`
	JWTSecret               string `validate:"required,min=16"`
	JWTTTL                  time.Duration
	RedisURL                string
	AuthRateLimit           string `validate:"required"`

	Notifications NotificationsConfig
}

// NotificationsConfig tunes the live notification aggregator
type NotificationsConfig struct {
	Retract      bool
	FallbackName string
	// Settle bounds how long a one-shot notifications read waits for readiness
	Settle time.Duration
}

// Load reads the configuration from the environment, after loading .env when present
func Load() (*Config, error) {
	// a missing .env is fine, variables may come from the environment
	_ = godotenv.Load()

	jwtTTL, err := getDuration("JWT_TTL", 72*time.Hour)
	if err != nil {
		return nil, err
	}
	settle, err := getDuration("NOTIFICATIONS_SETTLE", 3*time.Second)
	if err != nil {
		return nil, err
	}
	retract, err := getBool("NOTIFICATIONS_RETRACT", false)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Port:                    getEnv("PORT", "8080"),
		Env:                     getEnv("ENV", "development"),
		LogLevel:                getEnv("LOG_LEVEL", "info"),
		FirebaseCredentialsPath: getEnv("FIREBASE_CREDENTIALS_PATH", ""),
		FirebaseProjectID:       getEnv("FIREBASE_PROJECT_ID", ""),
		DocumentBackend:         getEnv("DOCUMENT_BACKEND", BackendFirestore),
		PostgresConnStr:         getEnv("POSTGRES_CONN_STR", ""),
		MongoURI:                getEnv("MONGO_URI", ""),
		MongoDatabase:           getEnv("MONGO_DATABASE", "apollo"),
		JWTSecret:               getEnv("JWT_SECRET", ""),
		JWTTTL:                  jwtTTL,
		RedisURL:                getEnv("REDIS_URL", ""),
		AuthRateLimit:           getEnv("AUTH_RATE_LIMIT", "30-M"),
		Notifications: NotificationsConfig{
			Retract:      retract,
			FallbackName: getEnv("NOTIFICATIONS_FALLBACK_NAME", "Someone"),
			Settle:       settle,
		},
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// IsProduction reports whether the server runs in production
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}

func getBool(key string, defaultValue bool) (bool, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("%s: %w", key, err)
	}
	return b, nil
}
