package config

import (
	"errors"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// AppConfig holds all configuration for the application.
// The values are loaded from environment variables.
type AppConfig struct {
	// Core settings
	Port         string
	DatabasePath string
	LogLevel     string

	// Admin surface
	JWTSecret          string
	AdminSubjects      []string
	APIRequestsPerSec  float64
	APIRequestBurst    int
	ServerWriteTimeout time.Duration

	// Collection settings
	SourcesFile        string
	RunTimeout         time.Duration
	RejectionThreshold float64
	MaxConcurrency     int
	MaxRejectedRecords int
	CollectionSchedule string
	ScheduleEnabled    bool
	UserAgent          string

	// Run lock
	RunLockTTL    time.Duration
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Run summary publishing
	AMQPURL        string
	AMQPExchange   string
	AMQPRoutingKey string

	Sources []SourceConfig
}

// Cfg is a global instance of the AppConfig.
var Cfg *AppConfig

// LoadConfig loads configuration from environment variables or a .env file,
// then reads the source definitions from SOURCES_FILE.
func LoadConfig() {
	// 1. Try loading from the current directory (standard behavior)
	errEnv := godotenv.Load()

	// 2. If not found, try loading from the parent directory (common when running from /backend)
	if errEnv != nil {
		errEnv = godotenv.Load("../.env")
	}

	if errEnv != nil {
		if os.IsNotExist(errEnv) {
			log.Println("Info: No .env file found in current or parent directory. Relying on OS environment variables.")
		} else {
			log.Printf("Warning: Error loading .env file: %v. Relying on OS environment variables.", errEnv)
		}
	} else {
		log.Println(".env file loaded successfully.")
	}

	log.Println("Loading application configuration...")

	jwtSecret := getEnv("JWT_SECRET", "")
	if jwtSecret == "" {
		log.Println("WARNING: JWT_SECRET is not set. POST /api/collect will reject every request.")
	}

	threshold := getEnvAsFloat("REJECTION_THRESHOLD", 0.5)
	if threshold < 0 || threshold > 1 {
		log.Printf("Invalid REJECTION_THRESHOLD %v, using default: 0.5", threshold)
		threshold = 0.5
	}
	concurrency := getEnvAsInt("MAX_CONCURRENCY", 1)
	if concurrency < 1 {
		concurrency = 1
	}

	Cfg = &AppConfig{
		// Core
		Port:         getEnv("PORT", "8080"),
		DatabasePath: getEnv("DATABASE_PATH", "./capitolwatch.db"),
		LogLevel:     getEnv("LOG_LEVEL", "info"),

		// Admin
		JWTSecret:          jwtSecret,
		AdminSubjects:      getList("ADMIN_SUBJECTS"),
		APIRequestsPerSec:  getEnvAsFloat("API_REQUESTS_PER_SECOND", 5),
		APIRequestBurst:    getEnvAsInt("API_REQUEST_BURST", 10),
		ServerWriteTimeout: getEnvAsDuration("SERVER_WRITE_TIMEOUT", 30*time.Second),

		// Collection
		SourcesFile:        getEnv("SOURCES_FILE", "sources.yaml"),
		RunTimeout:         getEnvAsDuration("RUN_TIMEOUT", 30*time.Minute),
		RejectionThreshold: threshold,
		MaxConcurrency:     concurrency,
		MaxRejectedRecords: getEnvAsInt("MAX_REJECTED_RECORDS", 50),
		CollectionSchedule: getEnv("COLLECTION_SCHEDULE", "@every 6h"),
		ScheduleEnabled:    getEnvAsBool("SCHEDULE_ENABLED", true),
		UserAgent:          getEnv("COLLECTOR_USER_AGENT", "capitolwatch/1.0 (+public disclosure aggregation)"),

		// Lock
		RunLockTTL:    getEnvAsDuration("RUN_LOCK_TTL", 45*time.Minute),
		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvAsInt("REDIS_DB", 0),

		// AMQP
		AMQPURL:        getEnv("AMQP_URL", ""),
		AMQPExchange:   getEnv("AMQP_EXCHANGE", "capitolwatch"),
		AMQPRoutingKey: getEnv("AMQP_ROUTING_KEY", "collection.run.completed"),
	}

	sources, err := LoadSources(Cfg.SourcesFile)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			log.Printf("WARNING: sources file %s not found. No sources configured.", Cfg.SourcesFile)
		} else {
			log.Fatalf("FATAL: %v", err)
		}
	}
	Cfg.Sources = sources

	log.Printf("Configuration loaded: Port=%s, LogLevel=%s, DBPath=%s, Sources=%d, Schedule=%q",
		Cfg.Port, Cfg.LogLevel, Cfg.DatabasePath, len(Cfg.Sources), Cfg.CollectionSchedule)
}

// getEnv retrieves an environment variable or returns a fallback value.
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	if fallback != "" {
		log.Printf("Environment variable %s not set, using default: %s", key, fallback)
	}
	return fallback
}

// getEnvAsInt retrieves an environment variable as an integer or returns a fallback.
func getEnvAsInt(key string, fallback int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return fallback
	}
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	log.Printf("Invalid integer value for %s ('%s'), using default: %d", key, valueStr, fallback)
	return fallback
}

// getEnvAsFloat retrieves an environment variable as a float64 or returns a fallback.
func getEnvAsFloat(key string, fallback float64) float64 {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return fallback
	}
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	log.Printf("Invalid float value for %s ('%s'), using default: %v", key, valueStr, fallback)
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return fallback
	}
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	log.Printf("Invalid boolean value for %s ('%s'), using default: %t", key, valueStr, fallback)
	return fallback
}

// getEnvAsDuration retrieves an environment variable as a time.Duration or returns a fallback.
func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return fallback
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	log.Printf("Invalid duration value for %s ('%s'), using default: %s", key, valueStr, fallback.String())
	return fallback
}

// getList retrieves and parses a comma-separated list.
func getList(key string) []string {
	raw := getEnv(key, "")
	if raw == "" {
		return []string{}
	}
	var out []string
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
