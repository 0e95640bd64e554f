package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	DatabaseURL      string
	ParserBaseURL    string
	PollInterval     int   // seconds
	JobTimeout       int   // seconds a job may stay non-terminal
	MaxIngestRetries int
	WorkerPoolSize   int   // concurrent outbound provider calls per poll pass
	RequestTimeout   int   // seconds per provider HTTP call
	CollectHours     []int // UTC hours at which a full collection run starts
	ShutdownTimeout  int   // seconds
}

const defaultParserBaseURL = "https://parser.market/wp-json/client-api/v1"

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if exists (ignore error in production)
	_ = godotenv.Load()

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	parserURL := os.Getenv("PARSER_BASE_URL")
	if parserURL == "" {
		parserURL = defaultParserBaseURL
	}

	return &Config{
		DatabaseURL:      dbURL,
		ParserBaseURL:    parserURL,
		PollInterval:     intEnv("POLL_INTERVAL_SECONDS", 180), // poll every 3 minutes
		JobTimeout:       intEnv("JOB_TIMEOUT_SECONDS", 86400), // free the account after 24 hours
		MaxIngestRetries: intEnv("MAX_INGEST_RETRIES", 3),
		WorkerPoolSize:   intEnv("WORKER_POOL_SIZE", 5),
		RequestTimeout:   intEnv("REQUEST_TIMEOUT_SECONDS", 30),
		CollectHours:     hoursEnv("COLLECT_HOURS_UTC", []int{6, 14}), // 09:00 and 17:00 MSK
		ShutdownTimeout:  30,
	}, nil
}

func hoursEnv(key string, fallback []int) []int {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	var hours []int
	for _, part := range strings.Split(raw, ",") {
		h, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil || h < 0 || h > 23 {
			fmt.Printf("Warning: invalid %s=%q, using default %v\n", key, raw, fallback)
			return fallback
		}
		hours = append(hours, h)
	}
	return hours
}

func intEnv(key string, fallback int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		fmt.Printf("Warning: invalid %s=%q, using default %d\n", key, raw, fallback)
		return fallback
	}
	return v
}
