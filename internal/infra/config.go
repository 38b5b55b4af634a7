package infra

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv      string
	Port        string
	DatabaseURL string

	// Artifact storage. Backend is "filesystem" or "supabase"; the filesystem
	// store is intended for development and test environments.
	StorageBackend     string
	StoragePath        string
	StorageBaseURL     string
	SupabaseURL        string
	SupabaseServiceKey string
	SupabaseBucket     string

	// Extraction collaborators.
	GeminiAPIKey   string
	GeminiBaseURL  string
	GeminiModel    string
	RembgEndpoint  string
	RemoveBgAPIKey string

	// Queue and worker tuning.
	WorkerConcurrency  int
	QueueMaxAttempts   int
	QueueBackoffBase   time.Duration
	QueueLockDuration  time.Duration
	QueueMaxStalls     int
	QueuePollInterval  time.Duration
	CompletedRetention time.Duration
	DeadRetention      time.Duration

	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration

	CORSAllowedOrigins []string
	MaxUploadBytes     int64
}

// LoadConfig loads configuration from environment variables and applies defaults where needed.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		AppEnv:      getEnv("APP_ENV", "development"),
		Port:        getEnv("PORT", "8080"),
		DatabaseURL: os.Getenv("DATABASE_URL"),

		StorageBackend:     getEnv("STORAGE_BACKEND", "filesystem"),
		StoragePath:        getEnv("LOCAL_STORAGE_PATH", "./uploads"),
		StorageBaseURL:     getEnv("STORAGE_BASE_URL", "http://localhost:8080/static"),
		SupabaseURL:        os.Getenv("SUPABASE_URL"),
		SupabaseServiceKey: os.Getenv("SUPABASE_SERVICE_ROLE_KEY"),
		SupabaseBucket:     getEnv("SUPABASE_BUCKET", "assets"),

		GeminiAPIKey:   os.Getenv("GEMINI_API_KEY"),
		GeminiBaseURL:  getEnv("GEMINI_BASE_URL", "https://generativelanguage.googleapis.com/v1beta"),
		GeminiModel:    getEnv("GEMINI_MODEL", "gemini-2.5-flash-image-preview"),
		RembgEndpoint:  getEnv("REMBG_ENDPOINT", "http://localhost:5000"),
		RemoveBgAPIKey: os.Getenv("REMOVEBG_API_KEY"),

		WorkerConcurrency:  getEnvInt("WORKER_CONCURRENCY", 2),
		QueueMaxAttempts:   getEnvInt("QUEUE_MAX_ATTEMPTS", 3),
		QueueBackoffBase:   time.Second * time.Duration(getEnvInt("QUEUE_BACKOFF_BASE_SECONDS", 5)),
		QueueLockDuration:  time.Second * time.Duration(getEnvInt("QUEUE_LOCK_DURATION_SECONDS", 90)),
		QueueMaxStalls:     getEnvInt("QUEUE_MAX_STALLS", 2),
		QueuePollInterval:  time.Second * time.Duration(getEnvInt("QUEUE_POLL_INTERVAL_SECONDS", 2)),
		CompletedRetention: time.Hour * time.Duration(getEnvInt("QUEUE_COMPLETED_RETENTION_HOURS", 24)),
		DeadRetention:      time.Hour * time.Duration(getEnvInt("QUEUE_DEAD_RETENTION_HOURS", 168)),

		HTTPReadTimeout:  time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 15)),
		HTTPWriteTimeout: time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 30)),
		HTTPIdleTimeout:  time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),

		CORSAllowedOrigins: strings.Split(getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:3000"), ","),
		MaxUploadBytes:     int64(getEnvInt("MAX_UPLOAD_MB", 15)) << 20,
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	if cfg.StorageBackend == "supabase" {
		if cfg.SupabaseURL == "" || cfg.SupabaseServiceKey == "" {
			return nil, fmt.Errorf("SUPABASE_URL and SUPABASE_SERVICE_ROLE_KEY are required for supabase storage")
		}
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}
