package infra

import (
	"testing"
	"time"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://example")
	t.Setenv("STORAGE_BACKEND", "")
	t.Setenv("QUEUE_MAX_ATTEMPTS", "")
	t.Setenv("QUEUE_BACKOFF_BASE_SECONDS", "")
	t.Setenv("WORKER_CONCURRENCY", "")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.StorageBackend != "filesystem" {
		t.Fatalf("StorageBackend mismatch: got %q", cfg.StorageBackend)
	}
	if cfg.QueueMaxAttempts != 3 {
		t.Fatalf("QueueMaxAttempts mismatch: got %d", cfg.QueueMaxAttempts)
	}
	if cfg.QueueBackoffBase != 5*time.Second {
		t.Fatalf("QueueBackoffBase mismatch: got %s", cfg.QueueBackoffBase)
	}
	if cfg.WorkerConcurrency != 2 {
		t.Fatalf("WorkerConcurrency mismatch: got %d", cfg.WorkerConcurrency)
	}
}

func TestLoadConfigRequiresDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")

	if _, err := LoadConfig(); err == nil {
		t.Fatal("expected error when DATABASE_URL missing")
	}
}

func TestLoadConfigSupabaseBackendRequiresCredentials(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://example")
	t.Setenv("STORAGE_BACKEND", "supabase")
	t.Setenv("SUPABASE_URL", "")
	t.Setenv("SUPABASE_SERVICE_ROLE_KEY", "")

	if _, err := LoadConfig(); err == nil {
		t.Fatal("expected error when supabase credentials missing")
	}

	t.Setenv("SUPABASE_URL", "https://project.supabase.co")
	t.Setenv("SUPABASE_SERVICE_ROLE_KEY", "service-role-key")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.SupabaseBucket != "assets" {
		t.Fatalf("SupabaseBucket mismatch: got %q", cfg.SupabaseBucket)
	}
}
