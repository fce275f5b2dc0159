package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/boddenberg/family-rewards-bfa-go/internal/config"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("STORE_BACKEND", "")
	t.Setenv("BEHAVIOR_WINDOW_WEEKS", "")
	t.Setenv("REVENUECAT_WEBHOOK_AUTH_TOKEN", "")

	cfg := config.Load()

	if cfg.Port != 8080 {
		t.Errorf("expected port 8080, got %d", cfg.Port)
	}
	if cfg.StoreBackend != config.BackendSupabase {
		t.Errorf("expected supabase backend, got %q", cfg.StoreBackend)
	}
	if cfg.BehaviorWindowWeeks != 18 {
		t.Errorf("expected 18 week window, got %d", cfg.BehaviorWindowWeeks)
	}
	if cfg.WebhookAuthToken != "" {
		t.Errorf("expected empty webhook token, got %q", cfg.WebhookAuthToken)
	}
}

func TestLoad_FromEnv(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("EVENT_CACHE_TTL", "30s")
	t.Setenv("MAX_RETRIES", "not-a-number")
	t.Setenv("REVENUECAT_WEBHOOK_AUTH_TOKEN", "s3cret")

	cfg := config.Load()

	if cfg.Port != 9090 {
		t.Errorf("expected port 9090, got %d", cfg.Port)
	}
	if cfg.EventCacheTTL != 30*time.Second {
		t.Errorf("expected 30s, got %s", cfg.EventCacheTTL)
	}
	if cfg.MaxRetries != 3 {
		t.Errorf("expected fallback 3 for bad int, got %d", cfg.MaxRetries)
	}
	if cfg.WebhookAuthToken != "s3cret" {
		t.Errorf("expected webhook token from env, got %q", cfg.WebhookAuthToken)
	}
}

func TestLoadDotEnv_DoesNotOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	content := "# comment\nDOTENV_TEST_A=from-file\nDOTENV_TEST_B=\"quoted\"\nbroken-line\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("DOTENV_TEST_A", "from-env")
	t.Setenv("DOTENV_TEST_B", "")

	if err := config.LoadDotEnv(path); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if got := os.Getenv("DOTENV_TEST_A"); got != "from-env" {
		t.Errorf("expected env to win, got %q", got)
	}
	if got := os.Getenv("DOTENV_TEST_B"); got != "quoted" {
		t.Errorf("expected quotes stripped, got %q", got)
	}
}

func TestLoadDotEnv_MissingFile(t *testing.T) {
	if err := config.LoadDotEnv(filepath.Join(t.TempDir(), "nope.env")); err == nil {
		t.Fatal("expected error for missing file")
	}
}
