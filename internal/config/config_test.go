package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/boddenberg/hecu-bank-go/internal/config"
)

func TestLoad_Defaults(t *testing.T) {
	for _, k := range []string{"PORT", "STORE_BACKEND", "BTC_PRICE_USD", "CORS_ALLOWED_ORIGINS", "JWT_USER_TTL", "ADMIN_PIN"} {
		t.Setenv(k, "")
	}

	cfg := config.Load()

	if cfg.Port != 8080 {
		t.Errorf("expected port 8080, got %d", cfg.Port)
	}
	if cfg.StoreBackend != config.BackendMemory {
		t.Errorf("expected memory backend, got %s", cfg.StoreBackend)
	}
	if cfg.JWTUserTTL != 2*time.Hour || cfg.JWTAdminTTL != time.Hour {
		t.Errorf("unexpected token ttls: %s / %s", cfg.JWTUserTTL, cfg.JWTAdminTTL)
	}
	if cfg.AdminPIN != "" || len(cfg.AllowedOrigins) != 0 {
		t.Errorf("expected admin pin and cors disabled by default")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestLoad_FromEnv(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("STORE_BACKEND", "Mongo")
	t.Setenv("BTC_PRICE_USD", "64250.50")
	t.Setenv("CORS_ALLOWED_ORIGINS", "http://localhost:5173, https://bank.example.com ,")
	t.Setenv("JWT_USER_TTL", "45m")
	t.Setenv("MAX_RETRIES", "not-a-number")

	cfg := config.Load()

	if cfg.Port != 9090 || cfg.StoreBackend != config.BackendMongo {
		t.Errorf("unexpected server/store config: %d %s", cfg.Port, cfg.StoreBackend)
	}
	if cfg.BTCPriceUSD.String() != "64250.5" {
		t.Errorf("unexpected btc price %s", cfg.BTCPriceUSD)
	}
	if len(cfg.AllowedOrigins) != 2 || cfg.AllowedOrigins[1] != "https://bank.example.com" {
		t.Errorf("unexpected origins %q", cfg.AllowedOrigins)
	}
	if cfg.JWTUserTTL != 45*time.Minute {
		t.Errorf("unexpected user ttl %s", cfg.JWTUserTTL)
	}
	if cfg.MaxRetries != 3 {
		t.Errorf("bad int should fall back to default, got %d", cfg.MaxRetries)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*config.Config)
		wantErr bool
	}{
		{"memory", func(c *config.Config) {}, false},
		{"unknown backend", func(c *config.Config) { c.StoreBackend = "redis" }, true},
		{"supabase without key", func(c *config.Config) {
			c.StoreBackend = config.BackendSupabase
			c.SupabaseURL = "https://x.supabase.co"
			c.SupabaseSvcKey = ""
		}, true},
		{"supabase", func(c *config.Config) {
			c.StoreBackend = config.BackendSupabase
			c.SupabaseURL = "https://x.supabase.co"
			c.SupabaseSvcKey = "service"
		}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("STORE_BACKEND", "")
			cfg := config.Load()
			tt.mutate(cfg)
			if err := cfg.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestLoadDotEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	content := "# local settings\nHECU_TEST_A=from-file # trailing note\nexport HECU_TEST_B=\"quoted # kept\"\nHECU_TEST_C=kept\nnot a pair\n=orphan\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("HECU_TEST_C", "from-env")
	t.Cleanup(func() {
		os.Unsetenv("HECU_TEST_A")
		os.Unsetenv("HECU_TEST_B")
	})

	if err := config.LoadDotEnv(path); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := os.Getenv("HECU_TEST_A"); got != "from-file" {
		t.Errorf("A = %q", got)
	}
	if got := os.Getenv("HECU_TEST_B"); got != "quoted # kept" {
		t.Errorf("B = %q", got)
	}
	if got := os.Getenv("HECU_TEST_C"); got != "from-env" {
		t.Errorf("env should win over file, C = %q", got)
	}
}

func TestLoadDotEnv_MissingFile(t *testing.T) {
	if err := config.LoadDotEnv(filepath.Join(t.TempDir(), "absent.env")); err == nil {
		t.Error("expected an error for a missing file")
	}
}
