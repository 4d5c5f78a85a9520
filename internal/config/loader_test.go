package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const testSecret = "0123456789abcdef0123456789abcdef"

var allKeys = []string{
	"FESTIVAL_CONFIG_FILE",
	"FESTIVAL_HTTP_PORT",
	"FESTIVAL_SQLITE_DSN",
	"FESTIVAL_TOKEN_SECRET",
	"FESTIVAL_TOKEN_TTL",
	"FESTIVAL_TOKEN_ISSUER",
	"FESTIVAL_TOKEN_PURGE_INTERVAL",
	"FESTIVAL_REDIS_ADDR",
	"FESTIVAL_REDIS_PASSWORD",
	"FESTIVAL_REDIS_DB",
	"FESTIVAL_LOG_LEVEL",
	"FESTIVAL_LOG_DEVELOPMENT",
	"FESTIVAL_ADMIN_USERNAME",
	"FESTIVAL_ADMIN_PASSWORD",
}

// clearEnv blanks every variable Load reads; empty values count as unset.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range allKeys {
		t.Setenv(key, "")
	}
}

func TestLoader_ParseEnvironment(t *testing.T) {
	t.Run("applies defaults when variables are missing", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("FESTIVAL_TOKEN_SECRET", testSecret)

		cfg, err := Load()
		if err != nil {
			t.Fatalf("Load returned error: %v", err)
		}
		if cfg.HTTPPort != 8080 {
			t.Fatalf("expected default HTTP port 8080, got %d", cfg.HTTPPort)
		}
		if cfg.SQLiteDSN != "festival.db" {
			t.Fatalf("unexpected default DSN: %q", cfg.SQLiteDSN)
		}
		if cfg.TokenTTL != 24*time.Hour || cfg.TokenIssuer != "festival-programs" || cfg.TokenPurgeInterval != time.Hour {
			t.Fatalf("unexpected token defaults: %+v", cfg)
		}
		if cfg.LogLevel != "info" || cfg.LogDevelopment || cfg.RedisAddr != "" || cfg.SeedAdmin() {
			t.Fatalf("unexpected optional defaults: %+v", cfg)
		}
	})

	t.Run("errors when required values are missing", func(t *testing.T) {
		clearEnv(t)

		_, err := Load()
		if err == nil {
			t.Fatalf("expected error when required values are missing")
		}
		expected := "必須の環境変数が設定されていません: FESTIVAL_TOKEN_SECRET"
		if err.Error() != expected {
			t.Fatalf("unexpected error message: %q", err.Error())
		}
	})

	t.Run("parses duration and numeric fields", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("FESTIVAL_TOKEN_SECRET", testSecret)
		t.Setenv("FESTIVAL_HTTP_PORT", "9090")
		t.Setenv("FESTIVAL_SQLITE_DSN", "/tmp/festival.db")
		t.Setenv("FESTIVAL_TOKEN_TTL", "2h")
		t.Setenv("FESTIVAL_REDIS_ADDR", "localhost:6379")
		t.Setenv("FESTIVAL_REDIS_DB", "3")
		t.Setenv("FESTIVAL_LOG_LEVEL", "DEBUG")
		t.Setenv("FESTIVAL_LOG_DEVELOPMENT", "true")
		t.Setenv("FESTIVAL_ADMIN_USERNAME", "root_admin")
		t.Setenv("FESTIVAL_ADMIN_PASSWORD", "Str0ng!Passw0rd")

		cfg, err := Load()
		if err != nil {
			t.Fatalf("Load returned error: %v", err)
		}
		if cfg.HTTPPort != 9090 || cfg.SQLiteDSN != "/tmp/festival.db" || cfg.TokenTTL != 2*time.Hour {
			t.Fatalf("unexpected core values: %+v", cfg)
		}
		if cfg.RedisAddr != "localhost:6379" || cfg.RedisDB != 3 {
			t.Fatalf("unexpected redis values: %+v", cfg)
		}
		if cfg.LogLevel != "debug" || !cfg.LogDevelopment {
			t.Fatalf("unexpected log values: %+v", cfg)
		}
		if !cfg.SeedAdmin() || cfg.AdminUsername != "root_admin" {
			t.Fatalf("expected admin seeding to be configured: %+v", cfg)
		}
	})

	t.Run("reports every invalid value", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("FESTIVAL_TOKEN_SECRET", "too-short")
		t.Setenv("FESTIVAL_HTTP_PORT", "70000")
		t.Setenv("FESTIVAL_TOKEN_TTL", "-1h")
		t.Setenv("FESTIVAL_LOG_LEVEL", "verbose")
		t.Setenv("FESTIVAL_ADMIN_USERNAME", "root_admin")

		_, err := Load()
		if err == nil {
			t.Fatalf("expected error")
		}
		for _, key := range []string{
			"FESTIVAL_TOKEN_SECRET",
			"FESTIVAL_HTTP_PORT",
			"FESTIVAL_TOKEN_TTL",
			"FESTIVAL_LOG_LEVEL",
			"FESTIVAL_ADMIN_USERNAME/FESTIVAL_ADMIN_PASSWORD",
		} {
			if !strings.Contains(err.Error(), key) {
				t.Fatalf("expected %s in %q", key, err.Error())
			}
		}
	})
}

func TestLoader_ConfigFile(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "festival.yaml")
	content := "token_secret: " + testSecret + "\nhttp_port: 7070\nsqlite_dsn: /var/lib/festival.db\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("FESTIVAL_CONFIG_FILE", path)
	t.Setenv("FESTIVAL_HTTP_PORT", "6060")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.TokenSecret != testSecret || cfg.SQLiteDSN != "/var/lib/festival.db" {
		t.Fatalf("expected values from file: %+v", cfg)
	}
	if cfg.HTTPPort != 6060 {
		t.Fatalf("expected environment to override file, got %d", cfg.HTTPPort)
	}

	t.Setenv("FESTIVAL_CONFIG_FILE", filepath.Join(t.TempDir(), "missing.yaml"))
	if _, err := Load(); err == nil {
		t.Fatalf("expected error for missing config file")
	}
}
