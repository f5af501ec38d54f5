package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

const minimalConfig = `
http:
  addr: ":9999"
postgres:
  dsn: "postgres://u:p@localhost:5432/forum"
auth:
  jwtSecret: "file-secret"
`

func TestLoadConfig_DefaultsFilledIn(t *testing.T) {
	t.Setenv("CONFIG_PATH", writeConfig(t, minimalConfig))
	t.Setenv("JWT_SECRET", "")
	t.Setenv("POSTGRES_DSN", "")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.HTTP.Addr != ":9999" {
		t.Fatalf("addr = %q", cfg.HTTP.Addr)
	}
	if cfg.Logging.Service != "forum-service" || cfg.Logging.Env != "dev" {
		t.Fatalf("logging defaults not applied: %+v", cfg.Logging)
	}
	if got := cfg.PingInterval(); got != 15*time.Second {
		t.Fatalf("default ping interval = %v", got)
	}
}

func TestLoadConfig_EnvOverridesFile(t *testing.T) {
	t.Setenv("CONFIG_PATH", writeConfig(t, minimalConfig))
	t.Setenv("JWT_SECRET", "env-secret")
	t.Setenv("POSTGRES_DSN", "postgres://env@localhost:5432/forum")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Auth.JWTSecret != "env-secret" {
		t.Fatalf("jwt secret = %q, want env override", cfg.Auth.JWTSecret)
	}
	if cfg.Postgres.DSN != "postgres://env@localhost:5432/forum" {
		t.Fatalf("dsn = %q, want env override", cfg.Postgres.DSN)
	}
}

func TestLoadConfig_MissingRequiredFields(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	t.Setenv("POSTGRES_DSN", "")

	cases := map[string]string{
		"no addr":   "postgres:\n  dsn: \"x\"\nauth:\n  jwtSecret: \"s\"\n",
		"no dsn":    "http:\n  addr: \":1\"\nauth:\n  jwtSecret: \"s\"\n",
		"no secret": "http:\n  addr: \":1\"\npostgres:\n  dsn: \"x\"\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			t.Setenv("CONFIG_PATH", writeConfig(t, body))
			if _, err := LoadConfig(); err == nil {
				t.Fatalf("incomplete config accepted")
			}
		})
	}
}

func TestPingInterval_IgnoresGarbage(t *testing.T) {
	c := &Config{Realtime: Realtime{PingEvery: "soon"}}
	if got := c.PingInterval(); got != 15*time.Second {
		t.Fatalf("garbage interval = %v, want default", got)
	}
	c.Realtime.PingEvery = "3s"
	if got := c.PingInterval(); got != 3*time.Second {
		t.Fatalf("interval = %v, want 3s", got)
	}
}
