package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"discord-invite-tracker/internal/database"
)

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadJSON(t *testing.T) {
	path := writeFile(t, "config.json", `{
		"token": "tok",
		"guild_id": "111",
		"owner_id": "222",
		"redis": {"addr": "localhost:6379"},
		"approval": {"prompt_ttl": "30m"},
		"platform": {"timeout": "5s"}
	}`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Token != "tok" || cfg.GuildID != "111" || cfg.OwnerID != "222" {
		t.Fatalf("identity fields = %+v", cfg)
	}
	if cfg.Approval.PromptTTL.Std() != 30*time.Minute {
		t.Fatalf("prompt ttl = %v", cfg.Approval.PromptTTL.Std())
	}
	if cfg.Platform.Timeout.Std() != 5*time.Second {
		t.Fatalf("timeout = %v", cfg.Platform.Timeout.Std())
	}
	if !cfg.Redis.Enabled() {
		t.Fatal("redis not enabled")
	}
	// Untouched sections keep their defaults.
	if cfg.Database.Driver != database.DriverSQLite || cfg.Database.Path != "invites.db" {
		t.Fatalf("database = %+v", cfg.Database)
	}
	if cfg.Vouch.Cooldown.Std() != 10*time.Second {
		t.Fatalf("cooldown = %v", cfg.Vouch.Cooldown.Std())
	}
}

func TestLoadYAML(t *testing.T) {
	path := writeFile(t, "config.yaml", `
token: tok
guild_id: "111"
owner_id: "222"
database:
  driver: postgres
  postgres:
    host: db
    database: invites
vouch:
  cooldown: 30s
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Database.Driver != database.DriverPostgres || cfg.Database.Postgres.Host != "db" {
		t.Fatalf("database = %+v", cfg.Database)
	}
	if cfg.Database.Postgres.Port != 5432 {
		t.Fatalf("default port lost: %d", cfg.Database.Postgres.Port)
	}
	if cfg.Vouch.Cooldown.Std() != 30*time.Second {
		t.Fatalf("cooldown = %v", cfg.Vouch.Cooldown.Std())
	}
}

func TestEnvOverridesFile(t *testing.T) {
	path := writeFile(t, "config.json", `{"token": "file", "guild_id": "1", "owner_id": "2"}`)
	t.Setenv(EnvPrefix+"TOKEN", "env")
	t.Setenv(EnvPrefix+"DATABASE_PATH", "/data/invites.db")
	t.Setenv(EnvPrefix+"REDIS_ADDR", "/run/redis.sock")
	t.Setenv(EnvPrefix+"APPROVAL_PROMPT_TTL", "2h")
	t.Setenv(EnvPrefix+"LOG_DEVELOPMENT", "true")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Token != "env" {
		t.Fatalf("token = %q", cfg.Token)
	}
	if cfg.Database.Path != "/data/invites.db" {
		t.Fatalf("db path = %q", cfg.Database.Path)
	}
	if cfg.Redis.Addr != "/run/redis.sock" {
		t.Fatalf("redis addr = %q", cfg.Redis.Addr)
	}
	if cfg.Approval.PromptTTL.Std() != 2*time.Hour {
		t.Fatalf("prompt ttl = %v", cfg.Approval.PromptTTL.Std())
	}
	if !cfg.Log.Development {
		t.Fatal("log.development not set")
	}
}

func TestLoadEnvOnly(t *testing.T) {
	t.Setenv(EnvPrefix+"TOKEN", "tok")
	t.Setenv(EnvPrefix+"GUILD_ID", "1")
	t.Setenv(EnvPrefix+"OWNER_ID", "2")
	if _, err := Load(""); err != nil {
		t.Fatalf("load: %v", err)
	}
}

func TestValidate(t *testing.T) {
	cfg := Default()
	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected missing fields")
	}
	for _, want := range []string{"token", "guild_id", "owner_id"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %s", err, want)
		}
	}

	cfg.Token, cfg.GuildID, cfg.OwnerID = "t", "g", "o"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}

	cfg.Database.Driver = "mysql"
	if err := cfg.Validate(); err == nil {
		t.Fatal("unknown driver accepted")
	}
}

func TestLoadRejectsBadDuration(t *testing.T) {
	path := writeFile(t, "config.json", `{"token": "t", "guild_id": "1", "owner_id": "2", "vouch": {"cooldown": "soon"}}`)
	if _, err := Load(path); err == nil {
		t.Fatal("expected parse error")
	}
}
