// Package config loads the bot configuration from a JSON or YAML file and
// applies INVITE_TRACKER_* environment overrides on top.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"discord-invite-tracker/internal/database"
	"discord-invite-tracker/internal/redis"

	"github.com/caarlos0/env/v11"
	"github.com/goccy/go-json"
	"gopkg.in/yaml.v3"
)

const EnvPrefix = "INVITE_TRACKER_"

// Duration accepts Go duration strings such as "10s" or "1h".
type Duration time.Duration

func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

type Config struct {
	Token           string `json:"token" yaml:"token" env:"TOKEN"`
	GuildID         string `json:"guild_id" yaml:"guild_id" env:"GUILD_ID"`
	OwnerID         string `json:"owner_id" yaml:"owner_id" env:"OWNER_ID"`
	InviteChannelID string `json:"invite_channel_id" yaml:"invite_channel_id" env:"INVITE_CHANNEL_ID"`
	FooterText      string `json:"footer_text" yaml:"footer_text" env:"FOOTER_TEXT"`
	FooterIconURL   string `json:"footer_icon_url" yaml:"footer_icon_url" env:"FOOTER_ICON_URL"`

	Database database.Config `json:"database" yaml:"database" envPrefix:"DATABASE_"`
	Redis    redis.Config    `json:"redis" yaml:"redis" envPrefix:"REDIS_"`
	Platform PlatformConfig  `json:"platform" yaml:"platform" envPrefix:"PLATFORM_"`
	Approval ApprovalConfig  `json:"approval" yaml:"approval" envPrefix:"APPROVAL_"`
	Vouch    VouchConfig     `json:"vouch" yaml:"vouch" envPrefix:"VOUCH_"`
	Metrics  MetricsConfig   `json:"metrics" yaml:"metrics" envPrefix:"METRICS_"`
	Log      LogConfig       `json:"log" yaml:"log" envPrefix:"LOG_"`
}

type PlatformConfig struct {
	Timeout Duration `json:"timeout" yaml:"timeout" env:"TIMEOUT"`
}

type ApprovalConfig struct {
	PromptTTL Duration `json:"prompt_ttl" yaml:"prompt_ttl" env:"PROMPT_TTL"`
}

type VouchConfig struct {
	Cooldown Duration `json:"cooldown" yaml:"cooldown" env:"COOLDOWN"`
}

type MetricsConfig struct {
	// Addr is the listen address of the ops server; empty disables it.
	Addr string `json:"addr" yaml:"addr" env:"ADDR"`
}

type LogConfig struct {
	Development bool   `json:"development" yaml:"development" env:"DEVELOPMENT"`
	Level       string `json:"level" yaml:"level" env:"LEVEL"`
}

// Default returns a configuration with every optional field filled in.
func Default() Config {
	return Config{
		FooterText: "Invite Tracker Bot",
		Database: database.Config{
			Driver: database.DriverSQLite,
			Path:   "invites.db",
			Postgres: database.PostgresConfig{
				Host:    "localhost",
				Port:    5432,
				SSLMode: "disable",
			},
		},
		Platform: PlatformConfig{Timeout: Duration(10 * time.Second)},
		Approval: ApprovalConfig{PromptTTL: Duration(time.Hour)},
		Vouch:    VouchConfig{Cooldown: Duration(10 * time.Second)},
		Log:      LogConfig{Level: "info"},
	}
}

// Load reads path (when non-empty) over the defaults, then applies
// environment overrides and validates the result.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read %s: %w", path, err)
		}
		if err := decode(path, data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse %s: %w", path, err)
		}
	}

	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func decode(path string, data []byte, cfg *Config) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return yaml.Unmarshal(data, cfg)
	default:
		return json.Unmarshal(data, cfg)
	}
}

func (c Config) Validate() error {
	var errs []error
	if c.Token == "" {
		errs = append(errs, errors.New("token is required"))
	}
	if c.GuildID == "" {
		errs = append(errs, errors.New("guild_id is required"))
	}
	if c.OwnerID == "" {
		errs = append(errs, errors.New("owner_id is required"))
	}
	switch c.Database.Driver {
	case database.DriverSQLite:
		if c.Database.Path == "" {
			errs = append(errs, errors.New("database.path is required for sqlite"))
		}
	case database.DriverPostgres:
		if c.Database.Postgres.Database == "" {
			errs = append(errs, errors.New("database.postgres.database is required"))
		}
	default:
		errs = append(errs, fmt.Errorf("unsupported database driver %q", c.Database.Driver))
	}
	if c.Platform.Timeout <= 0 {
		errs = append(errs, errors.New("platform.timeout must be positive"))
	}
	if c.Approval.PromptTTL <= 0 {
		errs = append(errs, errors.New("approval.prompt_ttl must be positive"))
	}
	if c.Vouch.Cooldown < 0 {
		errs = append(errs, errors.New("vouch.cooldown must not be negative"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}
