package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

var (
	// ErrInviteCodeTaken is returned when a code is already registered to another inviter.
	ErrInviteCodeTaken = errors.New("invite code is registered to another user")
)

type Database struct {
	db     *sql.DB
	driver string
}

type Config struct {
	Driver   string         `json:"driver" yaml:"driver" env:"DRIVER"`
	Path     string         `json:"path" yaml:"path" env:"PATH"`
	Postgres PostgresConfig `json:"postgres" yaml:"postgres" envPrefix:"POSTGRES_"`
}

type PostgresConfig struct {
	Host     string `json:"host" yaml:"host" env:"HOST"`
	Port     int    `json:"port" yaml:"port" env:"PORT"`
	User     string `json:"user" yaml:"user" env:"USER"`
	Password string `json:"password" yaml:"password" env:"PASSWORD"`
	Database string `json:"database" yaml:"database" env:"DATABASE"`
	SSLMode  string `json:"sslmode" yaml:"sslmode" env:"SSLMODE"`
}

const schemaTemplate = `
-- Invite codes tracked for a member
CREATE TABLE IF NOT EXISTS registered_invites (
    inviter_id TEXT PRIMARY KEY,
    invite_code TEXT NOT NULL UNIQUE
);

-- One row per attributed member, first attribution wins
CREATE TABLE IF NOT EXISTS joins (
    member_id TEXT PRIMARY KEY,
    inviter_id TEXT NOT NULL,
    join_date TEXT NOT NULL
);

-- Process-wide key/value settings
CREATE TABLE IF NOT EXISTS settings (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL
);

-- Outstanding non-expiring invite requests
CREATE TABLE IF NOT EXISTS invite_requests (
    requester_id TEXT PRIMARY KEY,
    status TEXT NOT NULL
);

-- Vouch ledger
CREATE TABLE IF NOT EXISTS vouches (
    id %s,
    user_id TEXT NOT NULL,
    user_name TEXT NOT NULL,
    stars INTEGER NOT NULL,
    message TEXT NOT NULL,
    proof_url TEXT,
    vouched_by_id TEXT NOT NULL,
    vouched_by_name TEXT NOT NULL,
    timestamp TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_joins_inviter ON joins(inviter_id);
`

// NewDatabase opens the configured driver and bootstraps the schema.
func NewDatabase(cfg Config) (*Database, error) {
	switch cfg.Driver {
	case "", DriverSQLite:
		return Open(cfg.Path)
	case DriverPostgres:
		return openPostgres(cfg.Postgres)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}

// Open opens a SQLite database file and bootstraps the schema.
func Open(path string) (*Database, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	dsn := "file:" + filepath.Clean(path) +
		"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)&_txlock=immediate"

	db, err := sql.Open(DriverSQLite, dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// SQLite serializes writers anyway; one connection keeps transactions from tripping SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	return initialize(db, DriverSQLite)
}

func openPostgres(cfg PostgresConfig) (*Database, error) {
	sslMode := cfg.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	connStr := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Database, sslMode)

	db, err := sql.Open(DriverPostgres, connStr)
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(5)
	db.SetConnMaxIdleTime(5 * time.Minute)
	db.SetConnMaxLifetime(1 * time.Hour)

	return initialize(db, DriverPostgres)
}

func initialize(db *sql.DB, driver string) (*Database, error) {
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s db: %w", driver, err)
	}

	idColumn := "INTEGER PRIMARY KEY AUTOINCREMENT"
	if driver == DriverPostgres {
		idColumn = "BIGSERIAL PRIMARY KEY"
	}
	if _, err := db.Exec(fmt.Sprintf(schemaTemplate, idColumn)); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to init schema: %w", err)
	}

	return &Database{db: db, driver: driver}, nil
}

func (d *Database) Close() error {
	if d == nil || d.db == nil {
		return nil
	}
	return d.db.Close()
}

func (d *Database) Ping(ctx context.Context) error {
	return d.db.PingContext(ctx)
}

// Driver reports which SQL driver backs the store.
func (d *Database) Driver() string {
	return d.driver
}

// rebind rewrites ? placeholders into $n for postgres.
func (d *Database) rebind(query string) string {
	if d.driver != DriverPostgres {
		return query
	}
	var sb strings.Builder
	sb.Grow(len(query) + 8)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			sb.WriteByte('$')
			sb.WriteString(strconv.Itoa(n))
			continue
		}
		sb.WriteByte(query[i])
	}
	return sb.String()
}

// withTx runs fn inside a transaction, committing only if fn returns nil.
func (d *Database) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}
