// ./internal/state/db.go
package state

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/rs/zerolog/log"
)

// DB is a global database connection pool.
var DB *sql.DB

var ErrDBNotInitialized = errors.New("database not initialized")

// DBConfig holds database connection parameters.
type DBConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string // "disable", "require", "verify-full", etc.
}

// InitDB initializes the database connection pool.
func InitDB(cfg DBConfig) error {
	psqlInfo := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.SSLMode)

	var err error
	DB, err = sql.Open("postgres", psqlInfo)
	if err != nil {
		return fmt.Errorf("failed to open database connection: %w", err)
	}

	DB.SetMaxOpenConns(10)
	DB.SetMaxIdleConns(10)
	DB.SetConnMaxLifetime(5 * time.Minute)

	err = DB.Ping()
	if err != nil {
		DB.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	log.Info().Msg("Successfully connected to the PostgreSQL database!")
	return nil
}

// CloseDB closes the database connection pool.
func CloseDB() {
	if DB != nil {
		log.Info().Msg("Closing database connection...")
		if err := DB.Close(); err != nil {
			log.Error().Err(err).Msg("Error closing database connection")
		}
	}
}

const schemaSQL = `
	CREATE TABLE IF NOT EXISTS vault_config (
		id INTEGER PRIMARY KEY DEFAULT 1,
		owner TEXT NOT NULL,
		oracle_address TEXT NOT NULL,
		token_address TEXT NOT NULL,
		validator TEXT NOT NULL,
		contract_name VARCHAR(255) NOT NULL,
		contract_version VARCHAR(64) NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
		CONSTRAINT single_row_check CHECK (id = 1)
	);

	CREATE TABLE IF NOT EXISTS operation_receipts (
		receipt_id SERIAL PRIMARY KEY,
		request_id VARCHAR(64) NOT NULL,
		operation VARCHAR(50) NOT NULL,
		sender TEXT NOT NULL,
		success BOOLEAN NOT NULL,
		error_class VARCHAR(50),
		message TEXT,
		effects JSONB,
		tx_hash TEXT,
		receipt_timestamp TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_operation_receipts_timestamp ON operation_receipts(receipt_timestamp DESC);
	CREATE INDEX IF NOT EXISTS idx_operation_receipts_operation ON operation_receipts(operation);

	CREATE TABLE IF NOT EXISTS consumed_keys (
		kind VARCHAR(32) NOT NULL,
		key TEXT NOT NULL,
		consumed_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (kind, key)
	);
`

// EnsureSchema applies the necessary DDL to create tables if they don't exist.
func EnsureSchema() error {
	if DB == nil {
		return ErrDBNotInitialized
	}

	if _, err := DB.Exec(schemaSQL); err != nil {
		return fmt.Errorf("failed to execute schema DDL: %w", err)
	}
	log.Info().Msg("Database schema ensured.")
	return nil
}

// DropSchema removes every table owned by the service. Used by the reset script.
func DropSchema() error {
	if DB == nil {
		return ErrDBNotInitialized
	}

	if _, err := DB.Exec(`DROP TABLE IF EXISTS consumed_keys CASCADE; DROP TABLE IF EXISTS operation_receipts CASCADE; DROP TABLE IF EXISTS vault_config CASCADE;`); err != nil {
		return fmt.Errorf("failed to drop tables: %w", err)
	}
	log.Warn().Msg("Database tables dropped.")
	return nil
}

// TestDBConnection tests if the database connection is healthy
func TestDBConnection() error {
	if DB == nil {
		return ErrDBNotInitialized
	}

	// Use a short timeout context for health checks
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := DB.PingContext(ctx)
	if err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}

	return nil
}
