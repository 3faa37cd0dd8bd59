package postgresql

import (
	"database/sql"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/loykin/reqpipe/internal/constants"
)

// Dialect implements SQL dialect for PostgreSQL
type Dialect struct{}

func NewDialect() *Dialect {
	return &Dialect{}
}

// Placeholder returns PostgreSQL-style placeholders ($1, $2, etc.)
func (p *Dialect) Placeholder(index int) string {
	return fmt.Sprintf("$%d", index)
}

// Connect opens a pooled pgx connection and pings it.
func (p *Dialect) Connect(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open PostgreSQL connection: %w", err)
	}
	db.SetMaxOpenConns(constants.DefaultPostgresMaxConnections)
	db.SetMaxIdleConns(constants.DefaultPostgresMaxIdleConns)
	db.SetConnMaxLifetime(constants.DefaultMaxConnLifetime)
	db.SetConnMaxIdleTime(constants.DefaultMaxIdleTime)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping PostgreSQL database: %w", err)
	}
	return db, nil
}

// EnsureStatements returns PostgreSQL-specific table creation statements
func (p *Dialect) EnsureStatements(executions string) []string {
	return []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	id BIGSERIAL PRIMARY KEY,
	token TEXT NOT NULL,
	collection_id TEXT NOT NULL,
	item_uid TEXT NOT NULL,
	method TEXT NOT NULL,
	url TEXT NOT NULL,
	status INTEGER NOT NULL DEFAULT 0,
	status_text TEXT NOT NULL DEFAULT '',
	outcome TEXT NOT NULL,
	error TEXT NULL,
	duration_ms BIGINT NOT NULL DEFAULT 0,
	ran_at TIMESTAMPTZ NOT NULL
)`, executions),
		fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s_collection_idx ON %s (collection_id)", executions, executions),
	}
}

func (p *Dialect) DriverName() string {
	return "postgresql"
}
