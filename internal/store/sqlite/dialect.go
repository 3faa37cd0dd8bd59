package sqlite

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/loykin/reqpipe/internal/constants"
	_ "modernc.org/sqlite"
)

// Dialect implements SQL dialect for SQLite
type Dialect struct{}

func NewDialect() *Dialect {
	return &Dialect{}
}

// Placeholder returns SQLite-style placeholders (?)
func (s *Dialect) Placeholder(int) string {
	return "?"
}

// ConvertTimeToStorage stores times as RFC3339Nano text in UTC.
func (s *Dialect) ConvertTimeToStorage(t time.Time) interface{} {
	return t.UTC().Format(time.RFC3339Nano)
}

// ConvertTimeFromStorage parses the stored text; unparsable values yield the zero time.
func (s *Dialect) ConvertTimeFromStorage(val string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, val)
	if err != nil {
		return time.Time{}
	}
	return t
}

// DSN builds the modernc DSN for a database file.
func (s *Dialect) DSN(path string) string {
	return fmt.Sprintf("file:%s?_busy_timeout=%d&_fk=1", path, constants.DefaultSQLiteBusyTimeoutMS)
}

// Connect opens and pings the database. SQLite allows a single writer.
func (s *Dialect) Connect(dsn string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite connection: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping SQLite database: %w", err)
	}
	db.SetMaxOpenConns(constants.DefaultSQLiteMaxConnections)
	db.SetMaxIdleConns(constants.DefaultSQLiteMaxIdleConns)
	db.SetConnMaxLifetime(constants.DefaultSQLiteLifetime)
	db.SetConnMaxIdleTime(constants.DefaultSQLiteIdleTime)
	return db, nil
}

// EnsureStatements returns SQLite-specific table creation statements
func (s *Dialect) EnsureStatements(executions string) []string {
	return []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	token TEXT NOT NULL,
	collection_id TEXT NOT NULL,
	item_uid TEXT NOT NULL,
	method TEXT NOT NULL,
	url TEXT NOT NULL,
	status INTEGER NOT NULL DEFAULT 0,
	status_text TEXT NOT NULL DEFAULT '',
	outcome TEXT NOT NULL,
	error TEXT NULL,
	duration_ms INTEGER NOT NULL DEFAULT 0,
	ran_at TEXT NOT NULL
)`, executions),
		fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s_collection_idx ON %s (collection_id)", executions, executions),
	}
}

func (s *Dialect) DriverName() string {
	return "sqlite"
}
