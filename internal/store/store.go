// Package store keeps the history of request executions in SQLite or PostgreSQL.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"strings"

	"github.com/loykin/reqpipe/internal/common"
	"github.com/loykin/reqpipe/internal/constants"
	"github.com/loykin/reqpipe/internal/store/connector"
	"github.com/loykin/reqpipe/internal/store/postgresql"
	"github.com/loykin/reqpipe/internal/store/sqlite"
)

const (
	DriverSqlite     = "sqlite"
	DriverPostgresql = "postgresql"

	// DbFileName is the default SQLite file name.
	DbFileName = "reqpipe.db"
)

// Outcomes recorded for an execution.
const (
	OutcomeCompleted   = "completed"
	OutcomeStatusError = "status_error"
	OutcomeTransport   = "transport_error"
	OutcomeScript      = "script_error"
	OutcomeCancelled   = "cancelled"
	OutcomeRejected    = "rejected"
)

type (
	Execution      = connector.Execution
	TableNames     = connector.TableNames
	SqliteConfig   = sqlite.Config
	PostgresConfig = postgresql.Config
)

// DriverConfig is implemented by the per-driver configs.
type DriverConfig interface {
	ToMap() map[string]interface{}
}

type Config struct {
	Driver       string `mapstructure:"driver"`
	TablePrefix  string `mapstructure:"table_prefix"`
	DriverConfig DriverConfig
}

var prefixPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// TableNamesFor derives table names from an optional prefix.
func TableNamesFor(prefix string) (TableNames, error) {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		return TableNames{Executions: constants.DefaultExecutionsTable}, nil
	}
	if !prefixPattern.MatchString(prefix) {
		return TableNames{}, fmt.Errorf("invalid table prefix %q", prefix)
	}
	return TableNames{Executions: prefix + constants.ExecutionsSuffix}, nil
}

// Store records executions through a driver-specific connector.
type Store struct {
	DB     *sql.DB
	conn   connector.Connector
	tn     TableNames
	driver string
}

func newConnector(driver string) (connector.Connector, string, error) {
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "", DriverSqlite, "sqlite3":
		return sqlite.NewStore(), DriverSqlite, nil
	case DriverPostgresql, "postgres", "pg":
		return postgresql.NewStore(), DriverPostgresql, nil
	default:
		return nil, "", fmt.Errorf("unsupported store driver %q", driver)
	}
}

// Open connects to the configured database and ensures the schema exists.
func Open(cfg Config) (*Store, error) {
	conn, driver, err := newConnector(cfg.Driver)
	if err != nil {
		return nil, err
	}
	tn, err := TableNamesFor(cfg.TablePrefix)
	if err != nil {
		return nil, err
	}
	if cfg.DriverConfig != nil {
		if err := conn.Load(cfg.DriverConfig.ToMap()); err != nil {
			return nil, fmt.Errorf("load %s config: %w", driver, err)
		}
	}
	db, err := conn.Connect()
	if err != nil {
		return nil, err
	}
	if err := conn.Ensure(tn); err != nil {
		_ = conn.Close()
		return nil, err
	}
	common.GetLogger().WithStore(driver).Info("history store ready", "table", tn.Executions)
	return &Store{DB: db, conn: conn, tn: tn, driver: driver}, nil
}

func (s *Store) Driver() string { return s.driver }

func (s *Store) TableNames() TableNames { return s.tn }

// Record appends an execution and returns its id.
func (s *Store) Record(ctx context.Context, e Execution) (int64, error) {
	return s.conn.Record(ctx, s.tn, e)
}

// List returns executions newest first; limit <= 0 returns all.
func (s *Store) List(ctx context.Context, limit int) ([]Execution, error) {
	return s.conn.List(ctx, s.tn, limit)
}

func (s *Store) Close() error {
	if s == nil || s.conn == nil {
		return nil
	}
	return s.conn.Close()
}
