package constants

import "time"

// Database Constants
const (
	// PostgreSQL defaults
	DefaultPostgresPort    = 5432
	DefaultPostgresSSLMode = "disable"

	// Connection pool settings
	DefaultPostgresMaxConnections = 25
	DefaultPostgresMaxIdleConns   = 5
	DefaultSQLiteMaxConnections   = 1 // SQLite allows only one writer
	DefaultSQLiteMaxIdleConns     = 1

	// SQLite busy timeout in milliseconds
	DefaultSQLiteBusyTimeoutMS = 5000

	DefaultExecutionsTable = "request_executions"
	ExecutionsSuffix       = "_request_executions"
)

// Time and Duration Constants
const (
	DefaultMaxConnLifetime = 5 * time.Minute
	DefaultMaxIdleTime     = 1 * time.Minute
	DefaultSQLiteLifetime  = 10 * time.Minute
	DefaultSQLiteIdleTime  = 5 * time.Minute

	DefaultScriptTimeout   = 10 * time.Second
	DefaultShutdownTimeout = 10 * time.Second
)

// Server and CLI defaults
const (
	DefaultServerAddr   = ":8420"
	DefaultHistoryLimit = 10
	DefaultEventBuffer  = 64
)
