package connector

import (
	"context"
	"database/sql"
	"time"
)

// Execution is one row of request history.
type Execution struct {
	ID           int64     `json:"id"`
	Token        string    `json:"token"`
	CollectionID string    `json:"collectionId"`
	ItemUID      string    `json:"itemUid"`
	Method       string    `json:"method"`
	URL          string    `json:"url"`
	Status       int       `json:"status"`
	StatusText   string    `json:"statusText"`
	Outcome      string    `json:"outcome"`
	Error        string    `json:"error,omitempty"`
	DurationMS   int64     `json:"durationMs"`
	RanAt        time.Time `json:"ranAt"`
}

// TableNames represents database table names
type TableNames struct {
	Executions string
}

// Connector is implemented by each database backend.
type Connector interface {
	Connect() (*sql.DB, error)
	Load(config map[string]interface{}) error
	Ensure(th TableNames) error
	Record(ctx context.Context, th TableNames, e Execution) (int64, error)
	// List returns executions newest first. limit <= 0 returns all of them.
	List(ctx context.Context, th TableNames, limit int) ([]Execution, error)
	Close() error
}
