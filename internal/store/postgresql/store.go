package postgresql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/loykin/reqpipe/internal/common"
	"github.com/loykin/reqpipe/internal/store/connector"
)

// Store is the PostgreSQL history backend.
type Store struct {
	db      *sql.DB
	dialect *Dialect
	DSN     string
}

func NewStore() *Store {
	return &Store{dialect: NewDialect()}
}

func (p *Store) Load(config map[string]interface{}) error {
	if dsn, ok := config["dsn"].(string); ok && dsn != "" {
		p.DSN = dsn
	}
	return nil
}

func (p *Store) Connect() (*sql.DB, error) {
	if p.DSN == "" {
		return nil, errors.New("postgresql: dsn or host is required")
	}
	db, err := p.dialect.Connect(p.DSN)
	if err != nil {
		return nil, err
	}
	p.db = db
	common.GetLogger().WithStore(p.dialect.DriverName()).Debug("database connection established")
	return db, nil
}

func (p *Store) Close() error {
	if p.db != nil {
		return p.db.Close()
	}
	return nil
}

func (p *Store) Ensure(th connector.TableNames) error {
	logger := common.GetLogger().WithStore(p.dialect.DriverName())
	for i, q := range p.dialect.EnsureStatements(th.Executions) {
		if _, err := p.db.Exec(q); err != nil {
			logger.Error("failed to ensure schema", "error", err, "statement", i+1)
			return fmt.Errorf("failed to ensure schema statement %d: %w", i+1, err)
		}
	}
	return nil
}

func (p *Store) Record(ctx context.Context, th connector.TableNames, e connector.Execution) (int64, error) {
	ph := p.dialect.Placeholder
	q := fmt.Sprintf(`INSERT INTO %s (token, collection_id, item_uid, method, url, status, status_text, outcome, error, duration_ms, ran_at)
VALUES (%s, %s, %s, %s, %s, %s, %s, %s, %s, %s, %s) RETURNING id`, th.Executions,
		ph(1), ph(2), ph(3), ph(4), ph(5), ph(6), ph(7), ph(8), ph(9), ph(10), ph(11))
	var errText interface{}
	if e.Error != "" {
		errText = e.Error
	}
	var id int64
	err := p.db.QueryRowContext(ctx, q,
		e.Token, e.CollectionID, e.ItemUID, e.Method, e.URL, e.Status, e.StatusText,
		e.Outcome, errText, e.DurationMS, e.RanAt.UTC()).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to record execution %s: %w", e.Token, err)
	}
	return id, nil
}

func (p *Store) List(ctx context.Context, th connector.TableNames, limit int) ([]connector.Execution, error) {
	q := fmt.Sprintf(`SELECT id, token, collection_id, item_uid, method, url, status, status_text, outcome, error, duration_ms, ran_at
FROM %s ORDER BY id DESC`, th.Executions)
	args := []interface{}{}
	if limit > 0 {
		q += " LIMIT " + p.dialect.Placeholder(1)
		args = append(args, limit)
	}
	rows, err := p.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list executions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []connector.Execution
	for rows.Next() {
		var (
			e      connector.Execution
			errTxt sql.NullString
			ranAt  time.Time
		)
		if err := rows.Scan(&e.ID, &e.Token, &e.CollectionID, &e.ItemUID, &e.Method, &e.URL, &e.Status,
			&e.StatusText, &e.Outcome, &errTxt, &e.DurationMS, &ranAt); err != nil {
			return nil, fmt.Errorf("failed to scan execution: %w", err)
		}
		e.Error = errTxt.String
		e.RanAt = ranAt.UTC()
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating executions: %w", err)
	}
	return out, nil
}
