package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/loykin/reqpipe/internal/common"
	"github.com/loykin/reqpipe/internal/store/connector"
)

// Store is the SQLite history backend.
type Store struct {
	db      *sql.DB
	dialect *Dialect
	DSN     string
}

func NewStore() *Store {
	return &Store{dialect: NewDialect()}
}

// Load accepts either "dsn" or "path".
func (s *Store) Load(config map[string]interface{}) error {
	if dsn, ok := config["dsn"].(string); ok && dsn != "" {
		s.DSN = dsn
		return nil
	}
	if path, ok := config["path"].(string); ok && path != "" {
		s.DSN = s.dialect.DSN(path)
	}
	return nil
}

// Connect opens the database; an empty DSN means an in-memory database.
func (s *Store) Connect() (*sql.DB, error) {
	if s.DSN == "" {
		s.DSN = ":memory:"
	}
	db, err := s.dialect.Connect(s.DSN)
	if err != nil {
		return nil, err
	}
	s.db = db
	common.GetLogger().WithStore(s.dialect.DriverName()).Debug("database connection established")
	return db, nil
}

func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *Store) Ensure(th connector.TableNames) error {
	logger := common.GetLogger().WithStore(s.dialect.DriverName())
	for i, q := range s.dialect.EnsureStatements(th.Executions) {
		if _, err := s.db.Exec(q); err != nil {
			logger.Error("failed to ensure schema", "error", err, "statement", i+1)
			return fmt.Errorf("failed to ensure schema statement %d: %w", i+1, err)
		}
	}
	return nil
}

func (s *Store) Record(ctx context.Context, th connector.TableNames, e connector.Execution) (int64, error) {
	q := fmt.Sprintf(`INSERT INTO %s (token, collection_id, item_uid, method, url, status, status_text, outcome, error, duration_ms, ran_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, th.Executions)
	var errText interface{}
	if e.Error != "" {
		errText = e.Error
	}
	res, err := s.db.ExecContext(ctx, q,
		e.Token, e.CollectionID, e.ItemUID, e.Method, e.URL, e.Status, e.StatusText,
		e.Outcome, errText, e.DurationMS, s.dialect.ConvertTimeToStorage(e.RanAt))
	if err != nil {
		return 0, fmt.Errorf("failed to record execution %s: %w", e.Token, err)
	}
	return res.LastInsertId()
}

func (s *Store) List(ctx context.Context, th connector.TableNames, limit int) ([]connector.Execution, error) {
	q := fmt.Sprintf(`SELECT id, token, collection_id, item_uid, method, url, status, status_text, outcome, error, duration_ms, ran_at
FROM %s ORDER BY id DESC`, th.Executions)
	args := []interface{}{}
	if limit > 0 {
		q += " LIMIT ?"
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list executions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []connector.Execution
	for rows.Next() {
		var (
			e      connector.Execution
			errTxt sql.NullString
			ranAt  string
		)
		if err := rows.Scan(&e.ID, &e.Token, &e.CollectionID, &e.ItemUID, &e.Method, &e.URL, &e.Status,
			&e.StatusText, &e.Outcome, &errTxt, &e.DurationMS, &ranAt); err != nil {
			return nil, fmt.Errorf("failed to scan execution: %w", err)
		}
		e.Error = errTxt.String
		e.RanAt = s.dialect.ConvertTimeFromStorage(ranAt)
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating executions: %w", err)
	}
	return out, nil
}
