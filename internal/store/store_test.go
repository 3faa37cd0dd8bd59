package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func openTempStore(t *testing.T, prefix string) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), DbFileName)
	st, err := Open(Config{Driver: DriverSqlite, TablePrefix: prefix, DriverConfig: &SqliteConfig{Path: path}})
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func TestStore_RecordAndList(t *testing.T) {
	st := openTempStore(t, "")
	ctx := context.Background()
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	entries := []Execution{
		{Token: "t1", CollectionID: "c", ItemUID: "i1", Method: "GET", URL: "https://x/1", Status: 200, StatusText: "OK", Outcome: OutcomeCompleted, DurationMS: 12, RanAt: base},
		{Token: "t2", CollectionID: "c", ItemUID: "i2", Method: "POST", URL: "https://x/2", Status: 404, StatusText: "Not Found", Outcome: OutcomeStatusError, RanAt: base.Add(time.Second)},
		{Token: "t3", CollectionID: "c", ItemUID: "i3", Method: "GET", URL: "http://127.0.0.1:1", Outcome: OutcomeTransport, Error: "connection refused", RanAt: base.Add(2 * time.Second)},
	}
	for _, e := range entries {
		id, err := st.Record(ctx, e)
		if err != nil {
			t.Fatalf("Record(%s): %v", e.Token, err)
		}
		if id <= 0 {
			t.Fatalf("expected positive id, got %d", id)
		}
	}

	all, err := st.List(ctx, 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(all) != 3 || all[0].Token != "t3" || all[2].Token != "t1" {
		t.Fatalf("expected newest first, got %+v", all)
	}
	if all[0].Error != "connection refused" || all[2].Error != "" {
		t.Fatalf("error column mismatch: %q %q", all[0].Error, all[2].Error)
	}
	if !all[2].RanAt.Equal(base) || all[2].DurationMS != 12 || all[1].StatusText != "Not Found" {
		t.Fatalf("round trip mismatch: %+v", all[2])
	}

	limited, err := st.List(ctx, 2)
	if err != nil || len(limited) != 2 || limited[1].Token != "t2" {
		t.Fatalf("limited list: %v %+v", err, limited)
	}
}

func TestStore_TablePrefix(t *testing.T) {
	st := openTempStore(t, "team_a")
	if st.TableNames().Executions != "team_a_request_executions" {
		t.Fatalf("table = %s", st.TableNames().Executions)
	}
	row := st.DB.QueryRow(`SELECT name FROM sqlite_master WHERE type='table' AND name = ?`, "team_a_request_executions")
	var name string
	if err := row.Scan(&name); err != nil {
		t.Fatalf("expected prefixed table: %v", err)
	}
	if st.Driver() != DriverSqlite {
		t.Fatalf("driver = %s", st.Driver())
	}
}

func TestTableNamesFor(t *testing.T) {
	tests := []struct {
		prefix  string
		want    string
		wantErr bool
	}{
		{"", "request_executions", false},
		{"  ", "request_executions", false},
		{"app", "app_request_executions", false},
		{"bad-prefix", "", true},
		{"x; DROP TABLE y", "", true},
	}
	for _, tt := range tests {
		tn, err := TableNamesFor(tt.prefix)
		if (err != nil) != tt.wantErr {
			t.Fatalf("TableNamesFor(%q) err=%v", tt.prefix, err)
		}
		if !tt.wantErr && tn.Executions != tt.want {
			t.Fatalf("TableNamesFor(%q) = %s", tt.prefix, tn.Executions)
		}
	}
}

func TestOpen_Errors(t *testing.T) {
	if _, err := Open(Config{Driver: "mysql"}); err == nil {
		t.Fatalf("expected unsupported driver error")
	}
	if _, err := Open(Config{Driver: DriverPostgresql, DriverConfig: &PostgresConfig{}}); err == nil {
		t.Fatalf("expected missing dsn error")
	}
}

func TestOpen_InMemoryDefault(t *testing.T) {
	st, err := Open(Config{})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer func() { _ = st.Close() }()
	if _, err := st.Record(context.Background(), Execution{Token: "x", Outcome: OutcomeCompleted, RanAt: time.Now()}); err != nil {
		t.Fatalf("Record: %v", err)
	}
}
