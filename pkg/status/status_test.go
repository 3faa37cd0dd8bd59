package status

import (
	"context"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/loykin/reqpipe"
)

// helper to open a temp sqlite store under a temp dir for status tests
func openTempStoreForStatus(t *testing.T) *reqpipe.Store {
	t.Helper()
	dir := t.TempDir()
	cfg := &reqpipe.StoreConfig{}
	cfg.Config.Driver = reqpipe.DriverSqlite
	cfg.Config.DriverConfig = &reqpipe.SqliteConfig{Path: filepath.Join(dir, reqpipe.StoreDBFileName)}
	st, err := reqpipe.OpenStoreFromOptions(dir, cfg)
	if err != nil {
		t.Fatalf("OpenStoreFromOptions: %v", err)
	}
	return st
}

func history(n int) Info {
	var i Info
	for id := n; id >= 1; id-- {
		i.History = append(i.History, HistoryItem{ID: int64(id), Item: "it", Method: "GET", URL: "http://h", Status: 200, Outcome: "completed", RanAt: "t"})
	}
	return i
}

func TestFormatHuman_Empty(t *testing.T) {
	if got := (Info{}).FormatHuman(0, false); got != "history: \n" {
		t.Fatalf("unexpected output %q", got)
	}
}

func TestFormatHuman_Limit(t *testing.T) {
	got := history(5).FormatHuman(3, false)
	re := regexp.MustCompile(`(?s)^history: 3 of 5 \(5 with response\)\n#5 .*\n#4 .*\n#3 .*\n$`)
	if !re.MatchString(got) {
		t.Fatalf("unexpected output with limit:\n%s", got)
	}
}

func TestFormatHuman_DefaultLimitAndAll(t *testing.T) {
	i := history(12)
	if got := strings.Count(i.FormatHuman(0, false), "\n#"); got != 10 {
		t.Fatalf("default limit printed %d entries", got)
	}
	if got := strings.Count(i.FormatHuman(1, true), "\n#"); got != 12 {
		t.Fatalf("all printed %d entries", got)
	}
}

func TestFormatColorized(t *testing.T) {
	i := Info{History: []HistoryItem{{ID: 1, Outcome: "transport_error", Error: "dial tcp: refused"}}}
	got := i.FormatColorized(0, false, true)
	if !strings.Contains(got, "\x1b[31mtransport_error\x1b[0m") {
		t.Fatalf("expected colored outcome:\n%q", got)
	}
	if !strings.Contains(got, `error="dial tcp: refused"`) {
		t.Fatalf("expected error column:\n%s", got)
	}
	if strings.Contains(i.FormatHuman(0, false), "\033[") {
		t.Fatal("plain output contains escape codes")
	}
}

func TestFromStore_Empty(t *testing.T) {
	st := openTempStoreForStatus(t)
	t.Cleanup(func() { _ = st.Close() })
	i, err := FromStore(context.Background(), st)
	if err != nil {
		t.Fatalf("FromStore: %v", err)
	}
	if len(i.History) != 0 {
		t.Fatalf("unexpected history: %+v", i)
	}
}

func TestFromStore_WithRuns(t *testing.T) {
	st := openTempStoreForStatus(t)
	t.Cleanup(func() { _ = st.Close() })
	ctx := context.Background()
	base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	for n, outcome := range []string{"completed", "cancelled"} {
		_, err := st.Record(ctx, reqpipe.Execution{
			Token: "t", CollectionID: "c", ItemUID: "i", Method: "GET", URL: "http://h",
			Outcome: outcome, RanAt: base.Add(time.Duration(n) * time.Minute),
		})
		if err != nil {
			t.Fatalf("Record: %v", err)
		}
	}
	i, err := FromStore(ctx, st)
	if err != nil {
		t.Fatalf("FromStore: %v", err)
	}
	if len(i.History) != 2 || i.History[0].Outcome != "cancelled" {
		t.Fatalf("expected newest first: %+v", i.History)
	}
	if i.History[1].RanAt != "2026-01-02T03:04:05Z" {
		t.Fatalf("unexpected RanAt %q", i.History[1].RanAt)
	}
	if i.Succeeded() != 1 {
		t.Fatalf("Succeeded = %d", i.Succeeded())
	}
}
