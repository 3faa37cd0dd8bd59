package status

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/fatih/color"

	"github.com/loykin/reqpipe"
	"github.com/loykin/reqpipe/internal/constants"
)

// HistoryItem is a single recorded execution.
// RanAt is an RFC3339 timestamp in UTC.
type HistoryItem struct {
	ID         int64
	Token      string
	Collection string
	Item       string
	Method     string
	URL        string
	Status     int
	StatusText string
	Outcome    string
	Error      string
	DurationMS int64
	RanAt      string
}

// Info aggregates recorded executions, newest first.
type Info struct {
	History []HistoryItem
}

// FromStore reads every recorded execution from an opened store.
func FromStore(ctx context.Context, st *reqpipe.Store) (Info, error) {
	runs, err := st.List(ctx, 0)
	if err != nil {
		return Info{}, err
	}
	items := make([]HistoryItem, 0, len(runs))
	for _, r := range runs {
		items = append(items, HistoryItem{
			ID:         r.ID,
			Token:      r.Token,
			Collection: r.CollectionID,
			Item:       r.ItemUID,
			Method:     r.Method,
			URL:        r.URL,
			Status:     r.Status,
			StatusText: r.StatusText,
			Outcome:    r.Outcome,
			Error:      r.Error,
			DurationMS: r.DurationMS,
			RanAt:      r.RanAt.UTC().Format(time.RFC3339),
		})
	}
	return Info{History: items}, nil
}

// FromOptions opens a store using the provided options, collects history, and closes it.
func FromOptions(ctx context.Context, dir string, cfg *reqpipe.StoreConfig) (Info, error) {
	st, err := reqpipe.OpenStoreFromOptions(dir, cfg)
	if err != nil {
		return Info{}, err
	}
	defer func() { _ = st.Close() }()
	return FromStore(ctx, st)
}

// Succeeded counts executions that returned a response.
func (i Info) Succeeded() int {
	n := 0
	for _, h := range i.History {
		if h.Outcome == "completed" || h.Outcome == "status_error" {
			n++
		}
	}
	return n
}

// FormatHuman prints up to limit entries newest-first. If all=true the entire
// history is printed and limit is ignored. Default behavior when limit<=0 is 10.
func (i Info) FormatHuman(limit int, all bool) string {
	return i.FormatColorized(limit, all, false)
}

// FormatColorized is FormatHuman with ANSI colors on the outcome column.
func (i Info) FormatColorized(limit int, all bool, colored bool) string {
	if len(i.History) == 0 {
		return "history: \n"
	}
	items := i.History
	if !all {
		if limit <= 0 {
			limit = constants.DefaultHistoryLimit
		}
		if len(items) > limit {
			items = items[:limit]
		}
	}
	var b strings.Builder
	fmt.Fprintf(&b, "history: %d of %d (%d with response)\n", len(items), len(i.History), i.Succeeded())
	for _, h := range items {
		fmt.Fprintf(&b, "#%d %s %s %s code=%d outcome=%s took=%dms at=%s",
			h.ID, h.Item, h.Method, h.URL, h.Status, paint(h.Outcome, outcomeColor(h.Outcome), colored), h.DurationMS, h.RanAt)
		if h.Error != "" {
			fmt.Fprintf(&b, " error=%q", h.Error)
		}
		b.WriteByte('\n')
	}
	return b.String()
}

func outcomeColor(outcome string) color.Attribute {
	switch outcome {
	case "completed":
		return color.FgGreen
	case "status_error":
		return color.FgYellow
	case "cancelled":
		return color.FgHiBlack
	default:
		return color.FgRed
	}
}

func paint(s string, attr color.Attribute, enabled bool) string {
	if !enabled {
		return s
	}
	c := color.New(attr)
	c.EnableColor()
	return c.Sprint(s)
}
