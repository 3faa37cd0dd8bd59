package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/loykin/reqpipe/pkg/status"
)

var (
	historyLimit int
	historyAll   bool
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recorded request executions, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := loadRuntime(cmd)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		opts := rt.doc.Store.StoreOptions(rt.dataDir)
		if opts == nil {
			_, _ = fmt.Fprintln(out, "Store is disabled - no execution history available")
			return nil
		}
		info, err := status.FromOptions(cmd.Context(), rt.dataDir, opts)
		if err != nil {
			return err
		}
		color := rt.doc.Logging.Color != nil && *rt.doc.Logging.Color
		_, _ = fmt.Fprint(out, info.FormatColorized(historyLimit, historyAll, color))
		return nil
	},
}

func init() {
	historyCmd.Flags().IntVar(&historyLimit, "limit", 10, "show up to N latest entries")
	historyCmd.Flags().BoolVar(&historyAll, "all", false, "show all entries and ignore --limit")
}
