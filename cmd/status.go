package cmd

import (
	"os"
	"time"

	"github.com/spf13/cobra"

	"slicehouse/internal/ui"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show derived-table freshness and pending changes",
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	st, err := a.pipelineStack(nil)
	if err != nil {
		return err
	}
	defer st.executor.Close()
	statuses, err := st.planner.Status(time.Now())
	if err != nil {
		return err
	}

	ui.ShowHeader("Pipeline Status")
	ui.StatusTable(os.Stdout, statuses)

	rows := 0
	for _, name := range a.wh.Names() {
		if tbl, err := a.wh.Table(name); err == nil {
			rows += tbl.Count()
		}
	}
	ui.ShowInfo("%d tables, %d rows in warehouse", len(a.wh.Names()), rows)
	return nil
}
