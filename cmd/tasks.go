package cmd

import (
	"os"

	"github.com/jonboulle/clockwork"
	"github.com/spf13/cobra"

	"slicehouse/internal/pizzeria"
	"slicehouse/internal/task"
	"slicehouse/internal/ui"
)

var tasksCmd = &cobra.Command{
	Use:   "tasks",
	Short: "List and run scheduled tasks",
}

var tasksListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the shipped task set",
	RunE: func(cmd *cobra.Command, args []string) error {
		ui.ShowHeader("Scheduled Tasks")
		ui.TaskTable(os.Stdout, pizzeria.Tasks())
		return nil
	},
}

var tasksRunCmd = &cobra.Command{
	Use:   "run [task]",
	Short: "Run one task (and its chained children), or all due tasks",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runTasks,
}

func init() {
	tasksCmd.AddCommand(tasksListCmd, tasksRunCmd)
	rootCmd.AddCommand(tasksCmd)
}

func runTasks(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	runner, err := task.NewRunner(clockwork.NewRealClock(), a.wh, pizzeria.Tasks(),
		task.WithLogger(a.logger),
		task.WithDisabled(a.cfg.Tasks.Disabled),
		task.WithHistorySize(a.cfg.Tasks.HistorySize))
	if err != nil {
		return err
	}

	var records []task.RunRecord
	if len(args) == 1 {
		records, err = runner.RunTask(cmd.Context(), args[0])
	} else {
		records, err = runner.RunDue(cmd.Context())
	}
	if err != nil {
		return err
	}
	if err := a.saveWarehouse(); err != nil {
		return err
	}

	if len(records) == 0 {
		ui.ShowInfo("No tasks were due")
		return nil
	}
	ui.TaskHistoryTable(os.Stdout, records)
	failed := 0
	for _, rec := range records {
		if rec.Failed() {
			failed++
		}
	}
	if failed > 0 {
		ui.ShowWarning("%d of %d task runs failed", failed, len(records))
	} else {
		ui.ShowSuccess("%d task runs completed", len(records))
	}
	return nil
}
