package cmd

import (
	"github.com/spf13/cobra"

	"slicehouse/internal/config"
	"slicehouse/internal/gitsync"
	"slicehouse/internal/ui"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Pull pipeline settings from the configured git repository",
	Long: "Clones or pulls the settings repository and merges its lag " +
		"overrides into the local configuration. The synced semantic model, " +
		"if any, is used by 'slicehouse semantic'.",
	RunE: runSync,
}

func init() {
	rootCmd.AddCommand(syncCmd)
}

func runSync(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	syncer := gitsync.NewSyncer(a.cfg.Sync, a.cfg.Data.Dir)
	if err := syncer.Sync(cmd.Context()); err != nil {
		return err
	}
	settings, err := syncer.Settings()
	if err != nil {
		return err
	}

	if len(settings.LagOverrides) > 0 {
		if a.cfg.Pipeline.LagOverrides == nil {
			a.cfg.Pipeline.LagOverrides = map[string]string{}
		}
		for table, lag := range settings.LagOverrides {
			a.cfg.Pipeline.LagOverrides[table] = lag
			ui.ShowInfo("lag override: %s -> %s", table, lag)
		}
		if err := config.Save(a.cfg); err != nil {
			return err
		}
	}
	if path := syncer.SemanticModelPath(); path != "" {
		ui.ShowInfo("semantic model synced: %s", path)
	}
	ui.ShowSuccess("Synced %s", a.cfg.Sync.GitURL)
	return nil
}
