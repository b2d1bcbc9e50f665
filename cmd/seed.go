package cmd

import (
	"github.com/spf13/cobra"

	"slicehouse/internal/seed"
	"slicehouse/internal/store"
	"slicehouse/internal/ui"
	"slicehouse/pkg/errors"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Generate the synthetic pizzeria dataset",
	Long: "Generates customers, staff, menu, orders, reviews and inventory " +
		"counts into the embedded warehouse. Deterministic for a given seed.",
	RunE: runSeed,
}

func init() {
	seedCmd.Flags().Int64("seed", 0, "PRNG seed (0 uses the configured seed)")
	seedCmd.Flags().Bool("fresh", false, "discard any existing warehouse data first")
	rootCmd.AddCommand(seedCmd)
}

func runSeed(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	if fresh, _ := cmd.Flags().GetBool("fresh"); fresh {
		a.wh = store.NewWarehouse()
		if err := seed.EnsureSchema(a.wh); err != nil {
			return err
		}
	} else if orders, oErr := a.wh.Table("orders"); oErr == nil && orders.Count() > 0 {
		return errors.New(errors.ErrCodeValidationFailed, "warehouse already contains data").
			WithSuggestions("Re-run with --fresh to discard the existing warehouse")
	}

	prngSeed := a.cfg.Data.Seed
	if flagSeed, _ := cmd.Flags().GetInt64("seed"); flagSeed != 0 {
		prngSeed = flagSeed
	}

	stats, err := seed.Generate(cmd.Context(), a.wh, seed.Options{
		Seed:      prngSeed,
		Customers: a.cfg.Data.Customers,
		Days:      a.cfg.Data.Days,
		OrdersDay: a.cfg.Data.OrdersDay,
	})
	if err != nil {
		return err
	}
	if err := a.saveWarehouse(); err != nil {
		return err
	}

	ui.ShowSuccess("Seeded %d customers, %d orders (%d lines), %d reviews, %d inventory counts",
		stats.Customers, stats.Orders, stats.OrderItems, stats.Reviews, stats.Inventory)
	ui.ShowInfo("Warehouse snapshot: %s", a.snapshotPath())
	return nil
}
