package cmd

import (
	"time"

	"github.com/spf13/cobra"

	"slicehouse/internal/config"
	"slicehouse/internal/secrets"
	"slicehouse/internal/snowflake"
	"slicehouse/internal/ui"
	"slicehouse/pkg/errors"
)

var exportCmd = &cobra.Command{
	Use:   "export [tables...]",
	Short: "Export warehouse tables to Snowflake",
	Long: "Pushes local tables into the configured Snowflake account. Without " +
		"arguments every table is exported.",
	RunE: runExport,
}

func init() {
	rootCmd.AddCommand(exportCmd)
}

// snowflakePassword resolves the password: keyring first, then the (possibly
// encrypted) config value.
func snowflakePassword(a *app) (string, error) {
	if pw, err := secrets.Get(secrets.AccountSnowflake); err == nil {
		return pw, nil
	}
	if a.cfg.Snowflake.Password != "" {
		return config.DecryptPassword(a.cfg.Snowflake.Password)
	}
	return "", errors.New(errors.ErrCodeCredentialsMissing, "no snowflake password available").
		WithSuggestions("Run 'slicehouse setup' to store credentials")
}

func runExport(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	password, err := snowflakePassword(a)
	if err != nil {
		return err
	}
	timeout, err := time.ParseDuration(a.cfg.Snowflake.Timeout)
	if err != nil {
		timeout = 30 * time.Second
	}

	svc := snowflake.NewService(snowflake.Config{
		Account:   a.cfg.Snowflake.Account,
		Username:  a.cfg.Snowflake.Username,
		Password:  password,
		Role:      a.cfg.Snowflake.Role,
		Warehouse: a.cfg.Snowflake.Warehouse,
		Database:  a.cfg.Snowflake.Database,
		Schema:    a.cfg.Snowflake.Schema,
		Timeout:   timeout,
	})
	if err := svc.Connect(cmd.Context()); err != nil {
		return err
	}
	defer svc.Close()

	tables := args
	if len(tables) == 0 {
		tables = a.wh.Names()
	}

	results, err := svc.Export(cmd.Context(), a.wh, tables)
	for _, res := range results {
		ui.ShowInfo("exported %-24s %6d rows in %s", res.Table, res.Rows, ui.FormatDuration(res.Duration))
	}
	if err != nil {
		return err
	}
	ui.ShowSuccess("Exported %d tables", len(results))
	return nil
}
