package cmd

import (
	"fmt"

	"github.com/AlecAivazis/survey/v2"
	"github.com/spf13/cobra"

	"slicehouse/internal/config"
	"slicehouse/internal/secrets"
	"slicehouse/internal/ui"
	"slicehouse/pkg/models"
)

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Interactive configuration setup",
	RunE:  runSetup,
}

func init() {
	rootCmd.AddCommand(setupCmd)
}

func runSetup(cmd *cobra.Command, args []string) error {
	ui.ShowHeader("Slicehouse Setup")

	if config.Exists() {
		var overwrite bool
		prompt := &survey.Confirm{
			Message: "Configuration already exists. Overwrite it?",
			Default: false,
		}
		if err := survey.AskOne(prompt, &overwrite); err != nil {
			return err
		}
		if !overwrite {
			fmt.Println("Setup cancelled.")
			return nil
		}
	}

	cfg := config.Defaults()

	dataQs := []*survey.Question{
		{
			Name:   "customers",
			Prompt: &survey.Input{Message: "Customers to generate:", Default: "200"},
		},
		{
			Name:   "days",
			Prompt: &survey.Input{Message: "Days of order history:", Default: "90"},
		},
		{
			Name:   "ordersday",
			Prompt: &survey.Input{Message: "Average orders per day:", Default: "60"},
		},
	}
	dataAnswers := struct {
		Customers int
		Days      int
		OrdersDay int `survey:"ordersday"`
	}{}
	if err := survey.Ask(dataQs, &dataAnswers); err != nil {
		return err
	}
	cfg.Data.Customers = dataAnswers.Customers
	cfg.Data.Days = dataAnswers.Days
	cfg.Data.OrdersDay = dataAnswers.OrdersDay

	var wantSnowflake bool
	if err := survey.AskOne(&survey.Confirm{
		Message: "Configure a Snowflake export target?",
		Default: false,
	}, &wantSnowflake); err != nil {
		return err
	}
	if wantSnowflake {
		if err := askSnowflake(cfg); err != nil {
			return err
		}
	}

	var wantSync bool
	if err := survey.AskOne(&survey.Confirm{
		Message: "Configure a git repository for pipeline settings?",
		Default: false,
	}, &wantSync); err != nil {
		return err
	}
	if wantSync {
		if err := askSync(cfg); err != nil {
			return err
		}
	}

	if err := config.Save(cfg); err != nil {
		return err
	}
	ui.ShowSuccess("Configuration written to %s", config.File())
	ui.ShowInfo("Run 'slicehouse seed' to generate the dataset")
	return nil
}

func askSnowflake(cfg *models.Config) error {
	qs := []*survey.Question{
		{
			Name:     "account",
			Prompt:   &survey.Input{Message: "Snowflake account (e.g. xy12345.eu-west-1):"},
			Validate: survey.Required,
		},
		{
			Name:     "username",
			Prompt:   &survey.Input{Message: "Username:"},
			Validate: survey.Required,
		},
		{
			Name:     "password",
			Prompt:   &survey.Password{Message: "Password:"},
			Validate: survey.Required,
		},
		{
			Name:   "role",
			Prompt: &survey.Input{Message: "Role:", Default: "SYSADMIN"},
		},
		{
			Name:     "warehouse",
			Prompt:   &survey.Input{Message: "Warehouse:"},
			Validate: survey.Required,
		},
		{
			Name:     "database",
			Prompt:   &survey.Input{Message: "Database:"},
			Validate: survey.Required,
		},
		{
			Name:   "schema",
			Prompt: &survey.Input{Message: "Schema:", Default: "PUBLIC"},
		},
	}
	answers := struct {
		Account, Username, Password, Role, Warehouse, Database, Schema string
	}{}
	if err := survey.Ask(qs, &answers); err != nil {
		return err
	}

	cfg.Snowflake = models.Snowflake{
		Account:   answers.Account,
		Username:  answers.Username,
		Role:      answers.Role,
		Warehouse: answers.Warehouse,
		Database:  answers.Database,
		Schema:    answers.Schema,
		Timeout:   "30s",
	}

	// Prefer the OS keyring; fall back to an encrypted value in the file.
	if err := secrets.Set(secrets.AccountSnowflake, answers.Password); err != nil {
		ui.ShowWarning("Keyring unavailable, storing encrypted password in config: %v", err)
		encrypted, encErr := config.EncryptPassword(answers.Password)
		if encErr != nil {
			return encErr
		}
		cfg.Snowflake.Password = encrypted
	}
	return nil
}

func askSync(cfg *models.Config) error {
	qs := []*survey.Question{
		{
			Name:     "giturl",
			Prompt:   &survey.Input{Message: "Git URL:"},
			Validate: survey.Required,
		},
		{
			Name:   "branch",
			Prompt: &survey.Input{Message: "Branch:", Default: "main"},
		},
		{
			Name:   "path",
			Prompt: &survey.Input{Message: "Subdirectory (empty for repo root):"},
		},
		{
			Name:   "username",
			Prompt: &survey.Input{Message: "HTTPS username (empty for anonymous):"},
		},
	}
	answers := struct {
		GitURL   string `survey:"giturl"`
		Branch   string
		Path     string
		Username string
	}{}
	if err := survey.Ask(qs, &answers); err != nil {
		return err
	}
	cfg.Sync = models.SyncConfig{
		GitURL:   answers.GitURL,
		Branch:   answers.Branch,
		Path:     answers.Path,
		Username: answers.Username,
	}

	if answers.Username != "" {
		var token string
		if err := survey.AskOne(&survey.Password{Message: "Access token:"}, &token); err != nil {
			return err
		}
		if token != "" {
			if err := secrets.Set(secrets.AccountGitToken, token); err != nil {
				return err
			}
		}
	}
	return nil
}
