package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"slicehouse/internal/gitsync"
	"slicehouse/internal/semantic"
	"slicehouse/internal/ui"
	"slicehouse/pkg/errors"
)

var semanticCmd = &cobra.Command{
	Use:   "semantic",
	Short: "Inspect and validate the semantic model",
}

var semanticShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the semantic model",
	RunE:  runSemanticShow,
}

var semanticValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check the semantic model against the warehouse",
	RunE:  runSemanticValidate,
}

func init() {
	semanticCmd.PersistentFlags().String("model", "", "semantic model file (default: synced or embedded model)")
	semanticCmd.AddCommand(semanticShowCmd, semanticValidateCmd)
	rootCmd.AddCommand(semanticCmd)
}

// loadModel resolves the semantic model: explicit flag, then the synced
// repository, then the embedded default.
func loadModel(cmd *cobra.Command, a *app) (*semantic.Model, string, error) {
	if path, _ := cmd.Flags().GetString("model"); path != "" {
		m, err := semantic.Load(path)
		return m, path, err
	}
	if a.cfg.Sync.GitURL != "" {
		syncer := gitsync.NewSyncer(a.cfg.Sync, a.cfg.Data.Dir)
		if path := syncer.SemanticModelPath(); path != "" {
			m, err := semantic.Load(path)
			return m, path, err
		}
	}
	m, err := semantic.Default()
	return m, "embedded", err
}

func runSemanticShow(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	m, source, err := loadModel(cmd, a)
	if err != nil {
		return err
	}

	ui.ShowHeader("Semantic Model")
	ui.ShowInfo("source: %s", source)
	fmt.Printf("\n%s: %s\n", m.Name, m.Description)
	for _, t := range m.Tables {
		fmt.Printf("\n  %s\n", ui.ColorBold(t.Name))
		if t.Description != "" {
			fmt.Printf("    %s\n", ui.ColorDim(t.Description))
		}
		for _, d := range t.Dimensions {
			fmt.Printf("    dim  %-20s -> %s\n", d.Name, d.Column)
		}
		for _, d := range t.TimeDimensions {
			fmt.Printf("    time %-20s -> %s\n", d.Name, d.Column)
		}
		for _, meas := range t.Measures {
			fmt.Printf("    meas %-20s -> %s(%s)\n", meas.Name, meas.Aggregation, meas.Column)
		}
	}
	return nil
}

func runSemanticValidate(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	m, source, err := loadModel(cmd, a)
	if err != nil {
		return err
	}

	issues := semantic.Validate(m, a.wh)
	if len(issues) == 0 {
		ui.ShowSuccess("Semantic model (%s) matches the warehouse", source)
		return nil
	}
	for _, issue := range issues {
		ui.ShowWarning("%s", issue)
	}
	return errors.New(errors.ErrCodeValidationFailed,
		fmt.Sprintf("semantic model has %d issues", len(issues)))
}
