package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"slicehouse/internal/proc"
	"slicehouse/internal/quality"
	"slicehouse/internal/ui"
	"slicehouse/pkg/errors"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Run data quality checks over the warehouse",
	RunE:  runValidate,
}

var validatePayloadCmd = &cobra.Command{
	Use:   "payload <file.json>",
	Short: "Validate an incoming order payload",
	Args:  cobra.ExactArgs(1),
	RunE:  runValidatePayload,
}

func init() {
	validateCmd.AddCommand(validatePayloadCmd)
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	results, err := quality.RunAll(cmd.Context(), a.wh)
	if err != nil {
		return err
	}

	ui.ShowHeader("Data Quality")
	ui.QualityTable(os.Stdout, results)

	failed := 0
	for _, r := range results {
		if !r.Passed() {
			failed++
		}
	}
	if failed > 0 {
		return errors.New(errors.ErrCodeValidationFailed,
			fmt.Sprintf("%d of %d checks failed", failed, len(results)))
	}
	ui.ShowSuccess("All %d checks passed", len(results))
	return nil
}

func runValidatePayload(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0]) // #nosec G304 - user-supplied input file
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInvalidInput, "cannot read payload file")
	}

	res, err := proc.ValidateOrderPayload(data)
	if err != nil {
		return err
	}
	if res.Valid {
		ui.ShowSuccess("Payload is valid")
		return nil
	}
	for _, issue := range res.Issues {
		ui.ShowWarning("%s", issue)
	}
	return errors.New(errors.ErrCodeValidationFailed,
		fmt.Sprintf("payload has %d issues", len(res.Issues)))
}
