package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"codexloop/internal/config"
	"codexloop/internal/logging"
	"codexloop/internal/preflight"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check that the environment is ready for a run",
	Long: `Doctor runs the same environment validation a run performs and reports
every problem it finds instead of stopping at the first one.`,
	RunE: runDoctor,
}

func init() {
	rootCmd.AddCommand(doctorCmd)
}

func runDoctor(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	workDir, err := os.Getwd()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	res := preflight.New(cfg, workDir, logging.NopLogger()).ValidateEnvironment()

	if res.Success && len(res.Warnings) == 0 {
		fmt.Fprintln(out, "everything looks good")
		return nil
	}

	for _, e := range res.Errors {
		fmt.Fprintf(out, "error:   %s\n", e)
	}
	for _, w := range res.Warnings {
		fmt.Fprintf(out, "warning: %s\n", w)
	}

	if !res.Success {
		return fmt.Errorf("%d problem(s) must be fixed before running", len(res.Errors))
	}
	return nil
}
