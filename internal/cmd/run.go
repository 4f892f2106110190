package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"codexloop/internal/agent"
	"codexloop/internal/audit"
	"codexloop/internal/config"
	"codexloop/internal/errors"
	"codexloop/internal/github"
	"codexloop/internal/logging"
	"codexloop/internal/preflight"
	"codexloop/internal/stream"
	"codexloop/internal/task"
	"codexloop/internal/workflow"
	"codexloop/internal/worktree"
)

var runCmd = &cobra.Command{
	Use:   "run <spec-file>",
	Short: "Run the implement and review loop for a specification",
	Long: `Run validates the environment, creates an isolated worktree, and drives
the coding agent through implement and review turns until the reviewer
approves or the review budget is exhausted. On approval the task branch is
pushed and a pull request is opened.`,
	Args: cobra.ExactArgs(1),
	RunE: runWorkflow,
}

func init() {
	runCmd.Flags().Int("max-reviews", 0, "maximum implement/review iterations (overrides config)")
	runCmd.Flags().String("base", "", "base branch for the task branch (default: repository main branch)")
	runCmd.Flags().String("model", "", "agent model override")
	runCmd.Flags().Bool("no-cleanup", false, "keep the worktree and branch after the run")
	runCmd.Flags().Bool("timestamps", false, "prefix progress lines with wall-clock time")
	runCmd.Flags().Bool("verbose", false, "print message kinds that are normally dropped")
	runCmd.Flags().Bool("quiet", false, "suppress tool call progress lines")

	_ = viper.BindPFlag("workflow.base_branch", runCmd.Flags().Lookup("base"))
	_ = viper.BindPFlag("agent.model", runCmd.Flags().Lookup("model"))
	_ = viper.BindPFlag("display.show_timestamps", runCmd.Flags().Lookup("timestamps"))
	_ = viper.BindPFlag("display.verbose", runCmd.Flags().Lookup("verbose"))

	rootCmd.AddCommand(runCmd)
}

func runWorkflow(cmd *cobra.Command, args []string) error {
	specPath := args[0]

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if n, _ := cmd.Flags().GetInt("max-reviews"); n > 0 {
		cfg.Workflow.MaxReviews = n
	}
	if noCleanup, _ := cmd.Flags().GetBool("no-cleanup"); noCleanup {
		cfg.Workflow.Cleanup = false
	}
	if quiet, _ := cmd.Flags().GetBool("quiet"); quiet {
		cfg.Display.ShowToolCalls = false
	}

	workDir, err := os.Getwd()
	if err != nil {
		return err
	}

	// Preflight runs before the file logger exists so that a rejected
	// environment leaves nothing behind, not even the state directory.
	pf := preflight.New(cfg, workDir, nil).ValidateEnvironment()
	for _, w := range pf.Warnings {
		fmt.Fprintf(cmd.ErrOrStderr(), "warning: %s\n", w)
	}
	if !pf.Success {
		for _, e := range pf.Errors {
			fmt.Fprintf(cmd.ErrOrStderr(), "error: %s\n", e)
		}
		return errors.NewPreflightError(pf.Errors)
	}

	logger, err := buildLogger(cfg, workDir)
	if err != nil {
		return err
	}
	defer logger.Close()

	repoRoot, err := worktree.FindGitRoot(workDir)
	if err != nil {
		return err
	}
	worktrees, err := worktree.New(workDir, cfg.Paths.ResolveWorktreeDir(repoRoot), logger)
	if err != nil {
		return err
	}

	stateDir := cfg.Paths.ResolveStateDir(repoRoot)
	store := task.NewStore(stateDir, logger)
	auditWriter := audit.NewWriter(stateDir, logger)
	runner := agent.NewClaudeRunner(cfg.Agent.Binary, logger)
	prs := github.NewClient(repoRoot, logger)
	display := stream.New(cmd.OutOrStdout(), stream.Options{
		ShowToolCalls:  cfg.Display.ShowToolCalls,
		ShowTimestamps: cfg.Display.ShowTimestamps,
		Verbose:        cfg.Display.Verbose,
	})

	engine := workflow.New(cfg, store, worktrees, runner, prs, auditWriter, display, nil, logger)
	result, err := engine.Run(cmd.Context(), specPath)
	if err != nil {
		return err
	}

	printResult(cmd, store, result)
	if !result.Success {
		return fmt.Errorf("task %s failed: %s", result.TaskID, result.Error)
	}
	return nil
}

func printResult(cmd *cobra.Command, store *task.Store, result *workflow.Result) {
	out := cmd.OutOrStdout()
	fmt.Fprintln(out)
	if result.Success {
		fmt.Fprintf(out, "task %s succeeded after %d iteration(s)\n", result.TaskID, result.Iterations)
		if result.PRURL != "" {
			fmt.Fprintf(out, "pull request: %s\n", result.PRURL)
		}
	} else {
		fmt.Fprintf(out, "task %s failed after %d iteration(s): %s\n", result.TaskID, result.Iterations, result.Error)
	}

	if st, err := store.Load(result.TaskID); err == nil {
		var cost float64
		for _, r := range st.CoderResponses {
			cost += r.Cost
		}
		for _, r := range st.ReviewerResponses {
			cost += r.Cost
		}
		if cost > 0 {
			fmt.Fprintf(out, "total agent cost: $%.4f\n", cost)
		}
		fmt.Fprintf(out, "state file: %s\n", store.Path(result.TaskID))
	}
}

func buildLogger(cfg *config.Config, workDir string) (*logging.Logger, error) {
	if !cfg.Logging.Enabled {
		return logging.NopLogger(), nil
	}
	repoRoot, err := worktree.FindGitRoot(workDir)
	if err != nil {
		repoRoot = workDir
	}
	return logging.NewLogger(cfg.Paths.ResolveStateDir(repoRoot), cfg.Logging.Level)
}
