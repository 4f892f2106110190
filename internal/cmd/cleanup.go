package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"codexloop/internal/config"
	"codexloop/internal/logging"
	"codexloop/internal/task"
	"codexloop/internal/worktree"
)

var cleanupCmd = &cobra.Command{
	Use:   "cleanup [task-id]",
	Short: "Remove leftover task worktrees and branches",
	Long: `Cleanup removes the worktree and branch of a task whose run was
interrupted or retained. Without a task id it cleans up every task that is
no longer running. Task state files are never deleted.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runCleanup,
}

func init() {
	rootCmd.AddCommand(cleanupCmd)
}

func runCleanup(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	workDir, err := os.Getwd()
	if err != nil {
		return err
	}
	repoRoot, err := worktree.FindGitRoot(workDir)
	if err != nil {
		return err
	}

	logger := logging.NopLogger()
	store := task.NewStore(cfg.Paths.ResolveStateDir(repoRoot), logger)
	worktrees, err := worktree.New(workDir, cfg.Paths.ResolveWorktreeDir(repoRoot), logger)
	if err != nil {
		return err
	}

	var ids []string
	if len(args) == 1 {
		ids = []string{args[0]}
	} else {
		ids, err = store.List()
		if err != nil {
			return err
		}
	}

	out := cmd.OutOrStdout()
	cleaned := 0
	for _, id := range ids {
		st, err := store.Load(id)
		if err != nil {
			return err
		}
		if len(args) == 0 && st.Status == task.StatusRunning {
			continue
		}

		worktrees.Cleanup(&worktree.Info{
			Path:       st.WorktreeInfo.Path,
			Branch:     st.BranchName,
			BaseBranch: st.WorktreeInfo.BaseBranch,
		})
		fmt.Fprintf(out, "cleaned up %s\n", id)
		cleaned++
	}

	if cleaned == 0 {
		fmt.Fprintln(out, "nothing to clean up")
	}
	return nil
}
