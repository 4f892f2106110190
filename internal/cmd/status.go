package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"codexloop/internal/config"
	"codexloop/internal/logging"
	"codexloop/internal/task"
	"codexloop/internal/worktree"
)

var statusCmd = &cobra.Command{
	Use:   "status [task-id]",
	Short: "Show the state of recent tasks",
	Long: `Status lists recorded tasks, or shows one task in detail when a task id
is given. With --watch, the state directory is watched and the detail view
refreshes whenever the task's state file changes.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().Bool("watch", false, "keep watching the task's state file for changes")
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	store, err := openStore()
	if err != nil {
		return err
	}

	if len(args) == 0 {
		return printTaskList(cmd.OutOrStdout(), store)
	}

	taskID := args[0]
	if err := printTaskDetail(cmd.OutOrStdout(), store, taskID); err != nil {
		return err
	}

	if watch, _ := cmd.Flags().GetBool("watch"); watch {
		return watchTask(cmd, store, taskID)
	}
	return nil
}

func openStore() (*task.Store, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	workDir, err := os.Getwd()
	if err != nil {
		return nil, err
	}
	baseDir, err := worktree.FindGitRoot(workDir)
	if err != nil {
		baseDir = workDir
	}
	return task.NewStore(cfg.Paths.ResolveStateDir(baseDir), logging.NopLogger()), nil
}

func printTaskList(out io.Writer, store *task.Store) error {
	ids, err := store.List()
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		fmt.Fprintln(out, "no tasks recorded")
		return nil
	}

	for _, id := range ids {
		st, err := store.Load(id)
		if err != nil {
			fmt.Fprintf(out, "%-34s (unreadable: %v)\n", id, err)
			continue
		}
		fmt.Fprintf(out, "%-34s %-9s iter %d/%d  %s\n",
			st.TaskID, st.Status, st.CurrentIteration, st.MaxIterations,
			st.UpdatedAt.Local().Format("2006-01-02 15:04:05"))
	}
	return nil
}

func printTaskDetail(out io.Writer, store *task.Store, taskID string) error {
	st, err := store.Load(taskID)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "task:       %s\n", st.TaskID)
	fmt.Fprintf(out, "status:     %s\n", st.Status)
	fmt.Fprintf(out, "spec:       %s\n", st.SpecPath)
	fmt.Fprintf(out, "branch:     %s (from %s)\n", st.BranchName, st.WorktreeInfo.BaseBranch)
	fmt.Fprintf(out, "iterations: %d/%d\n", st.CurrentIteration, st.MaxIterations)
	if st.PRURL != "" {
		fmt.Fprintf(out, "pr:         %s\n", st.PRURL)
	}
	if st.Error != "" {
		fmt.Fprintf(out, "error:      %s\n", st.Error)
	}
	fmt.Fprintf(out, "updated:    %s\n", st.UpdatedAt.Local().Format("2006-01-02 15:04:05"))

	for i, r := range st.ReviewerResponses {
		verdictLine := firstVerdictLine(r.FinalResponse)
		if verdictLine != "" {
			fmt.Fprintf(out, "review %d:   %s\n", i+1, verdictLine)
		}
	}
	return nil
}

func firstVerdictLine(review string) string {
	for _, line := range strings.Split(review, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(strings.ToUpper(line), "VERDICT:") {
			return line
		}
	}
	return ""
}

// watchTask refreshes the detail view whenever the task's state file is
// rewritten. The watch is on the directory because saves go through a
// rename, which replaces the watched inode.
func watchTask(cmd *cobra.Command, store *task.Store, taskID string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := watcher.Add(store.Dir()); err != nil {
		return fmt.Errorf("failed to watch %s: %w", store.Dir(), err)
	}

	out := cmd.OutOrStdout()
	target := store.Path(taskID)
	fmt.Fprintln(out, "\nwatching for changes (ctrl-c to stop)")

	for {
		select {
		case <-cmd.Context().Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Name != target {
				continue
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
				continue
			}
			fmt.Fprintln(out)
			if err := printTaskDetail(out, store, taskID); err != nil {
				fmt.Fprintf(out, "state unreadable: %v\n", err)
			}
			if st, err := store.Load(taskID); err == nil && st.Status.Terminal() {
				return nil
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "watch error: %v\n", err)
		}
	}
}
