// Package worktree manages the isolated git workspaces tasks run in. Each
// task gets its own branch and its own worktree path outside the primary
// checkout, so a failed or concurrent run never dirties the caller's tree.
package worktree

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"codexloop/internal/errors"
	"codexloop/internal/logging"
)

// Info identifies a task's isolated workspace.
type Info struct {
	Path       string `json:"path"`
	Branch     string `json:"branch"`
	BaseBranch string `json:"baseBranch"`
}

// Manager handles git worktree operations for task workspaces.
type Manager struct {
	repoRoot    string
	worktreeDir string
	logger      *logging.Logger
}

// FindGitRoot finds the root of the git repository by traversing up from
// startDir. It returns the directory containing .git, which can be a
// directory for a normal repo or a file for a worktree.
func FindGitRoot(startDir string) (string, error) {
	dir := startDir
	for {
		gitPath := filepath.Join(dir, ".git")
		if info, err := os.Stat(gitPath); err == nil {
			if info.IsDir() || info.Mode().IsRegular() {
				return dir, nil
			}
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", errors.ErrNotGitRepository
		}
		dir = parent
	}
}

// New creates a Manager rooted at the repository containing startDir.
// Worktrees are created under worktreeDir.
func New(startDir, worktreeDir string, logger *logging.Logger) (*Manager, error) {
	gitRoot, err := FindGitRoot(startDir)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &Manager{repoRoot: gitRoot, worktreeDir: worktreeDir, logger: logger}, nil
}

// RepoRoot returns the repository root the manager operates on.
func (m *Manager) RepoRoot() string {
	return m.repoRoot
}

// Create creates a new branch off baseBranch and materializes it as a
// worktree for the given task. If baseBranch is empty the repository's main
// branch is used. The worktree path and branch name are derived from the
// task id, so no two tasks ever share a workspace.
func (m *Manager) Create(taskID, branchName, baseBranch string) (*Info, error) {
	if baseBranch == "" {
		baseBranch = m.FindMainBranch()
	}
	path := filepath.Join(m.worktreeDir, taskID)

	if _, err := os.Stat(path); err == nil {
		return nil, errors.NewWorkspaceError("worktree path already exists", errors.ErrWorktreeExists).
			WithBranch(branchName).WithPath(path)
	}
	if err := os.MkdirAll(m.worktreeDir, 0o755); err != nil {
		return nil, errors.NewWorkspaceError("failed to create worktree parent directory", err).
			WithPath(m.worktreeDir)
	}

	cmd := exec.Command("git", "worktree", "add", "-b", branchName, path, baseBranch)
	cmd.Dir = m.repoRoot
	if output, err := cmd.CombinedOutput(); err != nil {
		cause := err
		if strings.Contains(string(output), "already exists") {
			cause = errors.ErrBranchExists
		}
		return nil, errors.NewWorkspaceError("failed to create worktree", cause).
			WithBranch(branchName).WithPath(path).WithGitOutput(string(output))
	}

	m.logger.Info("created task worktree",
		"task_id", taskID,
		"branch", branchName,
		"base", baseBranch,
		"path", path)

	return &Info{Path: path, Branch: branchName, BaseBranch: baseBranch}, nil
}

// Cleanup removes a task's worktree and branch registration. It is
// idempotent: calling it twice, or for a workspace that was never created,
// does nothing. Failures are logged rather than returned since cleanup runs
// during failure handling where an error would mask the original one.
func (m *Manager) Cleanup(info *Info) {
	if info == nil || info.Path == "" {
		return
	}

	if _, err := os.Stat(info.Path); err == nil {
		cmd := exec.Command("git", "worktree", "remove", "--force", info.Path)
		cmd.Dir = m.repoRoot
		if output, err := cmd.CombinedOutput(); err != nil {
			m.logger.Warn("git worktree remove failed, removing path directly",
				"path", info.Path,
				"output", strings.TrimSpace(string(output)))
			_ = os.RemoveAll(info.Path)
		}
	}

	pruneCmd := exec.Command("git", "worktree", "prune")
	pruneCmd.Dir = m.repoRoot
	_ = pruneCmd.Run()

	if info.Branch != "" && m.branchExists(info.Branch) {
		cmd := exec.Command("git", "branch", "-D", info.Branch)
		cmd.Dir = m.repoRoot
		if output, err := cmd.CombinedOutput(); err != nil {
			m.logger.Warn("failed to delete task branch",
				"branch", info.Branch,
				"output", strings.TrimSpace(string(output)))
		}
	}

	m.logger.Debug("cleaned up task workspace", "path", info.Path, "branch", info.Branch)
}

// HasUncommittedChanges checks whether the worktree has uncommitted changes.
func (m *Manager) HasUncommittedChanges(path string) (bool, error) {
	cmd := exec.Command("git", "status", "--porcelain")
	cmd.Dir = path

	output, err := cmd.Output()
	if err != nil {
		return false, errors.NewWorkspaceError("failed to check status", err).WithPath(path)
	}
	return len(strings.TrimSpace(string(output))) > 0, nil
}

// CommitAll stages and commits all changes in the worktree. A worktree with
// nothing to commit is not an error.
func (m *Manager) CommitAll(path, message string) error {
	addCmd := exec.Command("git", "add", "-A")
	addCmd.Dir = path
	if output, err := addCmd.CombinedOutput(); err != nil {
		return errors.NewWorkspaceError("failed to stage changes", err).
			WithPath(path).WithGitOutput(string(output))
	}

	commitCmd := exec.Command("git", "commit", "-m", message)
	commitCmd.Dir = path
	if output, err := commitCmd.CombinedOutput(); err != nil {
		if strings.Contains(string(output), "nothing to commit") {
			return nil
		}
		return errors.NewWorkspaceError("failed to commit", err).
			WithPath(path).WithGitOutput(string(output))
	}
	return nil
}

// Push pushes the worktree's branch to origin, setting the upstream.
func (m *Manager) Push(path string) error {
	cmd := exec.Command("git", "push", "-u", "origin", "HEAD")
	cmd.Dir = path

	if output, err := cmd.CombinedOutput(); err != nil {
		return errors.NewWorkspaceError("failed to push branch", err).
			WithPath(path).WithGitOutput(string(output))
	}
	return nil
}

// HasCommitsBeyond reports whether the worktree's branch has commits beyond
// the base branch.
func (m *Manager) HasCommitsBeyond(path, baseBranch string) (bool, error) {
	cmd := exec.Command("git", "rev-list", "--count", baseBranch+"..HEAD")
	cmd.Dir = path

	output, err := cmd.Output()
	if err != nil {
		return false, errors.NewWorkspaceError("failed to count commits", err).WithPath(path)
	}

	count := 0
	_, _ = fmt.Sscanf(strings.TrimSpace(string(output)), "%d", &count)
	return count > 0, nil
}

// List returns the paths of all registered worktrees.
func (m *Manager) List() ([]string, error) {
	cmd := exec.Command("git", "worktree", "list", "--porcelain")
	cmd.Dir = m.repoRoot

	output, err := cmd.Output()
	if err != nil {
		return nil, errors.NewWorkspaceError("failed to list worktrees", err)
	}

	var worktrees []string
	for _, line := range strings.Split(string(output), "\n") {
		if strings.HasPrefix(line, "worktree ") {
			worktrees = append(worktrees, strings.TrimPrefix(line, "worktree "))
		}
	}
	return worktrees, nil
}

// FindMainBranch returns the repository's main branch name, main or master.
func (m *Manager) FindMainBranch() string {
	cmd := exec.Command("git", "rev-parse", "--verify", "main")
	cmd.Dir = m.repoRoot
	if err := cmd.Run(); err == nil {
		return "main"
	}
	return "master"
}

func (m *Manager) branchExists(branch string) bool {
	cmd := exec.Command("git", "rev-parse", "--verify", "refs/heads/"+branch)
	cmd.Dir = m.repoRoot
	return cmd.Run() == nil
}
