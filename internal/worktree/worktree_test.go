package worktree

import (
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"codexloop/internal/errors"
)

// initRepo creates a git repository with one commit and returns its path.
func initRepo(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()

	run := func(args ...string) {
		t.Helper()
		cmd := exec.Command("git", args...)
		cmd.Dir = dir
		out, err := cmd.CombinedOutput()
		require.NoError(t, err, "git %v: %s", args, out)
	}

	run("init", "--initial-branch=main")
	run("config", "user.email", "test@example.com")
	run("config", "user.name", "Test")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "README.md"), []byte("# test\n"), 0o644))
	run("add", ".")
	run("commit", "-m", "initial commit")

	return dir
}

func newTestManager(t *testing.T) (*Manager, string) {
	t.Helper()
	repo := initRepo(t)
	mgr, err := New(repo, filepath.Join(t.TempDir(), "worktrees"), nil)
	require.NoError(t, err)
	return mgr, repo
}

func TestFindGitRoot(t *testing.T) {
	repo := initRepo(t)
	nested := filepath.Join(repo, "a", "b")
	require.NoError(t, os.MkdirAll(nested, 0o755))

	root, err := FindGitRoot(nested)
	require.NoError(t, err)
	assert.Equal(t, repo, root)
}

func TestFindGitRootOutsideRepo(t *testing.T) {
	_, err := FindGitRoot(t.TempDir())
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrNotGitRepository))
}

func TestCreateTaskWorktree(t *testing.T) {
	mgr, _ := newTestManager(t)

	info, err := mgr.Create("task-1000-aaaaaaaa", "codexloop/task-1000-aaaaaaaa", "")
	require.NoError(t, err)
	assert.DirExists(t, info.Path)
	assert.Equal(t, "codexloop/task-1000-aaaaaaaa", info.Branch)
	assert.Equal(t, "main", info.BaseBranch)

	// The new worktree is a checkout of the task branch.
	cmd := exec.Command("git", "rev-parse", "--abbrev-ref", "HEAD")
	cmd.Dir = info.Path
	out, err := cmd.Output()
	require.NoError(t, err)
	assert.Equal(t, "codexloop/task-1000-aaaaaaaa\n", string(out))
}

func TestCreateDuplicateWorktreeFails(t *testing.T) {
	mgr, _ := newTestManager(t)

	_, err := mgr.Create("task-1000-aaaaaaaa", "codexloop/one", "")
	require.NoError(t, err)

	_, err = mgr.Create("task-1000-aaaaaaaa", "codexloop/two", "")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrWorktreeExists))

	var wsErr *errors.WorkspaceError
	require.True(t, errors.As(err, &wsErr))
	assert.NotEmpty(t, wsErr.Path)
}

func TestCleanupIsIdempotent(t *testing.T) {
	mgr, _ := newTestManager(t)

	info, err := mgr.Create("task-1000-aaaaaaaa", "codexloop/task-1000-aaaaaaaa", "")
	require.NoError(t, err)

	mgr.Cleanup(info)
	assert.NoDirExists(t, info.Path)

	// Second cleanup and cleanup of a never-created workspace are no-ops.
	mgr.Cleanup(info)
	mgr.Cleanup(&Info{Path: "/nonexistent/path", Branch: "no-such-branch"})
	mgr.Cleanup(nil)
}

func TestCleanupRemovesBranch(t *testing.T) {
	mgr, repo := newTestManager(t)

	info, err := mgr.Create("task-1000-aaaaaaaa", "codexloop/task-1000-aaaaaaaa", "")
	require.NoError(t, err)
	mgr.Cleanup(info)

	cmd := exec.Command("git", "rev-parse", "--verify", "refs/heads/"+info.Branch)
	cmd.Dir = repo
	assert.Error(t, cmd.Run(), "task branch should be deleted by cleanup")
}

func TestCommitAll(t *testing.T) {
	mgr, _ := newTestManager(t)

	info, err := mgr.Create("task-1000-aaaaaaaa", "codexloop/task-1000-aaaaaaaa", "")
	require.NoError(t, err)

	// Nothing to commit is not an error.
	require.NoError(t, mgr.CommitAll(info.Path, "empty commit attempt"))

	require.NoError(t, os.WriteFile(filepath.Join(info.Path, "feature.go"), []byte("package main\n"), 0o644))
	require.NoError(t, mgr.CommitAll(info.Path, "add feature"))

	dirty, err := mgr.HasUncommittedChanges(info.Path)
	require.NoError(t, err)
	assert.False(t, dirty)

	ahead, err := mgr.HasCommitsBeyond(info.Path, info.BaseBranch)
	require.NoError(t, err)
	assert.True(t, ahead)
}

func TestNewOutsideRepo(t *testing.T) {
	_, err := New(t.TempDir(), t.TempDir(), nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrNotGitRepository))
}
