package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"codexloop/internal/config"
	"codexloop/internal/errors"
)

func TestCommandsRegistered(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"run", "doctor", "status", "cleanup"} {
		assert.True(t, names[want], "command %q should be registered", want)
	}
}

func TestRunRequiresSpecArgument(t *testing.T) {
	err := runCmd.Args(runCmd, []string{})
	require.Error(t, err)

	err = runCmd.Args(runCmd, []string{"spec.md"})
	assert.NoError(t, err)
}

func TestRunPreflightFailureLeavesNoStateDir(t *testing.T) {
	config.SetDefaults()
	t.Setenv("GITHUB_TOKEN", "")
	t.Setenv("GH_TOKEN", "")

	// Not a git repository and no credential, so preflight must reject.
	workDir := t.TempDir()
	oldWD, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(workDir))
	t.Cleanup(func() { _ = os.Chdir(oldWD) })

	specPath := filepath.Join(workDir, "feature.md")
	require.NoError(t, os.WriteFile(specPath, []byte("Add a --version flag."), 0o644))

	var out, errOut bytes.Buffer
	runCmd.SetOut(&out)
	runCmd.SetErr(&errOut)

	err = runWorkflow(runCmd, []string{specPath})
	require.Error(t, err)
	var pfErr *errors.PreflightError
	require.True(t, errors.As(err, &pfErr))

	assert.NoDirExists(t, filepath.Join(workDir, ".codex"),
		"a rejected environment must not leave a state directory behind")
}

func TestFirstVerdictLine(t *testing.T) {
	assert.Equal(t, "VERDICT: APPROVED", firstVerdictLine("notes\nVERDICT: APPROVED\nmore"))
	assert.Empty(t, firstVerdictLine("no decision here"))
}
