package config

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := Default()
	errs := cfg.Validate()
	assert.Empty(t, errs, "default config should validate cleanly")
}

func TestValidateAgent(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Config)
		wantField string
	}{
		{
			name:      "empty binary",
			mutate:    func(c *Config) { c.Agent.Binary = "  " },
			wantField: "agent.binary",
		},
		{
			name:      "unknown permission mode",
			mutate:    func(c *Config) { c.Agent.PermissionMode = "yolo" },
			wantField: "agent.permission_mode",
		},
		{
			name:      "negative max turns",
			mutate:    func(c *Config) { c.Agent.MaxTurns = -1 },
			wantField: "agent.max_turns",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			errs := cfg.Validate()
			require.Len(t, errs, 1)
			assert.Equal(t, tt.wantField, errs[0].Field)
		})
	}
}

func TestValidateBranchPrefix(t *testing.T) {
	valid := []string{"codexloop", "task", "my-prefix", "a1_b2"}
	for _, p := range valid {
		cfg := Default()
		cfg.Branch.Prefix = p
		assert.Empty(t, cfg.Validate(), "prefix %q should be valid", p)
	}

	invalid := []string{"", "1task", "-task", "feat/x", "a b"}
	for _, p := range invalid {
		cfg := Default()
		cfg.Branch.Prefix = p
		errs := cfg.Validate()
		require.NotEmpty(t, errs, "prefix %q should be rejected", p)
		assert.Equal(t, "branch.prefix", errs[0].Field)
	}
}

func TestValidateWorkflowBounds(t *testing.T) {
	cfg := Default()
	cfg.Workflow.MaxReviews = 0
	errs := cfg.Validate()
	require.Len(t, errs, 1)
	assert.Equal(t, "workflow.max_reviews", errs[0].Field)

	cfg = Default()
	cfg.Workflow.MaxReviews = 26
	errs = cfg.Validate()
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Message, "at most")
}

func TestValidationErrorsFormatting(t *testing.T) {
	errs := ValidationErrors{
		{Field: "a.b", Value: 1, Message: "bad"},
		{Field: "c.d", Value: "x", Message: "worse"},
	}
	msg := errs.Error()
	assert.Contains(t, msg, "2 configuration error(s)")
	assert.Contains(t, msg, "1. a.b: bad (got: 1)")
	assert.Contains(t, msg, "2. c.d: worse (got: x)")

	assert.Equal(t, "no validation errors", ValidationErrors{}.Error())
}

func TestResolveStateDir(t *testing.T) {
	p := &PathsConfig{StateDir: ".codex"}
	assert.Equal(t, filepath.Join("/repo", ".codex"), p.ResolveStateDir("/repo"))

	p = &PathsConfig{StateDir: "/var/lib/codexloop"}
	assert.Equal(t, "/var/lib/codexloop", p.ResolveStateDir("/repo"))

	p = &PathsConfig{}
	assert.Equal(t, filepath.Join("/repo", ".codex"), p.ResolveStateDir("/repo"))
}

func TestResolveWorktreeDir(t *testing.T) {
	p := &PathsConfig{}
	assert.Equal(t, "/home/user/myrepo-worktrees", p.ResolveWorktreeDir("/home/user/myrepo"))

	p = &PathsConfig{WorktreeDir: "/tmp/wts"}
	assert.Equal(t, "/tmp/wts", p.ResolveWorktreeDir("/home/user/myrepo"))

	p = &PathsConfig{WorktreeDir: "wts"}
	assert.Equal(t, "/home/user/myrepo/wts", p.ResolveWorktreeDir("/home/user/myrepo"))
}
