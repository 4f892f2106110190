package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Config represents the complete codexloop configuration
type Config struct {
	Agent    AgentConfig    `mapstructure:"agent"`
	Branch   BranchConfig   `mapstructure:"branch"`
	Workflow WorkflowConfig `mapstructure:"workflow"`
	Display  DisplayConfig  `mapstructure:"display"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Paths    PathsConfig    `mapstructure:"paths"`
}

// AgentConfig controls how the external coding agent is invoked
type AgentConfig struct {
	// Binary is the agent CLI executable name or path (default: "claude")
	Binary string `mapstructure:"binary"`
	// Model is passed through to the agent CLI when non-empty
	Model string `mapstructure:"model"`
	// PermissionMode controls the agent's tool permission behavior
	// Options: "acceptEdits", "bypassPermissions", "default"
	PermissionMode string `mapstructure:"permission_mode"`
	// MaxTurns limits agent-internal turns per invocation (0 = agent default)
	MaxTurns int `mapstructure:"max_turns"`
}

// BranchConfig controls branch naming for task worktrees
type BranchConfig struct {
	// Prefix is the branch name prefix (default: "codexloop")
	// Task branches are named <prefix>/<taskId>
	Prefix string `mapstructure:"prefix"`
}

// WorkflowConfig controls the iterate/stop loop
type WorkflowConfig struct {
	// MaxReviews is the maximum number of implement-review iterations (default: 3)
	MaxReviews int `mapstructure:"max_reviews"`
	// Cleanup removes the task worktree and branch after the run (default: true)
	Cleanup bool `mapstructure:"cleanup"`
	// BaseBranch is the branch task branches fork from ("" = repository main branch)
	BaseBranch string `mapstructure:"base_branch"`
}

// DisplayConfig controls the live progress output.
// These options never affect persisted task state.
type DisplayConfig struct {
	// ShowToolCalls prints a line for each tool invocation (default: true)
	ShowToolCalls bool `mapstructure:"show_tool_calls"`
	// ShowTimestamps prefixes progress lines with wall-clock time
	ShowTimestamps bool `mapstructure:"show_timestamps"`
	// Verbose prints message kinds that are otherwise dropped
	Verbose bool `mapstructure:"verbose"`
}

// LoggingConfig controls debug logging behavior
type LoggingConfig struct {
	// Enabled controls whether debug logging is enabled (default: true)
	Enabled bool `mapstructure:"enabled"`
	// Level is the log level: "DEBUG", "INFO", "WARN", "ERROR" (default: "INFO")
	Level string `mapstructure:"level"`
}

// PathsConfig controls where codexloop stores data
type PathsConfig struct {
	// StateDir is where task state and debug transcripts live.
	// Relative paths resolve against the repository root (default: ".codex")
	StateDir string `mapstructure:"state_dir"`
	// WorktreeDir is where task worktrees are created. If empty, worktrees
	// are placed next to the repository root as <repo>-worktrees.
	// Supports ~ for home directory expansion.
	WorktreeDir string `mapstructure:"worktree_dir"`
}

// ResolveStateDir returns the state directory resolved against baseDir.
func (p *PathsConfig) ResolveStateDir(baseDir string) string {
	dir := p.StateDir
	if dir == "" {
		dir = ".codex"
	}
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(baseDir, dir)
	}
	return dir
}

// ResolveWorktreeDir returns the directory where task worktrees are created.
// The default is a sibling of the repository so failed runs never dirty the
// caller's checkout.
func (p *PathsConfig) ResolveWorktreeDir(repoRoot string) string {
	if p.WorktreeDir == "" {
		return filepath.Join(filepath.Dir(repoRoot), filepath.Base(repoRoot)+"-worktrees")
	}

	path := p.WorktreeDir
	if strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			path = filepath.Join(home, path[2:])
		}
	} else if path == "~" {
		if home, err := os.UserHomeDir(); err == nil {
			path = home
		}
	}

	if !filepath.IsAbs(path) {
		path = filepath.Join(repoRoot, path)
	}
	return path
}

// Default returns a Config with sensible default values
func Default() *Config {
	return &Config{
		Agent: AgentConfig{
			Binary:         "claude",
			Model:          "",
			PermissionMode: "acceptEdits",
			MaxTurns:       0,
		},
		Branch: BranchConfig{
			Prefix: "codexloop",
		},
		Workflow: WorkflowConfig{
			MaxReviews: 3,
			Cleanup:    true,
			BaseBranch: "",
		},
		Display: DisplayConfig{
			ShowToolCalls:  true,
			ShowTimestamps: false,
			Verbose:        false,
		},
		Logging: LoggingConfig{
			Enabled: true,
			Level:   "INFO",
		},
		Paths: PathsConfig{
			StateDir:    ".codex",
			WorktreeDir: "",
		},
	}
}

// SetDefaults registers default values with viper
func SetDefaults() {
	defaults := Default()

	viper.SetDefault("agent.binary", defaults.Agent.Binary)
	viper.SetDefault("agent.model", defaults.Agent.Model)
	viper.SetDefault("agent.permission_mode", defaults.Agent.PermissionMode)
	viper.SetDefault("agent.max_turns", defaults.Agent.MaxTurns)

	viper.SetDefault("branch.prefix", defaults.Branch.Prefix)

	viper.SetDefault("workflow.max_reviews", defaults.Workflow.MaxReviews)
	viper.SetDefault("workflow.cleanup", defaults.Workflow.Cleanup)
	viper.SetDefault("workflow.base_branch", defaults.Workflow.BaseBranch)

	viper.SetDefault("display.show_tool_calls", defaults.Display.ShowToolCalls)
	viper.SetDefault("display.show_timestamps", defaults.Display.ShowTimestamps)
	viper.SetDefault("display.verbose", defaults.Display.Verbose)

	viper.SetDefault("logging.enabled", defaults.Logging.Enabled)
	viper.SetDefault("logging.level", defaults.Logging.Level)

	viper.SetDefault("paths.state_dir", defaults.Paths.StateDir)
	viper.SetDefault("paths.worktree_dir", defaults.Paths.WorktreeDir)
}

// Load reads the configuration from viper into a Config struct and validates it
func Load() (*Config, error) {
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, ValidationErrors(errs)
	}

	return &cfg, nil
}

// Get returns the current configuration, falling back to defaults if
// unmarshaling fails.
func Get() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// ConfigDir returns the path to the user's config directory
func ConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "codexloop")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".codexloop"
	}
	return filepath.Join(home, ".config", "codexloop")
}

// ConfigFile returns the path to the config file
func ConfigFile() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}

// ValidPermissionModes returns the list of valid agent permission modes
func ValidPermissionModes() []string {
	return []string{"acceptEdits", "bypassPermissions", "default"}
}
