// Package preflight validates the environment before a workflow run starts.
// Every check runs independently; the result collects all failures instead
// of stopping at the first one.
package preflight

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/subosito/gotenv"

	"codexloop/internal/config"
	"codexloop/internal/logging"
	"codexloop/internal/worktree"
)

// minGitMajor and minGitMinor are the minimum git version. Worktree
// operations behave badly on older releases.
const (
	minGitMajor = 2
	minGitMinor = 20
)

// credentialEnvVars are checked in order for a hosting credential.
var credentialEnvVars = []string{"GITHUB_TOKEN", "GH_TOKEN"}

// knownTokenPrefixes are the documented GitHub token shapes.
var knownTokenPrefixes = []string{"ghp_", "gho_", "ghs_", "github_pat_"}

var gitVersionRegex = regexp.MustCompile(`(\d+)\.(\d+)`)

// Result is the outcome of environment validation. Success is true exactly
// when no blocking errors were recorded.
type Result struct {
	Success  bool     `json:"success"`
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
}

func (r *Result) addError(format string, args ...any) {
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
	r.Success = false
}

func (r *Result) addWarning(format string, args ...any) {
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}

// Validator runs environment checks for a configuration.
type Validator struct {
	cfg    *config.Config
	logger *logging.Logger
	// workDir is where the run was started. Checks resolve against it.
	workDir string
}

// New creates a validator for the given configuration, rooted at workDir.
func New(cfg *config.Config, workDir string, logger *logging.Logger) *Validator {
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &Validator{cfg: cfg, logger: logger, workDir: workDir}
}

// ValidateEnvironment runs every check and returns the collected result. It
// never returns an error; failures live in the result.
func (v *Validator) ValidateEnvironment() *Result {
	res := &Result{Success: true}

	v.checkGitRepository(res)
	v.checkGitVersion(res)
	v.checkCredential(res)
	v.checkAgentCLI(res)
	v.checkWritePermissions(res)

	v.logger.Debug("preflight complete",
		"success", res.Success,
		"errors", len(res.Errors),
		"warnings", len(res.Warnings))
	return res
}

// QuickValidation runs only the blocking fast-path checks and reports
// whether they all pass. Advisory checks are skipped.
func (v *Validator) QuickValidation() bool {
	res := &Result{Success: true}
	v.checkGitRepository(res)
	v.checkGitVersion(res)
	v.checkCredential(res)
	return res.Success
}

func (v *Validator) checkGitRepository(res *Result) {
	if _, err := worktree.FindGitRoot(v.workDir); err != nil {
		res.addError("current directory is not inside a git repository")
	}
}

func (v *Validator) checkGitVersion(res *Result) {
	out, err := exec.Command("git", "--version").Output()
	if err != nil {
		res.addError("git is not installed or not on PATH")
		return
	}

	m := gitVersionRegex.FindStringSubmatch(string(out))
	if m == nil {
		res.addWarning("could not parse git version from %q", strings.TrimSpace(string(out)))
		return
	}
	var major, minor int
	fmt.Sscanf(m[1], "%d", &major)
	fmt.Sscanf(m[2], "%d", &minor)
	if major < minGitMajor || (major == minGitMajor && minor < minGitMinor) {
		res.addError("git %d.%d is too old, need at least %d.%d for worktree support",
			major, minor, minGitMajor, minGitMinor)
	}
}

// checkCredential looks for a GitHub token in the environment, falling back
// to a .env file in the working directory. The shape check is a local
// heuristic, not a network call.
func (v *Validator) checkCredential(res *Result) {
	token := v.lookupCredential()
	if token == "" {
		res.addError("no GitHub credential found: set %s (or put it in .env)",
			strings.Join(credentialEnvVars, " or "))
		return
	}

	if strings.ContainsAny(token, " \t\n\r") {
		res.addError("GitHub credential contains whitespace, check for copy-paste damage")
		return
	}
	if len(token) < 20 {
		res.addError("GitHub credential is suspiciously short (%d chars)", len(token))
		return
	}

	for _, prefix := range knownTokenPrefixes {
		if strings.HasPrefix(token, prefix) {
			return
		}
	}
	res.addWarning("GitHub credential has an unrecognized prefix, it may not be a valid token")
}

func (v *Validator) lookupCredential() string {
	for _, name := range credentialEnvVars {
		if val := os.Getenv(name); val != "" {
			return val
		}
	}

	env, err := gotenv.Read(filepath.Join(v.workDir, ".env"))
	if err != nil {
		return ""
	}
	for _, name := range credentialEnvVars {
		if val := env[name]; val != "" {
			return val
		}
	}
	return ""
}

func (v *Validator) checkAgentCLI(res *Result) {
	binary := v.cfg.Agent.Binary
	path, err := exec.LookPath(binary)
	if err != nil {
		res.addError("agent CLI %q not found on PATH", binary)
		return
	}

	if err := exec.Command(path, "--version").Run(); err != nil {
		res.addError("agent CLI %q found but failed to run: %v", binary, err)
	}
}

// checkWritePermissions verifies write access in the working directory and
// its parent, which is where worktrees are created by default.
func (v *Validator) checkWritePermissions(res *Result) {
	for _, dir := range []string{v.workDir, filepath.Dir(v.workDir)} {
		if !canWrite(dir) {
			res.addError("no write permission in %s", dir)
		}
	}
}

func canWrite(dir string) bool {
	f, err := os.CreateTemp(dir, ".codexloop-write-check-*")
	if err != nil {
		return false
	}
	name := f.Name()
	f.Close()
	os.Remove(name)
	return true
}
