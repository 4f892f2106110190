// Package github creates and looks up pull requests through the gh CLI.
package github

import (
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"

	"codexloop/internal/logging"
)

// PullRequest describes an existing pull request.
type PullRequest struct {
	Number      int    `json:"number"`
	URL         string `json:"url"`
	State       string `json:"state"`
	HeadRefName string `json:"headRefName"`
	BaseRefName string `json:"baseRefName"`
}

// PRFinder looks up an existing open pull request for a branch. Finalization
// checks this before creating, so retries never open a duplicate.
type PRFinder interface {
	FindOpenPR(branch string) (*PullRequest, error)
}

// CreateOptions configure pull request creation.
type CreateOptions struct {
	Title      string
	Body       string
	HeadBranch string
	BaseBranch string
	Draft      bool
}

// runGH executes a gh CLI invocation and returns its combined output.
// Swapped out in tests.
type runGH func(dir string, args ...string) ([]byte, error)

func execGH(dir string, args ...string) ([]byte, error) {
	cmd := exec.Command("gh", args...)
	cmd.Dir = dir
	return cmd.CombinedOutput()
}

// Client talks to GitHub via the gh CLI, which carries authentication and
// repo detection on its own.
type Client struct {
	dir    string
	logger *logging.Logger
	run    runGH
}

var _ PRFinder = (*Client)(nil)

// NewClient creates a client operating in the given repository directory.
func NewClient(dir string, logger *logging.Logger) *Client {
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &Client{dir: dir, logger: logger, run: execGH}
}

// FindOpenPR returns the open pull request whose head is branch, or nil
// when none exists.
func (c *Client) FindOpenPR(branch string) (*PullRequest, error) {
	out, err := c.run(c.dir, "pr", "list",
		"--head", branch,
		"--state", "open",
		"--json", "number,url,state,headRefName,baseRefName")
	if err != nil {
		return nil, fmt.Errorf("gh pr list failed: %w\n%s", err, strings.TrimSpace(string(out)))
	}

	var prs []PullRequest
	if err := json.Unmarshal(out, &prs); err != nil {
		return nil, fmt.Errorf("unexpected gh pr list output: %w", err)
	}
	if len(prs) == 0 {
		return nil, nil
	}
	return &prs[0], nil
}

// CreatePR opens a pull request and returns its URL.
func (c *Client) CreatePR(opts CreateOptions) (string, error) {
	args := []string{"pr", "create",
		"--title", opts.Title,
		"--body", opts.Body,
		"--head", opts.HeadBranch,
	}
	if opts.BaseBranch != "" {
		args = append(args, "--base", opts.BaseBranch)
	}
	if opts.Draft {
		args = append(args, "--draft")
	}

	out, err := c.run(c.dir, args...)
	if err != nil {
		return "", fmt.Errorf("failed to create PR: %w\n%s", err, strings.TrimSpace(string(out)))
	}

	url := strings.TrimSpace(string(out))
	c.logger.Info("created pull request", "branch", opts.HeadBranch, "url", url)
	return url, nil
}
