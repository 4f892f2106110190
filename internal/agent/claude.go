package agent

import (
	"bufio"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"codexloop/internal/errors"
	"codexloop/internal/logging"
)

// scanBufferSize bounds a single stream-json line. Tool results can carry
// whole file contents, so the default bufio limit is far too small.
const scanBufferSize = 10 * 1024 * 1024

// ClaudeRunner invokes the agent CLI as a subprocess in streaming mode.
type ClaudeRunner struct {
	binary string
	logger *logging.Logger

	sessionOnce sync.Once
	sessionErr  error
}

var _ Runner = (*ClaudeRunner)(nil)

// NewClaudeRunner creates a runner for the given agent binary.
func NewClaudeRunner(binary string, logger *logging.Logger) *ClaudeRunner {
	if binary == "" {
		binary = "claude"
	}
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &ClaudeRunner{binary: binary, logger: logger}
}

// ensureSession verifies the agent CLI is reachable and authenticated. The
// check runs once per process; later invocations reuse the outcome.
func (r *ClaudeRunner) ensureSession(ctx context.Context) error {
	r.sessionOnce.Do(func() {
		checkCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()

		out, err := exec.CommandContext(checkCtx, r.binary, "--version").CombinedOutput()
		if err != nil {
			r.sessionErr = errors.NewAgentExecutionError(
				fmt.Sprintf("agent CLI %q is not reachable: %s", r.binary, firstLine(string(out), err.Error())))
			return
		}
		r.logger.Debug("agent session verified", "binary", r.binary, "version", firstLine(string(out), ""))
	})
	return r.sessionErr
}

// Run dispatches one prompt and drains the full message stream. Every
// failure surfaces as *errors.AgentExecutionError carrying only message
// text. If ctx is cancelled mid-stream, Run stops draining and returns the
// messages buffered so far without error.
func (r *ClaudeRunner) Run(ctx context.Context, prompt string, opts Options) (*Result, error) {
	if opts.Events != nil {
		defer close(opts.Events)
	}

	if err := r.ensureSession(ctx); err != nil {
		return nil, err
	}

	args := []string{"-p", prompt, "--output-format", "stream-json", "--verbose"}
	if opts.Model != "" {
		args = append(args, "--model", opts.Model)
	}
	if opts.PermissionMode != "" {
		args = append(args, "--permission-mode", opts.PermissionMode)
	}
	if opts.MaxTurns > 0 {
		args = append(args, "--max-turns", strconv.Itoa(opts.MaxTurns))
	}

	cmd := exec.CommandContext(ctx, r.binary, args...)
	cmd.Dir = opts.WorkDir

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, errors.NewAgentExecutionError(
			fmt.Sprintf("failed to open agent output pipe: %s", err.Error()))
	}
	var stderr strings.Builder
	cmd.Stderr = &stderr

	start := time.Now()
	r.logger.Debug("starting agent invocation",
		"binary", r.binary,
		"workdir", opts.WorkDir,
		"prompt_chars", len(prompt))

	if err := cmd.Start(); err != nil {
		return nil, errors.NewAgentExecutionError(
			fmt.Sprintf("failed to start agent process: %s", err.Error()))
	}

	var messages []Message
	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 64*1024), scanBufferSize)

	cancelled := false
	for scanner.Scan() {
		if ctx.Err() != nil {
			cancelled = true
			break
		}
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		msg, err := ParseMessage(line)
		if err != nil {
			r.logger.Warn("skipping unparseable agent output line", "error", err.Error())
			continue
		}
		messages = append(messages, msg)
		if opts.Events != nil {
			select {
			case opts.Events <- msg:
			case <-ctx.Done():
				cancelled = true
			}
		}
		if cancelled {
			break
		}
	}

	if cancelled || ctx.Err() != nil {
		// Best-effort abandonment. The process is reaped by the
		// CommandContext kill; whatever was buffered is still useful.
		_ = cmd.Wait()
		r.logger.Info("agent invocation cancelled",
			"messages", len(messages),
			"elapsed_ms", time.Since(start).Milliseconds())
		return Reduce(messages, time.Since(start).Milliseconds()), nil
	}

	if err := scanner.Err(); err != nil {
		_ = cmd.Wait()
		return nil, errors.NewAgentExecutionError(
			fmt.Sprintf("agent stream read failed: %s", err.Error()))
	}

	if err := cmd.Wait(); err != nil {
		detail := firstLine(stderr.String(), err.Error())
		return nil, errors.NewAgentExecutionError(
			fmt.Sprintf("agent process failed: %s", detail))
	}

	result := Reduce(messages, time.Since(start).Milliseconds())
	r.logger.Debug("agent invocation complete",
		"messages", len(result.Messages),
		"success", result.Success,
		"cost_usd", result.Cost,
		"duration_ms", result.DurationMillis)
	return result, nil
}

func firstLine(s, fallback string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return fallback
	}
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	return s
}
