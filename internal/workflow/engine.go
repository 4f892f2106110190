// Package workflow drives the implement and review loop for one task: it
// creates the isolated workspace, alternates coder and reviewer turns until
// approval or budget exhaustion, and finalizes with a pull request.
package workflow

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"codexloop/internal/agent"
	"codexloop/internal/audit"
	"codexloop/internal/config"
	"codexloop/internal/errors"
	"codexloop/internal/github"
	"codexloop/internal/logging"
	"codexloop/internal/stream"
	"codexloop/internal/task"
	"codexloop/internal/worktree"
)

// Workspace is the workspace management surface the engine needs.
// *worktree.Manager satisfies it.
type Workspace interface {
	Create(taskID, branchName, baseBranch string) (*worktree.Info, error)
	Cleanup(info *worktree.Info)
	CommitAll(path, message string) error
	Push(path string) error
	HasCommitsBeyond(path, baseBranch string) (bool, error)
}

// PRService is the pull request surface the engine needs. *github.Client
// satisfies it.
type PRService interface {
	github.PRFinder
	CreatePR(opts github.CreateOptions) (string, error)
}

// Result is the final outcome of a workflow run.
type Result struct {
	Success    bool
	TaskID     string
	Iterations int
	PRURL      string
	Error      string
}

// Engine runs the iterate/stop loop. It exclusively owns the task state
// while a run is live; the store only persists snapshots.
type Engine struct {
	cfg       *config.Config
	store     *task.Store
	workspace Workspace
	runner    agent.Runner
	prs       PRService
	audit     *audit.Writer
	display   *stream.Processor
	verdict   VerdictFunc
	logger    *logging.Logger
}

// New creates an engine. A nil verdict function falls back to ParseVerdict.
func New(cfg *config.Config, store *task.Store, workspace Workspace, runner agent.Runner,
	prs PRService, auditWriter *audit.Writer, display *stream.Processor,
	verdict VerdictFunc, logger *logging.Logger) *Engine {
	if verdict == nil {
		verdict = ParseVerdict
	}
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &Engine{
		cfg:       cfg,
		store:     store,
		workspace: workspace,
		runner:    runner,
		prs:       prs,
		audit:     auditWriter,
		display:   display,
		verdict:   verdict,
		logger:    logger,
	}
}

// Run executes the full workflow for the spec at specPath. Failures after
// the workspace exists are captured in the result and the persisted task
// state; an error return means the run could not start and left no state
// behind.
func (e *Engine) Run(ctx context.Context, specPath string) (*Result, error) {
	specText, err := os.ReadFile(specPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read spec file: %w", err)
	}

	taskID := task.NewID()
	branchName := e.cfg.Branch.Prefix + "/" + taskID
	logger := e.logger.WithTask(taskID)

	wt, err := e.workspace.Create(taskID, branchName, e.cfg.Workflow.BaseBranch)
	if err != nil {
		return nil, err
	}

	st := task.NewState(taskID, specPath, string(specText), e.cfg.Workflow.MaxReviews)
	st.BranchName = branchName
	st.WorktreeInfo = task.WorktreeInfo{Path: wt.Path, BaseBranch: wt.BaseBranch}
	if err := e.store.Save(st); err != nil {
		e.workspace.Cleanup(wt)
		return nil, err
	}

	logger.Info("task started",
		"spec", specPath,
		"branch", branchName,
		"max_reviews", st.MaxIterations)

	result := e.loop(ctx, st, wt, logger)

	e.writeAudit(st)
	if e.cfg.Workflow.Cleanup {
		e.workspace.Cleanup(wt)
	} else {
		logger.Info("workspace retained", "path", wt.Path, "branch", wt.Branch)
	}

	return result, nil
}

// loop alternates coder and reviewer turns until approval, budget
// exhaustion, or failure. Every state mutation is persisted before the next
// turn begins.
func (e *Engine) loop(ctx context.Context, st *task.State, wt *worktree.Info, logger *logging.Logger) *Result {
	var feedback []string

	for st.CurrentIteration < st.MaxIterations {
		iteration := st.CurrentIteration + 1
		logger.WithPhase("coding").Info("turn started", "iteration", iteration)

		coderRes, err := e.runTurn(ctx, "coding", coderPrompt(st.OriginalSpec, feedback), wt.Path)
		if err != nil {
			return e.fail(st, logger, err)
		}
		st.AppendCoderResponse(*coderRes)
		e.saveState(st, logger)

		commitMsg := fmt.Sprintf("Implement %s (iteration %d)", filepath.Base(st.SpecPath), iteration)
		if err := e.workspace.CommitAll(wt.Path, commitMsg); err != nil {
			return e.fail(st, logger, err)
		}

		logger.WithPhase("reviewing").Info("turn started", "iteration", iteration)
		reviewRes, err := e.runTurn(ctx, "reviewing", reviewerPrompt(st.OriginalSpec, coderRes.FinalResponse), wt.Path)
		if err != nil {
			return e.fail(st, logger, err)
		}
		st.AppendReviewerResponse(*reviewRes)
		e.saveState(st, logger)

		verdict := e.verdict(reviewRes.FinalResponse)
		logger.Info("review complete",
			"iteration", st.CurrentIteration,
			"approved", verdict == VerdictApproved)

		switch {
		case verdict == VerdictApproved:
			return e.finalize(st, wt, logger)
		case st.CurrentIteration >= st.MaxIterations:
			if verdict == VerdictRevise {
				return e.fail(st, logger, fmt.Errorf(
					"review budget exhausted after %d iteration(s) without approval", st.CurrentIteration))
			}
			// No explicit rejection; ship what we have.
			return e.finalize(st, wt, logger)
		default:
			feedback = append(feedback, reviewRes.FinalResponse)
		}
	}

	return e.fail(st, logger, fmt.Errorf("review budget exhausted after %d iteration(s)", st.CurrentIteration))
}

// saveState persists the current snapshot. A store failure means the
// persisted copy may be stale, nothing more: it is logged and the run
// continues on the in-memory state, which stays authoritative.
func (e *Engine) saveState(st *task.State, logger *logging.Logger) {
	if err := e.store.Save(st); err != nil {
		logger.Warn("failed to persist task state",
			"status", string(st.Status),
			"iteration", st.CurrentIteration,
			"error", err.Error())
	}
}

// runTurn dispatches one agent invocation, streaming its messages through
// the display processor while the runner buffers them.
func (e *Engine) runTurn(ctx context.Context, phase, prompt, workDir string) (*agent.Result, error) {
	opts := agent.Options{
		WorkDir:        workDir,
		Model:          e.cfg.Agent.Model,
		PermissionMode: e.cfg.Agent.PermissionMode,
		MaxTurns:       e.cfg.Agent.MaxTurns,
	}

	var done chan struct{}
	if e.display != nil {
		events := make(chan agent.Message, 64)
		opts.Events = events
		done = make(chan struct{})
		go func() {
			e.display.Process(events)
			close(done)
		}()
	}

	res, err := e.runner.Run(ctx, prompt, opts)
	if done != nil {
		<-done
	}
	if err != nil {
		var agentErr *errors.AgentExecutionError
		if errors.As(err, &agentErr) {
			return nil, agentErr.WithPhase(phase)
		}
		return nil, err
	}
	return res, nil
}

// finalize pushes the task branch and creates the pull request. An already
// open pull request for the branch is reused, so retried finalization never
// duplicates.
func (e *Engine) finalize(st *task.State, wt *worktree.Info, logger *logging.Logger) *Result {
	hasWork, err := e.workspace.HasCommitsBeyond(wt.Path, wt.BaseBranch)
	if err != nil {
		return e.fail(st, logger, err)
	}
	if !hasWork {
		return e.fail(st, logger, fmt.Errorf("approved run produced no commits beyond %s", wt.BaseBranch))
	}

	if err := e.workspace.Push(wt.Path); err != nil {
		return e.fail(st, logger, err)
	}

	var prURL string
	if existing, err := e.prs.FindOpenPR(wt.Branch); err != nil {
		return e.fail(st, logger, err)
	} else if existing != nil {
		logger.Info("reusing existing pull request", "url", existing.URL)
		prURL = existing.URL
	} else {
		body, err := github.RenderBody(github.BodyContext{
			SpecPath:   st.SpecPath,
			Summary:    lastCoderSummary(st),
			Iterations: st.CurrentIteration,
			Cost:       totalCost(st),
		})
		if err != nil {
			return e.fail(st, logger, err)
		}
		prURL, err = e.prs.CreatePR(github.CreateOptions{
			Title:      fmt.Sprintf("Implement %s", filepath.Base(st.SpecPath)),
			Body:       body,
			HeadBranch: wt.Branch,
			BaseBranch: wt.BaseBranch,
		})
		if err != nil {
			return e.fail(st, logger, err)
		}
	}

	st.MarkSucceeded(prURL)
	e.saveState(st, logger)

	logger.Info("task succeeded",
		"iterations", st.CurrentIteration,
		"pr_url", prURL,
		"total_cost_usd", totalCost(st))

	return &Result{
		Success:    true,
		TaskID:     st.TaskID,
		Iterations: st.CurrentIteration,
		PRURL:      prURL,
	}
}

// fail records the terminal failure on the task state and builds the
// result. The caller still runs cleanup and audit logging.
func (e *Engine) fail(st *task.State, logger *logging.Logger, cause error) *Result {
	msg := errors.UserMessage(cause)
	st.MarkFailed(msg)
	e.saveState(st, logger)

	logger.Error("task failed", "iterations", st.CurrentIteration, "error", msg)
	return &Result{
		Success:    false,
		TaskID:     st.TaskID,
		Iterations: st.CurrentIteration,
		Error:      msg,
	}
}

// writeAudit serializes the run's combined transcript. Best-effort by
// construction.
func (e *Engine) writeAudit(st *task.State) {
	if e.audit == nil {
		return
	}

	combined := &agent.Result{Success: st.Status == task.StatusSucceeded}
	for i := 0; i < len(st.CoderResponses); i++ {
		appendTranscript(combined, st.CoderResponses[i])
		if i < len(st.ReviewerResponses) {
			appendTranscript(combined, st.ReviewerResponses[i])
		}
	}

	e.audit.Write(st.TaskID, combined, audit.RunOptions{
		Model:          e.cfg.Agent.Model,
		PermissionMode: e.cfg.Agent.PermissionMode,
		MaxTurns:       e.cfg.Agent.MaxTurns,
		WorkDir:        st.WorktreeInfo.Path,
	})
}

func appendTranscript(dst *agent.Result, src agent.Result) {
	dst.Messages = append(dst.Messages, src.Messages...)
	dst.Cost += src.Cost
	dst.DurationMillis += src.DurationMillis
	if src.FinalResponse != "" {
		dst.FinalResponse = src.FinalResponse
	}
}

func lastCoderSummary(st *task.State) string {
	if len(st.CoderResponses) == 0 {
		return ""
	}
	return st.CoderResponses[len(st.CoderResponses)-1].FinalResponse
}

func totalCost(st *task.State) float64 {
	var total float64
	for _, r := range st.CoderResponses {
		total += r.Cost
	}
	for _, r := range st.ReviewerResponses {
		total += r.Cost
	}
	return total
}
