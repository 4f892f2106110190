// Package task defines the durable state of a workflow run and the
// file-backed store that persists it.
package task

import (
	"time"

	"codexloop/internal/agent"
)

// Status is the lifecycle status of a task.
type Status string

const (
	// StatusRunning means the workflow is in progress.
	StatusRunning Status = "running"
	// StatusSucceeded means the workflow finished and the reviewer approved.
	StatusSucceeded Status = "succeeded"
	// StatusFailed means the workflow hit an unrecoverable error or the
	// review budget was exhausted without approval.
	StatusFailed Status = "failed"
)

// Terminal reports whether the status is final.
func (s Status) Terminal() bool {
	return s == StatusSucceeded || s == StatusFailed
}

// WorktreeInfo identifies the isolated workspace a task runs in.
type WorktreeInfo struct {
	Path       string `json:"path"`
	BaseBranch string `json:"baseBranch"`
}

// State is the durable record of one workflow run. It is owned by the
// workflow engine while the run is live; the store only serializes it.
type State struct {
	TaskID   string `json:"taskId"`
	SpecPath string `json:"specPath"`
	// OriginalSpec is the verbatim specification text captured at creation.
	// It is never mutated after that; every reviewer turn checks against it.
	OriginalSpec string `json:"originalSpec"`

	BranchName   string       `json:"branchName"`
	WorktreeInfo WorktreeInfo `json:"worktreeInfo"`

	CurrentIteration int `json:"currentIteration"`
	MaxIterations    int `json:"maxIterations"`

	// CoderResponses and ReviewerResponses are append-only. After a completed
	// turn both have length equal to CurrentIteration.
	CoderResponses    []agent.Result `json:"coderResponses"`
	ReviewerResponses []agent.Result `json:"reviewerResponses"`

	Status Status `json:"status"`
	// Error holds the failure description when Status is failed.
	Error string `json:"error,omitempty"`
	// PRURL is set once finalization creates or finds a pull request.
	PRURL string `json:"prUrl,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// NewState builds a running State for a fresh task.
func NewState(taskID, specPath, originalSpec string, maxIterations int) *State {
	now := time.Now().UTC()
	return &State{
		TaskID:            taskID,
		SpecPath:          specPath,
		OriginalSpec:      originalSpec,
		CurrentIteration:  0,
		MaxIterations:     maxIterations,
		CoderResponses:    []agent.Result{},
		ReviewerResponses: []agent.Result{},
		Status:            StatusRunning,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
}

// Touch bumps UpdatedAt, keeping it monotonically non-decreasing.
func (s *State) Touch() {
	now := time.Now().UTC()
	if now.After(s.UpdatedAt) {
		s.UpdatedAt = now
	}
}

// AppendCoderResponse records a completed coder turn.
func (s *State) AppendCoderResponse(r agent.Result) {
	s.CoderResponses = append(s.CoderResponses, r)
	s.Touch()
}

// AppendReviewerResponse records a completed reviewer turn and bumps the
// iteration counter, restoring the equal-lengths invariant.
func (s *State) AppendReviewerResponse(r agent.Result) {
	s.ReviewerResponses = append(s.ReviewerResponses, r)
	s.CurrentIteration++
	s.Touch()
}

// MarkSucceeded transitions the task to its terminal success status.
func (s *State) MarkSucceeded(prURL string) {
	s.Status = StatusSucceeded
	s.PRURL = prURL
	s.Touch()
}

// MarkFailed transitions the task to its terminal failure status.
func (s *State) MarkFailed(reason string) {
	s.Status = StatusFailed
	s.Error = reason
	s.Touch()
}
