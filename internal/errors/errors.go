// Package errors provides centralized error definitions for codexloop.
// It defines the domain error types that cross component boundaries
// (preflight, workspace, agent invocation, state store), semantic errors
// for common conditions, and classification helpers.
//
// Callers import only this package for error handling; the standard
// library helpers are re-exported.
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Re-export standard library functions for convenience.
var (
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
	New    = errors.New
	Join   = errors.Join
)

// Sentinel errors shared across packages.
var (
	// ErrNotGitRepository indicates the working directory is not inside a git repository.
	ErrNotGitRepository = New("not a git repository")
	// ErrWorktreeExists indicates a worktree already exists at the target path.
	ErrWorktreeExists = New("worktree already exists")
	// ErrBranchExists indicates the task branch already exists.
	ErrBranchExists = New("branch already exists")
	// ErrTaskNotFound indicates no persisted state exists for a task id.
	ErrTaskNotFound = New("task not found")
	// ErrStateCorrupted indicates a task state file could not be decoded.
	ErrStateCorrupted = New("task state corrupted")
	// ErrAgentUnavailable indicates the agent CLI could not be located or started.
	ErrAgentUnavailable = New("agent CLI unavailable")
	// ErrCanceled indicates an operation was canceled.
	ErrCanceled = New("operation canceled")
)

// baseError provides common behavior for the domain error types.
type baseError struct {
	message string
	cause   error
}

func (e *baseError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.message, e.cause)
	}
	return e.message
}

func (e *baseError) Unwrap() error { return e.cause }

func (e *baseError) Is(target error) bool {
	if e.cause != nil {
		return errors.Is(e.cause, target)
	}
	return false
}

// PreflightError indicates environment preconditions were not met.
// The workflow never starts when one of these is returned; Checks carries
// the individual failed check messages.
type PreflightError struct {
	baseError
	Checks []string
}

// NewPreflightError creates a PreflightError from the failed check messages.
func NewPreflightError(checks []string) *PreflightError {
	return &PreflightError{
		baseError: baseError{message: "environment validation failed"},
		Checks:    append([]string(nil), checks...),
	}
}

func (e *PreflightError) Error() string {
	if len(e.Checks) == 0 {
		return e.baseError.Error()
	}
	return fmt.Sprintf("%s: %s", e.message, strings.Join(e.Checks, "; "))
}

func (e *PreflightError) Is(target error) bool {
	if _, ok := target.(*PreflightError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// WorkspaceError indicates a git worktree operation failed.
type WorkspaceError struct {
	baseError
	Branch    string
	Path      string
	GitOutput string
}

// NewWorkspaceError creates a WorkspaceError wrapping cause.
func NewWorkspaceError(message string, cause error) *WorkspaceError {
	return &WorkspaceError{baseError: baseError{message: message, cause: cause}}
}

// WithBranch attaches the branch name to the error context.
func (e *WorkspaceError) WithBranch(branch string) *WorkspaceError {
	e.Branch = branch
	return e
}

// WithPath attaches the worktree path to the error context.
func (e *WorkspaceError) WithPath(path string) *WorkspaceError {
	e.Path = path
	return e
}

// WithGitOutput attaches captured git command output.
func (e *WorkspaceError) WithGitOutput(output string) *WorkspaceError {
	e.GitOutput = strings.TrimSpace(output)
	return e
}

func (e *WorkspaceError) Error() string {
	var parts []string
	if e.Branch != "" {
		parts = append(parts, fmt.Sprintf("branch=%s", e.Branch))
	}
	if e.Path != "" {
		parts = append(parts, fmt.Sprintf("path=%s", e.Path))
	}

	prefix := "workspace error"
	if len(parts) > 0 {
		prefix = fmt.Sprintf("workspace error [%s]", strings.Join(parts, ", "))
	}

	msg := e.message
	if e.cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.cause)
	}
	if e.GitOutput != "" {
		msg = fmt.Sprintf("%s\ngit output: %s", msg, e.GitOutput)
	}
	return fmt.Sprintf("%s: %s", prefix, msg)
}

func (e *WorkspaceError) Is(target error) bool {
	if _, ok := target.(*WorkspaceError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// AgentExecutionError is the single error kind crossing the agent
// invocation boundary. It carries only the extracted message text of the
// underlying failure, never the raw internal error object, so callers have
// exactly one error type to handle.
type AgentExecutionError struct {
	baseError
	Phase string
}

// NewAgentExecutionError creates an AgentExecutionError from the underlying
// failure's message text.
func NewAgentExecutionError(message string) *AgentExecutionError {
	return &AgentExecutionError{baseError: baseError{message: message}}
}

// WithPhase attaches the workflow phase (coding/reviewing) during which the
// agent call failed.
func (e *AgentExecutionError) WithPhase(phase string) *AgentExecutionError {
	e.Phase = phase
	return e
}

func (e *AgentExecutionError) Error() string {
	if e.Phase != "" {
		return fmt.Sprintf("agent execution error [phase=%s]: %s", e.Phase, e.message)
	}
	return fmt.Sprintf("agent execution error: %s", e.message)
}

func (e *AgentExecutionError) Is(target error) bool {
	if _, ok := target.(*AgentExecutionError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// StateStoreError indicates task state persistence failed. These are logged
// and do not abort the in-memory workflow.
type StateStoreError struct {
	baseError
	TaskID string
}

// NewStateStoreError creates a StateStoreError wrapping cause.
func NewStateStoreError(message string, cause error) *StateStoreError {
	return &StateStoreError{baseError: baseError{message: message, cause: cause}}
}

// WithTaskID attaches the task id to the error context.
func (e *StateStoreError) WithTaskID(id string) *StateStoreError {
	e.TaskID = id
	return e
}

func (e *StateStoreError) Error() string {
	if e.TaskID != "" {
		return fmt.Sprintf("state store error [task=%s]: %s", e.TaskID, e.baseError.Error())
	}
	return fmt.Sprintf("state store error: %s", e.baseError.Error())
}

func (e *StateStoreError) Is(target error) bool {
	if _, ok := target.(*StateStoreError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// NotFoundError represents a resource that could not be found.
type NotFoundError struct {
	baseError
	ResourceType string
	ResourceID   string
}

// NewNotFoundError creates a NotFoundError for the given resource.
func NewNotFoundError(resourceType, resourceID string) *NotFoundError {
	return &NotFoundError{
		baseError:    baseError{message: fmt.Sprintf("%s '%s' not found", resourceType, resourceID)},
		ResourceType: resourceType,
		ResourceID:   resourceID,
	}
}

// WithCause adds a cause to the error.
func (e *NotFoundError) WithCause(cause error) *NotFoundError {
	e.cause = cause
	return e
}

func (e *NotFoundError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s '%s' not found: %v", e.ResourceType, e.ResourceID, e.cause)
	}
	return fmt.Sprintf("%s '%s' not found", e.ResourceType, e.ResourceID)
}

func (e *NotFoundError) Is(target error) bool {
	if _, ok := target.(*NotFoundError); ok {
		return true
	}
	if e.ResourceType == "task" && errors.Is(target, ErrTaskNotFound) {
		return true
	}
	return e.baseError.Is(target)
}

// ValidationError represents invalid input or configuration.
type ValidationError struct {
	baseError
	Field string
	Value any
}

// NewValidationError creates a ValidationError with the given message.
func NewValidationError(message string) *ValidationError {
	return &ValidationError{baseError: baseError{message: message}}
}

// WithField adds the offending field name.
func (e *ValidationError) WithField(field string) *ValidationError {
	e.Field = field
	return e
}

// WithValue adds the offending value.
func (e *ValidationError) WithValue(value any) *ValidationError {
	e.Value = value
	return e
}

func (e *ValidationError) Error() string {
	var parts []string
	if e.Field != "" {
		parts = append(parts, fmt.Sprintf("field=%s", e.Field))
	}
	if e.Value != nil {
		parts = append(parts, fmt.Sprintf("value=%v", e.Value))
	}

	prefix := "validation error"
	if len(parts) > 0 {
		prefix = fmt.Sprintf("validation error [%s]", strings.Join(parts, ", "))
	}
	return fmt.Sprintf("%s: %s", prefix, e.baseError.Error())
}

func (e *ValidationError) Is(target error) bool {
	if _, ok := target.(*ValidationError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// UserMessage extracts a message suitable for display to end users. Domain
// errors format themselves with context already; for anything else only the
// message text is surfaced, never an internal stack or wrapped chain dump.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

// IsFatalToWorkflow reports whether the error should prevent a workflow from
// starting at all (as opposed to failing an in-flight run gracefully).
func IsFatalToWorkflow(err error) bool {
	if err == nil {
		return false
	}
	var preflight *PreflightError
	var workspace *WorkspaceError
	return As(err, &preflight) || As(err, &workspace)
}

// Wrap wraps an error with additional context message.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with a formatted context message.
func Wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}
