// Package audit writes per-task debug transcripts. Writing is best-effort:
// a transcript that cannot be written produces a warning, never an error,
// since diagnostic output must not fail a run.
package audit

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"codexloop/internal/agent"
	"codexloop/internal/logging"
)

// RunOptions records the invocation options a transcript was produced with.
type RunOptions struct {
	Model          string `json:"model,omitempty"`
	PermissionMode string `json:"permissionMode,omitempty"`
	MaxTurns       int    `json:"maxTurns,omitempty"`
	WorkDir        string `json:"workDir,omitempty"`
}

// Transcript is the serialized form of one agent invocation's full message
// stream plus its run metadata.
type Transcript struct {
	TaskID        string          `json:"taskId"`
	FinalResponse string          `json:"finalResponse"`
	Success       bool            `json:"success"`
	Cost          float64         `json:"cost"`
	Duration      int64           `json:"duration"`
	MessagesCount int             `json:"messagesCount"`
	Timestamp     time.Time       `json:"timestamp"`
	Options       RunOptions      `json:"options"`
	Messages      []agent.Message `json:"messages"`
}

// Writer persists transcripts under a debug directory.
type Writer struct {
	dir    string
	logger *logging.Logger
	now    func() time.Time
}

// NewWriter creates a writer that stores transcripts in stateDir/debug.
func NewWriter(stateDir string, logger *logging.Logger) *Writer {
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &Writer{
		dir:    filepath.Join(stateDir, "debug"),
		logger: logger,
		now:    time.Now,
	}
}

// Path returns the transcript file path for a task id.
func (w *Writer) Path(taskID string) string {
	return filepath.Join(w.dir, taskID+".json")
}

// Write serializes the transcript for a task. Failures are logged as
// warnings and swallowed.
func (w *Writer) Write(taskID string, result *agent.Result, opts RunOptions) {
	if result == nil {
		return
	}

	transcript := Transcript{
		TaskID:        taskID,
		FinalResponse: result.FinalResponse,
		Success:       result.Success,
		Cost:          result.Cost,
		Duration:      result.DurationMillis,
		MessagesCount: len(result.Messages),
		Timestamp:     w.now().UTC(),
		Options:       opts,
		Messages:      result.Messages,
	}

	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		w.logger.Warn("could not create debug directory, skipping transcript",
			"dir", w.dir, "error", err.Error())
		return
	}

	data, err := json.MarshalIndent(transcript, "", "  ")
	if err != nil {
		w.logger.Warn("could not serialize debug transcript",
			"task_id", taskID, "error", err.Error())
		return
	}

	if err := os.WriteFile(w.Path(taskID), data, 0o644); err != nil {
		w.logger.Warn("could not write debug transcript",
			"task_id", taskID, "path", w.Path(taskID), "error", err.Error())
		return
	}

	w.logger.Debug("wrote debug transcript",
		"task_id", taskID, "messages", transcript.MessagesCount)
}
