package task

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"codexloop/internal/agent"
	"codexloop/internal/errors"
)

func testState(taskID string) *State {
	st := NewState(taskID, "specs/feature.md", "Add a --version flag.", 3)
	st.BranchName = "codexloop/" + taskID
	st.WorktreeInfo = WorktreeInfo{Path: "/tmp/wt/" + taskID, BaseBranch: "main"}
	return st
}

func TestSaveLoadRoundTrip(t *testing.T) {
	store := NewStore(t.TempDir(), nil)
	id := NewID()

	st := testState(id)
	st.AppendCoderResponse(agent.Result{
		FinalResponse:  "implemented",
		Success:        true,
		Cost:           0.12,
		DurationMillis: 4500,
		Messages: []agent.Message{
			{Type: agent.TypeAssistant, Raw: map[string]any{
				"type":    "assistant",
				"message": map[string]any{"content": []any{map[string]any{"type": "text", "text": "implemented"}}},
			}},
		},
	})
	st.AppendReviewerResponse(agent.Result{FinalResponse: "VERDICT: APPROVED", Success: true})
	require.NoError(t, store.Save(st))

	loaded, err := store.Load(id)
	require.NoError(t, err)
	assert.Equal(t, st.TaskID, loaded.TaskID)
	assert.Equal(t, st.OriginalSpec, loaded.OriginalSpec)
	assert.Equal(t, st.BranchName, loaded.BranchName)
	assert.Equal(t, st.WorktreeInfo, loaded.WorktreeInfo)
	assert.Equal(t, 1, loaded.CurrentIteration)
	require.Len(t, loaded.CoderResponses, 1)
	require.Len(t, loaded.ReviewerResponses, 1)
	assert.Equal(t, "implemented", loaded.CoderResponses[0].FinalResponse)
	assert.Equal(t, "implemented", loaded.CoderResponses[0].Messages[0].Text())
	assert.True(t, loaded.CreatedAt.Equal(st.CreatedAt))
	assert.True(t, loaded.UpdatedAt.Equal(st.UpdatedAt))
}

func TestLoadMissingTaskIsNotFound(t *testing.T) {
	store := NewStore(t.TempDir(), nil)
	_, err := store.Load(NewID())
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrTaskNotFound))
}

func TestLoadRejectsMalformedID(t *testing.T) {
	store := NewStore(t.TempDir(), nil)
	_, err := store.Load("../escape")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrTaskNotFound))
}

func TestLoadCorruptedState(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(dir, nil)
	id := NewID()
	require.NoError(t, os.WriteFile(filepath.Join(dir, id+".json"), []byte("{broken"), 0o644))

	_, err := store.Load(id)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrStateCorrupted))
}

func TestSaveCreatesDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", ".codex")
	store := NewStore(dir, nil)
	st := testState(NewID())
	require.NoError(t, store.Save(st))
	assert.FileExists(t, store.Path(st.TaskID))
}

func TestSaveReplacesWholeDocument(t *testing.T) {
	store := NewStore(t.TempDir(), nil)
	st := testState(NewID())
	require.NoError(t, store.Save(st))

	st.MarkFailed("agent process failed")
	require.NoError(t, store.Save(st))

	loaded, err := store.Load(st.TaskID)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, loaded.Status)
	assert.Equal(t, "agent process failed", loaded.Error)
}

func TestListNewestFirst(t *testing.T) {
	store := NewStore(t.TempDir(), nil)
	first := testState("task-1000-aaaaaaaa")
	second := testState("task-2000-bbbbbbbb")
	require.NoError(t, store.Save(first))
	require.NoError(t, store.Save(second))

	ids, err := store.List()
	require.NoError(t, err)
	assert.Equal(t, []string{"task-2000-bbbbbbbb", "task-1000-aaaaaaaa"}, ids)
}

func TestListMissingDirectory(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "never-created"), nil)
	ids, err := store.List()
	require.NoError(t, err)
	assert.Empty(t, ids)
}
