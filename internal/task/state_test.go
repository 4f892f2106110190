package task

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"codexloop/internal/agent"
)

func TestNewIDFormat(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := NewID()
		assert.True(t, ValidID(id), "id %q should match the task id shape", id)
		assert.False(t, seen[id], "id %q generated twice", id)
		seen[id] = true
	}
}

func TestValidID(t *testing.T) {
	assert.True(t, ValidID("task-1756500000000-9f3a2c1d"))
	assert.False(t, ValidID("task-abc-9f3a2c1d"))
	assert.False(t, ValidID("run-1756500000000-9f3a2c1d"))
	assert.False(t, ValidID("task-1756500000000-UPPER"))
	assert.False(t, ValidID(""))
}

func TestResponseCountsTrackIteration(t *testing.T) {
	st := NewState(NewID(), "spec.md", "spec text", 3)
	require.Equal(t, 0, st.CurrentIteration)

	for i := 1; i <= 3; i++ {
		st.AppendCoderResponse(agent.Result{Success: true})
		assert.Len(t, st.CoderResponses, i)
		assert.Equal(t, i-1, st.CurrentIteration, "iteration bumps only after the reviewer turn")

		st.AppendReviewerResponse(agent.Result{Success: true})
		assert.Len(t, st.ReviewerResponses, i)
		assert.Equal(t, i, st.CurrentIteration)
		assert.Len(t, st.CoderResponses, st.CurrentIteration)
		assert.Len(t, st.ReviewerResponses, st.CurrentIteration)
	}
}

func TestStatusTransitions(t *testing.T) {
	st := NewState(NewID(), "spec.md", "spec text", 1)
	assert.Equal(t, StatusRunning, st.Status)
	assert.False(t, st.Status.Terminal())

	st.MarkSucceeded("https://github.com/acme/repo/pull/7")
	assert.Equal(t, StatusSucceeded, st.Status)
	assert.True(t, st.Status.Terminal())
	assert.Equal(t, "https://github.com/acme/repo/pull/7", st.PRURL)

	failed := NewState(NewID(), "spec.md", "spec text", 1)
	failed.MarkFailed("boom")
	assert.Equal(t, StatusFailed, failed.Status)
	assert.True(t, failed.Status.Terminal())
	assert.Equal(t, "boom", failed.Error)
}

func TestUpdatedAtMonotonic(t *testing.T) {
	st := NewState(NewID(), "spec.md", "spec text", 1)
	before := st.UpdatedAt
	st.Touch()
	assert.False(t, st.UpdatedAt.Before(before))
	assert.False(t, st.UpdatedAt.Before(st.CreatedAt))
}
