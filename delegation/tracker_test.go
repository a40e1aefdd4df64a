package delegation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BaSui01/agenthive/types"
)

func newTracker() *Tracker {
	return NewTracker(zap.NewNop(), nil)
}

func TestApplyPlan_RejectsCycle(t *testing.T) {
	t.Parallel()

	tr := newTracker()
	p := tr.CreateProject("build the thing", "user")

	err := tr.ApplyPlan(p.ID, []Subtask{
		{ID: "a", Dependencies: []string{"c"}},
		{ID: "b", Dependencies: []string{"a"}},
		{ID: "c", Dependencies: []string{"b"}},
	})
	require.Error(t, err)
	assert.True(t, types.IsCode(err, types.ErrInvalidPlan))

	got, ok := tr.Get(p.ID)
	require.True(t, ok)
	assert.Equal(t, ProjectFailed, got.Status)
}

func TestApplyPlan_RejectsDanglingDependency(t *testing.T) {
	t.Parallel()

	tr := newTracker()
	p := tr.CreateProject("task", "user")

	err := tr.ApplyPlan(p.ID, []Subtask{
		{ID: "a"},
		{ID: "b", Dependencies: []string{"ghost"}},
	})
	require.Error(t, err)
	assert.True(t, types.IsCode(err, types.ErrInvalidPlan))
}

func TestApplyPlan_RejectsSelfDependencyAndDuplicates(t *testing.T) {
	t.Parallel()

	tr := newTracker()
	p := tr.CreateProject("task", "user")
	err := tr.ApplyPlan(p.ID, []Subtask{{ID: "a", Dependencies: []string{"a"}}})
	assert.True(t, types.IsCode(err, types.ErrInvalidPlan))

	p2 := tr.CreateProject("task", "user")
	err = tr.ApplyPlan(p2.ID, []Subtask{{ID: "a"}, {ID: "a"}})
	assert.True(t, types.IsCode(err, types.ErrInvalidPlan))
}

func TestNextReadyTask_DependencyGating(t *testing.T) {
	t.Parallel()

	tr := newTracker()
	p := tr.CreateProject("task", "user")
	require.NoError(t, tr.ApplyPlan(p.ID, []Subtask{
		{ID: "analyze"},
		{ID: "execute", Dependencies: []string{"analyze"}},
		{ID: "review", Dependencies: []string{"execute"}},
	}))

	st, ok, err := tr.NextReadyTask(p.ID, "w1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "analyze", st.ID)

	// execute is gated until analyze completes; nothing else is ready.
	_, ok, err = tr.NextReadyTask(p.ID, "w1")
	require.NoError(t, err)
	assert.False(t, ok)

	done, err := tr.MarkSubtaskResult(p.ID, "analyze", true, "analysis")
	require.NoError(t, err)
	assert.False(t, done)

	// Eligible on the very next call once the dependency completed.
	st, ok, err = tr.NextReadyTask(p.ID, "w2")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "execute", st.ID)
	assert.Equal(t, "w2", st.Assignee)
}

func TestMarkSubtaskResult_ProgressAndCompletion(t *testing.T) {
	t.Parallel()

	tr := newTracker()
	p := tr.CreateProject("task", "user")
	require.NoError(t, tr.ApplyPlan(p.ID, []Subtask{{ID: "a"}, {ID: "b"}}))

	_, _, _ = tr.NextReadyTask(p.ID, "w1")
	_, _, _ = tr.NextReadyTask(p.ID, "w1")

	done, err := tr.MarkSubtaskResult(p.ID, "a", true, "ok")
	require.NoError(t, err)
	assert.False(t, done)
	got, _ := tr.Get(p.ID)
	assert.InDelta(t, 0.5, got.Progress, 1e-9)
	assert.Equal(t, ProjectExecuting, got.Status)

	done, err = tr.MarkSubtaskResult(p.ID, "b", true, "ok")
	require.NoError(t, err)
	assert.True(t, done)
	got, _ = tr.Get(p.ID)
	assert.InDelta(t, 1.0, got.Progress, 1e-9)
	assert.Equal(t, ProjectCompleted, got.Status)
}

func TestMarkSubtaskResult_FailureKeepsProgress(t *testing.T) {
	t.Parallel()

	tr := newTracker()
	p := tr.CreateProject("task", "user")
	require.NoError(t, tr.ApplyPlan(p.ID, []Subtask{{ID: "a"}, {ID: "b"}}))

	_, _, _ = tr.NextReadyTask(p.ID, "w1")
	_, err := tr.MarkSubtaskResult(p.ID, "a", true, "ok")
	require.NoError(t, err)

	before, _ := tr.Get(p.ID)
	_, _, _ = tr.NextReadyTask(p.ID, "w1")
	_, err = tr.MarkSubtaskResult(p.ID, "b", false, "boom")
	require.NoError(t, err)

	after, _ := tr.Get(p.ID)
	assert.GreaterOrEqual(t, after.Progress, before.Progress)
}

func TestUnknownProjectAndSubtask(t *testing.T) {
	t.Parallel()

	tr := newTracker()
	_, _, err := tr.NextReadyTask("nope", "w1")
	assert.True(t, types.IsCode(err, types.ErrUnknownProject))

	p := tr.CreateProject("task", "user")
	require.NoError(t, tr.ApplyPlan(p.ID, []Subtask{{ID: "a"}}))
	_, err = tr.MarkSubtaskResult(p.ID, "nope", true, "")
	assert.True(t, types.IsCode(err, types.ErrUnknownSubtask))
}
