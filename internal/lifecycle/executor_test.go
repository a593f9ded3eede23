package lifecycle

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stlcpilot/internal/config"
	"stlcpilot/internal/llm"
	"stlcpilot/internal/router"
	"stlcpilot/internal/session"
	"stlcpilot/internal/stage"
	"stlcpilot/internal/store"
	"stlcpilot/internal/workflow"
)

func newManager(t *testing.T, gen workflow.Generator) *session.Manager {
	t.Helper()
	st, err := store.NewFileStore(t.TempDir(), nil)
	require.NoError(t, err)
	return session.NewManager(st, workflow.NewRunner(config.DefaultConfig(), nil), gen)
}

func createSession(t *testing.T, mgr *session.Manager) string {
	t.Helper()
	snap, err := mgr.Create(context.Background(), "Checkout", []string{"R1", "R2"})
	require.NoError(t, err)
	return snap.ID
}

// scriptedReviewer answers from a list of decisions and records proposals.
type scriptedReviewer struct {
	decisions []Decision
	proposals []Proposal
}

func (r *scriptedReviewer) Review(ctx context.Context, p Proposal) (Decision, error) {
	r.proposals = append(r.proposals, p)
	if len(r.decisions) == 0 {
		return Decision{Action: Approve}, nil
	}
	d := r.decisions[0]
	r.decisions = r.decisions[1:]
	return d, nil
}

func TestExecutor_AutoApproveToDone(t *testing.T) {
	gen := &llm.Mock{Responses: []string{"generated"}}
	mgr := newManager(t, gen)
	id := createSession(t, mgr)
	exec := NewExecutor(mgr, AutoApprover{})

	var progress []stage.Stage
	exec.SetProgressCallback(func(i, total int, s stage.Stage) {
		assert.Equal(t, 6, total)
		assert.Equal(t, len(progress)+1, i)
		progress = append(progress, s)
	})

	res, err := exec.Execute(context.Background(), id)

	require.NoError(t, err)
	assert.True(t, res.Completed())
	assert.Len(t, res.Artifacts, 7)
	assert.Equal(t, []stage.Stage{
		stage.RequirementAnalysis,
		stage.TestPlanning,
		stage.TestCaseDevelopment,
		stage.TestEnvironmentSetup,
		stage.TestExecution,
		stage.TestClosure,
	}, progress)
	assert.Equal(t, 5, gen.Calls())

	snap, err := mgr.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "- R1\n- R2", snap.Document.StageOutputs[stage.RequirementAnalysis])
	assert.Equal(t, "generated", snap.Document.StageOutputs[stage.TestClosure])
}

func TestExecutor_EditedContentIsCommitted(t *testing.T) {
	mgr := newManager(t, &llm.Mock{Responses: []string{"generated"}})
	id := createSession(t, mgr)
	reviewer := &scriptedReviewer{decisions: []Decision{
		{Action: Approve},
		{Action: Approve, Content: "edited plan"},
		{Action: Abort},
	}}

	_, err := NewExecutor(mgr, reviewer).Execute(context.Background(), id)

	require.ErrorIs(t, err, ErrAborted)
	snap, err := mgr.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "edited plan", snap.Document.StageOutputs[stage.TestPlanning])
	assert.Equal(t, stage.TestCaseDevelopment, snap.Document.CurrentStage)
}

func TestExecutor_EditedPlanFlowsIntoNextPrompt(t *testing.T) {
	gen := &llm.Mock{Responses: []string{"generated"}}
	mgr := newManager(t, gen)
	id := createSession(t, mgr)
	reviewer := &scriptedReviewer{decisions: []Decision{
		{Action: Approve},
		{Action: Approve, Content: "edited plan"},
		{Action: Abort},
	}}

	_, _ = NewExecutor(mgr, reviewer).Execute(context.Background(), id)

	prompts := gen.Prompts()
	require.Len(t, prompts, 2)
	assert.Contains(t, prompts[1], "Test Plan:\nedited plan\n")
	assert.NotContains(t, prompts[1], "Test Plan:\ngenerated")
}

func TestExecutor_Regenerate(t *testing.T) {
	gen := &llm.Mock{Responses: []string{"first", "second"}}
	mgr := newManager(t, gen)
	id := createSession(t, mgr)
	reviewer := &scriptedReviewer{decisions: []Decision{
		{Action: Approve},
		{Action: Regenerate, Feedback: "too short"},
		{Action: Approve},
		{Action: Abort},
	}}

	_, err := NewExecutor(mgr, reviewer).Execute(context.Background(), id)

	require.ErrorIs(t, err, ErrAborted)
	snap, err := mgr.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "second", snap.Document.StageOutputs[stage.TestPlanning])

	require.Len(t, reviewer.proposals, 4)
	assert.Equal(t, 0, reviewer.proposals[1].Attempt)
	assert.Equal(t, 1, reviewer.proposals[2].Attempt)
	assert.False(t, reviewer.proposals[0].Generated)
	assert.True(t, reviewer.proposals[1].Generated)
}

func TestExecutor_RedraftLimit(t *testing.T) {
	gen := &llm.Mock{Responses: []string{"draft"}}
	mgr := newManager(t, gen)
	id := createSession(t, mgr)
	_, err := mgr.Commit(context.Background(), id, "analysis")
	require.NoError(t, err)

	always := ReviewerFunc(func(ctx context.Context, p Proposal) (Decision, error) {
		return Decision{Action: Regenerate}, nil
	})
	exec := NewExecutor(mgr, always)
	exec.SetMaxRedrafts(1)

	_, err = exec.Execute(context.Background(), id)

	require.ErrorIs(t, err, ErrRedraftLimit)
	assert.Equal(t, 2, gen.Calls())
	snap, err := mgr.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, stage.TestPlanning, snap.Document.CurrentStage)
}

func TestExecutor_ResumesPendingDraft(t *testing.T) {
	gen := &llm.Mock{Responses: []string{"pending one", "fresh"}}
	mgr := newManager(t, gen)
	id := createSession(t, mgr)
	ctx := context.Background()
	_, err := mgr.Commit(ctx, id, "analysis")
	require.NoError(t, err)
	_, err = mgr.Draft(ctx, id)
	require.NoError(t, err)

	reviewer := &scriptedReviewer{decisions: []Decision{{Action: Approve}, {Action: Abort}}}
	_, err = NewExecutor(mgr, reviewer).Execute(ctx, id)

	require.ErrorIs(t, err, ErrAborted)
	assert.Equal(t, "pending one", reviewer.proposals[0].Content)
	snap, err := mgr.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "pending one", snap.Document.StageOutputs[stage.TestPlanning])
}

func TestExecutor_GenerationFailureStops(t *testing.T) {
	gen := &llm.Mock{Err: errors.New("provider down")}
	mgr := newManager(t, gen)
	id := createSession(t, mgr)

	_, err := NewExecutor(mgr, AutoApprover{}).Execute(context.Background(), id)

	require.ErrorIs(t, err, workflow.ErrGenerationFailed)
	snap, err := mgr.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, stage.TestPlanning, snap.Document.CurrentStage)
}

func TestExecutor_ReviewerError(t *testing.T) {
	mgr := newManager(t, &llm.Mock{})
	id := createSession(t, mgr)
	boom := errors.New("terminal closed")

	_, err := NewExecutor(mgr, ReviewerFunc(func(context.Context, Proposal) (Decision, error) {
		return Decision{}, boom
	})).Execute(context.Background(), id)

	require.ErrorIs(t, err, boom)
}

func TestExecutor_AlreadyDone(t *testing.T) {
	mgr := newManager(t, &llm.Mock{Responses: []string{"x"}})
	id := createSession(t, mgr)
	exec := NewExecutor(mgr, AutoApprover{})
	_, err := exec.Execute(context.Background(), id)
	require.NoError(t, err)

	_, err = exec.Execute(context.Background(), id)

	require.ErrorIs(t, err, router.ErrSessionComplete)
}

func TestExecutor_GetSteps(t *testing.T) {
	mgr := newManager(t, &llm.Mock{})
	id := createSession(t, mgr)
	_, err := mgr.Commit(context.Background(), id, "analysis")
	require.NoError(t, err)

	steps, err := NewExecutor(mgr, AutoApprover{}).GetSteps(context.Background(), id)

	require.NoError(t, err)
	require.Len(t, steps, 5)
	assert.Equal(t, stage.TestPlanning, steps[0].Stage)
	assert.Equal(t, stage.Done, steps[4].Next)
}

func TestExecutor_NotFound(t *testing.T) {
	mgr := newManager(t, &llm.Mock{})

	_, err := NewExecutor(mgr, AutoApprover{}).Execute(context.Background(), "missing")

	require.ErrorIs(t, err, store.ErrNotFound)
}
