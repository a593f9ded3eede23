package machine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stlcpilot/internal/document"
	"stlcpilot/internal/stage"
	"stlcpilot/internal/workflow"
)

func TestRestore_ResumeEquivalence(t *testing.T) {
	// Two machines on identical clocks: one runs straight through, the other
	// is snapshotted and restored midway.
	straight := New(workflow.NewRunner(stageInstructions{}, nil), &scriptedGenerator{}, WithClock(fixedClock()))
	resumedClock := fixedClock()
	first := New(workflow.NewRunner(stageInstructions{}, nil), &scriptedGenerator{}, WithClock(resumedClock))

	for _, m := range []*Machine{straight, first} {
		require.NoError(t, m.Initialize("Checkout", []string{"R1", "R2"}))
		require.NoError(t, m.Commit("analysis"))
		require.NoError(t, m.Commit("Plan A"))
	}

	// Snapshot reads the clock, so tick the straight machine's clock too.
	snap := first.Snapshot("sess-1")
	_ = straight.Snapshot("sess-1")
	resumed, err := Restore(snap, workflow.NewRunner(stageInstructions{}, nil), &scriptedGenerator{}, WithClock(resumedClock))
	require.NoError(t, err)

	for _, m := range []*Machine{straight, resumed} {
		require.NoError(t, m.Commit("Cases B"))
		require.NoError(t, m.Commit("Env C"))
	}

	assert.Equal(t, straight.Current(), resumed.Current())
	assert.Equal(t, straight.Document(), resumed.Document())
	assert.Equal(t, straight.History(), resumed.History())
}

func TestRestore_KeepsPendingDraft(t *testing.T) {
	m := initialized(t, &scriptedGenerator{})
	advanceTo(t, m, stage.TestPlanning)
	d, err := m.Draft(context.Background())
	require.NoError(t, err)

	restored, err := Restore(m.Snapshot("s"), workflow.NewRunner(stageInstructions{}, nil), &scriptedGenerator{})

	require.NoError(t, err)
	pending, ok := restored.Pending()
	require.True(t, ok)
	assert.Equal(t, d, pending)
}

func TestRestore_DropsStalePendingDraft(t *testing.T) {
	m := initialized(t, &scriptedGenerator{})
	advanceTo(t, m, stage.TestCaseDevelopment)
	snap := m.Snapshot("s")
	snap.Pending = &document.Draft{Stage: stage.TestPlanning, Content: "old"}

	restored, err := Restore(snap, workflow.NewRunner(stageInstructions{}, nil), &scriptedGenerator{})

	require.NoError(t, err)
	_, ok := restored.Pending()
	assert.False(t, ok)
}

func TestRestore_FreshSnapshot(t *testing.T) {
	m := newTestMachine(&scriptedGenerator{})

	restored, err := Restore(m.Snapshot("s"), workflow.NewRunner(stageInstructions{}, nil), &scriptedGenerator{})

	require.NoError(t, err)
	assert.Equal(t, stage.ProjectInit, restored.Current())
}

func TestRestore_Corrupt(t *testing.T) {
	valid := func(t *testing.T) document.Snapshot {
		m := initialized(t, &scriptedGenerator{})
		advanceTo(t, m, stage.TestCaseDevelopment)
		return m.Snapshot("s")
	}

	tests := []struct {
		name   string
		mutate func(*document.Snapshot)
	}{
		{
			name:   "unknown stage",
			mutate: func(s *document.Snapshot) { s.Document.CurrentStage = "deployment" },
		},
		{
			name:   "missing output for passed stage",
			mutate: func(s *document.Snapshot) { delete(s.Document.StageOutputs, stage.TestPlanning) },
		},
		{
			name: "output for future stage",
			mutate: func(s *document.Snapshot) {
				s.Document.StageOutputs[stage.TestExecution] = "from the future"
			},
		},
		{
			name: "output for current stage",
			mutate: func(s *document.Snapshot) {
				s.Document.StageOutputs[stage.TestCaseDevelopment] = "not committed"
			},
		},
		{
			name:   "empty project name",
			mutate: func(s *document.Snapshot) { s.Document.ProjectName = "" },
		},
		{
			name:   "no requirements",
			mutate: func(s *document.Snapshot) { s.Document.Requirements = nil },
		},
		{
			name:   "truncated history",
			mutate: func(s *document.Snapshot) { s.History = s.History[:len(s.History)-1] },
		},
		{
			name: "history skips a stage",
			mutate: func(s *document.Snapshot) {
				s.History[2].From = stage.TestCaseDevelopment
			},
		},
		{
			name: "edited output",
			mutate: func(s *document.Snapshot) {
				s.Document.StageOutputs[stage.TestPlanning] = "rewritten after commit"
			},
		},
		{
			name:   "stage rewound",
			mutate: func(s *document.Snapshot) { s.Document.CurrentStage = stage.TestPlanning },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snap := valid(t)
			tt.mutate(&snap)

			m, err := Restore(snap, workflow.NewRunner(stageInstructions{}, nil), &scriptedGenerator{})

			require.ErrorIs(t, err, ErrCorruptState)
			assert.Nil(t, m)
		})
	}
}

func TestVerify_ProjectDataBeforeInit(t *testing.T) {
	snap := newTestMachine(&scriptedGenerator{}).Snapshot("s")
	snap.Document.ProjectName = "Checkout"

	require.ErrorIs(t, Verify(snap), ErrCorruptState)
}

func TestVerify_CompletedSession(t *testing.T) {
	m := initialized(t, &scriptedGenerator{})
	advanceTo(t, m, stage.Done)

	require.NoError(t, Verify(m.Snapshot("s")))
}
