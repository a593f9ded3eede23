package router

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stlcpilot/internal/stage"
)

func TestRouter_GetStep(t *testing.T) {
	r := NewRouter()

	tests := []struct {
		stage        stage.Stage
		wantNext     stage.Stage
		wantProduces bool
		wantErr      error
	}{
		{stage.ProjectInit, stage.RequirementAnalysis, false, nil},
		{stage.RequirementAnalysis, stage.TestPlanning, false, nil},
		{stage.TestPlanning, stage.TestCaseDevelopment, true, nil},
		{stage.TestCaseDevelopment, stage.TestEnvironmentSetup, true, nil},
		{stage.TestEnvironmentSetup, stage.TestExecution, true, nil},
		{stage.TestExecution, stage.TestClosure, true, nil},
		{stage.TestClosure, stage.Done, true, nil},
		{stage.Done, "", false, ErrSessionComplete},
		{stage.Stage("invalid"), "", false, ErrUnknownStage},
	}

	for _, tt := range tests {
		step, err := r.GetStep(tt.stage)
		if tt.wantErr != nil {
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Router.GetStep(%q) err = %v, want %v", tt.stage, err, tt.wantErr)
			}
			continue
		}
		if err != nil {
			t.Errorf("Router.GetStep(%q) unexpected err: %v", tt.stage, err)
			continue
		}
		if step.Stage != tt.stage {
			t.Errorf("Router.GetStep(%q).Stage = %q", tt.stage, step.Stage)
		}
		if step.Next != tt.wantNext {
			t.Errorf("Router.GetStep(%q).Next = %q, want %q", tt.stage, step.Next, tt.wantNext)
		}
		if step.Produces != tt.wantProduces {
			t.Errorf("Router.GetStep(%q).Produces = %v, want %v", tt.stage, step.Produces, tt.wantProduces)
		}
	}
}

func TestRouter_ChainIsTotalAndForwardOnly(t *testing.T) {
	r := NewRouter()

	// Walking Next from ProjectInit must visit every stage exactly once, in order.
	var visited []stage.Stage
	s := stage.ProjectInit
	for !s.IsTerminal() {
		visited = append(visited, s)
		next, err := r.Next(s)
		require.NoError(t, err)
		require.Equal(t, s.Index()+1, next.Index(), "step from %s must advance by one", s)
		s = next
	}
	visited = append(visited, s)

	assert.Equal(t, stage.All(), visited)
}

func TestRouter_Produces(t *testing.T) {
	r := NewRouter()

	assert.False(t, r.Produces(stage.ProjectInit))
	assert.False(t, r.Produces(stage.RequirementAnalysis))
	assert.True(t, r.Produces(stage.TestPlanning))
	assert.True(t, r.Produces(stage.TestClosure))
	assert.False(t, r.Produces(stage.Done))
	assert.False(t, r.Produces(stage.Stage("nope")))
}

func TestRouter_GetLifecycle(t *testing.T) {
	r := NewRouter()

	tests := []struct {
		name       string
		stage      stage.Stage
		wantStages []stage.Stage
		wantErr    error
	}{
		{
			name:  "project-init returns full chain",
			stage: stage.ProjectInit,
			wantStages: []stage.Stage{
				stage.ProjectInit,
				stage.RequirementAnalysis,
				stage.TestPlanning,
				stage.TestCaseDevelopment,
				stage.TestEnvironmentSetup,
				stage.TestExecution,
				stage.TestClosure,
			},
		},
		{
			name:  "test-execution returns remaining two",
			stage: stage.TestExecution,
			wantStages: []stage.Stage{
				stage.TestExecution,
				stage.TestClosure,
			},
		},
		{
			name:    "done returns complete",
			stage:   stage.Done,
			wantErr: ErrSessionComplete,
		},
		{
			name:    "unknown returns error",
			stage:   stage.Stage("bogus"),
			wantErr: ErrUnknownStage,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			steps, err := r.GetLifecycle(tt.stage)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, steps)
				return
			}
			require.NoError(t, err)

			got := make([]stage.Stage, len(steps))
			for i, s := range steps {
				got[i] = s.Stage
			}
			assert.Equal(t, tt.wantStages, got)
			assert.Equal(t, stage.Done, steps[len(steps)-1].Next)
		})
	}
}

func TestDefaultMatchesRouter(t *testing.T) {
	r := NewRouter()

	for _, s := range stage.All() {
		pkgSteps, pkgErr := GetLifecycle(s)
		routerSteps, routerErr := r.GetLifecycle(s)

		assert.ErrorIs(t, pkgErr, routerErr)
		assert.Equal(t, routerSteps, pkgSteps, "stage %s", s)
	}
	assert.Same(t, defaultRouter, Default())
}
