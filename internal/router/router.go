// Package router provides the stage transition table for the testing lifecycle.
//
// The router maps every stage to the step that runs there: which stage follows
// it and whether the stage produces content through the language model. It is
// the single source of truth for forward progression and is consulted by the
// state machine on every commit and by the lifecycle executor to list the
// remaining steps.
//
// Key types:
//   - [Router] - Transition table over the fixed stage order
//   - [LifecycleStep] - A single step in a lifecycle sequence
//
// Package-level functions [GetStep] and [GetLifecycle] use the default router.
package router

import (
	"errors"

	"stlcpilot/internal/stage"
)

// Sentinel errors for stage routing.
var (
	// ErrSessionComplete indicates the session is at [stage.Done] and no
	// further step exists. Callers should treat this as "nothing to do"
	// rather than a failure.
	ErrSessionComplete = errors.New("session is complete, no step remaining")

	// ErrUnknownStage indicates the stage value is not part of the lifecycle.
	// Seeing it usually means a persisted snapshot is damaged.
	ErrUnknownStage = errors.New("unknown stage value")
)

// chainStep is an internal representation of a step in the stage chain.
type chainStep struct {
	Stage    stage.Stage
	Next     stage.Stage
	Produces bool
}

// Router routes stages to their lifecycle steps.
//
// The chain is built once from [stage.All] and never reordered. There is
// exactly one step per non-terminal stage, so the mapping from stage to
// behavior is total over the enumeration.
type Router struct {
	chain      []chainStep
	stageIndex map[stage.Stage]int
}

// NewRouter creates a [Router] over the fixed stage order.
//
// ProjectInit and RequirementAnalysis are approval-only steps: their content
// comes from the user, not the model. TestPlanning through TestClosure
// produce drafts. TestClosure advances to Done.
func NewRouter() *Router {
	all := stage.All()
	r := &Router{
		stageIndex: make(map[stage.Stage]int, len(all)),
	}
	for i := 0; i < len(all)-1; i++ {
		s := all[i]
		r.chain = append(r.chain, chainStep{
			Stage:    s,
			Next:     all[i+1],
			Produces: produces(s),
		})
		r.stageIndex[s] = i
	}
	return r
}

func produces(s stage.Stage) bool {
	switch s {
	case stage.TestPlanning,
		stage.TestCaseDevelopment,
		stage.TestEnvironmentSetup,
		stage.TestExecution,
		stage.TestClosure:
		return true
	}
	return false
}

// GetStep returns the step that runs at stage s.
//
// Returns [ErrSessionComplete] for [stage.Done] and [ErrUnknownStage] for
// values outside the lifecycle.
func (r *Router) GetStep(s stage.Stage) (LifecycleStep, error) {
	if s == stage.Done {
		return LifecycleStep{}, ErrSessionComplete
	}
	i, ok := r.stageIndex[s]
	if !ok {
		return LifecycleStep{}, ErrUnknownStage
	}
	cs := r.chain[i]
	return LifecycleStep{Stage: cs.Stage, Next: cs.Next, Produces: cs.Produces}, nil
}

// Next returns the stage that follows s.
func (r *Router) Next(s stage.Stage) (stage.Stage, error) {
	step, err := r.GetStep(s)
	if err != nil {
		return "", err
	}
	return step.Next, nil
}

// Produces reports whether stage s has a content-production step.
// It is false for ProjectInit, RequirementAnalysis, Done and unknown values.
func (r *Router) Produces(s stage.Stage) bool {
	step, err := r.GetStep(s)
	return err == nil && step.Produces
}

// GetLifecycle returns the remaining steps from stage s through to
// completion, starting with the step at s itself.
//
// Returns [ErrSessionComplete] for [stage.Done] and [ErrUnknownStage] for
// values outside the lifecycle.
func (r *Router) GetLifecycle(s stage.Stage) ([]LifecycleStep, error) {
	if s == stage.Done {
		return nil, ErrSessionComplete
	}
	startIdx, ok := r.stageIndex[s]
	if !ok {
		return nil, ErrUnknownStage
	}

	remaining := r.chain[startIdx:]
	steps := make([]LifecycleStep, len(remaining))
	for i, cs := range remaining {
		steps[i] = LifecycleStep{
			Stage:    cs.Stage,
			Next:     cs.Next,
			Produces: cs.Produces,
		}
	}
	return steps, nil
}

// defaultRouter is the package-level router used by [GetStep] and [GetLifecycle].
var defaultRouter = NewRouter()

// Default returns the shared package-level router.
func Default() *Router {
	return defaultRouter
}

// GetStep returns the step for s using the default router.
func GetStep(s stage.Stage) (LifecycleStep, error) {
	return defaultRouter.GetStep(s)
}

// GetLifecycle returns the remaining steps from s using the default router.
//
// The sequences are:
//   - project-init: every step through test-closure
//   - test-planning: test-planning -> ... -> test-closure
//   - test-closure: test-closure only
//   - done: [ErrSessionComplete]
func GetLifecycle(s stage.Stage) ([]LifecycleStep, error) {
	return defaultRouter.GetLifecycle(s)
}
