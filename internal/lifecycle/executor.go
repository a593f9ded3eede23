// Package lifecycle drives a session from its current stage to done.
//
// The lifecycle package provides [Executor], which walks the remaining stages
// of a session in order. At every stage it proposes content (the requirement
// list for requirement-analysis, a generated draft for later stages), asks a
// [Reviewer] for a decision and commits the approved, possibly edited,
// content. Nothing advances without an approval.
//
// Key concepts:
//   - Remaining steps come from [router.GetLifecycle] for the current stage
//   - Each step is reviewed before it is committed through [SessionService]
//   - Progress can be tracked via [ProgressCallback]
package lifecycle

import (
	"context"
	"errors"
	"fmt"

	"stlcpilot/internal/document"
	"stlcpilot/internal/router"
	"stlcpilot/internal/session"
	"stlcpilot/internal/stage"
)

// DefaultMaxRedrafts bounds how many times one stage is regenerated.
const DefaultMaxRedrafts = 5

var (
	// ErrAborted is returned when the reviewer stops the run. Everything
	// committed so far is kept.
	ErrAborted = errors.New("run aborted by reviewer")

	// ErrRedraftLimit is returned when a stage is rejected more than the
	// configured number of times.
	ErrRedraftLimit = errors.New("redraft limit reached")
)

// SessionService is the subset of [session.Manager] the executor needs.
type SessionService interface {
	Get(ctx context.Context, id string) (document.Snapshot, error)
	Draft(ctx context.Context, id string) (document.Draft, error)
	Reject(ctx context.Context, id, feedback string) (document.Draft, error)
	Commit(ctx context.Context, id, content string) (session.CommitResult, error)
}

// Action is a reviewer's verdict on a proposal.
type Action int

const (
	// Approve commits the proposal, or Decision.Content when set.
	Approve Action = iota

	// Regenerate discards the proposal and asks for a new one.
	Regenerate

	// Abort stops the run.
	Abort
)

// Proposal is the content offered for review at one stage.
type Proposal struct {
	SessionID   string
	ProjectName string
	Stage       stage.Stage
	Content     string

	// Attempt counts regenerations of this stage, starting at 0.
	Attempt int

	// Generated is false for content that did not come from the generator
	// (the requirement list at requirement-analysis).
	Generated bool
}

// Decision is a reviewer's answer to a [Proposal].
type Decision struct {
	Action Action

	// Content replaces the proposal on approval when non-empty.
	Content string

	// Feedback is recorded with a rejected draft.
	Feedback string
}

// Reviewer decides what happens to each proposal.
type Reviewer interface {
	Review(ctx context.Context, p Proposal) (Decision, error)
}

// ReviewerFunc adapts a function to [Reviewer].
type ReviewerFunc func(ctx context.Context, p Proposal) (Decision, error)

// Review calls f(ctx, p).
func (f ReviewerFunc) Review(ctx context.Context, p Proposal) (Decision, error) {
	return f(ctx, p)
}

// AutoApprover approves every proposal unchanged.
type AutoApprover struct{}

// Review implements [Reviewer].
func (AutoApprover) Review(ctx context.Context, p Proposal) (Decision, error) {
	return Decision{Action: Approve}, nil
}

// ProgressCallback is invoked before each step begins.
//
// The callback receives stepIndex (1-based), totalSteps and the stage about
// to run.
type ProgressCallback func(stepIndex, totalSteps int, s stage.Stage)

// Executor runs the review loop for one session at a time.
type Executor struct {
	sessions         SessionService
	reviewer         Reviewer
	progressCallback ProgressCallback
	router           *router.Router
	maxRedrafts      int
}

// NewExecutor creates an Executor.
func NewExecutor(sessions SessionService, reviewer Reviewer) *Executor {
	return &Executor{
		sessions:    sessions,
		reviewer:    reviewer,
		router:      router.Default(),
		maxRedrafts: DefaultMaxRedrafts,
	}
}

// SetProgressCallback configures an optional progress callback.
func (e *Executor) SetProgressCallback(cb ProgressCallback) {
	e.progressCallback = cb
}

// SetMaxRedrafts changes the per-stage regeneration limit. Negative values
// mean no limit.
func (e *Executor) SetMaxRedrafts(n int) {
	e.maxRedrafts = n
}

// Execute runs every remaining stage of session id.
//
// Execute is fail-fast: generation errors, rejected commits and reviewer
// errors stop the run immediately, leaving the session at the stage that
// failed. It returns the result of the last commit; for a session that
// reaches done this carries the exported artifacts. For sessions already
// done it returns [router.ErrSessionComplete].
func (e *Executor) Execute(ctx context.Context, id string) (session.CommitResult, error) {
	steps, err := e.GetSteps(ctx, id)
	if err != nil {
		return session.CommitResult{}, err
	}

	var last session.CommitResult
	for i, step := range steps {
		if e.progressCallback != nil {
			e.progressCallback(i+1, len(steps), step.Stage)
		}
		if err := ctx.Err(); err != nil {
			return last, err
		}

		res, err := e.runStep(ctx, id, step)
		if err != nil {
			return last, err
		}
		last = res
	}
	return last, nil
}

// GetSteps returns the remaining steps for session id without running them.
func (e *Executor) GetSteps(ctx context.Context, id string) ([]router.LifecycleStep, error) {
	snap, err := e.sessions.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return e.router.GetLifecycle(snap.Document.CurrentStage)
}

func (e *Executor) runStep(ctx context.Context, id string, step router.LifecycleStep) (session.CommitResult, error) {
	snap, err := e.sessions.Get(ctx, id)
	if err != nil {
		return session.CommitResult{}, err
	}
	if snap.Document.CurrentStage != step.Stage {
		return session.CommitResult{}, fmt.Errorf("session %s moved to %s while running %s", id, snap.Document.CurrentStage, step.Stage)
	}
	if step.Stage == stage.ProjectInit {
		return session.CommitResult{}, fmt.Errorf("session %s is not initialized", id)
	}

	for attempt := 0; ; attempt++ {
		if e.maxRedrafts >= 0 && attempt > e.maxRedrafts {
			return session.CommitResult{}, fmt.Errorf("%w: %s rejected %d times", ErrRedraftLimit, step.Stage.Label(), attempt)
		}

		p, err := e.propose(ctx, snap, step, attempt)
		if err != nil {
			return session.CommitResult{}, err
		}

		d, err := e.reviewer.Review(ctx, p)
		if err != nil {
			return session.CommitResult{}, err
		}

		switch d.Action {
		case Approve:
			content := p.Content
			if d.Content != "" {
				content = d.Content
			}
			return e.sessions.Commit(ctx, id, content)

		case Regenerate:
			if step.Produces {
				if _, err := e.sessions.Reject(ctx, id, d.Feedback); err != nil {
					return session.CommitResult{}, err
				}
			}
			// Only the first proposal may reuse a persisted draft.
			snap.Pending = nil

		case Abort:
			return session.CommitResult{}, ErrAborted

		default:
			return session.CommitResult{}, fmt.Errorf("unknown review action %d", d.Action)
		}
	}
}

func (e *Executor) propose(ctx context.Context, snap document.Snapshot, step router.LifecycleStep, attempt int) (Proposal, error) {
	p := Proposal{
		SessionID:   snap.ID,
		ProjectName: snap.Document.ProjectName,
		Stage:       step.Stage,
		Attempt:     attempt,
		Generated:   step.Produces,
	}

	if !step.Produces {
		p.Content = snap.Document.RequirementList()
		return p, nil
	}

	// A draft left pending by an interrupted run is reviewed before
	// generating a new one.
	if snap.Pending != nil && snap.Pending.Stage == step.Stage {
		p.Content = snap.Pending.Content
		return p, nil
	}

	d, err := e.sessions.Draft(ctx, snap.ID)
	if err != nil {
		return Proposal{}, err
	}
	p.Content = d.Content
	return p, nil
}
