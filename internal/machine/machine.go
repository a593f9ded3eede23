// Package machine implements the stage-progression state machine.
//
// A [Machine] owns one session's document, its transition history and the
// pending draft for the current stage. It moves strictly forward through the
// fixed stage order, one stage per successful [Machine.Commit], and gates every
// transition on an explicit commit. Drafts can be regenerated or discarded
// freely without touching committed content.
//
// Key operations:
//   - [Machine.Initialize] supplies the project and leaves project-init
//   - [Machine.Draft] asks the stage runner for content at the current stage
//   - [Machine.Commit] accepts (possibly edited) content and advances one stage
//   - [Machine.Reset] discards everything and starts over
//   - [Restore] resumes from a persisted [document.Snapshot]
//
// A Machine is not safe for concurrent use. The session package serializes
// access per session.
package machine

import (
	"context"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"stlcpilot/internal/document"
	"stlcpilot/internal/router"
	"stlcpilot/internal/stage"
	"stlcpilot/internal/workflow"
)

// Producer drafts content for a stage. [*workflow.Runner] implements it.
type Producer interface {
	Produce(ctx context.Context, doc document.Document, s stage.Stage, gen workflow.Generator) (string, error)
}

// Option configures a [Machine].
type Option func(*Machine)

// WithRouter replaces the default transition table.
func WithRouter(r *router.Router) Option {
	return func(m *Machine) {
		m.router = r
	}
}

// WithClock sets the time source used for transition records and drafts.
func WithClock(now func() time.Time) Option {
	return func(m *Machine) {
		m.now = now
	}
}

// WithLogger sets the logger for transitions and rejections.
func WithLogger(l *slog.Logger) Option {
	return func(m *Machine) {
		m.logger = l
	}
}

// Machine is the stage machine for a single session.
type Machine struct {
	router  *router.Router
	runner  Producer
	gen     workflow.Generator
	now     func() time.Time
	logger  *slog.Logger
	opts    []Option
	doc     document.Document
	history []document.Transition
	pending *document.Draft
}

// New creates a machine at [stage.ProjectInit] with an empty document and
// empty history. runner and gen are used by [Machine.Draft].
func New(runner Producer, gen workflow.Generator, opts ...Option) *Machine {
	m := &Machine{
		router: router.Default(),
		runner: runner,
		gen:    gen,
		now:    time.Now,
		logger: slog.New(slog.DiscardHandler),
		opts:   opts,
		doc:    document.New(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Current returns the active stage.
func (m *Machine) Current() stage.Stage {
	return m.doc.CurrentStage
}

// IsTerminal reports whether the session has reached [stage.Done].
func (m *Machine) IsTerminal() bool {
	return m.doc.CurrentStage.IsTerminal()
}

// Document returns a copy of the session document.
func (m *Machine) Document() document.Document {
	return m.doc.Clone()
}

// History returns a copy of the transition history, oldest first.
func (m *Machine) History() []document.Transition {
	out := make([]document.Transition, len(m.history))
	copy(out, m.history)
	return out
}

// Pending returns the uncommitted draft for the current stage, if any.
func (m *Machine) Pending() (document.Draft, bool) {
	if m.pending == nil {
		return document.Draft{}, false
	}
	return *m.pending, true
}

// Snapshot returns the persistable state of the machine under the given
// session id.
func (m *Machine) Snapshot(id string) document.Snapshot {
	snap := document.Snapshot{
		ID:        id,
		Document:  m.Document(),
		History:   m.History(),
		UpdatedAt: m.now(),
	}
	if m.pending != nil {
		d := *m.pending
		snap.Pending = &d
	}
	return snap
}

// Initialize records the project name and requirements and moves the session
// from project-init to requirement-analysis.
//
// Both inputs are trimmed. It is rejected with [ErrValidation] when the name
// is empty or any requirement is empty, and with [ErrOutOfOrder] when the
// session has already left project-init.
func (m *Machine) Initialize(projectName string, requirements []string) error {
	cur := m.Current()
	if cur != stage.ProjectInit {
		return m.rejected(reject("initialize", cur, ErrOutOfOrder, "session already initialized; reset first"))
	}

	in, err := document.ValidateInit(projectName, requirements)
	if err != nil {
		return m.rejected(reject("initialize", cur, ErrValidation, "%v", err))
	}

	next, err := m.router.Next(cur)
	if err != nil {
		return m.rejected(reject("initialize", cur, ErrOutOfOrder, "%v", err))
	}

	m.doc.ProjectName = in.ProjectName
	m.doc.Requirements = in.Requirements
	m.advance(cur, next, document.InitHash(in.ProjectName, in.Requirements))
	return nil
}

// Draft generates content for the current stage and stores it as the pending
// draft, replacing any previous one.
//
// It is valid only at stages with a content-production step (test-planning
// through test-closure) and returns [ErrNotReady] elsewhere. A generation
// failure is returned as a [*workflow.GenerationError] and leaves the machine,
// including any earlier pending draft, unchanged.
func (m *Machine) Draft(ctx context.Context) (document.Draft, error) {
	cur := m.Current()
	if !m.router.Produces(cur) {
		return document.Draft{}, m.rejected(reject("draft", cur, ErrNotReady, "%s has no content-production step", cur.Label()))
	}

	content, err := m.runner.Produce(ctx, m.doc.Clone(), cur, m.gen)
	if err != nil {
		return document.Draft{}, err
	}

	m.pending = &document.Draft{
		Stage:       cur,
		Content:     content,
		GeneratedAt: m.now(),
	}
	m.logger.Debug("draft ready", "stage", cur, "bytes", len(content))
	return *m.pending, nil
}

// Reject discards the pending draft and returns it annotated with the
// reviewer's feedback. The stage does not change.
func (m *Machine) Reject(feedback string) (document.Draft, error) {
	cur := m.Current()
	if m.pending == nil {
		return document.Draft{}, m.rejected(reject("reject", cur, ErrOutOfOrder, "no pending draft"))
	}

	d := *m.pending
	d.Feedback = strings.TrimSpace(feedback)
	m.pending = nil
	m.logger.Info("draft rejected", "stage", cur, "feedback", d.Feedback)
	return d, nil
}

// Commit writes content as the output of the current stage and advances to
// the next stage. It is the only operation that changes stage outputs or the
// current stage, and it applies completely or not at all.
//
// Content is stored verbatim. It is rejected with [ErrValidation] when empty,
// whitespace-only or not valid UTF-8, with [ErrAlreadyTerminal] at done, and with
// [ErrOutOfOrder] at project-init, which requires [Machine.Initialize].
func (m *Machine) Commit(content string) error {
	cur := m.Current()
	if strings.TrimSpace(content) == "" {
		return m.rejected(reject("commit", cur, ErrValidation, "content is empty"))
	}
	if !utf8.ValidString(content) {
		return m.rejected(reject("commit", cur, ErrValidation, "content is not valid UTF-8"))
	}
	if cur.IsTerminal() {
		return m.rejected(reject("commit", cur, ErrAlreadyTerminal, "session is complete"))
	}
	if cur == stage.ProjectInit {
		return m.rejected(reject("commit", cur, ErrOutOfOrder, "initialize the session before committing"))
	}

	next, err := m.router.Next(cur)
	if err != nil {
		return m.rejected(reject("commit", cur, ErrOutOfOrder, "%v", err))
	}

	m.doc.StageOutputs[cur] = content
	m.pending = nil
	m.advance(cur, next, document.ContentHash(content))
	return nil
}

// Reset returns a fresh machine at project-init with the same runner,
// generator and options. The receiver is left untouched and should be
// discarded by the caller.
func (m *Machine) Reset() *Machine {
	return New(m.runner, m.gen, m.opts...)
}

func (m *Machine) advance(from, to stage.Stage, hash string) {
	m.history = append(m.history, document.Transition{
		From:        from,
		To:          to,
		ContentHash: hash,
		Timestamp:   m.now(),
	})
	m.doc.CurrentStage = to
	m.logger.Info("stage committed", "from", from, "to", to)
}

func (m *Machine) rejected(err error) error {
	m.logger.Debug("operation rejected", "error", err)
	return err
}
