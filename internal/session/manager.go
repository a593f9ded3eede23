// Package session hosts stage machines for many sessions.
//
// A [Manager] loads a session's snapshot from a [store.Store], restores its
// machine, applies one operation and saves the result before returning. Each
// session is a single mutual-exclusion domain: a request that finds its
// session busy fails immediately with [ErrSessionBusy] instead of waiting or
// interleaving.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"stlcpilot/internal/document"
	"stlcpilot/internal/export"
	"stlcpilot/internal/machine"
	"stlcpilot/internal/store"
	"stlcpilot/internal/workflow"
)

// ErrSessionBusy is returned when another operation holds the session.
var ErrSessionBusy = errors.New("session busy")

// Option configures a [Manager].
type Option func(*Manager)

// WithTimeout bounds every Draft call. Zero means no limit.
func WithTimeout(d time.Duration) Option {
	return func(m *Manager) {
		m.timeout = d
	}
}

// WithSink persists artifacts when a session reaches done.
func WithSink(s export.Sink) Option {
	return func(m *Manager) {
		m.sink = s
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = l
	}
}

// WithClock sets the time source handed to every machine.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		m.now = now
	}
}

// WithIDGenerator replaces uuid-based session ids.
func WithIDGenerator(f func() string) Option {
	return func(m *Manager) {
		m.newID = f
	}
}

// Manager serializes operations per session and persists every change.
//
// Manager is safe for concurrent use.
type Manager struct {
	store   store.Store
	runner  machine.Producer
	gen     workflow.Generator
	sink    export.Sink
	timeout time.Duration
	logger  *slog.Logger
	now     func() time.Time
	newID   func() string

	// held lists sessions with an operation in flight in this process.
	mu   sync.Mutex
	held map[string]struct{}
}

// NewManager creates a Manager over st. runner and gen are handed to every
// restored machine.
func NewManager(st store.Store, runner machine.Producer, gen workflow.Generator, opts ...Option) *Manager {
	m := &Manager{
		store:  st,
		runner: runner,
		gen:    gen,
		logger: slog.New(slog.DiscardHandler),
		now:    time.Now,
		newID:  uuid.NewString,
		held:   make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// CommitResult is the outcome of a successful commit.
type CommitResult struct {
	Snapshot document.Snapshot

	// Artifacts is set when the commit completed the session.
	Artifacts map[string]string

	// Paths lists the files written by the sink, if any.
	Paths []string
}

// Completed reports whether the commit moved the session to done.
func (r CommitResult) Completed() bool {
	return r.Snapshot.Document.CurrentStage.IsTerminal()
}

// acquire claims the session without blocking. When the store is shared
// between processes the store's lock is taken as well. Claims are dropped on
// release, so ids of finished or deleted sessions leave nothing behind.
func (m *Manager) acquire(id string) (func(), error) {
	m.mu.Lock()
	if _, busy := m.held[id]; busy {
		m.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrSessionBusy, id)
	}
	m.held[id] = struct{}{}
	m.mu.Unlock()

	unclaim := func() {
		m.mu.Lock()
		delete(m.held, id)
		m.mu.Unlock()
	}

	locker, ok := m.store.(store.Locker)
	if !ok {
		return unclaim, nil
	}
	unlock, err := locker.Lock(id)
	if err != nil {
		unclaim()
		if errors.Is(err, store.ErrLocked) {
			return nil, fmt.Errorf("%w: %s: %v", ErrSessionBusy, id, err)
		}
		return nil, err
	}
	return func() {
		if err := unlock(); err != nil {
			m.logger.Warn("failed to release session lock", "id", id, "error", err)
		}
		unclaim()
	}, nil
}

func (m *Manager) machineOptions() []machine.Option {
	return []machine.Option{
		machine.WithClock(m.now),
		machine.WithLogger(m.logger),
	}
}

func (m *Manager) restore(ctx context.Context, id string) (*machine.Machine, error) {
	snap, err := m.store.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	mach, err := machine.Restore(snap, m.runner, m.gen, m.machineOptions()...)
	if err != nil {
		m.logger.Error("session state is corrupt", "id", id, "error", err)
		return nil, err
	}
	return mach, nil
}

func (m *Manager) save(ctx context.Context, id string, mach *machine.Machine) (document.Snapshot, error) {
	snap := mach.Snapshot(id)
	if err := m.store.Save(ctx, snap); err != nil {
		return document.Snapshot{}, fmt.Errorf("failed to save session %s: %w", id, err)
	}
	return snap, nil
}

func (m *Manager) fail(op, id string, err error) error {
	recordRejection(op, err)
	m.logger.Info("operation failed", "op", op, "id", id, "error", err)
	return err
}

// Create initializes a new session and returns its first snapshot, which is
// already at requirement-analysis.
func (m *Manager) Create(ctx context.Context, projectName string, requirements []string) (document.Snapshot, error) {
	mach := machine.New(m.runner, m.gen, m.machineOptions()...)
	if err := mach.Initialize(projectName, requirements); err != nil {
		return document.Snapshot{}, m.fail("initialize", "", err)
	}

	id := m.newID()
	snap, err := m.save(ctx, id, mach)
	if err != nil {
		return document.Snapshot{}, err
	}
	recordTransition(snap.History[0].From, snap.History[0].To)
	m.logger.Info("session created", "id", id, "project", snap.Document.ProjectName, "requirements", len(snap.Document.Requirements))
	return snap, nil
}

// Get returns the stored snapshot for id after checking its integrity.
func (m *Manager) Get(ctx context.Context, id string) (document.Snapshot, error) {
	snap, err := m.store.Load(ctx, id)
	if err != nil {
		return document.Snapshot{}, err
	}
	if err := machine.Verify(snap); err != nil {
		return snap, err
	}
	return snap, nil
}

// List returns every stored session, most recently updated first.
func (m *Manager) List(ctx context.Context) ([]document.Snapshot, error) {
	return m.store.List(ctx)
}

// Draft generates a draft for the session's current stage and persists it
// as the pending draft.
func (m *Manager) Draft(ctx context.Context, id string) (document.Draft, error) {
	release, err := m.acquire(id)
	if err != nil {
		return document.Draft{}, m.fail("draft", id, err)
	}
	defer release()

	mach, err := m.restore(ctx, id)
	if err != nil {
		return document.Draft{}, m.fail("draft", id, err)
	}

	genCtx := ctx
	if m.timeout > 0 {
		var cancel context.CancelFunc
		genCtx, cancel = context.WithTimeout(ctx, m.timeout)
		defer cancel()
	}

	cur := mach.Current()
	start := time.Now()
	d, err := mach.Draft(genCtx)
	if err != nil {
		if errors.Is(err, workflow.ErrGenerationFailed) {
			recordDraft(cur, time.Since(start).Seconds(), err)
		}
		return document.Draft{}, m.fail("draft", id, err)
	}
	recordDraft(cur, time.Since(start).Seconds(), nil)

	if _, err := m.save(ctx, id, mach); err != nil {
		return document.Draft{}, err
	}
	m.logger.Info("draft generated", "id", id, "stage", cur, "bytes", len(d.Content))
	return d, nil
}

// Reject discards the pending draft with the reviewer's feedback.
func (m *Manager) Reject(ctx context.Context, id, feedback string) (document.Draft, error) {
	release, err := m.acquire(id)
	if err != nil {
		return document.Draft{}, m.fail("reject", id, err)
	}
	defer release()

	mach, err := m.restore(ctx, id)
	if err != nil {
		return document.Draft{}, m.fail("reject", id, err)
	}
	d, err := mach.Reject(feedback)
	if err != nil {
		return document.Draft{}, m.fail("reject", id, err)
	}
	if _, err := m.save(ctx, id, mach); err != nil {
		return document.Draft{}, err
	}
	return d, nil
}

// Commit commits content at the session's current stage.
//
// When the commit completes the session, the artifacts are exported and
// written to the sink before the session is saved as done. If the sink
// fails, nothing is saved and the session stays at test-closure.
func (m *Manager) Commit(ctx context.Context, id, content string) (CommitResult, error) {
	release, err := m.acquire(id)
	if err != nil {
		return CommitResult{}, m.fail("commit", id, err)
	}
	defer release()

	mach, err := m.restore(ctx, id)
	if err != nil {
		return CommitResult{}, m.fail("commit", id, err)
	}

	from := mach.Current()
	if err := mach.Commit(content); err != nil {
		return CommitResult{}, m.fail("commit", id, err)
	}

	var res CommitResult
	if mach.IsTerminal() {
		res.Artifacts = export.Export(mach.Document())
		if m.sink != nil {
			paths, err := m.sink.Write(ctx, id, res.Artifacts)
			if err != nil {
				return CommitResult{}, fmt.Errorf("failed to export session %s: %w", id, err)
			}
			res.Paths = paths
		}
	}

	snap, err := m.save(ctx, id, mach)
	if err != nil {
		return CommitResult{}, err
	}
	res.Snapshot = snap
	recordTransition(from, mach.Current())
	m.logger.Info("stage committed", "id", id, "from", from, "to", mach.Current())
	return res, nil
}

// Reset discards the session's content and puts it back at project-init
// under the same id. It only checks that the session exists, so it also
// recovers sessions whose stored state is corrupt or no longer decodes.
func (m *Manager) Reset(ctx context.Context, id string) (document.Snapshot, error) {
	release, err := m.acquire(id)
	if err != nil {
		return document.Snapshot{}, m.fail("reset", id, err)
	}
	defer release()

	ok, err := m.store.Exists(ctx, id)
	if err != nil {
		return document.Snapshot{}, err
	}
	if !ok {
		return document.Snapshot{}, store.ErrNotFound
	}
	snap, err := m.save(ctx, id, machine.New(m.runner, m.gen, m.machineOptions()...))
	if err != nil {
		return document.Snapshot{}, err
	}
	m.logger.Info("session reset", "id", id)
	return snap, nil
}

// Restart discards the session's progress but keeps its project name and
// requirements: the session is reset and initialized again in one step, so
// it resumes at requirement-analysis. The project data is read from the
// stored snapshot without verifying its history, so a session whose history
// is corrupt can still be restarted.
func (m *Manager) Restart(ctx context.Context, id string) (document.Snapshot, error) {
	release, err := m.acquire(id)
	if err != nil {
		return document.Snapshot{}, m.fail("restart", id, err)
	}
	defer release()

	old, err := m.store.Load(ctx, id)
	if err != nil {
		return document.Snapshot{}, err
	}

	mach := machine.New(m.runner, m.gen, m.machineOptions()...)
	if err := mach.Initialize(old.Document.ProjectName, old.Document.Requirements); err != nil {
		return document.Snapshot{}, m.fail("restart", id, err)
	}
	snap, err := m.save(ctx, id, mach)
	if err != nil {
		return document.Snapshot{}, err
	}
	recordTransition(snap.History[0].From, snap.History[0].To)
	m.logger.Info("session restarted", "id", id, "project", snap.Document.ProjectName)
	return snap, nil
}

// Reinitialize runs Initialize on a session that was reset, typically with
// a different project.
func (m *Manager) Reinitialize(ctx context.Context, id, projectName string, requirements []string) (document.Snapshot, error) {
	release, err := m.acquire(id)
	if err != nil {
		return document.Snapshot{}, m.fail("initialize", id, err)
	}
	defer release()

	mach, err := m.restore(ctx, id)
	if err != nil {
		return document.Snapshot{}, m.fail("initialize", id, err)
	}
	if err := mach.Initialize(projectName, requirements); err != nil {
		return document.Snapshot{}, m.fail("initialize", id, err)
	}
	snap, err := m.save(ctx, id, mach)
	if err != nil {
		return document.Snapshot{}, err
	}
	recordTransition(snap.History[0].From, snap.History[0].To)
	return snap, nil
}

// Export renders the session's committed content. It works at any stage;
// unfinished sessions produce only the artifacts committed so far. When sink
// is non-nil the artifacts are also written.
func (m *Manager) Export(ctx context.Context, id string, sink export.Sink) (map[string]string, []string, error) {
	snap, err := m.Get(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	artifacts := export.Export(snap.Document)
	if sink == nil {
		return artifacts, nil, nil
	}
	paths, err := sink.Write(ctx, id, artifacts)
	if err != nil {
		return artifacts, paths, fmt.Errorf("failed to export session %s: %w", id, err)
	}
	return artifacts, paths, nil
}

// Delete removes the session.
func (m *Manager) Delete(ctx context.Context, id string) error {
	release, err := m.acquire(id)
	if err != nil {
		return m.fail("delete", id, err)
	}
	defer release()

	if err := m.store.Delete(ctx, id); err != nil {
		return err
	}
	m.logger.Info("session deleted", "id", id)
	return nil
}
