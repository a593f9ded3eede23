package machine

import (
	"strings"

	"stlcpilot/internal/document"
	"stlcpilot/internal/stage"
	"stlcpilot/internal/workflow"
)

// Restore rebuilds a machine from a persisted snapshot. The resumed machine
// behaves exactly like the one that produced the snapshot.
//
// Snapshots that violate the lifecycle invariants are refused with an error
// wrapping [ErrCorruptState]. A pending draft recorded for a stage other
// than the current one is dropped.
func Restore(snap document.Snapshot, runner Producer, gen workflow.Generator, opts ...Option) (*Machine, error) {
	if err := Verify(snap); err != nil {
		return nil, err
	}

	m := New(runner, gen, opts...)
	m.doc = snap.Document.Clone()
	m.history = make([]document.Transition, len(snap.History))
	copy(m.history, snap.History)

	if p := snap.Pending; p != nil {
		if p.Stage == m.doc.CurrentStage && m.router.Produces(p.Stage) {
			d := *p
			m.pending = &d
		} else {
			m.logger.Warn("dropping stale pending draft", "draft_stage", p.Stage, "current", m.doc.CurrentStage)
		}
	}
	return m, nil
}

// Verify checks a snapshot against the lifecycle invariants:
//   - the current stage is a known stage
//   - every stage between requirement-analysis and the current stage has
//     non-blank committed content, and no other stage has any
//   - the project name and requirements are present once initialized
//   - the history is a contiguous forward chain ending at the current stage
//   - each transition hash matches the content it committed
func Verify(snap document.Snapshot) error {
	doc := snap.Document
	cur := doc.CurrentStage
	if !cur.IsValid() {
		return corrupt("unknown current stage %q", cur)
	}

	if cur == stage.ProjectInit {
		if doc.ProjectName != "" || len(doc.Requirements) > 0 {
			return corrupt("project data present before initialization")
		}
	} else {
		if strings.TrimSpace(doc.ProjectName) == "" {
			return corrupt("project name missing at %s", cur)
		}
		if len(doc.Requirements) == 0 {
			return corrupt("requirements missing at %s", cur)
		}
		for i, r := range doc.Requirements {
			if strings.TrimSpace(r) == "" {
				return corrupt("requirement %d is empty", i)
			}
		}
	}

	for s, content := range doc.StageOutputs {
		if !s.IsValid() {
			return corrupt("output recorded for unknown stage %q", s)
		}
		if s == stage.ProjectInit || !s.Before(cur) {
			return corrupt("output recorded for %s, which has not been passed", s)
		}
		if strings.TrimSpace(content) == "" {
			return corrupt("output for %s is empty", s)
		}
	}
	for _, s := range stage.All() {
		if !s.Before(cur) || s == stage.ProjectInit {
			continue
		}
		if _, ok := doc.StageOutputs[s]; !ok {
			return corrupt("output missing for passed stage %s", s)
		}
	}

	return verifyHistory(doc, snap.History)
}

func verifyHistory(doc document.Document, history []document.Transition) error {
	all := stage.All()
	if len(history) != doc.CurrentStage.Index() {
		return corrupt("history has %d transitions, want %d for %s",
			len(history), doc.CurrentStage.Index(), doc.CurrentStage)
	}
	for i, t := range history {
		if t.From != all[i] || t.To != all[i+1] {
			return corrupt("transition %d is %s -> %s, want %s -> %s", i, t.From, t.To, all[i], all[i+1])
		}
		var want string
		if t.From == stage.ProjectInit {
			want = document.InitHash(doc.ProjectName, doc.Requirements)
		} else {
			want = document.ContentHash(doc.StageOutputs[t.From])
		}
		if t.ContentHash != want {
			return corrupt("content hash mismatch for %s", t.From)
		}
		if i > 0 && t.Timestamp.Before(history[i-1].Timestamp) {
			return corrupt("transition %d predates its predecessor", i)
		}
	}
	return nil
}
