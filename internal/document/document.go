// Package document holds the data produced by one workflow run.
//
// A [Document] carries the project identity, the approved requirements and one
// slot per stage for committed content. [Transition] records form the
// append-only audit trail, [Draft] holds unconfirmed content for the current
// stage, and [Snapshot] bundles all of them for persistence and resume.
//
// Values in this package are plain data. Only the state machine in the
// machine package mutates a document; everyone else works on copies returned
// by [Document.Clone].
package document

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"stlcpilot/internal/stage"
)

// Document represents one workflow run.
type Document struct {
	// ProjectName is set when the session leaves ProjectInit and never
	// changes afterward.
	ProjectName string `yaml:"project_name" json:"project_name"`

	// Requirements are the approved requirement lines, in input order.
	Requirements []string `yaml:"requirements" json:"requirements"`

	// StageOutputs maps each passed stage to its committed content.
	// Stages not yet reached have no key.
	StageOutputs map[stage.Stage]string `yaml:"stage_outputs,omitempty" json:"stage_outputs,omitempty"`

	// CurrentStage is the stage currently active.
	CurrentStage stage.Stage `yaml:"current_stage" json:"current_stage"`
}

// New returns an empty document positioned at [stage.ProjectInit].
func New() Document {
	return Document{
		StageOutputs: make(map[stage.Stage]string),
		CurrentStage: stage.ProjectInit,
	}
}

// Output returns the committed content for s and whether it is present.
func (d Document) Output(s stage.Stage) (string, bool) {
	content, ok := d.StageOutputs[s]
	return content, ok
}

// Clone returns a deep copy of d.
func (d Document) Clone() Document {
	out := Document{
		ProjectName:  d.ProjectName,
		CurrentStage: d.CurrentStage,
		StageOutputs: make(map[stage.Stage]string, len(d.StageOutputs)),
	}
	if d.Requirements != nil {
		out.Requirements = make([]string, len(d.Requirements))
		copy(out.Requirements, d.Requirements)
	}
	for k, v := range d.StageOutputs {
		out.StageOutputs[k] = v
	}
	return out
}

// RequirementList renders the requirements as a markdown bullet list, one
// requirement per line.
func (d Document) RequirementList() string {
	var b strings.Builder
	for i, r := range d.Requirements {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString("- ")
		b.WriteString(r)
	}
	return b.String()
}

// Transition is one entry in the append-only stage history.
type Transition struct {
	From        stage.Stage `yaml:"from" json:"from"`
	To          stage.Stage `yaml:"to" json:"to"`
	ContentHash string      `yaml:"content_hash" json:"content_hash"`
	Timestamp   time.Time   `yaml:"timestamp" json:"timestamp"`
}

// Draft is unconfirmed content proposed for a stage.
//
// Feedback is set only on drafts that a reviewer rejected; it annotates the
// rejected draft and never changes the session's stage.
type Draft struct {
	Stage       stage.Stage `yaml:"stage" json:"stage"`
	Content     string      `yaml:"content" json:"content"`
	Feedback    string      `yaml:"feedback,omitempty" json:"feedback,omitempty"`
	GeneratedAt time.Time   `yaml:"generated_at" json:"generated_at"`
}

// Snapshot is the persisted form of a session: everything needed to resume at
// exactly the stage where it stopped.
type Snapshot struct {
	ID        string       `yaml:"id" json:"id"`
	Document  Document     `yaml:"document" json:"document"`
	History   []Transition `yaml:"history" json:"history"`
	Pending   *Draft       `yaml:"pending,omitempty" json:"pending,omitempty"`
	UpdatedAt time.Time    `yaml:"updated_at" json:"updated_at"`
}

// ContentHash returns the hex-encoded SHA-256 of content.
func ContentHash(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}

// InitHash returns the hash recorded for the ProjectInit transition, which
// commits the project name and requirements rather than stage content.
func InitHash(projectName string, requirements []string) string {
	return ContentHash(projectName + "\n" + strings.Join(requirements, "\n"))
}
