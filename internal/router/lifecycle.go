package router

import (
	"stlcpilot/internal/stage"
)

// LifecycleStep represents a single step in the session lifecycle sequence.
//
// Each step names the stage it runs at and the stage the session moves to
// once the step's content is committed. The lifecycle executor uses these
// steps to drive a session from its current stage through to completion.
type LifecycleStep struct {
	// Stage is the stage this step runs at.
	Stage stage.Stage

	// Next is the stage entered after this step is committed.
	// The final step's Next is [stage.Done].
	Next stage.Stage

	// Produces is true when the step drafts content with the language model.
	// Approval-only steps take their content from the user.
	Produces bool
}
