package machine

import (
	"errors"
	"fmt"

	"stlcpilot/internal/stage"
)

// Sentinel errors for rejected operations. Every rejection returned by
// [Machine] is a [*RejectionError] that unwraps to exactly one of these.
var (
	// ErrValidation indicates empty or missing input to Initialize or Commit.
	ErrValidation = errors.New("validation error")

	// ErrOutOfOrder indicates the operation is not valid at the current stage.
	ErrOutOfOrder = errors.New("operation out of order")

	// ErrNotReady indicates Draft was called at a stage with no
	// content-production step (project-init, requirement-analysis, done).
	ErrNotReady = errors.New("stage has no content-production step")

	// ErrAlreadyTerminal indicates a commit was attempted after the session
	// reached done.
	ErrAlreadyTerminal = errors.New("session already terminal")

	// ErrCorruptState indicates a persisted snapshot violates the lifecycle
	// invariants. A corrupt session cannot progress until it is reset.
	ErrCorruptState = errors.New("corrupt session state")
)

// RejectionError reports a synchronous rejection with an explicit reason.
// The machine's state is unchanged whenever one is returned.
type RejectionError struct {
	// Op is the rejected operation: "initialize", "draft", "commit" or "reject".
	Op string

	// Stage is the stage the machine was at.
	Stage stage.Stage

	// Kind is the sentinel describing the rejection class.
	Kind error

	// Reason is a human-readable explanation.
	Reason string
}

func (e *RejectionError) Error() string {
	return fmt.Sprintf("%s rejected at %s: %s", e.Op, e.Stage, e.Reason)
}

// Unwrap returns the sentinel kind so callers can use errors.Is.
func (e *RejectionError) Unwrap() error {
	return e.Kind
}

func reject(op string, s stage.Stage, kind error, format string, args ...any) error {
	return &RejectionError{
		Op:     op,
		Stage:  s,
		Kind:   kind,
		Reason: fmt.Sprintf(format, args...),
	}
}

func corrupt(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrCorruptState, fmt.Sprintf(format, args...))
}
