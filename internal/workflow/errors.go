package workflow

import (
	"errors"
	"fmt"

	"stlcpilot/internal/stage"
)

// ErrGenerationFailed is matched by every [GenerationError].
var ErrGenerationFailed = errors.New("generation failed")

// GenerationError reports that the generator failed to produce a draft for a
// stage. It unwraps to both [ErrGenerationFailed] and the underlying cause.
type GenerationError struct {
	Stage stage.Stage
	Cause error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("generation failed for %s: %v", e.Stage, e.Cause)
}

// Unwrap exposes the sentinel and the cause to errors.Is / errors.As.
func (e *GenerationError) Unwrap() []error {
	return []error{ErrGenerationFailed, e.Cause}
}
