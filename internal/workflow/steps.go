// Package workflow produces draft content for a lifecycle stage.
//
// A [Runner] builds a deterministic prompt from a session document and sends it
// to a [Generator] exactly once. It never retries and never commits: the draft
// it returns is handed back to the state machine, which holds it until the
// user approves or discards it.
//
// Key types:
//   - [Generator] is the opaque text-generation capability (language model)
//   - [Runner] builds prompts and invokes the generator
//   - [GenerationError] wraps any failure from the generator
//
// Stage instructions come from the config package and support Go template
// expansion with the project name.
package workflow

import (
	"context"

	"stlcpilot/internal/stage"
)

// Generator submits a prompt and returns generated text.
//
// Implementations may block for a long time; callers bound latency through ctx.
// See the llm package for production implementations.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// GeneratorFunc adapts a plain function to [Generator].
type GeneratorFunc func(ctx context.Context, prompt string) (string, error)

// Generate calls f(ctx, prompt).
func (f GeneratorFunc) Generate(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}

// InstructionSource supplies the closing instruction for a stage's prompt.
// [config.Config] implements this interface.
type InstructionSource interface {
	GetInstruction(s stage.Stage, projectName string) (string, error)
}

// sectionLabels names the block each earlier stage contributes to a prompt.
var sectionLabels = map[stage.Stage]string{
	stage.RequirementAnalysis:  "Requirement Analysis",
	stage.TestPlanning:         "Test Plan",
	stage.TestCaseDevelopment:  "Test Cases",
	stage.TestEnvironmentSetup: "Test Environment Setup",
	stage.TestExecution:        "Test Execution",
	stage.TestClosure:          "Test Closure",
}

// SectionLabel returns the prompt section heading used for s.
func SectionLabel(s stage.Stage) string {
	if l, ok := sectionLabels[s]; ok {
		return l
	}
	return s.Label()
}
