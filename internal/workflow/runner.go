package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"stlcpilot/internal/document"
	"stlcpilot/internal/stage"
)

// errEmptyResponse is the cause recorded when a generator returns only whitespace.
var errEmptyResponse = errors.New("generator returned empty text")

// Runner builds stage prompts and invokes a [Generator].
//
// Runner is stateless apart from its configuration and is safe to share
// between sessions.
type Runner struct {
	instructions InstructionSource
	logger       *slog.Logger
}

// NewRunner creates a Runner that closes every prompt with the instruction
// returned by src for the stage being drafted.
func NewRunner(src InstructionSource, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Runner{instructions: src, logger: logger}
}

// Produce builds the prompt for stage s from doc, calls gen exactly once and
// returns the raw generated text.
//
// Any error from gen, or a response that is empty after trimming, is returned
// as a [*GenerationError]. doc is only read.
func (r *Runner) Produce(ctx context.Context, doc document.Document, s stage.Stage, gen Generator) (string, error) {
	prompt, err := r.BuildPrompt(doc, s)
	if err != nil {
		return "", err
	}

	start := time.Now()
	text, err := gen.Generate(ctx, prompt)
	elapsed := time.Since(start)
	if err != nil {
		r.logger.Warn("generation failed", "stage", s, "elapsed", elapsed, "error", err)
		return "", &GenerationError{Stage: s, Cause: err}
	}
	if strings.TrimSpace(text) == "" {
		r.logger.Warn("generation returned empty text", "stage", s, "elapsed", elapsed)
		return "", &GenerationError{Stage: s, Cause: errEmptyResponse}
	}

	if !utf8.ValidString(text) {
		r.logger.Warn("generation returned invalid UTF-8, replacing bad bytes", "stage", s)
		text = strings.ToValidUTF8(text, "\uFFFD")
	}

	r.logger.Debug("generated draft", "stage", s, "elapsed", elapsed, "bytes", len(text))
	return text, nil
}

// BuildPrompt returns the prompt for stage s.
//
// The prompt is, in order: the project name, the requirements one per line,
// the committed content of every stage strictly before s in lifecycle order
// (verbatim, each under its section label), and the stage instruction.
// Identical documents always yield identical prompts.
func (r *Runner) BuildPrompt(doc document.Document, s stage.Stage) (string, error) {
	instruction, err := r.instructions.GetInstruction(s, doc.ProjectName)
	if err != nil {
		return "", fmt.Errorf("instruction for %s: %w", s, err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Project Name: %s\n", doc.ProjectName)
	b.WriteString("Requirements:\n")
	for _, req := range doc.Requirements {
		b.WriteString(req)
		b.WriteByte('\n')
	}

	for _, prior := range stage.All() {
		if !prior.Before(s) {
			break
		}
		content, ok := doc.Output(prior)
		if !ok {
			continue
		}
		fmt.Fprintf(&b, "\n%s:\n%s\n", SectionLabel(prior), content)
	}

	b.WriteByte('\n')
	b.WriteString(instruction)
	return b.String(), nil
}
