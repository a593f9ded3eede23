package claude

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strings"
	"time"
)

// DefaultBinary is the CLI looked up on PATH when no path is configured.
const DefaultBinary = "claude"

// Result is the outcome of one CLI run.
type Result struct {
	// Text is the final answer: the result event's text, or the assistant
	// text blocks joined by newlines when the result event carries none.
	Text string

	// ExitCode is the process exit status.
	ExitCode int

	// IsError is reported by the result event.
	IsError bool

	// Duration is the wall time of the run.
	Duration time.Duration
}

// EventHandler observes events as they arrive. It may be nil.
type EventHandler func(Event)

// Executor runs a prompt through the Claude CLI.
type Executor interface {
	Execute(ctx context.Context, prompt string, handler EventHandler) (Result, error)
}

// ExecutorConfig configures a [DefaultExecutor].
type ExecutorConfig struct {
	// BinaryPath is the CLI executable. Empty means [DefaultBinary].
	BinaryPath string

	// OutputFormat is passed to --output-format. Empty means stream-json.
	OutputFormat string

	// Model is passed to --model when set.
	Model string

	// SystemPrompt is passed to --append-system-prompt when set.
	SystemPrompt string
}

// DefaultExecutor spawns the CLI for every prompt.
type DefaultExecutor struct {
	config ExecutorConfig
	parser Parser
	logger *slog.Logger

	// commandContext builds the process; tests replace it.
	commandContext func(ctx context.Context, name string, args ...string) *exec.Cmd
}

// NewExecutor creates a [DefaultExecutor].
func NewExecutor(cfg ExecutorConfig, logger *slog.Logger) *DefaultExecutor {
	if cfg.BinaryPath == "" {
		cfg.BinaryPath = DefaultBinary
	}
	if cfg.OutputFormat == "" {
		cfg.OutputFormat = "stream-json"
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &DefaultExecutor{
		config:         cfg,
		parser:         NewParser(),
		logger:         logger,
		commandContext: exec.CommandContext,
	}
}

func (e *DefaultExecutor) args(prompt string) []string {
	args := []string{"-p", prompt, "--output-format", e.config.OutputFormat, "--verbose"}
	if e.config.Model != "" {
		args = append(args, "--model", e.config.Model)
	}
	if e.config.SystemPrompt != "" {
		args = append(args, "--append-system-prompt", e.config.SystemPrompt)
	}
	return args
}

// Execute runs the CLI with prompt and returns the collected result.
//
// A non-zero exit, a result event flagged as an error, or a canceled ctx is
// returned as an error alongside the partial result.
func (e *DefaultExecutor) Execute(ctx context.Context, prompt string, handler EventHandler) (Result, error) {
	cmd := e.commandContext(ctx, e.config.BinaryPath, e.args(prompt)...)
	var stderr strings.Builder
	cmd.Stderr = &stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return Result{}, fmt.Errorf("failed to create stdout pipe: %w", err)
	}

	start := time.Now()
	if err := cmd.Start(); err != nil {
		return Result{}, fmt.Errorf("failed to start claude: %w", err)
	}
	e.logger.Debug("claude started", "binary", e.config.BinaryPath, "pid", cmd.Process.Pid)

	res := collect(e.parser.Parse(stdout), handler)
	// Drain anything the parser left so Wait does not block on a full pipe.
	_, _ = io.Copy(io.Discard, stdout)

	waitErr := cmd.Wait()
	res.Duration = time.Since(start)

	if ctxErr := ctx.Err(); ctxErr != nil {
		return res, ctxErr
	}
	if waitErr != nil {
		var exitErr *exec.ExitError
		if errors.As(waitErr, &exitErr) {
			res.ExitCode = exitErr.ExitCode()
			return res, fmt.Errorf("claude exited with status %d: %s", res.ExitCode, strings.TrimSpace(stderr.String()))
		}
		return res, fmt.Errorf("claude failed: %w", waitErr)
	}
	if res.IsError {
		return res, fmt.Errorf("claude reported an error: %s", res.Text)
	}

	e.logger.Debug("claude finished", "elapsed", res.Duration, "bytes", len(res.Text))
	return res, nil
}

func collect(events <-chan Event, handler EventHandler) Result {
	var (
		res   Result
		texts []string
	)
	for ev := range events {
		if handler != nil {
			handler(ev)
		}
		switch {
		case ev.IsText():
			texts = append(texts, ev.Text)
		case ev.SessionComplete:
			res.Text = ev.Result
			res.IsError = ev.IsError
		}
	}
	if res.Text == "" {
		res.Text = strings.Join(texts, "\n")
	}
	return res
}
