package llm

import (
	"context"
	"log/slog"

	"stlcpilot/internal/claude"
)

// Claude generates text by running the Claude CLI.
type Claude struct {
	exec   claude.Executor
	logger *slog.Logger
}

// NewClaude creates a [Claude] generator over exec.
func NewClaude(exec claude.Executor, logger *slog.Logger) *Claude {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Claude{exec: exec, logger: logger}
}

// Generate runs prompt through the CLI and returns its final answer.
func (c *Claude) Generate(ctx context.Context, prompt string) (string, error) {
	res, err := c.exec.Execute(ctx, prompt, func(e claude.Event) {
		if e.IsToolUse() {
			c.logger.Debug("claude tool use", "tool", e.ToolName)
		}
	})
	if err != nil {
		return "", err
	}
	return res.Text, nil
}
