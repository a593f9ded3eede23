package cli

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// EditFunc opens content for editing and returns the edited text.
type EditFunc func(ctx context.Context, content string) (string, error)

// editorCommand returns the user's editor command line, falling back to vi.
func editorCommand() []string {
	for _, env := range []string{"VISUAL", "EDITOR"} {
		if parts := strings.Fields(os.Getenv(env)); len(parts) > 0 {
			return parts
		}
	}
	return []string{"vi"}
}

// editInEditor writes content to a temporary markdown file, opens it in the
// user's editor attached to the terminal and reads it back.
func editInEditor(ctx context.Context, content string) (string, error) {
	f, err := os.CreateTemp("", "stlcpilot-*.md")
	if err != nil {
		return "", fmt.Errorf("failed to create edit file: %w", err)
	}
	path := f.Name()
	defer os.Remove(path)

	if _, err := f.WriteString(content); err != nil {
		f.Close()
		return "", fmt.Errorf("failed to write edit file: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("failed to write edit file: %w", err)
	}

	parts := editorCommand()
	cmd := exec.CommandContext(ctx, parts[0], append(parts[1:], path)...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("editor %s failed: %w", parts[0], err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read edit file: %w", err)
	}
	return string(data), nil
}
