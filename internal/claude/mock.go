package claude

import (
	"context"
	"sync"
)

// MockExecutor replays canned events without spawning a process.
type MockExecutor struct {
	Events []Event
	Result Result
	Err    error

	mu      sync.Mutex
	prompts []string
}

// Execute records prompt, replays Events to handler and returns Result and Err.
func (m *MockExecutor) Execute(ctx context.Context, prompt string, handler EventHandler) (Result, error) {
	m.mu.Lock()
	m.prompts = append(m.prompts, prompt)
	m.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	for _, ev := range m.Events {
		if handler != nil {
			handler(ev)
		}
	}
	return m.Result, m.Err
}

// Prompts returns the prompts received so far.
func (m *MockExecutor) Prompts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.prompts))
	copy(out, m.prompts)
	return out
}
