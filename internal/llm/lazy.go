package llm

import (
	"context"
	"sync"

	"stlcpilot/internal/workflow"
)

// Lazy defers building a generator until the first Generate call, so
// commands that never generate do not need credentials.
type Lazy struct {
	build func() (workflow.Generator, error)

	once sync.Once
	gen  workflow.Generator
	err  error
}

// NewLazy wraps build. build runs at most once; its error is returned by
// every Generate call.
func NewLazy(build func() (workflow.Generator, error)) *Lazy {
	return &Lazy{build: build}
}

// Generate implements workflow.Generator.
func (l *Lazy) Generate(ctx context.Context, prompt string) (string, error) {
	l.once.Do(func() {
		l.gen, l.err = l.build()
	})
	if l.err != nil {
		return "", l.err
	}
	return l.gen.Generate(ctx, prompt)
}
