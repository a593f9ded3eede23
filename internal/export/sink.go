package export

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// Sink persists exported artifacts.
type Sink interface {
	Write(ctx context.Context, sessionID string, artifacts map[string]string) ([]string, error)
}

// DirSink writes each artifact to <Dir>/<session id>/<name>.md.
type DirSink struct {
	Dir string
}

// NewDirSink creates a [DirSink] rooted at dir.
func NewDirSink(dir string) *DirSink {
	return &DirSink{Dir: dir}
}

// Write writes every artifact and returns the written paths in name order.
//
// Each file is written to a temp file and renamed into place, so readers
// never observe a partially written artifact.
func (s *DirSink) Write(ctx context.Context, sessionID string, artifacts map[string]string) ([]string, error) {
	dir := filepath.Join(s.Dir, sessionID)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create artifact directory: %w", err)
	}

	var paths []string
	for _, name := range Names(artifacts) {
		if err := ctx.Err(); err != nil {
			return paths, err
		}
		path := filepath.Join(dir, name+".md")
		if err := writeFile(path, []byte(artifacts[name])); err != nil {
			return paths, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}

func writeFile(path string, data []byte) error {
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write artifact: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write artifact: %w", err)
	}
	return nil
}
