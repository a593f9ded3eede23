package store

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"stlcpilot/internal/document"
	"stlcpilot/internal/stage"
)

const fileExt = ".yaml"

// FileStore keeps each session in <dir>/<id>.yaml.
type FileStore struct {
	dir    string
	logger *slog.Logger
}

// NewFileStore creates a [FileStore] rooted at dir, creating the directory if
// needed.
func NewFileStore(dir string, logger *slog.Logger) (*FileStore, error) {
	if dir == "" {
		return nil, errors.New("store path is required")
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}
	return &FileStore{dir: dir, logger: logger}, nil
}

// Dir returns the directory holding session files.
func (s *FileStore) Dir() string {
	return s.dir
}

func (s *FileStore) path(id string) string {
	return filepath.Join(s.dir, id+fileExt)
}

// Load reads the snapshot for id.
func (s *FileStore) Load(ctx context.Context, id string) (document.Snapshot, error) {
	if err := checkID(id); err != nil {
		return document.Snapshot{}, err
	}
	return s.read(s.path(id))
}

func (s *FileStore) read(path string) (document.Snapshot, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return document.Snapshot{}, ErrNotFound
	}
	if err != nil {
		return document.Snapshot{}, fmt.Errorf("failed to read session: %w", err)
	}

	var snap document.Snapshot
	if err := yaml.Unmarshal(data, &snap); err != nil {
		return document.Snapshot{}, fmt.Errorf("failed to parse session %s: %w", filepath.Base(path), err)
	}
	if snap.Document.StageOutputs == nil {
		snap.Document.StageOutputs = make(map[stage.Stage]string)
	}
	return snap, nil
}

// Save writes snap, replacing any previous snapshot with the same id.
func (s *FileStore) Save(ctx context.Context, snap document.Snapshot) error {
	if err := checkID(snap.ID); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := encodeSnapshot(&snap)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	// Write to temp, then rename.
	fullPath := s.path(snap.ID)
	tmpPath := fullPath + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write session: %w", err)
	}
	if err := os.Rename(tmpPath, fullPath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write session: %w", err)
	}

	s.logger.Debug("session saved", "id", snap.ID, "stage", snap.Document.CurrentStage, "path", fullPath)
	return nil
}

// Exists reports whether a session file exists for id without parsing it.
func (s *FileStore) Exists(ctx context.Context, id string) (bool, error) {
	if err := checkID(id); err != nil {
		return false, err
	}
	_, err := os.Stat(s.path(id))
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to stat session: %w", err)
	}
	return true, nil
}

// Lock claims id with a lock file at <dir>/<id>.lock holding this process's
// PID. It returns [ErrLocked] while another live process holds it.
func (s *FileStore) Lock(id string) (func() error, error) {
	if err := checkID(id); err != nil {
		return nil, err
	}
	l := &sessionLock{path: filepath.Join(s.dir, id+lockExt)}
	if err := l.acquire(); err != nil {
		return nil, err
	}
	return l.release, nil
}

// Delete removes the snapshot for id.
func (s *FileStore) Delete(ctx context.Context, id string) error {
	if err := checkID(id); err != nil {
		return err
	}
	err := os.Remove(s.path(id))
	if errors.Is(err, fs.ErrNotExist) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	s.logger.Debug("session deleted", "id", id)
	return nil
}

// List returns every stored snapshot, most recently updated first. Files
// that fail to parse are logged and skipped.
func (s *FileStore) List(ctx context.Context) ([]document.Snapshot, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}

	var snaps []document.Snapshot
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), fileExt) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		snap, err := s.read(filepath.Join(s.dir, e.Name()))
		if err != nil {
			s.logger.Warn("skipping unreadable session file", "file", e.Name(), "error", err)
			continue
		}
		snaps = append(snaps, snap)
	}
	sortSnapshots(snaps)
	return snaps, nil
}

// encodeSnapshot marshals snap with every multi-line or whitespace-edged
// string double-quoted. Block scalars cannot represent every string (a tab
// after a line break, for one) and the stored text must read back byte for
// byte or its transition hash no longer matches.
func encodeSnapshot(snap *document.Snapshot) ([]byte, error) {
	var node yaml.Node
	if err := node.Encode(snap); err != nil {
		return nil, err
	}
	quoteText(&node)
	return yaml.Marshal(&node)
}

func quoteText(n *yaml.Node) {
	if n.Kind == yaml.ScalarNode && n.Tag == "!!str" && needsQuoting(n.Value) {
		n.Style = yaml.DoubleQuotedStyle
	}
	for _, c := range n.Content {
		quoteText(c)
	}
}

func needsQuoting(v string) bool {
	return strings.ContainsAny(v, "\n\r\t") || strings.TrimSpace(v) != v
}

// Close is a no-op for the file store.
func (s *FileStore) Close() error {
	return nil
}
