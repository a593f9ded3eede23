// Package store persists session snapshots.
//
// Two backends implement [Store]: [FileStore] keeps one YAML file per session
// and [BadgerStore] keeps JSON values in an embedded BadgerDB. Both replace a
// snapshot atomically, so a crash mid-save leaves the previous snapshot intact.
//
// Several CLI processes may share one file store, so [FileStore] also
// implements [Locker]. Badger takes an exclusive lock on its directory when
// opened and needs no per-session lock.
package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"

	"stlcpilot/internal/document"
)

// Backend names accepted by [Open].
const (
	BackendFile   = "file"
	BackendBadger = "badger"
)

// ErrNotFound is returned when no snapshot exists for a session id.
var ErrNotFound = errors.New("session not found")

// ErrInvalidID is returned for session ids that cannot be used as keys.
var ErrInvalidID = errors.New("invalid session id")

// Store loads and saves session snapshots by id.
type Store interface {
	Load(ctx context.Context, id string) (document.Snapshot, error)

	// Exists reports whether id is stored, even when its snapshot no longer
	// decodes.
	Exists(ctx context.Context, id string) (bool, error)

	Save(ctx context.Context, snap document.Snapshot) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]document.Snapshot, error)
	Close() error
}

// Open returns the store for the named backend rooted at path.
func Open(backend, path string, logger *slog.Logger) (Store, error) {
	switch backend {
	case "", BackendFile:
		return NewFileStore(path, logger)
	case BackendBadger:
		cfg := DefaultBadgerConfig()
		cfg.Path = path
		cfg.Logger = logger
		return OpenBadger(cfg)
	default:
		return nil, fmt.Errorf("unknown store backend: %s", backend)
	}
}

func checkID(id string) error {
	if id == "" || id == "." || id == ".." || strings.ContainsAny(id, `/\`) || filepath.Base(id) != id {
		return fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	return nil
}

// sortSnapshots orders snapshots most recently updated first, then by id.
func sortSnapshots(snaps []document.Snapshot) {
	sort.Slice(snaps, func(i, j int) bool {
		if !snaps[i].UpdatedAt.Equal(snaps[j].UpdatedAt) {
			return snaps[i].UpdatedAt.After(snaps[j].UpdatedAt)
		}
		return snaps[i].ID < snaps[j].ID
	})
}
