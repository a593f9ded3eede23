package store

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"syscall"
)

const lockExt = ".lock"

// ErrLocked is returned by [Locker.Lock] when a live process holds the
// session's lock.
var ErrLocked = errors.New("session locked by another process")

// Locker is implemented by stores that several processes may open at once.
// Lock claims a session until the returned function is called.
type Locker interface {
	Lock(id string) (unlock func() error, err error)
}

// sessionLock is a PID lock file next to a session file.
type sessionLock struct {
	path string
}

// acquire creates the lock file. A lock left by a dead process, or one
// holding no valid PID, is removed and acquisition is retried once.
func (l *sessionLock) acquire() error {
	err := l.create()
	if err == nil || !os.IsExist(err) {
		return err
	}

	data, readErr := os.ReadFile(l.path)
	if readErr != nil {
		if os.IsNotExist(readErr) {
			return l.retry()
		}
		return fmt.Errorf("failed to read lock file: %w", readErr)
	}
	if pid, parseErr := strconv.Atoi(strings.TrimSpace(string(data))); parseErr == nil && processExists(pid) {
		return fmt.Errorf("%w (PID %d)", ErrLocked, pid)
	}

	if rmErr := os.Remove(l.path); rmErr != nil && !os.IsNotExist(rmErr) {
		return fmt.Errorf("failed to remove stale lock file: %w", rmErr)
	}
	return l.retry()
}

// retry tries once more after a stale lock was cleared.
func (l *sessionLock) retry() error {
	err := l.create()
	if os.IsExist(err) {
		return fmt.Errorf("%w: acquired by another process during retry", ErrLocked)
	}
	return err
}

func (l *sessionLock) create() error {
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if err != nil {
		if os.IsExist(err) {
			return err
		}
		return fmt.Errorf("failed to create lock file: %w", err)
	}
	_, writeErr := fmt.Fprintf(f, "%d", os.Getpid())
	f.Close()
	if writeErr != nil {
		os.Remove(l.path)
		return fmt.Errorf("failed to write lock file: %w", writeErr)
	}
	return nil
}

// release removes the lock file. Missing files are not an error.
func (l *sessionLock) release() error {
	if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove lock file: %w", err)
	}
	return nil
}

// processExists checks if a process with the given PID is running using
// signal 0. The current process always counts as running, so two stores in
// one process exclude each other too.
func processExists(pid int) bool {
	if pid == os.Getpid() {
		return true
	}
	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return process.Signal(syscall.Signal(0)) == nil
}
