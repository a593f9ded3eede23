package cli

import (
	"context"
	"errors"
	"fmt"

	"stlcpilot/internal/lifecycle"
	"stlcpilot/internal/machine"
	"stlcpilot/internal/router"
	"stlcpilot/internal/session"
	"stlcpilot/internal/store"
	"stlcpilot/internal/workflow"
)

// Exit codes returned by the stlcpilot binary.
const (
	ExitOK         = 0
	ExitFailure    = 1
	ExitRejected   = 2
	ExitNotFound   = 3
	ExitBusy       = 4
	ExitGeneration = 5
	ExitCorrupt    = 6
	ExitAborted    = 130
)

// ExitError represents a command execution failure with a specific exit code.
//
// RunE functions return it to signal a non-zero exit without calling
// os.Exit directly. [Run] extracts the code with [IsExitError], and only
// [Execute] terminates the process, so tests can assert on codes.
type ExitError struct {
	// Code is the exit code to return to the shell.
	Code int

	// Err is the underlying failure, if any.
	Err error
}

// Error implements the error interface. Without an underlying error it
// matches the os/exec format "exit status N".
func (e *ExitError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return fmt.Sprintf("exit status %d", e.Code)
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// NewExitError creates an [ExitError] with the given exit code.
func NewExitError(code int) *ExitError {
	return &ExitError{Code: code}
}

// IsExitError checks if an error is an [ExitError] and extracts its exit code.
// Returns (0, false) for nil or non-ExitError errors.
func IsExitError(err error) (int, bool) {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code, true
	}
	return 0, false
}

// exitCode maps a command error onto the process exit code.
func exitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	if code, ok := IsExitError(err); ok {
		return code
	}
	switch {
	case errors.Is(err, lifecycle.ErrAborted), errors.Is(err, context.Canceled):
		return ExitAborted
	case errors.Is(err, store.ErrNotFound):
		return ExitNotFound
	case errors.Is(err, session.ErrSessionBusy):
		return ExitBusy
	case errors.Is(err, machine.ErrCorruptState), errors.Is(err, router.ErrUnknownStage):
		return ExitCorrupt
	case errors.Is(err, workflow.ErrGenerationFailed):
		return ExitGeneration
	case errors.Is(err, machine.ErrValidation),
		errors.Is(err, machine.ErrOutOfOrder),
		errors.Is(err, machine.ErrNotReady),
		errors.Is(err, machine.ErrAlreadyTerminal),
		errors.Is(err, router.ErrSessionComplete),
		errors.Is(err, store.ErrInvalidID):
		return ExitRejected
	}
	return ExitFailure
}
