package action

import (
	"errors"
	"fmt"

	"github.com/rbright/modus/internal/mode"
)

// ErrTargetNotFound reports a kill whose target matched no running process.
var ErrTargetNotFound = errors.New("action: target not found")

// ExecutionError is one action's failed external effect.
// ExitCode and Output are set for script and execute failures.
type ExecutionError struct {
	Kind     mode.Kind
	Index    int
	ExitCode int
	Output   string
	Err      error
}

func (e *ExecutionError) Error() string {
	msg := fmt.Sprintf("%s action %d failed", e.Kind, e.Index+1)
	if e.ExitCode != 0 {
		msg += fmt.Sprintf(" (exit %d)", e.ExitCode)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	if e.Output != "" {
		msg += ": " + e.Output
	}
	return msg
}

func (e *ExecutionError) Unwrap() error {
	return e.Err
}
