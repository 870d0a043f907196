package mode

import (
	"errors"
	"fmt"
)

// ErrModeNotFound reports a lookup for a name the registry does not hold.
var ErrModeNotFound = errors.New("mode: not found")

// ConfigError describes a malformed mode entry or action. Action is -1 for mode-level problems.
type ConfigError struct {
	Mode   string
	Action int
	Err    error
}

func (e *ConfigError) Error() string {
	if e.Action < 0 {
		return fmt.Sprintf("mode %q: %v", e.Mode, e.Err)
	}
	return fmt.Sprintf("mode %q action %d: %v", e.Mode, e.Action+1, e.Err)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// Warning is a non-fatal load message. Err is a *ConfigError for entry problems.
type Warning struct {
	Mode string
	Err  error
}

func (w Warning) String() string {
	if w.Err == nil {
		return ""
	}
	return w.Err.Error()
}
