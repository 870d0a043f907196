package mode

import (
	"maps"
	"slices"
	"time"
)

// Notification keys understood by the activation engine.
const (
	NotifyStartSound   = "start_sound"
	NotifyFailureSound = "failure_sound"
)

// DefaultFadeDuration applies to smooth volume actions without an explicit duration.
const DefaultFadeDuration = time.Second

// Definition is one named, ordered sequence of actions.
type Definition struct {
	Name          string             `json:"name"`
	Actions       []ActionSpec       `json:"actions"`
	Requirements  map[string]float64 `json:"requirements,omitempty"`
	Notifications map[string]string  `json:"notifications,omitempty"`
}

// ActionSpec is a single validated action. Fields not used by Kind stay zero.
type ActionSpec struct {
	Kind         Kind          `json:"type"`
	Target       string        `json:"target,omitempty"`
	Args         []string      `json:"args,omitempty"`
	Delay        time.Duration `json:"delay,omitempty"`
	CheckRunning bool          `json:"check_running,omitempty"`
	Force        bool          `json:"force,omitempty"`
	Level        int           `json:"level,omitempty"`
	Smooth       bool          `json:"smooth,omitempty"`
	Duration     time.Duration `json:"duration,omitempty"`
	URL          string        `json:"url,omitempty"`
	Fallback     string        `json:"fallback,omitempty"`
	Command      string        `json:"command,omitempty"`
	WorkingDir   string        `json:"working_dir,omitempty"`
	ScriptPath   string        `json:"path,omitempty"`
	DisplayLevel int           `json:"display_level,omitempty"`
	// Timeout overrides the configured script timeout; zero keeps the default.
	Timeout time.Duration `json:"timeout,omitempty"`
}

// Clone returns a deep copy so callers can never mutate registry state.
func (d Definition) Clone() Definition {
	out := Definition{
		Name:          d.Name,
		Actions:       make([]ActionSpec, len(d.Actions)),
		Requirements:  maps.Clone(d.Requirements),
		Notifications: maps.Clone(d.Notifications),
	}
	for i, action := range d.Actions {
		action.Args = slices.Clone(action.Args)
		out.Actions[i] = action
	}
	return out
}

// Notification returns the configured value for key, if any.
func (d Definition) Notification(key string) string {
	return d.Notifications[key]
}
