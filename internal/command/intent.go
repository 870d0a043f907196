package command

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Intent is what a matched phrase asks the agent to do.
type Intent string

const (
	IntentActivateMode Intent = "activate_mode"
	IntentSetVolume    Intent = "set_volume"
	IntentVolumeUp     Intent = "volume_up"
	IntentVolumeDown   Intent = "volume_down"
	IntentMute         Intent = "mute"
	IntentUnmute       Intent = "unmute"
	IntentToggleMute   Intent = "toggle_mute"
	IntentLaunch       Intent = "launch"
	IntentOpenURL      Intent = "open_url"
	IntentSystem       Intent = "system"
)

// System commands accepted by the system intent.
const (
	SystemShutdown = "shutdown"
	SystemStatus   = "status"
)

var knownIntents = map[Intent]bool{
	IntentActivateMode: true,
	IntentSetVolume:    true,
	IntentVolumeUp:     true,
	IntentVolumeDown:   true,
	IntentMute:         true,
	IntentUnmute:       true,
	IntentToggleMute:   true,
	IntentLaunch:       true,
	IntentOpenURL:      true,
	IntentSystem:       true,
}

// Params are the typed parameters of an intent. Only the fields the intent uses are set.
type Params struct {
	Mode     string        `json:"mode,omitempty"`
	Level    int           `json:"level,omitempty"`
	HasLevel bool          `json:"-"`
	Smooth   bool          `json:"smooth,omitempty"`
	Duration time.Duration `json:"-"`
	Step     int           `json:"step,omitempty"`
	Target   string        `json:"target,omitempty"`
	Args     []string      `json:"args,omitempty"`
	URL      string        `json:"url,omitempty"`
	Command  string        `json:"command,omitempty"`
}

func buildParams(intent Intent, raw map[string]any) (Params, error) {
	var p Params
	var err error

	switch intent {
	case IntentActivateMode:
		p.Mode = stringParam(raw, "mode")
		if p.Mode == "" {
			return p, fmt.Errorf("%s requires params.mode", intent)
		}
	case IntentSetVolume:
		if _, ok := raw["level"]; ok {
			if p.Level, err = intParam(raw, "level"); err != nil {
				return p, err
			}
			if p.Level < 0 || p.Level > 100 {
				return p, fmt.Errorf("params.level must be between 0 and 100")
			}
			p.HasLevel = true
		}
		p.Smooth = boolParam(raw, "smooth")
	case IntentVolumeUp, IntentVolumeDown:
		if _, ok := raw["step"]; ok {
			if p.Step, err = intParam(raw, "step"); err != nil {
				return p, err
			}
			if p.Step <= 0 {
				return p, fmt.Errorf("params.step must be > 0")
			}
		}
	case IntentLaunch:
		p.Target = stringParam(raw, "target")
		if p.Target == "" {
			p.Target = stringParam(raw, "app")
		}
		if p.Target == "" {
			return p, fmt.Errorf("%s requires params.target", intent)
		}
		p.Args = argsParam(raw["args"])
	case IntentOpenURL:
		p.URL = stringParam(raw, "url")
		if p.URL == "" {
			return p, fmt.Errorf("%s requires params.url", intent)
		}
	case IntentSystem:
		p.Command = strings.ToLower(stringParam(raw, "command"))
		if p.Command != SystemShutdown && p.Command != SystemStatus {
			return p, fmt.Errorf("system params.command must be %q or %q", SystemShutdown, SystemStatus)
		}
	}
	return p, nil
}

func stringParam(raw map[string]any, key string) string {
	value, _ := raw[key].(string)
	return strings.TrimSpace(value)
}

func boolParam(raw map[string]any, key string) bool {
	value, _ := raw[key].(bool)
	return value
}

func intParam(raw map[string]any, key string) (int, error) {
	switch value := raw[key].(type) {
	case float64:
		return int(value), nil
	case int:
		return value, nil
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil {
			return 0, fmt.Errorf("params.%s must be a number", key)
		}
		return n, nil
	default:
		return 0, fmt.Errorf("params.%s must be a number", key)
	}
}

func argsParam(value any) []string {
	switch v := value.(type) {
	case string:
		return strings.Fields(v)
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}
