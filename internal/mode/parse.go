package mode

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"maps"
	"math"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/rbright/modus/internal/jsonc"
	"github.com/rbright/modus/internal/requirement"
)

// Format selects the definition file syntax.
type Format int

const (
	FormatJSON Format = iota
	FormatYAML
)

// FormatForPath picks YAML for .yaml/.yml files and JSON (with comments) otherwise.
func FormatForPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

type entry struct {
	name string
	raw  json.RawMessage
}

type rawMode struct {
	Actions       json.RawMessage    `json:"actions"`
	Requirements  map[string]float64 `json:"requirements"`
	Notifications map[string]string  `json:"notifications"`
}

type rawAction struct {
	Type         *string         `json:"type"`
	Target       *string         `json:"target"`
	Args         json.RawMessage `json:"args"`
	Delay        *float64        `json:"delay"`
	CheckRunning *bool           `json:"check_running"`
	Force        *bool           `json:"force"`
	Level        *float64        `json:"level"`
	Smooth       *bool           `json:"smooth"`
	Duration     *float64        `json:"duration"`
	URL          *string         `json:"url"`
	Fallback     *string         `json:"fallback"`
	Command      *string         `json:"command"`
	WorkingDir   *string         `json:"working_dir"`
	Path         *string         `json:"path"`
	ScriptPath   *string         `json:"script_path"`
	DisplayLevel *float64        `json:"display_level"`
	Timeout      *float64        `json:"timeout"`
}

// Parse decodes a definition set and builds a registry from every valid entry.
//
// Parse never fails: unusable input yields an empty registry plus warnings.
func Parse(data []byte, format Format, opts Options) (*Registry, []Warning) {
	var (
		entries  []entry
		warnings []Warning
		err      error
	)
	switch format {
	case FormatYAML:
		entries, warnings, err = yamlEntries(data)
	default:
		entries, err = jsonEntries(data)
	}
	if err != nil {
		return NewRegistry(), []Warning{{Err: fmt.Errorf("parse mode definitions: %w", err)}}
	}

	reg := NewRegistry()
	for _, e := range entries {
		def, entryWarnings := buildDefinition(e, opts.Strict)
		warnings = append(warnings, entryWarnings...)
		if def == nil {
			continue
		}
		if reg.put(*def) {
			warnings = append(warnings, Warning{Mode: e.name, Err: &ConfigError{
				Mode:   e.name,
				Action: -1,
				Err:    errors.New("duplicate definition replaces the earlier one"),
			}})
		}
	}
	return reg, warnings
}

// jsonEntries walks the top-level object with a token decoder so file order survives.
func jsonEntries(data []byte) ([]entry, error) {
	normalized, err := jsonc.Normalize(string(data))
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(normalized) == "" {
		return nil, nil
	}

	dec := json.NewDecoder(strings.NewReader(normalized))
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, errors.New("top-level value must be an object keyed by mode name")
	}

	var entries []entry
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		name, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("unexpected token %v", tok)
		}
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return nil, fmt.Errorf("mode %q: %w", name, err)
		}
		entries = append(entries, entry{name: name, raw: raw})
	}
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, errors.New("unexpected trailing content after mode definitions")
	}
	return entries, nil
}

// yamlEntries reads the top-level mapping node in document order and re-encodes each value as JSON.
// A value that cannot be re-encoded is dropped with a warning; the other entries still load.
func yamlEntries(data []byte) ([]entry, []Warning, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, nil, err
	}
	if doc.Kind == 0 || len(doc.Content) == 0 {
		return nil, nil, nil
	}

	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, nil, fmt.Errorf("line %d: top-level value must be a mapping keyed by mode name", root.Line)
	}

	entries := make([]entry, 0, len(root.Content)/2)
	var warnings []Warning
	for i := 0; i+1 < len(root.Content); i += 2 {
		key, value := root.Content[i], root.Content[i+1]
		raw, err := yamlToJSON(value)
		if err != nil {
			warnings = append(warnings, Warning{Mode: key.Value, Err: &ConfigError{
				Mode:   key.Value,
				Action: -1,
				Err:    fmt.Errorf("line %d: invalid definition: %w", value.Line, err),
			}})
			continue
		}
		entries = append(entries, entry{name: key.Value, raw: raw})
	}
	return entries, warnings, nil
}

func yamlToJSON(node *yaml.Node) ([]byte, error) {
	var decoded any
	if err := node.Decode(&decoded); err != nil {
		return nil, err
	}
	return json.Marshal(decoded)
}

func buildDefinition(e entry, strict bool) (*Definition, []Warning) {
	name := strings.TrimSpace(e.name)
	fail := func(action int, err error) []Warning {
		return []Warning{{Mode: e.name, Err: &ConfigError{Mode: e.name, Action: action, Err: err}}}
	}
	if name == "" {
		return nil, fail(-1, errors.New("mode name must not be empty"))
	}

	var raw rawMode
	if err := json.Unmarshal(e.raw, &raw); err != nil {
		return nil, fail(-1, fmt.Errorf("invalid definition: %w", err))
	}

	trimmed := bytes.TrimSpace(raw.Actions)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, fail(-1, errors.New("actions is missing"))
	}
	var rawActions []json.RawMessage
	if err := json.Unmarshal(trimmed, &rawActions); err != nil {
		return nil, fail(-1, errors.New("actions must be a list"))
	}
	if len(rawActions) == 0 {
		return nil, fail(-1, errors.New("actions must not be empty"))
	}

	def := &Definition{Name: name}
	var warnings []Warning
	for i, rawAction := range rawActions {
		spec, err := buildAction(rawAction)
		if err != nil {
			if strict {
				return nil, fail(i, fmt.Errorf("%w; mode dropped (strict)", err))
			}
			warnings = append(warnings, fail(i, fmt.Errorf("%w; action skipped", err))...)
			continue
		}
		def.Actions = append(def.Actions, spec)
	}
	if len(def.Actions) == 0 {
		return nil, append(warnings, fail(-1, errors.New("no valid actions remain"))...)
	}

	for _, key := range slices.Sorted(maps.Keys(raw.Requirements)) {
		threshold := raw.Requirements[key]
		switch {
		case !requirement.Supported(key):
			warnings = append(warnings, fail(-1, fmt.Errorf("unknown requirement %q ignored", key))...)
		case threshold < 0 || math.IsNaN(threshold):
			warnings = append(warnings, fail(-1, fmt.Errorf("requirement %q must be >= 0", key))...)
		default:
			if def.Requirements == nil {
				def.Requirements = map[string]float64{}
			}
			def.Requirements[key] = threshold
		}
	}

	for _, key := range slices.Sorted(maps.Keys(raw.Notifications)) {
		value := raw.Notifications[key]
		if key != NotifyStartSound && key != NotifyFailureSound {
			warnings = append(warnings, fail(-1, fmt.Errorf("unknown notification %q ignored", key))...)
			continue
		}
		if strings.TrimSpace(value) == "" {
			continue
		}
		if def.Notifications == nil {
			def.Notifications = map[string]string{}
		}
		def.Notifications[key] = strings.TrimSpace(value)
	}

	return def, warnings
}

func buildAction(data json.RawMessage) (ActionSpec, error) {
	var raw rawAction
	if err := json.Unmarshal(data, &raw); err != nil {
		return ActionSpec{}, fmt.Errorf("invalid action: %w", err)
	}
	if raw.Type == nil {
		return ActionSpec{}, errors.New("type is required")
	}
	kind, err := ParseKind(*raw.Type)
	if err != nil {
		return ActionSpec{}, err
	}

	spec := ActionSpec{
		Kind:         kind,
		Target:       deref(raw.Target),
		CheckRunning: raw.CheckRunning != nil && *raw.CheckRunning,
		Force:        raw.Force != nil && *raw.Force,
		Smooth:       raw.Smooth != nil && *raw.Smooth,
		URL:          deref(raw.URL),
		Fallback:     deref(raw.Fallback),
		Command:      deref(raw.Command),
		WorkingDir:   deref(raw.WorkingDir),
		ScriptPath:   deref(raw.Path),
	}
	if spec.ScriptPath == "" {
		spec.ScriptPath = deref(raw.ScriptPath)
	}

	if spec.Args, err = parseArgs(raw.Args); err != nil {
		return ActionSpec{}, err
	}
	if spec.Delay, err = seconds("delay", raw.Delay, 0); err != nil {
		return ActionSpec{}, err
	}
	if spec.Timeout, err = seconds("timeout", raw.Timeout, 0); err != nil {
		return ActionSpec{}, err
	}

	switch kind {
	case KindLaunch, KindKill:
		if spec.Target == "" {
			return ActionSpec{}, fmt.Errorf("%s requires target", kind)
		}
	case KindSetVolume:
		if spec.Level, err = percent("level", raw.Level, 50); err != nil {
			return ActionSpec{}, err
		}
		if spec.Duration, err = seconds("duration", raw.Duration, DefaultFadeDuration); err != nil {
			return ActionSpec{}, err
		}
	case KindRunScript:
		if spec.ScriptPath == "" {
			return ActionSpec{}, errors.New("script requires path")
		}
	case KindExecute:
		if spec.Command == "" {
			return ActionSpec{}, errors.New("execute requires command")
		}
	case KindLaunchURI:
		if spec.URL == "" {
			return ActionSpec{}, errors.New("launch_uri requires url")
		}
	case KindAdjustDisplay:
		level := raw.DisplayLevel
		if level == nil {
			level = raw.Level
		}
		if level == nil {
			return ActionSpec{}, errors.New("display requires display_level")
		}
		if spec.DisplayLevel, err = percent("display_level", level, 0); err != nil {
			return ActionSpec{}, err
		}
	}
	return spec, nil
}

// parseArgs accepts a list of strings or a single whitespace-separated string.
func parseArgs(raw json.RawMessage) ([]string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err == nil {
		return list, nil
	}
	var joined string
	if err := json.Unmarshal(raw, &joined); err != nil {
		return nil, errors.New("args must be a list of strings or a string")
	}
	return strings.Fields(joined), nil
}

// maxSeconds is the largest whole number of seconds a time.Duration holds.
var maxSeconds = math.Floor(float64(math.MaxInt64) / float64(time.Second))

func seconds(field string, value *float64, fallback time.Duration) (time.Duration, error) {
	if value == nil {
		return fallback, nil
	}
	if *value < 0 || math.IsNaN(*value) || math.IsInf(*value, 0) {
		return 0, fmt.Errorf("%s must be a non-negative number of seconds", field)
	}
	if *value > maxSeconds {
		return 0, fmt.Errorf("%s must be at most %.0f seconds", field, maxSeconds)
	}
	return time.Duration(*value * float64(time.Second)), nil
}

func percent(field string, value *float64, fallback int) (int, error) {
	if value == nil {
		return fallback, nil
	}
	if *value < 0 || *value > 100 || math.IsNaN(*value) {
		return 0, fmt.Errorf("%s must be between 0 and 100", field)
	}
	return int(math.Round(*value)), nil
}

func deref(value *string) string {
	if value == nil {
		return ""
	}
	return strings.TrimSpace(*value)
}
