// Package command matches spoken or typed text against the trigger-phrase catalog.
package command

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/rbright/modus/internal/jsonc"
	"github.com/rbright/modus/internal/logging"
	"github.com/rbright/modus/internal/mode"
)

// Match is a resolved command.
type Match struct {
	Category string `json:"category,omitempty"`
	Phrase   string `json:"phrase"`
	Intent   Intent `json:"intent"`
	Params   Params `json:"params"`
}

type entry struct {
	category     string
	phrase       string
	alternatives []string
	intent       Intent
	params       Params
}

type rawEntry struct {
	Action       string         `json:"action" yaml:"action"`
	Params       map[string]any `json:"params" yaml:"params"`
	Alternatives []string       `json:"alternatives" yaml:"alternatives"`
}

// Catalog is an ordered set of trigger phrases.
type Catalog struct {
	wakeWord string
	entries  []entry
}

// New returns an empty catalog that only understands the built-in mode phrases.
func New(wakeWord string) *Catalog {
	return &Catalog{wakeWord: normalize(wakeWord)}
}

// Load reads a commands file. A missing or malformed file yields an empty catalog plus a warning.
func Load(path string, wakeWord string, logger *slog.Logger) (*Catalog, []string) {
	logger = logging.OrDiscard(logger)
	catalog := New(wakeWord)

	data, err := os.ReadFile(path)
	if err != nil {
		logger.Warn("command catalog unavailable; only built-in phrases are active", "path", path, "error", err)
		return catalog, []string{fmt.Sprintf("read command catalog %q: %v", path, err)}
	}

	warnings, err := catalog.parse(data, mode.FormatForPath(path))
	if err != nil {
		warnings = append(warnings, fmt.Sprintf("parse command catalog %q: %v", path, err))
	}
	for _, warning := range warnings {
		logger.Warn("command catalog warning", "path", path, "warning", warning)
	}
	logger.Info("command catalog loaded", "path", path, "phrases", len(catalog.entries))
	return catalog, warnings
}

// Parse builds a catalog from bytes in the given format.
func Parse(data []byte, format mode.Format, wakeWord string) (*Catalog, []string, error) {
	catalog := New(wakeWord)
	warnings, err := catalog.parse(data, format)
	if err != nil {
		return New(wakeWord), warnings, err
	}
	return catalog, warnings, nil
}

func (c *Catalog) parse(data []byte, format mode.Format) ([]string, error) {
	var (
		raw []rawCategory
		err error
	)
	if format == mode.FormatYAML {
		raw, err = yamlCategories(data)
	} else {
		raw, err = jsonCategories(data)
	}
	if err != nil {
		return nil, err
	}

	var warnings []string
	for _, category := range raw {
		for _, phrase := range category.phrases {
			e, err := buildEntry(category.name, phrase.phrase, phrase.entry)
			if err != nil {
				warnings = append(warnings, fmt.Sprintf("%s/%q: %v", category.name, phrase.phrase, err))
				continue
			}
			c.entries = append(c.entries, e)
		}
	}
	return warnings, nil
}

func buildEntry(category string, phrase string, raw rawEntry) (entry, error) {
	normalized := normalize(phrase)
	if normalized == "" {
		return entry{}, errors.New("empty phrase")
	}
	intent := Intent(strings.TrimSpace(raw.Action))
	if !knownIntents[intent] {
		return entry{}, fmt.Errorf("unknown action %q", raw.Action)
	}
	params, err := buildParams(intent, raw.Params)
	if err != nil {
		return entry{}, err
	}

	e := entry{category: category, phrase: normalized, intent: intent, params: params}
	for _, alt := range raw.Alternatives {
		if alt = normalize(alt); alt != "" {
			e.alternatives = append(e.alternatives, alt)
		}
	}
	return e, nil
}

// Len reports how many phrases are loaded.
func (c *Catalog) Len() int {
	return len(c.entries)
}

// WakeWord returns the normalized wake word, or "" when none is configured.
func (c *Catalog) WakeWord() string {
	return c.wakeWord
}

// StripWakeWord lowercases text, removes every occurrence of the wake word, and reports whether one was present.
func (c *Catalog) StripWakeWord(text string) (string, bool) {
	text = normalize(text)
	if c.wakeWord == "" {
		return text, true
	}

	wake := strings.Fields(c.wakeWord)
	words := strings.Fields(text)
	kept := make([]string, 0, len(words))
	found := false
	for i := 0; i < len(words); {
		if hasWordsAt(words, i, wake) {
			found = true
			i += len(wake)
			continue
		}
		kept = append(kept, words[i])
		i++
	}
	return strings.Join(kept, " "), found
}

func hasWordsAt(words []string, at int, want []string) bool {
	if at+len(want) > len(words) {
		return false
	}
	for j, w := range want {
		if strings.Trim(words[at+j], ",.!?") != w {
			return false
		}
	}
	return true
}

var (
	activatePattern = regexp.MustCompile(`^(?:activate|start|enable|switch to)\s+(.+?)(?:\s+mode)?$`)
	modeSuffix      = regexp.MustCompile(`^(.+?)\s+mode$`)
)

// Match resolves text to the first catalog phrase it contains, in file order.
// When no phrase matches, "activate <mode>" and "<mode> mode" are tried against modeNames.
func (c *Catalog) Match(text string, modeNames []string) (Match, bool) {
	text, _ = c.StripWakeWord(text)
	if text == "" {
		return Match{}, false
	}

	for _, e := range c.entries {
		if !e.matches(text) {
			continue
		}
		m := Match{Category: e.category, Phrase: e.phrase, Intent: e.intent, Params: e.params}
		if m.Params.Args != nil {
			m.Params.Args = append([]string(nil), m.Params.Args...)
		}
		if e.intent == IntentSetVolume && !m.Params.HasLevel {
			if n, ok := firstNumber(text); ok {
				m.Params.Level = min(max(n, 0), 100)
				m.Params.HasLevel = true
			}
		}
		return m, true
	}

	return matchMode(text, modeNames)
}

func (e entry) matches(text string) bool {
	if strings.Contains(text, e.phrase) {
		return true
	}
	for _, alt := range e.alternatives {
		if strings.Contains(text, alt) {
			return true
		}
	}
	return false
}

func matchMode(text string, modeNames []string) (Match, bool) {
	var candidate string
	if m := activatePattern.FindStringSubmatch(text); m != nil {
		candidate = m[1]
	} else if m := modeSuffix.FindStringSubmatch(text); m != nil {
		candidate = m[1]
	}
	if candidate == "" {
		return Match{}, false
	}
	for _, name := range modeNames {
		if strings.EqualFold(name, candidate) {
			return Match{Phrase: text, Intent: IntentActivateMode, Params: Params{Mode: name}}, true
		}
	}
	return Match{}, false
}

func normalize(text string) string {
	return strings.Join(strings.Fields(strings.ToLower(text)), " ")
}

type rawCategory struct {
	name    string
	phrases []rawPhrase
}

type rawPhrase struct {
	phrase string
	entry  rawEntry
}

// jsonCategories walks voice_commands with a token decoder so category and phrase order survive.
func jsonCategories(data []byte) ([]rawCategory, error) {
	normalized, err := jsonc.Normalize(string(data))
	if err != nil {
		return nil, err
	}

	var root map[string]json.RawMessage
	if err := json.Unmarshal([]byte(normalized), &root); err != nil {
		return nil, err
	}
	commands, ok := root["voice_commands"]
	if !ok {
		return nil, errors.New("missing voice_commands section")
	}

	categories, err := orderedObject(commands)
	if err != nil {
		return nil, fmt.Errorf("voice_commands: %w", err)
	}

	out := make([]rawCategory, 0, len(categories))
	for _, category := range categories {
		phrases, err := orderedObject(category.value)
		if err != nil {
			return nil, fmt.Errorf("category %q: %w", category.key, err)
		}
		rc := rawCategory{name: category.key}
		for _, phrase := range phrases {
			var e rawEntry
			if err := json.Unmarshal(phrase.value, &e); err != nil {
				return nil, fmt.Errorf("phrase %q: %w", phrase.key, err)
			}
			rc.phrases = append(rc.phrases, rawPhrase{phrase: phrase.key, entry: e})
		}
		out = append(out, rc)
	}
	return out, nil
}

type keyValue struct {
	key   string
	value json.RawMessage
}

func orderedObject(data json.RawMessage) ([]keyValue, error) {
	dec := json.NewDecoder(strings.NewReader(string(data)))
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, errors.New("expected an object")
	}

	var out []keyValue
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, _ := tok.(string)
		var value json.RawMessage
		if err := dec.Decode(&value); err != nil {
			return nil, err
		}
		out = append(out, keyValue{key: key, value: value})
	}
	if _, err := dec.Token(); err != nil && err != io.EOF {
		return nil, err
	}
	return out, nil
}

func yamlCategories(data []byte) ([]rawCategory, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	if len(doc.Content) == 0 || doc.Content[0].Kind != yaml.MappingNode {
		return nil, errors.New("top-level value must be a mapping")
	}

	var commands *yaml.Node
	root := doc.Content[0]
	for i := 0; i+1 < len(root.Content); i += 2 {
		if root.Content[i].Value == "voice_commands" {
			commands = root.Content[i+1]
		}
	}
	if commands == nil {
		return nil, errors.New("missing voice_commands section")
	}
	if commands.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("line %d: voice_commands must be a mapping", commands.Line)
	}

	var out []rawCategory
	for i := 0; i+1 < len(commands.Content); i += 2 {
		name, body := commands.Content[i].Value, commands.Content[i+1]
		if body.Kind != yaml.MappingNode {
			return nil, fmt.Errorf("line %d: category %q must be a mapping", body.Line, name)
		}
		rc := rawCategory{name: name}
		for j := 0; j+1 < len(body.Content); j += 2 {
			var e rawEntry
			if err := body.Content[j+1].Decode(&e); err != nil {
				return nil, fmt.Errorf("line %d: phrase %q: %w", body.Content[j+1].Line, body.Content[j].Value, err)
			}
			rc.phrases = append(rc.phrases, rawPhrase{phrase: body.Content[j].Value, entry: e})
		}
		out = append(out, rc)
	}
	return out, nil
}
