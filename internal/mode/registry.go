// Package mode loads, validates, and indexes mode definitions.
package mode

import (
	"fmt"
	"log/slog"
	"os"
	"slices"
	"strings"

	"github.com/rbright/modus/internal/logging"
)

// Options tunes how definitions are loaded.
type Options struct {
	// Strict drops a whole mode on its first invalid action instead of skipping that action.
	Strict bool
	Logger *slog.Logger
}

// Registry is an immutable, insertion-ordered index of definitions.
type Registry struct {
	order []string
	modes map[string]Definition
}

// NewRegistry builds a registry from already-validated definitions.
func NewRegistry(defs ...Definition) *Registry {
	reg := &Registry{modes: make(map[string]Definition, len(defs))}
	for _, def := range defs {
		reg.put(def)
	}
	return reg
}

// Load reads path and builds a registry. A missing or unreadable file yields an empty registry.
func Load(path string, opts Options) (*Registry, []Warning) {
	logger := logging.OrDiscard(opts.Logger)

	data, err := os.ReadFile(path)
	if err != nil {
		warning := Warning{Err: fmt.Errorf("read mode definitions %q: %w", path, err)}
		logger.Warn("mode definitions unavailable; registry is empty", "path", path, "error", err)
		return NewRegistry(), []Warning{warning}
	}

	reg, warnings := Parse(data, FormatForPath(path), opts)
	for _, w := range warnings {
		logger.Warn("mode definition warning", "path", path, "mode", w.Mode, "warning", w.String())
	}
	logger.Info("mode definitions loaded", "path", path, "modes", reg.Len(), "strict", opts.Strict)
	return reg, warnings
}

// put stores def and reports whether it replaced an earlier definition. Replacements keep the earlier position.
func (r *Registry) put(def Definition) bool {
	_, exists := r.modes[def.Name]
	if !exists {
		r.order = append(r.order, def.Name)
	}
	r.modes[def.Name] = def.Clone()
	return exists
}

// Lookup returns a copy of the named definition. An exact match wins over a case-insensitive one.
func (r *Registry) Lookup(name string) (Definition, error) {
	if def, ok := r.modes[name]; ok {
		return def.Clone(), nil
	}
	trimmed := strings.TrimSpace(name)
	for _, candidate := range r.order {
		if strings.EqualFold(candidate, trimmed) {
			return r.modes[candidate].Clone(), nil
		}
	}
	return Definition{}, fmt.Errorf("%w: %q", ErrModeNotFound, name)
}

// Names returns mode names in load order.
func (r *Registry) Names() []string {
	return slices.Clone(r.order)
}

// Len reports how many modes are registered.
func (r *Registry) Len() int {
	return len(r.order)
}
