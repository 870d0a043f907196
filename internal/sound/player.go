// Package sound plays notification sounds from a file catalog or built-in synthesized cues.
package sound

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/rbright/modus/internal/config"
	"github.com/rbright/modus/internal/logging"
)

// Player plays at most one sound at a time. Starting a sound stops the previous one.
type Player struct {
	enabled bool
	catalog map[string]string
	backend backend
	logger  *slog.Logger

	// playMu serializes Play so only one sound is ever started at a time.
	playMu sync.Mutex

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	playing bool
}

// NewPlayer loads the catalog under cfg.Dir. A missing directory leaves only the built-in cues.
func NewPlayer(cfg config.SoundsConfig, logger *slog.Logger) *Player {
	logger = logging.OrDiscard(logger)
	catalog, err := LoadCatalog(cfg.Dir)
	if err != nil {
		logger.Warn("sound catalog unavailable; using built-in cues", "dir", cfg.Dir, "error", err)
	}
	return &Player{
		enabled: cfg.Enable,
		catalog: catalog,
		backend: systemBackend{player: cfg.Player.Argv},
		logger:  logger,
	}
}

// LoadCatalog indexes every .wav file under dir by its slash-separated relative path without extension.
func LoadCatalog(dir string) (map[string]string, error) {
	catalog := map[string]string{}
	if strings.TrimSpace(dir) == "" {
		return catalog, nil
	}

	err := filepath.WalkDir(dir, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if entry.IsDir() || !strings.EqualFold(filepath.Ext(path), ".wav") {
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		id := filepath.ToSlash(strings.TrimSuffix(rel, filepath.Ext(rel)))
		catalog[id] = path
		return nil
	})
	return catalog, err
}

// IDs lists every playable id, catalog files and built-in cues, sorted.
func (p *Player) IDs() []string {
	ids := make([]string, 0, len(p.catalog)+len(cues))
	for id := range p.catalog {
		ids = append(ids, id)
	}
	for id := range cues {
		if _, shadowed := p.catalog[id]; !shadowed {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)
	return ids
}

// Has reports whether id resolves to a file or a built-in cue.
func (p *Player) Has(id string) bool {
	_, file := p.catalog[id]
	return file || cueSamples(id) != nil
}

// Play stops any current sound and starts id in the background.
// It reports false when playback is disabled or id is unknown.
func (p *Player) Play(id string) bool {
	if p == nil || !p.enabled {
		return false
	}
	id = strings.TrimSpace(id)

	var run func(context.Context) error
	if path, ok := p.catalog[id]; ok {
		run = func(ctx context.Context) error { return p.backend.PlayFile(ctx, path) }
	} else if samples := cueSamples(id); samples != nil {
		run = func(ctx context.Context) error { return p.backend.PlaySamples(ctx, samples) }
	} else {
		p.logger.Warn("unknown sound id", "sound", id)
		return false
	}

	p.playMu.Lock()
	defer p.playMu.Unlock()
	p.StopAll()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	p.mu.Lock()
	p.cancel = cancel
	p.done = done
	p.playing = true
	p.mu.Unlock()

	go func() {
		defer close(done)
		err := run(ctx)

		p.mu.Lock()
		if p.done == done {
			p.playing = false
		}
		p.mu.Unlock()

		if err != nil && !errors.Is(err, context.Canceled) {
			p.logger.Debug("sound playback failed", "sound", id, "error", err)
		}
	}()
	return true
}

// IsPlaying reports whether a sound is currently playing.
func (p *Player) IsPlaying() bool {
	if p == nil {
		return false
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.playing
}

// StopAll cancels the current sound and waits for its playback to end.
func (p *Player) StopAll() {
	if p == nil {
		return
	}
	p.mu.Lock()
	cancel, done := p.cancel, p.done
	p.cancel, p.done = nil, nil
	p.playing = false
	p.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}
