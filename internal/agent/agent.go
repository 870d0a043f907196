// Package agent runs the long-lived modus process: one bounded command queue drained by a single
// consumer, plus the health monitor and any listener loops, under one errgroup.
package agent

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/rbright/modus/internal/command"
	"github.com/rbright/modus/internal/engine"
	"github.com/rbright/modus/internal/health"
	"github.com/rbright/modus/internal/logging"
	"github.com/rbright/modus/internal/requirement"
	"github.com/rbright/modus/internal/volume"
)

// QueueCapacity bounds pending commands.
const QueueCapacity = 20

var (
	// ErrQueueFull is returned by Submit when QueueCapacity commands are already pending.
	ErrQueueFull = errors.New("agent: command queue full")
	// ErrStopped is returned for commands that can no longer run because the agent stopped.
	ErrStopped = errors.New("agent: stopped")
	// ErrNoMatch is returned when text matches no catalog phrase or mode.
	ErrNoMatch = errors.New("agent: no command matched")
	// ErrWakeWordMissing is returned when voice text lacks the configured wake word.
	ErrWakeWordMissing = errors.New("agent: wake word missing")
)

// Source names where a command came from.
type Source string

const (
	SourceVoice  Source = "voice"
	SourceCLI    Source = "cli"
	SourceIPC    Source = "ipc"
	SourceSystem Source = "system"
)

// Command is one unit of work for the consumer. Text commands are matched against the catalog;
// otherwise Intent and Params are used as given.
type Command struct {
	Source Source
	Text   string
	Intent command.Intent
	Params command.Params
	// Detail is free text carried by system commands.
	Detail string

	reply chan Outcome
}

// Outcome is the result of one command.
type Outcome struct {
	Intent    command.Intent
	Message   string
	Execution *engine.Execution
	Err       error
}

// Activator runs modes.
type Activator interface {
	Activate(ctx context.Context, name string, trigger string) (engine.Execution, error)
}

// Volume is the slice of the volume controller the agent drives.
type Volume interface {
	Get() int
	Set(percent int, smooth bool, duration time.Duration) bool
	Up(step int) bool
	Down(step int) bool
	Mute() (bool, int)
	Unmute() bool
	ToggleMute() bool
	Snapshot() volume.State
	Close() error
}

// Modes lists registered mode names.
type Modes interface {
	Names() []string
}

// Matcher resolves text to an intent.
type Matcher interface {
	StripWakeWord(text string) (string, bool)
	Match(text string, modeNames []string) (command.Match, bool)
}

// Sounds plays and stops notification sounds.
type Sounds interface {
	Play(id string) bool
	StopAll()
}

// Notifier shows on-screen messages.
type Notifier interface {
	ShowError(ctx context.Context, text string)
	ShowWarning(ctx context.Context, text string)
}

// Spawner starts detached programs for launch and open_url intents.
type Spawner interface {
	Spawn(path string, args []string, dir string) (int, error)
}

// HealthSink receives health monitor samples.
type HealthSink interface {
	HealthSampled(sample health.Sample)
}

// Options holds agent policy.
type Options struct {
	ErrorSound     string
	WarningSound   string
	URIOpener      []string
	HealthInterval time.Duration
	CriticalRAMGB  float64
}

// Deps wires an Agent. Sounds, Notifier, Metrics and HealthSinks are optional.
type Deps struct {
	Engine      Activator
	Volume      Volume
	Modes       Modes
	Catalog     Matcher
	Sounds      Sounds
	Notifier    Notifier
	Spawner     Spawner
	Metrics     requirement.Metrics
	HealthSinks []HealthSink
	Options     Options
	Logger      *slog.Logger
}

// Agent owns the command queue and the runtime loops.
type Agent struct {
	deps   Deps
	opts   Options
	logger *slog.Logger
	now    func() time.Time

	queue chan Command

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	stopped chan struct{}

	shutdownOnce sync.Once
}

// New builds an agent. Run starts it; Execute works without Run.
func New(deps Deps) *Agent {
	opts := deps.Options
	if opts.HealthInterval <= 0 {
		opts.HealthInterval = 10 * time.Second
	}
	return &Agent{
		deps:    deps,
		opts:    opts,
		logger:  logging.OrDiscard(deps.Logger),
		now:     time.Now,
		queue:   make(chan Command, QueueCapacity),
		stopped: make(chan struct{}),
	}
}

// Submit enqueues cmd without blocking.
func (a *Agent) Submit(cmd Command) error {
	select {
	case <-a.stopped:
		return ErrStopped
	default:
	}
	select {
	case a.queue <- cmd:
		return nil
	default:
		a.logger.Warn("command queue full", "source", cmd.Source, "intent", cmd.Intent, "capacity", QueueCapacity)
		return ErrQueueFull
	}
}

// SubmitAndWait enqueues cmd and waits for its outcome.
func (a *Agent) SubmitAndWait(ctx context.Context, cmd Command) Outcome {
	cmd.reply = make(chan Outcome, 1)
	if err := a.Submit(cmd); err != nil {
		return Outcome{Intent: cmd.Intent, Err: err}
	}
	select {
	case out := <-cmd.reply:
		return out
	case <-ctx.Done():
		return Outcome{Intent: cmd.Intent, Err: context.Cause(ctx)}
	case <-a.stopped:
		return Outcome{Intent: cmd.Intent, Err: ErrStopped}
	}
}

// Running reports whether Run is active.
func (a *Agent) Running() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.running
}

// Stop asks a running agent to shut down.
func (a *Agent) Stop() {
	a.mu.Lock()
	cancel := a.cancel
	a.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Run drives the consumer, the health monitor and loops until ctx ends, a loop fails, or a
// shutdown command arrives. It then stops sound playback and closes the volume device.
func (a *Agent) Run(ctx context.Context, loops ...func(context.Context) error) error {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	a.mu.Lock()
	a.running = true
	a.cancel = cancel
	a.mu.Unlock()

	a.logger.Info("agent started", "queue_capacity", QueueCapacity, "loops", len(loops)+2)

	g, gctx := errgroup.WithContext(runCtx)
	g.Go(func() error { return a.consume(gctx) })
	g.Go(func() error { return a.monitor(gctx) })
	for _, loop := range loops {
		g.Go(func() error { return loop(gctx) })
	}
	err := g.Wait()

	a.shutdown()
	a.mu.Lock()
	a.running = false
	a.cancel = nil
	a.mu.Unlock()

	if err != nil {
		a.logger.Error("agent stopped with error", "error", err)
		return err
	}
	a.logger.Info("agent stopped")
	return nil
}

func (a *Agent) consume(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case cmd := <-a.queue:
			if ctx.Err() != nil {
				if cmd.reply != nil {
					cmd.reply <- Outcome{Intent: cmd.Intent, Err: ErrStopped}
				}
				return nil
			}
			out := a.Execute(ctx, cmd)
			if cmd.reply != nil {
				cmd.reply <- out
			}
		}
	}
}

// shutdown stops playback, closes the device and fails commands still queued.
func (a *Agent) shutdown() {
	a.shutdownOnce.Do(func() {
		close(a.stopped)
		if a.deps.Sounds != nil {
			a.deps.Sounds.StopAll()
		}
		if a.deps.Volume != nil {
			if err := a.deps.Volume.Close(); err != nil {
				a.logger.Warn("volume close failed", "error", err)
			}
		}
		for {
			select {
			case cmd := <-a.queue:
				if cmd.reply != nil {
					cmd.reply <- Outcome{Intent: cmd.Intent, Err: ErrStopped}
				}
			default:
				return
			}
		}
	})
}
