// Package engine runs modes: lookup, requirement gate, sequential dispatch, notification, and record.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/rbright/modus/internal/action"
	"github.com/rbright/modus/internal/logging"
	"github.com/rbright/modus/internal/mode"
)

// Status classifies a finished activation.
type Status string

const (
	StatusCompleted Status = "completed"
	StatusPartial   Status = "partial"
	StatusFailed    Status = "failed"
	StatusRejected  Status = "rejected"
	StatusCancelled Status = "cancelled"
)

// Execution is the record of one Activate call.
type Execution struct {
	ID         string    `json:"id"`
	Mode       string    `json:"mode"`
	Trigger    string    `json:"trigger"`
	Status     Status    `json:"status"`
	Reason     string    `json:"reason,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Total      int       `json:"total"`
	Completed  int       `json:"completed"`
	Failed     int       `json:"failed"`
	Skipped    int       `json:"skipped"`
	Failures   []string  `json:"failures,omitempty"`
}

// Duration is the wall time the activation took.
func (e Execution) Duration() time.Duration {
	return e.FinishedAt.Sub(e.StartedAt)
}

// Ran reports whether the mode was found and passed its requirements, regardless of action outcomes.
func (e Execution) Ran() bool {
	return e.Status != StatusRejected && e.Status != ""
}

// Registry resolves mode names.
type Registry interface {
	Lookup(name string) (mode.Definition, error)
}

// Requirements gates a definition before any action runs.
type Requirements interface {
	Check(requirements map[string]float64) error
}

// Dispatcher runs a definition's actions.
type Dispatcher interface {
	Run(ctx context.Context, def mode.Definition) action.Report
}

// Sounds plays notification sounds.
type Sounds interface {
	Play(id string) bool
}

// Recorder persists finished executions.
type Recorder interface {
	Record(ctx context.Context, exec Execution) error
}

// Observer is told about every finished execution.
type Observer interface {
	ModeActivated(exec Execution)
}

// Deps wires an Engine. Sounds, Recorder and Observers are optional.
type Deps struct {
	Registry     Registry
	Requirements Requirements
	Dispatcher   Dispatcher
	Sounds       Sounds
	Recorder     Recorder
	Observers    []Observer
	Logger       *slog.Logger
}

// Engine is the mode activation engine.
type Engine struct {
	deps   Deps
	logger *slog.Logger
	now    func() time.Time
}

// New builds an Engine.
func New(deps Deps) *Engine {
	return &Engine{deps: deps, logger: logging.OrDiscard(deps.Logger), now: time.Now}
}

// Activate runs the named mode. Only an unknown mode or an unmet requirement returns an error;
// individual action failures are reported in the Execution.
func (e *Engine) Activate(ctx context.Context, name string, trigger string) (Execution, error) {
	exec := Execution{
		ID:        uuid.NewString(),
		Mode:      name,
		Trigger:   trigger,
		StartedAt: e.now(),
	}
	logger := e.logger.With("execution", exec.ID, "mode", name, "trigger", trigger)

	def, err := e.deps.Registry.Lookup(name)
	if err != nil {
		logger.Warn("mode activation rejected", "error", err)
		e.finish(ctx, &exec, StatusRejected, err.Error())
		return exec, err
	}
	exec.Mode = def.Name
	exec.Total = len(def.Actions)

	if err := e.deps.Requirements.Check(def.Requirements); err != nil {
		logger.Warn("mode activation rejected", "error", err)
		e.play(def.Notification(mode.NotifyFailureSound))
		exec.Skipped = exec.Total
		e.finish(ctx, &exec, StatusRejected, err.Error())
		return exec, fmt.Errorf("activate %q: %w", def.Name, err)
	}

	logger.Info("mode activation started", "actions", exec.Total)
	report := e.deps.Dispatcher.Run(ctx, def)
	exec.Completed = report.Completed
	exec.Failed = report.Failed
	exec.Skipped = report.Skipped
	for _, failure := range report.Errors() {
		exec.Failures = append(exec.Failures, failure.Error())
	}

	status := StatusCompleted
	switch {
	case report.Cancelled:
		status = StatusCancelled
	case report.Failed > 0 && report.Completed == 0:
		status = StatusFailed
	case report.Failed > 0:
		status = StatusPartial
	}

	if report.Failed > 0 && def.Notification(mode.NotifyFailureSound) != "" {
		e.play(def.Notification(mode.NotifyFailureSound))
	} else if !report.Cancelled {
		e.play(def.Notification(mode.NotifyStartSound))
	}

	reason := ""
	if cause := context.Cause(ctx); report.Cancelled && cause != nil {
		reason = cause.Error()
	}
	e.finish(ctx, &exec, status, reason)
	logger.Info("mode activation finished",
		"status", exec.Status,
		"completed", exec.Completed,
		"failed", exec.Failed,
		"skipped", exec.Skipped,
		"duration_ms", exec.Duration().Milliseconds(),
	)
	return exec, nil
}

func (e *Engine) finish(ctx context.Context, exec *Execution, status Status, reason string) {
	exec.Status = status
	exec.Reason = reason
	exec.FinishedAt = e.now()

	if e.deps.Recorder != nil {
		recordCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
		if err := e.deps.Recorder.Record(recordCtx, *exec); err != nil {
			e.logger.Warn("execution record failed", "execution", exec.ID, "error", err)
		}
		cancel()
	}
	for _, observer := range e.deps.Observers {
		if observer != nil {
			observer.ModeActivated(*exec)
		}
	}
}

func (e *Engine) play(id string) {
	if id == "" || e.deps.Sounds == nil {
		return
	}
	if !e.deps.Sounds.Play(id) {
		e.logger.Debug("notification sound not played", "sound", id)
	}
}

// IsNotFound reports whether err came from an unknown mode name.
func IsNotFound(err error) bool {
	return errors.Is(err, mode.ErrModeNotFound)
}
