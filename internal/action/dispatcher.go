// Package action executes mode actions through one handler per kind with per-action failure isolation.
package action

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/rbright/modus/internal/logging"
	"github.com/rbright/modus/internal/mode"
)

// Handler performs one kind of action.
type Handler interface {
	Kind() mode.Kind
	Execute(ctx context.Context, spec mode.ActionSpec) error
}

// Status is the outcome of a single action.
type Status string

const (
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusSkipped   Status = "skipped"
)

// Result records one action's outcome.
type Result struct {
	Index    int           `json:"index"`
	Kind     mode.Kind     `json:"kind"`
	Status   Status        `json:"status"`
	Err      error         `json:"-"`
	Duration time.Duration `json:"duration"`
}

// Report summarizes a dispatched mode.
type Report struct {
	Mode      string   `json:"mode"`
	Results   []Result `json:"results"`
	Completed int      `json:"completed"`
	Failed    int      `json:"failed"`
	Skipped   int      `json:"skipped"`
	// Cancelled is set when the context ended before every action ran.
	Cancelled bool `json:"cancelled"`
}

// Errors returns the failed actions' errors in order.
func (r Report) Errors() []error {
	var errs []error
	for _, result := range r.Results {
		if result.Err != nil {
			errs = append(errs, result.Err)
		}
	}
	return errs
}

// Dispatcher routes each action to its kind's handler.
type Dispatcher struct {
	handlers map[mode.Kind]Handler
	logger   *slog.Logger
}

// NewDispatcher requires exactly one handler for every declared kind.
func NewDispatcher(logger *slog.Logger, handlers ...Handler) (*Dispatcher, error) {
	byKind := make(map[mode.Kind]Handler, len(handlers))
	for _, handler := range handlers {
		if handler == nil {
			return nil, errors.New("nil action handler")
		}
		kind := handler.Kind()
		if !kind.Valid() {
			return nil, fmt.Errorf("handler registered for invalid kind %s", kind)
		}
		if _, exists := byKind[kind]; exists {
			return nil, fmt.Errorf("duplicate handler for %s actions", kind)
		}
		byKind[kind] = handler
	}

	var missing []string
	for _, kind := range mode.Kinds() {
		if _, ok := byKind[kind]; !ok {
			missing = append(missing, kind.String())
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("missing action handlers: %v", missing)
	}

	return &Dispatcher{handlers: byKind, logger: logging.OrDiscard(logger)}, nil
}

// Run executes def's actions in order. A failing action is logged and recorded; later actions still run.
//
// Each action's delay is slept before the next one starts. Cancelling ctx skips whatever has not started.
func (d *Dispatcher) Run(ctx context.Context, def mode.Definition) Report {
	report := Report{Mode: def.Name, Results: make([]Result, 0, len(def.Actions))}

	for i, spec := range def.Actions {
		if ctx.Err() != nil {
			report.skipFrom(def.Actions, i)
			break
		}

		started := time.Now()
		err := d.execute(ctx, i, spec)
		result := Result{Index: i, Kind: spec.Kind, Status: StatusCompleted, Err: err, Duration: time.Since(started)}
		if err != nil {
			result.Status = StatusFailed
			report.Failed++
			d.logFailure(def.Name, i, spec, err)
		} else {
			report.Completed++
			d.logger.Info("action completed",
				"mode", def.Name,
				"index", i+1,
				"kind", spec.Kind.String(),
				"duration_ms", result.Duration.Milliseconds(),
			)
		}
		report.Results = append(report.Results, result)

		if spec.Delay > 0 && i < len(def.Actions)-1 {
			if !sleep(ctx, spec.Delay) {
				report.skipFrom(def.Actions, i+1)
				break
			}
		}
	}
	return report
}

func (r *Report) skipFrom(actions []mode.ActionSpec, start int) {
	r.Cancelled = true
	for i := start; i < len(actions); i++ {
		r.Results = append(r.Results, Result{Index: i, Kind: actions[i].Kind, Status: StatusSkipped})
		r.Skipped++
	}
}

// execute invokes the handler and converts panics and plain errors into *ExecutionError.
func (d *Dispatcher) execute(ctx context.Context, index int, spec mode.ActionSpec) (err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			err = fmt.Errorf("handler panic: %v", recovered)
		}
		if err == nil {
			return
		}
		var execErr *ExecutionError
		if errors.As(err, &execErr) {
			execErr.Kind = spec.Kind
			execErr.Index = index
			return
		}
		err = &ExecutionError{Kind: spec.Kind, Index: index, Err: err}
	}()

	handler, ok := d.handlers[spec.Kind]
	if !ok {
		return fmt.Errorf("no handler for kind %s", spec.Kind)
	}
	return handler.Execute(ctx, spec)
}

func (d *Dispatcher) logFailure(modeName string, index int, spec mode.ActionSpec, err error) {
	attrs := []any{
		"mode", modeName,
		"index", index + 1,
		"kind", spec.Kind.String(),
		"error", err.Error(),
	}
	if errors.Is(err, ErrTargetNotFound) || spec.Kind == mode.KindAdjustDisplay {
		d.logger.Warn("action failed; continuing", attrs...)
		return
	}
	d.logger.Error("action failed; continuing", attrs...)
}

func sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
