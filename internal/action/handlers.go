package action

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/rbright/modus/internal/argv"
	"github.com/rbright/modus/internal/config"
	"github.com/rbright/modus/internal/logging"
	"github.com/rbright/modus/internal/mode"
	"github.com/rbright/modus/internal/process"
)

// Processes is the OS process collaborator used by launch, kill and URI fallbacks.
type Processes interface {
	Spawn(path string, args []string, dir string) (int, error)
	FindByName(name string) ([]process.Process, error)
	IsRunning(name string) bool
	Signal(pid int, force bool) error
}

// Volume is the slice of the volume controller used by volume actions.
type Volume interface {
	Set(percent int, smooth bool, duration time.Duration) bool
}

const helperTimeout = 10 * time.Second

// Deps wires the default handler set.
type Deps struct {
	Processes     Processes
	Volume        Volume
	ScriptTimeout time.Duration
	URIOpener     []string
	Display       []string
	Logger        *slog.Logger
}

// DefaultHandlers returns one handler per kind backed by deps.
func DefaultHandlers(deps Deps) []Handler {
	logger := logging.OrDiscard(deps.Logger)
	return []Handler{
		&LaunchHandler{Processes: deps.Processes, Logger: logger},
		&KillHandler{Processes: deps.Processes, Logger: logger},
		&VolumeHandler{Volume: deps.Volume},
		&ScriptHandler{Timeout: deps.ScriptTimeout, Logger: logger},
		&ExecuteHandler{Timeout: deps.ScriptTimeout, Logger: logger},
		&URIHandler{Opener: deps.URIOpener, Processes: deps.Processes, Logger: logger},
		&DisplayHandler{Template: deps.Display, Logger: logger},
	}
}

// LaunchHandler spawns a detached program.
type LaunchHandler struct {
	Processes Processes
	Logger    *slog.Logger
}

func (h *LaunchHandler) Kind() mode.Kind { return mode.KindLaunch }

func (h *LaunchHandler) Execute(_ context.Context, spec mode.ActionSpec) error {
	target, err := expand(spec.Target)
	if err != nil {
		return err
	}
	if spec.CheckRunning && h.Processes.IsRunning(filepath.Base(target)) {
		logging.OrDiscard(h.Logger).Info("launch skipped; already running", "target", target)
		return nil
	}
	dir, err := expand(spec.WorkingDir)
	if err != nil {
		return err
	}
	_, err = h.Processes.Spawn(target, spec.Args, dir)
	return err
}

// KillHandler terminates the first process matching the target name.
type KillHandler struct {
	Processes Processes
	Logger    *slog.Logger
}

func (h *KillHandler) Kind() mode.Kind { return mode.KindKill }

func (h *KillHandler) Execute(_ context.Context, spec mode.ActionSpec) error {
	matches, err := h.Processes.FindByName(spec.Target)
	if err != nil {
		return err
	}
	if len(matches) == 0 {
		return fmt.Errorf("%w: %q", ErrTargetNotFound, spec.Target)
	}
	first := matches[0]
	logging.OrDiscard(h.Logger).Info("stopping process",
		"target", spec.Target,
		"pid", first.PID,
		"name", first.Name,
		"force", spec.Force,
	)
	return h.Processes.Signal(first.PID, spec.Force)
}

// VolumeHandler forwards to the volume controller.
type VolumeHandler struct {
	Volume Volume
}

func (h *VolumeHandler) Kind() mode.Kind { return mode.KindSetVolume }

func (h *VolumeHandler) Execute(_ context.Context, spec mode.ActionSpec) error {
	if h.Volume == nil {
		return errors.New("volume controller unavailable")
	}
	if !h.Volume.Set(spec.Level, spec.Smooth, spec.Duration) {
		return &ExecutionError{Kind: mode.KindSetVolume, Err: fmt.Errorf("could not set volume to %d", spec.Level)}
	}
	return nil
}

// ScriptHandler runs a script file, directly when executable, otherwise through sh.
type ScriptHandler struct {
	Timeout time.Duration
	Logger  *slog.Logger
}

func (h *ScriptHandler) Kind() mode.Kind { return mode.KindRunScript }

func (h *ScriptHandler) Execute(ctx context.Context, spec mode.ActionSpec) error {
	path, err := expand(spec.ScriptPath)
	if err != nil {
		return err
	}
	info, err := os.Stat(path)
	if err != nil {
		return &ExecutionError{Kind: mode.KindRunScript, Err: fmt.Errorf("script %s not found: %w", path, err)}
	}
	if info.IsDir() {
		return &ExecutionError{Kind: mode.KindRunScript, Err: fmt.Errorf("script %s is a directory", path)}
	}

	command := append([]string{path}, spec.Args...)
	if info.Mode().Perm()&0o111 == 0 {
		command = append([]string{"sh"}, command...)
	}

	dir, err := expand(spec.WorkingDir)
	if err != nil {
		return err
	}
	if dir == "" {
		dir = filepath.Dir(path)
	}
	return runAction(ctx, mode.KindRunScript, command, dir, timeoutFor(spec, h.Timeout), h.Logger)
}

// ExecuteHandler runs a shell-word command line without a shell.
type ExecuteHandler struct {
	Timeout time.Duration
	Logger  *slog.Logger
}

func (h *ExecuteHandler) Kind() mode.Kind { return mode.KindExecute }

func (h *ExecuteHandler) Execute(ctx context.Context, spec mode.ActionSpec) error {
	words, err := argv.Parse(spec.Command)
	if err != nil {
		return &ExecutionError{Kind: mode.KindExecute, Err: err}
	}
	if len(words) == 0 {
		return &ExecutionError{Kind: mode.KindExecute, Err: errors.New("command is empty")}
	}
	dir, err := expand(spec.WorkingDir)
	if err != nil {
		return err
	}
	command := append(words, spec.Args...)
	return runAction(ctx, mode.KindExecute, command, dir, timeoutFor(spec, h.Timeout), h.Logger)
}

// URIHandler opens a URL with the configured opener and falls back to spawning a program with the URL.
type URIHandler struct {
	Opener    []string
	Processes Processes
	Logger    *slog.Logger
}

func (h *URIHandler) Kind() mode.Kind { return mode.KindLaunchURI }

func (h *URIHandler) Execute(ctx context.Context, spec mode.ActionSpec) error {
	opener := h.Opener
	if len(opener) == 0 {
		opener = []string{"xdg-open"}
	}
	command := append(append([]string{}, opener...), spec.URL)
	_, openErr := runCommand(ctx, command, "", helperTimeout)
	if openErr == nil {
		return nil
	}

	if spec.Fallback == "" {
		return &ExecutionError{Kind: mode.KindLaunchURI, Err: fmt.Errorf("open %s: %w", spec.URL, openErr)}
	}
	logging.OrDiscard(h.Logger).Warn("uri opener failed; spawning fallback",
		"url", spec.URL,
		"fallback", spec.Fallback,
		"error", openErr.Error(),
	)

	words, err := argv.Parse(spec.Fallback)
	if err != nil || len(words) == 0 {
		return &ExecutionError{Kind: mode.KindLaunchURI, Err: fmt.Errorf("invalid fallback %q", spec.Fallback)}
	}
	if _, err := h.Processes.Spawn(words[0], append(words[1:], spec.URL), ""); err != nil {
		return &ExecutionError{Kind: mode.KindLaunchURI, Err: fmt.Errorf("open %s: %w; fallback: %w", spec.URL, openErr, err)}
	}
	return nil
}

// DisplayHandler renders the display command template with the requested level.
type DisplayHandler struct {
	Template []string
	Logger   *slog.Logger
}

func (h *DisplayHandler) Kind() mode.Kind { return mode.KindAdjustDisplay }

func (h *DisplayHandler) Execute(ctx context.Context, spec mode.ActionSpec) error {
	if len(h.Template) == 0 {
		return &ExecutionError{Kind: mode.KindAdjustDisplay, Err: errors.New("no display command configured")}
	}
	command := argv.Render(h.Template, map[string]string{"level": strconv.Itoa(spec.DisplayLevel)})
	return runAction(ctx, mode.KindAdjustDisplay, command, "", helperTimeout, h.Logger)
}

func runAction(ctx context.Context, kind mode.Kind, command []string, dir string, timeout time.Duration, logger *slog.Logger) error {
	logger = logging.OrDiscard(logger)
	started := time.Now()
	result, err := runCommand(ctx, command, dir, timeout)
	if err != nil {
		return &ExecutionError{Kind: kind, ExitCode: result.exitCode, Output: result.output, Err: err}
	}
	logger.Debug("command finished",
		"kind", kind.String(),
		"command", argv.Join(command),
		"duration_ms", time.Since(started).Milliseconds(),
	)
	return nil
}

func timeoutFor(spec mode.ActionSpec, fallback time.Duration) time.Duration {
	if spec.Timeout > 0 {
		return spec.Timeout
	}
	return fallback
}

func expand(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", nil
	}
	return config.ExpandPath(path)
}
