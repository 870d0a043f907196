// Package app routes parsed CLI commands to a running agent or to an in-process runtime.
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/rbright/modus/internal/audio"
	"github.com/rbright/modus/internal/cli"
	"github.com/rbright/modus/internal/config"
	"github.com/rbright/modus/internal/doctor"
	"github.com/rbright/modus/internal/history"
	"github.com/rbright/modus/internal/ipc"
	"github.com/rbright/modus/internal/logging"
	"github.com/rbright/modus/internal/mode"
	"github.com/rbright/modus/internal/version"
)

const binaryName = "modus"

type Runner struct {
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
	Logger *slog.Logger
}

func Execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	r := Runner{Stdin: os.Stdin, Stdout: stdout, Stderr: stderr}
	return r.Execute(ctx, args)
}

func (r Runner) Execute(ctx context.Context, args []string) int {
	parsed, err := cli.Parse(args)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n\n", err)
		fmt.Fprint(r.Stderr, cli.HelpText(binaryName))
		return 2
	}

	if parsed.ShowHelp {
		fmt.Fprint(r.Stdout, cli.HelpText(binaryName))
		return 0
	}

	if parsed.Command == cli.CommandVersion {
		fmt.Fprintln(r.Stdout, version.String())
		return 0
	}

	logRuntime, err := logging.New()
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: setup logging: %v\n", err)
		return 1
	}
	defer func() { _ = logRuntime.Close() }()

	logger := r.Logger
	if logger == nil {
		logger = logRuntime.Logger
	}

	cfgLoaded, err := config.Load(parsed.ConfigPath)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		logger.Error("load config failed", "error", err.Error())
		return 1
	}
	for _, w := range cfgLoaded.Warnings {
		msg := w.Message
		if w.Line > 0 {
			msg = fmt.Sprintf("line %d: %s", w.Line, w.Message)
		}
		fmt.Fprintf(r.Stderr, "warning: %s\n", msg)
		logger.Warn("config warning", "line", w.Line, "message", w.Message)
	}
	if level, err := logging.ParseLevel(cfgLoaded.Config.Log.Level); err == nil {
		logRuntime.Level.Set(level)
	}

	logger.Info("command start",
		"command", parsed.Command,
		"config", cfgLoaded.Path,
		"log", logRuntime.Path,
	)

	switch parsed.Command {
	case cli.CommandDoctor:
		report := doctor.Run(ctx, cfgLoaded)
		fmt.Fprintln(r.Stdout, report.String())
		if report.OK() {
			return 0
		}
		return 1
	case cli.CommandSinks:
		return r.commandSinks(ctx)
	case cli.CommandStatus:
		return r.commandStatus(ctx)
	case cli.CommandModes:
		return r.commandModes(ctx, cfgLoaded.Config, logger)
	case cli.CommandHistory:
		return r.commandHistory(ctx, cfgLoaded.Config, parsed.Limit)
	case cli.CommandRun:
		return r.commandRun(ctx, cfgLoaded.Config, parsed.Stdin, logger)
	case cli.CommandActivate, cli.CommandVolume, cli.CommandSay:
		return r.commandDispatch(ctx, parsed, cfgLoaded.Config, logger)
	default:
		fmt.Fprintf(r.Stderr, "error: unsupported command %q\n", parsed.Command)
		return 2
	}
}

func (r Runner) commandSinks(ctx context.Context) int {
	sinks, err := audio.ListSinks(ctx)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	if len(sinks) == 0 {
		fmt.Fprintln(r.Stdout, "no audio sinks found")
		return 1
	}

	for _, sink := range sinks {
		defaultMark := " "
		if sink.Default {
			defaultMark = "*"
		}
		availability := "yes"
		if !sink.Available {
			availability = "no"
		}
		muted := "no"
		if sink.Muted {
			muted = "yes"
		}
		fmt.Fprintf(
			r.Stdout,
			"%s id=%s | description=%q | state=%s | available=%s | volume=%d%% | muted=%s\n",
			defaultMark,
			sink.ID,
			sink.Description,
			sink.State,
			availability,
			sink.Volume,
			muted,
		)
	}

	return 0
}

func (r Runner) commandStatus(ctx context.Context) int {
	socketPath, err := ipc.RuntimeSocketPath()
	if err != nil {
		fmt.Fprintln(r.Stdout, "idle")
		return 0
	}

	resp, handled, err := tryForward(ctx, socketPath, ipc.Request{Command: ipc.CommandStatus}, probeTimeout)
	if handled {
		if err != nil {
			fmt.Fprintf(r.Stderr, "error: %v\n", err)
			return 1
		}
		if !version.Matches(resp.Version) {
			fmt.Fprintf(r.Stderr, "warning: agent runs %s %s, this client is %s\n", version.Name, resp.Version, version.Short())
		}
		switch {
		case resp.Message != "":
			fmt.Fprintln(r.Stdout, resp.Message)
		case resp.State != "":
			fmt.Fprintln(r.Stdout, resp.State)
		default:
			fmt.Fprintln(r.Stdout, "idle")
		}
		return 0
	}

	fmt.Fprintln(r.Stdout, "idle")
	return 0
}

func (r Runner) commandModes(ctx context.Context, cfg config.Config, logger *slog.Logger) int {
	if socketPath, err := ipc.RuntimeSocketPath(); err == nil {
		resp, handled, err := tryForward(ctx, socketPath, ipc.Request{Command: ipc.CommandModes}, probeTimeout)
		if handled {
			if err != nil {
				fmt.Fprintf(r.Stderr, "error: %v\n", err)
				return 1
			}
			r.printModes(resp.Modes)
			return 0
		}
	}

	registry, warnings := mode.Load(cfg.Modes.Path, mode.Options{Strict: cfg.Modes.Strict, Logger: logger})
	for _, w := range warnings {
		fmt.Fprintf(r.Stderr, "warning: %s\n", w.String())
	}
	r.printModes(registry.Names())
	return 0
}

func (r Runner) printModes(names []string) {
	if len(names) == 0 {
		fmt.Fprintln(r.Stdout, "no modes configured")
		return
	}
	for _, name := range names {
		fmt.Fprintln(r.Stdout, name)
	}
}

func (r Runner) commandHistory(ctx context.Context, cfg config.Config, limit int) int {
	if !cfg.History.Enable {
		fmt.Fprintln(r.Stderr, "error: history is disabled (history.enable=false)")
		return 1
	}
	store, err := history.Open(cfg.History.Path)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	defer func() { _ = store.Close() }()

	execs, err := store.List(ctx, limit)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	if len(execs) == 0 {
		fmt.Fprintln(r.Stdout, "no activations recorded")
		return 0
	}
	for _, exec := range execs {
		line := fmt.Sprintf("%s  %-10s %-9s %d/%d  trigger=%s  %dms",
			exec.StartedAt.Local().Format(time.DateTime),
			exec.Mode,
			exec.Status,
			exec.Completed,
			exec.Total,
			exec.Trigger,
			exec.Duration().Milliseconds(),
		)
		if exec.Reason != "" {
			line += "  reason=" + exec.Reason
		}
		if len(exec.Failures) > 0 {
			line += "  failures=" + strings.Join(exec.Failures, "; ")
		}
		fmt.Fprintln(r.Stdout, line)
	}
	return 0
}
