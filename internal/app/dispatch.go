package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/rbright/modus/internal/agent"
	"github.com/rbright/modus/internal/cli"
	"github.com/rbright/modus/internal/command"
	"github.com/rbright/modus/internal/config"
	"github.com/rbright/modus/internal/ipc"
)

// settleLimit caps how long a one-shot process waits for its last sound.
const settleLimit = 3 * time.Second

// commandDispatch forwards activate, volume and say to a running agent, or runs them once here.
func (r Runner) commandDispatch(ctx context.Context, parsed cli.Parsed, cfg config.Config, logger *slog.Logger) int {
	req, cmd := translate(parsed)

	if socketPath, err := ipc.RuntimeSocketPath(); err == nil {
		resp, handled, err := tryForward(ctx, socketPath, req, forwardTimeout(req))
		if handled {
			if err != nil {
				fmt.Fprintf(r.Stderr, "error: %v\n", err)
				return 1
			}
			r.printResponse(resp)
			return 0
		}
	}

	logger.Info("no running agent; executing in process", "command", req.Command)
	rt, err := build(ctx, cfg, logger, false)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	defer func() { _ = rt.Close() }()

	if req.Command == ipc.CommandVolumeGet {
		level := rt.volume.Get()
		state := rt.volume.Snapshot()
		if state.Muted {
			fmt.Fprintf(r.Stdout, "volume %d%% (muted)\n", level)
		} else {
			fmt.Fprintf(r.Stdout, "volume %d%%\n", level)
		}
		return 0
	}

	out := rt.agent.Execute(ctx, cmd)
	rt.settle(settleLimit)
	if out.Err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", out.Err)
		return 1
	}
	if out.Message != "" {
		fmt.Fprintln(r.Stdout, out.Message)
	}
	return 0
}

func (r Runner) printResponse(resp ipc.Response) {
	switch {
	case resp.Message != "":
		fmt.Fprintln(r.Stdout, resp.Message)
	case resp.Volume != nil:
		fmt.Fprintf(r.Stdout, "volume %d%%\n", *resp.Volume)
	}
}

// translate maps parsed arguments onto the socket request and the equivalent agent command.
func translate(parsed cli.Parsed) (ipc.Request, agent.Command) {
	cmd := agent.Command{Source: agent.SourceCLI}
	switch parsed.Command {
	case cli.CommandActivate:
		cmd.Intent = command.IntentActivateMode
		cmd.Params.Mode = parsed.Mode
		return ipc.Request{Command: ipc.CommandActivate, Mode: parsed.Mode}, cmd
	case cli.CommandSay:
		cmd.Text = parsed.Text
		return ipc.Request{Command: ipc.CommandSay, Text: parsed.Text}, cmd
	}

	req := ipc.Request{Smooth: parsed.Smooth, DurationMS: parsed.DurationMS}
	if parsed.HasLevel {
		level := parsed.Level
		req.Level = &level
	}
	switch parsed.VolumeOp {
	case cli.VolumeSet:
		req.Command = ipc.CommandVolumeSet
		cmd.Intent = command.IntentSetVolume
		cmd.Params = command.Params{
			Level:    parsed.Level,
			HasLevel: true,
			Smooth:   parsed.Smooth,
			Duration: time.Duration(parsed.DurationMS) * time.Millisecond,
		}
	case cli.VolumeUp:
		req.Command = ipc.CommandVolumeUp
		cmd.Intent = command.IntentVolumeUp
		cmd.Params.Step = parsed.Level
	case cli.VolumeDown:
		req.Command = ipc.CommandVolumeDown
		cmd.Intent = command.IntentVolumeDown
		cmd.Params.Step = parsed.Level
	case cli.VolumeMute:
		req.Command = ipc.CommandVolumeMute
		cmd.Intent = command.IntentMute
	case cli.VolumeUnmute:
		req.Command = ipc.CommandVolumeUnmute
		cmd.Intent = command.IntentUnmute
	case cli.VolumeToggle:
		req.Command = ipc.CommandVolumeToggle
		cmd.Intent = command.IntentToggleMute
	default:
		req.Command = ipc.CommandVolumeGet
	}
	return req, cmd
}

func forwardTimeout(req ipc.Request) time.Duration {
	switch req.Command {
	case ipc.CommandActivate, ipc.CommandSay:
		return activationTimeout
	default:
		return 5*time.Second + time.Duration(req.DurationMS)*time.Millisecond
	}
}
