package agent

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rbright/modus/internal/command"
	"github.com/rbright/modus/internal/ipc"
	"github.com/rbright/modus/internal/version"
)

// Handle answers one socket request. Reads are served directly; anything that changes state goes
// through the command queue so it is ordered with voice and text commands.
func (a *Agent) Handle(ctx context.Context, req ipc.Request) ipc.Response {
	switch strings.TrimSpace(req.Command) {
	case ipc.CommandStatus:
		return ipc.Response{OK: true, State: a.state(), Message: a.statusLine(), Version: version.Version}
	case ipc.CommandModes:
		return ipc.Response{OK: true, State: a.state(), Modes: a.modeNames()}
	case ipc.CommandVolumeGet:
		level := a.deps.Volume.Get()
		return a.volumeResponse("", level)
	case ipc.CommandActivate:
		if strings.TrimSpace(req.Mode) == "" {
			return errorResponse(errors.New("activate requires a mode"))
		}
		return a.submit(ctx, Command{
			Source: SourceIPC,
			Intent: command.IntentActivateMode,
			Params: command.Params{Mode: strings.TrimSpace(req.Mode)},
		})
	case ipc.CommandSay:
		if strings.TrimSpace(req.Text) == "" {
			return errorResponse(errors.New("say requires text"))
		}
		return a.submit(ctx, Command{Source: SourceIPC, Text: req.Text})
	case ipc.CommandVolumeSet:
		if req.Level == nil {
			return errorResponse(errors.New("volume.set requires a level"))
		}
		return a.submit(ctx, Command{
			Source: SourceIPC,
			Intent: command.IntentSetVolume,
			Params: command.Params{
				Level:    *req.Level,
				HasLevel: true,
				Smooth:   req.Smooth,
				Duration: time.Duration(req.DurationMS) * time.Millisecond,
			},
		})
	case ipc.CommandVolumeUp:
		return a.submit(ctx, Command{Source: SourceIPC, Intent: command.IntentVolumeUp, Params: stepParams(req)})
	case ipc.CommandVolumeDown:
		return a.submit(ctx, Command{Source: SourceIPC, Intent: command.IntentVolumeDown, Params: stepParams(req)})
	case ipc.CommandVolumeMute:
		return a.submit(ctx, Command{Source: SourceIPC, Intent: command.IntentMute})
	case ipc.CommandVolumeUnmute:
		return a.submit(ctx, Command{Source: SourceIPC, Intent: command.IntentUnmute})
	case ipc.CommandVolumeToggle:
		return a.submit(ctx, Command{Source: SourceIPC, Intent: command.IntentToggleMute})
	case ipc.CommandShutdown:
		a.Stop()
		return ipc.Response{OK: true, State: "stopping", Message: "shutting down"}
	default:
		return ipc.Response{OK: false, Error: "unknown command: " + req.Command}
	}
}

func (a *Agent) submit(ctx context.Context, cmd Command) ipc.Response {
	out := a.SubmitAndWait(ctx, cmd)
	if out.Err != nil {
		resp := errorResponse(out.Err)
		resp.State = a.state()
		return resp
	}
	switch out.Intent {
	case command.IntentSetVolume, command.IntentVolumeUp, command.IntentVolumeDown,
		command.IntentMute, command.IntentUnmute, command.IntentToggleMute:
		return a.volumeResponse(out.Message, a.deps.Volume.Snapshot().Volume)
	}
	return ipc.Response{OK: true, State: a.state(), Message: out.Message}
}

func (a *Agent) volumeResponse(message string, level int) ipc.Response {
	muted := a.deps.Volume.Snapshot().Muted
	if message == "" {
		message = a.volumeMessage()
	}
	return ipc.Response{OK: true, State: a.state(), Message: message, Volume: &level, Muted: &muted}
}

func (a *Agent) state() string {
	if a.Running() {
		return "running"
	}
	return "idle"
}

func (a *Agent) modeNames() []string {
	if a.deps.Modes == nil {
		return nil
	}
	return a.deps.Modes.Names()
}

// stepParams reuses Level as the step size for volume.up and volume.down.
func stepParams(req ipc.Request) command.Params {
	if req.Level != nil && *req.Level > 0 {
		return command.Params{Step: *req.Level}
	}
	return command.Params{}
}

func errorResponse(err error) ipc.Response {
	return ipc.Response{OK: false, Error: err.Error()}
}
