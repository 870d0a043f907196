package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rbright/modus/internal/command"
	"github.com/rbright/modus/internal/config"
	"github.com/rbright/modus/internal/engine"
	"github.com/rbright/modus/internal/mode"
)

// systemLowMemory is the system command the health monitor enqueues on entering the critical state.
const systemLowMemory = "low_memory"

// Execute resolves and runs cmd synchronously. The consumer calls it for every queued command;
// one-shot CLI invocations call it directly.
func (a *Agent) Execute(ctx context.Context, cmd Command) Outcome {
	out := a.execute(ctx, cmd)
	if out.Err != nil {
		a.logger.Warn("command failed",
			"source", cmd.Source,
			"intent", out.Intent,
			"text", cmd.Text,
			"error", out.Err,
		)
		if cmd.Source == SourceVoice {
			a.play(a.opts.ErrorSound)
			if a.deps.Notifier != nil {
				a.deps.Notifier.ShowError(ctx, out.Err.Error())
			}
		}
		return out
	}
	a.logger.Info("command handled", "source", cmd.Source, "intent", out.Intent, "message", out.Message)
	return out
}

func (a *Agent) execute(ctx context.Context, cmd Command) Outcome {
	if strings.TrimSpace(cmd.Text) != "" {
		match, err := a.resolve(cmd)
		if err != nil {
			return Outcome{Err: err}
		}
		cmd.Intent = match.Intent
		cmd.Params = match.Params
	}

	out := Outcome{Intent: cmd.Intent}
	switch cmd.Intent {
	case command.IntentActivateMode:
		exec, err := a.deps.Engine.Activate(ctx, cmd.Params.Mode, string(cmd.Source))
		out.Execution = &exec
		if err != nil {
			out.Err = err
			return out
		}
		out.Message = describeExecution(exec)
	case command.IntentSetVolume:
		if !cmd.Params.HasLevel {
			out.Err = errors.New("no volume level given")
			return out
		}
		duration := cmd.Params.Duration
		if duration <= 0 {
			duration = mode.DefaultFadeDuration
		}
		out.Err = a.volumeResult(a.deps.Volume.Set(cmd.Params.Level, cmd.Params.Smooth, duration), "set volume")
		out.Message = a.volumeMessage()
	case command.IntentVolumeUp:
		out.Err = a.volumeResult(a.deps.Volume.Up(cmd.Params.Step), "raise volume")
		out.Message = a.volumeMessage()
	case command.IntentVolumeDown:
		out.Err = a.volumeResult(a.deps.Volume.Down(cmd.Params.Step), "lower volume")
		out.Message = a.volumeMessage()
	case command.IntentMute:
		ok, previous := a.deps.Volume.Mute()
		out.Err = a.volumeResult(ok, "mute")
		out.Message = fmt.Sprintf("muted (was %d%%)", previous)
	case command.IntentUnmute:
		out.Err = a.volumeResult(a.deps.Volume.Unmute(), "unmute")
		out.Message = a.volumeMessage()
	case command.IntentToggleMute:
		out.Err = a.volumeResult(a.deps.Volume.ToggleMute(), "toggle mute")
		out.Message = a.volumeMessage()
	case command.IntentLaunch:
		out.Err = a.launch(cmd.Params.Target, cmd.Params.Args)
		out.Message = "launched " + cmd.Params.Target
	case command.IntentOpenURL:
		out.Err = a.openURL(cmd.Params.URL)
		out.Message = "opened " + cmd.Params.URL
	case command.IntentSystem:
		out.Message, out.Err = a.system(ctx, cmd)
	default:
		out.Err = fmt.Errorf("unsupported intent %q", cmd.Intent)
	}
	if out.Err != nil {
		out.Message = ""
	}
	return out
}

func (a *Agent) resolve(cmd Command) (command.Match, error) {
	if a.deps.Catalog == nil {
		return command.Match{}, fmt.Errorf("%w: %q", ErrNoMatch, cmd.Text)
	}
	if cmd.Source == SourceVoice {
		if _, found := a.deps.Catalog.StripWakeWord(cmd.Text); !found {
			return command.Match{}, ErrWakeWordMissing
		}
	}
	var names []string
	if a.deps.Modes != nil {
		names = a.deps.Modes.Names()
	}
	match, ok := a.deps.Catalog.Match(cmd.Text, names)
	if !ok {
		return command.Match{}, fmt.Errorf("%w: %q", ErrNoMatch, cmd.Text)
	}
	return match, nil
}

func (a *Agent) volumeResult(ok bool, op string) error {
	if ok {
		return nil
	}
	return fmt.Errorf("could not %s", op)
}

func (a *Agent) volumeMessage() string {
	state := a.deps.Volume.Snapshot()
	if state.Muted {
		return fmt.Sprintf("volume %d%% (muted)", state.Volume)
	}
	return fmt.Sprintf("volume %d%%", state.Volume)
}

func (a *Agent) launch(target string, args []string) error {
	if a.deps.Spawner == nil {
		return errors.New("process spawning is not configured")
	}
	path, err := config.ExpandPath(target)
	if err != nil {
		return err
	}
	_, err = a.deps.Spawner.Spawn(path, args, "")
	return err
}

func (a *Agent) openURL(url string) error {
	if a.deps.Spawner == nil {
		return errors.New("process spawning is not configured")
	}
	opener := a.opts.URIOpener
	if len(opener) == 0 {
		opener = []string{"xdg-open"}
	}
	args := append(append([]string(nil), opener[1:]...), url)
	_, err := a.deps.Spawner.Spawn(opener[0], args, "")
	return err
}

func (a *Agent) system(ctx context.Context, cmd Command) (string, error) {
	switch cmd.Params.Command {
	case command.SystemShutdown:
		a.Stop()
		return "shutting down", nil
	case command.SystemStatus:
		return a.statusLine(), nil
	case systemLowMemory:
		a.play(a.opts.WarningSound)
		if a.deps.Notifier != nil {
			a.deps.Notifier.ShowWarning(ctx, cmd.Detail)
		}
		return cmd.Detail, nil
	default:
		return "", fmt.Errorf("unknown system command %q", cmd.Params.Command)
	}
}

func (a *Agent) statusLine() string {
	snapshot := a.deps.Volume.Snapshot()
	return fmt.Sprintf("%s: %d modes, volume %d%%, muted=%t, device=%s",
		a.state(), len(a.modeNames()), snapshot.Volume, snapshot.Muted, snapshot.Device)
}

func (a *Agent) play(id string) {
	if id == "" || a.deps.Sounds == nil {
		return
	}
	a.deps.Sounds.Play(id)
}

func describeExecution(exec engine.Execution) string {
	return fmt.Sprintf("mode %s %s (%d/%d actions completed, %d failed, %d skipped)",
		exec.Mode, exec.Status, exec.Completed, exec.Total, exec.Failed, exec.Skipped)
}
