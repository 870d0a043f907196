package app

import (
	"bytes"
	"context"
	"errors"
	"net"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/rbright/modus/internal/cli"
	"github.com/rbright/modus/internal/command"
	"github.com/rbright/modus/internal/engine"
	"github.com/rbright/modus/internal/history"
	"github.com/rbright/modus/internal/ipc"
	"github.com/rbright/modus/internal/version"
)

const testConfig = `{
  // keep tests off the desktop and the sound server
  "audio": {"max_retries": 1, "retry_backoff_ms": 1},
  "sounds": {"enable": false},
  "indicator": {"enable": false},
}
`

const testModes = `{
  "focus": {"actions": [{"type": "execute", "command": "true"}]},
  "broken": {"actions": [{"type": "execute", "command": "false"}]}
}`

func TestExecuteHelp(t *testing.T) {
	var stdout bytes.Buffer
	var stderr bytes.Buffer

	exitCode := Execute(context.Background(), []string{"--help"}, &stdout, &stderr)
	require.Equal(t, 0, exitCode)
	require.Contains(t, stdout.String(), "Usage:")
	require.Empty(t, stderr.String())
}

func TestExecuteVersion(t *testing.T) {
	var stdout bytes.Buffer
	var stderr bytes.Buffer

	exitCode := Execute(context.Background(), []string{"version"}, &stdout, &stderr)
	require.Equal(t, 0, exitCode)
	require.Contains(t, stdout.String(), "modus")
	require.Empty(t, stderr.String())
}

func TestExecuteUnknownCommand(t *testing.T) {
	var stdout bytes.Buffer
	var stderr bytes.Buffer

	exitCode := Execute(context.Background(), []string{"definitely-not-a-command"}, &stdout, &stderr)
	require.Equal(t, 2, exitCode)
	require.Contains(t, stderr.String(), "unknown command")
	require.Contains(t, stderr.String(), "Usage:")
}

func TestRunnerStatusIdleWhenSocketUnavailable(t *testing.T) {
	paths := setupRunnerEnv(t)

	var stdout bytes.Buffer
	var stderr bytes.Buffer
	runner := Runner{Stdout: &stdout, Stderr: &stderr}

	exitCode := runner.Execute(context.Background(), []string{"--config", paths.configPath, "status"})
	require.Equal(t, 0, exitCode)
	require.Equal(t, "idle\n", stdout.String())
	require.Empty(t, stderr.String())
}

func TestRunnerStatusWarnsOnAgentVersionMismatch(t *testing.T) {
	paths := setupRunnerEnv(t)
	original := version.Version
	version.Version = "1.0.0"
	t.Cleanup(func() { version.Version = original })

	shutdown := startIPCServerForRunnerTest(t, paths.socketPath(), func(context.Context, ipc.Request) ipc.Response {
		return ipc.Response{OK: true, State: "running", Message: "running: 1 modes", Version: "0.9.0"}
	})
	defer shutdown()

	var stdout bytes.Buffer
	var stderr bytes.Buffer
	runner := Runner{Stdout: &stdout, Stderr: &stderr}
	require.Equal(t, 0, runner.Execute(context.Background(), []string{"--config", paths.configPath, "status"}))
	require.Equal(t, "running: 1 modes\n", stdout.String())
	require.Contains(t, stderr.String(), "agent runs modus 0.9.0, this client is modus 1.0.0")
}

func TestRunnerForwardsCommandsToRunningAgent(t *testing.T) {
	paths := setupRunnerEnv(t)
	requests := make(chan ipc.Request, 8)

	shutdown := startIPCServerForRunnerTest(t, paths.socketPath(), func(_ context.Context, req ipc.Request) ipc.Response {
		requests <- req
		switch req.Command {
		case ipc.CommandStatus:
			return ipc.Response{OK: true, State: "running", Message: "running: 2 modes"}
		case ipc.CommandVolumeSet:
			return ipc.Response{OK: true, Message: "volume 30%"}
		default:
			return ipc.Response{OK: true, Message: req.Command + " handled"}
		}
	})
	defer shutdown()

	tests := []struct {
		args       []string
		wantStdout string
		check      func(ipc.Request)
	}{
		{
			args:       []string{"status"},
			wantStdout: "running: 2 modes\n",
		},
		{
			args:       []string{"activate", "deep", "work"},
			wantStdout: "activate handled\n",
			check:      func(req ipc.Request) { require.Equal(t, "deep work", req.Mode) },
		},
		{
			args:       []string{"say", "gaming", "time"},
			wantStdout: "say handled\n",
			check:      func(req ipc.Request) { require.Equal(t, "gaming time", req.Text) },
		},
		{
			args:       []string{"volume", "set", "30", "--smooth", "--duration", "400"},
			wantStdout: "volume 30%\n",
			check: func(req ipc.Request) {
				require.NotNil(t, req.Level)
				require.Equal(t, 30, *req.Level)
				require.True(t, req.Smooth)
				require.Equal(t, 400, req.DurationMS)
			},
		},
	}

	for _, tc := range tests {
		var stdout bytes.Buffer
		var stderr bytes.Buffer
		runner := Runner{Stdout: &stdout, Stderr: &stderr}

		exitCode := runner.Execute(context.Background(), append([]string{"--config", paths.configPath}, tc.args...))
		require.Equal(t, 0, exitCode, tc.args)
		require.Empty(t, stderr.String(), tc.args)
		require.Equal(t, tc.wantStdout, stdout.String(), tc.args)

		req := <-requests
		if tc.check != nil {
			tc.check(req)
		}
	}
}

func TestRunnerForwardedFailureExitsNonZero(t *testing.T) {
	paths := setupRunnerEnv(t)
	shutdown := startIPCServerForRunnerTest(t, paths.socketPath(), func(_ context.Context, req ipc.Request) ipc.Response {
		return ipc.Response{OK: false, Error: `mode "nope" not found`}
	})
	defer shutdown()

	var stdout bytes.Buffer
	var stderr bytes.Buffer
	runner := Runner{Stdout: &stdout, Stderr: &stderr}

	exitCode := runner.Execute(context.Background(), []string{"--config", paths.configPath, "activate", "nope"})
	require.Equal(t, 1, exitCode)
	require.Contains(t, stderr.String(), `mode "nope" not found`)
}

func TestRunnerModesFallsBackToLocalRegistry(t *testing.T) {
	paths := setupRunnerEnv(t)

	var stdout bytes.Buffer
	var stderr bytes.Buffer
	runner := Runner{Stdout: &stdout, Stderr: &stderr}

	exitCode := runner.Execute(context.Background(), []string{"--config", paths.configPath, "modes"})
	require.Equal(t, 0, exitCode)
	require.Equal(t, "focus\nbroken\n", stdout.String())
}

func TestRunnerActivatesInProcessWithoutAgent(t *testing.T) {
	paths := setupRunnerEnv(t)
	t.Setenv("PULSE_SERVER", "unix:/tmp/definitely-missing-pulse-server")

	var stdout bytes.Buffer
	var stderr bytes.Buffer
	runner := Runner{Stdout: &stdout, Stderr: &stderr}

	exitCode := runner.Execute(context.Background(), []string{"--config", paths.configPath, "activate", "focus"})
	require.Equal(t, 0, exitCode, stderr.String())
	require.Contains(t, stdout.String(), "mode focus completed")

	stdout.Reset()
	stderr.Reset()
	exitCode = runner.Execute(context.Background(), []string{"--config", paths.configPath, "activate", "missing"})
	require.Equal(t, 1, exitCode)
	require.Contains(t, stderr.String(), "missing")

	stdout.Reset()
	exitCode = runner.Execute(context.Background(), []string{"--config", paths.configPath, "history"})
	require.Equal(t, 0, exitCode)
	lines := strings.Split(strings.TrimSpace(stdout.String()), "\n")
	require.Len(t, lines, 2)
	require.Contains(t, lines[0], "missing")
	require.Contains(t, lines[0], "rejected")
	require.Contains(t, lines[1], "focus")
	require.Contains(t, lines[1], "completed")
	require.Contains(t, lines[1], "trigger=cli")
}

func TestRunnerHistoryEmptyAndLimited(t *testing.T) {
	paths := setupRunnerEnv(t)

	var stdout bytes.Buffer
	runner := Runner{Stdout: &stdout, Stderr: &bytes.Buffer{}}
	require.Equal(t, 0, runner.Execute(context.Background(), []string{"--config", paths.configPath, "history"}))
	require.Equal(t, "no activations recorded\n", stdout.String())

	store, err := history.Open(filepath.Join(paths.stateDir, "modus", "history.db"))
	require.NoError(t, err)
	start := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	for i, name := range []string{"focus", "gaming", "sleep"} {
		started := start.Add(time.Duration(i) * time.Minute)
		require.NoError(t, store.Record(context.Background(), engine.Execution{
			ID:         name,
			Mode:       name,
			Trigger:    "voice",
			Status:     engine.StatusPartial,
			StartedAt:  started,
			FinishedAt: started.Add(1200 * time.Millisecond),
			Total:      3,
			Completed:  2,
			Failed:     1,
			Failures:   []string{"action 1 (kill): target not found"},
		}))
	}
	require.NoError(t, store.Close())

	stdout.Reset()
	require.Equal(t, 0, runner.Execute(context.Background(), []string{"--config", paths.configPath, "history", "2"}))
	lines := strings.Split(strings.TrimSpace(stdout.String()), "\n")
	require.Len(t, lines, 2)
	require.Contains(t, lines[0], "sleep")
	require.Contains(t, lines[0], "2/3")
	require.Contains(t, lines[0], "1200ms")
	require.Contains(t, lines[0], "failures=action 1 (kill): target not found")
	require.Contains(t, lines[1], "gaming")
}

func TestRunnerRunReadsStdinUntilEOF(t *testing.T) {
	paths := setupRunnerEnv(t)
	t.Setenv("PULSE_SERVER", "unix:/tmp/definitely-missing-pulse-server")

	var stdout bytes.Buffer
	var stderr bytes.Buffer
	runner := Runner{
		Stdin:  strings.NewReader("activate focus\nbroken mode\n"),
		Stdout: &stdout,
		Stderr: &stderr,
	}

	exitCode := runner.Execute(context.Background(), []string{"--config", paths.configPath, "run", "--stdin"})
	require.Equal(t, 0, exitCode, stderr.String())
	require.Contains(t, stdout.String(), "modus agent running (2 modes")

	// the owner removes its socket on exit
	_, statErr := os.Stat(paths.socketPath())
	require.ErrorIs(t, statErr, os.ErrNotExist)

	store, err := history.Open(filepath.Join(paths.stateDir, "modus", "history.db"))
	require.NoError(t, err)
	defer store.Close()
	execs, err := store.List(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, execs, 2)
	require.Equal(t, "broken", execs[0].Mode)
	require.Equal(t, engine.StatusFailed, execs[0].Status)
	require.Equal(t, "focus", execs[1].Mode)
	require.Equal(t, engine.StatusCompleted, execs[1].Status)
	require.Equal(t, "cli", execs[1].Trigger)
}

func TestRunnerRunRefusesSecondOwner(t *testing.T) {
	paths := setupRunnerEnv(t)
	shutdown := startIPCServerForRunnerTest(t, paths.socketPath(), func(_ context.Context, req ipc.Request) ipc.Response {
		return ipc.Response{OK: true, State: "running"}
	})
	defer shutdown()

	var stderr bytes.Buffer
	runner := Runner{Stdout: &bytes.Buffer{}, Stderr: &stderr}

	exitCode := runner.Execute(context.Background(), []string{"--config", paths.configPath, "run"})
	require.Equal(t, 1, exitCode)
	require.Contains(t, stderr.String(), "already running")
}

func TestRunnerSinksCommandDispatches(t *testing.T) {
	paths := setupRunnerEnv(t)
	t.Setenv("PULSE_SERVER", "unix:/tmp/definitely-missing-pulse-server")

	var stdout bytes.Buffer
	var stderr bytes.Buffer
	runner := Runner{Stdout: &stdout, Stderr: &stderr}

	exitCode := runner.Execute(context.Background(), []string{"--config", paths.configPath, "sinks"})
	require.Equal(t, 1, exitCode)
	require.Contains(t, stderr.String(), "error:")
}

func TestTranslateVolumeOperations(t *testing.T) {
	tests := []struct {
		args       []string
		wantCmd    string
		wantIntent command.Intent
		wantStep   int
	}{
		{args: []string{"volume"}, wantCmd: ipc.CommandVolumeGet},
		{args: []string{"volume", "up", "15"}, wantCmd: ipc.CommandVolumeUp, wantIntent: command.IntentVolumeUp, wantStep: 15},
		{args: []string{"volume", "down"}, wantCmd: ipc.CommandVolumeDown, wantIntent: command.IntentVolumeDown},
		{args: []string{"volume", "mute"}, wantCmd: ipc.CommandVolumeMute, wantIntent: command.IntentMute},
		{args: []string{"volume", "unmute"}, wantCmd: ipc.CommandVolumeUnmute, wantIntent: command.IntentUnmute},
		{args: []string{"volume", "toggle"}, wantCmd: ipc.CommandVolumeToggle, wantIntent: command.IntentToggleMute},
	}
	for _, tc := range tests {
		parsed, err := cli.Parse(tc.args)
		require.NoError(t, err)

		req, cmd := translate(parsed)
		require.Equal(t, tc.wantCmd, req.Command, tc.args)
		require.Equal(t, tc.wantIntent, cmd.Intent, tc.args)
		require.Equal(t, tc.wantStep, cmd.Params.Step, tc.args)
	}

	parsed, err := cli.Parse([]string{"volume", "set", "70", "--smooth"})
	require.NoError(t, err)
	req, cmd := translate(parsed)
	require.Equal(t, 70, *req.Level)
	require.True(t, cmd.Params.HasLevel)
	require.True(t, cmd.Params.Smooth)
	require.Equal(t, activationTimeout, forwardTimeout(ipc.Request{Command: ipc.CommandActivate}))
	require.Equal(t, 6*time.Second, forwardTimeout(ipc.Request{Command: ipc.CommandVolumeSet, DurationMS: 1000}))
}

func TestTryForwardSuccessAndFailureResponses(t *testing.T) {
	socketPath := filepath.Join(t.TempDir(), "modus.sock")
	shutdown := startIPCServerForRunnerTest(t, socketPath, func(_ context.Context, req ipc.Request) ipc.Response {
		switch req.Command {
		case ipc.CommandStatus:
			return ipc.Response{OK: true, State: "running"}
		default:
			return ipc.Response{OK: false, Error: "unsupported"}
		}
	})
	defer shutdown()

	resp, handled, err := tryForward(context.Background(), socketPath, ipc.Request{Command: ipc.CommandStatus}, probeTimeout)
	require.True(t, handled)
	require.NoError(t, err)
	require.Equal(t, "running", resp.State)

	_, handled, err = tryForward(context.Background(), socketPath, ipc.Request{Command: "reboot"}, probeTimeout)
	require.True(t, handled)
	require.ErrorContains(t, err, "unsupported")
}

func TestTryForwardDoesNotRemoveSocketPathOnForwardFailure(t *testing.T) {
	socketPath := filepath.Join(t.TempDir(), "modus.sock")
	require.NoError(t, os.WriteFile(socketPath, []byte("stale"), 0o600))

	_, handled, err := tryForward(context.Background(), socketPath, ipc.Request{Command: ipc.CommandStatus}, probeTimeout)
	require.False(t, handled)
	require.NoError(t, err)

	_, statErr := os.Stat(socketPath)
	require.NoError(t, statErr)
}

func TestTryForwardTreatsReadFailuresAsHandledErrors(t *testing.T) {
	socketPath := filepath.Join(t.TempDir(), "modus.sock")

	listener, err := net.Listen("unix", socketPath)
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		defer close(done)
		conn, acceptErr := listener.Accept()
		if acceptErr == nil {
			_ = conn.Close()
		}
	}()

	_, handled, err := tryForward(context.Background(), socketPath, ipc.Request{Command: ipc.CommandStatus}, probeTimeout)
	require.True(t, handled)
	require.ErrorContains(t, err, `forward command "status":`)

	<-done
	require.NoError(t, listener.Close())
}

func TestSocketErrorHelpers(t *testing.T) {
	require.False(t, isSocketMissing(nil))
	require.False(t, isConnectionRefused(nil))

	require.True(t, isSocketMissing(os.ErrNotExist))
	require.True(t, isSocketMissing(errors.New("dial unix /tmp/modus.sock: no such file or directory")))
	require.False(t, isSocketMissing(errors.New("other error")))

	require.True(t, isConnectionRefused(syscall.ECONNREFUSED))
	require.False(t, isConnectionRefused(errors.New("other error")))
}

type runnerPaths struct {
	configPath string
	runtimeDir string
	stateDir   string
}

func (p runnerPaths) socketPath() string {
	return filepath.Join(p.runtimeDir, "modus.sock")
}

func setupRunnerEnv(t *testing.T) runnerPaths {
	t.Helper()

	stateDir := t.TempDir()
	runtimeDir := t.TempDir()
	t.Setenv("XDG_STATE_HOME", stateDir)
	t.Setenv("XDG_RUNTIME_DIR", runtimeDir)
	t.Setenv("HYPRLAND_INSTANCE_SIGNATURE", "")
	t.Setenv(ipc.SocketEnv, "")

	configDir := t.TempDir()
	configPath := filepath.Join(configDir, "config.jsonc")
	require.NoError(t, os.WriteFile(configPath, []byte(testConfig), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(configDir, "modes.json"), []byte(testModes), 0o600))

	return runnerPaths{configPath: configPath, runtimeDir: runtimeDir, stateDir: stateDir}
}

func startIPCServerForRunnerTest(t *testing.T, socketPath string, handler func(context.Context, ipc.Request) ipc.Response) func() {
	t.Helper()

	listener, err := net.Listen("unix", socketPath)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- ipc.Serve(ctx, listener, ipc.HandlerFunc(handler))
	}()

	return func() {
		cancel()
		require.NoError(t, <-done)
	}
}
