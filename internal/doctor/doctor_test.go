package doctor

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rbright/modus/internal/config"
	"github.com/rbright/modus/internal/fsm"
	"github.com/rbright/modus/internal/health"
	"github.com/rbright/modus/internal/volume"
)

func TestReportOKAndString(t *testing.T) {
	report := Report{Checks: []Check{
		{Name: "one", Pass: true, Message: "good"},
		{Name: "two", Pass: false, Message: "bad"},
	}}

	require.False(t, report.OK())
	text := report.String()
	require.Contains(t, text, "[OK] one: good")
	require.Contains(t, text, "[FAIL] two: bad")
}

func TestReportOKAllPassing(t *testing.T) {
	report := Report{Checks: []Check{{Name: "one", Pass: true}, {Name: "two", Pass: true}}}
	require.True(t, report.OK())
}

func TestCheckEnv(t *testing.T) {
	t.Setenv("TEST_DOCTOR_ENV", "abc123")

	check := checkEnv(
		"TEST_DOCTOR_ENV",
		func(v string) bool { return strings.TrimSpace(v) != "" },
		"looks good",
		"unexpected",
	)

	require.True(t, check.Pass)
	require.Equal(t, "looks good", check.Message)
}

func TestCheckCommandEmpty(t *testing.T) {
	check := checkCommand(nil, "actions.uri_cmd")
	require.False(t, check.Pass)
	require.Contains(t, check.Message, "command is empty")
}

func TestCheckBinaryMissing(t *testing.T) {
	check := checkBinary("definitely-not-a-real-binary", "unused")
	require.False(t, check.Pass)
	require.Contains(t, check.Message, "binary not found")
}

func TestCheckCommandUsesBinaryFromPath(t *testing.T) {
	dir := t.TempDir()
	scriptPath := filepath.Join(dir, "fake-opener")
	require.NoError(t, os.WriteFile(scriptPath, []byte("#!/usr/bin/env bash\nexit 0\n"), 0o755))
	t.Setenv("PATH", dir+":"+os.Getenv("PATH"))

	check := checkCommand([]string{"fake-opener", "--new-window"}, "actions.uri_cmd")
	require.True(t, check.Pass)
	require.Contains(t, check.Message, "actions.uri_cmd command is available")
}

func TestCheckModes(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "modes.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
  "focus": {"actions": [{"type": "execute", "command": "true"}]},
  "bad": {"actions": [{"type": "teleport"}]}
}`), 0o600))

	check := checkModes(config.ModesConfig{Path: path})
	require.True(t, check.Pass)
	require.Contains(t, check.Message, "1 modes loaded")
	require.Contains(t, check.Message, "dropped or skipped")

	check = checkModes(config.ModesConfig{Path: filepath.Join(dir, "missing.json")})
	require.False(t, check.Pass)
	require.Contains(t, check.Message, "no usable modes")
}

func TestCheckCommands(t *testing.T) {
	dir := t.TempDir()

	check := checkCommands(config.CommandsConfig{Path: filepath.Join(dir, "commands.json"), WakeWord: "modus"})
	require.True(t, check.Pass)
	require.Contains(t, check.Message, "built-in mode phrases only")

	path := filepath.Join(dir, "commands.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`voice_commands:
  sound:
    louder:
      action: volume_up
`), 0o600))
	check = checkCommands(config.CommandsConfig{Path: path, WakeWord: "modus"})
	require.True(t, check.Pass)
	require.Contains(t, check.Message, `1 phrases loaded, wake word "modus"`)
}

func TestCheckAudioSinkFailureWithInvalidPulseServer(t *testing.T) {
	t.Setenv("PULSE_SERVER", "unix:/tmp/definitely-missing-pulse-server")

	check := checkAudioSink(context.Background(), "default")
	require.False(t, check.Pass)
	require.Equal(t, "audio.sink", check.Name)
}

func TestCheckAgentNotRunning(t *testing.T) {
	t.Setenv("XDG_RUNTIME_DIR", t.TempDir())

	checks := checkAgent(context.Background(), "127.0.0.1:1")
	require.Len(t, checks, 1)
	require.True(t, checks[0].Pass)
	require.Equal(t, "not running", checks[0].Message)
}

func TestCheckHealth(t *testing.T) {
	server, err := health.New("127.0.0.1:0", nil)
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- server.Serve(ctx) }()
	t.Cleanup(func() {
		cancel()
		require.NoError(t, <-done)
	})
	server.VolumeChanged(volume.State{Device: fsm.StateConnected})

	check := checkHealth(context.Background(), server.Addr())
	require.True(t, check.Pass, check.Message)
	require.Contains(t, check.Message, "SERVING (volume SERVING)")
}

func TestRunUsesDesktopBackendTools(t *testing.T) {
	binDir := t.TempDir()
	for _, name := range []string{"busctl", "pw-play", "xdg-open"} {
		require.NoError(t, os.WriteFile(filepath.Join(binDir, name), []byte("#!/usr/bin/env sh\nexit 0\n"), 0o755))
	}
	t.Setenv("PATH", binDir)
	t.Setenv("PULSE_SERVER", "unix:/tmp/definitely-missing-pulse-server")
	t.Setenv("XDG_RUNTIME_DIR", t.TempDir())

	cfg := config.Default()
	cfg.Indicator.Backend = "desktop"
	cfg.Modes.Path = filepath.Join(t.TempDir(), "modes.json")
	cfg.Commands.Path = filepath.Join(t.TempDir(), "commands.json")
	cfg.Sounds.Dir = t.TempDir()

	report := Run(context.Background(), config.Loaded{Path: "/tmp/config.jsonc", Config: cfg})
	require.False(t, report.OK())

	byName := map[string]Check{}
	for _, check := range report.Checks {
		byName[check.Name] = check
	}
	require.True(t, byName["busctl"].Pass)
	require.True(t, byName["pw-play"].Pass)
	require.True(t, byName["xdg-open"].Pass)
	require.False(t, byName["modes"].Pass)
	require.False(t, byName["audio.sink"].Pass)
	require.Contains(t, byName["config"].Message, "using defaults")
	_, sawHypr := byName["hyprctl"]
	require.False(t, sawHypr)
}

func TestRunUsesHyprctlForHyprBackend(t *testing.T) {
	binDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(binDir, "hyprctl"), []byte("#!/usr/bin/env sh\necho '[{\"name\":\"DP-1\",\"focused\":true}]'\n"), 0o755))
	t.Setenv("PATH", binDir+":"+os.Getenv("PATH"))
	t.Setenv("PULSE_SERVER", "unix:/tmp/definitely-missing-pulse-server")
	t.Setenv("HYPRLAND_INSTANCE_SIGNATURE", "abc123")
	t.Setenv("XDG_RUNTIME_DIR", t.TempDir())

	cfg := config.Default()
	cfg.Sounds.Enable = false
	cfg.Modes.Path = filepath.Join(t.TempDir(), "modes.json")
	cfg.Commands.Path = filepath.Join(t.TempDir(), "commands.json")

	report := Run(context.Background(), config.Loaded{Path: "/tmp/config.jsonc", Config: cfg, Exists: true})

	var sawHypr, sawSignature bool
	for _, check := range report.Checks {
		switch check.Name {
		case "hyprctl":
			sawHypr = check.Pass
			require.Contains(t, check.Message, "focused monitor DP-1")
		case "HYPRLAND_INSTANCE_SIGNATURE":
			sawSignature = check.Pass
		case "pw-play":
			t.Fatal("player checked with sounds disabled")
		}
	}
	require.True(t, sawHypr)
	require.True(t, sawSignature)
}
