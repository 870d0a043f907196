package action

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/rbright/modus/internal/mode"
)

func TestLaunchHandlerSkipsRunningTarget(t *testing.T) {
	procs := newFakeProcesses(map[string]int{"firefox": 77})
	handler := &LaunchHandler{Processes: procs}

	require.NoError(t, handler.Execute(context.Background(), mode.ActionSpec{Target: "/usr/bin/firefox", CheckRunning: true}))
	require.Empty(t, procs.spawned)

	require.NoError(t, handler.Execute(context.Background(), mode.ActionSpec{Target: "/usr/bin/firefox", Args: []string{"--new-window"}}))
	require.Equal(t, []string{"/usr/bin/firefox"}, procs.spawned)
	require.Equal(t, [][]string{{"--new-window"}}, procs.spawnArg)
}

func TestLaunchHandlerPropagatesSpawnError(t *testing.T) {
	procs := newFakeProcesses(nil)
	procs.spawnErr = errors.New("exec format error")
	err := (&LaunchHandler{Processes: procs}).Execute(context.Background(), mode.ActionSpec{Target: "broken"})
	require.ErrorContains(t, err, "exec format error")
}

func TestKillHandlerSignalsFirstMatch(t *testing.T) {
	procs := newFakeProcesses(map[string]int{"slack": 321})
	handler := &KillHandler{Processes: procs}

	require.NoError(t, handler.Execute(context.Background(), mode.ActionSpec{Target: "slack", Force: true}))
	require.Equal(t, []int{321}, procs.signaled)
	require.Equal(t, []bool{true}, procs.forced)

	err := handler.Execute(context.Background(), mode.ActionSpec{Target: "ghost"})
	require.ErrorIs(t, err, ErrTargetNotFound)
}

func TestVolumeHandler(t *testing.T) {
	vol := &fakeVolume{ok: true}
	handler := &VolumeHandler{Volume: vol}
	require.NoError(t, handler.Execute(context.Background(), mode.ActionSpec{Level: 35}))
	require.Equal(t, []int{35}, vol.calls)

	vol.ok = false
	err := handler.Execute(context.Background(), mode.ActionSpec{Level: 80})
	var execErr *ExecutionError
	require.True(t, errors.As(err, &execErr))
	require.Contains(t, err.Error(), "could not set volume to 80")

	require.Error(t, (&VolumeHandler{}).Execute(context.Background(), mode.ActionSpec{Level: 10}))
}

func TestScriptHandlerReportsExitCodeAndOutput(t *testing.T) {
	dir := t.TempDir()
	script := writeScript(t, dir, "fail.sh", "#!/bin/sh\necho \"bad input $1\" >&2\nexit 3\n", 0o755)

	err := (&ScriptHandler{}).Execute(context.Background(), mode.ActionSpec{ScriptPath: script, Args: []string{"x"}})
	var execErr *ExecutionError
	require.True(t, errors.As(err, &execErr))
	require.Equal(t, 3, execErr.ExitCode)
	require.Equal(t, "bad input x", execErr.Output)
}

func TestScriptHandlerRunsNonExecutableThroughShInScriptDir(t *testing.T) {
	dir := t.TempDir()
	script := writeScript(t, dir, "plain.sh", "pwd > out.txt\n", 0o644)

	require.NoError(t, (&ScriptHandler{}).Execute(context.Background(), mode.ActionSpec{ScriptPath: script}))
	data, err := os.ReadFile(filepath.Join(dir, "out.txt"))
	require.NoError(t, err)
	resolved, err := filepath.EvalSymlinks(dir)
	require.NoError(t, err)
	require.Contains(t, []string{dir, resolved}, strings.TrimSpace(string(data)))
}

func TestScriptHandlerMissingPath(t *testing.T) {
	err := (&ScriptHandler{}).Execute(context.Background(), mode.ActionSpec{ScriptPath: filepath.Join(t.TempDir(), "missing.sh")})
	var execErr *ExecutionError
	require.True(t, errors.As(err, &execErr))
	require.Contains(t, err.Error(), "not found")

	err = (&ScriptHandler{}).Execute(context.Background(), mode.ActionSpec{ScriptPath: t.TempDir()})
	require.ErrorContains(t, err, "is a directory")
}

func TestScriptHandlerTimeout(t *testing.T) {
	dir := t.TempDir()
	script := writeScript(t, dir, "hang.sh", "#!/bin/sh\nexec sleep 30\n", 0o755)

	started := time.Now()
	err := (&ScriptHandler{Timeout: time.Minute}).Execute(context.Background(), mode.ActionSpec{
		ScriptPath: script,
		Timeout:    150 * time.Millisecond,
	})
	require.ErrorContains(t, err, "timed out")
	require.Less(t, time.Since(started), 10*time.Second)
}

func TestExecuteHandlerRunsCommandInWorkingDir(t *testing.T) {
	dir := t.TempDir()
	err := (&ExecuteHandler{}).Execute(context.Background(), mode.ActionSpec{
		Command:    `sh -c 'echo "$0" > marker.txt'`,
		Args:       []string{"from-args"},
		WorkingDir: dir,
	})
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(dir, "marker.txt"))
	require.NoError(t, err)
	require.Equal(t, "from-args\n", string(data))
}

func TestExecuteHandlerFailures(t *testing.T) {
	err := (&ExecuteHandler{}).Execute(context.Background(), mode.ActionSpec{Command: "false"})
	var execErr *ExecutionError
	require.True(t, errors.As(err, &execErr))
	require.Equal(t, 1, execErr.ExitCode)

	err = (&ExecuteHandler{}).Execute(context.Background(), mode.ActionSpec{Command: `echo "unterminated`})
	require.ErrorContains(t, err, "unterminated quote")

	err = (&ExecuteHandler{}).Execute(context.Background(), mode.ActionSpec{Command: "/definitely/missing/binary"})
	require.Error(t, err)
}

func TestURIHandlerOpensWithConfiguredOpener(t *testing.T) {
	dir := t.TempDir()
	opener := writeScript(t, dir, "opener.sh", "#!/bin/sh\necho \"$1\" > \""+filepath.Join(dir, "url.txt")+"\"\n", 0o755)

	procs := newFakeProcesses(nil)
	handler := &URIHandler{Opener: []string{opener}, Processes: procs}
	require.NoError(t, handler.Execute(context.Background(), mode.ActionSpec{URL: "https://example.com", Fallback: "firefox"}))

	data, err := os.ReadFile(filepath.Join(dir, "url.txt"))
	require.NoError(t, err)
	require.Equal(t, "https://example.com\n", string(data))
	require.Empty(t, procs.spawned)
}

func TestURIHandlerFallsBackWhenOpenerFails(t *testing.T) {
	procs := newFakeProcesses(nil)
	handler := &URIHandler{Opener: []string{"false"}, Processes: procs}

	require.NoError(t, handler.Execute(context.Background(), mode.ActionSpec{URL: "https://example.com", Fallback: "firefox --private-window"}))
	require.Equal(t, []string{"firefox"}, procs.spawned)
	require.Equal(t, [][]string{{"--private-window", "https://example.com"}}, procs.spawnArg)

	err := handler.Execute(context.Background(), mode.ActionSpec{URL: "https://example.com"})
	var execErr *ExecutionError
	require.True(t, errors.As(err, &execErr))
	require.Contains(t, err.Error(), "open https://example.com")
}

func TestDisplayHandlerRendersLevel(t *testing.T) {
	dir := t.TempDir()
	capture := writeScript(t, dir, "bright.sh", "#!/bin/sh\necho \"$@\" > \""+filepath.Join(dir, "args.txt")+"\"\n", 0o755)

	handler := &DisplayHandler{Template: []string{capture, "set", "{level}%"}}
	require.NoError(t, handler.Execute(context.Background(), mode.ActionSpec{DisplayLevel: 40}))

	data, err := os.ReadFile(filepath.Join(dir, "args.txt"))
	require.NoError(t, err)
	require.Equal(t, "set 40%\n", string(data))

	err = (&DisplayHandler{}).Execute(context.Background(), mode.ActionSpec{DisplayLevel: 40})
	require.ErrorContains(t, err, "no display command")
}

func TestDefaultHandlersCoverEveryKind(t *testing.T) {
	handlers := DefaultHandlers(Deps{})
	kinds := make([]mode.Kind, 0, len(handlers))
	for _, handler := range handlers {
		kinds = append(kinds, handler.Kind())
	}
	require.ElementsMatch(t, mode.Kinds(), kinds)
}

func TestTailKeepsEndOfLongOutput(t *testing.T) {
	long := strings.Repeat("a", maxOutputBytes) + "END"
	got := tail(long)
	require.True(t, strings.HasPrefix(got, "..."))
	require.True(t, strings.HasSuffix(got, "END"))
	require.Equal(t, "short", tail("  short \n"))
}

func writeScript(t *testing.T, dir string, name string, body string, perm os.FileMode) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(body), perm))
	require.NoError(t, os.Chmod(path, perm))
	return path
}
