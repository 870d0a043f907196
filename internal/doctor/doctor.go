// Package doctor runs readiness diagnostics for config, definitions, desktop tools, audio, and the running agent.
package doctor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/rbright/modus/internal/audio"
	"github.com/rbright/modus/internal/command"
	"github.com/rbright/modus/internal/config"
	"github.com/rbright/modus/internal/health"
	"github.com/rbright/modus/internal/hypr"
	"github.com/rbright/modus/internal/ipc"
	"github.com/rbright/modus/internal/mode"
	"github.com/rbright/modus/internal/sound"
)

const probeTimeout = time.Second

// Check is one doctor assertion result.
type Check struct {
	Name    string
	Pass    bool
	Message string
}

// Report is the full doctor output contract.
type Report struct {
	Checks []Check
}

// OK returns true when all checks pass.
func (r Report) OK() bool {
	for _, check := range r.Checks {
		if !check.Pass {
			return false
		}
	}
	return true
}

// String renders the report as user-facing text output.
func (r Report) String() string {
	var b strings.Builder
	for _, check := range r.Checks {
		status := "OK"
		if !check.Pass {
			status = "FAIL"
		}
		b.WriteString(fmt.Sprintf("[%s] %s: %s\n", status, check.Name, check.Message))
	}
	return strings.TrimSuffix(b.String(), "\n")
}

// Run executes environment/config/runtime checks for a loaded config.
func Run(ctx context.Context, loaded config.Loaded) Report {
	cfg := loaded.Config
	checks := []Check{checkConfig(loaded)}

	checks = append(checks, checkModes(cfg.Modes))
	checks = append(checks, checkCommands(cfg.Commands))

	if cfg.Indicator.Enable {
		if strings.EqualFold(cfg.Indicator.Backend, "desktop") {
			checks = append(checks, checkBinary("busctl", "desktop notifications"))
		} else {
			checks = append(checks, checkEnv("HYPRLAND_INSTANCE_SIGNATURE", func(v string) bool {
				return strings.TrimSpace(v) != ""
			}, "Hyprland session detected", "HYPRLAND_INSTANCE_SIGNATURE is empty"))
			checks = append(checks, checkHyprland(ctx))
		}
	}

	if cfg.Sounds.Enable {
		checks = append(checks, checkCommand(cfg.Sounds.Player.Argv, "sounds.player_cmd"))
		checks = append(checks, checkSounds(cfg.Sounds.Dir))
	}
	checks = append(checks, checkCommand(cfg.Actions.URIOpener.Argv, "actions.uri_cmd"))

	checks = append(checks, checkAudioSink(ctx, cfg.Audio.Sink))
	checks = append(checks, checkAgent(ctx, cfg.Health.GRPCAddr)...)

	return Report{Checks: checks}
}

func checkConfig(loaded config.Loaded) Check {
	if !loaded.Exists {
		return Check{Name: "config", Pass: true, Message: fmt.Sprintf("%q not found; using defaults", loaded.Path)}
	}
	return Check{Name: "config", Pass: true, Message: fmt.Sprintf("loaded %q", loaded.Path)}
}

// checkModes loads the definition file the way the agent does and reports what survived.
func checkModes(cfg config.ModesConfig) Check {
	registry, warnings := mode.Load(cfg.Path, mode.Options{Strict: cfg.Strict})
	if registry.Len() == 0 {
		message := fmt.Sprintf("no usable modes in %s", cfg.Path)
		if len(warnings) > 0 {
			message += ": " + warnings[0].String()
		}
		return Check{Name: "modes", Pass: false, Message: message}
	}
	message := fmt.Sprintf("%d modes loaded from %s", registry.Len(), cfg.Path)
	if len(warnings) > 0 {
		message += fmt.Sprintf(" (%d dropped or skipped; first: %s)", len(warnings), warnings[0].String())
	}
	return Check{Name: "modes", Pass: true, Message: message}
}

// checkCommands treats a missing catalog as fine: the built-in mode phrases still work.
func checkCommands(cfg config.CommandsConfig) Check {
	if _, err := os.Stat(cfg.Path); errors.Is(err, os.ErrNotExist) {
		return Check{Name: "commands", Pass: true, Message: fmt.Sprintf("%s not found; built-in mode phrases only", cfg.Path)}
	}
	catalog, warnings := command.Load(cfg.Path, cfg.WakeWord, nil)
	if catalog.Len() == 0 && len(warnings) > 0 {
		return Check{Name: "commands", Pass: false, Message: warnings[0]}
	}
	message := fmt.Sprintf("%d phrases loaded, wake word %q", catalog.Len(), catalog.WakeWord())
	if len(warnings) > 0 {
		message += fmt.Sprintf(" (%d warnings; first: %s)", len(warnings), warnings[0])
	}
	return Check{Name: "commands", Pass: true, Message: message}
}

func checkSounds(dir string) Check {
	catalog, err := sound.LoadCatalog(dir)
	if err != nil {
		return Check{Name: "sounds.dir", Pass: true, Message: fmt.Sprintf("%s unavailable; built-in cues only", dir)}
	}
	return Check{Name: "sounds.dir", Pass: true, Message: fmt.Sprintf("%d sounds in %s", len(catalog), dir)}
}

// checkEnv validates an environment variable through a caller-supplied predicate.
func checkEnv(name string, predicate func(string) bool, okMsg, failMsg string) Check {
	value := os.Getenv(name)
	if predicate(value) {
		return Check{Name: name, Pass: true, Message: okMsg}
	}
	return Check{Name: name, Pass: false, Message: failMsg}
}

// checkCommand validates that argv contains a runnable command.
func checkCommand(argv []string, name string) Check {
	if len(argv) == 0 {
		return Check{Name: name, Pass: false, Message: "command is empty"}
	}
	return checkBinary(argv[0], fmt.Sprintf("%s command is available", name))
}

// checkBinary validates that a binary exists in PATH.
func checkBinary(bin string, okMsg string) Check {
	path, err := exec.LookPath(bin)
	if err != nil {
		return Check{Name: bin, Pass: false, Message: fmt.Sprintf("binary not found in PATH: %s", bin)}
	}
	return Check{Name: bin, Pass: true, Message: fmt.Sprintf("found at %s (%s)", path, okMsg)}
}

// checkHyprland asks the compositor for its monitors, which fails fast when hyprctl cannot reach it.
func checkHyprland(ctx context.Context) Check {
	if _, err := exec.LookPath("hyprctl"); err != nil {
		return Check{Name: "hyprctl", Pass: false, Message: "binary not found in PATH: hyprctl"}
	}
	queryCtx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()
	monitor, err := hypr.FocusedMonitor(queryCtx)
	if err != nil {
		return Check{Name: "hyprctl", Pass: false, Message: err.Error()}
	}
	return Check{Name: "hyprctl", Pass: true, Message: fmt.Sprintf("compositor reachable, focused monitor %s", monitor)}
}

// checkAudioSink binds the configured sink once, exactly as the volume controller would.
func checkAudioSink(ctx context.Context, sink string) Check {
	endpoint, err := audio.Connector{Sink: sink}.Connect(ctx)
	if err != nil {
		return Check{Name: "audio.sink", Pass: false, Message: err.Error()}
	}
	defer endpoint.Close()

	level, err := endpoint.Volume()
	if err != nil {
		return Check{Name: "audio.sink", Pass: false, Message: err.Error()}
	}
	id := sink
	if named, ok := endpoint.(interface{ SinkID() string }); ok {
		id = named.SinkID()
	}
	return Check{Name: "audio.sink", Pass: true, Message: fmt.Sprintf("bound %q at %d%%", id, level)}
}

// checkAgent reports whether an agent owns the socket and, when it does, that its health service answers.
func checkAgent(ctx context.Context, healthAddr string) []Check {
	socketPath, err := ipc.RuntimeSocketPath()
	if err != nil {
		return []Check{{Name: "agent", Pass: true, Message: "runtime dir unavailable; agent not checked"}}
	}
	alive, err := ipc.Probe(ctx, socketPath, probeTimeout)
	if err != nil {
		return []Check{{Name: "agent", Pass: false, Message: err.Error()}}
	}
	if !alive {
		return []Check{{Name: "agent", Pass: true, Message: "not running"}}
	}

	checks := []Check{{Name: "agent", Pass: true, Message: "running at " + socketPath}}
	if healthAddr != "" {
		checks = append(checks, checkHealth(ctx, healthAddr))
	}
	return checks
}

func checkHealth(ctx context.Context, addr string) Check {
	status, err := health.Probe(ctx, addr, "", probeTimeout)
	if err != nil {
		return Check{Name: "health", Pass: false, Message: err.Error()}
	}
	if status != "SERVING" {
		return Check{Name: "health", Pass: false, Message: fmt.Sprintf("%s reports %s", addr, status)}
	}
	volumeStatus, err := health.Probe(ctx, addr, health.VolumeService, probeTimeout)
	if err != nil {
		volumeStatus = "unknown"
	}
	return Check{Name: "health", Pass: true, Message: fmt.Sprintf("%s SERVING (volume %s)", addr, volumeStatus)}
}
