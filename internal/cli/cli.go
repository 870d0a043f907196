package cli

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

type Command string

const (
	CommandRun      Command = "run"
	CommandActivate Command = "activate"
	CommandModes    Command = "modes"
	CommandVolume   Command = "volume"
	CommandSay      Command = "say"
	CommandStatus   Command = "status"
	CommandSinks    Command = "sinks"
	CommandHistory  Command = "history"
	CommandDoctor   Command = "doctor"
	CommandVersion  Command = "version"
	CommandHelp     Command = "help"
)

var validCommands = map[Command]struct{}{
	CommandRun:      {},
	CommandActivate: {},
	CommandModes:    {},
	CommandVolume:   {},
	CommandSay:      {},
	CommandStatus:   {},
	CommandSinks:    {},
	CommandHistory:  {},
	CommandDoctor:   {},
	CommandVersion:  {},
	CommandHelp:     {},
}

// Volume operations accepted by the volume command.
const (
	VolumeGet    = "get"
	VolumeSet    = "set"
	VolumeUp     = "up"
	VolumeDown   = "down"
	VolumeMute   = "mute"
	VolumeUnmute = "unmute"
	VolumeToggle = "toggle"
)

// DefaultHistoryLimit is the row count printed by history without an argument.
const DefaultHistoryLimit = 20

type Parsed struct {
	Command    Command
	ConfigPath string
	ShowHelp   bool

	// Stdin makes run read text commands from standard input.
	Stdin bool

	Mode string
	Text string

	VolumeOp   string
	Level      int
	HasLevel   bool
	Smooth     bool
	DurationMS int

	Limit int
}

func Parse(args []string) (Parsed, error) {
	parsed := Parsed{Command: CommandHelp, ShowHelp: true}

	var operands []string
	haveCommand := false
	for i := 0; i < len(args); i++ {
		arg := args[i]

		switch arg {
		case "-h", "--help":
			parsed.ShowHelp = true
			parsed.Command = CommandHelp
			return parsed, nil
		case "--version":
			parsed.ShowHelp = false
			parsed.Command = CommandVersion
		case "--config":
			i++
			if i >= len(args) {
				return Parsed{}, errors.New("--config requires a path")
			}
			parsed.ConfigPath = args[i]
		case "--stdin":
			parsed.Stdin = true
		case "--smooth":
			parsed.Smooth = true
		case "--duration":
			i++
			if i >= len(args) {
				return Parsed{}, errors.New("--duration requires milliseconds")
			}
			ms, err := strconv.Atoi(args[i])
			if err != nil || ms < 0 {
				return Parsed{}, fmt.Errorf("invalid --duration %q", args[i])
			}
			parsed.DurationMS = ms
		default:
			if strings.HasPrefix(arg, "-") {
				return Parsed{}, fmt.Errorf("unknown flag: %s", arg)
			}
			if haveCommand {
				operands = append(operands, arg)
				continue
			}

			cmd := Command(arg)
			if _, ok := validCommands[cmd]; !ok {
				return Parsed{}, fmt.Errorf("unknown command: %s", arg)
			}
			parsed.Command = cmd
			parsed.ShowHelp = cmd == CommandHelp
			haveCommand = true
		}
	}

	if err := parsed.bind(operands); err != nil {
		return Parsed{}, err
	}
	return parsed, nil
}

// bind validates command operands and flag placement.
func (p *Parsed) bind(operands []string) error {
	if p.Stdin && p.Command != CommandRun {
		return errors.New("--stdin is only valid with run")
	}
	if (p.Smooth || p.DurationMS > 0) && p.Command != CommandVolume {
		return errors.New("--smooth and --duration are only valid with volume")
	}

	switch p.Command {
	case CommandActivate:
		if len(operands) == 0 {
			return errors.New("activate requires a mode name")
		}
		p.Mode = strings.Join(operands, " ")
		return nil
	case CommandSay:
		if len(operands) == 0 {
			return errors.New("say requires text")
		}
		p.Text = strings.Join(operands, " ")
		return nil
	case CommandVolume:
		return p.bindVolume(operands)
	case CommandHistory:
		p.Limit = DefaultHistoryLimit
		if len(operands) == 0 {
			return nil
		}
		if len(operands) > 1 {
			return fmt.Errorf("unexpected arguments after command %q", p.Command)
		}
		n, err := strconv.Atoi(operands[0])
		if err != nil || n <= 0 {
			return fmt.Errorf("history limit must be a positive number, got %q", operands[0])
		}
		p.Limit = n
		return nil
	}

	if len(operands) > 0 {
		return fmt.Errorf("unexpected arguments after command %q", p.Command)
	}
	return nil
}

func (p *Parsed) bindVolume(operands []string) error {
	if len(operands) == 0 {
		p.VolumeOp = VolumeGet
		return nil
	}

	p.VolumeOp = operands[0]
	rest := operands[1:]
	switch p.VolumeOp {
	case VolumeSet:
		if len(rest) != 1 {
			return errors.New("volume set requires a level between 0 and 100")
		}
		level, err := parseLevel(rest[0])
		if err != nil {
			return err
		}
		p.Level, p.HasLevel = level, true
		return nil
	case VolumeUp, VolumeDown:
		if len(rest) > 1 {
			return fmt.Errorf("volume %s takes at most one step", p.VolumeOp)
		}
		if len(rest) == 1 {
			step, err := strconv.Atoi(rest[0])
			if err != nil || step <= 0 {
				return fmt.Errorf("volume step must be a positive number, got %q", rest[0])
			}
			p.Level, p.HasLevel = step, true
		}
		return nil
	case VolumeGet, VolumeMute, VolumeUnmute, VolumeToggle:
		if len(rest) > 0 {
			return fmt.Errorf("unexpected arguments after volume %s", p.VolumeOp)
		}
		return nil
	default:
		return fmt.Errorf("unknown volume operation: %s", p.VolumeOp)
	}
}

func parseLevel(value string) (int, error) {
	level, err := strconv.Atoi(strings.TrimSuffix(value, "%"))
	if err != nil || level < 0 || level > 100 {
		return 0, fmt.Errorf("volume level must be between 0 and 100, got %q", value)
	}
	return level, nil
}

func HelpText(binaryName string) string {
	return fmt.Sprintf(`Usage:
  %[1]s [--config PATH] <command> [arguments]

Commands:
  run [--stdin]             Run the agent; --stdin reads one text command per line
  activate <mode>           Activate a mode
  modes                     List configured modes
  volume [get|set N|up [N]|down [N]|mute|unmute|toggle] [--smooth] [--duration MS]
                            Read or change the output volume
  say <text...>             Handle text as a spoken command
  status                    Print agent state
  sinks                     List audio output sinks
  history [N]               Print the N most recent activations (default %[2]d)
  doctor                    Run configuration and environment checks
  version                   Print version information
  help                      Show this help

activate, volume and say are sent to a running agent when one is listening,
and run in this process otherwise.

Flags:
  --config PATH   Config file path (default: $XDG_CONFIG_HOME/modus/config.jsonc)
  -h, --help      Show help
  --version       Show version
`, binaryName, DefaultHistoryLimit)
}
