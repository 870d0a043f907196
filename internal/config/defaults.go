package config

import "github.com/rbright/modus/internal/argv"

const (
	defaultPlayerCmd  = "pw-play --media-role Notification"
	defaultURIOpener  = "xdg-open"
	defaultDisplayCmd = "brightnessctl set {level}%"
)

// Default returns the canonical runtime configuration used when no file is present.
//
// Empty file paths are resolved relative to the config file by Load.
func Default() Config {
	return Config{
		Audio: AudioConfig{
			Sink:           "default",
			MinVolume:      0,
			MaxVolume:      100,
			DefaultVolume:  50,
			VolumeStep:     10,
			MaxRetries:     3,
			RetryBackoffMS: 1000,
			FadeStepMS:     50,
		},
		Modes:    ModesConfig{},
		Commands: CommandsConfig{WakeWord: "modus"},
		Sounds: SoundsConfig{
			Enable:    true,
			Player:    CommandConfig{Raw: defaultPlayerCmd, Argv: argv.MustParse(defaultPlayerCmd)},
			ErrorID:   "cue/error",
			WarningID: "cue/warning",
		},
		Indicator: IndicatorConfig{
			Enable:         true,
			Backend:        "hypr",
			DesktopAppName: "modus",
			ErrorTimeoutMS: 1600,
		},
		Actions: ActionsConfig{
			ScriptTimeoutMS: 300000,
			URIOpener:       CommandConfig{Raw: defaultURIOpener, Argv: argv.MustParse(defaultURIOpener)},
			Display:         CommandConfig{Raw: defaultDisplayCmd, Argv: argv.MustParse(defaultDisplayCmd)},
		},
		Health: HealthConfig{
			IntervalMS:    10000,
			CriticalRAMGB: 0.5,
		},
		History: HistoryConfig{Enable: true},
		MQTT: MQTTConfig{
			Broker:      "tcp://127.0.0.1:1883",
			ClientID:    "modus",
			TopicPrefix: "modus",
		},
		Influx: InfluxConfig{
			URL:    "http://127.0.0.1:8086",
			Bucket: "modus",
		},
		Log: LogConfig{Level: "info"},
	}
}
