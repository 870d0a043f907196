package config

import (
	"fmt"
	"strings"

	"github.com/rbright/modus/internal/argv"
	"github.com/rbright/modus/internal/jsonc"
)

type jsoncConfig struct {
	Audio     *jsoncAudio     `json:"audio"`
	Modes     *jsoncModes     `json:"modes"`
	Commands  *jsoncCommands  `json:"commands"`
	Sounds    *jsoncSounds    `json:"sounds"`
	Indicator *jsoncIndicator `json:"indicator"`
	Actions   *jsoncActions   `json:"actions"`
	Health    *jsoncHealth    `json:"health"`
	History   *jsoncHistory   `json:"history"`
	Events    *jsoncEvents    `json:"events"`
	MQTT      *jsoncMQTT      `json:"mqtt"`
	Influx    *jsoncInflux    `json:"influx"`
	Log       *jsoncLog       `json:"log"`
}

type jsoncAudio struct {
	Sink           *string `json:"sink"`
	MinVolume      *int    `json:"min_volume"`
	MaxVolume      *int    `json:"max_volume"`
	DefaultVolume  *int    `json:"default_volume"`
	VolumeStep     *int    `json:"volume_step"`
	MaxRetries     *int    `json:"max_retries"`
	RetryBackoffMS *int    `json:"retry_backoff_ms"`
	FadeStepMS     *int    `json:"fade_step_ms"`
}

type jsoncModes struct {
	Path   *string `json:"path"`
	Strict *bool   `json:"strict"`
}

type jsoncCommands struct {
	Path     *string `json:"path"`
	WakeWord *string `json:"wake_word"`
}

type jsoncSounds struct {
	Enable    *bool   `json:"enable"`
	Dir       *string `json:"dir"`
	PlayerCmd *string `json:"player_cmd"`
	ErrorID   *string `json:"error_id"`
	WarningID *string `json:"warning_id"`
}

type jsoncIndicator struct {
	Enable         *bool   `json:"enable"`
	Backend        *string `json:"backend"`
	DesktopAppName *string `json:"desktop_app_name"`
	ErrorTimeoutMS *int    `json:"error_timeout_ms"`
}

type jsoncActions struct {
	ScriptTimeoutMS *int    `json:"script_timeout_ms"`
	URICmd          *string `json:"uri_cmd"`
	DisplayCmd      *string `json:"display_cmd"`
}

type jsoncHealth struct {
	IntervalMS    *int     `json:"interval_ms"`
	CriticalRAMGB *float64 `json:"critical_ram_gb"`
	GRPCAddr      *string  `json:"grpc_addr"`
}

type jsoncHistory struct {
	Enable *bool   `json:"enable"`
	Path   *string `json:"path"`
}

type jsoncEvents struct {
	Addr *string `json:"addr"`
}

type jsoncMQTT struct {
	Enable      *bool   `json:"enable"`
	Broker      *string `json:"broker"`
	ClientID    *string `json:"client_id"`
	TopicPrefix *string `json:"topic_prefix"`
	Username    *string `json:"username"`
	Password    *string `json:"password"`
}

type jsoncInflux struct {
	Enable *bool   `json:"enable"`
	URL    *string `json:"url"`
	Token  *string `json:"token"`
	Org    *string `json:"org"`
	Bucket *string `json:"bucket"`
}

type jsoncLog struct {
	Level *string `json:"level"`
}

func parseJSONC(content string, base Config) (Config, []Warning, error) {
	var payload jsoncConfig
	if err := jsonc.Decode(content, &payload, jsonc.Options{DisallowUnknownFields: true}); err != nil {
		return Config{}, nil, err
	}

	cfg := base
	warnings, err := payload.applyTo(&cfg)
	if err != nil {
		return Config{}, nil, err
	}
	return cfg, warnings, nil
}

func (payload jsoncConfig) applyTo(cfg *Config) ([]Warning, error) {
	warnings := make([]Warning, 0)

	if a := payload.Audio; a != nil {
		setString(&cfg.Audio.Sink, a.Sink)
		setInt(&cfg.Audio.MinVolume, a.MinVolume)
		setInt(&cfg.Audio.MaxVolume, a.MaxVolume)
		setInt(&cfg.Audio.DefaultVolume, a.DefaultVolume)
		setInt(&cfg.Audio.VolumeStep, a.VolumeStep)
		setInt(&cfg.Audio.MaxRetries, a.MaxRetries)
		setInt(&cfg.Audio.RetryBackoffMS, a.RetryBackoffMS)
		setInt(&cfg.Audio.FadeStepMS, a.FadeStepMS)
	}

	if m := payload.Modes; m != nil {
		setString(&cfg.Modes.Path, m.Path)
		if m.Strict != nil {
			cfg.Modes.Strict = *m.Strict
		}
	}

	if c := payload.Commands; c != nil {
		setString(&cfg.Commands.Path, c.Path)
		if c.WakeWord != nil {
			cfg.Commands.WakeWord = strings.ToLower(strings.TrimSpace(*c.WakeWord))
		}
	}

	if s := payload.Sounds; s != nil {
		if s.Enable != nil {
			cfg.Sounds.Enable = *s.Enable
		}
		setString(&cfg.Sounds.Dir, s.Dir)
		setString(&cfg.Sounds.ErrorID, s.ErrorID)
		setString(&cfg.Sounds.WarningID, s.WarningID)
		if s.PlayerCmd != nil {
			command, err := parseCommand("sounds.player_cmd", *s.PlayerCmd)
			if err != nil {
				return nil, err
			}
			cfg.Sounds.Player = command
		}
	}

	if i := payload.Indicator; i != nil {
		if i.Enable != nil {
			cfg.Indicator.Enable = *i.Enable
		}
		setString(&cfg.Indicator.Backend, i.Backend)
		setString(&cfg.Indicator.DesktopAppName, i.DesktopAppName)
		setInt(&cfg.Indicator.ErrorTimeoutMS, i.ErrorTimeoutMS)
	}

	if a := payload.Actions; a != nil {
		setInt(&cfg.Actions.ScriptTimeoutMS, a.ScriptTimeoutMS)
		if a.URICmd != nil {
			command, err := parseCommand("actions.uri_cmd", *a.URICmd)
			if err != nil {
				return nil, err
			}
			cfg.Actions.URIOpener = command
		}
		if a.DisplayCmd != nil {
			command, err := parseCommand("actions.display_cmd", *a.DisplayCmd)
			if err != nil {
				return nil, err
			}
			cfg.Actions.Display = command
		}
	}

	if h := payload.Health; h != nil {
		setInt(&cfg.Health.IntervalMS, h.IntervalMS)
		if h.CriticalRAMGB != nil {
			cfg.Health.CriticalRAMGB = *h.CriticalRAMGB
		}
		setString(&cfg.Health.GRPCAddr, h.GRPCAddr)
	}

	if h := payload.History; h != nil {
		if h.Enable != nil {
			cfg.History.Enable = *h.Enable
		}
		setString(&cfg.History.Path, h.Path)
	}

	if e := payload.Events; e != nil {
		setString(&cfg.Events.Addr, e.Addr)
	}

	if m := payload.MQTT; m != nil {
		if m.Enable != nil {
			cfg.MQTT.Enable = *m.Enable
		}
		setString(&cfg.MQTT.Broker, m.Broker)
		setString(&cfg.MQTT.ClientID, m.ClientID)
		setString(&cfg.MQTT.TopicPrefix, m.TopicPrefix)
		setString(&cfg.MQTT.Username, m.Username)
		if m.Password != nil {
			cfg.MQTT.Password = *m.Password
		}
		if m.Password != nil && *m.Password != "" {
			warnings = append(warnings, Warning{Message: "mqtt.password is stored in plain text; prefer MODUS_MQTT_PASSWORD"})
		}
	}

	if i := payload.Influx; i != nil {
		if i.Enable != nil {
			cfg.Influx.Enable = *i.Enable
		}
		setString(&cfg.Influx.URL, i.URL)
		setString(&cfg.Influx.Token, i.Token)
		setString(&cfg.Influx.Org, i.Org)
		setString(&cfg.Influx.Bucket, i.Bucket)
	}

	if l := payload.Log; l != nil && l.Level != nil {
		cfg.Log.Level = strings.ToLower(strings.TrimSpace(*l.Level))
	}

	return warnings, nil
}

func setString(dst *string, value *string) {
	if value != nil {
		*dst = strings.TrimSpace(*value)
	}
}

func setInt(dst *int, value *int) {
	if value != nil {
		*dst = *value
	}
}

func parseCommand(field string, raw string) (CommandConfig, error) {
	words, err := argv.Parse(raw)
	if err != nil {
		return CommandConfig{}, fmt.Errorf("invalid %s: %w", field, err)
	}
	return CommandConfig{Raw: raw, Argv: words}, nil
}
