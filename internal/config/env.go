package config

import (
	"fmt"
	"strings"

	"github.com/caarlos0/env/v11"
)

// envOverrides lists the settings that may be supplied through the environment.
// Set variables win over the config file.
type envOverrides struct {
	LogLevel       *string `env:"MODUS_LOG_LEVEL"`
	ModesPath      *string `env:"MODUS_MODES_PATH"`
	AudioSink      *string `env:"MODUS_AUDIO_SINK"`
	HealthAddr     *string `env:"MODUS_HEALTH_ADDR"`
	EventsAddr     *string `env:"MODUS_EVENTS_ADDR"`
	MQTTPassword   *string `env:"MODUS_MQTT_PASSWORD"`
	InfluxToken    *string `env:"MODUS_INFLUX_TOKEN"`
	HistoryEnabled *bool   `env:"MODUS_HISTORY_ENABLE"`
}

// applyEnv overlays environment overrides onto cfg. A nil environ reads the process environment.
func applyEnv(cfg *Config, environ map[string]string) error {
	var overrides envOverrides
	opts := env.Options{Environment: environ}
	if err := env.ParseWithOptions(&overrides, opts); err != nil {
		return fmt.Errorf("parse environment overrides: %w", err)
	}

	if overrides.LogLevel != nil {
		cfg.Log.Level = strings.ToLower(strings.TrimSpace(*overrides.LogLevel))
	}
	setString(&cfg.Modes.Path, overrides.ModesPath)
	setString(&cfg.Audio.Sink, overrides.AudioSink)
	setString(&cfg.Health.GRPCAddr, overrides.HealthAddr)
	setString(&cfg.Events.Addr, overrides.EventsAddr)
	if overrides.MQTTPassword != nil {
		cfg.MQTT.Password = *overrides.MQTTPassword
	}
	setString(&cfg.Influx.Token, overrides.InfluxToken)
	if overrides.HistoryEnabled != nil {
		cfg.History.Enable = *overrides.HistoryEnabled
	}
	return nil
}
