package config

import (
	"fmt"
	"net"
	"strings"

	"github.com/rbright/modus/internal/logging"
)

// Validate enforces config invariants and returns non-fatal warnings.
func Validate(cfg Config) ([]Warning, error) {
	warnings := make([]Warning, 0)

	if err := validateAudio(cfg.Audio); err != nil {
		return nil, err
	}

	if cfg.Sounds.Enable && len(cfg.Sounds.Player.Argv) == 0 {
		return nil, fmt.Errorf("sounds.player_cmd must not be empty when sounds.enable=true")
	}

	backend := strings.ToLower(strings.TrimSpace(cfg.Indicator.Backend))
	if backend == "" {
		return nil, fmt.Errorf("indicator.backend must not be empty")
	}
	if backend != "hypr" && backend != "desktop" {
		return nil, fmt.Errorf("indicator.backend must be one of: hypr, desktop")
	}
	if backend == "desktop" && strings.TrimSpace(cfg.Indicator.DesktopAppName) == "" {
		return nil, fmt.Errorf("indicator.desktop_app_name must not be empty when indicator.backend=desktop")
	}
	if cfg.Indicator.ErrorTimeoutMS < 0 {
		return nil, fmt.Errorf("indicator.error_timeout_ms must be >= 0")
	}

	if cfg.Actions.ScriptTimeoutMS < 0 {
		return nil, fmt.Errorf("actions.script_timeout_ms must be >= 0")
	}
	if cfg.Actions.ScriptTimeoutMS == 0 {
		warnings = append(warnings, Warning{Message: "actions.script_timeout_ms=0 lets a hung script block mode activation indefinitely"})
	}
	if len(cfg.Actions.URIOpener.Argv) == 0 {
		return nil, fmt.Errorf("actions.uri_cmd must not be empty")
	}
	if len(cfg.Actions.Display.Argv) == 0 {
		return nil, fmt.Errorf("actions.display_cmd must not be empty")
	}
	if !strings.Contains(cfg.Actions.Display.Raw, "{level}") {
		warnings = append(warnings, Warning{Message: "actions.display_cmd has no {level} placeholder; display actions will ignore their level"})
	}

	if cfg.Health.IntervalMS <= 0 {
		return nil, fmt.Errorf("health.interval_ms must be > 0")
	}
	if cfg.Health.CriticalRAMGB < 0 {
		return nil, fmt.Errorf("health.critical_ram_gb must be >= 0")
	}
	if err := validateAddr("health.grpc_addr", cfg.Health.GRPCAddr); err != nil {
		return nil, err
	}
	if err := validateAddr("events.addr", cfg.Events.Addr); err != nil {
		return nil, err
	}

	if cfg.MQTT.Enable {
		if strings.TrimSpace(cfg.MQTT.Broker) == "" {
			return nil, fmt.Errorf("mqtt.broker must not be empty when mqtt.enable=true")
		}
		if strings.TrimSpace(cfg.MQTT.TopicPrefix) == "" {
			return nil, fmt.Errorf("mqtt.topic_prefix must not be empty when mqtt.enable=true")
		}
	}

	if cfg.Influx.Enable {
		if strings.TrimSpace(cfg.Influx.URL) == "" {
			return nil, fmt.Errorf("influx.url must not be empty when influx.enable=true")
		}
		if strings.TrimSpace(cfg.Influx.Org) == "" || strings.TrimSpace(cfg.Influx.Bucket) == "" {
			return nil, fmt.Errorf("influx.org and influx.bucket must not be empty when influx.enable=true")
		}
		if strings.TrimSpace(cfg.Influx.Token) == "" {
			warnings = append(warnings, Warning{Message: "influx.token is empty; writes will fail on secured servers"})
		}
	}

	if _, err := logging.ParseLevel(cfg.Log.Level); err != nil {
		return nil, fmt.Errorf("log.level: %w", err)
	}

	return warnings, nil
}

func validateAudio(audio AudioConfig) error {
	if audio.MinVolume < 0 || audio.MaxVolume > 100 {
		return fmt.Errorf("audio.min_volume and audio.max_volume must be within 0..100")
	}
	if audio.MinVolume >= audio.MaxVolume {
		return fmt.Errorf("audio.min_volume must be < audio.max_volume")
	}
	if audio.DefaultVolume < audio.MinVolume || audio.DefaultVolume > audio.MaxVolume {
		return fmt.Errorf("audio.default_volume must be within audio.min_volume..audio.max_volume")
	}
	if audio.VolumeStep <= 0 || audio.VolumeStep > 100 {
		return fmt.Errorf("audio.volume_step must be within 1..100")
	}
	if audio.MaxRetries <= 0 {
		return fmt.Errorf("audio.max_retries must be > 0")
	}
	if audio.RetryBackoffMS < 0 {
		return fmt.Errorf("audio.retry_backoff_ms must be >= 0")
	}
	if audio.FadeStepMS <= 0 {
		return fmt.Errorf("audio.fade_step_ms must be > 0")
	}
	return nil
}

func validateAddr(field string, addr string) error {
	if strings.TrimSpace(addr) == "" {
		return nil
	}
	if _, _, err := net.SplitHostPort(addr); err != nil {
		return fmt.Errorf("%s must be host:port: %w", field, err)
	}
	return nil
}
