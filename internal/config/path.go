package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
)

// ResolvePath applies CLI/XDG/home fallback rules for config.jsonc location.
func ResolvePath(explicit string) (string, error) {
	if strings.TrimSpace(explicit) != "" {
		return ExpandPath(explicit)
	}

	if xdg := strings.TrimSpace(os.Getenv("XDG_CONFIG_HOME")); xdg != "" {
		return filepath.Join(xdg, "modus", "config.jsonc"), nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", errors.New("unable to resolve user home for config fallback")
	}

	return filepath.Join(home, ".config", "modus", "config.jsonc"), nil
}

// ExpandPath expands a leading ~ to the user's home directory.
func ExpandPath(path string) (string, error) {
	path = strings.TrimSpace(path)
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", errors.New("unable to resolve user home for ~ expansion")
	}
	if path == "~" {
		return home, nil
	}
	return filepath.Join(home, path[2:]), nil
}

// StateDir returns the modus state directory under XDG_STATE_HOME or ~/.local/state.
func StateDir() (string, error) {
	if xdg := strings.TrimSpace(os.Getenv("XDG_STATE_HOME")); xdg != "" {
		return filepath.Join(xdg, "modus"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".local", "state", "modus"), nil
}

// resolvePaths fills empty file locations and anchors relative ones at the config directory.
func resolvePaths(cfg *Config, configPath string) error {
	configDir := filepath.Dir(configPath)

	anchor := func(path, fallback string) (string, error) {
		if strings.TrimSpace(path) == "" {
			path = fallback
		}
		expanded, err := ExpandPath(path)
		if err != nil {
			return "", err
		}
		if !filepath.IsAbs(expanded) {
			expanded = filepath.Join(configDir, expanded)
		}
		return expanded, nil
	}

	var err error
	if cfg.Modes.Path, err = anchor(cfg.Modes.Path, "modes.json"); err != nil {
		return err
	}
	if cfg.Commands.Path, err = anchor(cfg.Commands.Path, "commands.json"); err != nil {
		return err
	}
	if cfg.Sounds.Dir, err = anchor(cfg.Sounds.Dir, "sounds"); err != nil {
		return err
	}

	if strings.TrimSpace(cfg.History.Path) == "" {
		stateDir, err := StateDir()
		if err != nil {
			return err
		}
		cfg.History.Path = filepath.Join(stateDir, "history.db")
		return nil
	}
	cfg.History.Path, err = anchor(cfg.History.Path, "")
	return err
}
