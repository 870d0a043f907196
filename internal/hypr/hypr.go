// Package hypr drives hyprctl for on-screen notifications and compositor checks.
package hypr

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// Icon selects the glyph drawn next to a notification.
type Icon int

const (
	IconWarning Icon = 0
	IconInfo    Icon = 1
	IconHint    Icon = 2
	IconError   Icon = 3
	IconOK      Icon = 5
)

const (
	defaultTimeoutMS = 1200
	defaultColor     = "rgb(89b4fa)"
)

// Notify shows text through `hyprctl dispatch notify`. Zero timeout and empty color use defaults.
func Notify(ctx context.Context, icon Icon, timeoutMS int, color string, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return errors.New("notify requires non-empty text")
	}
	if timeoutMS <= 0 {
		timeoutMS = defaultTimeoutMS
	}
	if strings.TrimSpace(color) == "" {
		color = defaultColor
	}
	_, err := hyprctl(ctx, "--quiet", "dispatch", "notify", strconv.Itoa(int(icon)), strconv.Itoa(timeoutMS), color, text)
	return err
}

// DismissNotify clears every notification on screen.
func DismissNotify(ctx context.Context) error {
	_, err := hyprctl(ctx, "--quiet", "dispatch", "dismissnotify")
	return err
}

// FocusedMonitor names the focused output, falling back to the first one listed.
// It doubles as a liveness check of the compositor socket.
func FocusedMonitor(ctx context.Context) (string, error) {
	out, err := hyprctl(ctx, "-j", "monitors")
	if err != nil {
		return "", err
	}

	var monitors []struct {
		Name    string `json:"name"`
		Focused bool   `json:"focused"`
	}
	if err := json.Unmarshal(out, &monitors); err != nil {
		return "", fmt.Errorf("decode hyprctl monitors: %w", err)
	}
	if len(monitors) == 0 {
		return "", errors.New("hyprctl reported no outputs")
	}
	for _, m := range monitors {
		if m.Focused {
			return strings.TrimSpace(m.Name), nil
		}
	}
	return strings.TrimSpace(monitors[0].Name), nil
}

func hyprctl(ctx context.Context, args ...string) ([]byte, error) {
	out, err := exec.CommandContext(ctx, "hyprctl", args...).CombinedOutput()
	if err == nil {
		return out, nil
	}
	if detail := strings.TrimSpace(string(out)); detail != "" {
		return nil, fmt.Errorf("hyprctl %s: %w (%s)", strings.Join(args, " "), err, detail)
	}
	return nil, fmt.Errorf("hyprctl %s: %w", strings.Join(args, " "), err)
}
