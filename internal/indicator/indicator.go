// Package indicator surfaces activation outcomes and agent warnings as desktop notifications.
package indicator

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/rbright/modus/internal/config"
	"github.com/rbright/modus/internal/engine"
	"github.com/rbright/modus/internal/hypr"
	"github.com/rbright/modus/internal/logging"
)

const (
	colorOK      = "rgb(a6e3a1)"
	colorWarning = "rgb(f9e2af)"
	colorError   = "rgb(f38ba8)"

	activationTimeoutMS = 2500
)

// Notifier routes notifications via Hyprland or desktop DBus based on config backend.
// It satisfies engine.Observer.
type Notifier struct {
	cfg      config.IndicatorConfig
	logger   *slog.Logger
	messages messages

	mu                    sync.Mutex
	desktopNotificationID uint32
}

// New creates a notifier from config.
func New(cfg config.IndicatorConfig, logger *slog.Logger) *Notifier {
	return &Notifier{
		cfg:      cfg,
		logger:   logging.OrDiscard(logger),
		messages: indicatorMessagesFromEnv(),
	}
}

// ModeActivated shows the outcome of one activation.
func (n *Notifier) ModeActivated(exec engine.Execution) {
	if !n.cfg.Enable {
		return
	}
	ctx := context.Background()
	switch exec.Status {
	case engine.StatusCompleted:
		n.show(ctx, hypr.IconOK, activationTimeoutMS, colorOK, n.messages.activated(exec.Mode))
	case engine.StatusPartial:
		n.show(ctx, hypr.IconWarning, n.errorTimeout(), colorWarning, n.messages.partial(exec.Mode, exec.Failed, exec.Total))
	case engine.StatusFailed:
		n.show(ctx, hypr.IconError, n.errorTimeout(), colorError, n.messages.failed(exec.Mode))
	case engine.StatusRejected:
		n.show(ctx, hypr.IconError, n.errorTimeout(), colorError, n.messages.rejected(exec.Mode, exec.Reason))
	}
}

// ShowError displays an error-state message. Empty text uses the generic command failure text.
func (n *Notifier) ShowError(ctx context.Context, text string) {
	if !n.cfg.Enable {
		return
	}
	if strings.TrimSpace(text) == "" {
		text = n.messages.errorText
	}
	n.show(ctx, hypr.IconError, n.errorTimeout(), colorError, text)
}

// ShowWarning displays a warning-state message.
func (n *Notifier) ShowWarning(ctx context.Context, text string) {
	if !n.cfg.Enable || strings.TrimSpace(text) == "" {
		return
	}
	n.show(ctx, hypr.IconWarning, n.errorTimeout(), colorWarning, text)
}

// Hide dismisses the active notification.
func (n *Notifier) Hide(ctx context.Context) {
	if !n.cfg.Enable {
		return
	}
	n.run(ctx, n.dismiss)
}

func (n *Notifier) errorTimeout() int {
	if n.cfg.ErrorTimeoutMS <= 0 {
		return 1200
	}
	return n.cfg.ErrorTimeoutMS
}

func (n *Notifier) show(ctx context.Context, icon hypr.Icon, timeoutMS int, color string, text string) {
	n.run(ctx, func(ctx context.Context) error {
		return n.notify(ctx, icon, timeoutMS, color, text)
	})
}

// notify dispatches output through the configured backend.
func (n *Notifier) notify(ctx context.Context, icon hypr.Icon, timeoutMS int, color string, text string) error {
	if n.desktopBackend() {
		return n.notifyDesktop(ctx, urgencyFor(icon), timeoutMS, text)
	}
	return hypr.Notify(ctx, icon, timeoutMS, color, text)
}

func (n *Notifier) dismiss(ctx context.Context) error {
	if n.desktopBackend() {
		return n.dismissDesktop(ctx)
	}
	return hypr.DismissNotify(ctx)
}

func (n *Notifier) desktopBackend() bool {
	return strings.EqualFold(strings.TrimSpace(n.cfg.Backend), "desktop")
}

// notifyDesktop sends a replaceable desktop notification and stores its ID.
func (n *Notifier) notifyDesktop(ctx context.Context, urgency byte, timeoutMS int, text string) error {
	n.mu.Lock()
	replaceID := n.desktopNotificationID
	n.mu.Unlock()

	appName := strings.TrimSpace(n.cfg.DesktopAppName)
	if appName == "" {
		appName = "modus"
	}

	id, err := desktopNotify(ctx, desktopNote{
		AppName:   appName,
		ReplaceID: replaceID,
		Summary:   text,
		Urgency:   urgency,
		TimeoutMS: timeoutMS,
	})
	if err != nil {
		return err
	}

	n.mu.Lock()
	n.desktopNotificationID = id
	n.mu.Unlock()
	return nil
}

func urgencyFor(icon hypr.Icon) byte {
	switch icon {
	case hypr.IconError:
		return urgencyCritical
	case hypr.IconOK:
		return urgencyLow
	default:
		return urgencyNormal
	}
}

// dismissDesktop closes the current desktop notification ID when present.
func (n *Notifier) dismissDesktop(ctx context.Context) error {
	n.mu.Lock()
	id := n.desktopNotificationID
	n.desktopNotificationID = 0
	n.mu.Unlock()

	if id == 0 {
		return nil
	}
	return desktopDismiss(ctx, id)
}

// run executes a notification operation with a bounded timeout.
func (n *Notifier) run(ctx context.Context, fn func(context.Context) error) {
	runCtx, cancel := context.WithTimeout(ctx, 400*time.Millisecond)
	defer cancel()
	if err := fn(runCtx); err != nil {
		n.logger.Debug("indicator dispatch failed", "error", err.Error())
	}
}
