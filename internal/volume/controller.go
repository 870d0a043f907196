package volume

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rbright/modus/internal/fsm"
	"github.com/rbright/modus/internal/logging"
)

// State is a point-in-time copy of the controller's audio state.
type State struct {
	Volume          int       `json:"volume"`
	Muted           bool      `json:"muted"`
	PreviousUnmuted int       `json:"previous_unmuted"`
	Device          fsm.State `json:"device"`
}

// Controller serializes every endpoint call and every AudioState mutation behind one mutex.
type Controller struct {
	connector Connector
	opts      Options
	logger    *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu              sync.Mutex
	endpoint        Endpoint
	device          fsm.State
	current         int
	muted           bool
	previousUnmuted int
	hasPrevious     bool
	closed          bool

	generation  atomic.Uint64
	fadeMu      sync.Mutex
	fadeCancel  context.CancelFunc
	tasks       chan fadeTask
	tasksClosed bool
	fades       sync.WaitGroup
	workers     sync.WaitGroup
}

// New builds a controller. The endpoint is acquired lazily on first use or by Connect.
func New(connector Connector, opts Options) *Controller {
	opts = opts.normalized()
	ctx, cancel := context.WithCancel(context.Background())

	c := &Controller{
		connector: connector,
		opts:      opts,
		logger:    logging.OrDiscard(opts.Logger),
		ctx:       ctx,
		cancel:    cancel,
		device:    fsm.StateDisconnected,
		current:   opts.Default,
		tasks:     make(chan fadeTask, opts.FadeWorkers),
	}

	c.workers.Add(opts.FadeWorkers)
	for i := 0; i < opts.FadeWorkers; i++ {
		go c.fadeWorker()
	}
	return c
}

// Connect acquires the endpoint now and refreshes the last-known volume and mute flag.
func (c *Controller) Connect() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}
	if c.endpoint == nil {
		if err := c.reconnectLocked(); err != nil {
			return err
		}
	}
	if _, err := c.readLocked(); err != nil {
		return err
	}
	var muted bool
	if err := c.callLocked("read mute", func(ep Endpoint) error {
		var err error
		muted, err = ep.Muted()
		return err
	}); err != nil {
		return err
	}
	c.muted = muted
	return nil
}

// Get returns the live volume clamped to [min,max], or the last-known value when the device is unavailable.
func (c *Controller) Get() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	value, err := c.readLocked()
	if err != nil {
		c.logger.Warn("volume read failed; returning last known value", "volume", c.current, "error", err)
		return c.current
	}
	return value
}

// Set clamps percent to [min,max] and applies it. A smooth set schedules a fade and returns once it is queued.
//
// Any call supersedes an in-flight fade.
func (c *Controller) Set(percent int, smooth bool, duration time.Duration) bool {
	target := c.clamp(percent)

	if smooth {
		return c.startFade(target, duration)
	}

	c.supersede(false)

	c.mu.Lock()
	err := c.writeLocked(target)
	state := c.snapshotLocked()
	c.mu.Unlock()

	if err != nil {
		c.logger.Error("set volume failed", "target", target, "error", err)
		return false
	}
	c.logger.Info("volume set", "volume", target)
	c.notify(state)
	return true
}

// Up raises the volume by step, or by the configured step when step <= 0.
func (c *Controller) Up(step int) bool {
	if step <= 0 {
		step = c.opts.Step
	}
	return c.Set(c.Get()+step, false, 0)
}

// Down lowers the volume by step, or by the configured step when step <= 0.
func (c *Controller) Down(step int) bool {
	if step <= 0 {
		step = c.opts.Step
	}
	return c.Set(c.Get()-step, false, 0)
}

// Mute records the current volume as the previous unmuted value and sets the hardware mute flag.
// It reports success and the recorded volume. An in-flight fade stops where it is.
func (c *Controller) Mute() (bool, int) {
	c.supersede(false)

	c.mu.Lock()
	previous, err := c.readLocked()
	if err == nil {
		err = c.callLocked("mute", func(ep Endpoint) error { return ep.SetMute(true) })
	}
	if err == nil {
		c.muted = true
		c.previousUnmuted = previous
		c.hasPrevious = true
	}
	state := c.snapshotLocked()
	c.mu.Unlock()

	if err != nil {
		c.logger.Error("mute failed", "error", err)
		return false, previous
	}
	c.logger.Info("volume muted", "previous_volume", previous)
	c.notify(state)
	return true, previous
}

// Unmute clears the hardware mute flag and leaves the volume level untouched. It cancels any fade.
func (c *Controller) Unmute() bool {
	c.supersede(false)

	c.mu.Lock()
	err := c.callLocked("unmute", func(ep Endpoint) error { return ep.SetMute(false) })
	if err == nil {
		c.muted = false
	}
	state := c.snapshotLocked()
	c.mu.Unlock()

	if err != nil {
		c.logger.Error("unmute failed", "error", err)
		return false
	}
	c.logger.Info("volume unmuted", "volume", state.Volume)
	c.notify(state)
	return true
}

// UnmuteTo clears the mute flag and then restores percent.
func (c *Controller) UnmuteTo(percent int) bool {
	if !c.Unmute() {
		return false
	}
	return c.Set(percent, false, 0)
}

// ToggleMute queries the live mute flag; it unmutes (restoring the recorded volume) when muted, otherwise mutes.
func (c *Controller) ToggleMute() bool {
	c.supersede(false)

	c.mu.Lock()
	muted := c.muted
	err := c.callLocked("read mute", func(ep Endpoint) error {
		var err error
		muted, err = ep.Muted()
		return err
	})
	if err == nil {
		c.muted = muted
	}
	previous, hasPrevious := c.previousUnmuted, c.hasPrevious
	c.mu.Unlock()

	if err != nil {
		c.logger.Warn("mute query failed; toggling last known state", "muted", muted, "error", err)
	}

	if muted {
		if hasPrevious {
			return c.UnmuteTo(previous)
		}
		return c.Unmute()
	}
	ok, _ := c.Mute()
	return ok
}

// Range reports the configured clamp bounds.
func (c *Controller) Range() (int, int) {
	return c.opts.Min, c.opts.Max
}

// Snapshot returns the current state without touching the device.
func (c *Controller) Snapshot() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// Close cancels any fade, stops the fade workers and releases the endpoint. Later operations fail fast.
func (c *Controller) Close() error {
	c.cancel()
	c.supersede(false)

	c.fadeMu.Lock()
	if !c.tasksClosed {
		c.tasksClosed = true
		close(c.tasks)
	}
	c.fadeMu.Unlock()
	c.workers.Wait()

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	c.transitionLocked(fsm.EventClose)

	if c.endpoint == nil {
		return nil
	}
	err := c.endpoint.Close()
	c.endpoint = nil
	return err
}

func (c *Controller) clamp(percent int) int {
	return min(max(percent, c.opts.Min), c.opts.Max)
}

func (c *Controller) snapshotLocked() State {
	return State{
		Volume:          c.current,
		Muted:           c.muted,
		PreviousUnmuted: c.previousUnmuted,
		Device:          c.device,
	}
}

func (c *Controller) notify(state State) {
	if c.opts.Observer != nil {
		c.opts.Observer.VolumeChanged(state)
	}
}

func (c *Controller) readLocked() (int, error) {
	var live int
	err := c.callLocked("read volume", func(ep Endpoint) error {
		var err error
		live, err = ep.Volume()
		return err
	})
	if err != nil {
		return c.current, err
	}
	c.current = c.clamp(live)
	return c.current, nil
}

func (c *Controller) writeLocked(value int) error {
	err := c.callLocked("write volume", func(ep Endpoint) error { return ep.SetVolume(value) })
	if err != nil {
		return err
	}
	c.current = value
	return nil
}

// callLocked is the single retry-wrapped path to the endpoint.
//
// A failed call drops the endpoint, runs at most one bounded reconnect, and retries fn exactly once.
// When the endpoint had to be acquired for this call, that acquisition is the call's one reconnect.
func (c *Controller) callLocked(op string, fn func(Endpoint) error) error {
	if c.closed {
		return ErrClosed
	}

	reconnected := false
	if c.endpoint == nil {
		if err := c.reconnectLocked(); err != nil {
			return err
		}
		reconnected = true
	}

	err := fn(c.endpoint)
	if err == nil {
		return nil
	}
	c.logger.Warn("volume device call failed", "op", op, "error", err)
	c.dropLocked()
	if reconnected {
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := c.reconnectLocked(); err != nil {
		return err
	}
	if err := fn(c.endpoint); err != nil {
		c.dropLocked()
		return fmt.Errorf("%s after reconnect: %w", op, err)
	}
	return nil
}

// reconnectLocked makes up to MaxRetries connection attempts with a fixed backoff between them.
func (c *Controller) reconnectLocked() error {
	var lastErr error
	for attempt := 1; attempt <= c.opts.MaxRetries; attempt++ {
		if c.ctx.Err() != nil {
			return ErrClosed
		}

		c.transitionLocked(fsm.EventDial)
		endpoint, err := c.connector.Connect(c.ctx)
		if err == nil {
			c.endpoint = endpoint
			c.transitionLocked(fsm.EventEstablished)
			c.logger.Info("volume device connected", "attempt", attempt)
			return nil
		}

		lastErr = err
		c.transitionLocked(fsm.EventFail)
		c.logger.Warn("volume device connect failed",
			"attempt", attempt,
			"max_attempts", c.opts.MaxRetries,
			"error", err,
		)

		if attempt < c.opts.MaxRetries && c.opts.RetryBackoff > 0 {
			timer := time.NewTimer(c.opts.RetryBackoff)
			select {
			case <-c.ctx.Done():
				timer.Stop()
				return ErrClosed
			case <-timer.C:
			}
		}
	}
	return fmt.Errorf("%w after %d attempts: %v", ErrDeviceUnavailable, c.opts.MaxRetries, lastErr)
}

func (c *Controller) dropLocked() {
	if c.endpoint != nil {
		_ = c.endpoint.Close()
		c.endpoint = nil
	}
	c.transitionLocked(fsm.EventFail)
}

func (c *Controller) transitionLocked(event fsm.Event) {
	next, err := fsm.Transition(c.device, event)
	if err != nil {
		c.logger.Debug("ignored device transition", "state", c.device, "event", event, "error", err)
		return
	}
	c.device = next
}
