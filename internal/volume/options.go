package volume

import (
	"log/slog"
	"time"

	"github.com/rbright/modus/internal/config"
)

const (
	defaultFadeStep    = 50 * time.Millisecond
	defaultFadeWorkers = 2
)

// Options configures a Controller.
type Options struct {
	Min     int
	Max     int
	Default int
	Step    int

	MaxRetries   int
	RetryBackoff time.Duration

	FadeStep    time.Duration
	FadeWorkers int

	Logger   *slog.Logger
	Observer Observer
}

// OptionsFromConfig maps the audio config section onto controller options.
func OptionsFromConfig(cfg config.AudioConfig) Options {
	return Options{
		Min:          cfg.MinVolume,
		Max:          cfg.MaxVolume,
		Default:      cfg.DefaultVolume,
		Step:         cfg.VolumeStep,
		MaxRetries:   cfg.MaxRetries,
		RetryBackoff: time.Duration(cfg.RetryBackoffMS) * time.Millisecond,
		FadeStep:     time.Duration(cfg.FadeStepMS) * time.Millisecond,
	}
}

func (o Options) normalized() Options {
	if o.Max <= 0 || o.Max > 100 {
		o.Max = 100
	}
	if o.Min < 0 || o.Min >= o.Max {
		o.Min = 0
	}
	if o.Default < o.Min || o.Default > o.Max {
		o.Default = o.Min + (o.Max-o.Min)/2
	}
	if o.Step <= 0 {
		o.Step = 10
	}
	if o.MaxRetries <= 0 {
		o.MaxRetries = 1
	}
	if o.RetryBackoff < 0 {
		o.RetryBackoff = 0
	}
	if o.FadeStep <= 0 {
		o.FadeStep = defaultFadeStep
	}
	if o.FadeWorkers <= 0 {
		o.FadeWorkers = defaultFadeWorkers
	}
	return o
}
