package agent

import (
	"context"
	"fmt"
	"time"

	"github.com/rbright/modus/internal/command"
	"github.com/rbright/modus/internal/health"
)

// monitor samples system health every HealthInterval. Entering the critical state enqueues one
// low-memory system command; staying critical does not repeat it.
func (a *Agent) monitor(ctx context.Context) error {
	if a.deps.Metrics == nil {
		<-ctx.Done()
		return nil
	}

	ticker := time.NewTicker(a.opts.HealthInterval)
	defer ticker.Stop()

	critical := false
	for {
		sample := a.sample()
		for _, sink := range a.deps.HealthSinks {
			if sink != nil {
				sink.HealthSampled(sample)
			}
		}
		if sample.Critical && !critical {
			a.logger.Warn("available memory is critical",
				"available_ram_gb", sample.AvailableRAMGB,
				"threshold_gb", a.opts.CriticalRAMGB,
			)
			err := a.Submit(Command{
				Source: SourceSystem,
				Intent: command.IntentSystem,
				Params: command.Params{Command: systemLowMemory},
				Detail: fmt.Sprintf("Low memory: %.1f GB available", sample.AvailableRAMGB),
			})
			if err != nil {
				a.logger.Warn("low memory warning not queued", "error", err)
			}
		}
		critical = sample.Critical

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func (a *Agent) sample() health.Sample {
	sample := health.Sample{Time: a.now().UTC()}

	ram, err := a.deps.Metrics.AvailableRAMGB()
	if err != nil {
		a.logger.Debug("health sample: memory unreadable", "error", err)
	} else {
		sample.AvailableRAMGB = ram
		sample.Critical = a.opts.CriticalRAMGB > 0 && ram < a.opts.CriticalRAMGB
	}

	disk, err := a.deps.Metrics.FreeDiskGB()
	if err != nil {
		a.logger.Debug("health sample: disk unreadable", "error", err)
	} else {
		sample.FreeDiskGB = disk
	}
	return sample
}
