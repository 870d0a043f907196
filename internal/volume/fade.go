package volume

import (
	"context"
	"math"
	"time"
)

type fadeTask struct {
	generation uint64
	ctx        context.Context
	target     int
	duration   time.Duration
}

// FadeSteps is the number of intermediate writes a fade of duration performs at the given step interval.
func FadeSteps(duration time.Duration, step time.Duration) int {
	if duration <= 0 || step <= 0 {
		return 1
	}
	return max(1, int(math.Ceil(float64(duration)/float64(step))))
}

// WaitFade blocks until every queued or running fade has returned.
func (c *Controller) WaitFade() {
	c.fades.Wait()
}

// supersede invalidates every earlier fade and cancels its sleep. With startFade it
// returns a context for the fade that now owns the newest generation.
func (c *Controller) supersede(startFade bool) (uint64, context.Context) {
	c.fadeMu.Lock()
	defer c.fadeMu.Unlock()

	if c.fadeCancel != nil {
		c.fadeCancel()
		c.fadeCancel = nil
	}
	generation := c.generation.Add(1)
	if !startFade {
		return generation, nil
	}
	ctx, cancel := context.WithCancel(c.ctx)
	c.fadeCancel = cancel
	return generation, ctx
}

func (c *Controller) startFade(target int, duration time.Duration) bool {
	generation, ctx := c.supersede(true)

	c.fadeMu.Lock()
	defer c.fadeMu.Unlock()
	if c.tasksClosed {
		return false
	}

	c.fades.Add(1)
	select {
	case c.tasks <- fadeTask{generation: generation, ctx: ctx, target: target, duration: duration}:
		c.logger.Debug("fade scheduled", "target", target, "duration_ms", duration.Milliseconds(), "generation", generation)
		return true
	case <-c.ctx.Done():
		c.fades.Done()
		return false
	}
}

func (c *Controller) fadeWorker() {
	defer c.workers.Done()
	for task := range c.tasks {
		c.runFade(task)
		c.fades.Done()
	}
}

// runFade writes a linear ramp from the live volume to the target, then force-sets the exact target.
// Every write re-checks the generation under the device mutex, so a superseded fade never writes again.
func (c *Controller) runFade(task fadeTask) {
	if c.generation.Load() != task.generation {
		return
	}

	start := c.Get()
	steps := FadeSteps(task.duration, c.opts.FadeStep)
	for i := 1; i <= steps; i++ {
		value := start + int(math.Round(float64(task.target-start)*float64(i)/float64(steps)))
		if !c.fadeWrite(task.generation, value) {
			return
		}
		if i == steps {
			break
		}

		timer := time.NewTimer(c.opts.FadeStep)
		select {
		case <-task.ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}

	if c.fadeWrite(task.generation, task.target) {
		state := c.Snapshot()
		c.logger.Info("fade complete", "volume", state.Volume, "steps", steps)
		c.notify(state)
	}
}

func (c *Controller) fadeWrite(generation uint64, value int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.generation.Load() != generation {
		return false
	}
	if err := c.writeLocked(c.clamp(value)); err != nil {
		c.logger.Error("fade step failed; abandoning fade", "target", value, "error", err)
		return false
	}
	return true
}
