package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/rbright/modus/internal/agent"
	"github.com/rbright/modus/internal/command"
	"github.com/rbright/modus/internal/config"
	"github.com/rbright/modus/internal/ipc"
)

// commandRun owns the runtime socket and runs the agent until shutdown or signal.
func (r Runner) commandRun(ctx context.Context, cfg config.Config, stdin bool, logger *slog.Logger) int {
	socketPath, err := ipc.RuntimeSocketPath()
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}

	listener, err := ipc.Acquire(ctx, socketPath, ipc.AcquireOptions{ProbeTimeout: 180 * time.Millisecond, Retries: 8, Logger: logger})
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	defer func() {
		_ = listener.Close()
		_ = os.Remove(socketPath)
	}()

	rt, err := build(ctx, cfg, logger, true)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	defer func() { _ = rt.Close() }()

	if err := rt.volume.Connect(); err != nil {
		logger.Warn("output device unavailable at startup; will retry on use", "sink", cfg.Audio.Sink, "error", err)
	}

	loops := append(rt.loops(), func(ctx context.Context) error {
		return ipc.Serve(ctx, listener, rt.agent)
	})
	if stdin && r.Stdin != nil {
		loops = append(loops, r.stdinLoop(rt.agent))
	}

	logger.Info("agent running",
		"socket", socketPath,
		"modes", rt.registry.Len(),
		"commands", rt.catalog.Len(),
		"health_addr", cfg.Health.GRPCAddr,
		"events_addr", cfg.Events.Addr,
	)
	fmt.Fprintf(r.Stdout, "modus agent running (%d modes, socket %s)\n", rt.registry.Len(), socketPath)

	if err := rt.agent.Run(ctx, loops...); err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	return 0
}

// stdinLoop feeds typed lines to the agent. End of input queues a shutdown behind them.
func (r Runner) stdinLoop(a *agent.Agent) func(context.Context) error {
	return func(ctx context.Context) error {
		if err := a.ListenLines(ctx, r.Stdin, agent.SourceCLI); err != nil {
			return fmt.Errorf("read stdin: %w", err)
		}
		if ctx.Err() != nil {
			return nil
		}
		err := a.Submit(agent.Command{
			Source: agent.SourceSystem,
			Intent: command.IntentSystem,
			Params: command.Params{Command: command.SystemShutdown},
		})
		if err != nil {
			a.Stop()
		}
		return nil
	}
}
