package app

import (
	"context"
	"log/slog"
	"time"

	"github.com/rbright/modus/internal/action"
	"github.com/rbright/modus/internal/agent"
	"github.com/rbright/modus/internal/audio"
	"github.com/rbright/modus/internal/command"
	"github.com/rbright/modus/internal/config"
	"github.com/rbright/modus/internal/engine"
	"github.com/rbright/modus/internal/events"
	"github.com/rbright/modus/internal/health"
	"github.com/rbright/modus/internal/history"
	"github.com/rbright/modus/internal/indicator"
	"github.com/rbright/modus/internal/metrics"
	"github.com/rbright/modus/internal/mode"
	"github.com/rbright/modus/internal/mqtt"
	"github.com/rbright/modus/internal/process"
	"github.com/rbright/modus/internal/requirement"
	"github.com/rbright/modus/internal/sound"
	"github.com/rbright/modus/internal/volume"
)

// runtime is the wired component graph for one process.
type runtime struct {
	cfg    config.Config
	logger *slog.Logger

	registry *mode.Registry
	catalog  *command.Catalog
	volume   *volume.Controller
	sounds   *sound.Player
	notifier *indicator.Notifier
	history  *history.Store
	engine   *engine.Engine
	agent    *agent.Agent

	// Set only for a serving agent.
	events  *events.Server
	health  *health.Server
	mqtt    *mqtt.Publisher
	metrics *metrics.Writer
}

// volumeObservers fans one volume notification out to every sink.
type volumeObservers []volume.Observer

func (o volumeObservers) VolumeChanged(state volume.State) {
	for _, observer := range o {
		observer.VolumeChanged(state)
	}
}

// build wires every component from cfg. serve adds the network surfaces of a long-lived agent.
// Optional outputs that fail to start are logged and left out.
func build(ctx context.Context, cfg config.Config, logger *slog.Logger, serve bool) (*runtime, error) {
	rt := &runtime{cfg: cfg, logger: logger}

	rt.registry, _ = mode.Load(cfg.Modes.Path, mode.Options{Strict: cfg.Modes.Strict, Logger: logger})
	rt.catalog, _ = command.Load(cfg.Commands.Path, cfg.Commands.WakeWord, logger)
	rt.sounds = sound.NewPlayer(cfg.Sounds, logger)
	rt.notifier = indicator.New(cfg.Indicator, logger)

	var (
		volumeSinks volumeObservers
		engineSinks = []engine.Observer{rt.notifier}
		healthSinks []agent.HealthSink
	)
	if serve {
		if addr := cfg.Health.GRPCAddr; addr != "" {
			server, err := health.New(addr, logger)
			if err != nil {
				return nil, err
			}
			rt.health = server
			volumeSinks = append(volumeSinks, server)
		}
		if cfg.Events.Addr != "" {
			rt.events = events.NewServer(rt.snapshot, logger)
			volumeSinks = append(volumeSinks, rt.events)
			engineSinks = append(engineSinks, rt.events)
			healthSinks = append(healthSinks, rt.events)
		}
		if cfg.MQTT.Enable {
			publisher, err := mqtt.Connect(cfg.MQTT, logger)
			if err != nil {
				logger.Warn("mqtt publisher disabled", "broker", cfg.MQTT.Broker, "error", err)
			} else {
				rt.mqtt = publisher
				volumeSinks = append(volumeSinks, publisher)
				engineSinks = append(engineSinks, publisher)
				healthSinks = append(healthSinks, publisher)
			}
		}
		if cfg.Influx.Enable {
			writer, err := metrics.Connect(ctx, cfg.Influx, logger)
			if err != nil {
				logger.Warn("influx writer disabled", "url", cfg.Influx.URL, "error", err)
			} else {
				rt.metrics = writer
				volumeSinks = append(volumeSinks, writer)
				engineSinks = append(engineSinks, writer)
				healthSinks = append(healthSinks, writer)
			}
		}
	}

	volumeOpts := volume.OptionsFromConfig(cfg.Audio)
	volumeOpts.Logger = logger
	if len(volumeSinks) > 0 {
		volumeOpts.Observer = volumeSinks
	}
	rt.volume = volume.New(audio.Connector{Sink: cfg.Audio.Sink}, volumeOpts)

	processes := process.NewSupervisor(logger)
	dispatcher, err := action.NewDispatcher(logger, action.DefaultHandlers(action.Deps{
		Processes:     processes,
		Volume:        rt.volume,
		ScriptTimeout: time.Duration(cfg.Actions.ScriptTimeoutMS) * time.Millisecond,
		URIOpener:     cfg.Actions.URIOpener.Argv,
		Display:       cfg.Actions.Display.Argv,
		Logger:        logger,
	})...)
	if err != nil {
		_ = rt.Close()
		return nil, err
	}

	var recorder engine.Recorder
	if cfg.History.Enable {
		store, err := history.Open(cfg.History.Path)
		if err != nil {
			logger.Warn("execution history disabled", "path", cfg.History.Path, "error", err)
		} else {
			rt.history = store
			recorder = store
		}
	}

	rt.engine = engine.New(engine.Deps{
		Registry:     rt.registry,
		Requirements: requirement.NewChecker(nil, logger),
		Dispatcher:   dispatcher,
		Sounds:       rt.sounds,
		Recorder:     recorder,
		Observers:    engineSinks,
		Logger:       logger,
	})

	rt.agent = agent.New(agent.Deps{
		Engine:      rt.engine,
		Volume:      rt.volume,
		Modes:       rt.registry,
		Catalog:     rt.catalog,
		Sounds:      rt.sounds,
		Notifier:    rt.notifier,
		Spawner:     processes,
		Metrics:     requirement.SystemMetrics{},
		HealthSinks: healthSinks,
		Options: agent.Options{
			ErrorSound:     cfg.Sounds.ErrorID,
			WarningSound:   cfg.Sounds.WarningID,
			URIOpener:      cfg.Actions.URIOpener.Argv,
			HealthInterval: time.Duration(cfg.Health.IntervalMS) * time.Millisecond,
			CriticalRAMGB:  cfg.Health.CriticalRAMGB,
		},
		Logger: logger,
	})
	return rt, nil
}

func (rt *runtime) snapshot() events.Snapshot {
	return events.Snapshot{Volume: rt.volume.Snapshot(), Modes: rt.registry.Names()}
}

// loops returns the serving goroutines the agent supervises alongside its consumer.
func (rt *runtime) loops() []func(context.Context) error {
	var loops []func(context.Context) error
	if rt.health != nil {
		loops = append(loops, rt.health.Serve)
	}
	if rt.events != nil {
		addr := rt.cfg.Events.Addr
		loops = append(loops, func(ctx context.Context) error { return rt.events.Serve(ctx, addr) })
	}
	return loops
}

// settle waits for a pending fade and the current sound so a one-shot process does not cut them off.
func (rt *runtime) settle(limit time.Duration) {
	if rt.volume != nil {
		rt.volume.WaitFade()
	}
	deadline := time.Now().Add(limit)
	for rt.sounds.IsPlaying() && time.Now().Before(deadline) {
		time.Sleep(20 * time.Millisecond)
	}
}

// Close releases everything build opened. It is safe on a partially built runtime.
func (rt *runtime) Close() error {
	if rt.volume != nil {
		_ = rt.volume.Close()
	}
	if rt.sounds != nil {
		rt.sounds.StopAll()
	}
	if rt.health != nil {
		rt.health.Close()
	}
	if rt.mqtt != nil {
		if err := rt.mqtt.Close(); err != nil {
			rt.logger.Warn("mqtt close failed", "error", err)
		}
	}
	if rt.metrics != nil {
		if err := rt.metrics.Close(); err != nil {
			rt.logger.Warn("influx close failed", "error", err)
		}
	}
	if rt.history != nil {
		if err := rt.history.Close(); err != nil {
			rt.logger.Warn("history close failed", "error", err)
		}
	}
	return nil
}
