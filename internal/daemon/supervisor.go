// Package daemon supervises the instrument's long-running subsystems:
// the acquisition source, the processing-graph executor, the thermal
// regulation system, and the HTTP introspection server (spec.md §4.10).
package daemon

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/sctg-development/photoacoustic-go/internal/acquisition"
	"github.com/sctg-development/photoacoustic-go/internal/computing"
	"github.com/sctg-development/photoacoustic-go/internal/conf"
	"github.com/sctg-development/photoacoustic-go/internal/errors"
	"github.com/sctg-development/photoacoustic-go/internal/events"
	"github.com/sctg-development/photoacoustic-go/internal/logging"
	"github.com/sctg-development/photoacoustic-go/internal/mqtt"
	"github.com/sctg-development/photoacoustic-go/internal/processing"
	"github.com/sctg-development/photoacoustic-go/internal/processing/nodes"
	"github.com/sctg-development/photoacoustic-go/internal/thermal"
)

// launched enforces the "only one instance of each singleton task" rule
// (spec.md §4.10: "exclusion") across the whole process, since a daemon
// binary only ever runs one Supervisor.
var launched atomic.Bool

// Supervisor owns every long-running task and the capabilities they share.
// Exactly one Supervisor may be launched per process (spec.md §4.10).
type Supervisor struct {
	logger *slog.Logger

	settings     *conf.Settings
	registry     *processing.Registry
	graph        *processing.Graph
	computingBus *computing.Bus
	eventBus     *events.Bus
	thermal      *thermal.System

	source acquisition.Source
	fanOut *acquisition.FanOut

	mu       sync.Mutex
	cancel   context.CancelFunc
	group    *errgroup.Group
	watcher  *conf.Watcher
	shutdown atomic.Bool
}

// Launch builds every capability from settings and starts every task. The
// returned Supervisor's Shutdown must be called exactly once.
func Launch(settings *conf.Settings) (*Supervisor, error) {
	if !launched.CompareAndSwap(false, true) {
		return nil, fmt.Errorf("daemon: a supervisor is already running in this process")
	}

	s := &Supervisor{
		logger:       logging.ForComponent("daemon"),
		settings:     settings,
		computingBus: computing.NewBus(),
		eventBus:     events.NewBus(events.DefaultConfig()),
	}

	s.registry = processing.NewRegistry()
	nodes.RegisterBuiltins(s.registry, s.computingBus, s.eventBus)

	if settings.MQTT.Enabled {
		if err := s.eventBus.RegisterDriver(mqtt.NewDriver(settings)); err != nil {
			s.logger.Warn("mqtt driver registration failed", logging.WithErr(err))
		}
	}

	graph, err := buildGraph(s.registry, settings.Processing)
	if err != nil {
		launched.Store(false)
		return nil, err
	}
	s.graph = graph

	thermalSystem, err := thermal.NewSystem(settings.Thermal, thermal.ResolveBus)
	if err != nil {
		launched.Store(false)
		return nil, err
	}
	s.thermal = thermalSystem

	s.source = buildSource(settings.Acquisition)
	s.fanOut = acquisition.NewFanOut(s.source, settings.Acquisition.QueueDepth)

	baseCtx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	// thermal regulation is safety-critical and independent of the
	// acquisition pipeline (spec.md §4.9) — it only stops on an explicit
	// Shutdown, never because the graph-side errgroup cancelled itself.
	if err := s.source.Start(baseCtx); err != nil {
		launched.Store(false)
		return nil, errors.New(err).Component("daemon").Category(errors.CategoryAcquisition).Build()
	}
	s.thermal.Start(baseCtx)

	group, pipelineCtx := errgroup.WithContext(baseCtx)
	s.group = group

	graphConsumer := s.fanOut.Subscribe("processing-graph")
	s.group.Go(func() error { return s.runGraphExecutor(pipelineCtx, graphConsumer) })
	s.group.Go(func() error { return s.watchSourceErrors(pipelineCtx) })

	if w, err := conf.NewWatcher(s.onConfigReload); err == nil {
		s.watcher = w
	} else {
		s.logger.Warn("config file watcher unavailable, hot-reload disabled", logging.WithErr(err))
	}

	s.logger.Info("daemon launched",
		"acquisition_source", settings.Acquisition.Source,
		"thermal_regulators", len(settings.Thermal.Regulators),
	)
	return s, nil
}

func buildGraph(registry *processing.Registry, cfg conf.ProcessingConfig) (*processing.Graph, error) {
	nodeCfgs := make([]processing.NodeDescriptor, len(cfg.Nodes))
	for i, n := range cfg.Nodes {
		nodeCfgs[i] = processing.NodeDescriptor{ID: n.ID, Type: n.Type, Params: n.Params}
	}
	edgeCfgs := make([]processing.EdgeDescriptor, len(cfg.Edges))
	for i, e := range cfg.Edges {
		edgeCfgs[i] = processing.EdgeDescriptor{From: e.From, To: e.To}
	}
	return processing.BuildGraph(registry, cfg.InputNode, nodeCfgs, edgeCfgs)
}

func buildSource(cfg conf.AcquisitionConfig) acquisition.Source {
	switch cfg.Source {
	case "generator":
		return acquisition.NewGeneratorSource("acquisition", acquisition.GeneratorConfig{
			SampleRate: cfg.SampleRate, QueueDepth: cfg.QueueDepth,
		})
	default: // "microphone"
		return acquisition.NewMicrophoneSource("acquisition", acquisition.MicrophoneConfig{
			DeviceName: cfg.Device, SampleRate: uint32(cfg.SampleRate), QueueDepth: cfg.QueueDepth,
		})
	}
}

// runGraphExecutor feeds every acquired frame through the graph in strict
// arrival order (spec.md §5: "frame ordering guarantee ... no
// reordering"). A frame that errors is abandoned; processing continues
// with the next frame (spec.md §7: "frame errors caught at graph
// boundary").
func (s *Supervisor) runGraphExecutor(ctx context.Context, frames <-chan processing.AudioFrame) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case frame, ok := <-frames:
			if !ok {
				return nil
			}
			if _, err := s.graph.Execute(frame); err != nil {
				s.logger.Warn("processing graph frame abandoned", "frame_number", frame.FrameNumber, logging.WithErr(err))
			}
		}
	}
}

// watchSourceErrors logs every acquisition error the source reports and
// keeps the pipeline running; it returns nil once ctx is cancelled or the
// source's error channel is closed.
func (s *Supervisor) watchSourceErrors(ctx context.Context) error {
	errs := s.source.Errors()
	for {
		select {
		case <-ctx.Done():
			return nil
		case err, ok := <-errs:
			if !ok {
				return nil
			}
			s.logger.Error("acquisition source reported an error", logging.WithErr(err))
		}
	}
}

// onConfigReload is invoked by the config file watcher after a successful
// reload. Only per-node parameter changes are applied live — structural
// graph changes (new nodes/edges) require a restart, since the graph's
// topology is validated once at build time (spec.md §4.1).
func (s *Supervisor) onConfigReload(newSettings *conf.Settings) {
	for _, n := range newSettings.Processing.Nodes {
		if _, err := s.graph.UpdateNodeConfig(n.ID, n.Type, n.Params); err != nil {
			s.logger.Warn("config reload: node update rejected", "node_id", n.ID, logging.WithErr(err))
		}
	}
	for _, r := range newSettings.Thermal.Regulators {
		kp, ki, kd, sp := r.Kp, r.Ki, r.Kd, r.SetpointC
		s.thermal.Send(r.ID, thermal.Command{Kind: thermal.CommandUpdatePid, Kp: &kp, Ki: &ki, Kd: &kd})
		s.thermal.Send(r.ID, thermal.Command{Kind: thermal.CommandUpdateSetpoint, SetpointC: &sp})
	}
	s.mu.Lock()
	s.settings = newSettings
	s.mu.Unlock()
}

// Graph, ComputingBus, EventBus, Thermal expose the running capabilities
// for the HTTP introspection surface to read.
func (s *Supervisor) Graph() *processing.Graph     { return s.graph }
func (s *Supervisor) ComputingBus() *computing.Bus { return s.computingBus }
func (s *Supervisor) EventBus() *events.Bus        { return s.eventBus }
func (s *Supervisor) Thermal() *thermal.System     { return s.thermal }

// Shutdown cancels every task and waits up to grace for them to exit
// cleanly (spec.md §4.10: "single cancellation flag ... bounded grace
// period, join, log outstanding errors"). Idempotent.
func (s *Supervisor) Shutdown(grace time.Duration) error {
	if !s.shutdown.CompareAndSwap(false, true) {
		return nil
	}
	defer launched.Store(false)

	if s.watcher != nil {
		_ = s.watcher.Close()
	}
	s.cancel()
	_ = s.source.Stop()
	s.fanOut.Stop()
	_ = s.eventBus.Shutdown(grace)

	done := make(chan struct{})
	var groupErr error
	go func() {
		groupErr = s.group.Wait()
		s.thermal.Wait()
		close(done)
	}()

	select {
	case <-done:
		if groupErr != nil {
			s.logger.Warn("daemon shut down with an outstanding task error", logging.WithErr(groupErr))
		} else {
			s.logger.Info("daemon shut down cleanly")
		}
		return nil
	case <-time.After(grace):
		s.logger.Warn("daemon shutdown grace period exceeded, some tasks may still be exiting")
		return fmt.Errorf("daemon: shutdown grace period of %s exceeded", grace)
	}
}
