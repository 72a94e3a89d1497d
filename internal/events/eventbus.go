package events

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/sctg-development/photoacoustic-go/internal/logging"
)

// Bus is an owned (never global) asynchronous trigger dispatcher. The
// daemon supervisor constructs exactly one Bus per running instance and
// hands it to action nodes as a capability — there is no package-level
// singleton, per the "no global mutable state" design rule.
type Bus struct {
	triggerCh chan Trigger
	workers   int

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	drivers []Driver

	running atomic.Bool
	stats   struct {
		received, dispatched, dropped, driverErrors atomic.Uint64
	}

	logger *slog.Logger
}

// Config controls bus sizing.
type Config struct {
	BufferSize int
	Workers    int
}

// DefaultConfig returns sane defaults for a single-instrument daemon.
func DefaultConfig() Config {
	return Config{BufferSize: 256, Workers: 2}
}

// NewBus constructs and starts a bus. Call Shutdown to stop it.
func NewBus(cfg Config) *Bus {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = DefaultConfig().BufferSize
	}
	if cfg.Workers < 0 {
		cfg.Workers = DefaultConfig().Workers
	}
	ctx, cancel := context.WithCancel(context.Background())
	b := &Bus{
		triggerCh: make(chan Trigger, cfg.BufferSize),
		workers:   cfg.Workers,
		ctx:       ctx,
		cancel:    cancel,
		logger:    logging.ForComponent("events"),
	}
	b.running.Store(true)
	for i := 0; i < b.workers; i++ {
		b.wg.Add(1)
		go b.worker(i)
	}
	return b
}

// RegisterDriver attaches a driver. Safe to call while the bus is running.
func (b *Bus) RegisterDriver(d Driver) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, existing := range b.drivers {
		if existing.Name() == d.Name() {
			return fmt.Errorf("driver %s already registered", d.Name())
		}
	}
	b.drivers = append(b.drivers, d)
	b.logger.Info("registered action driver", "driver", d.Name())
	return nil
}

// TryPublish enqueues a trigger without blocking. Returns false (and
// increments the dropped counter) if the buffer is full — callers on the
// processing graph's hot path must never block waiting for this to drain.
func (b *Bus) TryPublish(t Trigger) bool {
	if !b.running.Load() {
		return false
	}
	if t.EventID == "" {
		t.EventID = uuid.NewString()
	}
	select {
	case b.triggerCh <- t:
		b.stats.received.Add(1)
		return true
	default:
		b.stats.dropped.Add(1)
		b.logger.Warn("trigger dropped, bus buffer full", "action_id", t.ActionID, "kind", t.Kind)
		return false
	}
}

func (b *Bus) worker(id int) {
	defer b.wg.Done()
	logger := b.logger.With("worker_id", id)
	for {
		select {
		case <-b.ctx.Done():
			return
		case t, ok := <-b.triggerCh:
			if !ok {
				return
			}
			b.dispatch(t, logger)
		}
	}
}

func (b *Bus) dispatch(t Trigger, logger *slog.Logger) {
	b.mu.Lock()
	drivers := make([]Driver, len(b.drivers))
	copy(drivers, b.drivers)
	b.mu.Unlock()

	for _, d := range drivers {
		func() {
			defer func() {
				if r := recover(); r != nil {
					b.stats.driverErrors.Add(1)
					logger.Error("action driver panicked", "driver", d.Name(), "panic", r)
				}
			}()
			if err := d.Handle(t); err != nil {
				b.stats.driverErrors.Add(1)
				logger.Error("action driver error", "driver", d.Name(), logging.WithErr(err))
			} else {
				b.stats.dispatched.Add(1)
			}
		}()
	}
}

// Shutdown stops accepting new triggers and waits (up to timeout) for
// in-flight dispatches to finish.
func (b *Bus) Shutdown(timeout time.Duration) error {
	if !b.running.Swap(false) {
		return nil
	}
	b.cancel()
	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("event bus shutdown timeout exceeded")
	}
}

// Stats returns a snapshot of bus counters for introspection.
func (b *Bus) Stats() BusStats {
	return BusStats{
		Received:     b.stats.received.Load(),
		Dispatched:   b.stats.dispatched.Load(),
		Dropped:      b.stats.dropped.Load(),
		DriverErrors: b.stats.driverErrors.Load(),
	}
}
