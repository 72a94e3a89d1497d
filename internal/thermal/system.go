package thermal

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/sctg-development/photoacoustic-go/internal/conf"
	"github.com/sctg-development/photoacoustic-go/internal/errors"
	"github.com/sctg-development/photoacoustic-go/internal/logging"
)

// System owns every configured I²C bus and the regulators bound to them,
// and supervises one goroutine per enabled regulator (spec.md §4.9: "one
// task per enabled regulator").
type System struct {
	logger *slog.Logger

	buses      map[string]Bus
	regulators map[string]*Regulator

	wg sync.WaitGroup
}

// BusFactory resolves an I2CBusConfig into a live Bus capability. Production
// wiring supplies the native/usb_bridge implementations; tests pass a
// factory that always returns a MockBus.
type BusFactory func(cfg conf.I2CBusConfig) (Bus, error)

// NewSystem builds every configured bus via factory and every enabled
// regulator bound to its named bus.
func NewSystem(cfg conf.ThermalConfig, factory BusFactory) (*System, error) {
	s := &System{
		logger:     logging.ForComponent("thermal"),
		buses:      make(map[string]Bus),
		regulators: make(map[string]*Regulator),
	}

	for _, busCfg := range cfg.Buses {
		bus, err := factory(busCfg)
		if err != nil {
			return nil, errors.New(err).Component("thermal").Category(errors.CategoryConfiguration).
				Context("bus", busCfg.Name).Build()
		}
		s.buses[busCfg.Name] = bus
	}

	for _, regCfg := range cfg.Regulators {
		if !regCfg.Enabled {
			continue
		}
		bus, ok := s.buses[regCfg.Bus]
		if !ok {
			return nil, errors.New(fmt.Errorf("regulator %s references unknown bus %q", regCfg.ID, regCfg.Bus)).
				Component("thermal").Category(errors.CategoryConfiguration).Build()
		}
		reg, err := NewRegulator(regCfg, bus)
		if err != nil {
			return nil, err
		}
		s.regulators[regCfg.ID] = reg
	}

	return s, nil
}

// Start launches every regulator's loop. ctx cancellation stops all of
// them; Wait blocks until every loop has exited.
func (s *System) Start(ctx context.Context) {
	for id, reg := range s.regulators {
		s.wg.Add(1)
		go func(id string, reg *Regulator) {
			defer s.wg.Done()
			if err := reg.Run(ctx); err != nil {
				s.logger.Error("thermal regulator loop exited with error", "regulator_id", id, "error", err)
			}
		}(id, reg)
	}
}

// Wait blocks until every regulator loop has exited.
func (s *System) Wait() { s.wg.Wait() }

// Regulator returns the named regulator, or nil if unknown/disabled.
func (s *System) Regulator(id string) *Regulator { return s.regulators[id] }

// Regulators returns every regulator's introspectable state, for the HTTP
// thermal-status endpoint (spec.md §6).
func (s *System) Regulators() []RegulatorState {
	out := make([]RegulatorState, 0, len(s.regulators))
	for _, reg := range s.regulators {
		out = append(out, reg.State().Snapshot())
	}
	return out
}

// Send routes a command to the named regulator. Returns false if no such
// regulator is enabled/running.
func (s *System) Send(regulatorID string, cmd Command) bool {
	reg, ok := s.regulators[regulatorID]
	if !ok {
		return false
	}
	select {
	case reg.Commands() <- cmd:
		return true
	default:
		s.logger.Warn("thermal command channel full, dropping command", "regulator_id", regulatorID)
		return false
	}
}
