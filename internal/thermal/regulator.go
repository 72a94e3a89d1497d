package thermal

import (
	"context"
	"log/slog"
	"time"

	"github.com/sctg-development/photoacoustic-go/internal/conf"
	"github.com/sctg-development/photoacoustic-go/internal/errors"
	"github.com/sctg-development/photoacoustic-go/internal/logging"
)

const celsiusToKelvin = 273.15

// Regulator runs one PID-controlled thermal loop: ADC read -> temperature
// conversion -> PID compute -> safety clamp -> actuator drive -> history
// append, at the configured sampling frequency (spec.md §4.9).
type Regulator struct {
	cfg       conf.RegulatorConfig
	bus       Bus
	adc       ADCChannel
	actuator  Actuator
	converter *TemperatureConverter
	pid       *PID
	state     *SharedState
	logger    *slog.Logger

	commands chan Command

	consecutiveErrors int
	maxErrors         int
	emergencyHold     bool
}

// NewRegulator wires a regulator against the given bus capability. The bus
// is expected to already be resolved (by name) from the thermal system's
// bus table.
func NewRegulator(cfg conf.RegulatorConfig, bus Bus) (*Regulator, error) {
	adc, err := bus.ADCChannel(cfg.ADCChannel)
	if err != nil {
		return nil, errors.New(err).Component("thermal").Category(errors.CategoryThermalHardware).
			Context("regulator_id", cfg.ID).Build()
	}
	actuator, err := bus.Actuator(cfg.ActuatorIN1, cfg.ActuatorIN2, cfg.ActuatorEnable)
	if err != nil {
		return nil, errors.New(err).Component("thermal").Category(errors.CategoryThermalHardware).
			Context("regulator_id", cfg.ID).Build()
	}

	maxErrors := cfg.Safety.MaxConsecutiveErrors
	if maxErrors <= 0 {
		maxErrors = 5
	}
	samplingHz := cfg.SamplingHz
	if samplingHz <= 0 {
		samplingHz = 10
	}
	historyHours := cfg.HistoryHours
	if historyHours <= 0 {
		historyHours = 24
	}

	r := &Regulator{
		cfg:       cfg,
		bus:       bus,
		adc:       adc,
		actuator:  actuator,
		converter: NewTemperatureConverter(cfg.TempConversion),
		pid:       NewPID(cfg.Kp, cfg.Ki, cfg.Kd, cfg.SetpointC, cfg.IMax, cfg.OutMin, cfg.OutMax),
		state:     NewSharedState(cfg.ID, cfg.Name, samplingHz, historyHours),
		logger:    logging.ForComponent("thermal"),
		commands:  make(chan Command, 16),
		maxErrors: maxErrors,
	}
	r.state.SetGains(cfg.Kp, cfg.Ki, cfg.Kd, cfg.SetpointC)
	return r, nil
}

// Commands returns the channel used to send UpdatePid/UpdateSetpoint/Stop/
// Resume messages to the running loop.
func (r *Regulator) Commands() chan<- Command { return r.commands }

// State returns the regulator's introspectable shared state.
func (r *Regulator) State() *SharedState { return r.state }

// Run executes the sampling loop until ctx is cancelled, a Stop command
// arrives, or consecutive ADC read failures reach the configured cap. It
// returns nil in every case. A regulator in emergency hold keeps its
// Error("emergency") status when ctx is cancelled.
func (r *Regulator) Run(ctx context.Context) error {
	r.state.SetStatus(StatusInitializing, "")
	samplingHz := r.cfg.SamplingHz
	if samplingHz <= 0 {
		samplingHz = 10
	}
	period := time.Duration(float64(time.Second) / samplingHz)

	ticker := time.NewTicker(period)
	defer ticker.Stop()
	r.state.SetStatus(StatusRunning, "")

	for {
		// drain pending commands first, bounded so a command flood cannot
		// starve the sampling tick (spec.md §4.9: "process commands first,
		// bounded batch per tick")
		drained := 0
		for drained < 8 {
			select {
			case cmd := <-r.commands:
				if stop := r.handleCommand(cmd); stop {
					r.state.SetStatus(StatusStopped, "")
					return nil
				}
				drained++
			default:
				drained = 8
			}
		}

		select {
		case <-ctx.Done():
			if !r.emergencyHold {
				r.state.SetStatus(StatusStopped, "")
			}
			return nil
		case cmd := <-r.commands:
			if stop := r.handleCommand(cmd); stop {
				r.state.SetStatus(StatusStopped, "")
				return nil
			}
		case now := <-ticker.C:
			if permanent := r.tick(now); permanent {
				r.state.SetStatus(StatusStopped, "adc read failed repeatedly")
				return nil
			}
		}
	}
}

func (r *Regulator) handleCommand(cmd Command) (stop bool) {
	switch cmd.Kind {
	case CommandUpdatePid:
		r.pid.UpdateGains(cmd.Kp, cmd.Ki, cmd.Kd, nil)
		r.state.SetGains(r.pid.Kp, r.pid.Ki, r.pid.Kd, r.pid.Setpoint)
	case CommandUpdateSetpoint:
		if cmd.SetpointC != nil {
			r.pid.UpdateGains(nil, nil, nil, cmd.SetpointC)
			r.state.SetGains(r.pid.Kp, r.pid.Ki, r.pid.Kd, r.pid.Setpoint)
		}
	case CommandResume:
		if r.emergencyHold {
			r.emergencyHold = false
			r.consecutiveErrors = 0
			r.state.SetStatus(StatusRunning, "")
		}
	case CommandStop:
		return true
	}
	return false
}

// tick runs one sampling cycle and reports whether the regulator must stop
// permanently (consecutive ADC failures past the configured cap).
func (r *Regulator) tick(now time.Time) bool {
	if r.emergencyHold {
		return false
	}

	raw, err := r.adc.ReadRaw()
	if err != nil {
		return r.onReadError(err)
	}
	r.consecutiveErrors = 0
	r.state.RecordConsecutiveErrors(0)

	celsius := r.converter.Convert(raw)
	kelvin := celsius + celsiusToKelvin

	if r.tripEmergency(kelvin) {
		return false
	}

	output, components := r.pid.Update(celsius, now)
	output = r.clampDuty(output)

	if err := r.actuator.Drive(output); err != nil {
		r.logger.Warn("thermal actuator drive failed", "regulator_id", r.cfg.ID, "error", err)
	}

	r.state.Append(ThermalDataPoint{
		Timestamp:     now,
		TemperatureC:  celsius,
		Setpoint:      r.pid.Setpoint,
		Output:        output,
		PIDComponents: components,
		RawADCCounts:  raw,
	})
	return false
}

// tripEmergency zeroes the actuator and latches an emergency hold once the
// reading leaves the safe envelope, per spec.md §4.9: "if temperature
// outside [min_k, max_k] or > emergency_temp_k, zero output and hold
// Error('emergency') until operator resumes".
func (r *Regulator) tripEmergency(kelvin float64) bool {
	limits := r.cfg.Safety
	outOfRange := (limits.MinK > 0 && kelvin < limits.MinK) ||
		(limits.MaxK > 0 && kelvin > limits.MaxK) ||
		(limits.EmergencyK > 0 && kelvin > limits.EmergencyK)
	if !outOfRange {
		return false
	}

	_ = r.actuator.Drive(0)
	r.emergencyHold = true
	r.state.SetStatus(StatusError, "emergency")
	r.logger.Error("thermal regulator tripped emergency limit", "regulator_id", r.cfg.ID, "kelvin", kelvin)
	return true
}

// clampDuty bounds the PID output by the configured heating/cooling duty
// ceilings before it reaches the actuator (spec.md §4.9, §6).
func (r *Regulator) clampDuty(output float64) float64 {
	limits := r.cfg.Safety
	if output > 0 && limits.MaxHeatingDutyPercent > 0 {
		ceiling := r.pid.OutMax * (limits.MaxHeatingDutyPercent / 100.0)
		if output > ceiling {
			output = ceiling
		}
	}
	if output < 0 && limits.MaxCoolingDutyPercent > 0 {
		floor := r.pid.OutMin * (limits.MaxCoolingDutyPercent / 100.0)
		if output < floor {
			output = floor
		}
	}
	return output
}

// onReadError applies the retry-then-escalate policy: log and back off for
// a transient failure, or report permanent=true once the consecutive-error
// cap is reached so Run can stop the loop (spec.md §4.9).
func (r *Regulator) onReadError(err error) (permanent bool) {
	r.consecutiveErrors++
	r.state.RecordConsecutiveErrors(r.consecutiveErrors)
	hwErr := errors.New(err).Component("thermal").Category(errors.CategoryThermalHardware).
		Context("regulator_id", r.cfg.ID).Context("consecutive_errors", r.consecutiveErrors).Build()

	if r.consecutiveErrors >= r.maxErrors {
		r.logger.Error("thermal regulator escalating to stopped", "regulator_id", r.cfg.ID, "error", hwErr)
		return true
	}
	r.state.SetStatus(StatusError, err.Error())
	r.logger.Warn("thermal ADC read failed, retrying", "regulator_id", r.cfg.ID, "error", hwErr)
	time.Sleep(1 * time.Second)
	return false
}
