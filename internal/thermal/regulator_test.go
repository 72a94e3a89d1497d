package thermal

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sctg-development/photoacoustic-go/internal/conf"
)

func testRegulatorConfig() conf.RegulatorConfig {
	return conf.RegulatorConfig{
		ID:             "cell-tec",
		Name:           "Cell TEC",
		Enabled:        true,
		Bus:            "bus0",
		ADCChannel:     0,
		ActuatorIN1:    1,
		ActuatorIN2:    2,
		ActuatorEnable: 3,
		Kp:             2, Ki: 0.5, Kd: 0,
		SetpointC:  25,
		IMax:       50,
		OutMin:     -1,
		OutMax:     1,
		SamplingHz: 50, // fast loop keeps tests quick
		TempConversion: conf.TempConversionConfig{
			Kind:              "linear",
			Coefficients:      []float64{0, 100.0 / 3.3}, // inverts MockBus's counts = (tempC/100)*4095 mapping
			VRef:              3.3,
			ADCResolutionBits: 12,
		},
		Safety: SafetyLimitsFullRange(),
	}
}

// SafetyLimitsFullRange returns limits wide enough that normal test
// temperatures never trip the emergency path.
func SafetyLimitsFullRange() conf.SafetyLimits {
	return conf.SafetyLimits{
		MinK: 0, MaxK: 1000, EmergencyK: 2000,
		MaxHeatingDutyPercent: 100, MaxCoolingDutyPercent: 100,
		MaxConsecutiveErrors: 3,
	}
}

func TestRegulatorRunsAndAppendsHistoryOnEachTick(t *testing.T) {
	bus := NewMockBus("bus0", 20, 10)
	reg, err := NewRegulator(testRegulatorConfig(), bus)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()

	done := make(chan struct{})
	go func() {
		_ = reg.Run(ctx)
		close(done)
	}()

	<-done
	history := reg.State().History()
	assert.NotEmpty(t, history)
	assert.Equal(t, StatusStopped, reg.State().Snapshot().Status)
}

func TestRegulatorUpdateSetpointCommandUpdatesStateSetpoint(t *testing.T) {
	bus := NewMockBus("bus0", 20, 10)
	reg, err := NewRegulator(testRegulatorConfig(), bus)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = reg.Run(ctx) }()

	time.Sleep(40 * time.Millisecond)
	newSetpoint := 30.0
	reg.Commands() <- Command{Kind: CommandUpdateSetpoint, SetpointC: &newSetpoint}
	time.Sleep(40 * time.Millisecond)

	assert.Equal(t, 30.0, reg.State().Snapshot().Setpoint)
	reg.Commands() <- Command{Kind: CommandStop}
	time.Sleep(20 * time.Millisecond)
}

func TestRegulatorEscalatesToStoppedAfterRepeatedReadFailures(t *testing.T) {
	bus := NewMockBus("bus0", 20, 10)
	bus.FailNextReads(100)
	cfg := testRegulatorConfig()
	cfg.Safety.MaxConsecutiveErrors = 2
	cfg.SamplingHz = 200

	reg, err := NewRegulator(cfg, bus)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	done := make(chan struct{})
	go func() {
		_ = reg.Run(ctx)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("regulator did not escalate to stopped in time")
	}
	assert.Equal(t, StatusStopped, reg.State().Snapshot().Status)
}

func TestRegulatorTripsEmergencyAndHoldsOutputZero(t *testing.T) {
	bus := NewMockBus("bus0", 20, 10)
	bus.SetTemperature(500) // clearly out of any sane range
	cfg := testRegulatorConfig()
	cfg.Safety.MaxK = 350 // Kelvin, ~77C ceiling
	cfg.SamplingHz = 200

	reg, err := NewRegulator(cfg, bus)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	_ = reg.Run(ctx)

	state := reg.State().Snapshot()
	assert.Equal(t, StatusError, state.Status)
	assert.Equal(t, "emergency", state.ErrorMessage)
}
