package thermal

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockBusActuatorDrivesSimulatedTemperatureTowardHeatingDirection(t *testing.T) {
	bus := NewMockBus("bus0", 20, 50)
	actuator, err := bus.Actuator(1, 2, 3)
	require.NoError(t, err)

	before := bus.temperature
	for i := 0; i < 20; i++ {
		require.NoError(t, actuator.Drive(1.0))
	}
	assert.Greater(t, bus.temperature, before)
}

func TestMockBusFailNextReadsReturnsErrorThenRecovers(t *testing.T) {
	bus := NewMockBus("bus0", 20, 10)
	bus.FailNextReads(2)
	adc, err := bus.ADCChannel(0)
	require.NoError(t, err)

	_, err = adc.ReadRaw()
	assert.Error(t, err)
	_, err = adc.ReadRaw()
	assert.Error(t, err)
	_, err = adc.ReadRaw()
	assert.NoError(t, err)
}

func TestMockBusActuatorClampsDutyToUnitRange(t *testing.T) {
	bus := NewMockBus("bus0", 20, 10)
	actuator, err := bus.Actuator(1, 2, 3)
	require.NoError(t, err)
	require.NoError(t, actuator.Drive(5.0))
	assert.Equal(t, 1.0, actuator.(*mockActuator).lastDuty)
}
