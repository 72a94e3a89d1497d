package thermal

import (
	"fmt"
	"math/rand"
	"sync"
)

// Bus is the capability a regulator uses to reach its I²C peripherals. A
// real implementation talks to native or USB-bridged I²C hardware; tests
// and simulation use MockBus (spec.md §6: bus type "native"|"usb_bridge"|
// "mock").
type Bus interface {
	Name() string
	ADCChannel(channel int) (ADCChannel, error)
	Actuator(in1, in2, enable int) (Actuator, error)
}

// ADCChannel reads a raw analog-to-digital count from one channel.
type ADCChannel interface {
	ReadRaw() (int, error)
}

// Actuator drives an H-bridge: a signed duty in [-1, 1] selects direction
// (positive/negative pin pattern) and magnitude (PWM duty), per spec.md
// §4.9: "positive output -> one pin pattern, negative -> opposite;
// magnitude -> PWM duty".
type Actuator interface {
	Drive(duty float64) error
}

// MockBus simulates a first-order thermal plant driven by the actuator
// duty, for tests and for running the regulator loop without hardware.
// Safe for concurrent use: ReadRaw and Drive may be called from different
// goroutines during a test.
type MockBus struct {
	name string

	mu          sync.Mutex
	temperature float64 // simulated plant temperature, Celsius
	ambientC    float64
	gain        float64
	noise       float64
	failNext    int // ReadRaw calls remaining to fail, for error-path tests
}

// NewMockBus creates a simulated bus starting at ambientC with the given
// thermal gain (degrees per second per unit duty).
func NewMockBus(name string, ambientC, gain float64) *MockBus {
	return &MockBus{name: name, temperature: ambientC, ambientC: ambientC, gain: gain}
}

func (m *MockBus) Name() string { return m.name }

func (m *MockBus) ADCChannel(channel int) (ADCChannel, error) {
	return &mockADC{bus: m, channel: channel}, nil
}

func (m *MockBus) Actuator(in1, in2, enable int) (Actuator, error) {
	return &mockActuator{bus: m}, nil
}

// FailNextReads makes the next n ADC reads return an error, simulating a
// transient hardware fault for driver-retry tests.
func (m *MockBus) FailNextReads(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failNext = n
}

// SetTemperature forces the simulated plant temperature, for tests that
// need a specific starting point (e.g. an emergency-limit trip).
func (m *MockBus) SetTemperature(c float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.temperature = c
}

func (m *MockBus) apply(duty float64, dt float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	drift := (m.ambientC - m.temperature) * 0.05
	m.temperature += (duty*m.gain + drift) * dt
}

func (m *MockBus) readRaw() (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failNext > 0 {
		m.failNext--
		return 0, fmt.Errorf("mock bus %s: simulated read failure", m.name)
	}
	noisy := m.temperature + (rand.Float64()-0.5)*m.noise
	// linear 12-bit ADC mapping over 0-100C, matching a typical thermistor
	// front-end's usable span
	counts := int((noisy / 100.0) * 4095)
	if counts < 0 {
		counts = 0
	}
	if counts > 4095 {
		counts = 4095
	}
	return counts, nil
}

type mockADC struct {
	bus     *MockBus
	channel int
}

func (a *mockADC) ReadRaw() (int, error) { return a.bus.readRaw() }

type mockActuator struct {
	bus      *MockBus
	lastDuty float64
}

func (a *mockActuator) Drive(duty float64) error {
	if duty < -1 {
		duty = -1
	}
	if duty > 1 {
		duty = 1
	}
	a.lastDuty = duty
	a.bus.apply(duty, 0.1)
	return nil
}
