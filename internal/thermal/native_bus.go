package thermal

import (
	"fmt"

	"periph.io/x/periph/conn/gpio"
	"periph.io/x/periph/conn/gpio/gpioreg"
	"periph.io/x/periph/conn/i2c"
	"periph.io/x/periph/conn/i2c/i2creg"
	"periph.io/x/periph/conn/physic"
	"periph.io/x/periph/host"
)

// pwmFrequency is the h-bridge enable pin's PWM switching frequency.
const pwmFrequency = physic.KiloHertz

// NativeBus talks to a real I²C bus through periph.io, for the "native"
// I2CBusConfig.Type (spec.md §6). USB-bridged buses (type "usb_bridge")
// resolve to the same periph.io i2creg registry — periph.io's FTDI/CP2112
// drivers register themselves as ordinary named buses once host.Init runs,
// so no separate code path is needed here.
type NativeBus struct {
	name    string
	conn    i2c.BusCloser
	adcAddr uint16
}

// NewNativeBus opens the named I²C bus (empty string selects the system
// default) and the ADC device address given in settings["adc_address"].
func NewNativeBus(name string, settings map[string]any) (*NativeBus, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("periph host init: %w", err)
	}
	busName, _ := settings["device"].(string)
	bus, err := i2creg.Open(busName)
	if err != nil {
		return nil, fmt.Errorf("opening i2c bus %q: %w", name, err)
	}

	addr := uint16(0x48) // common ADS1115-family default
	if v, ok := settings["adc_address"].(int); ok {
		addr = uint16(v)
	}

	return &NativeBus{name: name, conn: bus, adcAddr: addr}, nil
}

func (b *NativeBus) Name() string { return b.name }

func (b *NativeBus) ADCChannel(channel int) (ADCChannel, error) {
	return &nativeADC{dev: &i2c.Dev{Addr: b.adcAddr, Bus: b.conn}, channel: channel}, nil
}

func (b *NativeBus) Actuator(in1, in2, enable int) (Actuator, error) {
	pinIN1 := gpioreg.ByName(fmt.Sprintf("GPIO%d", in1))
	pinIN2 := gpioreg.ByName(fmt.Sprintf("GPIO%d", in2))
	pinEnable := gpioreg.ByName(fmt.Sprintf("GPIO%d", enable))
	if pinIN1 == nil || pinIN2 == nil || pinEnable == nil {
		return nil, fmt.Errorf("resolving h-bridge pins %d/%d/%d", in1, in2, enable)
	}
	return &nativeActuator{in1: pinIN1, in2: pinIN2, enable: pinEnable}, nil
}

type nativeADC struct {
	dev     *i2c.Dev
	channel int
}

// ReadRaw issues a register read for the configured channel. The register
// map used here (conversion register at 0x00, channel selected via the
// config register's MUX bits) matches the ADS111x family named in
// spec.md §6's example settings.
func (a *nativeADC) ReadRaw() (int, error) {
	configReg := byte(0x01)
	muxBits := byte(0x40 + (a.channel << 4))
	cfg := []byte{configReg, muxBits, 0x83}
	if err := a.dev.Tx(cfg, nil); err != nil {
		return 0, fmt.Errorf("writing adc config: %w", err)
	}

	read := make([]byte, 2)
	if err := a.dev.Tx([]byte{0x00}, read); err != nil {
		return 0, fmt.Errorf("reading adc conversion register: %w", err)
	}
	return int(read[0])<<8 | int(read[1]), nil
}

type nativeActuator struct {
	in1, in2, enable gpio.PinIO
}

// Drive sets direction via in1/in2 and magnitude via enable's PWM duty
// (spec.md §4.9: "positive output -> one pin pattern, negative -> opposite;
// magnitude -> PWM duty").
func (a *nativeActuator) Drive(duty float64) error {
	if duty < -1 {
		duty = -1
	}
	if duty > 1 {
		duty = 1
	}

	var high, low gpio.PinIO
	if duty >= 0 {
		high, low = a.in1, a.in2
	} else {
		high, low = a.in2, a.in1
		duty = -duty
	}
	if err := high.Out(gpio.High); err != nil {
		return fmt.Errorf("setting h-bridge direction pin: %w", err)
	}
	if err := low.Out(gpio.Low); err != nil {
		return fmt.Errorf("setting h-bridge direction pin: %w", err)
	}

	pwmDuty := gpio.Duty(duty * float64(gpio.DutyMax))
	if err := a.enable.PWM(pwmDuty, pwmFrequency); err != nil {
		// pin doesn't support PWM (or hardware.Init lacks a PWM-capable
		// driver for it) — fall back to plain on/off at full duty.
		if duty > 0 {
			return a.enable.Out(gpio.High)
		}
		return a.enable.Out(gpio.Low)
	}
	return nil
}
