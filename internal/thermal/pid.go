// Package thermal implements the photoacoustic cell's PID-controlled
// thermal regulation loops: per-regulator PID controllers, a bounded
// history ring per regulator, and the regulator daemon that ties ADC
// reads, temperature conversion, PID compute, and H-bridge actuation
// together (spec.md §4.8, §4.9).
package thermal

import "time"

// PIDComponents breaks down one update's output into its three terms, for
// introspection and tests (spec.md §8 property 6).
type PIDComponents struct {
	Proportional float64
	Integral     float64
	Derivative   float64
}

// PID is a textbook PID controller with integral clamping and a secondary
// anti-windup step (spec.md §4.8). It is not safe for concurrent use — the
// owning regulator serializes all calls from its single loop goroutine.
type PID struct {
	Kp, Ki, Kd float64
	Setpoint   float64

	IMax           float64
	OutMin, OutMax float64

	integral  float64 // accumulated error (I term pre-gain)
	prevError float64
	lastTick  time.Time
	hasTick   bool
}

// NewPID constructs a controller with the given gains and clamps.
func NewPID(kp, ki, kd, setpoint, iMax, outMin, outMax float64) *PID {
	return &PID{
		Kp: kp, Ki: ki, Kd: kd, Setpoint: setpoint,
		IMax: iMax, OutMin: outMin, OutMax: outMax,
	}
}

// Update advances the controller by one sample. dt is derived from the
// wall-clock gap since the previous call, defaulting to 100ms on the very
// first call (spec.md §4.8: "default 0.1s on first call").
func (p *PID) Update(processVariable float64, now time.Time) (float64, PIDComponents) {
	dt := 0.1
	if p.hasTick {
		dt = now.Sub(p.lastTick).Seconds()
	}
	p.lastTick = now
	p.hasTick = true

	return p.step(processVariable, dt)
}

func (p *PID) step(processVariable, dt float64) (float64, PIDComponents) {
	err := p.Setpoint - processVariable

	proportional := p.Kp * err

	p.integral += err * dt
	p.integral = clamp(p.integral, -p.IMax, p.IMax)
	integralTerm := p.Ki * p.integral

	var derivative float64
	if dt > 0 {
		derivative = p.Kd * (err - p.prevError) / dt
	}
	p.prevError = err

	rawOutput := proportional + integralTerm + derivative
	output := clamp(rawOutput, p.OutMin, p.OutMax)

	// Additional anti-windup: once the clamped output saturates in the same
	// direction the integral is pushing, bleed the accumulator down instead
	// of letting it keep growing unboundedly (spec.md §4.8 step 8).
	if output != rawOutput && sameSign(output, p.integral) {
		p.integral *= 0.9
	}

	return output, PIDComponents{Proportional: proportional, Integral: integralTerm, Derivative: derivative}
}

// UpdateGains changes Kp/Ki/Kd/Setpoint without disturbing the integral
// accumulator or the previous error — an online parameter change must not
// discard the controller's history (spec.md §4.8).
func (p *PID) UpdateGains(kp, ki, kd *float64, setpoint *float64) {
	if kp != nil {
		p.Kp = *kp
	}
	if ki != nil {
		p.Ki = *ki
	}
	if kd != nil {
		p.Kd = *kd
	}
	if setpoint != nil {
		p.Setpoint = *setpoint
	}
}

// Reset zeros the integral accumulator and the previous error, and drops
// the timing baseline so the next Update treats dt as a first call.
func (p *PID) Reset() {
	p.integral = 0
	p.prevError = 0
	p.hasTick = false
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func sameSign(a, b float64) bool {
	if a == 0 || b == 0 {
		return false
	}
	return (a > 0) == (b > 0)
}
