// Package pid implements the PID control law shared by the heating and
// pump loops. A Controller is owned by exactly one control loop and is not
// safe for concurrent use.
package pid

import "github.com/chewxy/math32"

// DefaultPeriod is the nominal update period substituted when dt is not
// positive (first call after a reset, or a clock step backwards).
const DefaultPeriod float32 = 1.0

// Controller holds the state of a single PID loop.
type Controller struct {
	kp, ki, kd float32

	target      float32
	integral    float32
	lastErr     float32
	integralMax float32
}

// New creates a Controller with the given gains. integralMax bounds the
// integral accumulator to [-integralMax, +integralMax] (anti-windup).
func New(kp, ki, kd, integralMax float32) *Controller {
	return &Controller{
		kp:          kp,
		ki:          ki,
		kd:          kd,
		integralMax: math32.Abs(integralMax),
	}
}

// SetTarget sets the setpoint and resets the accumulated loop state. The
// caller validates the value against its own limits before calling.
func (c *Controller) SetTarget(target float32) {
	c.target = target
	c.Reset()
}

// Target returns the current setpoint.
func (c *Controller) Target() float32 {
	return c.target
}

// SetGains replaces the loop gains. The integral is reset so the old
// accumulator cannot bleed through the new ki.
func (c *Controller) SetGains(kp, ki, kd float32) {
	c.kp = kp
	c.ki = ki
	c.kd = kd
	c.Reset()
}

// Reset zeroes the integral accumulator and the stored error. Must be
// called on target change, on a disabled-to-enabled transition, and on
// emergency stop.
func (c *Controller) Reset() {
	c.integral = 0
	c.lastErr = 0
}

// Update advances the loop by dt seconds and returns the raw control
// output. The output is intentionally not clamped; the caller maps it onto
// the actuator's valid duty range. lastErr updates unconditionally.
func (c *Controller) Update(err, dt float32) float32 {
	if dt <= 0 {
		dt = DefaultPeriod
	}

	p := c.kp * err

	c.integral += err * dt
	if c.integral > c.integralMax {
		c.integral = c.integralMax
	}
	if c.integral < -c.integralMax {
		c.integral = -c.integralMax
	}
	i := c.ki * c.integral

	d := c.kd * (err - c.lastErr) / dt
	c.lastErr = err

	return p + i + d
}

// ErrorFor returns the loop error for a measurement against the current
// target.
func (c *Controller) ErrorFor(current float32) float32 {
	return c.target - current
}
