// Package control drives the heating and pump actuators from the sensor
// readings: a PID loop for the heating pad and a selectable gear-banded or
// continuous-target policy for the vacuum pump.
package control

import "errors"

// ErrTargetOutOfRange reports a rejected setpoint; the active target keeps
// its prior value.
var ErrTargetOutOfRange = errors.New("target out of range")

// Actuator accepts duty-cycle commands in [0, 255]. Implementations wrap
// whatever drives the PWM channel; while the system is disabled or stopped
// the commanded duty is always 0.
type Actuator interface {
	SetDuty(duty uint8) error
}

// ActuatorFunc adapts a function to the Actuator capability.
type ActuatorFunc func(duty uint8) error

// SetDuty calls f.
func (f ActuatorFunc) SetDuty(duty uint8) error { return f(duty) }

// RecordingActuator is a test double remembering every commanded duty.
type RecordingActuator struct {
	Duties []uint8
	Err    error
}

var _ Actuator = (*RecordingActuator)(nil)

// SetDuty records the duty and returns Err if set.
func (r *RecordingActuator) SetDuty(duty uint8) error {
	if r.Err != nil {
		return r.Err
	}
	r.Duties = append(r.Duties, duty)
	return nil
}

// Last returns the most recently commanded duty, or 0 if none.
func (r *RecordingActuator) Last() uint8 {
	if len(r.Duties) == 0 {
		return 0
	}
	return r.Duties[len(r.Duties)-1]
}

// clampDuty maps a raw control output onto the actuator range.
func clampDuty(out float32) uint8 {
	if out <= 0 {
		return 0
	}
	if out >= 255 {
		return 255
	}
	return uint8(out)
}
