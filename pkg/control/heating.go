package control

import (
	"fmt"
	"time"

	"github.com/oculab/vacutherm/pkg/pid"
)

// HeatingLimits bound the heating loop's setpoint and define the
// emergency threshold above which the pad is forced off.
type HeatingLimits struct {
	MinC       float32
	MaxC       float32
	EmergencyC float32
}

// Heating regulates the heating pad with a PID loop. Owned by the
// temperature task; not safe for concurrent use.
type Heating struct {
	pid    *pid.Controller
	act    Actuator
	limits HeatingLimits

	enabled    bool
	duty       uint8
	lastUpdate time.Time
}

// NewHeating creates a disabled heating controller.
func NewHeating(p *pid.Controller, act Actuator, limits HeatingLimits) *Heating {
	return &Heating{pid: p, act: act, limits: limits}
}

// SetTarget validates and applies a new setpoint; the PID state resets so
// the old accumulator cannot fight the new target. Out-of-range values are
// rejected and the prior target kept.
func (h *Heating) SetTarget(target float32) error {
	if target < h.limits.MinC || target > h.limits.MaxC {
		return fmt.Errorf("%w: %.1f°C outside [%.1f, %.1f]", ErrTargetOutOfRange, target, h.limits.MinC, h.limits.MaxC)
	}
	h.pid.SetTarget(target)
	return nil
}

// Target returns the active setpoint.
func (h *Heating) Target() float32 {
	return h.pid.Target()
}

// Enable arms the loop. The PID resets on the disabled-to-enabled
// transition and the next Update runs with the nominal first-call period.
func (h *Heating) Enable() {
	if h.enabled {
		return
	}
	h.enabled = true
	h.pid.Reset()
	h.lastUpdate = time.Time{}
}

// Disable turns the loop off and forces the pad to zero duty.
func (h *Heating) Disable() error {
	h.enabled = false
	h.duty = 0
	return h.act.SetDuty(0)
}

// EmergencyStop is Disable plus a PID reset; used when the emergency
// threshold trips or the operator stops the system.
func (h *Heating) EmergencyStop() error {
	h.enabled = false
	h.duty = 0
	h.pid.Reset()
	return h.act.SetDuty(0)
}

// Update runs one control cycle against the measured temperature.
// overTemp is true when the measurement is at or above the emergency
// threshold; the pad has then already been forced to zero duty within this
// same call, before any PID math.
func (h *Heating) Update(current float32, now time.Time) (duty uint8, overTemp bool, err error) {
	if current >= h.limits.EmergencyC {
		return 0, true, h.EmergencyStop()
	}

	if !h.enabled {
		h.duty = 0
		return 0, false, h.act.SetDuty(0)
	}

	var dt float32
	if !h.lastUpdate.IsZero() {
		dt = float32(now.Sub(h.lastUpdate).Seconds())
	}
	h.lastUpdate = now

	out := h.pid.Update(h.pid.ErrorFor(current), dt)
	h.duty = clampDuty(out)
	return h.duty, false, h.act.SetDuty(h.duty)
}

// Duty returns the last commanded duty.
func (h *Heating) Duty() uint8 {
	return h.duty
}

// Enabled reports whether the loop is armed.
func (h *Heating) Enabled() bool {
	return h.enabled
}
