package control

import (
	"fmt"
	"time"

	"github.com/chewxy/math32"

	"github.com/oculab/vacutherm/pkg/pid"
)

// Policy selects how the pump duty is derived from the pressure error.
type Policy string

const (
	// PolicyGear drives the pump at one of three fixed duties depending on
	// which side of the target band the measurement sits.
	PolicyGear Policy = "gear"
	// PolicyContinuous runs a PID loop on the vacuum deficit and commands a
	// proportional duty.
	PolicyContinuous Policy = "continuous"
)

// ParsePolicy maps a config string onto a Policy.
func ParsePolicy(s string) (Policy, error) {
	switch Policy(s) {
	case PolicyGear, PolicyContinuous:
		return Policy(s), nil
	}
	return "", fmt.Errorf("unknown pump policy %q", s)
}

// PumpBands configures the gear policy's dead band and fixed duties.
type PumpBands struct {
	BandKPa   float32
	RaiseDuty uint8
	LowerDuty uint8
	HoldDuty  uint8
}

// Pump drives the vacuum pump toward a negative pressure target. Owned by
// the pressure task; not safe for concurrent use.
type Pump struct {
	policy Policy
	bands  PumpBands
	pid    *pid.Controller
	act    Actuator

	running    bool
	duty       uint8
	lastUpdate time.Time
}

// NewPump creates a stopped pump controller. The PID controller is only
// consulted under PolicyContinuous but must always be provided.
func NewPump(policy Policy, bands PumpBands, p *pid.Controller, act Actuator) *Pump {
	return &Pump{policy: policy, bands: bands, pid: p, act: act}
}

// TargetForGear scales the full-vacuum target down to a gear setting.
// Gear 0 means no vacuum at all.
func TargetForGear(fullTargetKPa float32, gear, gears int) float32 {
	if gears <= 0 {
		return fullTargetKPa
	}
	return fullTargetKPa * float32(gear) / float32(gears)
}

// Start arms the pump loop.
func (p *Pump) Start() {
	if p.running {
		return
	}
	p.running = true
	p.pid.Reset()
	p.lastUpdate = time.Time{}
}

// Stop turns the pump off.
func (p *Pump) Stop() error {
	p.running = false
	p.duty = 0
	p.pid.Reset()
	return p.act.SetDuty(0)
}

// Update runs one control cycle. Targets are negative kPa; the deficit is
// measured minus target, so a chamber not yet evacuated far enough gives a
// positive deficit and a stronger pump command. A NaN measurement holds the
// pump at its current duty rather than chasing garbage.
func (p *Pump) Update(current, target float32, now time.Time) (uint8, error) {
	if !p.running {
		p.duty = 0
		return 0, p.act.SetDuty(0)
	}
	if math32.IsNaN(current) {
		return p.duty, nil
	}

	deficit := current - target

	switch p.policy {
	case PolicyContinuous:
		var dt float32
		if !p.lastUpdate.IsZero() {
			dt = float32(now.Sub(p.lastUpdate).Seconds())
		}
		p.lastUpdate = now
		p.duty = clampDuty(p.pid.Update(deficit, dt))
	default:
		switch {
		case deficit > p.bands.BandKPa:
			p.duty = p.bands.RaiseDuty
		case deficit < -p.bands.BandKPa:
			p.duty = p.bands.LowerDuty
		default:
			p.duty = p.bands.HoldDuty
		}
	}
	return p.duty, p.act.SetDuty(p.duty)
}

// Duty returns the last commanded duty.
func (p *Pump) Duty() uint8 {
	return p.duty
}

// Running reports whether the loop is armed.
func (p *Pump) Running() bool {
	return p.running
}
