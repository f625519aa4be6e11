package task

import (
	"time"

	"go.uber.org/zap"

	"github.com/oculab/vacutherm/pkg/alert"
	"github.com/oculab/vacutherm/pkg/button"
	"github.com/oculab/vacutherm/pkg/control"
	"github.com/oculab/vacutherm/pkg/state"
	"github.com/oculab/vacutherm/pkg/status"
)

// UIParams configures the input-scan loop.
type UIParams struct {
	Period    time.Duration
	LongPress time.Duration

	Policy        control.Policy
	FullTargetKPa float32
	Gears         int
	DeltaKPa      float32

	// EmergencyC gates the over-temperature clear gesture: the latch only
	// releases once a fresh valid measurement sits below this threshold.
	EmergencyC float32

	StatusEvery time.Duration
}

// UI is the input loop: scan the three buttons, apply stop/resume and gear
// changes, and publish periodic status snapshots.
type UI struct {
	stop, up, down *button.Button
	store          *state.Store
	sounder        alert.Sounder
	sink           status.Sink
	log            *zap.Logger
	params         UIParams

	lastStatus time.Time
}

var _ Ticker = (*UI)(nil)

// NewUI creates the input loop.
func NewUI(stop, up, down *button.Button, store *state.Store, sounder alert.Sounder, sink status.Sink, log *zap.Logger, params UIParams) *UI {
	return &UI{
		stop: stop, up: up, down: down,
		store: store, sounder: sounder, sink: sink,
		log: log, params: params,
	}
}

func (u *UI) Name() string          { return "ui" }
func (u *UI) Period() time.Duration { return u.params.Period }

func (u *UI) Tick(now time.Time) {
	u.scan(now)
	u.handleStop(now)
	u.handleGear(now)
	u.publish(now)
}

func (u *UI) scan(now time.Time) {
	for _, b := range []*button.Button{u.stop, u.up, u.down} {
		if err := b.Update(now); err != nil {
			u.log.Warn("button scan failed", zap.Error(err))
		}
	}
}

// handleStop implements hold-to-stop: pressing STOP latches the stop and
// releasing it resumes, unless the over-temperature latch holds the stop in
// place. That latch only releases on a long press after the temperature
// has come back below the emergency threshold.
func (u *UI) handleStop(now time.Time) {
	if u.stop.WasPressed() {
		u.log.Info("stop pressed")
		u.store.TriggerEmergencyStop(false)
		u.sounder.Warning()
	}

	if u.stop.IsPressed() && u.stop.IsLongPressed(now, u.params.LongPress) {
		mode, ok := u.store.Mode()
		if ok && mode.OverTemperature && u.temperatureRecovered() {
			u.log.Info("over-temperature latch cleared by operator")
			u.store.ClearOverTemperature()
			u.sounder.Beep()
		}
	}

	if u.stop.WasReleased() {
		mode, ok := u.store.Mode()
		if !ok {
			return
		}
		if mode.OverTemperature {
			u.log.Warn("stop released but over-temperature latch still set")
			u.sounder.Warning()
			return
		}
		u.log.Info("stop released, resuming")
		u.store.ClearOperatorStop()
		u.sounder.Beep()
	}
}

func (u *UI) temperatureRecovered() bool {
	temp, ok := u.store.Temperature()
	return ok && temp.Valid && temp.Current < u.params.EmergencyC
}

func (u *UI) handleGear(now time.Time) {
	upEdge := u.up.WasPressed()
	downEdge := u.down.WasPressed()
	if !upEdge && !downEdge {
		return
	}
	if u.params.Policy == control.PolicyContinuous {
		u.stepTarget(upEdge, downEdge)
		return
	}
	u.stepGear(upEdge, downEdge)
}

// stepGear moves one gear up or down; UP means more vacuum. At either end
// of the table the press is acknowledged with the warning pattern instead.
func (u *UI) stepGear(upEdge, downEdge bool) {
	atLimit := false
	u.store.UpdatePressure(func(g *state.PressureGroup) {
		gear := g.Gear
		switch {
		case upEdge && gear < u.params.Gears:
			gear++
		case downEdge && gear > 1:
			gear--
		default:
			atLimit = true
			return
		}
		g.Gear = gear
		g.Target = control.TargetForGear(u.params.FullTargetKPa, gear, u.params.Gears)
		u.log.Info("gear changed", zap.Int("gear", gear), zap.Float32("target_kpa", g.Target))
	})
	if atLimit {
		u.sounder.Warning()
	} else {
		u.sounder.Beep()
	}
}

// stepTarget adjusts the vacuum target by a fixed step. Targets are
// negative kPa, so UP subtracts. The range is clamped between ambient and
// the full-vacuum target.
func (u *UI) stepTarget(upEdge, downEdge bool) {
	atLimit := false
	u.store.UpdatePressure(func(g *state.PressureGroup) {
		target := g.Target
		switch {
		case upEdge && target-u.params.DeltaKPa >= u.params.FullTargetKPa:
			target -= u.params.DeltaKPa
		case downEdge && target+u.params.DeltaKPa <= 0:
			target += u.params.DeltaKPa
		default:
			atLimit = true
			return
		}
		g.Target = target
		u.log.Info("target changed", zap.Float32("target_kpa", target))
	})
	if atLimit {
		u.sounder.Warning()
	} else {
		u.sounder.Beep()
	}
}

func (u *UI) publish(now time.Time) {
	if !u.lastStatus.IsZero() && now.Sub(u.lastStatus) < u.params.StatusEvery {
		return
	}
	snap, ok := u.store.Snapshot(now)
	if !ok {
		return
	}
	u.lastStatus = now
	if err := u.sink.Publish(snap); err != nil {
		u.log.Warn("status publish failed", zap.Error(err))
	}
}
