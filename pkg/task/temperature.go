package task

import (
	"time"

	"github.com/chewxy/math32"
	"go.uber.org/zap"

	"github.com/oculab/vacutherm/pkg/control"
	"github.com/oculab/vacutherm/pkg/sensor"
	"github.com/oculab/vacutherm/pkg/state"
)

// Temperature is the heating loop: sample the thermocouple, run the PID,
// command the pad, publish the reading.
type Temperature struct {
	sensor sensor.Driver
	heat   *control.Heating
	store  *state.Store
	log    *zap.Logger
	period time.Duration
}

var _ Ticker = (*Temperature)(nil)

// NewTemperature creates the heating loop.
func NewTemperature(s sensor.Driver, heat *control.Heating, store *state.Store, log *zap.Logger, period time.Duration) *Temperature {
	return &Temperature{sensor: s, heat: heat, store: store, log: log, period: period}
}

func (t *Temperature) Name() string          { return "temperature" }
func (t *Temperature) Period() time.Duration { return t.period }

func (t *Temperature) Tick(now time.Time) {
	mode, ok := t.store.Mode()
	if !ok {
		return
	}
	if mode.Enabled && !mode.EmergencyStop {
		t.heat.Enable()
	} else if t.heat.Enabled() {
		if err := t.heat.Disable(); err != nil {
			t.log.Warn("heater off command failed", zap.Error(err))
		}
	}

	// The store owns the setpoint; the controller follows it.
	if temp, ok := t.store.Temperature(); ok && temp.Target != t.heat.Target() {
		if err := t.heat.SetTarget(temp.Target); err != nil {
			t.log.Warn("stored target rejected", zap.Error(err))
		}
	}

	current, err := t.sensor.Read()
	if err != nil {
		t.log.Warn("temperature read failed", zap.Error(err))
	}
	valid := t.sensor.IsValid()

	// Without a usable measurement the pad must not run open loop.
	if math32.IsNaN(current) {
		if derr := t.heat.Disable(); derr != nil {
			t.log.Warn("heater off command failed", zap.Error(derr))
		}
		t.store.UpdateTemperature(func(g *state.TempGroup) {
			g.Current = current
			g.HeatDuty = 0
			g.Valid = false
		})
		return
	}

	duty, overTemp, uerr := t.heat.Update(current, now)
	if uerr != nil {
		t.log.Warn("heater command failed", zap.Error(uerr))
	}
	if overTemp {
		t.log.Error("emergency threshold exceeded, heating stopped",
			zap.Float32("temperature_c", current))
		t.store.TriggerEmergencyStop(true)
	}

	t.store.UpdateTemperature(func(g *state.TempGroup) {
		g.Current = current
		g.HeatDuty = duty
		g.Valid = valid
	})
}
