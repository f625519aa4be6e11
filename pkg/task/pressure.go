package task

import (
	"time"

	"go.uber.org/zap"

	"github.com/oculab/vacutherm/pkg/control"
	"github.com/oculab/vacutherm/pkg/sensor"
	"github.com/oculab/vacutherm/pkg/state"
)

// Pressure is the vacuum loop: sample the transducer, drive the pump
// toward the gear target, publish the reading.
type Pressure struct {
	sensor sensor.Driver
	pump   *control.Pump
	store  *state.Store
	log    *zap.Logger
	period time.Duration
}

var _ Ticker = (*Pressure)(nil)

// NewPressure creates the vacuum loop.
func NewPressure(s sensor.Driver, pump *control.Pump, store *state.Store, log *zap.Logger, period time.Duration) *Pressure {
	return &Pressure{sensor: s, pump: pump, store: store, log: log, period: period}
}

func (p *Pressure) Name() string          { return "pressure" }
func (p *Pressure) Period() time.Duration { return p.period }

func (p *Pressure) Tick(now time.Time) {
	mode, ok := p.store.Mode()
	if !ok {
		return
	}
	if !mode.Enabled || mode.EmergencyStop {
		if p.pump.Running() {
			if err := p.pump.Stop(); err != nil {
				p.log.Warn("pump off command failed", zap.Error(err))
			}
		}
	} else {
		p.pump.Start()
	}

	current, err := p.sensor.Read()
	if err != nil {
		p.log.Warn("pressure read failed", zap.Error(err))
	}
	valid := p.sensor.IsValid()

	group, ok := p.store.Pressure()
	if !ok {
		return
	}

	duty, uerr := p.pump.Update(current, group.Target, now)
	if uerr != nil {
		p.log.Warn("pump command failed", zap.Error(uerr))
	}

	p.store.UpdatePressure(func(g *state.PressureGroup) {
		g.Current = current
		g.PumpDuty = duty
		g.Valid = valid
	})
}
