// Package safety evaluates system snapshots and drives the audible alert
// patterns. The monitor holds no locks and does no I/O of its own; the
// safety task feeds it snapshots and a clock, and it rate-limits what it
// tells the sounder.
package safety

import (
	"time"

	"go.uber.org/zap"

	"github.com/oculab/vacutherm/pkg/alert"
	"github.com/oculab/vacutherm/pkg/state"
)

// Intervals sets the minimum spacing between repeats of each pattern.
type Intervals struct {
	// AlarmEvery spaces the over-temperature alarm repeats.
	AlarmEvery time.Duration
	// ChirpEvery spaces the stopped-state reminder chirps.
	ChirpEvery time.Duration
	// WarnEvery spaces the sensor-trouble warnings.
	WarnEvery time.Duration
}

// Monitor turns snapshots into alert commands. Owned by the safety task;
// not safe for concurrent use.
type Monitor struct {
	sounder   alert.Sounder
	log       *zap.Logger
	intervals Intervals

	lastAlarm time.Time
	lastChirp time.Time
	lastWarn  time.Time

	overTemp bool
	stopped  bool
	fault    bool
}

// NewMonitor creates a monitor. A nil logger is replaced with a no-op one.
func NewMonitor(sounder alert.Sounder, log *zap.Logger, intervals Intervals) *Monitor {
	if log == nil {
		log = zap.NewNop()
	}
	return &Monitor{sounder: sounder, log: log, intervals: intervals}
}

// Evaluate inspects one snapshot. Each condition is evaluated on its own,
// with its own rate limiter: the sensor warning keeps firing while the
// alarm sounds, and a faulted sensor does not silence the stop chirp. The
// chirp belongs to the operator stop only; the over-temperature latch has
// its alarm instead.
func (m *Monitor) Evaluate(snap state.Snapshot, now time.Time) {
	overTemp := snap.Mode.OverTemperature
	stopped := snap.Mode.EmergencyStop && !overTemp
	fault := !snap.Temperature.Valid || !snap.Pressure.Valid

	if overTemp != m.overTemp {
		m.overTemp = overTemp
		if overTemp {
			m.log.Error("over-temperature latch active",
				zap.Float32("temperature_c", snap.Temperature.Current))
		} else {
			m.log.Info("over-temperature latch released")
		}
	}
	if stopped != m.stopped {
		m.stopped = stopped
		if stopped {
			m.log.Info("system stopped")
		} else {
			m.log.Info("system resumed")
		}
	}
	if fault != m.fault {
		m.fault = fault
		if fault {
			m.log.Warn("sensor unavailable",
				zap.Bool("temperature_valid", snap.Temperature.Valid),
				zap.Bool("pressure_valid", snap.Pressure.Valid))
		} else {
			m.log.Info("sensors recovered")
		}
	}

	if overTemp && m.due(&m.lastAlarm, m.intervals.AlarmEvery, now) {
		m.sounder.Error()
	}
	if stopped && m.due(&m.lastChirp, m.intervals.ChirpEvery, now) {
		m.sounder.Beep()
	}
	if fault && m.due(&m.lastWarn, m.intervals.WarnEvery, now) {
		m.sounder.Warning()
	}
}

func (m *Monitor) due(last *time.Time, every time.Duration, now time.Time) bool {
	if !last.IsZero() && now.Sub(*last) < every {
		return false
	}
	*last = now
	return true
}
