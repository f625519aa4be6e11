package safety

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/oculab/vacutherm/pkg/alert"
	"github.com/oculab/vacutherm/pkg/state"
)

func testIntervals() Intervals {
	return Intervals{
		AlarmEvery: time.Second,
		ChirpEvery: 2 * time.Second,
		WarnEvery:  5 * time.Second,
	}
}

func nominalSnap() state.Snapshot {
	return state.Snapshot{
		Temperature: state.TempGroup{Current: 36.8, Target: 37, Valid: true},
		Pressure:    state.PressureGroup{Current: -1.0, Target: -1.0, Valid: true},
		Mode:        state.ModeGroup{Enabled: true},
	}
}

// run evaluates the same snapshot every 500ms for the given span.
func run(m *Monitor, snap state.Snapshot, span time.Duration) {
	now := time.Now()
	for t := time.Duration(0); t <= span; t += 500 * time.Millisecond {
		m.Evaluate(snap, now.Add(t))
	}
}

func TestMonitorNominalStaysSilent(t *testing.T) {
	rec := &alert.Recorder{}
	m := NewMonitor(rec, nil, testIntervals())

	run(m, nominalSnap(), 5*time.Second)
	assert.Empty(t, rec.Calls)
}

func TestMonitorOverTemperatureAlarmRate(t *testing.T) {
	rec := &alert.Recorder{}
	m := NewMonitor(rec, nil, testIntervals())

	snap := nominalSnap()
	snap.Temperature.Current = 45.2
	snap.Mode.OverTemperature = true
	snap.Mode.EmergencyStop = true
	snap.Mode.Enabled = false

	// Alarm at 0, 1s, 2s, 3s over 3s of 500ms cycles.
	run(m, snap, 3*time.Second)
	assert.Equal(t, 4, rec.Count("error"))
	assert.Zero(t, rec.Count("beep"), "the over-temperature latch alarms, it does not chirp")
}

func TestMonitorStoppedChirpRate(t *testing.T) {
	rec := &alert.Recorder{}
	m := NewMonitor(rec, nil, testIntervals())

	snap := nominalSnap()
	snap.Mode.EmergencyStop = true
	snap.Mode.Enabled = false

	// Chirp at 0, 2s, 4s over 4s of 500ms cycles.
	run(m, snap, 4*time.Second)
	assert.Equal(t, 3, rec.Count("beep"))
	assert.Zero(t, rec.Count("error"))
}

func TestMonitorSensorFaultWarnRate(t *testing.T) {
	rec := &alert.Recorder{}
	m := NewMonitor(rec, nil, testIntervals())

	snap := nominalSnap()
	snap.Temperature.Valid = false

	now := time.Now()
	m.Evaluate(snap, now)
	m.Evaluate(snap, now.Add(time.Second))
	assert.Equal(t, 1, rec.Count("warning"), "second warning only after WarnEvery")

	m.Evaluate(snap, now.Add(5*time.Second))
	assert.Equal(t, 2, rec.Count("warning"))
}

func TestMonitorWarnsDuringAlarm(t *testing.T) {
	rec := &alert.Recorder{}
	m := NewMonitor(rec, nil, testIntervals())

	snap := nominalSnap()
	snap.Temperature.Valid = false
	snap.Mode.OverTemperature = true
	snap.Mode.EmergencyStop = true
	snap.Mode.Enabled = false

	// Over 10s of 500ms cycles: alarms at every whole second, warnings at
	// 0, 5s and 10s. The alarm must not swallow the warnings.
	run(m, snap, 10*time.Second)
	assert.Equal(t, 11, rec.Count("error"))
	assert.Equal(t, 3, rec.Count("warning"))
}

func TestMonitorChirpsDuringSensorFault(t *testing.T) {
	rec := &alert.Recorder{}
	m := NewMonitor(rec, nil, testIntervals())

	snap := nominalSnap()
	snap.Pressure.Valid = false
	snap.Mode.EmergencyStop = true
	snap.Mode.Enabled = false

	// Over 10s: chirps every 2s (6 of them), warnings every 5s (3 of
	// them). The faulted sensor must not silence the stop chirp.
	run(m, snap, 10*time.Second)
	assert.Equal(t, 6, rec.Count("beep"))
	assert.Equal(t, 3, rec.Count("warning"))
	assert.Zero(t, rec.Count("error"))
}

func TestMonitorRecovery(t *testing.T) {
	rec := &alert.Recorder{}
	m := NewMonitor(rec, nil, testIntervals())

	snap := nominalSnap()
	snap.Temperature.Valid = false
	now := time.Now()
	m.Evaluate(snap, now)
	assert.Equal(t, 1, rec.Count("warning"))

	m.Evaluate(nominalSnap(), now.Add(time.Second))

	// A fresh fault after recovery still honors the rate limit window.
	m.Evaluate(snap, now.Add(2*time.Second))
	assert.Equal(t, 1, rec.Count("warning"))
	m.Evaluate(snap, now.Add(6*time.Second))
	assert.Equal(t, 2, rec.Count("warning"))
}
