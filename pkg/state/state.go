// Package state owns the single shared SystemState instance. Fields are
// partitioned into independently lockable groups; every acquisition is
// bounded, and a write that cannot take its lock in time is skipped for
// that cycle instead of blocking a control loop. Raw fields never cross a
// task boundary: reads hand out copies, writes run inside scoped mutation
// closures.
package state

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrLockTimeout reports a skipped access. Callers retry naturally on
	// their next cycle; this is never escalated to a fault.
	ErrLockTimeout = errors.New("state lock not acquired within bound")

	// ErrTargetOutOfRange reports a rejected setpoint. The stored target
	// keeps its prior value.
	ErrTargetOutOfRange = errors.New("target temperature out of range")
)

// TempGroup is the temperature-task field group.
type TempGroup struct {
	Current  float32
	Target   float32
	HeatDuty uint8
	Valid    bool // temperature sensor currently usable
}

// PressureGroup is the pressure-task field group.
type PressureGroup struct {
	Current  float32
	Target   float32
	Gear     int
	PumpDuty uint8
	Valid    bool
}

// ModeGroup holds the system mode flags. EmergencyStop and OverTemperature
// are latches: once set they persist until their distinct clear operation.
type ModeGroup struct {
	Enabled         bool
	EmergencyStop   bool
	OverTemperature bool
}

// Snapshot is a consistent copy of all groups.
type Snapshot struct {
	Time        time.Time
	Temperature TempGroup
	Pressure    PressureGroup
	Mode        ModeGroup
}

// Params configures a Store.
type Params struct {
	LockTimeout time.Duration
	MinTargetC  float32
	MaxTargetC  float32

	InitialTemp     TempGroup
	InitialPressure PressureGroup
	InitialMode     ModeGroup
}

// Store is the process-wide shared state container.
type Store struct {
	timeout    time.Duration
	minTargetC float32
	maxTargetC float32

	tempMu  timedMutex
	pressMu timedMutex
	modeMu  timedMutex

	temp  TempGroup
	press PressureGroup
	mode  ModeGroup
}

// New creates the Store with its initial field values.
func New(p Params) *Store {
	return &Store{
		timeout:    p.LockTimeout,
		minTargetC: p.MinTargetC,
		maxTargetC: p.MaxTargetC,
		tempMu:     newTimedMutex(),
		pressMu:    newTimedMutex(),
		modeMu:     newTimedMutex(),
		temp:       p.InitialTemp,
		press:      p.InitialPressure,
		mode:       p.InitialMode,
	}
}

// Temperature returns a copy of the temperature group. ok is false when the
// lock was not acquired within the bound.
func (s *Store) Temperature() (TempGroup, bool) {
	if !s.tempMu.lock(s.timeout) {
		return TempGroup{}, false
	}
	defer s.tempMu.unlock()
	return s.temp, true
}

// UpdateTemperature runs fn against the temperature group under its lock.
// Returns false (write skipped) on lock timeout.
func (s *Store) UpdateTemperature(fn func(*TempGroup)) bool {
	if !s.tempMu.lock(s.timeout) {
		return false
	}
	defer s.tempMu.unlock()
	fn(&s.temp)
	return true
}

// SetTargetTemperature validates and stores a new target. An out-of-range
// value is rejected and the prior target kept.
func (s *Store) SetTargetTemperature(target float32) error {
	if target < s.minTargetC || target > s.maxTargetC {
		return fmt.Errorf("%w: %.1f outside [%.1f, %.1f]", ErrTargetOutOfRange, target, s.minTargetC, s.maxTargetC)
	}
	if !s.UpdateTemperature(func(g *TempGroup) { g.Target = target }) {
		return ErrLockTimeout
	}
	return nil
}

// Pressure returns a copy of the pressure group.
func (s *Store) Pressure() (PressureGroup, bool) {
	if !s.pressMu.lock(s.timeout) {
		return PressureGroup{}, false
	}
	defer s.pressMu.unlock()
	return s.press, true
}

// UpdatePressure runs fn against the pressure group under its lock.
func (s *Store) UpdatePressure(fn func(*PressureGroup)) bool {
	if !s.pressMu.lock(s.timeout) {
		return false
	}
	defer s.pressMu.unlock()
	fn(&s.press)
	return true
}

// Mode returns a copy of the mode flags.
func (s *Store) Mode() (ModeGroup, bool) {
	if !s.modeMu.lock(s.timeout) {
		return ModeGroup{}, false
	}
	defer s.modeMu.unlock()
	return s.mode, true
}

// UpdateMode runs fn against the mode group under its lock. The
// over-temperature invariant is re-established after every mutation: the
// over-temperature latch implies the emergency-stop latch.
func (s *Store) UpdateMode(fn func(*ModeGroup)) bool {
	if !s.modeMu.lock(s.timeout) {
		return false
	}
	defer s.modeMu.unlock()
	fn(&s.mode)
	if s.mode.OverTemperature {
		s.mode.EmergencyStop = true
	}
	return true
}

// TriggerEmergencyStop latches the stop (and over-temperature when
// overTemp) and disables the system.
func (s *Store) TriggerEmergencyStop(overTemp bool) bool {
	return s.UpdateMode(func(m *ModeGroup) {
		m.EmergencyStop = true
		m.Enabled = false
		if overTemp {
			m.OverTemperature = true
		}
	})
}

// ClearOperatorStop releases a plain operator stop. The over-temperature
// latch holds the stop in place; clearing that one requires
// ClearOverTemperature.
func (s *Store) ClearOperatorStop() bool {
	return s.UpdateMode(func(m *ModeGroup) {
		if m.OverTemperature {
			return
		}
		m.EmergencyStop = false
		m.Enabled = true
	})
}

// ClearOverTemperature releases the over-temperature latch and the stop it
// implies. The caller is responsible for only invoking this after a fresh
// measurement confirmed the temperature dropped below the emergency
// threshold alongside an explicit operator action.
func (s *Store) ClearOverTemperature() bool {
	if !s.modeMu.lock(s.timeout) {
		return false
	}
	defer s.modeMu.unlock()
	s.mode.OverTemperature = false
	s.mode.EmergencyStop = false
	s.mode.Enabled = true
	return true
}

// Snapshot composes a copy of all groups, acquiring the group locks one at
// a time. ok is false if any acquisition timed out; the snapshot is then
// incomplete and should be discarded.
func (s *Store) Snapshot(now time.Time) (Snapshot, bool) {
	temp, ok := s.Temperature()
	if !ok {
		return Snapshot{}, false
	}
	press, ok := s.Pressure()
	if !ok {
		return Snapshot{}, false
	}
	mode, ok := s.Mode()
	if !ok {
		return Snapshot{}, false
	}
	return Snapshot{Time: now, Temperature: temp, Pressure: press, Mode: mode}, true
}
