package state

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore() *Store {
	return New(Params{
		LockTimeout: 10 * time.Millisecond,
		MinTargetC:  30.0,
		MaxTargetC:  42.0,
		InitialTemp: TempGroup{Target: 37.0, Valid: true},
		InitialPressure: PressureGroup{
			Target: -1.0,
			Gear:   5,
			Valid:  true,
		},
		InitialMode: ModeGroup{Enabled: true},
	})
}

func TestStore_ReadsReturnCopies(t *testing.T) {
	s := newTestStore()

	g, ok := s.Temperature()
	require.True(t, ok)
	g.Current = 99.0 // mutating the copy must not leak back

	g2, ok := s.Temperature()
	require.True(t, ok)
	assert.Zero(t, g2.Current)
}

func TestStore_UpdateTemperature(t *testing.T) {
	s := newTestStore()

	ok := s.UpdateTemperature(func(g *TempGroup) {
		g.Current = 36.5
		g.HeatDuty = 120
	})
	require.True(t, ok)

	g, ok := s.Temperature()
	require.True(t, ok)
	assert.Equal(t, float32(36.5), g.Current)
	assert.Equal(t, uint8(120), g.HeatDuty)
}

func TestStore_SetTargetTemperature(t *testing.T) {
	s := newTestStore()

	require.NoError(t, s.SetTargetTemperature(40.0))

	// The documented scenario: 46°C against a 42°C cap is rejected and the
	// prior value kept.
	err := s.SetTargetTemperature(46.0)
	assert.ErrorIs(t, err, ErrTargetOutOfRange)

	g, ok := s.Temperature()
	require.True(t, ok)
	assert.Equal(t, float32(40.0), g.Target)

	assert.ErrorIs(t, s.SetTargetTemperature(20.0), ErrTargetOutOfRange)
}

func TestStore_WriteSkippedOnLockTimeout(t *testing.T) {
	s := New(Params{LockTimeout: 5 * time.Millisecond})

	// Hold the temperature lock from another goroutine past the bound.
	acquired := make(chan struct{})
	release := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.tempMu.lock(time.Second)
		close(acquired)
		<-release
		s.tempMu.unlock()
	}()
	<-acquired

	ok := s.UpdateTemperature(func(g *TempGroup) { g.Current = 50.0 })
	assert.False(t, ok, "write must be skipped, not blocked")

	_, ok = s.Temperature()
	assert.False(t, ok)

	close(release)
	wg.Wait()

	// The skipped write left no trace; the next cycle's write lands.
	require.True(t, s.UpdateTemperature(func(g *TempGroup) { g.Current = 36.0 }))
	g, ok := s.Temperature()
	require.True(t, ok)
	assert.Equal(t, float32(36.0), g.Current)
}

func TestStore_GroupsLockIndependently(t *testing.T) {
	s := newTestStore()

	// Holding the temperature lock must not hinder pressure access.
	require.True(t, s.tempMu.lock(time.Second))
	defer s.tempMu.unlock()

	ok := s.UpdatePressure(func(g *PressureGroup) { g.Current = -1.5 })
	assert.True(t, ok)

	_, ok = s.Mode()
	assert.True(t, ok)
}

func TestStore_OverTemperatureImpliesEmergencyStop(t *testing.T) {
	s := newTestStore()

	require.True(t, s.UpdateMode(func(m *ModeGroup) { m.OverTemperature = true }))

	m, ok := s.Mode()
	require.True(t, ok)
	assert.True(t, m.EmergencyStop, "invariant: over-temperature implies emergency stop")
}

func TestStore_EmergencyStopLatching(t *testing.T) {
	s := newTestStore()

	require.True(t, s.TriggerEmergencyStop(false))
	m, _ := s.Mode()
	assert.True(t, m.EmergencyStop)
	assert.False(t, m.Enabled)
	assert.False(t, m.OverTemperature)

	require.True(t, s.ClearOperatorStop())
	m, _ = s.Mode()
	assert.False(t, m.EmergencyStop)
	assert.True(t, m.Enabled)
}

func TestStore_OverTemperatureSurvivesOperatorClear(t *testing.T) {
	s := newTestStore()

	require.True(t, s.TriggerEmergencyStop(true))

	// A plain operator clear must not release the over-temperature latch.
	require.True(t, s.ClearOperatorStop())
	m, _ := s.Mode()
	assert.True(t, m.EmergencyStop)
	assert.True(t, m.OverTemperature)
	assert.False(t, m.Enabled)

	require.True(t, s.ClearOverTemperature())
	m, _ = s.Mode()
	assert.False(t, m.EmergencyStop)
	assert.False(t, m.OverTemperature)
	assert.True(t, m.Enabled)
}

func TestStore_Snapshot(t *testing.T) {
	s := newTestStore()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	s.UpdateTemperature(func(g *TempGroup) { g.Current = 36.8 })
	s.UpdatePressure(func(g *PressureGroup) { g.Current = -0.9 })

	snap, ok := s.Snapshot(now)
	require.True(t, ok)
	assert.Equal(t, now, snap.Time)
	assert.Equal(t, float32(36.8), snap.Temperature.Current)
	assert.Equal(t, float32(-0.9), snap.Pressure.Current)
	assert.True(t, snap.Mode.Enabled)
}

func TestTimedMutex_Contention(t *testing.T) {
	m := newTimedMutex()

	require.True(t, m.lock(time.Millisecond))
	assert.False(t, m.lock(5*time.Millisecond), "second acquisition must time out")

	m.unlock()
	assert.True(t, m.lock(time.Millisecond))
}
